// Package metrics は回帰モデルの評価指標を提供します。
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/taxifare/core/frame"
	"github.com/YuminosukeSato/taxifare/pkg/errors"
)

// RegressionMetrics はテストセット全体に対する回帰評価の結果です。
type RegressionMetrics struct {
	RSquared float64 // 決定係数
	RMS      float64 // 平方根平均二乗誤差
	MAE      float64 // 平均絶対誤差
	MSE      float64 // 平均二乗誤差
	Loss     float64 // 平均損失（二乗誤差）
	Count    int     // 評価した行数
}

// Evaluate はフレームのラベル列とスコア列から回帰指標を計算します。
//
// 使用例:
//
//	scored, err := model.Transform(testData)
//	m, err := metrics.Evaluate(scored, "Label", "Score")
//	fmt.Printf("R2 Score: %.2f\n", m.RSquared)
func Evaluate(f *frame.Frame, labelColumn, scoreColumn string) (RegressionMetrics, error) {
	label, err := f.ColumnOf(labelColumn, frame.Scalar)
	if err != nil {
		return RegressionMetrics{}, err
	}
	score, err := f.ColumnOf(scoreColumn, frame.Scalar)
	if err != nil {
		return RegressionMetrics{}, err
	}
	return EvaluateSlices(label.Scalars(), score.Scalars())
}

// EvaluateSlices は正解値と予測値のスライスから回帰指標を計算します。
func EvaluateSlices(yTrue, yPred []float64) (RegressionMetrics, error) {
	if len(yTrue) == 0 {
		return RegressionMetrics{}, errors.NewValueError("metrics.Evaluate", "empty vector")
	}
	if len(yPred) != len(yTrue) {
		return RegressionMetrics{}, errors.NewDimensionError("metrics.Evaluate", len(yTrue), len(yPred), 0)
	}
	t := mat.NewVecDense(len(yTrue), append([]float64(nil), yTrue...))
	p := mat.NewVecDense(len(yPred), append([]float64(nil), yPred...))

	mse, err := MSE(t, p)
	if err != nil {
		return RegressionMetrics{}, err
	}
	rms, err := RMSE(t, p)
	if err != nil {
		return RegressionMetrics{}, err
	}
	mae, err := MAE(t, p)
	if err != nil {
		return RegressionMetrics{}, err
	}
	r2, err := R2Score(t, p)
	if err != nil {
		return RegressionMetrics{}, err
	}
	for _, v := range []float64{mse, mae, r2} {
		if err := errors.CheckScalar("metrics.Evaluate", v, 0); err != nil {
			return RegressionMetrics{}, err
		}
	}
	return RegressionMetrics{
		RSquared: r2,
		RMS:      rms,
		MAE:      mae,
		MSE:      mse,
		Loss:     mse,
		Count:    len(yTrue),
	}, nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError("MSE", "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError("MSE", n, yPred.Len(), 0)
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	diff := mat.NewVecDense(n, nil)
	diff.SubVec(yTrue, yPred)
	return mat.Dot(diff, diff) / float64(n), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError("MAE", "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError("MAE", n, yPred.Len(), 0)
	}

	// MAE = (1/n) * Σ|yTrue - yPred|
	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

// R2Score は決定係数（R²）を計算する
//
// 正解値の分散が0の場合、予測が完全に一致していれば1を、そうでなければ
// UndefinedMetricWarning を発生させて0を返します。
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError("R2Score", "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError("R2Score", n, yPred.Len(), 0)
	}

	yMean := mat.Sum(yTrue) / float64(n)

	// 全変動（TSS）と残差変動（RSS）を計算
	var tss, rss float64
	for i := 0; i < n; i++ {
		yTrueVal := yTrue.AtVec(i)
		yPredVal := yPred.AtVec(i)
		tss += (yTrueVal - yMean) * (yTrueVal - yMean)
		rss += (yTrueVal - yPredVal) * (yTrueVal - yPredVal)
	}

	if tss == 0 {
		if rss == 0 {
			return 1, nil
		}
		errors.Warn(errors.NewUndefinedMetricWarning("R2Score", "no variance in yTrue", 0))
		return 0, nil
	}

	// R² = 1 - RSS/TSS
	return 1 - rss/tss, nil
}
