// Package preprocessing は特徴量の前処理ステージ（列コピー、One-Hotエンコーディング、列結合）を提供します。
//
// 各ステージは Estimator（設定のみを持つ）と、Fit が返す学習済み Stage の組で構成されます。
// 学習済み Stage は不変で、model.Save でモデルファイルに書き出せます。
package preprocessing

import (
	"github.com/YuminosukeSato/taxifare/core/frame"
	"github.com/YuminosukeSato/taxifare/core/model"
	"github.com/YuminosukeSato/taxifare/pkg/errors"
)

// Stage kinds written into model files.
const (
	ColumnCopierKind       = "preprocessing.ColumnCopier"
	OneHotKind             = "preprocessing.OneHot"
	ColumnConcatenatorKind = "preprocessing.ColumnConcatenator"
)

// ColumnCopier は列を別名で複製します。元の列はそのまま残ります。
// 学習するパラメータがないため、Estimator と Stage を兼ねます。
//
// 使用例:
//
//	copier := preprocessing.NewColumnCopier("Label", "FareAmount")
type ColumnCopier struct {
	Output string
	Input  string
}

// NewColumnCopier は input 列を output 列へコピーする ColumnCopier を作成します。
func NewColumnCopier(output, input string) *ColumnCopier {
	return &ColumnCopier{Output: output, Input: input}
}

// Fit は入力列の存在を確認し、自身を返します。
func (c *ColumnCopier) Fit(f *frame.Frame) (_ model.Stage, err error) {
	defer errors.Recover(&err, "ColumnCopier.Fit")

	if c.Output == "" || c.Input == "" {
		return nil, errors.NewValidationError("ColumnCopier", "input and output names are required", *c)
	}
	if _, err := f.Column(c.Input); err != nil {
		return nil, err
	}
	return &ColumnCopier{Output: c.Output, Input: c.Input}, nil
}

// Transform は Input 列と同じ値を持つ Output 列を追加します。
// 列の中身は不変なので、バッキングデータは共有されます。
func (c *ColumnCopier) Transform(f *frame.Frame) (*frame.Frame, error) {
	src, err := f.Column(c.Input)
	if err != nil {
		return nil, err
	}
	dup := *src
	dup.Name = c.Output
	return f.With(&dup)
}

// Kind implements model.Stage.
func (c *ColumnCopier) Kind() string { return ColumnCopierKind }

// columnCopierState is the gob form of ColumnCopier. It has no methods, so
// gob encodes its fields instead of calling MarshalBinary again.
type columnCopierState ColumnCopier

// MarshalBinary implements encoding.BinaryMarshaler.
func (c *ColumnCopier) MarshalBinary() ([]byte, error) {
	return model.GobMarshal((*columnCopierState)(c))
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (c *ColumnCopier) UnmarshalBinary(data []byte) error {
	return model.GobUnmarshal(data, (*columnCopierState)(c))
}
