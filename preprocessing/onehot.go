package preprocessing

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/taxifare/core/frame"
	"github.com/YuminosukeSato/taxifare/core/model"
	"github.com/YuminosukeSato/taxifare/pkg/errors"
	"github.com/YuminosukeSato/taxifare/pkg/log"
)

// OneHotEncoder はテキスト列の語彙を学習し、各値を One-Hot ベクトルに変換する Estimator です。
//
// 語彙は学習データに現れた順に並び、Fit 後は固定されます。
// 学習時に存在しなかった値はエラーにならず、全要素が0のベクトルに変換されます。
//
// 使用例:
//
//	enc := preprocessing.NewOneHotEncoder("VendorIdEncoded", "VendorId")
//	stage, err := enc.Fit(trainFrame)
//	encoded, err := stage.Transform(testFrame)
type OneHotEncoder struct {
	Output string
	Input  string
}

// NewOneHotEncoder は新しいOneHotEncoderを作成します。
func NewOneHotEncoder(output, input string) *OneHotEncoder {
	return &OneHotEncoder{Output: output, Input: input}
}

// Fit は入力列の語彙を出現順に学習します。
//
// パラメータ:
//   - f: Input 列（テキスト列）を含むフレーム
//
// 戻り値:
//   - model.Stage: 学習済みの *OneHotTransformer
//   - error: 列が存在しない、テキスト列でない、または空の場合
func (e *OneHotEncoder) Fit(f *frame.Frame) (_ model.Stage, err error) {
	defer errors.Recover(&err, "OneHotEncoder.Fit")

	col, err := f.ColumnOf(e.Input, frame.Text)
	if err != nil {
		return nil, err
	}
	if col.Len() == 0 {
		return nil, errors.NewModelError("OneHotEncoder.Fit", e.Input, errors.ErrEmptyData)
	}

	var vocab []string
	seen := make(map[string]bool)
	for _, v := range col.Texts() {
		if !seen[v] {
			seen[v] = true
			vocab = append(vocab, v)
		}
	}

	log.GetLoggerWithName("preprocessing.onehot").Debug("Vocabulary learned",
		log.ColumnKey, e.Input,
		log.VocabularySizeKey, len(vocab),
	)
	return NewOneHotTransformer(e.Output, e.Input, vocab), nil
}

// OneHotTransformer は学習済みの One-Hot 変換です。
type OneHotTransformer struct {
	Output     string
	Input      string
	Vocabulary []string

	index map[string]int
}

// NewOneHotTransformer は語彙を指定して OneHotTransformer を作成します。
// vocab の順序がベクトルのスロット順になります。
func NewOneHotTransformer(output, input string, vocab []string) *OneHotTransformer {
	t := &OneHotTransformer{Output: output, Input: input, Vocabulary: append([]string(nil), vocab...)}
	t.buildIndex()
	return t
}

func (t *OneHotTransformer) buildIndex() {
	t.index = make(map[string]int, len(t.Vocabulary))
	for i, v := range t.Vocabulary {
		t.index[v] = i
	}
}

// Slot returns the vector position of value, or -1 for values outside the
// vocabulary.
func (t *OneHotTransformer) Slot(value string) int {
	if i, ok := t.index[value]; ok {
		return i
	}
	return -1
}

// Transform は Input 列を n×len(Vocabulary) のベクトル列 Output に変換します。
func (t *OneHotTransformer) Transform(f *frame.Frame) (*frame.Frame, error) {
	col, err := f.ColumnOf(t.Input, frame.Text)
	if err != nil {
		return nil, err
	}
	width := len(t.Vocabulary)
	if width == 0 {
		return nil, errors.NewNotFittedError("OneHotTransformer", "Transform")
	}

	rows := col.Len()
	data := make([]float64, rows*width)
	for i, v := range col.Texts() {
		if slot := t.Slot(v); slot >= 0 {
			data[i*width+slot] = 1
		}
	}

	var out *mat.Dense
	if rows > 0 {
		out = mat.NewDense(rows, width, data)
	}
	return f.With(frame.VectorColumn(t.Output, out))
}

// Kind implements model.Stage.
func (t *OneHotTransformer) Kind() string { return OneHotKind }

// oneHotState is the gob form of OneHotTransformer; the index is rebuilt on
// decode.
type oneHotState OneHotTransformer

// MarshalBinary implements encoding.BinaryMarshaler.
func (t *OneHotTransformer) MarshalBinary() ([]byte, error) {
	return model.GobMarshal((*oneHotState)(t))
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (t *OneHotTransformer) UnmarshalBinary(data []byte) error {
	if err := model.GobUnmarshal(data, (*oneHotState)(t)); err != nil {
		return err
	}
	if len(t.Vocabulary) == 0 {
		return errors.NewValueError("OneHotTransformer.UnmarshalBinary", "empty vocabulary")
	}
	t.buildIndex()
	if len(t.index) != len(t.Vocabulary) {
		return errors.NewValueError("OneHotTransformer.UnmarshalBinary", fmt.Sprintf("duplicate entries in vocabulary of %q", t.Input))
	}
	return nil
}
