package preprocessing

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/taxifare/core/frame"
	"github.com/YuminosukeSato/taxifare/core/model"
	"github.com/YuminosukeSato/taxifare/pkg/errors"
)

// ColumnConcatenator はスカラー列とベクトル列を指定順に1本の特徴量ベクトル列へ結合します。
// 学習時に各入力列の幅を記録し、変換時に同じ幅であることを検証します。
type ColumnConcatenator struct {
	Output string
	Inputs []string
}

// NewColumnConcatenator は新しいColumnConcatenatorを作成します。inputs の順序が結合順です。
func NewColumnConcatenator(output string, inputs ...string) *ColumnConcatenator {
	return &ColumnConcatenator{Output: output, Inputs: append([]string(nil), inputs...)}
}

// Fit は入力列の幅を記録した ConcatTransformer を返します。
func (c *ColumnConcatenator) Fit(f *frame.Frame) (_ model.Stage, err error) {
	defer errors.Recover(&err, "ColumnConcatenator.Fit")

	if len(c.Inputs) == 0 {
		return nil, errors.NewValidationError("ColumnConcatenator.Inputs", "at least one input column is required", c.Inputs)
	}
	widths := make([]int, len(c.Inputs))
	for i, name := range c.Inputs {
		col, err := f.Column(name)
		if err != nil {
			return nil, err
		}
		if col.Kind == frame.Text {
			return nil, errors.NewValueError("ColumnConcatenator.Fit", "column "+name+" is text; encode it first")
		}
		widths[i] = col.Width()
	}
	return &ConcatTransformer{Output: c.Output, Inputs: append([]string(nil), c.Inputs...), Widths: widths}, nil
}

// ConcatTransformer は学習済みの列結合です。
type ConcatTransformer struct {
	Output string
	Inputs []string
	Widths []int
}

// Width は出力ベクトルの次元数を返します。
func (c *ConcatTransformer) Width() int {
	total := 0
	for _, w := range c.Widths {
		total += w
	}
	return total
}

// Transform は Inputs を順に並べた n×Width() のベクトル列 Output を追加します。
func (c *ConcatTransformer) Transform(f *frame.Frame) (*frame.Frame, error) {
	rows := f.Rows()
	width := c.Width()
	data := make([]float64, rows*width)

	offset := 0
	for i, name := range c.Inputs {
		col, err := f.Column(name)
		if err != nil {
			return nil, err
		}
		if col.Width() != c.Widths[i] {
			return nil, errors.NewDimensionError("ConcatTransformer.Transform("+name+")", c.Widths[i], col.Width(), 1)
		}
		switch col.Kind {
		case frame.Scalar:
			for r, v := range col.Scalars() {
				data[r*width+offset] = v
			}
		case frame.Vector:
			m := col.Vectors()
			for r := 0; r < rows; r++ {
				copy(data[r*width+offset:r*width+offset+c.Widths[i]], m.RawRowView(r))
			}
		default:
			return nil, errors.NewValueError("ConcatTransformer.Transform", "column "+name+" is text")
		}
		offset += c.Widths[i]
	}

	var out *mat.Dense
	if rows > 0 {
		out = mat.NewDense(rows, width, data)
	}
	return f.With(frame.VectorColumn(c.Output, out))
}

// Kind implements model.Stage.
func (c *ConcatTransformer) Kind() string { return ColumnConcatenatorKind }

type concatState ConcatTransformer

// MarshalBinary implements encoding.BinaryMarshaler.
func (c *ConcatTransformer) MarshalBinary() ([]byte, error) {
	return model.GobMarshal((*concatState)(c))
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (c *ConcatTransformer) UnmarshalBinary(data []byte) error {
	if err := model.GobUnmarshal(data, (*concatState)(c)); err != nil {
		return err
	}
	if len(c.Inputs) != len(c.Widths) {
		return errors.NewDimensionError("ConcatTransformer.UnmarshalBinary", len(c.Inputs), len(c.Widths), 1)
	}
	return nil
}

// Register adds every preprocessing stage kind to reg.
func Register(reg *model.Registry) error {
	for kind, factory := range map[string]func() model.DecodableStage{
		ColumnCopierKind:       func() model.DecodableStage { return &ColumnCopier{} },
		OneHotKind:             func() model.DecodableStage { return &OneHotTransformer{} },
		ColumnConcatenatorKind: func() model.DecodableStage { return &ConcatTransformer{} },
	} {
		if err := reg.Register(kind, factory); err != nil {
			return err
		}
	}
	return nil
}
