package preprocessing

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/taxifare/core/frame"
	"github.com/YuminosukeSato/taxifare/core/model"
	"github.com/YuminosukeSato/taxifare/pkg/errors"
)

func tripFrame(t *testing.T, vendors []string, distances, fares []float64) *frame.Frame {
	t.Helper()
	f, err := frame.New(
		frame.TextColumn("VendorId", vendors),
		frame.ScalarColumn("TripDistance", distances),
		frame.ScalarColumn("FareAmount", fares),
	)
	require.NoError(t, err)
	return f
}

func TestColumnCopierKeepsOriginal(t *testing.T) {
	f := tripFrame(t, []string{"VTS", "CMT"}, []float64{1, 2}, []float64{7.5, 12})

	stage, err := NewColumnCopier("Label", "FareAmount").Fit(f)
	require.NoError(t, err)
	out, err := stage.Transform(f)
	require.NoError(t, err)

	label, err := out.ColumnOf("Label", frame.Scalar)
	require.NoError(t, err)
	assert.Equal(t, []float64{7.5, 12}, label.Scalars())
	assert.True(t, out.Has("FareAmount"))

	_, err = NewColumnCopier("Label", "Missing").Fit(f)
	assert.Error(t, err)
}

func TestOneHotFirstAppearanceOrder(t *testing.T) {
	f := tripFrame(t, []string{"VTS", "CMT", "VTS", "DDS"}, make([]float64, 4), make([]float64, 4))

	stage, err := NewOneHotEncoder("VendorIdEncoded", "VendorId").Fit(f)
	require.NoError(t, err)
	enc := stage.(*OneHotTransformer)
	assert.Equal(t, []string{"VTS", "CMT", "DDS"}, enc.Vocabulary)

	out, err := stage.Transform(f)
	require.NoError(t, err)
	col, err := out.ColumnOf("VendorIdEncoded", frame.Vector)
	require.NoError(t, err)
	assert.Equal(t, 3, col.Width())
	assert.Equal(t, []float64{1, 0, 0}, col.Vectors().RawRowView(0))
	assert.Equal(t, []float64{0, 1, 0}, col.Vectors().RawRowView(1))
	assert.Equal(t, []float64{0, 0, 1}, col.Vectors().RawRowView(3))
}

func TestOneHotUnseenValueIsZeroVector(t *testing.T) {
	train := tripFrame(t, []string{"VTS", "CMT"}, []float64{1, 2}, []float64{1, 2})
	stage, err := NewOneHotEncoder("VendorIdEncoded", "VendorId").Fit(train)
	require.NoError(t, err)

	test := tripFrame(t, []string{"XYZ"}, []float64{1}, []float64{0})
	out, err := stage.Transform(test)
	require.NoError(t, err)
	col, err := out.ColumnOf("VendorIdEncoded", frame.Vector)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, col.Vectors().RawRowView(0))
}

func TestConcatenatorOrderAndWidth(t *testing.T) {
	f := tripFrame(t, []string{"VTS", "CMT"}, []float64{3.5, 1.25}, []float64{1, 2})
	enc, err := NewOneHotEncoder("VendorIdEncoded", "VendorId").Fit(f)
	require.NoError(t, err)
	f, err = enc.Transform(f)
	require.NoError(t, err)

	stage, err := NewColumnConcatenator("Features", "TripDistance", "VendorIdEncoded").Fit(f)
	require.NoError(t, err)
	assert.Equal(t, 3, stage.(*ConcatTransformer).Width())

	out, err := stage.Transform(f)
	require.NoError(t, err)
	col, err := out.ColumnOf("Features", frame.Vector)
	require.NoError(t, err)
	assert.Equal(t, []float64{3.5, 1, 0}, col.Vectors().RawRowView(0))
	assert.Equal(t, []float64{1.25, 0, 1}, col.Vectors().RawRowView(1))

	_, err = NewColumnConcatenator("Features", "VendorId").Fit(f)
	assert.Error(t, err, "text columns cannot be concatenated")
}

func TestConcatRejectsWidthChange(t *testing.T) {
	f := tripFrame(t, []string{"VTS"}, []float64{1}, []float64{1})
	stage := &ConcatTransformer{Output: "Features", Inputs: []string{"TripDistance"}, Widths: []int{2}}
	_, err := stage.Transform(f)
	assert.Error(t, err)
}

func TestStagesSurviveModelFile(t *testing.T) {
	f := tripFrame(t, []string{"VTS", "CMT", "VTS"}, []float64{1, 2, 3}, []float64{5, 8, 11})

	var stages []model.Stage
	for _, est := range []model.Estimator{
		NewColumnCopier("Label", "FareAmount"),
		NewOneHotEncoder("VendorIdEncoded", "VendorId"),
		NewColumnConcatenator("Features", "VendorIdEncoded", "TripDistance"),
	} {
		stage, err := est.Fit(f)
		require.NoError(t, err)
		f, err = stage.Transform(f)
		require.NoError(t, err)
		stages = append(stages, stage)
	}

	reg := model.NewRegistry()
	require.NoError(t, Register(reg))
	path := filepath.Join(t.TempDir(), "Model.bin")
	require.NoError(t, model.Save(path, stages))
	loaded, err := model.Load(path, reg)
	require.NoError(t, err)
	require.Len(t, loaded, 3)

	onehot := loaded[1].(*OneHotTransformer)
	assert.Equal(t, []string{"VTS", "CMT"}, onehot.Vocabulary)
	assert.Equal(t, 1, onehot.Slot("CMT"))
	assert.Equal(t, -1, onehot.Slot("DDS"))
	assert.Equal(t, stages[2], loaded[2])
}

func TestStageBinaryEncoding(t *testing.T) {
	tests := []struct {
		name  string
		stage model.DecodableStage
		empty model.DecodableStage
	}{
		{"column copier", NewColumnCopier("Label", "FareAmount"), &ColumnCopier{}},
		{"one-hot", NewOneHotTransformer("RateCodeEncoded", "RateCode", []string{"1", "2", "5"}), &OneHotTransformer{}},
		{"concat", &ConcatTransformer{Output: "Features", Inputs: []string{"RateCodeEncoded", "TripDistance"}, Widths: []int{3, 1}}, &ConcatTransformer{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.stage.MarshalBinary()
			require.NoError(t, err)
			require.NotEmpty(t, data)
			require.NoError(t, tt.empty.UnmarshalBinary(data))
			assert.Equal(t, tt.stage, tt.empty)
		})
	}
}

func TestStageBinaryDecodingRejectsBadState(t *testing.T) {
	data, err := (&OneHotTransformer{Output: "o", Input: "i", Vocabulary: []string{"a", "a"}}).MarshalBinary()
	require.NoError(t, err)
	assert.Error(t, (&OneHotTransformer{}).UnmarshalBinary(data))

	data, err = (&ConcatTransformer{Output: "o", Inputs: []string{"a", "b"}, Widths: []int{1}}).MarshalBinary()
	require.NoError(t, err)
	assert.Error(t, (&ConcatTransformer{}).UnmarshalBinary(data))

	assert.Error(t, (&ColumnCopier{}).UnmarshalBinary([]byte("not gob")))
}

func TestFitRecoversPanics(t *testing.T) {
	for _, est := range []model.Estimator{
		NewColumnCopier("Label", "FareAmount"),
		NewOneHotEncoder("VendorIdEncoded", "VendorId"),
		NewColumnConcatenator("Features", "TripDistance"),
	} {
		_, err := est.Fit(nil)
		var panicErr *errors.PanicError
		assert.True(t, errors.As(err, &panicErr), "%T", est)
	}
}
