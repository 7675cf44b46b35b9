package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNewValidatesLengths(t *testing.T) {
	_, err := New(
		TextColumn("VendorId", []string{"VTS", "CMT"}),
		ScalarColumn("TripDistance", []float64{1.5}),
	)
	assert.Error(t, err)

	_, err = New(
		TextColumn("VendorId", []string{"VTS"}),
		TextColumn("VendorId", []string{"CMT"}),
	)
	assert.Error(t, err, "duplicate names must be rejected")
}

func TestWithIsCopyOnWrite(t *testing.T) {
	base, err := New(
		TextColumn("VendorId", []string{"VTS", "CMT"}),
		ScalarColumn("FareAmount", []float64{10, 20}),
	)
	require.NoError(t, err)

	next, err := base.With(ScalarColumn("Label", []float64{10, 20}))
	require.NoError(t, err)

	assert.False(t, base.Has("Label"), "original frame must not change")
	assert.True(t, next.Has("Label"))
	assert.Equal(t, []string{"VendorId", "FareAmount", "Label"}, next.Names())

	replaced, err := next.With(ScalarColumn("FareAmount", []float64{0, 0}))
	require.NoError(t, err)
	assert.Equal(t, []string{"VendorId", "FareAmount", "Label"}, replaced.Names(), "replacement keeps position")

	col, err := next.Column("FareAmount")
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20}, col.Scalars())

	_, err = base.With(ScalarColumn("Short", []float64{1}))
	assert.Error(t, err)
}

func TestColumnOfChecksKind(t *testing.T) {
	f, err := New(
		TextColumn("PaymentType", []string{"CRD"}),
		VectorColumn("Features", mat.NewDense(1, 3, []float64{1, 0, 2})),
	)
	require.NoError(t, err)

	_, err = f.ColumnOf("PaymentType", Scalar)
	assert.Error(t, err)

	features, err := f.ColumnOf("Features", Vector)
	require.NoError(t, err)
	assert.Equal(t, 3, features.Width())
	assert.Equal(t, 1, features.Len())

	_, err = f.Column("Missing")
	assert.Error(t, err)
}

func TestWidth(t *testing.T) {
	assert.Equal(t, 0, TextColumn("a", []string{"x"}).Width())
	assert.Equal(t, 1, ScalarColumn("b", []float64{1}).Width())
	assert.Equal(t, 2, VectorColumn("c", mat.NewDense(1, 2, nil)).Width())
	assert.Equal(t, "vector", Vector.String())
}
