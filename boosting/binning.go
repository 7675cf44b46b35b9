package boosting

import (
	"math"
	"sort"
)

// BinMapper maps raw feature values to histogram bins. Bin b holds the
// values v with Upper[b-1] < v <= Upper[b]; the last bound is +Inf.
type BinMapper struct {
	Upper []float64
}

// NumBins returns the number of bins.
func (m *BinMapper) NumBins() int { return len(m.Upper) }

// Bin returns the bin index of v.
func (m *BinMapper) Bin(v float64) int {
	return sort.SearchFloat64s(m.Upper, v)
}

// Threshold returns the split threshold that sends bins 0..b left.
func (m *BinMapper) Threshold(b int) float64 {
	return m.Upper[b]
}

// newBinMapper builds bin bounds for one feature. With at most maxBin
// distinct values every value gets its own bin; otherwise bins are cut at
// approximately equal row counts. Bounds are midpoints between adjacent
// distinct values so unseen values between them fall on a fixed side.
func newBinMapper(values []float64, maxBin int) *BinMapper {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	distinct := make([]float64, 0, 16)
	counts := make([]int, 0, 16)
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			distinct = append(distinct, v)
			counts = append(counts, 1)
		} else {
			counts[len(counts)-1]++
		}
	}

	if len(distinct) <= 1 {
		return &BinMapper{Upper: []float64{math.Inf(1)}}
	}

	var upper []float64
	if len(distinct) <= maxBin {
		upper = make([]float64, 0, len(distinct))
		for i := 0; i < len(distinct)-1; i++ {
			upper = append(upper, midpoint(distinct[i], distinct[i+1]))
		}
	} else {
		perBin := float64(len(sorted)) / float64(maxBin)
		upper = make([]float64, 0, maxBin)
		acc := 0
		next := perBin
		for i := 0; i < len(distinct)-1; i++ {
			acc += counts[i]
			if float64(acc) >= next && len(upper) < maxBin-1 {
				upper = append(upper, midpoint(distinct[i], distinct[i+1]))
				for next <= float64(acc) {
					next += perBin
				}
			}
		}
	}
	upper = append(upper, math.Inf(1))
	return &BinMapper{Upper: upper}
}

// midpoint returns a value strictly between a and b when one exists.
func midpoint(a, b float64) float64 {
	m := a + (b-a)/2
	if m >= b {
		return a
	}
	return m
}

// binnedData holds feature-major bin indices.
type binnedData struct {
	mappers []*BinMapper
	bins    [][]uint8 // bins[feature][row]
}

func binFeatures(columns [][]float64, maxBin int) *binnedData {
	d := &binnedData{
		mappers: make([]*BinMapper, len(columns)),
		bins:    make([][]uint8, len(columns)),
	}
	for j, col := range columns {
		m := newBinMapper(col, maxBin)
		idx := make([]uint8, len(col))
		for i, v := range col {
			idx[i] = uint8(m.Bin(v))
		}
		d.mappers[j] = m
		d.bins[j] = idx
	}
	return d
}
