package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/taxifare/pkg/errors"
)

// strictReader sits between encoding/csv and gocsv. It drops the header,
// rejects rows of the wrong width and numeric cells that are not finite
// 32-bit floats, and hands gocsv only rows that are known to be well formed.
// It satisfies gocsv.CSVReader.
type strictReader struct {
	r          *csv.Reader
	schema     Schema
	path       string
	skipHeader bool
	rows       int
}

func newStrictReader(in io.Reader, schema Schema, path string, separator rune, skipHeader bool) *strictReader {
	r := csv.NewReader(in)
	r.Comma = separator
	r.FieldsPerRecord = -1
	r.ReuseRecord = false
	return &strictReader{r: r, schema: schema, path: path, skipHeader: skipHeader}
}

// Read returns the next validated data row.
func (s *strictReader) Read() ([]string, error) {
	for {
		record, err := s.r.Read()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, errors.NewParseError(s.path, pe.Line, -1, "", pe.Err.Error())
			}
			return nil, errors.NewIOError("read", s.path, err)
		}
		line, _ := s.r.FieldPos(0)

		if s.skipHeader {
			s.skipHeader = false
			continue
		}
		if err := s.validate(record, line); err != nil {
			return nil, err
		}
		s.rows++
		return record, nil
	}
}

// ReadAll reads every remaining row; the first invalid row aborts the read.
func (s *strictReader) ReadAll() ([][]string, error) {
	var rows [][]string
	for {
		record, err := s.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, record)
	}
}

func (s *strictReader) validate(record []string, line int) error {
	if len(record) != s.schema.Width() {
		return errors.NewParseError(s.path, line, -1, "",
			fmt.Sprintf("expected %d columns, found %d", s.schema.Width(), len(record)))
	}
	for _, col := range s.schema {
		if col.Kind != NumberKind {
			continue
		}
		cell := strings.TrimSpace(record[col.Position])
		v, err := parseNumber(cell)
		if err != nil {
			return errors.NewParseError(s.path, line, col.Position, record[col.Position],
				fmt.Sprintf("%s: %v", col.Name, err))
		}
		// gocsv sees the canonical spelling so both parsers agree on the value.
		record[col.Position] = strconv.FormatFloat(float64(v), 'g', -1, 32)
	}
	return nil
}

func parseNumber(cell string) (float32, error) {
	if cell == "" {
		return 0, errors.New("empty numeric cell")
	}
	v, err := strconv.ParseFloat(cell, 32)
	if err != nil {
		return 0, errors.Newf("not a 32-bit float")
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Newf("non-finite value")
	}
	return float32(v), nil
}
