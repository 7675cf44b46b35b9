package dataset

import (
	"io"
	"os"
	"reflect"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/YuminosukeSato/taxifare/core/frame"
	"github.com/YuminosukeSato/taxifare/pkg/errors"
	"github.com/YuminosukeSato/taxifare/pkg/log"
)

// Loader reads taxi trip files. It is immutable after NewLoader and safe to
// share between goroutines.
type Loader struct {
	schema    Schema
	separator rune
	hasHeader bool
	logger    log.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithSeparator sets the field separator. The default is ','.
func WithSeparator(r rune) Option {
	return func(l *Loader) { l.separator = r }
}

// WithHeader declares whether the first line is a header to skip. The
// default is true.
func WithHeader(has bool) Option {
	return func(l *Loader) { l.hasHeader = has }
}

// WithLogger sets the logger used for load summaries.
func WithLogger(logger log.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// NewLoader validates schema and returns a Loader for it.
//
//	loader, err := dataset.NewLoader(dataset.TaxiTripSchema())
//	trainData, err := loader.Load("Data/taxi-fare-train.csv")
func NewLoader(schema Schema, opts ...Option) (*Loader, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	l := &Loader{
		schema:    append(Schema(nil), schema...),
		separator: ',',
		hasHeader: true,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.separator == '"' || l.separator == '\n' || l.separator == '\r' || l.separator == 0 {
		return nil, errors.NewValidationError("separator", "not a usable field separator", string(l.separator))
	}
	if l.logger == nil {
		l.logger = log.GetLoggerWithName("dataset.loader")
	}
	return l, nil
}

// Schema returns a copy of the loader's schema.
func (l *Loader) Schema() Schema {
	return append(Schema(nil), l.schema...)
}

// ReadRecords parses the file at path into records. Any malformed row fails
// the whole read with a ParseError; a missing or unreadable file is an IOError.
func (l *Loader) ReadRecords(path string) ([]TripRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIOError("open", path, err)
	}
	defer file.Close()

	return l.ReadFrom(file, path)
}

// ReadFrom parses records from r. name identifies the source in errors.
func (l *Loader) ReadFrom(r io.Reader, name string) ([]TripRecord, error) {
	in := newStrictReader(r, l.schema, name, l.separator, l.hasHeader)

	var records []TripRecord
	err := gocsv.UnmarshalCSVWithoutHeaders(in, &records)
	switch {
	case errors.IsParseError(err) || errors.IsIOError(err):
		return nil, err
	case in.rows == 0:
		return nil, errors.Wrapf(errors.ErrEmptyData, "%s: no data rows", name)
	case err != nil:
		return nil, errors.NewParseError(name, 0, -1, "", err.Error())
	}
	return records, nil
}

// Load reads the file at path and converts it to a frame.
func (l *Loader) Load(path string) (*frame.Frame, error) {
	start := time.Now()
	records, err := l.ReadRecords(path)
	if err != nil {
		return nil, err
	}
	f, err := ToFrame(l.schema, records)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("Loaded dataset",
		log.PathKey, path,
		log.SamplesKey, f.Rows(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return f, nil
}

// ToFrame converts records to a frame with one column per schema entry. Text
// columns keep their strings; number columns widen to float64.
func ToFrame(schema Schema, records []TripRecord) (*frame.Frame, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	columns := make([]*frame.Column, len(schema))
	for _, col := range schema {
		switch col.Kind {
		case TextKind:
			values := make([]string, len(records))
			for i := range records {
				values[i] = reflect.ValueOf(&records[i]).Elem().Field(col.Position).String()
			}
			columns[col.Position] = frame.TextColumn(col.Name, values)
		case NumberKind:
			values := make([]float64, len(records))
			for i := range records {
				values[i] = reflect.ValueOf(&records[i]).Elem().Field(col.Position).Float()
			}
			columns[col.Position] = frame.ScalarColumn(col.Name, values)
		}
	}
	return frame.New(columns...)
}
