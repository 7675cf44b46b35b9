package dataset

import (
	"fmt"
	"reflect"

	"github.com/YuminosukeSato/taxifare/pkg/errors"
)

// ColumnKind is the semantic type of a file column.
type ColumnKind int

const (
	// TextKind cells are kept verbatim.
	TextKind ColumnKind = iota
	// NumberKind cells must parse as finite 32-bit floats.
	NumberKind
)

func (k ColumnKind) String() string {
	if k == NumberKind {
		return "number"
	}
	return "text"
}

// SchemaColumn declares one file column.
type SchemaColumn struct {
	Name     string
	Kind     ColumnKind
	Position int
}

// Schema is the ordered column layout of a file.
type Schema []SchemaColumn

// TaxiTripSchema returns the seven-column layout of the taxi trip files.
func TaxiTripSchema() Schema {
	return Schema{
		{Name: VendorIDColumn, Kind: TextKind, Position: 0},
		{Name: RateCodeColumn, Kind: TextKind, Position: 1},
		{Name: PassengerCountColumn, Kind: NumberKind, Position: 2},
		{Name: TripTimeColumn, Kind: NumberKind, Position: 3},
		{Name: TripDistanceColumn, Kind: NumberKind, Position: 4},
		{Name: PaymentTypeColumn, Kind: TextKind, Position: 5},
		{Name: FareAmountColumn, Kind: NumberKind, Position: 6},
	}
}

// Width is the number of columns every data row must have.
func (s Schema) Width() int { return len(s) }

// Validate checks that positions are 0..n-1 in order, names are unique and the
// layout lines up with TripRecord's fields.
func (s Schema) Validate() error {
	rt := reflect.TypeOf(TripRecord{})
	if len(s) != rt.NumField() {
		return errors.NewValidationError("schema", fmt.Sprintf("want %d columns to match TripRecord", rt.NumField()), len(s))
	}
	seen := make(map[string]bool, len(s))
	for i, c := range s {
		if c.Position != i {
			return errors.NewValidationError("schema."+c.Name, "positions must be 0..n-1 in order", c.Position)
		}
		if c.Name == "" || seen[c.Name] {
			return errors.NewValidationError("schema", "column names must be non-empty and unique", c.Name)
		}
		seen[c.Name] = true

		field := rt.Field(i)
		want := TextKind
		if field.Type.Kind() == reflect.Float32 {
			want = NumberKind
		}
		if c.Kind != want {
			return errors.NewValidationError("schema."+c.Name,
				fmt.Sprintf("kind %s does not match TripRecord.%s (%s)", c.Kind, field.Name, field.Type), c.Kind)
		}
	}
	return nil
}
