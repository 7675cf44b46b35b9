package model

import (
	"bytes"
	"encoding/gob"

	"github.com/YuminosukeSato/taxifare/pkg/errors"
)

// GobMarshal encodes v as a stage payload.
func GobMarshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, errors.Wrap(err, "gob encode")
	}
	return buf.Bytes(), nil
}

// GobUnmarshal decodes a stage payload into v, which must be a pointer.
func GobUnmarshal(data []byte, v any) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return errors.Wrap(err, "gob decode")
	}
	return nil
}
