// Package codec decodes Hantas device wire records (info, status, event,
// graph, calibration) from the payload bytes a frame.Envelope carries, into
// strongly typed Go structs. Every decoder rejects input whose consumed
// length does not match its declared/expected size; out-of-range enum
// values are left at their zero value rather than rejected.
package codec

import (
	"fmt"

	"github.com/hantas-hq/gohantas/wire"
)

// DecodeError reports that a record's input did not have the exact expected
// size, or that decoding consumed fewer bytes than were supplied. It also
// reports a status checksum mismatch and a Graph count above MaxGraphCount;
// there Expected and Got hold the checksum or count values, not byte sizes.
type DecodeError struct {
	Record   string
	Expected int
	Got      int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("codec: %s expects %d bytes, got %d", e.Record, e.Expected, e.Got)
}

// expectSize returns a *DecodeError if len(data) != want.
func expectSize(record string, data []byte, want int) error {
	if len(data) != want {
		return &DecodeError{Record: record, Expected: want, Got: len(data)}
	}
	return nil
}

// wrapFieldError prefixes a field-level error (typically a *wire.DecodeError
// short read) with the record name, wrapping it with %w so errors.As still
// reaches the underlying *wire.DecodeError.
func wrapFieldError(record string, err error) error {
	if err == nil {
		return nil
	}
	if de, ok := err.(*wire.DecodeError); ok {
		return fmt.Errorf("codec: %s: %w", record, de)
	}
	return fmt.Errorf("codec: %s: %w", record, err)
}
