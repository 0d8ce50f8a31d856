package spectrum

import "fmt"

// MalformedFrameError reports a frame that violates the schema contract:
// a missing required field, a length mismatch, or too few samples to form
// a row. Malformed frames are dropped at the ingestion boundary.
type MalformedFrameError struct {
	Field  string // the offending field
	Reason string // why the field is unacceptable
}

func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("malformed frame: %s: %s", e.Field, e.Reason)
}

// DeserializationError reports a payload that could not be decoded into a
// structured frame. Like malformed frames, such payloads are dropped and
// logged, never fatal.
type DeserializationError struct {
	Err error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("deserialize frame: %s", e.Err)
}

func (e *DeserializationError) Unwrap() error {
	return e.Err
}
