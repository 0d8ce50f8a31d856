package spectrum

import (
	"encoding/json"
	"fmt"
	"time"
)

// DecodeFrame converts a spectrum_data payload into a validated Frame.
// The payload is either a serialized JSON document (string or bytes) or an
// already-structured object; both forms are accepted. The returned frame is
// stamped with the receive time. A payload that cannot be decoded yields a
// DeserializationError; a decoded frame that violates the schema yields a
// MalformedFrameError. In both cases no frame is returned.
func DecodeFrame(payload any) (*Frame, error) {
	var (
		frame *Frame
		err   error
	)

	switch p := payload.(type) {
	case string:
		frame, err = decodeJSON([]byte(p))
	case []byte:
		frame, err = decodeJSON(p)
	case json.RawMessage:
		frame, err = decodeJSON(p)
	case map[string]any:
		frame, err = decodeObject(p)
	case *Frame:
		frame, err = p, nil
	default:
		return nil, &DeserializationError{fmt.Errorf("unsupported payload type %T", payload)}
	}
	if err != nil {
		return nil, err
	}
	if err = frame.Validate(); err != nil {
		return nil, err
	}
	if frame.Time.IsZero() {
		frame.Time = time.Now()
	}
	return frame, nil
}

func decodeJSON(data []byte) (*Frame, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, &DeserializationError{err}
	}
	return &frame, nil
}

func decodeObject(obj map[string]any) (*Frame, error) {
	var frame Frame
	var err error

	if frame.Freqs, err = numericField(obj, "freqs"); err != nil {
		return nil, err
	}
	if frame.Power, err = numericField(obj, "power"); err != nil {
		return nil, err
	}
	if frame.Waterfall, err = numericField(obj, "waterfall"); err != nil {
		return nil, err
	}
	if v, ok := obj["center_freq"]; ok {
		if frame.CenterFreq, ok = numeric(v); !ok {
			return nil, &MalformedFrameError{Field: "center_freq", Reason: "not a number"}
		}
	}
	if v, ok := obj["sampling_rate"]; ok {
		if frame.SampleRate, ok = numeric(v); !ok {
			return nil, &MalformedFrameError{Field: "sampling_rate", Reason: "not a number"}
		}
	}
	return &frame, nil
}

func numericField(obj map[string]any, field string) ([]float64, error) {
	v, ok := obj[field]
	if !ok || v == nil {
		return nil, nil
	}
	switch s := v.(type) {
	case []float64:
		return s, nil
	case []any:
		out := make([]float64, len(s))
		for i, e := range s {
			f, ok := numeric(e)
			if !ok {
				return nil, &MalformedFrameError{Field: field, Reason: "not a numeric array"}
			}
			out[i] = f
		}
		return out, nil
	}
	return nil, &MalformedFrameError{Field: field, Reason: "not a numeric array"}
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
