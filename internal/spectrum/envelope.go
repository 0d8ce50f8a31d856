package spectrum

import "encoding/json"

// Message types carried on the websocket feed.
const (
	MessageTypeSpectrum = "spectrum_data"
	MessageTypeStatus   = "status"
)

// Envelope wraps every message on the websocket feed, tagging the payload
// with its type so clients can dispatch without sniffing the body.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}
