package api

import (
	"encoding/json"

	"connectrpc.com/connect"
)

// Codec marshals the plain Go messages in this package as JSON. It registers
// under the name "json", so Connect serves it for application/json.
type Codec struct{}

var _ connect.Codec = Codec{}

func (Codec) Name() string { return "json" }

func (Codec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

// Unmarshal treats an empty body as an empty message.
func (Codec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, msg)
}

// WithJSON installs Codec on a handler or client.
func WithJSON() connect.Option {
	return connect.WithCodec(Codec{})
}
