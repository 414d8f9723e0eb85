package api

import (
	"bytes"
	"encoding/json"
)

// Amount is a money input. It accepts a JSON string ("90.50") or a JSON
// number (90.5) and keeps the text as written. Any other JSON value is kept
// verbatim too, so the ledger reports it as an invalid number on the amount
// field instead of the codec failing the whole request.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*a = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
	default:
		*a = Amount(data)
	}
	return nil
}

func (a Amount) String() string { return string(a) }
