package audit

import (
	"bytes"
	"encoding/json"
)

// canonicalJSON re-encodes b with object keys sorted and no insignificant
// whitespace, so a payload hashes the same after a round trip through a
// JSONB column. Numbers keep their literal text. Invalid JSON is returned
// unchanged.
func canonicalJSON(b []byte) []byte {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return b
	}
	// encoding/json writes map keys in sorted order
	out, err := json.Marshal(v)
	if err != nil {
		return b
	}
	return out
}
