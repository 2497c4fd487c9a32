package trustcrypto

import (
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Canonicalize serialises v as RFC 8785 canonical JSON: object keys sorted
// recursively, arrays in positional order, numbers in their shortest
// round-trip form and no insignificant whitespace. Values that are already
// JSON (json.RawMessage) are canonicalised as-is.
func Canonicalize(v any) ([]byte, error) {
	var raw []byte
	switch t := v.(type) {
	case json.RawMessage:
		raw = t
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal canonical input: %w", err)
		}
		raw = b
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize json: %w", err)
	}
	return out, nil
}
