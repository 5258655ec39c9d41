package engine

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Fingerprint computes the deterministic identity of a piece of work:
// sha256 over the task type and the normalized payload, hex-encoded.
// Two submissions with the same type and semantically equal JSON
// payloads (key order, insignificant whitespace) produce the same
// fingerprint, which is what deduplication and cache keying rely on.
//
// Returns ErrInvalidPayload when the payload is not well-formed JSON.
func Fingerprint(taskType string, payload []byte) (string, error) {
	normalized, err := normalizePayload(payload)
	if err != nil {
		return "", err
	}
	return fingerprintOf(taskType, normalized), nil
}

// fingerprintOf hashes a type name and an already-normalized payload.
func fingerprintOf(taskType string, normalized []byte) string {
	h := sha256.New()
	h.Write([]byte(taskType))
	h.Write([]byte{0})
	h.Write(normalized)
	return hex.EncodeToString(h.Sum(nil))
}

// normalizePayload produces a canonical encoding of a JSON document:
// object keys sorted recursively, no insignificant whitespace. An
// empty payload normalizes to JSON null.
func normalizePayload(payload []byte) ([]byte, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return []byte("null"), nil
	}

	var value any
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	// Reject trailing garbage after the first document.
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after JSON document", ErrInvalidPayload)
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, value); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, value any) error {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			encodedKey, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(encodedKey)
			buf.WriteByte(':')
			if err := writeCanonical(buf, v[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, elem := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case json.Number:
		buf.WriteString(v.String())
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(encoded)
	}
	return nil
}
