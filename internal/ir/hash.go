package ir

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Domain prefixes for digests. The version suffix allows algorithm migration.
const (
	DomainLayout   = "kanachord/layout/v1"
	DomainDocument = "kanachord/document/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// LayoutDigest identifies a compiled layout independently of the files or
// field order it was authored in.
func LayoutDigest(l *Layout) (string, error) {
	canonical, err := CanonicalJSON(l)
	if err != nil {
		return "", fmt.Errorf("LayoutDigest: %w", err)
	}
	return hashWithDomain(DomainLayout, canonical), nil
}

// DocumentDigest identifies a serialized rule document.
func DocumentDigest(doc []byte) string {
	return hashWithDomain(DomainDocument, doc)
}

// CanonicalJSON encodes any JSON-marshalable value as canonical JSON. Null
// object members are dropped.
func CanonicalJSON(v any) ([]byte, error) {
	generic, err := toGeneric(v)
	if err != nil {
		return nil, err
	}
	return MarshalCanonical(generic)
}

// toGeneric round-trips v through encoding/json so MarshalCanonical can
// walk it. Numbers decode as int64 via json.Number.
func toGeneric(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return intsOnly(out)
}

func intsOnly(v any) (any, error) {
	switch val := v.(type) {
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("non-integer number %s", val)
		}
		return n, nil
	case []any:
		for i, item := range val {
			conv, err := intsOnly(item)
			if err != nil {
				return nil, err
			}
			val[i] = conv
		}
		return val, nil
	case map[string]any:
		for k, item := range val {
			if item == nil {
				delete(val, k)
				continue
			}
			conv, err := intsOnly(item)
			if err != nil {
				return nil, err
			}
			val[k] = conv
		}
		return val, nil
	default:
		return val, nil
	}
}
