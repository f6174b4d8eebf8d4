package store

import (
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// CanonicalBytes returns the RFC 8785 (JCS) canonical JSON form of v. Sizes
// compared before and after optimization use this encoding so that map key
// order cannot skew the measurement.
func CanonicalBytes(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical encode: %w", err)
	}
	canonical, err := jcs.Transform(data)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}
	return canonical, nil
}

// CanonicalSize returns the byte length of v's canonical encoding.
func CanonicalSize(v any) (int, error) {
	data, err := CanonicalBytes(v)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}
