package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

var payloadKeys = [...]string{"deviceId", "hr", "spo2", "ts"}

// EncodePayload renders the fixed four-key JSON payload.
func EncodePayload(s TelemetrySample) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return b, nil
}

// DecodePayload parses a payload produced by EncodePayload. Unknown keys,
// missing keys and non-integer numbers are rejected.
func DecodePayload(b []byte) (TelemetrySample, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return TelemetrySample{}, fmt.Errorf("decode payload: %w", err)
	}
	if len(raw) != len(payloadKeys) {
		return TelemetrySample{}, fmt.Errorf("decode payload: expected %d keys, got %d", len(payloadKeys), len(raw))
	}
	for _, k := range payloadKeys {
		if _, ok := raw[k]; !ok {
			return TelemetrySample{}, fmt.Errorf("decode payload: missing key %q", k)
		}
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var s TelemetrySample
	if err := dec.Decode(&s); err != nil {
		return TelemetrySample{}, fmt.Errorf("decode payload: %w", err)
	}
	return s, nil
}
