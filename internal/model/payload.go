package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Payload is the versioned envelope stored in JSON columns such as
// raw_data, metadata, validation and breakdown.
//
// Producer names the collaborator that wrote the data (for example
// "edge:validate-lead" or "cli"). Data is kept as raw JSON so consumers
// decode into their own versioned struct.
type Payload struct {
	SchemaVersion int             `json:"schema_version"`
	Producer      string          `json:"producer"`
	Data          json.RawMessage `json:"data"`
}

// NewPayload wraps v in an envelope at the current PayloadVersion.
func NewPayload(producer string, v any) (Payload, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Payload{}, fmt.Errorf("payload %s: %w", producer, err)
	}
	return Payload{SchemaVersion: PayloadVersion, Producer: producer, Data: data}, nil
}

// EmptyPayload is the value stored when a producer supplied nothing.
func EmptyPayload() Payload {
	return Payload{SchemaVersion: PayloadVersion, Producer: "", Data: json.RawMessage("{}")}
}

// Decode unmarshals Data into v. Unknown fields are rejected so shape drift
// surfaces instead of being silently dropped.
func (p Payload) Decode(v any) error {
	if len(p.Data) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(p.Data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode payload from %q (v%d): %w", p.Producer, p.SchemaVersion, err)
	}
	return nil
}

// ParsePayload reads a stored JSON column. Legacy rows holding a bare JSON
// object are wrapped as schema version 0.
func ParsePayload(raw string) (Payload, error) {
	if raw == "" || raw == "{}" {
		return EmptyPayload(), nil
	}
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err == nil && p.SchemaVersion > 0 {
		if len(p.Data) == 0 {
			p.Data = json.RawMessage("{}")
		}
		return p, nil
	}
	if !json.Valid([]byte(raw)) {
		return Payload{}, fmt.Errorf("payload column is not valid JSON")
	}
	return Payload{SchemaVersion: 0, Producer: "legacy", Data: json.RawMessage(raw)}, nil
}

// String serializes the envelope for storage.
func (p Payload) String() string {
	if len(p.Data) == 0 {
		p.Data = json.RawMessage("{}")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "{}"
	}
	return string(data)
}
