package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type validationV1 struct {
	EmailOK bool   `json:"email_ok"`
	Reason  string `json:"reason,omitempty"`
}

func TestPayloadRoundTrip(t *testing.T) {
	p, err := NewPayload("edge:validate-lead", validationV1{EmailOK: true})
	require.NoError(t, err)

	stored := p.String()
	back, err := ParsePayload(stored)
	require.NoError(t, err)
	assert.Equal(t, PayloadVersion, back.SchemaVersion)
	assert.Equal(t, "edge:validate-lead", back.Producer)

	var v validationV1
	require.NoError(t, back.Decode(&v))
	assert.True(t, v.EmailOK)
}

func TestPayloadDecodeRejectsUnknownFields(t *testing.T) {
	p, err := ParsePayload(`{"schema_version":1,"producer":"x","data":{"email_ok":true,"extra":1}}`)
	require.NoError(t, err)

	var v validationV1
	assert.Error(t, p.Decode(&v))
}

func TestParsePayloadLegacy(t *testing.T) {
	p, err := ParsePayload(`{"email_ok":false}`)
	require.NoError(t, err)
	assert.Equal(t, 0, p.SchemaVersion)
	assert.Equal(t, "legacy", p.Producer)

	_, err = ParsePayload(`not json`)
	assert.Error(t, err)
}

func TestParsePayloadEmpty(t *testing.T) {
	p, err := ParsePayload("")
	require.NoError(t, err)
	assert.Equal(t, `{"schema_version":1,"producer":"","data":{}}`, p.String())
}
