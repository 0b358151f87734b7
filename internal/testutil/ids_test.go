package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialIDs(t *testing.T) {
	ids := NewSequentialIDs("lead")
	assert.Equal(t, "lead-0001", ids.Next())
	assert.Equal(t, "lead-0002", ids.Generate())

	ids.Reset()
	assert.Equal(t, "lead-0001", ids.Next())

	assert.Equal(t, "id-0001", NewSequentialIDs("").Next())
}
