package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeadLifecycleForwardChain(t *testing.T) {
	allowed := [][2]LeadStatus{
		{LeadPending, LeadValidating},
		{LeadPending, LeadDuplicate},
		{LeadValidating, LeadApproved},
		{LeadValidating, LeadRejected},
		{LeadValidating, LeadDuplicate},
		{LeadApproved, LeadQualified},
	}
	for _, tr := range allowed {
		assert.True(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}

	denied := [][2]LeadStatus{
		{LeadValidating, LeadPending},
		{LeadApproved, LeadValidating},
		{LeadPending, LeadApproved},
		{LeadPending, LeadQualified},
		{LeadQualified, LeadApproved},
		{LeadRejected, LeadValidating},
		{LeadDuplicate, LeadPending},
		{LeadApproved, LeadApproved},
	}
	for _, tr := range denied {
		assert.False(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}
}

func TestLeadTerminalStatuses(t *testing.T) {
	assert.True(t, LeadRejected.Terminal())
	assert.True(t, LeadDuplicate.Terminal())
	assert.True(t, LeadQualified.Terminal())
	assert.False(t, LeadPending.Terminal())
	assert.False(t, LeadValidating.Terminal())
	assert.False(t, LeadApproved.Terminal())
}

func TestCheckTransitionError(t *testing.T) {
	err := CheckTransition("lead-1", LeadRejected, LeadApproved)
	require.Error(t, err)

	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, LeadRejected, te.From)
	assert.Contains(t, err.Error(), "terminal")

	assert.NoError(t, CheckTransition("lead-1", LeadPending, LeadValidating))
}

func TestParseEnums(t *testing.T) {
	_, err := ParseLeadStatus("archived")
	var ee *EnumError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "lead status", ee.Type)

	s, err := ParseLeadStatus("qualified")
	require.NoError(t, err)
	assert.Equal(t, LeadQualified, s)

	_, err = ParseTemperature("hot")
	assert.Error(t, err, "temperature is case sensitive")
	_, err = ParseDealStatus("stalled")
	assert.Error(t, err)
	_, err = ParseQuoteStatus("sent")
	assert.NoError(t, err)
	_, err = ParseProposalStatus("signed")
	assert.NoError(t, err)
	_, err = ParseCategory("marketing")
	assert.Error(t, err)
	_, err = ParseSignalPriority("critical")
	assert.NoError(t, err)
}

func TestCanvasRoleAllows(t *testing.T) {
	assert.True(t, RoleOwner.Allows(RoleEditor))
	assert.True(t, RoleEditor.Allows(RoleCommenter))
	assert.True(t, RoleCommenter.Allows(RoleCommenter))
	assert.False(t, RoleViewer.Allows(RoleCommenter))
	assert.False(t, CanvasRole("admin").Allows(RoleViewer))
}
