package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutcomeToStatus(t *testing.T) {
	assert.Equal(t, StatusSuccess, OutcomeSuccess.ToStatus(StatusPending))
	assert.Equal(t, StatusFailed, OutcomeFailed.ToStatus(StatusPending))
	assert.Equal(t, StatusTimeout, OutcomeTimeout.ToStatus(StatusPending))

	// PENDING 结论不改变现状
	assert.Equal(t, StatusPending, OutcomePending.ToStatus(StatusPending))
	assert.Equal(t, StatusSuccess, OutcomePending.ToStatus(StatusSuccess))
	assert.Equal(t, StatusError, OutcomePending.ToStatus(StatusError))
}

func TestStatusIsTerminal(t *testing.T) {
	assert.True(t, StatusSuccess.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.True(t, StatusTimeout.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusError.IsTerminal())
}

func TestCardTypeFromPAN(t *testing.T) {
	assert.Equal(t, CardTypeVisa, CardTypeFromPAN("4***1234"))
	assert.Equal(t, CardTypeMastercard, CardTypeFromPAN("5***1234"))
	assert.Equal(t, CardTypeAmericanExpress, CardTypeFromPAN("34***123"))
	assert.Equal(t, CardTypeAmericanExpress, CardTypeFromPAN("37***123"))
	assert.Equal(t, CardTypeUnknown, CardTypeFromPAN("9***1234"))
	assert.Equal(t, CardTypeUnknown, CardTypeFromPAN(""))
}
