package space

import (
	"testing"

	"github.com/flaboy/aira-payments/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, types.OutcomePending, normalize(1))
	assert.Equal(t, types.OutcomeSuccess, normalize(2))

	// 二值协议，其它值一律算失败
	for _, status := range []int{0, 3, 5, -1} {
		assert.Equal(t, types.OutcomeFailed, normalize(status), "status %d", status)
	}
}
