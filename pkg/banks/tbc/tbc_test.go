package tbc

import (
	"testing"

	"github.com/flaboy/aira-payments/pkg/banks"
	"github.com/flaboy/aira-payments/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	for _, id := range []int{3, 4, 6, 7} {
		assert.Equal(t, types.OutcomeFailed, normalize(id), "statusId %d", id)
	}
	assert.Equal(t, types.OutcomeSuccess, normalize(8))

	// 其余状态码都还在审批流程里
	for _, id := range []int{0, 1, 2, 5, 9, 100} {
		assert.Equal(t, types.OutcomePending, normalize(id), "statusId %d", id)
	}
}

func TestTetri(t *testing.T) {
	p := banks.Payload{"amount": 100.0, "contributionAmount": 20.5, "asString": "13.37"}
	assert.Equal(t, int64(10000), tetri(p, "amount"))
	assert.Equal(t, int64(2050), tetri(p, "contributionAmount"))
	assert.Equal(t, int64(1337), tetri(p, "asString"))
	assert.Equal(t, int64(0), tetri(p, "missing"))
}

func TestGel(t *testing.T) {
	assert.Equal(t, 100.0, gel(10000))
	assert.Equal(t, 0.05, gel(5))
}
