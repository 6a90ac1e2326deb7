package banks

import (
	"testing"
	"time"

	"github.com/flaboy/aira-payments/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestApplyTimeout(t *testing.T) {
	window := 15 * time.Minute

	// 窗口内的失败就是失败
	created := time.Now().Add(-14 * time.Minute)
	assert.Equal(t, types.OutcomeFailed, ApplyTimeout(types.OutcomeFailed, created, window))

	// 超窗的失败按超时了结
	created = time.Now().Add(-16 * time.Minute)
	assert.Equal(t, types.OutcomeTimeout, ApplyTimeout(types.OutcomeFailed, created, window))

	// 非失败结论不受窗口影响
	assert.Equal(t, types.OutcomePending, ApplyTimeout(types.OutcomePending, created, window))
	assert.Equal(t, types.OutcomeSuccess, ApplyTimeout(types.OutcomeSuccess, created, window))
}

func TestPayloadAccessors(t *testing.T) {
	p := Payload{"amount": 100, "trx": "R1", "empty": ""}

	// 银行经常把数字当字符串发
	assert.Equal(t, "100", p.GetString("amount"))
	assert.Equal(t, 100, p.GetInt("amount"))
	assert.Equal(t, "R1", p.GetString("trx"))
	assert.Equal(t, "", p.GetString("missing"))

	assert.True(t, p.Has("empty"))
	assert.False(t, p.Has("missing"))
}
