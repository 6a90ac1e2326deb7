package ufc

import (
	"testing"

	"github.com/flaboy/aira-payments/pkg/models"
	"github.com/flaboy/aira-payments/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := map[string]types.Outcome{
		"OK":           types.OutcomeSuccess,
		"CREATED":      types.OutcomePending,
		"PENDING":      types.OutcomePending,
		"REVERSED":     types.OutcomePending,
		"AUTOREVERSED": types.OutcomePending,
		"FAILED":       types.OutcomeFailed,
		"DECLINED":     types.OutcomeFailed,
		"TIMEOUT":      types.OutcomeTimeout,
		"GARBAGE":      types.OutcomePending,
		"":             types.OutcomePending,
	}
	for raw, want := range cases {
		assert.Equal(t, want, normalize(raw), "result %q", raw)
	}
}

func TestParseResponse(t *testing.T) {
	body := []byte("TRANSACTION_ID: abc+def=\nRESULT: OK\nRESULT_CODE: 000\nRRN:  123456 \nbroken line")
	p := parseResponse(body)

	assert.Equal(t, "abc+def=", p.GetString("TRANSACTION_ID"))
	assert.Equal(t, "OK", p.GetString("RESULT"))
	assert.Equal(t, "000", p.GetString("RESULT_CODE"))
	assert.Equal(t, "123456", p.GetString("RRN"))
	assert.False(t, p.Has("broken line"))
}

func TestBillerClientID(t *testing.T) {
	a := billerClientID(42)
	b := billerClientID(42)
	assert.Greater(t, len(a), 20)
	// 随机前缀不同，交易ID编码部分相同
	assert.NotEqual(t, a, b)
	assert.Equal(t, a[20:], b[20:])
}

func TestCardFromPayload(t *testing.T) {
	c := &Channel{}
	card := c.CardFromPayload(map[string]interface{}{
		"CARD_NUMBER":      "4***1234",
		"RECC_PMNT_ID":     "abcdef123",
		"RECC_PMNT_EXPIRY": "1226",
	})
	require.NotNil(t, card)
	assert.Equal(t, "4***1234", card.Number)
	assert.Equal(t, "abcdef", card.RecID)
	assert.Equal(t, "1226", card.ExpiryDate)
	assert.Equal(t, types.CardTypeVisa, card.CardType)
	assert.Equal(t, types.BankUFC, card.BankType)

	// 没有循环扣款ID的报文不存卡
	assert.Nil(t, c.CardFromPayload(map[string]interface{}{"CARD_NUMBER": "4***1234"}))
	assert.Nil(t, c.CardFromPayload(map[string]interface{}{"RECC_PMNT_ID": "abcdef123"}))
}

func TestFailedText(t *testing.T) {
	c := &Channel{}
	trx := &models.Transaction{DataLog: []map[string]interface{}{
		{"RESULT": "PENDING"},
		{"RESULT": "FAILED", "RESULT_CODE": "116"},
	}}
	assert.Equal(t, "Result Code: 116 / Contact To Bank", c.FailedText(trx))

	// 3DS 校验失败时没有 RESULT_CODE
	trx = &models.Transaction{DataLog: []map[string]interface{}{
		{"RESULT": "DECLINED", "3DSECURE": "FAILED"},
	}}
	assert.Equal(t, "Result Code: 3D / Contact To Bank", c.FailedText(trx))

	assert.Equal(t, "Unknown", c.FailedText(&models.Transaction{}))
}
