package gc

import (
	"encoding/xml"
	"testing"

	"github.com/flaboy/aira-payments/pkg/banks"
	"github.com/flaboy/aira-payments/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerPayload(overrides map[string]interface{}) banks.Payload {
	p := banks.Payload{
		"p.maskedPan":            "4***5678",
		"p.isFullyAuthenticated": "Y",
		"card.registered":        "Y",
		"card.recurrent":         "Y",
		"card.id":                "card-77",
		"card.expiry":            "1227",
	}
	for k, v := range overrides {
		p[k] = v
	}
	return p
}

func TestCardFromPayload(t *testing.T) {
	c := &Channel{}

	card := c.CardFromPayload(registerPayload(nil))
	require.NotNil(t, card)
	assert.Equal(t, "4***5678", card.Number)
	assert.Equal(t, "card-77", card.RecID)
	assert.Equal(t, "1227", card.ExpiryDate)
	assert.Equal(t, types.CardTypeVisa, card.CardType)
	assert.Equal(t, types.BankGC, card.BankType)

	// 三个标记有任何一个不是 Y 都不存卡
	for _, key := range []string{"p.isFullyAuthenticated", "card.registered", "card.recurrent"} {
		assert.Nil(t, c.CardFromPayload(registerPayload(map[string]interface{}{key: "N"})), key)
	}
	assert.Nil(t, c.CardFromPayload(registerPayload(map[string]interface{}{"card.id": ""})))
	assert.Nil(t, c.CardFromPayload(registerPayload(map[string]interface{}{"p.maskedPan": ""})))
}

func TestPaymentAvailResponseXML(t *testing.T) {
	out, err := xml.Marshal(paymentAvailResponse{
		Result:      resultNode{Code: 1, Desc: "OK"},
		MerchantTrx: "pm-abc123",
		Purchase: &purchaseNode{
			ShortDesc: "Transaction 7",
			AccountAmount: accountAmount{
				ID: "acc-1", Amount: 10000, Currency: "981", Exponent: 2,
			},
		},
	})
	require.NoError(t, err)
	s := string(out)
	assert.Contains(t, s, "<payment-avail-response>")
	assert.Contains(t, s, "<code>1</code>")
	assert.Contains(t, s, "<merchant-trx>pm-abc123</merchant-trx>")
	assert.Contains(t, s, "<account-amount>")
	assert.Contains(t, s, "<amount>10000</amount>")
}

func TestRegisterPaymentResponseXML(t *testing.T) {
	out, err := xml.Marshal(registerPaymentResponse{Result: resultNode{Code: 2, Desc: "Order not found"}})
	require.NoError(t, err)
	assert.Equal(t,
		"<register-payment-response><result><code>2</code><desc>Order not found</desc></result></register-payment-response>",
		string(out))
}
