package gc

import (
	"context"
	"encoding/xml"
	"log/slog"
	"strconv"
	"time"

	"github.com/flaboy/aira-payments/pkg/banks"
	"github.com/flaboy/aira-payments/pkg/database"
	"github.com/flaboy/aira-payments/pkg/models"
	"github.com/flaboy/aira-payments/pkg/reconcile"
	"github.com/flaboy/aira-payments/pkg/types"
	"github.com/flaboy/pin"
)

// check/register 回调报文的字段名由银行协议固定
var callbackKeys = []string{
	"trx_id", "merch_id", "o.order_id", "ts", "result_code", "amount",
	"p.maskedPan", "p.rrn", "p.isFullyAuthenticated", "p.authcode",
	"card.id", "card.registered", "card.recurrent", "card.expiry",
	"BIN_HASH",
}

type resultNode struct {
	Code int    `xml:"code"`
	Desc string `xml:"desc"`
}

type accountAmount struct {
	ID       string `xml:"id"`
	Amount   int64  `xml:"amount"`
	Currency string `xml:"currency"`
	Exponent int    `xml:"exponent"`
}

type purchaseNode struct {
	ShortDesc     string        `xml:"shortDesc"`
	AccountAmount accountAmount `xml:"account-amount"`
}

type paymentAvailResponse struct {
	XMLName     xml.Name      `xml:"payment-avail-response"`
	Result      resultNode    `xml:"result"`
	MerchantTrx string        `xml:"merchant-trx,omitempty"`
	Purchase    *purchaseNode `xml:"purchase,omitempty"`
}

type registerPaymentResponse struct {
	XMLName xml.Name   `xml:"register-payment-response"`
	Result  resultNode `xml:"result"`
}

func (c *Channel) HandleRequest(pc *pin.Context, path string) error {
	switch path {
	case "check":
		return c.handleCheck(pc)
	case "register":
		return c.handleRegister(pc)
	case "applepay/accept":
		return c.handleApplePayAccept(pc)
	default:
		pc.JSON(404, map[string]string{"error": "Not found"})
		return nil
	}
}

func (c *Channel) authorized(pc *pin.Context) bool {
	return pc.GetHeader("Authorization") == banks.BasicAuth(c.cfg.GC.Username, c.cfg.GC.Password)
}

func (c *Channel) queryPayload(pc *pin.Context) banks.Payload {
	data := banks.Payload{}
	for _, key := range callbackKeys {
		if v := pc.Query(key); v != "" {
			data[key] = v
		}
	}
	return data
}

func renderXML(pc *pin.Context, body interface{}) error {
	out, err := xml.Marshal(body)
	if err != nil {
		return err
	}
	pc.Data(200, "application/xml", append([]byte(xml.Header), out...))
	return nil
}

// handleCheck 银行支付前询问订单是否可收款。通过校验后银行侧的
// trx_id 成为我们的主引用，询问报文留痕。
func (c *Channel) handleCheck(pc *pin.Context) error {
	if !c.authorized(pc) {
		return renderXML(pc, paymentAvailResponse{Result: resultNode{Code: 2, Desc: "Unauthorized"}})
	}
	params := c.queryPayload(pc)
	if params.GetString("merch_id") != c.cfg.GC.MerchantID {
		return renderXML(pc, paymentAvailResponse{Result: resultNode{Code: 2, Desc: "Unknown merchant"}})
	}

	id, err := models.DecodeTransactionHashID(params.GetString("o.order_id"))
	if err != nil {
		return renderXML(pc, paymentAvailResponse{Result: resultNode{Code: 2, Desc: "Order not found"}})
	}
	db := database.Database()
	var t models.Transaction
	if err := db.Preload("PaymentMethod").First(&t, id).Error; err != nil {
		return renderXML(pc, paymentAvailResponse{Result: resultNode{Code: 2, Desc: "Order not found"}})
	}
	if t.Status != types.StatusPending {
		return renderXML(pc, paymentAvailResponse{Result: resultNode{Code: 2, Desc: "Order is not payable"}})
	}

	trxID := params.GetString("trx_id")
	if err := db.Model(&t).Update("trx", trxID).Error; err != nil {
		slog.Error("gc check persist failed", "transaction", t.ID, "err", err)
		return renderXML(pc, paymentAvailResponse{Result: resultNode{Code: 2, Desc: "Temporary failure"}})
	}

	engine := reconcile.NewEngine(db)
	err = engine.Reconcile(context.Background(), c, t.ID, &reconcile.ExternalStatus{
		Data:    banks.Payload{"Check Data": map[string]interface{}(params)},
		Outcome: types.OutcomePending,
	})
	if err != nil {
		slog.Error("gc check log failed", "transaction", t.ID, "err", err)
	}

	slog.Info("gc check accepted", "transaction", t.ID, "trx", trxID)
	return renderXML(pc, paymentAvailResponse{
		Result:      resultNode{Code: 1, Desc: "OK"},
		MerchantTrx: t.HashID(),
		Purchase: &purchaseNode{
			ShortDesc: "Transaction " + strconv.FormatUint(uint64(t.ID), 10),
			AccountAmount: accountAmount{
				ID:       c.cfg.GC.AccountID,
				Amount:   t.Amount,
				Currency: "981",
				Exponent: 2,
			},
		},
	})
}

// handleRegister 银行登记扣款结果。result_code 1 成功，其余失败，
// 迟到的失败按超时了结。
func (c *Channel) handleRegister(pc *pin.Context) error {
	if !c.authorized(pc) {
		return renderXML(pc, registerPaymentResponse{Result: resultNode{Code: 2, Desc: "Unauthorized"}})
	}
	params := c.queryPayload(pc)

	db := database.Database()
	t := reconcile.FindByTrx(db, params.GetString("trx_id"))
	if t == nil {
		return renderXML(pc, registerPaymentResponse{Result: resultNode{Code: 2, Desc: "Order not found"}})
	}

	outcome := types.OutcomeFailed
	if params.GetString("result_code") == "1" {
		outcome = types.OutcomeSuccess
	}
	outcome = banks.ApplyTimeout(outcome, t.CreatedAt, c.TimeoutWindow())

	engine := reconcile.NewEngine(db)
	err := engine.Reconcile(context.Background(), c, t.ID, &reconcile.ExternalStatus{
		Data:    params,
		Outcome: outcome,
	})
	if err != nil {
		slog.Error("gc register sync failed", "transaction", t.ID, "err", err)
		return renderXML(pc, registerPaymentResponse{Result: resultNode{Code: 2, Desc: "Temporary failure"}})
	}
	return renderXML(pc, registerPaymentResponse{Result: resultNode{Code: 1, Desc: "OK"}})
}

// handleApplePayAccept 前端拿到 Apple Pay 凭证后回传，
// 转交银行扣款并立即对一次账。
func (c *Channel) handleApplePayAccept(pc *pin.Context) error {
	var req struct {
		TransID   string                 `json:"trans_id"`
		AppleData map[string]interface{} `json:"apple_data"`
	}
	if err := pc.BindJSON(&req); err != nil {
		pc.JSON(400, map[string]string{"message": "invalid payload"})
		return nil
	}
	id, err := models.DecodeTransactionHashID(req.TransID)
	if err != nil {
		pc.JSON(404, map[string]string{"message": "not found"})
		return nil
	}
	db := database.Database()
	var t models.Transaction
	if err := db.Preload("PaymentMethod").First(&t, id).Error; err != nil {
		pc.JSON(404, map[string]string{"message": "not found"})
		return nil
	}

	if t.AdditionalData == nil {
		t.AdditionalData = map[string]interface{}{}
	}
	t.AdditionalData["apple_data"] = req.AppleData
	if err := db.Model(&t).Update("additional_data", t.AdditionalData).Error; err != nil {
		pc.JSON(500, map[string]string{"message": "retry later"})
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := c.AcceptApplePay(ctx, &t); err != nil {
		slog.Error("apple pay accept failed", "transaction", t.ID, "err", err)
		pc.JSON(502, map[string]string{"message": "provider rejected the payment token"})
		return nil
	}

	engine := reconcile.NewEngine(db)
	if err := engine.Reconcile(ctx, c, t.ID, nil); err != nil {
		slog.Error("apple pay sync failed", "transaction", t.ID, "err", err)
	}
	pc.JSON(200, map[string]string{"message": "ok"})
	return nil
}
