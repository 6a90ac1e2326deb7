package bog

import (
	"context"
	"fmt"
	"time"

	"github.com/flaboy/aira-payments/pkg/banks"
	"github.com/flaboy/aira-payments/pkg/config"
	"github.com/flaboy/aira-payments/pkg/models"
	"github.com/flaboy/aira-payments/pkg/types"
	"github.com/spf13/cast"
)

// InstallmentChannel BOG 分期。下单走分期网关，鉴权和卡支付共用一套 OAuth。
// 分期无法自动退款，转人工处理。
type InstallmentChannel struct {
	client
}

func NewInstallment(cfg *config.PaymentsConfig) (banks.Channel, error) {
	if !cfg.BOG.Enabled {
		return nil, nil
	}
	return &InstallmentChannel{client{cfg: cfg, http: banks.NewHTTPClient()}}, nil
}

func (c *InstallmentChannel) Name() string                 { return "bog-installment" }
func (c *InstallmentChannel) UniqueByKey() string          { return "status" }
func (c *InstallmentChannel) PANKey() string               { return "" }
func (c *InstallmentChannel) TimeoutWindow() time.Duration { return 50 * time.Minute }

func (c *InstallmentChannel) StartPayment(ctx context.Context, t *models.Transaction) (*banks.InitiateResult, error) {
	options := cast.ToStringMap(t.AdditionalData["installment_options"])
	if len(options) == 0 && t.Kind == types.KindPay {
		return nil, fmt.Errorf("transaction %d has no installment options", t.ID)
	}

	sess := c.session()
	body := map[string]interface{}{
		"shop_order_id":        t.ID,
		"intent":               "LOAN",
		"installment_month":    cast.ToInt(options["month"]),
		"installment_type":     cast.ToString(options["discount_code"]),
		"success_redirect_url": fmt.Sprintf("%s/ka/success/?trans_id=%d", c.cfg.HostURL, t.ID),
		"fail_redirect_url":    fmt.Sprintf("%s/ka/fail/?trans_id=%d", c.cfg.HostURL, t.ID),
		"reject_redirect_url":  fmt.Sprintf("%s/ka/fail/?trans_id=%d", c.cfg.HostURL, t.ID),
		"validate_items":       false,
		"purchase_units": []map[string]interface{}{
			{"amount": map[string]string{"currency_code": "GEL", "value": gel(t.Amount)}},
		},
	}
	data, status, err := c.request(ctx, sess, "POST", c.cfg.BOG.InstallmentURL+"/installment/checkout", body)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("bog installment endpoint returned %d", status)
	}
	accepted := data.GetString("status") == "CREATED"
	result := &banks.InitiateResult{
		Accepted: accepted,
		Trx:      data.GetString("order_id"),
	}
	if accepted {
		result.RedirectURL = approvalLink(data)
	}
	return result, nil
}

func (c *InstallmentChannel) CheckStatus(ctx context.Context, t *models.Transaction) (banks.Payload, types.Outcome, error) {
	sess := c.session()
	data, status, err := c.request(ctx, sess, "GET", c.cfg.BOG.InstallmentURL+"/installment/checkout/"+t.Trx, nil)
	if err != nil {
		return nil, types.OutcomePending, err
	}
	if data == nil {
		return nil, types.OutcomePending, fmt.Errorf("bog installment status endpoint returned %d", status)
	}
	return data, normalize(data.GetString("status"), t.CreatedAt, c.TimeoutWindow()), nil
}

func (c *InstallmentChannel) Refund(ctx context.Context, t *models.Transaction, amount int64) (*banks.RefundResult, error) {
	return c.Cancel(ctx, t, amount)
}

func (c *InstallmentChannel) Cancel(ctx context.Context, t *models.Transaction, amount int64) (*banks.RefundResult, error) {
	return &banks.RefundResult{
		Succeeded:   false,
		Data:        banks.Payload{"message": "Created Manual Action"},
		NeedsAction: types.ManualActionRefundLoan,
	}, nil
}
