package space

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/flaboy/aira-payments/pkg/banks"
	"github.com/flaboy/aira-payments/pkg/config"
	"github.com/flaboy/aira-payments/pkg/database"
	"github.com/flaboy/aira-payments/pkg/models"
	"github.com/flaboy/aira-payments/pkg/reconcile"
	"github.com/flaboy/aira-payments/pkg/types"
	"github.com/flaboy/pin"
)

// Channel Space 钱包分期，二维码流程。
// 回调带共享密钥字段，校验失败只回通用错误。
type Channel struct {
	cfg  *config.PaymentsConfig
	http *banks.HTTPClient
}

func init() {
	banks.Register(types.PaymentKindLoan, types.BankSpace, New)
}

func New(cfg *config.PaymentsConfig) (banks.Channel, error) {
	if !cfg.Space.Enabled {
		return nil, nil
	}
	return &Channel{cfg: cfg, http: banks.NewHTTPClient()}, nil
}

func (c *Channel) Name() string                 { return "space" }
func (c *Channel) UniqueByKey() string          { return "Status" }
func (c *Channel) PANKey() string               { return "" }
func (c *Channel) TimeoutWindow() time.Duration { return time.Hour }

// normalize 二值状态：1 审核中，2 放款，其它一律算失败
func normalize(status int) types.Outcome {
	switch status {
	case 1:
		return types.OutcomePending
	case 2:
		return types.OutcomeSuccess
	}
	return types.OutcomeFailed
}

func (c *Channel) StartPayment(ctx context.Context, t *models.Transaction) (*banks.InitiateResult, error) {
	body := map[string]interface{}{
		"data": map[string]interface{}{
			"MerchantName": c.cfg.Space.MerchantName,
			"Secret":       c.cfg.Space.SecretKey,
			"Type":         1, // QR
			"returnUrl":    "",
			"OrderId":      t.ID,
			"TotalAmount":  t.Amount,
		},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(ctx, &banks.Request{
		Method: "POST",
		URL:    c.cfg.Space.BaseURL + "/v1/qr/create",
		Body:   raw,
	})
	if err != nil {
		return nil, fmt.Errorf("space qr create failed: %w", err)
	}
	if resp.StatusCode > 201 {
		return nil, fmt.Errorf("space qr create returned %d", resp.StatusCode)
	}
	outer, err := resp.JSON()
	if err != nil {
		return nil, err
	}
	details, ok := outer["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("space qr create returned no data")
	}
	p := banks.Payload(details)
	return &banks.InitiateResult{
		Accepted:    true,
		Trx:         p.GetString("orderId"),
		RedirectURL: p.GetString("redirectUrl"),
		Extra: map[string]interface{}{
			"qrCodeId":      p.GetString("qrCodeId"),
			"qrCodeViewUrl": p.GetString("qrCodeViewUrl"),
		},
	}, nil
}

// CheckStatus 报文的 status 换名为 Status 再入日志，和回调字段对齐
func (c *Channel) CheckStatus(ctx context.Context, t *models.Transaction) (banks.Payload, types.Outcome, error) {
	query := url.Values{}
	query.Set("merchantname", c.cfg.Space.MerchantName)
	query.Set("orderId", t.Trx)
	query.Set("secret", c.cfg.Space.SecretKey)

	resp, err := c.http.Do(ctx, &banks.Request{
		Method: "GET",
		URL:    c.cfg.Space.BaseURL + "/v1/loans/checkstatus?" + query.Encode(),
	})
	if err != nil {
		return nil, types.OutcomePending, fmt.Errorf("space status failed: %w", err)
	}
	if resp.StatusCode > 201 {
		return nil, types.OutcomePending, fmt.Errorf("space status endpoint returned %d", resp.StatusCode)
	}
	outer, err := resp.JSON()
	if err != nil {
		return nil, types.OutcomePending, err
	}
	details, ok := outer["data"].(map[string]interface{})
	if !ok {
		return nil, types.OutcomePending, fmt.Errorf("space status returned no data")
	}
	data := banks.Payload(details)
	status := data.GetInt("status")
	data["Status"] = status
	delete(data, "status")
	return data, normalize(status), nil
}

func (c *Channel) Refund(ctx context.Context, t *models.Transaction, amount int64) (*banks.RefundResult, error) {
	return c.Cancel(ctx, t, amount)
}

func (c *Channel) Cancel(ctx context.Context, t *models.Transaction, amount int64) (*banks.RefundResult, error) {
	return &banks.RefundResult{
		Succeeded:   false,
		Data:        banks.Payload{"message": "Created Manual Action"},
		NeedsAction: types.ManualActionRefundLoan,
	}, nil
}

func (c *Channel) HandleRequest(pc *pin.Context, path string) error {
	if path != "callback" {
		pc.JSON(404, map[string]string{"error": "Not found"})
		return nil
	}
	var data banks.Payload
	if err := pc.BindJSON(&data); err != nil {
		pc.JSON(200, map[string]string{"Status": "-1", "Description": "Invalid payload"})
		return nil
	}
	slog.Info("space callback received", "order", data.GetString("OrderId"))

	// 密钥不匹配时不说明是哪个字段错了
	if data.GetString("Secret") != c.cfg.Space.SecretKey ||
		data.GetString("OrderId") == "" || !data.Has("Status") {
		pc.JSON(200, map[string]string{"Status": "-1", "Description": "Validation failed"})
		return nil
	}

	t := reconcile.FindByTrx(database.Database(), data.GetString("OrderId"))
	if t == nil {
		pc.JSON(200, map[string]string{"Status": "-1", "Description": "Order not found"})
		return nil
	}

	var outcome types.Outcome
	switch data.GetString("Status") {
	case "2":
		outcome = types.OutcomeSuccess
	case "1":
		outcome = types.OutcomePending
	default:
		outcome = types.OutcomeFailed
	}
	delete(data, "Secret")

	engine := reconcile.NewEngine(database.Database())
	err := engine.Reconcile(context.Background(), c, t.ID, &reconcile.ExternalStatus{
		Data:    data,
		Outcome: outcome,
	})
	if err != nil {
		slog.Error("space callback sync failed", "transaction", t.ID, "err", err)
		pc.JSON(200, map[string]string{"Status": "-1", "Description": "Retry later"})
		return nil
	}
	pc.JSON(200, map[string]string{"Status": "0", "Description": "Success"})
	return nil
}
