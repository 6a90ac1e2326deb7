package gc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flaboy/aira-payments/pkg/banks"
	"github.com/flaboy/aira-payments/pkg/config"
	"github.com/flaboy/aira-payments/pkg/models"
	"github.com/flaboy/aira-payments/pkg/types"
	"github.com/spf13/cast"
)

// Channel Georgian Card 收单（Apple Pay 入口）。下单拿到支付会话后，
// 银行通过 check/register 两步 XML 回调确认交易，轮询接口只作兜底。
type Channel struct {
	cfg  *config.PaymentsConfig
	http *banks.HTTPClient
}

func init() {
	banks.Register(types.PaymentKindApplePay, types.BankGC, New)
}

func New(cfg *config.PaymentsConfig) (banks.Channel, error) {
	if !cfg.GC.Enabled {
		return nil, nil
	}
	return &Channel{cfg: cfg, http: banks.NewHTTPClient()}, nil
}

func (c *Channel) Name() string                 { return "gc" }
func (c *Channel) UniqueByKey() string          { return "state" }
func (c *Channel) PANKey() string               { return "p.maskedPan" }
func (c *Channel) TimeoutWindow() time.Duration { return 20 * time.Minute }

// session 运营接口的会话凭证，单次调用内复用
func (c *Channel) session(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{
		"username": c.cfg.GC.Username,
		"password": c.cfg.GC.Password,
	})
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(ctx, &banks.Request{
		Method: "POST",
		URL:    c.cfg.GC.BaseURL + "/session",
		Body:   body,
	})
	if err != nil {
		return "", fmt.Errorf("gc session failed: %w", err)
	}
	if resp.StatusCode != 200 {
		return "", fmt.Errorf("gc session endpoint returned %d", resp.StatusCode)
	}
	data, err := resp.JSON()
	if err != nil {
		return "", err
	}
	sid := data.GetString("sessionId")
	if sid == "" {
		return "", fmt.Errorf("gc session endpoint returned no sessionId")
	}
	return sid, nil
}

func (c *Channel) StartPayment(ctx context.Context, t *models.Transaction) (*banks.InitiateResult, error) {
	sid, err := c.session(ctx)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(map[string]interface{}{
		"portalId":   c.cfg.GC.PortalID,
		"accountId":  c.cfg.GC.AccountID,
		"merchantId": c.cfg.GC.MerchantID,
		"orderId":    t.HashID(),
		"amount":     t.Amount,
		"currency":   "GEL",
	})
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(ctx, &banks.Request{
		Method:  "POST",
		URL:     c.cfg.GC.BaseURL + "/payment",
		Body:    body,
		Headers: map[string]string{"X-IV-Authorization": sid},
	})
	if err != nil {
		return nil, fmt.Errorf("gc payment create failed: %w", err)
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("gc payment endpoint returned %d", resp.StatusCode)
	}
	data, err := resp.JSON()
	if err != nil {
		return nil, err
	}
	payID := data.GetString("id")
	return &banks.InitiateResult{
		Accepted:    payID != "",
		PayID:       payID,
		RedirectURL: data.GetString("redirectUrl"),
	}, nil
}

// CheckStatus state 到了 result 才有结论。银行把已否决的交易也标为
// result/FAILED 后继续允许重试支付，所以 FAILED 仍按进行中处理，
// 最终结论由 register 回调或超时窗口给出。
func (c *Channel) CheckStatus(ctx context.Context, t *models.Transaction) (banks.Payload, types.Outcome, error) {
	sid, err := c.session(ctx)
	if err != nil {
		return nil, types.OutcomePending, err
	}
	resp, err := c.http.Do(ctx, &banks.Request{
		Method:  "POST",
		URL:     c.cfg.GC.BaseURL + "/payment/" + t.PayID,
		Headers: map[string]string{"X-IV-Authorization": sid},
	})
	if err != nil {
		return nil, types.OutcomePending, fmt.Errorf("gc status failed: %w", err)
	}
	if resp.StatusCode != 200 {
		return nil, types.OutcomePending, fmt.Errorf("gc status endpoint returned %d", resp.StatusCode)
	}
	data, err := resp.JSON()
	if err != nil {
		return nil, types.OutcomePending, err
	}

	outcome := types.OutcomePending
	if data.GetString("state") == "result" {
		result := cast.ToStringMap(data["result"])
		if cast.ToString(result["status"]) != "FAILED" {
			outcome = types.OutcomeSuccess
		}
	}
	return data, banks.ApplyTimeout(outcome, t.CreatedAt, c.TimeoutWindow()), nil
}

func (c *Channel) Refund(ctx context.Context, t *models.Transaction, amount int64) (*banks.RefundResult, error) {
	sid, err := c.session(ctx)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(map[string]interface{}{
		"amount": amount,
	})
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(ctx, &banks.Request{
		Method:  "POST",
		URL:     c.cfg.GC.BaseURL + "/payment/" + t.PayID + "/refund",
		Body:    body,
		Headers: map[string]string{"X-IV-Authorization": sid},
	})
	if err != nil {
		return nil, fmt.Errorf("gc refund failed: %w", err)
	}
	data := banks.Payload{
		"HTTP_STATUS_CODE": resp.StatusCode,
		"time":             time.Now().Format(time.RFC3339),
	}
	if len(resp.Body) > 0 {
		if extra, err := resp.JSON(); err == nil {
			for k, v := range extra {
				data[k] = v
			}
		}
	}
	return &banks.RefundResult{Succeeded: resp.StatusCode == 200, Data: data}, nil
}

func (c *Channel) Cancel(ctx context.Context, t *models.Transaction, amount int64) (*banks.RefundResult, error) {
	return c.Refund(ctx, t, amount)
}

// AcceptApplePay 把前端拿到的 Apple Pay 凭证转交银行完成扣款
func (c *Channel) AcceptApplePay(ctx context.Context, t *models.Transaction) error {
	appleData := t.AdditionalData["apple_data"]
	if appleData == nil {
		return fmt.Errorf("transaction %d has no apple pay token", t.ID)
	}
	sid, err := c.session(ctx)
	if err != nil {
		return err
	}
	body, err := json.Marshal(map[string]interface{}{
		"paymentData": appleData,
	})
	if err != nil {
		return err
	}
	resp, err := c.http.Do(ctx, &banks.Request{
		Method:  "POST",
		URL:     c.cfg.GC.BaseURL + "/payment/" + t.PayID + "/applepay/accept",
		Body:    body,
		Headers: map[string]string{"X-IV-Authorization": sid},
	})
	if err != nil {
		return fmt.Errorf("gc apple pay accept failed: %w", err)
	}
	if resp.StatusCode != 200 {
		return fmt.Errorf("gc apple pay accept returned %d", resp.StatusCode)
	}
	return nil
}

// CardFromPayload register 报文里完整认证且登记为循环卡的才能存
func (c *Channel) CardFromPayload(p banks.Payload) *models.Card {
	if p.GetString("p.isFullyAuthenticated") != "Y" ||
		p.GetString("card.registered") != "Y" ||
		p.GetString("card.recurrent") != "Y" {
		return nil
	}
	pan := p.GetString("p.maskedPan")
	recID := p.GetString("card.id")
	if pan == "" || recID == "" {
		return nil
	}
	return &models.Card{
		Number:     pan,
		RecID:      recID,
		ExpiryDate: p.GetString("card.expiry"),
		CardType:   types.CardTypeFromPAN(pan),
		BankType:   types.BankGC,
	}
}

var _ banks.CardSource = (*Channel)(nil)
