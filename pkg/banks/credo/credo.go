package credo

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/flaboy/aira-payments/pkg/banks"
	"github.com/flaboy/aira-payments/pkg/config"
	"github.com/flaboy/aira-payments/pkg/models"
	"github.com/flaboy/aira-payments/pkg/types"
	"github.com/flaboy/pin"
	"github.com/shopspring/decimal"
)

// Channel Credo 分期。widget 接口用 md5 校验串鉴权，
// 跳转地址藏在响应的 refresh 头里。没有回调，靠轮询。
type Channel struct {
	cfg  *config.PaymentsConfig
	http *banks.HTTPClient
}

func init() {
	banks.Register(types.PaymentKindLoan, types.BankCredo, New)
}

func New(cfg *config.PaymentsConfig) (banks.Channel, error) {
	if !cfg.Credo.Enabled {
		return nil, nil
	}
	return &Channel{cfg: cfg, http: banks.NewHTTPClient()}, nil
}

func (c *Channel) Name() string                 { return "credo" }
func (c *Channel) UniqueByKey() string          { return "data" }
func (c *Channel) PANKey() string               { return "" }
func (c *Channel) TimeoutWindow() time.Duration { return time.Hour }

func gel(amount int64) string {
	return decimal.NewFromInt(amount).Div(decimal.NewFromInt(100)).StringFixed(2)
}

// check 商品行的值顺序拼接，末尾加私钥，md5 十六进制
func (c *Channel) check(parts ...string) string {
	sum := md5.Sum([]byte(strings.Join(parts, "") + c.cfg.Credo.SecretKey))
	return hex.EncodeToString(sum[:])
}

var statusMapper = map[int]types.Outcome{
	6:  types.OutcomeFailed,
	7:  types.OutcomeFailed,
	5:  types.OutcomeSuccess,
	12: types.OutcomeSuccess,
}

func normalize(statusID int) types.Outcome {
	if outcome, ok := statusMapper[statusID]; ok {
		return outcome
	}
	return types.OutcomePending
}

func (c *Channel) StartPayment(ctx context.Context, t *models.Transaction) (*banks.InitiateResult, error) {
	orderCode := fmt.Sprintf("%d", t.ID)
	amount := gel(t.Amount)
	product := map[string]interface{}{
		"id":       orderCode,
		"title":    fmt.Sprintf("Transaction | %d", t.ID),
		"amount":   amount,
		"quantity": 1,
	}
	body := map[string]interface{}{
		"merchantId": c.cfg.Credo.MerchantID,
		"orderCode":  orderCode,
		"amount":     amount,
		"products":   []map[string]interface{}{product},
		"check":      c.check(c.cfg.Credo.MerchantID, orderCode, amount),
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	form := url.Values{}
	form.Set("credoinstallment", string(raw))

	resp, err := c.http.Do(ctx, &banks.Request{
		Method: "POST",
		URL:    c.cfg.Credo.BaseURL + "/widget/index",
		Form:   form,
	})
	if err != nil {
		return nil, fmt.Errorf("credo widget failed: %w", err)
	}

	redirect := refreshTarget(resp.Header("Refresh"))
	return &banks.InitiateResult{
		Accepted:    redirect != "",
		Trx:         orderCode,
		RedirectURL: redirect,
	}, nil
}

// refreshTarget refresh 头形如 "0; url=https://..."，等号后面是跳转地址
func refreshTarget(header string) string {
	_, target, found := strings.Cut(header, "=")
	if !found {
		return ""
	}
	return strings.TrimSpace(target)
}

// CheckStatus 申请还没进入银行系统时状态接口返回 404。
// 一小时内视作仍在录入，超过一小时按超时了结。
func (c *Channel) CheckStatus(ctx context.Context, t *models.Transaction) (banks.Payload, types.Outcome, error) {
	query := url.Values{}
	query.Set("merchantId", c.cfg.Credo.MerchantID)
	query.Set("orderCode", t.Trx)
	query.Set("check", c.check(c.cfg.Credo.MerchantID, t.Trx))

	resp, err := c.http.Do(ctx, &banks.Request{
		Method: "GET",
		URL:    c.cfg.Credo.BaseURL + "/widget/checkstatus?" + query.Encode(),
	})
	if err != nil {
		return nil, types.OutcomePending, fmt.Errorf("credo status failed: %w", err)
	}
	if resp.StatusCode == 404 {
		if time.Since(t.UpdatedAt) > c.TimeoutWindow() {
			return nil, types.OutcomeTimeout, nil
		}
		return nil, types.OutcomePending, nil
	}
	if resp.StatusCode != 200 {
		return nil, types.OutcomePending, fmt.Errorf("credo status endpoint returned %d", resp.StatusCode)
	}
	data, err := resp.JSON()
	if err != nil {
		return nil, types.OutcomePending, err
	}
	return data, normalize(data.GetInt("data")), nil
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

// Credo 不推送回调
func (c *Channel) HandleRequest(pc *pin.Context, path string) error {
	pc.JSON(404, map[string]string{"error": "Not found"})
	return nil
}
