package bog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/flaboy/aira-payments/pkg/banks"
	"github.com/flaboy/aira-payments/pkg/config"
	"github.com/flaboy/aira-payments/pkg/models"
	"github.com/flaboy/aira-payments/pkg/types"
	"github.com/shopspring/decimal"
)

// client BOG 开放平台的公共部分：OAuth 取 token、带鉴权的请求。
// token 会话只活在单次调用里，不跨渠道实例共享。
type client struct {
	cfg  *config.PaymentsConfig
	http *banks.HTTPClient
}

func init() {
	banks.Register(types.PaymentKindCard, types.BankBOG, NewCard)
	banks.Register(types.PaymentKindLoan, types.BankBOG, NewInstallment)
}

func (b *client) session() *banks.OAuthSession {
	return &banks.OAuthSession{
		HTTP:      b.http,
		TokenURL:  b.cfg.BOG.BaseURL + "/oauth2/token",
		ClientID:  b.cfg.BOG.ClientID,
		SecretKey: b.cfg.BOG.SecretKey,
	}
}

// request JSON 进出的鉴权请求。body 为 nil 时不带请求体。
func (b *client) request(ctx context.Context, sess *banks.OAuthSession, method, url string, body interface{}) (banks.Payload, int, error) {
	token, err := sess.Token(ctx)
	if err != nil {
		return nil, 0, err
	}
	req := &banks.Request{
		Method:  method,
		URL:     url,
		Headers: map[string]string{"Authorization": banks.BearerAuth(token)},
	}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, 0, err
		}
		req.Body = raw
	}
	resp, err := b.http.Do(ctx, req)
	if err != nil {
		return nil, 0, fmt.Errorf("bog request failed: %w", err)
	}
	if resp.StatusCode != 200 {
		return nil, resp.StatusCode, nil
	}
	data, err := resp.JSON()
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return data, resp.StatusCode, nil
}

// form 表单接口（退款），只关心 HTTP 状态码
func (b *client) form(ctx context.Context, sess *banks.OAuthSession, rawurl string, values url.Values) (int, error) {
	token, err := sess.Token(ctx)
	if err != nil {
		return 0, err
	}
	resp, err := b.http.Do(ctx, &banks.Request{
		Method:  "POST",
		URL:     rawurl,
		Form:    values,
		Headers: map[string]string{"Authorization": banks.BearerAuth(token)},
	})
	if err != nil {
		return 0, fmt.Errorf("bog request failed: %w", err)
	}
	return resp.StatusCode, nil
}

func gel(amount int64) string {
	return decimal.NewFromInt(amount).Div(decimal.NewFromInt(100)).StringFixed(2)
}

var statusMapper = map[string]types.Outcome{
	"error":       types.OutcomeFailed,
	"success":     types.OutcomeSuccess,
	"in_progress": types.OutcomePending,
}

// normalize 明确给出的未知状态按失败处理（报文形状对了但值不认识），
// 再由超时窗口把长期未决的失败改判为超时
func normalize(status string, createdAt time.Time, window time.Duration) types.Outcome {
	outcome, ok := statusMapper[status]
	if !ok {
		outcome = types.OutcomeFailed
	}
	return banks.ApplyTimeout(outcome, createdAt, window)
}

// CardChannel BOG iPay 卡支付
type CardChannel struct {
	client
}

func NewCard(cfg *config.PaymentsConfig) (banks.Channel, error) {
	if !cfg.BOG.Enabled {
		return nil, nil
	}
	return &CardChannel{client{cfg: cfg, http: banks.NewHTTPClient()}}, nil
}

func (c *CardChannel) Name() string                 { return "bog" }
func (c *CardChannel) UniqueByKey() string          { return "status" }
func (c *CardChannel) PANKey() string               { return "pan" }
func (c *CardChannel) TimeoutWindow() time.Duration { return 15 * time.Minute }

func (c *CardChannel) StartPayment(ctx context.Context, t *models.Transaction) (*banks.InitiateResult, error) {
	if t.Card != nil {
		return c.payWithSavedCard(ctx, t)
	}
	return c.payWithNewCard(ctx, t)
}

func (c *CardChannel) payWithNewCard(ctx context.Context, t *models.Transaction) (*banks.InitiateResult, error) {
	sess := c.session()
	body := map[string]interface{}{
		"shop_order_id":                  t.ID,
		"intent":                         c.cfg.BOG.Intent,
		"locale":                         "ka",
		"redirect_url":                   fmt.Sprintf("%s/ka/success/?trans_id=%d", c.cfg.HostURL, t.ID),
		"show_shop_order_id_on_extract":  true,
		"capture_method":                 c.cfg.BOG.CaptureMethod,
		"purchase_units": []map[string]interface{}{
			{"amount": map[string]string{"currency_code": "GEL", "value": gel(t.Amount)}},
		},
	}
	data, status, err := c.request(ctx, sess, "POST", c.cfg.BOG.BaseURL+"/checkout/orders", body)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("bog order endpoint returned %d", status)
	}
	accepted := data.GetString("status") == "CREATED"
	result := &banks.InitiateResult{
		Accepted: accepted,
		Trx:      data.GetString("order_id"),
		PayID:    data.GetString("payment_hash"),
	}
	if accepted {
		result.RedirectURL = approvalLink(data)
	}
	return result, nil
}

// approvalLink 下单响应里第二个 link 是用户跳转地址
func approvalLink(data banks.Payload) string {
	links, ok := data["links"].([]interface{})
	if !ok || len(links) < 2 {
		return ""
	}
	link, ok := links[1].(map[string]interface{})
	if !ok {
		return ""
	}
	return banks.Payload(link).GetString("href")
}

func (c *CardChannel) payWithSavedCard(ctx context.Context, t *models.Transaction) (*banks.InitiateResult, error) {
	sess := c.session()
	body := map[string]interface{}{
		"order_id": t.ID,
		"amount": map[string]string{
			"currency_code": "GEL",
			"value":         gel(t.Amount),
		},
		"shop_order_id":        t.ID,
		"purchase_description": fmt.Sprintf("Transaction | %d", t.ID),
	}
	data, status, err := c.request(ctx, sess, "POST", c.cfg.BOG.BaseURL+"/checkout/payment/subscription", body)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("bog subscription endpoint returned %d", status)
	}
	s := data.GetString("status")
	accepted := s == "in_progress" || s == "success"
	trx := data.GetString("order_id")
	result := &banks.InitiateResult{
		Accepted: accepted,
		Trx:      trx,
		PayID:    data.GetString("payment_hash"),
	}
	if accepted {
		result.RedirectURL = fmt.Sprintf("%s/ka/success/?trans_id=%s", c.cfg.HostURL, url.QueryEscape(trx))
	} else {
		result.RedirectURL = fmt.Sprintf("%s/ka/fail/", c.cfg.HostURL)
	}
	return result, nil
}

func (c *CardChannel) CheckStatus(ctx context.Context, t *models.Transaction) (banks.Payload, types.Outcome, error) {
	sess := c.session()
	data, status, err := c.request(ctx, sess, "GET", c.cfg.BOG.BaseURL+"/checkout/payment/"+url.PathEscape(t.Trx), nil)
	if err != nil {
		return nil, types.OutcomePending, err
	}
	if data == nil {
		return nil, types.OutcomePending, fmt.Errorf("bog status endpoint returned %d", status)
	}
	return data, normalize(data.GetString("status"), t.CreatedAt, c.TimeoutWindow()), nil
}

// Refund 表单接口，只有 HTTP 状态码可依据，成功时合成一条可追溯的报文
func (c *CardChannel) Refund(ctx context.Context, t *models.Transaction, amount int64) (*banks.RefundResult, error) {
	sess := c.session()
	form := url.Values{}
	form.Set("order_id", t.Trx)
	form.Set("amount", gel(amount))
	status, err := c.form(ctx, sess, c.cfg.BOG.BaseURL+"/checkout/refund", form)
	if err != nil {
		return nil, err
	}
	data := banks.Payload{"HTTP_STATUS_CODE": status}
	if status == 200 {
		data["status"] = "refunded"
		data["DATE_TIME"] = time.Now().Format(time.RFC3339)
	}
	return &banks.RefundResult{Succeeded: status == 200, Data: data}, nil
}

func (c *CardChannel) Cancel(ctx context.Context, t *models.Transaction, amount int64) (*banks.RefundResult, error) {
	return c.Refund(ctx, t, amount)
}

// CardFromPayload GC_CARD 联合收单的成功回调可以存卡，order_id 充当循环扣款ID
func (c *CardChannel) CardFromPayload(p banks.Payload) *models.Card {
	if p.GetString("payment_method") != "GC_CARD" {
		return nil
	}
	pan := p.GetString("pan")
	if pan == "" {
		return nil
	}
	return &models.Card{
		Number:   pan,
		RecID:    p.GetString("order_id"),
		CardType: types.CardTypeFromPAN(pan),
		BankType: types.BankBOG,
	}
}
