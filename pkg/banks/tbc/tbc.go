package tbc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/flaboy/aira-payments/pkg/banks"
	"github.com/flaboy/aira-payments/pkg/config"
	"github.com/flaboy/aira-payments/pkg/database"
	"github.com/flaboy/aira-payments/pkg/models"
	"github.com/flaboy/aira-payments/pkg/reconcile"
	"github.com/flaboy/aira-payments/pkg/types"
	"github.com/flaboy/pin"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// Channel TBC 线上分期。申请后银行审批是异步的，结论既可能来自轮询，
// 也可能来自 status-changes 批量推送，两边都汇到对账引擎。
type Channel struct {
	cfg  *config.PaymentsConfig
	http *banks.HTTPClient
}

func init() {
	banks.Register(types.PaymentKindLoan, types.BankTBC, New)
}

func New(cfg *config.PaymentsConfig) (banks.Channel, error) {
	if !cfg.TBC.Enabled {
		return nil, nil
	}
	return &Channel{cfg: cfg, http: banks.NewHTTPClient()}, nil
}

func (c *Channel) Name() string                 { return "tbc" }
func (c *Channel) UniqueByKey() string          { return "statusId" }
func (c *Channel) PANKey() string               { return "" }
func (c *Channel) TimeoutWindow() time.Duration { return 50 * time.Minute }

func (c *Channel) session() *banks.OAuthSession {
	return &banks.OAuthSession{
		HTTP:      c.http,
		TokenURL:  c.cfg.TBC.BaseURL + "/oauth/token",
		ClientID:  c.cfg.TBC.ClientID,
		SecretKey: c.cfg.TBC.SecretKey,
		Scope:     "online_installments",
	}
}

// request 分期接口都是 JSON 体，GET 也带体（银行要求 merchantKey 随体传）
func (c *Channel) request(ctx context.Context, sess *banks.OAuthSession, method, url string, body interface{}) (*banks.Response, error) {
	token, err := sess.Token(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(ctx, &banks.Request{
		Method: method,
		URL:    url,
		Body:   raw,
		Headers: map[string]string{
			"Authorization": banks.BearerAuth(token),
			"Content-Type":  "application/json",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("tbc request failed: %w", err)
	}
	return resp, nil
}

func (c *Channel) applications() string {
	return c.cfg.TBC.BaseURL + "/v1/online-installments/applications"
}

func gel(amount int64) float64 {
	f, _ := decimal.NewFromInt(amount).Div(decimal.NewFromInt(100)).Float64()
	return f
}

func (c *Channel) StartPayment(ctx context.Context, t *models.Transaction) (*banks.InitiateResult, error) {
	campaignID := c.cfg.TBC.CampaignID
	if v := cast.ToString(t.AdditionalData["campaign_id"]); v != "" {
		campaignID = v
	}
	body := map[string]interface{}{
		"invoiceId":   t.ID,
		"priceTotal":  gel(t.Amount),
		"merchantKey": c.cfg.TBC.MerchantKey,
		"campaignId":  campaignID,
		"products": []map[string]interface{}{
			{"price": gel(t.Amount), "name": fmt.Sprintf("Transaction | %d", t.ID), "quantity": 1},
		},
	}
	resp, err := c.request(ctx, c.session(), "POST", c.applications(), body)
	if err != nil {
		return nil, err
	}
	data, err := resp.JSON()
	if err != nil {
		return nil, err
	}
	redirect := resp.Header("Location")
	return &banks.InitiateResult{
		Accepted:    redirect != "",
		Trx:         data.GetString("sessionId"),
		RedirectURL: redirect,
	}, nil
}

func (c *Channel) merchantBody() map[string]interface{} {
	return map[string]interface{}{"merchantKey": c.cfg.TBC.MerchantKey}
}

// normalize statusId 分桶：3/4/6/7 拒绝，8 放款成功，其余仍在审批
func normalize(statusID int) types.Outcome {
	switch statusID {
	case 3, 4, 6, 7:
		return types.OutcomeFailed
	case 8:
		return types.OutcomeSuccess
	}
	return types.OutcomePending
}

func (c *Channel) CheckStatus(ctx context.Context, t *models.Transaction) (banks.Payload, types.Outcome, error) {
	resp, err := c.request(ctx, c.session(), "GET",
		c.applications()+"/"+t.Trx+"/status", c.merchantBody())
	if err != nil {
		return nil, types.OutcomePending, err
	}
	data, err := resp.JSON()
	if err != nil {
		return nil, types.OutcomePending, err
	}
	return data, normalize(data.GetInt("statusId")), nil
}

// ConfirmLoan 发货后确认放款，银行开始给商户结算
func (c *Channel) ConfirmLoan(ctx context.Context, t *models.Transaction) error {
	resp, err := c.request(ctx, c.session(), "POST",
		c.applications()+"/"+t.Trx+"/confirm", c.merchantBody())
	if err != nil {
		return err
	}
	if resp.StatusCode > 201 {
		return fmt.Errorf("tbc confirm returned %d", resp.StatusCode)
	}
	return nil
}

// CancelLoan 银行侧撤销申请，只在人工处理流程里使用
func (c *Channel) CancelLoan(ctx context.Context, t *models.Transaction) error {
	resp, err := c.request(ctx, c.session(), "POST",
		c.applications()+"/"+t.Trx+"/cancel", c.merchantBody())
	if err != nil {
		return err
	}
	if resp.StatusCode > 201 {
		return fmt.Errorf("tbc cancel returned %d", resp.StatusCode)
	}
	return nil
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

// StatusChanges 拉取一批未同步的状态变更。没有新变更时 requestID 为空。
func (c *Channel) StatusChanges(ctx context.Context) (string, []banks.StatusChange, error) {
	body := c.merchantBody()
	body["take"] = 30
	resp, err := c.request(ctx, c.session(), "GET",
		c.cfg.TBC.BaseURL+"/v1/online-installments/merchant/applications/status-changes", body)
	if err != nil {
		return "", nil, err
	}
	data, err := resp.JSON()
	if err != nil {
		return "", nil, err
	}
	requestID := data.GetString("synchronizationRequestId")
	list, _ := data["statusChanges"].([]interface{})

	changes := make([]banks.StatusChange, 0, len(list))
	for _, item := range list {
		raw, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		p := banks.Payload(raw)
		changes = append(changes, banks.StatusChange{
			SessionID:          p.GetString("sessionId"),
			StatusID:           p.GetInt("statusId"),
			Amount:             tetri(p, "amount"),
			ContributionAmount: tetri(p, "contributionAmount"),
			Raw:                p,
		})
	}
	return requestID, changes, nil
}

// tetri 银行金额是 GEL 小数，转回特特里
func tetri(p banks.Payload, key string) int64 {
	if !p.Has(key) {
		return 0
	}
	d := decimal.NewFromFloat(cast.ToFloat64(p[key]))
	return d.Mul(decimal.NewFromInt(100)).IntPart()
}

func (c *Channel) AckStatusChanges(ctx context.Context, requestID string) error {
	body := c.merchantBody()
	body["synchronizationRequestId"] = requestID
	resp, err := c.request(ctx, c.session(), "POST",
		c.cfg.TBC.BaseURL+"/v1/online-installments/merchant/applications/status-changes-sync", body)
	if err != nil {
		return err
	}
	if resp.StatusCode > 201 {
		return fmt.Errorf("tbc status changes ack returned %d", resp.StatusCode)
	}
	return nil
}

// HandleRequest 银行只通知"有变化"，结论仍以我们主动查询为准
func (c *Channel) HandleRequest(pc *pin.Context, path string) error {
	if path != "callback" {
		pc.JSON(404, map[string]string{"error": "Not found"})
		return nil
	}
	var req struct {
		PaymentID string `json:"PaymentId"`
	}
	if err := pc.BindJSON(&req); err != nil {
		pc.JSON(400, map[string]string{"message": "invalid payload"})
		return nil
	}
	slog.Info("tbc callback received", "payment", req.PaymentID)

	t := reconcile.FindByTrx(database.Database(), req.PaymentID)
	if t != nil {
		engine := reconcile.NewEngine(database.Database())
		if err := engine.Reconcile(context.Background(), c, t.ID, nil); err != nil {
			slog.Error("tbc callback sync failed", "transaction", t.ID, "err", err)
		}
	}
	pc.JSON(200, map[string]string{})
	return nil
}

var _ banks.StatusChangeFeed = (*Channel)(nil)
