package ufc

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/rand"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/flaboy/aira-payments/pkg/banks"
	"github.com/flaboy/aira-payments/pkg/config"
	"github.com/flaboy/aira-payments/pkg/models"
	"github.com/flaboy/aira-payments/pkg/types"
	"github.com/flaboy/pin"
)

// Channel UFC (ecomm2) 卡支付渠道。商户接口走双向TLS，
// 报文是 "KEY: value" 按行的文本格式，没有回调，靠轮询对账。
type Channel struct {
	cfg  *config.PaymentsConfig
	http *banks.HTTPClient
}

func init() {
	banks.Register(types.PaymentKindCard, types.BankUFC, New)
}

func New(cfg *config.PaymentsConfig) (banks.Channel, error) {
	if !cfg.UFC.Enabled {
		return nil, nil
	}
	client, err := banks.NewMutualTLSClient(cfg.UFC.CertFile, cfg.UFC.KeyFile)
	if err != nil {
		return nil, err
	}
	return &Channel{cfg: cfg, http: client}, nil
}

func (c *Channel) Name() string                 { return "ufc" }
func (c *Channel) UniqueByKey() string          { return "RESULT" }
func (c *Channel) PANKey() string               { return "CARD_NUMBER" }
func (c *Channel) TimeoutWindow() time.Duration { return 15 * time.Minute }

var statusMapper = map[string]types.Outcome{
	"OK":           types.OutcomeSuccess,
	"CREATED":      types.OutcomePending,
	"PENDING":      types.OutcomePending,
	"REVERSED":     types.OutcomePending,
	"AUTOREVERSED": types.OutcomePending,
	"FAILED":       types.OutcomeFailed,
	"DECLINED":     types.OutcomeFailed,
	"TIMEOUT":      types.OutcomeTimeout,
}

// normalize 未知状态码一律按 PENDING 处理，不抛错
func normalize(result string) types.Outcome {
	if outcome, ok := statusMapper[result]; ok {
		return outcome
	}
	return types.OutcomePending
}

const description = "aira-payments"

// merchant 接口是表单进、行文本出
func (c *Channel) command(ctx context.Context, form url.Values) (banks.Payload, error) {
	resp, err := c.http.Do(ctx, &banks.Request{
		Method: "POST",
		URL:    c.cfg.UFC.MerchantURL,
		Form:   form,
	})
	if err != nil {
		return nil, fmt.Errorf("ufc merchant handler: %w", err)
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("ufc merchant handler returned %d", resp.StatusCode)
	}
	return parseResponse(resp.Body), nil
}

// parseResponse 解析 "KEY: value" 行文本报文
func parseResponse(body []byte) banks.Payload {
	payload := banks.Payload{}
	for _, line := range strings.Split(string(body), "\n") {
		k, v, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		payload[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return payload
}

const clientIP = "1.1.1.1"

func (c *Channel) baseForm(command string, t *models.Transaction) url.Values {
	form := url.Values{}
	form.Set("command", command)
	form.Set("amount", strconv.FormatInt(t.Amount, 10))
	form.Set("currency", "981") // GEL
	form.Set("client_ip_addr", clientIP)
	form.Set("description", description)
	return form
}

func (c *Channel) StartPayment(ctx context.Context, t *models.Transaction) (*banks.InitiateResult, error) {
	if t.Card != nil && t.Card.RecID != "" {
		return c.payWithSavedCard(ctx, t)
	}
	return c.payWithNewCard(ctx, t)
}

func (c *Channel) payWithNewCard(ctx context.Context, t *models.Transaction) (*banks.InitiateResult, error) {
	var form url.Values
	if t.SaveCard {
		// 注册循环扣款ID并同时扣款
		form = c.baseForm("z", t)
		form.Set("biller_client_id", billerClientID(t.ID))
		form.Set("perspayee_expiry", "1299")
		form.Set("expiry", "1299")
		form.Set("perspayee_gen", "1")
	} else {
		form = c.baseForm("v", t)
		form.Set("msg_type", "SMS")
	}
	data, err := c.command(ctx, form)
	if err != nil {
		return nil, err
	}
	trx := data.GetString("TRANSACTION_ID")
	result := &banks.InitiateResult{
		Accepted: trx != "",
		Trx:      trx,
		PayID:    data.GetString("RRN"),
	}
	if result.Accepted {
		result.RedirectURL = fmt.Sprintf("%s?trans_id=%s", c.cfg.UFC.ClientURL, url.QueryEscape(trx))
	}
	return result, nil
}

func (c *Channel) payWithSavedCard(ctx context.Context, t *models.Transaction) (*banks.InitiateResult, error) {
	form := c.baseForm("e", t)
	form.Set("biller_client_id", t.Card.RecID)
	data, err := c.command(ctx, form)
	if err != nil {
		return nil, err
	}
	trx := data.GetString("TRANSACTION_ID")
	result := &banks.InitiateResult{
		Accepted: trx != "",
		Trx:      trx,
		PayID:    data.GetString("RRN"),
	}
	if result.Accepted {
		result.RedirectURL = fmt.Sprintf("%s/ka/success?trans_id=%s", c.cfg.HostURL, url.QueryEscape(trx))
	} else {
		result.RedirectURL = fmt.Sprintf("%s/ka/fail/", c.cfg.HostURL)
	}
	return result, nil
}

// billerClientID 循环扣款注册ID：随机字母 + 交易ID的可逆编码
func billerClientID(id uint) string {
	const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	b := make([]byte, 20)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b) + base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatUint(uint64(id), 10)))
}

func (c *Channel) CheckStatus(ctx context.Context, t *models.Transaction) (banks.Payload, types.Outcome, error) {
	form := url.Values{}
	form.Set("command", "c")
	form.Set("trans_id", t.Trx)
	form.Set("client_ip_addr", clientIP)
	data, err := c.command(ctx, form)
	if err != nil {
		return nil, types.OutcomePending, err
	}
	return data, normalize(data.GetString("RESULT")), nil
}

func (c *Channel) Refund(ctx context.Context, t *models.Transaction, amount int64) (*banks.RefundResult, error) {
	form := url.Values{}
	form.Set("command", "k")
	form.Set("trans_id", t.Trx)
	form.Set("amount", strconv.FormatInt(amount, 10))
	data, err := c.command(ctx, form)
	if err != nil {
		return nil, err
	}
	data["DATE_TIME"] = time.Now().Format(time.RFC3339)
	return &banks.RefundResult{
		Succeeded: data.GetString("RESULT_CODE") == "000",
		Data:      data,
	}, nil
}

// Cancel 当日冲正。RESULT_CODE 400 + RESULT OK 表示已冲正。
func (c *Channel) Cancel(ctx context.Context, t *models.Transaction, amount int64) (*banks.RefundResult, error) {
	form := url.Values{}
	form.Set("command", "r")
	form.Set("trans_id", t.Trx)
	form.Set("amount", strconv.FormatInt(amount, 10))
	data, err := c.command(ctx, form)
	if err != nil {
		return nil, err
	}
	data["DATE_TIME"] = time.Now().Format(time.RFC3339)
	code := data.GetString("RESULT_CODE")
	succeeded := (code == "400" && data.GetString("RESULT") == "OK") || code == "000"
	return &banks.RefundResult{Succeeded: succeeded, Data: data}, nil
}

// CardFromPayload 扣款成功的注册报文里带循环扣款ID时可以存卡
func (c *Channel) CardFromPayload(p banks.Payload) *models.Card {
	pan := p.GetString("CARD_NUMBER")
	recID := p.GetString("RECC_PMNT_ID")
	if pan == "" || len(recID) < 4 {
		return nil
	}
	return &models.Card{
		Number:     pan,
		RecID:      recID[:len(recID)-3],
		ExpiryDate: p.GetString("RECC_PMNT_EXPIRY"),
		CardType:   types.CardTypeFromPAN(pan),
		BankType:   types.BankUFC,
	}
}

// FailedText 后台展示的失败原因，取日志里第一条失败报文的 RESULT_CODE
func (c *Channel) FailedText(t *models.Transaction) string {
	for _, entry := range t.DataLog {
		p := banks.Payload(entry)
		if normalize(p.GetString("RESULT")) >= types.OutcomePending {
			continue
		}
		code := p.GetString("RESULT_CODE")
		if code == "" {
			if secure := p.GetString("3DSECURE"); secure != "" && secure != "AUTHENTICATED" {
				code = "3D"
			}
		}
		return fmt.Sprintf("Result Code: %s / Contact To Bank", code)
	}
	return "Unknown"
}

// UFC 没有回调，全部靠轮询
func (c *Channel) HandleRequest(pc *pin.Context, path string) error {
	pc.JSON(404, map[string]string{"error": "Not found"})
	return nil
}
