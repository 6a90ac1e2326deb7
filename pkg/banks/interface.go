package banks

import (
	"context"
	"time"

	"github.com/flaboy/aira-payments/pkg/models"
	"github.com/flaboy/aira-payments/pkg/types"
	"github.com/flaboy/pin"
	"github.com/spf13/cast"
)

// Payload 银行返回的原始报文，原样进入交易的 DataLog
type Payload map[string]interface{}

// GetString 银行经常把数字当字符串发，反过来也一样
func (p Payload) GetString(key string) string {
	if v, ok := p[key]; ok {
		return cast.ToString(v)
	}
	return ""
}

func (p Payload) GetInt(key string) int {
	return cast.ToInt(p[key])
}

// Has 键是否出现在报文里（去重规则区分"没有键"和"键为空"）
func (p Payload) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// InitiateResult 发起支付的结果。Accepted=false 表示银行侧业务拒绝，
// 不是错误；网络/鉴权失败通过 error 返回。
type InitiateResult struct {
	Accepted    bool
	Trx         string
	PayID       string
	RedirectURL string
	Extra       map[string]interface{}
}

// RefundResult NeedsAction 非零表示该渠道无法自动退款，
// 由调用方落人工处理标记。
type RefundResult struct {
	Succeeded   bool
	Data        Payload
	NeedsAction types.ManualAction
}

// Channel 每个银行一个实现。渠道自己不落库，持久化统一由 reconcile 完成；
// 渠道内部只允许持有单次调用生命周期内的会话凭证。
type Channel interface {
	// Name 渠道名，同时用于回调路由
	Name() string

	// UniqueByKey DataLog 去重字段，空串表示回调报文永远视为新纪录
	UniqueByKey() string

	// PANKey 报文中掩码卡号的字段名，空串表示该渠道不返回卡号
	PANKey() string

	// TimeoutWindow 超过该时长仍未有结论的失败按 TIMEOUT 处理
	TimeoutWindow() time.Duration

	StartPayment(ctx context.Context, t *models.Transaction) (*InitiateResult, error)

	// CheckStatus 返回原始报文和归一化结果
	CheckStatus(ctx context.Context, t *models.Transaction) (Payload, types.Outcome, error)

	Refund(ctx context.Context, t *models.Transaction, amount int64) (*RefundResult, error)
	Cancel(ctx context.Context, t *models.Transaction, amount int64) (*RefundResult, error)

	// 处理银行回调，由宿主路由挂载
	HandleRequest(c *pin.Context, path string) error
}

// CardSource 能从成功报文里提取可复用卡信息的渠道实现该接口
type CardSource interface {
	CardFromPayload(p Payload) *models.Card
}

// StatusChange 批量状态推送里的一条变更（TBC 分期的 status-changes 接口）
type StatusChange struct {
	SessionID          string
	StatusID           int
	Amount             int64
	ContributionAmount int64
	Raw                Payload
}

// StatusChangeFeed 提供批量状态拉取的渠道实现该接口。
// 拉取到的批次处理完后必须 Ack，否则银行会重复推送。
type StatusChangeFeed interface {
	StatusChanges(ctx context.Context) (requestID string, changes []StatusChange, err error)
	AckStatusChanges(ctx context.Context, requestID string) error
}

// ApplyTimeout 渠道声明失败但交易已超过渠道的时限时，按超时而非失败处理。
// 区分"银行明确拒绝"与"银行一直没有给出结论"。
func ApplyTimeout(outcome types.Outcome, createdAt time.Time, window time.Duration) types.Outcome {
	if outcome == types.OutcomeFailed && time.Since(createdAt) > window {
		return types.OutcomeTimeout
	}
	return outcome
}
