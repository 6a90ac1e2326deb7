package bog

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/flaboy/aira-payments/pkg/banks"
	"github.com/flaboy/aira-payments/pkg/database"
	"github.com/flaboy/aira-payments/pkg/reconcile"
	"github.com/flaboy/aira-payments/pkg/types"
	"github.com/flaboy/pin"
)

// HandleRequest BOG 回调。change_transaction_status 是正式的状态推送，
// refund_status 只做留痕。找不到交易时返回通用应答，不暴露交易是否存在。
func (c *CardChannel) HandleRequest(pc *pin.Context, path string) error {
	switch {
	case strings.HasPrefix(path, "change_transaction_status"):
		return c.handleStatusChange(pc)
	case strings.HasPrefix(path, "refund_status"):
		return c.handleRefundStatus(pc)
	default:
		pc.JSON(404, map[string]string{"error": "Not found"})
		return nil
	}
}

// 分期和卡支付共用同一个回调端点
func (c *InstallmentChannel) HandleRequest(pc *pin.Context, path string) error {
	card := &CardChannel{c.client}
	return card.HandleRequest(pc, path)
}

func (c *CardChannel) handleStatusChange(pc *pin.Context) error {
	var data banks.Payload
	if err := pc.BindJSON(&data); err != nil {
		pc.JSON(400, map[string]string{"message": "invalid payload"})
		return nil
	}
	slog.Info("bog callback received",
		"order", data.GetString("order_id"), "status", data.GetString("status"))

	t := reconcile.FindByTrx(database.Database(), data.GetString("order_id"))
	if t == nil {
		pc.JSON(200, map[string]string{"message": "ok"})
		return nil
	}

	// 分期报文的时限比卡支付宽
	window := c.TimeoutWindow()
	if data.GetString("payment_method") == "BOG_LOAN" {
		window = 50 * time.Minute
	}
	synthesizePAN(data)

	engine := reconcile.NewEngine(database.Database())
	err := engine.Reconcile(context.Background(), c, t.ID, &reconcile.ExternalStatus{
		Data:    data,
		Outcome: normalize(data.GetString("status"), t.CreatedAt, window),
	})
	if err != nil {
		slog.Error("bog callback sync failed", "transaction", t.ID, "err", err)
		pc.JSON(500, map[string]string{"message": "retry later"})
		return nil
	}
	pc.JSON(200, map[string]string{"message": "ok"})
	return nil
}

// handleRefundStatus 银行侧退款进度推送，只追加日志不改状态
func (c *CardChannel) handleRefundStatus(pc *pin.Context) error {
	var data banks.Payload
	if err := pc.BindJSON(&data); err != nil {
		pc.JSON(400, map[string]string{"message": "invalid payload"})
		return nil
	}
	t := reconcile.FindByTrx(database.Database(), data.GetString("order_id"))
	if t == nil || (t.Kind != types.KindRefund && t.Kind != types.KindCashback) {
		pc.JSON(200, map[string]string{"message": "ok"})
		return nil
	}
	engine := reconcile.NewEngine(database.Database())
	err := engine.Reconcile(context.Background(), c, t.ID, &reconcile.ExternalStatus{
		Data:    data,
		Outcome: types.OutcomePending,
	})
	if err != nil {
		slog.Error("bog refund status sync failed", "transaction", t.ID, "err", err)
	}
	pc.JSON(200, map[string]string{"message": "ok"})
	return nil
}

// synthesizePAN 部分报文只带卡种不带掩码卡号，补一个可展示的占位
func synthesizePAN(data banks.Payload) {
	if data.GetString("pan") != "" {
		return
	}
	var prefix string
	switch strings.ToLower(data.GetString("card_type")) {
	case "mc", "mastercard":
		prefix = "5***"
	case "visa":
		prefix = "4***"
	case "":
		return
	default:
		prefix = "3***"
	}
	data["pan"] = prefix
}

var _ banks.CardSource = (*CardChannel)(nil)
