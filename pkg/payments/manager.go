package payments

import (
	"context"
	"log/slog"
	"time"

	"github.com/flaboy/aira-payments/pkg/banks"
	"github.com/flaboy/aira-payments/pkg/config"
	"github.com/flaboy/aira-payments/pkg/errors"
	"github.com/flaboy/aira-payments/pkg/events"
	"github.com/flaboy/aira-payments/pkg/models"
	"github.com/flaboy/aira-payments/pkg/reconcile"
	"github.com/flaboy/aira-payments/pkg/types"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Manager 支付管理器，结账/退款等业务入口
type Manager struct {
	db *gorm.DB
}

func NewManager(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

// Initiate 发起支付：调银行下单，记录银行引用，状态置 PENDING。
// 银行不可用时状态置 ERROR 并返回错误；业务拒绝不是错误，
// 以 Accepted=false 返回。
func (m *Manager) Initiate(ctx context.Context, t *models.Transaction) (*banks.InitiateResult, error) {
	ch := banks.Get(t.PaymentMethod.PaymentKind, t.PaymentMethod.BankType)
	if ch == nil {
		return nil, errors.ErrChannelNotFound
	}
	if !t.PaymentMethod.IsActive {
		return nil, errors.ErrPaymentMethodNotFound
	}
	if t.PaymentMethod.MaxAmount > 0 &&
		(t.Amount < t.PaymentMethod.MinAmount || t.Amount > t.PaymentMethod.MaxAmount) {
		return nil, errors.ErrAmountOutOfRange
	}

	cctx, cancel := context.WithTimeout(ctx, config.ReadTimeout)
	defer cancel()

	result, err := ch.StartPayment(cctx, t)
	if err != nil {
		slog.Error("payment initiation failed",
			"transaction", t.ID, "channel", ch.Name(), "err", err)
		t.Status = types.StatusError
		if dberr := m.db.Model(t).Update("status", t.Status).Error; dberr != nil {
			return nil, dberr
		}
		return nil, errors.ErrProviderUnavailable
	}

	t.Trx = result.Trx
	t.PayID = result.PayID
	if result.Accepted {
		t.Status = types.StatusPending
	} else {
		t.Status = types.StatusError
	}
	err = m.db.Model(t).Updates(map[string]interface{}{
		"trx":    t.Trx,
		"pay_id": t.PayID,
		"status": t.Status,
	}).Error
	if err != nil {
		return nil, err
	}

	slog.Info("payment initiated",
		"transaction", t.ID, "channel", ch.Name(), "accepted", result.Accepted, "trx", t.Trx)
	return result, nil
}

// Refund 退款。分期类渠道无法自动退款，转人工标记并返回 Succeeded=false，
// 交易状态不变。
func (m *Manager) Refund(ctx context.Context, t *models.Transaction, amount int64) (*banks.RefundResult, error) {
	return m.reverse(ctx, t, amount, false)
}

// Cancel 撤销（当日冲正），语义同 Refund
func (m *Manager) Cancel(ctx context.Context, t *models.Transaction, amount int64) (*banks.RefundResult, error) {
	return m.reverse(ctx, t, amount, true)
}

func (m *Manager) reverse(ctx context.Context, t *models.Transaction, amount int64, cancel bool) (*banks.RefundResult, error) {
	if t.Status != types.StatusSuccess ||
		(t.Kind != types.KindPay && t.Kind != types.KindContribution) {
		return nil, errors.ErrTransactionNotRefundable
	}
	ch := banks.Get(t.PaymentMethod.PaymentKind, t.PaymentMethod.BankType)
	if ch == nil {
		return nil, errors.ErrChannelNotFound
	}

	cctx, cc := context.WithTimeout(ctx, config.ReadTimeout)
	defer cc()

	var result *banks.RefundResult
	var err error
	if cancel {
		result, err = ch.Cancel(cctx, t, amount)
	} else {
		result, err = ch.Refund(cctx, t, amount)
	}
	if err != nil {
		slog.Error("refund call failed", "transaction", t.ID, "channel", ch.Name(), "err", err)
		return nil, errors.ErrProviderUnavailable
	}

	if result.NeedsAction != types.ManualActionNone {
		if err := reconcile.SetManualAction(m.db, t, result.NeedsAction); err != nil {
			return nil, err
		}
		return result, nil
	}

	err = m.db.Transaction(func(tx *gorm.DB) error {
		if result.Data != nil {
			t.DataLog = append(t.DataLog, map[string]interface{}(result.Data))
		}
		updates := map[string]interface{}{"data_log": t.DataLog}
		if result.Succeeded {
			t.Refunded += amount
			updates["refunded"] = t.Refunded
		}
		return tx.Model(t).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}

	if result.Succeeded {
		dec := decimal.NewFromInt(amount).Div(decimal.NewFromInt(100))
		if err := events.EmitRefundProcessed(&types.RefundProcessedEvent{
			TransactionID: t.ID,
			Bank:          t.PaymentMethod.BankType,
			Amount:        &dec,
			ProcessedAt:   time.Now(),
		}); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Get 按公开 hash id 取交易
func (m *Manager) Get(hashID string) (*models.Transaction, error) {
	id, err := models.DecodeTransactionHashID(hashID)
	if err != nil {
		return nil, errors.ErrTransactionNotFound
	}
	var t models.Transaction
	if err := m.db.Preload("PaymentMethod").First(&t, id).Error; err != nil {
		return nil, errors.ErrTransactionNotFound
	}
	return &t, nil
}
