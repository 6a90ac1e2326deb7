package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flaboy/aira-payments/pkg/banks"
	"github.com/flaboy/aira-payments/pkg/config"
	"github.com/flaboy/aira-payments/pkg/events"
	"github.com/flaboy/aira-payments/pkg/models"
	"github.com/flaboy/aira-payments/pkg/types"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ExternalStatus 回调路径带进来的已归一化状态；轮询路径传 nil，
// 引擎自己向银行查询。
type ExternalStatus struct {
	Data    banks.Payload
	Outcome types.Outcome

	// SucceededAmount 银行结算金额与下单金额不一致时（比如分期扣除
	// 了用户的参与金）按银行金额修订，0 表示不修订
	SucceededAmount int64

	// SkipLog 报文已经由回调处理器单独记录时跳过追加
	SkipLog bool
}

// Engine 对账引擎。轮询和回调两条路径都收敛到 Reconcile，
// 日志追加和状态更新在一个数据库事务内原子完成。
type Engine struct {
	db *gorm.DB
}

func NewEngine(db *gorm.DB) *Engine {
	return &Engine{db: db}
}

// Reconcile 同步一笔交易的状态。ext 为 nil 时向银行实时查询（轮询路径）。
// 银行不可用时交易保持原状态，错误返回给调用方，由调度器下一轮重试。
func (e *Engine) Reconcile(ctx context.Context, ch banks.Channel, transactionID uint, ext *ExternalStatus) error {
	if ext == nil {
		var t models.Transaction
		if err := e.db.Preload("PaymentMethod").First(&t, transactionID).Error; err != nil {
			return fmt.Errorf("transaction %d not found: %w", transactionID, err)
		}
		cctx, cancel := context.WithTimeout(ctx, config.ReadTimeout)
		defer cancel()
		data, outcome, err := ch.CheckStatus(cctx, &t)
		if err != nil {
			slog.Error("provider status check failed",
				"transaction", transactionID, "channel", ch.Name(), "err", err)
			return fmt.Errorf("provider unavailable: %w", err)
		}
		ext = &ExternalStatus{Data: data, Outcome: outcome}
	}
	return e.apply(ctx, ch, transactionID, ext)
}

// apply 合并一次状态观察：归一化结果 → 终态判定 → 去重追加 → 原子落库
func (e *Engine) apply(ctx context.Context, ch banks.Channel, transactionID uint, ext *ExternalStatus) error {
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Preload("PaymentMethod")
		if supportsRowLock(tx) {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var t models.Transaction
		if err := q.First(&t, transactionID).Error; err != nil {
			return fmt.Errorf("transaction %d not found: %w", transactionID, err)
		}

		prev := t.Status
		next := ext.Outcome.ToStatus(prev)
		if prev.IsTerminal() && next != prev {
			// 终态不回退，迟到的报文只进日志
			slog.Warn("ignoring status change on terminal transaction",
				"transaction", t.ID, "status", prev, "outcome", int(ext.Outcome))
			next = prev
		}
		t.Status = next

		if next == types.StatusSuccess && ext.SucceededAmount > 0 && ext.SucceededAmount != t.Amount {
			slog.Info("revising settled amount",
				"transaction", t.ID, "amount", t.Amount, "settled", ext.SucceededAmount)
			t.Amount = ext.SucceededAmount
		}

		if ext.Data != nil {
			if pk := ch.PANKey(); pk != "" {
				if pan := ext.Data.GetString(pk); pan != "" {
					t.CardHash = pan
				}
			}
			if bin := ext.Data.GetString("BIN_HASH"); bin != "" {
				t.CardBinHash = bin
			}
			if !ext.SkipLog {
				mergeDataLog(&t, ch.UniqueByKey(), ext.Data)
			}
		}

		updates := map[string]interface{}{
			"status":        t.Status,
			"amount":        t.Amount,
			"card_hash":     t.CardHash,
			"card_bin_hash": t.CardBinHash,
			"data_log":      t.DataLog,
		}
		if err := tx.Model(&t).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to persist transaction %d: %w", t.ID, err)
		}

		if prev != types.StatusSuccess && t.Status == types.StatusSuccess {
			e.saveCard(tx, ch, &t, ext.Data)
			amount := decimal.NewFromInt(t.Amount).Div(dec100)
			if err := events.EmitPaymentCompleted(&types.PaymentCompletedEvent{
				TX:            tx,
				TransactionID: t.ID,
				PaymentHashID: t.HashID(),
				Bank:          t.PaymentMethod.BankType,
				PaymentKind:   t.PaymentMethod.PaymentKind,
				Amount:        &amount,
				Trx:           t.Trx,
				CompletedAt:   time.Now(),
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

var dec100 = decimal.NewFromInt(100)

// mergeDataLog 按渠道声明的去重键追加报文。已有同键值的记录则跳过；
// 报文里没有该键时无法去重，总是追加。
func mergeDataLog(t *models.Transaction, key string, data banks.Payload) {
	if key != "" && data.Has(key) {
		val := data.GetString(key)
		for _, entry := range t.DataLog {
			p := banks.Payload(entry)
			if p.Has(key) && p.GetString(key) == val {
				return
			}
		}
	}
	t.DataLog = append(t.DataLog, map[string]interface{}(data))
}

// saveCard 成功交易第一次见到该用户的这张卡时注册为可复用卡。
// 尽力而为：失败只记日志，不影响对账结果。
func (e *Engine) saveCard(tx *gorm.DB, ch banks.Channel, t *models.Transaction, data banks.Payload) {
	if !t.SaveCard || t.CardID != nil || data == nil {
		return
	}
	cs, ok := ch.(banks.CardSource)
	if !ok {
		return
	}
	card := cs.CardFromPayload(data)
	if card == nil {
		return
	}
	card.UserID = t.UserID

	var count int64
	if err := tx.Model(&models.Card{}).
		Where("user_id = ? AND number = ?", t.UserID, card.Number).
		Count(&count).Error; err != nil || count > 0 {
		return
	}
	var primaries int64
	tx.Model(&models.Card{}).
		Where("user_id = ? AND is_primary = ?", t.UserID, true).
		Count(&primaries)
	card.IsPrimary = primaries == 0

	if err := tx.Create(card).Error; err != nil {
		slog.Error("card could not be saved",
			"transaction", t.ID, "user", t.UserID, "err", err)
	}
}

// FindByTrx 按银行引用找交易，回调处理器用。找不到返回 nil 而不是错误，
// 避免向外部泄露交易是否存在。
func FindByTrx(db *gorm.DB, trx string) *models.Transaction {
	if trx == "" {
		return nil
	}
	var t models.Transaction
	err := db.Preload("PaymentMethod").Where("trx = ?", trx).First(&t).Error
	if err != nil {
		return nil
	}
	return &t
}

// sqlite 不支持 SELECT ... FOR UPDATE，靠库级写锁保证原子性
func supportsRowLock(db *gorm.DB) bool {
	name := db.Dialector.Name()
	return name == "mysql" || name == "postgres"
}
