package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flaboy/aira-payments/pkg/banks"
	"github.com/flaboy/aira-payments/pkg/config"
	"github.com/flaboy/aira-payments/pkg/models"
	"github.com/flaboy/aira-payments/pkg/types"
	"gorm.io/gorm"
)

// Sweeper 定时对账。宿主的调度器（cron / systemd timer）按银行分别触发,
// 单笔失败不影响后续交易，留给下一轮重试。
type Sweeper struct {
	db     *gorm.DB
	engine *Engine
}

func NewSweeper(db *gorm.DB) *Sweeper {
	return &Sweeper{db: db, engine: NewEngine(db)}
}

// SweepPending 轮询指定支付方式下、窗口期内仍为 PENDING 的交易
func (s *Sweeper) SweepPending(ctx context.Context, bank types.BankType, kind types.PaymentKind, window time.Duration) error {
	ch := banks.Get(kind, bank)
	if ch == nil {
		return fmt.Errorf("no channel configured for (%s, %s)", kind, bank)
	}

	methodIDs := s.db.Model(&models.PaymentMethod{}).
		Select("id").
		Where("bank_type = ? AND payment_kind = ?", bank, kind)

	var transactions []models.Transaction
	err := s.db.
		Where("status = ?", types.StatusPending).
		Where("payment_method_id IN (?)", methodIDs).
		Where("trx <> ''").
		Where("kind IN ?", []types.TransactionKind{types.KindPay, types.KindContribution}).
		Where("created_at >= ?", time.Now().Add(-window)).
		Order("id").
		Find(&transactions).Error
	if err != nil {
		return fmt.Errorf("pending sweep query failed: %w", err)
	}

	slog.Info("pending sweep started",
		"channel", ch.Name(), "count", len(transactions))

	for i := range transactions {
		t := &transactions[i]
		ictx, cancel := context.WithTimeout(ctx, config.ReadTimeout)
		err := s.engine.Reconcile(ictx, ch, t.ID, nil)
		cancel()
		if err != nil {
			slog.Error("sweep item failed", "transaction", t.ID, "err", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

// SweepStatusChanges 拉取 TBC 分期的批量状态推送并逐条合并，最后确认批次。
// statusId 5 表示银行侧撤销申请，只打人工标记；8 为放款成功，
// 有参与金时结算金额按 金额-参与金 修订并提醒运营收款。
func (s *Sweeper) SweepStatusChanges(ctx context.Context) error {
	ch := banks.Get(types.PaymentKindLoan, types.BankTBC)
	if ch == nil {
		return fmt.Errorf("tbc loan channel is not configured")
	}
	feed, ok := ch.(banks.StatusChangeFeed)
	if !ok {
		return fmt.Errorf("channel %s does not expose a status feed", ch.Name())
	}

	requestID, changes, err := feed.StatusChanges(ctx)
	if err != nil {
		return fmt.Errorf("status changes fetch failed: %w", err)
	}
	if requestID == "" {
		return nil
	}

	for _, change := range changes {
		t := FindByTrx(s.db, change.SessionID)
		if t == nil {
			continue
		}

		outcome := types.OutcomePending
		succeededAmount := int64(0)
		switch {
		case change.StatusID == 5:
			if err := SetManualAction(s.db, t, types.ManualActionCallForLoanCancel); err != nil {
				slog.Error("manual action failed", "transaction", t.ID, "err", err)
			}
		case change.StatusID == 3 || change.StatusID == 4 || change.StatusID == 6 || change.StatusID == 7:
			outcome = types.OutcomeFailed
		case change.StatusID == 8:
			outcome = types.OutcomeSuccess
			if change.ContributionAmount > 0 {
				succeededAmount = change.Amount - change.ContributionAmount
				if err := SetManualAction(s.db, t, types.ManualActionLoanContribution); err != nil {
					slog.Error("manual action failed", "transaction", t.ID, "err", err)
				}
			}
		}

		err := s.engine.Reconcile(ctx, ch, t.ID, &ExternalStatus{
			Data:            change.Raw,
			Outcome:         outcome,
			SucceededAmount: succeededAmount,
		})
		if err != nil {
			slog.Error("status change sync failed",
				"transaction", t.ID, "session", change.SessionID, "status", change.StatusID, "err", err)
		}
	}

	return feed.AckStatusChanges(ctx, requestID)
}
