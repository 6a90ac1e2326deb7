package reconcile

import (
	"log/slog"
	"time"

	"github.com/flaboy/aira-payments/pkg/events"
	"github.com/flaboy/aira-payments/pkg/models"
	"github.com/flaboy/aira-payments/pkg/types"
	"gorm.io/gorm"
)

// SetManualAction 打人工处理标记。幂等：同一标记重复设置是空操作；
// 标记只会被更高优先级的写覆盖，系统从不清除，由运营人员线下消费。
// 这是"该操作无法自动完成"的唯一出口，不走错误路径。
func SetManualAction(db *gorm.DB, t *models.Transaction, action types.ManualAction) error {
	if action == types.ManualActionNone || t.ManualAction == action {
		return nil
	}
	if err := db.Model(t).Update("manual_action", action).Error; err != nil {
		return err
	}
	t.ManualAction = action
	slog.Info("manual action raised",
		"transaction", t.ID, "action", action.String())
	return events.EmitManualActionRaised(&types.ManualActionRaisedEvent{
		TransactionID: t.ID,
		Bank:          t.PaymentMethod.BankType,
		Action:        action,
		RaisedAt:      time.Now(),
	})
}
