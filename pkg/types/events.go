package types

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentCompletedEvent 支付成功事件，在状态首次迁移到 SUCCESS 时触发。
// TX 为当前数据库事务，业务方的处理会与状态更新一起提交。
type PaymentCompletedEvent struct {
	TX            *gorm.DB
	TransactionID uint             `json:"transaction_id"`
	PaymentHashID string           `json:"payment_hash_id"`
	Bank          BankType         `json:"bank"`
	PaymentKind   PaymentKind      `json:"payment_kind"`
	Amount        *decimal.Decimal `json:"amount"`
	Trx           string           `json:"trx"`
	CompletedAt   time.Time        `json:"completed_at"`
}

// RefundProcessedEvent 退款/撤销被银行接受之后触发
type RefundProcessedEvent struct {
	TransactionID uint             `json:"transaction_id"`
	Bank          BankType         `json:"bank"`
	Amount        *decimal.Decimal `json:"amount"`
	ProcessedAt   time.Time        `json:"processed_at"`
}

// ManualActionRaisedEvent 需要人工介入时触发
type ManualActionRaisedEvent struct {
	TransactionID uint         `json:"transaction_id"`
	Bank          BankType     `json:"bank"`
	Action        ManualAction `json:"action"`
	RaisedAt      time.Time    `json:"raised_at"`
}
