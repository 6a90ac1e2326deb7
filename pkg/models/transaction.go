package models

import (
	"time"

	"github.com/flaboy/aira-payments/pkg/database"
	"github.com/flaboy/aira-payments/pkg/types"
)

// Transaction 一笔支付/退款交易。
// DataLog 保存银行返回的原始报文，只追加不修改；
// 去重规则见 reconcile 包。
type Transaction struct {
	ID     uint `gorm:"primaryKey"`
	UserID uint `gorm:"index;not null"`

	Trx   string `gorm:"size:100;default:'';index"` // 银行侧主引用
	PayID string `gorm:"size:255;default:''"`       // 银行侧辅助引用 (RRN / payment hash)

	Amount   int64 `gorm:"not null"` // 金额（特特里）
	Refunded int64 `gorm:"default:0"`

	CardHash    string `gorm:"size:30;default:'****'"`
	CardBinHash string `gorm:"size:255"`

	Status types.Status          `gorm:"default:0;index"`
	Kind   types.TransactionKind `gorm:"default:1"`

	DataLog        []map[string]interface{} `gorm:"serializer:json;type:text"`
	AdditionalData map[string]interface{}   `gorm:"serializer:json;type:text"`

	SaveCard bool    `gorm:"default:true"`
	CardID   *string `gorm:"size:36"`
	Card     *Card   `gorm:"foreignKey:CardID"`

	PaymentMethodID uint          `gorm:"not null"`
	PaymentMethod   PaymentMethod `gorm:"foreignKey:PaymentMethodID"`

	ManualAction types.ManualAction `gorm:"default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (t *Transaction) TableName() string {
	return "ar_payment_transactions"
}

// TextStatus 给后台展示用的状态文案
func (t *Transaction) TextStatus() string {
	switch t.Status {
	case types.StatusSuccess:
		return "Ok"
	case types.StatusTimeout:
		return "Time Out"
	case types.StatusFailed:
		return "Failed"
	case types.StatusPending:
		return "Pending"
	case types.StatusError:
		return "Error With Initial (Maybe Bank Was In Down)"
	}
	return "Unknown"
}

func init() {
	database.RegisterAutoMigrateModels(&Transaction{})
}
