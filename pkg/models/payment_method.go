package models

import (
	"github.com/flaboy/aira-payments/pkg/database"
	"github.com/flaboy/aira-payments/pkg/types"
)

// PaymentMethod 支付方式 = (支付类型, 银行) 组合，配置一次之后只读
type PaymentMethod struct {
	ID          uint              `gorm:"primaryKey"`
	PaymentKind types.PaymentKind `gorm:"uniqueIndex:uniq_kind_bank;default:1"`
	BankType    types.BankType    `gorm:"uniqueIndex:uniq_kind_bank;default:3"`
	MinAmount   int64             `gorm:"default:0"`
	MaxAmount   int64             `gorm:"default:0"`
	IsActive    bool              `gorm:"default:true"`
}

func (m *PaymentMethod) TableName() string {
	return "ar_payment_methods"
}

// IsInstallment 分期类支付方式退款/撤销需要人工处理
func (m *PaymentMethod) IsInstallment() bool {
	return m.PaymentKind == types.PaymentKindLoan
}

func init() {
	database.RegisterAutoMigrateModels(&PaymentMethod{})
}
