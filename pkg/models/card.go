package models

import (
	"time"

	"github.com/flaboy/aira-payments/pkg/database"
	"github.com/flaboy/aira-payments/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Card 可复用的银行卡，Number 为掩码卡号，RecID 为银行侧的循环扣款ID
type Card struct {
	ID         string         `gorm:"primaryKey;size:36"`
	UserID     uint           `gorm:"index;not null"`
	Number     string         `gorm:"size:16"`
	RecID      string         `gorm:"size:41;default:''"`
	ExpiryDate string         `gorm:"size:5;default:'0000'"`
	CardType   types.CardType `gorm:"default:1"`
	BankType   types.BankType `gorm:"default:1"`
	IsPrimary  bool           `gorm:"default:false"`
	CreatedAt  time.Time
}

func (c *Card) TableName() string {
	return "ar_cards"
}

func (c *Card) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

func init() {
	database.RegisterAutoMigrateModels(&Card{})
}
