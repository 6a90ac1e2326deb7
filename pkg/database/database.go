package database

import (
	"fmt"

	"github.com/flaboy/aira-payments/pkg/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var db *gorm.DB

var autoMigrateModels []interface{}

// RegisterAutoMigrateModels 各 model 包在 init 中注册
func RegisterAutoMigrateModels(models ...interface{}) {
	autoMigrateModels = append(autoMigrateModels, models...)
}

// Init 按配置建立连接并执行迁移
func Init(cfg *config.PaymentsConfig) error {
	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.Database.DSN)
	case "mysql", "":
		dialector = mysql.Open(cfg.Database.DSN)
	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}

	conn, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db = conn
	return AutoMigrate()
}

// Use 宿主系统已有连接时直接注入（测试同样走这里）
func Use(conn *gorm.DB) error {
	db = conn
	return AutoMigrate()
}

func AutoMigrate() error {
	if len(autoMigrateModels) == 0 {
		return nil
	}
	return db.AutoMigrate(autoMigrateModels...)
}

func Database() *gorm.DB {
	return db
}
