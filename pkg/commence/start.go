package commence

import (
	"github.com/flaboy/aira-payments/pkg/banks"
	"github.com/flaboy/aira-payments/pkg/cache"
	"github.com/flaboy/aira-payments/pkg/config"
	"github.com/flaboy/aira-payments/pkg/database"
	"github.com/flaboy/aira-payments/pkg/events"

	_ "github.com/flaboy/aira-payments/pkg/banks/bog"
	_ "github.com/flaboy/aira-payments/pkg/banks/credo"
	_ "github.com/flaboy/aira-payments/pkg/banks/gc"
	_ "github.com/flaboy/aira-payments/pkg/banks/space"
	_ "github.com/flaboy/aira-payments/pkg/banks/tbc"
	_ "github.com/flaboy/aira-payments/pkg/banks/ufc"
)

func Start(cfg *config.PaymentsConfig) error {
	config.Config = cfg
	if err := cfg.Validate(); err != nil {
		return err
	}

	// 启动服务组件
	if err := database.Init(cfg); err != nil {
		return err
	}
	cache.Init(cfg)
	return banks.Init(cfg)
}

// 注册业务系统的事件处理器
func RegisterEventHandler(handler events.EventHandler) {
	events.SetEventHandler(handler)
}
