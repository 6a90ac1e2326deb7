package banks

import (
	"fmt"

	"github.com/flaboy/aira-payments/pkg/config"
	"github.com/flaboy/aira-payments/pkg/types"
)

type channelKey struct {
	Kind types.PaymentKind
	Bank types.BankType
}

// Constructor 渠道构造函数。渠道未启用时返回 (nil, nil)，Init 会跳过。
type Constructor func(cfg *config.PaymentsConfig) (Channel, error)

var constructors = map[channelKey]Constructor{}

var (
	channels map[channelKey]Channel
	byName   map[string]Channel
)

// Register 各渠道包在 init 中注册自己，静态表在启动时一次性展开
func Register(kind types.PaymentKind, bank types.BankType, fn Constructor) {
	constructors[channelKey{kind, bank}] = fn
}

// Init 按配置构造启用的渠道
func Init(cfg *config.PaymentsConfig) error {
	channels = make(map[channelKey]Channel)
	byName = make(map[string]Channel)
	for key, fn := range constructors {
		ch, err := fn(cfg)
		if err != nil {
			return fmt.Errorf("bank channel (%s, %s): %w", key.Kind, key.Bank, err)
		}
		if ch == nil {
			continue
		}
		channels[key] = ch
		byName[ch.Name()] = ch
	}
	return nil
}

// Get 按 (支付类型, 银行) 取渠道
func Get(kind types.PaymentKind, bank types.BankType) Channel {
	return channels[channelKey{kind, bank}]
}

// GetByName 按渠道名取，回调路由用
func GetByName(name string) Channel {
	return byName[name]
}

// AvailableChannels 所有已启用的渠道名
func AvailableChannels() []string {
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	return names
}
