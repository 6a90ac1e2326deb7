package config

import (
	"fmt"
	"time"
)

// PaymentsConfig 由宿主系统加载后传入 commence.Start。
// 每个银行一个凭证块，对应后台配置的 PaymentMethod。
type PaymentsConfig struct {
	HostURL string `cfg:"HOST_URL"`

	Database struct {
		Driver string `cfg:"DRIVER" default:"mysql"` // mysql / postgres
		DSN    string `cfg:"DSN"`
	} `cfg:"DATABASE"`

	// Redis 仅用于可选的银行 token 缓存，不配置时每次调用独立取 token
	Redis struct {
		Enabled bool   `cfg:"ENABLED" default:"false"`
		Addr    string `cfg:"ADDR" default:"127.0.0.1:6379"`
	} `cfg:"REDIS"`

	UFC struct {
		Enabled     bool   `cfg:"ENABLED" default:"false"`
		MerchantURL string `cfg:"MERCHANT_URL" default:"https://ecommerce.ufc.ge:18443/ecomm2/MerchantHandler"`
		ClientURL   string `cfg:"CLIENT_URL" default:"https://ecommerce.ufc.ge/ecomm2/ClientHandler"`
		CertFile    string `cfg:"CERT_FILE"`
		KeyFile     string `cfg:"KEY_FILE"`
	} `cfg:"UFC"`

	BOG struct {
		Enabled        bool   `cfg:"ENABLED" default:"false"`
		BaseURL        string `cfg:"BASE_URL" default:"https://ipay.ge/opay/api/v1"`
		InstallmentURL string `cfg:"INSTALLMENT_URL" default:"https://installment.bog.ge/v1"`
		ClientID       string `cfg:"CLIENT_ID"`
		SecretKey      string `cfg:"SECRET_KEY"`
		MerchantID     string `cfg:"MERCHANT_ID"`
		Intent         string `cfg:"INTENT" default:"AUTHORIZE"`
		CaptureMethod  string `cfg:"CAPTURE_METHOD" default:"AUTOMATIC"`
	} `cfg:"BOG"`

	TBC struct {
		Enabled     bool   `cfg:"ENABLED" default:"false"`
		BaseURL     string `cfg:"BASE_URL" default:"https://api.tbcbank.ge"`
		ClientID    string `cfg:"CLIENT_ID"`
		SecretKey   string `cfg:"SECRET_KEY"`
		MerchantKey string `cfg:"MERCHANT_KEY"`
		CampaignID  string `cfg:"CAMPAIGN_ID"`
	} `cfg:"TBC"`

	Credo struct {
		Enabled    bool   `cfg:"ENABLED" default:"false"`
		BaseURL    string `cfg:"BASE_URL" default:"https://ganvadeba.credo.ge"`
		MerchantID string `cfg:"MERCHANT_ID"`
		SecretKey  string `cfg:"SECRET_KEY"`
	} `cfg:"CREDO"`

	Space struct {
		Enabled      bool   `cfg:"ENABLED" default:"false"`
		BaseURL      string `cfg:"BASE_URL" default:"https://api.spacebank.ge/api"`
		MerchantName string `cfg:"MERCHANT_NAME"`
		SecretKey    string `cfg:"SECRET_KEY"`
	} `cfg:"SPACE"`

	GC struct {
		Enabled    bool   `cfg:"ENABLED" default:"false"`
		BaseURL    string `cfg:"BASE_URL" default:"https://mpi.gc.ge"`
		PortalID   string `cfg:"PORTAL_ID"`
		AccountID  string `cfg:"ACCOUNT_ID"`
		MerchantID string `cfg:"MERCHANT_ID"`
		Username   string `cfg:"USERNAME"`
		Password   string `cfg:"PASSWORD"`
	} `cfg:"GC"`
}

var Config *PaymentsConfig

// Validate 启动时检查启用渠道的凭证，缺失直接失败而不是等到交易时
func (c *PaymentsConfig) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("payments config: database DSN is required")
	}
	if c.UFC.Enabled && (c.UFC.CertFile == "" || c.UFC.KeyFile == "") {
		return fmt.Errorf("payments config: ufc client certificate is required")
	}
	if c.BOG.Enabled && (c.BOG.ClientID == "" || c.BOG.SecretKey == "") {
		return fmt.Errorf("payments config: bog client credentials are required")
	}
	if c.TBC.Enabled && (c.TBC.ClientID == "" || c.TBC.SecretKey == "" || c.TBC.MerchantKey == "") {
		return fmt.Errorf("payments config: tbc credentials are required")
	}
	if c.Credo.Enabled && (c.Credo.MerchantID == "" || c.Credo.SecretKey == "") {
		return fmt.Errorf("payments config: credo credentials are required")
	}
	if c.Space.Enabled && (c.Space.MerchantName == "" || c.Space.SecretKey == "") {
		return fmt.Errorf("payments config: space credentials are required")
	}
	if c.GC.Enabled && (c.GC.MerchantID == "" || c.GC.PortalID == "") {
		return fmt.Errorf("payments config: georgian card credentials are required")
	}
	return nil
}

// HTTP 出站调用的统一超时，单个银行变慢不能拖住整个对账扫描
const (
	ConnectTimeout = 5 * time.Second
	ReadTimeout    = 10 * time.Second
)
