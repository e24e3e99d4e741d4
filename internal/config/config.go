package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port   int   `mapstructure:"port"`
	NodeID int64 `mapstructure:"node_id"` // snowflake 节点ID，多实例互不相同
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	SettlementEvent string `mapstructure:"settlement_event"`
}

type BusinessConfig struct {
	Recharge RechargeConfig `mapstructure:"recharge"`
	Withdraw WithdrawConfig `mapstructure:"withdraw"`
	Outbox   OutboxConfig   `mapstructure:"outbox"`
}

// ChannelRate 渠道费率：百分比费率（基点，1bp = 0.01%）+ 上下限钳制（分）
type ChannelRate struct {
	Name      string `mapstructure:"name"`
	FeeRateBp int64  `mapstructure:"fee_rate_bp"`
	MinFee    int64  `mapstructure:"min_fee"`
	MaxFee    int64  `mapstructure:"max_fee"`
	TaxRateBp int64  `mapstructure:"tax_rate_bp"` // 仅提现渠道使用
}

type RechargeConfig struct {
	ExpireMinutes int           `mapstructure:"expire_minutes"` // 充值单有效期，默认30分钟
	Channels      []ChannelRate `mapstructure:"channels"`
}

// Channel 按名称查找充值渠道
func (c *RechargeConfig) Channel(name string) (ChannelRate, bool) {
	for _, ch := range c.Channels {
		if ch.Name == name {
			return ch, true
		}
	}
	return ChannelRate{}, false
}

type WithdrawConfig struct {
	MinAmount        int64         `mapstructure:"min_amount"`         // 单笔最低提现金额（分）
	DailyLimitCount  int64         `mapstructure:"daily_limit_count"`  // 24小时滚动窗口内笔数上限
	DailyLimitAmount int64         `mapstructure:"daily_limit_amount"` // 24小时滚动窗口内金额上限（分）
	Channels         []ChannelRate `mapstructure:"channels"`
}

// Channel 按名称查找提现渠道
func (c *WithdrawConfig) Channel(name string) (ChannelRate, bool) {
	for _, ch := range c.Channels {
		if ch.Name == name {
			return ch, true
		}
	}
	return ChannelRate{}, false
}

type OutboxConfig struct {
	MaxRetryCount int `mapstructure:"max_retry_count"`
}

var GlobalConfig *Config

// LoadConfig 加载配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	GlobalConfig = config
	return config
}
