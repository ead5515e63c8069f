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
	Port int `mapstructure:"port"`
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
	PaymentReceived string `mapstructure:"payment_received"`
}

type BusinessConfig struct {
	// RequireRegistered 为 true 时，交易双方必须是已注册账户；
	// 默认 false：未注册账户按未冻结处理（与原始线上行为一致）
	RequireRegistered bool `mapstructure:"require_registered"`
	// RequireSignatures 为 true 时，离线交易双方必须已登记公钥且验签通过；
	// 为 false 时，未登记公钥的一方跳过验签（已登记的仍然强制校验）
	RequireSignatures      bool `mapstructure:"require_signatures"`
	MaxRetryCount          int  `mapstructure:"max_retry_count"`
	FrozenCacheTTLSeconds  int  `mapstructure:"frozen_cache_ttl_seconds"`
	RequeueCooldownMinutes int  `mapstructure:"requeue_cooldown_minutes"`
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
