package service

import (
	"testing"

	"fastpay/internal/config"
	"fastpay/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 服务层测试不依赖 Redis 和 Kafka：
// 冻结缓存和补传锁在 client 为 nil 时自动退化，通知只写发件箱

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.Account{},
		&model.Transaction{},
		&model.DeviceToken{},
		&model.OutboxMessage{},
	))
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{PaymentReceived: "payment.received"},
		},
		Business: config.BusinessConfig{
			MaxRetryCount: 3,
		},
	}
}
