package job

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"fastpay/internal/config"
	"fastpay/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.DeviceToken{},
		&model.OutboxMessage{},
	))
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Business: config.BusinessConfig{
			MaxRetryCount:          3,
			RequeueCooldownMinutes: 5,
		},
	}
}

func TestEnrichWithDeviceToken(t *testing.T) {
	db := newTestDB(t)
	sender := NewNotifySender(db, testConfig())
	ctx := context.Background()

	require.NoError(t, db.Create(&model.DeviceToken{
		AccountID: "bob",
		Token:     "fcm-token",
		Platform:  model.PlatformAndroid,
	}).Error)

	raw := `{"tx_id":"tx-1","receiver_id":"bob","amount":"10.00"}`
	enriched := sender.enrichWithDeviceToken(ctx, raw)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(enriched), &payload))
	assert.Equal(t, "fcm-token", payload["device_token"])
	assert.Equal(t, model.PlatformAndroid, payload["platform"])

	// 无设备令牌时原样投递（下游降级）
	raw = `{"tx_id":"tx-2","receiver_id":"carol","amount":"1.00"}`
	assert.Equal(t, raw, sender.enrichWithDeviceToken(ctx, raw))
}

func TestRequeueFailedMessages(t *testing.T) {
	db := newTestDB(t)
	j := NewNotifyRequeueJob(db, testConfig())
	ctx := context.Background()

	old := &model.OutboxMessage{
		MessageKey: "NTF-old",
		Topic:      "payment.received",
		Payload:    "{}",
		Status:     model.OutboxStatusFailed,
		RetryCount: 3,
		UpdatedAt:  time.Now().Add(-10 * time.Minute),
	}
	fresh := &model.OutboxMessage{
		MessageKey: "NTF-fresh",
		Topic:      "payment.received",
		Payload:    "{}",
		Status:     model.OutboxStatusFailed,
		RetryCount: 3,
	}
	require.NoError(t, db.Create(old).Error)
	require.NoError(t, db.Create(fresh).Error)

	j.requeueFailedMessages(ctx)

	// 过了冷却期的重新入队并清零重试计数
	var got model.OutboxMessage
	require.NoError(t, db.First(&got, old.ID).Error)
	assert.Equal(t, model.OutboxStatusPending, got.Status)
	assert.Equal(t, 0, got.RetryCount)

	// 冷却期内的保持失败状态
	var gotFresh model.OutboxMessage
	require.NoError(t, db.First(&gotFresh, fresh.ID).Error)
	assert.Equal(t, model.OutboxStatusFailed, gotFresh.Status)
}
