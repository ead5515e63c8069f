package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"fastpay/internal/config"
	"fastpay/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// HTTP 层测试走完整路由，不依赖 Redis/Kafka（缓存和锁自动退化，通知只写发件箱）

func setupTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
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

	cfg := &config.Config{
		Kafka:    config.KafkaConfig{Topic: config.KafkaTopicConfig{PaymentReceived: "payment.received"}},
		Business: config.BusinessConfig{MaxRetryCount: 3},
	}
	return SetupRouter(db, nil, cfg), db
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var envelope struct {
		Code    int                    `json:"code"`
		Message string                 `json:"message"`
		Data    map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Data
}

func TestSubmitOnlineEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/transactions/online", gin.H{
		"sender_id":   "alice",
		"receiver_id": "bob",
		"amount":      "10.00",
		"nonce":       "n1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData(t, rec)
	assert.NotEmpty(t, data["tx_id"])
	assert.Equal(t, "completed", data["status"])

	// 同一键重放 -> 409
	rec = doJSON(t, router, http.MethodPost, "/api/v1/transactions/online", gin.H{
		"sender_id":   "alice",
		"receiver_id": "bob",
		"amount":      "10.00",
		"nonce":       "n1",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestVerifyEndpointMismatchReturns403(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/users/register", gin.H{
		"user_id": "alice", "phone_number": "13800000001", "pin_hash": "h",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/transactions/online", gin.H{
		"sender_id": "alice", "receiver_id": "bob", "amount": "10.00", "nonce": "n1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// 属性不匹配 -> 404，不冻结
	rec = doJSON(t, router, http.MethodPost, "/api/v1/transactions/verify-id", gin.H{
		"user_id": "alice", "transaction_id": "whatever",
		"sender_id": "alice", "receiver_id": "bob", "nonce": "n1", "amount": "10.01",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// 四属性匹配但ID伪造 -> 403 + 冻结
	rec = doJSON(t, router, http.MethodPost, "/api/v1/transactions/verify-id", gin.H{
		"user_id": "alice", "transaction_id": "fabricated",
		"sender_id": "alice", "receiver_id": "bob", "nonce": "n1", "amount": "10.00",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// 冻结后的提交 -> 403
	rec = doJSON(t, router, http.MethodPost, "/api/v1/transactions/online", gin.H{
		"sender_id": "alice", "receiver_id": "bob", "amount": "1.00", "nonce": "n2",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// 状态接口反映冻结
	rec = doJSON(t, router, http.MethodGet, "/api/v1/users/me/status?user_id=alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, true, data["frozen"])
	assert.Equal(t, true, data["exists"])
}

func TestOfflineSyncEndpointPartialSuccess(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/transactions/online", gin.H{
		"sender_id": "alice", "receiver_id": "bob", "amount": "10.00", "nonce": "n1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/transactions/offline/sync", gin.H{
		"user_id": "alice",
		"transactions": []gin.H{
			{
				"tx_id": "off-1", "sender_id": "alice", "receiver_id": "bob",
				"amount": "5.00", "nonce": "n1",
				"sender_signature": "c2ln", "receiver_receipt_signature": "c2ln",
			},
			{
				"tx_id": "off-2", "sender_id": "alice", "receiver_id": "bob",
				"amount": "5.00", "nonce": "n2",
				"sender_signature": "c2ln", "receiver_receipt_signature": "c2ln",
			},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData(t, rec)
	accepted := data["accepted"].([]interface{})
	rejected := data["rejected"].([]interface{})
	require.Len(t, accepted, 1)
	require.Len(t, rejected, 1)
	assert.Equal(t, "off-2", accepted[0])

	first := rejected[0].(map[string]interface{})
	assert.Equal(t, "off-1", first["tx_id"])
	assert.Equal(t, "duplicate", first["reason"])
}

func TestRegisterEndpointDuplicate(t *testing.T) {
	router, _ := setupTestRouter(t)

	body := gin.H{"user_id": "alice", "phone_number": "13800000001", "pin_hash": "h"}
	rec := doJSON(t, router, http.MethodPost, "/api/v1/users/register", body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/users/register", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeviceTokenEndpoint(t *testing.T) {
	router, db := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/users/me/device-token", gin.H{
		"user_id": "alice", "token": "fcm-token-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, true, data["registered"])

	var token model.DeviceToken
	require.NoError(t, db.Where("account_id = ?", "alice").First(&token).Error)
	assert.Equal(t, "fcm-token-1", token.Token)
	assert.Equal(t, model.PlatformAndroid, token.Platform)
}

func TestListEndpointOrdering(t *testing.T) {
	router, _ := setupTestRouter(t)

	for _, nonce := range []string{"n1", "n2"} {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/transactions/online", gin.H{
			"sender_id": "alice", "receiver_id": "bob", "amount": "10.00", "nonce": nonce,
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doJSON(t, router, http.MethodGet, "/api/v1/transactions/online?user_id=alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeData(t, rec)
	transactions := data["transactions"].([]interface{})
	require.Len(t, transactions, 2)

	// 最新的在前
	newest := transactions[0].(map[string]interface{})
	assert.Equal(t, "n2", newest["nonce"])

	// 非法 since 参数
	rec = doJSON(t, router, http.MethodGet, "/api/v1/transactions/online?user_id=alice&since=garbage", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
