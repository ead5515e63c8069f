package handler

import (
	"errors"
	"net/http"
	"time"

	"fastpay/internal/config"
	"fastpay/internal/repository"
	"fastpay/internal/service"
	"fastpay/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	accountService   *service.AccountService
	admissionService *service.AdmissionService
	verifyService    *service.VerifyService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	return &Handler{
		accountService:   service.NewAccountService(db, rdb, cfg),
		admissionService: service.NewAdmissionService(db, rdb, cfg),
		verifyService:    service.NewVerifyService(db, rdb, cfg),
	}
}

// handleServiceError 服务层错误到 HTTP 状态码 + 业务码的统一映射
//
// 冻结/完整性不一致 -> 403，未找到 -> 404，重放 -> 409，
// 其余按服务器内部错误处理
func handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAccountFrozen):
		response.Forbidden(c, response.CodeAccountFrozen, "账户已冻结，请联系客服")
	case errors.Is(err, service.ErrIntegrityMismatch):
		response.Forbidden(c, response.CodeIntegrityMismatch, "交易ID不一致，账户已冻结")
	case errors.Is(err, service.ErrReplayDetected):
		response.Conflict(c, response.CodeReplayDetected, "nonce 已被使用，疑似重放")
	case errors.Is(err, service.ErrInvalidAmount):
		response.Error(c, http.StatusBadRequest, response.CodeInvalidAmount, err.Error())
	case errors.Is(err, repository.ErrTransactionNotFound):
		response.NotFound(c, response.CodeTxNotFound, "交易不存在")
	case errors.Is(err, repository.ErrAccountExists):
		response.Error(c, http.StatusBadRequest, response.CodeAccountExists, "账户已注册")
	case errors.Is(err, repository.ErrAccountNotFound):
		response.NotFound(c, response.CodeAccountNotFound, "账户不存在")
	default:
		response.ServerError(c, err.Error())
	}
}

// ============================================================
// 账户相关接口
// ============================================================

// RegisterUserRequest 注册请求
type RegisterUserRequest struct {
	UserID       string `json:"user_id" binding:"required"`
	PhoneNumber  string `json:"phone_number" binding:"required"`
	PINHash      string `json:"pin_hash" binding:"required"`
	PublicKeyPEM string `json:"public_key_pem"`
}

// RegisterUser 注册账户
// POST /api/v1/users/register
func (h *Handler) RegisterUser(c *gin.Context) {
	var req RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	err := h.accountService.Register(c.Request.Context(), &service.RegisterRequest{
		AccountID:    req.UserID,
		PhoneNumber:  req.PhoneNumber,
		PINHash:      req.PINHash,
		PublicKeyPEM: req.PublicKeyPEM,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"status":  "registered",
		"user_id": req.UserID,
	})
}

// FreezeAccountRequest 冻结上报请求
type FreezeAccountRequest struct {
	UserID  string `json:"user_id" binding:"required"`
	Reason  string `json:"reason"`
	Details string `json:"details"`
}

// FreezeAccount 冻结账户（幂等）
// POST /api/v1/users/me/freeze
func (h *Handler) FreezeAccount(c *gin.Context) {
	var req FreezeAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.accountService.Freeze(c.Request.Context(), req.UserID, req.Reason, req.Details); err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"status":  "frozen",
		"message": "账户已冻结，请联系客服",
	})
}

// AccountStatus 查询账户状态
// GET /api/v1/users/me/status?user_id=xxx
func (h *Handler) AccountStatus(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		response.ParamError(c, "user_id 参数不能为空")
		return
	}

	frozen, exists, err := h.accountService.Status(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"frozen": frozen,
		"exists": exists,
	})
}

// DeviceTokenRequest 设备令牌注册请求
type DeviceTokenRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Token    string `json:"token" binding:"required"`
	Platform string `json:"platform"`
}

// RegisterDeviceToken 注册设备推送令牌（后写覆盖）
// POST /api/v1/users/me/device-token
func (h *Handler) RegisterDeviceToken(c *gin.Context) {
	var req DeviceTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	err := h.accountService.RegisterDeviceToken(c.Request.Context(), req.UserID, req.Token, req.Platform)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"registered": true,
	})
}

// ============================================================
// 交易相关接口
// ============================================================

// SubmitOnline 提交在线交易
// POST /api/v1/transactions/online
//
// 【关键点】在线准入需要保证：
// 1. 冻结门禁：收付任一方冻结即拒绝
// 2. 重放拒绝：(sender, receiver, nonce) 唯一索引保证同一键最多一个赢家
// 3. 通知异步：到账通知走发件箱，绝不阻塞响应
func (h *Handler) SubmitOnline(c *gin.Context) {
	var req service.OnlineSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.admissionService.SubmitOnline(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, result)
}

// ListTransactions 查询账户交易列表（按接收时间倒序）
// GET /api/v1/transactions/online?user_id=xxx&since=RFC3339
func (h *Handler) ListTransactions(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		response.ParamError(c, "user_id 参数不能为空")
		return
	}

	var since *time.Time
	if sinceStr := c.Query("since"); sinceStr != "" {
		t, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			response.ParamError(c, "since 参数必须是 RFC3339 时间")
			return
		}
		since = &t
	}

	transactions, err := h.admissionService.ListTransactions(c.Request.Context(), userID, since)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"transactions": transactions,
	})
}

// SyncOffline 离线交易批量补传（部分成功是设计行为）
// POST /api/v1/transactions/offline/sync
func (h *Handler) SyncOffline(c *gin.Context) {
	var req service.OfflineSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.admissionService.SyncOffline(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, result)
}

// VerifyTransactionID 交易ID完整性校验
// POST /api/v1/transactions/verify-id
//
// 【关键点】四属性（sender, receiver, nonce, amount）全部精确匹配
// 且ID不一致时才冻结上报账户 —— 冻结不可逆，绝不允许误触发
func (h *Handler) VerifyTransactionID(c *gin.Context) {
	var req service.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.verifyService.VerifyTransactionID(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, result)
}
