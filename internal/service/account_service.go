package service

import (
	"context"
	"errors"

	"fastpay/internal/config"
	"fastpay/internal/infrastructure/cache"
	"fastpay/internal/model"
	"fastpay/internal/repository"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// AccountService 账户注册、冻结上报、状态查询与设备令牌管理
type AccountService struct {
	db          *gorm.DB
	cfg         *config.Config
	gate        *frozenGate
	accountRepo *repository.AccountRepository
	deviceRepo  *repository.DeviceTokenRepository
}

func NewAccountService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *AccountService {
	accountRepo := repository.NewAccountRepository(db)
	return &AccountService{
		db:  db,
		cfg: cfg,
		gate: &frozenGate{
			accountRepo:       accountRepo,
			frozenCache:       cache.NewFrozenCache(redisClient, frozenCacheTTL(cfg)),
			requireRegistered: cfg.Business.RequireRegistered,
		},
		accountRepo: accountRepo,
		deviceRepo:  repository.NewDeviceTokenRepository(db),
	}
}

type RegisterRequest struct {
	AccountID    string `json:"user_id" binding:"required"`
	PhoneNumber  string `json:"phone_number" binding:"required"`
	PINHash      string `json:"pin_hash" binding:"required"`
	PublicKeyPEM string `json:"public_key_pem"` // 可选；登记后离线交易强制验签
}

// Register 注册账户，account_id / phone_number 已存在则返回 ErrAccountExists
func (s *AccountService) Register(ctx context.Context, req *RegisterRequest) error {
	return s.accountRepo.Register(ctx, &model.Account{
		AccountID:    req.AccountID,
		PhoneNumber:  req.PhoneNumber,
		PINHash:      req.PINHash,
		PublicKeyPEM: req.PublicKeyPEM,
	})
}

// Freeze 冻结账户（幂等），用于用户/风控上报
func (s *AccountService) Freeze(ctx context.Context, accountID, reason, details string) error {
	if reason == "" {
		reason = model.FreezeReasonVerificationFailed
	}
	if err := s.accountRepo.Freeze(ctx, accountID, reason, details); err != nil {
		return err
	}
	s.gate.markFrozen(ctx, accountID)
	return nil
}

// Status 查询账户冻结状态；未注册账户返回 (false, false)
func (s *AccountService) Status(ctx context.Context, accountID string) (frozen bool, exists bool, err error) {
	account, err := s.accountRepo.GetByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return false, false, nil
		}
		return false, false, err
	}
	return account.Frozen, true, nil
}

// RegisterDeviceToken 注册设备推送令牌，后写覆盖；冻结账户拒绝
func (s *AccountService) RegisterDeviceToken(ctx context.Context, accountID, token, platform string) error {
	if err := s.gate.ensureNotFrozen(ctx, accountID); err != nil {
		return err
	}
	if platform == "" {
		platform = model.PlatformAndroid
	}
	return s.deviceRepo.Upsert(ctx, &model.DeviceToken{
		AccountID: accountID,
		Token:     token,
		Platform:  platform,
	})
}
