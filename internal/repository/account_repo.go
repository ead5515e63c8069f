package repository

import (
	"context"
	"errors"
	"time"

	"fastpay/internal/model"

	"gorm.io/gorm"
)

var (
	ErrAccountNotFound = errors.New("账户不存在")
	ErrAccountExists   = errors.New("账户已注册")
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Register 注册账户，account_id 或 phone_number 冲突返回 ErrAccountExists
func (r *AccountRepository) Register(ctx context.Context, account *model.Account) error {
	err := r.db.WithContext(ctx).Create(account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrAccountExists
		}
		return err
	}
	return nil
}

func (r *AccountRepository) GetByAccountID(ctx context.Context, accountID string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// IsFrozen 查询冻结状态
//
// 未注册账户按未冻结处理 —— 与原始线上行为一致；
// 要求预注册的部署通过 business.require_registered 在服务层另行拦截
func (r *AccountRepository) IsFrozen(ctx context.Context, accountID string) (bool, error) {
	account, err := r.GetByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return false, nil
		}
		return false, err
	}
	return account.Frozen, nil
}

// Freeze 冻结账户（幂等）
//
// 单条 UPDATE + frozen = 0 条件保证并发冻结安全：
// 已冻结或不存在的账户不会被重复更新，首次冻结的原因和时间不被覆盖
func (r *AccountRepository) Freeze(ctx context.Context, accountID, reason, details string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("account_id = ? AND frozen = ?", accountID, false).
		Updates(map[string]interface{}{
			"frozen":         true,
			"frozen_reason":  reason,
			"frozen_details": details,
			"frozen_at":      &now,
		}).Error
}
