package repository

import (
	"context"
	"errors"

	"fastpay/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DeviceTokenRepository struct {
	db *gorm.DB
}

func NewDeviceTokenRepository(db *gorm.DB) *DeviceTokenRepository {
	return &DeviceTokenRepository{db: db}
}

// Upsert 注册/更新设备令牌，同一账户后写覆盖
func (r *DeviceTokenRepository) Upsert(ctx context.Context, token *model.DeviceToken) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"token", "platform", "updated_at"}),
		}).
		Create(token).Error
}

// GetByAccountID 查询账户的设备令牌，未注册返回 nil
func (r *DeviceTokenRepository) GetByAccountID(ctx context.Context, accountID string) (*model.DeviceToken, error) {
	var token model.DeviceToken
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}
