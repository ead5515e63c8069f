package model

import (
	"time"
)

const (
	PlatformAndroid = "android"
	PlatformIOS     = "ios"
)

// DeviceToken 设备推送令牌表
// 账户与推送令牌一对一，重复注册时后写覆盖
type DeviceToken struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"account_id"`
	Token     string    `gorm:"type:varchar(256);not null" json:"token"`
	Platform  string    `gorm:"type:varchar(16);not null;default:android" json:"platform"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (DeviceToken) TableName() string {
	return "device_token"
}
