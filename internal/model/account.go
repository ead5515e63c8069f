package model

import (
	"time"
)

// 冻结原因常量
const (
	FreezeReasonVerificationFailed = "offline_verification_failed" // 离线校验失败
	FreezeReasonTxIDMismatch       = "tx_id_mismatch"              // 交易ID不一致（防篡改熔断）
	FreezeReasonManualReport       = "manual_report"               // 用户/客服主动上报
)

// Account 用户账户表
// 记录账户身份与冻结状态，是准入校验的核心数据
//
// 【重要】冻结状态设计原则：
// 1. frozen 只能 false -> true，本服务范围内不提供解冻 —— 解冻属于客服/管理后台操作
// 2. 冻结必须记录原因和时间 —— 便于审计回溯
// 3. 未注册账户默认视为未冻结（可通过 business.require_registered 配置改为拒绝）
type Account struct {
	ID            int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID     string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"account_id"` // 账户ID，业务方传入
	PhoneNumber   string     `gorm:"type:varchar(32);uniqueIndex;not null" json:"phone_number"`
	PINHash       string     `gorm:"type:varchar(128);not null" json:"-"` // PIN 哈希（哈希算法由客户端/网关负责）
	PublicKeyPEM  string     `gorm:"type:text" json:"-"`                  // ECDSA 公钥（PEM），用于离线交易验签
	Frozen        bool       `gorm:"not null;default:false;index" json:"frozen"`
	FrozenReason  string     `gorm:"type:varchar(64)" json:"frozen_reason,omitempty"`
	FrozenDetails string     `gorm:"type:varchar(256)" json:"frozen_details,omitempty"`
	FrozenAt      *time.Time `json:"frozen_at,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastActiveAt  time.Time  `gorm:"autoUpdateTime" json:"last_active_at"`
}

func (Account) TableName() string {
	return "account"
}
