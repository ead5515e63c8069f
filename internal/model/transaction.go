package model

import (
	"time"
)

// ============================================================================
// 交易来源/状态常量
// ============================================================================

const (
	TxOriginOnline  = "online"  // 在线提交
	TxOriginOffline = "offline" // 离线补传（设备恢复联网后同步）
)

const (
	TxStatusCompleted = "completed" // 当前范围内交易一经接收即完成，无中间状态
)

// ============================================================================
// 交易记录实体
// ============================================================================

// Transaction 交易记录表
// 在线与离线交易共用一张表，是重放检测和完整性校验的唯一依据
//
// 【重要】交易表设计原则：
// 1. 只追加，不修改，不删除 —— 保证审计可追溯
// 2. (sender_id, receiver_id, nonce) 全表唯一 —— 这是唯一的去重键，
//    唯一索引保证并发提交时同一键最多只有一个赢家
// 3. amount 保存为精确十进制字符串 —— 金额绝不允许使用浮点类型
// 4. created_at / synced_at 记录的是服务端接收时间，不是客户端创建时间
type Transaction struct {
	ID              int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	TxID            string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"tx_id"` // 在线交易由服务端生成，离线交易由客户端携带
	SenderID        string     `gorm:"type:varchar(64);not null;index;uniqueIndex:uk_tx_key,priority:1" json:"sender_id"`
	ReceiverID      string     `gorm:"type:varchar(64);not null;index;uniqueIndex:uk_tx_key,priority:2" json:"receiver_id"`
	Nonce           string     `gorm:"type:varchar(64);not null;uniqueIndex:uk_tx_key,priority:3" json:"nonce"` // 不透明唯一性令牌，不做时间语义解析
	Amount          string     `gorm:"type:varchar(32);not null" json:"amount"`
	Origin          string     `gorm:"type:varchar(16);not null" json:"origin"`
	Status          string     `gorm:"type:varchar(20);not null;default:completed" json:"status"`
	SenderSignature string     `gorm:"type:text" json:"sender_signature,omitempty"` // 离线交易的发送方签名（base64 DER）
	ReceiverReceipt string     `gorm:"type:text" json:"receiver_receipt,omitempty"` // 离线交易的收款方回执签名
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	SyncedAt        *time.Time `json:"synced_at,omitempty"` // 仅离线交易：服务端收到补传的时间
}

func (Transaction) TableName() string {
	return "transaction"
}
