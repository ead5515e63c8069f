package repository

import (
	"context"
	"errors"
	"time"

	"fastpay/internal/model"

	"gorm.io/gorm"
)

var (
	ErrTransactionNotFound = errors.New("交易不存在")
	ErrDuplicateKey        = errors.New("交易键重复")
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Append 追加一条交易记录
//
// 【关键点】去重不靠"先查后插"：(sender_id, receiver_id, nonce) 的唯一索引
// 让并发提交同一键时数据库只放行一个赢家，输家拿到 ErrDuplicateKey。
// 服务层的预查询只是为了提前给出友好错误，不承担正确性
func (r *TransactionRepository) Append(ctx context.Context, tx *gorm.DB, trans *model.Transaction) error {
	if tx == nil {
		tx = r.db
	}
	err := tx.WithContext(ctx).Create(trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateKey
		}
		return err
	}
	return nil
}

// FindByKey 按去重键 (sender, receiver, nonce) 精确查找
func (r *TransactionRepository) FindByKey(ctx context.Context, senderID, receiverID, nonce string) (*model.Transaction, error) {
	var trans model.Transaction
	err := r.db.WithContext(ctx).
		Where("sender_id = ? AND receiver_id = ? AND nonce = ?", senderID, receiverID, nonce).
		First(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &trans, nil
}

// ListForAccount 查询账户作为收付任一方的交易，按接收时间倒序
func (r *TransactionRepository) ListForAccount(ctx context.Context, accountID string, since *time.Time) ([]*model.Transaction, error) {
	query := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("sender_id = ? OR receiver_id = ?", accountID, accountID)

	if since != nil {
		query = query.Where("created_at >= ?", *since)
	}

	var transactions []*model.Transaction
	err := query.Order("created_at DESC, id DESC").Find(&transactions).Error
	return transactions, err
}
