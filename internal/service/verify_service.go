package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"fastpay/internal/config"
	"fastpay/internal/infrastructure/cache"
	"fastpay/internal/model"
	"fastpay/internal/repository"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

var (
	ErrIntegrityMismatch = errors.New("交易ID不一致，账户已冻结")
)

// VerifyService 交易ID完整性校验
//
// 【设计思考】这是全系统唯一"校验失败自动冻结账户"的地方，定位类似
// 入侵检测的熔断器：客户端声称的交易ID与服务端权威记录不一致，
// 说明客户端被篡改或出现严重故障，立即冻结上报账户。
//
// 冻结不可逆（本服务范围内），所以匹配谓词必须保守：
// sender、receiver、nonce、amount 四个属性全部精确相等才进入ID比对，
// 任一属性不一致按"未找到"返回 —— 绝不允许误伤正常账户。
type VerifyService struct {
	db          *gorm.DB
	cfg         *config.Config
	gate        *frozenGate
	accountRepo *repository.AccountRepository
	txRepo      *repository.TransactionRepository
}

func NewVerifyService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *VerifyService {
	accountRepo := repository.NewAccountRepository(db)
	return &VerifyService{
		db:  db,
		cfg: cfg,
		gate: &frozenGate{
			accountRepo:       accountRepo,
			frozenCache:       cache.NewFrozenCache(redisClient, frozenCacheTTL(cfg)),
			requireRegistered: cfg.Business.RequireRegistered,
		},
		accountRepo: accountRepo,
		txRepo:      repository.NewTransactionRepository(db),
	}
}

type VerifyRequest struct {
	UserID        string `json:"user_id" binding:"required"`
	TransactionID string `json:"transaction_id" binding:"required"`
	SenderID      string `json:"sender_id" binding:"required"`
	ReceiverID    string `json:"receiver_id" binding:"required"`
	Nonce         string `json:"nonce" binding:"required"`
	Amount        string `json:"amount" binding:"required"`
}

type VerifyResponse struct {
	Verified      bool   `json:"verified"`
	TransactionID string `json:"transaction_id"`
}

// VerifyTransactionID 校验客户端声称的交易ID与服务端记录是否一致
func (s *VerifyService) VerifyTransactionID(ctx context.Context, req *VerifyRequest) (*VerifyResponse, error) {
	if err := s.gate.ensureNotFrozen(ctx, req.UserID); err != nil {
		return nil, err
	}

	trans, err := s.txRepo.FindByKey(ctx, req.SenderID, req.ReceiverID, req.Nonce)
	if err != nil {
		return nil, err // 含 ErrTransactionNotFound：交易可能根本没完成，不是安全事件
	}

	// 金额按字符串精确比对；不一致按未找到处理，绝不触发冻结
	if trans.Amount != req.Amount {
		return nil, repository.ErrTransactionNotFound
	}

	if trans.TxID != req.TransactionID {
		details := fmt.Sprintf("claimed=%s, stored=%s, key=(%s,%s,%s)",
			req.TransactionID, trans.TxID, req.SenderID, req.ReceiverID, req.Nonce)
		if err := s.accountRepo.Freeze(ctx, req.UserID, model.FreezeReasonTxIDMismatch, details); err != nil {
			return nil, fmt.Errorf("冻结账户失败: %w", err)
		}
		s.gate.markFrozen(ctx, req.UserID)

		log.Printf("[SECURITY] 交易ID不一致，已冻结账户: account=%s, %s", req.UserID, details)
		return nil, ErrIntegrityMismatch
	}

	return &VerifyResponse{
		Verified:      true,
		TransactionID: trans.TxID,
	}, nil
}
