package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"fastpay/internal/config"
	"fastpay/internal/infrastructure/cache"
	"fastpay/internal/infrastructure/lock"
	"fastpay/internal/model"
	"fastpay/internal/repository"
	"fastpay/pkg/idgen"
	"fastpay/pkg/signature"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrReplayDetected = errors.New("nonce 已被使用，疑似重放")
	ErrInvalidAmount  = errors.New("金额必须是大于0的精确十进制数")
)

// 离线批次单条拒绝原因（对外返回的枚举值）
const (
	RejectReasonDuplicate        = "duplicate"
	RejectReasonInvalidSignature = "invalid_signature"
	RejectReasonInvalidAmount    = "invalid_amount"
)

// AdmissionService 交易准入
//
// 在线提交和离线批量补传共用一套门禁和落库逻辑：
// 冻结检查 -> 去重 -> （离线）验签 -> 落库 + 发件箱，同一事务
type AdmissionService struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	gate        *frozenGate
	accountRepo *repository.AccountRepository
	txRepo      *repository.TransactionRepository
	outboxRepo  *repository.OutboxRepository
}

func NewAdmissionService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *AdmissionService {
	accountRepo := repository.NewAccountRepository(db)
	return &AdmissionService{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		gate: &frozenGate{
			accountRepo:       accountRepo,
			frozenCache:       cache.NewFrozenCache(redisClient, frozenCacheTTL(cfg)),
			requireRegistered: cfg.Business.RequireRegistered,
		},
		accountRepo: accountRepo,
		txRepo:      repository.NewTransactionRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

func frozenCacheTTL(cfg *config.Config) time.Duration {
	if cfg.Business.FrozenCacheTTLSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(cfg.Business.FrozenCacheTTLSeconds) * time.Second
}

type OnlineSubmitRequest struct {
	SenderID   string `json:"sender_id" binding:"required"`
	ReceiverID string `json:"receiver_id" binding:"required"`
	Amount     string `json:"amount" binding:"required"`
	Nonce      string `json:"nonce" binding:"required"`
	PINProof   string `json:"pin_verification_token"`
}

type OnlineSubmitResponse struct {
	TxID   string `json:"tx_id"`
	Status string `json:"status"`
}

// SubmitOnline 受理在线交易
//
// tx_id 由服务端生成（UUID，不可预测），客户端无权指定。
// nonce 冲突说明同一键被重复提交，按重放拒绝 —— 绝不允许静默二次成功
func (s *AdmissionService) SubmitOnline(ctx context.Context, req *OnlineSubmitRequest) (*OnlineSubmitResponse, error) {
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}

	// 收付双方任一方冻结则拒绝
	if err := s.gate.ensureNotFrozen(ctx, req.SenderID); err != nil {
		return nil, err
	}
	if err := s.gate.ensureNotFrozen(ctx, req.ReceiverID); err != nil {
		return nil, err
	}

	trans := &model.Transaction{
		TxID:       uuid.NewString(),
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		Nonce:      req.Nonce,
		Amount:     req.Amount,
		Origin:     model.TxOriginOnline,
		Status:     model.TxStatusCompleted,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.txRepo.Append(ctx, tx, trans); err != nil {
			return err
		}
		if err := s.enqueueNotify(ctx, tx, trans); err != nil {
			return fmt.Errorf("写入通知消息失败: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, ErrReplayDetected
		}
		return nil, err
	}

	log.Printf("在线交易受理成功: txID=%s, sender=%s, receiver=%s, amount=%s",
		trans.TxID, req.SenderID, req.ReceiverID, req.Amount)

	return &OnlineSubmitResponse{
		TxID:   trans.TxID,
		Status: trans.Status,
	}, nil
}

type OfflineTxItem struct {
	TxID                     string `json:"tx_id" binding:"required"`
	SenderID                 string `json:"sender_id" binding:"required"`
	ReceiverID               string `json:"receiver_id" binding:"required"`
	Amount                   string `json:"amount" binding:"required"`
	Nonce                    string `json:"nonce" binding:"required"`
	SenderSignature          string `json:"sender_signature" binding:"required"`
	ReceiverReceiptSignature string `json:"receiver_receipt_signature" binding:"required"`
}

type OfflineSyncRequest struct {
	AccountID    string          `json:"user_id" binding:"required"`
	Transactions []OfflineTxItem `json:"transactions" binding:"required"`
}

type RejectedItem struct {
	TxID   string `json:"tx_id"`
	Reason string `json:"reason"`
}

type OfflineSyncResponse struct {
	Accepted []string       `json:"accepted"`
	Rejected []RejectedItem `json:"rejected"`
}

// SyncOffline 受理离线交易批量补传
//
// 【关键点】部分成功是设计行为：逐条独立处理，单条重复/验签失败
// 只拒绝该条，绝不拖垮整个批次。提交账户冻结则整批拒绝。
// 按账户加补传锁，同一账户多台设备的批次串行化
func (s *AdmissionService) SyncOffline(ctx context.Context, req *OfflineSyncRequest) (*OfflineSyncResponse, error) {
	if err := s.gate.ensureNotFrozen(ctx, req.AccountID); err != nil {
		return nil, err
	}

	if s.redisClient != nil {
		syncLock := lock.NewSyncLock(s.redisClient, req.AccountID, uuid.NewString())
		if err := syncLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
			return nil, fmt.Errorf("系统繁忙，请稍后重试: %w", err)
		}
		defer syncLock.Unlock(ctx)
	}

	resp := &OfflineSyncResponse{
		Accepted: make([]string, 0, len(req.Transactions)),
		Rejected: make([]RejectedItem, 0),
	}

	now := time.Now()
	for i := range req.Transactions {
		item := &req.Transactions[i]

		if err := validateAmount(item.Amount); err != nil {
			resp.Rejected = append(resp.Rejected, RejectedItem{TxID: item.TxID, Reason: RejectReasonInvalidAmount})
			continue
		}

		// 预查询提前拦截重复，落库时唯一索引兜底并发竞争
		if _, err := s.txRepo.FindByKey(ctx, item.SenderID, item.ReceiverID, item.Nonce); err == nil {
			resp.Rejected = append(resp.Rejected, RejectedItem{TxID: item.TxID, Reason: RejectReasonDuplicate})
			continue
		} else if !errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, err
		}

		ok, err := s.verifySignatures(ctx, item)
		if err != nil {
			return nil, err
		}
		if !ok {
			resp.Rejected = append(resp.Rejected, RejectedItem{TxID: item.TxID, Reason: RejectReasonInvalidSignature})
			continue
		}

		syncedAt := now
		trans := &model.Transaction{
			TxID:            item.TxID,
			SenderID:        item.SenderID,
			ReceiverID:      item.ReceiverID,
			Nonce:           item.Nonce,
			Amount:          item.Amount,
			Origin:          model.TxOriginOffline,
			Status:          model.TxStatusCompleted,
			SenderSignature: item.SenderSignature,
			ReceiverReceipt: item.ReceiverReceiptSignature,
			SyncedAt:        &syncedAt,
		}

		err = s.db.Transaction(func(tx *gorm.DB) error {
			if err := s.txRepo.Append(ctx, tx, trans); err != nil {
				return err
			}
			return s.enqueueNotify(ctx, tx, trans)
		})
		if err != nil {
			if errors.Is(err, repository.ErrDuplicateKey) {
				// 与并发补传竞争落败，等价于重复
				resp.Rejected = append(resp.Rejected, RejectedItem{TxID: item.TxID, Reason: RejectReasonDuplicate})
				continue
			}
			return nil, err
		}

		resp.Accepted = append(resp.Accepted, item.TxID)
	}

	log.Printf("离线补传完成: account=%s, accepted=%d, rejected=%d",
		req.AccountID, len(resp.Accepted), len(resp.Rejected))

	return resp, nil
}

// ListTransactions 查询账户作为收付任一方的交易（冻结账户拒绝查询）
func (s *AdmissionService) ListTransactions(ctx context.Context, accountID string, since *time.Time) ([]*model.Transaction, error) {
	if err := s.gate.ensureNotFrozen(ctx, accountID); err != nil {
		return nil, err
	}
	return s.txRepo.ListForAccount(ctx, accountID, since)
}

// verifySignatures 校验离线交易的双签：发送方签名 + 收款方回执
//
// 双方各自用注册时登记的公钥验签。未登记公钥的一方：
// require_signatures 开启时直接判失败，关闭时跳过（已登记的仍强制校验）
func (s *AdmissionService) verifySignatures(ctx context.Context, item *OfflineTxItem) (bool, error) {
	msg := signature.CanonicalMessage(item.SenderID, item.ReceiverID, item.Amount, item.Nonce)

	ok, err := s.verifyWithAccountKey(ctx, item.SenderID, msg, item.SenderSignature)
	if err != nil || !ok {
		return false, err
	}
	return s.verifyWithAccountKey(ctx, item.ReceiverID, msg, item.ReceiverReceiptSignature)
}

func (s *AdmissionService) verifyWithAccountKey(ctx context.Context, accountID, msg, sigB64 string) (bool, error) {
	account, err := s.accountRepo.GetByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return !s.cfg.Business.RequireSignatures, nil
		}
		return false, err
	}
	if account.PublicKeyPEM == "" {
		return !s.cfg.Business.RequireSignatures, nil
	}

	ok, err := signature.Verify(msg, sigB64, account.PublicKeyPEM)
	if err != nil {
		// 签名/公钥格式非法一律按验签失败处理，不算系统错误
		log.Printf("验签异常: account=%s, err=%v", accountID, err)
		return false, nil
	}
	return ok, nil
}

// enqueueNotify 在交易事务内写入到账通知，由后台任务异步投递
func (s *AdmissionService) enqueueNotify(ctx context.Context, tx *gorm.DB, trans *model.Transaction) error {
	payload := map[string]interface{}{
		"tx_id":       trans.TxID,
		"sender_id":   trans.SenderID,
		"receiver_id": trans.ReceiverID,
		"amount":      trans.Amount,
		"origin":      trans.Origin,
	}
	payloadBytes, _ := json.Marshal(payload)

	msg := &model.OutboxMessage{
		MessageKey: idgen.GenerateNotifyNo(),
		Topic:      s.cfg.Kafka.Topic.PaymentReceived,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	}
	return s.outboxRepo.Create(ctx, tx, msg)
}

// validateAmount 校验金额是大于0的精确十进制数
// 校验后仍按原始字符串存储和比对 —— 金额是精确值，绝不转浮点
func validateAmount(amount string) error {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return ErrInvalidAmount
	}
	if d.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
