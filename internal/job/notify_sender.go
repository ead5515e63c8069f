package job

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"fastpay/internal/config"
	"fastpay/internal/infrastructure/mq"
	"fastpay/internal/model"
	"fastpay/internal/repository"

	"gorm.io/gorm"
)

// NotifySender 到账通知投递任务
//
// 轮询发件箱的 PENDING 消息投递到 Kafka，下游推送服务消费后发 FCM/APNs。
// 投递是尽力而为：失败只影响通知，绝不回头影响已受理的交易。
// 投递前查询收款方设备令牌一并带上 —— 在投递时查而不是受理时查，
// 设备令牌后注册的也能收到通知
type NotifySender struct {
	db         *gorm.DB
	outboxRepo *repository.OutboxRepository
	deviceRepo *repository.DeviceTokenRepository
	cfg        *config.Config
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
}

func NewNotifySender(db *gorm.DB, cfg *config.Config) *NotifySender {
	return &NotifySender{
		db:         db,
		outboxRepo: repository.NewOutboxRepository(db),
		deviceRepo: repository.NewDeviceTokenRepository(db),
		cfg:        cfg,
		stopCh:     make(chan struct{}),
		interval:   100 * time.Millisecond,
		batchSize:  100,
	}
}

func (s *NotifySender) Start(ctx context.Context) {
	log.Println("[NotifySender] 通知投递任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[NotifySender] 收到停止信号，任务退出")
			return
		case <-s.stopCh:
			log.Println("[NotifySender] 任务停止")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *NotifySender) Stop() {
	close(s.stopCh)
}

func (s *NotifySender) processPendingMessages(ctx context.Context) {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		log.Printf("[NotifySender] 查询消息失败: %v", err)
		return
	}

	if len(messages) == 0 {
		return
	}

	for _, msg := range messages {
		s.sendMessage(ctx, msg)
	}
}

func (s *NotifySender) sendMessage(ctx context.Context, msg *model.OutboxMessage) {
	payload := s.enrichWithDeviceToken(ctx, msg.Payload)

	err := mq.SendMessage(msg.Topic, msg.MessageKey, payload)

	if err == nil {
		if updateErr := s.outboxRepo.UpdateStatus(ctx, msg.ID, model.OutboxStatusSent); updateErr != nil {
			log.Printf("[NotifySender] 更新消息状态失败: id=%d, err=%v", msg.ID, updateErr)
		} else {
			log.Printf("[NotifySender] 通知投递成功: id=%d, key=%s", msg.ID, msg.MessageKey)
		}
		return
	}

	log.Printf("[NotifySender] 通知投递失败: id=%d, err=%v", msg.ID, err)

	if err := s.outboxRepo.IncrementRetryCount(ctx, msg.ID); err != nil {
		log.Printf("[NotifySender] 增加重试次数失败: id=%d, err=%v", msg.ID, err)
	}

	if msg.RetryCount+1 >= s.cfg.Business.MaxRetryCount {
		if err := s.outboxRepo.MarkAsFailed(ctx, msg.ID); err != nil {
			log.Printf("[NotifySender] 标记消息失败状态失败: id=%d, err=%v", msg.ID, err)
		} else {
			log.Printf("[NotifySender] 消息超过最大重试次数，标记为失败: id=%d", msg.ID)
		}
	}
}

// enrichWithDeviceToken 按收款方查设备令牌并附加到通知载荷
// 未注册令牌的账户照常投递（下游降级为站内信），与原始行为一致
func (s *NotifySender) enrichWithDeviceToken(ctx context.Context, rawPayload string) string {
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(rawPayload), &payload); err != nil {
		return rawPayload
	}

	receiverID, _ := payload["receiver_id"].(string)
	if receiverID == "" {
		return rawPayload
	}

	device, err := s.deviceRepo.GetByAccountID(ctx, receiverID)
	if err != nil {
		log.Printf("[NotifySender] 查询设备令牌失败: account=%s, err=%v", receiverID, err)
		return rawPayload
	}
	if device == nil {
		log.Printf("[NOTIFY] %s: 无设备令牌，降级投递", receiverID)
		return rawPayload
	}

	payload["device_token"] = device.Token
	payload["platform"] = device.Platform

	enriched, err := json.Marshal(payload)
	if err != nil {
		return rawPayload
	}
	return string(enriched)
}
