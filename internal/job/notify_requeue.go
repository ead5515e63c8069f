package job

import (
	"context"
	"log"
	"time"

	"fastpay/internal/config"
	"fastpay/internal/repository"

	"gorm.io/gorm"
)

// NotifyRequeueJob 失败通知重新入队任务
//
// 超过最大重试次数的消息被 NotifySender 标记为 FAILED（通常是 Kafka
// 短暂不可用）。本任务定期扫描冷却时间之前的失败消息重新置为 PENDING，
// 给它们一轮新的重试机会。重试策略完全是投递侧内部的事，交易主流程无感知
type NotifyRequeueJob struct {
	db         *gorm.DB
	outboxRepo *repository.OutboxRepository
	cfg        *config.Config
	interval   time.Duration
	batchSize  int
}

func NewNotifyRequeueJob(db *gorm.DB, cfg *config.Config) *NotifyRequeueJob {
	return &NotifyRequeueJob{
		db:         db,
		outboxRepo: repository.NewOutboxRepository(db),
		cfg:        cfg,
		interval:   time.Minute,
		batchSize:  100,
	}
}

func (j *NotifyRequeueJob) Start(ctx context.Context) {
	log.Println("[NotifyRequeue] 失败通知重入队任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[NotifyRequeue] 收到停止信号，任务退出")
			return
		case <-ticker.C:
			j.requeueFailedMessages(ctx)
		}
	}
}

func (j *NotifyRequeueJob) requeueFailedMessages(ctx context.Context) {
	cooldown := time.Duration(j.cfg.Business.RequeueCooldownMinutes) * time.Minute
	if cooldown <= 0 {
		cooldown = 5 * time.Minute
	}

	messages, err := j.outboxRepo.GetFailedBefore(ctx, time.Now().Add(-cooldown), j.batchSize)
	if err != nil {
		log.Printf("[NotifyRequeue] 查询失败消息失败: %v", err)
		return
	}

	for _, msg := range messages {
		if err := j.outboxRepo.Requeue(ctx, msg.ID); err != nil {
			log.Printf("[NotifyRequeue] 重新入队失败: id=%d, err=%v", msg.ID, err)
			continue
		}
		log.Printf("[NotifyRequeue] 消息重新入队: id=%d, key=%s", msg.ID, msg.MessageKey)
	}
}
