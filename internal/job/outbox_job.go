package job

import (
	"context"
	"time"

	"mallwallet/internal/infrastructure/mq"
	"mallwallet/internal/model"
	"mallwallet/internal/store"

	"github.com/sirupsen/logrus"
)

// OutboxJob 发件箱转投任务：轮询 PENDING 事件投递到 Kafka。
// 事件与资金变动同事务落库，这里只负责至少一次投递；
// 重复投递由下游按事件幂等消费
type OutboxJob struct {
	store    store.Store
	producer *mq.Producer
	interval time.Duration
	batch    int
	maxRetry int
	log      *logrus.Logger
	stop     chan struct{}
}

func NewOutboxJob(st store.Store, producer *mq.Producer, maxRetry int, log *logrus.Logger) *OutboxJob {
	if maxRetry <= 0 {
		maxRetry = 5
	}
	return &OutboxJob{
		store:    st,
		producer: producer,
		interval: 3 * time.Second,
		batch:    50,
		maxRetry: maxRetry,
		log:      log,
		stop:     make(chan struct{}),
	}
}

func (j *OutboxJob) Start() {
	go j.run()
	j.log.Info("结算事件投递任务已启动")
}

func (j *OutboxJob) Stop() {
	close(j.stop)
}

func (j *OutboxJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stop:
			return
		case <-ticker.C:
			j.deliver()
		}
	}
}

func (j *OutboxJob) deliver() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	messages, err := j.store.GetPendingOutboxMessages(ctx, j.batch)
	if err != nil {
		j.log.WithError(err).Error("查询待投递事件失败")
		return
	}

	for _, msg := range messages {
		if err := j.producer.Send(msg.Topic, msg.MessageKey, msg.Payload); err != nil {
			j.log.WithFields(logrus.Fields{
				"outbox_id": msg.ID,
				"topic":     msg.Topic,
				"error":     err,
			}).Warn("投递结算事件失败")

			if msg.RetryCount+1 >= j.maxRetry {
				// 超过重试上限标记 FAILED，等人工介入，不再占用轮询
				if err := j.store.UpdateOutboxStatus(ctx, msg.ID, model.OutboxStatusFailed); err != nil {
					j.log.WithError(err).Error("标记事件失败状态出错")
				}
			} else if err := j.store.IncrOutboxRetry(ctx, msg.ID); err != nil {
				j.log.WithError(err).Error("累加事件重试计数出错")
			}
			continue
		}

		if err := j.store.UpdateOutboxStatus(ctx, msg.ID, model.OutboxStatusSent); err != nil {
			j.log.WithError(err).Error("标记事件已发送出错")
		}
	}
}
