package job

import (
	"context"
	"time"

	"mallwallet/internal/service"

	"github.com/sirupsen/logrus"
)

// RechargeTimeoutJob 定时扫描过期未支付的充值单并取消
type RechargeTimeoutJob struct {
	recharge *service.RechargeService
	interval time.Duration
	batch    int
	log      *logrus.Logger
	stop     chan struct{}
}

func NewRechargeTimeoutJob(recharge *service.RechargeService, log *logrus.Logger) *RechargeTimeoutJob {
	return &RechargeTimeoutJob{
		recharge: recharge,
		interval: time.Minute,
		batch:    100,
		log:      log,
		stop:     make(chan struct{}),
	}
}

func (j *RechargeTimeoutJob) Start() {
	go j.run()
	j.log.Info("充值超时扫描任务已启动")
}

func (j *RechargeTimeoutJob) Stop() {
	close(j.stop)
}

func (j *RechargeTimeoutJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.stop:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *RechargeTimeoutJob) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cancelled, err := j.recharge.CancelExpired(ctx, j.batch)
	if err != nil {
		j.log.WithError(err).Error("扫描过期充值单失败")
		return
	}
	if cancelled > 0 {
		j.log.WithField("cancelled", cancelled).Info("已取消过期充值单")
	}
}
