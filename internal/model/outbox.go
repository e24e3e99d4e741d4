package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// 结算事件类型（outbox payload 的 event 字段）
const (
	EventRechargeCredited = "wallet.recharge.credited" // 充值已入账
	EventWithdrawDone     = "wallet.withdraw.completed"
	EventWithdrawFailed   = "wallet.withdraw.failed"
	EventExchangeShipped  = "points.exchange.shipped"
)

// OutboxMessage 事务性发件箱
// 结算事件与资金变动同事务落库，由后台任务转投 Kafka，
// 保证"账已变、事件必达（至少一次）"
type OutboxMessage struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey string    `gorm:"type:varchar(64);not null" json:"message_key"` // 分区键，用业务单号
	Topic      string    `gorm:"type:varchar(64);not null" json:"topic"`
	Payload    string    `gorm:"type:text;not null" json:"payload"`
	Status     string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount int       `gorm:"not null;default:0" json:"retry_count"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_message"
}
