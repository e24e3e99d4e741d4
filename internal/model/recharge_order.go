package model

import (
	"time"
)

// 充值单支付状态
const (
	RechargeStatusPending   = "PENDING"   // 待支付
	RechargeStatusSuccess   = "SUCCESS"   // 支付成功（终态）
	RechargeStatusFailed    = "FAILED"    // 支付失败（终态）
	RechargeStatusCancelled = "CANCELLED" // 已取消（终态）
)

// 充值单入账状态（与支付状态解耦，保证回调重复投递时入账幂等）
const (
	RechargeUnaccounted = "UNACCOUNTED" // 未入账
	RechargeAccounted   = "ACCOUNTED"   // 已入账（单向，至多一次）
)

var rechargeTransitions = map[string][]string{
	RechargeStatusPending: {RechargeStatusSuccess, RechargeStatusFailed, RechargeStatusCancelled},
}

// RechargeCanTransition 充值支付状态是否允许迁移
func RechargeCanTransition(from, to string) bool {
	for _, s := range rechargeTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// RechargeOrder 钱包充值单
//
// 【不变式】account_status 至多一次迁移到 ACCOUNTED，且仅当 pay_status = SUCCESS
type RechargeOrder struct {
	ID            int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo       string `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_no"` // 充值单号
	OwnerID       int64  `gorm:"index;not null" json:"owner_id"`                        // 会员ID
	Amount        int64  `gorm:"not null" json:"amount"`                                // 充值金额（分）
	Fee           int64  `gorm:"not null;default:0" json:"fee"`                         // 手续费（分）
	ActualAmount  int64  `gorm:"not null" json:"actual_amount"`                         // 实际入账金额 = amount - fee
	Channel       string `gorm:"type:varchar(32);not null" json:"channel"`              // 支付渠道
	PayStatus     string `gorm:"type:varchar(20);index;not null" json:"pay_status"`     // 支付状态
	AccountStatus string `gorm:"type:varchar(20);not null" json:"account_status"`       // 入账状态
	ExternalRef   string `gorm:"type:varchar(64)" json:"external_ref"`                  // 渠道交易号
	FailReason    string `gorm:"type:varchar(256)" json:"fail_reason"`                  // 失败/取消原因

	ExpiredAt   time.Time  `gorm:"not null" json:"expired_at"` // 过期时间（创建后30分钟）
	PaidAt      *time.Time `json:"paid_at"`                    // 支付完成时间
	AccountedAt *time.Time `json:"accounted_at"`               // 入账时间
	CancelledAt *time.Time `json:"cancelled_at"`               // 取消时间
	CreatedAt   time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (RechargeOrder) TableName() string {
	return "wallet_recharge_order"
}
