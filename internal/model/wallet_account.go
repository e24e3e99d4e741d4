package model

import (
	"time"
)

// 钱包账户状态
const (
	WalletStatusActive = "ACTIVE" // 正常
	WalletStatusFrozen = "FROZEN" // 冻结（禁止资金变动）
	WalletStatusClosed = "CLOSED" // 已注销
)

// WalletAccount 会员钱包账户表
// 记录会员的可用余额和冻结余额，是整个钱包引擎的核心数据
//
// 【不变式】balance >= 0 且 frozen_balance >= 0；
// 任意时刻 balance + frozen_balance 必须等于该会员全部流水的带符号合计（对账不变式）
type WalletAccount struct {
	ID            int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID       int64  `gorm:"uniqueIndex;not null" json:"owner_id"`              // 会员ID，业务方传入
	Balance       int64  `gorm:"not null;default:0" json:"balance"`                 // 可用余额（分）
	FrozenBalance int64  `gorm:"not null;default:0" json:"frozen_balance"`          // 冻结余额（分）
	Status        string `gorm:"type:varchar(20);not null;default:ACTIVE" json:"status"` // 账户状态

	// 累计统计（分）
	TotalRecharge   int64 `gorm:"not null;default:0" json:"total_recharge"`   // 累计充值
	TotalWithdraw   int64 `gorm:"not null;default:0" json:"total_withdraw"`   // 累计提现
	TotalConsume    int64 `gorm:"not null;default:0" json:"total_consume"`    // 累计消费
	TotalCommission int64 `gorm:"not null;default:0" json:"total_commission"` // 累计佣金

	// 支付密码（可选；加盐哈希，不存明文）
	PayPasswordHash string `gorm:"type:varchar(128)" json:"-"` // PBKDF2 哈希（hex）
	PayPasswordSalt string `gorm:"type:varchar(64)" json:"-"`  // 随机盐（hex）

	// 当日失败计数（counter_date 变更时归零）
	CounterDate           string `gorm:"type:varchar(10)" json:"-"`                       // 计数所属日期 yyyy-mm-dd
	DailyRechargeFailures int    `gorm:"not null;default:0" json:"daily_recharge_failures"` // 当日充值失败次数
	DailyWithdrawFailures int    `gorm:"not null;default:0" json:"daily_withdraw_failures"` // 当日提现失败次数

	Version        int        `gorm:"not null;default:0" json:"version"` // 乐观锁版本号
	LastActivityAt *time.Time `json:"last_activity_at"`                  // 最近一次资金变动时间
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (WalletAccount) TableName() string {
	return "wallet_account"
}

// Mutable 账户是否允许资金变动
func (a *WalletAccount) Mutable() bool {
	return a.Status == WalletStatusActive
}

// HasPayPassword 是否已设置支付密码
func (a *WalletAccount) HasPayPassword() bool {
	return a.PayPasswordHash != ""
}
