package model

import (
	"time"
)

// 积分流水类型
const (
	PointsKindReward   = "REWARD"   // 活动/消费奖励
	PointsKindExchange = "EXCHANGE" // 兑换扣减
	PointsKindRefund   = "REFUND"   // 兑换取消返还
	PointsKindExpire   = "EXPIRE"   // 过期扣减
	PointsKindAdjust   = "ADJUST"   // 人工调整
)

// 会员等级阈值（按累计获得积分）
var tierThresholds = []struct {
	Points int64
	Level  int
}{
	{10000, 5},
	{5000, 4},
	{2000, 3},
	{500, 2},
}

// TierForPoints 按累计获得积分计算会员等级
func TierForPoints(earned int64) int {
	for _, t := range tierThresholds {
		if earned >= t.Points {
			return t.Level
		}
	}
	return 1
}

// PointsAccount 会员积分账户
type PointsAccount struct {
	ID           int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID      int64 `gorm:"uniqueIndex;not null" json:"owner_id"`
	Balance      int64 `gorm:"not null;default:0" json:"balance"`       // 当前可用积分
	TotalEarned  int64 `gorm:"not null;default:0" json:"total_earned"`  // 累计获得
	TotalSpent   int64 `gorm:"not null;default:0" json:"total_spent"`   // 累计消耗
	TotalExpired int64 `gorm:"not null;default:0" json:"total_expired"` // 累计过期

	// 滚动窗口统计：窗口键变更时归零后再累加（调用时判定窗口归属）
	YearKey     string `gorm:"type:varchar(4)" json:"-"`              // 年窗口键 yyyy
	YearEarned  int64  `gorm:"not null;default:0" json:"year_earned"` // 本年获得
	MonthKey    string `gorm:"type:varchar(7)" json:"-"`              // 月窗口键 yyyy-mm
	MonthEarned int64  `gorm:"not null;default:0" json:"month_earned"` // 本月获得

	TierLevel int       `gorm:"not null;default:1" json:"tier_level"` // 会员等级（由累计获得推导）
	Version   int       `gorm:"not null;default:0" json:"version"`    // 乐观锁版本号
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PointsAccount) TableName() string {
	return "points_account"
}

// PointsLedgerEntry 积分流水表，约束与资金流水一致：只追加，不修改
type PointsLedgerEntry struct {
	ID            int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	EntryNo       string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"entry_no"`
	OwnerID       int64      `gorm:"index;not null" json:"owner_id"`
	Kind          string     `gorm:"type:varchar(20);index;not null" json:"kind"`
	Direction     string     `gorm:"type:varchar(10);not null" json:"direction"` // CREDIT / DEBIT
	Points        int64      `gorm:"not null" json:"points"`                     // 积分数（恒为正）
	BalanceBefore int64      `gorm:"not null" json:"balance_before"`
	BalanceAfter  int64      `gorm:"not null" json:"balance_after"`
	BizType       string     `gorm:"type:varchar(32);index" json:"biz_type"`
	BizID         int64      `gorm:"index" json:"biz_id"`
	OrderNo       string     `gorm:"type:varchar(64);index" json:"order_no"`
	Description   string     `gorm:"type:varchar(256)" json:"description"`
	ExpireAt      *time.Time `json:"expire_at"` // 本批积分过期时间（可选）
	CreatedAt     time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}

func (PointsLedgerEntry) TableName() string {
	return "points_ledger_entry"
}

// PointsGoods 积分商品（目录归商品侧维护，兑换只读取并增减库存/兑换数）
type PointsGoods struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name           string     `gorm:"type:varchar(128);not null" json:"name"`
	Points         int64      `gorm:"not null" json:"points"`                    // 单件所需积分
	Stock          int64      `gorm:"not null;default:0" json:"stock"`           // 剩余库存
	ExchangedCount int64      `gorm:"not null;default:0" json:"exchanged_count"` // 已兑换件数
	PerOwnerLimit  int        `gorm:"not null;default:0" json:"per_owner_limit"` // 单人限兑次数，0 不限
	Active         bool       `gorm:"not null;default:true" json:"active"`       // 是否上架
	StartAt        *time.Time `json:"start_at"`                                  // 兑换开始时间（可选）
	EndAt          *time.Time `json:"end_at"`                                    // 兑换结束时间（可选）
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PointsGoods) TableName() string {
	return "points_goods"
}

// 积分兑换记录状态
const (
	ExchangePendingShip = "PENDING_SHIP" // 待发货
	ExchangeShipped     = "SHIPPED"      // 已发货
	ExchangeCompleted   = "COMPLETED"    // 已完成（终态）
	ExchangeCancelled   = "CANCELLED"    // 已取消（终态，仅发货前）
)

// PointsExchangeRecord 积分兑换记录
type PointsExchangeRecord struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	ExchangeNo  string `gorm:"type:varchar(64);uniqueIndex;not null" json:"exchange_no"`
	OwnerID     int64  `gorm:"index;not null" json:"owner_id"`
	GoodsID     int64  `gorm:"index;not null" json:"goods_id"`
	Quantity    int64  `gorm:"not null" json:"quantity"`
	PointsSpent int64  `gorm:"not null" json:"points_spent"` // 实际扣减积分 = points * quantity
	Status      string `gorm:"type:varchar(20);index;not null" json:"status"`

	ShippingInfo string     `gorm:"type:varchar(512)" json:"shipping_info"` // 收货信息
	LogisticsNo  string     `gorm:"type:varchar(64)" json:"logistics_no"`   // 物流单号
	CancelReason string     `gorm:"type:varchar(256)" json:"cancel_reason"`
	ShippedAt    *time.Time `json:"shipped_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	CancelledAt  *time.Time `json:"cancelled_at"`
	CreatedAt    time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PointsExchangeRecord) TableName() string {
	return "points_exchange_record"
}
