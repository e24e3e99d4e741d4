package model

import (
	"time"
)

// ============================================================================
// 资金流水类型常量
// ============================================================================

const (
	LedgerKindRecharge     = "RECHARGE"      // 充值入账
	LedgerKindWithdraw     = "WITHDRAW"      // 提现出账
	LedgerKindConsume      = "CONSUME"       // 消费
	LedgerKindRefund       = "REFUND"        // 退款
	LedgerKindCommission   = "COMMISSION"    // 佣金
	LedgerKindReward       = "REWARD"        // 奖励
	LedgerKindPenalty      = "PENALTY"       // 扣罚
	LedgerKindTransferIn   = "TRANSFER_IN"   // 转账入账
	LedgerKindTransferOut  = "TRANSFER_OUT"  // 转账出账
	LedgerKindFreeze       = "FREEZE"        // 冻结
	LedgerKindUnfreeze     = "UNFREEZE"      // 解冻
	LedgerKindManualAdjust = "MANUAL_ADJUST" // 人工调账
)

// 资金方向
const (
	DirectionCredit = "CREDIT" // 入账
	DirectionDebit  = "DEBIT"  // 出账
)

// BusinessRef 流水关联的业务单据
type BusinessRef struct {
	BizType string // 业务类型，如 RECHARGE / WITHDRAW / EXCHANGE
	BizID   int64  // 业务记录ID
	OrderNo string // 业务单号（外部可见）
}

// LedgerEntry 钱包资金流水表
// 记录每一笔余额/冻结余额变动，是对账的核心依据
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除 —— 保证审计可追溯；更正走 MANUAL_ADJUST 新流水
// 2. 每次余额变动恰好产生一条流水，且与账户更新同事务提交
// 3. 记录变动前后余额快照 —— after = before ± amount 必须与方向一致
type LedgerEntry struct {
	ID            int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	EntryNo       string `gorm:"type:varchar(64);uniqueIndex;not null" json:"entry_no"` // 流水号（全局唯一）
	OwnerID       int64  `gorm:"index;not null" json:"owner_id"`                        // 会员ID
	Kind          string `gorm:"type:varchar(20);index;not null" json:"kind"`           // 流水类型
	Direction     string `gorm:"type:varchar(10);not null" json:"direction"`            // 资金方向
	Amount        int64  `gorm:"not null" json:"amount"`                                // 金额（分，恒为正）
	BalanceBefore int64  `gorm:"not null" json:"balance_before"`                        // 变动前可用余额
	BalanceAfter  int64  `gorm:"not null" json:"balance_after"`                         // 变动后可用余额
	FrozenBefore  int64  `gorm:"not null" json:"frozen_before"`                         // 变动前冻结余额
	FrozenAfter   int64  `gorm:"not null" json:"frozen_after"`                          // 变动后冻结余额

	BizType  string `gorm:"type:varchar(32);index" json:"biz_type"`          // 业务类型
	BizID    int64  `gorm:"index" json:"biz_id"`                             // 业务记录ID
	OrderNo  string `gorm:"type:varchar(64);index" json:"order_no"`          // 业务单号
	PeerID   int64  `gorm:"default:0" json:"peer_id"`                        // 转账对方会员ID
	Operator int64  `gorm:"column:operator_id;default:0" json:"operator_id"` // 人工操作员ID

	Description string    `gorm:"type:varchar(256)" json:"description"` // 备注
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (LedgerEntry) TableName() string {
	return "wallet_ledger_entry"
}

// SignedAmount 对账用带符号金额：入账为正，出账为负
// 冻结/解冻只在 balance 与 frozen_balance 之间搬运，总持有额不变，计 0
func (e *LedgerEntry) SignedAmount() int64 {
	switch e.Kind {
	case LedgerKindFreeze, LedgerKindUnfreeze:
		return 0
	}
	if e.Direction == DirectionCredit {
		return e.Amount
	}
	return -e.Amount
}
