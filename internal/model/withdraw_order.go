package model

import (
	"time"
)

// 提现审核状态
const (
	WithdrawAuditPending   = "PENDING"   // 待审核
	WithdrawAuditApproved  = "APPROVED"  // 审核通过
	WithdrawAuditRejected  = "REJECTED"  // 审核驳回（终态）
	WithdrawAuditCancelled = "CANCELLED" // 用户取消（终态）
)

// 提现打款状态（仅 audit_status = APPROVED 后推进）
const (
	WithdrawProcessPending    = "PENDING"    // 待打款
	WithdrawProcessProcessing = "PROCESSING" // 打款中
	WithdrawProcessCompleted  = "COMPLETED"  // 打款完成（终态）
	WithdrawProcessFailed     = "FAILED"     // 打款失败（终态）
)

// WithdrawOrder 钱包提现单
//
// 审核与打款是两条独立状态轴：audit_status 先行定论，process_status 仅在
// 审核通过后推进。创建时冻结的 amount + fee 在任一终态路径上恰好释放一次
// （驳回、取消、完成、失败），由 hold_released 单向标记保证。
type WithdrawOrder struct {
	ID         int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	WithdrawNo string `gorm:"type:varchar(64);uniqueIndex;not null" json:"withdraw_no"` // 提现单号
	OwnerID    int64  `gorm:"index;not null" json:"owner_id"`                           // 会员ID
	Amount     int64  `gorm:"not null" json:"amount"`                                   // 提现金额（分）
	Fee        int64  `gorm:"not null;default:0" json:"fee"`                            // 手续费（分）
	TaxRate    int64  `gorm:"not null;default:0" json:"tax_rate"`                       // 税率（基点）
	TaxAmount  int64  `gorm:"not null;default:0" json:"tax_amount"`                     // 税费（分）
	Payout     int64  `gorm:"not null" json:"payout"`                                   // 实际到账 = amount - fee - tax
	HoldAmount int64  `gorm:"not null" json:"hold_amount"`                              // 创建时冻结金额 = amount + fee

	Channel       string `gorm:"type:varchar(32);not null" json:"channel"`              // 提现渠道
	Destination   string `gorm:"type:varchar(256);not null" json:"destination"`         // 收款账户信息
	AuditStatus   string `gorm:"type:varchar(20);index;not null" json:"audit_status"`   // 审核状态
	ProcessStatus string `gorm:"type:varchar(20);index;not null" json:"process_status"` // 打款状态
	HoldReleased  bool   `gorm:"not null;default:false" json:"hold_released"`           // 冻结是否已释放（单向）

	AuditorID     int64      `gorm:"default:0" json:"auditor_id"`            // 审核人
	AuditRemark   string     `gorm:"type:varchar(256)" json:"audit_remark"`  // 审核备注
	AuditedAt     *time.Time `json:"audited_at"`                             // 审核时间
	PayoutChannel string     `gorm:"type:varchar(32)" json:"payout_channel"` // 实际打款渠道
	ExternalRef   string     `gorm:"type:varchar(64)" json:"external_ref"`   // 打款流水号
	PaidOutAt     *time.Time `json:"paid_out_at"`                            // 打款时间
	FailReason    string     `gorm:"type:varchar(256)" json:"fail_reason"`   // 失败/取消原因

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (WithdrawOrder) TableName() string {
	return "wallet_withdraw_order"
}

// AuditTerminal 审核轴是否已终结（驳回/取消后整单终结）
func (o *WithdrawOrder) AuditTerminal() bool {
	return o.AuditStatus == WithdrawAuditRejected || o.AuditStatus == WithdrawAuditCancelled
}

// ProcessTerminal 打款轴是否已终结
func (o *WithdrawOrder) ProcessTerminal() bool {
	return o.ProcessStatus == WithdrawProcessCompleted || o.ProcessStatus == WithdrawProcessFailed
}
