package store

import (
	"context"
	"errors"
	"time"

	"mallwallet/internal/model"
)

// 存储层错误。业务层用 errors.Is 判别后转换为对外错误码，
// 其余一律视为 StorageError 向上透传，不得吞掉
var (
	ErrNotFound        = errors.New("记录不存在")
	ErrDuplicate       = errors.New("唯一键冲突")
	ErrVersionConflict = errors.New("乐观锁冲突，请重试")
)

// LedgerQuery 资金流水查询条件
// 显式枚举可选过滤项，替代自由字典式的动态查询
type LedgerQuery struct {
	OwnerID   int64      // 必填
	Kind      string     // 可选，流水类型
	Direction string     // 可选，资金方向
	BizType   string     // 可选，业务类型
	Begin     *time.Time // 可选，创建时间下界（含）
	End       *time.Time // 可选，创建时间上界（不含）
	Offset    int
	Limit     int
}

// PointsLedgerQuery 积分流水查询条件
type PointsLedgerQuery struct {
	OwnerID   int64
	Kind      string
	Direction string
	Begin     *time.Time
	End       *time.Time
	Offset    int
	Limit     int
}

// OrderQuery 充值/提现/兑换单查询条件
type OrderQuery struct {
	OwnerID int64
	Status  string // 充值为 pay_status，提现为 audit_status，兑换为 status
	Begin   *time.Time
	End     *time.Time
	Offset  int
	Limit   int
}

// WithdrawStats 滚动窗口内的提现统计（24小时限额校验用）
type WithdrawStats struct {
	Count  int64 // 窗口内提现笔数
	Amount int64 // 窗口内提现金额合计（分）
}

// Store 钱包引擎的存储接口
//
// Transaction 内回调收到的 Store 绑定同一事务；回调返回错误时整体回滚。
// 业务服务只依赖本接口，由构造时显式注入（MySQL 实现见 store/mysql，
// 测试用内存实现见 store/memory）
type Store interface {
	Transaction(ctx context.Context, fn func(tx Store) error) error

	// ---- 钱包账户 ----
	GetWalletAccount(ctx context.Context, ownerID int64) (*model.WalletAccount, error)
	// GetWalletAccountForUpdate 行级锁读，仅在 Transaction 内调用
	GetWalletAccountForUpdate(ctx context.Context, ownerID int64) (*model.WalletAccount, error)
	// CreateWalletAccountIfAbsent 懒创建，owner 已存在时静默返回
	CreateWalletAccountIfAbsent(ctx context.Context, acct *model.WalletAccount) error
	// UpdateWalletAccount 按 acct.Version 做 CAS 写回，冲突返回 ErrVersionConflict
	UpdateWalletAccount(ctx context.Context, acct *model.WalletAccount) error

	// ---- 资金流水（只追加）----
	AppendLedgerEntry(ctx context.Context, entry *model.LedgerEntry) error
	QueryLedger(ctx context.Context, q LedgerQuery) ([]*model.LedgerEntry, int64, error)

	// ---- 充值单 ----
	CreateRechargeOrder(ctx context.Context, order *model.RechargeOrder) error
	GetRechargeOrder(ctx context.Context, orderNo string) (*model.RechargeOrder, error)
	GetRechargeOrderForUpdate(ctx context.Context, orderNo string) (*model.RechargeOrder, error)
	UpdateRechargeOrder(ctx context.Context, order *model.RechargeOrder) error
	ListRechargeOrders(ctx context.Context, q OrderQuery) ([]*model.RechargeOrder, int64, error)
	// ListExpiredRechargeOrders 过期未支付的充值单（超时扫描用）
	ListExpiredRechargeOrders(ctx context.Context, before time.Time, limit int) ([]*model.RechargeOrder, error)

	// ---- 提现单 ----
	CreateWithdrawOrder(ctx context.Context, order *model.WithdrawOrder) error
	GetWithdrawOrder(ctx context.Context, withdrawNo string) (*model.WithdrawOrder, error)
	GetWithdrawOrderForUpdate(ctx context.Context, withdrawNo string) (*model.WithdrawOrder, error)
	UpdateWithdrawOrder(ctx context.Context, order *model.WithdrawOrder) error
	ListWithdrawOrders(ctx context.Context, q OrderQuery) ([]*model.WithdrawOrder, int64, error)
	// GetWithdrawStatsSince 统计 since 之后创建、未被驳回/取消的提现单
	GetWithdrawStatsSince(ctx context.Context, ownerID int64, since time.Time) (*WithdrawStats, error)

	// ---- 积分 ----
	GetPointsAccount(ctx context.Context, ownerID int64) (*model.PointsAccount, error)
	GetPointsAccountForUpdate(ctx context.Context, ownerID int64) (*model.PointsAccount, error)
	CreatePointsAccountIfAbsent(ctx context.Context, acct *model.PointsAccount) error
	UpdatePointsAccount(ctx context.Context, acct *model.PointsAccount) error
	AppendPointsLedgerEntry(ctx context.Context, entry *model.PointsLedgerEntry) error
	QueryPointsLedger(ctx context.Context, q PointsLedgerQuery) ([]*model.PointsLedgerEntry, int64, error)

	GetPointsGoods(ctx context.Context, goodsID int64) (*model.PointsGoods, error)
	GetPointsGoodsForUpdate(ctx context.Context, goodsID int64) (*model.PointsGoods, error)
	UpdatePointsGoods(ctx context.Context, goods *model.PointsGoods) error

	CreateExchangeRecord(ctx context.Context, rec *model.PointsExchangeRecord) error
	GetExchangeRecord(ctx context.Context, exchangeNo string) (*model.PointsExchangeRecord, error)
	GetExchangeRecordForUpdate(ctx context.Context, exchangeNo string) (*model.PointsExchangeRecord, error)
	UpdateExchangeRecord(ctx context.Context, rec *model.PointsExchangeRecord) error
	ListExchangeRecords(ctx context.Context, q OrderQuery) ([]*model.PointsExchangeRecord, int64, error)
	// CountOwnerExchanges 会员对某商品的有效兑换次数（不含已取消）
	CountOwnerExchanges(ctx context.Context, ownerID, goodsID int64) (int64, error)

	// ---- 事务性发件箱 ----
	CreateOutboxMessage(ctx context.Context, msg *model.OutboxMessage) error
	GetPendingOutboxMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error)
	UpdateOutboxStatus(ctx context.Context, id int64, status string) error
	// IncrOutboxRetry 投递失败后累加重试计数，状态保持 PENDING 等待下轮
	IncrOutboxRetry(ctx context.Context, id int64) error
}
