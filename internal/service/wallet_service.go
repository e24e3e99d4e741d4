package service

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"mallwallet/internal/infrastructure/lock"
	"mallwallet/internal/model"
	"mallwallet/internal/store"
	"mallwallet/pkg/idgen"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/pbkdf2"
)

// WalletService 钱包账户管理
//
// 余额与冻结余额只能经由本服务变动；每次变动与一条流水同事务落库。
// 充值/提现/积分兑换工作流是唯一的调用方，不允许绕过本服务直接改账
type WalletService struct {
	store  store.Store
	locker lock.Locker
	idgen  NumberSource
	clock  Clock
	log    *logrus.Logger
}

func NewWalletService(st store.Store, locker lock.Locker, gen NumberSource, clock Clock, log *logrus.Logger) *WalletService {
	return &WalletService{
		store:  st,
		locker: locker,
		idgen:  gen,
		clock:  clock,
		log:    log,
	}
}

// GetOrCreate 查询钱包账户，不存在则懒创建零余额账户
func (s *WalletService) GetOrCreate(ctx context.Context, ownerID int64) (*model.WalletAccount, error) {
	acct, err := s.store.GetWalletAccount(ctx, ownerID)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("查询钱包账户失败: %w", err)
	}

	fresh := &model.WalletAccount{
		OwnerID: ownerID,
		Status:  model.WalletStatusActive,
	}
	if err := s.store.CreateWalletAccountIfAbsent(ctx, fresh); err != nil {
		return nil, fmt.Errorf("创建钱包账户失败: %w", err)
	}

	acct, err = s.store.GetWalletAccount(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("查询钱包账户失败: %w", err)
	}
	return acct, nil
}

// BalanceChange 一次余额变动请求
type BalanceChange struct {
	OwnerID     int64
	Kind        string // model.LedgerKind*
	Direction   string // model.DirectionCredit / DirectionDebit
	Amount      int64  // 分，必须为正
	Ref         model.BusinessRef
	PeerID      int64 // 转账对方（可选）
	OperatorID  int64 // 人工操作员（可选）
	Description string
}

// ChangeBalance 变动可用余额，返回生成的流水
func (s *WalletService) ChangeBalance(ctx context.Context, change BalanceChange) (*model.LedgerEntry, error) {
	if change.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	release, err := s.locker.Acquire(ctx, lock.WalletKey(change.OwnerID), change.Ref.OrderNo)
	if err != nil {
		return nil, fmt.Errorf("获取账户锁失败: %w", err)
	}
	defer release()

	if _, err := s.GetOrCreate(ctx, change.OwnerID); err != nil {
		return nil, err
	}

	var entry *model.LedgerEntry
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		var txErr error
		entry, txErr = s.ChangeBalanceTx(ctx, tx, change)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ChangeBalanceTx 事务内变动余额。调用方必须已在 Transaction 内；
// 行级锁 + 版本号 CAS 保证同一账户不会交错写
func (s *WalletService) ChangeBalanceTx(ctx context.Context, tx store.Store, change BalanceChange) (*model.LedgerEntry, error) {
	if change.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if change.Direction != model.DirectionCredit && change.Direction != model.DirectionDebit {
		return nil, fmt.Errorf("未知资金方向: %s", change.Direction)
	}

	acct, err := tx.GetWalletAccountForUpdate(ctx, change.OwnerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("锁定钱包账户失败: %w", err)
	}
	if err := checkMutable(acct); err != nil {
		return nil, err
	}

	balanceBefore := acct.Balance
	frozenBefore := acct.FrozenBalance

	if change.Direction == model.DirectionDebit {
		if acct.Balance < change.Amount {
			return nil, ErrInsufficientBalance
		}
		acct.Balance -= change.Amount
	} else {
		acct.Balance += change.Amount
	}

	applyTotals(acct, change.Kind, change.Amount)
	s.rollCounters(acct)
	now := s.clock.Now()
	acct.LastActivityAt = &now

	if err := tx.UpdateWalletAccount(ctx, acct); err != nil {
		return nil, fmt.Errorf("更新钱包账户失败: %w", err)
	}

	entry := &model.LedgerEntry{
		EntryNo:       s.idgen.Next(idgen.PrefixLedger),
		OwnerID:       change.OwnerID,
		Kind:          change.Kind,
		Direction:     change.Direction,
		Amount:        change.Amount,
		BalanceBefore: balanceBefore,
		BalanceAfter:  acct.Balance,
		FrozenBefore:  frozenBefore,
		FrozenAfter:   acct.FrozenBalance,
		BizType:       change.Ref.BizType,
		BizID:         change.Ref.BizID,
		OrderNo:       change.Ref.OrderNo,
		PeerID:        change.PeerID,
		Operator:      change.OperatorID,
		Description:   change.Description,
		CreatedAt:     now,
	}
	if err := tx.AppendLedgerEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("记录流水失败: %w", err)
	}
	return entry, nil
}

// 冻结动作
const (
	ActionFreeze   = "FREEZE"
	ActionUnfreeze = "UNFREEZE"
)

// ChangeFrozenBalance 在可用余额与冻结余额之间搬运资金，总持有额不变
func (s *WalletService) ChangeFrozenBalance(ctx context.Context, ownerID int64, action string, amount int64, ref model.BusinessRef) (*model.LedgerEntry, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	release, err := s.locker.Acquire(ctx, lock.WalletKey(ownerID), ref.OrderNo)
	if err != nil {
		return nil, fmt.Errorf("获取账户锁失败: %w", err)
	}
	defer release()

	var entry *model.LedgerEntry
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		var txErr error
		entry, txErr = s.ChangeFrozenBalanceTx(ctx, tx, ownerID, action, amount, ref)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ChangeFrozenBalanceTx 事务内冻结/解冻
func (s *WalletService) ChangeFrozenBalanceTx(ctx context.Context, tx store.Store, ownerID int64, action string, amount int64, ref model.BusinessRef) (*model.LedgerEntry, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	acct, err := tx.GetWalletAccountForUpdate(ctx, ownerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("锁定钱包账户失败: %w", err)
	}

	balanceBefore := acct.Balance
	frozenBefore := acct.FrozenBalance

	var kind, direction string
	switch action {
	case ActionFreeze:
		// 冻结属资金占用操作，账户必须可用；解冻是释放，冻结中的账户也要能退款
		if err := checkMutable(acct); err != nil {
			return nil, err
		}
		if acct.Balance < amount {
			return nil, ErrInsufficientBalance
		}
		acct.Balance -= amount
		acct.FrozenBalance += amount
		kind, direction = model.LedgerKindFreeze, model.DirectionDebit
	case ActionUnfreeze:
		if acct.FrozenBalance < amount {
			return nil, ErrInsufficientFrozenBalance
		}
		acct.FrozenBalance -= amount
		acct.Balance += amount
		kind, direction = model.LedgerKindUnfreeze, model.DirectionCredit
	default:
		return nil, fmt.Errorf("未知冻结动作: %s", action)
	}

	now := s.clock.Now()
	acct.LastActivityAt = &now
	if err := tx.UpdateWalletAccount(ctx, acct); err != nil {
		return nil, fmt.Errorf("更新钱包账户失败: %w", err)
	}

	entry := &model.LedgerEntry{
		EntryNo:       s.idgen.Next(idgen.PrefixLedger),
		OwnerID:       ownerID,
		Kind:          kind,
		Direction:     direction,
		Amount:        amount,
		BalanceBefore: balanceBefore,
		BalanceAfter:  acct.Balance,
		FrozenBefore:  frozenBefore,
		FrozenAfter:   acct.FrozenBalance,
		BizType:       ref.BizType,
		BizID:         ref.BizID,
		OrderNo:       ref.OrderNo,
		CreatedAt:     now,
	}
	if err := tx.AppendLedgerEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("记录流水失败: %w", err)
	}
	return entry, nil
}

// TransferResult 转账产生的两条流水
type TransferResult struct {
	DebitEntry  *model.LedgerEntry
	CreditEntry *model.LedgerEntry
}

// Transfer 会员间转账。两条腿在同一事务内生效，要么都成功要么都不发生
func (s *WalletService) Transfer(ctx context.Context, fromOwnerID, toOwnerID, amount int64, payPassword string) (*TransferResult, error) {
	if fromOwnerID == toOwnerID {
		return nil, ErrCannotTransferToSelf
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	transferNo := s.idgen.Next(idgen.PrefixTransfer)

	// 固定按 ownerID 升序加锁，避免 A->B 与 B->A 互相持锁死锁
	first, second := fromOwnerID, toOwnerID
	if first > second {
		first, second = second, first
	}
	releaseFirst, err := s.locker.Acquire(ctx, lock.WalletKey(first), transferNo)
	if err != nil {
		return nil, fmt.Errorf("获取账户锁失败: %w", err)
	}
	defer releaseFirst()
	releaseSecond, err := s.locker.Acquire(ctx, lock.WalletKey(second), transferNo)
	if err != nil {
		return nil, fmt.Errorf("获取账户锁失败: %w", err)
	}
	defer releaseSecond()

	sender, err := s.GetOrCreate(ctx, fromOwnerID)
	if err != nil {
		return nil, err
	}
	if _, err := s.GetOrCreate(ctx, toOwnerID); err != nil {
		return nil, err
	}

	// 发送方设置了支付密码就必须验证
	if sender.HasPayPassword() {
		if payPassword == "" {
			return nil, ErrPayPasswordRequired
		}
		if !verifyPayPassword(sender, payPassword) {
			return nil, ErrPayPasswordError
		}
	}

	ref := model.BusinessRef{BizType: "TRANSFER", OrderNo: transferNo}
	result := &TransferResult{}
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		debit, txErr := s.ChangeBalanceTx(ctx, tx, BalanceChange{
			OwnerID:     fromOwnerID,
			Kind:        model.LedgerKindTransferOut,
			Direction:   model.DirectionDebit,
			Amount:      amount,
			Ref:         ref,
			PeerID:      toOwnerID,
			Description: fmt.Sprintf("转账给会员%d", toOwnerID),
		})
		if txErr != nil {
			return txErr
		}
		credit, txErr := s.ChangeBalanceTx(ctx, tx, BalanceChange{
			OwnerID:     toOwnerID,
			Kind:        model.LedgerKindTransferIn,
			Direction:   model.DirectionCredit,
			Amount:      amount,
			Ref:         ref,
			PeerID:      fromOwnerID,
			Description: fmt.Sprintf("收到会员%d转账", fromOwnerID),
		})
		if txErr != nil {
			return txErr
		}
		result.DebitEntry = debit
		result.CreditEntry = credit
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"transfer_no": transferNo,
		"from":        fromOwnerID,
		"to":          toOwnerID,
		"amount":      amount,
	}).Info("转账成功")
	return result, nil
}

// QueryLedger 流水查询（分页、按类型/方向/时间过滤）
func (s *WalletService) QueryLedger(ctx context.Context, q store.LedgerQuery) ([]*model.LedgerEntry, int64, error) {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	entries, total, err := s.store.QueryLedger(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("查询流水失败: %w", err)
	}
	return entries, total, nil
}

// Reconcile 对账：校验 balance + frozen_balance 等于全部流水的带符号合计。
// 不一致说明存在绕过流水的改账，属程序缺陷
func (s *WalletService) Reconcile(ctx context.Context, ownerID int64) error {
	acct, err := s.store.GetWalletAccount(ctx, ownerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("查询钱包账户失败: %w", err)
	}

	var sum int64
	offset := 0
	for {
		entries, _, err := s.store.QueryLedger(ctx, store.LedgerQuery{
			OwnerID: ownerID,
			Offset:  offset,
			Limit:   500,
		})
		if err != nil {
			return fmt.Errorf("查询流水失败: %w", err)
		}
		if len(entries) == 0 {
			break
		}
		for _, e := range entries {
			sum += e.SignedAmount()
		}
		offset += len(entries)
	}

	if holdings := acct.Balance + acct.FrozenBalance; holdings != sum {
		return fmt.Errorf("对账不一致: owner=%d 账面=%d 流水合计=%d", ownerID, holdings, sum)
	}
	return nil
}

// ============================================================
// 支付密码
// ============================================================

// SetPayPassword 首次设置支付密码
func (s *WalletService) SetPayPassword(ctx context.Context, ownerID int64, password string) error {
	return s.updatePayPassword(ctx, ownerID, func(acct *model.WalletAccount) error {
		if acct.HasPayPassword() {
			return ErrPayPasswordExists
		}
		return nil
	}, password)
}

// ChangePayPassword 修改支付密码，必须先验证旧密码
func (s *WalletService) ChangePayPassword(ctx context.Context, ownerID int64, oldPassword, newPassword string) error {
	return s.updatePayPassword(ctx, ownerID, func(acct *model.WalletAccount) error {
		if !acct.HasPayPassword() {
			return ErrPayPasswordNotSet
		}
		if !verifyPayPassword(acct, oldPassword) {
			return ErrPayPasswordError
		}
		return nil
	}, newPassword)
}

// ResetPayPassword 凭验证码重置支付密码。
// 验证码必须先通过 verifier 校验，不允许无凭据重置
func (s *WalletService) ResetPayPassword(ctx context.Context, ownerID int64, verifyCode, newPassword string, verifier CodeVerifier) error {
	ok, err := verifier.Verify(ctx, ownerID, verifyCode)
	if err != nil {
		return fmt.Errorf("校验验证码失败: %w", err)
	}
	if !ok {
		return ErrVerifyCodeError
	}
	return s.updatePayPassword(ctx, ownerID, func(*model.WalletAccount) error { return nil }, newPassword)
}

func (s *WalletService) updatePayPassword(ctx context.Context, ownerID int64, precheck func(*model.WalletAccount) error, newPassword string) error {
	if len(newPassword) < 6 {
		return fmt.Errorf("支付密码长度不能少于6位")
	}

	release, err := s.locker.Acquire(ctx, lock.WalletKey(ownerID), "paypwd")
	if err != nil {
		return fmt.Errorf("获取账户锁失败: %w", err)
	}
	defer release()

	if _, err := s.GetOrCreate(ctx, ownerID); err != nil {
		return err
	}

	return s.store.Transaction(ctx, func(tx store.Store) error {
		acct, err := tx.GetWalletAccountForUpdate(ctx, ownerID)
		if err != nil {
			return fmt.Errorf("锁定钱包账户失败: %w", err)
		}
		if err := precheck(acct); err != nil {
			return err
		}

		salt, err := newSalt()
		if err != nil {
			return fmt.Errorf("生成盐失败: %w", err)
		}
		acct.PayPasswordSalt = salt
		acct.PayPasswordHash = hashPayPassword(newPassword, salt)

		if err := tx.UpdateWalletAccount(ctx, acct); err != nil {
			return fmt.Errorf("更新钱包账户失败: %w", err)
		}
		return nil
	})
}

// VerifyPayPassword 校验支付密码（提现等工作流使用）
func (s *WalletService) VerifyPayPassword(acct *model.WalletAccount, password string) error {
	if !acct.HasPayPassword() {
		return nil
	}
	if password == "" {
		return ErrPayPasswordRequired
	}
	if !verifyPayPassword(acct, password) {
		return ErrPayPasswordError
	}
	return nil
}

// ============================================================
// 当日失败计数
// ============================================================

// IncrRechargeFailureTx 事务内累加当日充值失败次数
func (s *WalletService) IncrRechargeFailureTx(ctx context.Context, tx store.Store, ownerID int64) error {
	return s.incrFailureTx(ctx, tx, ownerID, func(acct *model.WalletAccount) {
		acct.DailyRechargeFailures++
	})
}

// IncrWithdrawFailureTx 事务内累加当日提现失败次数
func (s *WalletService) IncrWithdrawFailureTx(ctx context.Context, tx store.Store, ownerID int64) error {
	return s.incrFailureTx(ctx, tx, ownerID, func(acct *model.WalletAccount) {
		acct.DailyWithdrawFailures++
	})
}

func (s *WalletService) incrFailureTx(ctx context.Context, tx store.Store, ownerID int64, apply func(*model.WalletAccount)) error {
	acct, err := tx.GetWalletAccountForUpdate(ctx, ownerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("锁定钱包账户失败: %w", err)
	}
	s.rollCounters(acct)
	apply(acct)
	if err := tx.UpdateWalletAccount(ctx, acct); err != nil {
		return fmt.Errorf("更新钱包账户失败: %w", err)
	}
	return nil
}

// rollCounters 计数日期翻篇时清零当日失败计数
func (s *WalletService) rollCounters(acct *model.WalletAccount) {
	today := s.clock.Now().Format("2006-01-02")
	if acct.CounterDate != today {
		acct.CounterDate = today
		acct.DailyRechargeFailures = 0
		acct.DailyWithdrawFailures = 0
	}
}

// ============================================================
// 内部工具
// ============================================================

func checkMutable(acct *model.WalletAccount) error {
	switch acct.Status {
	case model.WalletStatusFrozen:
		return ErrWalletFrozen
	case model.WalletStatusClosed:
		return ErrWalletClosed
	}
	return nil
}

// applyTotals 按流水类型维护累计统计
func applyTotals(acct *model.WalletAccount, kind string, amount int64) {
	switch kind {
	case model.LedgerKindRecharge:
		acct.TotalRecharge += amount
	case model.LedgerKindWithdraw:
		acct.TotalWithdraw += amount
	case model.LedgerKindConsume:
		acct.TotalConsume += amount
	case model.LedgerKindCommission:
		acct.TotalCommission += amount
	}
}

const pbkdf2Iterations = 10000

func hashPayPassword(password, saltHex string) string {
	salt, _ := hex.DecodeString(saltHex)
	sum := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, 32, sha256.New)
	return hex.EncodeToString(sum)
}

func verifyPayPassword(acct *model.WalletAccount, password string) bool {
	got := hashPayPassword(password, acct.PayPasswordSalt)
	return hmac.Equal([]byte(got), []byte(acct.PayPasswordHash))
}

// newSalt 生成16字节加密随机盐（hex）
func newSalt() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
