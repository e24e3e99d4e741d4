package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"mallwallet/internal/model"
	"mallwallet/internal/store"
)

func TestGetOrCreateLazy(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	acct, err := e.wallet.GetOrCreate(ctx, 100)
	if err != nil {
		t.Fatalf("懒创建失败: %v", err)
	}
	if acct.Balance != 0 || acct.FrozenBalance != 0 {
		t.Errorf("新账户余额应为0, got balance=%d frozen=%d", acct.Balance, acct.FrozenBalance)
	}
	if acct.Status != model.WalletStatusActive {
		t.Errorf("新账户状态应为 ACTIVE, got %s", acct.Status)
	}

	again, err := e.wallet.GetOrCreate(ctx, 100)
	if err != nil {
		t.Fatalf("二次获取失败: %v", err)
	}
	if again.ID != acct.ID {
		t.Errorf("重复获取应返回同一账户")
	}
}

func TestChangeBalanceCreditDebit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.fund(t, 1, 10000)

	entry, err := e.wallet.ChangeBalance(ctx, BalanceChange{
		OwnerID:   1,
		Kind:      model.LedgerKindConsume,
		Direction: model.DirectionDebit,
		Amount:    3000,
	})
	if err != nil {
		t.Fatalf("出账失败: %v", err)
	}
	if entry.BalanceBefore != 10000 || entry.BalanceAfter != 7000 {
		t.Errorf("流水快照错误: before=%d after=%d", entry.BalanceBefore, entry.BalanceAfter)
	}

	balance, _ := e.balance(t, 1)
	if balance != 7000 {
		t.Errorf("余额应为7000, got %d", balance)
	}

	acct, _ := e.wallet.GetOrCreate(ctx, 1)
	if acct.TotalConsume != 3000 {
		t.Errorf("累计消费应为3000, got %d", acct.TotalConsume)
	}
	e.mustReconcile(t, 1)
}

func TestDebitInsufficientLeavesStateUnchanged(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.fund(t, 1, 4000)

	_, err := e.wallet.ChangeBalance(ctx, BalanceChange{
		OwnerID:   1,
		Kind:      model.LedgerKindConsume,
		Direction: model.DirectionDebit,
		Amount:    5000,
	})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("期望 ErrInsufficientBalance, got %v", err)
	}

	balance, _ := e.balance(t, 1)
	if balance != 4000 {
		t.Errorf("失败的出账不应改变余额, got %d", balance)
	}

	_, total, _ := e.wallet.QueryLedger(ctx, store.LedgerQuery{OwnerID: 1})
	if total != 1 {
		t.Errorf("失败的出账不应产生流水, got %d条", total)
	}
	e.mustReconcile(t, 1)
}

func TestFreezeUnfreezeSymmetry(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.fund(t, 1, 10000)

	if _, err := e.wallet.ChangeFrozenBalance(ctx, 1, ActionFreeze, 6000, model.BusinessRef{}); err != nil {
		t.Fatalf("冻结失败: %v", err)
	}
	balance, frozen := e.balance(t, 1)
	if balance != 4000 || frozen != 6000 {
		t.Errorf("冻结后 balance=%d frozen=%d", balance, frozen)
	}
	e.mustReconcile(t, 1)

	// 冻结超过可用余额
	if _, err := e.wallet.ChangeFrozenBalance(ctx, 1, ActionFreeze, 5000, model.BusinessRef{}); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("期望 ErrInsufficientBalance, got %v", err)
	}
	// 解冻超过冻结余额
	if _, err := e.wallet.ChangeFrozenBalance(ctx, 1, ActionUnfreeze, 7000, model.BusinessRef{}); !errors.Is(err, ErrInsufficientFrozenBalance) {
		t.Errorf("期望 ErrInsufficientFrozenBalance, got %v", err)
	}

	if _, err := e.wallet.ChangeFrozenBalance(ctx, 1, ActionUnfreeze, 6000, model.BusinessRef{}); err != nil {
		t.Fatalf("解冻失败: %v", err)
	}
	balance, frozen = e.balance(t, 1)
	if balance != 10000 || frozen != 0 {
		t.Errorf("解冻后 balance=%d frozen=%d", balance, frozen)
	}
	e.mustReconcile(t, 1)
}

func TestFrozenWalletRejectsMutation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.fund(t, 1, 10000)

	// 手动冻结账户
	acct, _ := e.store.GetWalletAccount(ctx, 1)
	acct.Status = model.WalletStatusFrozen
	if err := e.store.UpdateWalletAccount(ctx, acct); err != nil {
		t.Fatalf("预置冻结状态失败: %v", err)
	}

	_, err := e.wallet.ChangeBalance(ctx, BalanceChange{
		OwnerID:   1,
		Kind:      model.LedgerKindConsume,
		Direction: model.DirectionDebit,
		Amount:    100,
	})
	if !errors.Is(err, ErrWalletFrozen) {
		t.Errorf("期望 ErrWalletFrozen, got %v", err)
	}
}

// Scenario: A(100元)转30元给B(0)，事务性与金额精确
func TestTransfer(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.fund(t, 1, 10000)

	result, err := e.wallet.Transfer(ctx, 1, 2, 3000, "")
	if err != nil {
		t.Fatalf("转账失败: %v", err)
	}
	if result.DebitEntry.Kind != model.LedgerKindTransferOut || result.CreditEntry.Kind != model.LedgerKindTransferIn {
		t.Errorf("转账流水类型错误: %s / %s", result.DebitEntry.Kind, result.CreditEntry.Kind)
	}
	if result.DebitEntry.PeerID != 2 || result.CreditEntry.PeerID != 1 {
		t.Errorf("对方会员记录错误: %d / %d", result.DebitEntry.PeerID, result.CreditEntry.PeerID)
	}

	aBalance, _ := e.balance(t, 1)
	bBalance, _ := e.balance(t, 2)
	if aBalance != 7000 || bBalance != 3000 {
		t.Errorf("转账后 A=%d B=%d", aBalance, bBalance)
	}

	// 恰好两条流水
	_, aTotal, _ := e.wallet.QueryLedger(ctx, store.LedgerQuery{OwnerID: 1, Kind: model.LedgerKindTransferOut})
	_, bTotal, _ := e.wallet.QueryLedger(ctx, store.LedgerQuery{OwnerID: 2, Kind: model.LedgerKindTransferIn})
	if aTotal != 1 || bTotal != 1 {
		t.Errorf("转账应各产生一条流水, got %d / %d", aTotal, bTotal)
	}
	e.mustReconcile(t, 1)
	e.mustReconcile(t, 2)
}

func TestTransferToSelfRejected(t *testing.T) {
	e := newEnv(t)
	e.fund(t, 1, 10000)

	if _, err := e.wallet.Transfer(context.Background(), 1, 1, 100, ""); !errors.Is(err, ErrCannotTransferToSelf) {
		t.Errorf("期望 ErrCannotTransferToSelf, got %v", err)
	}
}

func TestTransferInsufficientAtomic(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.fund(t, 1, 1000)
	e.fund(t, 2, 500)

	if _, err := e.wallet.Transfer(ctx, 1, 2, 2000, ""); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("期望 ErrInsufficientBalance, got %v", err)
	}
	aBalance, _ := e.balance(t, 1)
	bBalance, _ := e.balance(t, 2)
	if aBalance != 1000 || bBalance != 500 {
		t.Errorf("失败转账不应有任何一腿生效: A=%d B=%d", aBalance, bBalance)
	}
}

func TestTransferRequiresPayPassword(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.fund(t, 1, 10000)
	if err := e.wallet.SetPayPassword(ctx, 1, "123456"); err != nil {
		t.Fatalf("设置支付密码失败: %v", err)
	}

	if _, err := e.wallet.Transfer(ctx, 1, 2, 100, ""); !errors.Is(err, ErrPayPasswordRequired) {
		t.Errorf("缺少密码应拒绝, got %v", err)
	}
	if _, err := e.wallet.Transfer(ctx, 1, 2, 100, "000000"); !errors.Is(err, ErrPayPasswordError) {
		t.Errorf("密码错误应拒绝, got %v", err)
	}
	if _, err := e.wallet.Transfer(ctx, 1, 2, 100, "123456"); err != nil {
		t.Errorf("密码正确应放行, got %v", err)
	}
}

func TestPayPasswordLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if err := e.wallet.SetPayPassword(ctx, 1, "123456"); err != nil {
		t.Fatalf("设置失败: %v", err)
	}
	if err := e.wallet.SetPayPassword(ctx, 1, "654321"); !errors.Is(err, ErrPayPasswordExists) {
		t.Errorf("重复设置应拒绝, got %v", err)
	}

	if err := e.wallet.ChangePayPassword(ctx, 1, "wrong", "654321"); !errors.Is(err, ErrPayPasswordError) {
		t.Errorf("旧密码错误应拒绝, got %v", err)
	}
	if err := e.wallet.ChangePayPassword(ctx, 1, "123456", "654321"); err != nil {
		t.Fatalf("修改失败: %v", err)
	}

	acct, _ := e.wallet.GetOrCreate(ctx, 1)
	if err := e.wallet.VerifyPayPassword(acct, "654321"); err != nil {
		t.Errorf("新密码应校验通过: %v", err)
	}
	if err := e.wallet.VerifyPayPassword(acct, "123456"); !errors.Is(err, ErrPayPasswordError) {
		t.Errorf("旧密码应失效, got %v", err)
	}
}

func TestResetPayPasswordVerifiesCode(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	verifier := &stubVerifier{code: "8888"}

	if err := e.wallet.ResetPayPassword(ctx, 1, "0000", "111111", verifier); !errors.Is(err, ErrVerifyCodeError) {
		t.Errorf("验证码错误应拒绝, got %v", err)
	}
	if err := e.wallet.ResetPayPassword(ctx, 1, "8888", "111111", verifier); err != nil {
		t.Fatalf("重置失败: %v", err)
	}

	acct, _ := e.wallet.GetOrCreate(ctx, 1)
	if err := e.wallet.VerifyPayPassword(acct, "111111"); err != nil {
		t.Errorf("重置后的密码应校验通过: %v", err)
	}
}

func TestLedgerQueryFilters(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.fund(t, 1, 10000)
	_, _ = e.wallet.ChangeBalance(ctx, BalanceChange{
		OwnerID: 1, Kind: model.LedgerKindConsume, Direction: model.DirectionDebit, Amount: 100,
	})
	_, _ = e.wallet.ChangeBalance(ctx, BalanceChange{
		OwnerID: 1, Kind: model.LedgerKindConsume, Direction: model.DirectionDebit, Amount: 200,
	})

	entries, total, err := e.wallet.QueryLedger(ctx, store.LedgerQuery{OwnerID: 1, Kind: model.LedgerKindConsume})
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if total != 2 || len(entries) != 2 {
		t.Errorf("按类型过滤应得2条, got total=%d len=%d", total, len(entries))
	}

	_, total, _ = e.wallet.QueryLedger(ctx, store.LedgerQuery{OwnerID: 1, Direction: model.DirectionCredit})
	if total != 1 {
		t.Errorf("按方向过滤应得1条, got %d", total)
	}

	// 分页
	entries, total, _ = e.wallet.QueryLedger(ctx, store.LedgerQuery{OwnerID: 1, Offset: 0, Limit: 2})
	if total != 3 || len(entries) != 2 {
		t.Errorf("分页查询 total=%d len=%d", total, len(entries))
	}
}

func TestDailyCounterRollover(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.fund(t, 1, 10000)

	err := e.store.Transaction(ctx, func(tx store.Store) error {
		return e.wallet.IncrWithdrawFailureTx(ctx, tx, 1)
	})
	if err != nil {
		t.Fatalf("累加失败: %v", err)
	}
	acct, _ := e.wallet.GetOrCreate(ctx, 1)
	if acct.DailyWithdrawFailures != 1 {
		t.Errorf("当日失败计数应为1, got %d", acct.DailyWithdrawFailures)
	}

	// 跨天后计数归零再累加
	e.clock.advance(25 * time.Hour)
	err = e.store.Transaction(ctx, func(tx store.Store) error {
		return e.wallet.IncrWithdrawFailureTx(ctx, tx, 1)
	})
	if err != nil {
		t.Fatalf("累加失败: %v", err)
	}
	acct, _ = e.wallet.GetOrCreate(ctx, 1)
	if acct.DailyWithdrawFailures != 1 {
		t.Errorf("跨天后计数应归零重计, got %d", acct.DailyWithdrawFailures)
	}
}
