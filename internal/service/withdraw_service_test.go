package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"mallwallet/internal/model"
	"mallwallet/internal/store"
)

func setupWithdrawOwner(t *testing.T, e *env, ownerID, balance int64) {
	t.Helper()
	e.fund(t, ownerID, balance)
	if err := e.wallet.SetPayPassword(context.Background(), ownerID, "123456"); err != nil {
		t.Fatalf("设置支付密码失败: %v", err)
	}
}

// Scenario: 提现100元，费率2%（最低2元）、税率1% → fee=2元 tax=1元 payout=97元，
// 创建冻结102元，驳回恰好恢复102元
func TestWithdrawCreateAndReject(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	setupWithdrawOwner(t, e, 1, 20000)

	order, err := e.withdraw.Create(ctx, 1, 10000, "alipay", "支付宝账号xxx", "123456")
	if err != nil {
		t.Fatalf("创建提现单失败: %v", err)
	}
	if order.Fee != 200 || order.TaxAmount != 100 || order.Payout != 9700 || order.HoldAmount != 10200 {
		t.Fatalf("费税计算错误: fee=%d tax=%d payout=%d hold=%d", order.Fee, order.TaxAmount, order.Payout, order.HoldAmount)
	}

	balance, frozen := e.balance(t, 1)
	if balance != 9800 || frozen != 10200 {
		t.Fatalf("创建后 balance=%d frozen=%d", balance, frozen)
	}
	e.mustReconcile(t, 1)

	got, err := e.withdraw.Audit(ctx, order.WithdrawNo, false, 99, "资料不全")
	if err != nil {
		t.Fatalf("驳回失败: %v", err)
	}
	if got.AuditStatus != model.WithdrawAuditRejected || !got.HoldReleased {
		t.Errorf("驳回后状态错误: %s released=%v", got.AuditStatus, got.HoldReleased)
	}

	balance, frozen = e.balance(t, 1)
	if balance != 20000 || frozen != 0 {
		t.Errorf("驳回应恰好恢复102元: balance=%d frozen=%d", balance, frozen)
	}
	e.mustReconcile(t, 1)

	// 审核终结后不可重复审核
	if _, err := e.withdraw.Audit(ctx, order.WithdrawNo, true, 99, ""); !errors.Is(err, ErrAlreadyAudited) {
		t.Errorf("重复审核应拒绝, got %v", err)
	}
}

// Scenario: 余额40元申请提现50元 → InsufficientBalance 且不建单
func TestWithdrawInsufficientNoOrder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	setupWithdrawOwner(t, e, 1, 4000)

	if _, err := e.withdraw.Create(ctx, 1, 5000, "alipay", "xxx", "123456"); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("期望 ErrInsufficientBalance, got %v", err)
	}

	_, total, _ := e.withdraw.List(ctx, store.OrderQuery{OwnerID: 1})
	if total != 0 {
		t.Errorf("失败的申请不应建单, got %d", total)
	}
	balance, frozen := e.balance(t, 1)
	if balance != 4000 || frozen != 0 {
		t.Errorf("失败的申请不应动账: balance=%d frozen=%d", balance, frozen)
	}
}

func TestWithdrawCreateValidations(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	setupWithdrawOwner(t, e, 1, 100000)

	if _, err := e.withdraw.Create(ctx, 1, 500, "alipay", "xxx", "123456"); !errors.Is(err, ErrAmountTooLow) {
		t.Errorf("低于最低限额应拒绝, got %v", err)
	}
	if _, err := e.withdraw.Create(ctx, 1, 10000, "alipay", "xxx", "000000"); !errors.Is(err, ErrPayPasswordError) {
		t.Errorf("密码错误应拒绝, got %v", err)
	}
}

// 支付密码是可选凭据：未设置的会员提现不校验，与转账口径一致
func TestWithdrawWithoutPayPassword(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.fund(t, 2, 20000)

	order, err := e.withdraw.Create(ctx, 2, 10000, "alipay", "xxx", "")
	if err != nil {
		t.Fatalf("未设密码的会员应可提现: %v", err)
	}
	if order.HoldAmount != 10200 {
		t.Errorf("冻结金额应为 amount+fee, got %d", order.HoldAmount)
	}
	balance, frozen := e.balance(t, 2)
	if balance != 9800 || frozen != 10200 {
		t.Errorf("冻结后账户状态错误: balance=%d frozen=%d", balance, frozen)
	}
	e.mustReconcile(t, 2)
}

func TestWithdrawProcessComplete(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	setupWithdrawOwner(t, e, 1, 20000)

	order, _ := e.withdraw.Create(ctx, 1, 10000, "alipay", "xxx", "123456")

	// 审核前不可打款
	if _, err := e.withdraw.Process(ctx, order.WithdrawNo, "alipay", "pay-001"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("未审核不可打款, got %v", err)
	}

	approved, err := e.withdraw.Audit(ctx, order.WithdrawNo, true, 99, "通过")
	if err != nil {
		t.Fatalf("审核失败: %v", err)
	}
	if approved.ProcessStatus != model.WithdrawProcessProcessing {
		t.Errorf("审核通过后应进入打款中, got %s", approved.ProcessStatus)
	}

	done, err := e.withdraw.Process(ctx, order.WithdrawNo, "alipay", "pay-001")
	if err != nil {
		t.Fatalf("打款失败: %v", err)
	}
	if done.ProcessStatus != model.WithdrawProcessCompleted || done.PaidOutAt == nil {
		t.Errorf("打款后状态错误: %s", done.ProcessStatus)
	}

	// 解冻102元后按提现金额100元出账
	balance, frozen := e.balance(t, 1)
	if balance != 10000 || frozen != 0 {
		t.Errorf("完成后 balance=%d frozen=%d", balance, frozen)
	}
	e.mustReconcile(t, 1)

	acct, _ := e.wallet.GetOrCreate(ctx, 1)
	if acct.TotalWithdraw != 10000 {
		t.Errorf("累计提现应为10000, got %d", acct.TotalWithdraw)
	}

	// 重复打款回执拒绝
	if _, err := e.withdraw.Process(ctx, order.WithdrawNo, "alipay", "pay-002"); !errors.Is(err, ErrAlreadyProcessed) {
		t.Errorf("重复打款应拒绝, got %v", err)
	}
	// 完成后失败回执拒绝
	if _, err := e.withdraw.HandleFailure(ctx, order.WithdrawNo, "晚到的失败"); !errors.Is(err, ErrAlreadyProcessed) {
		t.Errorf("完成后失败回执应拒绝, got %v", err)
	}
}

func TestWithdrawFailureReleasesHoldOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	setupWithdrawOwner(t, e, 1, 20000)

	order, _ := e.withdraw.Create(ctx, 1, 10000, "alipay", "xxx", "123456")
	_, _ = e.withdraw.Audit(ctx, order.WithdrawNo, true, 99, "")

	for i := 0; i < 2; i++ {
		got, err := e.withdraw.HandleFailure(ctx, order.WithdrawNo, "渠道打款失败")
		if err != nil {
			t.Fatalf("第%d次失败回执出错: %v", i+1, err)
		}
		if got.ProcessStatus != model.WithdrawProcessFailed {
			t.Errorf("状态应为 FAILED, got %s", got.ProcessStatus)
		}
	}

	// 冻结只释放一次
	balance, frozen := e.balance(t, 1)
	if balance != 20000 || frozen != 0 {
		t.Errorf("失败应恰好释放一次冻结: balance=%d frozen=%d", balance, frozen)
	}
	e.mustReconcile(t, 1)

	acct, _ := e.wallet.GetOrCreate(ctx, 1)
	if acct.DailyWithdrawFailures != 1 {
		t.Errorf("失败计数应为1, got %d", acct.DailyWithdrawFailures)
	}
}

func TestWithdrawCancelBeforeApproval(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	setupWithdrawOwner(t, e, 1, 20000)

	order, _ := e.withdraw.Create(ctx, 1, 10000, "alipay", "xxx", "123456")

	got, err := e.withdraw.Cancel(ctx, 1, order.WithdrawNo, "不提了")
	if err != nil {
		t.Fatalf("取消失败: %v", err)
	}
	if got.AuditStatus != model.WithdrawAuditCancelled {
		t.Errorf("取消后状态错误: %s", got.AuditStatus)
	}
	// 重复取消幂等
	if _, err := e.withdraw.Cancel(ctx, 1, order.WithdrawNo, "再取消"); err != nil {
		t.Errorf("重复取消应幂等: %v", err)
	}

	balance, frozen := e.balance(t, 1)
	if balance != 20000 || frozen != 0 {
		t.Errorf("取消应恢复冻结: balance=%d frozen=%d", balance, frozen)
	}

	// 审核通过后不可取消
	order2, _ := e.withdraw.Create(ctx, 1, 10000, "alipay", "xxx", "123456")
	_, _ = e.withdraw.Audit(ctx, order2.WithdrawNo, true, 99, "")
	if _, err := e.withdraw.Cancel(ctx, 1, order2.WithdrawNo, "晚了"); !errors.Is(err, ErrAlreadyAudited) {
		t.Errorf("审核后取消应拒绝, got %v", err)
	}
}

func TestWithdrawRollingLimits(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	setupWithdrawOwner(t, e, 1, 10000000)

	// 笔数限制：3笔
	for i := 0; i < 3; i++ {
		if _, err := e.withdraw.Create(ctx, 1, 10000, "alipay", "xxx", "123456"); err != nil {
			t.Fatalf("第%d笔提现失败: %v", i+1, err)
		}
	}
	if _, err := e.withdraw.Create(ctx, 1, 10000, "alipay", "xxx", "123456"); !errors.Is(err, ErrDailyLimitExceeded) {
		t.Fatalf("超出笔数限制应拒绝, got %v", err)
	}

	// 24小时窗口滑出后恢复
	e.clock.advance(25 * time.Hour)
	if _, err := e.withdraw.Create(ctx, 1, 10000, "alipay", "xxx", "123456"); err != nil {
		t.Errorf("窗口滑出后应放行: %v", err)
	}

	// 金额限制：窗口内累计不超过100000
	e.clock.advance(25 * time.Hour)
	if _, err := e.withdraw.Create(ctx, 1, 80000, "alipay", "xxx", "123456"); err != nil {
		t.Fatalf("首笔大额失败: %v", err)
	}
	if _, err := e.withdraw.Create(ctx, 1, 30000, "alipay", "xxx", "123456"); !errors.Is(err, ErrDailyLimitExceeded) {
		t.Errorf("超出金额限制应拒绝, got %v", err)
	}
}

func TestWithdrawRejectedOrdersNotCountedInLimit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	setupWithdrawOwner(t, e, 1, 10000000)

	order, _ := e.withdraw.Create(ctx, 1, 10000, "alipay", "xxx", "123456")
	_, _ = e.withdraw.Audit(ctx, order.WithdrawNo, false, 99, "驳回")

	// 驳回的单不占窗口额度
	for i := 0; i < 3; i++ {
		if _, err := e.withdraw.Create(ctx, 1, 10000, "alipay", "xxx", "123456"); err != nil {
			t.Fatalf("驳回后第%d笔应放行: %v", i+1, err)
		}
	}
}
