package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"mallwallet/internal/config"
	"mallwallet/internal/infrastructure/lock"
	"mallwallet/internal/model"
	"mallwallet/internal/store/memory"

	"github.com/sirupsen/logrus"
)

// fixedClock 可手动推进的固定时钟
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{t: time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// seqGen 顺序单号生成器，测试输出可预期
type seqGen struct {
	mu sync.Mutex
	n  int
}

func (g *seqGen) Next(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s%06d", prefix, g.n)
}

// stubVerifier 固定验证码校验器
type stubVerifier struct {
	code string
}

func (v *stubVerifier) Verify(ctx context.Context, ownerID int64, code string) (bool, error) {
	return code == v.code, nil
}

type env struct {
	store    *memory.Memory
	clock    *fixedClock
	wallet   *WalletService
	recharge *RechargeService
	withdraw *WithdrawService
	points   *PointsService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	clock := newFixedClock()
	st := memory.New()
	st.Now = clock.Now

	log := logrus.New()
	log.SetOutput(io.Discard)

	locker := lock.NewLocalLocker()
	gen := &seqGen{}

	rechargeCfg := config.RechargeConfig{
		ExpireMinutes: 30,
		Channels: []config.ChannelRate{
			{Name: "alipay", FeeRateBp: 60},
			{Name: "free", FeeRateBp: 0},
		},
	}
	withdrawCfg := config.WithdrawConfig{
		MinAmount:        1000,
		DailyLimitCount:  3,
		DailyLimitAmount: 100000,
		Channels: []config.ChannelRate{
			{Name: "alipay", FeeRateBp: 200, MinFee: 200, TaxRateBp: 100},
		},
	}

	wallet := NewWalletService(st, locker, gen, clock, log)
	return &env{
		store:    st,
		clock:    clock,
		wallet:   wallet,
		recharge: NewRechargeService(st, locker, wallet, gen, clock, rechargeCfg, "settlement", log),
		withdraw: NewWithdrawService(st, locker, wallet, gen, clock, withdrawCfg, "settlement", log),
		points:   NewPointsService(st, locker, gen, clock, "settlement", log),
	}
}

// fund 给会员账户充入可用余额
func (e *env) fund(t *testing.T, ownerID, amount int64) {
	t.Helper()
	if _, err := e.wallet.ChangeBalance(context.Background(), BalanceChange{
		OwnerID:   ownerID,
		Kind:      model.LedgerKindReward,
		Direction: model.DirectionCredit,
		Amount:    amount,
	}); err != nil {
		t.Fatalf("预置余额失败: %v", err)
	}
}

// mustReconcile 校验对账不变式
func (e *env) mustReconcile(t *testing.T, ownerID int64) {
	t.Helper()
	if err := e.wallet.Reconcile(context.Background(), ownerID); err != nil {
		t.Fatalf("对账失败: %v", err)
	}
}

func (e *env) balance(t *testing.T, ownerID int64) (int64, int64) {
	t.Helper()
	acct, err := e.wallet.GetOrCreate(context.Background(), ownerID)
	if err != nil {
		t.Fatalf("查询账户失败: %v", err)
	}
	return acct.Balance, acct.FrozenBalance
}
