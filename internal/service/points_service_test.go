package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"mallwallet/internal/model"
	"mallwallet/internal/store"
)

func (e *env) earnPoints(t *testing.T, ownerID, points int64) {
	t.Helper()
	if _, err := e.points.ChangePoints(context.Background(), PointsChange{
		OwnerID:   ownerID,
		Kind:      model.PointsKindReward,
		Direction: model.DirectionCredit,
		Points:    points,
	}); err != nil {
		t.Fatalf("预置积分失败: %v", err)
	}
}

func (e *env) seedGoods(g model.PointsGoods) model.PointsGoods {
	if g.ID == 0 {
		g.ID = 1000
	}
	e.store.PutPointsGoods(g)
	return g
}

func TestChangePointsAggregatesAndTier(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.earnPoints(t, 1, 600)
	acct, _ := e.points.GetOrCreate(ctx, 1)
	if acct.Balance != 600 || acct.TotalEarned != 600 {
		t.Errorf("获得后 balance=%d earned=%d", acct.Balance, acct.TotalEarned)
	}
	if acct.TierLevel != 2 {
		t.Errorf("600累计积分应为2级, got %d", acct.TierLevel)
	}
	if acct.YearEarned != 600 || acct.MonthEarned != 600 {
		t.Errorf("窗口统计错误: year=%d month=%d", acct.YearEarned, acct.MonthEarned)
	}

	e.earnPoints(t, 1, 9400)
	acct, _ = e.points.GetOrCreate(ctx, 1)
	if acct.TierLevel != 5 {
		t.Errorf("10000累计积分应为5级, got %d", acct.TierLevel)
	}

	// 扣减不降级
	if _, err := e.points.ChangePoints(ctx, PointsChange{
		OwnerID: 1, Kind: model.PointsKindExchange, Direction: model.DirectionDebit, Points: 9000,
	}); err != nil {
		t.Fatalf("扣减失败: %v", err)
	}
	acct, _ = e.points.GetOrCreate(ctx, 1)
	if acct.Balance != 1000 || acct.TotalSpent != 9000 {
		t.Errorf("扣减后 balance=%d spent=%d", acct.Balance, acct.TotalSpent)
	}
	if acct.TierLevel != 5 {
		t.Errorf("等级由累计获得决定, got %d", acct.TierLevel)
	}
}

func TestChangePointsInsufficient(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.earnPoints(t, 1, 100)

	_, err := e.points.ChangePoints(ctx, PointsChange{
		OwnerID: 1, Kind: model.PointsKindExchange, Direction: model.DirectionDebit, Points: 200,
	})
	if !errors.Is(err, ErrInsufficientPoints) {
		t.Fatalf("期望 ErrInsufficientPoints, got %v", err)
	}
	acct, _ := e.points.GetOrCreate(ctx, 1)
	if acct.Balance != 100 {
		t.Errorf("失败扣减不应改变余额, got %d", acct.Balance)
	}
}

func TestPointsWindowRollover(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.earnPoints(t, 1, 300)
	// 跨月
	e.clock.advance(31 * 24 * time.Hour)
	e.earnPoints(t, 1, 200)

	acct, _ := e.points.GetOrCreate(ctx, 1)
	if acct.MonthEarned != 200 {
		t.Errorf("跨月后月窗口应重计, got %d", acct.MonthEarned)
	}
	if acct.YearEarned != 500 {
		t.Errorf("同年年窗口应累计, got %d", acct.YearEarned)
	}
	if acct.TotalEarned != 500 {
		t.Errorf("累计获得应为500, got %d", acct.TotalEarned)
	}
}

// Scenario: 500积分兑换500分商品 → 余额0、库存-1；发货前取消 → 余额500、库存+1
func TestExchangeAndCancel(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.earnPoints(t, 1, 500)
	goods := e.seedGoods(model.PointsGoods{Name: "保温杯", Points: 500, Stock: 10, Active: true})

	rec, err := e.points.Exchange(ctx, 1, goods.ID, 1, "北京市xx区xx路")
	if err != nil {
		t.Fatalf("兑换失败: %v", err)
	}
	if rec.PointsSpent != 500 || rec.Status != model.ExchangePendingShip {
		t.Fatalf("兑换记录错误: spent=%d status=%s", rec.PointsSpent, rec.Status)
	}

	acct, _ := e.points.GetOrCreate(ctx, 1)
	if acct.Balance != 0 {
		t.Errorf("兑换后积分应为0, got %d", acct.Balance)
	}
	g, _ := e.store.GetPointsGoods(ctx, goods.ID)
	if g.Stock != 9 || g.ExchangedCount != 1 {
		t.Errorf("兑换后 stock=%d exchanged=%d", g.Stock, g.ExchangedCount)
	}

	// 发货前取消：返还积分、恢复库存
	for i := 0; i < 2; i++ {
		if _, err := e.points.CancelExchange(ctx, 1, rec.ExchangeNo, "不要了"); err != nil {
			t.Fatalf("第%d次取消失败: %v", i+1, err)
		}
	}
	acct, _ = e.points.GetOrCreate(ctx, 1)
	if acct.Balance != 500 {
		t.Errorf("重复取消应只返还一次, got %d", acct.Balance)
	}
	g, _ = e.store.GetPointsGoods(ctx, goods.ID)
	if g.Stock != 10 || g.ExchangedCount != 0 {
		t.Errorf("取消后 stock=%d exchanged=%d", g.Stock, g.ExchangedCount)
	}
	// 返还不算新获得，等级不变
	if acct.TotalEarned != 500 {
		t.Errorf("返还不应计入累计获得, got %d", acct.TotalEarned)
	}
}

func TestExchangeValidations(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.earnPoints(t, 1, 10000)

	// 未上架
	off := e.seedGoods(model.PointsGoods{ID: 1, Name: "下架品", Points: 100, Stock: 10, Active: false})
	if _, err := e.points.Exchange(ctx, 1, off.ID, 1, "addr"); !errors.Is(err, ErrGoodsUnavailable) {
		t.Errorf("未上架应拒绝, got %v", err)
	}

	// 不在时间窗
	start := e.clock.Now().Add(time.Hour)
	future := e.seedGoods(model.PointsGoods{ID: 2, Name: "预告品", Points: 100, Stock: 10, Active: true, StartAt: &start})
	if _, err := e.points.Exchange(ctx, 1, future.ID, 1, "addr"); !errors.Is(err, ErrGoodsUnavailable) {
		t.Errorf("未开始应拒绝, got %v", err)
	}

	// 库存不足
	low := e.seedGoods(model.PointsGoods{ID: 3, Name: "缺货品", Points: 100, Stock: 2, Active: true})
	if _, err := e.points.Exchange(ctx, 1, low.ID, 3, "addr"); !errors.Is(err, ErrInsufficientStock) {
		t.Errorf("库存不足应拒绝, got %v", err)
	}

	// 积分不足
	dear := e.seedGoods(model.PointsGoods{ID: 4, Name: "高价品", Points: 20000, Stock: 10, Active: true})
	if _, err := e.points.Exchange(ctx, 1, dear.ID, 1, "addr"); !errors.Is(err, ErrInsufficientPoints) {
		t.Errorf("积分不足应拒绝, got %v", err)
	}

	// 单人限兑
	limited := e.seedGoods(model.PointsGoods{ID: 5, Name: "限兑品", Points: 100, Stock: 10, Active: true, PerOwnerLimit: 1})
	if _, err := e.points.Exchange(ctx, 1, limited.ID, 1, "addr"); err != nil {
		t.Fatalf("首次兑换失败: %v", err)
	}
	if _, err := e.points.Exchange(ctx, 1, limited.ID, 1, "addr"); !errors.Is(err, ErrExchangeLimitExceeded) {
		t.Errorf("超出限兑应拒绝, got %v", err)
	}
}

func TestExchangeShipCompleteFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.earnPoints(t, 1, 500)
	goods := e.seedGoods(model.PointsGoods{Name: "保温杯", Points: 500, Stock: 10, Active: true})
	rec, _ := e.points.Exchange(ctx, 1, goods.ID, 1, "addr")

	// 未发货不可完成
	if _, err := e.points.Complete(ctx, rec.ExchangeNo); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("未发货不可完成, got %v", err)
	}

	shipped, err := e.points.Ship(ctx, rec.ExchangeNo, "SF123456")
	if err != nil {
		t.Fatalf("发货失败: %v", err)
	}
	if shipped.Status != model.ExchangeShipped || shipped.LogisticsNo != "SF123456" {
		t.Errorf("发货后状态错误: %s", shipped.Status)
	}

	// 发货后不可取消
	if _, err := e.points.CancelExchange(ctx, 1, rec.ExchangeNo, "晚了"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("发货后取消应拒绝, got %v", err)
	}
	// 重复发货拒绝
	if _, err := e.points.Ship(ctx, rec.ExchangeNo, "SF654321"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("重复发货应拒绝, got %v", err)
	}

	done, err := e.points.Complete(ctx, rec.ExchangeNo)
	if err != nil {
		t.Fatalf("完成失败: %v", err)
	}
	if done.Status != model.ExchangeCompleted || done.CompletedAt == nil {
		t.Errorf("完成后状态错误: %s", done.Status)
	}
}

func TestPointsLedgerQuery(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.earnPoints(t, 1, 500)
	_, _ = e.points.ChangePoints(ctx, PointsChange{
		OwnerID: 1, Kind: model.PointsKindExchange, Direction: model.DirectionDebit, Points: 200,
	})

	entries, total, err := e.points.QueryLedger(ctx, store.PointsLedgerQuery{OwnerID: 1})
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if total != 2 || len(entries) != 2 {
		t.Errorf("应有2条积分流水, got total=%d", total)
	}

	_, total, _ = e.points.QueryLedger(ctx, store.PointsLedgerQuery{OwnerID: 1, Kind: model.PointsKindExchange})
	if total != 1 {
		t.Errorf("按类型过滤应得1条, got %d", total)
	}
}
