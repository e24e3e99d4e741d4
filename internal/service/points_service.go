package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mallwallet/internal/infrastructure/lock"
	"mallwallet/internal/model"
	"mallwallet/internal/store"
	"mallwallet/pkg/idgen"

	"github.com/sirupsen/logrus"
)

// PointsService 积分账本与兑换工作流
//
// 积分变动约束与资金一致：只经由本服务变动、每次变动一条流水同事务落库；
// 等级由累计获得积分推导，年/月窗口在调用时判定归属
type PointsService struct {
	store  store.Store
	locker lock.Locker
	idgen  NumberSource
	clock  Clock
	topic  string
	log    *logrus.Logger
}

func NewPointsService(st store.Store, locker lock.Locker, gen NumberSource, clock Clock, topic string, log *logrus.Logger) *PointsService {
	return &PointsService{
		store:  st,
		locker: locker,
		idgen:  gen,
		clock:  clock,
		topic:  topic,
		log:    log,
	}
}

// GetOrCreate 查询积分账户，不存在则懒创建
func (s *PointsService) GetOrCreate(ctx context.Context, ownerID int64) (*model.PointsAccount, error) {
	acct, err := s.store.GetPointsAccount(ctx, ownerID)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("查询积分账户失败: %w", err)
	}

	fresh := &model.PointsAccount{
		OwnerID:   ownerID,
		TierLevel: 1,
	}
	if err := s.store.CreatePointsAccountIfAbsent(ctx, fresh); err != nil {
		return nil, fmt.Errorf("创建积分账户失败: %w", err)
	}
	acct, err = s.store.GetPointsAccount(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("查询积分账户失败: %w", err)
	}
	return acct, nil
}

// PointsChange 一次积分变动请求
type PointsChange struct {
	OwnerID     int64
	Kind        string // model.PointsKind*
	Direction   string // model.DirectionCredit / DirectionDebit
	Points      int64  // 恒为正
	Ref         model.BusinessRef
	Description string
	ExpireAt    *time.Time // 本批积分过期时间（奖励类可选）
}

// ChangePoints 变动积分，返回生成的流水
func (s *PointsService) ChangePoints(ctx context.Context, change PointsChange) (*model.PointsLedgerEntry, error) {
	if change.Points <= 0 {
		return nil, ErrInvalidAmount
	}

	release, err := s.locker.Acquire(ctx, lock.PointsKey(change.OwnerID), change.Ref.OrderNo)
	if err != nil {
		return nil, fmt.Errorf("获取积分账户锁失败: %w", err)
	}
	defer release()

	if _, err := s.GetOrCreate(ctx, change.OwnerID); err != nil {
		return nil, err
	}

	var entry *model.PointsLedgerEntry
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		var txErr error
		entry, txErr = s.ChangePointsTx(ctx, tx, change)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ChangePointsTx 事务内变动积分。调用方必须已在 Transaction 内
func (s *PointsService) ChangePointsTx(ctx context.Context, tx store.Store, change PointsChange) (*model.PointsLedgerEntry, error) {
	if change.Points <= 0 {
		return nil, ErrInvalidAmount
	}
	if change.Direction != model.DirectionCredit && change.Direction != model.DirectionDebit {
		return nil, fmt.Errorf("未知积分方向: %s", change.Direction)
	}

	acct, err := tx.GetPointsAccountForUpdate(ctx, change.OwnerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("锁定积分账户失败: %w", err)
	}

	balanceBefore := acct.Balance
	if change.Direction == model.DirectionDebit {
		if acct.Balance < change.Points {
			return nil, ErrInsufficientPoints
		}
		acct.Balance -= change.Points
		switch change.Kind {
		case model.PointsKindExchange:
			acct.TotalSpent += change.Points
		case model.PointsKindExpire:
			acct.TotalExpired += change.Points
		}
	} else {
		acct.Balance += change.Points
		if change.Kind == model.PointsKindRefund {
			// 兑换返还不算新获得，不影响窗口统计与等级
			acct.TotalSpent -= change.Points
		} else {
			acct.TotalEarned += change.Points
			s.rollWindows(acct)
			acct.YearEarned += change.Points
			acct.MonthEarned += change.Points
			acct.TierLevel = model.TierForPoints(acct.TotalEarned)
		}
	}

	if err := tx.UpdatePointsAccount(ctx, acct); err != nil {
		return nil, fmt.Errorf("更新积分账户失败: %w", err)
	}

	entry := &model.PointsLedgerEntry{
		EntryNo:       s.idgen.Next(idgen.PrefixPointsLedger),
		OwnerID:       change.OwnerID,
		Kind:          change.Kind,
		Direction:     change.Direction,
		Points:        change.Points,
		BalanceBefore: balanceBefore,
		BalanceAfter:  acct.Balance,
		BizType:       change.Ref.BizType,
		BizID:         change.Ref.BizID,
		OrderNo:       change.Ref.OrderNo,
		Description:   change.Description,
		ExpireAt:      change.ExpireAt,
		CreatedAt:     s.clock.Now(),
	}
	if err := tx.AppendPointsLedgerEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("记录积分流水失败: %w", err)
	}
	return entry, nil
}

// rollWindows 年/月窗口键变更时归零窗口累计
func (s *PointsService) rollWindows(acct *model.PointsAccount) {
	now := s.clock.Now()
	year := now.Format("2006")
	month := now.Format("2006-01")
	if acct.YearKey != year {
		acct.YearKey = year
		acct.YearEarned = 0
	}
	if acct.MonthKey != month {
		acct.MonthKey = month
		acct.MonthEarned = 0
	}
}

// Exchange 积分兑换商品：校验上架/时间窗/库存/单人限兑，扣积分、减库存、建记录
func (s *PointsService) Exchange(ctx context.Context, ownerID, goodsID, quantity int64, shippingInfo string) (*model.PointsExchangeRecord, error) {
	if quantity <= 0 {
		return nil, ErrInvalidAmount
	}

	exchangeNo := s.idgen.Next(idgen.PrefixExchange)
	release, err := s.locker.Acquire(ctx, lock.PointsKey(ownerID), exchangeNo)
	if err != nil {
		return nil, fmt.Errorf("获取积分账户锁失败: %w", err)
	}
	defer release()

	if _, err := s.GetOrCreate(ctx, ownerID); err != nil {
		return nil, err
	}

	var record *model.PointsExchangeRecord
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		goods, err := tx.GetPointsGoodsForUpdate(ctx, goodsID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrGoodsUnavailable
			}
			return fmt.Errorf("锁定积分商品失败: %w", err)
		}
		now := s.clock.Now()
		if !goods.Active {
			return ErrGoodsUnavailable
		}
		if goods.StartAt != nil && now.Before(*goods.StartAt) {
			return ErrGoodsUnavailable
		}
		if goods.EndAt != nil && !now.Before(*goods.EndAt) {
			return ErrGoodsUnavailable
		}
		if goods.Stock < quantity {
			return ErrInsufficientStock
		}
		if goods.PerOwnerLimit > 0 {
			count, err := tx.CountOwnerExchanges(ctx, ownerID, goodsID)
			if err != nil {
				return fmt.Errorf("查询兑换次数失败: %w", err)
			}
			if count+1 > int64(goods.PerOwnerLimit) {
				return ErrExchangeLimitExceeded
			}
		}

		cost := goods.Points * quantity
		record = &model.PointsExchangeRecord{
			ExchangeNo:   exchangeNo,
			OwnerID:      ownerID,
			GoodsID:      goodsID,
			Quantity:     quantity,
			PointsSpent:  cost,
			Status:       model.ExchangePendingShip,
			ShippingInfo: shippingInfo,
			CreatedAt:    now,
		}
		if err := tx.CreateExchangeRecord(ctx, record); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrDuplicateOrderNumber
			}
			return fmt.Errorf("创建兑换记录失败: %w", err)
		}

		if _, err := s.ChangePointsTx(ctx, tx, PointsChange{
			OwnerID:   ownerID,
			Kind:      model.PointsKindExchange,
			Direction: model.DirectionDebit,
			Points:    cost,
			Ref: model.BusinessRef{
				BizType: "EXCHANGE",
				BizID:   record.ID,
				OrderNo: exchangeNo,
			},
			Description: fmt.Sprintf("兑换商品[%s]x%d", goods.Name, quantity),
		}); err != nil {
			return err
		}

		goods.Stock -= quantity
		goods.ExchangedCount += quantity
		if err := tx.UpdatePointsGoods(ctx, goods); err != nil {
			return fmt.Errorf("更新商品库存失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"exchange_no": exchangeNo,
		"owner_id":    ownerID,
		"goods_id":    goodsID,
		"points":      record.PointsSpent,
	}).Info("积分兑换成功")
	return record, nil
}

// Ship 发货：PENDING_SHIP -> SHIPPED，并写结算事件
func (s *PointsService) Ship(ctx context.Context, exchangeNo, logisticsNo string) (*model.PointsExchangeRecord, error) {
	var result *model.PointsExchangeRecord
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		rec, err := s.getExchangeForUpdate(ctx, tx, exchangeNo)
		if err != nil {
			return err
		}
		if rec.Status != model.ExchangePendingShip {
			return ErrInvalidTransition
		}

		now := s.clock.Now()
		rec.Status = model.ExchangeShipped
		rec.LogisticsNo = logisticsNo
		rec.ShippedAt = &now
		if err := tx.UpdateExchangeRecord(ctx, rec); err != nil {
			return fmt.Errorf("更新兑换记录失败: %w", err)
		}

		if err := emitEventTx(ctx, tx, s.clock, s.topic, model.EventExchangeShipped, rec.ExchangeNo, map[string]interface{}{
			"exchange_no":  rec.ExchangeNo,
			"owner_id":     rec.OwnerID,
			"goods_id":     rec.GoodsID,
			"logistics_no": logisticsNo,
		}); err != nil {
			return err
		}
		result = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Complete 确认收货：SHIPPED -> COMPLETED
func (s *PointsService) Complete(ctx context.Context, exchangeNo string) (*model.PointsExchangeRecord, error) {
	var result *model.PointsExchangeRecord
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		rec, err := s.getExchangeForUpdate(ctx, tx, exchangeNo)
		if err != nil {
			return err
		}
		if rec.Status != model.ExchangeShipped {
			return ErrInvalidTransition
		}

		now := s.clock.Now()
		rec.Status = model.ExchangeCompleted
		rec.CompletedAt = &now
		if err := tx.UpdateExchangeRecord(ctx, rec); err != nil {
			return fmt.Errorf("更新兑换记录失败: %w", err)
		}
		result = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CancelExchange 取消兑换（仅发货前）：返还积分、恢复库存。重复取消幂等返回
func (s *PointsService) CancelExchange(ctx context.Context, ownerID int64, exchangeNo, reason string) (*model.PointsExchangeRecord, error) {
	release, err := s.locker.Acquire(ctx, lock.PointsKey(ownerID), exchangeNo)
	if err != nil {
		return nil, fmt.Errorf("获取积分账户锁失败: %w", err)
	}
	defer release()

	var result *model.PointsExchangeRecord
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		rec, err := s.getExchangeForUpdate(ctx, tx, exchangeNo)
		if err != nil {
			return err
		}
		if rec.OwnerID != ownerID {
			return ErrNotFound
		}
		if rec.Status == model.ExchangeCancelled {
			result = rec
			return nil
		}
		if rec.Status != model.ExchangePendingShip {
			return ErrInvalidTransition
		}

		if _, err := s.ChangePointsTx(ctx, tx, PointsChange{
			OwnerID:   ownerID,
			Kind:      model.PointsKindRefund,
			Direction: model.DirectionCredit,
			Points:    rec.PointsSpent,
			Ref: model.BusinessRef{
				BizType: "EXCHANGE",
				BizID:   rec.ID,
				OrderNo: rec.ExchangeNo,
			},
			Description: "兑换取消，积分返还",
		}); err != nil {
			return err
		}

		goods, err := tx.GetPointsGoodsForUpdate(ctx, rec.GoodsID)
		if err != nil {
			return fmt.Errorf("锁定积分商品失败: %w", err)
		}
		goods.Stock += rec.Quantity
		goods.ExchangedCount -= rec.Quantity
		if err := tx.UpdatePointsGoods(ctx, goods); err != nil {
			return fmt.Errorf("更新商品库存失败: %w", err)
		}

		now := s.clock.Now()
		rec.Status = model.ExchangeCancelled
		rec.CancelReason = reason
		rec.CancelledAt = &now
		if err := tx.UpdateExchangeRecord(ctx, rec); err != nil {
			return fmt.Errorf("更新兑换记录失败: %w", err)
		}
		result = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PointsService) getExchangeForUpdate(ctx context.Context, tx store.Store, exchangeNo string) (*model.PointsExchangeRecord, error) {
	rec, err := tx.GetExchangeRecordForUpdate(ctx, exchangeNo)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("锁定兑换记录失败: %w", err)
	}
	return rec, nil
}

// QueryLedger 积分流水查询
func (s *PointsService) QueryLedger(ctx context.Context, q store.PointsLedgerQuery) ([]*model.PointsLedgerEntry, int64, error) {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	entries, total, err := s.store.QueryPointsLedger(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("查询积分流水失败: %w", err)
	}
	return entries, total, nil
}

// GetExchange 查询兑换记录
func (s *PointsService) GetExchange(ctx context.Context, exchangeNo string) (*model.PointsExchangeRecord, error) {
	rec, err := s.store.GetExchangeRecord(ctx, exchangeNo)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("查询兑换记录失败: %w", err)
	}
	return rec, nil
}

// ListExchanges 分页查询会员兑换记录
func (s *PointsService) ListExchanges(ctx context.Context, q store.OrderQuery) ([]*model.PointsExchangeRecord, int64, error) {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	records, total, err := s.store.ListExchangeRecords(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("查询兑换记录失败: %w", err)
	}
	return records, total, nil
}
