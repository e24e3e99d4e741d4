package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mallwallet/internal/config"
	"mallwallet/internal/infrastructure/lock"
	"mallwallet/internal/model"
	"mallwallet/internal/store"
	"mallwallet/pkg/idgen"

	"github.com/sirupsen/logrus"
)

// RechargeService 充值工作流
//
// 支付状态（PENDING -> SUCCESS/FAILED/CANCELLED）与入账状态
// （UNACCOUNTED -> ACCOUNTED）解耦：渠道回调可能重复投递，
// 入账以 account_status 的单向迁移保证至多一次
type RechargeService struct {
	store  store.Store
	locker lock.Locker
	wallet *WalletService
	idgen  NumberSource
	clock  Clock
	cfg    config.RechargeConfig
	topic  string
	log    *logrus.Logger
}

func NewRechargeService(st store.Store, locker lock.Locker, wallet *WalletService, gen NumberSource, clock Clock, cfg config.RechargeConfig, topic string, log *logrus.Logger) *RechargeService {
	return &RechargeService{
		store:  st,
		locker: locker,
		wallet: wallet,
		idgen:  gen,
		clock:  clock,
		cfg:    cfg,
		topic:  topic,
		log:    log,
	}
}

// Create 创建充值单。此时不动余额，仅登记待支付单据
func (s *RechargeService) Create(ctx context.Context, ownerID, amount int64, channel string) (*model.RechargeOrder, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	rate, ok := s.cfg.Channel(channel)
	if !ok {
		return nil, fmt.Errorf("不支持的充值渠道: %s", channel)
	}
	fee := calcChannelFee(rate, amount)
	if amount <= fee {
		return nil, ErrAmountTooLow
	}

	acct, err := s.wallet.GetOrCreate(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if err := checkMutable(acct); err != nil {
		return nil, err
	}

	expireMinutes := s.cfg.ExpireMinutes
	if expireMinutes <= 0 {
		expireMinutes = 30
	}
	now := s.clock.Now()
	order := &model.RechargeOrder{
		OrderNo:       s.idgen.Next(idgen.PrefixRecharge),
		OwnerID:       ownerID,
		Amount:        amount,
		Fee:           fee,
		ActualAmount:  amount - fee,
		Channel:       channel,
		PayStatus:     model.RechargeStatusPending,
		AccountStatus: model.RechargeUnaccounted,
		ExpiredAt:     now.Add(time.Duration(expireMinutes) * time.Minute),
		CreatedAt:     now,
	}
	if err := s.store.CreateRechargeOrder(ctx, order); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrDuplicateOrderNumber
		}
		return nil, fmt.Errorf("创建充值单失败: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"order_no": order.OrderNo,
		"owner_id": ownerID,
		"amount":   amount,
		"channel":  channel,
	}).Info("充值单已创建")
	return order, nil
}

// HandlePaymentSuccess 渠道支付成功回调。
// 状态迁移、钱包入账、结算事件在同一事务内提交；重复回调幂等返回
func (s *RechargeService) HandlePaymentSuccess(ctx context.Context, orderNo, externalRef string) (*model.RechargeOrder, error) {
	release, err := s.locker.Acquire(ctx, lock.RechargeKey(orderNo), externalRef)
	if err != nil {
		return nil, fmt.Errorf("获取订单锁失败: %w", err)
	}
	defer release()

	var result *model.RechargeOrder
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		order, err := tx.GetRechargeOrderForUpdate(ctx, orderNo)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("锁定充值单失败: %w", err)
		}

		// 重复回调：已成功则直接幂等返回（入账如有遗漏一并补齐）
		if order.PayStatus == model.RechargeStatusSuccess {
			if order.AccountStatus == model.RechargeUnaccounted {
				if err := s.accountTx(ctx, tx, order); err != nil {
					return err
				}
			}
			result = order
			return nil
		}
		if !model.RechargeCanTransition(order.PayStatus, model.RechargeStatusSuccess) {
			return ErrInvalidTransition
		}

		now := s.clock.Now()
		order.PayStatus = model.RechargeStatusSuccess
		order.ExternalRef = externalRef
		order.PaidAt = &now
		if err := tx.UpdateRechargeOrder(ctx, order); err != nil {
			return fmt.Errorf("更新充值单失败: %w", err)
		}

		if err := s.accountTx(ctx, tx, order); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"order_no":     orderNo,
		"external_ref": externalRef,
		"actual":       result.ActualAmount,
	}).Info("充值支付成功并已入账")
	return result, nil
}

// AccountToWallet 补入账：支付已成功但入账遗漏时由运维/任务触发。
// 已入账时幂等返回
func (s *RechargeService) AccountToWallet(ctx context.Context, orderNo string) (*model.RechargeOrder, error) {
	release, err := s.locker.Acquire(ctx, lock.RechargeKey(orderNo), "account")
	if err != nil {
		return nil, fmt.Errorf("获取订单锁失败: %w", err)
	}
	defer release()

	var result *model.RechargeOrder
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		order, err := tx.GetRechargeOrderForUpdate(ctx, orderNo)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("锁定充值单失败: %w", err)
		}
		if order.PayStatus != model.RechargeStatusSuccess {
			return ErrInvalidTransition
		}
		if order.AccountStatus == model.RechargeAccounted {
			result = order
			return nil
		}
		if err := s.accountTx(ctx, tx, order); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// accountTx 事务内入账：钱包加可用余额 + 流水 + 标记 ACCOUNTED + 结算事件。
// 调用方已持有订单行锁且已确认 pay_status = SUCCESS、account_status = UNACCOUNTED
func (s *RechargeService) accountTx(ctx context.Context, tx store.Store, order *model.RechargeOrder) error {
	if _, err := s.wallet.ChangeBalanceTx(ctx, tx, BalanceChange{
		OwnerID:   order.OwnerID,
		Kind:      model.LedgerKindRecharge,
		Direction: model.DirectionCredit,
		Amount:    order.ActualAmount,
		Ref: model.BusinessRef{
			BizType: "RECHARGE",
			BizID:   order.ID,
			OrderNo: order.OrderNo,
		},
		Description: fmt.Sprintf("充值入账，渠道%s，手续费%d分", order.Channel, order.Fee),
	}); err != nil {
		return err
	}

	now := s.clock.Now()
	order.AccountStatus = model.RechargeAccounted
	order.AccountedAt = &now
	if err := tx.UpdateRechargeOrder(ctx, order); err != nil {
		return fmt.Errorf("更新充值单入账状态失败: %w", err)
	}

	return emitEventTx(ctx, tx, s.clock, s.topic, model.EventRechargeCredited, order.OrderNo, map[string]interface{}{
		"order_no": order.OrderNo,
		"owner_id": order.OwnerID,
		"amount":   order.ActualAmount,
		"channel":  order.Channel,
	})
}

// HandlePaymentFailed 渠道支付失败回调，并累加当日失败计数
func (s *RechargeService) HandlePaymentFailed(ctx context.Context, orderNo, reason string) (*model.RechargeOrder, error) {
	return s.finishOrder(ctx, orderNo, model.RechargeStatusFailed, reason, true)
}

// Cancel 用户主动取消待支付充值单
func (s *RechargeService) Cancel(ctx context.Context, ownerID int64, orderNo, reason string) (*model.RechargeOrder, error) {
	order, err := s.store.GetRechargeOrder(ctx, orderNo)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("查询充值单失败: %w", err)
	}
	if order.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return s.finishOrder(ctx, orderNo, model.RechargeStatusCancelled, reason, false)
}

// finishOrder 将待支付单迁移到失败/取消终态。已在目标终态时幂等返回
func (s *RechargeService) finishOrder(ctx context.Context, orderNo, target, reason string, countFailure bool) (*model.RechargeOrder, error) {
	release, err := s.locker.Acquire(ctx, lock.RechargeKey(orderNo), target)
	if err != nil {
		return nil, fmt.Errorf("获取订单锁失败: %w", err)
	}
	defer release()

	var result *model.RechargeOrder
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		order, err := tx.GetRechargeOrderForUpdate(ctx, orderNo)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("锁定充值单失败: %w", err)
		}
		if order.PayStatus == target {
			result = order
			return nil
		}
		if order.PayStatus == model.RechargeStatusSuccess {
			return ErrAlreadyPaid
		}
		if !model.RechargeCanTransition(order.PayStatus, target) {
			return ErrInvalidTransition
		}

		now := s.clock.Now()
		order.PayStatus = target
		order.FailReason = reason
		if target == model.RechargeStatusCancelled {
			order.CancelledAt = &now
		}
		if err := tx.UpdateRechargeOrder(ctx, order); err != nil {
			return fmt.Errorf("更新充值单失败: %w", err)
		}

		if countFailure {
			if err := s.wallet.IncrRechargeFailureTx(ctx, tx, order.OwnerID); err != nil {
				return err
			}
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CancelExpired 扫描并取消过期未支付的充值单，返回取消笔数。
// 扫描与取消分批进行，单笔失败只记日志不中断
func (s *RechargeService) CancelExpired(ctx context.Context, batch int) (int, error) {
	if batch <= 0 {
		batch = 100
	}
	orders, err := s.store.ListExpiredRechargeOrders(ctx, s.clock.Now(), batch)
	if err != nil {
		return 0, fmt.Errorf("扫描过期充值单失败: %w", err)
	}

	cancelled := 0
	for _, o := range orders {
		if _, err := s.finishOrder(ctx, o.OrderNo, model.RechargeStatusCancelled, "超时未支付，系统自动取消", false); err != nil {
			s.log.WithFields(logrus.Fields{
				"order_no": o.OrderNo,
				"error":    err,
			}).Warn("取消过期充值单失败")
			continue
		}
		cancelled++
	}
	return cancelled, nil
}

// Get 查询充值单
func (s *RechargeService) Get(ctx context.Context, orderNo string) (*model.RechargeOrder, error) {
	order, err := s.store.GetRechargeOrder(ctx, orderNo)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("查询充值单失败: %w", err)
	}
	return order, nil
}

// List 分页查询会员充值单
func (s *RechargeService) List(ctx context.Context, q store.OrderQuery) ([]*model.RechargeOrder, int64, error) {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	orders, total, err := s.store.ListRechargeOrders(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("查询充值单失败: %w", err)
	}
	return orders, total, nil
}
