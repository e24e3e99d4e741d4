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

// WithdrawService 提现工作流
//
// 审核轴（PENDING -> APPROVED/REJECTED/CANCELLED）先行定论，
// 打款轴（PENDING -> PROCESSING -> COMPLETED/FAILED）仅在审核通过后推进。
// 创建时冻结 amount + fee，任一终态路径上恰好释放一次（hold_released 单向标记）
type WithdrawService struct {
	store  store.Store
	locker lock.Locker
	wallet *WalletService
	idgen  NumberSource
	clock  Clock
	cfg    config.WithdrawConfig
	topic  string
	log    *logrus.Logger
}

func NewWithdrawService(st store.Store, locker lock.Locker, wallet *WalletService, gen NumberSource, clock Clock, cfg config.WithdrawConfig, topic string, log *logrus.Logger) *WithdrawService {
	return &WithdrawService{
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

// Create 发起提现：校验限额与支付密码，冻结 amount + fee，建单待审核
func (s *WithdrawService) Create(ctx context.Context, ownerID, amount int64, channel, destination, payPassword string) (*model.WithdrawOrder, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if amount < s.cfg.MinAmount {
		return nil, ErrAmountTooLow
	}
	rate, ok := s.cfg.Channel(channel)
	if !ok {
		return nil, fmt.Errorf("不支持的提现渠道: %s", channel)
	}
	fee := calcChannelFee(rate, amount)
	tax := calcTax(rate.TaxRateBp, amount)
	payout := amount - fee - tax
	if payout <= 0 {
		return nil, ErrAmountTooLow
	}

	withdrawNo := s.idgen.Next(idgen.PrefixWithdraw)
	release, err := s.locker.Acquire(ctx, lock.WalletKey(ownerID), withdrawNo)
	if err != nil {
		return nil, fmt.Errorf("获取账户锁失败: %w", err)
	}
	defer release()

	acct, err := s.wallet.GetOrCreate(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if err := checkMutable(acct); err != nil {
		return nil, err
	}
	// 已设置支付密码则必须校验；未设置不拦截，与转账口径一致
	if err := s.wallet.VerifyPayPassword(acct, payPassword); err != nil {
		return nil, err
	}
	// 余额需覆盖含税全额，冻结只占用 amount + fee，税在打款时结算
	if acct.Balance < amount+fee+tax {
		return nil, ErrInsufficientBalance
	}

	if err := s.checkRollingLimit(ctx, ownerID, amount); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	order := &model.WithdrawOrder{
		WithdrawNo:    withdrawNo,
		OwnerID:       ownerID,
		Amount:        amount,
		Fee:           fee,
		TaxRate:       rate.TaxRateBp,
		TaxAmount:     tax,
		Payout:        payout,
		HoldAmount:    amount + fee,
		Channel:       channel,
		Destination:   destination,
		AuditStatus:   model.WithdrawAuditPending,
		ProcessStatus: model.WithdrawProcessPending,
		CreatedAt:     now,
	}

	err = s.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.CreateWithdrawOrder(ctx, order); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrDuplicateOrderNumber
			}
			return fmt.Errorf("创建提现单失败: %w", err)
		}
		_, err := s.wallet.ChangeFrozenBalanceTx(ctx, tx, ownerID, ActionFreeze, order.HoldAmount, model.BusinessRef{
			BizType: "WITHDRAW",
			BizID:   order.ID,
			OrderNo: withdrawNo,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"withdraw_no": withdrawNo,
		"owner_id":    ownerID,
		"amount":      amount,
		"hold":        order.HoldAmount,
	}).Info("提现单已创建，资金已冻结")
	return order, nil
}

// checkRollingLimit 24小时滚动窗口限额：笔数与累计金额
func (s *WithdrawService) checkRollingLimit(ctx context.Context, ownerID, amount int64) error {
	if s.cfg.DailyLimitCount <= 0 && s.cfg.DailyLimitAmount <= 0 {
		return nil
	}
	since := s.clock.Now().Add(-24 * time.Hour)
	stats, err := s.store.GetWithdrawStatsSince(ctx, ownerID, since)
	if err != nil {
		return fmt.Errorf("查询提现统计失败: %w", err)
	}
	if s.cfg.DailyLimitCount > 0 && stats.Count+1 > s.cfg.DailyLimitCount {
		return ErrDailyLimitExceeded
	}
	if s.cfg.DailyLimitAmount > 0 && stats.Amount+amount > s.cfg.DailyLimitAmount {
		return ErrDailyLimitExceeded
	}
	return nil
}

// Audit 审核提现单。仅待审核单可审；驳回即终结并解冻
func (s *WithdrawService) Audit(ctx context.Context, withdrawNo string, approve bool, auditorID int64, remark string) (*model.WithdrawOrder, error) {
	release, err := s.locker.Acquire(ctx, lock.WithdrawKey(withdrawNo), "audit")
	if err != nil {
		return nil, fmt.Errorf("获取订单锁失败: %w", err)
	}
	defer release()

	var result *model.WithdrawOrder
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		order, err := tx.GetWithdrawOrderForUpdate(ctx, withdrawNo)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("锁定提现单失败: %w", err)
		}
		if order.AuditStatus != model.WithdrawAuditPending {
			return ErrAlreadyAudited
		}

		now := s.clock.Now()
		order.AuditorID = auditorID
		order.AuditRemark = remark
		order.AuditedAt = &now
		if approve {
			order.AuditStatus = model.WithdrawAuditApproved
			order.ProcessStatus = model.WithdrawProcessProcessing
		} else {
			order.AuditStatus = model.WithdrawAuditRejected
			order.FailReason = remark
			if err := s.releaseHoldTx(ctx, tx, order); err != nil {
				return err
			}
		}
		if err := tx.UpdateWithdrawOrder(ctx, order); err != nil {
			return fmt.Errorf("更新提现单失败: %w", err)
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"withdraw_no": withdrawNo,
		"approve":     approve,
		"auditor_id":  auditorID,
	}).Info("提现审核完成")
	return result, nil
}

// Process 打款完成：解冻持有额并按提现金额出账，打款终态 COMPLETED。
// 手续费与税费不单独走账，在流水备注中体现
func (s *WithdrawService) Process(ctx context.Context, withdrawNo, payoutChannel, externalRef string) (*model.WithdrawOrder, error) {
	release, err := s.locker.Acquire(ctx, lock.WithdrawKey(withdrawNo), externalRef)
	if err != nil {
		return nil, fmt.Errorf("获取订单锁失败: %w", err)
	}
	defer release()

	var result *model.WithdrawOrder
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		order, err := tx.GetWithdrawOrderForUpdate(ctx, withdrawNo)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("锁定提现单失败: %w", err)
		}
		if order.AuditStatus != model.WithdrawAuditApproved {
			return ErrInvalidTransition
		}
		if order.ProcessStatus == model.WithdrawProcessCompleted {
			return ErrAlreadyProcessed
		}

		if err := s.releaseHoldTx(ctx, tx, order); err != nil {
			return err
		}
		if _, err := s.wallet.ChangeBalanceTx(ctx, tx, BalanceChange{
			OwnerID:   order.OwnerID,
			Kind:      model.LedgerKindWithdraw,
			Direction: model.DirectionDebit,
			Amount:    order.Amount,
			Ref: model.BusinessRef{
				BizType: "WITHDRAW",
				BizID:   order.ID,
				OrderNo: order.WithdrawNo,
			},
			Description: fmt.Sprintf("提现打款，手续费%d分，税费%d分，实际到账%d分", order.Fee, order.TaxAmount, order.Payout),
		}); err != nil {
			return err
		}

		now := s.clock.Now()
		order.ProcessStatus = model.WithdrawProcessCompleted
		order.PayoutChannel = payoutChannel
		order.ExternalRef = externalRef
		order.PaidOutAt = &now
		if err := tx.UpdateWithdrawOrder(ctx, order); err != nil {
			return fmt.Errorf("更新提现单失败: %w", err)
		}

		if err := emitEventTx(ctx, tx, s.clock, s.topic, model.EventWithdrawDone, order.WithdrawNo, map[string]interface{}{
			"withdraw_no": order.WithdrawNo,
			"owner_id":    order.OwnerID,
			"amount":      order.Amount,
			"payout":      order.Payout,
			"channel":     payoutChannel,
		}); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"withdraw_no":  withdrawNo,
		"external_ref": externalRef,
		"payout":       result.Payout,
	}).Info("提现打款完成")
	return result, nil
}

// HandleFailure 打款失败：解冻资金，终态 FAILED，累加当日失败计数。
// 重复上报幂等返回；已完成的单拒绝失败上报
func (s *WithdrawService) HandleFailure(ctx context.Context, withdrawNo, reason string) (*model.WithdrawOrder, error) {
	release, err := s.locker.Acquire(ctx, lock.WithdrawKey(withdrawNo), "failure")
	if err != nil {
		return nil, fmt.Errorf("获取订单锁失败: %w", err)
	}
	defer release()

	var result *model.WithdrawOrder
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		order, err := tx.GetWithdrawOrderForUpdate(ctx, withdrawNo)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("锁定提现单失败: %w", err)
		}
		if order.ProcessStatus == model.WithdrawProcessFailed {
			result = order
			return nil
		}
		if order.ProcessStatus == model.WithdrawProcessCompleted {
			return ErrAlreadyProcessed
		}
		if order.AuditStatus != model.WithdrawAuditApproved {
			return ErrInvalidTransition
		}

		if err := s.releaseHoldTx(ctx, tx, order); err != nil {
			return err
		}
		order.ProcessStatus = model.WithdrawProcessFailed
		order.FailReason = reason
		if err := tx.UpdateWithdrawOrder(ctx, order); err != nil {
			return fmt.Errorf("更新提现单失败: %w", err)
		}
		if err := s.wallet.IncrWithdrawFailureTx(ctx, tx, order.OwnerID); err != nil {
			return err
		}

		if err := emitEventTx(ctx, tx, s.clock, s.topic, model.EventWithdrawFailed, order.WithdrawNo, map[string]interface{}{
			"withdraw_no": order.WithdrawNo,
			"owner_id":    order.OwnerID,
			"amount":      order.Amount,
			"reason":      reason,
		}); err != nil {
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

// Cancel 用户取消提现。仅审核通过前可取消；重复取消幂等返回
func (s *WithdrawService) Cancel(ctx context.Context, ownerID int64, withdrawNo, reason string) (*model.WithdrawOrder, error) {
	release, err := s.locker.Acquire(ctx, lock.WithdrawKey(withdrawNo), "cancel")
	if err != nil {
		return nil, fmt.Errorf("获取订单锁失败: %w", err)
	}
	defer release()

	var result *model.WithdrawOrder
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		order, err := tx.GetWithdrawOrderForUpdate(ctx, withdrawNo)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("锁定提现单失败: %w", err)
		}
		if order.OwnerID != ownerID {
			return ErrNotFound
		}
		if order.AuditStatus == model.WithdrawAuditCancelled {
			result = order
			return nil
		}
		if order.AuditStatus != model.WithdrawAuditPending {
			return ErrAlreadyAudited
		}

		if err := s.releaseHoldTx(ctx, tx, order); err != nil {
			return err
		}
		order.AuditStatus = model.WithdrawAuditCancelled
		order.FailReason = reason
		if err := tx.UpdateWithdrawOrder(ctx, order); err != nil {
			return fmt.Errorf("更新提现单失败: %w", err)
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// releaseHoldTx 解冻创建时冻结的持有额。hold_released 单向置位，
// 保证所有终态路径合计只释放一次
func (s *WithdrawService) releaseHoldTx(ctx context.Context, tx store.Store, order *model.WithdrawOrder) error {
	if order.HoldReleased {
		return nil
	}
	if _, err := s.wallet.ChangeFrozenBalanceTx(ctx, tx, order.OwnerID, ActionUnfreeze, order.HoldAmount, model.BusinessRef{
		BizType: "WITHDRAW",
		BizID:   order.ID,
		OrderNo: order.WithdrawNo,
	}); err != nil {
		return err
	}
	order.HoldReleased = true
	return nil
}

// Get 查询提现单
func (s *WithdrawService) Get(ctx context.Context, withdrawNo string) (*model.WithdrawOrder, error) {
	order, err := s.store.GetWithdrawOrder(ctx, withdrawNo)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("查询提现单失败: %w", err)
	}
	return order, nil
}

// List 分页查询会员提现单
func (s *WithdrawService) List(ctx context.Context, q store.OrderQuery) ([]*model.WithdrawOrder, int64, error) {
	if q.Limit <= 0 || q.Limit > 100 {
		q.Limit = 20
	}
	orders, total, err := s.store.ListWithdrawOrders(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("查询提现单失败: %w", err)
	}
	return orders, total, nil
}
