package mysql

import (
	"context"
	"time"

	"mallwallet/internal/model"
	"mallwallet/internal/store"

	"gorm.io/gorm/clause"
)

func (s *Store) CreateRechargeOrder(ctx context.Context, order *model.RechargeOrder) error {
	return wrap(s.db.WithContext(ctx).Create(order).Error)
}

func (s *Store) GetRechargeOrder(ctx context.Context, orderNo string) (*model.RechargeOrder, error) {
	var order model.RechargeOrder
	err := s.db.WithContext(ctx).Where("order_no = ?", orderNo).First(&order).Error
	if err != nil {
		return nil, wrap(err)
	}
	return &order, nil
}

func (s *Store) GetRechargeOrderForUpdate(ctx context.Context, orderNo string) (*model.RechargeOrder, error) {
	var order model.RechargeOrder
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_no = ?", orderNo).
		First(&order).Error
	if err != nil {
		return nil, wrap(err)
	}
	return &order, nil
}

func (s *Store) UpdateRechargeOrder(ctx context.Context, order *model.RechargeOrder) error {
	return wrap(s.db.WithContext(ctx).Save(order).Error)
}

func (s *Store) ListRechargeOrders(ctx context.Context, q store.OrderQuery) ([]*model.RechargeOrder, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.RechargeOrder{}).Where("owner_id = ?", q.OwnerID)
	if q.Status != "" {
		query = query.Where("pay_status = ?", q.Status)
	}
	if q.Begin != nil {
		query = query.Where("created_at >= ?", *q.Begin)
	}
	if q.End != nil {
		query = query.Where("created_at < ?", *q.End)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, wrap(err)
	}

	var orders []*model.RechargeOrder
	err := query.
		Order("created_at DESC").
		Offset(q.Offset).
		Limit(q.Limit).
		Find(&orders).Error
	if err != nil {
		return nil, 0, wrap(err)
	}
	return orders, total, nil
}

func (s *Store) ListExpiredRechargeOrders(ctx context.Context, before time.Time, limit int) ([]*model.RechargeOrder, error) {
	var orders []*model.RechargeOrder
	err := s.db.WithContext(ctx).
		Where("pay_status = ? AND expired_at < ?", model.RechargeStatusPending, before).
		Limit(limit).
		Find(&orders).Error
	return orders, wrap(err)
}
