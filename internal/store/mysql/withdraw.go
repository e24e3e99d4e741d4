package mysql

import (
	"context"
	"time"

	"mallwallet/internal/model"
	"mallwallet/internal/store"

	"gorm.io/gorm/clause"
)

func (s *Store) CreateWithdrawOrder(ctx context.Context, order *model.WithdrawOrder) error {
	return wrap(s.db.WithContext(ctx).Create(order).Error)
}

func (s *Store) GetWithdrawOrder(ctx context.Context, withdrawNo string) (*model.WithdrawOrder, error) {
	var order model.WithdrawOrder
	err := s.db.WithContext(ctx).Where("withdraw_no = ?", withdrawNo).First(&order).Error
	if err != nil {
		return nil, wrap(err)
	}
	return &order, nil
}

func (s *Store) GetWithdrawOrderForUpdate(ctx context.Context, withdrawNo string) (*model.WithdrawOrder, error) {
	var order model.WithdrawOrder
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("withdraw_no = ?", withdrawNo).
		First(&order).Error
	if err != nil {
		return nil, wrap(err)
	}
	return &order, nil
}

func (s *Store) UpdateWithdrawOrder(ctx context.Context, order *model.WithdrawOrder) error {
	return wrap(s.db.WithContext(ctx).Save(order).Error)
}

func (s *Store) ListWithdrawOrders(ctx context.Context, q store.OrderQuery) ([]*model.WithdrawOrder, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.WithdrawOrder{}).Where("owner_id = ?", q.OwnerID)
	if q.Status != "" {
		query = query.Where("audit_status = ?", q.Status)
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

	var orders []*model.WithdrawOrder
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

// GetWithdrawStatsSince 24小时滚动限额的依据：窗口内创建且仍占用额度的提现单
// （被驳回/取消的单不再占用额度）
func (s *Store) GetWithdrawStatsSince(ctx context.Context, ownerID int64, since time.Time) (*store.WithdrawStats, error) {
	var row struct {
		Count  int64
		Amount int64
	}
	err := s.db.WithContext(ctx).
		Model(&model.WithdrawOrder{}).
		Select("COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").
		Where("owner_id = ? AND created_at >= ?", ownerID, since).
		Where("audit_status NOT IN ?", []string{model.WithdrawAuditRejected, model.WithdrawAuditCancelled}).
		Scan(&row).Error
	if err != nil {
		return nil, wrap(err)
	}
	return &store.WithdrawStats{Count: row.Count, Amount: row.Amount}, nil
}
