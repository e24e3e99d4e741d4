package mysql

import (
	"context"

	"mallwallet/internal/model"
	"mallwallet/internal/store"

	"gorm.io/gorm/clause"
)

func (s *Store) GetWalletAccount(ctx context.Context, ownerID int64) (*model.WalletAccount, error) {
	var acct model.WalletAccount
	err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&acct).Error
	if err != nil {
		return nil, wrap(err)
	}
	return &acct, nil
}

func (s *Store) GetWalletAccountForUpdate(ctx context.Context, ownerID int64) (*model.WalletAccount, error) {
	var acct model.WalletAccount
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("owner_id = ?", ownerID).
		First(&acct).Error
	if err != nil {
		return nil, wrap(err)
	}
	return &acct, nil
}

func (s *Store) CreateWalletAccountIfAbsent(ctx context.Context, acct *model.WalletAccount) error {
	// 并发懒创建：owner_id 唯一索引冲突时静默跳过
	return wrap(s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_id"}},
			DoNothing: true,
		}).
		Create(acct).Error)
}

// UpdateWalletAccount 按版本号 CAS 全量写回，成功后本地版本号同步 +1
func (s *Store) UpdateWalletAccount(ctx context.Context, acct *model.WalletAccount) error {
	result := s.db.WithContext(ctx).
		Model(&model.WalletAccount{}).
		Where("owner_id = ? AND version = ?", acct.OwnerID, acct.Version).
		Updates(map[string]interface{}{
			"balance":                 acct.Balance,
			"frozen_balance":          acct.FrozenBalance,
			"status":                  acct.Status,
			"total_recharge":          acct.TotalRecharge,
			"total_withdraw":          acct.TotalWithdraw,
			"total_consume":           acct.TotalConsume,
			"total_commission":        acct.TotalCommission,
			"pay_password_hash":       acct.PayPasswordHash,
			"pay_password_salt":       acct.PayPasswordSalt,
			"counter_date":            acct.CounterDate,
			"daily_recharge_failures": acct.DailyRechargeFailures,
			"daily_withdraw_failures": acct.DailyWithdrawFailures,
			"last_activity_at":        acct.LastActivityAt,
			"version":                 acct.Version + 1,
		})
	if result.Error != nil {
		return wrap(result.Error)
	}
	if result.RowsAffected == 0 {
		return store.ErrVersionConflict
	}
	acct.Version++
	return nil
}

func (s *Store) AppendLedgerEntry(ctx context.Context, entry *model.LedgerEntry) error {
	return wrap(s.db.WithContext(ctx).Create(entry).Error)
}

func (s *Store) QueryLedger(ctx context.Context, q store.LedgerQuery) ([]*model.LedgerEntry, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.LedgerEntry{}).Where("owner_id = ?", q.OwnerID)
	if q.Kind != "" {
		query = query.Where("kind = ?", q.Kind)
	}
	if q.Direction != "" {
		query = query.Where("direction = ?", q.Direction)
	}
	if q.BizType != "" {
		query = query.Where("biz_type = ?", q.BizType)
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

	var entries []*model.LedgerEntry
	err := query.
		Order("created_at DESC, id DESC").
		Offset(q.Offset).
		Limit(q.Limit).
		Find(&entries).Error
	if err != nil {
		return nil, 0, wrap(err)
	}
	return entries, total, nil
}
