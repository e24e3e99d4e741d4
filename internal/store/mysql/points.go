package mysql

import (
	"context"

	"mallwallet/internal/model"
	"mallwallet/internal/store"

	"gorm.io/gorm/clause"
)

func (s *Store) GetPointsAccount(ctx context.Context, ownerID int64) (*model.PointsAccount, error) {
	var acct model.PointsAccount
	err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&acct).Error
	if err != nil {
		return nil, wrap(err)
	}
	return &acct, nil
}

func (s *Store) GetPointsAccountForUpdate(ctx context.Context, ownerID int64) (*model.PointsAccount, error) {
	var acct model.PointsAccount
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("owner_id = ?", ownerID).
		First(&acct).Error
	if err != nil {
		return nil, wrap(err)
	}
	return &acct, nil
}

func (s *Store) CreatePointsAccountIfAbsent(ctx context.Context, acct *model.PointsAccount) error {
	return wrap(s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_id"}},
			DoNothing: true,
		}).
		Create(acct).Error)
}

func (s *Store) UpdatePointsAccount(ctx context.Context, acct *model.PointsAccount) error {
	result := s.db.WithContext(ctx).
		Model(&model.PointsAccount{}).
		Where("owner_id = ? AND version = ?", acct.OwnerID, acct.Version).
		Updates(map[string]interface{}{
			"balance":       acct.Balance,
			"total_earned":  acct.TotalEarned,
			"total_spent":   acct.TotalSpent,
			"total_expired": acct.TotalExpired,
			"year_key":      acct.YearKey,
			"year_earned":   acct.YearEarned,
			"month_key":     acct.MonthKey,
			"month_earned":  acct.MonthEarned,
			"tier_level":    acct.TierLevel,
			"version":       acct.Version + 1,
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

func (s *Store) AppendPointsLedgerEntry(ctx context.Context, entry *model.PointsLedgerEntry) error {
	return wrap(s.db.WithContext(ctx).Create(entry).Error)
}

func (s *Store) QueryPointsLedger(ctx context.Context, q store.PointsLedgerQuery) ([]*model.PointsLedgerEntry, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.PointsLedgerEntry{}).Where("owner_id = ?", q.OwnerID)
	if q.Kind != "" {
		query = query.Where("kind = ?", q.Kind)
	}
	if q.Direction != "" {
		query = query.Where("direction = ?", q.Direction)
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

	var entries []*model.PointsLedgerEntry
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

func (s *Store) GetPointsGoods(ctx context.Context, goodsID int64) (*model.PointsGoods, error) {
	var goods model.PointsGoods
	err := s.db.WithContext(ctx).Where("id = ?", goodsID).First(&goods).Error
	if err != nil {
		return nil, wrap(err)
	}
	return &goods, nil
}

func (s *Store) GetPointsGoodsForUpdate(ctx context.Context, goodsID int64) (*model.PointsGoods, error) {
	var goods model.PointsGoods
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", goodsID).
		First(&goods).Error
	if err != nil {
		return nil, wrap(err)
	}
	return &goods, nil
}

func (s *Store) UpdatePointsGoods(ctx context.Context, goods *model.PointsGoods) error {
	return wrap(s.db.WithContext(ctx).Save(goods).Error)
}

func (s *Store) CreateExchangeRecord(ctx context.Context, rec *model.PointsExchangeRecord) error {
	return wrap(s.db.WithContext(ctx).Create(rec).Error)
}

func (s *Store) GetExchangeRecord(ctx context.Context, exchangeNo string) (*model.PointsExchangeRecord, error) {
	var rec model.PointsExchangeRecord
	err := s.db.WithContext(ctx).Where("exchange_no = ?", exchangeNo).First(&rec).Error
	if err != nil {
		return nil, wrap(err)
	}
	return &rec, nil
}

func (s *Store) GetExchangeRecordForUpdate(ctx context.Context, exchangeNo string) (*model.PointsExchangeRecord, error) {
	var rec model.PointsExchangeRecord
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("exchange_no = ?", exchangeNo).
		First(&rec).Error
	if err != nil {
		return nil, wrap(err)
	}
	return &rec, nil
}

func (s *Store) UpdateExchangeRecord(ctx context.Context, rec *model.PointsExchangeRecord) error {
	return wrap(s.db.WithContext(ctx).Save(rec).Error)
}

func (s *Store) ListExchangeRecords(ctx context.Context, q store.OrderQuery) ([]*model.PointsExchangeRecord, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.PointsExchangeRecord{}).Where("owner_id = ?", q.OwnerID)
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
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

	var records []*model.PointsExchangeRecord
	err := query.
		Order("created_at DESC").
		Offset(q.Offset).
		Limit(q.Limit).
		Find(&records).Error
	if err != nil {
		return nil, 0, wrap(err)
	}
	return records, total, nil
}

func (s *Store) CountOwnerExchanges(ctx context.Context, ownerID, goodsID int64) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.PointsExchangeRecord{}).
		Where("owner_id = ? AND goods_id = ? AND status <> ?", ownerID, goodsID, model.ExchangeCancelled).
		Count(&count).Error
	return count, wrap(err)
}
