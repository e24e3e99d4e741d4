package mysql

import (
	"context"

	"mallwallet/internal/model"

	"gorm.io/gorm"
)

func (s *Store) CreateOutboxMessage(ctx context.Context, msg *model.OutboxMessage) error {
	return wrap(s.db.WithContext(ctx).Create(msg).Error)
}

func (s *Store) GetPendingOutboxMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error) {
	var messages []*model.OutboxMessage
	err := s.db.WithContext(ctx).
		Where("status = ?", model.OutboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&messages).Error
	return messages, wrap(err)
}

func (s *Store) UpdateOutboxStatus(ctx context.Context, id int64, status string) error {
	return wrap(s.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Update("status", status).Error)
}

func (s *Store) IncrOutboxRetry(ctx context.Context, id int64) error {
	return wrap(s.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ?", id).
		Update("retry_count", gorm.Expr("retry_count + 1")).Error)
}
