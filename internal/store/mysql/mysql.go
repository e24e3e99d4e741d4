package mysql

import (
	"context"
	"errors"

	"mallwallet/internal/store"

	"gorm.io/gorm"
)

// Store 基于 gorm/MySQL 的存储实现
// 需要 gorm.Config{TranslateError: true}，唯一键冲突才能映射为 store.ErrDuplicate
type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Transaction 开启事务，回调内拿到绑定事务的 Store
func (s *Store) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// wrap 统一转换 gorm 错误为存储层错误
func wrap(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return store.ErrDuplicate
	}
	return err
}
