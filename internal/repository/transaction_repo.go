package repository

import (
	"context"

	"bankledger/internal/model"

	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, txn *model.Transaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(txn).Error
}

// ListByAccount 账户作为出账方或入账方的全部流水。
// 排序契约：created_at 降序，同一时间戳按插入顺序（id 升序）
func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID int64) ([]*model.Transaction, error) {
	var txns []*model.Transaction
	err := r.db.WithContext(ctx).
		Where("from_account_id = ? OR to_account_id = ?", accountID, accountID).
		Order("created_at DESC, id ASC").
		Find(&txns).Error
	return txns, err
}

// ListByUser 用户所有启用账户的流水并集，同一排序契约
func (r *TransactionRepository) ListByUser(ctx context.Context, userID int64) ([]*model.Transaction, error) {
	activeAccounts := r.db.
		Model(&model.Account{}).
		Select("id").
		Where("user_id = ? AND is_active = ?", userID, true)

	var txns []*model.Transaction
	err := r.db.WithContext(ctx).
		Where("from_account_id IN (?) OR to_account_id IN (?)", activeAccounts, activeAccounts).
		Order("created_at DESC, id ASC").
		Find(&txns).Error
	return txns, err
}

func (r *TransactionRepository) Recent(ctx context.Context, limit int) ([]*model.Transaction, error) {
	var txns []*model.Transaction
	err := r.db.WithContext(ctx).
		Order("created_at DESC, id ASC").
		Limit(limit).
		Find(&txns).Error
	return txns, err
}

func (r *TransactionRepository) Page(ctx context.Context, page, pageSize int) ([]*model.Transaction, int64, error) {
	var txns []*model.Transaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Transaction{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC, id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&txns).Error
	return txns, total, err
}
