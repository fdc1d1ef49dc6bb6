package repository

import (
	"context"
	"errors"

	"bankledger/internal/model"
	"bankledger/internal/service"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, acct *model.Account) error {
	err := r.db.WithContext(ctx).Create(acct).Error
	if isDuplicateEntry(err) {
		return service.ErrDuplicateAccountNumber
	}
	return err
}

func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*model.Account, error) {
	var acct model.Account
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&acct).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, service.ErrAccountNotFound
		}
		return nil, err
	}
	return &acct, nil
}

func (r *AccountRepository) GetByNumber(ctx context.Context, number string) (*model.Account, error) {
	var acct model.Account
	err := r.db.WithContext(ctx).Where("account_number = ?", number).First(&acct).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, service.ErrAccountNotFound
		}
		return nil, err
	}
	return &acct, nil
}

func (r *AccountRepository) NumberExists(ctx context.Context, number string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("account_number = ?", number).
		Count(&count).Error
	return count > 0, err
}

// GetForUpdate 持行锁读账户，必须在事务内调用
func (r *AccountRepository) GetForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*model.Account, error) {
	var acct model.Account
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&acct).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, service.ErrAccountNotFound
		}
		return nil, err
	}
	return &acct, nil
}

// UpdateBalance 版本条件更新余额。
// 持有行锁时版本不会变，这里的版本条件是针对绕过行锁的写入的兜底
func (r *AccountRepository) UpdateBalance(ctx context.Context, tx *gorm.DB, id int64, balance decimal.Decimal, version int) error {
	if tx == nil {
		tx = r.db
	}
	result := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ? AND version = ?", id, version).
		Updates(map[string]interface{}{
			"balance": balance,
			"version": gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return service.ErrVersionConflict
	}
	return nil
}

func (r *AccountRepository) FirstActiveChecking(ctx context.Context, userID int64) (*model.Account, error) {
	var acct model.Account
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND type = ? AND is_active = ?", userID, model.AccountTypeChecking, true).
		Order("id ASC").
		First(&acct).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, service.ErrAccountNotFound
		}
		return nil, err
	}
	return &acct, nil
}

func (r *AccountRepository) ListByUserID(ctx context.Context, userID int64) ([]*model.Account, error) {
	var accts []*model.Account
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&accts).Error
	return accts, err
}

func (r *AccountRepository) Deactivate(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", id).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return service.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) Page(ctx context.Context, page, pageSize int) ([]*model.Account, int64, error) {
	var accts []*model.Account
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Account{}).Where("is_active = ?", true)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("id ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&accts).Error
	return accts, total, err
}

func (r *AccountRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("is_active = ?", true).
		Count(&count).Error
	return count, err
}

// SumActiveBalance 启用账户的余额合计，停用账户不计入
func (r *AccountRepository) SumActiveBalance(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("is_active = ?", true).
		Select("COALESCE(SUM(balance), 0)").
		Row().
		Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// isDuplicateEntry MySQL 1062：唯一索引冲突
func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
