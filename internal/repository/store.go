package repository

import (
	"context"

	"bankledger/internal/model"
	"bankledger/internal/service"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Store MySQL 存储边界实现。
// 各实体仓库按表拆分，Store 把它们组装成账本服务依赖的 service.Store；
// WithinTx 映射到一个数据库事务，回调内通过行锁保证隔离。
type Store struct {
	db           *gorm.DB
	accounts     *AccountRepository
	transactions *TransactionRepository
	users        *UserRepository
	outbox       *OutboxRepository
}

var _ service.Store = (*Store)(nil)

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:           db,
		accounts:     NewAccountRepository(db),
		transactions: NewTransactionRepository(db),
		users:        NewUserRepository(db),
		outbox:       NewOutboxRepository(db),
	}
}

// WithinTx 原子工作单元：fn 返回错误则整个事务回滚，
// 余额和流水绝不会只提交一半
func (s *Store) WithinTx(ctx context.Context, fn func(tx service.Tx) error) error {
	return s.db.Transaction(func(dbTx *gorm.DB) error {
		return fn(&storeTx{store: s, tx: dbTx})
	})
}

func (s *Store) CreateAccount(ctx context.Context, acct *model.Account) error {
	return s.accounts.Create(ctx, acct)
}

func (s *Store) AccountByID(ctx context.Context, id int64) (*model.Account, error) {
	return s.accounts.GetByID(ctx, id)
}

func (s *Store) AccountByNumber(ctx context.Context, number string) (*model.Account, error) {
	return s.accounts.GetByNumber(ctx, number)
}

func (s *Store) AccountNumberExists(ctx context.Context, number string) (bool, error) {
	return s.accounts.NumberExists(ctx, number)
}

func (s *Store) FirstActiveChecking(ctx context.Context, userID int64) (*model.Account, error) {
	return s.accounts.FirstActiveChecking(ctx, userID)
}

func (s *Store) AccountsByUserID(ctx context.Context, userID int64) ([]*model.Account, error) {
	return s.accounts.ListByUserID(ctx, userID)
}

func (s *Store) DeactivateAccount(ctx context.Context, id int64) error {
	return s.accounts.Deactivate(ctx, id)
}

func (s *Store) AccountsPage(ctx context.Context, page, pageSize int) ([]*model.Account, int64, error) {
	return s.accounts.Page(ctx, page, pageSize)
}

func (s *Store) CountActiveAccounts(ctx context.Context) (int64, error) {
	return s.accounts.CountActive(ctx)
}

func (s *Store) TotalActiveBalance(ctx context.Context) (decimal.Decimal, error) {
	return s.accounts.SumActiveBalance(ctx)
}

func (s *Store) TransactionsByAccount(ctx context.Context, accountID int64) ([]*model.Transaction, error) {
	return s.transactions.ListByAccount(ctx, accountID)
}

func (s *Store) TransactionsByUser(ctx context.Context, userID int64) ([]*model.Transaction, error) {
	return s.transactions.ListByUser(ctx, userID)
}

func (s *Store) RecentTransactions(ctx context.Context, limit int) ([]*model.Transaction, error) {
	return s.transactions.Recent(ctx, limit)
}

func (s *Store) TransactionsPage(ctx context.Context, page, pageSize int) ([]*model.Transaction, int64, error) {
	return s.transactions.Page(ctx, page, pageSize)
}

func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	return s.users.Create(ctx, user)
}

func (s *Store) UserByID(ctx context.Context, id int64) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Store) UserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.users.GetByUsername(ctx, username)
}

func (s *Store) UsersPage(ctx context.Context, page, pageSize int) ([]*model.User, int64, error) {
	return s.users.Page(ctx, page, pageSize)
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	return s.users.Count(ctx)
}

// storeTx 事务内可用的操作集合
type storeTx struct {
	store *Store
	tx    *gorm.DB
}

var _ service.Tx = (*storeTx)(nil)

func (t *storeTx) AccountForUpdate(ctx context.Context, id int64) (*model.Account, error) {
	return t.store.accounts.GetForUpdate(ctx, t.tx, id)
}

func (t *storeTx) UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal, version int) error {
	return t.store.accounts.UpdateBalance(ctx, t.tx, id, balance, version)
}

func (t *storeTx) CreateTransaction(ctx context.Context, txn *model.Transaction) error {
	return t.store.transactions.Create(ctx, t.tx, txn)
}

func (t *storeTx) CreateOutboxMessage(ctx context.Context, msg *model.OutboxMessage) error {
	return t.store.outbox.Create(ctx, t.tx, msg)
}
