package service

import (
	"context"
	"time"

	"bankledger/internal/model"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 存储边界
// ============================================================================
//
// 账本核心不直接持有 *gorm.DB，而是面向下面这组接口编程：
//   - 生产环境由 internal/repository 的 MySQL 实现支撑
//   - 测试由 internal/repository/memory 的内存实现支撑
//
// WithinTx 是显式的工作单元：回调内的所有变更要么一起提交，要么一起回滚，
// 不存在隐式的全局会话。

// Tx 一个原子工作单元内可用的操作。
// 余额的"读-判-写"必须全部发生在同一个 Tx 里，
// 锁行顺序由调用方保证（多账户操作按账户ID升序加锁，避免互相转账死锁）。
type Tx interface {
	// AccountForUpdate 按ID取账户并持有行锁（SELECT ... FOR UPDATE）
	AccountForUpdate(ctx context.Context, id int64) (*model.Account, error)

	// UpdateBalance 版本条件更新余额；版本不匹配返回 ErrVersionConflict
	UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal, version int) error

	// CreateTransaction 插入一条交易流水（只追加）
	CreateTransaction(ctx context.Context, txn *model.Transaction) error

	// CreateOutboxMessage 在同一事务里写入待投递事件
	CreateOutboxMessage(ctx context.Context, msg *model.OutboxMessage) error
}

// AccountStore 账户读写
type AccountStore interface {
	CreateAccount(ctx context.Context, acct *model.Account) error
	AccountByID(ctx context.Context, id int64) (*model.Account, error)
	AccountByNumber(ctx context.Context, number string) (*model.Account, error)
	AccountNumberExists(ctx context.Context, number string) (bool, error)
	// FirstActiveChecking 用户第一个启用状态的支票账户（默认账户策略）
	FirstActiveChecking(ctx context.Context, userID int64) (*model.Account, error)
	AccountsByUserID(ctx context.Context, userID int64) ([]*model.Account, error)
	// DeactivateAccount 停用账户（账户从不物理删除）
	DeactivateAccount(ctx context.Context, id int64) error
	AccountsPage(ctx context.Context, page, pageSize int) ([]*model.Account, int64, error)
	CountActiveAccounts(ctx context.Context) (int64, error)
	// TotalActiveBalance 所有启用账户的余额合计（停用账户不计入）
	TotalActiveBalance(ctx context.Context) (decimal.Decimal, error)
}

// TransactionStore 流水读取。
// 所有查询返回调用时刻的物化快照，按 created_at 降序、同时间戳按插入顺序排序。
type TransactionStore interface {
	TransactionsByAccount(ctx context.Context, accountID int64) ([]*model.Transaction, error)
	// TransactionsByUser 用户所有启用账户的流水并集
	TransactionsByUser(ctx context.Context, userID int64) ([]*model.Transaction, error)
	RecentTransactions(ctx context.Context, limit int) ([]*model.Transaction, error)
	TransactionsPage(ctx context.Context, page, pageSize int) ([]*model.Transaction, int64, error)
}

// UserStore 用户读写
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	UserByID(ctx context.Context, id int64) (*model.User, error)
	UserByUsername(ctx context.Context, username string) (*model.User, error)
	UsersPage(ctx context.Context, page, pageSize int) ([]*model.User, int64, error)
	CountUsers(ctx context.Context) (int64, error)
}

// Store 账本核心依赖的完整存储边界
type Store interface {
	AccountStore
	TransactionStore
	UserStore

	// WithinTx 执行一个原子工作单元；fn 返回错误则全部回滚
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// SessionStore 会话存储（生产环境为 Redis）
type SessionStore interface {
	SaveSession(ctx context.Context, token string, userID int64, ttl time.Duration) error
	// GetSession 查不到或已过期返回 ErrSessionNotFound
	GetSession(ctx context.Context, token string) (int64, error)
	DeleteSession(ctx context.Context, token string) error
}

// Locker 可选的账户级互斥锁（生产环境为 Redis 分布式锁）。
// 获取是有界等待，拿不到锁以 ErrConcurrencyConflict 暴露给调用方。
type Locker interface {
	AcquireAccountLock(ctx context.Context, accountID int64) (release func(), err error)
}

// NumberGenerator 账号生成器，开户服务持有接口方便测试注入强制撞号
type NumberGenerator interface {
	Generate() string
}
