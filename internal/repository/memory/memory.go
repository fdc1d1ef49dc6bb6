// Package memory 是 service.Store 的内存实现。
// 单把互斥锁把所有工作单元串行化，天然满足可串行化隔离；
// WithinTx 失败时用快照整体回滚，和数据库事务语义一致。
// 单测跑在这个实现上，不需要外部 MySQL。
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"bankledger/internal/model"
	"bankledger/internal/service"

	"github.com/shopspring/decimal"
)

type Store struct {
	mu sync.Mutex

	nextAccountID int64
	nextTxnID     int64
	nextUserID    int64
	nextOutboxID  int64

	accounts map[int64]*model.Account
	byNumber map[string]int64
	txns     []*model.Transaction
	users    map[int64]*model.User
	byName   map[string]int64
	outbox   []*model.OutboxMessage

	// TxHook 故障注入点：非 nil 时在每个事务内操作前调用，
	// 返回错误即让该操作失败（用于验证原子回滚）
	TxHook func(op string, accountID int64) error
}

var _ service.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		accounts: make(map[int64]*model.Account),
		byNumber: make(map[string]int64),
		users:    make(map[int64]*model.User),
		byName:   make(map[string]int64),
	}
}

// ============================================================================
// 工作单元
// ============================================================================

// WithinTx 全局互斥 + 快照回滚。
// 回调内只允许使用 service.Tx 的操作，不得回头调用 Store 的读方法（会死锁）
func (s *Store) WithinTx(ctx context.Context, fn func(tx service.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 流水/发件箱只追加，记长度即可；账户会被改，需要深拷贝
	accountSnap := make(map[int64]*model.Account, len(s.accounts))
	for id, acct := range s.accounts {
		cp := *acct
		accountSnap[id] = &cp
	}
	txnLen := len(s.txns)
	outboxLen := len(s.outbox)
	txnID, outboxID := s.nextTxnID, s.nextOutboxID

	err := fn(&memTx{store: s})
	if err != nil {
		s.accounts = accountSnap
		s.txns = s.txns[:txnLen]
		s.outbox = s.outbox[:outboxLen]
		s.nextTxnID, s.nextOutboxID = txnID, outboxID
	}
	return err
}

type memTx struct {
	store *Store
}

var _ service.Tx = (*memTx)(nil)

func (t *memTx) hook(op string, accountID int64) error {
	if t.store.TxHook != nil {
		return t.store.TxHook(op, accountID)
	}
	return nil
}

func (t *memTx) AccountForUpdate(ctx context.Context, id int64) (*model.Account, error) {
	if err := t.hook("AccountForUpdate", id); err != nil {
		return nil, err
	}
	acct, ok := t.store.accounts[id]
	if !ok {
		return nil, service.ErrAccountNotFound
	}
	cp := *acct
	return &cp, nil
}

func (t *memTx) UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal, version int) error {
	if err := t.hook("UpdateBalance", id); err != nil {
		return err
	}
	acct, ok := t.store.accounts[id]
	if !ok {
		return service.ErrAccountNotFound
	}
	if acct.Version != version {
		return service.ErrVersionConflict
	}
	acct.Balance = balance
	acct.Version++
	acct.UpdatedAt = time.Now()
	return nil
}

func (t *memTx) CreateTransaction(ctx context.Context, txn *model.Transaction) error {
	var accountID int64
	if txn.FromAccountID != nil {
		accountID = *txn.FromAccountID
	} else if txn.ToAccountID != nil {
		accountID = *txn.ToAccountID
	}
	if err := t.hook("CreateTransaction", accountID); err != nil {
		return err
	}
	t.store.nextTxnID++
	txn.ID = t.store.nextTxnID
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}
	t.store.txns = append(t.store.txns, txn)
	return nil
}

func (t *memTx) CreateOutboxMessage(ctx context.Context, msg *model.OutboxMessage) error {
	if err := t.hook("CreateOutboxMessage", 0); err != nil {
		return err
	}
	t.store.nextOutboxID++
	msg.ID = t.store.nextOutboxID
	msg.CreatedAt = time.Now()
	t.store.outbox = append(t.store.outbox, msg)
	return nil
}

// ============================================================================
// 账户
// ============================================================================

func (s *Store) CreateAccount(ctx context.Context, acct *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byNumber[acct.AccountNumber]; exists {
		return service.ErrDuplicateAccountNumber
	}
	s.nextAccountID++
	acct.ID = s.nextAccountID
	acct.CreatedAt = time.Now()
	acct.UpdatedAt = acct.CreatedAt
	cp := *acct
	s.accounts[acct.ID] = &cp
	s.byNumber[acct.AccountNumber] = acct.ID
	return nil
}

func (s *Store) AccountByID(ctx context.Context, id int64) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[id]
	if !ok {
		return nil, service.ErrAccountNotFound
	}
	cp := *acct
	return &cp, nil
}

func (s *Store) AccountByNumber(ctx context.Context, number string) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byNumber[number]
	if !ok {
		return nil, service.ErrAccountNotFound
	}
	cp := *s.accounts[id]
	return &cp, nil
}

func (s *Store) AccountNumberExists(ctx context.Context, number string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.byNumber[number]
	return ok, nil
}

func (s *Store) FirstActiveChecking(ctx context.Context, userID int64) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *model.Account
	for _, acct := range s.accounts {
		if acct.UserID != userID || !acct.IsActive || acct.Type != model.AccountTypeChecking {
			continue
		}
		if best == nil || acct.ID < best.ID {
			best = acct
		}
	}
	if best == nil {
		return nil, service.ErrAccountNotFound
	}
	cp := *best
	return &cp, nil
}

func (s *Store) AccountsByUserID(ctx context.Context, userID int64) ([]*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.Account
	for _, acct := range s.accounts {
		if acct.UserID == userID {
			cp := *acct
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeactivateAccount(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[id]
	if !ok {
		return service.ErrAccountNotFound
	}
	acct.IsActive = false
	acct.UpdatedAt = time.Now()
	return nil
}

func (s *Store) AccountsPage(ctx context.Context, page, pageSize int) ([]*model.Account, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var active []*model.Account
	for _, acct := range s.accounts {
		if acct.IsActive {
			cp := *acct
			active = append(active, &cp)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })
	return pageOf(active, page, pageSize), int64(len(active)), nil
}

func (s *Store) CountActiveAccounts(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, acct := range s.accounts {
		if acct.IsActive {
			count++
		}
	}
	return count, nil
}

func (s *Store) TotalActiveBalance(ctx context.Context) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for _, acct := range s.accounts {
		if acct.IsActive {
			total = total.Add(acct.Balance)
		}
	}
	return total, nil
}

// ============================================================================
// 流水
// ============================================================================

func (s *Store) TransactionsByAccount(ctx context.Context, accountID int64) ([]*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.Transaction
	for _, txn := range s.txns {
		if refersTo(txn, accountID) {
			out = append(out, txn)
		}
	}
	sortTransactions(out)
	return out, nil
}

func (s *Store) TransactionsByUser(ctx context.Context, userID int64) ([]*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := make(map[int64]bool)
	for _, acct := range s.accounts {
		if acct.UserID == userID && acct.IsActive {
			active[acct.ID] = true
		}
	}

	var out []*model.Transaction
	for _, txn := range s.txns {
		if (txn.FromAccountID != nil && active[*txn.FromAccountID]) ||
			(txn.ToAccountID != nil && active[*txn.ToAccountID]) {
			out = append(out, txn)
		}
	}
	sortTransactions(out)
	return out, nil
}

func (s *Store) RecentTransactions(ctx context.Context, limit int) ([]*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.Transaction, len(s.txns))
	copy(out, s.txns)
	sortTransactions(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) TransactionsPage(ctx context.Context, page, pageSize int) ([]*model.Transaction, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.Transaction, len(s.txns))
	copy(out, s.txns)
	sortTransactions(out)
	return pageOf(out, page, pageSize), int64(len(out)), nil
}

// InsertTransaction 直接写一条流水，绕过账本服务。
// 只给测试用来构造带指定时间戳的历史数据
func (s *Store) InsertTransaction(txn *model.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextTxnID++
	txn.ID = s.nextTxnID
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}
	s.txns = append(s.txns, txn)
}

// OutboxMessages 已入队的发件箱消息快照（测试用）
func (s *Store) OutboxMessages() []*model.OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.OutboxMessage, len(s.outbox))
	copy(out, s.outbox)
	return out
}

// ============================================================================
// 用户
// ============================================================================

func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byName[user.Username]; exists {
		return service.ErrDuplicateUser
	}
	s.nextUserID++
	user.ID = s.nextUserID
	user.CreatedAt = time.Now()
	cp := *user
	s.users[user.ID] = &cp
	s.byName[user.Username] = user.ID
	return nil
}

func (s *Store) UserByID(ctx context.Context, id int64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, service.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (s *Store) UserByUsername(ctx context.Context, username string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byName[username]
	if !ok {
		return nil, service.ErrUserNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

func (s *Store) UsersPage(ctx context.Context, page, pageSize int) ([]*model.User, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.User, 0, len(s.users))
	for _, user := range s.users {
		cp := *user
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return pageOf(out, page, pageSize), int64(len(out)), nil
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return int64(len(s.users)), nil
}

// ============================================================================
// 辅助
// ============================================================================

func refersTo(txn *model.Transaction, accountID int64) bool {
	return (txn.FromAccountID != nil && *txn.FromAccountID == accountID) ||
		(txn.ToAccountID != nil && *txn.ToAccountID == accountID)
}

// sortTransactions 排序契约：created_at 降序，同一时间戳按插入顺序（ID 升序）
func sortTransactions(txns []*model.Transaction) {
	sort.SliceStable(txns, func(i, j int) bool {
		if !txns[i].CreatedAt.Equal(txns[j].CreatedAt) {
			return txns[i].CreatedAt.After(txns[j].CreatedAt)
		}
		return txns[i].ID < txns[j].ID
	})
}

func pageOf[T any](items []T, page, pageSize int) []T {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []T{}
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
