package service

import (
	"context"
	"errors"
	"log"

	"bankledger/internal/config"
	"bankledger/internal/model"

	"github.com/shopspring/decimal"
)

// AccountService 开户、停用与账户查询。
// 账号发放在这里完成：生成 10 位随机账号，撞号就换一个重新来，
// 重试有上限，用尽视为致命的连续撞号，返回 ErrAccountNumberExhausted。
type AccountService struct {
	store  Store
	ledger *LedgerService
	numgen NumberGenerator
	cfg    *config.Config
}

func NewAccountService(store Store, ledger *LedgerService, numgen NumberGenerator, cfg *config.Config) *AccountService {
	return &AccountService{
		store:  store,
		ledger: ledger,
		numgen: numgen,
		cfg:    cfg,
	}
}

// Open 开户
// initialDeposit 为 0 表示零余额开户；为正则开户后立即走一笔存款流水，
// 保证初始余额也有对应的交易记录
func (s *AccountService) Open(ctx context.Context, userID int64, acctType model.AccountType, initialDeposit decimal.Decimal) (*model.Account, error) {
	if !acctType.Valid() {
		return nil, ErrInvalidAccountType
	}
	if initialDeposit.IsNegative() {
		return nil, ErrInvalidAmount
	}

	maxAttempts := s.cfg.Business.AccountNumberMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 10
	}

	var acct *model.Account
	created := false
	for attempt := 0; attempt < maxAttempts; attempt++ {
		number := s.numgen.Generate()

		// 先查一次降低无谓的插入失败；真正的唯一性由唯一索引兜底
		exists, err := s.store.AccountNumberExists(ctx, number)
		if err != nil {
			return nil, err
		}
		if exists {
			log.Printf("[Account] 账号碰撞，重新生成: number=%s", number)
			continue
		}

		acct = &model.Account{
			AccountNumber: number,
			Type:          acctType,
			Balance:       decimal.Zero,
			IsActive:      true,
			UserID:        userID,
		}
		err = s.store.CreateAccount(ctx, acct)
		if errors.Is(err, ErrDuplicateAccountNumber) {
			log.Printf("[Account] 账号插入冲突，重新生成: number=%s", number)
			continue
		}
		if err != nil {
			return nil, err
		}
		created = true
		break
	}
	if !created {
		return nil, ErrAccountNumberExhausted
	}

	if initialDeposit.IsPositive() {
		if _, err := s.ledger.Deposit(ctx, acct.ID, initialDeposit, "Initial deposit"); err != nil {
			return nil, err
		}
		acct.Balance = initialDeposit
	}

	log.Printf("[Account] 开户成功: accountNumber=%s, type=%s, userID=%d",
		acct.AccountNumber, acct.Type, userID)
	return acct, nil
}

// Deactivate 停用账户。账户从不物理删除：
// 停用后不再计入余额合计，也不能作为转账目标
func (s *AccountService) Deactivate(ctx context.Context, accountID int64) error {
	return s.store.DeactivateAccount(ctx, accountID)
}

// Get 按ID取账户
func (s *AccountService) Get(ctx context.Context, accountID int64) (*model.Account, error) {
	return s.store.AccountByID(ctx, accountID)
}

// GetByNumber 按账号取账户
func (s *AccountService) GetByNumber(ctx context.Context, number string) (*model.Account, error) {
	return s.store.AccountByNumber(ctx, number)
}

// ListForUser 用户名下全部账户
func (s *AccountService) ListForUser(ctx context.Context, userID int64) ([]*model.Account, error) {
	return s.store.AccountsByUserID(ctx, userID)
}

// DefaultChecking 默认账户策略：用户第一个启用状态的支票账户。
// 这是 Web 层的便利行为，只存在于服务边界，不渗入账本核心；
// 储蓄账户永远不做默认目标
func (s *AccountService) DefaultChecking(ctx context.Context, userID int64) (*model.Account, error) {
	acct, err := s.store.FirstActiveChecking(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrNoCheckingAccount
		}
		return nil, err
	}
	return acct, nil
}
