package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"bankledger/internal/config"
	"bankledger/internal/model"
	"bankledger/pkg/idgen"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 账本服务
// ============================================================================
//
// 这是整个系统正确性要求最高的组件。三个操作（存款/取款/转账）都必须
// 作为单个原子工作单元执行：余额变更和交易流水要么一起提交，要么都不提交。
//
// 【并发纪律】
//
// 余额的"检查 + 扣减"如果不加隔离，两个并发取款会拿着同一份旧余额
// 都通过余额检查，合起来把账户扣成负数。所以：
//   1. 所有余额读写都在 WithinTx 里进行，行级锁（FOR UPDATE）持有后重查
//   2. 更新带乐观锁版本条件，兜底拦截漏网的并发写
//   3. 多账户操作（转账）按账户ID升序加锁，防止 A→B 和 B→A 互相死锁
//   4. 版本冲突自动重试有限次，用尽后以 ErrConcurrencyConflict 交还调用方
type LedgerService struct {
	store  Store
	locker Locker // 可选；为 nil 时仅依赖数据库行锁
	topic  string // 交易完成事件投递的 Kafka topic
	cfg    *config.Config
}

func NewLedgerService(store Store, locker Locker, cfg *config.Config) *LedgerService {
	return &LedgerService{
		store:  store,
		locker: locker,
		topic:  cfg.Kafka.Topic.TransactionCompleted,
		cfg:    cfg,
	}
}

// Deposit 存款
// 前置条件：amount > 0，账户启用
func (s *LedgerService) Deposit(ctx context.Context, accountID int64, amount decimal.Decimal, description string) (*model.Transaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	if description == "" {
		description = "Cash deposit"
	}

	var txn *model.Transaction
	err := s.withAccountLock(ctx, accountID, func() error {
		return s.retryOnConflict(func() error {
			return s.store.WithinTx(ctx, func(tx Tx) error {
				acct, err := tx.AccountForUpdate(ctx, accountID)
				if err != nil {
					return err
				}
				if !acct.IsActive {
					return ErrAccountInactive
				}

				if err := tx.UpdateBalance(ctx, acct.ID, acct.Balance.Add(amount), acct.Version); err != nil {
					return err
				}

				txn = &model.Transaction{
					TransactionNo: idgen.GenerateTransactionNo(),
					Type:          model.TransactionTypeDeposit,
					Amount:        amount,
					Description:   description,
					Status:        model.TransactionStatusCompleted,
					ToAccountID:   &acct.ID,
				}
				if err := tx.CreateTransaction(ctx, txn); err != nil {
					return err
				}
				return s.enqueueEvent(ctx, tx, txn)
			})
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Ledger] 存款成功: transactionNo=%s, accountID=%d, amount=%s",
		txn.TransactionNo, accountID, amount.StringFixed(2))
	return txn, nil
}

// Withdraw 取款
// 前置条件：amount > 0，账户启用，余额充足
func (s *LedgerService) Withdraw(ctx context.Context, accountID int64, amount decimal.Decimal, description string) (*model.Transaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	if description == "" {
		description = "Cash withdrawal"
	}

	var txn *model.Transaction
	err := s.withAccountLock(ctx, accountID, func() error {
		return s.retryOnConflict(func() error {
			return s.store.WithinTx(ctx, func(tx Tx) error {
				acct, err := tx.AccountForUpdate(ctx, accountID)
				if err != nil {
					return err
				}
				if !acct.IsActive {
					return ErrAccountInactive
				}
				// 余额检查必须基于持锁后的最新余额
				if acct.Balance.LessThan(amount) {
					return ErrInsufficientFunds
				}

				if err := tx.UpdateBalance(ctx, acct.ID, acct.Balance.Sub(amount), acct.Version); err != nil {
					return err
				}

				txn = &model.Transaction{
					TransactionNo: idgen.GenerateTransactionNo(),
					Type:          model.TransactionTypeWithdrawal,
					Amount:        amount,
					Description:   description,
					Status:        model.TransactionStatusCompleted,
					FromAccountID: &acct.ID,
				}
				if err := tx.CreateTransaction(ctx, txn); err != nil {
					return err
				}
				return s.enqueueEvent(ctx, tx, txn)
			})
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Ledger] 取款成功: transactionNo=%s, accountID=%d, amount=%s",
		txn.TransactionNo, accountID, amount.StringFixed(2))
	return txn, nil
}

// Transfer 转账
//
// 校验顺序是契约的一部分，逐项短路，保证错误报告可区分且确定：
//  1. 金额必须为正
//  2. 目标账号必须能解析到启用账户
//  3. 禁止自转
//  4. 余额充足
//
// 两侧余额变更和一条流水在同一个工作单元里提交，
// 任何时刻都观察不到"只扣了一边"的转账。
func (s *LedgerService) Transfer(ctx context.Context, fromAccountID int64, toAccountNumber string, amount decimal.Decimal, description string) (*model.Transaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	dest, err := s.store.AccountByNumber(ctx, toAccountNumber)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrDestinationNotFound
		}
		return nil, err
	}
	if !dest.IsActive {
		// 停用账户不作为转账目标，对外等同于不存在
		return nil, ErrDestinationNotFound
	}
	if dest.ID == fromAccountID {
		return nil, ErrSelfTransfer
	}
	if description == "" {
		description = fmt.Sprintf("Transfer to %s", dest.AccountNumber)
	}

	toAccountID := dest.ID

	var txn *model.Transaction
	err = s.withAccountLock(ctx, fromAccountID, func() error {
		return s.retryOnConflict(func() error {
			return s.store.WithinTx(ctx, func(tx Tx) error {
				// 按账户ID升序加锁，A→B 与 B→A 并发时不会互相等待成环
				first, second := fromAccountID, toAccountID
				if second < first {
					first, second = second, first
				}
				lockedFirst, err := tx.AccountForUpdate(ctx, first)
				if err != nil {
					return err
				}
				lockedSecond, err := tx.AccountForUpdate(ctx, second)
				if err != nil {
					return err
				}

				from, to := lockedFirst, lockedSecond
				if from.ID != fromAccountID {
					from, to = lockedSecond, lockedFirst
				}

				if !from.IsActive {
					return ErrAccountInactive
				}
				if !to.IsActive {
					return ErrDestinationNotFound
				}
				if from.Balance.LessThan(amount) {
					return ErrInsufficientFunds
				}

				if err := tx.UpdateBalance(ctx, from.ID, from.Balance.Sub(amount), from.Version); err != nil {
					return err
				}
				if err := tx.UpdateBalance(ctx, to.ID, to.Balance.Add(amount), to.Version); err != nil {
					return err
				}

				txn = &model.Transaction{
					TransactionNo: idgen.GenerateTransactionNo(),
					Type:          model.TransactionTypeTransfer,
					Amount:        amount,
					Description:   description,
					Status:        model.TransactionStatusCompleted,
					FromAccountID: &from.ID,
					ToAccountID:   &to.ID,
				}
				if err := tx.CreateTransaction(ctx, txn); err != nil {
					return err
				}
				return s.enqueueEvent(ctx, tx, txn)
			})
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Ledger] 转账成功: transactionNo=%s, from=%d, to=%s, amount=%s",
		txn.TransactionNo, fromAccountID, toAccountNumber, amount.StringFixed(2))
	return txn, nil
}

// withAccountLock 在可选的账户级分布式锁内执行 fn。
// 锁获取是有界等待，拿不到锁翻译成 ErrConcurrencyConflict，调用方可整体重试。
func (s *LedgerService) withAccountLock(ctx context.Context, accountID int64, fn func() error) error {
	if s.locker == nil {
		return fn()
	}
	release, err := s.locker.AcquireAccountLock(ctx, accountID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConcurrencyConflict, err)
	}
	defer release()
	return fn()
}

// retryOnConflict 版本冲突时从头重试整个工作单元（不允许从中间续跑），
// 重试次数用尽后以 ErrConcurrencyConflict 交还调用方
func (s *LedgerService) retryOnConflict(fn func() error) error {
	retries := s.cfg.Business.LedgerMaxRetries
	if retries <= 0 {
		retries = 3
	}
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		err = fn()
		if !errors.Is(err, ErrVersionConflict) {
			return err
		}
		log.Printf("[Ledger] 乐观锁冲突，第 %d 次重试", attempt+1)
	}
	return ErrConcurrencyConflict
}

// enqueueEvent 在同一事务里写入交易完成事件（事务性发件箱）
func (s *LedgerService) enqueueEvent(ctx context.Context, tx Tx, txn *model.Transaction) error {
	payload := map[string]interface{}{
		"transaction_no":  txn.TransactionNo,
		"type":            txn.Type,
		"amount":          txn.Amount.StringFixed(2),
		"status":          txn.Status,
		"from_account_id": txn.FromAccountID,
		"to_account_id":   txn.ToAccountID,
		"occurred_at":     time.Now().Format(time.RFC3339),
	}
	payloadBytes, _ := json.Marshal(payload)

	return tx.CreateOutboxMessage(ctx, &model.OutboxMessage{
		MessageKey: txn.TransactionNo,
		Topic:      s.topic,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	})
}
