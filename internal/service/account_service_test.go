package service_test

import (
	"context"
	"errors"
	"testing"

	"bankledger/internal/model"
	"bankledger/internal/repository/memory"
	"bankledger/internal/service"
	"bankledger/pkg/acctnum"

	"github.com/shopspring/decimal"
)

// seqGen 按给定序列出号，用尽后循环最后一个，用于强制撞号
type seqGen struct {
	numbers []string
	i       int
}

func (g *seqGen) Generate() string {
	n := g.numbers[g.i]
	if g.i < len(g.numbers)-1 {
		g.i++
	}
	return n
}

func newAccounts(t *testing.T, gen service.NumberGenerator) (*service.AccountService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	cfg := testConfig()
	ledger := service.NewLedgerService(store, nil, cfg)
	return service.NewAccountService(store, ledger, gen, cfg), store
}

func TestOpenAssignsValidNumber(t *testing.T) {
	accounts, _ := newAccounts(t, acctnum.Source{})

	acct, err := accounts.Open(context.Background(), 1, model.AccountTypeChecking, decimal.Zero)
	if err != nil {
		t.Fatalf("开户失败: %v", err)
	}
	if !acctnum.Valid(acct.AccountNumber) {
		t.Errorf("账号 %q 不是 10 位数字", acct.AccountNumber)
	}
	if !acct.IsActive {
		t.Error("新账户应当是启用状态")
	}
	if !acct.Balance.Equal(decimal.Zero) {
		t.Errorf("零余额开户后余额 = %s", acct.Balance)
	}
}

func TestOpenRetriesOnCollision(t *testing.T) {
	gen := &seqGen{numbers: []string{"1111111111", "1111111111", "2222222222"}}
	accounts, _ := newAccounts(t, gen)

	first, err := accounts.Open(context.Background(), 1, model.AccountTypeChecking, decimal.Zero)
	if err != nil {
		t.Fatalf("首次开户失败: %v", err)
	}
	if first.AccountNumber != "1111111111" {
		t.Fatalf("首个账号 = %s", first.AccountNumber)
	}

	// 生成器先吐出已占用的号，开户流程必须换号重试而不是失败
	second, err := accounts.Open(context.Background(), 2, model.AccountTypeChecking, decimal.Zero)
	if err != nil {
		t.Fatalf("撞号后开户失败: %v", err)
	}
	if second.AccountNumber != "2222222222" {
		t.Errorf("撞号重试后账号 = %s, 期望 2222222222", second.AccountNumber)
	}
}

func TestOpenNumberExhausted(t *testing.T) {
	gen := &seqGen{numbers: []string{"3333333333"}}
	accounts, _ := newAccounts(t, gen)

	if _, err := accounts.Open(context.Background(), 1, model.AccountTypeChecking, decimal.Zero); err != nil {
		t.Fatalf("首次开户失败: %v", err)
	}

	// 生成器永远吐同一个号，重试上限用尽后报号段耗尽
	_, err := accounts.Open(context.Background(), 2, model.AccountTypeChecking, decimal.Zero)
	if !errors.Is(err, service.ErrAccountNumberExhausted) {
		t.Fatalf("err = %v, 期望 ErrAccountNumberExhausted", err)
	}
}

// 带初始存款开户必须留下一条存款流水，初始余额不能凭空出现
func TestOpenWithInitialDeposit(t *testing.T) {
	accounts, store := newAccounts(t, acctnum.Source{})

	acct, err := accounts.Open(context.Background(), 1, model.AccountTypeSavings, dec("500.00"))
	if err != nil {
		t.Fatalf("开户失败: %v", err)
	}
	if !acct.Balance.Equal(dec("500.00")) {
		t.Errorf("余额 = %s, 期望 500.00", acct.Balance)
	}

	txns, _ := store.TransactionsByAccount(context.Background(), acct.ID)
	if len(txns) != 1 {
		t.Fatalf("流水 %d 条, 期望 1 条初始存款", len(txns))
	}
	if txns[0].Type != model.TransactionTypeDeposit || txns[0].Description != "Initial deposit" {
		t.Errorf("初始存款流水不正确: type=%s desc=%q", txns[0].Type, txns[0].Description)
	}
}

func TestOpenRejectsInvalidInput(t *testing.T) {
	accounts, _ := newAccounts(t, acctnum.Source{})

	if _, err := accounts.Open(context.Background(), 1, "credit", decimal.Zero); !errors.Is(err, service.ErrInvalidAccountType) {
		t.Errorf("非法类型 err = %v", err)
	}
	if _, err := accounts.Open(context.Background(), 1, model.AccountTypeChecking, dec("-1")); !errors.Is(err, service.ErrInvalidAmount) {
		t.Errorf("负初始存款 err = %v", err)
	}
}

// 默认账户 = 用户第一个启用状态的支票账户；储蓄账户永远不做默认
func TestDefaultChecking(t *testing.T) {
	accounts, store := newAccounts(t, acctnum.Source{})
	ctx := context.Background()

	savings, _ := accounts.Open(ctx, 1, model.AccountTypeSavings, decimal.Zero)
	first, _ := accounts.Open(ctx, 1, model.AccountTypeChecking, decimal.Zero)
	second, _ := accounts.Open(ctx, 1, model.AccountTypeChecking, decimal.Zero)
	_ = savings
	_ = second

	got, err := accounts.DefaultChecking(ctx, 1)
	if err != nil {
		t.Fatalf("查默认账户失败: %v", err)
	}
	if got.ID != first.ID {
		t.Errorf("默认账户 = %d, 期望最早开的支票账户 %d", got.ID, first.ID)
	}

	// 第一个停用后顺延到下一个启用的支票账户
	if err := store.DeactivateAccount(ctx, first.ID); err != nil {
		t.Fatalf("停用失败: %v", err)
	}
	got, err = accounts.DefaultChecking(ctx, 1)
	if err != nil {
		t.Fatalf("查默认账户失败: %v", err)
	}
	if got.ID != second.ID {
		t.Errorf("默认账户 = %d, 期望 %d", got.ID, second.ID)
	}
}

func TestDefaultCheckingNoneAvailable(t *testing.T) {
	accounts, _ := newAccounts(t, acctnum.Source{})
	ctx := context.Background()

	// 只有储蓄账户的用户没有默认账户可用
	if _, err := accounts.Open(ctx, 1, model.AccountTypeSavings, decimal.Zero); err != nil {
		t.Fatalf("开户失败: %v", err)
	}
	if _, err := accounts.DefaultChecking(ctx, 1); !errors.Is(err, service.ErrNoCheckingAccount) {
		t.Fatalf("err = %v, 期望 ErrNoCheckingAccount", err)
	}
}

// 停用是软删除：账户还能查到，流水保留，但不再计入余额合计
func TestDeactivateKeepsHistory(t *testing.T) {
	accounts, store := newAccounts(t, acctnum.Source{})
	ctx := context.Background()

	acct, err := accounts.Open(ctx, 1, model.AccountTypeChecking, dec("100.00"))
	if err != nil {
		t.Fatalf("开户失败: %v", err)
	}
	if err := accounts.Deactivate(ctx, acct.ID); err != nil {
		t.Fatalf("停用失败: %v", err)
	}

	got, err := accounts.Get(ctx, acct.ID)
	if err != nil {
		t.Fatalf("停用后账户应当仍可查询: %v", err)
	}
	if got.IsActive {
		t.Error("账户仍是启用状态")
	}

	txns, _ := store.TransactionsByAccount(ctx, acct.ID)
	if len(txns) != 1 {
		t.Errorf("停用后流水丢失: %d 条", len(txns))
	}

	total, _ := store.TotalActiveBalance(ctx)
	if !total.Equal(decimal.Zero) {
		t.Errorf("停用账户仍计入余额合计: %s", total)
	}
}
