package service_test

import (
	"context"
	"errors"
	"testing"

	"bankledger/internal/model"
	"bankledger/internal/repository/memory"
	"bankledger/internal/service"
	"bankledger/pkg/acctnum"
)

func newAuth(t *testing.T) (*service.AuthService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	cfg := testConfig()
	ledger := service.NewLedgerService(store, nil, cfg)
	accounts := service.NewAccountService(store, ledger, acctnum.Source{}, cfg)
	return service.NewAuthService(store, memory.NewSessionStore(), accounts, cfg), store
}

func register(t *testing.T, auth *service.AuthService, username string) *model.User {
	t.Helper()
	user, err := auth.Register(context.Background(), service.RegisterRequest{
		Username:  username,
		Email:     username + "@example.com",
		Password:  "correct horse battery",
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	if err != nil {
		t.Fatalf("注册失败: %v", err)
	}
	return user
}

// 注册产出 customer 角色的用户和一个零余额默认支票账户
func TestRegister(t *testing.T) {
	auth, store := newAuth(t)
	user := register(t, auth, "alice")

	if user.Role != model.RoleCustomer {
		t.Errorf("角色 = %s, 期望 customer", user.Role)
	}

	accounts, _ := store.AccountsByUserID(context.Background(), user.ID)
	if len(accounts) != 1 {
		t.Fatalf("账户 %d 个, 期望注册即有 1 个默认账户", len(accounts))
	}
	if accounts[0].Type != model.AccountTypeChecking {
		t.Errorf("默认账户类型 = %s", accounts[0].Type)
	}
	if !accounts[0].Balance.IsZero() {
		t.Errorf("默认账户余额 = %s, 期望 0", accounts[0].Balance)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	auth, _ := newAuth(t)
	register(t, auth, "alice")

	_, err := auth.Register(context.Background(), service.RegisterRequest{
		Username:  "alice",
		Email:     "other@example.com",
		Password:  "another password",
		FirstName: "A",
		LastName:  "B",
	})
	if !errors.Is(err, service.ErrDuplicateUser) {
		t.Fatalf("err = %v, 期望 ErrDuplicateUser", err)
	}
}

func TestLoginAndAuthenticate(t *testing.T) {
	auth, _ := newAuth(t)
	user := register(t, auth, "alice")
	ctx := context.Background()

	token, got, err := auth.Login(ctx, "alice", "correct horse battery")
	if err != nil {
		t.Fatalf("登录失败: %v", err)
	}
	if token == "" || got.ID != user.ID {
		t.Fatal("登录返回的令牌或用户不正确")
	}

	resolved, err := auth.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("令牌解析失败: %v", err)
	}
	if resolved.ID != user.ID {
		t.Errorf("解析出的用户 = %d, 期望 %d", resolved.ID, user.ID)
	}
}

// 用户不存在和密码错误对外不可区分，统一报凭证错误
func TestLoginBadCredentials(t *testing.T) {
	auth, _ := newAuth(t)
	register(t, auth, "alice")
	ctx := context.Background()

	if _, _, err := auth.Login(ctx, "alice", "wrong password"); !errors.Is(err, service.ErrInvalidCredentials) {
		t.Errorf("密码错误 err = %v", err)
	}
	if _, _, err := auth.Login(ctx, "nobody", "whatever password"); !errors.Is(err, service.ErrInvalidCredentials) {
		t.Errorf("用户不存在 err = %v", err)
	}
}

func TestLogoutInvalidatesToken(t *testing.T) {
	auth, _ := newAuth(t)
	register(t, auth, "alice")
	ctx := context.Background()

	token, _, err := auth.Login(ctx, "alice", "correct horse battery")
	if err != nil {
		t.Fatalf("登录失败: %v", err)
	}
	if err := auth.Logout(ctx, token); err != nil {
		t.Fatalf("退出失败: %v", err)
	}
	if _, err := auth.Authenticate(ctx, token); !errors.Is(err, service.ErrSessionNotFound) {
		t.Fatalf("退出后令牌仍有效: %v", err)
	}
}

// 初始管理员幂等创建：重复调用不报错、不重复建号
func TestEnsureAdminIdempotent(t *testing.T) {
	auth, store := newAuth(t)
	ctx := context.Background()

	if err := auth.EnsureAdmin(ctx, "admin", "admin secret"); err != nil {
		t.Fatalf("首次创建失败: %v", err)
	}
	if err := auth.EnsureAdmin(ctx, "admin", "admin secret"); err != nil {
		t.Fatalf("重复调用失败: %v", err)
	}

	count, _ := store.CountUsers(ctx)
	if count != 1 {
		t.Errorf("用户数 = %d, 期望 1", count)
	}

	admin, err := store.UserByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("查询管理员失败: %v", err)
	}
	if !admin.IsAdmin() {
		t.Error("管理员角色不正确")
	}

	if _, _, err := auth.Login(ctx, "admin", "admin secret"); err != nil {
		t.Errorf("管理员登录失败: %v", err)
	}
}
