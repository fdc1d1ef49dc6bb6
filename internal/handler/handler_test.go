package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"bankledger/internal/config"
	"bankledger/internal/handler"
	"bankledger/internal/repository/memory"
	"bankledger/internal/service"
	"bankledger/pkg/acctnum"
	"bankledger/pkg/response"

	"github.com/gin-gonic/gin"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	cfg := &config.Config{}
	cfg.Kafka.Topic.TransactionCompleted = "bank.transaction.completed"
	cfg.Business.LedgerMaxRetries = 3
	cfg.Business.AccountNumberMaxAttempts = 10
	cfg.Business.SessionTTLMinutes = 30

	store := memory.NewStore()
	sessions := memory.NewSessionStore()

	ledger := service.NewLedgerService(store, nil, cfg)
	accounts := service.NewAccountService(store, ledger, acctnum.Source{}, cfg)
	history := service.NewHistoryService(store)
	auth := service.NewAuthService(store, sessions, accounts, cfg)

	if err := auth.EnsureAdmin(context.Background(), "admin", "admin secret"); err != nil {
		t.Fatalf("创建管理员失败: %v", err)
	}

	h := handler.NewHandler(auth, accounts, ledger, history, store)
	return handler.SetupRouter(h)
}

type envelope struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
}

func call(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("编码请求失败: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("解析响应失败: %v (body=%s)", err, rec.Body.String())
	}
	return rec.Code, env
}

func registerAndLogin(t *testing.T, router *gin.Engine, username string) string {
	t.Helper()

	_, env := call(t, router, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"username":   username,
		"email":      username + "@example.com",
		"password":   "correct horse battery",
		"first_name": "Ada",
		"last_name":  "Lovelace",
	})
	if env.Code != response.CodeSuccess {
		t.Fatalf("注册失败: %+v", env)
	}

	_, env = call(t, router, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"username": username,
		"password": "correct horse battery",
	})
	if env.Code != response.CodeSuccess {
		t.Fatalf("登录失败: %+v", env)
	}
	return env.Data["token"].(string)
}

// 存款 -> 取款 -> 转账 -> 流水，端到端走默认支票账户
func TestCustomerFlow(t *testing.T) {
	router := newTestRouter(t)

	alice := registerAndLogin(t, router, "alice")
	bob := registerAndLogin(t, router, "bob")

	// bob 的账号给 alice 做转账目标
	_, env := call(t, router, http.MethodGet, "/api/v1/accounts", bob, nil)
	if env.Code != response.CodeSuccess {
		t.Fatalf("查账户失败: %+v", env)
	}
	bobAccounts := env.Data["list"].([]interface{})
	if len(bobAccounts) != 1 {
		t.Fatalf("bob 账户数 = %d", len(bobAccounts))
	}
	bobNumber := bobAccounts[0].(map[string]interface{})["account_number"].(string)

	// 存款（不带 account_id，落默认支票账户）
	_, env = call(t, router, http.MethodPost, "/api/v1/deposit", alice, gin.H{"amount": "200.00"})
	if env.Code != response.CodeSuccess {
		t.Fatalf("存款失败: %+v", env)
	}

	// 取款
	_, env = call(t, router, http.MethodPost, "/api/v1/withdraw", alice, gin.H{"amount": "50.00"})
	if env.Code != response.CodeSuccess {
		t.Fatalf("取款失败: %+v", env)
	}

	// 超额取款拿到业务码而不是 HTTP 错误
	status, env := call(t, router, http.MethodPost, "/api/v1/withdraw", alice, gin.H{"amount": "9999.00"})
	if status != http.StatusOK || env.Code != response.CodeInsufficientFunds {
		t.Fatalf("超额取款: status=%d code=%d, 期望 200/%d", status, env.Code, response.CodeInsufficientFunds)
	}

	// 转账给 bob
	_, env = call(t, router, http.MethodPost, "/api/v1/transfer", alice, gin.H{
		"to_account_number": bobNumber,
		"amount":            "30.00",
	})
	if env.Code != response.CodeSuccess {
		t.Fatalf("转账失败: %+v", env)
	}

	// 双方余额：200 - 50 - 30 = 120，0 + 30 = 30
	_, env = call(t, router, http.MethodGet, "/api/v1/accounts", alice, nil)
	aliceBalance := env.Data["list"].([]interface{})[0].(map[string]interface{})["balance"].(string)
	if aliceBalance != "120" {
		t.Errorf("alice 余额 = %s, 期望 120", aliceBalance)
	}
	_, env = call(t, router, http.MethodGet, "/api/v1/accounts", bob, nil)
	bobBalance := env.Data["list"].([]interface{})[0].(map[string]interface{})["balance"].(string)
	if bobBalance != "30" {
		t.Errorf("bob 余额 = %s, 期望 30", bobBalance)
	}

	// alice 的流水：转账、取款、存款，最新在前
	_, env = call(t, router, http.MethodGet, "/api/v1/transactions", alice, nil)
	if env.Code != response.CodeSuccess {
		t.Fatalf("查流水失败: %+v", env)
	}
	txns := env.Data["list"].([]interface{})
	if len(txns) != 3 {
		t.Fatalf("流水 %d 条, 期望 3 条", len(txns))
	}
	types := []string{"transfer", "withdrawal", "deposit"}
	for i, want := range types {
		got := txns[i].(map[string]interface{})["type"].(string)
		if got != want {
			t.Errorf("第 %d 条类型 = %s, 期望 %s", i, got, want)
		}
	}
}

func TestUnauthorizedAccess(t *testing.T) {
	router := newTestRouter(t)

	status, _ := call(t, router, http.MethodGet, "/api/v1/accounts", "", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("无令牌访问 status = %d, 期望 401", status)
	}

	status, _ = call(t, router, http.MethodGet, "/api/v1/accounts", "bogus-token", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("假令牌访问 status = %d, 期望 401", status)
	}
}

// 别人的账户按不存在处理，不泄露存在性
func TestAccountOwnership(t *testing.T) {
	router := newTestRouter(t)

	alice := registerAndLogin(t, router, "alice")
	bob := registerAndLogin(t, router, "bob")

	_, env := call(t, router, http.MethodGet, "/api/v1/accounts", bob, nil)
	bobAccountID := env.Data["list"].([]interface{})[0].(map[string]interface{})["id"].(float64)

	_, env = call(t, router, http.MethodPost, "/api/v1/deposit", alice, gin.H{
		"account_id": int64(bobAccountID),
		"amount":     "10.00",
	})
	if env.Code != response.CodeAccountNotFound {
		t.Errorf("操作别人的账户 code = %d, 期望 %d", env.Code, response.CodeAccountNotFound)
	}
}

func TestAdminEndpoints(t *testing.T) {
	router := newTestRouter(t)

	alice := registerAndLogin(t, router, "alice")
	_, env := call(t, router, http.MethodPost, "/api/v1/deposit", alice, gin.H{"amount": "75.00"})
	if env.Code != response.CodeSuccess {
		t.Fatalf("存款失败: %+v", env)
	}

	// 普通用户访问管理端被拒
	status, _ := call(t, router, http.MethodGet, "/api/v1/admin/stats", alice, nil)
	if status != http.StatusForbidden {
		t.Fatalf("普通用户访问管理端 status = %d, 期望 403", status)
	}

	_, env = call(t, router, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"username": "admin",
		"password": "admin secret",
	})
	if env.Code != response.CodeSuccess {
		t.Fatalf("管理员登录失败: %+v", env)
	}
	admin := env.Data["token"].(string)

	_, env = call(t, router, http.MethodGet, "/api/v1/admin/stats", admin, nil)
	if env.Code != response.CodeSuccess {
		t.Fatalf("管理端概览失败: %+v", env)
	}
	// admin + alice 两个用户，alice 的默认账户一个在册
	if got := env.Data["user_count"].(float64); got != 2 {
		t.Errorf("user_count = %v, 期望 2", got)
	}
	if got := env.Data["active_accounts"].(float64); got != 1 {
		t.Errorf("active_accounts = %v, 期望 1", got)
	}
	if got := env.Data["total_balance"].(string); got != "75" {
		t.Errorf("total_balance = %v, 期望 75", got)
	}
	if recent := env.Data["recent_transactions"].([]interface{}); len(recent) != 1 {
		t.Errorf("recent_transactions = %d 条, 期望 1 条", len(recent))
	}
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
}
