package handler

import (
	"context"
	"errors"
	"strconv"

	"bankledger/internal/model"
	"bankledger/internal/service"
	"bankledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	authService    *service.AuthService
	accountService *service.AccountService
	ledgerService  *service.LedgerService
	historyService *service.HistoryService
	store          service.Store
}

// NewHandler 创建处理器实例
func NewHandler(
	auth *service.AuthService,
	accounts *service.AccountService,
	ledger *service.LedgerService,
	history *service.HistoryService,
	store service.Store,
) *Handler {
	return &Handler{
		authService:    auth,
		accountService: accounts,
		ledgerService:  ledger,
		historyService: history,
		store:          store,
	}
}

// writeServiceError 把账本核心的错误种类翻译成响应码。
// 业务错误统一走 200 + 业务码，调用方靠 code 字段分支
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidAccountType):
		response.ParamError(c, err.Error())
	case errors.Is(err, service.ErrAccountNotFound):
		response.BusinessError(c, response.CodeAccountNotFound, err.Error())
	case errors.Is(err, service.ErrAccountInactive):
		response.BusinessError(c, response.CodeAccountInactive, err.Error())
	case errors.Is(err, service.ErrInsufficientFunds):
		response.BusinessError(c, response.CodeInsufficientFunds, err.Error())
	case errors.Is(err, service.ErrDestinationNotFound):
		response.BusinessError(c, response.CodeDestinationNotFound, err.Error())
	case errors.Is(err, service.ErrSelfTransfer):
		response.BusinessError(c, response.CodeSelfTransfer, err.Error())
	case errors.Is(err, service.ErrNoCheckingAccount):
		response.BusinessError(c, response.CodeNoCheckingAccount, err.Error())
	case errors.Is(err, service.ErrConcurrencyConflict):
		response.BusinessError(c, response.CodeConcurrencyConflict, err.Error())
	case errors.Is(err, service.ErrDuplicateUser):
		response.BusinessError(c, response.CodeDuplicateUser, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		response.BusinessError(c, response.CodeInvalidCredentials, err.Error())
	default:
		response.ServerError(c, err.Error())
	}
}

// parseAmount 解析字符串金额。
// 金额在 JSON 里一律用字符串传输，避免客户端 float 精度丢失；
// 最多两位小数，和 decimal(19,2) 的存储精度一致
func parseAmount(raw string) (decimal.Decimal, bool) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	if amount.Exponent() < -2 {
		return decimal.Zero, false
	}
	return amount, true
}

// ============================================================
// 认证相关接口
// ============================================================

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username  string `json:"username" binding:"required,min=3,max=80"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Phone     string `json:"phone"`
}

// Register 注册客户
// POST /api/v1/auth/register
//
// 注册成功即自动开一个零余额的默认支票账户
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	user, err := h.authService.Register(c.Request.Context(), service.RegisterRequest{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"user_id":  user.ID,
		"username": user.Username,
	})
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 登录，发放会话令牌
// POST /api/v1/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	token, user, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"token":    token,
		"user_id":  user.ID,
		"username": user.Username,
		"role":     user.Role,
	})
}

// Logout 退出登录，删除会话
// POST /api/v1/auth/logout
func (h *Handler) Logout(c *gin.Context) {
	token := c.GetString(ctxKeyToken)
	if err := h.authService.Logout(c.Request.Context(), token); err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"message": "已退出登录"})
}

// ============================================================
// 账户相关接口
// ============================================================

// ListAccounts 当前用户名下的全部账户
// GET /api/v1/accounts
func (h *Handler) ListAccounts(c *gin.Context) {
	user := currentUser(c)

	accounts, err := h.accountService.ListForUser(c.Request.Context(), user.ID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"list": accounts})
}

// OpenAccountRequest 开户请求
type OpenAccountRequest struct {
	Type           string `json:"type" binding:"required"`
	InitialDeposit string `json:"initial_deposit"` // 可选，缺省为 0
}

// OpenAccount 开户
// POST /api/v1/accounts
func (h *Handler) OpenAccount(c *gin.Context) {
	user := currentUser(c)

	var req OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	initialDeposit := decimal.Zero
	if req.InitialDeposit != "" {
		amount, ok := parseAmount(req.InitialDeposit)
		if !ok {
			response.ParamError(c, "initial_deposit 金额格式错误")
			return
		}
		initialDeposit = amount
	}

	acct, err := h.accountService.Open(c.Request.Context(), user.ID, model.AccountType(req.Type), initialDeposit)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"account_id":     acct.ID,
		"account_number": acct.AccountNumber,
		"type":           acct.Type,
		"balance":        acct.Balance,
	})
}

// DeactivateAccount 停用账户（只停用，不删除）
// POST /api/v1/accounts/:id/deactivate
func (h *Handler) DeactivateAccount(c *gin.Context) {
	acct, ok := h.ownedAccount(c)
	if !ok {
		return
	}

	if err := h.accountService.Deactivate(c.Request.Context(), acct.ID); err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "账户已停用"})
}

// AccountTransactions 单个账户的流水
// GET /api/v1/accounts/:id/transactions
func (h *Handler) AccountTransactions(c *gin.Context) {
	acct, ok := h.ownedAccount(c)
	if !ok {
		return
	}

	txns, err := h.historyService.ForAccount(c.Request.Context(), acct.ID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"list": txns})
}

// ownedAccount 解析路径里的账户ID并校验归属。
// 别人的账户一律按不存在处理，不泄露账户是否存在
func (h *Handler) ownedAccount(c *gin.Context) (*model.Account, bool) {
	accountID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "账户ID格式错误")
		return nil, false
	}

	acct, err := h.accountService.Get(c.Request.Context(), accountID)
	if err != nil {
		writeServiceError(c, err)
		return nil, false
	}

	user := currentUser(c)
	if acct.UserID != user.ID {
		response.BusinessError(c, response.CodeAccountNotFound, service.ErrAccountNotFound.Error())
		return nil, false
	}
	return acct, true
}

// ============================================================
// 记账相关接口
// ============================================================

// MoneyRequest 存取款请求
// account_id 缺省时落到当前用户的默认支票账户
type MoneyRequest struct {
	AccountID   int64  `json:"account_id"`
	Amount      string `json:"amount" binding:"required"`
	Description string `json:"description"`
}

// Deposit 存款
// POST /api/v1/deposit
func (h *Handler) Deposit(c *gin.Context) {
	h.moneyOp(c, h.ledgerService.Deposit)
}

// Withdraw 取款
// POST /api/v1/withdraw
func (h *Handler) Withdraw(c *gin.Context) {
	h.moneyOp(c, h.ledgerService.Withdraw)
}

func (h *Handler) moneyOp(
	c *gin.Context,
	op func(ctx context.Context, accountID int64, amount decimal.Decimal, description string) (*model.Transaction, error),
) {
	var req MoneyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	amount, ok := parseAmount(req.Amount)
	if !ok {
		response.ParamError(c, "amount 金额格式错误")
		return
	}

	acct, ok := h.resolveAccount(c, req.AccountID)
	if !ok {
		return
	}

	txn, err := op(c.Request.Context(), acct.ID, amount, req.Description)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"transaction_no": txn.TransactionNo,
		"type":           txn.Type,
		"amount":         txn.Amount,
		"status":         txn.Status,
	})
}

// TransferRequest 转账请求
// from_account_id 缺省时从默认支票账户出账，目标用对方的 10 位账号标识
type TransferRequest struct {
	FromAccountID   int64  `json:"from_account_id"`
	ToAccountNumber string `json:"to_account_number" binding:"required"`
	Amount          string `json:"amount" binding:"required"`
	Description     string `json:"description"`
}

// Transfer 转账
// POST /api/v1/transfer
func (h *Handler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	amount, ok := parseAmount(req.Amount)
	if !ok {
		response.ParamError(c, "amount 金额格式错误")
		return
	}

	acct, ok := h.resolveAccount(c, req.FromAccountID)
	if !ok {
		return
	}

	txn, err := h.ledgerService.Transfer(c.Request.Context(), acct.ID, req.ToAccountNumber, amount, req.Description)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"transaction_no": txn.TransactionNo,
		"type":           txn.Type,
		"amount":         txn.Amount,
		"status":         txn.Status,
	})
}

// resolveAccount 定位本次操作的账户：
// 显式给了 account_id 就校验归属，否则落到默认支票账户
func (h *Handler) resolveAccount(c *gin.Context, accountID int64) (*model.Account, bool) {
	user := currentUser(c)

	if accountID > 0 {
		acct, err := h.accountService.Get(c.Request.Context(), accountID)
		if err != nil {
			writeServiceError(c, err)
			return nil, false
		}
		if acct.UserID != user.ID {
			response.BusinessError(c, response.CodeAccountNotFound, service.ErrAccountNotFound.Error())
			return nil, false
		}
		return acct, true
	}

	acct, err := h.accountService.DefaultChecking(c.Request.Context(), user.ID)
	if err != nil {
		writeServiceError(c, err)
		return nil, false
	}
	return acct, true
}

// ListTransactions 当前用户全部启用账户的流水（分页）
// GET /api/v1/transactions?page=1&page_size=20
func (h *Handler) ListTransactions(c *gin.Context) {
	user := currentUser(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	txns, total, err := h.historyService.ForUserPage(c.Request.Context(), user.ID, page, pageSize)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      txns,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ============================================================
// 管理端接口
// ============================================================

// AdminStats 全行概览
// GET /api/v1/admin/stats
func (h *Handler) AdminStats(c *gin.Context) {
	ctx := c.Request.Context()

	userCount, err := h.store.CountUsers(ctx)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	accountCount, err := h.store.CountActiveAccounts(ctx)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	totalBalance, err := h.store.TotalActiveBalance(ctx)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	recent, err := h.store.RecentTransactions(ctx, 10)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"user_count":          userCount,
		"active_accounts":     accountCount,
		"total_balance":       totalBalance,
		"recent_transactions": recent,
	})
}

// AdminUsers 用户列表（分页）
// GET /api/v1/admin/users?page=1&page_size=20
func (h *Handler) AdminUsers(c *gin.Context) {
	page, pageSize := pageParams(c)

	users, total, err := h.store.UsersPage(c.Request.Context(), page, pageSize)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{
		"list":      users,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// AdminAccounts 启用账户列表（分页）
// GET /api/v1/admin/accounts?page=1&page_size=20
func (h *Handler) AdminAccounts(c *gin.Context) {
	page, pageSize := pageParams(c)

	accounts, total, err := h.store.AccountsPage(c.Request.Context(), page, pageSize)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{
		"list":      accounts,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// AdminTransactions 全行流水（分页）
// GET /api/v1/admin/transactions?page=1&page_size=20
func (h *Handler) AdminTransactions(c *gin.Context) {
	page, pageSize := pageParams(c)

	txns, total, err := h.store.TransactionsPage(c.Request.Context(), page, pageSize)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{
		"list":      txns,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
