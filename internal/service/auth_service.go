package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"time"

	"bankledger/internal/config"
	"bankledger/internal/model"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// AuthService 注册、登录与会话。
// 账本核心不做认证：这里产出"已认证的用户身份"，供 Web 层在调用账本前使用。
// 会话是服务端令牌（存 Redis，带 TTL），角色是封闭枚举，不做字符串比较。
type AuthService struct {
	store    Store
	sessions SessionStore
	accounts *AccountService
	cfg      *config.Config
}

func NewAuthService(store Store, sessions SessionStore, accounts *AccountService, cfg *config.Config) *AuthService {
	return &AuthService{
		store:    store,
		sessions: sessions,
		accounts: accounts,
		cfg:      cfg,
	}
}

type RegisterRequest struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

// Register 注册客户：建用户（customer 角色）+ 默认支票账户（零余额）
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		Role:         model.RoleCustomer,
		IsActive:     true,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	// 注册即开默认支票账户，后续存取款的默认目标
	if _, err := s.accounts.Open(ctx, user.ID, model.AccountTypeChecking, decimal.Zero); err != nil {
		return nil, err
	}

	log.Printf("[Auth] 注册成功: username=%s, userID=%d", user.Username, user.ID)
	return user, nil
}

// Login 校验口令，发放会话令牌
func (s *AuthService) Login(ctx context.Context, username, password string) (string, *model.User, error) {
	user, err := s.store.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if !user.IsActive {
		return "", nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := newSessionToken()
	if err != nil {
		return "", nil, err
	}
	if err := s.sessions.SaveSession(ctx, token, user.ID, s.sessionTTL()); err != nil {
		return "", nil, err
	}

	return token, user, nil
}

// Logout 删除会话
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessions.DeleteSession(ctx, token)
}

// Authenticate 由令牌解析出用户；令牌无效或用户停用返回 ErrSessionNotFound
func (s *AuthService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	userID, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}
	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrSessionNotFound
	}
	return user, nil
}

// EnsureAdmin 保证初始管理员存在（幂等，启动时调用）
func (s *AuthService) EnsureAdmin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	if _, err := s.store.UserByUsername(ctx, username); err == nil {
		return nil
	} else if !errors.Is(err, ErrUserNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := &model.User{
		Username:     username,
		Email:        username + "@bank.local",
		PasswordHash: string(hash),
		FirstName:    "System",
		LastName:     "Admin",
		Role:         model.RoleAdmin,
		IsActive:     true,
	}
	if err := s.store.CreateUser(ctx, admin); err != nil {
		return err
	}
	log.Printf("[Auth] 初始管理员已创建: username=%s", username)
	return nil
}

func (s *AuthService) sessionTTL() time.Duration {
	minutes := s.cfg.Business.SessionTTLMinutes
	if minutes <= 0 {
		minutes = 30
	}
	return time.Duration(minutes) * time.Minute
}

func newSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
