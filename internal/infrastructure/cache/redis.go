package cache

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"bankledger/internal/config"
	"bankledger/internal/service"

	"github.com/go-redis/redis/v8"
)

var RedisClient *redis.Client

func InitRedis(cfg *config.RedisConfig) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("连接 Redis 失败: %v", err)
	}

	RedisClient = client
	log.Println("Redis 连接成功")
	return client
}

// ============================================================================
// 会话存储
// ============================================================================

// SessionStore 基于 Redis 的会话存储。
// key = session:<token>，value = 用户ID，过期由 Redis TTL 负责
type SessionStore struct {
	client *redis.Client
}

var _ service.SessionStore = (*SessionStore)(nil)

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func sessionKey(token string) string {
	return "session:" + token
}

func (s *SessionStore) SaveSession(ctx context.Context, token string, userID int64, ttl time.Duration) error {
	return s.client.Set(ctx, sessionKey(token), userID, ttl).Err()
}

func (s *SessionStore) GetSession(ctx context.Context, token string) (int64, error) {
	val, err := s.client.Get(ctx, sessionKey(token)).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, service.ErrSessionNotFound
		}
		return 0, err
	}
	userID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, service.ErrSessionNotFound
	}
	return userID, nil
}

func (s *SessionStore) DeleteSession(ctx context.Context, token string) error {
	return s.client.Del(ctx, sessionKey(token)).Err()
}
