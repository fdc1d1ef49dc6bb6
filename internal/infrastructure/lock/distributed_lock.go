package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bankledger/internal/service"
	"bankledger/pkg/idgen"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 分布式锁实现
// ============================================================================
//
// 【为什么需要分布式锁？】
//
// 场景：同一个账户同时收到两笔取款请求（比如网络抖动导致重复提交），
// 且服务部署了多个实例，单机互斥锁管不住跨实例的并发。
//
// 如果没有分布式锁：
//   实例1: 查询余额=100 -> 扣款100 -> 余额=0   OK
//   实例2: 查询余额=100 -> 扣款100 -> 余额=-100 超扣了！
//
// 加了分布式锁（按账户维度）：
//   实例1: 获取锁 -> 查询余额=100 -> 扣款100 -> 余额=0 -> 释放锁
//   实例2: 获取锁失败，等待... -> 获取锁 -> 查询余额=0 -> 余额不足，拒绝
//
// 数据库的行锁 + 乐观版本号是最终防线，分布式锁在入口处削掉大部分冲突，
// 避免热点账户把重试次数打满。
//
// 【Redis 分布式锁原理】
//
// 加锁：SET key value NX EX timeout
//   - NX: 只有 key 不存在时才设置（保证互斥）
//   - EX: 设置过期时间（防止死锁）
//   - value: 锁持有者标识（释放时验证，防止误删别人的锁）
//
// 释放锁：使用 Lua 脚本保证原子性
//   - 先检查 value 是否是自己的
//   - 再删除 key
//
// ============================================================================

var (
	ErrLockFailed  = errors.New("获取分布式锁失败")
	ErrLockExpired = errors.New("锁已过期")
)

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string        // 锁的 key
	value      string        // 锁的 value（用于验证锁的持有者）
	expiration time.Duration // 锁的过期时间
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
//
// 【关键点】使用 SetNX 命令，只有当 key 不存在时才能设置成功
// 这保证了同一时刻只有一个客户端能获取到锁
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
			// 继续重试
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁
//
// 【关键点】使用 Lua 脚本保证"检查+删除"操作的原子性
//
// 为什么要检查 value？
//
//	场景：A 获取锁 -> A 处理超时，锁自动过期 -> B 获取锁 -> A 执行完毕，调用 Unlock
//	如果不检查 value，A 会把 B 的锁删掉！
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

// ============================================================================
// 账户锁：service.Locker 的 Redis 实现
// ============================================================================
//
// 【设计思考】为什么按账户维度加锁？
//
// 方案1：全局锁（所有账户共用一把锁）
//   - 优点：实现简单
//   - 缺点：并发度极低，账户A取款时，账户B也要等待
//
// 方案2：按账户加锁（每个账户独立一把锁）  <-- 我们的选择
//   - 优点：不同账户可以并发记账
//   - 缺点：同一账户不能并发（这正是我们想要的！）
//
// 转账只锁出账账户：入账侧只会增加余额，行锁 + 版本号足够保护。
// 如果两边都拿分布式锁，还得按账户ID排序拿锁防死锁，收益不大。

// AccountLocker 按账户维度的 Redis 互斥锁
type AccountLocker struct {
	client        *redis.Client
	expiration    time.Duration
	retryInterval time.Duration
	maxRetries    int
}

var _ service.Locker = (*AccountLocker)(nil)

func NewAccountLocker(client *redis.Client) *AccountLocker {
	return &AccountLocker{
		client:        client,
		expiration:    10 * time.Second,
		retryInterval: 50 * time.Millisecond,
		maxRetries:    20,
	}
}

// AcquireAccountLock 有界等待地获取账户锁。
// 等待超限返回 ErrLockFailed，由账本服务转换为并发冲突暴露给调用方
func (a *AccountLocker) AcquireAccountLock(ctx context.Context, accountID int64) (func(), error) {
	key := fmt.Sprintf("ledger:lock:account:%d", accountID)
	// value 使用雪花ID，每次获取都不同，便于追踪锁的持有者
	value := fmt.Sprintf("%d", idgen.NextID())
	dl := NewDistributedLock(a.client, key, value, a.expiration)

	if err := dl.Lock(ctx, a.retryInterval, a.maxRetries); err != nil {
		return nil, err
	}
	release := func() {
		_ = dl.Unlock(context.Background())
	}
	return release, nil
}
