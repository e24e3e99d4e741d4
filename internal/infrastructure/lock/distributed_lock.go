package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 账户互斥锁
// ============================================================================
//
// 余额变动的正确性底座是数据库事务 + 行锁/版本号 CAS，这里的锁在应用层
// 把同一会员的资金操作串行化，减少 CAS 冲突与重试。
//
// 加锁：SET key value NX EX timeout
//   - NX: 只有 key 不存在时才设置（保证互斥）
//   - EX: 设置过期时间（防止死锁）
//   - value: 锁持有者标识（释放时验证，防止误删别人的锁）
//
// 释放锁：Lua 脚本保证"检查+删除"原子执行
// ============================================================================

var ErrLockFailed = errors.New("获取分布式锁失败")

// Locker 按 key 提供互斥段。Redis 实现用于多实例部署，
// Local 实现用于测试与单实例回退
type Locker interface {
	// Acquire 阻塞式获取锁，成功返回释放函数
	Acquire(ctx context.Context, key, holder string) (release func(), err error)
}

// RedisLocker 基于 Redis SET NX 的锁实现
type RedisLocker struct {
	client        *redis.Client
	expiration    time.Duration
	retryInterval time.Duration
	maxRetries    int
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{
		client:        client,
		expiration:    30 * time.Second,
		retryInterval: 100 * time.Millisecond,
		maxRetries:    30,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key, holder string) (func(), error) {
	for i := 0; i < l.maxRetries; i++ {
		ok, err := l.client.SetNX(ctx, key, holder, l.expiration).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() { l.release(key, holder) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryInterval):
		}
	}
	return nil, ErrLockFailed
}

// release 校验持有者后删除，防止删掉过期后被别人抢走的锁
func (l *RedisLocker) release(key, holder string) {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	l.client.Eval(ctx, script, []string{key}, holder)
}

// ============================================================================
// 锁 key 约定
// ============================================================================

// WalletKey 钱包资金操作锁（按会员维度，不同会员互不阻塞）
func WalletKey(ownerID int64) string {
	return fmt.Sprintf("wallet:lock:owner:%d", ownerID)
}

// PointsKey 积分操作锁
func PointsKey(ownerID int64) string {
	return fmt.Sprintf("points:lock:owner:%d", ownerID)
}

// RechargeKey 充值单回调处理锁
func RechargeKey(orderNo string) string {
	return fmt.Sprintf("recharge:lock:order:%s", orderNo)
}

// WithdrawKey 提现单状态变更锁
func WithdrawKey(withdrawNo string) string {
	return fmt.Sprintf("withdraw:lock:order:%s", withdrawNo)
}
