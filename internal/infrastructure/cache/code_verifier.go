package cache

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisCodeVerifier 支付密码重置验证码校验。
// 验证码由验证服务（短信/邮件）发送并存入 Redis，这里只做比对；
// 比对通过即删除，验证码一次性使用
type RedisCodeVerifier struct {
	client *redis.Client
}

func NewRedisCodeVerifier(client *redis.Client) *RedisCodeVerifier {
	return &RedisCodeVerifier{client: client}
}

func codeKey(ownerID int64) string {
	return fmt.Sprintf("wallet:paypwd:code:%d", ownerID)
}

func (v *RedisCodeVerifier) Verify(ctx context.Context, ownerID int64, code string) (bool, error) {
	if code == "" {
		return false, nil
	}
	stored, err := v.client.Get(ctx, codeKey(ownerID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if stored != code {
		return false, nil
	}
	v.client.Del(ctx, codeKey(ownerID))
	return true, nil
}
