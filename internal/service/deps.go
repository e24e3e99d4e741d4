package service

import (
	"context"
	"time"
)

// Clock 时间源，测试中替换为固定时钟
type Clock interface {
	Now() time.Time
}

// SystemClock 系统时钟
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// NumberSource 业务单号来源（生产实现见 pkg/idgen）
type NumberSource interface {
	Next(prefix string) string
}

// CodeVerifier 重置支付密码时的验证码校验。
// 验证码的发送与存放由验证服务负责，引擎只做比对
type CodeVerifier interface {
	Verify(ctx context.Context, ownerID int64, code string) (bool, error)
}
