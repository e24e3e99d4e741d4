package handler

import (
	"strconv"
	"time"

	"mallwallet/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const ctxOwnerID = "owner_id"

// RequestLogger 请求日志中间件
func RequestLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"cost_ms": time.Since(start).Milliseconds(),
			"ip":      c.ClientIP(),
		}).Info("request")
	}
}

// OwnerAuth 会员身份中间件。网关完成鉴权后把会员ID放在 X-Owner-Id 头里传入
func OwnerAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID, err := strconv.ParseInt(c.GetHeader("X-Owner-Id"), 10, 64)
		if err != nil || ownerID <= 0 {
			response.Error(c, response.CodeParamError, "缺少会员身份")
			c.Abort()
			return
		}
		c.Set(ctxOwnerID, ownerID)
		c.Next()
	}
}

func ownerID(c *gin.Context) int64 {
	return c.GetInt64(ctxOwnerID)
}
