package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// NewRouter 组装路由。会员侧接口走 OwnerAuth，
// 渠道回调与运营侧接口由网关鉴权，这里不再校验会员身份
func NewRouter(log *logrus.Logger, wallet *WalletHandler, recharge *RechargeHandler, withdraw *WithdrawHandler, points *PointsHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(log))

	api := r.Group("/api/v1")

	// 会员侧
	member := api.Group("", OwnerAuth())
	{
		w := member.Group("/wallet")
		{
			w.GET("/account", wallet.GetAccount)
			w.GET("/ledger", wallet.QueryLedger)
			w.POST("/transfer", wallet.Transfer)
			w.POST("/pay-password", wallet.SetPayPassword)
			w.PUT("/pay-password", wallet.ChangePayPassword)
			w.POST("/pay-password/reset", wallet.ResetPayPassword)
		}

		rc := member.Group("/recharge")
		{
			rc.POST("", recharge.Create)
			rc.GET("", recharge.List)
			rc.GET("/:orderNo", recharge.Get)
			rc.POST("/:orderNo/cancel", recharge.Cancel)
		}

		wd := member.Group("/withdraw")
		{
			wd.POST("", withdraw.Create)
			wd.GET("", withdraw.List)
			wd.GET("/:withdrawNo", withdraw.Get)
			wd.POST("/:withdrawNo/cancel", withdraw.Cancel)
		}

		pt := member.Group("/points")
		{
			pt.GET("/account", points.GetAccount)
			pt.GET("/ledger", points.QueryLedger)
			pt.POST("/exchange", points.Exchange)
			pt.GET("/exchange", points.ListExchanges)
			pt.GET("/exchange/:exchangeNo", points.GetExchange)
			pt.POST("/exchange/:exchangeNo/cancel", points.CancelExchange)
		}
	}

	// 渠道回调
	api.POST("/callback/recharge", recharge.Callback)

	// 运营侧
	admin := api.Group("/admin")
	{
		admin.POST("/withdraw/:withdrawNo/audit", withdraw.Audit)
		admin.POST("/withdraw/:withdrawNo/process", withdraw.Process)
		admin.POST("/withdraw/:withdrawNo/failure", withdraw.HandleFailure)
		admin.POST("/exchange/:exchangeNo/ship", points.Ship)
		admin.POST("/exchange/:exchangeNo/complete", points.Complete)
	}

	return r
}
