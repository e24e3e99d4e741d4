package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess     = 0
	CodeParamError  = 400
	CodeNotFound    = 404
	CodeServerError = 500
)

// 业务错误码（1xxx 钱包，2xxx 工作流，3xxx 积分）
const (
	CodeInsufficientBalance       = 1001
	CodeInsufficientFrozenBalance = 1002
	CodeWalletFrozen              = 1003
	CodeWalletClosed              = 1004
	CodePayPasswordRequired       = 1005
	CodePayPasswordError          = 1006
	CodeCannotTransferToSelf      = 1007

	CodeInvalidTransition    = 2001
	CodeAlreadyAudited       = 2002
	CodeAlreadyPaid          = 2003
	CodeAlreadyProcessed     = 2004
	CodeDailyLimitExceeded   = 2005
	CodeAmountTooLow         = 2006
	CodeDuplicateOrderNumber = 2007

	CodeInsufficientPoints = 3001
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}
