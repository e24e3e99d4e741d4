package handler

import (
	"errors"

	"mallwallet/internal/service"
	"mallwallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// 业务错误 -> 响应码映射表
var errCodes = map[error]int{
	service.ErrInsufficientBalance:       response.CodeInsufficientBalance,
	service.ErrInsufficientFrozenBalance: response.CodeInsufficientFrozenBalance,
	service.ErrWalletFrozen:              response.CodeWalletFrozen,
	service.ErrWalletClosed:              response.CodeWalletClosed,
	service.ErrPayPasswordRequired:       response.CodePayPasswordRequired,
	service.ErrPayPasswordError:          response.CodePayPasswordError,
	service.ErrPayPasswordNotSet:         response.CodePayPasswordError,
	service.ErrPayPasswordExists:         response.CodePayPasswordError,
	service.ErrCannotTransferToSelf:      response.CodeCannotTransferToSelf,
	service.ErrInvalidTransition:         response.CodeInvalidTransition,
	service.ErrAlreadyAudited:            response.CodeAlreadyAudited,
	service.ErrAlreadyPaid:               response.CodeAlreadyPaid,
	service.ErrAlreadyProcessed:          response.CodeAlreadyProcessed,
	service.ErrDailyLimitExceeded:        response.CodeDailyLimitExceeded,
	service.ErrAmountTooLow:              response.CodeAmountTooLow,
	service.ErrInvalidAmount:             response.CodeAmountTooLow,
	service.ErrDuplicateOrderNumber:      response.CodeDuplicateOrderNumber,
	service.ErrInsufficientPoints:        response.CodeInsufficientPoints,
	service.ErrGoodsUnavailable:          response.CodeInvalidTransition,
	service.ErrInsufficientStock:         response.CodeInsufficientPoints,
	service.ErrExchangeLimitExceeded:     response.CodeDailyLimitExceeded,
	service.ErrVerifyCodeError:           response.CodeParamError,
	service.ErrNotFound:                  response.CodeNotFound,
}

// fail 按错误类型写响应：业务错误回对应码，其余一律 500
func fail(c *gin.Context, err error) {
	for sentinel, code := range errCodes {
		if errors.Is(err, sentinel) {
			response.Error(c, code, sentinel.Error())
			return
		}
	}
	response.ServerError(c, "系统繁忙，请稍后再试")
}
