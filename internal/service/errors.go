package service

import (
	"errors"
)

// 业务错误。全部为可恢复的用户侧错误，工作流在任何写入前校验并快速失败；
// 存储 I/O 错误不在此列，用 %w 包装后原样上抛
var (
	ErrInsufficientBalance       = errors.New("余额不足")
	ErrInsufficientFrozenBalance = errors.New("冻结余额不足")
	ErrInsufficientPoints        = errors.New("积分不足")
	ErrWalletFrozen              = errors.New("钱包已冻结")
	ErrWalletClosed              = errors.New("钱包已注销")
	ErrInvalidTransition         = errors.New("当前状态不允许该操作")
	ErrAlreadyAudited            = errors.New("提现单已审核，请勿重复操作")
	ErrAlreadyPaid               = errors.New("订单已支付")
	ErrAlreadyProcessed          = errors.New("订单已处理")
	ErrPayPasswordRequired       = errors.New("请输入支付密码")
	ErrPayPasswordError          = errors.New("支付密码错误")
	ErrPayPasswordNotSet         = errors.New("未设置支付密码")
	ErrPayPasswordExists         = errors.New("已设置支付密码，请使用修改接口")
	ErrCannotTransferToSelf      = errors.New("不能向自己转账")
	ErrDailyLimitExceeded        = errors.New("超出24小时提现限额")
	ErrAmountTooLow              = errors.New("金额低于最低限制")
	ErrInvalidAmount             = errors.New("金额必须大于0")
	ErrDuplicateOrderNumber      = errors.New("单号重复")
	ErrNotFound                  = errors.New("记录不存在")
	ErrVerifyCodeError           = errors.New("验证码错误")

	// 积分兑换校验
	ErrGoodsUnavailable      = errors.New("商品未上架或不在兑换时间内")
	ErrInsufficientStock     = errors.New("商品库存不足")
	ErrExchangeLimitExceeded = errors.New("超出单人限兑次数")
)
