package service

import (
	"mallwallet/internal/config"
)

// calcChannelFee 按渠道费率计算手续费：金额 × 基点费率，向下取整后钳制在 [MinFee, MaxFee]。
// MaxFee 为 0 表示不设上限
func calcChannelFee(rate config.ChannelRate, amount int64) int64 {
	fee := amount * rate.FeeRateBp / 10000
	if fee < rate.MinFee {
		fee = rate.MinFee
	}
	if rate.MaxFee > 0 && fee > rate.MaxFee {
		fee = rate.MaxFee
	}
	return fee
}

// calcTax 按基点税率计税，向下取整
func calcTax(taxRateBp, amount int64) int64 {
	return amount * taxRateBp / 10000
}
