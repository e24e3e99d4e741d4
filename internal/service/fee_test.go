package service

import (
	"testing"

	"mallwallet/internal/config"
)

func TestCalcChannelFee(t *testing.T) {
	tests := []struct {
		name   string
		rate   config.ChannelRate
		amount int64
		want   int64
	}{
		{"比例费率", config.ChannelRate{FeeRateBp: 60}, 10000, 60},
		{"向下取整", config.ChannelRate{FeeRateBp: 60}, 101, 0},
		{"最低手续费兜底", config.ChannelRate{FeeRateBp: 200, MinFee: 200}, 1000, 200},
		{"最高手续费钳制", config.ChannelRate{FeeRateBp: 100, MaxFee: 2500}, 1000000, 2500},
		{"零费率", config.ChannelRate{}, 10000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := calcChannelFee(tt.rate, tt.amount); got != tt.want {
				t.Errorf("calcChannelFee(%+v, %d) = %d, want %d", tt.rate, tt.amount, got, tt.want)
			}
		})
	}
}

func TestCalcTax(t *testing.T) {
	if got := calcTax(100, 10000); got != 100 {
		t.Errorf("1%%税率计算错误, got %d", got)
	}
	if got := calcTax(0, 10000); got != 0 {
		t.Errorf("零税率应为0, got %d", got)
	}
}
