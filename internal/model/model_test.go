package model

import (
	"testing"
)

func TestRechargeCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{RechargeStatusPending, RechargeStatusSuccess, true},
		{RechargeStatusPending, RechargeStatusFailed, true},
		{RechargeStatusPending, RechargeStatusCancelled, true},
		{RechargeStatusSuccess, RechargeStatusFailed, false},
		{RechargeStatusFailed, RechargeStatusSuccess, false},
		{RechargeStatusCancelled, RechargeStatusSuccess, false},
	}
	for _, tt := range tests {
		if got := RechargeCanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("RechargeCanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestSignedAmount(t *testing.T) {
	credit := &LedgerEntry{Kind: LedgerKindRecharge, Direction: DirectionCredit, Amount: 100}
	if credit.SignedAmount() != 100 {
		t.Errorf("入账应为正, got %d", credit.SignedAmount())
	}
	debit := &LedgerEntry{Kind: LedgerKindWithdraw, Direction: DirectionDebit, Amount: 100}
	if debit.SignedAmount() != -100 {
		t.Errorf("出账应为负, got %d", debit.SignedAmount())
	}
	// 冻结/解冻不改变总持有额
	freeze := &LedgerEntry{Kind: LedgerKindFreeze, Direction: DirectionDebit, Amount: 100}
	unfreeze := &LedgerEntry{Kind: LedgerKindUnfreeze, Direction: DirectionCredit, Amount: 100}
	if freeze.SignedAmount() != 0 || unfreeze.SignedAmount() != 0 {
		t.Errorf("冻结/解冻对账应计0, got %d / %d", freeze.SignedAmount(), unfreeze.SignedAmount())
	}
}

func TestTierForPoints(t *testing.T) {
	tests := []struct {
		earned int64
		want   int
	}{
		{0, 1}, {499, 1}, {500, 2}, {1999, 2}, {2000, 3}, {4999, 3}, {5000, 4}, {9999, 4}, {10000, 5}, {100000, 5},
	}
	for _, tt := range tests {
		if got := TierForPoints(tt.earned); got != tt.want {
			t.Errorf("TierForPoints(%d) = %d, want %d", tt.earned, got, tt.want)
		}
	}
}

func TestWithdrawTerminalHelpers(t *testing.T) {
	o := &WithdrawOrder{AuditStatus: WithdrawAuditPending, ProcessStatus: WithdrawProcessPending}
	if o.AuditTerminal() || o.ProcessTerminal() {
		t.Errorf("新单不应处于终态")
	}
	o.AuditStatus = WithdrawAuditRejected
	if !o.AuditTerminal() {
		t.Errorf("驳回应为审核终态")
	}
	o = &WithdrawOrder{AuditStatus: WithdrawAuditApproved, ProcessStatus: WithdrawProcessCompleted}
	if o.AuditTerminal() {
		t.Errorf("通过不是审核终态")
	}
	if !o.ProcessTerminal() {
		t.Errorf("完成应为打款终态")
	}
}
