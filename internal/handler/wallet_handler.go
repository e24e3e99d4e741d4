package handler

import (
	"time"

	"mallwallet/internal/service"
	"mallwallet/internal/store"
	"mallwallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler 钱包账户接口
type WalletHandler struct {
	wallet   *service.WalletService
	verifier service.CodeVerifier
}

func NewWalletHandler(wallet *service.WalletService, verifier service.CodeVerifier) *WalletHandler {
	return &WalletHandler{wallet: wallet, verifier: verifier}
}

// GetAccount 查询钱包账户（不存在则懒创建）
func (h *WalletHandler) GetAccount(c *gin.Context) {
	acct, err := h.wallet.GetOrCreate(c.Request.Context(), ownerID(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, acct)
}

type ledgerQueryReq struct {
	Kind      string `form:"kind"`
	Direction string `form:"direction"`
	BizType   string `form:"biz_type"`
	Begin     string `form:"begin"` // RFC3339
	End       string `form:"end"`
	Offset    int    `form:"offset"`
	Limit     int    `form:"limit"`
}

// QueryLedger 分页查询资金流水
func (h *WalletHandler) QueryLedger(c *gin.Context) {
	var req ledgerQueryReq
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ParamError(c, "参数错误")
		return
	}

	q := store.LedgerQuery{
		OwnerID:   ownerID(c),
		Kind:      req.Kind,
		Direction: req.Direction,
		BizType:   req.BizType,
		Offset:    req.Offset,
		Limit:     req.Limit,
	}
	if t, err := time.Parse(time.RFC3339, req.Begin); err == nil {
		q.Begin = &t
	}
	if t, err := time.Parse(time.RFC3339, req.End); err == nil {
		q.End = &t
	}

	entries, total, err := h.wallet.QueryLedger(c.Request.Context(), q)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"total": total, "list": entries})
}

type transferReq struct {
	ToOwnerID   int64  `json:"to_owner_id" binding:"required"`
	Amount      int64  `json:"amount" binding:"required"`
	PayPassword string `json:"pay_password"`
}

// Transfer 会员间转账
func (h *WalletHandler) Transfer(c *gin.Context) {
	var req transferReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误")
		return
	}

	result, err := h.wallet.Transfer(c.Request.Context(), ownerID(c), req.ToOwnerID, req.Amount, req.PayPassword)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, result)
}

type setPayPasswordReq struct {
	Password string `json:"password" binding:"required"`
}

func (h *WalletHandler) SetPayPassword(c *gin.Context) {
	var req setPayPasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误")
		return
	}
	if err := h.wallet.SetPayPassword(c.Request.Context(), ownerID(c), req.Password); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, nil)
}

type changePayPasswordReq struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func (h *WalletHandler) ChangePayPassword(c *gin.Context) {
	var req changePayPasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误")
		return
	}
	if err := h.wallet.ChangePayPassword(c.Request.Context(), ownerID(c), req.OldPassword, req.NewPassword); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, nil)
}

type resetPayPasswordReq struct {
	VerifyCode  string `json:"verify_code" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func (h *WalletHandler) ResetPayPassword(c *gin.Context) {
	var req resetPayPasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误")
		return
	}
	if err := h.wallet.ResetPayPassword(c.Request.Context(), ownerID(c), req.VerifyCode, req.NewPassword, h.verifier); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, nil)
}
