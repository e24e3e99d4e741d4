package handler

import (
	"mallwallet/internal/service"
	"mallwallet/internal/store"
	"mallwallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// WithdrawHandler 提现接口（会员侧 + 运营审核/打款侧）
type WithdrawHandler struct {
	withdraw *service.WithdrawService
}

func NewWithdrawHandler(withdraw *service.WithdrawService) *WithdrawHandler {
	return &WithdrawHandler{withdraw: withdraw}
}

type createWithdrawReq struct {
	Amount      int64  `json:"amount" binding:"required"`
	Channel     string `json:"channel" binding:"required"`
	Destination string `json:"destination" binding:"required"`
	PayPassword string `json:"pay_password" binding:"required"`
}

// Create 发起提现
func (h *WithdrawHandler) Create(c *gin.Context) {
	var req createWithdrawReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误")
		return
	}
	order, err := h.withdraw.Create(c.Request.Context(), ownerID(c), req.Amount, req.Channel, req.Destination, req.PayPassword)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, order)
}

type auditReq struct {
	Approve   bool   `json:"approve"`
	AuditorID int64  `json:"auditor_id" binding:"required"`
	Remark    string `json:"remark"`
}

// Audit 审核提现单（运营侧）
func (h *WithdrawHandler) Audit(c *gin.Context) {
	var req auditReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误")
		return
	}
	order, err := h.withdraw.Audit(c.Request.Context(), c.Param("withdrawNo"), req.Approve, req.AuditorID, req.Remark)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, order)
}

type processReq struct {
	PayoutChannel string `json:"payout_channel" binding:"required"`
	ExternalRef   string `json:"external_ref" binding:"required"`
}

// Process 打款完成回执（运营侧/渠道回调）
func (h *WithdrawHandler) Process(c *gin.Context) {
	var req processReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误")
		return
	}
	order, err := h.withdraw.Process(c.Request.Context(), c.Param("withdrawNo"), req.PayoutChannel, req.ExternalRef)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, order)
}

type failureReq struct {
	Reason string `json:"reason" binding:"required"`
}

// HandleFailure 打款失败回执
func (h *WithdrawHandler) HandleFailure(c *gin.Context) {
	var req failureReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误")
		return
	}
	order, err := h.withdraw.HandleFailure(c.Request.Context(), c.Param("withdrawNo"), req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, order)
}

// Cancel 会员取消提现（仅审核前）
func (h *WithdrawHandler) Cancel(c *gin.Context) {
	var req cancelReq
	_ = c.ShouldBindJSON(&req)

	order, err := h.withdraw.Cancel(c.Request.Context(), ownerID(c), c.Param("withdrawNo"), req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, order)
}

// Get 查询提现单
func (h *WithdrawHandler) Get(c *gin.Context) {
	order, err := h.withdraw.Get(c.Request.Context(), c.Param("withdrawNo"))
	if err != nil {
		fail(c, err)
		return
	}
	if order.OwnerID != ownerID(c) {
		fail(c, service.ErrNotFound)
		return
	}
	response.Success(c, order)
}

// List 分页查询提现单
func (h *WithdrawHandler) List(c *gin.Context) {
	var req orderListReq
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ParamError(c, "参数错误")
		return
	}
	orders, total, err := h.withdraw.List(c.Request.Context(), store.OrderQuery{
		OwnerID: ownerID(c),
		Status:  req.Status,
		Offset:  req.Offset,
		Limit:   req.Limit,
	})
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"total": total, "list": orders})
}
