package handler

import (
	"mallwallet/internal/service"
	"mallwallet/internal/store"
	"mallwallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// RechargeHandler 充值接口
type RechargeHandler struct {
	recharge *service.RechargeService
}

func NewRechargeHandler(recharge *service.RechargeService) *RechargeHandler {
	return &RechargeHandler{recharge: recharge}
}

type createRechargeReq struct {
	Amount  int64  `json:"amount" binding:"required"`
	Channel string `json:"channel" binding:"required"`
}

// Create 创建充值单
func (h *RechargeHandler) Create(c *gin.Context) {
	var req createRechargeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误")
		return
	}
	order, err := h.recharge.Create(c.Request.Context(), ownerID(c), req.Amount, req.Channel)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, order)
}

type rechargeCallbackReq struct {
	OrderNo     string `json:"order_no" binding:"required"`
	Status      string `json:"status" binding:"required"` // SUCCESS / FAILED
	ExternalRef string `json:"external_ref"`
	Reason      string `json:"reason"`
}

// Callback 支付渠道回调。渠道可能重复投递，处理是幂等的
func (h *RechargeHandler) Callback(c *gin.Context) {
	var req rechargeCallbackReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误")
		return
	}

	var err error
	switch req.Status {
	case "SUCCESS":
		_, err = h.recharge.HandlePaymentSuccess(c.Request.Context(), req.OrderNo, req.ExternalRef)
	case "FAILED":
		_, err = h.recharge.HandlePaymentFailed(c.Request.Context(), req.OrderNo, req.Reason)
	default:
		response.ParamError(c, "未知回调状态")
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, nil)
}

type cancelReq struct {
	Reason string `json:"reason"`
}

// Cancel 取消待支付充值单
func (h *RechargeHandler) Cancel(c *gin.Context) {
	var req cancelReq
	_ = c.ShouldBindJSON(&req)

	order, err := h.recharge.Cancel(c.Request.Context(), ownerID(c), c.Param("orderNo"), req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, order)
}

// Get 查询充值单
func (h *RechargeHandler) Get(c *gin.Context) {
	order, err := h.recharge.Get(c.Request.Context(), c.Param("orderNo"))
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

type orderListReq struct {
	Status string `form:"status"`
	Offset int    `form:"offset"`
	Limit  int    `form:"limit"`
}

// List 分页查询充值单
func (h *RechargeHandler) List(c *gin.Context) {
	var req orderListReq
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ParamError(c, "参数错误")
		return
	}
	orders, total, err := h.recharge.List(c.Request.Context(), store.OrderQuery{
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
