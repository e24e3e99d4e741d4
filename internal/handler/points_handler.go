package handler

import (
	"time"

	"mallwallet/internal/service"
	"mallwallet/internal/store"
	"mallwallet/pkg/response"

	"github.com/gin-gonic/gin"
)

// PointsHandler 积分接口
type PointsHandler struct {
	points *service.PointsService
}

func NewPointsHandler(points *service.PointsService) *PointsHandler {
	return &PointsHandler{points: points}
}

// GetAccount 查询积分账户
func (h *PointsHandler) GetAccount(c *gin.Context) {
	acct, err := h.points.GetOrCreate(c.Request.Context(), ownerID(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, acct)
}

// QueryLedger 分页查询积分流水
func (h *PointsHandler) QueryLedger(c *gin.Context) {
	var req ledgerQueryReq
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ParamError(c, "参数错误")
		return
	}

	q := store.PointsLedgerQuery{
		OwnerID:   ownerID(c),
		Kind:      req.Kind,
		Direction: req.Direction,
		Offset:    req.Offset,
		Limit:     req.Limit,
	}
	if t, err := time.Parse(time.RFC3339, req.Begin); err == nil {
		q.Begin = &t
	}
	if t, err := time.Parse(time.RFC3339, req.End); err == nil {
		q.End = &t
	}

	entries, total, err := h.points.QueryLedger(c.Request.Context(), q)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"total": total, "list": entries})
}

type exchangeReq struct {
	GoodsID      int64  `json:"goods_id" binding:"required"`
	Quantity     int64  `json:"quantity" binding:"required"`
	ShippingInfo string `json:"shipping_info" binding:"required"`
}

// Exchange 积分兑换商品
func (h *PointsHandler) Exchange(c *gin.Context) {
	var req exchangeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误")
		return
	}
	record, err := h.points.Exchange(c.Request.Context(), ownerID(c), req.GoodsID, req.Quantity, req.ShippingInfo)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, record)
}

type shipReq struct {
	LogisticsNo string `json:"logistics_no" binding:"required"`
}

// Ship 发货（运营侧）
func (h *PointsHandler) Ship(c *gin.Context) {
	var req shipReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误")
		return
	}
	record, err := h.points.Ship(c.Request.Context(), c.Param("exchangeNo"), req.LogisticsNo)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, record)
}

// Complete 确认收货
func (h *PointsHandler) Complete(c *gin.Context) {
	record, err := h.points.Complete(c.Request.Context(), c.Param("exchangeNo"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, record)
}

// CancelExchange 取消兑换（仅发货前）
func (h *PointsHandler) CancelExchange(c *gin.Context) {
	var req cancelReq
	_ = c.ShouldBindJSON(&req)

	record, err := h.points.CancelExchange(c.Request.Context(), ownerID(c), c.Param("exchangeNo"), req.Reason)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, record)
}

// ListExchanges 分页查询兑换记录
func (h *PointsHandler) ListExchanges(c *gin.Context) {
	var req orderListReq
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ParamError(c, "参数错误")
		return
	}
	records, total, err := h.points.ListExchanges(c.Request.Context(), store.OrderQuery{
		OwnerID: ownerID(c),
		Status:  req.Status,
		Offset:  req.Offset,
		Limit:   req.Limit,
	})
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"total": total, "list": records})
}

// GetExchange 查询兑换记录
func (h *PointsHandler) GetExchange(c *gin.Context) {
	record, err := h.points.GetExchange(c.Request.Context(), c.Param("exchangeNo"))
	if err != nil {
		fail(c, err)
		return
	}
	if record.OwnerID != ownerID(c) {
		fail(c, service.ErrNotFound)
		return
	}
	response.Success(c, record)
}
