package handler

import (
	"github.com/gin-gonic/gin"

	"shop_chat_server/internal/dto/request"
	"shop_chat_server/internal/infrastructure/middleware"
	"shop_chat_server/internal/service"
)

// OrderHandler 订单请求处理器
type OrderHandler struct {
	orderSvc service.OrderService
}

// NewOrderHandler 创建订单处理器实例
func NewOrderHandler(orderSvc service.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// CreateOrder 下单，游客需要 device_id 与 guest_info
// POST /orders/create
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req request.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.orderSvc.Create(c.Request.Context(), middleware.CurrentUserID(c), req)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// TrackOrder 凭订单号查询
// GET /orders/track/:id
func (h *OrderHandler) TrackOrder(c *gin.Context) {
	data, err := h.orderSvc.Track(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// ClaimOrders 认领设备上的访客订单
// POST /orders/claim
func (h *OrderHandler) ClaimOrders(c *gin.Context) {
	var req request.ClaimOrdersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.orderSvc.Claim(c.Request.Context(), middleware.CurrentUserID(c), req.DeviceID)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// MyOrders 当前用户的订单
// GET /orders/mine
func (h *OrderHandler) MyOrders(c *gin.Context) {
	data, err := h.orderSvc.ListMine(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}
