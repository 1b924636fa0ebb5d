package request

import "shop_chat_server/internal/model"

// CreateOrderRequest 下单，游客需要 device_id 和 guest_info
type CreateOrderRequest struct {
	DeviceID        string            `json:"device_id"`
	SessionID       string            `json:"session_id" binding:"required"`
	Products        model.ProductList `json:"products" binding:"required,min=1"`
	GuestInfo       *model.GuestInfo  `json:"guest_info"`
	DeliveryAddress string            `json:"delivery_address" binding:"max=255"`
	DeliveryNotes   string            `json:"delivery_notes" binding:"max=255"`
}

// ClaimOrdersRequest 登录后认领设备上的访客订单
type ClaimOrdersRequest struct {
	DeviceID string `json:"device_id" binding:"required"`
}
