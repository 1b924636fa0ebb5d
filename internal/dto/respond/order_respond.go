package respond

import (
	"shop_chat_server/internal/model"
)

// OrderRespond 订单详情
type OrderRespond struct {
	OrderID         string            `json:"order_id"`
	UserID          string            `json:"user_id,omitempty"`
	DeviceID        string            `json:"device_id,omitempty"`
	SessionID       string            `json:"session_id"`
	IsGuest         bool              `json:"is_guest"`
	CustomerInfo    *model.GuestInfo  `json:"customer_info,omitempty"`
	Products        model.ProductList `json:"products"`
	DeliveryAddress string            `json:"delivery_address,omitempty"`
	DeliveryNotes   string            `json:"delivery_notes,omitempty"`
	Status          string            `json:"status"`
	CreatedAt       string            `json:"created_at"`
}

// ClaimOrdersRespond 认领结果
type ClaimOrdersRespond struct {
	UserID  string `json:"user_id"`
	Claimed int64  `json:"claimed"`
}
