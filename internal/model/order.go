package model

import "gorm.io/gorm"

// 订单状态
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusCancelled  = "cancelled"
)

// Order 订单模型，对应 orders 表
// 访客订单 user_id 为空，登录后通过 device_id 认领
type Order struct {
	gorm.Model

	OrderId         string `gorm:"column:order_id;uniqueIndex;type:varchar(32);comment:订单号（雪花ID）"`
	UserId          string `gorm:"column:user_id;index;type:varchar(64);default:'';comment:下单用户，访客为空"`
	DeviceId        string `gorm:"column:device_id;index;type:varchar(64);comment:访客设备"`
	SessionId       string `gorm:"column:session_id;type:varchar(64);not null;comment:下单所在会话"`
	IsGuest         bool   `gorm:"column:is_guest;not null;comment:是否访客订单"`
	CustomerInfo    string `gorm:"column:customer_info;type:json;comment:访客联系信息"`
	Products        string `gorm:"column:products;type:json;not null;comment:商品列表"`
	DeliveryAddress string `gorm:"column:delivery_address;type:varchar(255);comment:收货地址"`
	DeliveryNotes   string `gorm:"column:delivery_notes;type:varchar(255);comment:配送备注"`
	Status          string `gorm:"column:status;index;type:varchar(16);not null;default:pending;comment:订单状态"`
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}
