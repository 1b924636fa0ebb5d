package repository

import (
	"gorm.io/gorm"

	"shop_chat_server/internal/model"
)

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单 Repository
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(order *model.Order) error {
	if err := r.db.Create(order).Error; err != nil {
		return wrapDBErrorf(err, "创建订单 order_id=%s", order.OrderId)
	}
	return nil
}

func (r *orderRepository) FindByOrderId(orderId string) (*model.Order, error) {
	var order model.Order
	if err := r.db.First(&order, "order_id = ?", orderId).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询订单 order_id=%s", orderId)
	}
	return &order, nil
}

func (r *orderRepository) FindByUserId(userId string) ([]model.Order, error) {
	var orders []model.Order
	if err := r.db.Where("user_id = ?", userId).Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询用户订单 user_id=%s", userId)
	}
	return orders, nil
}

// ClaimByDevice 只认领 user_id 为空的访客订单，已被他人认领的不受影响
func (r *orderRepository) ClaimByDevice(deviceId, userId string) (int64, error) {
	res := r.db.Model(&model.Order{}).
		Where("device_id = ? AND user_id = ?", deviceId, "").
		Updates(map[string]any{"user_id": userId, "is_guest": false})
	if res.Error != nil {
		return 0, wrapDBErrorf(res.Error, "认领订单 device_id=%s", deviceId)
	}
	return res.RowsAffected, nil
}
