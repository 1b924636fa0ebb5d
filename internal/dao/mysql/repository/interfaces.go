// Package repository 定义 MySQL 数据访问接口与实现
// 会话本身存放在 Redis，这里只持久化账号和订单
package repository

import (
	"errors"

	"gorm.io/gorm"

	"shop_chat_server/internal/model"
	"shop_chat_server/pkg/errorx"
)

// wrapDBError 记录不存在映射为 CodeNotFound，其余为 CodeDBError
func wrapDBError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errorx.Wrap(err, errorx.CodeNotFound, msg)
	}
	return errorx.Wrap(err, errorx.CodeDBError, msg)
}

func wrapDBErrorf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errorx.Wrapf(err, errorx.CodeNotFound, format, args...)
	}
	return errorx.Wrapf(err, errorx.CodeDBError, format, args...)
}

// UserRepository 账号数据访问
type UserRepository interface {
	FindByUuid(uuid string) (*model.UserInfo, error)
	FindByUsername(username string) (*model.UserInfo, error)
	Create(user *model.UserInfo) error
}

// OrderRepository 订单数据访问
type OrderRepository interface {
	Create(order *model.Order) error
	FindByOrderId(orderId string) (*model.Order, error)
	// FindByUserId 按下单时间倒序
	FindByUserId(userId string) ([]model.Order, error)
	// ClaimByDevice 把设备上尚未归属用户的访客订单转给 userId，返回认领条数
	ClaimByDevice(deviceId, userId string) (int64, error)
}

// Repositories 聚合所有 Repository，作为 Service 层的依赖入口
type Repositories struct {
	User  UserRepository
	Order OrderRepository
}

// NewRepositories 以同一个 *gorm.DB 创建全部 Repository
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:  NewUserRepository(db),
		Order: NewOrderRepository(db),
	}
}
