// Package order 访客与登录用户下单、查询、认领
package order

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"shop_chat_server/internal/dao/mysql/repository"
	"shop_chat_server/internal/dto/request"
	"shop_chat_server/internal/dto/respond"
	"shop_chat_server/internal/model"
	"shop_chat_server/pkg/errorx"
	"shop_chat_server/pkg/util/snowflake"
)

// SessionReader 下单时校验会话归属，并为访客会话记录联系信息
type SessionReader interface {
	Get(ctx context.Context, sessionID string) (*model.Session, error)
	SetGuestInfo(ctx context.Context, sessionID string, info model.GuestInfo) error
}

type orderService struct {
	orders   repository.OrderRepository
	sessions SessionReader
	newID    func() string
}

// NewOrderService 构造函数
func NewOrderService(orders repository.OrderRepository, sessions SessionReader) *orderService {
	return &orderService{orders: orders, sessions: sessions, newID: snowflake.GenerateIDString}
}

// Create 下单
// 登录用户：会话必须属于该用户
// 访客：必须提供 device_id 与 guest_info，会话必须属于该设备，联系信息写回会话
func (s *orderService) Create(ctx context.Context, userID string, req request.CreateOrderRequest) (*respond.OrderRespond, error) {
	sess, err := s.sessions.Get(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	order := &model.Order{
		OrderId:         s.newID(),
		SessionId:       req.SessionID,
		DeviceId:        req.DeviceID,
		DeliveryAddress: req.DeliveryAddress,
		DeliveryNotes:   req.DeliveryNotes,
		Status:          model.OrderStatusPending,
	}

	var customer *model.GuestInfo
	if userID != "" {
		if sess.UserID != userID {
			return nil, errorx.New(errorx.CodeForbidden, "session does not belong to you")
		}
		order.UserId = userID
	} else {
		if req.DeviceID == "" {
			return nil, errorx.New(errorx.CodeInvalidIdentity, "device_id required for guest users")
		}
		if req.GuestInfo == nil {
			return nil, errorx.New(errorx.CodeInvalidParam, "guest_info required for guest checkout")
		}
		if !sess.OwnedBy(model.DeviceIdentity(req.DeviceID)) {
			return nil, errorx.New(errorx.CodeForbidden, "session does not belong to this device")
		}
		info := *req.GuestInfo
		info.DeviceID = req.DeviceID
		if err := s.sessions.SetGuestInfo(ctx, req.SessionID, info); err != nil {
			return nil, err
		}
		customer = &info
		order.IsGuest = true
		if order.DeliveryAddress == "" {
			order.DeliveryAddress = info.Address
		}
		raw, err := json.Marshal(info)
		if err != nil {
			return nil, errorx.Wrap(err, errorx.CodeServerBusy, "marshal customer info")
		}
		order.CustomerInfo = string(raw)
	}

	products, err := json.Marshal(req.Products)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.CodeInvalidParam, "marshal products")
	}
	order.Products = string(products)

	if err := s.orders.Create(order); err != nil {
		zap.L().Error("创建订单失败", zap.String("order_id", order.OrderId), zap.Error(err))
		return nil, err
	}
	zap.L().Info("order created",
		zap.String("order_id", order.OrderId),
		zap.String("session_id", order.SessionId),
		zap.Bool("is_guest", order.IsGuest))

	rsp := toOrderRespond(order)
	rsp.CustomerInfo = customer
	rsp.Products = req.Products
	return rsp, nil
}

// Track 凭订单号查询，无需登录
func (s *orderService) Track(_ context.Context, orderID string) (*respond.OrderRespond, error) {
	order, err := s.orders.FindByOrderId(orderID)
	if err != nil {
		if errorx.IsNotFound(err) {
			return nil, errorx.Newf(errorx.CodeNotFound, "order %s not found", orderID)
		}
		return nil, err
	}
	rsp := toOrderRespond(order)
	if order.CustomerInfo != "" {
		var info model.GuestInfo
		if err := json.Unmarshal([]byte(order.CustomerInfo), &info); err == nil {
			rsp.CustomerInfo = &info
		}
	}
	if err := json.Unmarshal([]byte(order.Products), &rsp.Products); err != nil {
		zap.L().Warn("订单商品解析失败", zap.String("order_id", orderID), zap.Error(err))
		rsp.Products = model.ProductList{}
	}
	return rsp, nil
}

// Claim 登录后认领设备上的访客订单
func (s *orderService) Claim(_ context.Context, userID, deviceID string) (*respond.ClaimOrdersRespond, error) {
	n, err := s.orders.ClaimByDevice(deviceID, userID)
	if err != nil {
		return nil, err
	}
	zap.L().Info("guest orders claimed", zap.String("device_id", deviceID), zap.String("user_id", userID), zap.Int64("count", n))
	return &respond.ClaimOrdersRespond{UserID: userID, Claimed: n}, nil
}

// ListMine 当前用户的订单，含已认领的访客订单
func (s *orderService) ListMine(_ context.Context, userID string) ([]respond.OrderRespond, error) {
	orders, err := s.orders.FindByUserId(userID)
	if err != nil {
		return nil, err
	}
	out := make([]respond.OrderRespond, 0, len(orders))
	for i := range orders {
		rsp := toOrderRespond(&orders[i])
		if err := json.Unmarshal([]byte(orders[i].Products), &rsp.Products); err != nil {
			rsp.Products = model.ProductList{}
		}
		out = append(out, *rsp)
	}
	return out, nil
}

func toOrderRespond(o *model.Order) *respond.OrderRespond {
	rsp := &respond.OrderRespond{
		OrderID:         o.OrderId,
		UserID:          o.UserId,
		DeviceID:        o.DeviceId,
		SessionID:       o.SessionId,
		IsGuest:         o.IsGuest,
		DeliveryAddress: o.DeliveryAddress,
		DeliveryNotes:   o.DeliveryNotes,
		Status:          o.Status,
	}
	if !o.CreatedAt.IsZero() {
		rsp.CreatedAt = model.FormatTime(o.CreatedAt)
	} else {
		rsp.CreatedAt = model.FormatTime(time.Now())
	}
	return rsp
}
