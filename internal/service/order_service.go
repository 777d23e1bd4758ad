package service

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/paketuzb/paket_shop/internal/domain"
	"github.com/paketuzb/paket_shop/internal/repo"
)

// 订单业务错误
var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrEmptyOrder          = errors.New("products list is empty")
	ErrIncompleteCustomer  = errors.New("customer information is incomplete")
	ErrIncompleteDelivery  = errors.New("delivery information is incomplete")
	ErrInvalidStatusChange = errors.New("invalid status change")
	ErrOrderNumberConflict = errors.New("could not allocate order number")
)

// 订单号冲突时的重试上限；随机后缀只有千分之一冲突概率
const orderNumberRetries = 3

// NotificationPublisher 投递订单与留言事件到通知队列。
// 发布失败不影响主流程，由调用方记录日志。
type NotificationPublisher interface {
	PublishOrderCreated(order *domain.Order) error
	PublishOrderStatusChanged(order *domain.Order, oldStatus domain.OrderStatus) error
	PublishContactCreated(contact *domain.Contact) error
	PublishLowStock(products []*domain.Product) error
}

// OrderService 定义订单业务逻辑接口
type OrderService interface {
	CreateOrder(req *domain.CreateOrderRequest) (*domain.Order, error)
	GetOrder(id int64) (*domain.Order, error)
	GetOrderByNumber(orderNumber string) (*domain.Order, error)
	ListOrders(req *domain.OrderListRequest) (*domain.OrderListResponse, error)
	UpdateStatus(id int64, req *domain.UpdateOrderStatusRequest) (*domain.Order, error)
	AddTracking(id int64, req *domain.AddTrackingRequest) (*domain.Order, error)
}

type orderService struct {
	orderRepo    repo.OrderRepository
	productRepo  repo.ProductRepository
	publisher    NotificationPublisher
	deliveryCost int64
	logger       *zap.Logger
}

// NewOrderService 创建订单服务实例
func NewOrderService(
	orderRepo repo.OrderRepository,
	productRepo repo.ProductRepository,
	publisher NotificationPublisher,
	deliveryCost int64,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		orderRepo:    orderRepo,
		productRepo:  productRepo,
		publisher:    publisher,
		deliveryCost: deliveryCost,
		logger:       logger,
	}
}

// CreateOrder 创建订单。
// 业务规则：
// 1. 客户、配送、商品三段信息按序校验，缺失即拒绝
// 2. 单价与名称以数据库为准，客户端提交的价格不参与计价
// 3. 配送费与折扣可由请求覆盖，小计与总价始终重算
// 4. 订单号冲突时换随机后缀重试
func (s *orderService) CreateOrder(req *domain.CreateOrderRequest) (*domain.Order, error) {
	if !req.HasCustomer() {
		return nil, ErrIncompleteCustomer
	}
	if !req.HasDelivery() {
		return nil, ErrIncompleteDelivery
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	if v := req.Validate(); !v.OK() {
		return nil, v
	}

	// 商品快照：名称、规格、单价均以当前目录为准
	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, reqItem := range req.Items {
		product, err := s.productRepo.GetByID(reqItem.ProductID)
		if err != nil {
			return nil, fmt.Errorf("load product %d: %w", reqItem.ProductID, err)
		}
		if product == nil {
			return nil, fmt.Errorf("product %d: %w", reqItem.ProductID, ErrProductNotFound)
		}
		if !product.IsAvailable() {
			return nil, fmt.Errorf("product %d: %w", reqItem.ProductID, ErrProductUnavailable)
		}

		quantity := reqItem.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		items = append(items, domain.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Size:      product.Size,
			Price:     product.Price,
			Quantity:  quantity,
			Image:     product.MainImage(),
		})
	}

	now := time.Now()
	order := &domain.Order{
		Items:    items,
		Customer: req.Customer,
		Delivery: req.Delivery,
		Status:   domain.OrderStatusPending,
		Payment: domain.Payment{
			Method: domain.PaymentMethodCash,
			Status: domain.PaymentStatusPending,
		},
		Pricing: domain.Pricing{
			DeliveryCost: s.deliveryCost,
		},
		Timestamps: domain.Timestamps{OrderDate: now},
	}
	if req.Payment != nil && req.Payment.Method != "" {
		order.Payment.Method = req.Payment.Method
	}
	if req.Pricing != nil {
		if req.Pricing.DeliveryCost != nil {
			order.Pricing.DeliveryCost = *req.Pricing.DeliveryCost
		}
		if req.Pricing.Discount != nil {
			order.Pricing.Discount = *req.Pricing.Discount
		}
	}
	if req.Notes != nil {
		order.Notes.Customer = req.Notes.CustomerNotes
	}
	order.Recalculate()

	if err := s.createWithNumber(order, now); err != nil {
		return nil, err
	}

	s.logger.Info("order created",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int64("total_price", order.Pricing.TotalPrice),
		zap.String("payment_method", string(order.Payment.Method)),
	)

	// 通知走消息队列，发布失败只记录不回滚
	if err := s.publisher.PublishOrderCreated(order); err != nil {
		s.logger.Error("failed to publish order notification",
			zap.Int64("order_id", order.ID),
			zap.Error(err),
		)
	}

	return order, nil
}

// createWithNumber 分配订单号并写库，唯一键冲突时换随机后缀重试
func (s *orderService) createWithNumber(order *domain.Order, now time.Time) error {
	for attempt := 0; attempt <= orderNumberRetries; attempt++ {
		order.OrderNumber = domain.NewOrderNumber(now, rand.Intn(1000))
		err := s.orderRepo.Create(order)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repo.ErrDuplicateKey) {
			return fmt.Errorf("create order: %w", err)
		}
		s.logger.Warn("order number collision, retrying",
			zap.String("order_number", order.OrderNumber),
			zap.Int("attempt", attempt+1),
		)
	}
	return ErrOrderNumberConflict
}

// GetOrder 获取订单详情
func (s *orderService) GetOrder(id int64) (*domain.Order, error) {
	order, err := s.orderRepo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// GetOrderByNumber 根据订单号获取订单
func (s *orderService) GetOrderByNumber(orderNumber string) (*domain.Order, error) {
	order, err := s.orderRepo.GetByOrderNumber(orderNumber)
	if err != nil {
		return nil, fmt.Errorf("get order by number: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// ListOrders 分页获取订单列表
func (s *orderService) ListOrders(req *domain.OrderListRequest) (*domain.OrderListResponse, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Limit <= 0 {
		req.Limit = 20
	}
	if req.Limit > 100 {
		req.Limit = 100
	}

	orders, total, err := s.orderRepo.List(req)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	totalPages := int((total + int64(req.Limit) - 1) / int64(req.Limit))
	return &domain.OrderListResponse{
		Orders:      orders,
		TotalPages:  totalPages,
		CurrentPage: req.Page,
		Total:       total,
	}, nil
}

// UpdateStatus 推进订单状态。
// 到达 delivered 时记账销量并扣减库存。
func (s *orderService) UpdateStatus(id int64, req *domain.UpdateOrderStatusRequest) (*domain.Order, error) {
	order, err := s.orderRepo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	oldStatus := order.Status
	if err := order.ApplyStatus(req.Status, req.AdminNotes, time.Now()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStatusChange, err)
	}

	if err := s.orderRepo.Update(order); err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}

	if order.Status == domain.OrderStatusDelivered {
		for _, item := range order.Items {
			if err := s.productRepo.RecordSale(item.ProductID, item.Quantity); err != nil {
				s.logger.Error("failed to record sale",
					zap.Int64("order_id", order.ID),
					zap.Int64("product_id", item.ProductID),
					zap.Error(err),
				)
			}
		}
	}

	if err := s.publisher.PublishOrderStatusChanged(order, oldStatus); err != nil {
		s.logger.Error("failed to publish status notification",
			zap.Int64("order_id", order.ID),
			zap.Error(err),
		)
	}

	s.logger.Info("order status updated",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("status", string(order.Status)),
	)
	return order, nil
}

// AddTracking 登记物流信息
func (s *orderService) AddTracking(id int64, req *domain.AddTrackingRequest) (*domain.Order, error) {
	order, err := s.orderRepo.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	order.SetTracking(req.TrackingNumber, req.CourierName, req.CourierPhone)
	if err := s.orderRepo.Update(order); err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	return order, nil
}
