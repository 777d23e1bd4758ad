package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/paketuzb/paket_shop/internal/domain"
	"github.com/paketuzb/paket_shop/internal/middleware"
	"github.com/paketuzb/paket_shop/internal/resp"
	"github.com/paketuzb/paket_shop/internal/service"
)

// OrderHandler 订单相关的HTTP处理器
type OrderHandler struct {
	orderService service.OrderService
	logger       *zap.Logger
}

// NewOrderHandler 创建订单处理器实例
func NewOrderHandler(orderService service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		logger:       logger,
	}
}

// CreateOrder 创建订单（公开接口，价格以服务端重算为准）
// POST /api/orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	var req domain.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	order, err := h.orderService.CreateOrder(&req)
	if err != nil {
		var violations domain.Violations
		switch {
		case errors.As(err, &violations):
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, violations.Error(), reqID, "")
		case errors.Is(err, service.ErrEmptyOrder),
			errors.Is(err, service.ErrIncompleteCustomer),
			errors.Is(err, service.ErrIncompleteDelivery):
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, err.Error(), reqID, "")
		case errors.Is(err, service.ErrProductNotFound),
			errors.Is(err, service.ErrProductUnavailable):
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "one or more products are unavailable", reqID, "")
		default:
			h.logger.Error("create order failed", zap.String("request_id", reqID), zap.Error(err))
			resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "create order failed", reqID, "")
		}
		return
	}
	confirmation := &domain.OrderConfirmation{
		ID:          order.ID,
		OrderNumber: order.OrderNumber,
		TotalPrice:  order.Pricing.TotalPrice,
		Status:      order.Status,
	}
	resp.Created(w, confirmation, reqID, "")
}

// TrackOrder 按订单号查询订单（公开接口，客户查单）
// GET /api/orders/track/{orderNumber}
func (h *OrderHandler) TrackOrder(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	parts := strings.Split(r.URL.Path, "/")
	if len(parts) < 5 || parts[4] == "" {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid order number", reqID, "")
		return
	}

	order, err := h.orderService.GetOrderByNumber(parts[4])
	if err != nil {
		h.writeOrderError(w, r, err, "track order failed")
		return
	}
	resp.OK(w, order, reqID, "")
}

// LookupOrder 按ID查询订单（公开接口）
// GET /api/orders/{id}
func (h *OrderHandler) LookupOrder(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := pathID(r.URL.Path, 3)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid order ID", reqID, "")
		return
	}

	order, err := h.orderService.GetOrder(id)
	if err != nil {
		h.writeOrderError(w, r, err, "lookup order failed")
		return
	}
	resp.OK(w, order, reqID, "")
}

// ListOrders 获取订单列表
// GET /api/admin/orders?page=1&limit=20&status=pending&phone=+99890...
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	req := &domain.OrderListRequest{}
	query := r.URL.Query()
	req.Page = parsePositiveInt(query.Get("page"), 1)
	req.Limit = parsePositiveInt(query.Get("limit"), 20)
	if status := query.Get("status"); status != "" {
		s := domain.OrderStatus(status)
		req.Status = &s
	}
	if phone := query.Get("phone"); phone != "" {
		req.Phone = &phone
	}

	result, err := h.orderService.ListOrders(req)
	if err != nil {
		h.logger.Error("list orders failed", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "list orders failed", reqID, "")
		return
	}
	resp.OK(w, result, reqID, "")
}

// GetOrder 获取订单详情
// GET /api/admin/orders/{id}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := pathID(r.URL.Path, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid order ID", reqID, "")
		return
	}

	order, err := h.orderService.GetOrder(id)
	if err != nil {
		h.writeOrderError(w, r, err, "get order failed")
		return
	}
	resp.OK(w, order, reqID, "")
}

// UpdateStatus 订单状态迁移
// PUT /api/admin/orders/{id}/status
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := pathID(r.URL.Path, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid order ID", reqID, "")
		return
	}

	var req domain.UpdateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	order, err := h.orderService.UpdateStatus(id, &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidStatusChange) {
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, err.Error(), reqID, "")
			return
		}
		h.writeOrderError(w, r, err, "update order status failed")
		return
	}
	resp.OK(w, order, reqID, "")
}

// AddTracking 填写物流信息
// PUT /api/admin/orders/{id}/tracking
func (h *OrderHandler) AddTracking(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	id, ok := pathID(r.URL.Path, 4)
	if !ok {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid order ID", reqID, "")
		return
	}

	var req domain.AddTrackingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}

	order, err := h.orderService.AddTracking(id, &req)
	if err != nil {
		h.writeOrderError(w, r, err, "add tracking failed")
		return
	}
	resp.OK(w, order, reqID, "")
}

// writeOrderError 统一映射订单服务错误
func (h *OrderHandler) writeOrderError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	reqID := middleware.RequestIDFromContext(r.Context())
	if errors.Is(err, service.ErrOrderNotFound) {
		resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "order not found", reqID, "")
		return
	}
	h.logger.Error(logMsg, zap.String("request_id", reqID), zap.Error(err))
	resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, logMsg, reqID, "")
}
