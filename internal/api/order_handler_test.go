package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/paketuzb/paket_shop/internal/domain"
	"github.com/paketuzb/paket_shop/internal/resp"
	"github.com/paketuzb/paket_shop/internal/service"
)

// 测试用订单服务：未设置的函数字段走默认成功路径
type mockOrderService struct {
	createOrderFunc  func(req *domain.CreateOrderRequest) (*domain.Order, error)
	getOrderFunc     func(id int64) (*domain.Order, error)
	getByNumberFunc  func(orderNumber string) (*domain.Order, error)
	listOrdersFunc   func(req *domain.OrderListRequest) (*domain.OrderListResponse, error)
	updateStatusFunc func(id int64, req *domain.UpdateOrderStatusRequest) (*domain.Order, error)
	addTrackingFunc  func(id int64, req *domain.AddTrackingRequest) (*domain.Order, error)
}

func testOrder() *domain.Order {
	return &domain.Order{
		ID:          7,
		OrderNumber: "PKT123456001",
		Status:      domain.OrderStatusPending,
		Pricing:     domain.Pricing{Subtotal: 30000, DeliveryCost: 50000, TotalPrice: 80000},
	}
}

func (m *mockOrderService) CreateOrder(req *domain.CreateOrderRequest) (*domain.Order, error) {
	if m.createOrderFunc != nil {
		return m.createOrderFunc(req)
	}
	return testOrder(), nil
}

func (m *mockOrderService) GetOrder(id int64) (*domain.Order, error) {
	if m.getOrderFunc != nil {
		return m.getOrderFunc(id)
	}
	return testOrder(), nil
}

func (m *mockOrderService) GetOrderByNumber(orderNumber string) (*domain.Order, error) {
	if m.getByNumberFunc != nil {
		return m.getByNumberFunc(orderNumber)
	}
	return testOrder(), nil
}

func (m *mockOrderService) ListOrders(req *domain.OrderListRequest) (*domain.OrderListResponse, error) {
	if m.listOrdersFunc != nil {
		return m.listOrdersFunc(req)
	}
	return &domain.OrderListResponse{Orders: []*domain.Order{testOrder()}, Total: 1, TotalPages: 1, CurrentPage: 1}, nil
}

func (m *mockOrderService) UpdateStatus(id int64, req *domain.UpdateOrderStatusRequest) (*domain.Order, error) {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(id, req)
	}
	return testOrder(), nil
}

func (m *mockOrderService) AddTracking(id int64, req *domain.AddTrackingRequest) (*domain.Order, error) {
	if m.addTrackingFunc != nil {
		return m.addTrackingFunc(id, req)
	}
	return testOrder(), nil
}

func decodeBody(t *testing.T, rw *httptest.ResponseRecorder) resp.Body {
	t.Helper()
	var body resp.Body
	if err := json.Unmarshal(rw.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response json: %v", err)
	}
	return body
}

func TestCreateOrder_Success(t *testing.T) {
	h := NewOrderHandler(&mockOrderService{}, zap.NewNop())

	payload := []byte(`{"customer":{"name":"Aziz","phone":"+998901234567"},"delivery":{"address":"Chilonzor 5","city":"Toshkent"},"items":[{"product_id":1,"quantity":2}]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader(payload))
	rw := httptest.NewRecorder()
	h.CreateOrder(rw, req)

	if rw.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rw.Code, rw.Body.String())
	}
	body := decodeBody(t, rw)
	if body.Code != resp.CodeOK {
		t.Errorf("unexpected business code %d", body.Code)
	}

	// 响应只回最小确认信息，不暴露完整订单
	data, ok := body.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected data shape: %T", body.Data)
	}
	if data["order_number"] != "PKT123456001" {
		t.Errorf("unexpected order_number: %v", data["order_number"])
	}
	if _, exists := data["customer"]; exists {
		t.Error("confirmation should not contain customer details")
	}
}

func TestCreateOrder_InvalidBody(t *testing.T) {
	h := NewOrderHandler(&mockOrderService{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader([]byte("{not json")))
	rw := httptest.NewRecorder()
	h.CreateOrder(rw, req)

	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Code)
	}
}

func TestCreateOrder_Violations(t *testing.T) {
	svc := &mockOrderService{
		createOrderFunc: func(req *domain.CreateOrderRequest) (*domain.Order, error) {
			var v domain.Violations
			v.Add("customer.phone", "invalid phone format")
			return nil, v
		},
	}
	h := NewOrderHandler(svc, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader([]byte(`{}`)))
	rw := httptest.NewRecorder()
	h.CreateOrder(rw, req)

	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Code)
	}
	if body := decodeBody(t, rw); body.Code != resp.CodeInvalidParam {
		t.Errorf("unexpected business code %d", body.Code)
	}
}

func TestCreateOrder_UnavailableProduct(t *testing.T) {
	svc := &mockOrderService{
		createOrderFunc: func(req *domain.CreateOrderRequest) (*domain.Order, error) {
			return nil, service.ErrProductUnavailable
		},
	}
	h := NewOrderHandler(svc, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader([]byte(`{}`)))
	rw := httptest.NewRecorder()
	h.CreateOrder(rw, req)

	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Code)
	}
}

func TestTrackOrder(t *testing.T) {
	var gotNumber string
	svc := &mockOrderService{
		getByNumberFunc: func(orderNumber string) (*domain.Order, error) {
			gotNumber = orderNumber
			return testOrder(), nil
		},
	}
	h := NewOrderHandler(svc, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/orders/track/PKT123456001", nil)
	rw := httptest.NewRecorder()
	h.TrackOrder(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	if gotNumber != "PKT123456001" {
		t.Errorf("service received order number %q", gotNumber)
	}
}

func TestTrackOrder_NotFound(t *testing.T) {
	svc := &mockOrderService{
		getByNumberFunc: func(orderNumber string) (*domain.Order, error) {
			return nil, service.ErrOrderNotFound
		},
	}
	h := NewOrderHandler(svc, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/orders/track/PKT000000000", nil)
	rw := httptest.NewRecorder()
	h.TrackOrder(rw, req)

	if rw.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rw.Code)
	}
	if body := decodeBody(t, rw); body.Code != resp.CodeNotFound {
		t.Errorf("unexpected business code %d", body.Code)
	}
}

func TestLookupOrder_InvalidID(t *testing.T) {
	h := NewOrderHandler(&mockOrderService{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/orders/abc", nil)
	rw := httptest.NewRecorder()
	h.LookupOrder(rw, req)

	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Code)
	}
}

func TestUpdateStatus_InvalidTransition(t *testing.T) {
	svc := &mockOrderService{
		updateStatusFunc: func(id int64, req *domain.UpdateOrderStatusRequest) (*domain.Order, error) {
			return nil, service.ErrInvalidStatusChange
		},
	}
	h := NewOrderHandler(svc, zap.NewNop())

	payload := []byte(`{"status":"delivered"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/admin/orders/7/status", bytes.NewReader(payload))
	rw := httptest.NewRecorder()
	h.UpdateStatus(rw, req)

	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Code)
	}
}
