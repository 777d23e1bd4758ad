package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/paketuzb/paket_shop/internal/domain"
	"github.com/paketuzb/paket_shop/internal/resp"
	"github.com/paketuzb/paket_shop/internal/service"
)

type mockPaymentService struct {
	initiateFunc func(ctx context.Context, req *service.PaymentRequest) (*service.PaymentInitiation, error)
}

func (m *mockPaymentService) InitiatePayment(ctx context.Context, req *service.PaymentRequest) (*service.PaymentInitiation, error) {
	return m.initiateFunc(ctx, req)
}

func TestInitiatePaymentHandler_Click(t *testing.T) {
	var gotReq *service.PaymentRequest
	svc := &mockPaymentService{
		initiateFunc: func(_ context.Context, req *service.PaymentRequest) (*service.PaymentInitiation, error) {
			gotReq = req
			return &service.PaymentInitiation{
				Method:     domain.PaymentMethodClick,
				PaymentURL: "https://my.click.uz/pay/7001",
				InvoiceID:  7001,
			}, nil
		},
	}
	h := NewPaymentHandler(svc, zap.NewNop())

	body := `{"order_id": 5, "amount": 95000, "method": "click"}`
	rw := httptest.NewRecorder()
	h.InitiatePayment(rw, httptest.NewRequest(http.MethodPost, "/api/payment", strings.NewReader(body)))

	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	if gotReq.OrderID != 5 || gotReq.Amount != 95000 || gotReq.Method != domain.PaymentMethodClick {
		t.Errorf("request not passed through: %+v", gotReq)
	}

	data, ok := decodeBody(t, rw).Data.(map[string]interface{})
	if !ok {
		t.Fatalf("expected object data")
	}
	if data["payment_url"] != "https://my.click.uz/pay/7001" {
		t.Errorf("expected payment_url in response, got %v", data["payment_url"])
	}
}

func TestInitiatePaymentHandler_UnsupportedMethod(t *testing.T) {
	svc := &mockPaymentService{
		initiateFunc: func(_ context.Context, _ *service.PaymentRequest) (*service.PaymentInitiation, error) {
			return nil, service.ErrUnsupportedPaymentMethod
		},
	}
	h := NewPaymentHandler(svc, zap.NewNop())

	body := `{"order_id": 5, "amount": 95000, "method": "fax"}`
	rw := httptest.NewRecorder()
	h.InitiatePayment(rw, httptest.NewRequest(http.MethodPost, "/api/payment", strings.NewReader(body)))

	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Code)
	}
	envelope := decodeBody(t, rw)
	if envelope.Code != resp.CodeInvalidParam {
		t.Errorf("expected code %d, got %d", resp.CodeInvalidParam, envelope.Code)
	}
	if envelope.Message != "unsupported payment method" {
		t.Errorf("unexpected message %q", envelope.Message)
	}
}

func TestInitiatePaymentHandler_MissingOrderID(t *testing.T) {
	h := NewPaymentHandler(&mockPaymentService{}, zap.NewNop())

	rw := httptest.NewRecorder()
	h.InitiatePayment(rw, httptest.NewRequest(http.MethodPost, "/api/payment", strings.NewReader(`{"method": "payme"}`)))

	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Code)
	}
}

func TestInitiatePaymentHandler_OrderNotFound(t *testing.T) {
	svc := &mockPaymentService{
		initiateFunc: func(_ context.Context, _ *service.PaymentRequest) (*service.PaymentInitiation, error) {
			return nil, service.ErrOrderNotFound
		},
	}
	h := NewPaymentHandler(svc, zap.NewNop())

	rw := httptest.NewRecorder()
	h.InitiatePayment(rw, httptest.NewRequest(http.MethodPost, "/api/payment", strings.NewReader(`{"order_id": 404, "method": "payme"}`)))

	if rw.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rw.Code)
	}
}
