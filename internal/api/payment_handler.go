package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/paketuzb/paket_shop/internal/middleware"
	"github.com/paketuzb/paket_shop/internal/resp"
	"github.com/paketuzb/paket_shop/internal/service"
)

// PaymentHandler 支付发起相关的HTTP处理器
type PaymentHandler struct {
	paymentService service.PaymentService
	logger         *zap.Logger
}

// NewPaymentHandler 创建支付处理器实例
func NewPaymentHandler(paymentService service.PaymentService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		logger:         logger,
	}
}

// InitiatePayment 按请求的支付方式发起在线支付
// POST /api/payment {order_id, amount, method}
func (h *PaymentHandler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.RequestIDFromContext(r.Context())

	var req service.PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid request body", zap.String("request_id", reqID), zap.Error(err))
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "invalid request body", reqID, "")
		return
	}
	if req.OrderID <= 0 {
		resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "order_id is required", reqID, "")
		return
	}

	initiation, err := h.paymentService.InitiatePayment(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			resp.Error(w, http.StatusNotFound, resp.CodeNotFound, "order not found", reqID, "")
		case errors.Is(err, service.ErrUnsupportedPaymentMethod):
			resp.Error(w, http.StatusBadRequest, resp.CodeInvalidParam, "unsupported payment method", reqID, "")
		case errors.Is(err, service.ErrPaymentGateway):
			h.logger.Error("payment gateway error", zap.String("request_id", reqID), zap.Error(err))
			resp.Error(w, http.StatusBadGateway, resp.CodeInternalError, "payment gateway error", reqID, "")
		default:
			h.logger.Error("initiate payment failed", zap.String("request_id", reqID), zap.Error(err))
			resp.Error(w, http.StatusInternalServerError, resp.CodeInternalError, "initiate payment failed", reqID, "")
		}
		return
	}
	resp.OK(w, initiation, reqID, "")
}
