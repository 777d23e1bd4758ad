package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/paketuzb/paket_shop/internal/domain"
	"github.com/paketuzb/paket_shop/internal/repo"
)

// 支付业务错误
var (
	ErrUnsupportedPaymentMethod = errors.New("unsupported payment method")
	ErrPaymentGateway           = errors.New("payment gateway error")
)

// PaymeCheckoutURL Payme 收银台地址
const PaymeCheckoutURL = "https://checkout.paycom.uz/"

// PaymentRequest 支付发起入参；支付方式由前端在付款时选择
type PaymentRequest struct {
	OrderID int64                `json:"order_id"`
	Amount  int64                `json:"amount"`
	Method  domain.PaymentMethod `json:"method"`
}

// PaymentInitiation 支付发起结果
type PaymentInitiation struct {
	Method     domain.PaymentMethod `json:"method"`
	PaymentURL string               `json:"payment_url,omitempty"`
	InvoiceID  int64                `json:"invoice_id,omitempty"`
	ReturnURL  string               `json:"return_url,omitempty"`
}

// PaymentService 定义在线支付发起接口。
// 只覆盖跳转/开票环节，回调对账不在本服务范围内。
type PaymentService interface {
	InitiatePayment(ctx context.Context, req *PaymentRequest) (*PaymentInitiation, error)
}

// ClickInvoice Click 开票结果
type ClickInvoice struct {
	ErrorCode  int    `json:"error_code"`
	ErrorNote  string `json:"error_note"`
	InvoiceID  int64  `json:"invoice_id"`
	InvoiceURL string `json:"invoice_url"`
}

// ClickClient Click商户API客户端
type ClickClient struct {
	apiURL     string
	serviceID  string
	authToken  string
	httpClient *http.Client
}

// NewClickClient 创建Click客户端；apiURL 可替换便于测试
func NewClickClient(apiURL, serviceID, authToken string) *ClickClient {
	return &ClickClient{
		apiURL:     apiURL,
		serviceID:  serviceID,
		authToken:  authToken,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// CreateInvoice 向客户手机号推送开票请求
func (c *ClickClient) CreateInvoice(ctx context.Context, amount int64, phone, merchantTransID string) (*ClickInvoice, error) {
	payload := map[string]interface{}{
		"service_id":        c.serviceID,
		"amount":            amount,
		"phone_number":      phone,
		"merchant_trans_id": merchantTransID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal invoice request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/v2/merchant/invoice/create", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build invoice request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Auth", c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send invoice request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read invoice response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: click returned status %d", ErrPaymentGateway, resp.StatusCode)
	}

	var invoice ClickInvoice
	if err := json.Unmarshal(data, &invoice); err != nil {
		return nil, fmt.Errorf("decode invoice response: %w", err)
	}
	if invoice.ErrorCode != 0 {
		return nil, fmt.Errorf("%w: click error %d: %s", ErrPaymentGateway, invoice.ErrorCode, invoice.ErrorNote)
	}
	return &invoice, nil
}

type paymentService struct {
	orderRepo       repo.OrderRepository
	click           *ClickClient
	paymeMerchantID string
	frontendURL     string
	logger          *zap.Logger
}

// NewPaymentService 创建支付服务实例
func NewPaymentService(
	orderRepo repo.OrderRepository,
	click *ClickClient,
	paymeMerchantID string,
	frontendURL string,
	logger *zap.Logger,
) PaymentService {
	return &paymentService{
		orderRepo:       orderRepo,
		click:           click,
		paymeMerchantID: paymeMerchantID,
		frontendURL:     frontendURL,
		logger:          logger,
	}
}

// InitiatePayment 发起在线支付，两种方式都返回跳转链接。
// 支付方式先于订单校验，不受支持的方式不触碰订单；
// 成功后支付方式写回订单且支付状态推进到 processing。
func (s *paymentService) InitiatePayment(ctx context.Context, req *PaymentRequest) (*PaymentInitiation, error) {
	switch req.Method {
	case domain.PaymentMethodPayme, domain.PaymentMethodClick:
	default:
		return nil, ErrUnsupportedPaymentMethod
	}

	order, err := s.orderRepo.GetByID(req.OrderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	// 金额缺省取订单应付总额
	amount := req.Amount
	if amount <= 0 {
		amount = order.Pricing.TotalPrice
	}

	initiation := &PaymentInitiation{
		Method:    req.Method,
		ReturnURL: fmt.Sprintf("%s/order/%s", s.frontendURL, order.OrderNumber),
	}

	switch req.Method {
	case domain.PaymentMethodPayme:
		initiation.PaymentURL = s.paymeURL(order.OrderNumber, amount)
	case domain.PaymentMethodClick:
		invoice, err := s.click.CreateInvoice(ctx, amount, order.Customer.Phone, order.OrderNumber)
		if err != nil {
			return nil, fmt.Errorf("create click invoice: %w", err)
		}
		initiation.InvoiceID = invoice.InvoiceID
		initiation.PaymentURL = invoice.InvoiceURL
	}

	payment := order.Payment
	payment.Method = req.Method
	payment.Status = domain.PaymentStatusProcessing
	if err := s.orderRepo.UpdatePayment(order.ID, &payment); err != nil {
		return nil, fmt.Errorf("update payment status: %w", err)
	}

	s.logger.Info("payment initiated",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("method", string(req.Method)),
	)
	return initiation, nil
}

// paymeURL 构造收银台跳转链接。
// 参数串为 m=商户;ac.order_id=订单号;a=金额;l=uz，金额单位为提因（1苏姆=100提因）。
func (s *paymentService) paymeURL(orderNumber string, amount int64) string {
	params := fmt.Sprintf("m=%s;ac.order_id=%s;a=%d;l=uz",
		s.paymeMerchantID, orderNumber, amount*100)
	return PaymeCheckoutURL + base64.StdEncoding.EncodeToString([]byte(params))
}
