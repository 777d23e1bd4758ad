// Package domain 定义订单领域模型：定价派生、状态机与跟踪信息。
package domain

import (
	"fmt"
	"strings"
	"time"
)

// OrderStatus 定义订单状态类型
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"    // 待确认
	OrderStatusConfirmed  OrderStatus = "confirmed"  // 已确认
	OrderStatusProcessing OrderStatus = "processing" // 备货中
	OrderStatusShipped    OrderStatus = "shipped"    // 已发货
	OrderStatusDelivered  OrderStatus = "delivered"  // 已送达
	OrderStatusCancelled  OrderStatus = "cancelled"  // 已取消
)

// IsValid 判断订单状态是否属于枚举集合
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// IsTerminal 判断状态是否为终态
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// 订单状态迁移表：仅允许前向推进，取消可从任意非终态发起。
// 原始系统允许任意迁移，这里收紧为显式表。
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusShipped, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled},
}

// CanTransition 判断 from → to 是否为合法迁移
func CanTransition(from, to OrderStatus) bool {
	for _, allowed := range orderTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// PaymentMethod 定义支付方式
type PaymentMethod string

const (
	PaymentMethodCash  PaymentMethod = "cash"
	PaymentMethodPayme PaymentMethod = "payme"
	PaymentMethodClick PaymentMethod = "click"
	PaymentMethodCard  PaymentMethod = "card"
)

// IsValid 判断支付方式是否属于枚举集合
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodPayme, PaymentMethodClick, PaymentMethodCard:
		return true
	}
	return false
}

// PaymentStatus 定义支付状态
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// OrderItem 表示订单行项目。
// 名称/价格/规格在下单时快照，后续商品编辑不影响已有订单。
type OrderItem struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Size      string `json:"size"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Image     string `json:"image,omitempty"`
}

// Customer 订单客户子记录
type Customer struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

// Delivery 配送子记录
type Delivery struct {
	Address      string     `json:"address"`
	City         string     `json:"city"`
	Region       string     `json:"region,omitempty"`
	PostalCode   string     `json:"postal_code,omitempty"`
	DeliveryDate *time.Time `json:"delivery_date,omitempty"`
	DeliveryTime string     `json:"delivery_time,omitempty"`
	Notes        string     `json:"delivery_notes,omitempty"`
}

// Payment 支付子记录
type Payment struct {
	Method        PaymentMethod `json:"method"`
	Status        PaymentStatus `json:"status"`
	TransactionID string        `json:"transaction_id,omitempty"`
	PaymentDate   *time.Time    `json:"payment_date,omitempty"`
}

// Pricing 定价子记录，全部为苏姆整数金额
type Pricing struct {
	Subtotal     int64 `json:"subtotal"`
	DeliveryCost int64 `json:"delivery_cost"`
	Discount     int64 `json:"discount"`
	TotalPrice   int64 `json:"total_price"`
}

// Notes 订单备注
type Notes struct {
	Customer string `json:"customer_notes,omitempty"`
	Admin    string `json:"admin_notes,omitempty"`
}

// Tracking 物流跟踪子记录
type Tracking struct {
	Number       string `json:"tracking_number,omitempty"`
	CourierName  string `json:"courier_name,omitempty"`
	CourierPhone string `json:"courier_phone,omitempty"`
}

// Timestamps 状态时间戳子记录；各时间戳只由对应迁移写入
type Timestamps struct {
	OrderDate   time.Time  `json:"order_date"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	ShippedAt   *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// Notifications 外部通知的尽力而为记账，不参与订单事务
type Notifications struct {
	TelegramSent bool `json:"telegram_sent"`
	SheetUpdated bool `json:"sheet_updated"`
}

// Order 表示订单领域模型
type Order struct {
	ID            int64         `json:"id"`
	OrderNumber   string        `json:"order_number"`
	Items         []OrderItem   `json:"products"`
	Customer      Customer      `json:"customer"`
	Delivery      Delivery      `json:"delivery"`
	Payment       Payment       `json:"payment"`
	Pricing       Pricing       `json:"pricing"`
	Status        OrderStatus   `json:"status"`
	Notes         Notes         `json:"notes"`
	Tracking      Tracking      `json:"tracking"`
	Timestamps    Timestamps    `json:"timestamps"`
	Notifications Notifications `json:"notifications"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// TotalItems 返回订单内商品总件数
func (o *Order) TotalItems() int {
	total := 0
	for _, item := range o.Items {
		total += item.Quantity
	}
	return total
}

// Recalculate 在每次持久化前重算定价，不信任调用方传入的金额：
// subtotal = Σ(price×quantity)；total = subtotal + deliveryCost − discount。
// 应付金额不为负，折扣超额时在零处截断。
func (o *Order) Recalculate() {
	var subtotal int64
	for _, item := range o.Items {
		subtotal += item.Price * int64(item.Quantity)
	}
	o.Pricing.Subtotal = subtotal
	total := subtotal + o.Pricing.DeliveryCost - o.Pricing.Discount
	if total < 0 {
		total = 0
	}
	o.Pricing.TotalPrice = total
}

// ApplyStatus 执行状态迁移：校验迁移表、写入对应时间戳。
// delivered 迁移会强制将支付状态置为 completed。
// adminNotes 非空时整体覆盖管理员备注。
func (o *Order) ApplyStatus(newStatus OrderStatus, adminNotes string, now time.Time) error {
	if !newStatus.IsValid() {
		return fmt.Errorf("unknown order status %q", newStatus)
	}
	if !CanTransition(o.Status, newStatus) {
		return fmt.Errorf("illegal status transition %s -> %s", o.Status, newStatus)
	}

	o.Status = newStatus
	if adminNotes != "" {
		o.Notes.Admin = adminNotes
	}

	switch newStatus {
	case OrderStatusConfirmed:
		o.Timestamps.ConfirmedAt = &now
	case OrderStatusShipped:
		o.Timestamps.ShippedAt = &now
	case OrderStatusDelivered:
		o.Timestamps.DeliveredAt = &now
		o.Payment.Status = PaymentStatusCompleted
	case OrderStatusCancelled:
		o.Timestamps.CancelledAt = &now
	}
	return nil
}

// SetTracking 整体覆盖物流跟踪子记录
func (o *Order) SetTracking(number, courierName, courierPhone string) {
	o.Tracking = Tracking{
		Number:       number,
		CourierName:  courierName,
		CourierPhone: courierPhone,
	}
}

// OrderNumberPrefix 订单号固定前缀
const OrderNumberPrefix = "PKT"

// NewOrderNumber 生成订单号：前缀 + 毫秒时间戳后 6 位 + 3 位零填充随机数。
// 随机后缀由调用方提供，便于冲突重试时换新。
func NewOrderNumber(now time.Time, random int) string {
	ts := fmt.Sprintf("%d", now.UnixMilli())
	if len(ts) > 6 {
		ts = ts[len(ts)-6:]
	}
	return fmt.Sprintf("%s%s%03d", OrderNumberPrefix, ts, random%1000)
}

// CreateOrderRequest 表示创建订单请求。
// 调用方可附带 pricing，但金额一律在保存前重算。
type CreateOrderRequest struct {
	Items    []OrderItem    `json:"products"`
	Customer Customer       `json:"customer"`
	Delivery Delivery       `json:"delivery"`
	Payment  *PaymentInput  `json:"payment"`
	Pricing  *PricingInput  `json:"pricing"`
	Notes    *CustomerNotes `json:"notes"`
}

// PaymentInput 创建订单时的支付参数
type PaymentInput struct {
	Method PaymentMethod `json:"method"`
}

// PricingInput 调用方提交的定价字段；仅 deliveryCost/discount 被采纳
type PricingInput struct {
	Subtotal     int64  `json:"subtotal"`
	DeliveryCost *int64 `json:"delivery_cost"`
	Discount     *int64 `json:"discount"`
	TotalPrice   int64  `json:"total_price"`
}

// CustomerNotes 创建订单时的客户备注
type CustomerNotes struct {
	CustomerNotes string `json:"customer_notes"`
}

// HasCustomer 判断客户必填项是否齐全
func (r *CreateOrderRequest) HasCustomer() bool {
	return strings.TrimSpace(r.Customer.Name) != "" && strings.TrimSpace(r.Customer.Phone) != ""
}

// HasDelivery 判断配送必填项是否齐全
func (r *CreateOrderRequest) HasDelivery() bool {
	return strings.TrimSpace(r.Delivery.Address) != "" && strings.TrimSpace(r.Delivery.City) != ""
}

// Validate 返回必填项之外的全部字段级违规
func (r *CreateOrderRequest) Validate() Violations {
	var v Violations
	if r.Customer.Phone != "" && !ValidPhone(r.Customer.Phone) {
		v.Add("customer.phone", "phone must match +998XXXXXXXXX")
	}
	if !ValidEmail(r.Customer.Email) {
		v.Add("customer.email", "invalid email format")
	}
	for i, item := range r.Items {
		if item.Name == "" {
			v.Add(fmt.Sprintf("products[%d].name", i), "name is required")
		}
		if item.Price < 0 {
			v.Add(fmt.Sprintf("products[%d].price", i), "price must be non-negative")
		}
		if item.Quantity < 1 {
			v.Add(fmt.Sprintf("products[%d].quantity", i), "quantity must be at least 1")
		}
	}
	if r.Payment != nil && r.Payment.Method != "" && !r.Payment.Method.IsValid() {
		v.Add("payment.method", "method must be one of cash, payme, click, card")
	}
	if r.Pricing != nil {
		if r.Pricing.DeliveryCost != nil && *r.Pricing.DeliveryCost < 0 {
			v.Add("pricing.delivery_cost", "delivery cost must be non-negative")
		}
		if r.Pricing.Discount != nil && *r.Pricing.Discount < 0 {
			v.Add("pricing.discount", "discount must be non-negative")
		}
	}
	return v
}

// UpdateOrderStatusRequest 表示订单状态更新请求
type UpdateOrderStatusRequest struct {
	Status     OrderStatus `json:"status"`
	AdminNotes string      `json:"admin_notes"`
}

// AddTrackingRequest 表示物流信息更新请求
type AddTrackingRequest struct {
	TrackingNumber string `json:"tracking_number"`
	CourierName    string `json:"courier_name"`
	CourierPhone   string `json:"courier_phone"`
}

// OrderListRequest 表示订单列表查询请求
type OrderListRequest struct {
	Page   int          `json:"page"`
	Limit  int          `json:"limit"`
	Status *OrderStatus `json:"status"`
	Phone  *string      `json:"phone"`
}

// OrderListResponse 表示订单列表查询响应
type OrderListResponse struct {
	Orders      []*Order `json:"orders"`
	TotalPages  int      `json:"totalPages"`
	CurrentPage int      `json:"currentPage"`
	Total       int64    `json:"total"`
}

// OrderConfirmation 创建订单后返回给调用方的最小确认信息。
// 通知结果不属于响应契约。
type OrderConfirmation struct {
	ID          int64       `json:"id"`
	OrderNumber string      `json:"order_number"`
	TotalPrice  int64       `json:"total_price"`
	Status      OrderStatus `json:"status"`
}
