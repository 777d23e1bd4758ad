package repo

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/paketuzb/paket_shop/internal/database"
	"github.com/paketuzb/paket_shop/internal/domain"
)

// OrderRepository 定义订单数据访问接口
type OrderRepository interface {
	// Create 写入新订单；订单号冲突时返回包装的 ErrDuplicateKey
	Create(order *domain.Order) error
	GetByID(id int64) (*domain.Order, error)
	GetByOrderNumber(orderNumber string) (*domain.Order, error)
	Update(order *domain.Order) error
	List(req *domain.OrderListRequest) ([]*domain.Order, int64, error)

	// 通知标记只向 true 方向写，与订单主事务解耦
	MarkTelegramSent(id int64) error
	MarkSheetUpdated(id int64) error

	// UpdatePayment 只更新支付子记录
	UpdatePayment(id int64, payment *domain.Payment) error
}

type orderRepo struct {
	db *database.DB
}

// NewOrderRepository 创建订单仓储实例
func NewOrderRepository(db *database.DB) OrderRepository {
	return &orderRepo{db: db}
}

const orderColumns = `
	id, order_number, items, customer_name, customer_phone, customer_email,
	delivery_address, delivery_city, delivery_region, delivery_postal_code,
	delivery_date, delivery_time, delivery_notes,
	payment_method, payment_status, transaction_id, payment_date,
	subtotal, delivery_cost, discount, total_price,
	status, customer_notes, admin_notes,
	tracking_number, courier_name, courier_phone,
	order_date, confirmed_at, shipped_at, delivered_at, cancelled_at,
	telegram_sent, sheet_updated, created_at, updated_at
`

// Create 创建订单
func (r *orderRepo) Create(order *domain.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("encode order items: %w", err)
	}

	query := `
		INSERT INTO orders (
			order_number, items, customer_name, customer_phone, customer_email,
			delivery_address, delivery_city, delivery_region, delivery_postal_code,
			delivery_date, delivery_time, delivery_notes,
			payment_method, payment_status, transaction_id, payment_date,
			subtotal, delivery_cost, discount, total_price,
			status, customer_notes, admin_notes,
			tracking_number, courier_name, courier_phone,
			order_date, telegram_sent, sheet_updated
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Exec(query,
		order.OrderNumber, items,
		order.Customer.Name, order.Customer.Phone, order.Customer.Email,
		order.Delivery.Address, order.Delivery.City, order.Delivery.Region, order.Delivery.PostalCode,
		order.Delivery.DeliveryDate, order.Delivery.DeliveryTime, order.Delivery.Notes,
		string(order.Payment.Method), string(order.Payment.Status),
		order.Payment.TransactionID, order.Payment.PaymentDate,
		order.Pricing.Subtotal, order.Pricing.DeliveryCost, order.Pricing.Discount, order.Pricing.TotalPrice,
		string(order.Status), order.Notes.Customer, order.Notes.Admin,
		order.Tracking.Number, order.Tracking.CourierName, order.Tracking.CourierPhone,
		order.Timestamps.OrderDate,
		order.Notifications.TelegramSent, order.Notifications.SheetUpdated,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("create order: %w", ErrDuplicateKey)
		}
		return fmt.Errorf("create order: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	order.ID = id
	return nil
}

// GetByID 根据ID获取订单
func (r *orderRepo) GetByID(id int64) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ?`
	return r.queryOne(query, id)
}

// GetByOrderNumber 根据订单号获取订单
func (r *orderRepo) GetByOrderNumber(orderNumber string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_number = ?`
	return r.queryOne(query, orderNumber)
}

// Update 更新订单可变字段（订单号和商品快照创建后不再变化）
func (r *orderRepo) Update(order *domain.Order) error {
	query := `
		UPDATE orders SET
			payment_method = ?, payment_status = ?, transaction_id = ?, payment_date = ?,
			subtotal = ?, delivery_cost = ?, discount = ?, total_price = ?,
			status = ?, customer_notes = ?, admin_notes = ?,
			tracking_number = ?, courier_name = ?, courier_phone = ?,
			confirmed_at = ?, shipped_at = ?, delivered_at = ?, cancelled_at = ?
		WHERE id = ?
	`

	if _, err := r.db.Exec(query,
		string(order.Payment.Method), string(order.Payment.Status),
		order.Payment.TransactionID, order.Payment.PaymentDate,
		order.Pricing.Subtotal, order.Pricing.DeliveryCost, order.Pricing.Discount, order.Pricing.TotalPrice,
		string(order.Status), order.Notes.Customer, order.Notes.Admin,
		order.Tracking.Number, order.Tracking.CourierName, order.Tracking.CourierPhone,
		order.Timestamps.ConfirmedAt, order.Timestamps.ShippedAt,
		order.Timestamps.DeliveredAt, order.Timestamps.CancelledAt,
		order.ID,
	); err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	return nil
}

// List 分页查询订单列表，按下单时间倒序
func (r *orderRepo) List(req *domain.OrderListRequest) ([]*domain.Order, int64, error) {
	conditions := []string{"1 = 1"}
	args := []interface{}{}

	if req.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, string(*req.Status))
	}
	if req.Phone != nil && *req.Phone != "" {
		conditions = append(conditions, "customer_phone = ?")
		args = append(args, *req.Phone)
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int64
	countQuery := "SELECT COUNT(*) FROM orders " + where
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	offset := (req.Page - 1) * req.Limit
	query := `SELECT ` + orderColumns + ` FROM orders ` + where +
		` ORDER BY order_date DESC LIMIT ? OFFSET ?`
	args = append(args, req.Limit, offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, total, rows.Err()
}

// MarkTelegramSent 标记订单的Telegram通知已发送
func (r *orderRepo) MarkTelegramSent(id int64) error {
	if _, err := r.db.Exec(`UPDATE orders SET telegram_sent = TRUE WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark telegram sent: %w", err)
	}
	return nil
}

// MarkSheetUpdated 标记订单已写入表格
func (r *orderRepo) MarkSheetUpdated(id int64) error {
	if _, err := r.db.Exec(`UPDATE orders SET sheet_updated = TRUE WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark sheet updated: %w", err)
	}
	return nil
}

// UpdatePayment 更新支付子记录
func (r *orderRepo) UpdatePayment(id int64, payment *domain.Payment) error {
	query := `UPDATE orders
		SET payment_method = ?, payment_status = ?, transaction_id = ?, payment_date = ?
		WHERE id = ?`

	if _, err := r.db.Exec(query,
		string(payment.Method), string(payment.Status),
		payment.TransactionID, payment.PaymentDate, id,
	); err != nil {
		return fmt.Errorf("update order payment: %w", err)
	}
	return nil
}

func (r *orderRepo) queryOne(query string, arg interface{}) (*domain.Order, error) {
	row := r.db.QueryRow(query, arg)
	order, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	o := &domain.Order{}
	var (
		items                            []byte
		paymentMethod, paymentStatus     string
		status                           string
		email, region, postalCode        sql.NullString
		deliveryTime, deliveryNotes      sql.NullString
		transactionID                    sql.NullString
		customerNotes, adminNotes        sql.NullString
		trackingNumber, courierName      sql.NullString
		courierPhone                     sql.NullString
		deliveryDate, paymentDate        sql.NullTime
		confirmedAt, shippedAt           sql.NullTime
		deliveredAt, cancelledAt         sql.NullTime
	)

	err := row.Scan(
		&o.ID, &o.OrderNumber, &items,
		&o.Customer.Name, &o.Customer.Phone, &email,
		&o.Delivery.Address, &o.Delivery.City, &region, &postalCode,
		&deliveryDate, &deliveryTime, &deliveryNotes,
		&paymentMethod, &paymentStatus, &transactionID, &paymentDate,
		&o.Pricing.Subtotal, &o.Pricing.DeliveryCost, &o.Pricing.Discount, &o.Pricing.TotalPrice,
		&status, &customerNotes, &adminNotes,
		&trackingNumber, &courierName, &courierPhone,
		&o.Timestamps.OrderDate, &confirmedAt, &shippedAt, &deliveredAt, &cancelledAt,
		&o.Notifications.TelegramSent, &o.Notifications.SheetUpdated,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode order items: %w", err)
	}

	o.Customer.Email = email.String
	o.Delivery.Region = region.String
	o.Delivery.PostalCode = postalCode.String
	o.Delivery.DeliveryTime = deliveryTime.String
	o.Delivery.Notes = deliveryNotes.String
	o.Payment.Method = domain.PaymentMethod(paymentMethod)
	o.Payment.Status = domain.PaymentStatus(paymentStatus)
	o.Payment.TransactionID = transactionID.String
	o.Status = domain.OrderStatus(status)
	o.Notes.Customer = customerNotes.String
	o.Notes.Admin = adminNotes.String
	o.Tracking.Number = trackingNumber.String
	o.Tracking.CourierName = courierName.String
	o.Tracking.CourierPhone = courierPhone.String

	o.Delivery.DeliveryDate = nullTimePtr(deliveryDate)
	o.Payment.PaymentDate = nullTimePtr(paymentDate)
	o.Timestamps.ConfirmedAt = nullTimePtr(confirmedAt)
	o.Timestamps.ShippedAt = nullTimePtr(shippedAt)
	o.Timestamps.DeliveredAt = nullTimePtr(deliveredAt)
	o.Timestamps.CancelledAt = nullTimePtr(cancelledAt)
	return o, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
