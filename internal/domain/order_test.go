package domain

import (
	"regexp"
	"testing"
	"time"
)

func TestOrder_Recalculate(t *testing.T) {
	tests := []struct {
		name         string
		items        []OrderItem
		deliveryCost int64
		discount     int64
		wantSubtotal int64
		wantTotal    int64
	}{
		{
			name: "two line items",
			items: []OrderItem{
				{Price: 500, Quantity: 2},
				{Price: 800, Quantity: 1},
			},
			deliveryCost: 50000,
			wantSubtotal: 1800,
			wantTotal:    51800,
		},
		{
			name:         "empty order",
			items:        nil,
			deliveryCost: 50000,
			wantSubtotal: 0,
			wantTotal:    50000,
		},
		{
			name: "discount applied",
			items: []OrderItem{
				{Price: 1000, Quantity: 3},
			},
			deliveryCost: 50000,
			discount:     3000,
			wantSubtotal: 3000,
			wantTotal:    50000,
		},
		{
			name: "excessive discount clamps at zero",
			items: []OrderItem{
				{Price: 100, Quantity: 1},
			},
			deliveryCost: 0,
			discount:     1000,
			wantSubtotal: 100,
			wantTotal:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Order{
				Items: tt.items,
				Pricing: Pricing{
					// 调用方传入的金额必须被覆盖
					Subtotal:     9999999,
					TotalPrice:   -1,
					DeliveryCost: tt.deliveryCost,
					Discount:     tt.discount,
				},
			}
			o.Recalculate()

			if o.Pricing.Subtotal != tt.wantSubtotal {
				t.Errorf("subtotal = %d, want %d", o.Pricing.Subtotal, tt.wantSubtotal)
			}
			if o.Pricing.TotalPrice != tt.wantTotal {
				t.Errorf("totalPrice = %d, want %d", o.Pricing.TotalPrice, tt.wantTotal)
			}
		})
	}
}

func TestNewOrderNumber_Format(t *testing.T) {
	re := regexp.MustCompile(`^PKT\d{6}\d{3}$`)
	now := time.Now()

	for i := 0; i < 10; i++ {
		num := NewOrderNumber(now, i*111)
		if !re.MatchString(num) {
			t.Errorf("order number %q does not match PKT + 6 digits + 3 digits", num)
		}
	}
}

func TestNewOrderNumber_DistinctWithinMillisecond(t *testing.T) {
	// 同一毫秒内依赖随机后缀区分
	now := time.Now()
	a := NewOrderNumber(now, 1)
	b := NewOrderNumber(now, 2)
	if a == b {
		t.Errorf("order numbers with distinct suffixes must differ: %q", a)
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{OrderStatusPending, OrderStatusConfirmed, true},
		{OrderStatusPending, OrderStatusProcessing, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusDelivered, false},
		{OrderStatusConfirmed, OrderStatusShipped, true},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusConfirmed, false},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusPending, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestOrder_ApplyStatus(t *testing.T) {
	now := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)

	t.Run("confirmed stamps confirmedAt", func(t *testing.T) {
		o := &Order{Status: OrderStatusPending}
		if err := o.ApplyStatus(OrderStatusConfirmed, "tez yetkazilsin", now); err != nil {
			t.Fatalf("ApplyStatus() error = %v", err)
		}
		if o.Timestamps.ConfirmedAt == nil || !o.Timestamps.ConfirmedAt.Equal(now) {
			t.Errorf("confirmedAt = %v, want %v", o.Timestamps.ConfirmedAt, now)
		}
		if o.Notes.Admin != "tez yetkazilsin" {
			t.Errorf("adminNotes = %q", o.Notes.Admin)
		}
	})

	t.Run("delivered forces payment completed", func(t *testing.T) {
		for _, prior := range []PaymentStatus{PaymentStatusPending, PaymentStatusProcessing, PaymentStatusFailed} {
			o := &Order{Status: OrderStatusShipped, Payment: Payment{Status: prior}}
			if err := o.ApplyStatus(OrderStatusDelivered, "", now); err != nil {
				t.Fatalf("ApplyStatus() error = %v", err)
			}
			if o.Payment.Status != PaymentStatusCompleted {
				t.Errorf("payment status after delivery = %v (prior %v), want completed", o.Payment.Status, prior)
			}
			if o.Timestamps.DeliveredAt == nil {
				t.Error("deliveredAt not stamped")
			}
		}
	})

	t.Run("cancelled stamps cancelledAt", func(t *testing.T) {
		o := &Order{Status: OrderStatusProcessing}
		if err := o.ApplyStatus(OrderStatusCancelled, "", now); err != nil {
			t.Fatalf("ApplyStatus() error = %v", err)
		}
		if o.Timestamps.CancelledAt == nil {
			t.Error("cancelledAt not stamped")
		}
	})

	t.Run("illegal transition rejected", func(t *testing.T) {
		o := &Order{Status: OrderStatusDelivered}
		if err := o.ApplyStatus(OrderStatusPending, "", now); err == nil {
			t.Error("expected error for delivered -> pending")
		}
	})

	t.Run("unknown status rejected", func(t *testing.T) {
		o := &Order{Status: OrderStatusPending}
		if err := o.ApplyStatus("teleported", "", now); err == nil {
			t.Error("expected error for unknown status")
		}
	})

	t.Run("empty admin notes keeps previous", func(t *testing.T) {
		o := &Order{Status: OrderStatusPending, Notes: Notes{Admin: "old"}}
		if err := o.ApplyStatus(OrderStatusConfirmed, "", now); err != nil {
			t.Fatalf("ApplyStatus() error = %v", err)
		}
		if o.Notes.Admin != "old" {
			t.Errorf("adminNotes = %q, want old kept", o.Notes.Admin)
		}
	})
}

func TestOrder_SetTracking(t *testing.T) {
	o := &Order{Tracking: Tracking{Number: "OLD", CourierName: "X", CourierPhone: "+998900000000"}}
	o.SetTracking("TRK-42", "Bekzod", "+998901234567")

	if o.Tracking.Number != "TRK-42" || o.Tracking.CourierName != "Bekzod" || o.Tracking.CourierPhone != "+998901234567" {
		t.Errorf("tracking = %+v", o.Tracking)
	}
}

func TestOrder_TotalItems(t *testing.T) {
	o := &Order{Items: []OrderItem{{Quantity: 2}, {Quantity: 1}, {Quantity: 4}}}
	if got := o.TotalItems(); got != 7 {
		t.Errorf("TotalItems() = %d, want 7", got)
	}
}

func TestCreateOrderRequest_Validate(t *testing.T) {
	valid := CreateOrderRequest{
		Items:    []OrderItem{{Name: "Selofan", Price: 500, Quantity: 2}},
		Customer: Customer{Name: "Aziz", Phone: "+998901234567"},
		Delivery: Delivery{Address: "Chilonzor 5", City: "Toshkent"},
	}

	t.Run("valid request has no violations", func(t *testing.T) {
		if v := valid.Validate(); !v.OK() {
			t.Errorf("unexpected violations: %v", v)
		}
	})

	t.Run("bad phone and item collected together", func(t *testing.T) {
		req := valid
		req.Customer.Phone = "998901234567"
		req.Items = []OrderItem{{Name: "", Price: -1, Quantity: 0}}
		v := req.Validate()
		if len(v) != 4 {
			t.Errorf("violations = %d (%v), want 4", len(v), v)
		}
	})

	t.Run("invalid payment method", func(t *testing.T) {
		req := valid
		req.Payment = &PaymentInput{Method: "fax"}
		if v := req.Validate(); v.OK() {
			t.Error("expected violation for payment method")
		}
	})
}
