package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/paketuzb/paket_shop/internal/config"
	"github.com/paketuzb/paket_shop/internal/domain"
	"github.com/paketuzb/paket_shop/internal/mq"
)

type stubOrderRepo struct {
	order        *domain.Order
	telegramMark int
	sheetMark    int
}

func (s *stubOrderRepo) Create(order *domain.Order) error               { return nil }
func (s *stubOrderRepo) GetByID(id int64) (*domain.Order, error)        { return s.order, nil }
func (s *stubOrderRepo) GetByOrderNumber(n string) (*domain.Order, error) { return s.order, nil }
func (s *stubOrderRepo) Update(order *domain.Order) error               { return nil }
func (s *stubOrderRepo) List(req *domain.OrderListRequest) ([]*domain.Order, int64, error) {
	return nil, 0, nil
}
func (s *stubOrderRepo) MarkTelegramSent(id int64) error {
	s.telegramMark++
	s.order.Notifications.TelegramSent = true
	return nil
}
func (s *stubOrderRepo) MarkSheetUpdated(id int64) error {
	s.sheetMark++
	s.order.Notifications.SheetUpdated = true
	return nil
}
func (s *stubOrderRepo) UpdatePayment(id int64, payment *domain.Payment) error { return nil }

type stubContactRepo struct {
	contact *domain.Contact
}

func (s *stubContactRepo) Create(contact *domain.Contact) error          { return nil }
func (s *stubContactRepo) GetByID(id int64) (*domain.Contact, error)     { return s.contact, nil }
func (s *stubContactRepo) Update(contact *domain.Contact) error          { return nil }
func (s *stubContactRepo) List(req *domain.ContactListRequest) ([]*domain.Contact, int64, error) {
	return nil, 0, nil
}
func (s *stubContactRepo) UnreadCount() (int64, error) { return 0, nil }

func telegramStub(t *testing.T, fail bool, sent *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusBadGateway)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": false, "description": "gateway"})
			return
		}
		*sent++
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": true})
	}))
}

func mustEvent(t *testing.T, eventType mq.EventType, data interface{}) *mq.Event {
	t.Helper()
	event, err := mq.NewEvent(eventType, data)
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}
	return event
}

func TestDispatcherOrderCreated(t *testing.T) {
	var sent int
	srv := telegramStub(t, false, &sent)
	defer srv.Close()

	orders := &stubOrderRepo{order: sampleOrder()}
	telegram := NewTelegramClient(config.TelegramConfig{BotToken: "t", ChatID: "c"}, zap.NewNop())
	telegram.baseURL = srv.URL
	d := NewDispatcher(orders, &stubContactRepo{}, telegram, nil, zap.NewNop())

	event := mustEvent(t, mq.EventOrderCreated, mq.OrderCreatedData{OrderID: 7})
	if err := d.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if sent != 1 {
		t.Errorf("telegram messages sent = %d, want 1", sent)
	}
	if orders.telegramMark != 1 {
		t.Errorf("MarkTelegramSent calls = %d, want 1", orders.telegramMark)
	}
	if orders.sheetMark != 0 {
		t.Errorf("MarkSheetUpdated calls = %d, want 0 with sheets disabled", orders.sheetMark)
	}

	// 重投同一事件：标记已置位，不再发送
	if err := d.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent() redelivery error = %v", err)
	}
	if sent != 1 {
		t.Errorf("telegram messages after redelivery = %d, want 1", sent)
	}
}

func TestDispatcherOrderStatusChanged(t *testing.T) {
	var sent int
	srv := telegramStub(t, false, &sent)
	defer srv.Close()

	order := sampleOrder()
	order.Status = domain.OrderStatusShipped
	orders := &stubOrderRepo{order: order}
	telegram := NewTelegramClient(config.TelegramConfig{BotToken: "t", ChatID: "c"}, zap.NewNop())
	telegram.baseURL = srv.URL
	d := NewDispatcher(orders, &stubContactRepo{}, telegram, nil, zap.NewNop())

	event := mustEvent(t, mq.EventOrderStatusChanged, mq.OrderStatusChangedData{
		OrderID:   order.ID,
		OldStatus: domain.OrderStatusProcessing,
		NewStatus: domain.OrderStatusShipped,
	})
	if err := d.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if sent != 1 {
		t.Errorf("telegram messages sent = %d, want 1", sent)
	}
	// 状态通知不带去重标记，重投会再次发送
	if err := d.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent() redelivery error = %v", err)
	}
	if sent != 2 {
		t.Errorf("telegram messages after redelivery = %d, want 2", sent)
	}
}

func TestDispatcherOrderTelegramFailure(t *testing.T) {
	var sent int
	srv := telegramStub(t, true, &sent)
	defer srv.Close()

	orders := &stubOrderRepo{order: sampleOrder()}
	telegram := NewTelegramClient(config.TelegramConfig{BotToken: "t", ChatID: "c"}, zap.NewNop())
	telegram.baseURL = srv.URL
	d := NewDispatcher(orders, &stubContactRepo{}, telegram, nil, zap.NewNop())

	event := mustEvent(t, mq.EventOrderCreated, mq.OrderCreatedData{OrderID: 7})
	if err := d.HandleEvent(context.Background(), event); err == nil {
		t.Fatal("HandleEvent() expected error when telegram fails")
	}
	if orders.telegramMark != 0 {
		t.Errorf("MarkTelegramSent calls = %d, want 0 after failure", orders.telegramMark)
	}
}

func TestDispatcherOrderMissingDropsEvent(t *testing.T) {
	orders := &stubOrderRepo{order: nil}
	telegram := NewTelegramClient(config.TelegramConfig{}, zap.NewNop())
	d := NewDispatcher(orders, &stubContactRepo{}, telegram, nil, zap.NewNop())

	event := mustEvent(t, mq.EventOrderCreated, mq.OrderCreatedData{OrderID: 404})
	if err := d.HandleEvent(context.Background(), event); err != nil {
		t.Errorf("HandleEvent() error = %v, want nil drop for missing order", err)
	}
}

func TestDispatcherContactCreated(t *testing.T) {
	var sent int
	srv := telegramStub(t, false, &sent)
	defer srv.Close()

	contacts := &stubContactRepo{contact: &domain.Contact{
		ID:       3,
		Name:     "Dilnoza",
		Phone:    "+998907654321",
		Message:  "Salom",
		Type:     domain.ContactTypeInquiry,
		Priority: domain.PriorityMedium,
		Status:   domain.ContactStatusNew,
	}}
	telegram := NewTelegramClient(config.TelegramConfig{BotToken: "t", ChatID: "c"}, zap.NewNop())
	telegram.baseURL = srv.URL
	d := NewDispatcher(&stubOrderRepo{}, contacts, telegram, nil, zap.NewNop())

	event := mustEvent(t, mq.EventContactCreated, mq.ContactCreatedData{ContactID: 3})
	if err := d.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if sent != 1 {
		t.Errorf("telegram messages sent = %d, want 1", sent)
	}
}

func TestDispatcherLowStock(t *testing.T) {
	var sent int
	srv := telegramStub(t, false, &sent)
	defer srv.Close()

	telegram := NewTelegramClient(config.TelegramConfig{BotToken: "t", ChatID: "c"}, zap.NewNop())
	telegram.baseURL = srv.URL
	d := NewDispatcher(&stubOrderRepo{}, &stubContactRepo{}, telegram, nil, zap.NewNop())

	data := mq.LowStockData{Items: []mq.LowStockItem{
		{ProductID: 1, Name: "Selofan paket", SKU: "SEL001", Quantity: 3, Threshold: 10},
	}}
	if err := d.HandleEvent(context.Background(), mustEvent(t, mq.EventLowStock, data)); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	if sent != 1 {
		t.Errorf("telegram messages sent = %d, want 1", sent)
	}

	// 空载荷不发送
	if err := d.HandleEvent(context.Background(), mustEvent(t, mq.EventLowStock, mq.LowStockData{})); err != nil {
		t.Fatalf("HandleEvent() empty payload error = %v", err)
	}
	if sent != 1 {
		t.Errorf("telegram messages after empty payload = %d, want 1", sent)
	}
}

func TestDispatcherUnknownTypeDropped(t *testing.T) {
	d := NewDispatcher(&stubOrderRepo{}, &stubContactRepo{}, NewTelegramClient(config.TelegramConfig{}, zap.NewNop()), nil, zap.NewNop())
	event := mustEvent(t, mq.EventType("mystery"), struct{}{})
	if err := d.HandleEvent(context.Background(), event); err != nil {
		t.Errorf("HandleEvent() error = %v, want nil for unknown type", err)
	}
}
