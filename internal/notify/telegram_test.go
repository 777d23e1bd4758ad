package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/paketuzb/paket_shop/internal/config"
	"github.com/paketuzb/paket_shop/internal/domain"
)

func sampleOrder() *domain.Order {
	return &domain.Order{
		ID:          7,
		OrderNumber: "PKT123456001",
		Items: []domain.OrderItem{
			{ProductID: 1, Name: "Selofan paket", Size: "25x35 sm", Price: 15000, Quantity: 2},
		},
		Customer: domain.Customer{Name: "Aziz Karimov", Phone: "+998901234567"},
		Delivery: domain.Delivery{Address: "Chilonzor 5", City: "Toshkent"},
		Payment:  domain.Payment{Method: domain.PaymentMethodCash, Status: domain.PaymentStatusPending},
		Pricing:  domain.Pricing{Subtotal: 30000, DeliveryCost: 50000, Discount: 5000, TotalPrice: 75000},
		Status:   domain.OrderStatusPending,
		Timestamps: domain.Timestamps{
			OrderDate: time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC),
		},
	}
}

func TestTelegramSendMessage(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": true})
	}))
	defer srv.Close()

	client := NewTelegramClient(config.TelegramConfig{BotToken: "test-token", ChatID: "-100200"}, zap.NewNop())
	client.baseURL = srv.URL

	if err := client.SendMessage(context.Background(), "<b>salom</b>"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if gotPath != "/bottest-token/sendMessage" {
		t.Errorf("request path = %q", gotPath)
	}
	if gotBody["chat_id"] != "-100200" {
		t.Errorf("chat_id = %v", gotBody["chat_id"])
	}
	if gotBody["parse_mode"] != "HTML" {
		t.Errorf("parse_mode = %v", gotBody["parse_mode"])
	}
	if gotBody["disable_web_page_preview"] != true {
		t.Errorf("disable_web_page_preview = %v", gotBody["disable_web_page_preview"])
	}
}

func TestTelegramAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": false, "description": "chat not found"})
	}))
	defer srv.Close()

	client := NewTelegramClient(config.TelegramConfig{BotToken: "tok", ChatID: "1"}, zap.NewNop())
	client.baseURL = srv.URL

	err := client.SendMessage(context.Background(), "hi")
	if err == nil {
		t.Fatal("SendMessage() expected error for api failure")
	}
	if !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("error = %v, want description included", err)
	}
}

func TestTelegramNotConfiguredSkips(t *testing.T) {
	client := NewTelegramClient(config.TelegramConfig{}, zap.NewNop())
	if client.Enabled() {
		t.Fatal("Enabled() = true for empty config")
	}
	if err := client.SendMessage(context.Background(), "hi"); err != nil {
		t.Errorf("SendMessage() error = %v, want nil when not configured", err)
	}
}

func TestOrderMessageContent(t *testing.T) {
	client := NewTelegramClient(config.TelegramConfig{BotToken: "t", ChatID: "c", AdminURL: "https://admin.paket.uz"}, zap.NewNop())
	msg := client.orderMessage(sampleOrder())

	for _, want := range []string{
		"YANGI BUYURTMA!",
		"#PKT123456001",
		"Aziz Karimov",
		"+998901234567",
		"<b>Selofan paket</b> (25x35 sm) - 2 ta × 15 000 so'm",
		"<b>Mahsulotlar:</b> 30 000 so'm",
		"<b>Yetkazib berish:</b> 50 000 so'm",
		"<b>Chegirma:</b> -5 000 so'm",
		"<b>JAMI:</b> 75 000 so'm",
		"💵 Naqd pul",
		"⏳ Kutilmoqda",
		"https://admin.paket.uz/orders/7",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("order message missing %q\nmessage:\n%s", want, msg)
		}
	}
	if strings.Contains(msg, "Email") {
		t.Error("order message should omit empty email line")
	}
}

func TestStatusUpdateMessageContent(t *testing.T) {
	client := NewTelegramClient(config.TelegramConfig{BotToken: "t", ChatID: "c"}, zap.NewNop())
	order := sampleOrder()
	order.Status = domain.OrderStatusShipped
	order.Tracking.Number = "TRK-42"
	msg := client.statusUpdateMessage(order, domain.OrderStatusProcessing, domain.OrderStatusShipped)

	for _, want := range []string{
		"BUYURTMA HOLATI O'ZGARDI!",
		"#PKT123456001",
		"🔄 Tayyorlanmoqda ➜ 🚚 Yuborilgan",
		"TRK-42",
		"<b>JAMI:</b> 75 000 so'm",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("status message missing %q\nmessage:\n%s", want, msg)
		}
	}
}

func TestContactMessageContent(t *testing.T) {
	client := NewTelegramClient(config.TelegramConfig{BotToken: "t", ChatID: "c"}, zap.NewNop())
	contact := &domain.Contact{
		ID:        3,
		Name:      "Dilnoza",
		Phone:     "+998907654321",
		Message:   "Katta paketlar bormi?",
		Type:      domain.ContactTypeInquiry,
		Priority:  domain.PriorityHigh,
		Status:    domain.ContactStatusNew,
		CreatedAt: time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC),
	}
	msg := client.contactMessage(contact)

	for _, want := range []string{
		"YANGI MUROJAAT!",
		"Dilnoza",
		"Katta paketlar bormi?",
		"Mavzu ko'rsatilmagan",
		"❓ So'rov",
		"🟠 Yuqori",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("contact message missing %q", want)
		}
	}
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		amount int64
		want   string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1 000"},
		{50000, "50 000"},
		{1500000, "1 500 000"},
		{-75000, "-75 000"},
	}
	for _, tt := range tests {
		if got := formatMoney(tt.amount); got != tt.want {
			t.Errorf("formatMoney(%d) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}
