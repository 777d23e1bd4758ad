// Package notify 消费通知事件并执行外部副作用：
// Telegram 管理群播报与 Google Sheets 台账追加。
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/paketuzb/paket_shop/internal/config"
	"github.com/paketuzb/paket_shop/internal/domain"
	"github.com/paketuzb/paket_shop/internal/mq"
)

const telegramAPIBase = "https://api.telegram.org"

// 管理群面向乌兹别克语运营人员，消息文案固定为乌语
const telegramTimeLayout = "02.01.2006 15:04"

// TelegramClient 调用 Telegram Bot API 发送 HTML 格式消息。
// 未配置 token 或 chat id 时所有发送变为空操作。
type TelegramClient struct {
	baseURL    string
	botToken   string
	chatID     string
	adminURL   string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewTelegramClient 创建Telegram客户端
func NewTelegramClient(cfg config.TelegramConfig, logger *zap.Logger) *TelegramClient {
	return &TelegramClient{
		baseURL:    telegramAPIBase,
		botToken:   cfg.BotToken,
		chatID:     cfg.ChatID,
		adminURL:   cfg.AdminURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// Enabled 返回客户端是否已配置可用
func (t *TelegramClient) Enabled() bool {
	return t.botToken != "" && t.chatID != ""
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendMessage 发送一条 HTML 消息到管理群。
// 客户端未配置时静默跳过。
func (t *TelegramClient) SendMessage(ctx context.Context, text string) error {
	if !t.Enabled() {
		t.logger.Debug("telegram not configured, skipping message")
		return nil
	}

	body, err := json.Marshal(sendMessageRequest{
		ChatID:                t.chatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("marshal telegram request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("read telegram response: %w", err)
	}
	var tr sendMessageResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return fmt.Errorf("decode telegram response (status %d): %w", resp.StatusCode, err)
	}
	if !tr.OK {
		return fmt.Errorf("telegram api error (status %d): %s", resp.StatusCode, tr.Description)
	}
	return nil
}

// NotifyOrder 播报新订单
func (t *TelegramClient) NotifyOrder(ctx context.Context, order *domain.Order) error {
	return t.SendMessage(ctx, t.orderMessage(order))
}

// NotifyStatusUpdate 播报订单状态流转
func (t *TelegramClient) NotifyStatusUpdate(ctx context.Context, order *domain.Order, oldStatus, newStatus domain.OrderStatus) error {
	return t.SendMessage(ctx, t.statusUpdateMessage(order, oldStatus, newStatus))
}

// NotifyContact 播报新留言
func (t *TelegramClient) NotifyContact(ctx context.Context, contact *domain.Contact) error {
	return t.SendMessage(ctx, t.contactMessage(contact))
}

// NotifyLowStock 播报低库存告警
func (t *TelegramClient) NotifyLowStock(ctx context.Context, items []mq.LowStockItem) error {
	return t.SendMessage(ctx, t.lowStockMessage(items, time.Now()))
}

func (t *TelegramClient) orderMessage(order *domain.Order) string {
	var b strings.Builder
	b.WriteString("🛍 <b>YANGI BUYURTMA!</b>\n\n")
	fmt.Fprintf(&b, "📝 <b>Buyurtma raqami:</b> #%s\n", order.OrderNumber)
	fmt.Fprintf(&b, "📅 <b>Sana:</b> %s\n\n", order.Timestamps.OrderDate.Format(telegramTimeLayout))

	b.WriteString("👤 <b>MIJOZ MA'LUMOTLARI:</b>\n")
	fmt.Fprintf(&b, "• <b>Ism:</b> %s\n", order.Customer.Name)
	fmt.Fprintf(&b, "• <b>Telefon:</b> %s\n", order.Customer.Phone)
	if order.Customer.Email != "" {
		fmt.Fprintf(&b, "• <b>Email:</b> %s\n", order.Customer.Email)
	}

	b.WriteString("\n📦 <b>MAHSULOTLAR:</b>\n")
	for _, item := range order.Items {
		fmt.Fprintf(&b, "• <b>%s</b> (%s) - %d ta × %s so'm\n",
			item.Name, item.Size, item.Quantity, formatMoney(item.Price))
	}

	b.WriteString("\n🏠 <b>YETKAZIB BERISH:</b>\n")
	fmt.Fprintf(&b, "• <b>Manzil:</b> %s\n", order.Delivery.Address)
	fmt.Fprintf(&b, "• <b>Shahar:</b> %s\n", order.Delivery.City)
	if order.Delivery.Notes != "" {
		fmt.Fprintf(&b, "• <b>Izoh:</b> %s\n", order.Delivery.Notes)
	}

	b.WriteString("\n💰 <b>NARXLAR:</b>\n")
	fmt.Fprintf(&b, "• <b>Mahsulotlar:</b> %s so'm\n", formatMoney(order.Pricing.Subtotal))
	fmt.Fprintf(&b, "• <b>Yetkazib berish:</b> %s so'm\n", formatMoney(order.Pricing.DeliveryCost))
	if order.Pricing.Discount > 0 {
		fmt.Fprintf(&b, "• <b>Chegirma:</b> -%s so'm\n", formatMoney(order.Pricing.Discount))
	}
	fmt.Fprintf(&b, "• <b>JAMI:</b> %s so'm\n\n", formatMoney(order.Pricing.TotalPrice))

	fmt.Fprintf(&b, "💳 <b>To'lov usuli:</b> %s\n", paymentMethodText(order.Payment.Method))
	fmt.Fprintf(&b, "📊 <b>Holat:</b> %s\n", orderStatusText(order.Status))
	if order.Notes.Customer != "" {
		fmt.Fprintf(&b, "\n📝 <b>Mijoz izohi:</b> %s\n", order.Notes.Customer)
	}
	if t.adminURL != "" {
		fmt.Fprintf(&b, "\n🔗 Buyurtmani ko'rish: %s/orders/%d", t.adminURL, order.ID)
	}
	return b.String()
}

func (t *TelegramClient) statusUpdateMessage(order *domain.Order, oldStatus, newStatus domain.OrderStatus) string {
	var b strings.Builder
	b.WriteString("🔔 <b>BUYURTMA HOLATI O'ZGARDI!</b>\n\n")
	fmt.Fprintf(&b, "📝 <b>Buyurtma raqami:</b> #%s\n", order.OrderNumber)
	fmt.Fprintf(&b, "👤 <b>Mijoz:</b> %s (%s)\n\n", order.Customer.Name, order.Customer.Phone)
	fmt.Fprintf(&b, "📊 <b>Holat:</b> %s ➜ %s\n", orderStatusText(oldStatus), orderStatusText(newStatus))
	if newStatus == domain.OrderStatusShipped && order.Tracking.Number != "" {
		fmt.Fprintf(&b, "🚚 <b>Trek raqami:</b> %s\n", order.Tracking.Number)
	}
	fmt.Fprintf(&b, "💰 <b>JAMI:</b> %s so'm\n", formatMoney(order.Pricing.TotalPrice))
	if t.adminURL != "" {
		fmt.Fprintf(&b, "\n🔗 Buyurtmani ko'rish: %s/orders/%d", t.adminURL, order.ID)
	}
	return b.String()
}

func (t *TelegramClient) contactMessage(contact *domain.Contact) string {
	var b strings.Builder
	b.WriteString("📧 <b>YANGI MUROJAAT!</b>\n\n")
	b.WriteString("👤 <b>MIJOZ:</b>\n")
	fmt.Fprintf(&b, "• <b>Ism:</b> %s\n", contact.Name)
	fmt.Fprintf(&b, "• <b>Telefon:</b> %s\n", contact.Phone)
	if contact.Email != "" {
		fmt.Fprintf(&b, "• <b>Email:</b> %s\n", contact.Email)
	}

	subject := contact.Subject
	if subject == "" {
		subject = "Mavzu ko'rsatilmagan"
	}
	fmt.Fprintf(&b, "\n📝 <b>MAVZU:</b> %s\n", subject)
	fmt.Fprintf(&b, "\n💬 <b>XABAR:</b>\n%s\n\n", contact.Message)

	fmt.Fprintf(&b, "📊 <b>Turi:</b> %s\n", contactTypeText(contact.Type))
	fmt.Fprintf(&b, "⚡ <b>Muhimlik:</b> %s\n", priorityText(contact.Priority))
	fmt.Fprintf(&b, "📅 <b>Sana:</b> %s\n", contact.CreatedAt.Format(telegramTimeLayout))
	if t.adminURL != "" {
		fmt.Fprintf(&b, "\n🔗 Javob berish: %s/contacts/%d", t.adminURL, contact.ID)
	}
	return b.String()
}

func (t *TelegramClient) lowStockMessage(items []mq.LowStockItem, now time.Time) string {
	var b strings.Builder
	b.WriteString("⚠️ <b>PAST ZAXIRA OGOHLANTIRISHI!</b>\n\n")
	for _, item := range items {
		fmt.Fprintf(&b, "📦 <b>%s</b> (%s)\n", item.Name, item.SKU)
		fmt.Fprintf(&b, "📊 <b>Qolgan miqdor:</b> %d ta\n", item.Quantity)
		fmt.Fprintf(&b, "🔻 <b>Minimal chegara:</b> %d ta\n\n", item.Threshold)
	}
	b.WriteString("💡 <b>Tavsiya:</b> Tez orada zaxirani to'ldiring!\n\n")
	fmt.Fprintf(&b, "📅 <b>Sana:</b> %s", now.Format(telegramTimeLayout))
	return b.String()
}

// formatMoney 按空格分组千位，如 1500000 -> "1 500 000"
func formatMoney(amount int64) string {
	s := fmt.Sprintf("%d", amount)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func paymentMethodText(method domain.PaymentMethod) string {
	switch method {
	case domain.PaymentMethodCash:
		return "💵 Naqd pul"
	case domain.PaymentMethodPayme:
		return "💳 Payme"
	case domain.PaymentMethodClick:
		return "💳 Click"
	case domain.PaymentMethodCard:
		return "💳 Plastik karta"
	default:
		return string(method)
	}
}

func orderStatusText(status domain.OrderStatus) string {
	switch status {
	case domain.OrderStatusPending:
		return "⏳ Kutilmoqda"
	case domain.OrderStatusConfirmed:
		return "✅ Tasdiqlangan"
	case domain.OrderStatusProcessing:
		return "🔄 Tayyorlanmoqda"
	case domain.OrderStatusShipped:
		return "🚚 Yuborilgan"
	case domain.OrderStatusDelivered:
		return "📦 Yetkazilgan"
	case domain.OrderStatusCancelled:
		return "❌ Bekor qilingan"
	default:
		return string(status)
	}
}

func contactTypeText(contactType domain.ContactType) string {
	switch contactType {
	case domain.ContactTypeInquiry:
		return "❓ So'rov"
	case domain.ContactTypeComplaint:
		return "😞 Shikoyat"
	case domain.ContactTypeSuggestion:
		return "💡 Taklif"
	case domain.ContactTypeSupport:
		return "🆘 Yordam"
	case domain.ContactTypeOther:
		return "📝 Boshqa"
	default:
		return string(contactType)
	}
}

func priorityText(priority domain.ContactPriority) string {
	switch priority {
	case domain.PriorityLow:
		return "🟢 Past"
	case domain.PriorityMedium:
		return "🟡 O'rtacha"
	case domain.PriorityHigh:
		return "🟠 Yuqori"
	case domain.PriorityUrgent:
		return "🔴 Shoshilinch"
	default:
		return string(priority)
	}
}
