package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/paketuzb/paket_shop/internal/config"
	"github.com/paketuzb/paket_shop/internal/domain"
)

// 两张工作表：订单台账与留言台账
const (
	ordersSheetTitle   = "Buyurtmalar"
	contactsSheetTitle = "Murojaatlar"

	ordersRange   = ordersSheetTitle + "!A:W"
	contactsRange = contactsSheetTitle + "!A:M"
)

const sheetsTimeLayout = "02.01.2006 15:04"

var ordersHeader = []interface{}{
	"Buyurtma Raqami", "Sana", "Mijoz Ismi", "Telefon", "Email",
	"Manzil", "Shahar", "Mahsulotlar", "Miqdor", "Mahsulot Narxi",
	"Yetkazib Berish", "Chegirma", "Jami Summa", "Tolov Usuli",
	"Tolov Holati", "Buyurtma Holati", "Mijoz Izohi", "Admin Izohi",
	"Track Raqam", "Kurier", "Tasdiqlangan", "Yuborilgan", "Yetkazilgan",
}

var contactsHeader = []interface{}{
	"ID", "Sana", "Ism", "Telefon", "Email", "Mavzu", "Xabar",
	"Turi", "Holat", "Muhimlik", "Admin Izohi", "Javob Berilgan", "Javob Beruvchi",
}

// SheetsClient 往 Google Sheets 追加订单与留言台账行。
// 服务账号凭据经 GOOGLE_CREDENTIALS_FILE 提供。
type SheetsClient struct {
	svc           *sheets.Service
	spreadsheetID string
	logger        *zap.Logger
}

// NewSheetsClient 创建客户端并保证两张台账表与表头存在。
// 未配置 spreadsheet id 或凭据时返回 (nil, nil)，调用方按未启用处理。
func NewSheetsClient(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (*SheetsClient, error) {
	if cfg.SpreadsheetID == "" || cfg.CredentialsFile == "" {
		logger.Info("google sheets not configured, sheet logging disabled")
		return nil, nil
	}

	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	c := &SheetsClient{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		logger:        logger,
	}
	if err := c.ensureSheets(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// ensureSheets 创建缺失的工作表并写入表头，幂等
func (c *SheetsClient) ensureSheets(ctx context.Context) error {
	meta, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}

	existing := make(map[string]bool, len(meta.Sheets))
	for _, s := range meta.Sheets {
		if s.Properties != nil {
			existing[s.Properties.Title] = true
		}
	}

	for _, want := range []struct {
		title  string
		header []interface{}
	}{
		{ordersSheetTitle, ordersHeader},
		{contactsSheetTitle, contactsHeader},
	} {
		if existing[want.title] {
			continue
		}
		req := &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: want.title},
				},
			}},
		}
		if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
			return fmt.Errorf("create sheet %s: %w", want.title, err)
		}

		headerRange := fmt.Sprintf("%s!A1", want.title)
		vr := &sheets.ValueRange{Values: [][]interface{}{want.header}}
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, headerRange, vr).
			ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			return fmt.Errorf("write header for %s: %w", want.title, err)
		}
		c.logger.Info("created sheet", zap.String("title", want.title))
	}
	return nil
}

// AppendOrder 追加一行订单台账
func (c *SheetsClient) AppendOrder(ctx context.Context, order *domain.Order) error {
	names := make([]string, 0, len(order.Items))
	quantities := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		names = append(names, fmt.Sprintf("%s (%s)", item.Name, item.Size))
		quantities = append(quantities, fmt.Sprintf("%d", item.Quantity))
	}

	row := []interface{}{
		order.OrderNumber,
		order.Timestamps.OrderDate.Format(sheetsTimeLayout),
		order.Customer.Name,
		order.Customer.Phone,
		order.Customer.Email,
		order.Delivery.Address,
		order.Delivery.City,
		strings.Join(names, ", "),
		strings.Join(quantities, ", "),
		order.Pricing.Subtotal,
		order.Pricing.DeliveryCost,
		order.Pricing.Discount,
		order.Pricing.TotalPrice,
		string(order.Payment.Method),
		string(order.Payment.Status),
		string(order.Status),
		order.Notes.Customer,
		order.Notes.Admin,
		order.Tracking.Number,
		order.Tracking.CourierName,
		formatOptionalTime(order.Timestamps.ConfirmedAt),
		formatOptionalTime(order.Timestamps.ShippedAt),
		formatOptionalTime(order.Timestamps.DeliveredAt),
	}
	return c.appendRow(ctx, ordersRange, row)
}

// AppendContact 追加一行留言台账
func (c *SheetsClient) AppendContact(ctx context.Context, contact *domain.Contact) error {
	row := []interface{}{
		contact.ID,
		contact.CreatedAt.Format(sheetsTimeLayout),
		contact.Name,
		contact.Phone,
		contact.Email,
		contact.Subject,
		contact.Message,
		string(contact.Type),
		string(contact.Status),
		string(contact.Priority),
		contact.AdminNotes,
		formatOptionalTime(contact.RepliedAt),
		contact.RepliedBy,
	}
	return c.appendRow(ctx, contactsRange, row)
}

func (c *SheetsClient) appendRow(ctx context.Context, rangeRef string, row []interface{}) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{row}}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rangeRef, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append row to %s: %w", rangeRef, err)
	}
	return nil
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(sheetsTimeLayout)
}
