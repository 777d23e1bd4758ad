package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/paketuzb/paket_shop/internal/domain"
	"github.com/paketuzb/paket_shop/internal/mq"
	"github.com/paketuzb/paket_shop/internal/repo"
)

// directDispatchTimeout 限制无MQ模式下单次通知派发的总时长
const directDispatchTimeout = 30 * time.Second

// Dispatcher 处理通知事件：回查落库实体、播报Telegram、追加台账。
// 订单通知带去重标记，事件重投不会重复发送。
type Dispatcher struct {
	orders   repo.OrderRepository
	contacts repo.ContactRepository
	telegram *TelegramClient
	sheets   *SheetsClient
	logger   *zap.Logger
}

// NewDispatcher 创建通知派发器；sheets 可为 nil 表示未启用台账
func NewDispatcher(orders repo.OrderRepository, contacts repo.ContactRepository, telegram *TelegramClient, sheets *SheetsClient, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		orders:   orders,
		contacts: contacts,
		telegram: telegram,
		sheets:   sheets,
		logger:   logger,
	}
}

// HandleEvent 按事件类型分发。返回错误触发消费端重投。
func (d *Dispatcher) HandleEvent(ctx context.Context, event *mq.Event) error {
	switch event.Type {
	case mq.EventOrderCreated:
		return d.handleOrderCreated(ctx, event)
	case mq.EventOrderStatusChanged:
		return d.handleOrderStatusChanged(ctx, event)
	case mq.EventContactCreated:
		return d.handleContactCreated(ctx, event)
	case mq.EventLowStock:
		return d.handleLowStock(ctx, event)
	default:
		// 未知类型不重投，直接丢弃
		d.logger.Warn("unknown notification event type", zap.String("type", string(event.Type)))
		return nil
	}
}

func (d *Dispatcher) handleOrderCreated(ctx context.Context, event *mq.Event) error {
	var data mq.OrderCreatedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		d.logger.Error("malformed order_created payload", zap.Error(err))
		return nil
	}

	order, err := d.orders.GetByID(data.OrderID)
	if err != nil {
		return fmt.Errorf("load order %d: %w", data.OrderID, err)
	}
	if order == nil {
		d.logger.Warn("order for notification not found, dropping event", zap.Int64("order_id", data.OrderID))
		return nil
	}

	var errs []error
	if !order.Notifications.TelegramSent {
		if err := d.telegram.NotifyOrder(ctx, order); err != nil {
			errs = append(errs, fmt.Errorf("telegram: %w", err))
		} else if err := d.orders.MarkTelegramSent(order.ID); err != nil {
			d.logger.Error("mark telegram sent failed", zap.Int64("order_id", order.ID), zap.Error(err))
		}
	}
	if d.sheets != nil && !order.Notifications.SheetUpdated {
		if err := d.sheets.AppendOrder(ctx, order); err != nil {
			errs = append(errs, fmt.Errorf("sheets: %w", err))
		} else if err := d.orders.MarkSheetUpdated(order.ID); err != nil {
			d.logger.Error("mark sheet updated failed", zap.Int64("order_id", order.ID), zap.Error(err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify order %s: %w", order.OrderNumber, errors.Join(errs...))
	}

	d.logger.Info("order notifications dispatched",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber))
	return nil
}

func (d *Dispatcher) handleOrderStatusChanged(ctx context.Context, event *mq.Event) error {
	var data mq.OrderStatusChangedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		d.logger.Error("malformed order_status_changed payload", zap.Error(err))
		return nil
	}

	order, err := d.orders.GetByID(data.OrderID)
	if err != nil {
		return fmt.Errorf("load order %d: %w", data.OrderID, err)
	}
	if order == nil {
		d.logger.Warn("order for status notification not found, dropping event", zap.Int64("order_id", data.OrderID))
		return nil
	}

	if err := d.telegram.NotifyStatusUpdate(ctx, order, data.OldStatus, data.NewStatus); err != nil {
		return fmt.Errorf("notify status update for order %s: %w", order.OrderNumber, err)
	}
	return nil
}

func (d *Dispatcher) handleContactCreated(ctx context.Context, event *mq.Event) error {
	var data mq.ContactCreatedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		d.logger.Error("malformed contact_created payload", zap.Error(err))
		return nil
	}

	contact, err := d.contacts.GetByID(data.ContactID)
	if err != nil {
		return fmt.Errorf("load contact %d: %w", data.ContactID, err)
	}
	if contact == nil {
		d.logger.Warn("contact for notification not found, dropping event", zap.Int64("contact_id", data.ContactID))
		return nil
	}

	var errs []error
	if err := d.telegram.NotifyContact(ctx, contact); err != nil {
		errs = append(errs, fmt.Errorf("telegram: %w", err))
	}
	if d.sheets != nil {
		if err := d.sheets.AppendContact(ctx, contact); err != nil {
			errs = append(errs, fmt.Errorf("sheets: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify contact %d: %w", contact.ID, errors.Join(errs...))
	}

	d.logger.Info("contact notifications dispatched", zap.Int64("contact_id", contact.ID))
	return nil
}

func (d *Dispatcher) handleLowStock(ctx context.Context, event *mq.Event) error {
	var data mq.LowStockData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		d.logger.Error("malformed low_stock payload", zap.Error(err))
		return nil
	}
	if len(data.Items) == 0 {
		return nil
	}
	if err := d.telegram.NotifyLowStock(ctx, data.Items); err != nil {
		return fmt.Errorf("notify low stock: %w", err)
	}
	return nil
}

// DirectPublisher 在未启用MQ时把事件直接交给派发器，
// 在后台goroutine执行以免外部调用拖慢下单与留言主流程。
type DirectPublisher struct {
	dispatcher *Dispatcher
	logger     *zap.Logger
}

// NewDirectPublisher 创建无MQ模式的发布器
func NewDirectPublisher(dispatcher *Dispatcher, logger *zap.Logger) *DirectPublisher {
	return &DirectPublisher{dispatcher: dispatcher, logger: logger}
}

// PublishOrderCreated 直接派发订单创建通知
func (p *DirectPublisher) PublishOrderCreated(order *domain.Order) error {
	return p.dispatch(mq.EventOrderCreated, mq.OrderCreatedData{OrderID: order.ID})
}

// PublishOrderStatusChanged 直接派发订单状态流转通知
func (p *DirectPublisher) PublishOrderStatusChanged(order *domain.Order, oldStatus domain.OrderStatus) error {
	return p.dispatch(mq.EventOrderStatusChanged, mq.OrderStatusChangedData{
		OrderID:   order.ID,
		OldStatus: oldStatus,
		NewStatus: order.Status,
	})
}

// PublishContactCreated 直接派发留言创建通知
func (p *DirectPublisher) PublishContactCreated(contact *domain.Contact) error {
	return p.dispatch(mq.EventContactCreated, mq.ContactCreatedData{ContactID: contact.ID})
}

// PublishLowStock 直接派发低库存通知
func (p *DirectPublisher) PublishLowStock(products []*domain.Product) error {
	return p.dispatch(mq.EventLowStock, mq.NewLowStockData(products))
}

func (p *DirectPublisher) dispatch(eventType mq.EventType, data interface{}) error {
	event, err := mq.NewEvent(eventType, data)
	if err != nil {
		return err
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), directDispatchTimeout)
		defer cancel()
		if err := p.dispatcher.HandleEvent(ctx, event); err != nil {
			p.logger.Error("direct notification dispatch failed",
				zap.String("event_type", string(eventType)),
				zap.Error(err))
		}
	}()
	return nil
}
