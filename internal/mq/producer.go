package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/paketuzb/paket_shop/internal/domain"
)

const publishTimeout = 5 * time.Second

// Producer 发布通知事件。
// 实现 service.NotificationPublisher。
type Producer struct {
	conn   *Connection
	logger *zap.Logger

	mu sync.Mutex
	ch *amqp.Channel
}

// NewProducer 创建通知生产者并声明拓扑
func NewProducer(conn *Connection, logger *zap.Logger) (*Producer, error) {
	p := &Producer{
		conn:   conn,
		logger: logger,
	}
	if _, err := p.channel(); err != nil {
		return nil, err
	}
	return p, nil
}

// channel 返回可用的发布通道，失效时重开
func (p *Producer) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := declareTopology(ch); err != nil {
		_ = ch.Close()
		return nil, err
	}
	p.ch = ch
	return ch, nil
}

// PublishOrderCreated 发布订单创建事件
func (p *Producer) PublishOrderCreated(order *domain.Order) error {
	event, err := NewEvent(EventOrderCreated, &OrderCreatedData{OrderID: order.ID})
	if err != nil {
		return err
	}
	return p.publish(event)
}

// PublishOrderStatusChanged 发布订单状态流转事件
func (p *Producer) PublishOrderStatusChanged(order *domain.Order, oldStatus domain.OrderStatus) error {
	event, err := NewEvent(EventOrderStatusChanged, &OrderStatusChangedData{
		OrderID:   order.ID,
		OldStatus: oldStatus,
		NewStatus: order.Status,
	})
	if err != nil {
		return err
	}
	return p.publish(event)
}

// PublishContactCreated 发布留言创建事件
func (p *Producer) PublishContactCreated(contact *domain.Contact) error {
	event, err := NewEvent(EventContactCreated, &ContactCreatedData{ContactID: contact.ID})
	if err != nil {
		return err
	}
	return p.publish(event)
}

// PublishLowStock 发布低库存事件
func (p *Producer) PublishLowStock(products []*domain.Product) error {
	if len(products) == 0 {
		return nil
	}
	event, err := NewEvent(EventLowStock, NewLowStockData(products))
	if err != nil {
		return err
	}
	return p.publish(event)
}

// publish 以持久化投递模式发布事件
func (p *Producer) publish(event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ch, err := p.channel()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(ctx, NotifyExchange, NotifyRoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.Timestamp,
		Type:         string(event.Type),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish event %s: %w", event.Type, err)
	}

	p.logger.Debug("notification event published",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
	)
	return nil
}
