package mq

import (
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/google/uuid"

	"github.com/paketuzb/paket_shop/internal/domain"
)

// 通知拓扑：direct交换机 + 单队列，按事件类型区分消息体而非路由
const (
	NotifyExchange   = "paket.notifications"
	NotifyQueue      = "notify.events"
	NotifyRoutingKey = "notify"

	// 消费失败后的最大重投次数，超过即丢弃并告警
	MaxDeliveryAttempts = 3
)

// EventType 通知事件类型
type EventType string

const (
	EventOrderCreated       EventType = "order_created"
	EventOrderStatusChanged EventType = "order_status_changed"
	EventContactCreated     EventType = "contact_created"
	EventLowStock           EventType = "low_stock"
)

// Event 通知事件信封
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Attempts  int             `json:"attempts"`
	Data      json.RawMessage `json:"data"`
}

// OrderCreatedData 订单创建事件载荷：只带ID，消费端回查最新状态
type OrderCreatedData struct {
	OrderID int64 `json:"order_id"`
}

// OrderStatusChangedData 订单状态流转事件载荷；携带前后状态，消费端无需比对历史
type OrderStatusChangedData struct {
	OrderID   int64              `json:"order_id"`
	OldStatus domain.OrderStatus `json:"old_status"`
	NewStatus domain.OrderStatus `json:"new_status"`
}

// ContactCreatedData 留言创建事件载荷
type ContactCreatedData struct {
	ContactID int64 `json:"contact_id"`
}

// LowStockItem 低库存事件中的商品快照
type LowStockItem struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
	Threshold int    `json:"threshold"`
}

// LowStockData 低库存事件载荷
type LowStockData struct {
	Items []LowStockItem `json:"items"`
}

// NewEvent 构造通知事件
func NewEvent(eventType EventType, data interface{}) (*Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal event data: %w", err)
	}
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      payload,
	}, nil
}

// NewLowStockData 从商品列表构造低库存载荷
func NewLowStockData(products []*domain.Product) *LowStockData {
	data := &LowStockData{Items: make([]LowStockItem, 0, len(products))}
	for _, p := range products {
		data.Items = append(data.Items, LowStockItem{
			ProductID: p.ID,
			Name:      p.Name,
			SKU:       p.SKU,
			Quantity:  p.Quantity,
			Threshold: p.LowStockThreshold,
		})
	}
	return data
}

// declareTopology 声明交换机、队列与绑定；生产和消费端各自调用，幂等
func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(NotifyExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(NotifyQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(NotifyQueue, NotifyRoutingKey, NotifyExchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}
