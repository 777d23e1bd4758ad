package mq

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// EventHandler 处理一条通知事件；返回错误触发重投
type EventHandler interface {
	HandleEvent(ctx context.Context, event *Event) error
}

// Consumer 消费通知队列并调用处理器。
// 失败的事件带次数计数重投，超限后丢弃。
type Consumer struct {
	conn    *Connection
	handler EventHandler
	logger  *zap.Logger
}

// NewConsumer 创建通知消费者
func NewConsumer(conn *Connection, handler EventHandler, logger *zap.Logger) *Consumer {
	return &Consumer{
		conn:    conn,
		handler: handler,
		logger:  logger,
	}
}

// Start 启动消费循环，阻塞直到 ctx 取消。
// 通道断开后带退避重建，与连接层的重连配合。
func (c *Consumer) Start(ctx context.Context) error {
	for {
		if err := c.consume(ctx); err != nil {
			c.logger.Error("notify consumer stopped, restarting", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectInterval):
		}
	}
}

func (c *Consumer) consume(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := declareTopology(ch); err != nil {
		return err
	}
	if err := ch.Qos(8, 0, false); err != nil {
		return err
	}

	deliveries, err := ch.Consume(NotifyQueue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil // 通道关闭，外层重建
			}
			c.handleDelivery(ctx, ch, d)
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, ch *amqp.Channel, d amqp.Delivery) {
	var event Event
	if err := json.Unmarshal(d.Body, &event); err != nil {
		c.logger.Error("dropping malformed notification event", zap.Error(err))
		_ = d.Ack(false)
		return
	}

	if err := c.handler.HandleEvent(ctx, &event); err != nil {
		c.retry(ch, d, &event, err)
		return
	}
	_ = d.Ack(false)
}

// retry 将失败事件带计数重新发布；requeue 会造成即时热循环，这里不用
func (c *Consumer) retry(ch *amqp.Channel, d amqp.Delivery, event *Event, cause error) {
	event.Attempts++
	if event.Attempts >= MaxDeliveryAttempts {
		c.logger.Error("notification event exhausted retries, dropping",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.Int("attempts", event.Attempts),
			zap.Error(cause),
		)
		_ = d.Ack(false)
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		c.logger.Error("failed to re-marshal event", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	pubCtx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(pubCtx, NotifyExchange, NotifyRoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.Timestamp,
		Type:         string(event.Type),
		Body:         body,
	})
	if err != nil {
		c.logger.Error("failed to republish event, requeueing original",
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
		_ = d.Nack(false, true)
		return
	}

	c.logger.Warn("notification event retried",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.Int("attempt", event.Attempts),
		zap.Error(cause),
	)
	_ = d.Ack(false)
}
