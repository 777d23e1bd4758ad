// Package mq 提供通知事件的RabbitMQ收发实现。
// 订单与留言创建后只在这里产生副作用，主事务不等待外部通道。
package mq

import (
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	reconnectInterval = 5 * time.Second
	maxReconnects     = 12
)

// Connection 管理到RabbitMQ的单条连接，断线后自动重连。
// 通知流量很小，一条连接配两个通道（收、发）足够。
type Connection struct {
	url    string
	logger *zap.Logger

	mu     sync.RWMutex
	conn   *amqp.Connection
	closed bool

	stopCh chan struct{}
}

// Dial 建立RabbitMQ连接并启动断线监控
func Dial(url string, logger *zap.Logger) (*Connection, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Connection{
		url:    url,
		logger: logger,
		stopCh: make(chan struct{}),
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	go c.monitor()
	return c, nil
}

func (c *Connection) connect() error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("connect to rabbitmq: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.logger.Info("rabbitmq connected")
	return nil
}

// Channel 打开一个新通道
func (c *Connection) Channel() (*amqp.Channel, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || conn.IsClosed() {
		return nil, fmt.Errorf("rabbitmq connection is not available")
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, nil
}

// IsConnected 检查连接是否可用
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed()
}

// Close 关闭连接并停止重连
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	close(c.stopCh)
	if conn != nil && !conn.IsClosed() {
		return conn.Close()
	}
	return nil
}

// monitor 监听连接关闭事件并按固定间隔重连
func (c *Connection) monitor() {
	for {
		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return
		}

		closeCh := make(chan *amqp.Error, 1)
		conn.NotifyClose(closeCh)

		select {
		case <-c.stopCh:
			return
		case err := <-closeCh:
			if err == nil {
				return // 主动关闭
			}
			c.logger.Warn("rabbitmq connection lost, reconnecting", zap.Error(err))
		}

		if !c.reconnect() {
			return
		}
	}
}

func (c *Connection) reconnect() bool {
	for attempt := 1; attempt <= maxReconnects; attempt++ {
		select {
		case <-c.stopCh:
			return false
		case <-time.After(reconnectInterval):
		}

		if err := c.connect(); err != nil {
			c.logger.Error("rabbitmq reconnect failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			continue
		}
		c.logger.Info("rabbitmq reconnected", zap.Int("attempt", attempt))
		return true
	}
	c.logger.Error("rabbitmq reconnect attempts exhausted")
	return false
}
