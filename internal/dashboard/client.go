// internal/dashboard/client.go
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-autotrader/internal/domain"
	"github.com/rovshanmuradov/solana-autotrader/internal/utils/metrics"
)

const (
	DefaultURL            = "ws://localhost:3005"
	DefaultReconnectDelay = 5 * time.Second

	MessageLog              = "log"
	MessageMonitoringUpdate = "monitoring_update"

	queueSize    = 256
	writeTimeout = 5 * time.Second
)

var ErrNotConnected = errors.New("dashboard is not connected")

// Message - конверт сообщения панели мониторинга
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Client - websocket-клиент панели мониторинга.
// Пока соединения нет, сообщения отбрасываются; цикл торговли никогда не ждет панель.
type Client struct {
	url            string
	reconnectDelay time.Duration
	dialer         *websocket.Dialer
	logger         *zap.Logger

	queue     chan []byte
	connected atomic.Bool
}

type Option func(*Client)

func WithReconnectDelay(d time.Duration) Option {
	return func(c *Client) { c.reconnectDelay = d }
}

func NewClient(url string, logger *zap.Logger, opts ...Option) *Client {
	if url == "" {
		url = DefaultURL
	}
	c := &Client{
		url:            url,
		reconnectDelay: DefaultReconnectDelay,
		dialer:         websocket.DefaultDialer,
		logger:         logger.Named("dashboard"),
		queue:          make(chan []byte, queueSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connected - открыто ли соединение сейчас
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Run держит соединение открытым до отмены контекста, переподключаясь через reconnectDelay
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("Disconnected from web interface, attempting to reconnect...", zap.Error(err))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.reconnectDelay):
		}
	}
}

func (c *Client) session(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	defer conn.Close()

	c.drain()
	c.setConnected(true)
	defer c.setConnected(false)
	c.logger.Info("Connected to web interface", zap.String("url", c.url))

	// входящие сообщения не нужны, чтение только ловит закрытие
	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				readErr <- err
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return ctx.Err()
		case err := <-readErr:
			return err
		case msg := <-c.queue:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return fmt.Errorf("websocket write failed: %w", err)
			}
		}
	}
}

func (c *Client) setConnected(v bool) {
	c.connected.Store(v)
	metrics.SetDashboardConnected(v)
}

// drain выбрасывает то, что накопилось до подключения
func (c *Client) drain() {
	for {
		select {
		case <-c.queue:
		default:
			return
		}
	}
}

func (c *Client) enqueue(msg Message) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode %s message: %w", msg.Type, err)
	}
	select {
	case c.queue <- data:
		return nil
	default:
		return fmt.Errorf("dashboard queue full, dropping %s message", msg.Type)
	}
}

// SendLog реализует logger.LogSink. Сам не логирует, иначе запись вернется сюда же.
func (c *Client) SendLog(line string) {
	_ = c.enqueue(Message{Type: MessageLog, Data: line})
}

// PublishSnapshot отправляет снимок портфеля
func (c *Client) PublishSnapshot(s *domain.Snapshot) error {
	if err := c.enqueue(Message{Type: MessageMonitoringUpdate, Data: s}); err != nil {
		c.logger.Debug("Monitoring update skipped", zap.Error(err))
		return err
	}
	return nil
}
