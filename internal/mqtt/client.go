// Package mqtt publishes saved observations to an MQTT broker.
package mqtt

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/birdo-app/birdo/internal/errors"
	"github.com/birdo-app/birdo/internal/logger"
)

const (
	defaultConnectTimeout = 30 * time.Second
	defaultPublishTimeout = 10 * time.Second
)

// Config holds the broker connection settings.
type Config struct {
	Broker         string // tcp://host:1883, ssl://host:8883 or ws://host/mqtt
	ClientID       string
	Username       string
	Password       string
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

// conn is the part of paho.Client the publisher uses.
type conn interface {
	Connect() paho.Token
	Publish(topic string, qos byte, retained bool, payload any) paho.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// Client is safe for concurrent use.
type Client struct {
	config Config
	log    logger.Logger

	mu      sync.Mutex
	conn    conn
	newConn func(*paho.ClientOptions) conn
}

// NewClient validates cfg. Connect must be called before Publish.
func NewClient(cfg Config, log logger.Logger) (*Client, error) {
	u, err := url.Parse(cfg.Broker)
	if err != nil || u.Host == "" {
		return nil, errors.Newf("invalid MQTT broker URL %q", cfg.Broker).
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Build()
	}
	switch strings.ToLower(u.Scheme) {
	case "tcp", "ssl", "tls", "mqtt", "mqtts", "ws", "wss":
	default:
		return nil, errors.Newf("unsupported MQTT scheme %q", u.Scheme).
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "birdo"
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}

	return &Client{
		config: cfg,
		log:    log.Module("mqtt"),
		newConn: func(opts *paho.ClientOptions) conn {
			return paho.NewClient(opts)
		},
	}, nil
}

// Connect resolves the broker host and connects. paho reconnects on its own
// after a successful first connection.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, _ := url.Parse(c.config.Broker)
	host := u.Hostname()
	if net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return errors.New(fmt.Errorf("failed to resolve hostname %s: %w", host, err)).
				Component("mqtt").
				Category(errors.CategoryNetwork).
				Build()
		}
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(c.config.ConnectTimeout)
	opts.SetOnConnectHandler(func(paho.Client) {
		c.log.Info("connected to MQTT broker", logger.String("broker", c.config.Broker))
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		c.log.Warn("connection to MQTT broker lost",
			logger.String("broker", c.config.Broker),
			logger.Error(err))
	})

	cn := c.newConn(opts)
	token := cn.Connect()
	if !token.WaitTimeout(c.config.ConnectTimeout) {
		return errors.Newf("MQTT connection timeout").
			Component("mqtt").
			Category(errors.CategoryTimeout).
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.New(fmt.Errorf("MQTT connection error: %w", err)).
			Component("mqtt").
			Category(errors.CategoryNetwork).
			Build()
	}
	c.conn = cn
	return nil
}

// Publish sends payload to topic with QoS 1.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte, retain bool) error {
	c.mu.Lock()
	cn := c.conn
	c.mu.Unlock()

	if cn == nil || !cn.IsConnected() {
		return errors.Newf("not connected to MQTT broker").
			Component("mqtt").
			Category(errors.CategoryNetwork).
			Build()
	}

	token := cn.Publish(topic, 1, retain, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.config.PublishTimeout):
		return errors.Newf("publish timeout for topic %s", topic).
			Component("mqtt").
			Category(errors.CategoryTimeout).
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryNetwork).
			Context("topic", topic).
			Build()
	}
	c.log.Debug("published", logger.String("topic", topic), logger.Int("bytes", len(payload)))
	return nil
}

// IsConnected reports whether the broker connection is up.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && c.conn.IsConnected()
}

// Disconnect closes the connection.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Disconnect(250)
		c.conn = nil
	}
}
