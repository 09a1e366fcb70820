package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/courierdispatch/core/logger"
	"github.com/kilianp07/courierdispatch/core/monitoring"
	infralogger "github.com/kilianp07/courierdispatch/infra/logger"
)

// Auth methods accepted in Config.AuthMethod. Empty behaves like
// AuthPassword.
const (
	AuthPassword    = "username_password"
	AuthCertificate = "certificate"
	AuthBoth        = "both"
)

// Config is the broker section of the service configuration.
type Config struct {
	Broker     string `json:"broker"`
	ClientID   string `json:"client_id"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	AuthMethod string `json:"auth_method"`
	// QoS per message class: "request", "event", "assignment", "result".
	QoS   map[string]byte `json:"qos"`
	TLS   TLSConfig       `json:"tls"`
	Will  WillConfig      `json:"will"`
	Retry RetryConfig     `json:"retry"`
	// RequestTopic overrides DefaultRequestTopic.
	RequestTopic string `json:"request_topic"`
}

// TLSConfig points at PEM files. Prebuilt, when set, is used as is.
type TLSConfig struct {
	Enabled  bool        `json:"enabled"`
	Cert     string      `json:"cert"`
	Key      string      `json:"key"`
	CA       string      `json:"ca"`
	Prebuilt *tls.Config `json:"-"`
}

// WillConfig is the message the broker publishes when the dispatcher
// drops off without disconnecting.
type WillConfig struct {
	Topic   string `json:"topic"`
	Payload string `json:"payload"`
	QoS     byte   `json:"qos"`
	Retain  bool   `json:"retain"`
}

// RetryConfig bounds publish retries. Backoff doubles after each attempt.
type RetryConfig struct {
	Max     int           `json:"max"`
	Backoff time.Duration `json:"backoff"`
}

func (r RetryConfig) withDefaults() RetryConfig {
	if r.Max <= 0 {
		r.Max = 3
	}
	if r.Backoff <= 0 {
		r.Backoff = 100 * time.Millisecond
	}
	return r
}

// Enabled reports whether a broker is configured.
func (c Config) Enabled() bool { return c.Broker != "" }

// Validate checks the fields NewClientOptions would reject. A disabled
// config is always valid.
func (c Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	switch c.AuthMethod {
	case "", AuthPassword, AuthCertificate, AuthBoth:
	default:
		return fmt.Errorf("mqtt: unknown auth_method %q", c.AuthMethod)
	}
	if (c.AuthMethod == AuthCertificate || c.AuthMethod == AuthBoth) && !c.TLS.Enabled {
		return fmt.Errorf("mqtt: auth_method %s requires tls.enabled", c.AuthMethod)
	}
	return nil
}

func (c Config) qosFor(class string) byte { return c.QoS[class] }

func (c Config) sendsPassword() bool {
	return c.AuthMethod == "" || c.AuthMethod == AuthPassword || c.AuthMethod == AuthBoth
}

// pahoClient is what Client needs from paho.
type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// newMQTTClient is swapped in tests.
var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// ErrNotConnected is returned when publishing on a closed client.
var ErrNotConnected = errors.New("mqtt client not connected")

// Client is the dispatcher's broker connection. JSON payloads are
// published with retries and subscriptions outlive reconnects.
type Client struct {
	conn  pahoClient
	cfg   Config
	retry RetryConfig
	log   logger.Logger

	mu       sync.Mutex
	handlers map[string]paho.MessageHandler
}

// NewClient connects to cfg.Broker and blocks until the first connection
// succeeds or fails.
func NewClient(cfg Config) (*Client, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	c := &Client{
		cfg:      cfg,
		retry:    cfg.Retry.withDefaults(),
		log:      infralogger.New("mqtt_client"),
		handlers: map[string]paho.MessageHandler{},
	}
	opts.OnConnect = c.resubscribe
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		c.log.Errorf("broker connection lost: %v", err)
	}
	opts.OnReconnecting = func(paho.Client, *paho.ClientOptions) {
		c.log.Warnf("reconnecting to %s", cfg.Broker)
	}

	conn := newMQTTClient(opts)
	if tok := conn.Connect(); tok.Wait() && tok.Error() != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Broker, tok.Error())
	}
	c.conn = conn
	return c, nil
}

// resubscribe restores every registered subscription on a fresh session.
func (c *Client) resubscribe(pc paho.Client) {
	c.mu.Lock()
	handlers := maps.Clone(c.handlers)
	c.mu.Unlock()
	c.log.Infof("connected to %s, restoring %d subscriptions", c.cfg.Broker, len(handlers))
	for topic, h := range handlers {
		tok := pc.Subscribe(topic, c.cfg.qosFor("request"), h)
		if tok.Wait() && tok.Error() != nil {
			c.log.Errorf("resubscribe %s: %v", topic, tok.Error())
		}
	}
}

// NewClientOptions translates cfg into paho options.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	if !cfg.Enabled() {
		return nil, errors.New("mqtt broker is required")
	}
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true)
	if cfg.sendsPassword() {
		opts.SetUsername(cfg.Username).SetPassword(cfg.Password)
	}
	if cfg.TLS.Enabled {
		tlsCfg, err := cfg.TLS.Load()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if w := cfg.Will; w.Topic != "" {
		opts.SetWill(w.Topic, w.Payload, w.QoS, w.Retain)
	}
	return opts, nil
}

// Load reads the client key pair and CA bundle.
func (t TLSConfig) Load() (*tls.Config, error) {
	if t.Prebuilt != nil {
		return t.Prebuilt, nil
	}
	if t.Cert == "" || t.Key == "" || t.CA == "" {
		return nil, errors.New("mqtt tls requires cert, key and ca")
	}
	pair, err := tls.LoadX509KeyPair(t.Cert, t.Key)
	if err != nil {
		return nil, fmt.Errorf("load client certificate: %w", err)
	}
	pem, err := os.ReadFile(t.CA)
	if err != nil {
		return nil, fmt.Errorf("read ca bundle: %w", err)
	}
	roots := x509.NewCertPool()
	if !roots.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("ca bundle %s holds no certificate", t.CA)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{pair},
		RootCAs:      roots,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// PublishJSON encodes v and publishes it on topic with the QoS of class.
// The error left after the last retry is reported to monitoring.
func (c *Client) PublishJSON(topic, class string, v any) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", topic, err)
	}
	qos := c.cfg.qosFor(class)
	delay := c.retry.Backoff
	for attempt := 1; ; attempt++ {
		tok := c.conn.Publish(topic, qos, false, payload)
		tok.Wait()
		err = tok.Error()
		if err == nil {
			c.log.Debugf("published %d bytes to %s", len(payload), topic)
			return nil
		}
		c.log.Errorf("publish %s attempt %d: %v", topic, attempt, err)
		if attempt > c.retry.Max {
			break
		}
		time.Sleep(delay)
		delay *= 2
	}
	monitoring.CaptureException(err, map[string]string{"module": "mqtt", "topic": topic})
	return err
}

// Subscribe registers h for topic now and after every reconnect.
func (c *Client) Subscribe(topic string, h paho.MessageHandler) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	c.mu.Lock()
	c.handlers[topic] = h
	c.mu.Unlock()
	tok := c.conn.Subscribe(topic, c.cfg.qosFor("request"), h)
	tok.Wait()
	return tok.Error()
}

// Disconnect waits up to 250ms for in-flight work, then closes.
func (c *Client) Disconnect() {
	if c.conn != nil && c.conn.IsConnected() {
		c.conn.Disconnect(250)
	}
}
