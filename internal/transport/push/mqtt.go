package push

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/oshokin/studio-control/internal/logger"
)

const (
	mqttKeepAlive      = 60 * time.Second
	mqttPingTimeout    = 10 * time.Second
	mqttDisconnectWait = 250 // milliseconds
	mqttRetryInterval  = 5 * time.Second
)

var errTimeout = errors.New("mqtt operation timed out")

// MQTTOptions configures the broker connection.
type MQTTOptions struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
	// Timeout bounds connect, publish and subscribe round-trips.
	Timeout time.Duration
	// RetryInterval is the pause between attempts while the broker is unreachable.
	RetryInterval time.Duration
}

// MQTT is a Channel backed by an MQTT broker. Subscriptions are kept
// locally and restored after every reconnect.
type MQTT struct {
	client  mqtt.Client
	qos     byte
	timeout time.Duration
	log     *zap.SugaredLogger

	mu      sync.Mutex
	filters map[string]map[uint64]Handler
	nextID  uint64

	reconnecting atomic.Bool
}

// DialMQTT connects to the broker described by opts. A broker that is down
// at startup is not an error: the client keeps retrying in the background and
// the returned channel reports Connected false until it gets through.
func DialMQTT(ctx context.Context, opts MQTTOptions) (*MQTT, error) {
	c := &MQTT{
		qos:     opts.QoS,
		timeout: opts.Timeout,
		log:     logger.FromContext(logger.WithName(ctx, "mqtt")),
		filters: make(map[string]map[uint64]Handler),
	}

	if c.timeout <= 0 {
		c.timeout = 5 * time.Second
	}

	o := mqtt.NewClientOptions()
	o.AddBroker(opts.Broker)
	o.SetClientID(opts.ClientID)
	o.SetUsername(opts.Username)
	o.SetPassword(opts.Password)
	o.SetAutoReconnect(true)
	o.SetConnectRetry(true)
	o.SetConnectRetryInterval(cmp.Or(opts.RetryInterval, mqttRetryInterval))
	o.SetKeepAlive(mqttKeepAlive)
	o.SetPingTimeout(mqttPingTimeout)
	o.SetConnectTimeout(c.timeout)
	o.SetOnConnectHandler(c.onConnect)
	o.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.log.Warnf("Connection lost: %v", err)
	})

	c.client = mqtt.NewClient(o)

	err := c.wait(c.client.Connect())

	switch {
	case errors.Is(err, errTimeout):
		c.log.Warnf("Broker %s unreachable, retrying in background", opts.Broker)
	case err != nil:
		return nil, fmt.Errorf("connect to %s: %w", opts.Broker, err)
	default:
		c.log.Infof("Connected to broker %s", opts.Broker)
	}

	return c, nil
}

// Publish implements Channel.
func (c *MQTT) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !c.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	if err := c.wait(c.client.Publish(topic, c.qos, false, payload)); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	return nil
}

// Subscribe implements Channel.
func (c *MQTT) Subscribe(_ context.Context, filter string, h Handler) (func(), error) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++

	handlers, exists := c.filters[filter]
	if !exists {
		handlers = make(map[uint64]Handler)
		c.filters[filter] = handlers
	}

	handlers[id] = h
	c.mu.Unlock()

	if !exists && c.client.IsConnectionOpen() {
		if err := c.wait(c.client.Subscribe(filter, c.qos, c.dispatch(filter))); err != nil {
			c.remove(filter, id)
			return nil, fmt.Errorf("subscribe %s: %w", filter, err)
		}
	}

	var once sync.Once

	return func() { once.Do(func() { c.remove(filter, id) }) }, nil
}

// Connected implements Channel.
func (c *MQTT) Connected() bool {
	return c.client.IsConnectionOpen()
}

// RequestReconnect implements Reconnector. It is a no-op while a reconnect is in flight.
func (c *MQTT) RequestReconnect() {
	if c.client.IsConnectionOpen() || !c.reconnecting.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer c.reconnecting.Store(false)

		if err := c.wait(c.client.Connect()); err != nil {
			c.log.Warnf("Reconnect failed: %v", err)
		}
	}()
}

// Close disconnects from the broker.
func (c *MQTT) Close() {
	c.client.Disconnect(mqttDisconnectWait)
	c.log.Info("Disconnected from broker")
}

func (c *MQTT) onConnect(client mqtt.Client) {
	c.mu.Lock()
	filters := make([]string, 0, len(c.filters))

	for f := range c.filters {
		filters = append(filters, f)
	}
	c.mu.Unlock()

	for _, f := range filters {
		token := client.Subscribe(f, c.qos, c.dispatch(f))
		if err := c.wait(token); err != nil {
			c.log.Warnf("Resubscribe %s: %v", f, err)
		}
	}
}

func (c *MQTT) dispatch(filter string) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		c.mu.Lock()
		handlers := make([]Handler, 0, len(c.filters[filter]))

		for _, h := range c.filters[filter] {
			handlers = append(handlers, h)
		}
		c.mu.Unlock()

		for _, h := range handlers {
			h(msg.Topic(), msg.Payload())
		}
	}
}

func (c *MQTT) remove(filter string, id uint64) {
	c.mu.Lock()
	handlers := c.filters[filter]
	delete(handlers, id)

	empty := len(handlers) == 0
	if empty {
		delete(c.filters, filter)
	}
	c.mu.Unlock()

	if empty && c.client.IsConnectionOpen() {
		if err := c.wait(c.client.Unsubscribe(filter)); err != nil {
			c.log.Warnf("Unsubscribe %s: %v", filter, err)
		}
	}
}

func (c *MQTT) wait(token mqtt.Token) error {
	if !token.WaitTimeout(c.timeout) {
		return errTimeout
	}

	return token.Error()
}
