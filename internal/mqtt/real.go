package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/sweeney/gas-sensor/internal/sensor"
)

// Config configures a RealPublisher.
type Config struct {
	Broker     string
	ClientID   string
	Username   string
	Password   string
	Prefix     string
	BufferSize int // messages kept while disconnected
	// ConnectTimeout bounds the initial connect. A broker that is not
	// reachable in time does not fail startup; messages are buffered and the
	// client keeps retrying.
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

// DefaultBufferSize is used when Config.BufferSize is not positive.
const DefaultBufferSize = 100

const commandQueue = 16

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client   paho.Client
	topics   Topics
	log      logrus.FieldLogger
	timeout  time.Duration
	commands chan []byte

	mu     sync.Mutex
	buffer *ringBuffer
	// wasConnected distinguishes the first connect from a reconnect.
	wasConnected bool
}

// NewRealPublisher creates a publisher connected to the configured broker.
// It subscribes to the command topic on every (re)connect.
func NewRealPublisher(cfg Config, log logrus.FieldLogger) (*RealPublisher, error) {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "gas-sensor"
	}

	p := &RealPublisher{
		topics:   NewTopics(cfg.Prefix),
		log:      log.WithField("broker", cfg.Broker),
		timeout:  cfg.PublishTimeout,
		commands: make(chan []byte, commandQueue),
		buffer:   newRingBuffer(cfg.BufferSize),
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetWill(p.topics.System, string(WillPayload(time.Now())), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.WithError(err).Warn("mqtt connection lost")
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username).SetPassword(cfg.Password)
	}

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		p.log.Warn("mqtt broker not reachable yet, buffering until connected")
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

// Topics returns the topics this publisher uses.
func (p *RealPublisher) Topics() Topics {
	return p.topics
}

// Commands delivers raw payloads received on the command topic. The channel
// is never closed.
func (p *RealPublisher) Commands() <-chan []byte {
	return p.commands
}

// IsConnected reports whether the client currently has a live connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	reconnect := p.wasConnected
	p.wasConnected = true
	pending := p.buffer.drainAll()
	p.mu.Unlock()

	p.log.WithField("reconnect", reconnect).Info("mqtt connected")

	// Runs on paho's connect goroutine; block on nothing here.
	c.Subscribe(p.topics.Set, 1, p.onCommand)

	if reconnect {
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: EventReconnected})
		c.Publish(p.topics.System, 1, false, payload)
	}
	if len(pending) > 0 {
		p.log.WithField("count", len(pending)).Info("replaying buffered messages")
	}
	for _, msg := range pending {
		c.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	}
}

func (p *RealPublisher) onCommand(_ paho.Client, msg paho.Message) {
	payload := append([]byte(nil), msg.Payload()...)
	select {
	case p.commands <- payload:
	default:
		p.log.WithField("topic", msg.Topic()).Warn("command queue full, dropping command")
	}
}

// publish sends immediately when connected, otherwise buffers for replay.
// A message that times out after being handed to the client is not
// buffered again: paho keeps QoS 1 messages in flight until acknowledged,
// so requeueing would deliver them twice.
func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	if !p.client.IsConnectionOpen() {
		p.enqueue(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		return nil
	}

	p.flush()
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// flush replays anything buffered after onConnect already drained.
func (p *RealPublisher) flush() {
	p.mu.Lock()
	pending := p.buffer.drainAll()
	p.mu.Unlock()
	for _, msg := range pending {
		p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	}
}

func (p *RealPublisher) enqueue(msg bufferedMsg) {
	p.mu.Lock()
	var dropped bool
	if msg.retained {
		dropped = p.buffer.pushRetained(msg)
	} else {
		dropped = p.buffer.push(msg)
	}
	p.mu.Unlock()
	if dropped {
		p.log.Warn("mqtt offline buffer full, dropping oldest messages")
	}
}

// PublishState sends the counter snapshot, retained at QoS 1.
func (p *RealPublisher) PublishState(state CounterState) error {
	payload, err := FormatState(state)
	if err != nil {
		return fmt.Errorf("format state: %w", err)
	}
	return p.publish(p.topics.State, 1, true, payload)
}

// PublishTemperature sends a temperature reading at QoS 0.
func (p *RealPublisher) PublishTemperature(celsius float64) error {
	payload, err := FormatTemperature(celsius)
	if err != nil {
		return fmt.Errorf("format temperature: %w", err)
	}
	return p.publish(p.topics.Temperature, 0, false, payload)
}

// PublishMagnetometer sends raw axes at QoS 0. These are not buffered while
// offline: a stale debug sample has no value.
func (p *RealPublisher) PublishMagnetometer(r sensor.Reading) error {
	if !p.client.IsConnectionOpen() {
		return nil
	}
	payload, err := FormatMagnetometer(r)
	if err != nil {
		return fmt.Errorf("format magnetometer: %w", err)
	}
	return p.publish(p.topics.Magnetometer, 0, false, payload)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) so shutdown events are delivered
	return p.publish(p.topics.System, 1, event.Retained, payload)
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
