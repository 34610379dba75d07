package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/knx-actuator/internal/knx"
	"github.com/sweeney/knx-actuator/internal/logic"
)

const (
	connectTimeout    = 10 * time.Second
	publishTimeout    = 5 * time.Second
	defaultBufferSize = 64
)

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	Username   string
	Password   string
	BufferSize int
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// disconnected are buffered and replayed on reconnect.
type RealPublisher struct {
	client   paho.Client
	topics   Topics
	commands chan<- Command

	mu        sync.Mutex
	connected bool
	buf       *ringBuffer
}

// NewRealPublisher connects to the broker. Received commands are sent on
// commands without blocking; they are dropped if the channel is full. If the
// broker is unreachable the publisher keeps retrying in the background.
func NewRealPublisher(o Options, topics Topics, commands chan<- Command) (*RealPublisher, error) {
	size := o.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}
	p := &RealPublisher{
		topics:   topics,
		commands: commands,
		buf:      newRingBuffer(size),
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(topics.System(), string(will), 1, true).
		SetOnConnectHandler(p.handleConnect).
		SetConnectionLostHandler(p.handleConnectionLost)
	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		log.Warnf("mqtt: broker %s not reachable yet, retrying in background", o.Broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

func (p *RealPublisher) handleConnect(c paho.Client) {
	log.Printf("mqtt: connected")
	for _, topic := range []string{p.topics.Commands(), p.topics.DatapointSets()} {
		if token := c.Subscribe(topic, 1, p.handleMessage); token.WaitTimeout(publishTimeout) && token.Error() != nil {
			log.Warnf("mqtt: subscribe %s: %v", topic, token.Error())
		}
	}

	p.mu.Lock()
	p.connected = true
	pending := p.buf.drainAll()
	p.mu.Unlock()

	if len(pending) > 0 {
		log.Printf("mqtt: replaying %d buffered messages", len(pending))
	}
	for _, m := range pending {
		if err := p.send(m); err != nil {
			log.Warnf("mqtt: replay %s: %v", m.topic, err)
		}
	}
}

func (p *RealPublisher) handleConnectionLost(_ paho.Client, err error) {
	log.Warnf("mqtt: connection lost: %v", err)
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
}

func (p *RealPublisher) handleMessage(_ paho.Client, msg paho.Message) {
	cmd, err := ParseCommand(p.topics, msg.Topic(), msg.Payload())
	if err != nil {
		log.Warnf("mqtt: %v", err)
		return
	}
	select {
	case p.commands <- cmd:
	default:
		log.Warnf("mqtt: command queue full, dropping %s", cmd.Kind)
	}
}

func (p *RealPublisher) send(m bufferedMsg) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	m := bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained}

	p.mu.Lock()
	if !p.connected {
		p.buf.push(m)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	return p.send(m)
}

// PublishDiscovery sends the retained discovery record.
func (p *RealPublisher) PublishDiscovery(rec knx.Record) error {
	payload, err := FormatDiscovery(rec)
	if err != nil {
		return fmt.Errorf("format discovery: %w", err)
	}
	return p.publish(p.topics.Discovery(), 1, true, payload)
}

// PublishDatapoint sends the retained datapoint value.
func (p *RealPublisher) PublishDatapoint(url string, value bool) error {
	payload, err := FormatDatapoint(value)
	if err != nil {
		return fmt.Errorf("format datapoint: %w", err)
	}
	return p.publish(p.topics.Datapoint(url), 1, true, payload)
}

// Publish sends a controller event.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	// QoS 0 (at-most-once), not retained
	return p.publish(p.topics.Events(), 0, false, payload)
}

// PublishSystem sends a system lifecycle event.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) so shutdown events are delivered
	return p.publish(p.topics.System(), 1, event.Retained, payload)
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
