package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// bufferCapacity bounds how many messages are held while the broker is unreachable.
const bufferCapacity = 100

// RealPublisher publishes to an actual MQTT broker.
// Messages published while disconnected are buffered and replayed, oldest
// first, once the connection is re-established.
type RealPublisher struct {
	client paho.Client
	log    zerolog.Logger

	mu      sync.Mutex
	buffer  *ringBuffer
	handler func(Command)
}

// NewRealPublisher creates a publisher for the given broker.
// An unreachable broker is not an error: the client keeps retrying in the
// background and messages are buffered meanwhile.
func NewRealPublisher(broker string, log zerolog.Logger) (*RealPublisher, error) {
	p := &RealPublisher{
		log:    log,
		buffer: newRingBuffer(bufferCapacity),
	}

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE", Reason: "CONNECTION_LOST"})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("tally-clock").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.Warn().Err(err).Msg("mqtt connection lost")
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		p.log.Warn().Str("broker", broker).Msg("mqtt connect still pending, retrying in background")
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// Publish sends a buzz event to the MQTT broker.
func (p *RealPublisher) Publish(event BuzzEvent) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return p.publish(bufferedMsg{topic: Topic, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) - lifecycle events should not be lost
	return p.publish(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) publish(msg bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		dropped := p.buffer.push(msg)
		n := p.buffer.len()
		p.mu.Unlock()
		if dropped {
			p.log.Warn().Int("capacity", bufferCapacity).Msg("mqtt buffer full, dropping oldest")
		} else {
			p.log.Debug().Str("topic", msg.topic).Int("buffered", n).Msg("mqtt offline, message buffered")
		}
		return nil
	}

	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

// OnCommand registers the handler for messages on TopicCommand.
func (p *RealPublisher) OnCommand(handler func(Command)) {
	p.mu.Lock()
	p.handler = handler
	p.mu.Unlock()

	if p.client.IsConnectionOpen() {
		p.subscribe(p.client)
	}
}

// onConnect runs on every (re)connection: it restores the command
// subscription and flushes messages buffered while offline.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	msgs := p.buffer.drainAll()
	hasHandler := p.handler != nil
	p.mu.Unlock()

	p.log.Info().Int("replay", len(msgs)).Msg("mqtt connected")

	go func() {
		if hasHandler {
			p.subscribe(c)
		}
		for _, m := range msgs {
			token := c.Publish(m.topic, m.qos, m.retained, m.payload)
			if token.WaitTimeout(5*time.Second) && token.Error() != nil {
				p.log.Warn().Err(token.Error()).Str("topic", m.topic).Msg("mqtt replay failed")
			}
		}
	}()
}

func (p *RealPublisher) subscribe(c paho.Client) {
	token := c.Subscribe(TopicCommand, 1, p.handleMessage)
	if !token.WaitTimeout(5 * time.Second) {
		p.log.Warn().Str("topic", TopicCommand).Msg("mqtt subscribe timeout")
		return
	}
	if err := token.Error(); err != nil {
		p.log.Warn().Err(err).Str("topic", TopicCommand).Msg("mqtt subscribe failed")
	}
}

func (p *RealPublisher) handleMessage(_ paho.Client, msg paho.Message) {
	cmd, err := ParseCommand(msg.Payload())
	if err != nil {
		p.log.Warn().Err(err).Str("topic", msg.Topic()).Msg("ignoring malformed command")
		return
	}

	p.mu.Lock()
	handler := p.handler
	p.mu.Unlock()
	if handler != nil {
		handler(cmd)
	}
}

// IsConnected reports whether the broker connection is currently up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
