// services/statusmqtt/mirror.go
package statusmqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"hwmonitor-go/bus"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Publisher is the part of mqtt.Client the mirror uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
}

// Options configure the broker connection.
type Options struct {
	Broker   string
	User     string
	Password string
	ClientID string
	Prefix   string
}

// AvailabilityTopic is <prefix>/status: "online" while connected, "offline"
// as the broker-held will.
func AvailabilityTopic(prefix string) string { return prefix + "/status" }

// Connect dials the broker. The client reconnects on its own afterwards.
func Connect(o Options, log *zap.Logger) (mqtt.Client, error) {
	avail := AvailabilityTopic(o.Prefix)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(o.Broker)
	opts.SetUsername(o.User)
	opts.SetPassword(o.Password)
	opts.SetClientID(o.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(5 * time.Second)
	opts.SetWill(avail, "offline", 0, true)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		log.Info("mqtt connected", zap.String("broker", o.Broker))
		c.Publish(avail, 0, true, "online")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", zap.Error(err))
	})

	c := mqtt.NewClient(opts)
	if tok := c.Connect(); tok.Wait() && tok.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", o.Broker, tok.Error())
	}
	return c, nil
}

// -----------------------------------------------------------------------------
// Mirror
// -----------------------------------------------------------------------------

// Mirror republishes retained bus status as retained JSON under prefix.
// Drain is called from the control loop and never waits on the broker.
type Mirror struct {
	pub    Publisher
	prefix string
	log    *zap.Logger

	subs     []*bus.Subscription
	inflight []inflight
}

type inflight struct {
	topic string
	tok   mqtt.Token
}

func New(pub Publisher, conn *bus.Connection, prefix string, log *zap.Logger) *Mirror {
	return &Mirror{
		pub:    pub,
		prefix: prefix,
		log:    log,
		subs: []*bus.Subscription{
			conn.Subscribe(bus.T("mode")),
			conn.Subscribe(bus.T("status", "#")),
			conn.Subscribe(bus.T("config", "+")),
		},
	}
}

// Topic maps a bus topic to its broker topic.
func (m *Mirror) Topic(t bus.Topic) string {
	parts := make([]string, 0, len(t)+1)
	parts = append(parts, m.prefix)
	for _, tok := range t {
		parts = append(parts, fmt.Sprint(tok))
	}
	return strings.Join(parts, "/")
}

// Drain forwards every queued bus message and reaps finished publishes.
func (m *Mirror) Drain() {
	m.reap()
	for _, sub := range m.subs {
		m.drain(sub)
	}
}

func (m *Mirror) drain(sub *bus.Subscription) {
	for {
		select {
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			m.forward(msg)
		default:
			return
		}
	}
}

func (m *Mirror) forward(msg *bus.Message) {
	topic := m.Topic(msg.Topic)
	var payload []byte
	switch v := msg.Payload.(type) {
	case nil:
		payload = nil
	case string:
		payload = []byte(v)
	case []byte:
		payload = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			m.log.Warn("mqtt payload not encodable", zap.String("topic", topic), zap.Error(err))
			return
		}
		payload = b
	}
	if !m.pub.IsConnected() {
		m.log.Debug("mqtt offline, queued by client", zap.String("topic", topic))
	}
	tok := m.pub.Publish(topic, 0, true, payload)
	m.inflight = append(m.inflight, inflight{topic: topic, tok: tok})
}

func (m *Mirror) reap() {
	keep := m.inflight[:0]
	for _, f := range m.inflight {
		select {
		case <-f.tok.Done():
			if err := f.tok.Error(); err != nil {
				m.log.Warn("mqtt publish failed", zap.String("topic", f.topic), zap.Error(err))
			}
		default:
			keep = append(keep, f)
		}
	}
	m.inflight = keep
}

// Pending is the number of publishes not yet acknowledged.
func (m *Mirror) Pending() int { return len(m.inflight) }

// Close drops the bus subscriptions.
func (m *Mirror) Close() {
	for _, s := range m.subs {
		s.Unsubscribe()
	}
	m.subs = nil
}
