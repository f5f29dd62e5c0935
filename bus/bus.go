// bus.go
package bus

import (
	"sync"
)

// -----------------------------------------------------------------------------
// Topics
// -----------------------------------------------------------------------------

// Topic is a sequence of comparable tokens (normally strings).
type Topic []any

// T builds a Topic. It panics on a non-comparable token.
func T(tokens ...any) Topic {
	for _, tok := range tokens {
		switch tok.(type) {
		case string, int, int64, uint8, uint16, uint32, bool:
		default:
			panic("bus: non-comparable topic token")
		}
	}
	return Topic(tokens)
}

// -----------------------------------------------------------------------------
// Message
// -----------------------------------------------------------------------------

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
}

// -----------------------------------------------------------------------------
// Subscription
// -----------------------------------------------------------------------------

type Subscription struct {
	topic Topic
	ch    chan *Message
	conn  *Connection
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

// -----------------------------------------------------------------------------
// Trie node
// -----------------------------------------------------------------------------

type node struct {
	children map[any]*node
	subs     []*Subscription
	retained *Message
}

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

type Bus struct {
	mu     sync.Mutex
	root   *node
	qLen   int
	single string // single-level wildcard, e.g. "+"
	multi  string // multi-level wildcard, e.g. "#"
}

// NewBus creates a bus with the given subscription queue length and
// wildcard tokens. Empty wildcard strings disable that wildcard.
func NewBus(queueLen int, single, multi string) *Bus {
	if queueLen <= 0 {
		queueLen = 8
	}
	return &Bus{
		root:   &node{},
		qLen:   queueLen,
		single: single,
		multi:  multi,
	}
}

// NewMessage builds a message; the topic slice is copied.
func (b *Bus) NewMessage(topic Topic, payload any, retained bool) *Message {
	return &Message{
		Topic:    append(Topic(nil), topic...),
		Payload:  payload,
		Retained: retained,
	}
}

func (b *Bus) isSingle(tok any) bool {
	s, ok := tok.(string)
	return ok && b.single != "" && s == b.single
}

func (b *Bus) isMulti(tok any) bool {
	s, ok := tok.(string)
	return ok && b.multi != "" && s == b.multi
}

// deliver never blocks: a full queue drops its oldest message.
func deliver(sub *Subscription, msg *Message) {
	for {
		select {
		case sub.ch <- msg:
			return
		default:
		}
		select {
		case <-sub.ch:
		default:
		}
	}
}

func (b *Bus) addSubscription(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	for _, tok := range sub.topic {
		if n.children == nil {
			n.children = make(map[any]*node)
		}
		child, ok := n.children[tok]
		if !ok {
			child = &node{}
			n.children[tok] = child
		}
		n = child
	}
	n.subs = append(n.subs, sub)

	// Replay retained messages matching the (possibly wildcard) filter.
	b.collectRetained(b.root, sub.topic, func(m *Message) { deliver(sub, m) })
}

// collectRetained walks concrete topics under n matching filter.
func (b *Bus) collectRetained(n *node, filter Topic, fn func(*Message)) {
	if len(filter) == 0 {
		if n.retained != nil {
			fn(n.retained)
		}
		return
	}
	tok := filter[0]
	switch {
	case b.isMulti(tok):
		var walk func(*node)
		walk = func(x *node) {
			if x.retained != nil {
				fn(x.retained)
			}
			for _, c := range x.children {
				walk(c)
			}
		}
		walk(n)
	case b.isSingle(tok):
		for k, c := range n.children {
			if b.isSingle(k) || b.isMulti(k) {
				continue
			}
			b.collectRetained(c, filter[1:], fn)
		}
	default:
		if c, ok := n.children[tok]; ok {
			b.collectRetained(c, filter[1:], fn)
		}
	}
}

// matchSubs gathers subscriptions whose filter matches topic.
func (b *Bus) matchSubs(n *node, topic Topic, out []*Subscription) []*Subscription {
	if n == nil {
		return out
	}
	if b.multi != "" {
		if c, ok := n.children[b.multi]; ok {
			out = append(out, c.subs...)
		}
	}
	if len(topic) == 0 {
		return append(out, n.subs...)
	}
	if c, ok := n.children[topic[0]]; ok {
		out = b.matchSubs(c, topic[1:], out)
	}
	if b.single != "" && !b.isSingle(topic[0]) {
		if c, ok := n.children[b.single]; ok {
			out = b.matchSubs(c, topic[1:], out)
		}
	}
	return out
}

// Publish delivers a message to all matching subscribers and updates the
// retained store. A retained message with nil payload clears the topic.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if msg.Retained {
		n := b.root
		for _, tok := range msg.Topic {
			if n.children == nil {
				n.children = make(map[any]*node)
			}
			child, ok := n.children[tok]
			if !ok {
				child = &node{}
				n.children[tok] = child
			}
			n = child
		}
		if msg.Payload == nil {
			n.retained = nil
		} else {
			n.retained = msg
		}
	}

	for _, sub := range b.matchSubs(b.root, msg.Topic, nil) {
		deliver(sub, msg)
	}
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	for _, tok := range sub.topic {
		child, ok := n.children[tok]
		if !ok {
			return
		}
		n = child
	}
	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			break
		}
	}
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

type Connection struct {
	bus  *Bus
	mu   sync.Mutex
	subs []*Subscription
	id   string
}

// NewConnection creates a new connection bound to this bus.
func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{bus: b, id: id}
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) NewMessage(topic Topic, payload any, retained bool) *Message {
	return c.bus.NewMessage(topic, payload, retained)
}

// Publish sends a message via the bus.
func (c *Connection) Publish(msg *Message) { c.bus.Publish(msg) }

// Subscribe registers a subscription owned by this connection.
func (c *Connection) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{
		topic: append(Topic(nil), topic...),
		ch:    make(chan *Message, c.bus.qLen),
		conn:  c,
	}
	c.bus.addSubscription(sub)
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscription owned by this connection.
func (c *Connection) Unsubscribe(sub *Subscription) {
	c.mu.Lock()
	found := false
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			found = true
			break
		}
	}
	c.mu.Unlock()
	if !found {
		return
	}
	c.bus.unsubscribe(sub)
	close(sub.ch)
}

// Disconnect closes all subscriptions of this connection.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		c.bus.unsubscribe(sub)
		close(sub.ch)
	}
}
