package clusterbus

import (
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/solostec/smf-gateway/pkg/log"
)

// Bus wraps a NATS connection with subscription tracking, publishing
// and receiving Avro-encoded Envelopes. Grounded on
// pkg/nats.Client: same singleton-via-sync.Once construction and
// mutex-guarded subscriptions slice, generalized from raw []byte
// handlers to typed Envelope handlers.
type Bus struct {
	conn          *nats.Conn
	mu            sync.Mutex
	subscriptions []*nats.Subscription
}

var (
	busOnce     sync.Once
	busInstance *Bus
)

// EnvelopeHandler processes one decoded verb invocation received on a
// subject.
type EnvelopeHandler func(subject string, env Envelope)

// Connect initializes the singleton bus connection.
func Connect(address string) {
	busOnce.Do(func() {
		b, err := NewBus(address)
		if err != nil {
			log.Warnf("clusterbus: connect failed: %v", err)
			return
		}
		busInstance = b
	})
}

// Get returns the singleton bus, or nil if Connect has not succeeded.
func Get() *Bus {
	if busInstance == nil {
		log.Warn("clusterbus: bus not initialized")
	}
	return busInstance
}

// NewBus dials a fresh NATS connection for address.
func NewBus(address string) (*Bus, error) {
	if address == "" {
		return nil, fmt.Errorf("clusterbus: nats address is required")
	}
	nc, err := nats.Connect(address,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warnf("clusterbus: disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Infof("clusterbus: reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Errorf("clusterbus: nats error: %v", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("clusterbus: connect failed: %w", err)
	}
	log.Infof("clusterbus: connected to %s", address)
	return &Bus{conn: nc}, nil
}

// Publish Avro-encodes env and sends it on subject.
func (b *Bus) Publish(subject string, env Envelope) error {
	buf, err := Encode(env)
	if err != nil {
		return err
	}
	if err := b.conn.Publish(subject, buf); err != nil {
		return fmt.Errorf("clusterbus: publish to %q failed: %w", subject, err)
	}
	return nil
}

// Subscribe registers handler for subject, decoding every message as
// an Envelope.
func (b *Bus) Subscribe(subject string, handler EnvelopeHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		env, err := Decode(msg.Data)
		if err != nil {
			log.Warnf("clusterbus: dropping malformed envelope on %q: %v", subject, err)
			return
		}
		handler(msg.Subject, env)
	})
	if err != nil {
		return fmt.Errorf("clusterbus: subscribe to %q failed: %w", subject, err)
	}
	b.subscriptions = append(b.subscriptions, sub)
	return nil
}

// Close unsubscribes everything and closes the connection.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subscriptions {
		_ = sub.Unsubscribe()
	}
	b.subscriptions = nil
	if b.conn != nil {
		b.conn.Close()
	}
}
