package ipt

import (
	"fmt"
	"sync"

	"github.com/solostec/smf-gateway/internal/gwerr"
	"github.com/solostec/smf-gateway/internal/metrics"
)

// ChannelStatus mirrors the small status lattice a push channel moves
// through.
type ChannelStatus byte

const (
	ChannelOpen ChannelStatus = iota
	ChannelClosed
)

// Channel is a push channel: owned by exactly one
// session, routing payloads to one target.
type Channel struct {
	ID         uint32
	SourceID   uint32
	TargetName string
	PacketSize uint16
	WindowSize uint16
	Status     ChannelStatus
	Owner      *Session
}

// Target is a named push sink registered by a session.
type Target struct {
	Name       string
	PacketSize uint16
	WindowSize uint16
	Owner      *Session
	channels   map[uint32]struct{}
}

// DefaultPacketSize matches scenario 2 ("packet-size 256").
const DefaultPacketSize uint16 = 256

// Manager owns the master node's push-channel/target registry (C4).
// All state lives behind one mutex, following the same
// single-lock-guards-a-map shape as pkg/lrucache.Cache.
type Manager struct {
	mu            sync.Mutex
	channels      map[uint32]*Channel
	targets       map[string]*Target
	nextChannelID uint32
	nextSourceID  uint32
}

// NewManager returns an empty push-channel manager.
func NewManager() *Manager {
	return &Manager{
		channels: make(map[uint32]*Channel),
		targets:  make(map[string]*Target),
	}
}

// RegisterTarget registers name as a push sink owned by owner. Target
// names are unique per master.
func (m *Manager) RegisterTarget(owner *Session, name string, packetSize, windowSize uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.targets[name]; exists {
		return fmt.Errorf("ipt: target %q already registered: %w", name, gwerr.ErrConfig)
	}
	if packetSize == 0 {
		packetSize = DefaultPacketSize
	}
	m.targets[name] = &Target{
		Name:       name,
		PacketSize: packetSize,
		WindowSize: windowSize,
		Owner:      owner,
		channels:   make(map[uint32]struct{}),
	}
	return nil
}

// DeregisterTarget removes name; only the owning session may do so.
// Any channels still open against it are torn down with UNREACHABLE.
func (m *Manager) DeregisterTarget(owner *Session, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.targets[name]
	if !ok {
		return fmt.Errorf("ipt: target %q unknown: %w", name, gwerr.ErrResourceNotFound)
	}
	if t.Owner != owner {
		return fmt.Errorf("ipt: target %q not owned by requesting session: %w", name, gwerr.ErrResourceNotFound)
	}
	for id := range t.channels {
		if ch, ok := m.channels[id]; ok {
			ch.Status = ChannelClosed
			delete(m.channels, id)
		}
	}
	delete(m.targets, name)
	return nil
}

// OpenPushChannel resolves target by name, assigns a fresh channel id
// and source id, and registers the channel under the target.
func (m *Manager) OpenPushChannel(owner *Session, targetName string) (*Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.targets[targetName]
	if !ok {
		return nil, fmt.Errorf("ipt: target %q unknown: %w", targetName, gwerr.ErrResourceNotFound)
	}

	m.nextChannelID++
	m.nextSourceID++
	ch := &Channel{
		ID:         m.nextChannelID,
		SourceID:   m.nextSourceID,
		TargetName: targetName,
		PacketSize: t.PacketSize,
		WindowSize: t.WindowSize,
		Status:     ChannelOpen,
		Owner:      owner,
	}
	m.channels[ch.ID] = ch
	t.channels[ch.ID] = struct{}{}
	if owner != nil {
		owner.channels[ch.ID] = struct{}{}
	}
	return ch, nil
}

// ClosePushChannel closes id. It is idempotent: closing an
// already-closed or unknown channel is not an error.
func (m *Manager) ClosePushChannel(id uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[id]
	if !ok {
		return nil
	}
	if t, ok := m.targets[ch.TargetName]; ok {
		delete(t.channels, id)
	}
	if ch.Owner != nil {
		delete(ch.Owner.channels, id)
	}
	delete(m.channels, id)
	return nil
}

// TransferPushData routes payload to channel's target owning session,
// recording throughput on both the source and target sessions. If the
// target has disappeared the channel is torn down and UNREACHABLE is
// returned.
func (m *Manager) TransferPushData(channelID uint32, payload []byte) error {
	m.mu.Lock()
	ch, ok := m.channels[channelID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("ipt: push channel %d unknown: %w", channelID, gwerr.ErrResourceNotFound)
	}
	t, ok := m.targets[ch.TargetName]
	m.mu.Unlock()

	if !ok || t.Owner == nil {
		_ = m.ClosePushChannel(channelID)
		return fmt.Errorf("ipt: target %q gone: %w", ch.TargetName, gwerr.ErrResourceNotFound)
	}

	if ch.Owner != nil {
		ch.Owner.AddPx(len(payload))
	}
	t.Owner.AddPx(len(payload))
	metrics.PushChannelBytes.WithLabelValues("relay").Add(float64(len(payload)))

	seq := t.Owner.NextSequence()
	return t.Owner.EmitFrame(CmdTransferPushDataReq, seq, payload)
}

// Channel looks up a channel by id.
func (m *Manager) Channel(id uint32) (*Channel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[id]
	return ch, ok
}
