// Package transporttest provides an in-memory Transport for exercising
// internal/node and internal/manager without real libp2p sockets.
package transporttest

import (
	"sync"

	"github.com/decub/kvgossip/internal/protocol"
	"github.com/decub/kvgossip/internal/transport"
)

// Bus fans out every Publish from any member Fake to every other member,
// modeling a single shared gossipsub topic.
type Bus struct {
	mu      sync.Mutex
	members map[string]*Fake
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{members: make(map[string]*Fake)}
}

// Join creates a Fake transport with the given peer ID and registers it on
// the bus. Every already-joined member is notified of the new peer and vice
// versa, mirroring libp2p's connection-notification behavior.
func (b *Bus) Join(peerID string) *Fake {
	b.mu.Lock()
	defer b.mu.Unlock()

	f := &Fake{
		peerID: peerID,
		bus:    b,
		events: make(chan transport.Event, 256),
	}
	for _, other := range b.members {
		f.emit(transport.PeerDiscoveredEvent{PeerID: other.peerID})
		other.emit(transport.PeerDiscoveredEvent{PeerID: peerID})
	}
	b.members[peerID] = f
	return f
}

func (b *Bus) broadcast(from string, msg protocol.ComponentMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, member := range b.members {
		if id == from {
			continue
		}
		member.emit(transport.MessageEvent{From: from, Msg: msg})
	}
}

// Fake is an in-memory transport.Transport backed by a Bus.
type Fake struct {
	peerID string
	bus    *Bus
	events chan transport.Event

	closeOnce sync.Once
}

func (f *Fake) PeerID() string { return f.peerID }

func (f *Fake) Publish(msg protocol.ComponentMessage) error {
	f.bus.broadcast(f.peerID, msg)
	return nil
}

func (f *Fake) Events() <-chan transport.Event { return f.events }

func (f *Fake) Close() error {
	f.closeOnce.Do(func() { close(f.events) })
	return nil
}

func (f *Fake) emit(ev transport.Event) {
	select {
	case f.events <- ev:
	default:
	}
}

var _ transport.Transport = (*Fake)(nil)
