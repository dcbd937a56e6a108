// Package transport binds the gossip protocol to a libp2p host and a single
// gossipsub topic, exposing a single Events() channel that merges incoming
// wire messages with peer-connection lifecycle notifications.
package transport

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/decub/kvgossip/internal/protocol"
	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p-core/crypto"
	"github.com/libp2p/go-libp2p-core/host"
	"github.com/libp2p/go-libp2p-core/network"
	"github.com/libp2p/go-libp2p-core/peer"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/multiformats/go-multiaddr"
)

// Event is the sum type yielded by Transport.Events(). A single consumer
// loop type-switches on it; see internal/node and internal/manager.
type Event interface {
	isEvent()
}

// MessageEvent carries a decoded ComponentMessage received on the topic.
// Messages published by this transport's own host are filtered out before
// they reach Events().
type MessageEvent struct {
	From string
	Msg  protocol.ComponentMessage
}

// PeerDiscoveredEvent fires when the host opens a new connection.
type PeerDiscoveredEvent struct {
	PeerID string
}

// PeerExpiredEvent fires when a connection to a peer closes.
type PeerExpiredEvent struct {
	PeerID string
}

// ListeningOnEvent fires once per listen address the host binds at startup.
type ListeningOnEvent struct {
	Addr string
}

func (MessageEvent) isEvent()        {}
func (PeerDiscoveredEvent) isEvent() {}
func (PeerExpiredEvent) isEvent()    {}
func (ListeningOnEvent) isEvent()    {}

// Transport is the interface internal/node and internal/manager depend on.
// The production implementation is *LibP2P; tests use a fake from
// internal/transport/transporttest.
type Transport interface {
	PeerID() string
	Publish(msg protocol.ComponentMessage) error
	Events() <-chan Event
	Close() error
}

// LibP2P is a Transport backed by a libp2p host and a single gossipsub
// topic, grounded on the host/pubsub setup in decub-gossip's GossipNode.
type LibP2P struct {
	host  host.Host
	ps    *pubsub.PubSub
	topic *pubsub.Topic
	sub   *pubsub.Subscription

	events chan Event

	closeOnce sync.Once
	cancel    context.CancelFunc
}

// New creates a libp2p host listening at listenAddr, joins topicName over
// gossipsub with the default heartbeat interval, and starts the background
// pumps feeding Events(). The returned ListeningOnEvent(s) are delivered
// asynchronously, same as every other event.
func New(listenAddr, topicName string) (*LibP2P, error) {
	return NewWithHeartbeat(listenAddr, topicName, 0)
}

// NewWithHeartbeat is New but overrides gossipsub's heartbeat interval
// (the --heartbeat-interval flag) when heartbeat is non-zero. This is
// unrelated to the once-a-second application-level signature tick driven by
// internal/node; it only tunes gossipsub's own mesh-maintenance cadence.
func NewWithHeartbeat(listenAddr, topicName string, heartbeat time.Duration) (*LibP2P, error) {
	priv, _, err := crypto.GenerateKeyPairWithReader(crypto.Ed25519, -1, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("transport: generate key pair: %w", err)
	}

	h, err := libp2p.New(
		libp2p.ListenAddrStrings(listenAddr),
		libp2p.Identity(priv),
	)
	if err != nil {
		return nil, fmt.Errorf("transport: create host: %w", err)
	}

	var psOpts []pubsub.Option
	if heartbeat > 0 {
		params := pubsub.DefaultGossipSubParams()
		params.HeartbeatInterval = heartbeat
		psOpts = append(psOpts, pubsub.WithGossipSubParams(params))
	}

	ps, err := pubsub.NewGossipSub(context.Background(), h, psOpts...)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("transport: create gossipsub: %w", err)
	}

	topic, err := ps.Join(topicName)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("transport: join topic %q: %w", topicName, err)
	}

	sub, err := topic.Subscribe()
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("transport: subscribe to topic %q: %w", topicName, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &LibP2P{
		host:   h,
		ps:     ps,
		topic:  topic,
		sub:    sub,
		events: make(chan Event, 64),
		cancel: cancel,
	}

	h.Network().Notify(t.notifiee())

	for _, addr := range h.Addrs() {
		t.emit(ListeningOnEvent{Addr: fmt.Sprintf("%s/p2p/%s", addr, h.ID())})
	}

	go t.pumpMessages(ctx)

	return t, nil
}

func (t *LibP2P) PeerID() string {
	return t.host.ID().String()
}

// Connect dials addr (a full /p2p multiaddr) and adds it to the host's
// peerstore. Discovery beyond explicitly dialed peers is out of scope; see
// SPEC_FULL.md.
func (t *LibP2P) Connect(addr string) error {
	maddr, err := multiaddr.NewMultiaddr(addr)
	if err != nil {
		return fmt.Errorf("transport: parse multiaddr %q: %w", addr, err)
	}
	info, err := peer.AddrInfoFromP2pAddr(maddr)
	if err != nil {
		return fmt.Errorf("transport: resolve peer info from %q: %w", addr, err)
	}
	if err := t.host.Connect(context.Background(), *info); err != nil {
		return fmt.Errorf("transport: connect to %q: %w", addr, err)
	}
	return nil
}

func (t *LibP2P) Publish(msg protocol.ComponentMessage) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return fmt.Errorf("transport: encode message: %w", err)
	}
	if err := t.topic.Publish(context.Background(), data); err != nil {
		return fmt.Errorf("transport: publish: %w", err)
	}
	return nil
}

func (t *LibP2P) Events() <-chan Event {
	return t.events
}

func (t *LibP2P) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.cancel()
		t.sub.Cancel()
		t.topic.Close()
		err = t.host.Close()
		close(t.events)
	})
	return err
}

func (t *LibP2P) emit(ev Event) {
	select {
	case t.events <- ev:
	default:
		// Slow consumer: drop rather than block the pump goroutine. A
		// bounded channel is deliberate backpressure, not a bug to paper
		// over with an unbounded buffer.
	}
}

func (t *LibP2P) pumpMessages(ctx context.Context) {
	selfID := t.host.ID()
	for {
		msg, err := t.sub.Next(ctx)
		if err != nil {
			return
		}
		if msg.ReceivedFrom == selfID {
			continue
		}
		decoded, err := protocol.Decode(msg.Data)
		if err != nil {
			continue
		}
		t.emit(MessageEvent{From: msg.ReceivedFrom.String(), Msg: decoded})
	}
}

func (t *LibP2P) notifiee() *network.NotifyBundle {
	return &network.NotifyBundle{
		ConnectedF: func(_ network.Network, c network.Conn) {
			t.emit(PeerDiscoveredEvent{PeerID: c.RemotePeer().String()})
		},
		DisconnectedF: func(_ network.Network, c network.Conn) {
			t.emit(PeerExpiredEvent{PeerID: c.RemotePeer().String()})
		},
	}
}
