// Package node implements the replica runtime: a single-threaded event loop
// that owns a Store and a MajorityTracker, ticks a signature broadcast every
// second, and dispatches inbound protocol messages.
package node

import (
	"context"
	"time"

	"github.com/decub/kvgossip/internal/logging"
	"github.com/decub/kvgossip/internal/merkle"
	"github.com/decub/kvgossip/internal/protocol"
	"github.com/decub/kvgossip/internal/store"
	"github.com/decub/kvgossip/internal/tracker"
	"github.com/decub/kvgossip/internal/transport"
)

const signatureTickInterval = time.Second

// Node is the runtime for the "node" role: a full replica that converges
// with its peers via periodic Merkle-root comparison.
type Node struct {
	peerID    string
	store     *store.Store
	tracker   *tracker.Tracker
	transport transport.Transport
	log       *logging.Logger
}

// New builds a Node bound to t, identified by t.PeerID().
func New(t transport.Transport, log *logging.Logger) *Node {
	return &Node{
		peerID:    t.PeerID(),
		store:     store.New(),
		tracker:   tracker.New(),
		transport: t,
		log:       log,
	}
}

// Run multiplexes the transport's event stream and the signature ticker
// until ctx is canceled. It never returns an error on its own; transport
// failures are logged and looped past, matching the "divergence self-heals
// next tick" design.
func (n *Node) Run(ctx context.Context) {
	ticker := time.NewTicker(signatureTickInterval)
	defer ticker.Stop()

	events := n.transport.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.broadcastSignature()
		case ev, ok := <-events:
			if !ok {
				return
			}
			n.handleEvent(ev)
		}
	}
}

func (n *Node) broadcastSignature() {
	sig := tracker.Signature{
		Root:           n.store.RevealRoot(),
		LocalTimestamp: uint64(time.Now().UnixMilli()),
	}
	msg := protocol.NodeEnvelope{
		Inner: protocol.ShareSignatureMsg{SrcID: n.peerID, Signature: sig},
		Meta:  protocol.MetaData{PeerIDStr: n.peerID, LocalTime: sig.LocalTimestamp},
	}
	if err := n.transport.Publish(msg); err != nil {
		n.log.Warnf("publish signature failed: %v", err)
	}
}

func (n *Node) handleEvent(ev transport.Event) {
	switch e := ev.(type) {
	case transport.PeerDiscoveredEvent:
		n.log.Infof("peer discovered: %s", e.PeerID)
	case transport.PeerExpiredEvent:
		n.log.Infof("peer expired: %s", e.PeerID)
	case transport.ListeningOnEvent:
		n.log.Infof("listening on %s", e.Addr)
	case transport.MessageEvent:
		n.handleMessage(e.Msg)
	}
}

func (n *Node) handleMessage(msg protocol.ComponentMessage) {
	switch envelope := msg.(type) {
	case protocol.ManagerEnvelope:
		n.handleManagerMessage(envelope.Inner)
	case protocol.NodeEnvelope:
		n.handleNodeMessage(envelope.Inner)
	}
}

func (n *Node) handleManagerMessage(msg protocol.ManagerMessage) {
	cmd, ok := msg.(protocol.StoreCommandMsg)
	if !ok {
		return
	}
	res, err := n.store.Execute(cmd.Command)
	if err != nil {
		n.log.Warnf("command execution failed: %v", err)
		return
	}

	reply := protocol.NodeEnvelope{
		Inner: protocol.StoreCommandResultMsg{Result: res},
		Meta:  protocol.MetaData{PeerIDStr: n.peerID, LocalTime: uint64(time.Now().UnixMilli())},
	}
	if err := n.transport.Publish(reply); err != nil {
		n.log.Warnf("publish command result failed: %v", err)
	}
}

func (n *Node) handleNodeMessage(msg protocol.NodeMessage) {
	switch m := msg.(type) {
	case protocol.StoreCommandResultMsg:
		// Intended for the manager; nodes have nothing to do with it.
	case protocol.ShareSignatureMsg:
		n.onShareSignature(m)
	case protocol.RepairRequestMsg:
		n.onRepairRequest(m)
	case protocol.RepairResponseMsg:
		n.onRepairResponse(m)
	}
}

func (n *Node) onShareSignature(m protocol.ShareSignatureMsg) {
	n.tracker.UpdateSignature(m.SrcID, m.Signature)

	localRoot := n.store.RevealRoot()
	if rootsEqual(localRoot, m.Signature.Root) {
		return
	}

	majority := n.tracker.TruthfulMajority()
	for _, peerID := range majority {
		req := protocol.NodeEnvelope{
			Inner: protocol.RepairRequestMsg{SrcID: n.peerID, DstID: peerID},
			Meta:  protocol.MetaData{PeerIDStr: n.peerID, LocalTime: uint64(time.Now().UnixMilli())},
		}
		if err := n.transport.Publish(req); err != nil {
			n.log.Warnf("publish repair request failed: %v", err)
		}
	}
}

func (n *Node) onRepairRequest(m protocol.RepairRequestMsg) {
	if m.DstID != n.peerID {
		return
	}
	resp := protocol.NodeEnvelope{
		Inner: protocol.RepairResponseMsg{SrcID: n.peerID, DstID: m.SrcID, RepairedData: n.store.GetMainStore()},
		Meta:  protocol.MetaData{PeerIDStr: n.peerID, LocalTime: uint64(time.Now().UnixMilli())},
	}
	if err := n.transport.Publish(resp); err != nil {
		n.log.Warnf("publish repair response failed: %v", err)
	}
}

func (n *Node) onRepairResponse(m protocol.RepairResponseMsg) {
	if m.DstID != n.peerID {
		return
	}
	if err := n.store.UpdateFullStore(m.RepairedData); err != nil {
		n.log.Warnf("apply repair response failed: %v", err)
	}
}

func rootsEqual(a, b *merkle.Hash) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
