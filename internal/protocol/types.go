// Package protocol defines the message shapes broadcast over the gossip
// topic and their deterministic binary codec. Every broadcast is exactly one
// encoded ComponentMessage.
package protocol

import (
	"github.com/decub/kvgossip/internal/store"
	"github.com/decub/kvgossip/internal/tracker"
)

// MetaData is attached to every broadcast message. It is informational only
// — the signature's own timestamp, not MetaData.LocalTime, governs tracker
// ordering.
type MetaData struct {
	PeerIDStr string
	LocalTime uint64
}

// ComponentMessage is the outer sum type carried on the wire.
type ComponentMessage interface {
	isComponentMessage()
}

// ManagerEnvelope wraps a ManagerMessage with its sender metadata.
type ManagerEnvelope struct {
	Inner ManagerMessage
	Meta  MetaData
}

// NodeEnvelope wraps a NodeMessage with its sender metadata.
type NodeEnvelope struct {
	Inner NodeMessage
	Meta  MetaData
}

func (ManagerEnvelope) isComponentMessage() {}
func (NodeEnvelope) isComponentMessage()    {}

// ManagerMessage is the sum type a manager may broadcast.
type ManagerMessage interface {
	isManagerMessage()
}

// StoreCommandMsg carries a parsed user command from the manager to every
// node.
type StoreCommandMsg struct {
	Command store.Command
}

func (StoreCommandMsg) isManagerMessage() {}

// NodeMessage is the sum type a node may broadcast.
type NodeMessage interface {
	isNodeMessage()
}

// StoreCommandResultMsg carries the outcome of executing a StoreCommandMsg.
// Nodes ignore it; the manager prints it.
type StoreCommandResultMsg struct {
	Result store.Result
}

// ShareSignatureMsg is broadcast every second by every node to advertise its
// current root.
type ShareSignatureMsg struct {
	SrcID     string
	Signature tracker.Signature
}

// RepairRequestMsg asks DstID to send its full store back to SrcID.
type RepairRequestMsg struct {
	SrcID string
	DstID string
}

// RepairResponseMsg carries a full snapshot from SrcID to DstID. Every peer
// sees every response on the shared topic; DstID is the filter. The
// responder does not re-check its own root at send time, so a responder
// that has diverged further since the request can propagate stale data.
type RepairResponseMsg struct {
	SrcID        string
	DstID        string
	RepairedData map[string]string
}

func (StoreCommandResultMsg) isNodeMessage() {}
func (ShareSignatureMsg) isNodeMessage()     {}
func (RepairRequestMsg) isNodeMessage()      {}
func (RepairResponseMsg) isNodeMessage()     {}
