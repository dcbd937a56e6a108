// Package manager implements the command-injector runtime: it reads lines
// from stdin, parses and broadcasts StoreCommands, and prints results it
// receives back from nodes.
package manager

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/decub/kvgossip/internal/logging"
	"github.com/decub/kvgossip/internal/parser"
	"github.com/decub/kvgossip/internal/protocol"
	"github.com/decub/kvgossip/internal/store"
	"github.com/decub/kvgossip/internal/transport"
)

const stdinChannelCapacity = 32

// Manager is the runtime for the "manager" role.
type Manager struct {
	peerID    string
	transport transport.Transport
	log       *logging.Logger
}

// New builds a Manager bound to t.
func New(t transport.Transport, log *logging.Logger) *Manager {
	return &Manager{peerID: t.PeerID(), transport: t, log: log}
}

// Run reads lines from r, broadcasting each successfully parsed command,
// until r reaches EOF or ctx is canceled. It never returns an error: parse
// failures are logged and skipped without broadcasting.
func (m *Manager) Run(ctx context.Context, r io.Reader, w io.Writer) {
	lines := make(chan string, stdinChannelCapacity)
	go m.readLines(r, lines)

	events := m.transport.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			m.handleLine(line, w)
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.handleEvent(ev, w)
		}
	}
}

func (m *Manager) readLines(r io.Reader, out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		out <- scanner.Text()
	}
}

func (m *Manager) handleLine(line string, w io.Writer) {
	if strings.TrimSpace(line) == "" {
		return
	}

	cmd, err := parser.Parse(line)
	if err != nil {
		m.log.Warnf("rejected command %q: %v", line, err)
		fmt.Fprintf(w, "error: %v\n", err)
		return
	}

	msg := protocol.ManagerEnvelope{
		Inner: protocol.StoreCommandMsg{Command: cmd},
		Meta:  protocol.MetaData{PeerIDStr: m.peerID, LocalTime: uint64(time.Now().UnixMilli())},
	}
	if err := m.transport.Publish(msg); err != nil {
		m.log.Warnf("publish command failed: %v", err)
	}
}

func (m *Manager) handleEvent(ev transport.Event, w io.Writer) {
	switch e := ev.(type) {
	case transport.PeerDiscoveredEvent:
		m.log.Infof("peer discovered: %s", e.PeerID)
	case transport.PeerExpiredEvent:
		m.log.Infof("peer expired: %s", e.PeerID)
	case transport.ListeningOnEvent:
		m.log.Infof("listening on %s", e.Addr)
	case transport.MessageEvent:
		m.handleMessage(e.Msg, w)
	}
}

func (m *Manager) handleMessage(msg protocol.ComponentMessage, w io.Writer) {
	nodeEnvelope, ok := msg.(protocol.NodeEnvelope)
	if !ok {
		return
	}
	resultMsg, ok := nodeEnvelope.Inner.(protocol.StoreCommandResultMsg)
	if !ok {
		return
	}
	fmt.Fprintln(w, formatResult(resultMsg.Result))
}

func formatResult(res store.Result) string {
	switch r := res.(type) {
	case store.DelResult:
		return fmt.Sprintf("(integer) %d", r.Count)
	case store.ExistsResult:
		return fmt.Sprintf("(integer) %d", r.Count)
	case store.GetResult:
		if r.Value == nil {
			return "(nil)"
		}
		return fmt.Sprintf("%q", *r.Value)
	case store.KeysResult:
		return fmt.Sprintf("%v", r.Keys)
	case store.SetResult:
		if r.OK {
			return "OK"
		}
		return "(error) SET failed"
	case store.UndefinedResult:
		return fmt.Sprintf("(error) %s", r.Message)
	default:
		return fmt.Sprintf("(unrecognized result %T)", res)
	}
}
