package manager

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/decub/kvgossip/internal/logging"
	"github.com/decub/kvgossip/internal/protocol"
	"github.com/decub/kvgossip/internal/store"
	"github.com/decub/kvgossip/internal/transport"
	"github.com/decub/kvgossip/internal/transport/transporttest"
	"github.com/stretchr/testify/assert"
)

func testLogger() *logging.Logger {
	return logging.New(logging.LevelError, io.Discard)
}

func TestManagerBroadcastsParsedCommand(t *testing.T) {
	bus := transporttest.NewBus()
	mgrTransport := bus.Join("manager")
	observer := bus.Join("observer")
	<-observer.Events() // PeerDiscoveredEvent for "manager", emitted by Join

	mgr := New(mgrTransport, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out bytes.Buffer
	go mgr.Run(ctx, strings.NewReader("SET k v\n"), &out)

	select {
	case ev := <-observer.Events():
		msgEvent, ok := ev.(transport.MessageEvent)
		if !ok {
			t.Fatalf("expected a MessageEvent, got %T", ev)
		}
		envelope, ok := msgEvent.Msg.(protocol.ManagerEnvelope)
		if !ok {
			t.Fatalf("expected a ManagerEnvelope, got %T", msgEvent.Msg)
		}
		cmd, ok := envelope.Inner.(protocol.StoreCommandMsg)
		if !ok {
			t.Fatalf("expected a StoreCommandMsg, got %T", envelope.Inner)
		}
		assert.Equal(t, store.SetCommand{Key: "k", Value: "v"}, cmd.Command)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}

func TestFormatResult(t *testing.T) {
	v := "hello"
	cases := []struct {
		res  store.Result
		want string
	}{
		{store.DelResult{Count: 2}, "(integer) 2"},
		{store.ExistsResult{Count: 1}, "(integer) 1"},
		{store.GetResult{Value: &v}, `"hello"`},
		{store.GetResult{Value: nil}, "(nil)"},
		{store.SetResult{OK: true}, "OK"},
		{store.UndefinedResult{Message: "bad"}, "(error) bad"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, formatResult(c.res))
	}
}

func TestHandleLineRejectsMalformedCommandWithoutPublishing(t *testing.T) {
	bus := transporttest.NewBus()
	mgrTransport := bus.Join("manager")
	observer := bus.Join("observer")
	<-observer.Events() // PeerDiscoveredEvent for "manager", emitted by Join

	mgr := New(mgrTransport, testLogger())
	var out bytes.Buffer
	mgr.handleLine("FROBNICATE", &out)

	select {
	case <-observer.Events():
		t.Fatal("expected no broadcast for a rejected command")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Contains(t, out.String(), "error:")
}

func TestHandleLineIgnoresBlankLineWithoutPublishing(t *testing.T) {
	bus := transporttest.NewBus()
	mgrTransport := bus.Join("manager")
	observer := bus.Join("observer")
	<-observer.Events() // PeerDiscoveredEvent for "manager", emitted by Join

	mgr := New(mgrTransport, testLogger())
	var out bytes.Buffer
	mgr.handleLine("   ", &out)

	select {
	case <-observer.Events():
		t.Fatal("expected no broadcast for a blank line")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Empty(t, out.String())
}

func TestHandleMessagePrintsNodeResult(t *testing.T) {
	bus := transporttest.NewBus()
	mgrTransport := bus.Join("manager")

	mgr := New(mgrTransport, testLogger())
	var out bytes.Buffer
	mgr.handleMessage(protocol.NodeEnvelope{
		Inner: protocol.StoreCommandResultMsg{Result: store.SetResult{OK: true}},
		Meta:  protocol.MetaData{PeerIDStr: "node-1", LocalTime: 1},
	}, &out)

	assert.Equal(t, "OK\n", out.String())
}
