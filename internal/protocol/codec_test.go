package protocol

import (
	"testing"

	"github.com/decub/kvgossip/internal/merkle"
	"github.com/decub/kvgossip/internal/store"
	"github.com/decub/kvgossip/internal/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, msg ComponentMessage) ComponentMessage {
	t.Helper()
	encoded, err := Encode(msg)
	require.NoError(t, err)
	decoded, err := Decode(encoded)
	require.NoError(t, err)
	return decoded
}

func boundaryHash() merkle.Hash {
	var h merkle.Hash
	for i := range h {
		h[i] = 0xFF
	}
	return h
}

func TestRoundTripManagerStoreCommands(t *testing.T) {
	meta := MetaData{PeerIDStr: "peer-1", LocalTime: 42}
	commands := []store.Command{
		store.DelCommand{Keys: []string{"a", "b"}},
		store.DelCommand{Keys: nil},
		store.ExistsCommand{Keys: []string{"a", "a"}},
		store.GetCommand{Key: "k"},
		store.KeysCommand{Pattern: "user:*"},
		store.SetCommand{Key: "k", Value: "v"},
	}
	for _, cmd := range commands {
		msg := ManagerEnvelope{Inner: StoreCommandMsg{Command: cmd}, Meta: meta}
		decoded := roundTrip(t, msg)
		assert.Equal(t, msg, decoded)
	}
}

func TestRoundTripNodeStoreCommandResults(t *testing.T) {
	meta := MetaData{PeerIDStr: "peer-2", LocalTime: 7}
	v := "value"
	results := []store.Result{
		store.DelResult{Count: 3},
		store.ExistsResult{Count: 0},
		store.GetResult{Value: &v},
		store.GetResult{Value: nil},
		store.KeysResult{Keys: []string{"x", "y"}},
		store.KeysResult{Keys: []string{}},
		store.SetResult{OK: true},
		store.UndefinedResult{Message: "unrecognized"},
	}
	for _, res := range results {
		msg := NodeEnvelope{Inner: StoreCommandResultMsg{Result: res}, Meta: meta}
		decoded := roundTrip(t, msg).(NodeEnvelope)
		assert.Equal(t, meta, decoded.Meta)
		assert.Equal(t, res, decoded.Inner.(StoreCommandResultMsg).Result)
	}
}

func TestRoundTripShareSignatureWithAndWithoutRoot(t *testing.T) {
	meta := MetaData{PeerIDStr: "peer-3", LocalTime: 1}
	h := boundaryHash()

	withRoot := NodeEnvelope{
		Inner: ShareSignatureMsg{SrcID: "peer-3", Signature: tracker.Signature{Root: &h, LocalTimestamp: 9999}},
		Meta:  meta,
	}
	decoded := roundTrip(t, withRoot)
	assert.Equal(t, withRoot, decoded)

	withoutRoot := NodeEnvelope{
		Inner: ShareSignatureMsg{SrcID: "peer-3", Signature: tracker.Signature{Root: nil, LocalTimestamp: 0}},
		Meta:  meta,
	}
	decoded = roundTrip(t, withoutRoot)
	assert.Equal(t, withoutRoot, decoded)
}

func TestRoundTripRepairRequest(t *testing.T) {
	meta := MetaData{PeerIDStr: "peer-4", LocalTime: 5}
	msg := NodeEnvelope{Inner: RepairRequestMsg{SrcID: "a", DstID: "b"}, Meta: meta}
	decoded := roundTrip(t, msg)
	assert.Equal(t, msg, decoded)
}

func TestRoundTripRepairResponseWithEmptyAndPopulatedMap(t *testing.T) {
	meta := MetaData{PeerIDStr: "peer-5", LocalTime: 6}

	empty := NodeEnvelope{
		Inner: RepairResponseMsg{SrcID: "a", DstID: "b", RepairedData: map[string]string{}},
		Meta:  meta,
	}
	decoded := roundTrip(t, empty).(NodeEnvelope)
	assert.Empty(t, decoded.Inner.(RepairResponseMsg).RepairedData)

	populated := NodeEnvelope{
		Inner: RepairResponseMsg{
			SrcID: "a", DstID: "b",
			RepairedData: map[string]string{"k1": "v1", "k2": "v2", "k3": ""},
		},
		Meta: meta,
	}
	decoded = roundTrip(t, populated).(NodeEnvelope)
	assert.Equal(t, populated.Inner.(RepairResponseMsg).RepairedData, decoded.Inner.(RepairResponseMsg).RepairedData)
}

func TestEncodeIsDeterministicForEqualMaps(t *testing.T) {
	meta := MetaData{PeerIDStr: "p", LocalTime: 1}
	a := NodeEnvelope{Inner: RepairResponseMsg{SrcID: "s", DstID: "d", RepairedData: map[string]string{"k1": "v1", "k2": "v2"}}, Meta: meta}
	b := NodeEnvelope{Inner: RepairResponseMsg{SrcID: "s", DstID: "d", RepairedData: map[string]string{"k2": "v2", "k1": "v1"}}, Meta: meta}

	encA, err := Encode(a)
	require.NoError(t, err)
	encB, err := Encode(b)
	require.NoError(t, err)
	assert.Equal(t, encA, encB)
}

func TestDecodeRejectsTruncatedInput(t *testing.T) {
	msg := ManagerEnvelope{Inner: StoreCommandMsg{Command: store.GetCommand{Key: "k"}}, Meta: MetaData{PeerIDStr: "p", LocalTime: 1}}
	encoded, err := Encode(msg)
	require.NoError(t, err)

	_, err = Decode(encoded[:len(encoded)-1])
	assert.Error(t, err)

	_, err = Decode(nil)
	assert.Error(t, err)
}

func TestDecodeRejectsUnknownOuterTag(t *testing.T) {
	_, err := Decode([]byte{0xFF, 0x00, 0x00})
	assert.Error(t, err)
}
