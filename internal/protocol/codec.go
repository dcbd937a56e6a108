package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/decub/kvgossip/internal/merkle"
	"github.com/decub/kvgossip/internal/store"
	"github.com/decub/kvgossip/internal/tracker"
)

// Encode serializes msg into a deterministic, length-prefixed binary form.
// Decode(Encode(x)) == x holds for every concrete ComponentMessage shape,
// including empty maps and 32-byte boundary hash values.
func Encode(msg ComponentMessage) ([]byte, error) {
	var buf bytes.Buffer
	switch m := msg.(type) {
	case ManagerEnvelope:
		buf.WriteByte(tagManagerEnvelope)
		encodeMetaData(&buf, m.Meta)
		if err := encodeManagerMessage(&buf, m.Inner); err != nil {
			return nil, err
		}
	case NodeEnvelope:
		buf.WriteByte(tagNodeEnvelope)
		encodeMetaData(&buf, m.Meta)
		if err := encodeNodeMessage(&buf, m.Inner); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("protocol: unrecognized ComponentMessage type %T", msg)
	}
	return buf.Bytes(), nil
}

// Decode parses bytes produced by Encode. Unknown tags are rejected rather
// than silently skipped.
func Decode(data []byte) (ComponentMessage, error) {
	r := bytes.NewReader(data)
	tag, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("protocol: empty message")
	}

	meta, err := decodeMetaData(r)
	if err != nil {
		return nil, err
	}

	switch tag {
	case tagManagerEnvelope:
		inner, err := decodeManagerMessage(r)
		if err != nil {
			return nil, err
		}
		return ManagerEnvelope{Inner: inner, Meta: meta}, nil
	case tagNodeEnvelope:
		inner, err := decodeNodeMessage(r)
		if err != nil {
			return nil, err
		}
		return NodeEnvelope{Inner: inner, Meta: meta}, nil
	default:
		return nil, fmt.Errorf("protocol: unknown outer tag %d", tag)
	}
}

// outer envelope tags
const (
	tagManagerEnvelope byte = iota
	tagNodeEnvelope
)

// manager message tags
const (
	tagStoreCommand byte = iota
)

// node message tags
const (
	tagStoreCommandResult byte = iota
	tagShareSignature
	tagRepairRequest
	tagRepairResponse
)

// store command tags
const (
	tagDel byte = iota
	tagExists
	tagGet
	tagKeys
	tagSet
)

// store result tags
const (
	tagDelResult byte = iota
	tagExistsResult
	tagGetResult
	tagKeysResult
	tagSetResult
	tagUndefinedResult
)

func encodeMetaData(buf *bytes.Buffer, m MetaData) {
	writeString(buf, m.PeerIDStr)
	writeUvarint(buf, m.LocalTime)
}

func decodeMetaData(r *bytes.Reader) (MetaData, error) {
	peerID, err := readString(r)
	if err != nil {
		return MetaData{}, err
	}
	localTime, err := readUvarint(r)
	if err != nil {
		return MetaData{}, err
	}
	return MetaData{PeerIDStr: peerID, LocalTime: localTime}, nil
}

func encodeManagerMessage(buf *bytes.Buffer, msg ManagerMessage) error {
	switch m := msg.(type) {
	case StoreCommandMsg:
		buf.WriteByte(tagStoreCommand)
		return encodeCommand(buf, m.Command)
	default:
		return fmt.Errorf("protocol: unrecognized ManagerMessage type %T", msg)
	}
}

func decodeManagerMessage(r *bytes.Reader) (ManagerMessage, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagStoreCommand:
		cmd, err := decodeCommand(r)
		if err != nil {
			return nil, err
		}
		return StoreCommandMsg{Command: cmd}, nil
	default:
		return nil, fmt.Errorf("protocol: unknown ManagerMessage tag %d", tag)
	}
}

func encodeNodeMessage(buf *bytes.Buffer, msg NodeMessage) error {
	switch m := msg.(type) {
	case StoreCommandResultMsg:
		buf.WriteByte(tagStoreCommandResult)
		return encodeResult(buf, m.Result)
	case ShareSignatureMsg:
		buf.WriteByte(tagShareSignature)
		writeString(buf, m.SrcID)
		encodeSignature(buf, m.Signature)
		return nil
	case RepairRequestMsg:
		buf.WriteByte(tagRepairRequest)
		writeString(buf, m.SrcID)
		writeString(buf, m.DstID)
		return nil
	case RepairResponseMsg:
		buf.WriteByte(tagRepairResponse)
		writeString(buf, m.SrcID)
		writeString(buf, m.DstID)
		writeStringMap(buf, m.RepairedData)
		return nil
	default:
		return fmt.Errorf("protocol: unrecognized NodeMessage type %T", msg)
	}
}

func decodeNodeMessage(r *bytes.Reader) (NodeMessage, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagStoreCommandResult:
		res, err := decodeResult(r)
		if err != nil {
			return nil, err
		}
		return StoreCommandResultMsg{Result: res}, nil
	case tagShareSignature:
		srcID, err := readString(r)
		if err != nil {
			return nil, err
		}
		sig, err := decodeSignature(r)
		if err != nil {
			return nil, err
		}
		return ShareSignatureMsg{SrcID: srcID, Signature: sig}, nil
	case tagRepairRequest:
		srcID, err := readString(r)
		if err != nil {
			return nil, err
		}
		dstID, err := readString(r)
		if err != nil {
			return nil, err
		}
		return RepairRequestMsg{SrcID: srcID, DstID: dstID}, nil
	case tagRepairResponse:
		srcID, err := readString(r)
		if err != nil {
			return nil, err
		}
		dstID, err := readString(r)
		if err != nil {
			return nil, err
		}
		data, err := readStringMap(r)
		if err != nil {
			return nil, err
		}
		return RepairResponseMsg{SrcID: srcID, DstID: dstID, RepairedData: data}, nil
	default:
		return nil, fmt.Errorf("protocol: unknown NodeMessage tag %d", tag)
	}
}

func encodeCommand(buf *bytes.Buffer, cmd store.Command) error {
	switch c := cmd.(type) {
	case store.DelCommand:
		buf.WriteByte(tagDel)
		writeStringSlice(buf, c.Keys)
	case store.ExistsCommand:
		buf.WriteByte(tagExists)
		writeStringSlice(buf, c.Keys)
	case store.GetCommand:
		buf.WriteByte(tagGet)
		writeString(buf, c.Key)
	case store.KeysCommand:
		buf.WriteByte(tagKeys)
		writeString(buf, c.Pattern)
	case store.SetCommand:
		buf.WriteByte(tagSet)
		writeString(buf, c.Key)
		writeString(buf, c.Value)
	default:
		return fmt.Errorf("protocol: unrecognized Command type %T", cmd)
	}
	return nil
}

func decodeCommand(r *bytes.Reader) (store.Command, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagDel:
		keys, err := readStringSlice(r)
		if err != nil {
			return nil, err
		}
		return store.DelCommand{Keys: keys}, nil
	case tagExists:
		keys, err := readStringSlice(r)
		if err != nil {
			return nil, err
		}
		return store.ExistsCommand{Keys: keys}, nil
	case tagGet:
		key, err := readString(r)
		if err != nil {
			return nil, err
		}
		return store.GetCommand{Key: key}, nil
	case tagKeys:
		pattern, err := readString(r)
		if err != nil {
			return nil, err
		}
		return store.KeysCommand{Pattern: pattern}, nil
	case tagSet:
		key, err := readString(r)
		if err != nil {
			return nil, err
		}
		value, err := readString(r)
		if err != nil {
			return nil, err
		}
		return store.SetCommand{Key: key, Value: value}, nil
	default:
		return nil, fmt.Errorf("protocol: unknown Command tag %d", tag)
	}
}

func encodeResult(buf *bytes.Buffer, res store.Result) error {
	switch r := res.(type) {
	case store.DelResult:
		buf.WriteByte(tagDelResult)
		writeUvarint(buf, uint64(r.Count))
	case store.ExistsResult:
		buf.WriteByte(tagExistsResult)
		writeUvarint(buf, uint64(r.Count))
	case store.GetResult:
		buf.WriteByte(tagGetResult)
		writeOptionalString(buf, r.Value)
	case store.KeysResult:
		buf.WriteByte(tagKeysResult)
		writeStringSlice(buf, r.Keys)
	case store.SetResult:
		buf.WriteByte(tagSetResult)
		writeBool(buf, r.OK)
	case store.UndefinedResult:
		buf.WriteByte(tagUndefinedResult)
		writeString(buf, r.Message)
	default:
		return fmt.Errorf("protocol: unrecognized Result type %T", res)
	}
	return nil
}

func decodeResult(r *bytes.Reader) (store.Result, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagDelResult:
		n, err := readUvarint(r)
		if err != nil {
			return nil, err
		}
		return store.DelResult{Count: int(n)}, nil
	case tagExistsResult:
		n, err := readUvarint(r)
		if err != nil {
			return nil, err
		}
		return store.ExistsResult{Count: int(n)}, nil
	case tagGetResult:
		v, err := readOptionalString(r)
		if err != nil {
			return nil, err
		}
		return store.GetResult{Value: v}, nil
	case tagKeysResult:
		keys, err := readStringSlice(r)
		if err != nil {
			return nil, err
		}
		return store.KeysResult{Keys: keys}, nil
	case tagSetResult:
		ok, err := readBool(r)
		if err != nil {
			return nil, err
		}
		return store.SetResult{OK: ok}, nil
	case tagUndefinedResult:
		msg, err := readString(r)
		if err != nil {
			return nil, err
		}
		return store.UndefinedResult{Message: msg}, nil
	default:
		return nil, fmt.Errorf("protocol: unknown Result tag %d", tag)
	}
}

func encodeSignature(buf *bytes.Buffer, sig tracker.Signature) {
	writeOptionalHash(buf, sig.Root)
	writeUvarint(buf, sig.LocalTimestamp)
}

func decodeSignature(r *bytes.Reader) (tracker.Signature, error) {
	root, err := readOptionalHash(r)
	if err != nil {
		return tracker.Signature{}, err
	}
	ts, err := readUvarint(r)
	if err != nil {
		return tracker.Signature{}, err
	}
	return tracker.Signature{Root: root, LocalTimestamp: ts}, nil
}

// --- primitive encode/decode helpers ---

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func readUvarint(r *bytes.Reader) (uint64, error) {
	v, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, fmt.Errorf("protocol: truncated varint: %w", err)
	}
	return v, nil
}

func writeBool(buf *bytes.Buffer, b bool) {
	if b {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func readBool(r *bytes.Reader) (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, fmt.Errorf("protocol: truncated bool: %w", err)
	}
	return b != 0, nil
}

func writeString(buf *bytes.Buffer, s string) {
	writeUvarint(buf, uint64(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readUvarint(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("protocol: truncated string: %w", err)
	}
	return string(b), nil
}

func writeOptionalString(buf *bytes.Buffer, s *string) {
	if s == nil {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	writeString(buf, *s)
}

func readOptionalString(r *bytes.Reader) (*string, error) {
	present, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("protocol: truncated optional string tag: %w", err)
	}
	if present == 0 {
		return nil, nil
	}
	s, err := readString(r)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// writeStringSlice prefixes the elements with len+1, reserving 0 for a nil
// slice so that nil and empty slices both round-trip exactly.
func writeStringSlice(buf *bytes.Buffer, ss []string) {
	if ss == nil {
		writeUvarint(buf, 0)
		return
	}
	writeUvarint(buf, uint64(len(ss))+1)
	for _, s := range ss {
		writeString(buf, s)
	}
}

func readStringSlice(r *bytes.Reader) ([]string, error) {
	n, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]string, n-1)
	for i := range out {
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// writeStringMap encodes keys in sorted order so that two maps with equal
// contents always produce identical bytes.
func writeStringMap(buf *bytes.Buffer, m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	writeUvarint(buf, uint64(len(keys)))
	for _, k := range keys {
		writeString(buf, k)
		writeString(buf, m[k])
	}
}

func readStringMap(r *bytes.Reader) (map[string]string, error) {
	n, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, n)
	for i := uint64(0); i < n; i++ {
		k, err := readString(r)
		if err != nil {
			return nil, err
		}
		v, err := readString(r)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func writeOptionalHash(buf *bytes.Buffer, h *merkle.Hash) {
	if h == nil {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	buf.Write(h[:])
}

func readOptionalHash(r *bytes.Reader) (*merkle.Hash, error) {
	present, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("protocol: truncated optional hash tag: %w", err)
	}
	if present == 0 {
		return nil, nil
	}
	var h merkle.Hash
	if _, err := io.ReadFull(r, h[:]); err != nil {
		return nil, fmt.Errorf("protocol: truncated hash: %w", err)
	}
	return &h, nil
}
