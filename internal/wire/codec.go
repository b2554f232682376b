// Package wire encodes and decodes the framed binary sync protocol: a
// var_string document name, a var_u64 message type, and a type-specific
// body. Integers use LEB128-style variable length encoding.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MessageType is the top-level frame discriminator (§6 of the protocol spec).
type MessageType uint64

const (
	Sync               MessageType = 0
	Awareness          MessageType = 1
	Auth               MessageType = 2
	QueryAwareness     MessageType = 3
	SyncReply          MessageType = 4
	Stateless          MessageType = 5
	BroadcastStateless MessageType = 6
	Close              MessageType = 7
	SyncStatus         MessageType = 8
)

func (t MessageType) String() string {
	switch t {
	case Sync:
		return "Sync"
	case Awareness:
		return "Awareness"
	case Auth:
		return "Auth"
	case QueryAwareness:
		return "QueryAwareness"
	case SyncReply:
		return "SyncReply"
	case Stateless:
		return "Stateless"
	case BroadcastStateless:
		return "BroadcastStateless"
	case Close:
		return "Close"
	case SyncStatus:
		return "SyncStatus"
	default:
		return fmt.Sprintf("MessageType(%d)", uint64(t))
	}
}

// SyncSub discriminates the body of a Sync/SyncReply frame.
type SyncSub uint64

const (
	Step1  SyncSub = 0
	Step2  SyncSub = 1
	Update SyncSub = 2
)

// Kind classifies a decode failure per §7 of the spec.
type Kind int

const (
	MalformedFrame Kind = iota
	UnknownType
	NameMismatch
	InvalidWriteBuffer
)

func (k Kind) String() string {
	switch k {
	case MalformedFrame:
		return "MalformedFrame"
	case UnknownType:
		return "UnknownType"
	case NameMismatch:
		return "NameMismatch"
	case InvalidWriteBuffer:
		return "InvalidWriteBuffer"
	default:
		return "UnknownKind"
	}
}

// Error is a protocol-level decode/encode failure.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Msg) }

func errf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// ─────────────────────────────────────────────────────────────
// Primitive encoders — exported so internal/crdtdoc can reuse them for its
// own state-vector and update encodings instead of duplicating a varint
// implementation.
// ─────────────────────────────────────────────────────────────

// AppendVarUint appends v to buf as LEB128 (7 payload bits per byte, MSB
// continuation) and returns the extended slice.
func AppendVarUint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := 0
	for v >= 0x80 {
		tmp[n] = byte(v) | 0x80
		v >>= 7
		n++
	}
	tmp[n] = byte(v)
	n++
	return append(buf, tmp[:n]...)
}

// AppendVarString appends a var_string (length-prefixed UTF-8) to buf.
func AppendVarString(buf []byte, s string) []byte {
	buf = AppendVarUint(buf, uint64(len(s)))
	return append(buf, s...)
}

// AppendVarBuffer appends a var_buffer (length-prefixed opaque bytes) to buf.
func AppendVarBuffer(buf []byte, b []byte) []byte {
	buf = AppendVarUint(buf, uint64(len(b)))
	return append(buf, b...)
}

// ReadVarUint reads a LEB128 value from buf, returning the value and the
// unread remainder.
func ReadVarUint(buf []byte) (uint64, []byte, error) {
	var v uint64
	var shift uint
	for i := 0; ; i++ {
		if i >= len(buf) {
			return 0, nil, errf(MalformedFrame, "var_u64 truncated")
		}
		b := buf[i]
		if shift >= 64 {
			return 0, nil, errf(MalformedFrame, "var_u64 overflow")
		}
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, buf[i+1:], nil
		}
		shift += 7
	}
}

// ReadVarString reads a var_string from buf.
func ReadVarString(buf []byte) (string, []byte, error) {
	n, rest, err := ReadVarUint(buf)
	if err != nil {
		return "", nil, err
	}
	if n > uint64(len(rest)) {
		return "", nil, errf(MalformedFrame, "var_string length %d exceeds remaining %d bytes", n, len(rest))
	}
	return string(rest[:n]), rest[n:], nil
}

// ReadVarBuffer reads a var_buffer from buf.
func ReadVarBuffer(buf []byte) ([]byte, []byte, error) {
	n, rest, err := ReadVarUint(buf)
	if err != nil {
		return nil, nil, err
	}
	if n > uint64(len(rest)) {
		return nil, nil, errf(MalformedFrame, "var_buffer length %d exceeds remaining %d bytes", n, len(rest))
	}
	return rest[:n:n], rest[n:], nil
}

// ─────────────────────────────────────────────────────────────
// Frame header
// ─────────────────────────────────────────────────────────────

// Header builds the <var_string document_name><var_u64 message_type> prefix
// shared by every frame.
func Header(documentName string, typ MessageType) []byte {
	buf := make([]byte, 0, len(documentName)+10)
	buf = AppendVarString(buf, documentName)
	buf = AppendVarUint(buf, uint64(typ))
	return buf
}

// DecodedFrame is the result of splitting a frame into its header and body.
type DecodedFrame struct {
	DocumentName string
	Type         MessageType
	Body         []byte
}

// DecodeFrame parses the shared header and classifies the message type. It
// does not validate the document name against any expected room name —
// callers that need §4.2's NameMismatch behavior compare DocumentName
// themselves, since only they know which room is handling the frame.
func DecodeFrame(buf []byte) (DecodedFrame, error) {
	name, rest, err := ReadVarString(buf)
	if err != nil {
		return DecodedFrame{}, err
	}
	typ, body, err := ReadVarUint(rest)
	if err != nil {
		return DecodedFrame{}, err
	}
	if typ > uint64(SyncStatus) {
		return DecodedFrame{}, errf(UnknownType, "unrecognized message type %d", typ)
	}
	return DecodedFrame{DocumentName: name, Type: MessageType(typ), Body: body}, nil
}

// ─────────────────────────────────────────────────────────────
// Per-type body encoders
// ─────────────────────────────────────────────────────────────

// EncodeSync builds a full Sync/SyncReply frame: header + sub + var_buffer(body).
func EncodeSync(documentName string, typ MessageType, sub SyncSub, body []byte) []byte {
	buf := Header(documentName, typ)
	buf = AppendVarUint(buf, uint64(sub))
	buf = AppendVarBuffer(buf, body)
	return buf
}

// DecodeSyncBody splits a Sync body into its sub-type and nested var_buffer payload.
func DecodeSyncBody(body []byte) (SyncSub, []byte, error) {
	sub, rest, err := ReadVarUint(body)
	if err != nil {
		return 0, nil, err
	}
	if sub > uint64(Update) {
		return 0, nil, errf(UnknownType, "unrecognized sync sub-type %d", sub)
	}
	payload, _, err := ReadVarBuffer(rest)
	if err != nil {
		return 0, nil, err
	}
	return SyncSub(sub), payload, nil
}

// EncodeAwareness builds an Awareness frame carrying an opaque awareness update.
func EncodeAwareness(documentName string, update []byte) []byte {
	buf := Header(documentName, Awareness)
	return AppendVarBuffer(buf, update)
}

// DecodeAwarenessBody extracts the nested update bytes from an Awareness body.
func DecodeAwarenessBody(body []byte) ([]byte, error) {
	payload, _, err := ReadVarBuffer(body)
	return payload, err
}

// EncodeQueryAwareness builds an (empty-body) QueryAwareness frame.
func EncodeQueryAwareness(documentName string) []byte {
	return Header(documentName, QueryAwareness)
}

// EncodeClose builds an (empty-body) Close frame.
func EncodeClose(documentName string) []byte {
	return Header(documentName, Close)
}

// EncodeSyncStatus builds a SyncStatus frame.
func EncodeSyncStatus(documentName string, saved bool) []byte {
	buf := Header(documentName, SyncStatus)
	flag := uint64(0)
	if saved {
		flag = 1
	}
	return AppendVarUint(buf, flag)
}

// DecodeSyncStatusBody extracts the saved flag from a SyncStatus body.
func DecodeSyncStatusBody(body []byte) (bool, error) {
	flag, _, err := ReadVarUint(body)
	if err != nil {
		return false, err
	}
	return flag != 0, nil
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
