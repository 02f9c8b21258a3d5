package ingest

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Kind tags a binary frame from the host bridge.
type Kind byte

const (
	KindPacketSent     Kind = 1
	KindPacketReceived Kind = 2
	KindSystemLog      Kind = 3
	KindWorldID        Kind = 4
)

func (k Kind) String() string {
	switch k {
	case KindPacketSent:
		return "sent"
	case KindPacketReceived:
		return "received"
	case KindSystemLog:
		return "syslog"
	case KindWorldID:
		return "world"
	default:
		return fmt.Sprintf("Kind(%d)", byte(k))
	}
}

var (
	ErrEmptyFrame  = errors.New("ingest: empty frame")
	ErrUnknownKind = errors.New("ingest: unknown frame kind")
	ErrShortFrame  = errors.New("ingest: short frame")
)

// Frame is one decoded bridge message. Packet is set for packet kinds,
// EventType/Seconds/Text for system log lines and WorldID for world updates.
type Frame struct {
	Kind      Kind
	Packet    []byte
	EventType uint32
	Seconds   uint32
	Text      string
	WorldID   uint32
}

func DecodeFrame(b []byte) (Frame, error) {
	if len(b) == 0 {
		return Frame{}, ErrEmptyFrame
	}
	f := Frame{Kind: Kind(b[0])}
	body := b[1:]
	switch f.Kind {
	case KindPacketSent, KindPacketReceived:
		f.Packet = append([]byte(nil), body...)
	case KindSystemLog:
		if len(body) < 8 {
			return Frame{}, fmt.Errorf("%w: %s len=%d", ErrShortFrame, f.Kind, len(b))
		}
		f.EventType = binary.LittleEndian.Uint32(body[0:4])
		f.Seconds = binary.LittleEndian.Uint32(body[4:8])
		f.Text = string(body[8:])
	case KindWorldID:
		if len(body) < 4 {
			return Frame{}, fmt.Errorf("%w: %s len=%d", ErrShortFrame, f.Kind, len(b))
		}
		f.WorldID = binary.LittleEndian.Uint32(body[0:4])
	default:
		return Frame{}, fmt.Errorf("%w: %d", ErrUnknownKind, b[0])
	}
	return f, nil
}

// Encode is the bridge side of DecodeFrame.
func (f Frame) Encode() []byte {
	switch f.Kind {
	case KindSystemLog:
		b := make([]byte, 9, 9+len(f.Text))
		b[0] = byte(f.Kind)
		binary.LittleEndian.PutUint32(b[1:5], f.EventType)
		binary.LittleEndian.PutUint32(b[5:9], f.Seconds)
		return append(b, f.Text...)
	case KindWorldID:
		b := make([]byte, 5)
		b[0] = byte(f.Kind)
		binary.LittleEndian.PutUint32(b[1:5], f.WorldID)
		return b
	default:
		return append([]byte{byte(f.Kind)}, f.Packet...)
	}
}
