package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	SegmentHeaderLen = 16
	IPCHeaderLen     = 16

	SegmentTypeIPC uint16 = 3
)

var (
	ErrShortSegment  = errors.New("frame: short segment header")
	ErrSegmentLength = errors.New("frame: segment length out of range")
	ErrShortIPC      = errors.New("frame: short ipc header")
)

// SegmentHeader is the outer framing unit of the observed stream.
type SegmentHeader struct {
	Size   uint32
	Source uint32
	Target uint32
	Type   uint16
}

// Segment is one complete segment. Payload never aliases the decoded buffer.
type Segment struct {
	Header  SegmentHeader
	Payload []byte
}

func (s Segment) IsIPC() bool {
	return s.Header.Type == SegmentTypeIPC
}

// IPCHeader precedes every type-specific body inside an IPC segment.
type IPCHeader struct {
	Reserved  uint16
	Opcode    uint16
	ServerID  uint16
	Timestamp uint32
}

// IPC is a decoded IPC record: header plus a copied body.
type IPC struct {
	Header IPCHeader
	Body   []byte
}

func DecodeSegmentHeader(b []byte) (SegmentHeader, error) {
	if len(b) < SegmentHeaderLen {
		return SegmentHeader{}, ErrShortSegment
	}
	return SegmentHeader{
		Size:   binary.LittleEndian.Uint32(b[0:4]),
		Source: binary.LittleEndian.Uint32(b[4:8]),
		Target: binary.LittleEndian.Uint32(b[8:12]),
		Type:   binary.LittleEndian.Uint16(b[12:14]),
	}, nil
}

// DecodeSegment reads one segment. The size field bounds the payload; a size
// smaller than the header or larger than the buffer is rejected.
func DecodeSegment(b []byte) (Segment, error) {
	h, err := DecodeSegmentHeader(b)
	if err != nil {
		return Segment{}, err
	}
	if h.Size < SegmentHeaderLen || int(h.Size) > len(b) {
		return Segment{}, fmt.Errorf("%w: size=%d buffer=%d", ErrSegmentLength, h.Size, len(b))
	}
	payload := make([]byte, int(h.Size)-SegmentHeaderLen)
	copy(payload, b[SegmentHeaderLen:h.Size])
	return Segment{Header: h, Payload: payload}, nil
}

func DecodeIPCHeader(b []byte) (IPCHeader, error) {
	if len(b) < IPCHeaderLen {
		return IPCHeader{}, ErrShortIPC
	}
	return IPCHeader{
		Reserved:  binary.LittleEndian.Uint16(b[0:2]),
		Opcode:    binary.LittleEndian.Uint16(b[2:4]),
		ServerID:  binary.LittleEndian.Uint16(b[6:8]),
		Timestamp: binary.LittleEndian.Uint32(b[8:12]),
	}, nil
}

func DecodeIPC(payload []byte) (IPC, error) {
	h, err := DecodeIPCHeader(payload)
	if err != nil {
		return IPC{}, err
	}
	body := make([]byte, len(payload)-IPCHeaderLen)
	copy(body, payload[IPCHeaderLen:])
	return IPC{Header: h, Body: body}, nil
}

func EncodeSegmentHeader(h SegmentHeader) []byte {
	buf := make([]byte, SegmentHeaderLen)
	binary.LittleEndian.PutUint32(buf[0:4], h.Size)
	binary.LittleEndian.PutUint32(buf[4:8], h.Source)
	binary.LittleEndian.PutUint32(buf[8:12], h.Target)
	binary.LittleEndian.PutUint16(buf[12:14], h.Type)
	return buf
}

// EncodeSegment writes header and payload, deriving Size from the payload.
func EncodeSegment(h SegmentHeader, payload []byte) []byte {
	h.Size = uint32(SegmentHeaderLen + len(payload))
	out := EncodeSegmentHeader(h)
	return append(out, payload...)
}

func EncodeIPC(h IPCHeader, body []byte) []byte {
	buf := make([]byte, IPCHeaderLen, IPCHeaderLen+len(body))
	binary.LittleEndian.PutUint16(buf[0:2], h.Reserved)
	binary.LittleEndian.PutUint16(buf[2:4], h.Opcode)
	binary.LittleEndian.PutUint16(buf[6:8], h.ServerID)
	binary.LittleEndian.PutUint32(buf[8:12], h.Timestamp)
	return append(buf, body...)
}

// BuildIPCSegment wraps a body into a full IPC segment as the host delivers it.
func BuildIPCSegment(opcode uint16, timestamp uint32, body []byte) []byte {
	ipc := EncodeIPC(IPCHeader{Opcode: opcode, Timestamp: timestamp}, body)
	return EncodeSegment(SegmentHeader{Type: SegmentTypeIPC}, ipc)
}
