package codec

import (
	"errors"
	"fmt"

	"github.com/danmuck/gardenctl/internal/observability"
	"github.com/danmuck/gardenctl/internal/protocol"
	"github.com/danmuck/gardenctl/internal/protocol/frame"
	"github.com/danmuck/gardenctl/internal/protocol/opcode"
	"github.com/danmuck/gardenctl/internal/protocol/packets"
	"github.com/rs/zerolog/log"
)

// MalformedError wraps a framing failure. It matches protocol.ErrMalformedPacket.
type MalformedError struct {
	Direction protocol.Direction
	Len       int
	Err       error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("codec: malformed %s packet len=%d: %v", e.Direction, e.Len, e.Err)
}

func (e *MalformedError) Unwrap() []error {
	return []error{protocol.ErrMalformedPacket, e.Err}
}

// Decoder turns raw segments of one direction into records using its own
// opcode table.
type Decoder struct {
	table *opcode.Table
}

func NewDecoder(dir protocol.Direction) *Decoder {
	return &Decoder{table: opcode.NewTable(dir)}
}

func (d *Decoder) Direction() protocol.Direction { return d.table.Direction() }

func (d *Decoder) Table() *opcode.Table { return d.table }

// SetOpcodes replaces the table. Entries naming unregistered records are
// dropped and logged.
func (d *Decoder) SetOpcodes(entries []opcode.Entry) {
	kept := make([]opcode.Entry, 0, len(entries))
	for _, e := range entries {
		if _, ok := packets.Lookup(e.Name); !ok {
			log.Warn().Msgf("codec.SetOpcodes unknown record dir=%s name=%q code=%d", d.Direction(), e.Name, e.Code)
			continue
		}
		kept = append(kept, e)
	}
	d.table.Replace(kept)
	log.Debug().Msgf("codec.SetOpcodes dir=%s entries=%d", d.Direction(), len(kept))
}

// Decode returns nil without error for non-IPC segments, unregistered
// opcodes and bodies whose length does not match the registered record.
// Only malformed framing produces an error.
func (d *Decoder) Decode(buf []byte) (packets.Packet, error) {
	ipc, ok, err := d.ipc(buf)
	if err != nil || !ok {
		return nil, err
	}
	name, ok := d.table.Name(ipc.Header.Opcode)
	if !ok {
		return nil, nil
	}
	spec, ok := packets.Lookup(name)
	if !ok {
		return nil, nil
	}
	p, err := decodeBody(spec, ipc)
	if errors.Is(err, protocol.ErrSizeMismatch) {
		observability.RecordPacketDropped(d.Direction().String(), "size")
		return nil, nil
	}
	return p, err
}

// DecodeAs decodes buf as the given record regardless of the opcode table.
// Used while discovering opcodes.
func (d *Decoder) DecodeAs(spec packets.Spec, buf []byte) (packets.Packet, error) {
	ipc, ok, err := d.ipc(buf)
	if err != nil || !ok {
		return nil, err
	}
	p, err := decodeBody(spec, ipc)
	if errors.Is(err, protocol.ErrSizeMismatch) {
		return nil, nil
	}
	return p, err
}

func (d *Decoder) ipc(buf []byte) (frame.IPC, bool, error) {
	seg, err := frame.DecodeSegment(buf)
	if err != nil {
		return frame.IPC{}, false, &MalformedError{Direction: d.Direction(), Len: len(buf), Err: err}
	}
	if !seg.IsIPC() {
		return frame.IPC{}, false, nil
	}
	ipc, err := frame.DecodeIPC(seg.Payload)
	if err != nil {
		return frame.IPC{}, false, &MalformedError{Direction: d.Direction(), Len: len(buf), Err: err}
	}
	return ipc, true, nil
}

func decodeBody(spec packets.Spec, ipc frame.IPC) (packets.Packet, error) {
	p, err := spec.Decode(ipc.Header, ipc.Body)
	if errors.Is(err, protocol.ErrSizeMismatch) {
		log.Trace().Msgf("codec.Decode size mismatch name=%s opcode=%d len=%d", spec.Name, ipc.Header.Opcode, len(ipc.Body))
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
