package guide

import (
	"github.com/danmuck/gardenctl/internal/gamedata"
	"github.com/danmuck/gardenctl/internal/protocol/packets"
)

// ProbeEnv is what a probe condition sees. Only the field matching the
// probe's record is populated.
type ProbeEnv struct {
	Opcode uint16

	Zone     packets.ZoneInto
	Ext      packets.ObjectExternalData
	Spawn    packets.ObjectSpawn
	Control  packets.ActorControlSelf
	Item     packets.ItemSlot
	Modify   packets.InventoryModify
	Event    packets.EventStart
	Action   packets.TargetAction
	Action16 packets.TargetAction16
	Action32 packets.TargetAction32

	captured map[string]uint16
	data     *gamedata.Dataset
}

// ServerNameValid accepts letters and digits up to the first NUL and only
// NULs after it.
func (e ProbeEnv) ServerNameValid() bool {
	eof := false
	for _, c := range e.Zone.ServerName {
		if eof {
			if c != 0 {
				return false
			}
			continue
		}
		switch {
		case c == 0:
			eof = true
		case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		default:
			return false
		}
	}
	return true
}

// LandDataValid checks every plot: a planted plot has a known seed index and
// a growth state in 1..10, an empty plot has state 0.
func (e ProbeEnv) LandDataValid() bool {
	land, err := packets.DecodeLandData(e.Ext.Data[:])
	if err != nil {
		return false
	}
	for i := range land.Seed {
		if land.Seed[i] != 0 {
			if land.Seed[i] > maxSeedIndex {
				return false
			}
			if land.State[i] < 1 || land.State[i] > 10 {
				return false
			}
		} else if land.State[i] != 0 {
			return false
		}
	}
	return true
}

const maxSeedIndex = 97

func (e ProbeEnv) IsGarden(objID uint32) bool {
	return e.data != nil && e.data.IsGarden(objID)
}

// ParamsZeroFrom reports whether every actor control param from index i on
// is zero.
func (e ProbeEnv) ParamsZeroFrom(i int) bool {
	for ; i < len(e.Control.Params); i++ {
		if e.Control.Params[i] != 0 {
			return false
		}
	}
	return true
}

// SameAsCaptured reports whether this packet's opcode was already captured
// for the named record.
func (e ProbeEnv) SameAsCaptured(name string) bool {
	code, ok := e.captured[packets.Canonical(name)]
	return ok && code == e.Opcode
}

func (e ProbeEnv) Fertilize() packets.FertilizeParam {
	p, _ := packets.DecodeFertilizeParam(e.Action16.Param[:])
	return p
}

// Action32U32 reads a little-endian u32 from the 32-byte action parameter.
func (e ProbeEnv) Action32U32(off int) uint32 {
	if off < 0 || off+4 > len(e.Action32.Param) {
		return 0
	}
	b := e.Action32.Param[off : off+4]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func newEnv(p packets.Packet, captured map[string]uint16, data *gamedata.Dataset) ProbeEnv {
	env := ProbeEnv{Opcode: p.IPC().Opcode, captured: captured, data: data}
	switch pkt := p.(type) {
	case packets.ZoneInto:
		env.Zone = pkt
	case packets.ObjectExternalData:
		env.Ext = pkt
	case packets.ObjectSpawn:
		env.Spawn = pkt
	case packets.ActorControlSelf:
		env.Control = pkt
	case packets.ItemInfo:
		env.Item = pkt.Item
	case packets.UpdateInventorySlot:
		env.Item = pkt.Item
	case packets.InventoryModify:
		env.Modify = pkt
	case packets.EventStart:
		env.Event = pkt
	case packets.TargetAction:
		env.Action = pkt
	case packets.TargetAction16:
		env.Action16 = pkt
	case packets.TargetAction32:
		env.Action32 = pkt
	}
	return env
}
