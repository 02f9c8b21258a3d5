package packets

import (
	"math"

	"github.com/danmuck/gardenctl/internal/protocol/frame"
)

// Body encoders mirror the decoders. Unknown fields are written as zero. They
// back replay tooling and tests that synthesize traffic.

// Segment wraps an encoded body into a full IPC segment.
func Segment(opcode uint16, timestamp uint32, body []byte) []byte {
	return frame.BuildIPCSegment(opcode, timestamp, body)
}

func encodeItemSlot(s ItemSlot) []byte {
	b := make([]byte, ItemInfoSize)
	le.PutUint32(b[0:4], s.ContainerSequence)
	le.PutUint16(b[8:10], s.ContainerID)
	le.PutUint16(b[10:12], s.Slot)
	le.PutUint32(b[12:16], s.Quantity)
	le.PutUint32(b[16:20], s.CatalogID)
	le.PutUint32(b[20:24], s.ReservedFlag)
	le.PutUint64(b[24:32], s.SignatureID)
	b[32] = s.HQ
	le.PutUint16(b[34:36], s.Condition)
	le.PutUint16(b[36:38], s.SpiritBond)
	le.PutUint16(b[38:40], s.Stain)
	le.PutUint32(b[40:44], s.GlamourCatalogID)
	for i, m := range s.Materia {
		le.PutUint16(b[44+i*2:], m)
	}
	copy(b[54:59], s.Buffers[:])
	return b
}

func (p ItemInfo) Body() []byte            { return encodeItemSlot(p.Item) }
func (p UpdateInventorySlot) Body() []byte { return encodeItemSlot(p.Item) }

func (p ObjectSpawn) Body() []byte {
	b := make([]byte, ObjectSpawnSize)
	b[0] = p.SpawnIndex
	b[1] = p.ObjKind
	b[2] = p.State
	le.PutUint32(b[4:8], p.ObjID)
	le.PutUint32(b[8:12], p.ActorID)
	le.PutUint32(b[12:16], p.LevelID)
	le.PutUint32(b[20:24], p.SomeActorID)
	le.PutUint32(b[24:28], p.GimmickID)
	le.PutUint32(b[28:32], math.Float32bits(p.Scale))
	le.PutUint16(b[34:36], p.Rotation)
	le.PutUint16(b[40:42], p.Flag)
	le.PutUint32(b[44:48], uint32(p.HousingLink))
	for i, v := range p.Position {
		le.PutUint32(b[48+i*4:], math.Float32bits(v))
	}
	return b
}

func (p TargetBinding) Body() []byte {
	b := make([]byte, TargetBindingSize)
	le.PutUint32(b[0:4], p.ActorID)
	le.PutUint32(b[4:8], p.Unknown1)
	le.PutUint32(b[8:12], p.TargetID)
	le.PutUint32(b[12:16], p.Unknown2)
	return b
}

func (p TargetConfirm) Body() []byte {
	b := make([]byte, TargetConfirmSize)
	le.PutUint32(b[0:4], p.ActorID)
	le.PutUint32(b[4:8], p.Unknown1)
	le.PutUint32(b[8:12], p.TargetID)
	for i, v := range p.Unknown {
		le.PutUint32(b[12+i*4:], v)
	}
	return b
}

func (p TargetAction) Body() []byte {
	b := make([]byte, TargetActionSize)
	le.PutUint32(b[0:4], p.TargetID)
	le.PutUint32(b[4:8], p.Flags)
	le.PutUint32(b[8:12], p.Operation)
	return b
}

func (p TargetAction16) Body() []byte {
	b := make([]byte, TargetAction16Size)
	le.PutUint32(b[0:4], p.TargetID)
	le.PutUint32(b[4:8], p.Unknown1)
	copy(b[8:], p.Param[:])
	return b
}

func (p TargetAction32) Body() []byte {
	b := make([]byte, TargetAction32Size)
	le.PutUint32(b[0:4], p.TargetID)
	le.PutUint32(b[4:8], p.Unknown1)
	copy(b[8:], p.Param[:])
	return b
}

func (p ZoneInto) Body() []byte {
	b := make([]byte, ZoneIntoSize)
	for i, id := range p.Idents {
		o := i * 8
		le.PutUint16(b[o:], id.LandID)
		le.PutUint16(b[o+2:], id.WardNum)
		le.PutUint16(b[o+4:], id.MapID)
		le.PutUint16(b[o+6:], id.WorldID)
	}
	copy(b[32:], p.ServerName[:])
	return b
}

func (p ObjectExternalData) Body() []byte {
	b := make([]byte, ObjectExternalDataSize)
	le.PutUint32(b[0:4], uint32(p.HousingLink))
	copy(b[4:], p.Data[:])
	return b
}

func (p InventoryModify) Body() []byte {
	b := make([]byte, InventoryModifySize)
	le.PutUint32(b[0:4], p.Sequence)
	le.PutUint16(b[4:6], p.Action)
	le.PutUint32(b[12:16], p.FromContainer)
	le.PutUint16(b[16:18], p.FromSlot)
	le.PutUint32(b[20:24], p.FromQuantity)
	le.PutUint32(b[32:36], p.ToContainer)
	le.PutUint16(b[36:38], p.ToSlot)
	le.PutUint32(b[40:44], p.ToQuantity)
	return b
}

func (p ActorControlSelf) Body() []byte {
	b := make([]byte, ActorControlSelfSize)
	le.PutUint16(b[0:2], p.Category)
	for i, v := range p.Params {
		le.PutUint32(b[4+i*4:], v)
	}
	return b
}

func (p EventStart) Body() []byte {
	b := make([]byte, EventStartSize)
	le.PutUint32(b[0:4], p.ActorID)
	le.PutUint32(b[8:12], p.TargetID)
	b[12] = p.Param1
	b[13] = p.Param2
	le.PutUint32(b[16:20], p.Param3)
	return b
}

// Param encoders.

func (p FertilizeParam) Bytes() [16]byte {
	var b [16]byte
	le.PutUint32(b[0:4], p.Unknown1)
	le.PutUint32(b[4:8], p.Fertilizer.Container)
	le.PutUint32(b[8:12], p.Fertilizer.Slot)
	return b
}

func (p SowParam) Bytes() [32]byte {
	var b [32]byte
	le.PutUint32(b[0:4], p.Unknown1)
	le.PutUint32(b[4:8], p.Soil.Container)
	le.PutUint32(b[8:12], p.Soil.Slot)
	le.PutUint32(b[12:16], p.Seed.Container)
	le.PutUint32(b[16:20], p.Seed.Slot)
	return b
}

func (d LandData) Bytes() [44]byte {
	var b [44]byte
	for i, s := range d.Seed {
		le.PutUint16(b[i*2:], s)
	}
	copy(b[16:24], d.State[:])
	return b
}
