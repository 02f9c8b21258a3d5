package packets

import (
	"fmt"

	"github.com/danmuck/gardenctl/internal/protocol"
)

// SentinelWorldID marks a land ident slot that carries no zone.
const SentinelWorldID = 0xFFFF

// LandIdent names a housing zone. Comparable; equality is structural.
type LandIdent struct {
	LandID  uint16 `json:"land_id"`
	WardNum uint16 `json:"ward_num"`
	MapID   uint16 `json:"map_id"`
	WorldID uint16 `json:"world_id"`
}

func (l LandIdent) IsSentinel() bool { return l.WorldID == SentinelWorldID }

func (l LandIdent) String() string {
	return fmt.Sprintf("world=%d map=0x%x ward=%d land=%d", l.WorldID, l.MapID, l.WardNum, l.LandID)
}

func decodeLandIdent(b []byte) LandIdent {
	return LandIdent{
		LandID:  le.Uint16(b[0:2]),
		WardNum: le.Uint16(b[2:4]),
		MapID:   le.Uint16(b[4:6]),
		WorldID: le.Uint16(b[6:8]),
	}
}

// ItemRef addresses an inventory slot as sent in action parameters.
type ItemRef struct {
	Container uint32
	Slot      uint32
}

// Key narrows the reference to the slot-table key.
func (r ItemRef) Key() ItemKey {
	return ItemKey{Container: uint16(r.Container), Slot: uint16(r.Slot)}
}

func (r ItemRef) String() string { return fmt.Sprintf("(%d, %d)", r.Container, r.Slot) }

// ItemKey is the slot-table key.
type ItemKey struct {
	Container uint16
	Slot      uint16
}

func (k ItemKey) String() string { return fmt.Sprintf("(%d, %d)", k.Container, k.Slot) }

func decodeItemRef(b []byte) ItemRef {
	return ItemRef{Container: le.Uint32(b[0:4]), Slot: le.Uint32(b[4:8])}
}

const (
	fertilizeParamSize = 16
	sowParamSize       = 32
	landDataSize       = 24
	landSlots          = 8
)

// FertilizeParam is the TargetAction16 parameter block of a fertilize action.
type FertilizeParam struct {
	Unknown1   uint32
	Fertilizer ItemRef
}

func DecodeFertilizeParam(b []byte) (FertilizeParam, error) {
	if len(b) < fertilizeParamSize {
		return FertilizeParam{}, fmt.Errorf("%w: fertilize param len=%d", protocol.ErrTruncated, len(b))
	}
	return FertilizeParam{Unknown1: le.Uint32(b[0:4]), Fertilizer: decodeItemRef(b[4:12])}, nil
}

// SowParam is the TargetAction32 parameter block of a sow action.
type SowParam struct {
	Unknown1 uint32
	Soil     ItemRef
	Seed     ItemRef
}

func DecodeSowParam(b []byte) (SowParam, error) {
	if len(b) < sowParamSize {
		return SowParam{}, fmt.Errorf("%w: sow param len=%d", protocol.ErrTruncated, len(b))
	}
	return SowParam{
		Unknown1: le.Uint32(b[0:4]),
		Soil:     decodeItemRef(b[4:12]),
		Seed:     decodeItemRef(b[12:20]),
	}, nil
}

// LandData is the garden view of ObjectExternalData: one seed index and one
// growth state per plot.
type LandData struct {
	Seed  [landSlots]uint16
	State [landSlots]uint8
}

func DecodeLandData(b []byte) (LandData, error) {
	if len(b) < landDataSize {
		return LandData{}, fmt.Errorf("%w: land data len=%d", protocol.ErrTruncated, len(b))
	}
	var d LandData
	for i := 0; i < landSlots; i++ {
		d.Seed[i] = le.Uint16(b[i*2:])
	}
	copy(d.State[:], b[16:24])
	return d, nil
}

// HarvestResult is the SetHarvestResult actor control payload.
type HarvestResult struct {
	Result1ID    uint32
	Result1Count uint32
	Result1Seed  uint32
	Result2ID    uint32
	Result2Count uint32
	Result2Seed  uint32
}

func HarvestResultFromParams(p [7]uint32) HarvestResult {
	return HarvestResult{
		Result1ID:    p[0],
		Result1Count: p[1],
		Result1Seed:  p[2],
		Result2ID:    p[3],
		Result2Count: p[4],
		Result2Seed:  p[5],
	}
}
