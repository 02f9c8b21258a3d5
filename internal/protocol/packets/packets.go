package packets

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/danmuck/gardenctl/internal/protocol"
	"github.com/danmuck/gardenctl/internal/protocol/frame"
)

// Names used by opcode definition files.
const (
	NameItemInfo            = "ItemInfo"
	NameUpdateInventorySlot = "UpdateInventorySlot"
	NameObjectSpawn         = "ObjectSpawn"
	NameTargetBinding       = "GuessTargetBinding"
	NameTargetConfirm       = "GuessTargetConfirm"
	NameTargetAction        = "GuessTargetAction"
	NameTargetAction16      = "GuessTargetAction16"
	NameTargetAction32      = "GuessTargetAction32"
	NameZoneInto            = "GuessZoneInto"
	NameObjectExternalData  = "ObjectExternalData"
	NameInventoryModify     = "InventoryModify"
	NameActorControlSelf    = "ActorControlSelf"
	NameEventStart          = "EventStart"
)

// Body sizes, excluding the ipc header.
const (
	ItemInfoSize           = 64
	ObjectSpawnSize        = 64
	TargetBindingSize      = 16
	TargetConfirmSize      = 24
	TargetActionSize       = 16
	TargetAction16Size     = 24
	TargetAction32Size     = 40
	ZoneIntoSize           = 64
	ObjectExternalDataSize = 48
	InventoryModifySize    = 48
	ActorControlSelfSize   = 32
	EventStartSize         = 24
)

var le = binary.LittleEndian

// Packet is any decoded record.
type Packet interface {
	Name() string
	IPC() frame.IPCHeader
}

// Base carries the ipc header every record was decoded from.
type Base struct {
	Header frame.IPCHeader
}

func (b Base) IPC() frame.IPCHeader { return b.Header }

func (b Base) Timestamp() uint32 { return b.Header.Timestamp }

func checkSize(name string, want int, body []byte) error {
	if len(body) != want {
		return fmt.Errorf("%w: %s want=%d got=%d", protocol.ErrSizeMismatch, name, want, len(body))
	}
	return nil
}

// ItemSlot is the inventory record shared by ItemInfo and UpdateInventorySlot.
type ItemSlot struct {
	ContainerSequence uint32
	ContainerID       uint16
	Slot              uint16
	Quantity          uint32
	CatalogID         uint32
	ReservedFlag      uint32
	SignatureID       uint64
	HQ                uint8
	Condition         uint16
	SpiritBond        uint16
	Stain             uint16
	GlamourCatalogID  uint32
	Materia           [5]uint16
	Buffers           [5]uint8
}

func (s ItemSlot) Key() ItemKey {
	return ItemKey{Container: s.ContainerID, Slot: s.Slot}
}

func decodeItemSlot(b []byte) ItemSlot {
	s := ItemSlot{
		ContainerSequence: le.Uint32(b[0:4]),
		ContainerID:       le.Uint16(b[8:10]),
		Slot:              le.Uint16(b[10:12]),
		Quantity:          le.Uint32(b[12:16]),
		CatalogID:         le.Uint32(b[16:20]),
		ReservedFlag:      le.Uint32(b[20:24]),
		SignatureID:       le.Uint64(b[24:32]),
		HQ:                b[32],
		Condition:         le.Uint16(b[34:36]),
		SpiritBond:        le.Uint16(b[36:38]),
		Stain:             le.Uint16(b[38:40]),
		GlamourCatalogID:  le.Uint32(b[40:44]),
	}
	for i := range s.Materia {
		s.Materia[i] = le.Uint16(b[44+i*2:])
	}
	copy(s.Buffers[:], b[54:59])
	return s
}

type ItemInfo struct {
	Base
	Item ItemSlot
}

func (ItemInfo) Name() string { return NameItemInfo }

func DecodeItemInfo(h frame.IPCHeader, body []byte) (ItemInfo, error) {
	if err := checkSize(NameItemInfo, ItemInfoSize, body); err != nil {
		return ItemInfo{}, err
	}
	return ItemInfo{Base: Base{Header: h}, Item: decodeItemSlot(body)}, nil
}

type UpdateInventorySlot struct {
	Base
	Item ItemSlot
}

func (UpdateInventorySlot) Name() string { return NameUpdateInventorySlot }

func DecodeUpdateInventorySlot(h frame.IPCHeader, body []byte) (UpdateInventorySlot, error) {
	if err := checkSize(NameUpdateInventorySlot, ItemInfoSize, body); err != nil {
		return UpdateInventorySlot{}, err
	}
	return UpdateInventorySlot{Base: Base{Header: h}, Item: decodeItemSlot(body)}, nil
}

// HousingLink packs furniture placement: byte0 object index, byte1 land id,
// byte3 sub-index.
type HousingLink uint32

func (l HousingLink) Index() uint32    { return uint32(l) & 0xFF }
func (l HousingLink) LandID() uint16   { return uint16((uint32(l) >> 8) & 0xFF) }
func (l HousingLink) SubIndex() uint32 { return (uint32(l) >> 24) & 0xFF }

// TableKey is the external-data lookup key.
func (l HousingLink) TableKey() uint16 { return uint16(uint32(l) & 0xFFFF) }

type ObjectSpawn struct {
	Base
	SpawnIndex  uint8
	ObjKind     uint8
	State       uint8
	ObjID       uint32
	ActorID     uint32
	LevelID     uint32
	SomeActorID uint32
	GimmickID   uint32
	Scale       float32
	Rotation    uint16
	Flag        uint16
	HousingLink HousingLink
	Position    [3]float32
}

func (ObjectSpawn) Name() string { return NameObjectSpawn }

func DecodeObjectSpawn(h frame.IPCHeader, body []byte) (ObjectSpawn, error) {
	if err := checkSize(NameObjectSpawn, ObjectSpawnSize, body); err != nil {
		return ObjectSpawn{}, err
	}
	return ObjectSpawn{
		Base:        Base{Header: h},
		SpawnIndex:  body[0],
		ObjKind:     body[1],
		State:       body[2],
		ObjID:       le.Uint32(body[4:8]),
		ActorID:     le.Uint32(body[8:12]),
		LevelID:     le.Uint32(body[12:16]),
		SomeActorID: le.Uint32(body[20:24]),
		GimmickID:   le.Uint32(body[24:28]),
		Scale:       math.Float32frombits(le.Uint32(body[28:32])),
		Rotation:    le.Uint16(body[34:36]),
		Flag:        le.Uint16(body[40:42]),
		HousingLink: HousingLink(le.Uint32(body[44:48])),
		Position: [3]float32{
			math.Float32frombits(le.Uint32(body[48:52])),
			math.Float32frombits(le.Uint32(body[52:56])),
			math.Float32frombits(le.Uint32(body[56:60])),
		},
	}, nil
}

type TargetBinding struct {
	Base
	ActorID  uint32
	Unknown1 uint32
	TargetID uint32
	Unknown2 uint32
}

func (TargetBinding) Name() string { return NameTargetBinding }

func DecodeTargetBinding(h frame.IPCHeader, body []byte) (TargetBinding, error) {
	if err := checkSize(NameTargetBinding, TargetBindingSize, body); err != nil {
		return TargetBinding{}, err
	}
	return TargetBinding{
		Base:     Base{Header: h},
		ActorID:  le.Uint32(body[0:4]),
		Unknown1: le.Uint32(body[4:8]),
		TargetID: le.Uint32(body[8:12]),
		Unknown2: le.Uint32(body[12:16]),
	}, nil
}

// TargetConfirm is the server acknowledging a target selection; it is the
// only source of the targetId to actorId binding.
type TargetConfirm struct {
	Base
	ActorID  uint32
	Unknown1 uint32
	TargetID uint32
	Unknown  [3]uint32
}

func (TargetConfirm) Name() string { return NameTargetConfirm }

func DecodeTargetConfirm(h frame.IPCHeader, body []byte) (TargetConfirm, error) {
	if err := checkSize(NameTargetConfirm, TargetConfirmSize, body); err != nil {
		return TargetConfirm{}, err
	}
	return TargetConfirm{
		Base:     Base{Header: h},
		ActorID:  le.Uint32(body[0:4]),
		Unknown1: le.Uint32(body[4:8]),
		TargetID: le.Uint32(body[8:12]),
		Unknown:  [3]uint32{le.Uint32(body[12:16]), le.Uint32(body[16:20]), le.Uint32(body[20:24])},
	}, nil
}

// GenericInteractFlag marks a garden interaction in the high half of Flags.
const GenericInteractFlag = 0x0100

type TargetAction struct {
	Base
	TargetID  uint32
	Flags     uint32
	Operation uint32
}

func (TargetAction) Name() string { return NameTargetAction }

func (a TargetAction) IsGenericInteract() bool {
	return a.Flags>>16 == GenericInteractFlag
}

func DecodeTargetAction(h frame.IPCHeader, body []byte) (TargetAction, error) {
	if err := checkSize(NameTargetAction, TargetActionSize, body); err != nil {
		return TargetAction{}, err
	}
	return TargetAction{
		Base:      Base{Header: h},
		TargetID:  le.Uint32(body[0:4]),
		Flags:     le.Uint32(body[4:8]),
		Operation: le.Uint32(body[8:12]),
	}, nil
}

// TargetAction16 carries a 16-byte parameter block; fertilizing uses it.
type TargetAction16 struct {
	Base
	TargetID uint32
	Unknown1 uint32
	Param    [16]byte
}

func (TargetAction16) Name() string { return NameTargetAction16 }

func DecodeTargetAction16(h frame.IPCHeader, body []byte) (TargetAction16, error) {
	if err := checkSize(NameTargetAction16, TargetAction16Size, body); err != nil {
		return TargetAction16{}, err
	}
	a := TargetAction16{
		Base:     Base{Header: h},
		TargetID: le.Uint32(body[0:4]),
		Unknown1: le.Uint32(body[4:8]),
	}
	copy(a.Param[:], body[8:24])
	return a, nil
}

// TargetAction32 carries a 32-byte parameter block; sowing uses it.
type TargetAction32 struct {
	Base
	TargetID uint32
	Unknown1 uint32
	Param    [32]byte
}

func (TargetAction32) Name() string { return NameTargetAction32 }

func DecodeTargetAction32(h frame.IPCHeader, body []byte) (TargetAction32, error) {
	if err := checkSize(NameTargetAction32, TargetAction32Size, body); err != nil {
		return TargetAction32{}, err
	}
	a := TargetAction32{
		Base:     Base{Header: h},
		TargetID: le.Uint32(body[0:4]),
		Unknown1: le.Uint32(body[4:8]),
	}
	copy(a.Param[:], body[8:40])
	return a, nil
}

type ZoneInto struct {
	Base
	Idents     [4]LandIdent
	ServerName [32]byte
}

func (ZoneInto) Name() string { return NameZoneInto }

func (z ZoneInto) Area() LandIdent  { return z.Idents[1] }
func (z ZoneInto) House() LandIdent { return z.Idents[2] }

// Server returns the NUL-terminated server name.
func (z ZoneInto) Server() string {
	if i := bytes.IndexByte(z.ServerName[:], 0); i >= 0 {
		return string(z.ServerName[:i])
	}
	return string(z.ServerName[:])
}

func DecodeZoneInto(h frame.IPCHeader, body []byte) (ZoneInto, error) {
	if err := checkSize(NameZoneInto, ZoneIntoSize, body); err != nil {
		return ZoneInto{}, err
	}
	z := ZoneInto{Base: Base{Header: h}}
	for i := range z.Idents {
		z.Idents[i] = decodeLandIdent(body[i*8 : i*8+8])
	}
	copy(z.ServerName[:], body[32:64])
	return z, nil
}

type ObjectExternalData struct {
	Base
	HousingLink HousingLink
	Data        [44]byte
}

func (ObjectExternalData) Name() string { return NameObjectExternalData }

func DecodeObjectExternalData(h frame.IPCHeader, body []byte) (ObjectExternalData, error) {
	if err := checkSize(NameObjectExternalData, ObjectExternalDataSize, body); err != nil {
		return ObjectExternalData{}, err
	}
	d := ObjectExternalData{
		Base:        Base{Header: h},
		HousingLink: HousingLink(le.Uint32(body[0:4])),
	}
	copy(d.Data[:], body[4:48])
	return d, nil
}

type InventoryModify struct {
	Base
	Sequence      uint32
	Action        uint16
	FromContainer uint32
	FromSlot      uint16
	FromQuantity  uint32
	ToContainer   uint32
	ToSlot        uint16
	ToQuantity    uint32
}

func (InventoryModify) Name() string { return NameInventoryModify }

func DecodeInventoryModify(h frame.IPCHeader, body []byte) (InventoryModify, error) {
	if err := checkSize(NameInventoryModify, InventoryModifySize, body); err != nil {
		return InventoryModify{}, err
	}
	return InventoryModify{
		Base:          Base{Header: h},
		Sequence:      le.Uint32(body[0:4]),
		Action:        le.Uint16(body[4:6]),
		FromContainer: le.Uint32(body[12:16]),
		FromSlot:      le.Uint16(body[16:18]),
		FromQuantity:  le.Uint32(body[20:24]),
		ToContainer:   le.Uint32(body[32:36]),
		ToSlot:        le.Uint16(body[36:38]),
		ToQuantity:    le.Uint32(body[40:44]),
	}, nil
}

// Actor control categories the tracker cares about.
const (
	ActorControlUpdateRestedExp       = 0x18
	ActorControlUpdateGardeningState  = 0x3fc
	ActorControlSetHarvestResult      = 0x3fd
	ActorControlUpdateGardeningState2 = 0x3fe
)

type ActorControlSelf struct {
	Base
	Category uint16
	Params   [7]uint32
}

func (ActorControlSelf) Name() string { return NameActorControlSelf }

func DecodeActorControlSelf(h frame.IPCHeader, body []byte) (ActorControlSelf, error) {
	if err := checkSize(NameActorControlSelf, ActorControlSelfSize, body); err != nil {
		return ActorControlSelf{}, err
	}
	a := ActorControlSelf{
		Base:     Base{Header: h},
		Category: le.Uint16(body[0:2]),
	}
	for i := range a.Params {
		a.Params[i] = le.Uint32(body[4+i*4:])
	}
	return a, nil
}

type EventStart struct {
	Base
	ActorID  uint32
	TargetID uint32
	Param1   uint8
	Param2   uint8
	Param3   uint32
}

func (EventStart) Name() string { return NameEventStart }

func DecodeEventStart(h frame.IPCHeader, body []byte) (EventStart, error) {
	if err := checkSize(NameEventStart, EventStartSize, body); err != nil {
		return EventStart{}, err
	}
	return EventStart{
		Base:     Base{Header: h},
		ActorID:  le.Uint32(body[0:4]),
		TargetID: le.Uint32(body[8:12]),
		Param1:   body[12],
		Param2:   body[13],
		Param3:   le.Uint32(body[16:20]),
	}, nil
}
