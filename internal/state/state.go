package state

import (
	"errors"
	"fmt"
	"sync"

	"github.com/danmuck/gardenctl/internal/gamedata"
	"github.com/danmuck/gardenctl/internal/garden"
	"github.com/danmuck/gardenctl/internal/protocol/packets"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoZone        = errors.New("state: current zone unknown")
	ErrUnknownTarget = errors.New("state: target not bound")
	ErrUnknownActor  = errors.New("state: actor not spawned")
	ErrNotGarden     = errors.New("state: object is not plantable")
)

// DefaultInventoryBase is the Discard action code until an opcode file says
// otherwise.
const DefaultInventoryBase uint16 = 320

// InventoryOp is an inventory action relative to the configured base code.
type InventoryOp uint16

const (
	InventoryDiscard InventoryOp = iota
	InventoryMove
	InventorySwap
	InventorySplit
	InventoryMerge
)

var inventoryOpNames = [...]string{"Discard", "Move", "Swap", "Split", "Merge"}

func (o InventoryOp) String() string {
	if int(o) < len(inventoryOpNames) {
		return inventoryOpNames[o]
	}
	return fmt.Sprintf("InventoryOp(%d)", uint16(o))
}

// Zone is where the player currently is. InHouse is set when the zone came
// from a house ident rather than the outdoor area.
type Zone struct {
	Ident   packets.LandIdent `json:"ident"`
	InHouse bool              `json:"in_house"`
}

// Resolved is a target that resolved to a plantable plot.
type Resolved struct {
	Identity    garden.Identity
	Kind        gamedata.Kind
	HousingLink packets.HousingLink
	Indoor      bool
}

// Snapshot reports table sizes and the zone for status output.
type Snapshot struct {
	Actors        int    `json:"actors"`
	Targets       int    `json:"targets"`
	Items         int    `json:"items"`
	ExternalData  int    `json:"external_data"`
	Zone          *Zone  `json:"zone,omitempty"`
	InventoryBase uint16 `json:"inventory_base"`
}

// Store holds the zone-scoped correlation tables. A single lock covers every
// table and the zone, held for the whole of each composite operation.
type Store struct {
	mu      sync.Mutex
	actors  map[uint32]packets.ObjectSpawn
	targets map[uint32]uint32
	items   map[packets.ItemKey]packets.ItemSlot
	extData map[uint16]packets.ObjectExternalData
	zone    *Zone
	invBase uint16
}

func New() *Store {
	s := &Store{invBase: DefaultInventoryBase}
	s.clearLocked()
	return s
}

func (s *Store) clearLocked() {
	s.actors = make(map[uint32]packets.ObjectSpawn)
	s.targets = make(map[uint32]uint32)
	s.items = make(map[packets.ItemKey]packets.ItemSlot)
	s.extData = make(map[uint16]packets.ObjectExternalData)
}

func (s *Store) RecordSpawn(obj packets.ObjectSpawn) {
	s.mu.Lock()
	s.actors[obj.ActorID] = obj
	s.mu.Unlock()
}

// RecordItem indexes an inventory slot by (container, slot), replacing
// whatever was there.
func (s *Store) RecordItem(item packets.ItemSlot) {
	s.mu.Lock()
	s.items[item.Key()] = item
	s.mu.Unlock()
}

func (s *Store) BindTarget(targetID, actorID uint32) {
	s.mu.Lock()
	s.targets[targetID] = actorID
	s.mu.Unlock()
}

func (s *Store) RecordExternalData(ext packets.ObjectExternalData) {
	s.mu.Lock()
	s.extData[ext.HousingLink.TableKey()] = ext
	s.mu.Unlock()
}

func (s *Store) LookupItem(key packets.ItemKey) (packets.ItemSlot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[key]
	return item, ok
}

func (s *Store) SetInventoryBase(code uint16) {
	s.mu.Lock()
	s.invBase = code
	s.mu.Unlock()
	log.Debug().Msgf("state.SetInventoryBase code=%d", code)
}

func (s *Store) InventoryBase() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invBase
}

// ApplyInventoryOp follows items around the slot table. Actions outside the
// five known codes are ignored and reported as false.
func (s *Store) ApplyInventoryOp(m packets.InventoryModify) (InventoryOp, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.Action < s.invBase || m.Action > s.invBase+uint16(InventoryMerge) {
		return 0, false
	}
	op := InventoryOp(m.Action - s.invBase)
	from := packets.ItemKey{Container: uint16(m.FromContainer), Slot: m.FromSlot}
	to := packets.ItemKey{Container: uint16(m.ToContainer), Slot: m.ToSlot}

	switch op {
	case InventoryDiscard:
		delete(s.items, from)
	case InventoryMove:
		item, ok := s.items[from]
		if !ok {
			break
		}
		delete(s.items, from)
		s.items[to] = relocate(item, to)
	case InventorySwap:
		a, okA := s.items[from]
		b, okB := s.items[to]
		delete(s.items, from)
		delete(s.items, to)
		if okA {
			s.items[to] = relocate(a, to)
		}
		if okB {
			s.items[from] = relocate(b, from)
		}
	case InventorySplit:
		item, ok := s.items[from]
		if !ok {
			break
		}
		// splitting off the whole stack or more is a move
		if m.ToQuantity >= m.FromQuantity {
			delete(s.items, from)
			s.items[to] = relocate(item, to)
			break
		}
		item.Quantity = m.FromQuantity - m.ToQuantity
		s.items[from] = item
		dup := relocate(item, to)
		dup.Quantity = m.ToQuantity
		s.items[to] = dup
	case InventoryMerge:
		if item, ok := s.items[to]; ok {
			item.Quantity = m.FromQuantity + m.ToQuantity
			s.items[to] = item
		} else if item, ok := s.items[from]; ok {
			// unknown destination: the source stack is the best record of it
			moved := relocate(item, to)
			moved.Quantity = m.FromQuantity + m.ToQuantity
			s.items[to] = moved
		}
		delete(s.items, from)
	}
	return op, true
}

func relocate(item packets.ItemSlot, key packets.ItemKey) packets.ItemSlot {
	item.ContainerID = key.Container
	item.Slot = key.Slot
	return item
}

// ResolveIdentity walks target to actor to spawn to plantable kind and builds
// the plot identity from the current zone. Ridges take the land id from the
// housing link; pots keep the zone's.
func (s *Store) ResolveIdentity(targetID uint32, d *gamedata.Dataset) (Resolved, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.zone == nil {
		return Resolved{}, ErrNoZone
	}
	actorID, ok := s.targets[targetID]
	if !ok {
		return Resolved{}, fmt.Errorf("%w: target=0x%x", ErrUnknownTarget, targetID)
	}
	obj, ok := s.actors[actorID]
	if !ok {
		return Resolved{}, fmt.Errorf("%w: actor=0x%x", ErrUnknownActor, actorID)
	}
	kind, _ := d.GardenKind(obj.ObjID)
	if kind == gamedata.KindNone {
		return Resolved{}, fmt.Errorf("%w: obj=%d", ErrNotGarden, obj.ObjID)
	}

	land := s.zone.Ident
	if kind == gamedata.KindRidge {
		land.LandID = obj.HousingLink.LandID()
	}
	return Resolved{
		Identity: garden.Identity{
			Land:         land,
			ObjectID:     obj.ObjID,
			LandIndex:    obj.HousingLink.Index(),
			LandSubIndex: obj.HousingLink.SubIndex(),
		},
		Kind:        kind,
		HousingLink: obj.HousingLink,
		Indoor:      s.zone.InHouse,
	}, nil
}

// GuessSeed reads the plot's seed index out of the cached external data and
// maps it to a seed item id. Any miss yields 0.
func (s *Store) GuessSeed(link packets.HousingLink, d *gamedata.Dataset) uint32 {
	s.mu.Lock()
	ext, ok := s.extData[link.TableKey()]
	s.mu.Unlock()
	if !ok {
		return 0
	}
	land, err := packets.DecodeLandData(ext.Data[:])
	if err != nil {
		return 0
	}
	sub := link.SubIndex()
	if sub >= uint32(len(land.Seed)) {
		return 0
	}
	return d.SeedIDByIndex(uint32(land.Seed[sub]))
}

// SwitchZone clears every table and adopts the house ident, else the area
// ident, else no zone. It returns the new zone, nil when unknown.
func (s *Store) SwitchZone(z packets.ZoneInto) *Zone {
	var next *Zone
	switch {
	case !z.House().IsSentinel():
		next = &Zone{Ident: z.House(), InHouse: true}
	case !z.Area().IsSentinel():
		next = &Zone{Ident: z.Area(), InHouse: false}
	}

	s.mu.Lock()
	s.clearLocked()
	s.zone = next
	s.mu.Unlock()
	return copyZone(next)
}

// ZoneFromSystemLog sets an outdoor zone only when none is known yet. Ward
// is the displayed one-based number.
func (s *Store) ZoneFromSystemLog(world uint32, mapID uint16, ward int) (*Zone, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.zone != nil {
		return nil, false
	}
	s.zone = &Zone{
		Ident: packets.LandIdent{
			WorldID: uint16(world),
			MapID:   mapID,
			WardNum: uint16(ward - 1),
		},
	}
	return copyZone(s.zone), true
}

func (s *Store) CurrentZone() (Zone, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.zone == nil {
		return Zone{}, false
	}
	return *s.zone, true
}

// ClearAll empties the correlation tables. The zone is kept.
func (s *Store) ClearAll() {
	s.mu.Lock()
	s.clearLocked()
	s.mu.Unlock()
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Actors:        len(s.actors),
		Targets:       len(s.targets),
		Items:         len(s.items),
		ExternalData:  len(s.extData),
		Zone:          copyZone(s.zone),
		InventoryBase: s.invBase,
	}
}

// Items lists the slot table for diagnostics.
func (s *Store) Items() []packets.ItemSlot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]packets.ItemSlot, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it)
	}
	return out
}

func copyZone(z *Zone) *Zone {
	if z == nil {
		return nil
	}
	c := *z
	return &c
}
