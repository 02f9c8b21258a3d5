package state

import (
	"errors"
	"testing"

	"github.com/danmuck/gardenctl/internal/gamedata"
	"github.com/danmuck/gardenctl/internal/protocol/packets"
	"github.com/danmuck/gardenctl/internal/testutil/testlog"
)

var sentinel = packets.LandIdent{LandID: 0xFFFF, WardNum: 0xFFFF, MapID: 0xFFFF, WorldID: packets.SentinelWorldID}

func zoneInto(area, house packets.LandIdent) packets.ZoneInto {
	return packets.ZoneInto{Idents: [4]packets.LandIdent{sentinel, area, house, sentinel}}
}

func testDataset() *gamedata.Dataset {
	return gamedata.New(gamedata.Tables{
		Seeds: []gamedata.SeedInfo{{Index: 3, Seed: gamedata.Item{ID: 600, Name: "Bean Seeds"}}},
	})
}

func seedItem(container, slot uint16, catalog, qty uint32) packets.ItemSlot {
	return packets.ItemSlot{ContainerID: container, Slot: slot, CatalogID: catalog, Quantity: qty}
}

func TestSwitchZonePrefersHouse(t *testing.T) {
	testlog.Start(t)
	s := New()
	area := packets.LandIdent{WorldID: 73, MapID: 0x153, WardNum: 2, LandID: 0xFFFF}
	house := packets.LandIdent{WorldID: 73, MapID: 0x153, WardNum: 2, LandID: 9}

	z := s.SwitchZone(zoneInto(area, house))
	if z == nil || !z.InHouse || z.Ident != house {
		t.Fatalf("house ident not chosen: %+v", z)
	}
	z = s.SwitchZone(zoneInto(area, sentinel))
	if z == nil || z.InHouse || z.Ident != area {
		t.Fatalf("area ident not chosen: %+v", z)
	}
	if z := s.SwitchZone(zoneInto(sentinel, sentinel)); z != nil {
		t.Fatalf("expected unknown zone, got %+v", z)
	}
	if _, ok := s.CurrentZone(); ok {
		t.Fatalf("zone should be unknown")
	}
}

func TestSwitchZoneEmptiesTables(t *testing.T) {
	testlog.Start(t)
	s := New()
	s.RecordSpawn(packets.ObjectSpawn{ActorID: 1, ObjID: 197051})
	s.BindTarget(2, 1)
	s.RecordItem(seedItem(0, 1, 600, 1))
	s.RecordExternalData(packets.ObjectExternalData{HousingLink: 0x0102})

	s.SwitchZone(zoneInto(packets.LandIdent{WorldID: 1}, sentinel))
	snap := s.Snapshot()
	if snap.Actors+snap.Targets+snap.Items+snap.ExternalData != 0 {
		t.Fatalf("tables not cleared: %+v", snap)
	}
	if snap.Zone == nil || snap.Zone.Ident.WorldID != 1 {
		t.Fatalf("zone missing from snapshot: %+v", snap)
	}
}

func TestResolveIdentityPotAndRidge(t *testing.T) {
	testlog.Start(t)
	d := testDataset()
	s := New()
	if _, err := s.ResolveIdentity(1, d); !errors.Is(err, ErrNoZone) {
		t.Fatalf("expected no zone, got %v", err)
	}

	house := packets.LandIdent{WorldID: 73, MapID: 0x153, WardNum: 2, LandID: 9}
	s.SwitchZone(zoneInto(sentinel, house))
	if _, err := s.ResolveIdentity(1, d); !errors.Is(err, ErrUnknownTarget) {
		t.Fatalf("expected unknown target, got %v", err)
	}
	s.BindTarget(1, 100)
	if _, err := s.ResolveIdentity(1, d); !errors.Is(err, ErrUnknownActor) {
		t.Fatalf("expected unknown actor, got %v", err)
	}
	s.RecordSpawn(packets.ObjectSpawn{ActorID: 100, ObjID: 42})
	if _, err := s.ResolveIdentity(1, d); !errors.Is(err, ErrNotGarden) {
		t.Fatalf("expected not garden, got %v", err)
	}

	// pot: keeps the zone land id
	s.RecordSpawn(packets.ObjectSpawn{ActorID: 100, ObjID: 197051, HousingLink: 0x03000502})
	r, err := s.ResolveIdentity(1, d)
	if err != nil {
		t.Fatalf("resolve pot: %v", err)
	}
	if r.Identity.Land.LandID != 9 || r.Identity.LandIndex != 2 || r.Identity.LandSubIndex != 3 || !r.Indoor {
		t.Fatalf("pot identity: %+v", r)
	}

	// ridge: land id from housing link byte 1
	s.BindTarget(2, 200)
	s.RecordSpawn(packets.ObjectSpawn{ActorID: 200, ObjID: 2003757, HousingLink: 0x07000501})
	r, err = s.ResolveIdentity(2, d)
	if err != nil {
		t.Fatalf("resolve ridge: %v", err)
	}
	if r.Identity.Land.LandID != 5 || r.Identity.LandIndex != 1 || r.Identity.LandSubIndex != 7 {
		t.Fatalf("ridge identity: %+v", r)
	}

	// the same plot under a different actor id resolves equal
	s.BindTarget(3, 300)
	s.RecordSpawn(packets.ObjectSpawn{ActorID: 300, ObjID: 2003757, HousingLink: 0x07000501})
	again, _ := s.ResolveIdentity(3, d)
	if again.Identity != r.Identity {
		t.Fatalf("identity differs across actors: %+v vs %+v", again.Identity, r.Identity)
	}
}

func TestGuessSeed(t *testing.T) {
	testlog.Start(t)
	d := testDataset()
	s := New()
	link := packets.HousingLink(0x02000501)
	if s.GuessSeed(link, d) != 0 {
		t.Fatalf("guess without external data must be 0")
	}

	var land packets.LandData
	land.Seed[2] = 3
	land.State[2] = 1
	s.RecordExternalData(packets.ObjectExternalData{HousingLink: 0x0501, Data: land.Bytes()})
	if got := s.GuessSeed(link, d); got != 600 {
		t.Fatalf("guess=%d", got)
	}
	if got := s.GuessSeed(packets.HousingLink(0x01000501), d); got != 0 {
		t.Fatalf("empty slot guess=%d", got)
	}
	if got := s.GuessSeed(packets.HousingLink(0x09000501), d); got != 0 {
		t.Fatalf("out of range sub-index guess=%d", got)
	}
}

func TestInventorySplitAndMerge(t *testing.T) {
	testlog.Start(t)
	s := New()
	s.RecordItem(seedItem(0, 1, 600, 10))

	op, ok := s.ApplyInventoryOp(packets.InventoryModify{
		Action: DefaultInventoryBase + uint16(InventorySplit), FromContainer: 0, FromSlot: 1, FromQuantity: 10,
		ToContainer: 1, ToSlot: 4, ToQuantity: 3,
	})
	if !ok || op != InventorySplit {
		t.Fatalf("split not applied: %v %v", op, ok)
	}
	src, _ := s.LookupItem(packets.ItemKey{Container: 0, Slot: 1})
	dst, _ := s.LookupItem(packets.ItemKey{Container: 1, Slot: 4})
	if src.Quantity != 7 || dst.Quantity != 3 || dst.CatalogID != 600 || dst.ContainerID != 1 || dst.Slot != 4 {
		t.Fatalf("split result src=%+v dst=%+v", src, dst)
	}

	s.ApplyInventoryOp(packets.InventoryModify{
		Action: DefaultInventoryBase + uint16(InventoryMerge), FromContainer: 1, FromSlot: 4, FromQuantity: 3,
		ToContainer: 0, ToSlot: 1, ToQuantity: 7,
	})
	if _, ok := s.LookupItem(packets.ItemKey{Container: 1, Slot: 4}); ok {
		t.Fatalf("merge source not removed")
	}
	if merged, _ := s.LookupItem(packets.ItemKey{Container: 0, Slot: 1}); merged.Quantity != 10 {
		t.Fatalf("merged quantity=%d", merged.Quantity)
	}
}

func TestInventorySplitOversizedIsMove(t *testing.T) {
	testlog.Start(t)
	s := New()
	s.RecordItem(seedItem(0, 1, 600, 3))

	op, ok := s.ApplyInventoryOp(packets.InventoryModify{
		Action: DefaultInventoryBase + uint16(InventorySplit), FromContainer: 0, FromSlot: 1, FromQuantity: 3,
		ToContainer: 1, ToSlot: 4, ToQuantity: 5,
	})
	if !ok || op != InventorySplit {
		t.Fatalf("split not applied: %v %v", op, ok)
	}
	if src, ok := s.LookupItem(packets.ItemKey{Container: 0, Slot: 1}); ok {
		t.Fatalf("source should be gone, got %+v", src)
	}
	dst, ok := s.LookupItem(packets.ItemKey{Container: 1, Slot: 4})
	if !ok || dst.CatalogID != 600 || dst.Quantity != 3 || dst.ContainerID != 1 || dst.Slot != 4 {
		t.Fatalf("destination after oversized split: %+v ok=%v", dst, ok)
	}
}

func TestInventoryMergeIntoUnknownSlot(t *testing.T) {
	testlog.Start(t)
	s := New()
	s.RecordItem(seedItem(0, 1, 7767, 3))

	s.ApplyInventoryOp(packets.InventoryModify{
		Action: DefaultInventoryBase + uint16(InventoryMerge), FromContainer: 0, FromSlot: 1, FromQuantity: 3,
		ToContainer: 0, ToSlot: 2, ToQuantity: 4,
	})
	if _, ok := s.LookupItem(packets.ItemKey{Container: 0, Slot: 1}); ok {
		t.Fatalf("merge source not removed")
	}
	dst, ok := s.LookupItem(packets.ItemKey{Container: 0, Slot: 2})
	if !ok || dst.CatalogID != 7767 || dst.Quantity != 7 || dst.Slot != 2 {
		t.Fatalf("merged stack lost: %+v ok=%v", dst, ok)
	}
}

func TestInventoryMoveSwapDiscard(t *testing.T) {
	testlog.Start(t)
	s := New()
	s.SetInventoryBase(500)
	s.RecordItem(seedItem(0, 0, 1, 1))
	s.RecordItem(seedItem(0, 1, 2, 1))

	s.ApplyInventoryOp(packets.InventoryModify{Action: 501, FromContainer: 0, FromSlot: 0, ToContainer: 2, ToSlot: 5})
	if moved, ok := s.LookupItem(packets.ItemKey{Container: 2, Slot: 5}); !ok || moved.CatalogID != 1 {
		t.Fatalf("move failed")
	}
	if _, ok := s.LookupItem(packets.ItemKey{Container: 0, Slot: 0}); ok {
		t.Fatalf("move left old key")
	}

	s.ApplyInventoryOp(packets.InventoryModify{Action: 502, FromContainer: 2, FromSlot: 5, ToContainer: 0, ToSlot: 1})
	a, _ := s.LookupItem(packets.ItemKey{Container: 2, Slot: 5})
	b, _ := s.LookupItem(packets.ItemKey{Container: 0, Slot: 1})
	if a.CatalogID != 2 || b.CatalogID != 1 || b.Slot != 1 {
		t.Fatalf("swap failed a=%+v b=%+v", a, b)
	}

	s.ApplyInventoryOp(packets.InventoryModify{Action: 500, FromContainer: 0, FromSlot: 1})
	if _, ok := s.LookupItem(packets.ItemKey{Container: 0, Slot: 1}); ok {
		t.Fatalf("discard failed")
	}
	if _, ok := s.ApplyInventoryOp(packets.InventoryModify{Action: 320}); ok {
		t.Fatalf("action below base must be ignored")
	}
}

func TestZoneFromSystemLogOnlyWhenUnknown(t *testing.T) {
	testlog.Start(t)
	s := New()
	z, ok := s.ZoneFromSystemLog(73, 0x153, 5)
	if !ok || z.Ident.WardNum != 4 || z.Ident.WorldID != 73 || z.InHouse {
		t.Fatalf("fallback zone: %+v ok=%v", z, ok)
	}
	if _, ok := s.ZoneFromSystemLog(74, 0x153, 1); ok {
		t.Fatalf("fallback must not replace a known zone")
	}
}
