package packets

import (
	"errors"
	"testing"

	"github.com/danmuck/gardenctl/internal/protocol"
	"github.com/danmuck/gardenctl/internal/protocol/frame"
	"github.com/danmuck/gardenctl/internal/testutil/testlog"
)

func TestEverySpecRejectsWrongLength(t *testing.T) {
	testlog.Start(t)

	for _, spec := range Specs() {
		for _, n := range []int{0, spec.Size - 1, spec.Size + 1} {
			p, err := spec.Decode(frame.IPCHeader{}, make([]byte, n))
			if !errors.Is(err, protocol.ErrSizeMismatch) {
				t.Fatalf("%s len=%d: expected ErrSizeMismatch, got %v", spec.Name, n, err)
			}
			if p != nil {
				t.Fatalf("%s len=%d: expected no record on mismatch", spec.Name, n)
			}
		}
		p, err := spec.Decode(frame.IPCHeader{Opcode: 7}, make([]byte, spec.Size))
		if err != nil {
			t.Fatalf("%s exact size: %v", spec.Name, err)
		}
		if p.Name() != spec.Name {
			t.Fatalf("record name mismatch: spec=%s record=%s", spec.Name, p.Name())
		}
		if p.IPC().Opcode != 7 {
			t.Fatalf("%s lost ipc header", spec.Name)
		}
	}
}

func TestItemInfoFixedOffsets(t *testing.T) {
	body := make([]byte, ItemInfoSize)
	le.PutUint16(body[8:], 4000)
	le.PutUint16(body[10:], 12)
	le.PutUint32(body[12:], 99)
	le.PutUint32(body[16:], 7767)
	body[32] = 1

	info, err := DecodeItemInfo(frame.IPCHeader{}, body)
	if err != nil {
		t.Fatalf("decode item info: %v", err)
	}
	if info.Item.ContainerID != 4000 || info.Item.Slot != 12 || info.Item.Quantity != 99 || info.Item.CatalogID != 7767 || info.Item.HQ != 1 {
		t.Fatalf("unexpected item: %+v", info.Item)
	}
	if info.Item.Key() != (ItemKey{Container: 4000, Slot: 12}) {
		t.Fatalf("unexpected key: %v", info.Item.Key())
	}
}

func TestDecodeDoesNotAliasBody(t *testing.T) {
	body := make([]byte, TargetAction32Size)
	body[8] = 0xAB
	act, err := DecodeTargetAction32(frame.IPCHeader{}, body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	body[8] = 0
	if act.Param[0] != 0xAB {
		t.Fatalf("param aliases input body")
	}
}

func TestHousingLinkFields(t *testing.T) {
	link := HousingLink(0x05_00_2A_03)
	if link.Index() != 3 {
		t.Fatalf("index=%d", link.Index())
	}
	if link.LandID() != 0x2A {
		t.Fatalf("land=%d", link.LandID())
	}
	if link.SubIndex() != 5 {
		t.Fatalf("sub=%d", link.SubIndex())
	}
	if link.TableKey() != 0x2A03 {
		t.Fatalf("key=0x%x", link.TableKey())
	}
}

func TestZoneIntoAreaHouseAndServer(t *testing.T) {
	z := ZoneInto{}
	z.Idents[1] = LandIdent{LandID: 1, WardNum: 2, MapID: 0x153, WorldID: 1042}
	z.Idents[2] = LandIdent{WorldID: SentinelWorldID}
	copy(z.ServerName[:], "Tonberry")

	got, err := DecodeZoneInto(frame.IPCHeader{}, z.Body())
	if err != nil {
		t.Fatalf("decode zone: %v", err)
	}
	if got.Area() != z.Idents[1] {
		t.Fatalf("area mismatch: %v", got.Area())
	}
	if !got.House().IsSentinel() {
		t.Fatalf("expected sentinel house ident")
	}
	if got.Server() != "Tonberry" {
		t.Fatalf("server=%q", got.Server())
	}
}

func TestParamViews(t *testing.T) {
	fert := FertilizeParam{Unknown1: 1, Fertilizer: ItemRef{Container: 2, Slot: 17}}
	fb := fert.Bytes()
	gotFert, err := DecodeFertilizeParam(fb[:])
	if err != nil || gotFert != fert {
		t.Fatalf("fertilize param: %+v err=%v", gotFert, err)
	}

	sow := SowParam{Soil: ItemRef{Container: 0, Slot: 4}, Seed: ItemRef{Container: 1, Slot: 9}}
	sb := sow.Bytes()
	gotSow, err := DecodeSowParam(sb[:])
	if err != nil || gotSow != sow {
		t.Fatalf("sow param: %+v err=%v", gotSow, err)
	}
	if gotSow.Seed.Key() != (ItemKey{Container: 1, Slot: 9}) {
		t.Fatalf("seed key: %v", gotSow.Seed.Key())
	}

	if _, err := DecodeLandData(make([]byte, 10)); !errors.Is(err, protocol.ErrTruncated) {
		t.Fatalf("expected ErrTruncated for short land data, got %v", err)
	}
}

func TestLookupAcceptsLegacyExternalDataName(t *testing.T) {
	spec, ok := Lookup("ObjectExteralData")
	if !ok || spec.Name != NameObjectExternalData {
		t.Fatalf("legacy alias not resolved: %+v ok=%v", spec, ok)
	}
	if _, ok := Lookup("NoSuchPacket"); ok {
		t.Fatalf("unexpected spec for unknown name")
	}
}
