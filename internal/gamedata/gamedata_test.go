package gamedata

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/gardenctl/internal/protocol/packets"
	"github.com/danmuck/gardenctl/internal/testutil/testlog"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadMixedYAMLAndJSON(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	writeFile(t, dir, "soils.yaml", "- {id: 10, name: Loam}\n")
	writeFile(t, dir, "fertilizers.json", `[{"id": 7767, "name": "Fishmeal"}]`)
	writeFile(t, dir, "seeds.yaml", "- index: 4\n  seed: {id: 600, name: Bean Seeds}\n  item: {id: 601, name: Bean}\n")
	writeFile(t, dir, "seeds_time.json", `[{"index": 4, "grow_time": 72, "wilt_time": 48}, {"index": 9, "grow_time": 1}]`)

	d, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if d.SoilName(10) != "Loam" || d.FertilizerName(7767) != "Fishmeal" {
		t.Fatalf("names not loaded: soil=%q fert=%q", d.SoilName(10), d.FertilizerName(7767))
	}
	if d.SeedIDByIndex(4) != 600 || d.SeedIDByIndex(5) != 0 {
		t.Fatalf("seed index mapping wrong")
	}
	if d.GrowSeconds(600) != 72*3600 || d.WiltSeconds(600) != 48*3600 {
		t.Fatalf("seed times wrong: grow=%d wilt=%d", d.GrowSeconds(600), d.WiltSeconds(600))
	}
	if p, ok := d.SeedProduct(600); !ok || p != 601 {
		t.Fatalf("seed product=%d ok=%v", p, ok)
	}
	if d.Counts()["seed_times"] != 1 {
		t.Fatalf("orphan seed time should be dropped: %v", d.Counts())
	}
}

func TestLoadMissingTablesKeepsBuiltins(t *testing.T) {
	testlog.Start(t)
	d, err := Load(t.TempDir())
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
	if d == nil {
		t.Fatalf("dataset must be usable after a failed load")
	}
	if !d.IsGarden(197051) || d.SeedName(1) != "Unknown Seed(1)" {
		t.Fatalf("builtins missing or unknown name format changed")
	}
}

func TestShippedDataLoads(t *testing.T) {
	d, err := Load(filepath.Join("..", "..", "data"))
	if err != nil {
		t.Fatalf("load shipped data: %v", err)
	}
	if d.FertilizerName(7767) != "Fishmeal" {
		t.Fatalf("fishmeal missing from shipped data")
	}
}

func TestGardenKindTable(t *testing.T) {
	d := Empty()
	for _, id := range []uint32{197051, 197052, 197053} {
		if k, _ := d.GardenKind(id); k != KindPot {
			t.Fatalf("%d: expected pot, got %s", id, k)
		}
	}
	for _, id := range []uint32{2003757, 2008701, 2008708} {
		if k, _ := d.GardenKind(id); k != KindRidge {
			t.Fatalf("%d: expected ridge, got %s", id, k)
		}
	}
	if k, _ := d.GardenKind(2008709); k != KindNone {
		t.Fatalf("unexpected kind for non-garden object: %s", k)
	}
}

func TestZoneName(t *testing.T) {
	d := Empty()
	cases := []struct {
		ident  packets.LandIdent
		indoor bool
		want   string
	}{
		{packets.LandIdent{MapID: 0x153, WardNum: 3, LandID: 4}, false, "Mist Ward 3"},
		{packets.LandIdent{MapID: 0x153, WardNum: 3, LandID: 4}, true, "Mist Ward 3 Plot 5"},
		{packets.LandIdent{MapID: 0x281, WardNum: 2 | 7<<6, LandID: 0x80}, true, "Shirogane Ward 2 Kobai Goten 1 Room 7"},
		{packets.LandIdent{MapID: 0x154, WardNum: 1, LandID: 0x81}, true, "The Lavender Beds Ward 1 Lily Hills 2 Lobby"},
		{packets.LandIdent{MapID: 0x999}, true, "Unknown Zone"},
	}
	for _, c := range cases {
		if got := d.ZoneName(c.ident, c.indoor); got != c.want {
			t.Fatalf("ZoneName(%v,%v)=%q want %q", c.ident, c.indoor, got, c.want)
		}
	}
}

func TestGardenNamePos(t *testing.T) {
	d := Empty()
	if got := d.GardenNamePos(197052, 2, 5); got != "Glade Flowerpot(3)" {
		t.Fatalf("pot name=%q", got)
	}
	if got := d.GardenNamePos(2003757, 0, 7); got != "Garden Patch(1,8)" {
		t.Fatalf("ridge name=%q", got)
	}
	if got := d.GardenNamePos(1, 0, 0); got != "Unknown(1,1)" {
		t.Fatalf("unknown name=%q", got)
	}
}

func TestSourceReloadSwaps(t *testing.T) {
	dir := t.TempDir()
	src := NewSource(nil)
	before := src.Get()

	writeFile(t, dir, "soils.yaml", "- {id: 1, name: Clay}\n")
	_ = src.Reload(dir)
	if src.Get() == before {
		t.Fatalf("reload did not swap dataset")
	}
	if src.Get().SoilName(1) != "Clay" {
		t.Fatalf("reloaded dataset missing soil")
	}
	if before.SoilName(1) == "Clay" {
		t.Fatalf("previous dataset was mutated")
	}
}
