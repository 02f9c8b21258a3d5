package actlog

import (
	"strings"
	"testing"
	"time"

	"github.com/danmuck/gardenctl/internal/gamedata"
	"github.com/danmuck/gardenctl/internal/garden"
	"github.com/danmuck/gardenctl/internal/protocol/packets"
	"github.com/danmuck/gardenctl/internal/testutil/testlog"
)

func sampleData() *gamedata.Source {
	return gamedata.NewSource(gamedata.New(gamedata.Tables{
		Soils:       []gamedata.Item{{ID: 10, Name: "Grade 1 Thanalan Topsoil"}},
		Fertilizers: []gamedata.Item{{ID: 7767, Name: "Fishmeal"}},
		Seeds:       []gamedata.SeedInfo{{Index: 1, Seed: gamedata.Item{ID: 600, Name: "Bean Seeds"}}},
	}))
}

func sowEvent() garden.Event {
	return garden.Event{
		At:        time.Date(2024, 3, 1, 12, 30, 0, 123456700, time.UTC),
		Operation: garden.OpSow,
		Identity: garden.Identity{
			Land:         packets.LandIdent{WorldID: 73, MapID: 0x153, WardNum: 3, LandID: 5},
			ObjectID:     2003757,
			LandIndex:    1,
			LandSubIndex: 2,
		},
		Indoor: false,
		Param1: 10,
		Param2: 600,
	}
}

func TestWriterEmitsBothLines(t *testing.T) {
	testlog.Start(t)
	var lines []string
	w := NewWriter(func(line string) { lines = append(lines, line) }, sampleData())
	w.Emit(sowEvent())

	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	wantRaw := "00|2024-03-01T12:30:00.1234567Z|0|GardeningTracker|00|73|339|3|5|2003757|33554433|0|10|600||"
	if lines[0] != wantRaw {
		t.Fatalf("raw line\n got %q\nwant %q", lines[0], wantRaw)
	}
	wantReadable := "00|2024-03-01T12:30:00.1234567Z|0|GardeningTracker|01|Mist Ward 3 Garden Patch(2,3)|Sow|Grade 1 Thanalan Topsoil|Bean Seeds||"
	if lines[1] != wantReadable {
		t.Fatalf("readable line\n got %q\nwant %q", lines[1], wantReadable)
	}
}

func TestReadableNamesPerOperation(t *testing.T) {
	testlog.Start(t)
	d := sampleData().Get()
	ev := sowEvent()

	ev.Operation = garden.OpFertilize
	ev.Param1, ev.Param2 = 7767, 0
	if got := Readable(ev, d); !strings.HasSuffix(got, "|Fertilize|Fishmeal||") {
		t.Fatalf("fertilize readable=%q", got)
	}

	ev.Operation = garden.OpHarvest
	ev.Param1 = 0
	if got := Readable(ev, d); !strings.HasSuffix(got, "|Harvest|||") {
		t.Fatalf("harvest readable=%q", got)
	}
}

func TestEmitUsesClockWhenEventHasNoTime(t *testing.T) {
	testlog.Start(t)
	var lines []string
	w := NewWriter(func(line string) { lines = append(lines, line) }, sampleData())
	w.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	ev := sowEvent()
	ev.At = time.Time{}
	w.Emit(ev)
	if !strings.HasPrefix(lines[0], "00|2025-01-01T00:00:00.0000000Z|") {
		t.Fatalf("clock not used: %q", lines[0])
	}
}
