package opcode

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/danmuck/gardenctl/internal/protocol"
	"github.com/danmuck/gardenctl/internal/testutil/testlog"
)

const sample = `// InventoryModifyCode: 400
// Version: 6.5

GuessTargetBinding = 0x2bd,
GuessTargetAction = 739,
not a line
// rx
ObjectSpawn = 774,
ObjectExteralData = 0x1f0,
`

func TestParseSplitsDirectionsAndComments(t *testing.T) {
	testlog.Start(t)

	defs, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(defs.Send) != 2 || defs.Send[0] != (Entry{Name: "GuessTargetBinding", Code: 0x2bd}) {
		t.Fatalf("unexpected send entries: %+v", defs.Send)
	}
	if len(defs.Receive) != 2 || defs.Receive[1] != (Entry{Name: "ObjectExternalData", Code: 0x1f0}) {
		t.Fatalf("unexpected receive entries: %+v", defs.Receive)
	}
	code, ok := defs.InventoryModifyCode()
	if !ok || code != 400 {
		t.Fatalf("inventory modify code=%d ok=%v", code, ok)
	}
	if v, ok := defs.Comment("version"); !ok || v != "6.5" {
		t.Fatalf("version comment=%q ok=%v", v, ok)
	}
	if len(defs.Invalid) != 1 || defs.Invalid[0].Line != 6 || !errors.Is(defs.Invalid[0], ErrInvalidLine) {
		t.Fatalf("unexpected invalid lines: %+v", defs.Invalid)
	}
}

func TestWriteLayout(t *testing.T) {
	defs := Definitions{
		Comments: []Comment{{Key: KeyInventoryModifyCode, Value: "320"}},
		Send:     []Entry{{Name: "GuessTargetAction", Code: 10}},
		Receive:  []Entry{{Name: "ItemInfo", Code: 11}},
	}
	var buf bytes.Buffer
	if err := Write(&buf, defs); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := "// InventoryModifyCode: 320\nGuessTargetAction = 10,\n// rx\nItemInfo = 11,\n"
	if buf.String() != want {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}

	back, err := Parse(&buf)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if back.Receive[0].Code != 11 || back.Send[0].Code != 10 {
		t.Fatalf("reparse mismatch: %+v", back)
	}
}

func TestTableReplaceClearsPreviousEntries(t *testing.T) {
	tbl := NewTable(protocol.DirectionReceive)
	tbl.Replace([]Entry{{Name: "ItemInfo", Code: 1}, {Name: "ObjectSpawn", Code: 2}})
	tbl.Replace([]Entry{{Name: "ItemInfo", Code: 3}})

	if _, ok := tbl.Name(2); ok {
		t.Fatalf("stale opcode survived replace")
	}
	if _, ok := tbl.Name(1); ok {
		t.Fatalf("stale opcode for ItemInfo survived replace")
	}
	if name, ok := tbl.Name(3); !ok || name != "ItemInfo" {
		t.Fatalf("expected ItemInfo at 3, got %q", name)
	}
	if tbl.Len() != 1 {
		t.Fatalf("len=%d", tbl.Len())
	}
}

func TestTableSetRebindsBothSides(t *testing.T) {
	tbl := NewTable(protocol.DirectionSend)
	tbl.Set("GuessTargetAction", 5)
	tbl.Set("GuessTargetAction", 6)
	tbl.Set("GuessTargetBinding", 6)

	if _, ok := tbl.Code("GuessTargetAction"); ok {
		t.Fatalf("expected GuessTargetAction to lose its code")
	}
	if _, ok := tbl.Name(5); ok {
		t.Fatalf("expected code 5 to be unbound")
	}
	if code, _ := tbl.Code("GuessTargetBinding"); code != 6 {
		t.Fatalf("binding code=%d", code)
	}
}
