// Package actlog renders garden events as host log lines. Every event
// produces two lines: type 00 with raw numbers for machine consumers and type
// 01 with display names.
package actlog

import (
	"fmt"
	"time"

	"github.com/danmuck/gardenctl/internal/gamedata"
	"github.com/danmuck/gardenctl/internal/garden"
)

const (
	Source = "GardeningTracker"

	TypeRaw      = "00"
	TypeReadable = "01"
	TypeGuide    = "02"

	// TimeLayout is round-trip ISO 8601 with 100ns precision.
	TimeLayout = "2006-01-02T15:04:05.0000000Z07:00"
)

// LineFunc receives finished log lines.
type LineFunc func(line string)

// Writer is a garden.EventSink that writes both line types for each event.
type Writer struct {
	out  LineFunc
	data *gamedata.Source
	now  func() time.Time
}

func NewWriter(out LineFunc, data *gamedata.Source) *Writer {
	return &Writer{out: out, data: data, now: time.Now}
}

func (w *Writer) Emit(ev garden.Event) {
	if w == nil || w.out == nil {
		return
	}
	at := ev.At
	if at.IsZero() {
		at = w.now()
	}
	d := w.data.Get()
	w.out(Envelope(at, TypeRaw, Raw(ev)))
	w.out(Envelope(at, TypeReadable, Readable(ev, d)))
}

// Envelope wraps content, which carries its own trailing separator, in the
// host log-line frame.
func Envelope(at time.Time, typ, content string) string {
	return fmt.Sprintf("00|%s|0|%s|%s|%s|", at.Format(TimeLayout), Source, typ, content)
}

// Raw is world|map|ward|land|object|housingLink|op|param1|param2|.
func Raw(ev garden.Event) string {
	id := ev.Identity
	return fmt.Sprintf("%d|%d|%d|%d|%d|%d|%d|%d|%d|",
		id.Land.WorldID, id.Land.MapID, id.Land.WardNum, id.Land.LandID,
		id.ObjectID, id.HousingLinkValue(), uint8(ev.Operation), ev.Param1, ev.Param2)
}

// Readable is "<zone> <garden(pos)>|<operation>|<param1 name>|<param2 name>|".
// Sow names soil and seed; fertilize names the fertilizer.
func Readable(ev garden.Event, d *gamedata.Dataset) string {
	var p1, p2 string
	switch ev.Operation {
	case garden.OpSow:
		p1 = d.SoilName(ev.Param1)
		p2 = d.SeedName(ev.Param2)
	case garden.OpFertilize:
		p1 = d.FertilizerName(ev.Param1)
	}
	return fmt.Sprintf("%s|%s|%s|%s|", Position(ev.Identity, ev.Indoor, d), ev.Operation, p1, p2)
}

// Position names the plot with its zone, as shown to the player.
func Position(id garden.Identity, indoor bool, d *gamedata.Dataset) string {
	return d.ZoneName(id.Land, indoor) + " " + d.GardenNamePos(id.ObjectID, id.LandIndex, id.LandSubIndex)
}
