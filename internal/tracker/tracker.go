// Package tracker interprets decoded game packets into garden events. Send
// and receive streams decode independently; correlation state lives in a
// state.Store and garden records in a garden.Store.
package tracker

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/danmuck/gardenctl/internal/actlog"
	"github.com/danmuck/gardenctl/internal/gamedata"
	"github.com/danmuck/gardenctl/internal/garden"
	"github.com/danmuck/gardenctl/internal/observability"
	"github.com/danmuck/gardenctl/internal/protocol"
	"github.com/danmuck/gardenctl/internal/protocol/codec"
	"github.com/danmuck/gardenctl/internal/protocol/opcode"
	"github.com/danmuck/gardenctl/internal/protocol/packets"
	"github.com/danmuck/gardenctl/internal/state"
	"github.com/rs/zerolog/log"
)

// Host is the application feeding packets in and receiving log lines.
type Host interface {
	LogLine(line string)
	CurrentWorldID() uint32
}

// HarvestReporter receives crossbreed harvest results.
type HarvestReporter interface {
	UploadResult(packets.HarvestResult)
}

// PacketObserver sees every raw packet before interpretation.
type PacketObserver interface {
	OnPacketSent(buf []byte)
	OnPacketReceived(buf []byte)
}

type Options struct {
	Host     Host
	Data     *gamedata.Source
	Gardens  *garden.Store
	State    *state.Store
	Sinks    []garden.EventSink
	Reporter HarvestReporter
	Now      func() time.Time
}

type Tracker struct {
	host     Host
	data     *gamedata.Source
	gardens  *garden.Store
	state    *state.Store
	sinks    garden.Sinks
	reporter HarvestReporter
	now      func() time.Time

	send *codec.Decoder
	recv *codec.Decoder

	observer atomic.Pointer[observerBox]
}

type observerBox struct{ o PacketObserver }

func New(opts Options) *Tracker {
	t := &Tracker{
		host:     opts.Host,
		data:     opts.Data,
		gardens:  opts.Gardens,
		state:    opts.State,
		reporter: opts.Reporter,
		now:      opts.Now,
		send:     codec.NewDecoder(protocol.DirectionSend),
		recv:     codec.NewDecoder(protocol.DirectionReceive),
	}
	if t.data == nil {
		t.data = gamedata.NewSource(nil)
	}
	if t.gardens == nil {
		t.gardens = garden.NewStore()
	}
	if t.state == nil {
		t.state = state.New()
	}
	if t.now == nil {
		t.now = time.Now
	}
	if t.host != nil {
		t.sinks = append(t.sinks, actlog.NewWriter(t.host.LogLine, t.data))
	}
	t.sinks = append(t.sinks, opts.Sinks...)
	return t
}

func (t *Tracker) Gardens() *garden.Store      { return t.gardens }
func (t *Tracker) State() *state.Store         { return t.state }
func (t *Tracker) Data() *gamedata.Source      { return t.data }
func (t *Tracker) SendDecoder() *codec.Decoder { return t.send }
func (t *Tracker) RecvDecoder() *codec.Decoder { return t.recv }

// SetObserver installs or, with nil, removes the raw packet observer.
func (t *Tracker) SetObserver(o PacketObserver) {
	if o == nil {
		t.observer.Store(nil)
		return
	}
	t.observer.Store(&observerBox{o: o})
}

// ApplyOpcodes replaces both tables and the inventory base code.
func (t *Tracker) ApplyOpcodes(defs opcode.Definitions) {
	t.send.SetOpcodes(defs.Send)
	t.recv.SetOpcodes(defs.Receive)
	base := state.DefaultInventoryBase
	if code, ok := defs.InventoryModifyCode(); ok {
		base = code
	}
	t.state.SetInventoryBase(base)
	log.Info().Msgf("tracker.ApplyOpcodes tx=%d rx=%d inventory_base=%d",
		t.send.Table().Len(), t.recv.Table().Len(), base)
}

// LearnOpcode binds one record name to code in the table of dir, replacing
// whatever either side was bound to.
func (t *Tracker) LearnOpcode(dir protocol.Direction, name string, code uint16) {
	dec := t.recv
	if dir == protocol.DirectionSend {
		dec = t.send
	}
	dec.Table().Set(name, code)
	log.Info().Msgf("tracker.LearnOpcode %s %s = %d", dir, name, code)
}

// ReloadOpcodes reads path and applies it. A missing or unreadable file
// leaves both tables empty.
func (t *Tracker) ReloadOpcodes(path string) error {
	defs, err := opcode.LoadFile(path)
	if err != nil {
		log.Error().Msgf("tracker.ReloadOpcodes path=%q err=%v", path, err)
	}
	t.ApplyOpcodes(defs)
	return err
}

func (t *Tracker) OnPacketSent(buf []byte) {
	defer t.recoverPacket(protocol.DirectionSend)
	if box := t.observer.Load(); box != nil {
		box.o.OnPacketSent(buf)
	}
	p := t.decode(t.send, buf)
	if p == nil {
		return
	}
	switch pkt := p.(type) {
	case packets.TargetBinding:
		log.Trace().Msgf("tracker.TargetBinding actor=0x%x target=0x%x", pkt.ActorID, pkt.TargetID)
	case packets.TargetAction:
		t.onTargetAction(pkt)
	case packets.TargetAction16:
		t.onFertilize(pkt)
	case packets.TargetAction32:
		t.onSow(pkt)
	case packets.InventoryModify:
		t.onInventoryModify(pkt)
	}
}

func (t *Tracker) OnPacketReceived(buf []byte) {
	defer t.recoverPacket(protocol.DirectionReceive)
	if box := t.observer.Load(); box != nil {
		box.o.OnPacketReceived(buf)
	}
	p := t.decode(t.recv, buf)
	if p == nil {
		return
	}
	switch pkt := p.(type) {
	case packets.ObjectSpawn:
		t.state.RecordSpawn(pkt)
	case packets.ItemInfo:
		t.state.RecordItem(pkt.Item)
	case packets.UpdateInventorySlot:
		t.state.RecordItem(pkt.Item)
	case packets.TargetConfirm:
		t.state.BindTarget(pkt.TargetID, pkt.ActorID)
		log.Trace().Msgf("tracker.TargetConfirm target=0x%x actor=0x%x", pkt.TargetID, pkt.ActorID)
	case packets.ZoneInto:
		t.onZoneInto(pkt)
	case packets.ObjectExternalData:
		t.state.RecordExternalData(pkt)
	case packets.ActorControlSelf:
		t.onActorControl(pkt)
	}
}

func (t *Tracker) decode(dec *codec.Decoder, buf []byte) packets.Packet {
	dir := dec.Direction().String()
	p, err := dec.Decode(buf)
	if err != nil {
		log.Warn().Msgf("tracker.decode dir=%s err=%v", dir, err)
		observability.RecordPacketDropped(dir, "malformed")
		return nil
	}
	if p == nil {
		return nil
	}
	observability.RecordPacketDecoded(dir, p.Name())
	return p
}

func (t *Tracker) recoverPacket(dir protocol.Direction) {
	if r := recover(); r != nil {
		log.Error().Msgf("tracker.packet dir=%s panic=%v", dir, r)
		observability.RecordPacketDropped(dir.String(), "panic")
	}
}

func (t *Tracker) onZoneInto(z packets.ZoneInto) {
	zone := t.state.SwitchZone(z)
	d := t.data.Get()
	if zone == nil {
		log.Info().Msgf("tracker.ZoneInto zone=unknown server=%q", z.Server())
		return
	}
	log.Info().Msgf("tracker.ZoneInto zone=%q indoor=%v ident={%s}", d.ZoneName(zone.Ident, zone.InHouse), zone.InHouse, zone.Ident)
}

func (t *Tracker) onActorControl(a packets.ActorControlSelf) {
	if a.Category != packets.ActorControlSetHarvestResult {
		return
	}
	res := packets.HarvestResultFromParams(a.Params)
	log.Debug().Msgf("tracker.HarvestResult %+v", res)
	if t.reporter != nil {
		t.reporter.UploadResult(res)
	}
}

func (t *Tracker) onInventoryModify(m packets.InventoryModify) {
	op, ok := t.state.ApplyInventoryOp(m)
	if !ok {
		log.Trace().Msgf("tracker.InventoryModify ignored action=%d", m.Action)
		return
	}
	log.Debug().Msgf("tracker.InventoryModify op=%s from=(%d,%d)[%d] to=(%d,%d)[%d]",
		op, m.FromContainer, m.FromSlot, m.FromQuantity, m.ToContainer, m.ToSlot, m.ToQuantity)
}

func (t *Tracker) resolve(name string, targetID uint32) (state.Resolved, bool) {
	r, err := t.state.ResolveIdentity(targetID, t.data.Get())
	if err != nil {
		log.Debug().Msgf("tracker.resolve packet=%s target=0x%x err=%v", name, targetID, err)
		observability.RecordUnresolved(name, unresolvedReason(err))
		return state.Resolved{}, false
	}
	return r, true
}

func unresolvedReason(err error) string {
	switch {
	case errors.Is(err, state.ErrNoZone):
		return "zone"
	case errors.Is(err, state.ErrUnknownTarget):
		return "target"
	case errors.Is(err, state.ErrUnknownActor):
		return "actor"
	case errors.Is(err, state.ErrNotGarden):
		return "not_garden"
	default:
		return "other"
	}
}

func (t *Tracker) onTargetAction(a packets.TargetAction) {
	if !a.IsGenericInteract() {
		return
	}
	r, ok := t.resolve(a.Name(), a.TargetID)
	if !ok {
		return
	}
	d := t.data.Get()
	guess := t.state.GuessSeed(r.HousingLink, d)
	ts := uint64(a.Timestamp())
	pos := actlog.Position(r.Identity, r.Indoor, d)

	switch a.Operation {
	case 0:
		log.Info().Msgf("tracker.Inspect pos=%q seed_guess=%d", pos, guess)
	case 1:
		t.gardens.Remove(r.Identity)
		log.Info().Msgf("tracker.Harvest pos=%q seed_guess=%d", pos, guess)
		t.emit(ts, garden.OpHarvest, r, 0, 0)
	case 2:
		t.gardens.Care(r.Identity, ts, guess)
		log.Info().Msgf("tracker.Care pos=%q seed_guess=%d", pos, guess)
		t.emit(ts, garden.OpCare, r, 0, 0)
	case 3:
		t.gardens.Remove(r.Identity)
		log.Info().Msgf("tracker.Dispose pos=%q seed_guess=%d", pos, guess)
		t.emit(ts, garden.OpDispose, r, 0, 0)
	default:
		log.Info().Msgf("tracker.TargetAction unknown operation=%d pos=%q", a.Operation, pos)
	}
}

func (t *Tracker) onFertilize(a packets.TargetAction16) {
	r, ok := t.resolve(a.Name(), a.TargetID)
	if !ok {
		return
	}
	param, err := packets.DecodeFertilizeParam(a.Param[:])
	if err != nil {
		log.Warn().Msgf("tracker.Fertilize err=%v", err)
		return
	}
	item, ok := t.state.LookupItem(param.Fertilizer.Key())
	if !ok {
		log.Error().Msgf("tracker.Fertilize fertilizer not found slot=%s", param.Fertilizer)
		t.dumpItems()
		return
	}

	d := t.data.Get()
	ts := uint64(a.Timestamp())
	guess := t.state.GuessSeed(r.HousingLink, d)
	t.gardens.Fertilize(r.Identity, item.CatalogID, ts, guess)
	log.Info().Msgf("tracker.Fertilize pos=%q fertilizer=%q", actlog.Position(r.Identity, r.Indoor, d), d.FertilizerName(item.CatalogID))
	t.emit(ts, garden.OpFertilize, r, item.CatalogID, 0)
}

func (t *Tracker) onSow(a packets.TargetAction32) {
	r, ok := t.resolve(a.Name(), a.TargetID)
	if !ok {
		return
	}
	param, err := packets.DecodeSowParam(a.Param[:])
	if err != nil {
		log.Warn().Msgf("tracker.Sow err=%v", err)
		return
	}
	soil, soilOK := t.state.LookupItem(param.Soil.Key())
	seed, seedOK := t.state.LookupItem(param.Seed.Key())
	if !soilOK || !seedOK {
		if !soilOK {
			log.Error().Msgf("tracker.Sow soil not found slot=%s", param.Soil)
		}
		if !seedOK {
			log.Error().Msgf("tracker.Sow seed not found slot=%s", param.Seed)
		}
		t.dumpItems()
		return
	}

	d := t.data.Get()
	ts := uint64(a.Timestamp())
	t.gardens.Sow(r.Identity, soil.CatalogID, seed.CatalogID, ts)
	log.Info().Msgf("tracker.Sow pos=%q seed=%q soil=%q",
		actlog.Position(r.Identity, r.Indoor, d), d.SeedName(seed.CatalogID), d.SoilName(soil.CatalogID))
	t.emit(ts, garden.OpSow, r, soil.CatalogID, seed.CatalogID)
}

func (t *Tracker) dumpItems() {
	if e := log.Trace(); e.Enabled() {
		for _, it := range t.state.Items() {
			log.Trace().Msgf("tracker.item catalog=%d at=(%d,%d,%d) qty=%d hq=%d cond=%d",
				it.CatalogID, it.ContainerSequence, it.ContainerID, it.Slot, it.Quantity, it.HQ, it.Condition)
		}
	}
}

func (t *Tracker) emit(ts uint64, op garden.Operation, r state.Resolved, p1, p2 uint32) {
	ev := garden.Event{
		At:        t.now(),
		Timestamp: ts,
		Operation: op,
		Identity:  r.Identity,
		Indoor:    r.Indoor,
		Param1:    p1,
		Param2:    p2,
	}
	observability.RecordGardenEvent(op.String())
	t.sinks.Emit(ev)
}

// String is used in status output.
func (t *Tracker) String() string {
	return fmt.Sprintf("tracker(tx=%d rx=%d gardens=%d)", t.send.Table().Len(), t.recv.Table().Len(), t.gardens.Len())
}
