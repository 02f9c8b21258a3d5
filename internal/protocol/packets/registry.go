package packets

import (
	"fmt"
	"sort"

	"github.com/danmuck/gardenctl/internal/protocol"
	"github.com/danmuck/gardenctl/internal/protocol/frame"
)

// DecodeFunc decodes one body into a record.
type DecodeFunc func(h frame.IPCHeader, body []byte) (Packet, error)

// Spec describes one fixed-layout record.
type Spec struct {
	Name      string
	Direction protocol.Direction
	Size      int
	decode    DecodeFunc
}

// Decode checks the exact body length and decodes.
func (s Spec) Decode(h frame.IPCHeader, body []byte) (Packet, error) {
	if err := checkSize(s.Name, s.Size, body); err != nil {
		return nil, err
	}
	return s.decode(h, body)
}

func wrap[T Packet](fn func(frame.IPCHeader, []byte) (T, error)) DecodeFunc {
	return func(h frame.IPCHeader, body []byte) (Packet, error) {
		p, err := fn(h, body)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

var specs = map[string]Spec{
	NameItemInfo:            {NameItemInfo, protocol.DirectionReceive, ItemInfoSize, wrap(DecodeItemInfo)},
	NameUpdateInventorySlot: {NameUpdateInventorySlot, protocol.DirectionReceive, ItemInfoSize, wrap(DecodeUpdateInventorySlot)},
	NameObjectSpawn:         {NameObjectSpawn, protocol.DirectionReceive, ObjectSpawnSize, wrap(DecodeObjectSpawn)},
	NameTargetBinding:       {NameTargetBinding, protocol.DirectionSend, TargetBindingSize, wrap(DecodeTargetBinding)},
	NameTargetConfirm:       {NameTargetConfirm, protocol.DirectionReceive, TargetConfirmSize, wrap(DecodeTargetConfirm)},
	NameTargetAction:        {NameTargetAction, protocol.DirectionSend, TargetActionSize, wrap(DecodeTargetAction)},
	NameTargetAction16:      {NameTargetAction16, protocol.DirectionSend, TargetAction16Size, wrap(DecodeTargetAction16)},
	NameTargetAction32:      {NameTargetAction32, protocol.DirectionSend, TargetAction32Size, wrap(DecodeTargetAction32)},
	NameZoneInto:            {NameZoneInto, protocol.DirectionReceive, ZoneIntoSize, wrap(DecodeZoneInto)},
	NameObjectExternalData:  {NameObjectExternalData, protocol.DirectionReceive, ObjectExternalDataSize, wrap(DecodeObjectExternalData)},
	NameInventoryModify:     {NameInventoryModify, protocol.DirectionSend, InventoryModifySize, wrap(DecodeInventoryModify)},
	NameActorControlSelf:    {NameActorControlSelf, protocol.DirectionReceive, ActorControlSelfSize, wrap(DecodeActorControlSelf)},
	NameEventStart:          {NameEventStart, protocol.DirectionReceive, EventStartSize, wrap(DecodeEventStart)},
}

// Older definition files carry the misspelled external data name.
var aliases = map[string]string{
	"ObjectExteralData": NameObjectExternalData,
}

// Canonical resolves aliases to the registered name.
func Canonical(name string) string {
	if c, ok := aliases[name]; ok {
		return c
	}
	return name
}

func Lookup(name string) (Spec, bool) {
	s, ok := specs[Canonical(name)]
	return s, ok
}

func MustLookup(name string) Spec {
	s, ok := Lookup(name)
	if !ok {
		panic(fmt.Sprintf("packets: unregistered record %q", name))
	}
	return s
}

// Specs returns every registered record sorted by name.
func Specs() []Spec {
	out := make([]Spec, 0, len(specs))
	for _, s := range specs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
