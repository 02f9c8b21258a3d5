package guide

import (
	"fmt"

	"github.com/danmuck/gardenctl/internal/protocol"
	"github.com/danmuck/gardenctl/internal/protocol/opcode"
	"github.com/danmuck/gardenctl/internal/protocol/packets"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Probe is one calibration step: the operator performs Instruction in game
// and the next packet of the record that satisfies Condition reveals its
// opcode.
type Probe struct {
	Record      string
	Direction   protocol.Direction
	Instruction string
	Condition   string

	// OnMatch may add opcode file comments derived from the matching packet.
	OnMatch func(env ProbeEnv) []opcode.Comment

	spec    packets.Spec
	program *vm.Program
}

func compileProbes(probes []*Probe) ([]*Probe, error) {
	for _, p := range probes {
		spec, ok := packets.Lookup(p.Record)
		if !ok {
			return nil, fmt.Errorf("probe %q: %w", p.Record, protocol.ErrUnknownPacket)
		}
		if spec.Direction != p.Direction {
			return nil, fmt.Errorf("probe %q: direction %s, record is %s", p.Record, p.Direction, spec.Direction)
		}
		prog, err := expr.Compile(p.Condition, expr.Env(ProbeEnv{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compile probe %q: %w", p.Record, err)
		}
		p.spec = spec
		p.program = prog
	}
	return probes, nil
}

const (
	rx = protocol.DirectionReceive
	tx = protocol.DirectionSend
)

// DefaultProbes is the calibration order. Later probes rely on places and
// items reached by earlier ones.
func DefaultProbes() []*Probe {
	return []*Probe{
		{
			Record:      packets.NameZoneInto,
			Direction:   rx,
			Instruction: "Teleport to a residential district",
			Condition:   `ServerNameValid()`,
		},
		{
			Record:      packets.NameObjectExternalData,
			Direction:   rx,
			Instruction: "Teleport to a residential district",
			Condition:   `LandDataValid()`,
		},
		{
			Record:      packets.NameObjectSpawn,
			Direction:   rx,
			Instruction: "Teleport to a residential district",
			Condition:   `IsGarden(Spawn.ObjID)`,
		},
		{
			// category 0x18 is the rested experience update
			Record:      packets.NameActorControlSelf,
			Direction:   rx,
			Instruction: "Wait in a sanctuary for rested experience to increase",
			Condition:   `Control.Category == 24 && Control.Params[0] <= 604800 && ParamsZeroFrom(1)`,
		},
		{
			Record:      packets.NameItemInfo,
			Direction:   rx,
			Instruction: "Open the chocobo saddlebag",
			Condition:   `Item.ContainerID == 4000`,
		},
		{
			Record:      packets.NameInventoryModify,
			Direction:   tx,
			Instruction: "Move any item from your inventory into the chocobo saddlebag",
			Condition:   `Modify.ToContainer >= 4000 && Modify.ToContainer <= 4003`,
			OnMatch: func(env ProbeEnv) []opcode.Comment {
				return []opcode.Comment{{
					Key:   opcode.KeyInventoryModifyCode,
					Value: fmt.Sprintf("%d", int(env.Modify.Action)-1),
				}}
			},
		},
		{
			// 7767 is Fishmeal
			Record:      packets.NameUpdateInventorySlot,
			Direction:   rx,
			Instruction: "Buy one Fishmeal",
			Condition:   `!SameAsCaptured("ItemInfo") && Item.CatalogID == 7767`,
		},
		{
			// 0x150001 is the fishing event handler
			Record:      packets.NameEventStart,
			Direction:   rx,
			Instruction: "Cast your line and reel in immediately",
			Condition:   `Event.TargetID == 1376257`,
		},
		{
			Record:      packets.NameTargetAction,
			Direction:   tx,
			Instruction: "Tend a garden plot",
			Condition:   `Action.Operation == 2`,
		},
		{
			Record:      packets.NameTargetAction16,
			Direction:   tx,
			Instruction: "Fertilize a garden plot with fertilizer from your inventory",
			Condition:   `Fertilize().Unknown1 == 1 && Fertilize().Fertilizer.Container <= 4`,
		},
		{
			// 21072 is the Venture item id
			Record:      packets.NameTargetAction32,
			Direction:   tx,
			Instruction: "Exchange company seals for a Venture",
			Condition:   `Action32U32(8) == 21072`,
		},
	}
}
