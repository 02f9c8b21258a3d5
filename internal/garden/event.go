package garden

import (
	"fmt"
	"time"
)

type Operation uint8

const (
	OpSow Operation = iota
	OpCare
	OpFertilize
	OpHarvest
	OpDispose
)

var operationNames = [...]string{"Sow", "Care", "Fertilize", "Harvest", "Dispose"}

func (o Operation) String() string {
	if int(o) < len(operationNames) {
		return operationNames[o]
	}
	return fmt.Sprintf("Operation(%d)", uint8(o))
}

// ParseOperation accepts the names produced by String.
func ParseOperation(s string) (Operation, bool) {
	for i, name := range operationNames {
		if name == s {
			return Operation(i), true
		}
	}
	return 0, false
}

// Event is one derived garden action. Param1 and Param2 carry soil and seed
// for a sow and the fertilizer id for a fertilize; they are zero otherwise.
type Event struct {
	At        time.Time `json:"at"`
	Timestamp uint64    `json:"timestamp"`
	Operation Operation `json:"operation"`
	Identity  Identity  `json:"identity"`
	Indoor    bool      `json:"indoor"`
	Param1    uint32    `json:"param1"`
	Param2    uint32    `json:"param2"`
}

type EventSink interface {
	Emit(Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(Event)

func (f EventSinkFunc) Emit(ev Event) { f(ev) }

// Sinks fans an event out to every member in order. Nil members are skipped.
type Sinks []EventSink

func (s Sinks) Emit(ev Event) {
	for _, sink := range s {
		if sink != nil {
			sink.Emit(ev)
		}
	}
}
