package protocol

import "strings"

// Direction scopes an opcode space. The client and server reuse small opcode
// ranges independently, so every table and decoder is bound to one direction.
type Direction int

const (
	DirectionSend Direction = iota
	DirectionReceive
)

func (d Direction) String() string {
	switch d {
	case DirectionSend:
		return "tx"
	case DirectionReceive:
		return "rx"
	default:
		return "unknown"
	}
}

func ParseDirection(raw string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "tx", "send", "sent":
		return DirectionSend, true
	case "rx", "recv", "receive", "received":
		return DirectionReceive, true
	default:
		return 0, false
	}
}
