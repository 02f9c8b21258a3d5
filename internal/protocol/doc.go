// Package protocol owns the observed game wire contract and parsing primitives.
//
// Ownership boundary:
// - segment/ipc framing (frame)
// - fixed-layout packet records (packets)
// - direction-scoped opcode tables and definition files (opcode)
// - direction-bound decoders (codec)
package protocol
