package guide

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/danmuck/gardenctl/internal/gamedata"
	"github.com/danmuck/gardenctl/internal/protocol"
	"github.com/danmuck/gardenctl/internal/protocol/codec"
	"github.com/danmuck/gardenctl/internal/protocol/opcode"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog/log"
)

// Result is one captured opcode.
type Result struct {
	Name      string             `json:"name"`
	Direction protocol.Direction `json:"-"`
	Code      uint16             `json:"code"`
}

// Status describes the guide position for operators.
type Status struct {
	Index       int      `json:"index"`
	Total       int      `json:"total"`
	Done        bool     `json:"done"`
	Record      string   `json:"record,omitempty"`
	Direction   string   `json:"direction,omitempty"`
	Instruction string   `json:"instruction,omitempty"`
	Results     []Result `json:"results"`
}

type Options struct {
	Data   *gamedata.Source
	Probes []*Probe

	// OnAdvance is called after every capture, skip and restart, outside
	// the guide lock.
	OnAdvance func(Status)
	// OnCapture receives every captured opcode before OnAdvance.
	OnCapture func(Result)
}

// Guide walks the operator through the probes one at a time and records
// the opcode of the first packet satisfying the active probe.
type Guide struct {
	mu       sync.Mutex
	probes   []*Probe
	index    int
	results  []Result
	comments []opcode.Comment

	data      *gamedata.Source
	send      *codec.Decoder
	recv      *codec.Decoder
	onAdvance func(Status)
	onCapture func(Result)
}

// New compiles the probes and positions the guide on the first one.
func New(opts Options) (*Guide, error) {
	probes := opts.Probes
	if probes == nil {
		probes = DefaultProbes()
	}
	probes, err := compileProbes(probes)
	if err != nil {
		return nil, err
	}
	g := &Guide{
		probes:    probes,
		index:     -1,
		data:      opts.Data,
		send:      codec.NewDecoder(protocol.DirectionSend),
		recv:      codec.NewDecoder(protocol.DirectionReceive),
		onAdvance: opts.OnAdvance,
		onCapture: opts.OnCapture,
	}
	g.mu.Lock()
	g.nextLocked(-1)
	st := g.statusLocked()
	g.mu.Unlock()
	g.announce(st)
	return g, nil
}

func (g *Guide) OnPacketSent(buf []byte)     { g.observe(protocol.DirectionSend, buf) }
func (g *Guide) OnPacketReceived(buf []byte) { g.observe(protocol.DirectionReceive, buf) }

func (g *Guide) observe(dir protocol.Direction, buf []byte) {
	g.mu.Lock()
	at := g.index
	if at < 0 || at >= len(g.probes) {
		g.mu.Unlock()
		return
	}
	probe := g.probes[at]
	if probe.Direction != dir {
		g.mu.Unlock()
		return
	}

	dec := g.recv
	if dir == protocol.DirectionSend {
		dec = g.send
	}
	p, err := dec.DecodeAs(probe.spec, buf)
	if err != nil || p == nil {
		g.mu.Unlock()
		return
	}

	env := newEnv(p, g.capturedLocked(), g.dataset())
	ok, err := matches(probe.program, env)
	if err != nil {
		g.mu.Unlock()
		log.Debug().Msgf("guide.observe probe=%s err=%v", probe.Record, err)
		return
	}
	if !ok {
		g.mu.Unlock()
		return
	}

	res := Result{Name: probe.Record, Direction: dir, Code: env.Opcode}
	g.results = append(g.results, res)
	if probe.OnMatch != nil {
		g.comments = append(g.comments, probe.OnMatch(env)...)
	}
	g.nextLocked(at)
	st := g.statusLocked()
	g.mu.Unlock()

	log.Info().Msgf("guide.capture %s %s = %d", dir, res.Name, res.Code)
	if g.onCapture != nil {
		g.onCapture(res)
	}
	g.announce(st)
}

func matches(program *vm.Program, env ProbeEnv) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("probe panic: %v", r)
		}
	}()
	out, err := vm.Run(program, env)
	if err != nil {
		return false, err
	}
	b, _ := out.(bool)
	return b, nil
}

// nextLocked advances past from. A stale caller that observed an older
// index cannot move the guide twice.
func (g *Guide) nextLocked(from int) {
	if from < g.index {
		return
	}
	g.index = from + 1
	if g.index < len(g.probes) {
		p := g.probes[g.index]
		log.Info().Msgf("guide.next step=%d/%d %s %s: %s", g.index+1, len(g.probes), p.Direction, p.Record, p.Instruction)
		return
	}
	log.Info().Msgf("guide.done captured=%d", len(g.results))
}

// Skip abandons the current probe without recording anything.
func (g *Guide) Skip() Status {
	g.mu.Lock()
	if g.index < 0 || g.index >= len(g.probes) {
		st := g.statusLocked()
		g.mu.Unlock()
		return st
	}
	log.Info().Msgf("guide.skip %s", g.probes[g.index].Record)
	g.nextLocked(g.index)
	st := g.statusLocked()
	g.mu.Unlock()
	g.announce(st)
	return st
}

// Restart drops all captures and returns to the first probe.
func (g *Guide) Restart() Status {
	g.mu.Lock()
	g.results = nil
	g.comments = nil
	g.index = -1
	g.nextLocked(-1)
	st := g.statusLocked()
	g.mu.Unlock()
	g.announce(st)
	return st
}

func (g *Guide) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.statusLocked()
}

// Current returns the active probe, or false when the guide is finished.
func (g *Guide) Current() (Probe, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.index < 0 || g.index >= len(g.probes) {
		return Probe{}, false
	}
	return *g.probes[g.index], true
}

func (g *Guide) Results() []Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Result(nil), g.results...)
}

// Definitions renders the captures as an opcode file.
func (g *Guide) Definitions() opcode.Definitions {
	g.mu.Lock()
	defer g.mu.Unlock()
	defs := opcode.Definitions{Comments: append([]opcode.Comment(nil), g.comments...)}
	for _, r := range g.results {
		e := opcode.Entry{Name: r.Name, Code: r.Code}
		if r.Direction == protocol.DirectionSend {
			defs.Send = append(defs.Send, e)
		} else {
			defs.Receive = append(defs.Receive, e)
		}
	}
	return defs
}

func (g *Guide) Save(w io.Writer) error {
	return opcode.Write(w, g.Definitions())
}

// SaveFile writes the captures to path, replacing it atomically.
func (g *Guide) SaveFile(path string) error {
	var buf bytes.Buffer
	if err := g.Save(&buf); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create guide output dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write guide output: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace guide output: %w", err)
	}
	log.Info().Msgf("guide.SaveFile path=%s results=%d", path, len(g.Results()))
	return nil
}

func (g *Guide) statusLocked() Status {
	st := Status{
		Index:   g.index,
		Total:   len(g.probes),
		Done:    g.index >= len(g.probes),
		Results: append([]Result{}, g.results...),
	}
	if g.index >= 0 && g.index < len(g.probes) {
		p := g.probes[g.index]
		st.Record = p.Record
		st.Direction = p.Direction.String()
		st.Instruction = p.Instruction
	}
	return st
}

func (g *Guide) capturedLocked() map[string]uint16 {
	out := make(map[string]uint16, len(g.results))
	for _, r := range g.results {
		out[r.Name] = r.Code
	}
	return out
}

func (g *Guide) dataset() *gamedata.Dataset {
	if g.data == nil {
		return nil
	}
	return g.data.Get()
}

func (g *Guide) announce(st Status) {
	if g.onAdvance != nil {
		g.onAdvance(st)
	}
}
