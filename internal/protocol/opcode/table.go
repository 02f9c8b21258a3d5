package opcode

import (
	"sort"
	"sync"

	"github.com/danmuck/gardenctl/internal/protocol"
)

// Entry binds a record name to an opcode.
type Entry struct {
	Name string
	Code uint16
}

// Table is a single-direction opcode table. Replace is clear-then-repopulate,
// so a reload never leaves entries from the previous file behind.
type Table struct {
	dir protocol.Direction

	mu     sync.RWMutex
	byCode map[uint16]string
	byName map[string]uint16
}

func NewTable(dir protocol.Direction) *Table {
	return &Table{
		dir:    dir,
		byCode: make(map[uint16]string),
		byName: make(map[string]uint16),
	}
}

func (t *Table) Direction() protocol.Direction { return t.dir }

func (t *Table) Replace(entries []Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byCode = make(map[uint16]string, len(entries))
	t.byName = make(map[string]uint16, len(entries))
	for _, e := range entries {
		t.setLocked(e.Name, e.Code)
	}
}

// Set binds name to code, dropping any previous binding of either side.
func (t *Table) Set(name string, code uint16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setLocked(name, code)
}

func (t *Table) setLocked(name string, code uint16) {
	if old, ok := t.byName[name]; ok {
		delete(t.byCode, old)
	}
	if old, ok := t.byCode[code]; ok {
		delete(t.byName, old)
	}
	t.byCode[code] = name
	t.byName[name] = code
}

func (t *Table) Name(code uint16) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	name, ok := t.byCode[code]
	return name, ok
}

func (t *Table) Code(name string) (uint16, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	code, ok := t.byName[name]
	return code, ok
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byCode)
}

// Entries returns a name-sorted copy.
func (t *Table) Entries() []Entry {
	t.mu.RLock()
	out := make([]Entry, 0, len(t.byName))
	for name, code := range t.byName {
		out = append(out, Entry{Name: name, Code: code})
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
