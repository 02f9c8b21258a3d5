package opcode

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/danmuck/gardenctl/internal/protocol/packets"
	"github.com/rs/zerolog/log"
)

// KeyInventoryModifyCode overrides the inventory operation base code.
const KeyInventoryModifyCode = "InventoryModifyCode"

var ErrInvalidLine = errors.New("opcode: invalid definition line")

// LineError reports a definition line that could not be parsed.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("opcode: line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// Comment is a "// Key: value" annotation.
type Comment struct {
	Key   string
	Value string
}

// Definitions is a parsed opcode file. Entry order follows the file.
type Definitions struct {
	Send     []Entry
	Receive  []Entry
	Comments []Comment
	Invalid  []*LineError
}

func (d Definitions) Comment(key string) (string, bool) {
	for i := len(d.Comments) - 1; i >= 0; i-- {
		if strings.EqualFold(d.Comments[i].Key, key) {
			return d.Comments[i].Value, true
		}
	}
	return "", false
}

func (d Definitions) InventoryModifyCode() (uint16, bool) {
	raw, ok := d.Comment(KeyInventoryModifyCode)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 0, 16)
	if err != nil {
		return 0, false
	}
	return uint16(v), true
}

// Parse reads an opcode definition file. Lines are "Name = number," entries
// for the send table until a "// rx" line switches to the receive table.
// Malformed lines are skipped and collected in Invalid.
func Parse(r io.Reader) (Definitions, error) {
	var defs Definitions
	receive := false

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "//") {
			body := strings.TrimSpace(strings.TrimPrefix(line, "//"))
			switch strings.ToLower(body) {
			case "rx":
				receive = true
				continue
			case "tx":
				receive = false
				continue
			}
			if key, value, ok := strings.Cut(body, ":"); ok && strings.TrimSpace(key) != "" {
				defs.Comments = append(defs.Comments, Comment{
					Key:   strings.TrimSpace(key),
					Value: strings.TrimSpace(value),
				})
			}
			continue
		}

		entry, err := parseEntry(line)
		if err != nil {
			lerr := &LineError{Line: lineNo, Text: line, Err: err}
			log.Warn().Msgf("opcode.Parse skipped line=%d err=%v", lineNo, err)
			defs.Invalid = append(defs.Invalid, lerr)
			continue
		}
		if receive {
			defs.Receive = append(defs.Receive, entry)
		} else {
			defs.Send = append(defs.Send, entry)
		}
	}
	if err := sc.Err(); err != nil {
		return Definitions{}, fmt.Errorf("read opcode definitions: %w", err)
	}
	return defs, nil
}

func parseEntry(line string) (Entry, error) {
	name, value, ok := strings.Cut(line, "=")
	if !ok {
		return Entry{}, ErrInvalidLine
	}
	name = strings.TrimSpace(name)
	value = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), ","))
	if name == "" || value == "" {
		return Entry{}, ErrInvalidLine
	}
	code, err := strconv.ParseUint(value, 0, 16)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrInvalidLine, err)
	}
	return Entry{Name: packets.Canonical(name), Code: uint16(code)}, nil
}

func LoadFile(path string) (Definitions, error) {
	f, err := os.Open(path)
	if err != nil {
		return Definitions{}, fmt.Errorf("open opcode file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Write renders definitions in the file format: comments, send entries,
// "// rx", receive entries.
func Write(w io.Writer, defs Definitions) error {
	bw := bufio.NewWriter(w)
	for _, c := range defs.Comments {
		fmt.Fprintf(bw, "// %s: %s\n", c.Key, c.Value)
	}
	for _, e := range defs.Send {
		fmt.Fprintf(bw, "%s = %d,\n", e.Name, e.Code)
	}
	bw.WriteString("// rx\n")
	for _, e := range defs.Receive {
		fmt.Fprintf(bw, "%s = %d,\n", e.Name, e.Code)
	}
	return bw.Flush()
}
