// Package journal keeps an append-only record of derived garden events as
// hourly zstd-compressed JSONL files.
package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/danmuck/gardenctl/internal/garden"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

const (
	hourLayout = "2006-01-02-15"
	suffix     = ".jsonl.zst"
)

// Writer appends events to <dir>/<prefix>-<hour>.jsonl.zst, switching files
// when the event hour changes. Reopening an existing hour appends a new
// zstd frame.
type Writer struct {
	dir    string
	prefix string
	now    func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewWriter(dir, prefix string) *Writer {
	if prefix == "" {
		prefix = "events"
	}
	return &Writer{dir: dir, prefix: prefix, now: time.Now}
}

// Emit implements garden.EventSink. Failures are logged and dropped.
func (w *Writer) Emit(ev garden.Event) {
	if err := w.Write(ev); err != nil {
		log.Error().Msgf("journal.Emit op=%s err=%v", ev.Operation, err)
	}
}

func (w *Writer) Write(ev garden.Event) error {
	at := ev.At
	if at.IsZero() {
		at = w.now()
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	hour := at.UTC().Format(hourLayout)
	if hour != w.curHour || w.w == nil {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *Writer) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}
	path := w.pathForHour(hour)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curHour = hour
	log.Debug().Msgf("journal.rotate path=%s", path)
	return nil
}

func (w *Writer) closeLocked() error {
	var err error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err
}

func (w *Writer) pathForHour(hour string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-%s%s", w.prefix, hour, suffix))
}

// Files lists the journal files under dir in chronological order.
func Files(dir, prefix string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, prefix+"-*"+suffix))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// ReadFile decodes every event in one journal file.
func ReadFile(path string) ([]garden.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []garden.Event
	jd := json.NewDecoder(dec)
	for {
		var ev garden.Event
		err := jd.Decode(&ev)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
		}
		out = append(out, ev)
	}
}
