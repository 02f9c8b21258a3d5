// Package history indexes derived garden events in SQLite so they can be
// queried after the fact. The journal stays the source of truth; history
// drops events rather than stall the packet path.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/gardenctl/internal/garden"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

var ErrClosed = errors.New("history: closed")

const (
	queueSize = 4096
	batchMax  = 256
)

type req struct {
	ev   garden.Event
	sync chan struct{}
}

// Index is an event table fed by a single writer goroutine.
type Index struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed  atomic.Bool
	dropped atomic.Uint64
	written atomic.Uint64
}

// Stats reports queue outcomes since Open.
type Stats struct {
	Written uint64 `json:"written"`
	Dropped uint64 `json:"dropped"`
	Pending int    `json:"pending"`
}

func Open(path string) (*Index, error) {
	if path == "" {
		return nil, fmt.Errorf("history: empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	x := &Index{db: db, ch: make(chan req, queueSize)}
	x.wg.Add(1)
	go func() {
		defer x.wg.Done()
		x.loop()
	}()
	log.Info().Msgf("history.Open path=%s", path)
	return x, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			operation TEXT NOT NULL,
			garden_key TEXT NOT NULL,
			world_id INTEGER NOT NULL,
			map_id INTEGER NOT NULL,
			ward_num INTEGER NOT NULL,
			land_id INTEGER NOT NULL,
			object_id INTEGER NOT NULL,
			land_index INTEGER NOT NULL,
			land_sub_index INTEGER NOT NULL,
			indoor INTEGER NOT NULL,
			param1 INTEGER NOT NULL,
			param2 INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_garden ON events(garden_key, id);`,
		`CREATE INDEX IF NOT EXISTS idx_events_operation ON events(operation);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Emit implements garden.EventSink. It never blocks; a full queue drops the
// event.
func (x *Index) Emit(ev garden.Event) {
	if x == nil || x.closed.Load() {
		return
	}
	select {
	case x.ch <- req{ev: ev}:
	default:
		n := x.dropped.Add(1)
		log.Warn().Msgf("history.Emit queue full dropped=%d", n)
	}
}

// Sync waits until everything queued before the call has been committed.
func (x *Index) Sync(ctx context.Context) error {
	if x.closed.Load() {
		return ErrClosed
	}
	done := make(chan struct{})
	select {
	case x.ch <- req{sync: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (x *Index) Stats() Stats {
	return Stats{Written: x.written.Load(), Dropped: x.dropped.Load(), Pending: len(x.ch)}
}

func (x *Index) Close() error {
	var err error
	x.once.Do(func() {
		x.closed.Store(true)
		close(x.ch)
		x.wg.Wait()
		err = x.db.Close()
		log.Info().Msgf("history.Close written=%d dropped=%d", x.written.Load(), x.dropped.Load())
	})
	return err
}

const insertEvent = `INSERT INTO events(at,timestamp,operation,garden_key,world_id,map_id,ward_num,land_id,object_id,land_index,land_sub_index,indoor,param1,param2) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`

// loop drains whatever is queued into one transaction per batch. No
// transaction stays open between batches, so readers sharing the single
// connection are never starved.
func (x *Index) loop() {
	batch := make([]req, 0, batchMax)
	for r := range x.ch {
		batch = append(batch[:0], r)
	drain:
		for len(batch) < batchMax {
			select {
			case more, ok := <-x.ch:
				if !ok {
					break drain
				}
				batch = append(batch, more)
			default:
				break drain
			}
		}
		x.writeBatch(batch)
	}
}

func (x *Index) writeBatch(batch []req) {
	defer func() {
		for _, r := range batch {
			if r.sync != nil {
				close(r.sync)
			}
		}
	}()

	ctx := context.Background()
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error().Msgf("history.writeBatch begin err=%v", err)
		return
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertEvent)
	if err != nil {
		log.Error().Msgf("history.writeBatch prepare err=%v", err)
		return
	}
	defer stmt.Close()

	n := 0
	for _, r := range batch {
		if r.sync != nil {
			continue
		}
		ev := r.ev
		id := ev.Identity
		if _, err := stmt.ExecContext(ctx,
			ev.At.UTC().Format(time.RFC3339Nano),
			int64(ev.Timestamp),
			ev.Operation.String(),
			id.Key(),
			id.Land.WorldID, id.Land.MapID, id.Land.WardNum, id.Land.LandID,
			id.ObjectID, id.LandIndex, id.LandSubIndex,
			ev.Indoor,
			ev.Param1, ev.Param2,
		); err != nil {
			log.Error().Msgf("history.writeBatch insert key=%s err=%v", id.Key(), err)
			continue
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		log.Error().Msgf("history.writeBatch commit err=%v", err)
		return
	}
	x.written.Add(uint64(n))
}
