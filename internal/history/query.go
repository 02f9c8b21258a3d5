package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/danmuck/gardenctl/internal/garden"
	"github.com/danmuck/gardenctl/internal/protocol/packets"
)

// Entry is one stored event with its row id.
type Entry struct {
	ID int64 `json:"id"`
	garden.Event
}

const selectEvents = `SELECT id,at,timestamp,operation,world_id,map_id,ward_num,land_id,object_id,land_index,land_sub_index,indoor,param1,param2 FROM events`

// Recent returns up to n events, newest first.
func (x *Index) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = 50
	}
	rows, err := x.db.QueryContext(ctx, selectEvents+` ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	return scanEntries(rows)
}

// ForGarden returns up to n events of one plot, newest first.
func (x *Index) ForGarden(ctx context.Context, id garden.Identity, n int) ([]Entry, error) {
	if n <= 0 {
		n = 50
	}
	rows, err := x.db.QueryContext(ctx, selectEvents+` WHERE garden_key = ? ORDER BY id DESC LIMIT ?`, id.Key(), n)
	if err != nil {
		return nil, fmt.Errorf("query garden events: %w", err)
	}
	return scanEntries(rows)
}

// CountByOperation returns how many events of each operation are stored.
func (x *Index) CountByOperation(ctx context.Context) (map[string]int, error) {
	rows, err := x.db.QueryContext(ctx, `SELECT operation, COUNT(*) FROM events GROUP BY operation`)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			op string
			n  int
		)
		if err := rows.Scan(&op, &n); err != nil {
			return nil, err
		}
		out[op] = n
	}
	return out, rows.Err()
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var (
			e                          Entry
			at, op                     string
			ts                         int64
			world, mapID, ward, landID uint16
		)
		if err := rows.Scan(&e.ID, &at, &ts, &op,
			&world, &mapID, &ward, &landID,
			&e.Identity.ObjectID, &e.Identity.LandIndex, &e.Identity.LandSubIndex,
			&e.Indoor, &e.Param1, &e.Param2); err != nil {
			return nil, err
		}
		e.Identity.Land = packets.LandIdent{WorldID: world, MapID: mapID, WardNum: ward, LandID: landID}
		e.Timestamp = uint64(ts)
		e.At, _ = time.Parse(time.RFC3339Nano, at)
		if parsed, ok := garden.ParseOperation(op); ok {
			e.Operation = parsed
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
