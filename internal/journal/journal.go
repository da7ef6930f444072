// Package journal persists a durable trail of every event the engine
// handles, so RFID scans and level-ups can be audited after the fact.
//
// LevelDB key scheme — "|" separates segments so event names stay safe:
//
//	e|<RFC3339Nano>|<uuid> → Record JSON
//
// Timestamps sort lexicographically, so a reverse iterator over the "e|"
// prefix yields newest-first.
package journal

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const prefixEvent = "e|"

// Record is one handled event.
type Record struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Source string `json:"source"`
	At     string `json:"at"` // RFC3339Nano
}

// Journal is the LevelDB-backed event trail. All methods are nil-safe so the
// engine runs unchanged when journaling is disabled.
type Journal struct {
	db *leveldb.DB
}

// Open opens (or creates) the journal database at dir. LevelDB is
// single-writer; a second running daemon will fail here.
func Open(dir string) (*Journal, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", dir, err)
	}
	return &Journal{db: db}, nil
}

// Record appends one event. Failures are logged and swallowed — the behavior
// loop never stalls on the journal.
func (j *Journal) Record(r Record) {
	if j == nil {
		return
	}
	data, err := json.Marshal(r)
	if err != nil {
		slog.Warn("[JOURNAL] marshal record", "error", err)
		return
	}
	key := prefixEvent + r.At + "|" + r.ID
	if err := j.db.Put([]byte(key), data, nil); err != nil {
		slog.Warn("[JOURNAL] put record", "key", key, "error", err)
	}
}

// Recent returns up to n records, newest first.
func (j *Journal) Recent(n int) ([]Record, error) {
	if j == nil || n <= 0 {
		return nil, nil
	}
	iter := j.db.NewIterator(util.BytesPrefix([]byte(prefixEvent)), nil)
	defer iter.Release()

	var out []Record
	for ok := iter.Last(); ok && len(out) < n; ok = iter.Prev() {
		var r Record
		if err := json.Unmarshal(iter.Value(), &r); err != nil {
			slog.Warn("[JOURNAL] corrupt record skipped", "key", string(iter.Key()), "error", err)
			continue
		}
		out = append(out, r)
	}
	if err := iter.Error(); err != nil {
		return out, fmt.Errorf("journal: scan: %w", err)
	}
	return out, nil
}

// Close flushes and closes the database.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}
