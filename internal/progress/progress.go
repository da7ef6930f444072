// Package progress owns the companion's persisted XP and level. The on-disk
// shape is a small JSON file read by the passport widget, so it stays exactly
// {"xp": N, "level": L, "mood": S} and is rewritten wholesale on every grant.
package progress

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// DefaultMood seeds the mood field on a fresh store. XP grants never touch
// it; external tools may rewrite it and it round-trips unchanged.
const DefaultMood = "Happy"

// State is the persisted progression record.
type State struct {
	XP    int    `json:"xp"`
	Level int    `json:"level"`
	Mood  string `json:"mood,omitempty"`
}

// Store is the durable XP/level store.
//
// Expectations:
//   - XP is monotonically non-decreasing
//   - Level equals the highest index i with XP >= levels[i], and never decreases
//   - Every Grant persists, level-up or not
//   - A write failure is a warning, never fatal
type Store struct {
	path   string
	levels []int

	mu sync.Mutex
	st State
}

// Open loads the store at path, or initializes a zero state when the file is
// missing or unreadable. A corrupt file is logged and replaced on the next
// grant rather than aborting startup.
func Open(path string, levels []int) *Store {
	s := &Store{
		path:   path,
		levels: levels,
		st:     State{Mood: DefaultMood},
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("[XP] store unreadable, starting fresh", "path", path, "error", err)
		}
		return s
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		slog.Warn("[XP] store corrupt, starting fresh", "path", path, "error", err)
		return s
	}
	if st.Mood == "" {
		st.Mood = DefaultMood
	}
	s.st = st
	return s
}

// LevelFor returns the highest level index whose threshold xp meets, or 0
// when none qualify.
func LevelFor(xp int, levels []int) int {
	lvl := 0
	for i, t := range levels {
		if xp >= t {
			lvl = i
		}
	}
	return lvl
}

// Grant adds n XP, recomputes the level, and persists. Returns true when the
// level increased. The stored level is never lowered, even if the thresholds
// would now derive a smaller value.
func (s *Store) Grant(n int) bool {
	s.mu.Lock()
	s.st.XP += n
	leveled := false
	if lvl := LevelFor(s.st.XP, s.levels); lvl > s.st.Level {
		s.st.Level = lvl
		leveled = true
	}
	st := s.st
	s.mu.Unlock()

	s.save(st)
	return leveled
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

// save rewrites the store file. Temp-file-then-rename keeps a crash mid-write
// from corrupting the previous record.
func (s *Store) save(st State) {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		slog.Warn("[XP] marshal state", "error", err)
		return
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		slog.Warn("[XP] write store", "path", tmp, "error", err)
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		slog.Warn("[XP] replace store", "path", s.path, "error", err)
	}
}

// Path returns the store's file path.
func (s *Store) Path() string { return filepath.Clean(s.path) }
