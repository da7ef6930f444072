package progress

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

var levels = []int{0, 50, 150}

func storePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "xp.json")
}

// ---------------------------------------------------------------------------
// LevelFor tests
// ---------------------------------------------------------------------------

func TestLevelFor(t *testing.T) {
	// Level is the highest index whose threshold is met
	cases := []struct{ xp, want int }{
		{0, 0}, {49, 0}, {50, 1}, {149, 1}, {150, 2}, {9999, 2},
	}
	for _, c := range cases {
		if got := LevelFor(c.xp, levels); got != c.want {
			t.Errorf("LevelFor(%d) = %d, want %d", c.xp, got, c.want)
		}
	}
}

func TestLevelFor_NoneQualify(t *testing.T) {
	// Thresholds that all exceed xp derive level 0
	if got := LevelFor(5, []int{10, 20}); got != 0 {
		t.Errorf("LevelFor(5) = %d", got)
	}
}

// ---------------------------------------------------------------------------
// Grant tests
// ---------------------------------------------------------------------------

func TestGrant_LevelInvariantOverSequence(t *testing.T) {
	s := Open(storePath(t), levels)
	for _, n := range []int{10, 10, 10, 10, 10, 60, 1, 200} {
		s.Grant(n)
		st := s.Snapshot()
		if want := LevelFor(st.XP, levels); st.Level != want {
			t.Fatalf("after grants xp=%d: level=%d, want %d", st.XP, st.Level, want)
		}
	}
}

func TestGrant_CrossingThreshold(t *testing.T) {
	path := storePath(t)
	s := Open(path, levels)
	s.Grant(40)
	if s.Grant(20) != true {
		t.Fatal("expected level-up crossing 50")
	}
	st := s.Snapshot()
	if st.XP != 60 || st.Level != 1 {
		t.Fatalf("got %+v, want xp=60 level=1", st)
	}

	// The updated pair is on disk
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var onDisk State
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatal(err)
	}
	if onDisk.XP != 60 || onDisk.Level != 1 {
		t.Fatalf("persisted %+v, want xp=60 level=1", onDisk)
	}
}

func TestGrant_NoLevelUpStillPersists(t *testing.T) {
	path := storePath(t)
	s := Open(path, levels)
	if s.Grant(10) {
		t.Fatal("unexpected level-up")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("store not persisted: %v", err)
	}
}

func TestGrant_LevelNeverDecreases(t *testing.T) {
	// A stored level above what the thresholds derive is kept
	path := storePath(t)
	seed, _ := json.Marshal(State{XP: 10, Level: 2, Mood: "Happy"})
	if err := os.WriteFile(path, seed, 0o644); err != nil {
		t.Fatal(err)
	}
	s := Open(path, levels)
	s.Grant(1)
	if got := s.Snapshot().Level; got != 2 {
		t.Errorf("level = %d, want 2 (never decreases)", got)
	}
}

// ---------------------------------------------------------------------------
// Open tests
// ---------------------------------------------------------------------------

func TestOpen_RoundTrip(t *testing.T) {
	path := storePath(t)
	s := Open(path, levels)
	s.Grant(60)
	want := s.Snapshot()

	// A restart with the store present reproduces the same pair
	again := Open(path, levels)
	if got := again.Snapshot(); got != want {
		t.Errorf("round-trip: got %+v, want %+v", got, want)
	}
}

func TestOpen_MissingFile(t *testing.T) {
	s := Open(storePath(t), levels)
	st := s.Snapshot()
	if st.XP != 0 || st.Level != 0 {
		t.Errorf("fresh store = %+v", st)
	}
	if st.Mood != DefaultMood {
		t.Errorf("mood = %q", st.Mood)
	}
}

func TestOpen_CorruptFile(t *testing.T) {
	path := storePath(t)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := Open(path, levels)
	if st := s.Snapshot(); st.XP != 0 || st.Level != 0 {
		t.Errorf("corrupt store should start fresh, got %+v", st)
	}
}

func TestMood_RoundTripsUntouched(t *testing.T) {
	path := storePath(t)
	seed, _ := json.Marshal(State{XP: 5, Level: 0, Mood: "Grumpy"})
	if err := os.WriteFile(path, seed, 0o644); err != nil {
		t.Fatal(err)
	}
	s := Open(path, levels)
	s.Grant(1)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var onDisk State
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatal(err)
	}
	if onDisk.Mood != "Grumpy" {
		t.Errorf("mood = %q, want Grumpy (grants must not touch it)", onDisk.Mood)
	}
}
