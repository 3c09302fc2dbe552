package results

import (
	"path/filepath"
	"testing"

	"github.com/pixil98/go-testutil"
	"github.com/pixil98/mindmaze/internal/level"
	"github.com/pixil98/mindmaze/internal/storage"
)

func openKV(t *testing.T) *storage.FileKV {
	t.Helper()
	kv, err := storage.OpenFileKV(filepath.Join(t.TempDir(), "store.json"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	return kv
}

func TestCache_SaveLoad(t *testing.T) {
	kv := openKV(t)

	_, found, err := LoadCached(kv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "found before save", found, false)

	if err := SaveCached(kv, testSummary()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s, found, err := LoadCached(kv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "found", found, true)
	testutil.AssertEqual(t, "session", s.SessionID, "s-1")
	testutil.AssertEqual(t, "levels", len(s.Levels), 2)
	testutil.AssertEqual(t, "status", s.Levels[1].Status, level.StatusTimeout)
}

func TestCurrent(t *testing.T) {
	kv := openKV(t)

	_, ok := Current(kv, nil)
	testutil.AssertEqual(t, "nothing yet", ok, false)

	var log recordLog
	log.start(t, 0, "level-1", 5)
	log.end(t, 0, "level-1", level.StatusWin, 800, 4)

	s, ok := Current(kv, log.records)
	testutil.AssertEqual(t, "computed", ok, true)
	testutil.AssertEqual(t, "efficiency", s.MeanEfficiency, 1.0)

	// Once the local log is gone the cached copy is used.
	s, ok = Current(kv, nil)
	testutil.AssertEqual(t, "cached", ok, true)
	testutil.AssertEqual(t, "cached levels", len(s.Levels), 1)
	testutil.AssertEqual(t, "cached id", s.Levels[0].LevelID, "level-1")
}
