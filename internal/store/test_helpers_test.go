package store

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/peterjc/kana-chording-ke/internal/testutil"
)

// createTestStore creates a new store in a temp dir with a fake clock and
// sequential build IDs.
func createTestStore(t *testing.T) (*Store, *testutil.FakeClock) {
	t.Helper()
	clock := testutil.NewFakeClock()
	n := 0
	ids := func() string {
		n++
		return fmt.Sprintf("build-%03d", n)
	}
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithClock(clock.Now), WithIDs(ids))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, clock
}

// createTestBuild creates a build with minimal required fields.
func createTestBuild(layout, docDigest string) Build {
	return Build{
		Layout:          layout,
		LayoutDigest:    "layout-" + layout,
		DocumentDigest:  docDigest,
		OutputPath:      "/tmp/" + layout + ".json",
		RuleCount:       42,
		CompilerVersion: "test",
	}
}
