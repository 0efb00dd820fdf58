package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// testStore creates a temporary SQLite store for testing and registers cleanup.
func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "overrides.db")
	s, err := Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Open(%q): %v", dbPath, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type fakeToggler struct {
	known map[[2]uint32]bool
	calls []Override
}

func (f *fakeToggler) SetEnabled(titleID, patchID uint32, enabled bool) int {
	f.calls = append(f.calls, Override{titleID, patchID, enabled})
	if f.known[[2]uint32{titleID, patchID}] {
		return 1
	}
	return 0
}

func TestSetGetDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := testStore(t)

	if _, ok, err := s.Get(ctx, 0x4D5307E6, 1); err != nil || ok {
		t.Fatalf("Get on empty store = %v, %v", ok, err)
	}

	if err := s.Set(ctx, Override{TitleID: 0x4D5307E6, PatchID: 1, Enabled: false}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, Override{TitleID: 0x4D5307E6, PatchID: 1, Enabled: true}); err != nil {
		t.Fatalf("Set (update): %v", err)
	}

	o, ok, err := s.Get(ctx, 0x4D5307E6, 1)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if !o.Enabled {
		t.Error("upsert did not replace the earlier value")
	}

	if err := s.Delete(ctx, 0x4D5307E6, 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, 0x4D5307E6, 1); ok {
		t.Error("override still present after Delete")
	}
}

func TestList_OrderedAndFullRange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := testStore(t)

	in := []Override{
		{TitleID: 0xFFFFFFFF, PatchID: 2, Enabled: true},
		{TitleID: 0x00000001, PatchID: 9, Enabled: false},
		{TitleID: 0xFFFFFFFF, PatchID: 1, Enabled: false},
	}
	for _, o := range in {
		if err := s.Set(ctx, o); err != nil {
			t.Fatalf("Set(%+v): %v", o, err)
		}
	}

	got, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []Override{in[1], in[2], in[0]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}
}

func TestReplay(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := testStore(t)

	for _, o := range []Override{{1, 1, false}, {2, 7, true}} {
		if err := s.Set(ctx, o); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}

	tg := &fakeToggler{known: map[[2]uint32]bool{{1, 1}: true}}
	unmatched, err := s.Replay(ctx, tg)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(tg.calls) != 2 {
		t.Errorf("SetEnabled called %d times, want 2", len(tg.calls))
	}
	if diff := cmp.Diff([]Override{{2, 7, true}}, unmatched); diff != "" {
		t.Errorf("unmatched mismatch (-want +got):\n%s", diff)
	}
}
