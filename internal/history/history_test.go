package history

import (
	"testing"
	"time"
)

func TestAppendAndRecent(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := t.Context()
	started := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	entry := Entry{
		BuildID:   "b-1",
		Started:   started,
		Finished:  started.Add(3 * time.Second),
		Outcome:   "success",
		Pages:     4,
		Rendered:  4,
		Failed:    0,
		Duration:  3200 * time.Millisecond,
		OutputDir: "/tmp/dist",
	}
	if err := store.Append(ctx, entry); err != nil {
		t.Fatalf("failed to append: %v", err)
	}

	entries, err := store.Recent(ctx, 5)
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	got := entries[0]
	if got.BuildID != "b-1" || got.Outcome != "success" {
		t.Errorf("unexpected entry: %+v", got)
	}
	if got.Pages != 4 || got.Rendered != 4 || got.Failed != 0 {
		t.Errorf("unexpected counts: %+v", got)
	}
	if got.Duration != 3200*time.Millisecond {
		t.Errorf("expected duration 3.2s, got %s", got.Duration)
	}
	if !got.Started.Equal(started) {
		t.Errorf("expected started %s, got %s", started, got.Started)
	}
	if got.OutputDir != "/tmp/dist" {
		t.Errorf("unexpected output dir: %s", got.OutputDir)
	}
}

func TestRecentOrderAndLimit(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := t.Context()
	base := time.Now()
	for i := range 5 {
		e := Entry{
			BuildID:  "b-" + string(rune('a'+i)),
			Started:  base.Add(time.Duration(i) * time.Minute),
			Finished: base.Add(time.Duration(i)*time.Minute + time.Second),
			Outcome:  "success",
		}
		if err := store.Append(ctx, e); err != nil {
			t.Fatalf("failed to append %d: %v", i, err)
		}
	}

	entries, err := store.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].BuildID != "b-e" || entries[2].BuildID != "b-c" {
		t.Errorf("expected newest first, got %s..%s", entries[0].BuildID, entries[2].BuildID)
	}
}

func TestRecentDefaultLimit(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := t.Context()
	for i := range 12 {
		if err := store.Append(ctx, Entry{BuildID: "b", Outcome: "success", Pages: i}); err != nil {
			t.Fatalf("failed to append: %v", err)
		}
	}
	entries, err := store.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if len(entries) != 10 {
		t.Fatalf("expected default limit of 10, got %d", len(entries))
	}
}

func TestRecentEmpty(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	entries, err := store.Recent(t.Context(), 5)
	if err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}
