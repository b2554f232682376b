package snapstore

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "snapshots.db")
	st, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open snapshot store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	if err := st.Save(ctx, "doc-a", []byte("hello")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, ok, err := st.Load(ctx, "doc-a")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatal("expected snapshot to be found")
	}
	if string(data) != "hello" {
		t.Fatalf("data = %q, want %q", data, "hello")
	}
}

func TestLoadMissingDocumentReportsNotFound(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "snapshots.db")
	st, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open snapshot store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	_, ok, err := st.Load(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Fatal("expected not found")
	}
}

func TestSaveUpsertsLatestRevision(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "snapshots.db")
	st, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open snapshot store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	if err := st.Save(ctx, "doc-b", []byte("v1")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := st.Save(ctx, "doc-b", []byte("v2")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var count int
	if err := st.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots WHERE document_name = ?`, "doc-b").Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one row per document name, got %d", count)
	}

	data, _, err := st.Load(ctx, "doc-b")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(data) != "v2" {
		t.Fatalf("data = %q, want %q", data, "v2")
	}
}

func TestOnRoomDestroyedPersistsSnapshot(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "snapshots.db")
	st, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open snapshot store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	st.OnRoomDestroyed("doc-c", []byte("final-state"))

	data, ok, err := st.Load(context.Background(), "doc-c")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok || string(data) != "final-state" {
		t.Fatalf("data = %q, ok = %v", data, ok)
	}
}
