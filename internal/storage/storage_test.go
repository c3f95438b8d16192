package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"live-transcript-service/internal/models"
)

// failingKV fails every operation, like a disabled or full browser store.
type failingKV struct {
	sets int
}

func (f *failingKV) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, errors.New("storage disabled")
}

func (f *failingKV) Set(ctx context.Context, key, value string) error {
	f.sets++
	return errors.New("quota exceeded")
}

func TestMemoryKV_GetSet(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()

	if _, ok, err := kv.Get(ctx, "missing"); ok || err != nil {
		t.Errorf("expected missing key, got ok=%v err=%v", ok, err)
	}
	if err := kv.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, ok, err := kv.Get(ctx, "k")
	if !ok || err != nil || v != "v" {
		t.Errorf("expected v, got %q ok=%v err=%v", v, ok, err)
	}
}

func TestSQLiteKV_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "transcript.db")
	kv, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })

	if _, ok, err := kv.Get(ctx, KeyText); ok || err != nil {
		t.Fatalf("expected empty store, got ok=%v err=%v", ok, err)
	}
	if err := kv.Set(ctx, KeyText, "first"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := kv.Set(ctx, KeyText, "second"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, ok, err := kv.Get(ctx, KeyText)
	if err != nil || !ok || v != "second" {
		t.Errorf("expected overwritten value, got %q ok=%v err=%v", v, ok, err)
	}
}

func TestSQLiteKV_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "transcript.db")

	kv, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := kv.Set(ctx, KeyText, "durable"); err != nil {
		t.Fatalf("set: %v", err)
	}
	kv.Close()

	kv, err = OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen sqlite: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })

	v, ok, _ := kv.Get(ctx, KeyText)
	if !ok || v != "durable" {
		t.Errorf("expected value to survive reopen, got %q ok=%v", v, ok)
	}
}

func TestBridge_SaveLoad(t *testing.T) {
	ctx := context.Background()
	b := NewBridge(NewMemoryKV())

	segments := []models.Segment{
		{ID: "s-seg-1", Text: "first point", TimestampMillis: 1000, Confidence: 0.9},
		{ID: "s-seg-2", Text: "second point", TimestampMillis: 2000, Confidence: 0.8},
	}
	b.Save(ctx, "rendered", segments)

	p := b.Load(ctx)
	if !p.HasText || p.Text != "rendered" {
		t.Errorf("expected text 'rendered', got %+v", p)
	}
	if !p.HasSegments || len(p.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %+v", p.Segments)
	}
	if p.Segments[1].Text != "second point" || p.Segments[1].TimestampMillis != 2000 {
		t.Errorf("unexpected segment: %+v", p.Segments[1])
	}
}

func TestBridge_SaveWithoutSegmentsKeepsExisting(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	b := NewBridge(kv)

	b.Save(ctx, "meeting", []models.Segment{{Text: "kept"}})
	b.Save(ctx, "flat text", nil)

	p := b.Load(ctx)
	if p.Text != "flat text" {
		t.Errorf("expected flat text, got %q", p.Text)
	}
	if len(p.Segments) != 1 || p.Segments[0].Text != "kept" {
		t.Errorf("expected segments untouched, got %+v", p.Segments)
	}
}

func TestBridge_LoadEmpty(t *testing.T) {
	p := NewBridge(NewMemoryKV()).Load(context.Background())
	if p.HasText || p.HasSegments {
		t.Errorf("expected nothing persisted, got %+v", p)
	}
}

func TestBridge_LoadCorruptSegments(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	kv.Set(ctx, KeyText, "text")
	kv.Set(ctx, KeySegments, "{not json")

	p := NewBridge(kv).Load(ctx)
	if !p.HasText {
		t.Error("expected text to load independently of corrupt segments")
	}
	if p.HasSegments {
		t.Error("expected corrupt segments to count as absent")
	}
}

func TestBridge_FailuresAreSwallowed(t *testing.T) {
	ctx := context.Background()
	kv := &failingKV{}
	b := NewBridge(kv)

	b.Save(ctx, "text", []models.Segment{{Text: "x"}})
	if kv.sets != 2 {
		t.Errorf("expected both keys attempted, got %d sets", kv.sets)
	}

	p := b.Load(ctx)
	if p.HasText || p.HasSegments {
		t.Errorf("expected nothing loaded from failing store, got %+v", p)
	}
}

func TestBridge_NilSafe(t *testing.T) {
	var b *Bridge
	b.Save(context.Background(), "x", nil)
	if p := b.Load(context.Background()); p.HasText {
		t.Error("expected nil bridge to load nothing")
	}
}
