package registry

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

const testDim = 512

// testEmbedding builds a 512-dim embedding with a single 1.0 at the given index.
func testEmbedding(index int) []float32 {
	emb := make([]float32, testDim)
	emb[index] = 1
	return emb
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "embeddings_db.json"), testDim)
}

func TestUpsertAndGet(t *testing.T) {
	reg := newTestRegistry(t)

	record, err := reg.Upsert("alice", testEmbedding(0), "S-001")
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if record.StudentID != "S-001" {
		t.Errorf("StudentID = %q, want S-001", record.StudentID)
	}
	if record.RegisteredAt.IsZero() {
		t.Error("RegisteredAt should be set")
	}

	got, err := reg.Get("alice")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.StudentID != "S-001" {
		t.Errorf("Get().StudentID = %q, want S-001", got.StudentID)
	}
}

func TestUpsert_GeneratesStudentID(t *testing.T) {
	reg := newTestRegistry(t)

	record, err := reg.Upsert("alice", testEmbedding(0), "")
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if record.StudentID == "" {
		t.Error("expected a generated student ID for empty input")
	}
}

func TestUpsert_InvalidEmbedding(t *testing.T) {
	reg := newTestRegistry(t)

	tests := []struct {
		name      string
		embedding []float32
	}{
		{"wrong dimension", make([]float32, 128)},
		{"empty", nil},
		{"zero vector", make([]float32, testDim)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := reg.Upsert("bob", tt.embedding, ""); !errors.Is(err, ErrInvalidEmbedding) {
				t.Errorf("Upsert() error = %v, want ErrInvalidEmbedding", err)
			}
		})
	}

	if reg.Count() != 0 {
		t.Errorf("Count() = %d after rejected upserts, want 0", reg.Count())
	}
}

func TestUpsert_ReplacesExisting(t *testing.T) {
	reg := newTestRegistry(t)

	if _, err := reg.Upsert("alice", testEmbedding(0), "S-001"); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if _, err := reg.Upsert("alice", testEmbedding(1), "S-002"); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if reg.Count() != 1 {
		t.Errorf("Count() = %d, want 1", reg.Count())
	}
	got, _ := reg.Get("alice")
	if got.Embedding[1] != 1 {
		t.Error("re-registration should overwrite the embedding")
	}
}

func TestUpsertAveraged(t *testing.T) {
	reg := newTestRegistry(t)

	a := testEmbedding(0)
	b := testEmbedding(1)
	if _, err := reg.UpsertAveraged("alice", [][]float32{a, b}, ""); err != nil {
		t.Fatalf("UpsertAveraged() error = %v", err)
	}

	got, _ := reg.Get("alice")
	if math.Abs(float64(got.Embedding[0])-0.5) > 0.0001 || math.Abs(float64(got.Embedding[1])-0.5) > 0.0001 {
		t.Errorf("averaged embedding = [%v %v ...], want [0.5 0.5 ...]", got.Embedding[0], got.Embedding[1])
	}
}

func TestUpsertAveraged_IdempotentOverCopies(t *testing.T) {
	reg := newTestRegistry(t)

	emb := testEmbedding(7)
	if _, err := reg.UpsertAveraged("alice", [][]float32{emb, emb, emb}, ""); err != nil {
		t.Fatalf("UpsertAveraged() error = %v", err)
	}

	got, _ := reg.Get("alice")
	for i := range emb {
		if math.Abs(float64(got.Embedding[i]-emb[i])) > 0.0001 {
			t.Fatalf("averaging k copies changed the embedding at index %d", i)
		}
	}
}

func TestUpsertAveraged_Empty(t *testing.T) {
	reg := newTestRegistry(t)

	if _, err := reg.UpsertAveraged("alice", nil, ""); !errors.Is(err, ErrEmptyEnrollment) {
		t.Errorf("UpsertAveraged() error = %v, want ErrEmptyEnrollment", err)
	}
}

func TestRemove(t *testing.T) {
	reg := newTestRegistry(t)

	if _, err := reg.Upsert("alice", testEmbedding(0), ""); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := reg.Remove("alice"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	if _, err := reg.Get("alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Remove error = %v, want ErrNotFound", err)
	}
	if len(reg.All()) != 0 {
		t.Error("All() should not contain removed entries")
	}
}

func TestRemove_NotFound(t *testing.T) {
	reg := newTestRegistry(t)

	if err := reg.Remove("ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Remove() error = %v, want ErrNotFound", err)
	}
}

func TestRemove_NormalizedLookup(t *testing.T) {
	reg := newTestRegistry(t)

	if _, err := reg.Upsert("Jiří Novák", testEmbedding(0), ""); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := reg.Remove("jiri novak"); err != nil {
		t.Errorf("Remove() with normalized name error = %v", err)
	}
}

func TestAll_InsertionOrder(t *testing.T) {
	reg := newTestRegistry(t)

	names := []string{"carol", "alice", "bob"}
	for i, name := range names {
		if _, err := reg.Upsert(name, testEmbedding(i), ""); err != nil {
			t.Fatalf("Upsert(%q) error = %v", name, err)
		}
	}

	entries := reg.All()
	if len(entries) != len(names) {
		t.Fatalf("All() returned %d entries, want %d", len(entries), len(names))
	}
	for i, entry := range entries {
		if entry.Name != names[i] {
			t.Errorf("All()[%d].Name = %q, want %q", i, entry.Name, names[i])
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	reg := newTestRegistry(t)

	if err := reg.Load(); err != nil {
		t.Errorf("Load() with missing file error = %v, want nil", err)
	}
	if reg.Count() != 0 {
		t.Errorf("Count() = %d, want 0", reg.Count())
	}
}

func TestLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings_db.json")

	first := New(path, testDim)
	if _, err := first.Upsert("alice", testEmbedding(0), "S-001"); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if _, err := first.Upsert("bob", testEmbedding(1), ""); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	second := New(path, testDim)
	if err := second.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if second.Count() != 2 {
		t.Fatalf("Count() after reload = %d, want 2", second.Count())
	}
	got, err := second.Get("alice")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.StudentID != "S-001" {
		t.Errorf("StudentID = %q, want S-001", got.StudentID)
	}
	if got.Embedding[0] != 1 {
		t.Error("embedding did not survive the round trip")
	}
}

func TestLoad_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings_db.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	reg := New(path, testDim)
	if err := reg.Load(); !errors.Is(err, ErrCorruptStore) {
		t.Errorf("Load() error = %v, want ErrCorruptStore", err)
	}
	// The registry stays usable as an empty store.
	if reg.Count() != 0 {
		t.Errorf("Count() = %d after corrupt load, want 0", reg.Count())
	}
	if _, err := reg.Upsert("alice", testEmbedding(0), ""); err != nil {
		t.Errorf("Upsert() after corrupt load error = %v", err)
	}
}

func TestLoad_MigratesLegacyBareVectors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings_db.json")

	legacy := map[string]any{
		"alice": testEmbedding(0),
		"bob": map[string]any{
			"embedding":     testEmbedding(1),
			"student_id":    "S-002",
			"registered_at": "2025-09-01T10:00:00Z",
		},
	}
	data, err := json.Marshal(legacy)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	reg := New(path, testDim)
	if err := reg.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	alice, err := reg.Get("alice")
	if err != nil {
		t.Fatalf("Get(alice) error = %v", err)
	}
	if len(alice.Embedding) != testDim {
		t.Errorf("migrated embedding has %d dims, want %d", len(alice.Embedding), testDim)
	}

	bob, err := reg.Get("bob")
	if err != nil {
		t.Fatalf("Get(bob) error = %v", err)
	}
	if bob.StudentID != "S-002" {
		t.Errorf("structured record StudentID = %q, want S-002", bob.StudentID)
	}
}

func TestConcurrentUpsertAndRemove(t *testing.T) {
	reg := newTestRegistry(t)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = reg.Upsert("carol", testEmbedding(2), "S-003")
		}()
		go func() {
			defer wg.Done()
			_ = reg.Remove("carol")
		}()
	}
	wg.Wait()

	// Either fully present or fully absent, never a half-written record.
	record, err := reg.Get("carol")
	if err == nil {
		if len(record.Embedding) != testDim || record.StudentID != "S-003" {
			t.Errorf("present record is incomplete: %d dims, id %q", len(record.Embedding), record.StudentID)
		}
	} else if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want nil or ErrNotFound", err)
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Jiří", "jiri"},
		{"john-doe", "john doe"},
		{"John_Doe", "john doe"},
		{"  Alice  ", "alice"},
		{"alice", "alice"},
	}

	for _, tt := range tests {
		if got := NormalizeName(tt.input); got != tt.expected {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestUpsert_FailedSaveRollsBack(t *testing.T) {
	// The registry path is an existing directory, so the rename in the save
	// step fails and the mutation must not survive in memory.
	reg := New(t.TempDir(), testDim)

	if _, err := reg.Upsert("alice", testEmbedding(0), "S-001"); err == nil {
		t.Fatal("Upsert() with an unwritable path should fail")
	}

	if _, err := reg.Get("alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after failed Upsert error = %v, want ErrNotFound", err)
	}
	if reg.Count() != 0 {
		t.Errorf("Count() = %d after failed Upsert, want 0", reg.Count())
	}
	if len(reg.All()) != 0 {
		t.Errorf("All() = %v after failed Upsert, want empty", reg.All())
	}
}

func TestUpsert_FailedSaveKeepsPreviousRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings_db.json")
	reg := New(path, testDim)
	if _, err := reg.Upsert("alice", testEmbedding(0), "S-001"); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	// Occupy the registry path with a directory so the next save fails.
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatal(err)
	}

	if _, err := reg.Upsert("alice", testEmbedding(1), "S-999"); err == nil {
		t.Fatal("Upsert() with an unwritable path should fail")
	}

	got, err := reg.Get("alice")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.StudentID != "S-001" || got.Embedding[0] != 1 {
		t.Errorf("record = %+v, want the pre-failure record kept", got)
	}
}

func TestRemove_FailedSaveRestoresRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings_db.json")
	reg := New(path, testDim)
	if _, err := reg.Upsert("alice", testEmbedding(0), "S-001"); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if _, err := reg.Upsert("bob", testEmbedding(1), "S-002"); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatal(err)
	}

	if err := reg.Remove("alice"); err == nil {
		t.Fatal("Remove() with an unwritable path should fail")
	}

	if _, err := reg.Get("alice"); err != nil {
		t.Errorf("Get(alice) after failed Remove error = %v, want record kept", err)
	}
	if reg.Count() != 2 {
		t.Errorf("Count() = %d after failed Remove, want 2", reg.Count())
	}
	entries := reg.All()
	if len(entries) != 2 || entries[0].Name != "alice" || entries[1].Name != "bob" {
		t.Errorf("All() = %v, want insertion order restored", entries)
	}
}

func TestSave_RewritesMigratedStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings_db.json")

	legacy := map[string]any{"alice": testEmbedding(0)}
	data, err := json.Marshal(legacy)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	reg := New(path, testDim)
	if err := reg.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reg.MigratedLegacy() {
		t.Fatal("MigratedLegacy() = false after loading a bare-vector store")
	}
	if err := reg.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// The rewritten file holds structured records now.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var records map[string]Record
	if err := json.Unmarshal(raw, &records); err != nil {
		t.Fatalf("rewritten store does not parse as structured records: %v", err)
	}
	if len(records["alice"].Embedding) != testDim || records["alice"].RegisteredAt.IsZero() {
		t.Errorf("rewritten record = %+v, want embedding and timestamp", records["alice"])
	}

	second := New(path, testDim)
	if err := second.Load(); err != nil {
		t.Fatalf("Load() of rewritten store error = %v", err)
	}
	if second.MigratedLegacy() {
		t.Error("MigratedLegacy() = true after loading the rewritten store")
	}
}
