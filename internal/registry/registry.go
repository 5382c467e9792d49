// Package registry implements the persistent store of enrolled face
// embeddings. The store is a single JSON document keyed by student name,
// rewritten wholesale on every mutation and replaced atomically so a crash
// mid-write can never corrupt it.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when the named student is not enrolled.
	ErrNotFound = errors.New("student not found")

	// ErrCorruptStore is returned by Load when the persisted document cannot
	// be parsed. The registry is left empty and remains usable.
	ErrCorruptStore = errors.New("corrupt registry file")

	// ErrInvalidEmbedding is returned when an embedding has the wrong
	// dimensionality or is a zero vector.
	ErrInvalidEmbedding = errors.New("invalid embedding")

	// ErrEmptyEnrollment is returned by UpsertAveraged when no embeddings
	// were provided.
	ErrEmptyEnrollment = errors.New("no enrollment embeddings provided")
)

// Record is the stored identity of one enrolled student.
type Record struct {
	Embedding    []float32 `json:"embedding"`
	StudentID    string    `json:"student_id,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Entry pairs a student name with their record for iteration.
type Entry struct {
	Name   string
	Record Record
}

// Registry is the file-backed embedding store. Reads may run concurrently;
// mutations take the write lock, update memory and then persist, so readers
// never observe a half-applied change.
type Registry struct {
	mu       sync.RWMutex
	path     string
	dim      int
	order    []string
	records  map[string]Record
	migrated bool
}

// New creates a registry backed by the given file path. Embeddings must have
// exactly dim elements. The file is not touched until Load or the first
// mutation.
func New(path string, dim int) *Registry {
	return &Registry{
		path:    path,
		dim:     dim,
		records: make(map[string]Record),
	}
}

// Load reads the persisted document into memory. A missing file is not an
// error and yields an empty registry. An unreadable or unparseable file
// returns an error wrapping ErrCorruptStore; the registry stays empty and
// fully usable, which is the documented data-loss fallback.
func (r *Registry) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.order = nil
	r.records = make(map[string]Record)
	r.migrated = false

	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: reading %s: %v", ErrCorruptStore, r.path, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: parsing %s: %v", ErrCorruptStore, r.path, err)
	}

	for name, msg := range raw {
		record, legacy, err := decodeRecord(msg)
		if err != nil {
			return fmt.Errorf("%w: entry %q: %v", ErrCorruptStore, name, err)
		}
		if legacy {
			r.migrated = true
		}
		r.records[name] = record
		r.order = append(r.order, name)
	}

	// JSON objects carry no order, so make reload order deterministic:
	// oldest registration first, name as tie-break.
	sort.SliceStable(r.order, func(i, j int) bool {
		a, b := r.records[r.order[i]], r.records[r.order[j]]
		if !a.RegisteredAt.Equal(b.RegisteredAt) {
			return a.RegisteredAt.Before(b.RegisteredAt)
		}
		return r.order[i] < r.order[j]
	})

	return nil
}

// decodeRecord parses one stored entry. Older databases stored a bare float
// array per name; those are migrated to structured records here, once, and
// flagged so the caller can rewrite the store in the new shape.
func decodeRecord(msg json.RawMessage) (Record, bool, error) {
	var record Record
	if err := json.Unmarshal(msg, &record); err == nil && len(record.Embedding) > 0 {
		return record, false, nil
	}

	var legacy []float32
	if err := json.Unmarshal(msg, &legacy); err != nil {
		return Record{}, false, errors.New("neither a record nor a legacy embedding array")
	}
	if len(legacy) == 0 {
		return Record{}, false, errors.New("empty legacy embedding")
	}
	return Record{Embedding: legacy, RegisteredAt: time.Now().UTC()}, true, nil
}

// validateEmbedding rejects embeddings of the wrong dimension and zero vectors.
func (r *Registry) validateEmbedding(embedding []float32) error {
	if len(embedding) != r.dim {
		return fmt.Errorf("%w: got %d dimensions, want %d", ErrInvalidEmbedding, len(embedding), r.dim)
	}
	for _, v := range embedding {
		if v != 0 {
			return nil
		}
	}
	return fmt.Errorf("%w: zero vector", ErrInvalidEmbedding)
}

// Upsert inserts or replaces the record for name. An empty studentID is
// replaced with a generated UUID so every record carries a stable external
// identifier. The change is persisted before Upsert returns; a failed save
// is reported to the caller, the in-memory change is rolled back and the
// previous on-disk state is untouched, so memory and disk never diverge.
func (r *Registry) Upsert(name string, embedding []float32, studentID string) (Record, error) {
	if err := r.validateEmbedding(embedding); err != nil {
		return Record{}, err
	}
	if studentID == "" {
		studentID = uuid.NewString()
	}

	record := Record{
		Embedding:    append([]float32(nil), embedding...),
		StudentID:    studentID,
		RegisteredAt: time.Now().UTC(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev, existed := r.records[name]
	if !existed {
		r.order = append(r.order, name)
	}
	r.records[name] = record

	if err := r.saveLocked(); err != nil {
		if existed {
			r.records[name] = prev
		} else {
			delete(r.records, name)
			r.order = r.order[:len(r.order)-1]
		}
		return Record{}, err
	}
	return record, nil
}

// UpsertAveraged stores the element-wise mean of the given enrollment
// embeddings as the reference for name. Averaging across several photos
// stabilizes matching against lighting and pose variation.
func (r *Registry) UpsertAveraged(name string, embeddings [][]float32, studentID string) (Record, error) {
	if len(embeddings) == 0 {
		return Record{}, ErrEmptyEnrollment
	}
	for _, emb := range embeddings {
		if err := r.validateEmbedding(emb); err != nil {
			return Record{}, err
		}
	}

	mean := make([]float32, r.dim)
	sums := make([]float64, r.dim)
	for _, emb := range embeddings {
		for i, v := range emb {
			sums[i] += float64(v)
		}
	}
	for i := range mean {
		mean[i] = float32(sums[i] / float64(len(embeddings)))
	}

	return r.Upsert(name, mean, studentID)
}

// Remove deletes the named student and persists the change. Lookup is loose:
// "Jiří" and "jiri" address the same record. A failed save restores the
// record, so a student is never forgotten in memory while still on disk.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok := r.resolveLocked(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	prev := r.records[key]
	idx := 0
	delete(r.records, key)
	for i, n := range r.order {
		if n == key {
			idx = i
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	if err := r.saveLocked(); err != nil {
		r.records[key] = prev
		r.order = append(r.order, "")
		copy(r.order[idx+1:], r.order[idx:])
		r.order[idx] = key
		return err
	}
	return nil
}

// Get returns the record for name using loose name matching.
func (r *Registry) Get(name string) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key, ok := r.resolveLocked(name)
	if !ok {
		return Record{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return r.records[key], nil
}

// resolveLocked finds the stored key for a requested name, first by exact
// match, then by normalized comparison. Callers must hold at least the read lock.
func (r *Registry) resolveLocked(name string) (string, bool) {
	if _, ok := r.records[name]; ok {
		return name, true
	}
	want := NormalizeName(name)
	for _, key := range r.order {
		if NormalizeName(key) == want {
			return key, true
		}
	}
	return "", false
}

// All returns a snapshot of every entry in insertion order. The snapshot is
// decoupled from later mutations; embeddings are shared but never mutated in
// place, so the matching path can read them without further locking.
func (r *Registry) All() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry, 0, len(r.order))
	for _, name := range r.order {
		entries = append(entries, Entry{Name: name, Record: r.records[name]})
	}
	return entries
}

// Count returns the number of enrolled students.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Path returns the backing file path.
func (r *Registry) Path() string {
	return r.path
}

// MigratedLegacy reports whether the last Load converted legacy bare-vector
// entries. Callers should Save once to rewrite the store in the new shape.
func (r *Registry) MigratedLegacy() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.migrated
}

// Save persists the current state atomically.
func (r *Registry) Save() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveLocked()
}

// saveLocked writes the document to a temp file in the same directory and
// renames it over the target, so readers of the file never see a partial
// write. Callers must hold the write lock.
func (r *Registry) saveLocked() error {
	data, err := json.MarshalIndent(r.records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding registry: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating registry directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".registry-*.json")
	if err != nil {
		return fmt.Errorf("creating temp registry file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing registry file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing registry file: %w", err)
	}
	return nil
}
