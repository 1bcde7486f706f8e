package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/emberworks/ember-store/pkg/model"
)

// FileStore keeps every live object in memory and mirrors the whole
// registry to a single JSON file on Save. A single coarse mutex
// serializes Save and Reload so neither ever observes a half-swapped
// registry.
type FileStore struct {
	mu      sync.Mutex
	objects map[string]model.Object
	persist *Persistence
	types   *model.Registry
	log     *slog.Logger
}

// NewFileStore creates a store backed by p. A nil p makes the store
// memory-only (useful in tests); a nil types falls back to model.Types.
func NewFileStore(p *Persistence, types *model.Registry) *FileStore {
	if types == nil {
		types = model.Types
	}
	return &FileStore{
		objects: make(map[string]model.Object),
		persist: p,
		types:   types,
		log:     slog.Default(),
	}
}

// SetLogger replaces the logger used for reload warnings.
func (s *FileStore) SetLogger(log *slog.Logger) {
	if log != nil {
		s.log = log
	}
}

// New registers obj in memory. Last write wins on key collision.
func (s *FileStore) New(obj model.Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[Key(obj.TypeName(), obj.ObjectID())] = obj
}

// Save writes the full registry snapshot to the backing file.
func (s *FileStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

// SaveObject refreshes obj's updated-at timestamp, registers it, and
// persists the full registry.
func (s *FileStore) SaveObject(obj model.Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj.Touch(time.Now().UTC())
	s.objects[Key(obj.TypeName(), obj.ObjectID())] = obj
	return s.flushLocked()
}

// Update merges attrs onto the object registered under (typeName, id)
// and persists the registry. The registered instance is replaced, not
// mutated, keeping concurrent ToMap readers safe.
func (s *FileStore) Update(typeName, id string, attrs map[string]any) (model.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, err := revise(s.objects, s.types, typeName, id, attrs, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.flushLocked(); err != nil {
		return nil, err
	}
	return obj, nil
}

func (s *FileStore) flushLocked() error {
	if s.persist == nil {
		return nil
	}
	return s.persist.WriteSnapshot(snapshotOf(s.objects))
}

// Reload replaces the registry with the records persisted on disk. A
// missing file leaves the registry untouched; so does an unparseable one,
// which additionally surfaces ErrStorageRead. Individual records that
// cannot be reconstructed are skipped with a warning.
func (s *FileStore) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.persist == nil {
		return nil
	}
	records, err := s.persist.ReadSnapshot()
	if err != nil {
		return err
	}
	if records == nil {
		return nil
	}
	s.objects = rebuild(records, s.types, s.log.Warn)
	return nil
}

// All returns a snapshot copy of the registry, optionally filtered to one
// type. Callers may mutate the returned map freely.
func (s *FileStore) All(typeName string) map[string]model.Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]model.Object, len(s.objects))
	for key, obj := range s.objects {
		if typeName == "" || obj.TypeName() == typeName {
			out[key] = obj
		}
	}
	return out
}

// Get returns the live object registered under (typeName, id).
func (s *FileStore) Get(typeName, id string) (model.Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[Key(typeName, id)]
	return obj, ok
}

// Delete removes (typeName, id) from the registry. The removal becomes
// durable on the next Save.
func (s *FileStore) Delete(typeName, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := Key(typeName, id)
	if _, ok := s.objects[key]; !ok {
		return false
	}
	delete(s.objects, key)
	return true
}

// Count reports how many objects of the given type are registered.
func (s *FileStore) Count(typeName string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if typeName == "" {
		return len(s.objects)
	}
	n := 0
	for _, obj := range s.objects {
		if obj.TypeName() == typeName {
			n++
		}
	}
	return n
}

// Close flushes the registry to disk one final time.
func (s *FileStore) Close() error {
	return s.Save()
}
