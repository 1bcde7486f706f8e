package engine

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/emberworks/ember-store/pkg/model"
)

// BadgerStore implements the Store contract on a badger database. The
// registry still lives in memory; Save mirrors it into badger, writing
// one record per object under the Key(type, id) keyspace and pruning
// entries deleted since the last flush.
type BadgerStore struct {
	mu      sync.Mutex
	objects map[string]model.Object
	db      *badger.DB
	types   *model.Registry
	log     *slog.Logger
}

// OpenBadger opens (or creates) a badger database in dir. A nil types
// falls back to model.Types.
func OpenBadger(dir string, types *model.Registry) (*BadgerStore, error) {
	if types == nil {
		types = model.Types
	}
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageRead, err)
	}
	return &BadgerStore{
		objects: make(map[string]model.Object),
		db:      db,
		types:   types,
		log:     slog.Default(),
	}, nil
}

// SetLogger replaces the logger used for reload warnings.
func (s *BadgerStore) SetLogger(log *slog.Logger) {
	if log != nil {
		s.log = log
	}
}

// New registers obj in memory. Last write wins on key collision.
func (s *BadgerStore) New(obj model.Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[Key(obj.TypeName(), obj.ObjectID())] = obj
}

// Save mirrors the registry into badger: every live object is written
// and every persisted key with no live object is removed.
func (s *BadgerStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

// SaveObject refreshes obj's updated-at timestamp, registers it, and
// persists the full registry.
func (s *BadgerStore) SaveObject(obj model.Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj.Touch(time.Now().UTC())
	s.objects[Key(obj.TypeName(), obj.ObjectID())] = obj
	return s.flushLocked()
}

// Update merges attrs onto the object registered under (typeName, id)
// and persists the registry. The registered instance is replaced, not
// mutated, keeping concurrent ToMap readers safe.
func (s *BadgerStore) Update(typeName, id string, attrs map[string]any) (model.Object, error) {
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

func (s *BadgerStore) flushLocked() error {
	err := s.db.Update(func(txn *badger.Txn) error {
		var stale [][]byte
		it := txn.NewIterator(badger.IteratorOptions{})
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if _, ok := s.objects[string(key)]; !ok {
				stale = append(stale, key)
			}
		}
		it.Close()
		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		for key, obj := range s.objects {
			data, err := json.Marshal(obj.ToMap())
			if err != nil {
				return err
			}
			if err := txn.Set([]byte(key), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	return nil
}

// Reload replaces the registry with the records persisted in badger.
// Records that cannot be reconstructed are skipped with a warning.
func (s *BadgerStore) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make(map[string]map[string]any)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())
			err := item.Value(func(val []byte) error {
				var attrs map[string]any
				if err := json.Unmarshal(val, &attrs); err != nil {
					return err
				}
				records[key] = attrs
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageRead, err)
	}

	s.objects = rebuild(records, s.types, s.log.Warn)
	return nil
}

// All returns a snapshot copy of the registry, optionally filtered to one
// type.
func (s *BadgerStore) All(typeName string) map[string]model.Object {
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
func (s *BadgerStore) Get(typeName, id string) (model.Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[Key(typeName, id)]
	return obj, ok
}

// Delete removes (typeName, id) from the registry. The removal becomes
// durable on the next Save.
func (s *BadgerStore) Delete(typeName, id string) bool {
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
func (s *BadgerStore) Count(typeName string) int {
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

// Close flushes the registry and closes the database.
func (s *BadgerStore) Close() error {
	if err := s.Save(); err != nil {
		return err
	}
	return s.db.Close()
}
