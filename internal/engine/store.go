// Package engine owns the in-memory object registry and its durable
// mirror. Two implementations exist: FileStore (single JSON snapshot
// file) and BadgerStore (badger key-value backend). Both reconstruct
// concrete types through the model type registry.
package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emberworks/ember-store/pkg/model"
)

var (
	// ErrStorageWrite wraps backing-store write failures. In-memory state
	// is unaffected and the caller may retry.
	ErrStorageWrite = errors.New("storage write failed")
	// ErrStorageRead wraps an unreadable or unparseable backing store.
	// Reload leaves the registry unchanged when it surfaces.
	ErrStorageRead = errors.New("storage read failed")
	// ErrNotFound is returned when no object is registered under the
	// requested (type name, id).
	ErrNotFound = errors.New("object not found")
)

// Key builds the registry key for a type name and identifier.
func Key(typeName, id string) string {
	return typeName + "." + id
}

// SplitKey is the inverse of Key.
func SplitKey(key string) (typeName, id string, ok bool) {
	return strings.Cut(key, ".")
}

// Store is the storage engine contract shared by the embedded backends.
//
// Multiple processes sharing one backing store are unsupported: there is
// no cross-process locking, and the last writer wins.
type Store interface {
	// New registers an object in memory under (type name, id), replacing
	// any previous instance. Nothing is persisted until Save.
	New(obj model.Object)
	// Save persists a snapshot of the whole registry.
	Save() error
	// SaveObject refreshes the object's updated-at timestamp, registers
	// it, and persists the whole registry.
	SaveObject(obj model.Object) error
	// Update merges attrs onto the object registered under (type name,
	// id) and persists the registry. Identity, lifecycle timestamps and
	// the type tag in attrs are ignored. The registered instance is
	// replaced by a fresh reconstruction, never mutated in place, so
	// concurrent readers may serialize it without holding the engine
	// lock. A missing object yields ErrNotFound.
	Update(typeName, id string, attrs map[string]any) (model.Object, error)
	// Reload replaces the registry with the persisted records. A missing
	// backing store is a no-op; records of unregistered types are skipped
	// with a warning.
	Reload() error
	// All returns a snapshot copy of the registry, optionally filtered to
	// one type name ("" means everything), keyed by Key(type, id).
	All(typeName string) map[string]model.Object
	// Get returns the live object under (type name, id).
	Get(typeName, id string) (model.Object, bool)
	// Delete removes (type name, id) from the registry, reporting whether
	// anything was removed. The removal becomes durable on the next Save.
	Delete(typeName, id string) bool
	// Count reports how many objects of the given type are registered
	// ("" counts everything).
	Count(typeName string) int
	// Close releases the backing store, flushing where the backend
	// requires it.
	Close() error
}

// snapshotOf serializes a registry map for persistence.
func snapshotOf(objects map[string]model.Object) map[string]map[string]any {
	records := make(map[string]map[string]any, len(objects))
	for key, obj := range objects {
		records[key] = obj.ToMap()
	}
	return records
}

// rebuild reconstructs typed objects from persisted records, skipping
// records that cannot be revived so one bad entry never poisons the rest.
func rebuild(records map[string]map[string]any, types *model.Registry, warn func(msg string, args ...any)) map[string]model.Object {
	objects := make(map[string]model.Object, len(records))
	for key, attrs := range records {
		typeName, _, ok := SplitKey(key)
		if !ok {
			warn("skipping record with malformed key", "key", key)
			continue
		}
		obj, err := types.New(typeName, attrs)
		if err != nil {
			warn("skipping record", "key", key, "error", err)
			continue
		}
		objects[Key(obj.TypeName(), obj.ObjectID())] = obj
	}
	return objects
}

// revise builds the replacement for a registered object: the old record
// merged with attrs, reconstructed as a fresh instance and swapped into
// the registry. Engine-owned attributes in attrs are discarded. Must be
// called with the store lock held.
func revise(objects map[string]model.Object, types *model.Registry, typeName, id string, attrs map[string]any, now time.Time) (model.Object, error) {
	key := Key(typeName, id)
	obj, ok := objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	merged := obj.ToMap()
	for k, v := range attrs {
		switch k {
		case "id", "created_at", "updated_at", model.ClassKey:
			// Engine-owned.
		default:
			merged[k] = v
		}
	}

	fresh, err := types.New(typeName, merged)
	if err != nil {
		return nil, err
	}
	fresh.Touch(now)
	objects[key] = fresh
	return fresh, nil
}

// Migrate copies every live object from src into dst and persists the
// destination. It works across backends, so it doubles as backup and
// restore between the file and badger engines.
func Migrate(src, dst Store) error {
	for _, obj := range src.All("") {
		dst.New(obj)
	}
	if err := dst.Save(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
