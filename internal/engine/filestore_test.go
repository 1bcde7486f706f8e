package engine

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/emberworks/ember-store/pkg/model"
)

func newTestPersistence(t *testing.T) *Persistence {
	t.Helper()
	p, err := NewPersistence(filepath.Join(t.TempDir(), "ember.json"), nil)
	if err != nil {
		t.Fatalf("NewPersistence failed: %v", err)
	}
	return p
}

func TestFileStore_SaveReloadCycle(t *testing.T) {
	p := newTestPersistence(t)
	s := NewFileStore(p, nil)

	u := model.NewUser()
	u.Email = "test@example.com"
	if err := s.SaveObject(u); err != nil {
		t.Fatalf("SaveObject failed: %v", err)
	}

	data, err := os.ReadFile(p.Path())
	if err != nil {
		t.Fatalf("reading backing file: %v", err)
	}
	if !strings.Contains(string(data), Key("User", u.ID)) {
		t.Errorf("backing file missing key %q:\n%s", Key("User", u.ID), data)
	}

	s2 := NewFileStore(p, nil)
	if err := s2.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}

	obj, ok := s2.Get("User", u.ID)
	if !ok {
		t.Fatal("object missing after reload")
	}
	revived, ok := obj.(*model.User)
	if !ok {
		t.Fatalf("expected *model.User, got %T", obj)
	}
	if revived.Email != "test@example.com" {
		t.Errorf("expected email to survive reload, got %q", revived.Email)
	}
	if !revived.CreatedAt.Equal(u.CreatedAt) {
		t.Errorf("created_at changed across reload: %v vs %v", revived.CreatedAt, u.CreatedAt)
	}
}

func TestFileStore_SaveObjectTouchesUpdatedAt(t *testing.T) {
	s := NewFileStore(nil, nil)

	u := model.NewUser()
	before := u.UpdatedAt
	time.Sleep(5 * time.Millisecond)

	if err := s.SaveObject(u); err != nil {
		t.Fatalf("SaveObject failed: %v", err)
	}
	if !u.UpdatedAt.After(before) {
		t.Errorf("updated_at not refreshed: %v vs %v", u.UpdatedAt, before)
	}
	if u.UpdatedAt.Before(u.CreatedAt) {
		t.Errorf("updated_at %v precedes created_at %v", u.UpdatedAt, u.CreatedAt)
	}
}

func TestFileStore_SaveIdempotent(t *testing.T) {
	p := newTestPersistence(t)
	s := NewFileStore(p, nil)
	s.New(model.NewUser())

	if err := s.Save(); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}
	first, _ := os.ReadFile(p.Path())

	if err := s.Save(); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}
	second, _ := os.ReadFile(p.Path())

	if string(first) != string(second) {
		t.Error("two Saves with no mutation produced different files")
	}
}

func TestFileStore_ReloadMissingFile(t *testing.T) {
	s := NewFileStore(newTestPersistence(t), nil)

	if err := s.Reload(); err != nil {
		t.Fatalf("Reload on missing file should succeed, got %v", err)
	}
	if n := s.Count(""); n != 0 {
		t.Errorf("expected empty registry, got %d objects", n)
	}
}

func TestFileStore_ReloadCorruptFile(t *testing.T) {
	p := newTestPersistence(t)
	if err := os.WriteFile(p.Path(), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	s := NewFileStore(p, nil)
	s.New(model.NewUser())

	err := s.Reload()
	if !errors.Is(err, ErrStorageRead) {
		t.Fatalf("expected ErrStorageRead, got %v", err)
	}
	// Registry is left unchanged on a failed reload.
	if n := s.Count("User"); n != 1 {
		t.Errorf("expected registry untouched, got %d users", n)
	}
}

func TestFileStore_ReloadSkipsUnknownType(t *testing.T) {
	p := newTestPersistence(t)
	u := model.NewUser()
	records := map[string]map[string]any{
		Key("User", u.ID): u.ToMap(),
		"Ghost.42": {
			model.ClassKey: "Ghost",
			"id":           "42",
		},
	}
	if err := p.WriteSnapshot(records); err != nil {
		t.Fatalf("WriteSnapshot failed: %v", err)
	}

	s := NewFileStore(p, nil)
	if err := s.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if _, ok := s.Get("User", u.ID); !ok {
		t.Error("well-typed record should survive a skipped sibling")
	}
	if _, ok := s.Get("Ghost", "42"); ok {
		t.Error("unregistered type should have been skipped")
	}
	if n := s.Count(""); n != 1 {
		t.Errorf("expected 1 object, got %d", n)
	}
}

func TestFileStore_Delete(t *testing.T) {
	p := newTestPersistence(t)
	s := NewFileStore(p, nil)

	u := model.NewUser()
	if err := s.SaveObject(u); err != nil {
		t.Fatalf("SaveObject failed: %v", err)
	}

	if !s.Delete("User", u.ID) {
		t.Fatal("Delete should report removal")
	}
	if s.Delete("User", u.ID) {
		t.Error("second Delete should report nothing removed")
	}

	// Deletion is durable only after the next Save.
	s2 := NewFileStore(p, nil)
	if err := s2.Reload(); err != nil {
		t.Fatal(err)
	}
	if _, ok := s2.Get("User", u.ID); !ok {
		t.Error("deletion should not be durable before Save")
	}

	if err := s.Save(); err != nil {
		t.Fatal(err)
	}
	s3 := NewFileStore(p, nil)
	if err := s3.Reload(); err != nil {
		t.Fatal(err)
	}
	if _, ok := s3.Get("User", u.ID); ok {
		t.Error("deletion should be durable after Save")
	}
}

func TestFileStore_UpdateReplacesInstance(t *testing.T) {
	s := NewFileStore(nil, nil)
	u := model.NewUser()
	u.Email = "old@example.com"
	s.New(u)

	obj, err := s.Update("User", u.ID, map[string]any{
		"email": "new@example.com",
		"id":    "forged",
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fresh, ok := obj.(*model.User)
	if !ok {
		t.Fatalf("expected *model.User, got %T", obj)
	}
	if fresh.Email != "new@example.com" {
		t.Errorf("expected updated email, got %q", fresh.Email)
	}
	if fresh.ID != u.ID {
		t.Errorf("id must not be updatable, got %q", fresh.ID)
	}
	if fresh.UpdatedAt.Before(u.UpdatedAt) {
		t.Errorf("updated_at went backwards: %v vs %v", fresh.UpdatedAt, u.UpdatedAt)
	}

	// The previously registered instance must be left untouched so
	// readers holding it can keep serializing it.
	if u.Email != "old@example.com" {
		t.Errorf("old instance was mutated: %q", u.Email)
	}
	got, _ := s.Get("User", u.ID)
	if got.(*model.User) == u {
		t.Error("registered instance should have been replaced, not mutated")
	}
}

func TestFileStore_UpdateMissing(t *testing.T) {
	s := NewFileStore(nil, nil)

	_, err := s.Update("User", "nope", map[string]any{"email": "x@y.z"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFileStore_SaveFailureLeavesRegistry(t *testing.T) {
	p := newTestPersistence(t)
	// A directory squatting on the temp path forces the write to fail.
	if err := os.Mkdir(p.Path()+".tmp", 0755); err != nil {
		t.Fatal(err)
	}

	s := NewFileStore(p, nil)
	u := model.NewUser()
	s.New(u)

	if err := s.Save(); !errors.Is(err, ErrStorageWrite) {
		t.Fatalf("expected ErrStorageWrite, got %v", err)
	}
	if _, ok := s.Get("User", u.ID); !ok {
		t.Error("failed write must not disturb the registry")
	}
	if n := s.Count(""); n != 1 {
		t.Errorf("expected 1 object after failed write, got %d", n)
	}
}

func TestFileStore_AllReturnsSnapshot(t *testing.T) {
	s := NewFileStore(nil, nil)
	u := model.NewUser()
	s.New(u)

	all := s.All("")
	if len(all) != 1 {
		t.Fatalf("expected 1 object, got %d", len(all))
	}
	delete(all, Key("User", u.ID))

	if _, ok := s.Get("User", u.ID); !ok {
		t.Error("mutating the All result must not touch the registry")
	}
}

func TestFileStore_AllFiltersByType(t *testing.T) {
	s := NewFileStore(nil, nil)
	s.New(model.NewUser())
	s.New(model.NewUser())

	if n := len(s.All("User")); n != 2 {
		t.Errorf("expected 2 users, got %d", n)
	}
	if n := len(s.All("Ghost")); n != 0 {
		t.Errorf("expected 0 ghosts, got %d", n)
	}
	if n := s.Count("User"); n != 2 {
		t.Errorf("Count(User) = %d, want 2", n)
	}
}
