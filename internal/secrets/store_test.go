package secrets

import (
	"errors"
	"os"
	"testing"

	"clashtui/internal/logging"
)

func newTestStore(t *testing.T) (*Store, StoreConfig) {
	t.Helper()
	config := DefaultStoreConfig(t.TempDir())
	store, err := NewStore(config, logging.Discard())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store, config
}

func TestNewStore(t *testing.T) {
	_, config := newTestStore(t)

	if _, err := os.Stat(config.SecretsDir); err != nil {
		t.Errorf("Secrets directory was not created: %v", err)
	}

	info, err := os.Stat(config.PassphraseFile)
	if err != nil {
		t.Fatalf("Passphrase file was not created: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("Passphrase file permissions = %o, want 0600", info.Mode().Perm())
	}
}

func TestStore_PutGet(t *testing.T) {
	store, _ := newTestStore(t)

	if err := store.Put(ControllerSecret, []byte("hunter2")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.Get(ControllerSecret)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "hunter2" {
		t.Errorf("Get() = %q, want hunter2", got)
	}
}

func TestStore_PersistsAcrossOpen(t *testing.T) {
	store, config := newTestStore(t)
	if err := store.Put(ControllerSecret, []byte("hunter2")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	reopened, err := NewStore(config, logging.Discard())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	got, err := reopened.Get(ControllerSecret)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "hunter2" {
		t.Errorf("Get() = %q, want hunter2", got)
	}
}

func TestStore_GetMissing(t *testing.T) {
	store, _ := newTestStore(t)
	if _, err := store.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestStore_Delete(t *testing.T) {
	store, _ := newTestStore(t)
	if err := store.Put("a", []byte("x")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	if err := store.Delete("a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestStore_List(t *testing.T) {
	store, _ := newTestStore(t)
	for _, name := range []string{"b", "a"} {
		if err := store.Put(name, []byte(name)); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}

	names, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("List() = %v, want [a b]", names)
	}
}

func TestStore_InvalidName(t *testing.T) {
	store, _ := newTestStore(t)
	for _, name := range []string{"", "../x", ".passphrase", `a\b`} {
		if err := store.Put(name, []byte("x")); err == nil {
			t.Errorf("Put(%q) should fail", name)
		}
	}
}

func TestStore_Resolve(t *testing.T) {
	store, _ := newTestStore(t)

	got, err := store.Resolve(ControllerSecret, "")
	if err != nil || got != "" {
		t.Errorf("Resolve() with nothing stored = %q, %v", got, err)
	}

	if err := store.Put(ControllerSecret, []byte("stored")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if got, _ := store.Resolve(ControllerSecret, ""); got != "stored" {
		t.Errorf("Resolve() = %q, want stored", got)
	}
	if got, _ := store.Resolve(ControllerSecret, "configured"); got != "configured" {
		t.Errorf("Resolve() = %q, want configured value to win", got)
	}
}
