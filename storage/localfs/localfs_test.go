package localfs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"noema.dev/ledgerkit/storage"
	"noema.dev/ledgerkit/storage/testkit"
)

func TestConformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		t.Helper()
		d, err := New(t.TempDir())
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		return d
	})
}

func TestRejectMutationByOverwrite(t *testing.T) {
	d, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	orig := []byte("original")
	id, err := d.Put(orig)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	path := d.pathFor(id)
	if err := os.Chmod(path, 0o644); err != nil {
		t.Fatalf("Chmod failed: %v", err)
	}
	if err := os.WriteFile(path, []byte("corrupted"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if _, err := d.Get(id); !errors.Is(err, storage.ErrCIDMismatch) {
		t.Fatalf("Get mismatch: got %v want %v", err, storage.ErrCIDMismatch)
	}
	if _, err := d.Put(orig); !errors.Is(err, storage.ErrImmutable) {
		t.Fatalf("Put after corruption: got %v want %v", err, storage.ErrImmutable)
	}
}

func TestListIgnoresForeignFiles(t *testing.T) {
	root := t.TempDir()
	d, err := New(root)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	id, _ := d.Put([]byte("kept"))
	if err := os.WriteFile(filepath.Join(root, "README"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "junk"+ext), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	ids, err := d.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != 1 || !ids[0].Equals(id) {
		t.Fatalf("List: got %v", ids)
	}
}

func TestNewRequiresRoot(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatalf("expected error for empty root")
	}
}
