package keys

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestKeyStoreLifecycle(t *testing.T) {
	ks, err := CreateKeyStore(t.TempDir())
	if err != nil {
		t.Fatalf("CreateKeyStore: %v", err)
	}
	rootPub, rootPath, err := ks.InitializeRootKey("alice", seq(32), false)
	if err != nil {
		t.Fatalf("InitializeRootKey: %v", err)
	}
	if filepath.Base(rootPath) != "root.json" {
		t.Fatalf("root path %q", rootPath)
	}
	if info, err := os.Stat(rootPath); err != nil || info.Mode().Perm() != 0o600 {
		t.Fatalf("root file mode: %v %v", info, err)
	}
	if _, _, err := ks.InitializeRootKey("alice", seq(32), false); err == nil {
		t.Fatalf("overwrite without flag succeeded")
	}

	payerPub, _, err := ks.DeriveKeyFromRole("alice", "payer", false)
	if err != nil {
		t.Fatalf("DeriveKeyFromRole: %v", err)
	}
	if payerPub.Equals(rootPub) {
		t.Fatalf("role key equals root key")
	}
	again, _, err := ks.DeriveKeyFromRole("alice", "payer", true)
	if err != nil || !again.Equals(payerPub) {
		t.Fatalf("re-derive = %s, %v", again, err)
	}
	if _, _, err := ks.DeriveKeyFromRole("alice", "validator", false); err != nil {
		t.Fatalf("DeriveKeyFromRole: %v", err)
	}

	got, err := ks.PublicKey("alice", "payer")
	if err != nil || !got.Equals(payerPub) {
		t.Fatalf("PublicKey = %s, %v", got, err)
	}

	list, err := ks.ListKeys()
	if err != nil {
		t.Fatalf("ListKeys: %v", err)
	}
	want := []KeyEntry{{Identifier: "alice", PublicKey: rootPub, Roles: []string{"payer", "validator"}}}
	if diff := cmp.Diff(want, list); diff != "" {
		t.Fatalf("ListKeys (-want +got):\n%s", diff)
	}
}

func TestKeyStoreResolve(t *testing.T) {
	ks, _ := CreateKeyStore(t.TempDir())
	rootPub, rootPath, err := ks.InitializeRootKey("bob", seq(32), false)
	if err != nil {
		t.Fatal(err)
	}
	for name, args := range map[string][4]string{
		"secret": {"000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f", "", "", ""},
		"file":   {"", rootPath, "", ""},
		"stored": {"", "", "bob", ""},
	} {
		key, err := ks.Resolve(args[0], args[1], args[2], args[3])
		if err != nil {
			t.Fatalf("%s: Resolve: %v", name, err)
		}
		if !key.PublicKey().Equals(rootPub) {
			t.Fatalf("%s: wrong key", name)
		}
	}
	if _, err := ks.Resolve("", "", "", ""); err == nil {
		t.Fatalf("empty Resolve succeeded")
	}
	if _, err := ks.Resolve("", "", "bob", "../x"); err == nil {
		t.Fatalf("bad role accepted")
	}
}

func TestListKeysMissingDirectory(t *testing.T) {
	ks := &KeyStore{Directory: filepath.Join(t.TempDir(), "absent")}
	list, err := ks.ListKeys()
	if err != nil || list != nil {
		t.Fatalf("ListKeys = %v, %v", list, err)
	}
}

func TestCheckNames(t *testing.T) {
	for _, ok := range []string{"a", "A-b_9"} {
		if err := CheckKeyName(ok); err != nil {
			t.Errorf("CheckKeyName(%q): %v", ok, err)
		}
	}
	for _, bad := range []string{"", "a b", "a/b", "ü"} {
		if err := CheckRole(bad); err == nil {
			t.Errorf("CheckRole(%q) accepted", bad)
		}
	}
}
