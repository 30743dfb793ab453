package keys

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// KeyStore keeps keypairs on the local filesystem, one root keypair per
// identifier plus derived role keypairs:
//
//	<dir>/<identifier>/root.json
//	<dir>/<identifier>/roles/<role>.json
//
// Files use the solana-keygen JSON format so the CLI tools of the chain can
// read them too.
type KeyStore struct {
	Directory string
}

type KeyEntry struct {
	Identifier string
	PublicKey  solana.PublicKey
	Roles      []string
}

func GetDefaultDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".noema", "keys"), nil
}

func CreateKeyStore(directory string) (*KeyStore, error) {
	if directory == "" {
		var err error
		directory, err = GetDefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &KeyStore{Directory: directory}, nil
}

func (ks *KeyStore) rootPath(identifier string) string {
	return filepath.Join(ks.Directory, identifier, "root.json")
}

func (ks *KeyStore) rolePath(identifier, role string) string {
	return filepath.Join(ks.Directory, identifier, "roles", role+".json")
}

func checkName(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%s cannot be empty", kind)
	}
	for _, char := range name {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in %s", char, kind)
	}
	return nil
}

func CheckKeyName(identifier string) error { return checkName("identifier", identifier) }

func CheckRole(role string) error { return checkName("role", role) }

func (ks *KeyStore) save(path string, key solana.PrivateKey, overwrite bool) error {
	data, err := MarshalKeypairJSON(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	file, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := file.Write(append(data, '\n')); err != nil {
		return err
	}
	return file.Close()
}

// InitializeRootKey stores the keypair expanded from seed as identifier's root.
func (ks *KeyStore) InitializeRootKey(identifier string, seed []byte, overwrite bool) (pub solana.PublicKey, path string, err error) {
	if err := CheckKeyName(identifier); err != nil {
		return solana.PublicKey{}, "", err
	}
	key, err := FromSeed(seed)
	if err != nil {
		return solana.PublicKey{}, "", err
	}
	path = ks.rootPath(identifier)
	if err := ks.save(path, key, overwrite); err != nil {
		return solana.PublicKey{}, "", err
	}
	return key.PublicKey(), path, nil
}

// DeriveKeyFromRole derives and stores the role keypair of identifier.
func (ks *KeyStore) DeriveKeyFromRole(from, role string, overwrite bool) (pub solana.PublicKey, path string, err error) {
	if err := CheckKeyName(from); err != nil {
		return solana.PublicKey{}, "", err
	}
	if err := CheckRole(role); err != nil {
		return solana.PublicKey{}, "", err
	}
	root, err := LoadFile(ks.rootPath(from))
	if err != nil {
		return solana.PublicKey{}, "", err
	}
	rootSeed, err := Seed(root)
	if err != nil {
		return solana.PublicKey{}, "", err
	}
	roleSeed, err := DeriveRoleSeed(rootSeed, role)
	if err != nil {
		return solana.PublicKey{}, "", err
	}
	key, err := FromSeed(roleSeed)
	if err != nil {
		return solana.PublicKey{}, "", err
	}
	path = ks.rolePath(from, role)
	if err := ks.save(path, key, overwrite); err != nil {
		return solana.PublicKey{}, "", err
	}
	return key.PublicKey(), path, nil
}

// PublicKey returns the public key of identifier, or of its role when role is
// set.
func (ks *KeyStore) PublicKey(identifier, role string) (solana.PublicKey, error) {
	key, err := ks.Load(identifier, role)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return key.PublicKey(), nil
}

func (ks *KeyStore) Load(identifier, role string) (solana.PrivateKey, error) {
	if err := CheckKeyName(identifier); err != nil {
		return nil, err
	}
	if role == "" {
		return LoadFile(ks.rootPath(identifier))
	}
	if err := CheckRole(role); err != nil {
		return nil, err
	}
	return LoadFile(ks.rolePath(identifier, role))
}

// Resolve picks a keypair from the first source given: an inline secret, a
// keypair file, or a stored identifier and role.
func (ks *KeyStore) Resolve(secret, keyFile, name, role string) (solana.PrivateKey, error) {
	if secret != "" {
		return Parse([]byte(secret))
	}
	if keyFile != "" {
		return LoadFile(keyFile)
	}
	if name != "" {
		return ks.Load(name, role)
	}
	return nil, errors.New("no signer provided")
}

func (ks *KeyStore) ListKeys() ([]KeyEntry, error) {
	entries, err := os.ReadDir(ks.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var identifiers []string
	for _, entry := range entries {
		if entry.IsDir() {
			identifiers = append(identifiers, entry.Name())
		}
	}
	sort.Strings(identifiers)

	var result []KeyEntry
	for _, identifier := range identifiers {
		e := KeyEntry{Identifier: identifier}
		if root, err := LoadFile(ks.rootPath(identifier)); err == nil {
			e.PublicKey = root.PublicKey()
		}
		roleEntries, rerr := os.ReadDir(filepath.Join(ks.Directory, identifier, "roles"))
		if rerr == nil {
			for _, roleEntry := range roleEntries {
				if roleEntry.IsDir() {
					continue
				}
				if role, ok := strings.CutSuffix(roleEntry.Name(), ".json"); ok {
					e.Roles = append(e.Roles, role)
				}
			}
			sort.Strings(e.Roles)
		}
		result = append(result, e)
	}
	return result, nil
}
