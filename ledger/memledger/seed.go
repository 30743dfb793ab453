package memledger

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"gopkg.in/yaml.v3"

	"noema.dev/ledgerkit/ledger"
)

// Seed is the YAML description of a ledger's initial state:
//
//	window: 150
//	fee: 5000
//	accounts:
//	  - address: <base58>
//	    owner: <base58>        # system program when empty
//	    lamports: 1000000
//	    data: <base64>
type Seed struct {
	Window    uint64        `yaml:"window"`
	Fee       *uint64       `yaml:"fee"`
	Preflight *bool         `yaml:"preflight"`
	Accounts  []SeedAccount `yaml:"accounts"`
}

type SeedAccount struct {
	Address  string `yaml:"address"`
	Owner    string `yaml:"owner"`
	Lamports uint64 `yaml:"lamports"`
	Data     string `yaml:"data"`
}

func ParseSeed(data []byte) (Seed, error) {
	var s Seed
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Seed{}, fmt.Errorf("memledger: seed: %w", err)
	}
	return s, nil
}

func LoadSeed(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, err
	}
	return ParseSeed(data)
}

// Build creates a ledger from the seed.
func (s Seed) Build(opts ...Option) (*Ledger, error) {
	var all []Option
	if s.Window > 0 {
		all = append(all, WithWindow(s.Window))
	}
	if s.Fee != nil {
		all = append(all, WithFee(*s.Fee))
	}
	if s.Preflight != nil {
		all = append(all, WithPreflight(*s.Preflight))
	}
	l := New(append(all, opts...)...)
	for i, a := range s.Accounts {
		acc, err := a.account()
		if err != nil {
			return nil, fmt.Errorf("memledger: seed account %d: %w", i, err)
		}
		l.SetAccount(acc)
	}
	return l, nil
}

func (a SeedAccount) account() (ledger.Account, error) {
	addr, err := solana.PublicKeyFromBase58(a.Address)
	if err != nil {
		return ledger.Account{}, fmt.Errorf("address: %w", err)
	}
	owner := solana.SystemProgramID
	if a.Owner != "" {
		if owner, err = solana.PublicKeyFromBase58(a.Owner); err != nil {
			return ledger.Account{}, fmt.Errorf("owner: %w", err)
		}
	}
	data, err := base64.StdEncoding.DecodeString(a.Data)
	if err != nil {
		return ledger.Account{}, fmt.Errorf("data: %w", err)
	}
	return ledger.Account{Address: addr, Owner: owner, Lamports: a.Lamports, Data: data}, nil
}
