package memledger

import (
	"flag"

	"noema.dev/ledgerkit/ledger"
	"noema.dev/ledgerkit/ledger/ledgerregistry"
)

var flagSeed string

func init() {
	ledgerregistry.MustRegister(ledgerregistry.Backend{
		Name:        "memory",
		Description: "in-memory ledger, optionally seeded from a YAML file",
		Usage:       ledgerregistry.UsageCLI | ledgerregistry.UsageDaemon,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagSeed, "memory-seed", "", "YAML seed file with initial accounts (for --backend=memory)")
		},
		Open: func() (ledger.Ledger, func() error, error) {
			if flagSeed == "" {
				return New(), nil, nil
			}
			s, err := LoadSeed(flagSeed)
			if err != nil {
				return nil, nil, err
			}
			l, err := s.Build()
			if err != nil {
				return nil, nil, err
			}
			return l, nil, nil
		},
	})
}
