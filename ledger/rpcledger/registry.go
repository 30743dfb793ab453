package rpcledger

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"noema.dev/ledgerkit/ledger"
	"noema.dev/ledgerkit/ledger/ledgerregistry"
)

var (
	flagEndpoint      string
	flagCommitment    string
	flagSkipPreflight bool
	flagTimeout       time.Duration
)

func init() {
	ledgerregistry.MustRegister(ledgerregistry.Backend{
		Name:        "rpc",
		Description: "cluster JSON-RPC endpoint",
		Usage:       ledgerregistry.UsageCLI | ledgerregistry.UsageDaemon,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagEndpoint, "rpc-endpoint", "", "JSON-RPC endpoint URL (for --backend=rpc)")
			fs.StringVar(&flagCommitment, "rpc-commitment", "confirmed", "processed, confirmed or finalized (for --backend=rpc)")
			fs.BoolVar(&flagSkipPreflight, "rpc-skip-preflight", false, "Send without simulation (for --backend=rpc)")
			fs.DurationVar(&flagTimeout, "rpc-timeout", 30*time.Second, "Per-call deadline, 0 for none (for --backend=rpc)")
		},
		Open: func() (ledger.Ledger, func() error, error) {
			endpoint := strings.TrimSpace(flagEndpoint)
			if endpoint == "" {
				return nil, nil, fmt.Errorf("missing --rpc-endpoint")
			}
			l := New(endpoint, WithCommitment(flagCommitment), WithSkipPreflight(flagSkipPreflight), WithTimeout(flagTimeout))
			return l, l.Close, nil
		},
	})
}
