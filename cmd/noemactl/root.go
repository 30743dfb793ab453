package main

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"noema.dev/ledgerkit/config"
	"noema.dev/ledgerkit/keys"
	"noema.dev/ledgerkit/ledger"
	"noema.dev/ledgerkit/ledger/ledgerregistry"
	"noema.dev/ledgerkit/storage"
	"noema.dev/ledgerkit/storage/localfs"

	_ "noema.dev/ledgerkit/ledger/grpcledger"
	_ "noema.dev/ledgerkit/ledger/memledger"
	_ "noema.dev/ledgerkit/ledger/rpcledger"
)

type rootOptions struct {
	configPath  string
	cluster     string
	backend     string
	evidenceDir string
	mirrors     []string
	keystoreDir string
	format      string
	verbose     bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "noemactl",
		Short:         "Inspect and drive the agent registry programs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.format != "text" && opts.format != "json" {
				return usagef("invalid --format %q: must be text or json", opts.format)
			}
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError{err} })

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "YAML config file")
	pf.StringVar(&opts.cluster, "cluster", config.ClusterDevnet, "cluster defaults to use without --config")
	pf.StringVar(&opts.backend, "backend", "rpc", "ledger backend ("+strings.Join(ledgerregistry.Names(ledgerregistry.UsageCLI), ", ")+")")
	pf.StringVar(&opts.evidenceDir, "evidence-dir", "", "evidence store directory (overrides evidence.dir)")
	pf.StringSliceVar(&opts.mirrors, "evidence-mirror", nil, "read-only evidence directories consulted after the store (repeatable)")
	pf.StringVar(&opts.keystoreDir, "keystore", "", "keystore directory (default ~/.noema/keys)")
	pf.StringVar(&opts.format, "format", "text", "output format (text|json)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging on stderr")

	backendFlags := flag.NewFlagSet("backends", flag.ContinueOnError)
	ledgerregistry.RegisterFlags(backendFlags, ledgerregistry.UsageCLI)
	pf.AddGoFlagSet(backendFlags)

	cmd.AddCommand(
		newDeriveCommand(opts),
		newSelectorCommand(),
		newDecodeCommand(opts),
		newAccountCommand(opts),
		newResolveCommand(opts),
		newMemoCommand(opts),
		newRegisterAgentCommand(opts),
		newHandshakeCommand(opts),
		newKeyCommand(opts),
		newEvidenceCommand(opts),
	)
	return cmd
}

func (o *rootOptions) loadConfig() (config.Config, error) {
	if o.configPath != "" {
		return config.LoadFile(o.configPath)
	}
	return config.Default(o.cluster)
}

func newLogger(c config.Log, verbose bool, w io.Writer) *zap.Logger {
	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = zapcore.InfoLevel
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	var encoder zapcore.Encoder
	if c.JSON {
		encoder = zapcore.NewJSONEncoder(enc)
	} else {
		encoder = zapcore.NewConsoleEncoder(enc)
	}
	return zap.New(zapcore.NewCore(encoder, zapcore.AddSync(w), level))
}

// env is what a command needs to talk to the ledger.
type env struct {
	cfg      config.Config
	log      *zap.Logger
	ledger   ledger.Ledger
	evidence storage.CAS
	closeFn  func() error
}

func (e *env) Close() {
	_ = e.log.Sync()
	if e.closeFn != nil {
		_ = e.closeFn()
	}
}

// base loads config, logger and evidence store without opening a ledger.
func (o *rootOptions) base(cmd *cobra.Command) (*env, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, log: newLogger(cfg.Log, o.verbose, cmd.ErrOrStderr())}
	dir := cfg.Evidence.Dir
	if o.evidenceDir != "" {
		dir = o.evidenceDir
	}
	mirrors := append(append([]string(nil), cfg.Evidence.Mirrors...), o.mirrors...)
	if dir == "" {
		if len(mirrors) > 0 {
			return nil, usagef("evidence mirrors need an evidence store (--evidence-dir or evidence.dir)")
		}
		return e, nil
	}
	var stores []storage.CAS
	for _, d := range append([]string{dir}, mirrors...) {
		cas, err := localfs.New(d)
		if err != nil {
			return nil, fmt.Errorf("evidence store: %w", err)
		}
		stores = append(stores, cas)
	}
	if len(stores) == 1 {
		e.evidence = stores[0]
	} else {
		e.evidence = storage.Chain{Stores: stores}
	}
	return e, nil
}

// open is base plus the selected ledger backend. Unset rpc flags fall back
// to the config file.
func (o *rootOptions) open(cmd *cobra.Command) (*env, error) {
	e, err := o.base(cmd)
	if err != nil {
		return nil, err
	}
	if o.backend == "rpc" {
		err := setUnchanged(cmd.Flags(), map[string]string{
			"rpc-endpoint":       e.cfg.RPC.Endpoint,
			"rpc-commitment":     e.cfg.RPC.Commitment,
			"rpc-skip-preflight": fmt.Sprint(e.cfg.Submit.SkipPreflight),
			"rpc-timeout":        e.cfg.RPC.Timeout.String(),
		})
		if err != nil {
			return nil, err
		}
	}
	l, closeFn, err := ledgerregistry.Open(o.backend, ledgerregistry.UsageCLI)
	if err != nil {
		return nil, err
	}
	e.ledger, e.closeFn = l, closeFn
	e.log.Debug("ledger opened", zap.String("backend", o.backend), zap.String("cluster", e.cfg.Cluster))
	return e, nil
}

// setUnchanged assigns values to flags the user did not set.
func setUnchanged(fs *pflag.FlagSet, values map[string]string) error {
	for name, v := range values {
		if f := fs.Lookup(name); f != nil && !f.Changed && v != "" {
			if err := fs.Set(name, v); err != nil {
				return fmt.Errorf("--%s: %w", name, err)
			}
		}
	}
	return nil
}

func (o *rootOptions) keystore() (*keys.KeyStore, error) {
	return keys.CreateKeyStore(o.keystoreDir)
}

// signerFlags selects the transaction signer.
type signerFlags struct {
	secret  string
	keyFile string
	name    string
	role    string
}

func (s *signerFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&s.keyFile, "keypair", "", "keypair file (solana-keygen JSON, base58 or hex seed)")
	f.StringVar(&s.secret, "secret", "", "inline keypair (base58 or hex seed)")
	f.StringVar(&s.name, "signer", "", "keystore identifier")
	f.StringVar(&s.role, "signer-role", "", "keystore role")
}

func (s *signerFlags) resolve(o *rootOptions) (solana.PrivateKey, error) {
	if s.secret == "" && s.keyFile == "" && s.name == "" {
		return nil, usagef("a signer is required: --keypair, --secret or --signer")
	}
	ks, err := o.keystore()
	if err != nil {
		return nil, err
	}
	return ks.Resolve(s.secret, s.keyFile, s.name, s.role)
}
