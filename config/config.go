// Package config loads the explicit configuration that every ledgerkit
// component is constructed from. Nothing in this module reads program ids or
// mints from the environment at package init.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"gopkg.in/yaml.v3"
)

const (
	ClusterDevnet   = "devnet"
	ClusterLocalnet = "localnet"
	ClusterMainnet  = "mainnet-beta"
)

// Config is the on-disk (YAML) configuration.
type Config struct {
	Cluster  string       `yaml:"cluster"`
	RPC      RPC          `yaml:"rpc"`
	Programs ProgramIDs   `yaml:"programs"`
	Mints    MintIDs      `yaml:"mints"`
	Submit   SubmitPolicy `yaml:"submit"`
	Reader   ReaderPolicy `yaml:"reader"`
	Evidence Evidence     `yaml:"evidence"`
	Log      Log          `yaml:"log"`
}

type RPC struct {
	Endpoint   string        `yaml:"endpoint"`
	Commitment string        `yaml:"commitment"`
	Timeout    time.Duration `yaml:"timeout"`
}

// ProgramIDs holds base58 program ids as written in the file.
type ProgramIDs struct {
	Registry    string `yaml:"registry"`
	Staking     string `yaml:"staking"`
	Attestation string `yaml:"attestation"`
	Consensus   string `yaml:"consensus"`
	Payments    string `yaml:"payments"`
}

type MintIDs struct {
	Stake string `yaml:"stake"`
	USDC  string `yaml:"usdc"`
}

// SubmitPolicy bounds the transaction submitter's retry and polling behavior.
type SubmitPolicy struct {
	MaxSendAttempts int           `yaml:"max_send_attempts"`
	BaseBackoff     time.Duration `yaml:"base_backoff"`
	MaxBackoff      time.Duration `yaml:"max_backoff"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	// ConfirmTimeout ends confirmation polling even when the block height
	// cannot be read.
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"`
	SkipPreflight  bool          `yaml:"skip_preflight"`
}

type ReaderPolicy struct {
	BatchSize   int `yaml:"batch_size"`
	Concurrency int `yaml:"concurrency"`
}

// Evidence configures where rejected submissions and corrupt accounts are archived.
// An empty Dir disables archiving.
type Evidence struct {
	Dir string `yaml:"dir"`
	// Mirrors are read-only stores consulted after Dir.
	Mirrors []string `yaml:"mirrors"`
}

type Log struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the configuration for a known cluster.
func Default(cluster string) (Config, error) {
	c := Config{
		Cluster: cluster,
		Submit: SubmitPolicy{
			MaxSendAttempts: 4,
			BaseBackoff:     250 * time.Millisecond,
			MaxBackoff:      4 * time.Second,
			PollInterval:    time.Second,
			ConfirmTimeout:  time.Minute,
		},
		Reader: ReaderPolicy{BatchSize: 100, Concurrency: 4},
		Log:    Log{Level: "info"},
	}
	c.RPC.Commitment = "confirmed"
	c.RPC.Timeout = 30 * time.Second

	switch cluster {
	case ClusterDevnet:
		c.RPC.Endpoint = "https://api.devnet.solana.com"
		c.Programs = ProgramIDs{
			Registry:    "G8iYmvncvWsfHRrxZvKuPU6B2kcMj82Lpcf6og6SyMkW",
			Staking:     "iMjAbTmAddZTzEtDcSgbDPJRRdc4eT6mGC9SnK3Gzy8",
			Attestation: "DTtjXcvxsKHnukZiLtaQ2dHJXC5HtUAwUa9WgsMd3So4",
			Consensus:   "A4Ee2KoPz4y9XyEBta9DyXvKPnWy2GvprDzfVF1PnjtR",
			Payments:    "6MCoXdFV29c6M4BH42d3YrprW9pZfMKaqEV9BGUzNyia",
		}
		c.Mints = MintIDs{USDC: "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU"}
	case ClusterLocalnet:
		c.RPC.Endpoint = "http://127.0.0.1:8899"
		c.Programs = ProgramIDs{
			Registry:    "Bb95aVcDasGfZ5HWE2aickWD86aCiUncZVKEJoBRZraG",
			Staking:     "iMjAbTmAddZTzEtDcSgbDPJRRdc4eT6mGC9SnK3Gzy8",
			Attestation: "4PXmkfGMdsKvjTmAwnTmyhxzNXCyHDXXLFcFZQjxobuT",
			Consensus:   "66rnQD9SGyEruS7pUemPBaakKZFGFWmQwrDU46dq5ACi",
			Payments:    "6MCoXdFV29c6M4BH42d3YrprW9pZfMKaqEV9BGUzNyia",
		}
	case ClusterMainnet:
		c.RPC.Endpoint = "https://api.mainnet-beta.solana.com"
		c.Mints = MintIDs{USDC: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"}
	default:
		return Config{}, fmt.Errorf("config: unknown cluster %q", cluster)
	}
	return c, nil
}

// Parse decodes YAML on top of the defaults for the file's cluster
// (devnet when the file names none). Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	var head struct {
		Cluster string `yaml:"cluster"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cluster := strings.TrimSpace(head.Cluster)
	if cluster == "" {
		cluster = ClusterDevnet
	}
	c, err := Default(cluster)
	if err != nil {
		return Config{}, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	c.Cluster = cluster
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoadFile reads and parses a YAML config file.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(data)
}

// Validate checks ids and policy bounds.
func (c Config) Validate() error {
	if strings.TrimSpace(c.RPC.Endpoint) == "" {
		return errors.New("config: rpc.endpoint is required")
	}
	switch c.RPC.Commitment {
	case "processed", "confirmed", "finalized":
	default:
		return fmt.Errorf("config: invalid rpc.commitment %q", c.RPC.Commitment)
	}
	if _, err := c.Programs.Resolve(); err != nil {
		return err
	}
	if _, err := c.Mints.Resolve(); err != nil {
		return err
	}
	if c.Submit.MaxSendAttempts < 1 {
		return errors.New("config: submit.max_send_attempts must be >= 1")
	}
	if c.Submit.BaseBackoff < 0 || c.Submit.MaxBackoff < c.Submit.BaseBackoff {
		return errors.New("config: submit backoff bounds are invalid")
	}
	if c.Submit.PollInterval <= 0 {
		return errors.New("config: submit.poll_interval must be positive")
	}
	if c.Submit.ConfirmTimeout <= 0 {
		return errors.New("config: submit.confirm_timeout must be positive")
	}
	if c.RPC.Timeout < 0 {
		return errors.New("config: rpc.timeout must not be negative")
	}
	if c.Reader.BatchSize < 1 || c.Reader.BatchSize > 100 {
		return errors.New("config: reader.batch_size must be within 1..100")
	}
	if c.Reader.Concurrency < 1 {
		return errors.New("config: reader.concurrency must be >= 1")
	}
	return nil
}

// Programs holds resolved program ids. A zero key means "not deployed on this cluster".
type Programs struct {
	Registry    solana.PublicKey
	Staking     solana.PublicKey
	Attestation solana.PublicKey
	Consensus   solana.PublicKey
	Payments    solana.PublicKey
}

func (p ProgramIDs) Resolve() (Programs, error) {
	var out Programs
	fields := []struct {
		name string
		in   string
		out  *solana.PublicKey
	}{
		{"programs.registry", p.Registry, &out.Registry},
		{"programs.staking", p.Staking, &out.Staking},
		{"programs.attestation", p.Attestation, &out.Attestation},
		{"programs.consensus", p.Consensus, &out.Consensus},
		{"programs.payments", p.Payments, &out.Payments},
	}
	for _, f := range fields {
		if err := parseKey(f.name, f.in, f.out); err != nil {
			return Programs{}, err
		}
	}
	return out, nil
}

type Mints struct {
	Stake solana.PublicKey
	USDC  solana.PublicKey
}

func (m MintIDs) Resolve() (Mints, error) {
	var out Mints
	if err := parseKey("mints.stake", m.Stake, &out.Stake); err != nil {
		return Mints{}, err
	}
	if err := parseKey("mints.usdc", m.USDC, &out.USDC); err != nil {
		return Mints{}, err
	}
	return out, nil
}

func parseKey(name, s string, out *solana.PublicKey) error {
	s = strings.TrimSpace(s)
	if s == "" {
		*out = solana.PublicKey{}
		return nil
	}
	k, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return fmt.Errorf("config: %s: %w", name, err)
	}
	*out = k
	return nil
}

// MustPrograms resolves program ids, panicking on error. Intended for
// configs that already passed Validate.
func (c Config) MustPrograms() Programs {
	p, err := c.Programs.Resolve()
	if err != nil {
		panic(err)
	}
	return p
}

func (c Config) MustMints() Mints {
	m, err := c.Mints.Resolve()
	if err != nil {
		panic(err)
	}
	return m
}
