package main

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"noema.dev/ledgerkit/account"
	"noema.dev/ledgerkit/address"
	"noema.dev/ledgerkit/codec"
	"noema.dev/ledgerkit/identity"
	"noema.dev/ledgerkit/records"
)

func schemaArg(name string) (codec.Schema, error) {
	s, ok := records.ByName(name)
	if !ok {
		names := make([]string, len(records.All))
		for i, s := range records.All {
			names[i] = s.Name
		}
		return codec.Schema{}, usagef("unknown account type %q (known: %s)", name, strings.Join(names, ", "))
	}
	return s, nil
}

func newDecodeCommand(opts *rootOptions) *cobra.Command {
	var hexData, b64Data, file string
	cmd := &cobra.Command{
		Use:   "decode <type>",
		Short: "Decode raw account bytes (selector included) as a typed record",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usagef("decode: want exactly one account type")
			}
			set := 0
			for _, s := range []string{hexData, b64Data, file} {
				if s != "" {
					set++
				}
			}
			if set != 1 {
				return usagef("decode: exactly one of --hex, --base64 or --file is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := schemaArg(args[0])
			if err != nil {
				return err
			}
			var raw []byte
			switch {
			case hexData != "":
				raw, err = hex.DecodeString(strings.TrimPrefix(hexData, "0x"))
			case b64Data != "":
				raw, err = base64.StdEncoding.DecodeString(b64Data)
			default:
				raw, err = os.ReadFile(file)
			}
			if err != nil {
				return usagef("decode: input: %v", err)
			}
			rec, err := account.ReadAs(raw, s)
			if err != nil {
				return err
			}
			return writeRecord(cmd.OutOrStdout(), opts.format, "", rec)
		},
	}
	f := cmd.Flags()
	f.StringVar(&hexData, "hex", "", "account data as hex")
	f.StringVar(&b64Data, "base64", "", "account data as base64")
	f.StringVar(&file, "file", "", "file holding raw account data")
	return cmd
}

func newAccountCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account <type> <address>...",
		Short: "Fetch and decode accounts from the ledger",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 {
				return usagef("account: want a type and at least one address")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := schemaArg(args[0])
			if err != nil {
				return err
			}
			addrs := make([]solana.PublicKey, 0, len(args)-1)
			for _, a := range args[1:] {
				pk, err := keyArg("address", a)
				if err != nil {
					return err
				}
				addrs = append(addrs, pk)
			}
			e, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			reader := account.NewReader(e.ledger,
				account.WithPolicy(e.cfg.Reader),
				account.WithEvidence(e.evidence),
				account.WithLogger(e.log),
			)
			results, err := reader.FetchMany(cmd.Context(), addrs, s)
			if err != nil {
				return err
			}
			var failed int
			for _, r := range results {
				if r.Err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", r.Address, r.Err)
					continue
				}
				if err := writeRecord(cmd.OutOrStdout(), opts.format, r.Address.String(), r.Record); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d account(s) could not be read", failed, len(results))
			}
			return nil
		},
	}
	return cmd
}

func newResolveCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <agent-id>...",
		Short: "Resolve agent ids to their active registry identities",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return usagef("resolve: want at least one agent id")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()
			programs, err := e.cfg.Programs.Resolve()
			if err != nil {
				return err
			}
			reader := account.NewReader(e.ledger,
				account.WithOwner(programs.Registry),
				account.WithPolicy(e.cfg.Reader),
				account.WithEvidence(e.evidence),
				account.WithLogger(e.log),
			)
			resolver := identity.NewResolver(reader, address.NewDeriver(programs))
			results, err := resolver.ResolveBatch(cmd.Context(), args)
			if err != nil {
				return err
			}
			var errs []error
			for _, r := range results {
				if r.Err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", r.AgentID, r.Err))
					continue
				}
				if err := writeRecord(cmd.OutOrStdout(), opts.format, r.Address.String(), r.Identity.Record()); err != nil {
					return err
				}
			}
			return errors.Join(errs...)
		},
	}
	return cmd
}
