package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"noema.dev/ledgerkit/keys"
)

func newKeyCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage keypairs in the local keystore",
	}
	cmd.AddCommand(
		newKeyInitCommand(opts),
		newKeyDeriveCommand(opts),
		newKeyListCommand(opts),
		newKeyShowCommand(opts),
	)
	return cmd
}

func newKeyInitCommand(opts *rootOptions) *cobra.Command {
	var (
		seedHex string
		force   bool
	)
	cmd := &cobra.Command{
		Use:   "init <identifier>",
		Short: "Create a root keypair",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usagef("key init: want exactly one identifier")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var seed []byte
			if seedHex != "" {
				s, err := keys.ParseSeedHex(seedHex)
				if err != nil {
					return usageError{err}
				}
				seed = s
			} else {
				seed = make([]byte, ed25519.SeedSize)
				if _, err := rand.Read(seed); err != nil {
					return err
				}
			}
			ks, err := opts.keystore()
			if err != nil {
				return err
			}
			pub, path, err := ks.InitializeRootKey(args[0], seed, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", pub, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&seedHex, "seed-hex", "", "32-byte seed as hex (random when empty)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing key")
	return cmd
}

func newKeyDeriveCommand(opts *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "derive <identifier> <role>",
		Short: "Derive and store a role keypair from a root keypair",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				return usagef("key derive: want an identifier and a role")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := opts.keystore()
			if err != nil {
				return err
			}
			pub, path, err := ks.DeriveKeyFromRole(args[0], args[1], force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", pub, path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing key")
	return cmd
}

func newKeyListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := opts.keystore()
			if err != nil {
				return err
			}
			entries, err := ks.ListKeys()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if opts.format == "json" {
				type entry struct {
					Identifier string   `json:"identifier"`
					PublicKey  string   `json:"public_key"`
					Roles      []string `json:"roles,omitempty"`
				}
				out := make([]entry, len(entries))
				for i, e := range entries {
					out[i] = entry{Identifier: e.Identifier, PublicKey: e.PublicKey.String(), Roles: e.Roles}
				}
				return writeJSON(w, out)
			}
			for _, e := range entries {
				fmt.Fprintf(w, "%s %s", e.Identifier, e.PublicKey)
				if len(e.Roles) > 0 {
					fmt.Fprintf(w, " [%s]", strings.Join(e.Roles, ", "))
				}
				fmt.Fprintln(w)
			}
			return nil
		},
	}
}

func newKeyShowCommand(opts *rootOptions) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "show <identifier>",
		Short: "Print a stored public key",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usagef("key show: want exactly one identifier")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ks, err := opts.keystore()
			if err != nil {
				return err
			}
			pub, err := ks.PublicKey(args[0], role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), pub)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "role key instead of the root key")
	return cmd
}
