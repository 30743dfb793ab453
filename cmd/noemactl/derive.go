package main

import (
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"noema.dev/ledgerkit/address"
	"noema.dev/ledgerkit/selector"
)

type pdaKind struct {
	args   []string
	derive func(d *address.Deriver, args []string) (address.PDA, error)
}

func keyArg(name, s string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, usagef("%s: invalid address %q: %v", name, s, err)
	}
	return pk, nil
}

func ownerPDA(f func(*address.Deriver, solana.PublicKey) (address.PDA, error)) func(*address.Deriver, []string) (address.PDA, error) {
	return func(d *address.Deriver, args []string) (address.PDA, error) {
		owner, err := keyArg("owner", args[0])
		if err != nil {
			return address.PDA{}, err
		}
		return f(d, owner)
	}
}

func idPDA(f func(*address.Deriver, string) (address.PDA, error)) func(*address.Deriver, []string) (address.PDA, error) {
	return func(d *address.Deriver, args []string) (address.PDA, error) { return f(d, args[0]) }
}

func singleton(f func(*address.Deriver) (address.PDA, error)) func(*address.Deriver, []string) (address.PDA, error) {
	return func(d *address.Deriver, _ []string) (address.PDA, error) { return f(d) }
}

var pdaKinds = map[string]pdaKind{
	"identity":            {[]string{"agent-id"}, idPDA((*address.Deriver).Identity)},
	"reputation":          {[]string{"agent-id"}, idPDA((*address.Deriver).Reputation)},
	"reward-pool":         {[]string{"agent-id"}, idPDA((*address.Deriver).RewardPool)},
	"registry-config":     {nil, singleton((*address.Deriver).RegistryConfig)},
	"staking-config":      {nil, singleton((*address.Deriver).StakingConfig)},
	"staking-validator":   {[]string{"owner"}, ownerPDA((*address.Deriver).StakingValidator)},
	"attestation-config":  {nil, singleton((*address.Deriver).AttestationConfig)},
	"issuer":              {[]string{"owner"}, ownerPDA((*address.Deriver).Issuer)},
	"consensus-config":    {nil, singleton((*address.Deriver).ConsensusConfig)},
	"consensus-validator": {[]string{"owner"}, ownerPDA((*address.Deriver).ConsensusValidator)},
	"payments-config":     {nil, singleton((*address.Deriver).PaymentsConfig)},
	"attestation": {[]string{"agent-id", "type", "issuer-owner"}, func(d *address.Deriver, args []string) (address.PDA, error) {
		owner, err := keyArg("issuer-owner", args[2])
		if err != nil {
			return address.PDA{}, err
		}
		return d.Attestation(args[0], args[1], owner)
	}},
	"consensus": {[]string{"agent-id", "action", "requester"}, func(d *address.Deriver, args []string) (address.PDA, error) {
		requester, err := keyArg("requester", args[2])
		if err != nil {
			return address.PDA{}, err
		}
		return d.Consensus(args[0], args[1], requester)
	}},
	"vote": {[]string{"consensus", "validator"}, func(d *address.Deriver, args []string) (address.PDA, error) {
		consensus, err := keyArg("consensus", args[0])
		if err != nil {
			return address.PDA{}, err
		}
		validator, err := keyArg("validator", args[1])
		if err != nil {
			return address.PDA{}, err
		}
		return d.Vote(consensus, validator)
	}},
	"payment": {[]string{"payer", "recipient", "timestamp"}, func(d *address.Deriver, args []string) (address.PDA, error) {
		payer, err := keyArg("payer", args[0])
		if err != nil {
			return address.PDA{}, err
		}
		recipient, err := keyArg("recipient", args[1])
		if err != nil {
			return address.PDA{}, err
		}
		ts, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return address.PDA{}, usagef("timestamp: %v", err)
		}
		return d.Payment(payer, recipient, ts)
	}},
	"token-account": {[]string{"wallet", "mint"}, func(_ *address.Deriver, args []string) (address.PDA, error) {
		wallet, err := keyArg("wallet", args[0])
		if err != nil {
			return address.PDA{}, err
		}
		mint, err := keyArg("mint", args[1])
		if err != nil {
			return address.PDA{}, err
		}
		return address.TokenAccount(wallet, mint)
	}},
}

func newDeriveCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "derive <kind> [args...]",
		Short: "Derive a program address",
		Long:  "Derive a program address. Kinds: " + joinSorted(pdaKinds) + ".",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return usagef("derive: missing kind")
			}
			k, ok := pdaKinds[args[0]]
			if !ok {
				return usagef("derive: unknown kind %q", args[0])
			}
			if len(args)-1 != len(k.args) {
				return usagef("derive %s: want %d argument(s) %v, got %d", args[0], len(k.args), k.args, len(args)-1)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			programs, err := cfg.Programs.Resolve()
			if err != nil {
				return err
			}
			pda, err := pdaKinds[args[0]].derive(address.NewDeriver(programs), args[1:])
			if err != nil {
				return err
			}
			if opts.format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"address": pda.Address.String(), "bump": pda.Bump})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n", pda.Address, pda.Bump)
			return nil
		},
	}
	return cmd
}

func newSelectorCommand() *cobra.Command {
	var accountKind bool
	cmd := &cobra.Command{
		Use:   "selector <name>",
		Short: "Print the 8-byte selector of an instruction or account type",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usagef("selector: want exactly one name")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			sel := selector.Instruction(args[0])
			if accountKind {
				sel = selector.Account(args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), sel)
			return nil
		},
	}
	cmd.Flags().BoolVar(&accountKind, "account", false, "selector for an account type instead of an instruction")
	return cmd
}
