package main

import (
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"noema.dev/ledgerkit/handshake"
	"noema.dev/ledgerkit/keys"
	"noema.dev/ledgerkit/programs"
	"noema.dev/ledgerkit/submit"
)

type submitResult struct {
	Signature string   `json:"signature"`
	State     string   `json:"state"`
	Slot      uint64   `json:"slot,omitempty"`
	Attempt   string   `json:"attempt,omitempty"`
	Reason    string   `json:"reason,omitempty"`
	Detail    string   `json:"detail,omitempty"`
	Evidence  string   `json:"evidence,omitempty"`
	Logs      []string `json:"logs,omitempty"`
}

// send submits ixs paid for and signed by key and reports the outcome. A
// rejection or ambiguous outcome is printed and returned as an error.
func send(cmd *cobra.Command, opts *rootOptions, e *env, key solana.PrivateKey, ixs ...solana.Instruction) (*submit.Outcome, error) {
	sub := submit.New(e.ledger,
		submit.WithPolicy(e.cfg.Submit),
		submit.WithLogger(e.log),
		submit.WithEvidence(e.evidence),
	)
	out, err := sub.Submit(cmd.Context(), submit.Request{
		FeePayer:     key.PublicKey(),
		Instructions: ixs,
		Signers:      []submit.Signer{keys.Signer(key)},
	})
	var res submitResult
	switch {
	case err == nil:
		res = submitResult{
			Signature: out.Signature.String(),
			State:     out.State.String(),
			Slot:      out.Slot,
			Attempt:   out.Attempt.String(),
		}
	default:
		if re, ok := submit.AsRejected(err); ok {
			res = submitResult{
				Signature: re.Signature.String(),
				State:     submit.StateRejected.String(),
				Reason:    string(re.Reason),
				Detail:    re.Detail,
				Logs:      re.Logs,
			}
			if re.Evidence.Defined() {
				res.Evidence = re.Evidence.String()
			}
		} else if ae, ok := submit.AsAmbiguous(err); ok {
			res = submitResult{Signature: ae.Signature.String(), State: submit.StateAmbiguous.String()}
		} else {
			return nil, err
		}
	}
	if perr := printSubmit(cmd, opts, res); perr != nil {
		return nil, perr
	}
	return out, err
}

func printSubmit(cmd *cobra.Command, opts *rootOptions, res submitResult) error {
	w := cmd.OutOrStdout()
	if opts.format == "json" {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "signature: %s\nstate: %s\n", res.Signature, res.State)
	if res.Slot != 0 {
		fmt.Fprintf(w, "slot: %d\n", res.Slot)
	}
	if res.Reason != "" {
		fmt.Fprintf(w, "reason: %s\n", res.Reason)
	}
	if res.Detail != "" {
		fmt.Fprintf(w, "detail: %s\n", res.Detail)
	}
	if res.Evidence != "" {
		fmt.Fprintf(w, "evidence: %s\n", res.Evidence)
	}
	for _, l := range res.Logs {
		fmt.Fprintf(w, "  %s\n", l)
	}
	return nil
}

func newMemoCommand(opts *rootOptions) *cobra.Command {
	var signer signerFlags
	cmd := &cobra.Command{
		Use:   "memo <text>",
		Short: "Submit a memo transaction",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usagef("memo: want exactly one text argument")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := signer.resolve(opts)
			if err != nil {
				return err
			}
			ix, err := programs.Memo(args[0], key.PublicKey())
			if err != nil {
				return err
			}
			e, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()
			_, err = send(cmd, opts, e, key, ix)
			return err
		},
	}
	signer.register(cmd)
	return cmd
}

func newRegisterAgentCommand(opts *rootOptions) *cobra.Command {
	var (
		signer signerFlags
		uri    string
	)
	cmd := &cobra.Command{
		Use:   "register-agent <agent-id>",
		Short: "Register an agent identity owned by the signer",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usagef("register-agent: want exactly one agent id")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := signer.resolve(opts)
			if err != nil {
				return err
			}
			e, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()
			b, err := programs.FromConfig(e.cfg)
			if err != nil {
				return err
			}
			ix, err := b.RegisterAgent(key.PublicKey(), args[0], uri)
			if err != nil {
				return err
			}
			_, err = send(cmd, opts, e, key, ix)
			return err
		},
	}
	signer.register(cmd)
	cmd.Flags().StringVar(&uri, "uri", "", "metadata URI")
	return cmd
}

type challengeFlags struct {
	timestamp int64
	nonce     string
}

func (c *challengeFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int64Var(&c.timestamp, "timestamp", 0, "challenge timestamp in unix milliseconds")
	f.StringVar(&c.nonce, "nonce", "", "challenge nonce (hex)")
}

func (c *challengeFlags) challenge() (handshake.Challenge, error) {
	if c.timestamp == 0 || c.nonce == "" {
		return handshake.Challenge{}, usagef("--timestamp and --nonce are required")
	}
	ch, err := handshake.ParseChallenge(c.timestamp, c.nonce)
	if err != nil {
		return handshake.Challenge{}, usageError{err}
	}
	return ch, nil
}

func newHandshakeCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "handshake",
		Short: "Payment handshake: challenge, sign, pay and verify",
	}
	cmd.AddCommand(
		newHandshakeChallengeCommand(opts),
		newHandshakeSignCommand(opts),
		newHandshakePayCommand(opts),
		newHandshakeVerifyCommand(opts),
	)
	return cmd
}

func newHandshakeChallengeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "challenge",
		Short: "Issue a fresh challenge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := handshake.NewChallenge(time.Now(), nil)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if opts.format == "json" {
				return writeJSON(w, map[string]any{"timestamp": c.Timestamp, "nonce": c.NonceHex(), "message": string(c.Message())})
			}
			fmt.Fprintf(w, "timestamp: %d\nnonce: %s\nmessage: %s\n", c.Timestamp, c.NonceHex(), c.Message())
			return nil
		},
	}
}

func newHandshakeSignCommand(opts *rootOptions) *cobra.Command {
	var (
		signer signerFlags
		ch     challengeFlags
	)
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a challenge with the agent key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ch.challenge()
			if err != nil {
				return err
			}
			key, err := signer.resolve(opts)
			if err != nil {
				return err
			}
			sig, err := handshake.Sign(c, keys.Signer(key))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sig)
			return nil
		},
	}
	signer.register(cmd)
	ch.register(cmd)
	return cmd
}

func newHandshakePayCommand(opts *rootOptions) *cobra.Command {
	var (
		signer  signerFlags
		ch      challengeFlags
		agentID string
		signed  bool
	)
	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Land the handshake memo for a challenge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ch.challenge()
			if err != nil {
				return err
			}
			if agentID == "" {
				return usagef("--agent-id is required")
			}
			key, err := signer.resolve(opts)
			if err != nil {
				return err
			}
			var sig *solana.Signature
			if signed {
				s, err := handshake.Sign(c, keys.Signer(key))
				if err != nil {
					return err
				}
				sig = &s
			}
			memo := handshake.NewMemo(agentID, c, sig)
			ix, err := programs.Memo(memo.String(), key.PublicKey())
			if err != nil {
				return err
			}
			e, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()
			e.log.Debug("handshake memo", zap.String("memo", memo.String()))
			_, err = send(cmd, opts, e, key, ix)
			return err
		},
	}
	signer.register(cmd)
	ch.register(cmd)
	cmd.Flags().StringVar(&agentID, "agent-id", "", "paying agent id")
	cmd.Flags().BoolVar(&signed, "sign", false, "include the challenge signature prefix in the memo")
	return cmd
}

func newHandshakeVerifyCommand(opts *rootOptions) *cobra.Command {
	var (
		ch       challengeFlags
		agentID  string
		tx       string
		challSig string
		agentKey string
		maxAge   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a landed transaction's memo against a challenge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ch.challenge()
			if err != nil {
				return err
			}
			if agentID == "" || tx == "" {
				return usagef("--agent-id and --tx are required")
			}
			txSig, err := solana.SignatureFromBase58(tx)
			if err != nil {
				return usagef("--tx: %v", err)
			}
			exp := handshake.Expectation{AgentID: agentID, Challenge: c, MaxAge: maxAge}
			if challSig != "" {
				s, err := solana.SignatureFromBase58(challSig)
				if err != nil {
					return usagef("--challenge-signature: %v", err)
				}
				if agentKey != "" {
					pub, err := keyArg("--agent-key", agentKey)
					if err != nil {
						return err
					}
					if err := handshake.Verify(c, s, pub); err != nil {
						return err
					}
				}
				exp.Signature = &s
			}

			e, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()
			logs, err := e.ledger.Logs(cmd.Context(), txSig)
			if err != nil {
				return err
			}
			text, ok := handshake.MemoFromLogs(logs)
			if !ok {
				return fmt.Errorf("transaction %s carries no memo", txSig)
			}
			memo, err := handshake.ParseMemo(text)
			if err != nil {
				return err
			}
			if err := exp.Match(memo, time.Now()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "verified: %s\n", memo)
			return nil
		},
	}
	ch.register(cmd)
	f := cmd.Flags()
	f.StringVar(&agentID, "agent-id", "", "expected agent id")
	f.StringVar(&tx, "tx", "", "transaction signature carrying the memo")
	f.StringVar(&challSig, "challenge-signature", "", "agent's signature over the challenge (base58)")
	f.StringVar(&agentKey, "agent-key", "", "agent public key; checks --challenge-signature")
	f.DurationVar(&maxAge, "max-age", 5*time.Minute, "maximum challenge age (0 disables)")
	return cmd
}
