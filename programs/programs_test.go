package programs

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"

	"noema.dev/ledgerkit/address"
	"noema.dev/ledgerkit/codec"
	"noema.dev/ledgerkit/config"
	"noema.dev/ledgerkit/instruction"
	"noema.dev/ledgerkit/selector"
)

var (
	owner    = solana.MustPublicKeyFromBase58("3oxg7wVtdp9T3sx773SMmws8zrGyAJecqTruaXfiw3mN")
	treasury = solana.MustPublicKeyFromBase58("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
	stake    = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
)

func newBuilder(t *testing.T) *Builder {
	t.Helper()
	cfg, err := config.Default(config.ClusterDevnet)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Mints.Stake = stake.String()
	b, err := FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	return b
}

func data(t *testing.T, in *instruction.Instruction) []byte {
	t.Helper()
	d, err := in.Data()
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func decodeArgs(t *testing.T, in *instruction.Instruction, s codec.Schema) codec.Record {
	t.Helper()
	d := data(t, in)
	if !selector.Instruction(s.Name).Matches(d) {
		t.Fatalf("%s: payload does not start with its selector", s.Name)
	}
	rec, err := codec.DecodeExact(s, d[selector.Size:])
	if err != nil {
		t.Fatalf("%s: decode args: %v", s.Name, err)
	}
	return rec
}

func TestRegisterAgent(t *testing.T) {
	b := newBuilder(t)
	in, err := b.RegisterAgent(owner, "demo-agent-001", "https://x/y.json")
	if err != nil {
		t.Fatalf("RegisterAgent: %v", err)
	}
	d := data(t, in)
	if !bytes.Equal(d[:8], []byte{0x87, 0x9d, 0x42, 0xc3, 0x02, 0x71, 0xaf, 0x1e}) {
		t.Fatalf("selector: %x", d[:8])
	}
	rec := decodeArgs(t, in, RegisterAgentArgs)
	if v, _ := rec.Get("agent_id"); v != "demo-agent-001" {
		t.Fatalf("agent_id: %v", v)
	}

	metas := in.Accounts()
	if len(metas) != 6 {
		t.Fatalf("got %d accounts", len(metas))
	}
	if metas[0].PublicKey.String() != "B5HRoKaJVqGfMJg956vu4Auod7bigDnZS5fETszMuj38" {
		t.Fatalf("identity account: %s", metas[0].PublicKey)
	}
	if metas[1].PublicKey.String() != "7CxSk7eKiFY3wPwhzeiwU3esVLHFY9pYJgtzLV1RyhQo" {
		t.Fatalf("reputation account: %s", metas[1].PublicKey)
	}
	if metas[4].PublicKey.String() != "2VYQzU6tbUDowqvfLFoz5MNLmU8tB12gQwannWU2otsw" {
		t.Fatalf("config account: %s", metas[4].PublicKey)
	}
	if !metas[3].IsSigner || !metas[3].IsWritable || metas[3].PublicKey != owner {
		t.Fatalf("owner role: %+v", metas[3])
	}
	if metas[5].PublicKey != solana.SystemProgramID || metas[5].IsWritable {
		t.Fatalf("system program role: %+v", metas[5])
	}
}

func TestRegistryLimits(t *testing.T) {
	b := newBuilder(t)
	if _, err := b.RegisterAgent(owner, "", "u"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("empty agent id: %v", err)
	}
	if _, err := b.RegisterAgent(owner, "a", strings.Repeat("u", MaxURI+1)); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("long uri: %v", err)
	}
	// Registry accepts 64 bytes but a seed holds only 32.
	if _, err := b.RegisterAgent(owner, strings.Repeat("a", 40), ""); !errors.Is(err, address.ErrSeedTooLong) {
		t.Fatalf("40 byte id: %v", err)
	}
	if _, err := b.UpdateMetadata(owner, "a", strings.Repeat("u", MaxURI)); err != nil {
		t.Fatalf("UpdateMetadata at limit: %v", err)
	}
	in, err := b.DeactivateAgent(owner, "a")
	if err != nil {
		t.Fatalf("DeactivateAgent: %v", err)
	}
	if len(data(t, in)) != selector.Size {
		t.Fatalf("deactivate_agent carries arguments")
	}
}

func TestStakeValidator(t *testing.T) {
	b := newBuilder(t)
	in, err := b.StakeValidator(owner, 1_000)
	if err != nil {
		t.Fatalf("StakeValidator: %v", err)
	}
	rec := decodeArgs(t, in, StakeValidatorArgs)
	if v, _ := rec.Get("amount"); v != uint64(1_000) {
		t.Fatalf("amount: %v", v)
	}
	metas := in.Accounts()
	validator, _ := b.Deriver().StakingValidator(owner)
	vault, _, _ := solana.FindAssociatedTokenAddress(validator.Address, stake)
	userATA, _, _ := solana.FindAssociatedTokenAddress(owner, stake)
	if metas[0].PublicKey != validator.Address || metas[3].PublicKey != userATA || metas[4].PublicKey != vault {
		t.Fatalf("unexpected stake accounts: %v", metas)
	}
	if metas[len(metas)-1].PublicKey != solana.SystemProgramID {
		t.Fatalf("system program missing")
	}
	if _, err := b.StakeValidator(owner, 0); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("zero amount: %v", err)
	}
}

func TestUnstakeInstantPaysTreasury(t *testing.T) {
	b := newBuilder(t)
	in, err := b.UnstakeValidatorInstant(owner, treasury, 5)
	if err != nil {
		t.Fatalf("UnstakeValidatorInstant: %v", err)
	}
	metas := in.Accounts()
	want, _, _ := solana.FindAssociatedTokenAddress(treasury, stake)
	if metas[5].PublicKey != want || !metas[5].IsWritable {
		t.Fatalf("treasury token account: %+v", metas[5])
	}
	for _, f := range []func() (*instruction.Instruction, error){
		func() (*instruction.Instruction, error) { return b.ClaimValidatorRewards(owner) },
		func() (*instruction.Instruction, error) { return b.UnstakeValidator(owner, 1) },
		func() (*instruction.Instruction, error) { return b.InitializeStaking(owner, treasury, 1000, 200, 1) },
	} {
		if _, err := f(); err != nil {
			t.Fatalf("staking builder: %v", err)
		}
	}
}

func TestStakingNeedsMint(t *testing.T) {
	cfg, _ := config.Default(config.ClusterDevnet)
	b, err := FromConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.StakeValidator(owner, 1); !errors.Is(err, ErrNotDeployed) {
		t.Fatalf("expected ErrNotDeployed, got %v", err)
	}
}

func TestIssueAttestation(t *testing.T) {
	b := newBuilder(t)
	var sig solana.Signature
	sig[0], sig[63] = 1, 2
	in, err := b.IssueAttestation(owner, Attestation{
		AgentID: "agent", Type: "kyc", ClaimsURI: "ipfs://claims", ExpiresAt: 99, Signature: sig,
	})
	if err != nil {
		t.Fatalf("IssueAttestation: %v", err)
	}
	rec := decodeArgs(t, in, IssueAttestationArgs)
	if v, _ := rec.Get("signature"); !bytes.Equal(v.([]byte), sig[:]) {
		t.Fatalf("signature not carried")
	}
	att, _ := b.Deriver().Attestation("agent", "kyc", owner)
	if in.Accounts()[0].PublicKey != att.Address {
		t.Fatalf("attestation address mismatch")
	}
	if _, err := b.IssueAttestation(owner, Attestation{AgentID: strings.Repeat("a", 33), Type: "kyc"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("long agent id: %v", err)
	}
	if _, err := b.RevokeAttestation(owner, "agent", "kyc", "expired"); err != nil {
		t.Fatalf("RevokeAttestation: %v", err)
	}
	if _, err := b.RegisterIssuer(owner, strings.Repeat("n", MaxName+1), ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("long issuer name: %v", err)
	}
}

func TestRequestConsensus(t *testing.T) {
	b := newBuilder(t)
	validators := make([]solana.PublicKey, 3)
	for i := range validators {
		validators[i] = solana.NewWallet().PublicKey()
	}
	req := ConsensusRequest{AgentID: "agent", ActionType: "payout", Threshold: 2, Validators: validators}
	in, addr, err := b.RequestConsensus(owner, req)
	if err != nil {
		t.Fatalf("RequestConsensus: %v", err)
	}
	want, _ := b.Deriver().Consensus("agent", "payout", owner)
	if addr != want.Address {
		t.Fatalf("consensus address: %s want %s", addr, want.Address)
	}
	rec := decodeArgs(t, in, RequestConsensusArgs)
	if v, _ := rec.Get("validator_keys"); len(v.([]solana.PublicKey)) != 3 {
		t.Fatalf("validators: %v", v)
	}

	bad := []ConsensusRequest{
		{AgentID: "a", ActionType: "x", Threshold: 4, Validators: validators},
		{AgentID: "a", ActionType: "x", Threshold: 0, Validators: validators},
		{AgentID: "a", ActionType: "x", Threshold: 1},
		{AgentID: "a", ActionType: "x", Threshold: 1, Validators: make([]solana.PublicKey, MaxValidators+1)},
		{AgentID: "a", ActionType: "x", Threshold: 1, Validators: []solana.PublicKey{validators[0], validators[0]}},
	}
	for i, r := range bad {
		if _, _, err := b.RequestConsensus(owner, r); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("case %d: expected ErrInvalidArgument, got %v", i, err)
		}
	}

	vote, err := b.CastVote(validators[0], addr, "req-1", true, "")
	if err != nil {
		t.Fatalf("CastVote: %v", err)
	}
	rec = decodeArgs(t, vote, CastVoteArgs)
	if v, _ := rec.Get("approve"); v != true {
		t.Fatalf("approve: %v", v)
	}
	fin, err := b.FinalizeConsensus(addr)
	if err != nil {
		t.Fatalf("FinalizeConsensus: %v", err)
	}
	if len(fin.Accounts()) != 1 {
		t.Fatalf("finalize accounts: %d", len(fin.Accounts()))
	}
}

func TestInstantPayment(t *testing.T) {
	b := newBuilder(t)
	recipient := solana.NewWallet().PublicKey()
	in, paymentAddr, err := b.InstantPayment(Payment{
		Sender: owner, Recipient: recipient, Treasury: treasury,
		Amount: 1_500_000, Memo: "Instant payment via X402", Timestamp: 1700000000,
	})
	if err != nil {
		t.Fatalf("InstantPayment: %v", err)
	}
	cfg, _ := config.Default(config.ClusterDevnet)
	programs, _ := cfg.Programs.Resolve()
	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], 1700000000)
	want, _, err := solana.FindProgramAddress([][]byte{[]byte("payment"), owner[:], recipient[:], ts[:]}, programs.Payments)
	if err != nil {
		t.Fatal(err)
	}
	if paymentAddr != want {
		t.Fatalf("payment address: %s want %s", paymentAddr, want)
	}
	metas := in.Accounts()
	if len(metas) != 9 || metas[3].PublicKey != recipient || metas[3].IsWritable {
		t.Fatalf("unexpected accounts: %v", metas)
	}
	if _, _, err := b.InstantPayment(Payment{Sender: owner, Recipient: recipient, Amount: 1, Memo: strings.Repeat("m", MaxMemo+1)}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("long memo: %v", err)
	}
}

func TestMemo(t *testing.T) {
	in, err := Memo("HANDSHAKE|agent|1|abc", owner)
	if err != nil {
		t.Fatalf("Memo: %v", err)
	}
	if in.ProgramID() != solana.MemoProgramID || string(data(t, in)) != "HANDSHAKE|agent|1|abc" {
		t.Fatalf("unexpected memo instruction")
	}
	if _, err := Memo("x"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("memo without signer: %v", err)
	}
}

func TestNotDeployed(t *testing.T) {
	b := New(config.Programs{}, config.Mints{})
	if _, err := b.RegisterAgent(owner, "a", ""); !errors.Is(err, ErrNotDeployed) {
		t.Fatalf("expected ErrNotDeployed, got %v", err)
	}
	if _, _, err := b.InstantPayment(Payment{Amount: 1}); !errors.Is(err, ErrNotDeployed) {
		t.Fatalf("expected ErrNotDeployed, got %v", err)
	}
}
