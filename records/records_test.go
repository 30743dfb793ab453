package records

import (
	"bytes"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"noema.dev/ledgerkit/codec"
)

func key(b byte) solana.PublicKey {
	var k solana.PublicKey
	for i := range k {
		k[i] = b
	}
	return k
}

func samples() []codec.Record {
	var reserved [32]byte
	for i := range reserved {
		reserved[i] = byte(0xA0 + i)
	}
	var hash [32]byte
	hash[0], hash[31] = 1, 2
	var sig [64]byte
	sig[5] = 9
	return []codec.Record{
		Identity{Owner: key(1), AgentID: "demo-agent-001", MetadataURI: "https://x/y.json", CreatedAt: 1000, UpdatedAt: 1000, IsActive: true, Bump: 255}.Record(),
		Reputation{Reserved: reserved, Score: 5000, TotalTasks: 10, SuccessfulTasks: 9, FailedTasks: 1}.Record(),
		ValidatorConfig{Authority: key(2), Treasury: key(3), StakeMint: key(4), ValidatorMinStake: 1_000_000, BaseAPYBps: 1200, InstantUnstakeFeeBps: 500}.Record(),
		ConsensusRequest{AgentID: "agent", Requester: key(5), ActionType: "deploy", DataHash: hash, Threshold: 2, Validators: []solana.PublicKey{key(6), key(7), key(8)}, Approvals: 1, Status: ConsensusPending, RequestedAt: 77}.Record(),
		Attestation{AgentID: "agent", Issuer: key(9), AttestationType: "kyc", ClaimsURI: "ipfs://claims", IssuedAt: 10, ExpiresAt: 20, Signature: sig}.Record(),
		Issuer{Owner: key(10), Name: "acme", MetadataURI: "https://acme", StakeAmount: 5, IsActive: true, TotalAttestations: 3, RegisteredAt: 4, Bump: 250}.Record(),
		Vote{Consensus: key(11), Validator: key(12), RequestID: "req-1", Approve: true, EvidenceURI: "", VotedAt: 99, Bump: 254}.Record(),
		ValidatorStake{Authority: key(13), StakedAmount: 100, IsActive: true, LastStakeTimestamp: 1, LastRewardClaim: 2, TotalValidations: 3, PendingRewards: 4}.Record(),
		ConsensusValidator{Owner: key(14), Name: "v", MetadataURI: "u", StakeAmount: 1, IsActive: true, TotalVotes: 2, RegisteredAt: 3, Bump: 253}.Record(),
		RewardPool{Agent: key(15), ClaimableAmount: 1, LastClaim: 2, TotalClaimed: 3, Bump: 252}.Record(),
		PaymentsConfig{Authority: key(16), Treasury: key(17), PlatformFeeBps: 250, TotalPayments: 1, TotalVolume: 2, TotalFeesCollected: 3, PaymentCount: 4, Bump: 251}.Record(),
		// All-zero records with empty strings and vectors.
		Identity{}.Record(),
		ConsensusRequest{}.Record(),
		Attestation{}.Record(),
		Vote{}.Record(),
	}
}

func TestSchemasAreWellFormed(t *testing.T) {
	for _, s := range All {
		if err := s.Validate(); err != nil {
			t.Fatalf("%s: %v", s.Name, err)
		}
		got, ok := ByName(s.Name)
		if !ok || got.Name != s.Name {
			t.Fatalf("ByName(%q) failed", s.Name)
		}
	}
}

func TestEverySchemaRoundTrips(t *testing.T) {
	for _, rec := range samples() {
		b, err := codec.EncodeRecord(rec)
		if err != nil {
			t.Fatalf("%s: Encode: %v", rec.Schema.Name, err)
		}
		got, n, err := codec.Decode(rec.Schema, b)
		if err != nil {
			t.Fatalf("%s: Decode: %v", rec.Schema.Name, err)
		}
		if n != len(b) {
			t.Fatalf("%s: consumed %d of %d", rec.Schema.Name, n, len(b))
		}
		if diff := cmp.Diff(rec.Values, got.Values, cmpopts.EquateEmpty()); diff != "" {
			t.Fatalf("%s: mismatch (-want +got):\n%s", rec.Schema.Name, diff)
		}
	}
}

func TestEverySchemaPrefixIsTruncated(t *testing.T) {
	for _, rec := range samples() {
		b, err := codec.EncodeRecord(rec)
		if err != nil {
			t.Fatal(err)
		}
		for k := 0; k < len(b); k++ {
			if _, _, err := codec.Decode(rec.Schema, b[:k]); !codec.IsTruncated(err) {
				t.Fatalf("%s prefix %d/%d: got %v want TruncatedRecord", rec.Schema.Name, k, len(b), err)
			}
		}
	}
}

func TestTypedViewsRoundTrip(t *testing.T) {
	id := Identity{Owner: key(1), AgentID: "demo-agent-001", MetadataURI: "https://x/y.json", CreatedAt: 1000, UpdatedAt: 1000, IsActive: true}
	b, err := codec.EncodeRecord(id.Record())
	if err != nil {
		t.Fatal(err)
	}
	rec, _, err := codec.Decode(IdentitySchema, b)
	if err != nil {
		t.Fatal(err)
	}
	got, err := IdentityFromRecord(rec)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(id, got); diff != "" {
		t.Fatalf("identity mismatch (-want +got):\n%s", diff)
	}

	cr := ConsensusRequest{AgentID: "a", Validators: []solana.PublicKey{key(1)}, Status: ConsensusApproved}
	b, _ = codec.EncodeRecord(cr.Record())
	rec, _, _ = codec.Decode(ConsensusRequestSchema, b)
	gotCR, err := ConsensusRequestFromRecord(rec)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(cr, gotCR); diff != "" {
		t.Fatalf("consensus mismatch (-want +got):\n%s", diff)
	}

	if _, err := IdentityFromRecord(rec); err == nil {
		t.Fatalf("expected schema mismatch error")
	}
}

func TestReputationLayout(t *testing.T) {
	if off, ok := ReputationSchema.Offset("score"); !ok || off+8 != 40 {
		t.Fatalf("score must sit at account offset 40, got %d", off+8)
	}
	for name, want := range map[string]int{"total_tasks": 48, "successful_tasks": 56, "failed_tasks": 64} {
		if off, ok := ReputationSchema.Offset(name); !ok || off+8 != want {
			t.Fatalf("%s at account offset %d want %d", name, off+8, want)
		}
	}
}

func TestReputationReservedPreserved(t *testing.T) {
	raw := make([]byte, ReputationSchema.MinSize())
	for i := 0; i < 32; i++ {
		raw[i] = byte(i * 7)
	}
	rec, _, err := codec.Decode(ReputationSchema, raw)
	if err != nil {
		t.Fatal(err)
	}
	rep, err := ReputationFromRecord(rec)
	if err != nil {
		t.Fatal(err)
	}
	rep.Score = 42
	out, err := codec.EncodeRecord(rep.Record())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out[:32], raw[:32]) {
		t.Fatalf("reserved region changed")
	}
}

func TestScoreChange(t *testing.T) {
	cases := []struct {
		total, ok int64
		approved  bool
		want      int64
	}{
		{0, 0, true, 100},
		{10, 9, true, 100},
		{10, 8, true, 75},
		{10, 7, true, 50},
		{10, 5, true, 25},
		{10, 5, false, -150},
		{10, 7, false, -100},
		{10, 9, false, -50},
		{1, 3, true, 100},
		{1, 3, false, -50},
		{10, -5, true, 25},
		{10, -5, false, -150},
	}
	for _, tc := range cases {
		r := Reputation{TotalTasks: tc.total, SuccessfulTasks: tc.ok}
		if got := r.ScoreChange(tc.approved); got != tc.want {
			t.Fatalf("%d/%d approved=%v: got %d want %d", tc.ok, tc.total, tc.approved, got, tc.want)
		}
	}
}

func TestSuccessRateClamps(t *testing.T) {
	cases := []struct {
		total, ok int64
		want      uint8
	}{
		{0, 0, 100},
		{-4, 2, 100},
		{1, 3, 100},
		{1, 1 << 40, 100},
		{10, -5, 0},
		{3, 2, 66},
	}
	for _, tc := range cases {
		if got := (Reputation{TotalTasks: tc.total, SuccessfulTasks: tc.ok}).SuccessRate(); got != tc.want {
			t.Fatalf("%d/%d: got %d want %d", tc.ok, tc.total, got, tc.want)
		}
	}
}

func TestRewardMultiplier(t *testing.T) {
	for score, want := range map[int64]uint64{0: 1, 5999: 1, 6000: 2, 7000: 3, 8500: 4, 9000: 5, 10000: 5} {
		if got := (Reputation{Score: score}).RewardMultiplier(); got != want {
			t.Errorf("score %d: multiplier %d, want %d", score, got, want)
		}
	}
}

func TestApplyClampsScore(t *testing.T) {
	r := Reputation{Score: MaxScore - 10, TotalTasks: 10, SuccessfulTasks: 10}
	r = r.Apply(true)
	if r.Score != MaxScore || r.TotalTasks != 11 || r.SuccessfulTasks != 11 {
		t.Fatalf("after approval: %+v", r)
	}
	low := Reputation{Score: 40, TotalTasks: 2, SuccessfulTasks: 0, FailedTasks: 2}.Apply(false)
	if low.Score != 0 || low.FailedTasks != 3 {
		t.Fatalf("after rejection: %+v", low)
	}
	if (Reputation{Score: InitialScore}).Apply(true).Score != InitialScore+100 {
		t.Fatalf("fresh agent approval")
	}
}

func TestAccruedReward(t *testing.T) {
	cfg := ValidatorConfig{BaseAPYBps: 1000, InstantUnstakeFeeBps: 250}
	v := ValidatorStake{StakedAmount: 1_000_000, LastRewardClaim: 0, PendingRewards: 5}
	// 10% of 1,000,000 over a full year.
	if got := AccruedReward(v, cfg, secondsPerYear); got != 100_000 {
		t.Fatalf("full year: got %d", got)
	}
	if got := AccruedReward(v, cfg, secondsPerYear/2); got != 50_000 {
		t.Fatalf("half year: got %d", got)
	}
	if got := AccruedReward(v, cfg, -1); got != 0 {
		t.Fatalf("clock behind last claim: got %d", got)
	}
	if got := ClaimableReward(v, cfg, secondsPerYear); got != 100_005 {
		t.Fatalf("claimable: got %d", got)
	}
	fee, net := InstantUnstakeFee(10_000, cfg)
	if fee != 250 || net != 9_750 {
		t.Fatalf("fee split: %d/%d", fee, net)
	}
}

func TestAttestationValid(t *testing.T) {
	a := Attestation{ExpiresAt: 100}
	if !a.Valid(99) || a.Valid(100) {
		t.Fatalf("expiry boundary wrong")
	}
	a.IsRevoked = true
	if a.Valid(0) {
		t.Fatalf("revoked attestation must be invalid")
	}
}
