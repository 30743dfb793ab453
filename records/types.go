package records

import (
	"bytes"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"noema.dev/ledgerkit/codec"
)

type Identity struct {
	Owner       solana.PublicKey
	AgentID     string
	MetadataURI string
	CreatedAt   int64
	UpdatedAt   int64
	IsActive    bool
	Bump        uint8
}

func (v Identity) Record() codec.Record {
	return codec.Record{Schema: IdentitySchema, Values: []any{
		v.Owner, v.AgentID, v.MetadataURI, v.CreatedAt, v.UpdatedAt, v.IsActive, v.Bump,
	}}
}

func IdentityFromRecord(r codec.Record) (Identity, error) {
	if err := expect(r, IdentitySchema); err != nil {
		return Identity{}, err
	}
	g := codec.NewGetter(r)
	v := Identity{
		Owner:       g.Address("owner"),
		AgentID:     g.String("agent_id"),
		MetadataURI: g.String("metadata_uri"),
		CreatedAt:   g.I64("created_at"),
		UpdatedAt:   g.I64("updated_at"),
		IsActive:    g.Bool("is_active"),
		Bump:        g.U8("bump"),
	}
	return v, g.Err()
}

type Reputation struct {
	// Reserved is preserved byte-for-byte on any write path.
	Reserved        [32]byte
	Score           int64
	TotalTasks      int64
	SuccessfulTasks int64
	FailedTasks     int64
}

func (v Reputation) Record() codec.Record {
	return codec.Record{Schema: ReputationSchema, Values: []any{
		bytes.Clone(v.Reserved[:]), v.Score, v.TotalTasks, v.SuccessfulTasks, v.FailedTasks,
	}}
}

func ReputationFromRecord(r codec.Record) (Reputation, error) {
	if err := expect(r, ReputationSchema); err != nil {
		return Reputation{}, err
	}
	g := codec.NewGetter(r)
	v := Reputation{
		Score:           g.I64("score"),
		TotalTasks:      g.I64("total_tasks"),
		SuccessfulTasks: g.I64("successful_tasks"),
		FailedTasks:     g.I64("failed_tasks"),
	}
	copy(v.Reserved[:], g.Bytes("reserved"))
	return v, g.Err()
}

type ValidatorConfig struct {
	Authority            solana.PublicKey
	Treasury             solana.PublicKey
	StakeMint            solana.PublicKey
	ValidatorMinStake    uint64
	BaseAPYBps           uint16
	InstantUnstakeFeeBps uint16
}

func (v ValidatorConfig) Record() codec.Record {
	return codec.Record{Schema: ValidatorConfigSchema, Values: []any{
		v.Authority, v.Treasury, v.StakeMint, v.ValidatorMinStake, v.BaseAPYBps, v.InstantUnstakeFeeBps,
	}}
}

func ValidatorConfigFromRecord(r codec.Record) (ValidatorConfig, error) {
	if err := expect(r, ValidatorConfigSchema); err != nil {
		return ValidatorConfig{}, err
	}
	g := codec.NewGetter(r)
	v := ValidatorConfig{
		Authority:            g.Address("authority"),
		Treasury:             g.Address("treasury"),
		StakeMint:            g.Address("stake_mint"),
		ValidatorMinStake:    g.U64("validator_min_stake"),
		BaseAPYBps:           g.U16("base_apy_bps"),
		InstantUnstakeFeeBps: g.U16("instant_unstake_fee_bps"),
	}
	return v, g.Err()
}

// ConsensusStatus is the u8 status of a consensus request.
type ConsensusStatus uint8

const (
	ConsensusPending ConsensusStatus = iota
	ConsensusApproved
	ConsensusRejected
)

func (s ConsensusStatus) String() string {
	switch s {
	case ConsensusPending:
		return "pending"
	case ConsensusApproved:
		return "approved"
	case ConsensusRejected:
		return "rejected"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

type ConsensusRequest struct {
	AgentID     string
	Requester   solana.PublicKey
	ActionType  string
	DataHash    [32]byte
	Threshold   uint8
	Validators  []solana.PublicKey
	Approvals   uint8
	Rejections  uint8
	Status      ConsensusStatus
	RequestedAt int64
}

func (v ConsensusRequest) Record() codec.Record {
	validators := v.Validators
	if validators == nil {
		validators = []solana.PublicKey{}
	}
	return codec.Record{Schema: ConsensusRequestSchema, Values: []any{
		v.AgentID, v.Requester, v.ActionType, bytes.Clone(v.DataHash[:]), v.Threshold,
		validators, v.Approvals, v.Rejections, uint8(v.Status), v.RequestedAt,
	}}
}

func ConsensusRequestFromRecord(r codec.Record) (ConsensusRequest, error) {
	if err := expect(r, ConsensusRequestSchema); err != nil {
		return ConsensusRequest{}, err
	}
	g := codec.NewGetter(r)
	v := ConsensusRequest{
		AgentID:     g.String("agent_id"),
		Requester:   g.Address("requester"),
		ActionType:  g.String("action_type"),
		Threshold:   g.U8("threshold"),
		Validators:  g.Addresses("validators"),
		Approvals:   g.U8("approvals"),
		Rejections:  g.U8("rejections"),
		Status:      ConsensusStatus(g.U8("status")),
		RequestedAt: g.I64("requested_at"),
	}
	copy(v.DataHash[:], g.Bytes("data_hash"))
	return v, g.Err()
}

type Attestation struct {
	AgentID         string
	Issuer          solana.PublicKey
	AttestationType string
	ClaimsURI       string
	IssuedAt        int64
	ExpiresAt       int64
	Signature       [64]byte
	IsRevoked       bool
}

func (v Attestation) Record() codec.Record {
	return codec.Record{Schema: AttestationSchema, Values: []any{
		v.AgentID, v.Issuer, v.AttestationType, v.ClaimsURI, v.IssuedAt, v.ExpiresAt,
		bytes.Clone(v.Signature[:]), v.IsRevoked,
	}}
}

func AttestationFromRecord(r codec.Record) (Attestation, error) {
	if err := expect(r, AttestationSchema); err != nil {
		return Attestation{}, err
	}
	g := codec.NewGetter(r)
	v := Attestation{
		AgentID:         g.String("agent_id"),
		Issuer:          g.Address("issuer"),
		AttestationType: g.String("attestation_type"),
		ClaimsURI:       g.String("claims_uri"),
		IssuedAt:        g.I64("issued_at"),
		ExpiresAt:       g.I64("expires_at"),
		IsRevoked:       g.Bool("is_revoked"),
	}
	copy(v.Signature[:], g.Bytes("signature"))
	return v, g.Err()
}

// Valid reports whether the attestation is unrevoked and unexpired at unix time now.
func (v Attestation) Valid(now int64) bool {
	return !v.IsRevoked && v.ExpiresAt > now
}

type Issuer struct {
	Owner             solana.PublicKey
	Name              string
	MetadataURI       string
	StakeAmount       uint64
	IsActive          bool
	TotalAttestations uint64
	RegisteredAt      int64
	Bump              uint8
}

func (v Issuer) Record() codec.Record {
	return codec.Record{Schema: IssuerSchema, Values: []any{
		v.Owner, v.Name, v.MetadataURI, v.StakeAmount, v.IsActive, v.TotalAttestations, v.RegisteredAt, v.Bump,
	}}
}

func IssuerFromRecord(r codec.Record) (Issuer, error) {
	if err := expect(r, IssuerSchema); err != nil {
		return Issuer{}, err
	}
	g := codec.NewGetter(r)
	v := Issuer{
		Owner:             g.Address("owner"),
		Name:              g.String("name"),
		MetadataURI:       g.String("metadata_uri"),
		StakeAmount:       g.U64("stake_amount"),
		IsActive:          g.Bool("is_active"),
		TotalAttestations: g.U64("total_attestations"),
		RegisteredAt:      g.I64("registered_at"),
		Bump:              g.U8("bump"),
	}
	return v, g.Err()
}

type Vote struct {
	Consensus   solana.PublicKey
	Validator   solana.PublicKey
	RequestID   string
	Approve     bool
	EvidenceURI string
	VotedAt     int64
	Bump        uint8
}

func (v Vote) Record() codec.Record {
	return codec.Record{Schema: VoteSchema, Values: []any{
		v.Consensus, v.Validator, v.RequestID, v.Approve, v.EvidenceURI, v.VotedAt, v.Bump,
	}}
}

func VoteFromRecord(r codec.Record) (Vote, error) {
	if err := expect(r, VoteSchema); err != nil {
		return Vote{}, err
	}
	g := codec.NewGetter(r)
	v := Vote{
		Consensus:   g.Address("consensus"),
		Validator:   g.Address("validator"),
		RequestID:   g.String("request_id"),
		Approve:     g.Bool("approve"),
		EvidenceURI: g.String("evidence_uri"),
		VotedAt:     g.I64("voted_at"),
		Bump:        g.U8("bump"),
	}
	return v, g.Err()
}

type ValidatorStake struct {
	Authority          solana.PublicKey
	StakedAmount       uint64
	IsActive           bool
	LastStakeTimestamp int64
	LastRewardClaim    int64
	TotalValidations   uint64
	PendingRewards     uint64
}

func (v ValidatorStake) Record() codec.Record {
	return codec.Record{Schema: ValidatorStakeSchema, Values: []any{
		v.Authority, v.StakedAmount, v.IsActive, v.LastStakeTimestamp, v.LastRewardClaim,
		v.TotalValidations, v.PendingRewards,
	}}
}

func ValidatorStakeFromRecord(r codec.Record) (ValidatorStake, error) {
	if err := expect(r, ValidatorStakeSchema); err != nil {
		return ValidatorStake{}, err
	}
	g := codec.NewGetter(r)
	v := ValidatorStake{
		Authority:          g.Address("authority"),
		StakedAmount:       g.U64("staked_amount"),
		IsActive:           g.Bool("is_active"),
		LastStakeTimestamp: g.I64("last_stake_timestamp"),
		LastRewardClaim:    g.I64("last_reward_claim"),
		TotalValidations:   g.U64("total_validations"),
		PendingRewards:     g.U64("pending_rewards"),
	}
	return v, g.Err()
}

type ConsensusValidator struct {
	Owner        solana.PublicKey
	Name         string
	MetadataURI  string
	StakeAmount  uint64
	IsActive     bool
	TotalVotes   uint64
	RegisteredAt int64
	Bump         uint8
}

func (v ConsensusValidator) Record() codec.Record {
	return codec.Record{Schema: ConsensusValidatorSchema, Values: []any{
		v.Owner, v.Name, v.MetadataURI, v.StakeAmount, v.IsActive, v.TotalVotes, v.RegisteredAt, v.Bump,
	}}
}

func ConsensusValidatorFromRecord(r codec.Record) (ConsensusValidator, error) {
	if err := expect(r, ConsensusValidatorSchema); err != nil {
		return ConsensusValidator{}, err
	}
	g := codec.NewGetter(r)
	v := ConsensusValidator{
		Owner:        g.Address("owner"),
		Name:         g.String("name"),
		MetadataURI:  g.String("metadata_uri"),
		StakeAmount:  g.U64("stake_amount"),
		IsActive:     g.Bool("is_active"),
		TotalVotes:   g.U64("total_votes"),
		RegisteredAt: g.I64("registered_at"),
		Bump:         g.U8("bump"),
	}
	return v, g.Err()
}

type RewardPool struct {
	Agent           solana.PublicKey
	ClaimableAmount uint64
	LastClaim       int64
	TotalClaimed    uint64
	Bump            uint8
}

func (v RewardPool) Record() codec.Record {
	return codec.Record{Schema: RewardPoolSchema, Values: []any{
		v.Agent, v.ClaimableAmount, v.LastClaim, v.TotalClaimed, v.Bump,
	}}
}

func RewardPoolFromRecord(r codec.Record) (RewardPool, error) {
	if err := expect(r, RewardPoolSchema); err != nil {
		return RewardPool{}, err
	}
	g := codec.NewGetter(r)
	v := RewardPool{
		Agent:           g.Address("agent"),
		ClaimableAmount: g.U64("claimable_amount"),
		LastClaim:       g.I64("last_claim"),
		TotalClaimed:    g.U64("total_claimed"),
		Bump:            g.U8("bump"),
	}
	return v, g.Err()
}

type PaymentsConfig struct {
	Authority          solana.PublicKey
	Treasury           solana.PublicKey
	PlatformFeeBps     uint16
	TotalPayments      uint64
	TotalVolume        uint64
	TotalFeesCollected uint64
	PaymentCount       uint64
	Bump               uint8
}

func (v PaymentsConfig) Record() codec.Record {
	return codec.Record{Schema: PaymentsConfigSchema, Values: []any{
		v.Authority, v.Treasury, v.PlatformFeeBps, v.TotalPayments, v.TotalVolume,
		v.TotalFeesCollected, v.PaymentCount, v.Bump,
	}}
}

func PaymentsConfigFromRecord(r codec.Record) (PaymentsConfig, error) {
	if err := expect(r, PaymentsConfigSchema); err != nil {
		return PaymentsConfig{}, err
	}
	g := codec.NewGetter(r)
	v := PaymentsConfig{
		Authority:          g.Address("authority"),
		Treasury:           g.Address("treasury"),
		PlatformFeeBps:     g.U16("platform_fee_bps"),
		TotalPayments:      g.U64("total_payments"),
		TotalVolume:        g.U64("total_volume"),
		TotalFeesCollected: g.U64("total_fees_collected"),
		PaymentCount:       g.U64("payment_count"),
		Bump:               g.U8("bump"),
	}
	return v, g.Err()
}

func expect(r codec.Record, s codec.Schema) error {
	if r.Schema.Name != s.Name || len(r.Values) != len(s.Fields) {
		return fmt.Errorf("records: expected %s record, got %s", s.Name, r.Schema.Name)
	}
	return nil
}
