package programs

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"noema.dev/ledgerkit/codec"
	"noema.dev/ledgerkit/instruction"
)

var (
	RegisterValidatorArgs = codec.Schema{Name: "register_validator", Fields: []codec.Field{
		codec.F("validator_name", codec.String),
		codec.F("metadata_uri", codec.String),
	}}
	RequestConsensusArgs = codec.Schema{Name: "request_consensus", Fields: []codec.Field{
		codec.F("agent_id", codec.String),
		codec.F("action_type", codec.String),
		codec.FixedField("data_hash", 32),
		codec.F("threshold", codec.U8),
		codec.F("validator_keys", codec.AddressVec),
	}}
	CastVoteArgs = codec.Schema{Name: "cast_vote", Fields: []codec.Field{
		codec.F("request_id", codec.String),
		codec.F("approve", codec.Bool),
		codec.F("evidence_uri", codec.String),
	}}
	FinalizeConsensusArgs = codec.Schema{Name: "finalize_consensus"}
)

func (b *Builder) RegisterValidator(owner solana.PublicKey, name, metadataURI string) (*instruction.Instruction, error) {
	if err := deployed("consensus", b.programs.Consensus); err != nil {
		return nil, err
	}
	if err := checkNonEmpty("validator_name", name, MaxName); err != nil {
		return nil, err
	}
	if err := checkString("metadata_uri", metadataURI, MaxURI); err != nil {
		return nil, err
	}
	v, err := b.derive.ConsensusValidator(owner)
	if err != nil {
		return nil, err
	}
	cfg, err := b.derive.ConsensusConfig()
	if err != nil {
		return nil, err
	}
	return instruction.Build(b.programs.Consensus, []instruction.Role{
		instruction.Writable(v.Address),
		instruction.Writable(cfg.Address),
		instruction.Payer(owner),
		instruction.Readonly(solana.SystemProgramID),
	}, "register_validator", RegisterValidatorArgs, []any{name, metadataURI})
}

// ConsensusRequest is the argument set of RequestConsensus.
type ConsensusRequest struct {
	AgentID    string
	ActionType string
	DataHash   [32]byte
	Threshold  uint8
	Validators []solana.PublicKey
}

func (r ConsensusRequest) validate() error {
	if err := checkNonEmpty("agent_id", r.AgentID, MaxAgentID); err != nil {
		return err
	}
	if err := checkNonEmpty("action_type", r.ActionType, MaxAgentID); err != nil {
		return err
	}
	n := len(r.Validators)
	if n == 0 || n > MaxValidators {
		return fmt.Errorf("%w: %d validators, want 1..%d", ErrInvalidArgument, n, MaxValidators)
	}
	if r.Threshold == 0 || int(r.Threshold) > n {
		return fmt.Errorf("%w: threshold %d with %d validators", ErrInvalidArgument, r.Threshold, n)
	}
	seen := make(map[solana.PublicKey]bool, n)
	for _, v := range r.Validators {
		if seen[v] {
			return fmt.Errorf("%w: duplicate validator %s", ErrInvalidArgument, v)
		}
		seen[v] = true
	}
	return nil
}

// RequestConsensus opens a vote among r.Validators. The consensus address is
// returned so the caller can follow the request.
func (b *Builder) RequestConsensus(requester solana.PublicKey, r ConsensusRequest) (*instruction.Instruction, solana.PublicKey, error) {
	if err := deployed("consensus", b.programs.Consensus); err != nil {
		return nil, solana.PublicKey{}, err
	}
	if err := r.validate(); err != nil {
		return nil, solana.PublicKey{}, err
	}
	c, err := b.derive.Consensus(r.AgentID, r.ActionType, requester)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	cfg, err := b.derive.ConsensusConfig()
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	in, err := instruction.Build(b.programs.Consensus, []instruction.Role{
		instruction.Writable(c.Address),
		instruction.Writable(cfg.Address),
		instruction.Payer(requester),
		instruction.Readonly(solana.SystemProgramID),
	}, "request_consensus", RequestConsensusArgs, []any{
		r.AgentID, r.ActionType, r.DataHash[:], r.Threshold, append([]solana.PublicKey(nil), r.Validators...),
	})
	return in, c.Address, err
}

func (b *Builder) CastVote(validatorOwner, consensus solana.PublicKey, requestID string, approve bool, evidenceURI string) (*instruction.Instruction, error) {
	if err := deployed("consensus", b.programs.Consensus); err != nil {
		return nil, err
	}
	if err := checkString("request_id", requestID, MaxRequestID); err != nil {
		return nil, err
	}
	if err := checkString("evidence_uri", evidenceURI, MaxURI); err != nil {
		return nil, err
	}
	vote, err := b.derive.Vote(consensus, validatorOwner)
	if err != nil {
		return nil, err
	}
	v, err := b.derive.ConsensusValidator(validatorOwner)
	if err != nil {
		return nil, err
	}
	return instruction.Build(b.programs.Consensus, []instruction.Role{
		instruction.Writable(vote.Address),
		instruction.Writable(consensus),
		instruction.Readonly(v.Address),
		instruction.Payer(validatorOwner),
		instruction.Readonly(solana.SystemProgramID),
	}, "cast_vote", CastVoteArgs, []any{requestID, approve, evidenceURI})
}

// FinalizeConsensus closes a request whose voting period has elapsed.
// Anyone may send it.
func (b *Builder) FinalizeConsensus(consensus solana.PublicKey) (*instruction.Instruction, error) {
	if err := deployed("consensus", b.programs.Consensus); err != nil {
		return nil, err
	}
	return instruction.Build(b.programs.Consensus, []instruction.Role{
		instruction.Writable(consensus),
	}, "finalize_consensus", FinalizeConsensusArgs, nil)
}
