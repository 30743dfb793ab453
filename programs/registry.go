package programs

import (
	"github.com/gagliardetto/solana-go"

	"noema.dev/ledgerkit/codec"
	"noema.dev/ledgerkit/instruction"
)

var (
	RegisterAgentArgs = codec.Schema{Name: "register_agent", Fields: []codec.Field{
		codec.F("agent_id", codec.String),
		codec.F("metadata_uri", codec.String),
	}}
	UpdateMetadataArgs = codec.Schema{Name: "update_metadata", Fields: []codec.Field{
		codec.F("new_metadata_uri", codec.String),
	}}
	DeactivateAgentArgs = codec.Schema{Name: "deactivate_agent"}
)

// RegisterAgent creates the identity, reputation and reward pool records for
// agentID, paid for by owner.
func (b *Builder) RegisterAgent(owner solana.PublicKey, agentID, metadataURI string) (*instruction.Instruction, error) {
	if err := deployed("registry", b.programs.Registry); err != nil {
		return nil, err
	}
	if err := checkNonEmpty("agent_id", agentID, MaxRegistryAgentID); err != nil {
		return nil, err
	}
	if err := checkString("metadata_uri", metadataURI, MaxURI); err != nil {
		return nil, err
	}
	identity, err := b.derive.Identity(agentID)
	if err != nil {
		return nil, err
	}
	reputation, err := b.derive.Reputation(agentID)
	if err != nil {
		return nil, err
	}
	pool, err := b.derive.RewardPool(agentID)
	if err != nil {
		return nil, err
	}
	cfg, err := b.derive.RegistryConfig()
	if err != nil {
		return nil, err
	}
	return instruction.Build(b.programs.Registry, []instruction.Role{
		instruction.Writable(identity.Address),
		instruction.Writable(reputation.Address),
		instruction.Writable(pool.Address),
		instruction.Payer(owner),
		instruction.Writable(cfg.Address),
		instruction.Readonly(solana.SystemProgramID),
	}, "register_agent", RegisterAgentArgs, []any{agentID, metadataURI})
}

func (b *Builder) UpdateMetadata(owner solana.PublicKey, agentID, metadataURI string) (*instruction.Instruction, error) {
	if err := deployed("registry", b.programs.Registry); err != nil {
		return nil, err
	}
	if err := checkString("metadata_uri", metadataURI, MaxURI); err != nil {
		return nil, err
	}
	identity, err := b.derive.Identity(agentID)
	if err != nil {
		return nil, err
	}
	return instruction.Build(b.programs.Registry, []instruction.Role{
		instruction.Writable(identity.Address),
		instruction.Signer(owner),
	}, "update_metadata", UpdateMetadataArgs, []any{metadataURI})
}

func (b *Builder) DeactivateAgent(owner solana.PublicKey, agentID string) (*instruction.Instruction, error) {
	if err := deployed("registry", b.programs.Registry); err != nil {
		return nil, err
	}
	identity, err := b.derive.Identity(agentID)
	if err != nil {
		return nil, err
	}
	return instruction.Build(b.programs.Registry, []instruction.Role{
		instruction.Writable(identity.Address),
		instruction.Signer(owner),
	}, "deactivate_agent", DeactivateAgentArgs, nil)
}
