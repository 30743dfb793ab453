package programs

import (
	"github.com/gagliardetto/solana-go"

	"noema.dev/ledgerkit/codec"
	"noema.dev/ledgerkit/instruction"
)

var (
	RegisterIssuerArgs = codec.Schema{Name: "register_issuer", Fields: []codec.Field{
		codec.F("issuer_name", codec.String),
		codec.F("metadata_uri", codec.String),
	}}
	IssueAttestationArgs = codec.Schema{Name: "issue_attestation", Fields: []codec.Field{
		codec.F("agent_id", codec.String),
		codec.F("attestation_type", codec.String),
		codec.F("claims_uri", codec.String),
		codec.F("expires_at", codec.I64),
		codec.FixedField("signature", 64),
	}}
	RevokeAttestationArgs = codec.Schema{Name: "revoke_attestation", Fields: []codec.Field{
		codec.F("reason", codec.String),
	}}
)

func (b *Builder) RegisterIssuer(owner solana.PublicKey, name, metadataURI string) (*instruction.Instruction, error) {
	if err := deployed("attestation", b.programs.Attestation); err != nil {
		return nil, err
	}
	if err := checkNonEmpty("issuer_name", name, MaxName); err != nil {
		return nil, err
	}
	if err := checkString("metadata_uri", metadataURI, MaxURI); err != nil {
		return nil, err
	}
	issuer, err := b.derive.Issuer(owner)
	if err != nil {
		return nil, err
	}
	cfg, err := b.derive.AttestationConfig()
	if err != nil {
		return nil, err
	}
	return instruction.Build(b.programs.Attestation, []instruction.Role{
		instruction.Writable(issuer.Address),
		instruction.Writable(cfg.Address),
		instruction.Payer(owner),
		instruction.Readonly(solana.SystemProgramID),
	}, "register_issuer", RegisterIssuerArgs, []any{name, metadataURI})
}

// Attestation is the argument set of IssueAttestation. Signature is the
// issuer's ed25519 signature over the claims.
type Attestation struct {
	AgentID   string
	Type      string
	ClaimsURI string
	ExpiresAt int64
	Signature solana.Signature
}

func (b *Builder) IssueAttestation(issuerOwner solana.PublicKey, a Attestation) (*instruction.Instruction, error) {
	if err := deployed("attestation", b.programs.Attestation); err != nil {
		return nil, err
	}
	if err := checkNonEmpty("agent_id", a.AgentID, MaxAgentID); err != nil {
		return nil, err
	}
	if err := checkNonEmpty("attestation_type", a.Type, MaxAgentID); err != nil {
		return nil, err
	}
	if err := checkString("claims_uri", a.ClaimsURI, MaxURI); err != nil {
		return nil, err
	}
	att, err := b.derive.Attestation(a.AgentID, a.Type, issuerOwner)
	if err != nil {
		return nil, err
	}
	issuer, err := b.derive.Issuer(issuerOwner)
	if err != nil {
		return nil, err
	}
	return instruction.Build(b.programs.Attestation, []instruction.Role{
		instruction.Writable(att.Address),
		instruction.Writable(issuer.Address),
		instruction.Payer(issuerOwner),
		instruction.Readonly(solana.SystemProgramID),
	}, "issue_attestation", IssueAttestationArgs, []any{
		a.AgentID, a.Type, a.ClaimsURI, a.ExpiresAt, a.Signature[:],
	})
}

func (b *Builder) RevokeAttestation(issuerOwner solana.PublicKey, agentID, attestationType, reason string) (*instruction.Instruction, error) {
	if err := deployed("attestation", b.programs.Attestation); err != nil {
		return nil, err
	}
	if err := checkString("reason", reason, MaxURI); err != nil {
		return nil, err
	}
	att, err := b.derive.Attestation(agentID, attestationType, issuerOwner)
	if err != nil {
		return nil, err
	}
	issuer, err := b.derive.Issuer(issuerOwner)
	if err != nil {
		return nil, err
	}
	return instruction.Build(b.programs.Attestation, []instruction.Role{
		instruction.Writable(att.Address),
		instruction.Readonly(issuer.Address),
		instruction.Signer(issuerOwner),
	}, "revoke_attestation", RevokeAttestationArgs, []any{reason})
}
