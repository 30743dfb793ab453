package address

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"

	"noema.dev/ledgerkit/config"
)

// Seed prefixes used by the deployed programs.
const (
	SeedIdentity         = "identity"
	SeedReputation       = "reputation"
	SeedRewardPool       = "reward_pool"
	SeedConfig           = "config"
	SeedStakingConfig    = "noema_config"
	SeedValidator        = "validator"
	SeedStakingValidator = "noema_validator"
	SeedIssuer           = "issuer"
	SeedAttestation      = "attestation"
	SeedConsensus        = "consensus"
	SeedVote             = "vote"
	SeedPayment          = "payment"
)

// PDA is a derived address with the bump that produced it.
type PDA struct {
	Address solana.PublicKey
	Bump    uint8
}

// Deriver computes the named program addresses for one set of deployed programs.
type Deriver struct {
	programs config.Programs
}

func NewDeriver(programs config.Programs) *Deriver {
	return &Deriver{programs: programs}
}

func (d *Deriver) Programs() config.Programs { return d.programs }

func derivePDA(program solana.PublicKey, seeds ...[]byte) (PDA, error) {
	addr, bump, err := Derive(program, seeds...)
	if err != nil {
		return PDA{}, err
	}
	return PDA{Address: addr, Bump: bump}, nil
}

// Identity is the registry record for agentID.
func (d *Deriver) Identity(agentID string) (PDA, error) {
	return derivePDA(d.programs.Registry, []byte(SeedIdentity), []byte(agentID))
}

func (d *Deriver) Reputation(agentID string) (PDA, error) {
	return derivePDA(d.programs.Registry, []byte(SeedReputation), []byte(agentID))
}

func (d *Deriver) RewardPool(agentID string) (PDA, error) {
	return derivePDA(d.programs.Registry, []byte(SeedRewardPool), []byte(agentID))
}

func (d *Deriver) RegistryConfig() (PDA, error) {
	return derivePDA(d.programs.Registry, []byte(SeedConfig))
}

func (d *Deriver) StakingConfig() (PDA, error) {
	return derivePDA(d.programs.Staking, []byte(SeedStakingConfig))
}

func (d *Deriver) StakingValidator(owner solana.PublicKey) (PDA, error) {
	return derivePDA(d.programs.Staking, []byte(SeedStakingValidator), owner[:])
}

func (d *Deriver) AttestationConfig() (PDA, error) {
	return derivePDA(d.programs.Attestation, []byte(SeedConfig))
}

func (d *Deriver) Issuer(owner solana.PublicKey) (PDA, error) {
	return derivePDA(d.programs.Attestation, []byte(SeedIssuer), owner[:])
}

// Attestation is keyed by subject, type and the issuing wallet.
func (d *Deriver) Attestation(agentID, attestationType string, issuerOwner solana.PublicKey) (PDA, error) {
	return derivePDA(d.programs.Attestation,
		[]byte(SeedAttestation), []byte(agentID), []byte(attestationType), issuerOwner[:])
}

func (d *Deriver) ConsensusConfig() (PDA, error) {
	return derivePDA(d.programs.Consensus, []byte(SeedConfig))
}

func (d *Deriver) ConsensusValidator(owner solana.PublicKey) (PDA, error) {
	return derivePDA(d.programs.Consensus, []byte(SeedValidator), owner[:])
}

func (d *Deriver) Consensus(agentID, actionType string, requester solana.PublicKey) (PDA, error) {
	return derivePDA(d.programs.Consensus,
		[]byte(SeedConsensus), []byte(agentID), []byte(actionType), requester[:])
}

func (d *Deriver) Vote(consensus, validator solana.PublicKey) (PDA, error) {
	return derivePDA(d.programs.Consensus, []byte(SeedVote), consensus[:], validator[:])
}

func (d *Deriver) PaymentsConfig() (PDA, error) {
	return derivePDA(d.programs.Payments, []byte(SeedConfig))
}

// Payment is seeded with the payment timestamp as 8 little-endian bytes.
func (d *Deriver) Payment(payer, recipient solana.PublicKey, ts int64) (PDA, error) {
	var le [8]byte
	binary.LittleEndian.PutUint64(le[:], uint64(ts))
	return derivePDA(d.programs.Payments, []byte(SeedPayment), payer[:], recipient[:], le[:])
}

// TokenAccount is the associated token account of wallet for mint.
func TokenAccount(wallet, mint solana.PublicKey) (PDA, error) {
	return derivePDA(solana.SPLAssociatedTokenAccountProgramID,
		wallet[:], solana.TokenProgramID[:], mint[:])
}
