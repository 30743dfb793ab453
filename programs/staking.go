package programs

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"noema.dev/ledgerkit/codec"
	"noema.dev/ledgerkit/instruction"
)

var (
	StakingInitializeArgs = codec.Schema{Name: "initialize", Fields: []codec.Field{
		codec.F("base_apy_bps", codec.U16),
		codec.F("instant_unstake_fee_bps", codec.U16),
		codec.F("validator_min_stake", codec.U64),
	}}
	StakeValidatorArgs        = codec.Schema{Name: "stake_validator", Fields: []codec.Field{codec.F("amount", codec.U64)}}
	UnstakeValidatorArgs      = codec.Schema{Name: "unstake_validator", Fields: []codec.Field{codec.F("amount", codec.U64)}}
	UnstakeInstantArgs        = codec.Schema{Name: "unstake_validator_instant", Fields: []codec.Field{codec.F("amount", codec.U64)}}
	ClaimValidatorRewardsArgs = codec.Schema{Name: "claim_validator_rewards"}
)

func (b *Builder) stakeMint() (solana.PublicKey, error) {
	if err := deployed("staking", b.programs.Staking); err != nil {
		return solana.PublicKey{}, err
	}
	if b.mints.Stake.IsZero() {
		return solana.PublicKey{}, fmt.Errorf("%w: stake mint", ErrNotDeployed)
	}
	return b.mints.Stake, nil
}

// InitializeStaking creates the staking config. Fees are in basis points.
func (b *Builder) InitializeStaking(authority, treasury solana.PublicKey, baseAPYBps, instantFeeBps uint16, minStake uint64) (*instruction.Instruction, error) {
	mint, err := b.stakeMint()
	if err != nil {
		return nil, err
	}
	if baseAPYBps > 10_000 || instantFeeBps > 10_000 {
		return nil, fmt.Errorf("%w: basis points above 10000", ErrInvalidArgument)
	}
	cfg, err := b.derive.StakingConfig()
	if err != nil {
		return nil, err
	}
	return instruction.Build(b.programs.Staking, []instruction.Role{
		instruction.Writable(cfg.Address),
		instruction.Payer(authority),
		instruction.Readonly(mint),
		instruction.Readonly(treasury),
		instruction.Readonly(solana.SystemProgramID),
	}, "initialize", StakingInitializeArgs, []any{baseAPYBps, instantFeeBps, minStake})
}

// stakeAccounts are the accounts shared by every validator stake instruction:
// validator record, config, user, user token account and vault.
func (b *Builder) stakeAccounts(user solana.PublicKey, configWritable bool) ([]instruction.Role, error) {
	mint, err := b.stakeMint()
	if err != nil {
		return nil, err
	}
	validator, err := b.derive.StakingValidator(user)
	if err != nil {
		return nil, err
	}
	cfg, err := b.derive.StakingConfig()
	if err != nil {
		return nil, err
	}
	userATA, err := tokenAccount(user, mint)
	if err != nil {
		return nil, err
	}
	vault, err := tokenAccount(validator.Address, mint)
	if err != nil {
		return nil, err
	}
	cfgRole := instruction.Readonly(cfg.Address)
	if configWritable {
		cfgRole = instruction.Writable(cfg.Address)
	}
	return []instruction.Role{
		instruction.Writable(validator.Address),
		cfgRole,
		instruction.Payer(user),
		instruction.Writable(userATA),
		instruction.Writable(vault),
	}, nil
}

func positive(field string, v uint64) error {
	if v == 0 {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidArgument, field)
	}
	return nil
}

func (b *Builder) StakeValidator(user solana.PublicKey, amount uint64) (*instruction.Instruction, error) {
	if err := positive("amount", amount); err != nil {
		return nil, err
	}
	roles, err := b.stakeAccounts(user, true)
	if err != nil {
		return nil, err
	}
	roles = append(roles,
		instruction.Readonly(b.mints.Stake),
		instruction.Readonly(solana.TokenProgramID),
		instruction.Readonly(solana.SPLAssociatedTokenAccountProgramID),
		instruction.Readonly(solana.SystemProgramID),
	)
	return instruction.Build(b.programs.Staking, roles, "stake_validator", StakeValidatorArgs, []any{amount})
}

func (b *Builder) ClaimValidatorRewards(user solana.PublicKey) (*instruction.Instruction, error) {
	roles, err := b.stakeAccounts(user, false)
	if err != nil {
		return nil, err
	}
	roles = append(roles, instruction.Readonly(solana.TokenProgramID))
	return instruction.Build(b.programs.Staking, roles, "claim_validator_rewards", ClaimValidatorRewardsArgs, nil)
}

func (b *Builder) UnstakeValidator(user solana.PublicKey, amount uint64) (*instruction.Instruction, error) {
	if err := positive("amount", amount); err != nil {
		return nil, err
	}
	roles, err := b.stakeAccounts(user, false)
	if err != nil {
		return nil, err
	}
	roles = append(roles, instruction.Readonly(solana.TokenProgramID))
	return instruction.Build(b.programs.Staking, roles, "unstake_validator", UnstakeValidatorArgs, []any{amount})
}

// UnstakeValidatorInstant withdraws immediately; the fee goes to the treasury's
// token account.
func (b *Builder) UnstakeValidatorInstant(user, treasury solana.PublicKey, amount uint64) (*instruction.Instruction, error) {
	if err := positive("amount", amount); err != nil {
		return nil, err
	}
	roles, err := b.stakeAccounts(user, false)
	if err != nil {
		return nil, err
	}
	treasuryATA, err := tokenAccount(treasury, b.mints.Stake)
	if err != nil {
		return nil, err
	}
	roles = append(roles,
		instruction.Writable(treasuryATA),
		instruction.Readonly(solana.TokenProgramID),
	)
	return instruction.Build(b.programs.Staking, roles, "unstake_validator_instant", UnstakeInstantArgs, []any{amount})
}
