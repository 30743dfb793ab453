// Package records defines the account layouts of the deployed programs as
// codec schemas, together with typed views over decoded records.
//
// Schema names are the on-chain struct names; the account selector is
// derived from them.
package records

import "noema.dev/ledgerkit/codec"

// IdentitySchema is an agent's registry entry.
var IdentitySchema = codec.Schema{
	Name: "IdentityRegistry",
	Fields: []codec.Field{
		codec.F("owner", codec.Address),
		codec.F("agent_id", codec.String),
		codec.F("metadata_uri", codec.String),
		codec.F("created_at", codec.I64),
		codec.F("updated_at", codec.I64),
		codec.F("is_active", codec.Bool),
		codec.F("bump", codec.U8),
	},
}

// ReputationSchema starts with a 32-byte region that is carried through
// unchanged; score sits at byte 40 of the account.
var ReputationSchema = codec.Schema{
	Name: "ReputationRegistry",
	Fields: []codec.Field{
		codec.FixedField("reserved", 32),
		codec.F("score", codec.I64),
		codec.F("total_tasks", codec.I64),
		codec.F("successful_tasks", codec.I64),
		codec.F("failed_tasks", codec.I64),
	},
}

var ValidatorConfigSchema = codec.Schema{
	Name: "Config",
	Fields: []codec.Field{
		codec.F("authority", codec.Address),
		codec.F("treasury", codec.Address),
		codec.F("stake_mint", codec.Address),
		codec.F("validator_min_stake", codec.U64),
		codec.F("base_apy_bps", codec.U16),
		codec.F("instant_unstake_fee_bps", codec.U16),
	},
}

var ConsensusRequestSchema = codec.Schema{
	Name: "ConsensusRequest",
	Fields: []codec.Field{
		codec.F("agent_id", codec.String),
		codec.F("requester", codec.Address),
		codec.F("action_type", codec.String),
		codec.FixedField("data_hash", 32),
		codec.F("threshold", codec.U8),
		codec.F("validators", codec.AddressVec),
		codec.F("approvals", codec.U8),
		codec.F("rejections", codec.U8),
		codec.F("status", codec.U8),
		codec.F("requested_at", codec.I64),
	},
}

var AttestationSchema = codec.Schema{
	Name: "AttestationRegistry",
	Fields: []codec.Field{
		codec.F("agent_id", codec.String),
		codec.F("issuer", codec.Address),
		codec.F("attestation_type", codec.String),
		codec.F("claims_uri", codec.String),
		codec.F("issued_at", codec.I64),
		codec.F("expires_at", codec.I64),
		codec.FixedField("signature", 64),
		codec.F("is_revoked", codec.Bool),
	},
}

var IssuerSchema = codec.Schema{
	Name: "IssuerRegistry",
	Fields: []codec.Field{
		codec.F("owner", codec.Address),
		codec.F("name", codec.String),
		codec.F("metadata_uri", codec.String),
		codec.F("stake_amount", codec.U64),
		codec.F("is_active", codec.Bool),
		codec.F("total_attestations", codec.U64),
		codec.F("registered_at", codec.I64),
		codec.F("bump", codec.U8),
	},
}

var VoteSchema = codec.Schema{
	Name: "VoteRecord",
	Fields: []codec.Field{
		codec.F("consensus", codec.Address),
		codec.F("validator", codec.Address),
		codec.F("request_id", codec.String),
		codec.F("approve", codec.Bool),
		codec.F("evidence_uri", codec.String),
		codec.F("voted_at", codec.I64),
		codec.F("bump", codec.U8),
	},
}

// ValidatorStakeSchema is the staking program's per-validator account.
var ValidatorStakeSchema = codec.Schema{
	Name: "Validator",
	Fields: []codec.Field{
		codec.F("authority", codec.Address),
		codec.F("staked_amount", codec.U64),
		codec.F("is_active", codec.Bool),
		codec.F("last_stake_timestamp", codec.I64),
		codec.F("last_reward_claim", codec.I64),
		codec.F("total_validations", codec.U64),
		codec.F("pending_rewards", codec.U64),
	},
}

// ConsensusValidatorSchema is the consensus program's validator registration.
var ConsensusValidatorSchema = codec.Schema{
	Name: "ValidatorRegistry",
	Fields: []codec.Field{
		codec.F("owner", codec.Address),
		codec.F("name", codec.String),
		codec.F("metadata_uri", codec.String),
		codec.F("stake_amount", codec.U64),
		codec.F("is_active", codec.Bool),
		codec.F("total_votes", codec.U64),
		codec.F("registered_at", codec.I64),
		codec.F("bump", codec.U8),
	},
}

var RewardPoolSchema = codec.Schema{
	Name: "RewardPool",
	Fields: []codec.Field{
		codec.F("agent", codec.Address),
		codec.F("claimable_amount", codec.U64),
		codec.F("last_claim", codec.I64),
		codec.F("total_claimed", codec.U64),
		codec.F("bump", codec.U8),
	},
}

// PaymentsConfigSchema is the payments program's GlobalConfig.
var PaymentsConfigSchema = codec.Schema{
	Name: "GlobalConfig",
	Fields: []codec.Field{
		codec.F("authority", codec.Address),
		codec.F("treasury", codec.Address),
		codec.F("platform_fee_bps", codec.U16),
		codec.F("total_payments", codec.U64),
		codec.F("total_volume", codec.U64),
		codec.F("total_fees_collected", codec.U64),
		codec.F("payment_count", codec.U64),
		codec.F("bump", codec.U8),
	},
}

// All lists every account schema, in a stable order.
var All = []codec.Schema{
	IdentitySchema,
	ReputationSchema,
	ValidatorConfigSchema,
	ConsensusRequestSchema,
	AttestationSchema,
	IssuerSchema,
	VoteSchema,
	ValidatorStakeSchema,
	ConsensusValidatorSchema,
	RewardPoolSchema,
	PaymentsConfigSchema,
}

// ByName finds an account schema by its type name.
func ByName(name string) (codec.Schema, bool) {
	for _, s := range All {
		if s.Name == name {
			return s, true
		}
	}
	return codec.Schema{}, false
}
