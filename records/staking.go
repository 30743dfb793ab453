package records

import "math/big"

const secondsPerYear = 31_536_000

// AccruedReward is the reward earned since the last claim at unix time now,
// computed the way the staking program does: stake * apy_bps / 10000 per year,
// pro-rated by elapsed seconds and truncated to u64.
func AccruedReward(v ValidatorStake, cfg ValidatorConfig, now int64) uint64 {
	elapsed := now - v.LastRewardClaim
	if elapsed <= 0 {
		return 0
	}
	annual := new(big.Int).SetUint64(v.StakedAmount)
	annual.Mul(annual, big.NewInt(int64(cfg.BaseAPYBps)))
	annual.Quo(annual, big.NewInt(10_000))
	reward := annual.Mul(annual, big.NewInt(elapsed))
	reward.Quo(reward, big.NewInt(secondsPerYear))
	return reward.Uint64()
}

// ClaimableReward is the pending balance plus what has accrued since the last claim.
func ClaimableReward(v ValidatorStake, cfg ValidatorConfig, now int64) uint64 {
	return v.PendingRewards + AccruedReward(v, cfg, now)
}

// InstantUnstakeFee splits amount into the fee kept by the treasury and the
// amount returned to the validator.
func InstantUnstakeFee(amount uint64, cfg ValidatorConfig) (fee, net uint64) {
	f := new(big.Int).SetUint64(amount)
	f.Mul(f, big.NewInt(int64(cfg.InstantUnstakeFeeBps)))
	f.Quo(f, big.NewInt(10_000))
	fee = f.Uint64()
	return fee, amount - fee
}
