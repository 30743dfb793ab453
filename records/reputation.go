package records

// SuccessRate is successful/total as a whole percentage clamped to [0, 100];
// 100 with no tasks.
func (v Reputation) SuccessRate() uint8 {
	if v.TotalTasks <= 0 {
		return 100
	}
	rate := (v.SuccessfulTasks * 100) / v.TotalTasks
	switch {
	case rate < 0:
		return 0
	case rate > 100:
		return 100
	}
	return uint8(rate)
}

// ScoreChange is the delta applied by a validation outcome, scaled by the
// agent's current success rate.
func (v Reputation) ScoreChange(approved bool) int64 {
	rate := v.SuccessRate()
	if approved {
		switch {
		case rate >= 90:
			return 100
		case rate >= 80:
			return 75
		case rate >= 70:
			return 50
		default:
			return 25
		}
	}
	switch {
	case rate <= 50:
		return -150
	case rate <= 70:
		return -100
	default:
		return -50
	}
}

// Score bounds of the reputation account.
const (
	InitialScore int64 = 5000
	MaxScore     int64 = 10000
)

// RewardMultiplier is the reward tier earned at the current score, 1 to 5.
func (v Reputation) RewardMultiplier() uint64 {
	switch {
	case v.Score >= 9000:
		return 5
	case v.Score >= 8000:
		return 4
	case v.Score >= 7000:
		return 3
	case v.Score >= 6000:
		return 2
	default:
		return 1
	}
}

// Apply returns v after one validation outcome: the counters move and the
// score changes by ScoreChange, clamped to [0, MaxScore].
func (v Reputation) Apply(approved bool) Reputation {
	delta := v.ScoreChange(approved)
	v.Score = min(max(v.Score+delta, 0), MaxScore)
	v.TotalTasks++
	if approved {
		v.SuccessfulTasks++
	} else {
		v.FailedTasks++
	}
	return v
}
