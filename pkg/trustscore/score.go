// Package trustscore computes and persists the bounded trust score of a credit relation.
package trustscore

import (
	"math"
	"time"

	"github.com/chris/trustline/pkg/models"
)

const (
	MinScore     = 300
	MaxScore     = 1000
	InitialScore = 500

	repaymentWeight = 40.0
	networkWeight   = 30.0
	velocityWeight  = 20.0
	tenureWeight    = 10.0

	networkSaturation  = 10.0
	velocitySaturation = 50.0
	tenureSaturation   = 365.0

	perfectRecordBonus   = 100
	perfectRecordMinimum = 10
	lateThreshold        = 3
	latePenalty          = 50
	defaultPenalty       = 100
)

// Breakdown is the auditable decomposition of a computed score.
type Breakdown struct {
	Repayment float64 `json:"repayment"`
	Network   float64 `json:"network"`
	Velocity  float64 `json:"velocity"`
	Tenure    float64 `json:"tenure"`
	Raw       float64 `json:"raw"`
	Scaled    int     `json:"scaled"`
	Bonus     int     `json:"bonus"`
	Penalty   int     `json:"penalty"`
	Final     int     `json:"final"`
}

// HasHistory reports whether the relation has drawn credit at least once. Until then it keeps
// InitialScore, whatever defaults have been recorded against it.
func HasHistory(rel *models.Relation) bool {
	return rel.TransactionCount > 0
}

// Compute returns the score for rel given the number of active relations sharing its phone.
// It is a pure function of its arguments.
func Compute(rel *models.Relation, activeRelations int, now time.Time) int {
	return Explain(rel, activeRelations, now).Final
}

// Explain is Compute with every intermediate component exposed.
func Explain(rel *models.Relation, activeRelations int, now time.Time) Breakdown {
	if !HasHistory(rel) {
		return Breakdown{Final: InitialScore, Scaled: InitialScore}
	}

	var b Breakdown

	onTimeRate := 1.0
	if total := rel.OnTimePayments + rel.LatePayments; total > 0 {
		onTimeRate = float64(rel.OnTimePayments) / float64(total)
	}
	b.Repayment = onTimeRate * repaymentWeight
	b.Network = saturate(float64(activeRelations), networkSaturation) * networkWeight
	b.Velocity = saturate(float64(rel.TransactionCount), velocitySaturation) * velocityWeight
	b.Tenure = saturate(float64(ageInDays(rel.CreatedAt, now)), tenureSaturation) * tenureWeight
	b.Raw = b.Repayment + b.Network + b.Velocity + b.Tenure

	// Truncation toward zero when mapping onto the final scale.
	b.Scaled = int(MinScore + b.Raw*(MaxScore-MinScore)/100)

	if rel.OnTimePayments >= perfectRecordMinimum && rel.LatePayments == 0 {
		b.Bonus = perfectRecordBonus
	}
	if rel.LatePayments > lateThreshold {
		b.Penalty += latePenalty
	}
	if rel.DefaultCount > 0 {
		b.Penalty += clampPenalty(rel.DefaultCount)
	}

	b.Final = Clamp(b.Scaled + b.Bonus - b.Penalty)
	return b
}

// Clamp bounds score to [MinScore, MaxScore].
func Clamp(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

func saturate(v, limit float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Min(v/limit, 1.0)
}

// ageInDays counts whole days elapsed; a creation time in the future counts as zero.
func ageInDays(createdAt, now time.Time) int64 {
	if createdAt.IsZero() || now.Before(createdAt) {
		return 0
	}
	return int64(now.Sub(createdAt) / (24 * time.Hour))
}

// clampPenalty caps the default penalty so that very large counts cannot overflow int.
// Anything past the full score range already clamps to MinScore.
func clampPenalty(defaults int64) int {
	const ceiling = (MaxScore + perfectRecordBonus) / defaultPenalty
	if defaults > ceiling {
		defaults = ceiling + 1
	}
	return int(defaults) * defaultPenalty
}
