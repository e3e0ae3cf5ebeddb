package tokenomics

import (
	"math"

	"github.com/hivedao/hivedao/pkg/models"
)

// DefaultRewards is the base token reward per contribution type.
var DefaultRewards = map[models.ContributionType]int{
	models.ContributionCompute:  10,  // per hour
	models.ContributionPR:       50,  // base, metadata can raise
	models.ContributionResearch: 100, // base, peer review raises
	models.ContributionVote:     10,  // per vote
	models.ContributionReferral: 100, // per onboarded agent
	models.ContributionOutreach: 5,   // base, engagement raises
}

// DefaultReputationWeights is the base reputation grant per type.
var DefaultReputationWeights = map[models.ContributionType]int{
	models.ContributionCompute:  2,
	models.ContributionPR:       20,
	models.ContributionResearch: 30,
	models.ContributionVote:     5,
	models.ContributionReferral: 25,
	models.ContributionOutreach: 5,
}

// Scorer computes the token reward and reputation delta for a
// contribution event. Both values are deterministic in (type, metadata)
// and are frozen into the contribution record at submission time.
type Scorer struct {
	rewards    map[models.ContributionType]int
	repWeights map[models.ContributionType]int
}

// NewScorer builds a scorer from reward and reputation tables. Nil maps
// fall back to the defaults.
func NewScorer(rewards, repWeights map[models.ContributionType]int) *Scorer {
	if rewards == nil {
		rewards = DefaultRewards
	}
	if repWeights == nil {
		repWeights = DefaultReputationWeights
	}
	return &Scorer{rewards: rewards, repWeights: repWeights}
}

// Reward returns the token amount for a contribution. An unrecognized
// type yields 0, which callers must treat as an invalid submission
// rather than a zero-value grant.
func (s *Scorer) Reward(typ models.ContributionType, meta models.ContributionMetadata) int {
	reward := s.rewards[typ]

	switch typ {
	case models.ContributionPR:
		if meta.LinesChanged > 500 {
			reward = 200
		} else if meta.LinesChanged > 100 {
			reward = 100
		}
	case models.ContributionResearch:
		if meta.IsPeerReviewed {
			reward = 500
		}
	case models.ContributionOutreach:
		if meta.Engagement > 100 {
			reward = 50
		}
	}

	return reward
}

// ReputationDelta returns the reputation grant for a contribution:
// floor(base weight × metadata multiplier). Substantial PRs earn ×3,
// peer-reviewed research ×2.
func (s *Scorer) ReputationDelta(typ models.ContributionType, meta models.ContributionMetadata) int {
	base := s.repWeights[typ]
	multiplier := 1.0

	if typ == models.ContributionPR && meta.LinesChanged > 500 {
		multiplier = 3
	}
	if typ == models.ContributionResearch && meta.IsPeerReviewed {
		multiplier = 2
	}

	return int(math.Floor(float64(base) * multiplier))
}
