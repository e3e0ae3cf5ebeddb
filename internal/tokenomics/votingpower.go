package tokenomics

import "math"

// VotingPower combines an agent's token allocation and reputation into a
// single voting-power scalar:
//
//	sqrt(tokens × max(reputation, 1))
//
// The square root dampens plutocratic dominance of raw token holdings
// while still rewarding sustained reputation growth. Reputation is
// floored at 1 so a freshly registered agent is not disenfranchised:
// their power starts at sqrt(tokens).
//
// This is the only implementation of the formula in the codebase. Any
// call site that needs an integer must go through VotingPowerInt.
func VotingPower(tokens, reputation int) float64 {
	if tokens <= 0 {
		return 0
	}
	if reputation < 1 {
		reputation = 1
	}
	return math.Sqrt(float64(tokens) * float64(reputation))
}

// VotingPowerInt floors VotingPower to an integer. Floor (rather than
// round-to-nearest) keeps aggregate power conservative: rounding can
// never mint power that the formula did not grant.
func VotingPowerInt(tokens, reputation int) int {
	return int(math.Floor(VotingPower(tokens, reputation)))
}
