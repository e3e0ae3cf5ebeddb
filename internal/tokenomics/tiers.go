// Package tokenomics holds the pure computation core of HiveDAO: the
// tier calculator, the contribution scorer, and the voting-power
// formula. Nothing in this package performs I/O or can fail; every
// function is total over its documented inputs.
//
// The tier and reward tables are injected configuration, not package
// globals, so tests and alternate deployments can run different
// partitions side by side.
package tokenomics

import "github.com/hivedao/hivedao/pkg/models"

// DefaultTiers is the canonical Fibonacci-boundary partition. The final
// tier is open-ended and grants no tokens.
var DefaultTiers = []models.Tier{
	{Name: "Genesis", Min: 1, Max: 89, Tokens: 10000},
	{Name: "Core", Min: 90, Max: 144, Tokens: 5000},
	{Name: "Early", Min: 145, Max: 233, Tokens: 2000},
	{Name: "Builders", Min: 234, Max: 377, Tokens: 1000},
	{Name: "Contributors", Min: 378, Max: 610, Tokens: 500},
	{Name: "Public", Min: 611, Tokens: 0},
}

// TierTable resolves registration positions to token-grant tiers.
type TierTable struct {
	tiers []models.Tier
}

// NewTierTable builds a tier table from an ordered partition. An empty
// slice falls back to DefaultTiers.
func NewTierTable(tiers []models.Tier) *TierTable {
	if len(tiers) == 0 {
		tiers = DefaultTiers
	}
	return &TierTable{tiers: tiers}
}

// TierFor returns the tier containing position. Ranges are evaluated in
// order, first match wins. A correctly configured table partitions the
// positive integers, so the fallback to the last tier should never
// trigger; it exists so the function stays total.
func (t *TierTable) TierFor(position int) models.Tier {
	for _, tier := range t.tiers {
		if tier.Contains(position) {
			return tier
		}
	}
	return t.tiers[len(t.tiers)-1]
}

// Tiers returns the configured partition in order.
func (t *TierTable) Tiers() []models.Tier {
	return t.tiers
}
