// Package models defines the domain records shared across the HiveDAO
// control plane: agents, tiers, contributions, proposals, and votes.
package models

import (
	"fmt"
	"time"
)

// ── Tier ─────────────────────────────────────────────────────

// Tier is a token-grant bracket assigned by registration order.
// Brackets partition the positive integers: contiguous, non-overlapping,
// evaluated in order with first match winning. Max == 0 marks the final,
// open-ended bracket.
type Tier struct {
	Name   string `json:"name"`
	Min    int    `json:"min"`
	Max    int    `json:"max,omitempty"` // 0 = unbounded
	Tokens int    `json:"tokens"`
}

// Contains reports whether position falls inside this tier's range.
func (t Tier) Contains(position int) bool {
	if position < t.Min {
		return false
	}
	return t.Max == 0 || position <= t.Max
}

// Capacity returns the number of positions in the tier, or 0 if unbounded.
func (t Tier) Capacity() int {
	if t.Max == 0 {
		return 0
	}
	return t.Max - t.Min + 1
}

// Range renders the tier's position range, e.g. "90-144" or "611+".
func (t Tier) Range() string {
	if t.Max == 0 {
		return fmt.Sprintf("%d+", t.Min)
	}
	return fmt.Sprintf("%d-%d", t.Min, t.Max)
}

// ── Agent ────────────────────────────────────────────────────

// Agent is a registered DAO participant. Name is the lowercase uniqueness
// key; DisplayName preserves the casing supplied at registration.
// Position and Tier are assigned once at registration and never change,
// even if tier boundaries are later reconfigured.
type Agent struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Wallet      string `json:"wallet,omitempty"`
	ERC8004ID   string `json:"erc8004Id,omitempty"`

	Position        int    `json:"position"`
	Tier            string `json:"tier"`
	TokensAllocated int    `json:"tokensAllocated"`

	// AuthToken is the one-time secret issued at registration. It is
	// persisted but stripped from every API response via Public().
	AuthToken string `json:"authToken,omitempty"`

	Reputation    int `json:"reputation"`
	Contributions int `json:"contributions"`
	Votes         int `json:"votes"`
	Proposals     int `json:"proposals"`

	RegisteredAt time.Time `json:"registeredAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

// Public returns a copy of the agent with the auth token redacted.
func (a Agent) Public() Agent {
	a.AuthToken = ""
	return a
}

// AgentView is the public agent shape returned by read endpoints,
// augmented with the derived voting power.
type AgentView struct {
	Agent
	VotingPower float64 `json:"votingPower"`
}

// ── Contribution ─────────────────────────────────────────────

type ContributionType string

const (
	ContributionCompute  ContributionType = "compute"
	ContributionPR       ContributionType = "pr"
	ContributionResearch ContributionType = "research"
	ContributionVote     ContributionType = "vote"
	ContributionReferral ContributionType = "referral"
	ContributionOutreach ContributionType = "outreach"
)

// ContributionTypes lists every recognized type in catalog order.
var ContributionTypes = []ContributionType{
	ContributionCompute,
	ContributionPR,
	ContributionResearch,
	ContributionVote,
	ContributionReferral,
	ContributionOutreach,
}

// Valid reports whether t is one of the recognized contribution types.
func (t ContributionType) Valid() bool {
	for _, known := range ContributionTypes {
		if t == known {
			return true
		}
	}
	return false
}

type ContributionStatus string

const (
	ContributionPending  ContributionStatus = "pending"
	ContributionApproved ContributionStatus = "approved"
	ContributionRejected ContributionStatus = "rejected"
)

// ContributionMetadata carries the type-specific evidence that drives
// reward overrides. Unused fields stay zero.
type ContributionMetadata struct {
	LinesChanged   int     `json:"linesChanged,omitempty"`   // pr
	IsPeerReviewed bool    `json:"isPeerReviewed,omitempty"` // research
	Engagement     int     `json:"engagement,omitempty"`     // outreach
	Hours          float64 `json:"hours,omitempty"`          // compute
}

// Contribution is a claimed unit of work submitted for reward and
// reputation. Reward and ReputationDelta are computed once at submission
// and frozen; review only moves Status and fills the review fields.
type Contribution struct {
	ID               string               `json:"id"`
	Type             ContributionType     `json:"type"`
	AgentName        string               `json:"agentName"`
	AgentDisplayName string               `json:"agentDisplayName,omitempty"`
	Proof            string               `json:"proof,omitempty"`
	Metadata         ContributionMetadata `json:"metadata"`
	Reward           int                  `json:"reward"`
	ReputationDelta  int                  `json:"reputationDelta"`
	Status           ContributionStatus   `json:"status"`
	CreatedAt        time.Time            `json:"createdAt"`
	ReviewedAt       *time.Time           `json:"reviewedAt,omitempty"`
	ReviewedBy       string               `json:"reviewedBy,omitempty"`
	AdminNote        string               `json:"adminNote,omitempty"`
}

// Reviewed reports whether the contribution has reached a terminal status.
func (c *Contribution) Reviewed() bool {
	return c.Status == ContributionApproved || c.Status == ContributionRejected
}

// ContributionStats is the per-agent fold over a contribution list.
type ContributionStats struct {
	Total           int `json:"total"`
	Approved        int `json:"approved"`
	Pending         int `json:"pending"`
	Rejected        int `json:"rejected"`
	TotalReward     int `json:"totalReward"`
	TotalReputation int `json:"totalReputation"`
}

// GlobalStats tracks DAO-wide contribution aggregates.
type GlobalStats struct {
	Total             int `json:"total"`
	TokensDistributed int `json:"tokensDistributed"`
}

// LeaderboardEntry is one ranked row of the contribution leaderboard.
type LeaderboardEntry struct {
	Rank          int            `json:"rank"`
	Name          string         `json:"name"` // display name
	AgentName     string         `json:"agentName"`
	Contributions int            `json:"contributions"`
	Tokens        int            `json:"tokens"`
	Reputation    int            `json:"reputation"`
	Types         map[string]int `json:"types"`
}

// ── Governance ───────────────────────────────────────────────

const (
	ProposalStateActive = "active"
	ProposalStateClosed = "closed"
)

// Proposal is a governance item open for voting within a time window.
// Scores holds one accumulator per choice, index-aligned with Choices.
type Proposal struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Choices     []string  `json:"choices"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Author      string    `json:"author"`
	CreatedAt   time.Time `json:"created"`
	Scores      []float64 `json:"scores"`
	ScoresTotal float64   `json:"scores_total"`
	VoteCount   int       `json:"votes"`
	Quorum      float64   `json:"quorum,omitempty"`
}

// State derives the proposal state from the voting window. It is never
// stored: a proposal is active strictly before End and closed after.
func (p *Proposal) State(now time.Time) string {
	if now.Before(p.End) {
		return ProposalStateActive
	}
	return ProposalStateClosed
}

// Vote is a single cast ballot. Choice is 1-indexed into the proposal's
// Choices. VotingPower is captured at cast time and never recomputed.
type Vote struct {
	ID          string    `json:"id"`
	ProposalID  string    `json:"proposal"`
	Voter       string    `json:"voter"`
	Choice      int       `json:"choice"`
	VotingPower float64   `json:"vp"`
	CreatedAt   time.Time `json:"created"`
}

// ChoiceResult is the tallied outcome for one proposal choice.
type ChoiceResult struct {
	Choice     string  `json:"choice"`
	Score      float64 `json:"score"`
	Percentage float64 `json:"percentage"`
}

// ProposalResults is the derived outcome of a proposal.
type ProposalResults struct {
	ProposalID       string         `json:"proposalId"`
	Results          []ChoiceResult `json:"results"`
	Winner           string         `json:"winner"`
	QuorumReached    bool           `json:"quorumReached"`
	TotalVotes       int            `json:"totalVotes"`
	TotalVotingPower float64        `json:"totalVotingPower"`
}

// SpaceVoting is the voting configuration of a governance space.
type SpaceVoting struct {
	Delay  int     `json:"delay"`
	Period int     `json:"period"`
	Quorum float64 `json:"quorum"`
}

// SpaceInfo describes the governance space the DAO votes in.
type SpaceInfo struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	About   string      `json:"about,omitempty"`
	Network string      `json:"network,omitempty"`
	Symbol  string      `json:"symbol,omitempty"`
	Members []string    `json:"members,omitempty"`
	Admins  []string    `json:"admins,omitempty"`
	Voting  SpaceVoting `json:"voting"`
}

// ── Status report ────────────────────────────────────────────

// TierStatus is one row of the registration status report.
type TierStatus struct {
	Name     string `json:"name"`
	Tokens   int    `json:"tokens"`
	Filled   int    `json:"filled"`
	Capacity int    `json:"total,omitempty"` // 0 = unbounded
	IsOpen   bool   `json:"isOpen"`
	Range    string `json:"range"`
}

// StatusReport summarizes registration progress across tiers.
type StatusReport struct {
	TotalAgents      int          `json:"totalAgents"`
	NextPosition     int          `json:"nextPosition"`
	CurrentTier      string       `json:"currentTier"`
	TokensForNext    int          `json:"tokensForNext"`
	GenesisRemaining int          `json:"genesisRemaining"`
	Tiers            []TierStatus `json:"tiers"`
}
