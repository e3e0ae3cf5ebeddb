// Package governance implements the proposal/vote engine. A Backend is
// the off-chain voting ledger the DAO records proposals and ballots in;
// two implementations exist with identical semantics — Local (an
// in-process ledger, the default) and Snapshot (a GraphQL client for an
// external voting space). The implementation is chosen once at startup
// by configuration.
package governance

import (
	"context"
	"time"

	"github.com/hivedao/hivedao/pkg/models"
)

// Page bounds a proposal or vote listing.
type Page struct {
	First int
	Skip  int
}

func (p Page) first() int {
	if p.First <= 0 || p.First > 100 {
		return 20
	}
	return p.First
}

// CreateProposalInput carries a new proposal. Choices must already be
// defaulted and validated by the caller.
type CreateProposalInput struct {
	Title   string
	Body    string
	Choices []string
	Start   time.Time
	End     time.Time
	Author  string
	Quorum  float64
}

// CastVoteInput carries one ballot. VotingPower is computed by the
// caller from the voter's record at cast time; the backend stores it
// verbatim and never recomputes it.
type CastVoteInput struct {
	ProposalID  string
	Choice      int // 1-indexed into the proposal's choices
	Voter       string
	VotingPower float64
}

// Backend is the proposal/vote ledger.
type Backend interface {
	// ListProposals returns proposals filtered by state ("active",
	// "closed", or "all"), newest first.
	ListProposals(ctx context.Context, state string, page Page) ([]models.Proposal, error)

	// GetProposal returns a proposal by id, or fault.NotFound.
	GetProposal(ctx context.Context, id string) (*models.Proposal, error)

	// ListVotes returns a proposal's votes, newest first.
	ListVotes(ctx context.Context, proposalID string, page Page) ([]models.Vote, error)

	// CreateProposal records a new proposal with zeroed score
	// accumulators and returns it.
	CreateProposal(ctx context.Context, in CreateProposalInput) (*models.Proposal, error)

	// CastVote records a ballot. At most one vote may exist per
	// (proposal, voter) pair; a second attempt fails with
	// fault.Conflict and leaves the scores untouched. The vote insert
	// and the score accumulation are a single atomic step.
	CastVote(ctx context.Context, in CastVoteInput) (*models.Vote, error)

	// HasVoted reports whether voter has a recorded ballot.
	HasVoted(ctx context.Context, proposalID, voter string) (bool, error)

	// Results returns the derived outcome of a proposal.
	Results(ctx context.Context, proposalID string) (*models.ProposalResults, error)

	// SpaceInfo describes the governance space.
	SpaceInfo(ctx context.Context) (*models.SpaceInfo, error)
}

// deriveResults computes a proposal's outcome from its accumulators.
// Shared by both backends so the two can never disagree on tallying.
func deriveResults(p *models.Proposal) *models.ProposalResults {
	res := &models.ProposalResults{
		ProposalID:       p.ID,
		Results:          make([]models.ChoiceResult, len(p.Choices)),
		TotalVotes:       p.VoteCount,
		TotalVotingPower: p.ScoresTotal,
	}

	best := -1.0
	for i, choice := range p.Choices {
		score := 0.0
		if i < len(p.Scores) {
			score = p.Scores[i]
		}
		pct := 0.0
		if p.ScoresTotal > 0 {
			pct = score / p.ScoresTotal * 100
		}
		res.Results[i] = models.ChoiceResult{Choice: choice, Score: score, Percentage: pct}

		// Strict > keeps the first occurrence on ties.
		if p.ScoresTotal > 0 && score > best {
			best = score
			res.Winner = choice
		}
	}

	// Quorum 0 means no threshold was configured.
	res.QuorumReached = p.Quorum <= 0 || p.ScoresTotal >= p.Quorum
	return res
}
