package governance

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hivedao/hivedao/internal/fault"
	"github.com/hivedao/hivedao/pkg/models"
)

// Local is the in-process voting ledger. It carries the authoritative
// semantics of the engine — the Snapshot backend is expected to behave
// identically — and is the default for offline and single-node use.
type Local struct {
	mu        sync.RWMutex
	space     models.SpaceInfo
	proposals map[string]*models.Proposal
	votes     map[string]map[string]*models.Vote // proposalID → lowercase voter → vote
}

// NewLocal creates an empty local voting ledger for the given space.
func NewLocal(spaceID string) *Local {
	return &Local{
		space: models.SpaceInfo{
			ID:      spaceID,
			Name:    spaceID,
			Network: "offchain",
			Symbol:  "HIVE",
		},
		proposals: make(map[string]*models.Proposal),
		votes:     make(map[string]map[string]*models.Vote),
	}
}

func (l *Local) ListProposals(ctx context.Context, state string, page Page) ([]models.Proposal, error) {
	now := time.Now().UTC()

	l.mu.RLock()
	matched := make([]models.Proposal, 0, len(l.proposals))
	for _, p := range l.proposals {
		if state != "" && state != "all" && p.State(now) != state {
			continue
		}
		matched = append(matched, *p)
	}
	l.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	skip := page.Skip
	if skip > len(matched) {
		skip = len(matched)
	}
	end := skip + page.first()
	if end > len(matched) {
		end = len(matched)
	}
	return matched[skip:end], nil
}

func (l *Local) GetProposal(ctx context.Context, id string) (*models.Proposal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, ok := l.proposals[id]
	if !ok {
		return nil, &fault.NotFound{Entity: "proposal", Key: id}
	}
	cp := *p
	cp.Scores = append([]float64(nil), p.Scores...)
	return &cp, nil
}

func (l *Local) ListVotes(ctx context.Context, proposalID string, page Page) ([]models.Vote, error) {
	l.mu.RLock()
	if _, ok := l.proposals[proposalID]; !ok {
		l.mu.RUnlock()
		return nil, &fault.NotFound{Entity: "proposal", Key: proposalID}
	}
	votes := make([]models.Vote, 0, len(l.votes[proposalID]))
	for _, v := range l.votes[proposalID] {
		votes = append(votes, *v)
	}
	l.mu.RUnlock()

	sort.Slice(votes, func(i, j int) bool {
		if !votes[i].CreatedAt.Equal(votes[j].CreatedAt) {
			return votes[i].CreatedAt.After(votes[j].CreatedAt)
		}
		return votes[i].ID > votes[j].ID
	})

	skip := page.Skip
	if skip > len(votes) {
		skip = len(votes)
	}
	end := skip + page.first()
	if end > len(votes) {
		end = len(votes)
	}
	return votes[skip:end], nil
}

func (l *Local) CreateProposal(ctx context.Context, in CreateProposalInput) (*models.Proposal, error) {
	p := &models.Proposal{
		ID:        uuid.New().String(),
		Title:     in.Title,
		Body:      in.Body,
		Choices:   append([]string(nil), in.Choices...),
		Start:     in.Start,
		End:       in.End,
		Author:    in.Author,
		CreatedAt: time.Now().UTC(),
		Scores:    make([]float64, len(in.Choices)),
		Quorum:    in.Quorum,
	}

	l.mu.Lock()
	l.proposals[p.ID] = p
	l.votes[p.ID] = make(map[string]*models.Vote)
	cp := *p
	cp.Scores = append([]float64(nil), p.Scores...)
	l.mu.Unlock()

	log.Info().Str("proposal", p.ID).Str("author", in.Author).Msg("Proposal created")
	return &cp, nil
}

func (l *Local) CastVote(ctx context.Context, in CastVoteInput) (*models.Vote, error) {
	voterKey := strings.ToLower(in.Voter)
	now := time.Now().UTC()

	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.proposals[in.ProposalID]
	if !ok {
		return nil, &fault.NotFound{Entity: "proposal", Key: in.ProposalID}
	}
	if p.State(now) != models.ProposalStateActive {
		return nil, fault.Validationf("voting window closed at %s", p.End.Format(time.RFC3339))
	}
	if in.Choice < 1 || in.Choice > len(p.Choices) {
		return nil, fault.Validationf("choice %d out of range [1, %d]", in.Choice, len(p.Choices))
	}

	// Conditional insert: the existence check, the vote insert, and the
	// score accumulation all happen under the same lock. Two concurrent
	// ballots from one voter serialize here, and exactly one lands.
	if _, voted := l.votes[in.ProposalID][voterKey]; voted {
		return nil, &fault.Conflict{Msg: "already voted on this proposal"}
	}

	v := &models.Vote{
		ID:          uuid.New().String(),
		ProposalID:  in.ProposalID,
		Voter:       in.Voter,
		Choice:      in.Choice,
		VotingPower: in.VotingPower,
		CreatedAt:   now,
	}
	l.votes[in.ProposalID][voterKey] = v

	p.Scores[in.Choice-1] += in.VotingPower
	p.ScoresTotal += in.VotingPower
	p.VoteCount++

	cp := *v
	return &cp, nil
}

func (l *Local) HasVoted(ctx context.Context, proposalID, voter string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if _, ok := l.proposals[proposalID]; !ok {
		return false, &fault.NotFound{Entity: "proposal", Key: proposalID}
	}
	_, voted := l.votes[proposalID][strings.ToLower(voter)]
	return voted, nil
}

func (l *Local) Results(ctx context.Context, proposalID string) (*models.ProposalResults, error) {
	p, err := l.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	return deriveResults(p), nil
}

func (l *Local) SpaceInfo(ctx context.Context) (*models.SpaceInfo, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	cp := l.space
	return &cp, nil
}
