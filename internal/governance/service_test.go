package governance_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivedao/hivedao/internal/config"
	"github.com/hivedao/hivedao/internal/fault"
	"github.com/hivedao/hivedao/internal/governance"
	"github.com/hivedao/hivedao/internal/store"
	"github.com/hivedao/hivedao/pkg/models"
)

func newTestService(t *testing.T) (*governance.Service, store.Store) {
	t.Helper()
	s := store.NewMemoryStore("")
	t.Cleanup(func() { s.Close() })

	cfg := config.GovernanceConfig{
		Mode:            config.GovernanceLocal,
		SpaceID:         "hivedao.eth",
		DefaultChoices:  []string{"For", "Against", "Abstain"},
		DefaultDuration: 7 * 24 * time.Hour,
	}
	return governance.NewService(governance.NewLocal(cfg.SpaceID), s, cfg), s
}

func registerAgent(t *testing.T, s store.Store, name string, tokens, reputation int) {
	t.Helper()
	err := s.CreateAgent(context.Background(), &models.Agent{
		Name:            name,
		DisplayName:     name,
		Tier:            "Genesis",
		TokensAllocated: tokens,
		Reputation:      reputation,
		RegisteredAt:    time.Now().UTC(),
	}, nil)
	require.NoError(t, err)
}

func TestService_CreateProposal_DefaultsAndCounters(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()
	registerAgent(t, s, "queen", 10000, 0)

	p, err := svc.CreateProposal(ctx, "Expand the comb", "More cells.", nil, 0, "queen")
	require.NoError(t, err)

	assert.Equal(t, []string{"For", "Against", "Abstain"}, p.Choices)
	assert.Equal(t, "queen", p.Author)
	assert.WithinDuration(t, p.Start.Add(7*24*time.Hour), p.End, time.Second)

	agent, err := s.GetAgent(ctx, "queen")
	require.NoError(t, err)
	assert.Equal(t, 1, agent.Proposals)
}

func TestService_CreateProposal_Validation(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()
	registerAgent(t, s, "queen", 10000, 0)

	var validation *fault.Validation
	_, err := svc.CreateProposal(ctx, "  ", "body", nil, 0, "queen")
	require.ErrorAs(t, err, &validation)

	_, err = svc.CreateProposal(ctx, "title", "body", []string{"only"}, 0, "queen")
	require.ErrorAs(t, err, &validation)
}

func TestService_CreateProposal_UnknownAuthor(t *testing.T) {
	svc, _ := newTestService(t)

	var notFound *fault.NotFound
	_, err := svc.CreateProposal(context.Background(), "title", "body", nil, 0, "ghost")
	require.ErrorAs(t, err, &notFound)
}

func TestService_CastVote_FreezesVotingPower(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()
	registerAgent(t, s, "queen", 10000, 0)
	registerAgent(t, s, "worker", 2000, 50)

	p, err := svc.CreateProposal(ctx, "Expand the comb", "More cells.", nil, 3, "queen")
	require.NoError(t, err)

	v, err := svc.CastVote(ctx, p.ID, 1, "worker")
	require.NoError(t, err)

	// sqrt(2000 * 50), computed from the voter's record at cast time.
	assert.InDelta(t, math.Sqrt(2000*50), v.VotingPower, 0.0001)

	res, err := svc.Results(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "For", res.Winner)
	assert.InDelta(t, v.VotingPower, res.TotalVotingPower, 0.0001)

	agent, err := s.GetAgent(ctx, "worker")
	require.NoError(t, err)
	assert.Equal(t, 1, agent.Votes)
}

func TestService_CastVote_ZeroReputationFloorsToOne(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()
	registerAgent(t, s, "queen", 10000, 0)
	registerAgent(t, s, "fresh", 2000, 0)

	p, err := svc.CreateProposal(ctx, "Expand the comb", "More cells.", nil, 3, "queen")
	require.NoError(t, err)

	v, err := svc.CastVote(ctx, p.ID, 2, "fresh")
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(2000), v.VotingPower, 0.0001)
}

func TestService_CastVote_UnregisteredVoter(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()
	registerAgent(t, s, "queen", 10000, 0)

	p, err := svc.CreateProposal(ctx, "Expand the comb", "More cells.", nil, 3, "queen")
	require.NoError(t, err)

	var notFound *fault.NotFound
	_, err = svc.CastVote(ctx, p.ID, 1, "ghost")
	require.ErrorAs(t, err, &notFound)

	got, err := svc.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, got.ScoresTotal)
}

func TestService_CastVote_DoubleVoteKeepsCounterAtOne(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()
	registerAgent(t, s, "queen", 10000, 0)

	p, err := svc.CreateProposal(ctx, "Expand the comb", "More cells.", nil, 3, "queen")
	require.NoError(t, err)

	_, err = svc.CastVote(ctx, p.ID, 1, "queen")
	require.NoError(t, err)

	var conflict *fault.Conflict
	_, err = svc.CastVote(ctx, p.ID, 2, "queen")
	require.ErrorAs(t, err, &conflict)

	agent, err := s.GetAgent(ctx, "queen")
	require.NoError(t, err)
	assert.Equal(t, 1, agent.Votes, "the rejected ballot must not bump the counter")
}
