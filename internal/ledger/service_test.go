package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivedao/hivedao/internal/config"
	"github.com/hivedao/hivedao/internal/fault"
	"github.com/hivedao/hivedao/internal/payments"
	"github.com/hivedao/hivedao/internal/store"
	"github.com/hivedao/hivedao/internal/tokenomics"
	"github.com/hivedao/hivedao/pkg/models"
)

func newTestLedger(t *testing.T) (*Service, store.Store) {
	t.Helper()
	s := store.NewMemoryStore("")
	t.Cleanup(func() { s.Close() })
	return NewService(s, tokenomics.NewScorer(nil, nil), nil), s
}

func addAgent(t *testing.T, s store.Store, name, wallet string) {
	t.Helper()
	now := time.Now().UTC()
	err := s.CreateAgent(context.Background(), &models.Agent{
		Name:         name,
		DisplayName:  name,
		Wallet:       wallet,
		Tier:         "Genesis",
		RegisteredAt: now,
		LastActiveAt: now,
	}, nil)
	require.NoError(t, err)
}

func TestSubmit_FreezesRewardAndDelta(t *testing.T) {
	svc, s := newTestLedger(t)
	ctx := context.Background()
	addAgent(t, s, "worker", "")

	c, err := svc.Submit(ctx, SubmitInput{
		Type:      models.ContributionPR,
		AgentName: "Worker",
		Proof:     "https://github.com/hivedao/hivedao/pull/42",
		Metadata:  models.ContributionMetadata{LinesChanged: 600},
	})
	require.NoError(t, err)

	assert.Equal(t, 200, c.Reward, "large PR override")
	assert.Equal(t, 60, c.ReputationDelta, "pr weight 20 at 3x multiplier")
	assert.Equal(t, models.ContributionPending, c.Status)
	assert.Equal(t, "worker", c.AgentName)
	assert.NotEmpty(t, c.ID)
}

func TestSubmit_InvalidType(t *testing.T) {
	svc, s := newTestLedger(t)
	addAgent(t, s, "worker", "")

	var validation *fault.Validation
	_, err := svc.Submit(context.Background(), SubmitInput{Type: "mining", AgentName: "worker"})
	require.ErrorAs(t, err, &validation)
}

func TestSubmit_UnknownAgent(t *testing.T) {
	svc, _ := newTestLedger(t)

	var notFound *fault.NotFound
	_, err := svc.Submit(context.Background(), SubmitInput{Type: models.ContributionPR, AgentName: "ghost"})
	require.ErrorAs(t, err, &notFound)
}

func TestReview_ApproveAppliesFrozenDelta(t *testing.T) {
	svc, s := newTestLedger(t)
	ctx := context.Background()
	addAgent(t, s, "worker", "")

	c, err := svc.Submit(ctx, SubmitInput{
		Type:      models.ContributionResearch,
		AgentName: "worker",
		Metadata:  models.ContributionMetadata{IsPeerReviewed: true},
	})
	require.NoError(t, err)
	require.Equal(t, 500, c.Reward)
	require.Equal(t, 60, c.ReputationDelta)

	reviewed, err := svc.Review(ctx, c.ID, models.ContributionApproved, "admin", "solid work")
	require.NoError(t, err)
	assert.Equal(t, models.ContributionApproved, reviewed.Status)
	assert.Equal(t, "admin", reviewed.ReviewedBy)

	agent, err := s.GetAgent(ctx, "worker")
	require.NoError(t, err)
	assert.Equal(t, 60, agent.Reputation)
	assert.Equal(t, 1, agent.Contributions)

	stats, err := s.GlobalStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 500, stats.TokensDistributed)
}

func TestReview_SecondReviewConflicts(t *testing.T) {
	svc, s := newTestLedger(t)
	ctx := context.Background()
	addAgent(t, s, "worker", "")

	c, err := svc.Submit(ctx, SubmitInput{Type: models.ContributionVote, AgentName: "worker"})
	require.NoError(t, err)

	_, err = svc.Review(ctx, c.ID, models.ContributionApproved, "admin", "")
	require.NoError(t, err)

	var conflict *fault.Conflict
	_, err = svc.Review(ctx, c.ID, models.ContributionRejected, "admin", "changed my mind")
	require.ErrorAs(t, err, &conflict)
}

// recordingPayer captures payout requests for assertions.
type recordingPayer struct {
	mu   sync.Mutex
	paid []payments.PaymentRequest
}

func (r *recordingPayer) Pay(ctx context.Context, req payments.PaymentRequest) (*payments.PaymentReceipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paid = append(r.paid, req)
	return &payments.PaymentReceipt{TxHash: "0x1", Status: "settled"}, nil
}

func TestReview_ApproveEnqueuesPayout(t *testing.T) {
	s := store.NewMemoryStore("")
	t.Cleanup(func() { s.Close() })

	payer := &recordingPayer{}
	dispatcher := payments.NewDispatcher(payer, config.PaymentsConfig{
		TreasuryWallet: "0xtreasury",
		Asset:          "USDC",
		Chain:          "base",
		MaxRetries:     1,
		Workers:        1,
	})
	svc := NewService(s, tokenomics.NewScorer(nil, nil), dispatcher)
	ctx := context.Background()
	addAgent(t, s, "worker", "0xagent")

	c, err := svc.Submit(ctx, SubmitInput{Type: models.ContributionPR, AgentName: "worker"})
	require.NoError(t, err)

	_, err = svc.Review(ctx, c.ID, models.ContributionApproved, "admin", "")
	require.NoError(t, err)
	dispatcher.Close()

	require.Len(t, payer.paid, 1)
	assert.Equal(t, "0xagent", payer.paid[0].To)
	assert.Equal(t, "50", payer.paid[0].Amount)
}

func TestReview_RejectSkipsPayout(t *testing.T) {
	s := store.NewMemoryStore("")
	t.Cleanup(func() { s.Close() })

	payer := &recordingPayer{}
	dispatcher := payments.NewDispatcher(payer, config.PaymentsConfig{
		TreasuryWallet: "0xtreasury", Asset: "USDC", Chain: "base", MaxRetries: 1, Workers: 1,
	})
	svc := NewService(s, tokenomics.NewScorer(nil, nil), dispatcher)
	ctx := context.Background()
	addAgent(t, s, "worker", "0xagent")

	c, err := svc.Submit(ctx, SubmitInput{Type: models.ContributionPR, AgentName: "worker"})
	require.NoError(t, err)

	_, err = svc.Review(ctx, c.ID, models.ContributionRejected, "admin", "no proof")
	require.NoError(t, err)
	dispatcher.Close()

	assert.Empty(t, payer.paid)
}

func TestListByAgent_FoldsStats(t *testing.T) {
	svc, s := newTestLedger(t)
	ctx := context.Background()
	addAgent(t, s, "worker", "")

	first, err := svc.Submit(ctx, SubmitInput{Type: models.ContributionPR, AgentName: "worker"})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, SubmitInput{Type: models.ContributionVote, AgentName: "worker"})
	require.NoError(t, err)
	third, err := svc.Submit(ctx, SubmitInput{Type: models.ContributionOutreach, AgentName: "worker"})
	require.NoError(t, err)

	_, err = svc.Review(ctx, first.ID, models.ContributionApproved, "admin", "")
	require.NoError(t, err)
	_, err = svc.Review(ctx, third.ID, models.ContributionRejected, "admin", "")
	require.NoError(t, err)

	l, err := svc.ListByAgent(ctx, "worker")
	require.NoError(t, err)

	assert.Len(t, l.Contributions, 3)
	assert.Equal(t, 3, l.Stats.Total)
	assert.Equal(t, 1, l.Stats.Approved)
	assert.Equal(t, 1, l.Stats.Pending)
	assert.Equal(t, 1, l.Stats.Rejected)
	assert.Equal(t, 50, l.Stats.TotalReward, "only approved rewards count")
	assert.Equal(t, 20, l.Stats.TotalReputation)
}

func TestListByAgent_UnknownAgent(t *testing.T) {
	svc, _ := newTestLedger(t)

	var notFound *fault.NotFound
	_, err := svc.ListByAgent(context.Background(), "ghost")
	require.ErrorAs(t, err, &notFound)
}

func TestLeaderboard_RanksByReward(t *testing.T) {
	svc, s := newTestLedger(t)
	ctx := context.Background()
	addAgent(t, s, "alpha", "")
	addAgent(t, s, "beta", "")
	addAgent(t, s, "gamma", "")

	submitApproved := func(agent string, in SubmitInput) {
		in.AgentName = agent
		c, err := svc.Submit(ctx, in)
		require.NoError(t, err)
		_, err = svc.Review(ctx, c.ID, models.ContributionApproved, "admin", "")
		require.NoError(t, err)
	}

	// beta: 200, alpha: 50 + 10, gamma: pending only
	submitApproved("beta", SubmitInput{Type: models.ContributionPR, Metadata: models.ContributionMetadata{LinesChanged: 600}})
	submitApproved("alpha", SubmitInput{Type: models.ContributionPR})
	submitApproved("alpha", SubmitInput{Type: models.ContributionVote})
	_, err := svc.Submit(ctx, SubmitInput{Type: models.ContributionPR, AgentName: "gamma"})
	require.NoError(t, err)

	lb, err := svc.Leaderboard(ctx, "week", 10)
	require.NoError(t, err)

	require.Len(t, lb.Entries, 2, "pending contributions never rank")
	assert.Equal(t, 2, lb.TotalContributors)

	assert.Equal(t, 1, lb.Entries[0].Rank)
	assert.Equal(t, "beta", lb.Entries[0].AgentName)
	assert.Equal(t, 200, lb.Entries[0].Tokens)

	assert.Equal(t, 2, lb.Entries[1].Rank)
	assert.Equal(t, "alpha", lb.Entries[1].AgentName)
	assert.Equal(t, 60, lb.Entries[1].Tokens)
	assert.Equal(t, 2, lb.Entries[1].Contributions)
	assert.Equal(t, map[string]int{"pr": 1, "vote": 1}, lb.Entries[1].Types)
}

func TestLeaderboard_TieBreaksByName(t *testing.T) {
	svc, s := newTestLedger(t)
	ctx := context.Background()
	addAgent(t, s, "zebra", "")
	addAgent(t, s, "aardvark", "")

	for _, agent := range []string{"zebra", "aardvark"} {
		c, err := svc.Submit(ctx, SubmitInput{Type: models.ContributionPR, AgentName: agent})
		require.NoError(t, err)
		_, err = svc.Review(ctx, c.ID, models.ContributionApproved, "admin", "")
		require.NoError(t, err)
	}

	lb, err := svc.Leaderboard(ctx, "all", 10)
	require.NoError(t, err)

	require.Len(t, lb.Entries, 2)
	assert.Equal(t, "aardvark", lb.Entries[0].AgentName)
	assert.Equal(t, "zebra", lb.Entries[1].AgentName)
}

func TestLeaderboard_InvalidPeriod(t *testing.T) {
	svc, _ := newTestLedger(t)

	var validation *fault.Validation
	_, err := svc.Leaderboard(context.Background(), "fortnight", 10)
	require.ErrorAs(t, err, &validation)
}

func TestTypes_CatalogCoversEveryType(t *testing.T) {
	svc, _ := newTestLedger(t)

	catalog := svc.Types()
	require.Len(t, catalog, len(models.ContributionTypes))
	for i, want := range models.ContributionTypes {
		assert.Equal(t, string(want), catalog[i].ID)
	}
}
