// Package ledger implements the contribution ledger: submission with
// frozen rewards, the admin review workflow, per-agent and global
// aggregates, and the leaderboard.
package ledger

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hivedao/hivedao/internal/fault"
	"github.com/hivedao/hivedao/internal/payments"
	"github.com/hivedao/hivedao/internal/store"
	"github.com/hivedao/hivedao/internal/tokenomics"
	"github.com/hivedao/hivedao/pkg/models"
)

// Service is the contribution ledger front door.
type Service struct {
	store      store.Store
	scorer     *tokenomics.Scorer
	dispatcher *payments.Dispatcher // nil disables payouts
}

// NewService wires a ledger over the given store and scorer. The
// dispatcher may be nil when payouts are disabled.
func NewService(s store.Store, scorer *tokenomics.Scorer, dispatcher *payments.Dispatcher) *Service {
	return &Service{store: s, scorer: scorer, dispatcher: dispatcher}
}

// SubmitInput is one claimed contribution.
type SubmitInput struct {
	Type      models.ContributionType     `json:"type"`
	AgentName string                      `json:"agentName"`
	Proof     string                      `json:"proof,omitempty"`
	Metadata  models.ContributionMetadata `json:"metadata"`
}

// Submit records a pending contribution. The reward and reputation
// delta are computed here, from the rules in force at submission, and
// frozen into the record; later reviews and rule changes never
// recompute them.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*models.Contribution, error) {
	if !in.Type.Valid() {
		return nil, fault.Validationf("invalid type %q, must be one of: %s", in.Type, typeList())
	}
	if strings.TrimSpace(in.AgentName) == "" {
		return nil, fault.Validationf("agentName is required")
	}

	agent, err := s.store.GetAgent(ctx, in.AgentName)
	if err != nil {
		return nil, err
	}

	reward := s.scorer.Reward(in.Type, in.Metadata)
	if reward == 0 {
		return nil, fault.Validationf("contribution type %q carries no reward", in.Type)
	}

	c := &models.Contribution{
		ID:               uuid.New().String(),
		Type:             in.Type,
		AgentName:        agent.Name,
		AgentDisplayName: agent.DisplayName,
		Proof:            in.Proof,
		Metadata:         in.Metadata,
		Reward:           reward,
		ReputationDelta:  s.scorer.ReputationDelta(in.Type, in.Metadata),
		Status:           models.ContributionPending,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.store.CreateContribution(ctx, c); err != nil {
		return nil, err
	}

	if err := s.store.TouchAgent(ctx, agent.Name, c.CreatedAt); err != nil {
		log.Warn().Err(err).Str("agent", agent.Name).Msg("Failed to touch agent")
	}

	log.Info().
		Str("contribution", c.ID).
		Str("agent", agent.Name).
		Str("type", string(c.Type)).
		Int("reward", c.Reward).
		Msg("Contribution submitted")
	return c, nil
}

// Review transitions a pending contribution to approved or rejected.
// Approval applies the frozen reputation delta and token aggregate
// atomically in the store, then enqueues the reward payout. The payout
// is fire-and-forget: its failure never unwinds the approval.
func (s *Service) Review(ctx context.Context, id string, status models.ContributionStatus, reviewedBy, note string) (*models.Contribution, error) {
	c, err := s.store.ApplyReview(ctx, id, status, reviewedBy, note, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if status == models.ContributionApproved && s.dispatcher != nil {
		wallet := ""
		if agent, err := s.store.GetAgent(ctx, c.AgentName); err == nil {
			wallet = agent.Wallet
		}
		s.dispatcher.Enqueue(payments.Payout{
			ContributionID: c.ID,
			AgentName:      c.AgentName,
			Wallet:         wallet,
			Amount:         c.Reward,
		})
	}

	log.Info().
		Str("contribution", c.ID).
		Str("status", string(status)).
		Str("reviewer", reviewedBy).
		Msg("Contribution reviewed")
	return c, nil
}

// Get returns one contribution by id.
func (s *Service) Get(ctx context.Context, id string) (*models.Contribution, error) {
	return s.store.GetContribution(ctx, id)
}

// AgentLedger is an agent's contribution history plus its fold.
type AgentLedger struct {
	Contributions []models.Contribution    `json:"contributions"`
	Stats         models.ContributionStats `json:"stats"`
}

// ListByAgent returns an agent's contributions, newest first, with
// per-status and reward totals folded over the full history.
func (s *Service) ListByAgent(ctx context.Context, name string) (*AgentLedger, error) {
	if _, err := s.store.GetAgent(ctx, name); err != nil {
		return nil, err
	}

	rows, err := s.store.ListContributionsByAgent(ctx, name)
	if err != nil {
		return nil, err
	}

	ledger := &AgentLedger{Contributions: rows}
	for _, c := range rows {
		ledger.Stats.Total++
		switch c.Status {
		case models.ContributionApproved:
			ledger.Stats.Approved++
			ledger.Stats.TotalReward += c.Reward
			ledger.Stats.TotalReputation += c.ReputationDelta
		case models.ContributionPending:
			ledger.Stats.Pending++
		case models.ContributionRejected:
			ledger.Stats.Rejected++
		}
	}
	return ledger, nil
}

// List returns filtered contributions with the match count and the
// DAO-wide aggregates.
func (s *Service) List(ctx context.Context, filter store.ContributionFilter) ([]models.Contribution, int, models.GlobalStats, error) {
	rows, total, err := s.store.ListContributions(ctx, filter)
	if err != nil {
		return nil, 0, models.GlobalStats{}, err
	}
	stats, err := s.store.GlobalStats(ctx)
	if err != nil {
		return nil, 0, models.GlobalStats{}, err
	}
	return rows, total, stats, nil
}

// Leaderboard aggregates approved contributions per agent within a
// period.
type Leaderboard struct {
	Period            string                    `json:"period"`
	Cutoff            time.Time                 `json:"cutoff"`
	Entries           []models.LeaderboardEntry `json:"leaderboard"`
	TotalContributors int                       `json:"totalContributors"`
}

// Leaderboard ranks agents by approved reward earned since the period
// cutoff. Ties rank by agent name so the ordering is stable across
// requests.
func (s *Service) Leaderboard(ctx context.Context, period string, limit int) (*Leaderboard, error) {
	cutoff, err := periodCutoff(period, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}

	rows, err := s.store.ListApprovedSince(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	byAgent := make(map[string]*models.LeaderboardEntry)
	for _, c := range rows {
		entry, ok := byAgent[c.AgentName]
		if !ok {
			displayName := c.AgentDisplayName
			if displayName == "" {
				displayName = c.AgentName
			}
			entry = &models.LeaderboardEntry{
				Name:      displayName,
				AgentName: c.AgentName,
				Types:     make(map[string]int),
			}
			byAgent[c.AgentName] = entry
		}
		entry.Contributions++
		entry.Tokens += c.Reward
		entry.Reputation += c.ReputationDelta
		entry.Types[string(c.Type)]++
	}

	entries := make([]models.LeaderboardEntry, 0, len(byAgent))
	for _, e := range byAgent {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Tokens != entries[j].Tokens {
			return entries[i].Tokens > entries[j].Tokens
		}
		return entries[i].AgentName < entries[j].AgentName
	})

	total := len(entries)
	if len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}

	return &Leaderboard{
		Period:            period,
		Cutoff:            cutoff,
		Entries:           entries,
		TotalContributors: total,
	}, nil
}

// TypeInfo describes one contribution type in the public catalog.
type TypeInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Reward      string `json:"reward"`
}

// Types returns the contribution type catalog.
func (s *Service) Types() []TypeInfo {
	return []TypeInfo{
		{
			ID:          "compute",
			Name:        "Compute Contributions",
			Description: "Donate GPU/CPU hours for DAO tasks",
			Reward:      "10 HIVE / hour",
		},
		{
			ID:          "pr",
			Name:        "Code Contributions",
			Description: "Merged PRs to DAO repositories",
			Reward:      "50-200 HIVE / PR",
		},
		{
			ID:          "research",
			Name:        "Research & Analysis",
			Description: "Publish research papers or security audits",
			Reward:      "100-500 HIVE / paper",
		},
		{
			ID:          "vote",
			Name:        "Governance Participation",
			Description: "Vote on proposals",
			Reward:      "10 HIVE / vote",
		},
		{
			ID:          "referral",
			Name:        "Agent Referrals",
			Description: "Bring new agents into the DAO",
			Reward:      "100 HIVE / agent",
		},
		{
			ID:          "outreach",
			Name:        "Community Outreach",
			Description: "Posts and threads that grow the DAO",
			Reward:      "5-50 HIVE / post",
		},
	}
}

// periodCutoff maps a leaderboard period to its start time.
func periodCutoff(period string, now time.Time) (time.Time, error) {
	switch period {
	case "day":
		return now.AddDate(0, 0, -1), nil
	case "week", "":
		return now.AddDate(0, 0, -7), nil
	case "month":
		return now.AddDate(0, -1, 0), nil
	case "all":
		return time.Unix(0, 0).UTC(), nil
	default:
		return time.Time{}, fault.Validationf("period must be day, week, month, or all")
	}
}

func typeList() string {
	parts := make([]string, len(models.ContributionTypes))
	for i, t := range models.ContributionTypes {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}
