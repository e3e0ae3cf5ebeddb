package governance

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hivedao/hivedao/internal/config"
	"github.com/hivedao/hivedao/internal/fault"
	"github.com/hivedao/hivedao/internal/store"
	"github.com/hivedao/hivedao/internal/tokenomics"
	"github.com/hivedao/hivedao/pkg/models"
)

// Service is the governance front door. It validates input, resolves
// voters against the agent registry, computes voting power through the
// one canonical formula, and keeps per-agent activity counters in step
// with the ledger.
type Service struct {
	backend Backend
	store   store.Store
	cfg     config.GovernanceConfig
}

// NewService wires a governance service over the configured backend.
func NewService(backend Backend, s store.Store, cfg config.GovernanceConfig) *Service {
	return &Service{backend: backend, store: s, cfg: cfg}
}

// Backend exposes the underlying ledger (used by the composition root
// for startup logging).
func (s *Service) Backend() Backend { return s.backend }

// CreateProposal validates and records a new proposal authored by a
// registered agent. Zero durationDays falls back to the configured
// default window.
func (s *Service) CreateProposal(ctx context.Context, title, body string, choices []string, durationDays int, author string) (*models.Proposal, error) {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(body) == "" {
		return nil, fault.Validationf("title and body are required")
	}
	if len(choices) == 0 {
		choices = s.cfg.DefaultChoices
	}
	if len(choices) < 2 {
		return nil, fault.Validationf("a proposal needs at least 2 choices, got %d", len(choices))
	}

	agent, err := s.store.GetAgent(ctx, author)
	if err != nil {
		return nil, err
	}

	duration := s.cfg.DefaultDuration
	if durationDays > 0 {
		duration = time.Duration(durationDays) * 24 * time.Hour
	}
	start := time.Now().UTC()

	p, err := s.backend.CreateProposal(ctx, CreateProposalInput{
		Title:   title,
		Body:    body,
		Choices: choices,
		Start:   start,
		End:     start.Add(duration),
		Author:  agent.Name,
		Quorum:  s.cfg.DefaultQuorum,
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.IncrementAgentProposals(ctx, agent.Name, start); err != nil {
		log.Warn().Err(err).Str("agent", agent.Name).Msg("Failed to bump proposal counter")
	}
	return p, nil
}

// CastVote records a ballot for a registered agent. Voting power is
// computed from the voter's record at cast time and frozen into the
// vote; it is never recomputed, even if the voter's tokens or
// reputation change later.
func (s *Service) CastVote(ctx context.Context, proposalID string, choice int, voterName string) (*models.Vote, error) {
	agent, err := s.store.GetAgent(ctx, voterName)
	if err != nil {
		return nil, err
	}

	vp := tokenomics.VotingPower(agent.TokensAllocated, agent.Reputation)
	vote, err := s.backend.CastVote(ctx, CastVoteInput{
		ProposalID:  proposalID,
		Choice:      choice,
		Voter:       agent.Name,
		VotingPower: vp,
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.IncrementAgentVotes(ctx, agent.Name, vote.CreatedAt); err != nil {
		log.Warn().Err(err).Str("agent", agent.Name).Msg("Failed to bump vote counter")
	}

	log.Info().
		Str("proposal", proposalID).
		Str("voter", agent.Name).
		Int("choice", choice).
		Float64("vp", vp).
		Msg("Vote cast")
	return vote, nil
}

func (s *Service) ListProposals(ctx context.Context, state string, page Page) ([]models.Proposal, error) {
	return s.backend.ListProposals(ctx, state, page)
}

func (s *Service) GetProposal(ctx context.Context, id string) (*models.Proposal, error) {
	return s.backend.GetProposal(ctx, id)
}

func (s *Service) ListVotes(ctx context.Context, proposalID string, page Page) ([]models.Vote, error) {
	return s.backend.ListVotes(ctx, proposalID, page)
}

func (s *Service) HasVoted(ctx context.Context, proposalID, voter string) (bool, error) {
	return s.backend.HasVoted(ctx, proposalID, voter)
}

func (s *Service) Results(ctx context.Context, proposalID string) (*models.ProposalResults, error) {
	return s.backend.Results(ctx, proposalID)
}

func (s *Service) SpaceInfo(ctx context.Context) (*models.SpaceInfo, error) {
	return s.backend.SpaceInfo(ctx)
}
