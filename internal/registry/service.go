// Package registry implements agent registration and lookup. Positions
// are assigned in registration order and mapped to token-grant tiers;
// both are fixed at registration and never revised.
package registry

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hivedao/hivedao/internal/fault"
	"github.com/hivedao/hivedao/internal/identity"
	"github.com/hivedao/hivedao/internal/store"
	"github.com/hivedao/hivedao/internal/tokenomics"
	"github.com/hivedao/hivedao/pkg/models"
)

var nameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Service handles agent registration, lookup, and the tier status
// report.
type Service struct {
	store  store.Store
	tiers  *tokenomics.TierTable
	oracle *identity.Oracle
}

// NewService wires a registry over the given store and tier table.
func NewService(s store.Store, tiers *tokenomics.TierTable, oracle *identity.Oracle) *Service {
	return &Service{store: s, tiers: tiers, oracle: oracle}
}

// RegisterInput is one registration request.
type RegisterInput struct {
	Name      string `json:"name"`
	Wallet    string `json:"wallet,omitempty"`
	ERC8004ID string `json:"erc8004Id,omitempty"`
}

// Registration is the one-time registration receipt. Token is the only
// place the auth token is ever exposed.
type Registration struct {
	Message          string `json:"message"`
	Position         int    `json:"position"`
	Tier             string `json:"tier"`
	Tokens           int    `json:"tokens"`
	Token            string `json:"token"`
	GenesisRemaining int    `json:"genesisRemaining"`
}

// Register validates the claimed name, assigns the next position and
// its tier grant, and returns the one-time receipt carrying the agent's
// auth token.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Registration, error) {
	name := strings.TrimSpace(in.Name)
	if len(name) < 2 || len(name) > 50 {
		return nil, fault.Validationf("agent name is required (2-50 characters)")
	}
	if !nameRe.MatchString(name) {
		return nil, fault.Validationf("name can only contain letters, numbers, underscores, and hyphens")
	}

	token, err := newAuthToken()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	agent := &models.Agent{
		ID:           uuid.New().String(),
		Name:         strings.ToLower(name),
		DisplayName:  name,
		Wallet:       in.Wallet,
		ERC8004ID:    in.ERC8004ID,
		AuthToken:    token,
		RegisteredAt: now,
		LastActiveAt: now,
	}

	err = s.store.CreateAgent(ctx, agent, func(position int) (string, int) {
		tier := s.tiers.TierFor(position)
		return tier.Name, tier.Tokens
	})
	if err != nil {
		return nil, err
	}

	if s.oracle != nil && s.oracle.Enabled() && agent.Wallet != "" {
		// Advisory only: an unverifiable wallet does not block joining.
		if v := s.oracle.VerifyAgent(ctx, agent.Name, agent.Wallet); !v.Verified {
			log.Debug().Str("agent", agent.Name).Str("reason", v.Reason).Msg("On-chain identity not verified")
		}
	}

	log.Info().
		Str("agent", agent.Name).
		Int("position", agent.Position).
		Str("tier", agent.Tier).
		Int("tokens", agent.TokensAllocated).
		Msg("🐝 Agent registered")

	return &Registration{
		Message:          fmt.Sprintf("Welcome to HiveDAO, %s!", agent.DisplayName),
		Position:         agent.Position,
		Tier:             agent.Tier,
		Tokens:           agent.TokensAllocated,
		Token:            token,
		GenesisRemaining: s.genesisRemaining(agent.Position),
	}, nil
}

// Get returns the public view of an agent with its derived voting
// power.
func (s *Service) Get(ctx context.Context, name string) (*models.AgentView, error) {
	agent, err := s.store.GetAgent(ctx, name)
	if err != nil {
		return nil, err
	}
	return &models.AgentView{
		Agent:       agent.Public(),
		VotingPower: tokenomics.VotingPower(agent.TokensAllocated, agent.Reputation),
	}, nil
}

// AgentPage is one page of public agent views.
type AgentPage struct {
	Agents     []models.AgentView `json:"agents"`
	Total      int                `json:"total"`
	HasMore    bool               `json:"hasMore"`
	NextCursor string             `json:"nextCursor,omitempty"`
}

// List returns agents ordered by position, optionally filtered by tier.
func (s *Service) List(ctx context.Context, tier, cursor string, limit int) (*AgentPage, error) {
	page, err := s.store.ListAgents(ctx, store.AgentFilter{Tier: tier, Limit: limit, Cursor: cursor})
	if err != nil {
		return nil, err
	}

	views := make([]models.AgentView, 0, len(page.Agents))
	for _, a := range page.Agents {
		views = append(views, models.AgentView{
			Agent:       a.Public(),
			VotingPower: tokenomics.VotingPower(a.TokensAllocated, a.Reputation),
		})
	}
	return &AgentPage{
		Agents:     views,
		Total:      page.Total,
		HasMore:    page.HasMore,
		NextCursor: page.NextCursor,
	}, nil
}

// Authenticate resolves an agent by name and checks its auth token.
func (s *Service) Authenticate(ctx context.Context, name, token string) (*models.Agent, error) {
	agent, err := s.store.GetAgent(ctx, name)
	if err != nil {
		return nil, err
	}
	if token == "" || agent.AuthToken != token {
		return nil, fault.Validationf("invalid auth token")
	}
	return agent, nil
}

// Status reports registration progress across tiers.
func (s *Service) Status(ctx context.Context) (*models.StatusReport, error) {
	total, err := s.store.CountAgents(ctx)
	if err != nil {
		return nil, err
	}

	nextPosition := total + 1
	current := s.tiers.TierFor(nextPosition)

	tiers := s.tiers.Tiers()
	rows := make([]models.TierStatus, 0, len(tiers))
	for _, t := range tiers {
		filled := 0
		if total >= t.Min {
			filled = total - t.Min + 1
			if capacity := t.Capacity(); capacity > 0 && filled > capacity {
				filled = capacity
			}
		}
		rows = append(rows, models.TierStatus{
			Name:     t.Name,
			Tokens:   t.Tokens,
			Filled:   filled,
			Capacity: t.Capacity(),
			IsOpen:   t.Contains(nextPosition),
			Range:    t.Range(),
		})
	}

	return &models.StatusReport{
		TotalAgents:      total,
		NextPosition:     nextPosition,
		CurrentTier:      current.Name,
		TokensForNext:    current.Tokens,
		GenesisRemaining: s.genesisRemaining(total),
		Tiers:            rows,
	}, nil
}

// genesisRemaining counts open seats in the first tier after the given
// number of filled positions.
func (s *Service) genesisRemaining(filled int) int {
	first := s.tiers.Tiers()[0]
	if capacity := first.Capacity(); capacity > 0 && filled < capacity {
		return capacity - filled
	}
	return 0
}

// newAuthToken generates the agent's bearer secret: "hive_" plus 64
// hex characters from a CSPRNG.
func newAuthToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate auth token: %w", err)
	}
	return "hive_" + hex.EncodeToString(buf), nil
}
