// Package store provides the storage interface and implementations for
// HiveDAO. The in-memory implementation is authoritative for local and
// single-node deployments; all handler and service code depends only on
// the interface.
//
// The interface deliberately exposes compound operations (CreateAgent
// with position assignment, ApplyReview) instead of separate reads and
// writes: the invariants in this system — unique positions, one-way
// review transitions — live in the store where they can be enforced
// atomically, not in check-then-act sequences above it.
package store

import (
	"context"
	"time"

	"github.com/hivedao/hivedao/pkg/models"
)

// Store is the primary storage interface for the DAO.
type Store interface {
	AgentStore
	ContributionStore

	// Ping checks that the backing store is reachable.
	Ping(ctx context.Context) error

	// Close flushes pending writes and releases resources.
	Close() error
}

// ── Agent Store ──────────────────────────────────────────────

// AgentFilter narrows and pages ListAgents. Cursor is the opaque token
// returned by a previous page; ordering is always position-ascending
// regardless of backing enumeration order.
type AgentFilter struct {
	Tier   string
	Limit  int
	Cursor string
}

// AgentPage is one page of agents plus the continuation cursor.
type AgentPage struct {
	Agents     []models.Agent
	Total      int
	HasMore    bool
	NextCursor string
}

// GrantFunc maps a freshly assigned registration position to the tier
// name and token grant for that position. It runs inside CreateAgent's
// critical section and must not block.
type GrantFunc func(position int) (tier string, tokens int)

type AgentStore interface {
	// CreateAgent inserts a new agent, assigning the next registration
	// position and stamping it into agent.Position before persisting.
	// The uniqueness check (case-insensitive name), the position
	// assignment, and the grant derived from it all happen under a
	// single critical section, so two concurrent registrations can never
	// collide on a position or observe an agent without its grant. A nil
	// grant leaves agent.Tier and agent.TokensAllocated as supplied. A
	// duplicate name fails with fault.Conflict carrying the existing
	// agent's position and tier.
	CreateAgent(ctx context.Context, agent *models.Agent, grant GrantFunc) error

	// GetAgent looks an agent up by name, case-insensitively.
	GetAgent(ctx context.Context, name string) (*models.Agent, error)

	// ListAgents returns a page of agents ordered by position.
	ListAgents(ctx context.Context, filter AgentFilter) (*AgentPage, error)

	// CountAgents returns the total number of registered agents.
	CountAgents(ctx context.Context) (int, error)

	// TouchAgent updates the agent's last-activity timestamp.
	TouchAgent(ctx context.Context, name string, at time.Time) error

	// IncrementAgentVotes / IncrementAgentProposals bump the respective
	// activity counters and the last-activity timestamp.
	IncrementAgentVotes(ctx context.Context, name string, at time.Time) error
	IncrementAgentProposals(ctx context.Context, name string, at time.Time) error
}

// ── Contribution Store ───────────────────────────────────────

// ContributionFilter narrows ListContributions. Zero values match all.
type ContributionFilter struct {
	Status models.ContributionStatus
	Type   models.ContributionType
	Limit  int
	Offset int
}

type ContributionStore interface {
	// CreateContribution persists a new contribution record. The
	// caller freezes reward and reputation delta before the call; the
	// store never recomputes them.
	CreateContribution(ctx context.Context, c *models.Contribution) error

	// GetContribution returns a contribution by id.
	GetContribution(ctx context.Context, id string) (*models.Contribution, error)

	// ListContributionsByAgent returns every contribution submitted by
	// the named agent, newest first.
	ListContributionsByAgent(ctx context.Context, name string) ([]models.Contribution, error)

	// ListContributions returns filtered contributions sorted by
	// creation time descending, plus the pre-pagination match count.
	ListContributions(ctx context.Context, filter ContributionFilter) ([]models.Contribution, int, error)

	// ListApprovedSince returns every approved contribution created at
	// or after the cutoff. Used for leaderboard aggregation; unpaged.
	ListApprovedSince(ctx context.Context, cutoff time.Time) ([]models.Contribution, error)

	// ApplyReview transitions a pending contribution to approved or
	// rejected. The transition is one-way: reviewing an already
	// reviewed contribution fails with fault.Conflict. On approval the
	// submitting agent's reputation and contribution count and the
	// DAO's tokens-distributed aggregate are updated in the same
	// critical section as the status change — there is no intermediate
	// state where one mutation exists without the others.
	ApplyReview(ctx context.Context, id string, status models.ContributionStatus, reviewedBy, note string, at time.Time) (*models.Contribution, error)

	// GlobalStats returns DAO-wide contribution aggregates.
	GlobalStats(ctx context.Context) (models.GlobalStats, error)
}
