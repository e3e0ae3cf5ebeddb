// Package store — in-memory Store implementation.
// Authoritative for local and single-node deployments. Supports
// file-based snapshot persistence so DAO state survives restarts.
package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hivedao/hivedao/internal/fault"
	"github.com/hivedao/hivedao/pkg/models"
)

// snapshot is the JSON-serializable shape written to disk.
type snapshot struct {
	Agents        map[string]*models.Agent        `json:"agents"`        // key: lowercase name
	Contributions map[string]*models.Contribution `json:"contributions"` // key: id
	Stats         models.GlobalStats              `json:"stats"`
	TotalAgents   int                             `json:"totalAgents"`
}

// MemoryStore implements Store with in-memory maps.
//
// All compound invariants are enforced under m.mu: the registration
// counter only advances together with a successful name insert, and a
// review only lands together with its reputation side effects.
type MemoryStore struct {
	mu            sync.RWMutex
	agents        map[string]*models.Agent        // key: lowercase name
	contributions map[string]*models.Contribution // key: id
	stats         models.GlobalStats
	totalAgents   int // position counter; advances only on successful insert

	// Persistence
	snapshotPath string        // empty = no persistence
	saveMu       sync.Mutex    // guards file writes
	saveCh       chan struct{} // debounce channel
	doneCh       chan struct{} // signals the save goroutine to stop
	closeOnce    sync.Once
}

// NewMemoryStore creates a new in-memory store. If dataDir is non-empty,
// data is persisted to a JSON file in that directory; otherwise the
// store is purely ephemeral.
func NewMemoryStore(dataDir string) *MemoryStore {
	m := &MemoryStore{
		agents:        make(map[string]*models.Agent),
		contributions: make(map[string]*models.Contribution),
		saveCh:        make(chan struct{}, 1),
		doneCh:        make(chan struct{}),
	}

	if dataDir != "" {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			log.Warn().Err(err).Str("dir", dataDir).Msg("Cannot create data dir, persistence disabled")
		} else {
			m.snapshotPath = filepath.Join(dataDir, "hivedao.json")
		}
	}

	if m.snapshotPath != "" {
		m.loadSnapshot()
		go m.saveLoop()
	}

	log.Info().Str("snapshot", m.snapshotPath).Msg("Memory store configured")
	return m
}

// Ping always succeeds for the in-memory store.
func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

// Close flushes a final snapshot and stops the save goroutine.
func (m *MemoryStore) Close() error {
	m.closeOnce.Do(func() {
		close(m.doneCh)
		if m.snapshotPath != "" {
			m.saveSnapshot()
		}
	})
	return nil
}

// ── Agent Store ──────────────────────────────────────────────

func (m *MemoryStore) CreateAgent(ctx context.Context, agent *models.Agent, grant GrantFunc) error {
	key := strings.ToLower(agent.Name)

	m.mu.Lock()
	if existing, ok := m.agents[key]; ok {
		m.mu.Unlock()
		return &fault.Conflict{
			Msg: "agent already registered",
			Details: map[string]interface{}{
				"position": existing.Position,
				"tier":     existing.Tier,
			},
		}
	}

	// The counter advances inside the same critical section as the
	// insert: concurrent registrations serialize here and can never be
	// assigned the same position. The grant derives from the position,
	// so it is stamped here too.
	m.totalAgents++
	agent.Position = m.totalAgents
	if grant != nil {
		agent.Tier, agent.TokensAllocated = grant(agent.Position)
	}
	cp := *agent
	m.agents[key] = &cp
	m.mu.Unlock()

	m.requestSave()
	return nil
}

func (m *MemoryStore) GetAgent(ctx context.Context, name string) (*models.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	agent, ok := m.agents[strings.ToLower(name)]
	if !ok {
		return nil, &fault.NotFound{Entity: "agent", Key: name}
	}
	cp := *agent
	return &cp, nil
}

func (m *MemoryStore) ListAgents(ctx context.Context, filter AgentFilter) (*AgentPage, error) {
	m.mu.RLock()
	matched := make([]models.Agent, 0, len(m.agents))
	for _, a := range m.agents {
		if filter.Tier != "" && a.Tier != filter.Tier {
			continue
		}
		matched = append(matched, *a)
	}
	m.mu.RUnlock()

	// The backing map enumerates in arbitrary order; the page contract
	// is position-ascending.
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Position < matched[j].Position
	})

	after := decodeCursor(filter.Cursor)
	start := sort.Search(len(matched), func(i int) bool {
		return matched[i].Position > after
	})

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}

	page := &AgentPage{
		Agents:  matched[start:end],
		Total:   len(matched),
		HasMore: end < len(matched),
	}
	if page.HasMore {
		page.NextCursor = encodeCursor(matched[end-1].Position)
	}
	return page, nil
}

func (m *MemoryStore) CountAgents(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalAgents, nil
}

func (m *MemoryStore) TouchAgent(ctx context.Context, name string, at time.Time) error {
	return m.mutateAgent(name, func(a *models.Agent) { a.LastActiveAt = at })
}

func (m *MemoryStore) IncrementAgentVotes(ctx context.Context, name string, at time.Time) error {
	return m.mutateAgent(name, func(a *models.Agent) {
		a.Votes++
		a.LastActiveAt = at
	})
}

func (m *MemoryStore) IncrementAgentProposals(ctx context.Context, name string, at time.Time) error {
	return m.mutateAgent(name, func(a *models.Agent) {
		a.Proposals++
		a.LastActiveAt = at
	})
}

func (m *MemoryStore) mutateAgent(name string, fn func(*models.Agent)) error {
	m.mu.Lock()
	agent, ok := m.agents[strings.ToLower(name)]
	if !ok {
		m.mu.Unlock()
		return &fault.NotFound{Entity: "agent", Key: name}
	}
	fn(agent)
	m.mu.Unlock()

	m.requestSave()
	return nil
}

// ── Contribution Store ───────────────────────────────────────

func (m *MemoryStore) CreateContribution(ctx context.Context, c *models.Contribution) error {
	m.mu.Lock()
	if _, ok := m.contributions[c.ID]; ok {
		m.mu.Unlock()
		return &fault.Conflict{Msg: "contribution id already exists"}
	}
	cp := *c
	m.contributions[c.ID] = &cp
	m.stats.Total++
	m.mu.Unlock()

	m.requestSave()
	return nil
}

func (m *MemoryStore) GetContribution(ctx context.Context, id string) (*models.Contribution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.contributions[id]
	if !ok {
		return nil, &fault.NotFound{Entity: "contribution", Key: id}
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryStore) ListContributionsByAgent(ctx context.Context, name string) ([]models.Contribution, error) {
	key := strings.ToLower(name)

	m.mu.RLock()
	var out []models.Contribution
	for _, c := range m.contributions {
		if c.AgentName == key {
			out = append(out, *c)
		}
	}
	m.mu.RUnlock()

	sortByCreatedDesc(out)
	return out, nil
}

func (m *MemoryStore) ListContributions(ctx context.Context, filter ContributionFilter) ([]models.Contribution, int, error) {
	m.mu.RLock()
	var matched []models.Contribution
	for _, c := range m.contributions {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.Type != "" && c.Type != filter.Type {
			continue
		}
		matched = append(matched, *c)
	}
	m.mu.RUnlock()

	sortByCreatedDesc(matched)
	total := len(matched)

	offset := filter.Offset
	if offset > total {
		offset = total
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	end := offset + limit
	if end > total {
		end = total
	}

	return matched[offset:end], total, nil
}

func (m *MemoryStore) ListApprovedSince(ctx context.Context, cutoff time.Time) ([]models.Contribution, error) {
	m.mu.RLock()
	var out []models.Contribution
	for _, c := range m.contributions {
		if c.Status != models.ContributionApproved || c.CreatedAt.Before(cutoff) {
			continue
		}
		out = append(out, *c)
	}
	m.mu.RUnlock()

	sortByCreatedDesc(out)
	return out, nil
}

func (m *MemoryStore) ApplyReview(ctx context.Context, id string, status models.ContributionStatus, reviewedBy, note string, at time.Time) (*models.Contribution, error) {
	if status != models.ContributionApproved && status != models.ContributionRejected {
		return nil, fault.Validationf("review status must be approved or rejected, got %q", status)
	}

	m.mu.Lock()
	c, ok := m.contributions[id]
	if !ok {
		m.mu.Unlock()
		return nil, &fault.NotFound{Entity: "contribution", Key: id}
	}
	if c.Reviewed() {
		m.mu.Unlock()
		return nil, &fault.Conflict{Msg: fmt.Sprintf("contribution already %s", c.Status)}
	}

	c.Status = status
	reviewedAt := at
	c.ReviewedAt = &reviewedAt
	c.ReviewedBy = reviewedBy
	c.AdminNote = note

	// The reputation grant and the distributed-tokens aggregate move
	// with the status flip, inside the same critical section. A
	// re-review is rejected above, so the delta can never double-apply.
	if status == models.ContributionApproved {
		if agent, ok := m.agents[c.AgentName]; ok {
			agent.Reputation += c.ReputationDelta
			agent.Contributions++
			agent.LastActiveAt = at
		}
		m.stats.TokensDistributed += c.Reward
	}

	cp := *c
	m.mu.Unlock()

	m.requestSave()
	return &cp, nil
}

func (m *MemoryStore) GlobalStats(ctx context.Context) (models.GlobalStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats, nil
}

// ── Helpers ──────────────────────────────────────────────────

func sortByCreatedDesc(cs []models.Contribution) {
	sort.Slice(cs, func(i, j int) bool {
		if !cs[i].CreatedAt.Equal(cs[j].CreatedAt) {
			return cs[i].CreatedAt.After(cs[j].CreatedAt)
		}
		return cs[i].ID > cs[j].ID // deterministic tie-break
	})
}

// Cursors encode the last-seen position. Opaque to callers.
func encodeCursor(position int) string {
	return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(position)))
}

func decodeCursor(cursor string) int {
	if cursor == "" {
		return 0
	}
	raw, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// ── Persistence ──────────────────────────────────────────────

// requestSave signals the background goroutine to persist data.
// Non-blocking: coalesces multiple rapid writes into one disk flush.
func (m *MemoryStore) requestSave() {
	if m.snapshotPath == "" {
		return
	}
	select {
	case m.saveCh <- struct{}{}:
	default:
		// Already pending
	}
}

// saveLoop runs in a goroutine, debouncing save requests.
func (m *MemoryStore) saveLoop() {
	for {
		select {
		case <-m.doneCh:
			return
		case <-m.saveCh:
			time.Sleep(500 * time.Millisecond) // debounce
			m.saveSnapshot()
		}
	}
}

// saveSnapshot persists all data to disk as JSON.
func (m *MemoryStore) saveSnapshot() {
	m.mu.RLock()
	snap := snapshot{
		Agents:        m.agents,
		Contributions: m.contributions,
		Stats:         m.stats,
		TotalAgents:   m.totalAgents,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	m.mu.RUnlock()

	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal snapshot")
		return
	}

	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	// Write to temp file then rename for atomicity
	tmp := m.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		log.Error().Err(err).Str("path", tmp).Msg("Failed to write snapshot tmp")
		return
	}
	if err := os.Rename(tmp, m.snapshotPath); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("Failed to rename snapshot")
		return
	}

	log.Debug().Str("path", m.snapshotPath).Msg("Snapshot saved")
}

// loadSnapshot reads data from disk on startup.
func (m *MemoryStore) loadSnapshot() {
	data, err := os.ReadFile(m.snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", m.snapshotPath).Msg("No snapshot file found, starting fresh")
			return
		}
		log.Warn().Err(err).Str("path", m.snapshotPath).Msg("Failed to read snapshot")
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("Failed to parse snapshot, starting fresh")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if snap.Agents != nil {
		m.agents = snap.Agents
	}
	if snap.Contributions != nil {
		m.contributions = snap.Contributions
	}
	m.stats = snap.Stats
	m.totalAgents = snap.TotalAgents
	if m.totalAgents < len(m.agents) {
		// Older snapshots may predate the explicit counter.
		m.totalAgents = len(m.agents)
	}

	log.Info().
		Int("agents", len(m.agents)).
		Int("contributions", len(m.contributions)).
		Msg("Snapshot loaded")
}
