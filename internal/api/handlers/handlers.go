// Package handlers implements the HTTP handlers for the HiveDAO API.
// All handlers are thin: they decode, delegate to a service, and encode
// the service's result or fault into the response envelope.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/hivedao/hivedao/internal/api/middleware"
	"github.com/hivedao/hivedao/internal/config"
	"github.com/hivedao/hivedao/internal/fault"
	"github.com/hivedao/hivedao/internal/governance"
	"github.com/hivedao/hivedao/internal/ledger"
	"github.com/hivedao/hivedao/internal/payments"
	"github.com/hivedao/hivedao/internal/registry"
	"github.com/hivedao/hivedao/internal/store"
	"github.com/hivedao/hivedao/pkg/models"
)

// Handlers holds all handler dependencies.
type Handlers struct {
	Registry    *registry.Service
	Ledger      *ledger.Service
	Governance  *governance.Service
	Facilitator *payments.Client
	Store       store.Store
	Cfg         *config.Config
}

// New creates a Handlers instance with all dependencies.
func New(cfg *config.Config, s store.Store, reg *registry.Service, led *ledger.Service, gov *governance.Service, fac *payments.Client) *Handlers {
	return &Handlers{
		Registry:    reg,
		Ledger:      led,
		Governance:  gov,
		Facilitator: fac,
		Store:       s,
		Cfg:         cfg,
	}
}

// ── Health & status ──────────────────────────────────────────

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if err := h.Store.Ping(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, map[string]string{
		"status":  status,
		"service": "hivedao",
		"version": h.Cfg.Version,
	})
}

func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	report, err := h.Registry.Status(r.Context())
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*models.StatusReport
	}{true, report})
}

// ── Agents ───────────────────────────────────────────────────

func (h *Handlers) Join(w http.ResponseWriter, r *http.Request) {
	var req registry.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	receipt, err := h.Registry.Register(r.Context(), req)
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, struct {
		Success bool `json:"success"`
		*registry.Registration
	}{true, receipt})
}

func (h *Handlers) GetAgent(w http.ResponseWriter, r *http.Request) {
	view, err := h.Registry.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"agent":   view,
	})
}

func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.Registry.List(r.Context(), q.Get("tier"), q.Get("cursor"), queryInt(q.Get("limit"), 0))
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*registry.AgentPage
	}{true, page})
}

// ── Contributions ────────────────────────────────────────────

func (h *Handlers) ContributionTypes(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"types":   h.Ledger.Types(),
	})
}

func (h *Handlers) SubmitContribution(w http.ResponseWriter, r *http.Request) {
	var req ledger.SubmitInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.AgentName == "" {
		req.AgentName = middleware.GetAgentName(r.Context())
	}

	c, err := h.Ledger.Submit(r.Context(), req)
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"success":      true,
		"message":      "Contribution submitted for review",
		"contribution": c,
	})
}

func (h *Handlers) ListContributions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rows, total, stats, err := h.Ledger.List(r.Context(), store.ContributionFilter{
		Status: models.ContributionStatus(q.Get("status")),
		Type:   models.ContributionType(q.Get("type")),
		Limit:  queryInt(q.Get("limit"), 0),
		Offset: queryInt(q.Get("offset"), 0),
	})
	if err != nil {
		respondFault(w, err)
		return
	}
	if rows == nil {
		rows = []models.Contribution{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"contributions": rows,
		"total":         total,
		"stats":         stats,
	})
}

func (h *Handlers) AgentContributions(w http.ResponseWriter, r *http.Request) {
	l, err := h.Ledger.ListByAgent(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		respondFault(w, err)
		return
	}
	if l.Contributions == nil {
		l.Contributions = []models.Contribution{}
	}
	respondJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*ledger.AgentLedger
	}{true, l})
}

func (h *Handlers) Leaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period := q.Get("period")
	if period == "" {
		period = "week"
	}

	lb, err := h.Ledger.Leaderboard(r.Context(), period, queryInt(q.Get("limit"), 10))
	if err != nil {
		respondFault(w, err)
		return
	}
	if lb.Entries == nil {
		lb.Entries = []models.LeaderboardEntry{}
	}
	respondJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*ledger.Leaderboard
	}{true, lb})
}

func (h *Handlers) ReviewContribution(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status    models.ContributionStatus `json:"status"`
		AdminNote string                    `json:"adminNote"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	reviewer := middleware.GetAgentName(r.Context())
	if reviewer == "" {
		respondError(w, http.StatusBadRequest, middleware.AgentHeader+" header is required")
		return
	}

	c, err := h.Ledger.Review(r.Context(), chi.URLParam(r, "id"), req.Status, reviewer, req.AdminNote)
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"contribution": c,
	})
}

// ── Governance ───────────────────────────────────────────────

// proposalView adds the derived state to a proposal on the wire.
type proposalView struct {
	models.Proposal
	State string `json:"state"`
}

func viewProposal(p models.Proposal) proposalView {
	return proposalView{Proposal: p, State: p.State(time.Now().UTC())}
}

func (h *Handlers) Space(w http.ResponseWriter, r *http.Request) {
	info, err := h.Governance.SpaceInfo(r.Context())
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"space":   info,
	})
}

func (h *Handlers) ListProposals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	state := q.Get("state")
	if state == "" {
		state = "all"
	}

	proposals, err := h.Governance.ListProposals(r.Context(), state, governance.Page{
		First: queryInt(q.Get("first"), 0),
		Skip:  queryInt(q.Get("skip"), 0),
	})
	if err != nil {
		respondFault(w, err)
		return
	}

	views := make([]proposalView, 0, len(proposals))
	for _, p := range proposals {
		views = append(views, viewProposal(p))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"proposals": views,
	})
}

func (h *Handlers) CreateProposal(w http.ResponseWriter, r *http.Request) {
	author := middleware.GetAgentName(r.Context())
	if author == "" {
		respondError(w, http.StatusBadRequest, middleware.AgentHeader+" header is required")
		return
	}

	var req struct {
		Title    string   `json:"title"`
		Body     string   `json:"body"`
		Choices  []string `json:"choices"`
		Duration int      `json:"duration"` // days
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	p, err := h.Governance.CreateProposal(r.Context(), req.Title, req.Body, req.Choices, req.Duration, author)
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"success":  true,
		"proposal": viewProposal(*p),
	})
}

func (h *Handlers) GetProposal(w http.ResponseWriter, r *http.Request) {
	p, err := h.Governance.GetProposal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"proposal": viewProposal(*p),
	})
}

func (h *Handlers) ProposalVotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	votes, err := h.Governance.ListVotes(r.Context(), chi.URLParam(r, "id"), governance.Page{
		First: queryInt(q.Get("first"), 0),
		Skip:  queryInt(q.Get("skip"), 0),
	})
	if err != nil {
		respondFault(w, err)
		return
	}
	if votes == nil {
		votes = []models.Vote{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"votes":   votes,
	})
}

func (h *Handlers) ProposalResults(w http.ResponseWriter, r *http.Request) {
	res, err := h.Governance.Results(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*models.ProposalResults
	}{true, res})
}

func (h *Handlers) CastVote(w http.ResponseWriter, r *http.Request) {
	voter := middleware.GetAgentName(r.Context())
	if voter == "" {
		respondError(w, http.StatusBadRequest, middleware.AgentHeader+" header is required")
		return
	}

	var req struct {
		Choice *int `json:"choice"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Choice == nil {
		respondError(w, http.StatusBadRequest, "choice is required")
		return
	}

	vote, err := h.Governance.CastVote(r.Context(), chi.URLParam(r, "id"), *req.Choice, voter)
	if err != nil {
		respondFault(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"vote":    vote,
	})
}

// ── Treasury ─────────────────────────────────────────────────

func (h *Handlers) Treasury(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.Store.GlobalStats(ctx)
	if err != nil {
		respondFault(w, err)
		return
	}

	facilitator := "unreachable"
	if status, err := h.Facilitator.Status(ctx); err == nil {
		facilitator = status.Status
	}

	resp := map[string]interface{}{
		"success":           true,
		"wallet":            h.Cfg.Payments.TreasuryWallet,
		"asset":             h.Cfg.Payments.Asset,
		"chain":             h.Cfg.Payments.Chain,
		"facilitator":       facilitator,
		"chains":            h.Facilitator.Chains(ctx),
		"tokensDistributed": stats.TokensDistributed,
	}

	if wallet := h.Cfg.Payments.TreasuryWallet; wallet != "" {
		if balance, err := h.Facilitator.WalletBalance(ctx, wallet, h.Cfg.Payments.Chain, h.Cfg.Payments.Asset); err == nil {
			resp["balance"] = balance
		} else {
			log.Warn().Err(err).Msg("Treasury balance lookup failed")
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// ── Response helpers ─────────────────────────────────────────

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// respondFault maps a service error onto the envelope, carrying any
// conflict details (e.g. the existing position on a duplicate join) at
// the top level the way clients expect.
func respondFault(w http.ResponseWriter, err error) {
	status := fault.Status(err)

	body := map[string]interface{}{
		"success": false,
		"error":   err.Error(),
	}
	for k, v := range fault.ConflictDetails(err) {
		body[k] = v
	}
	respondJSON(w, status, body)
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
