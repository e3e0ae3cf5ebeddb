// Package server provides the public entry point for initializing the
// HiveDAO server. It composes the store, the tokenomics tables, the
// governance backend, and the HTTP router from configuration.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/hivedao/hivedao/internal/api"
	"github.com/hivedao/hivedao/internal/api/handlers"
	"github.com/hivedao/hivedao/internal/config"
	"github.com/hivedao/hivedao/internal/governance"
	"github.com/hivedao/hivedao/internal/identity"
	"github.com/hivedao/hivedao/internal/ledger"
	"github.com/hivedao/hivedao/internal/payments"
	"github.com/hivedao/hivedao/internal/registry"
	"github.com/hivedao/hivedao/internal/store"
	"github.com/hivedao/hivedao/internal/telemetry"
	"github.com/hivedao/hivedao/internal/tokenomics"
)

// Server holds the initialized HiveDAO node.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Store is the data store, exposed for shutdown.
	Store store.Store

	// Dispatcher drains in-flight payouts on shutdown.
	Dispatcher *payments.Dispatcher

	// Config is the loaded configuration.
	Config *config.Config

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc should be called on graceful shutdown to flush
	// telemetry.
	ShutdownFunc func(context.Context) error
}

// New initializes all components from environment configuration and
// returns a ready Server.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig initializes the server with an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdown, err := telemetry.Init(cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	dataStore := store.NewMemoryStore(cfg.DataDir)
	log.Info().Msg("✅ Store initialized")

	tiers := tokenomics.NewTierTable(cfg.Tiers)
	scorer := tokenomics.NewScorer(nil, nil)

	facilitator := payments.NewClient(cfg.Payments.FacilitatorURL)
	dispatcher := payments.NewDispatcher(facilitator, cfg.Payments)
	log.Info().Str("facilitator", cfg.Payments.FacilitatorURL).Msg("✅ Payments initialized")

	oracle := identity.NewOracle(cfg.Identity)
	if oracle.Enabled() {
		log.Info().Str("rpc", cfg.Identity.RPCEndpoint).Msg("✅ Identity oracle initialized")
	}

	// The governance backend is chosen once here; nothing else branches
	// on the mode.
	var backend governance.Backend
	switch cfg.Governance.Mode {
	case config.GovernanceSnapshot:
		backend = governance.NewSnapshot(cfg.Governance.SnapshotURL, cfg.Governance.SpaceID)
		log.Info().Str("space", cfg.Governance.SpaceID).Msg("✅ Snapshot governance backend")
	default:
		backend = governance.NewLocal(cfg.Governance.SpaceID)
		log.Info().Str("space", cfg.Governance.SpaceID).Msg("✅ Local governance backend")
	}

	reg := registry.NewService(dataStore, tiers, oracle)
	led := ledger.NewService(dataStore, scorer, dispatcher)
	gov := governance.NewService(backend, dataStore, cfg.Governance)

	h := handlers.New(cfg, dataStore, reg, led, gov, facilitator)
	router := api.NewRouter(h)

	return &Server{
		Handler:      router,
		Store:        dataStore,
		Dispatcher:   dispatcher,
		Config:       cfg,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}
