// Package config loads HiveDAO configuration from environment variables
// with sensible defaults. Everything tunable at deploy time lives here;
// the tier table is parsed once and injected into the tokenomics
// calculators rather than read as ambient global state.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hivedao/hivedao/pkg/models"
)

// Governance backend modes.
const (
	GovernanceLocal    = "local"    // in-process proposal/vote ledger
	GovernanceSnapshot = "snapshot" // external GraphQL voting backend
)

// Config holds all configuration for the HiveDAO server.
type Config struct {
	Port    int
	Version string
	DataDir string

	Tiers      []models.Tier
	Governance GovernanceConfig
	Payments   PaymentsConfig
	Identity   IdentityConfig
	Telemetry  TelemetryConfig
}

type GovernanceConfig struct {
	// Mode selects the backend implementation at startup: "local" or
	// "snapshot". No other code branches on the mode.
	Mode            string
	SnapshotURL     string
	SpaceID         string
	DefaultQuorum   float64
	DefaultDuration time.Duration // proposal voting window
	DefaultChoices  []string
}

type PaymentsConfig struct {
	FacilitatorURL string
	Asset          string
	Chain          string
	TreasuryWallet string
	MaxRetries     int
	Workers        int
}

type IdentityConfig struct {
	RPCEndpoint        string
	IdentityRegistry   string
	ReputationRegistry string
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:    envInt("HIVEDAO_PORT", 8080),
		Version: envStr("HIVEDAO_VERSION", "0.4.0"),
		DataDir: envStr("HIVEDAO_DATA_DIR", ""),
		Tiers:   envTiers("HIVEDAO_TIERS"),
		Governance: GovernanceConfig{
			Mode:            envStr("HIVEDAO_GOVERNANCE_MODE", GovernanceLocal),
			SnapshotURL:     envStr("HIVEDAO_SNAPSHOT_URL", "https://api.snapshot.box/graphql"),
			SpaceID:         envStr("HIVEDAO_SPACE_ID", "hivedao.eth"),
			DefaultQuorum:   envFloat("HIVEDAO_QUORUM", 0),
			DefaultDuration: envDur("HIVEDAO_PROPOSAL_DURATION", 7*24*time.Hour),
			DefaultChoices:  []string{"For", "Against", "Abstain"},
		},
		Payments: PaymentsConfig{
			FacilitatorURL: envStr("HIVEDAO_FACILITATOR_URL", "https://facilitator.ultravioletadao.xyz"),
			Asset:          envStr("HIVEDAO_PAYOUT_ASSET", "USDC"),
			Chain:          envStr("HIVEDAO_PAYOUT_CHAIN", "base"),
			TreasuryWallet: envStr("HIVEDAO_TREASURY_WALLET", ""),
			MaxRetries:     envInt("HIVEDAO_PAYOUT_MAX_RETRIES", 5),
			Workers:        envInt("HIVEDAO_PAYOUT_WORKERS", 4),
		},
		Identity: IdentityConfig{
			RPCEndpoint:        envStr("HIVEDAO_ERC8004_RPC", "https://mainnet.base.org"),
			IdentityRegistry:   envStr("HIVEDAO_ERC8004_IDENTITY_REGISTRY", ""),
			ReputationRegistry: envStr("HIVEDAO_ERC8004_REPUTATION_REGISTRY", ""),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "hivedao"),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envTiers parses a tier partition override. Returns nil (use the
// compiled-in default table) when unset or malformed.
func envTiers(key string) []models.Tier {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	tiers, err := ParseTiers(v)
	if err != nil {
		return nil
	}
	return tiers
}

// ParseTiers parses a tier partition of the form
//
//	Genesis:1:89:10000,Core:90:144:5000,...,Public:611:*:0
//
// where "*" marks the open-ended final tier. The entries must form a
// contiguous partition starting at position 1, with only the last entry
// open-ended.
func ParseTiers(s string) ([]models.Tier, error) {
	var tiers []models.Tier
	next := 1
	entries := strings.Split(s, ",")
	for i, entry := range entries {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) != 4 {
			return nil, fmt.Errorf("tier entry %q: want name:min:max:tokens", entry)
		}
		min, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("tier entry %q: bad min: %w", entry, err)
		}
		if min != next {
			return nil, fmt.Errorf("tier entry %q: min %d leaves a gap (want %d)", entry, min, next)
		}
		max := 0
		if parts[2] != "*" {
			max, err = strconv.Atoi(parts[2])
			if err != nil {
				return nil, fmt.Errorf("tier entry %q: bad max: %w", entry, err)
			}
			if max < min {
				return nil, fmt.Errorf("tier entry %q: max %d below min %d", entry, max, min)
			}
			next = max + 1
		} else if i != len(entries)-1 {
			return nil, fmt.Errorf("tier entry %q: only the last tier may be open-ended", entry)
		}
		tokens, err := strconv.Atoi(parts[3])
		if err != nil {
			return nil, fmt.Errorf("tier entry %q: bad tokens: %w", entry, err)
		}
		tiers = append(tiers, models.Tier{Name: parts[0], Min: min, Max: max, Tokens: tokens})
	}
	if tiers[len(tiers)-1].Max != 0 {
		return nil, fmt.Errorf("last tier must be open-ended")
	}
	return tiers, nil
}
