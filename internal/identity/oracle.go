// Package identity reads on-chain agent identity and reputation from
// ERC-8004 registry contracts. The oracle degrades gracefully: when the
// registries are not configured or a call fails, it reports no identity
// and zero reputation rather than erroring, so registration and voting
// never block on chain availability.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hivedao/hivedao/internal/config"
)

// OnChainIdentity is one ERC-8004 identity record.
type OnChainIdentity struct {
	TokenID      int64     `json:"tokenId"`
	Name         string    `json:"name"`
	Wallet       string    `json:"wallet"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// OnChainReputation is an agent's ERC-8004 reputation record.
type OnChainReputation struct {
	Score         int       `json:"score"`
	Contributions int       `json:"contributions"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

// Verification is the outcome of matching a claimed name against the
// wallet's on-chain identity.
type Verification struct {
	Verified bool             `json:"verified"`
	Reason   string           `json:"reason,omitempty"`
	Identity *OnChainIdentity `json:"identity,omitempty"`
}

// Oracle queries ERC-8004 registries over JSON-RPC.
type Oracle struct {
	http *http.Client
	cfg  config.IdentityConfig
}

// NewOracle creates an oracle for the configured registries. An empty
// registry address disables the corresponding lookups.
func NewOracle(cfg config.IdentityConfig) *Oracle {
	return &Oracle{
		http: &http.Client{Timeout: 15 * time.Second},
		cfg:  cfg,
	}
}

// Enabled reports whether an identity registry is configured.
func (o *Oracle) Enabled() bool {
	return o.cfg.IdentityRegistry != ""
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result string `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ethCall performs a read-only contract call against the latest block.
func (o *Oracle) ethCall(ctx context.Context, contract, data string) (string, error) {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "eth_call",
		Params: []interface{}{
			map[string]string{"to": contract, "data": data},
			"latest",
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.RPCEndpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var rpc rpcResponse
	if err := json.Unmarshal(raw, &rpc); err != nil {
		return "", err
	}
	if rpc.Error != nil {
		return "", fmt.Errorf("rpc error %d: %s", rpc.Error.Code, rpc.Error.Message)
	}
	return rpc.Result, nil
}

// GetIdentity looks up the on-chain identity registered to a wallet.
// Returns nil when no identity exists, the registry is not configured,
// or the chain is unreachable.
func (o *Oracle) GetIdentity(ctx context.Context, wallet string) *OnChainIdentity {
	if o.cfg.IdentityRegistry == "" {
		return nil
	}

	result, err := o.ethCall(ctx, o.cfg.IdentityRegistry, identityCalldata(wallet))
	if err != nil {
		log.Warn().Err(err).Str("wallet", wallet).Msg("Identity lookup failed")
		return nil
	}
	if result == "" || result == "0x" {
		return nil
	}
	return decodeIdentity(wallet, result)
}

// GetReputation looks up an agent's on-chain reputation. Returns the
// zero record on any failure.
func (o *Oracle) GetReputation(ctx context.Context, wallet string) OnChainReputation {
	if o.cfg.ReputationRegistry == "" {
		return OnChainReputation{}
	}

	result, err := o.ethCall(ctx, o.cfg.ReputationRegistry, reputationCalldata(wallet))
	if err != nil {
		log.Warn().Err(err).Str("wallet", wallet).Msg("Reputation lookup failed")
		return OnChainReputation{}
	}
	if result == "" || result == "0x" {
		return OnChainReputation{}
	}
	return decodeReputation(result)
}

// VerifyAgent checks a claimed agent name against the wallet's on-chain
// identity.
func (o *Oracle) VerifyAgent(ctx context.Context, agentName, wallet string) Verification {
	identity := o.GetIdentity(ctx, wallet)
	if identity == nil {
		return Verification{Verified: false, Reason: "no on-chain identity found for this wallet"}
	}
	if !strings.EqualFold(identity.Name, agentName) {
		return Verification{Verified: false, Reason: "agent name does not match on-chain identity"}
	}
	return Verification{Verified: true, Identity: identity}
}
