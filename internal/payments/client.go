// Package payments integrates with an x402 payment facilitator for
// treasury payouts. Approved contribution rewards are dispatched
// asynchronously; a payout failure never affects the contribution's
// review outcome.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hivedao/hivedao/internal/fault"
)

// supportedChains is the facilitator's published chain list, used as a
// fallback when the /chains endpoint is unreachable and to reject
// payouts to chains the facilitator cannot settle on.
var supportedChains = []string{
	"avalanche", "base", "polygon", "ethereum", "arbitrum",
	"optimism", "bsc", "fantom", "gnosis", "celo",
	"moonbeam", "moonriver", "aurora", "harmony", "cronos",
	"metis", "boba", "evmos", "kava", "linea", "scroll",
}

// Client talks to an x402 facilitator over its REST surface.
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient creates a facilitator client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// FacilitatorStatus is the facilitator's self-reported health.
type FacilitatorStatus struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// PaymentRequest is one transfer from the treasury to an agent wallet.
type PaymentRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
	Asset  string `json:"asset"`
	Chain  string `json:"chain"`
}

// PaymentReceipt is the facilitator's record of a settled transfer.
type PaymentReceipt struct {
	TxHash string `json:"txHash"`
	Status string `json:"status"`
	Chain  string `json:"chain,omitempty"`
}

// Balance is a wallet's balance of one asset on one chain.
type Balance struct {
	Address string `json:"address"`
	Asset   string `json:"asset"`
	Chain   string `json:"chain"`
	Amount  string `json:"amount"`
}

func (c *Client) request(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &fault.Upstream{Service: "facilitator", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &fault.Upstream{Service: "facilitator", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return &fault.Upstream{
			Service: "facilitator",
			Err:     fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, raw),
		}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return &fault.Upstream{Service: "facilitator", Err: err}
		}
	}
	return nil
}

// Status returns the facilitator's health.
func (c *Client) Status(ctx context.Context) (*FacilitatorStatus, error) {
	var status FacilitatorStatus
	if err := c.request(ctx, http.MethodGet, "/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Chains returns the chains the facilitator can settle on, falling back
// to the published list when the endpoint is unreachable.
func (c *Client) Chains(ctx context.Context) []string {
	var data struct {
		Chains []string `json:"chains"`
	}
	if err := c.request(ctx, http.MethodGet, "/chains", nil, &data); err != nil || len(data.Chains) == 0 {
		return append([]string(nil), supportedChains...)
	}
	return data.Chains
}

// Pay submits one transfer. The chain is validated against the
// supported list before any network round trip.
func (c *Client) Pay(ctx context.Context, req PaymentRequest) (*PaymentReceipt, error) {
	chain := strings.ToLower(req.Chain)
	if !chainSupported(chain) {
		return nil, fault.Validationf("chain %q not supported by the facilitator", req.Chain)
	}
	req.Chain = chain

	var receipt PaymentReceipt
	if err := c.request(ctx, http.MethodPost, "/pay", req, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// WalletBalance returns a wallet's balance for one asset on one chain.
func (c *Client) WalletBalance(ctx context.Context, address, chain, asset string) (*Balance, error) {
	path := fmt.Sprintf("/balance/%s?chain=%s&asset=%s",
		url.PathEscape(address), url.QueryEscape(chain), url.QueryEscape(asset))

	var balance Balance
	if err := c.request(ctx, http.MethodGet, path, nil, &balance); err != nil {
		return nil, err
	}
	return &balance, nil
}

// VerifyPayment checks whether a transaction settled.
func (c *Client) VerifyPayment(ctx context.Context, txHash, chain string) (*PaymentReceipt, error) {
	path := fmt.Sprintf("/verify/%s?chain=%s", url.PathEscape(txHash), url.QueryEscape(chain))

	var receipt PaymentReceipt
	if err := c.request(ctx, http.MethodGet, path, nil, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func chainSupported(chain string) bool {
	for _, c := range supportedChains {
		if c == chain {
			return true
		}
	}
	return false
}
