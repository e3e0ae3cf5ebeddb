package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivedao/hivedao/internal/config"
	"github.com/hivedao/hivedao/internal/fault"
)

func TestClient_Pay(t *testing.T) {
	var got PaymentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/pay", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(PaymentReceipt{TxHash: "0xabc", Status: "settled"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	receipt, err := c.Pay(context.Background(), PaymentRequest{
		From: "0xtreasury", To: "0xagent", Amount: "50", Asset: "USDC", Chain: "Base",
	})
	require.NoError(t, err)

	assert.Equal(t, "0xabc", receipt.TxHash)
	assert.Equal(t, "base", got.Chain, "chain is lowercased before sending")
}

func TestClient_Pay_UnsupportedChain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("unsupported chain must be rejected before any request")
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Pay(context.Background(), PaymentRequest{
		From: "a", To: "b", Amount: "1", Asset: "USDC", Chain: "dogechain",
	})

	var validation *fault.Validation
	require.ErrorAs(t, err, &validation)
}

func TestClient_Pay_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "insufficient treasury balance", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Pay(context.Background(), PaymentRequest{
		From: "a", To: "b", Amount: "1", Asset: "USDC", Chain: "base",
	})

	var upstream *fault.Upstream
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "facilitator", upstream.Service)
}

func TestClient_Chains_FallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	chains := NewClient(srv.URL).Chains(context.Background())
	assert.Contains(t, chains, "base")
	assert.Len(t, chains, 21)
}

func TestClient_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/status", r.URL.Path)
		json.NewEncoder(w).Encode(FacilitatorStatus{Status: "ok", Version: "1.2.0"})
	}))
	defer srv.Close()

	status, err := NewClient(srv.URL).Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", status.Status)
}

// stubPayer fails a fixed number of times before settling.
type stubPayer struct {
	mu       sync.Mutex
	failures int
	calls    int
	paid     []PaymentRequest
}

func (s *stubPayer) Pay(ctx context.Context, req PaymentRequest) (*PaymentReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return nil, &fault.Upstream{Service: "facilitator", Err: context.DeadlineExceeded}
	}
	s.paid = append(s.paid, req)
	return &PaymentReceipt{TxHash: "0xdeadbeef", Status: "settled"}, nil
}

func testPaymentsConfig() config.PaymentsConfig {
	return config.PaymentsConfig{
		TreasuryWallet: "0xtreasury",
		Asset:          "USDC",
		Chain:          "base",
		MaxRetries:     5,
		Workers:        2,
	}
}

func TestDispatcher_RetriesThenSettles(t *testing.T) {
	payer := &stubPayer{failures: 2}
	d := NewDispatcher(payer, testPaymentsConfig())

	d.Enqueue(Payout{ContributionID: "c1", AgentName: "worker", Wallet: "0xagent", Amount: 50})
	d.Close()

	require.Len(t, payer.paid, 1)
	assert.Equal(t, "0xtreasury", payer.paid[0].From)
	assert.Equal(t, "0xagent", payer.paid[0].To)
	assert.Equal(t, "50", payer.paid[0].Amount)
	assert.Equal(t, 3, payer.calls)
}

func TestDispatcher_SkipsWithoutWallet(t *testing.T) {
	payer := &stubPayer{}
	d := NewDispatcher(payer, testPaymentsConfig())

	d.Enqueue(Payout{ContributionID: "c1", AgentName: "worker", Wallet: "", Amount: 50})
	d.Close()

	assert.Zero(t, payer.calls)
}

func TestDispatcher_SkipsWithoutTreasury(t *testing.T) {
	payer := &stubPayer{}
	cfg := testPaymentsConfig()
	cfg.TreasuryWallet = ""
	d := NewDispatcher(payer, cfg)

	d.Enqueue(Payout{ContributionID: "c1", AgentName: "worker", Wallet: "0xagent", Amount: 50})
	d.Close()

	assert.Zero(t, payer.calls)
}
