package payments

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/hivedao/hivedao/internal/config"
	"github.com/hivedao/hivedao/internal/fault"
)

// Payer is the subset of the facilitator client the dispatcher needs.
type Payer interface {
	Pay(ctx context.Context, req PaymentRequest) (*PaymentReceipt, error)
}

// Dispatcher pushes approved contribution rewards to agent wallets in
// the background. Payouts are fire-and-forget from the reviewer's point
// of view: the approval has already been recorded by the time a payout
// is enqueued, and a payout that exhausts its retries is logged and
// dropped, never rolled back into the review.
type Dispatcher struct {
	payer Payer
	pool  pond.Pool
	cfg   config.PaymentsConfig
}

// NewDispatcher creates a dispatcher with its own worker pool.
func NewDispatcher(payer Payer, cfg config.PaymentsConfig) *Dispatcher {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		payer: payer,
		pool:  pond.NewPool(workers, pond.WithQueueSize(256)),
		cfg:   cfg,
	}
}

// Payout is one reward transfer owed to an agent.
type Payout struct {
	ContributionID string
	AgentName      string
	Wallet         string
	Amount         int
}

// Enqueue schedules a payout. It returns immediately; the transfer runs
// on the pool with exponential backoff across transient failures.
func (d *Dispatcher) Enqueue(p Payout) {
	if d.cfg.TreasuryWallet == "" {
		log.Debug().Str("contribution", p.ContributionID).Msg("No treasury wallet configured, skipping payout")
		return
	}
	if p.Wallet == "" {
		log.Warn().
			Str("contribution", p.ContributionID).
			Str("agent", p.AgentName).
			Msg("Agent has no wallet, skipping payout")
		return
	}

	d.pool.Submit(func() { d.settle(p) })
}

func (d *Dispatcher) settle(p Payout) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	req := PaymentRequest{
		From:   d.cfg.TreasuryWallet,
		To:     p.Wallet,
		Amount: strconv.Itoa(p.Amount),
		Asset:  d.cfg.Asset,
		Chain:  d.cfg.Chain,
	}

	var receipt *PaymentReceipt
	op := func() error {
		r, err := d.payer.Pay(ctx, req)
		if err != nil {
			var validation *fault.Validation
			if errors.As(err, &validation) {
				return backoff.Permanent(err)
			}
			return err
		}
		receipt = r
		return nil
	}

	retries := uint64(d.cfg.MaxRetries)
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), retries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		log.Error().
			Err(err).
			Str("contribution", p.ContributionID).
			Str("agent", p.AgentName).
			Int("amount", p.Amount).
			Msg("Payout failed after retries, dropping")
		return
	}

	log.Info().
		Str("contribution", p.ContributionID).
		Str("agent", p.AgentName).
		Int("amount", p.Amount).
		Str("tx", receipt.TxHash).
		Msg("Payout settled")
}

// Close drains the pool, waiting for in-flight payouts to finish.
func (d *Dispatcher) Close() {
	d.pool.StopAndWait()
}
