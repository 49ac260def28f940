package checkout

import (
	"context"
	"log"
	"time"

	"github.com/example/storefront/internal/sdk"
)

type ResultFetcher interface {
	GetResult(ctx context.Context, txid string) (*sdk.CheckoutResult, error)
}

// Poller fetches a checkout result with a bounded exponential backoff.
type Poller struct {
	Retries  int
	BaseWait time.Duration
	MaxWait  time.Duration
	Sleep    func(ctx context.Context, d time.Duration) error
}

// NewPoller retries three times, waiting 1s, 2s and 4s (capped at 10s).
func NewPoller() *Poller {
	return &Poller{Retries: 3, BaseWait: time.Second, MaxWait: 10 * time.Second, Sleep: sleep}
}

// Backoff returns the wait before retry number attempt (0-based).
func (p *Poller) Backoff(attempt int) time.Duration {
	d := p.BaseWait << attempt
	if d <= 0 || d > p.MaxWait {
		return p.MaxWait
	}
	return d
}

func (p *Poller) Fetch(ctx context.Context, api ResultFetcher, txid string) (*sdk.CheckoutResult, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		res, err := api.GetResult(ctx, txid)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if attempt >= p.Retries || ctx.Err() != nil {
			break
		}

		wait := p.Backoff(attempt)
		log.Printf("[Checkout] result %s failed (attempt %d), retrying in %s: %v", txid, attempt+1, wait, err)
		if err := p.Sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
