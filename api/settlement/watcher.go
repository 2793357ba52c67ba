// Package settlement confirms pending prize claims against the chain.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/lilzahs/gimme-idea/api/metrics"
	"github.com/lilzahs/gimme-idea/api/prize"
	"github.com/lilzahs/gimme-idea/api/solana"
)

// ClaimStore is the part of the claim ledger the watcher drives.
type ClaimStore interface {
	PendingClaims(ctx context.Context, limit int) ([]prize.Claim, error)
	ConfirmClaim(ctx context.Context, claimID uuid.UUID) (*prize.Claim, error)
	FailClaim(ctx context.Context, claimID uuid.UUID, reason string) (*prize.Claim, error)
}

// StatusClient reports transaction status from the cluster.
type StatusClient interface {
	SignatureStatuses(ctx context.Context, signatures []string) (map[string]solana.SignatureStatus, error)
}

type WatcherConfig struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
	Claims ClaimStore
	Chain  StatusClient

	PollInterval time.Duration
	BatchSize    int
	// NotFoundTimeout is how long a claim may reference a transaction the
	// cluster has never seen before it is failed.
	NotFoundTimeout time.Duration
}

func (cfg *WatcherConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Claims == nil {
		return errors.New("claim store is required")
	}
	if cfg.Chain == nil {
		return errors.New("status client is required")
	}
	if cfg.PollInterval <= 0 {
		return errors.New("poll interval must be greater than 0")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.NotFoundTimeout <= 0 {
		cfg.NotFoundTimeout = 10 * time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// PollResult counts what one poll did.
type PollResult struct {
	Checked   int
	Confirmed int
	Failed    int
}

type Watcher struct {
	log    *slog.Logger
	cfg    WatcherConfig
	pollMu sync.Mutex
}

func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Watcher{log: cfg.Logger, cfg: cfg}, nil
}

// Run polls until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	w.log.Info("settlement: starting watcher", "interval", w.cfg.PollInterval, "batch_size", w.cfg.BatchSize)

	w.safePoll(ctx)

	ticker := w.cfg.Clock.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info("settlement: watcher stopped")
			return nil
		case <-ticker.Chan():
			w.safePoll(ctx)
		}
	}
}

func (w *Watcher) safePoll(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("settlement: poll panicked", "panic", r)
			metrics.SettlementPollsTotal.WithLabelValues("panic").Inc()
		}
	}()

	if _, err := w.Poll(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		w.log.Error("settlement: poll failed", "error", err)
	}
}

// Poll checks one batch of pending claims. Chain errors leave every claim
// pending for the next poll.
func (w *Watcher) Poll(ctx context.Context) (PollResult, error) {
	w.pollMu.Lock()
	defer w.pollMu.Unlock()

	start := w.cfg.Clock.Now()
	var res PollResult
	var err error
	defer func() {
		metrics.RecordSettlementPoll(w.cfg.Clock.Since(start), err)
	}()

	claims, err := w.cfg.Claims.PendingClaims(ctx, w.cfg.BatchSize)
	if err != nil {
		err = fmt.Errorf("failed to load pending claims: %w", err)
		return res, err
	}
	if len(claims) == 0 {
		return res, nil
	}

	sigs := make([]string, len(claims))
	for i, c := range claims {
		sigs[i] = c.TxSignature
	}
	statuses, err := w.cfg.Chain.SignatureStatuses(ctx, sigs)
	if err != nil {
		err = fmt.Errorf("failed to fetch signature statuses: %w", err)
		return res, err
	}

	var errs []error
	for _, c := range claims {
		res.Checked++
		st := statuses[c.TxSignature]
		switch {
		case st.State == solana.SignatureConfirmed:
			if _, cerr := w.cfg.Claims.ConfirmClaim(ctx, c.ID); cerr != nil {
				errs = append(errs, fmt.Errorf("confirm claim %s: %w", c.ID, cerr))
				continue
			}
			res.Confirmed++
		case st.State == solana.SignatureFailed:
			if _, ferr := w.cfg.Claims.FailClaim(ctx, c.ID, "transaction failed: "+st.Err); ferr != nil {
				errs = append(errs, fmt.Errorf("fail claim %s: %w", c.ID, ferr))
				continue
			}
			res.Failed++
		case st.State == solana.SignatureUnknown && w.cfg.Clock.Since(c.CreatedAt) > w.cfg.NotFoundTimeout:
			if _, ferr := w.cfg.Claims.FailClaim(ctx, c.ID, "transaction not found"); ferr != nil {
				errs = append(errs, fmt.Errorf("fail claim %s: %w", c.ID, ferr))
				continue
			}
			res.Failed++
		}
	}
	err = errors.Join(errs...)

	w.log.Debug("settlement: poll completed",
		"checked", res.Checked, "confirmed", res.Confirmed, "failed", res.Failed)
	return res, err
}
