package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	sol "github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"golang.org/x/sync/errgroup"

	"github.com/lilzahs/gimme-idea/api/metrics"
	"github.com/lilzahs/gimme-idea/utils/pkg/retry"
)

// maxSignaturesPerRequest is the getSignatureStatuses batch limit.
const maxSignaturesPerRequest = 256

// RPC is the subset of the Solana JSON-RPC client used here.
type RPC interface {
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, transactionSignatures ...sol.Signature) (*solanarpc.GetSignatureStatusesResult, error)
}

// SignatureState is what the cluster knows about a transaction.
type SignatureState int

const (
	// SignatureUnknown means the cluster has no record of the signature yet.
	SignatureUnknown SignatureState = iota
	SignatureProcessed
	SignatureConfirmed
	SignatureFailed
)

func (s SignatureState) String() string {
	switch s {
	case SignatureProcessed:
		return "processed"
	case SignatureConfirmed:
		return "confirmed"
	case SignatureFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type SignatureStatus struct {
	Signature string
	State     SignatureState
	Err       string
}

type ClientConfig struct {
	Logger         *slog.Logger
	RPC            RPC
	RequestTimeout time.Duration
	Retry          retry.Config
}

func (cfg *ClientConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.RPC == nil {
		return errors.New("rpc client is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	return nil
}

// Client looks up transaction confirmation status on a Solana cluster.
type Client struct {
	log *slog.Logger
	cfg ClientConfig
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{log: cfg.Logger, cfg: cfg}, nil
}

// NewRPC returns a JSON-RPC client for url.
func NewRPC(url string) *solanarpc.Client {
	return solanarpc.New(url)
}

// SignatureStatuses returns the status of each signature keyed by its
// base58 form. Malformed signatures are reported as failed.
func (c *Client) SignatureStatuses(ctx context.Context, signatures []string) (map[string]SignatureStatus, error) {
	out := make(map[string]SignatureStatus, len(signatures))
	var parsed []sol.Signature
	for _, s := range signatures {
		sig, err := sol.SignatureFromBase58(s)
		if err != nil {
			out[s] = SignatureStatus{Signature: s, State: SignatureFailed, Err: "malformed signature"}
			continue
		}
		parsed = append(parsed, sig)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < len(parsed); start += maxSignaturesPerRequest {
		batch := parsed[start:min(start+maxSignaturesPerRequest, len(parsed))]
		g.Go(func() error {
			statuses, err := c.fetch(gctx, batch)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, st := range statuses {
				out[st.Signature] = st
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) fetch(ctx context.Context, batch []sol.Signature) ([]SignatureStatus, error) {
	start := time.Now()
	res, err := retry.DoValue(ctx, c.cfg.Retry, func() (*solanarpc.GetSignatureStatusesResult, error) {
		reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
		return c.cfg.RPC.GetSignatureStatuses(reqCtx, true, batch...)
	})
	metrics.RecordSolanaRPC("getSignatureStatuses", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to get signature statuses: %w", err)
	}
	if res == nil {
		return nil, errors.New("empty signature status response")
	}

	out := make([]SignatureStatus, len(batch))
	for i, sig := range batch {
		out[i] = SignatureStatus{Signature: sig.String()}
		if i >= len(res.Value) || res.Value[i] == nil {
			continue
		}
		v := res.Value[i]
		switch {
		case v.Err != nil:
			out[i].State = SignatureFailed
			out[i].Err = fmt.Sprintf("%v", v.Err)
		case v.ConfirmationStatus == solanarpc.ConfirmationStatusConfirmed,
			v.ConfirmationStatus == solanarpc.ConfirmationStatusFinalized:
			out[i].State = SignatureConfirmed
		default:
			out[i].State = SignatureProcessed
		}
	}
	c.log.Debug("solana: fetched signature statuses", "count", len(batch))
	return out, nil
}
