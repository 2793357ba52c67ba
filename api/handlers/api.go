package handlers

import (
	"errors"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lilzahs/gimme-idea/api/feed"
	"github.com/lilzahs/gimme-idea/api/prize"
	"github.com/lilzahs/gimme-idea/api/wallet"
)

type Config struct {
	Logger  *slog.Logger
	Wallets *wallet.Store
	Prizes  *prize.Store
	Feed    *feed.Store

	// IndexerToken guards the claim confirmation endpoints. Empty disables them.
	IndexerToken   string
	RequestTimeout time.Duration
	// MutationLimiter rate limits state-changing routes per client IP.
	MutationLimiter *RateLimiter
	Version         VersionResponse
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Wallets == nil {
		return errors.New("wallet store is required")
	}
	if cfg.Prizes == nil {
		return errors.New("prize store is required")
	}
	if cfg.Feed == nil {
		return errors.New("feed store is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.MutationLimiter == nil {
		cfg.MutationLimiter = MutationRateLimiter
	}
	return nil
}

// API serves the wallet, feed and prize pool routes.
type API struct {
	log *slog.Logger
	cfg Config
}

func New(cfg Config) (*API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &API{log: cfg.Logger, cfg: cfg}, nil
}

// Routes mounts every route on r. Callers usually mount the result under /api.
func (a *API) Routes(r chi.Router) {
	r.Use(a.Authenticate)

	r.Get("/version", a.GetVersion)

	r.Get("/auth/message", a.GetAuthMessage)
	r.Get("/auth/me", a.GetAuthMe)

	r.Get("/wallet/{address}", a.GetWallet)
	r.Get("/prizes/{poolID}", a.GetPrizePool)
	r.Get("/prizes/{poolID}/rankings", a.GetRankings)
	r.Get("/prizes/{poolID}/winners", a.GetWinners)
	r.Get("/posts/{postID}/claims", a.GetPostClaims)
	r.Get("/posts/{postID}/prize-stats", a.GetPrizeStats)
	r.Get("/claims/wallet/{address}", a.GetWalletClaims)

	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(a.cfg.MutationLimiter))
		r.Use(RequireWallet)

		r.Post("/wallet/connect", a.PostWalletConnect)
		r.Post("/posts", a.PostCreatePost)
		r.Post("/posts/{postID}/comments", a.PostComment)
		r.Post("/tips", a.PostTip)

		r.Post("/prizes/{poolID}/distribution", a.PostDistribution)
		r.Post("/prizes/{poolID}/escrow", a.PostEscrow)
		r.Put("/prizes/{poolID}/rankings", a.PutRankings)

		r.Post("/claims", a.PostClaim)
		r.Post("/posts/{postID}/distributed", a.PostDistributed)
		r.Post("/posts/{postID}/force-close", a.PostForceClose)
	})

	r.Group(func(r chi.Router) {
		r.Use(a.RequireIndexerToken)

		r.Post("/claims/{claimID}/confirm", a.PostConfirmClaim)
		r.Post("/claims/{claimID}/fail", a.PostFailClaim)
	})
}
