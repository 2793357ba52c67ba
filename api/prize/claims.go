package prize

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/lilzahs/gimme-idea/api/apperror"
	"github.com/lilzahs/gimme-idea/api/handlers/dberror"
	"github.com/lilzahs/gimme-idea/api/metrics"
	"github.com/lilzahs/gimme-idea/api/wallet"
)

// ClaimStatus is the lifecycle state of a claim.
type ClaimStatus string

const (
	ClaimPending   ClaimStatus = "pending"
	ClaimConfirmed ClaimStatus = "confirmed"
	ClaimFailed    ClaimStatus = "failed"
)

// Claim is a payout transaction recorded against a ranking.
type Claim struct {
	ID            uuid.UUID       `json:"id"`
	RankingID     *uuid.UUID      `json:"ranking_id,omitempty"`
	Rank          int             `json:"rank"`
	PostID        uuid.UUID       `json:"post_id"`
	WinnerWallet  string          `json:"winner_wallet"`
	Amount        decimal.Decimal `json:"amount"`
	TxSignature   string          `json:"tx_signature"`
	Status        ClaimStatus     `json:"status"`
	FailureReason *string         `json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	ConfirmedAt   *time.Time      `json:"confirmed_at,omitempty"`
}

// ClaimInput records a payout. Caller must be the winner or the pool owner.
type ClaimInput struct {
	RankingID    uuid.UUID
	PostID       uuid.UUID
	WinnerWallet string
	Amount       decimal.Decimal
	TxSignature  string
	Caller       uuid.UUID
}

const claimColumns = `id, ranking_id, rank, post_id, winner_wallet, amount, tx_signature,
	status, failure_reason, created_at, updated_at, confirmed_at`

func scanClaim(row pgx.Row) (*Claim, error) {
	var c Claim
	var status string
	err := row.Scan(
		&c.ID, &c.RankingID, &c.Rank, &c.PostID, &c.WinnerWallet, &c.Amount, &c.TxSignature,
		&status, &c.FailureReason, &c.CreatedAt, &c.UpdatedAt, &c.ConfirmedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Status = ClaimStatus(status)
	return &c, nil
}

func collectClaims(rows pgx.Rows) ([]Claim, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Claim, error) {
		c, err := scanClaim(row)
		if err != nil {
			return Claim{}, err
		}
		return *c, nil
	})
}

// RecordClaim stores a pending claim after checking that it pays exactly
// the ranked author exactly the ranked amount. At most one pending or
// confirmed claim can exist per ranking.
func (s *Store) RecordClaim(ctx context.Context, in ClaimInput) (*Claim, error) {
	const op = "prize.RecordClaim"

	if !wallet.ValidTxSignature(in.TxSignature) {
		return nil, apperror.Validation(op, "invalid claim transaction signature")
	}

	var claim *Claim
	err := pgx.BeginFunc(ctx, s.cfg.Pool, func(tx pgx.Tx) error {
		var (
			poolID        uuid.UUID
			rank          int
			amount        decimal.Decimal
			authorID      uuid.UUID
			authorAddress string
		)
		err := tx.QueryRow(ctx, `
			SELECT r.pool_id, r.rank, r.amount, w.id, w.address
			FROM rankings r
			JOIN comments c ON c.id = r.comment_id
			JOIN wallets w ON w.id = c.wallet_id
			WHERE r.id = $1
		`, in.RankingID).Scan(&poolID, &rank, &amount, &authorID, &authorAddress)
		if err != nil {
			return apperror.FromDB(op, err)
		}

		pool, err := lockPool(ctx, tx, op, `WHERE id = $1`, poolID)
		if err != nil {
			return err
		}
		if pool.PostID != in.PostID {
			return apperror.Validation(op, "ranking does not belong to this post")
		}
		if in.Caller != authorID && in.Caller != pool.OwnerWalletID {
			return apperror.Forbidden(op, "only the winner or the pool owner can record a claim")
		}
		if err := RequireEscrow(pool); err != nil {
			return err
		}
		if pool.Distributed {
			return apperror.StateConflict(op, "pool is already distributed")
		}
		if in.WinnerWallet != authorAddress {
			return apperror.Validation(op, "winner wallet does not match the ranked comment author")
		}
		if !in.Amount.Equal(amount) {
			return apperror.Validation(op, "amount %s does not match ranked amount %s", in.Amount, amount)
		}

		claim, err = scanClaim(tx.QueryRow(ctx, `
			INSERT INTO prize_claims (ranking_id, rank, post_id, winner_wallet, amount, tx_signature)
			VALUES ($1, $2, $3, $4, $5::numeric, $6)
			RETURNING `+claimColumns,
			in.RankingID, rank, in.PostID, in.WinnerWallet, amount.String(), in.TxSignature,
		))
		switch {
		case apperror.IsUniqueViolation(err, "prize_claims_active_ranking_idx"):
			return apperror.StateConflict(op, "rank %d already has an active claim", rank)
		case apperror.IsUniqueViolation(err, "prize_claims_tx_signature_key"):
			return apperror.StateConflict(op, "transaction already recorded")
		case err != nil:
			return apperror.FromDB(op, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordClaimTransition(string(ClaimPending))
	s.log.Info("prize/store: claim recorded",
		"claim_id", claim.ID, "post_id", claim.PostID, "rank", claim.Rank, "amount", claim.Amount)
	return claim, nil
}

// GetClaim returns a claim by ID.
func (s *Store) GetClaim(ctx context.Context, claimID uuid.UUID) (*Claim, error) {
	const op = "prize.GetClaim"
	claim, err := scanClaim(s.cfg.Pool.QueryRow(ctx, `SELECT `+claimColumns+` FROM prize_claims WHERE id = $1`, claimID))
	if err != nil {
		return nil, apperror.FromDB(op, err)
	}
	return claim, nil
}

// ConfirmClaim marks a pending claim confirmed. Confirming twice is a no-op;
// a failed claim cannot be confirmed.
func (s *Store) ConfirmClaim(ctx context.Context, claimID uuid.UUID) (*Claim, error) {
	const op = "prize.ConfirmClaim"

	claim, err := scanClaim(s.cfg.Pool.QueryRow(ctx, `
		UPDATE prize_claims SET
			status = 'confirmed',
			confirmed_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+claimColumns, claimID))
	if err == nil {
		metrics.RecordClaimTransition(string(ClaimConfirmed))
		s.log.Info("prize/store: claim confirmed", "claim_id", claimID, "tx", claim.TxSignature)
		return claim, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.FromDB(op, err)
	}

	claim, err = s.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if claim.Status == ClaimFailed {
		return nil, apperror.StateConflict(op, "claim already failed")
	}
	return claim, nil
}

// FailClaim marks a pending claim failed so the rank can be claimed again.
// Failing twice is a no-op; a confirmed claim cannot fail.
func (s *Store) FailClaim(ctx context.Context, claimID uuid.UUID, reason string) (*Claim, error) {
	const op = "prize.FailClaim"

	claim, err := scanClaim(s.cfg.Pool.QueryRow(ctx, `
		UPDATE prize_claims SET
			status = 'failed',
			failure_reason = NULLIF($2, ''),
			updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+claimColumns, claimID, reason))
	if err == nil {
		metrics.RecordClaimTransition(string(ClaimFailed))
		s.log.Warn("prize/store: claim failed", "claim_id", claimID, "reason", reason)
		return claim, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.FromDB(op, err)
	}

	claim, err = s.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if claim.Status == ClaimConfirmed {
		return nil, apperror.StateConflict(op, "claim already confirmed")
	}
	return claim, nil
}

// MarkPoolDistributed settles a pool once every rank has a confirmed claim.
// Calling it on a settled pool is a no-op.
func (s *Store) MarkPoolDistributed(ctx context.Context, postID uuid.UUID, txSignature string) (*Pool, error) {
	const op = "prize.MarkPoolDistributed"

	if !wallet.ValidTxSignature(txSignature) {
		return nil, apperror.Validation(op, "invalid distribution transaction signature")
	}

	var pool *Pool
	var changed bool
	err := pgx.BeginFunc(ctx, s.cfg.Pool, func(tx pgx.Tx) error {
		var err error
		pool, err = lockPool(ctx, tx, op, `WHERE post_id = $1`, postID)
		if err != nil {
			return err
		}
		if pool.Distributed {
			if pool.Settlement != nil && *pool.Settlement == SettlementSettled {
				return nil
			}
			return apperror.StateConflict(op, "pool was force closed")
		}

		var unpaid int
		err = tx.QueryRow(ctx, `
			SELECT COUNT(*)
			FROM prize_distributions d
			WHERE d.pool_id = $1
			  AND NOT EXISTS (
				SELECT 1 FROM prize_claims c
				WHERE c.post_id = $2 AND c.rank = d.rank AND c.status = 'confirmed'
			  )
		`, pool.ID, postID).Scan(&unpaid)
		if err != nil {
			return apperror.FromDB(op, err)
		}
		if unpaid > 0 {
			return apperror.StateConflict(op, "%d rank(s) have no confirmed claim", unpaid)
		}

		pool, err = closePool(ctx, tx, op, pool.ID, SettlementSettled, txSignature)
		if err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		metrics.RecordPoolSettlement(string(SettlementSettled))
		s.log.Info("prize/store: pool distributed", "pool_id", pool.ID, "post_id", postID, "tx", txSignature)
	}
	return s.withDistribution(ctx, op, pool)
}

// ForceClosePool lets the owner close a pool without paying every rank.
// The pool is marked distributed but recorded as force closed.
func (s *Store) ForceClosePool(ctx context.Context, postID, caller uuid.UUID, txSignature string) (*Pool, error) {
	const op = "prize.ForceClosePool"

	if txSignature != "" && !wallet.ValidTxSignature(txSignature) {
		return nil, apperror.Validation(op, "invalid transaction signature")
	}

	var pool *Pool
	var changed bool
	err := pgx.BeginFunc(ctx, s.cfg.Pool, func(tx pgx.Tx) error {
		var err error
		pool, err = lockPool(ctx, tx, op, `WHERE post_id = $1`, postID)
		if err != nil {
			return err
		}
		if err := requireOwner(op, pool, caller); err != nil {
			return err
		}
		if pool.Distributed {
			if pool.Settlement != nil && *pool.Settlement == SettlementForceClosed {
				return nil
			}
			return apperror.StateConflict(op, "pool is already settled")
		}

		pool, err = closePool(ctx, tx, op, pool.ID, SettlementForceClosed, txSignature)
		if err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		metrics.RecordPoolSettlement(string(SettlementForceClosed))
		s.log.Warn("prize/store: pool force closed", "pool_id", pool.ID, "post_id", postID)
	}
	return s.withDistribution(ctx, op, pool)
}

func closePool(ctx context.Context, tx pgx.Tx, op string, poolID uuid.UUID, settlement Settlement, txSignature string) (*Pool, error) {
	pool, err := scanPool(tx.QueryRow(ctx, `
		UPDATE prize_pools SET
			distributed = TRUE,
			settlement = $2,
			distribute_tx = NULLIF($3, ''),
			distributed_at = NOW(),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+poolColumns,
		poolID, string(settlement), txSignature,
	))
	if err != nil {
		return nil, apperror.FromDB(op, err)
	}
	return pool, nil
}

func (s *Store) withDistribution(ctx context.Context, op string, pool *Pool) (*Pool, error) {
	entries, err := loadDistribution(ctx, s.cfg.Pool, pool.ID)
	if err != nil {
		return nil, apperror.FromDB(op, err)
	}
	pool.Distribution = entries
	return pool, nil
}

// ListClaimsByWallet returns a page of claims paid to address, newest first,
// and the total number of such claims.
func (s *Store) ListClaimsByWallet(ctx context.Context, address string, limit, offset int) ([]Claim, int, error) {
	const op = "prize.ListClaimsByWallet"

	type page struct {
		claims []Claim
		total  int
	}
	p, err := dberror.Retry(ctx, s.cfg.ReadRetry, func() (page, error) {
		var total int
		if err := s.cfg.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM prize_claims WHERE winner_wallet = $1`, address).Scan(&total); err != nil {
			return page{}, err
		}
		rows, err := s.cfg.Pool.Query(ctx, `
			SELECT `+claimColumns+`
			FROM prize_claims
			WHERE winner_wallet = $1
			ORDER BY created_at DESC, id
			LIMIT $2 OFFSET $3
		`, address, limit, offset)
		if err != nil {
			return page{}, err
		}
		claims, err := collectClaims(rows)
		return page{claims: claims, total: total}, err
	})
	if err != nil {
		return nil, 0, apperror.FromDB(op, err)
	}
	return p.claims, p.total, nil
}

// ListClaimsByPost returns every claim recorded against a post's pool.
func (s *Store) ListClaimsByPost(ctx context.Context, postID uuid.UUID) ([]Claim, error) {
	const op = "prize.ListClaimsByPost"
	claims, err := dberror.Retry(ctx, s.cfg.ReadRetry, func() ([]Claim, error) {
		rows, err := s.cfg.Pool.Query(ctx, `
			SELECT `+claimColumns+`
			FROM prize_claims
			WHERE post_id = $1
			ORDER BY rank, created_at
		`, postID)
		if err != nil {
			return nil, err
		}
		return collectClaims(rows)
	})
	if err != nil {
		return nil, apperror.FromDB(op, err)
	}
	return claims, nil
}

// PendingClaims returns the oldest pending claims for the settlement watcher.
func (s *Store) PendingClaims(ctx context.Context, limit int) ([]Claim, error) {
	const op = "prize.PendingClaims"
	rows, err := s.cfg.Pool.Query(ctx, `
		SELECT `+claimColumns+`
		FROM prize_claims
		WHERE status = 'pending'
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, apperror.FromDB(op, err)
	}
	claims, err := collectClaims(rows)
	if err != nil {
		return nil, apperror.FromDB(op, err)
	}
	return claims, nil
}
