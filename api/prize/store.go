package prize

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/lilzahs/gimme-idea/api/apperror"
	"github.com/lilzahs/gimme-idea/api/handlers/dberror"
)

// Settlement records how a distributed pool was closed.
type Settlement string

const (
	SettlementSettled     Settlement = "settled"
	SettlementForceClosed Settlement = "force_closed"
)

// Pool is a prize pool attached to a post.
type Pool struct {
	ID             uuid.UUID           `json:"id"`
	PostID         uuid.UUID           `json:"post_id"`
	OwnerWalletID  uuid.UUID           `json:"owner_wallet_id"`
	TotalAmount    decimal.Decimal     `json:"total_amount"`
	WinnersCount   int                 `json:"winners_count"`
	SplitKind      string              `json:"split_kind"`
	Percentages    []decimal.Decimal   `json:"percentages,omitempty"`
	EndsAt         time.Time           `json:"ends_at"`
	EscrowLocked   bool                `json:"escrow_locked"`
	EscrowTx       *string             `json:"escrow_tx,omitempty"`
	EscrowLockedAt *time.Time          `json:"escrow_locked_at,omitempty"`
	Distributed    bool                `json:"distributed"`
	DistributeTx   *string             `json:"distribute_tx,omitempty"`
	Settlement     *Settlement         `json:"settlement,omitempty"`
	DistributedAt  *time.Time          `json:"distributed_at,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	Distribution   []DistributionEntry `json:"distribution"`
}

// PoolInput describes a new pool.
type PoolInput struct {
	PostID        uuid.UUID
	OwnerWalletID uuid.UUID
	Total         decimal.Decimal
	Split         Split
	EndsAt        time.Time
}

type StoreConfig struct {
	Logger *slog.Logger
	Pool   *pgxpool.Pool

	// ReadRetry governs retries of read-only queries. Zero means dberror.DefaultRetryConfig.
	ReadRetry dberror.RetryConfig
}

func (cfg *StoreConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Pool == nil {
		return errors.New("postgres pool is required")
	}
	if cfg.ReadRetry.MaxAttempts == 0 {
		cfg.ReadRetry = dberror.DefaultRetryConfig()
	}
	return nil
}

type Store struct {
	log *slog.Logger
	cfg StoreConfig
}

func NewStore(cfg StoreConfig) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Store{
		log: cfg.Logger,
		cfg: cfg,
	}, nil
}

const poolColumns = `id, post_id, owner_wallet_id, total_amount, winners_count, split_kind,
	percentages::text[], ends_at, escrow_locked, escrow_tx, escrow_locked_at,
	distributed, distribute_tx, settlement, distributed_at, created_at, updated_at`

func scanPool(row pgx.Row) (*Pool, error) {
	var p Pool
	var pcts []string
	var settlement *string
	err := row.Scan(
		&p.ID, &p.PostID, &p.OwnerWalletID, &p.TotalAmount, &p.WinnersCount, &p.SplitKind,
		&pcts, &p.EndsAt, &p.EscrowLocked, &p.EscrowTx, &p.EscrowLockedAt,
		&p.Distributed, &p.DistributeTx, &settlement, &p.DistributedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if settlement != nil {
		s := Settlement(*settlement)
		p.Settlement = &s
	}
	for _, s := range pcts {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, err
		}
		p.Percentages = append(p.Percentages, d)
	}
	return &p, nil
}

func percentageStrings(split Split) []string {
	custom, ok := split.(CustomSplit)
	if !ok {
		return nil
	}
	out := make([]string, len(custom.Percentages))
	for i, p := range custom.Percentages {
		out[i] = p.String()
	}
	return out
}

// CreatePool creates a pool and its distribution template atomically.
func (s *Store) CreatePool(ctx context.Context, in PoolInput) (*Pool, error) {
	var pool *Pool
	err := pgx.BeginFunc(ctx, s.cfg.Pool, func(tx pgx.Tx) error {
		var err error
		pool, err = s.CreatePoolTx(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// CreatePoolTx creates a pool inside the caller's transaction. The owner
// must be the author of the post.
func (s *Store) CreatePoolTx(ctx context.Context, tx pgx.Tx, in PoolInput) (*Pool, error) {
	const op = "prize.CreatePool"

	if in.EndsAt.IsZero() {
		return nil, apperror.Validation(op, "ends_at is required")
	}
	entries, err := ComputeDistribution(in.Total, in.Split, AmountScale)
	if err != nil {
		return nil, err
	}

	var author uuid.UUID
	err = tx.QueryRow(ctx, `SELECT wallet_id FROM posts WHERE id = $1`, in.PostID).Scan(&author)
	if err != nil {
		return nil, apperror.FromDB(op, err)
	}
	if author != in.OwnerWalletID {
		return nil, apperror.Forbidden(op, "only the post author can attach a prize pool")
	}

	pool, err := scanPool(tx.QueryRow(ctx, `
		INSERT INTO prize_pools (post_id, owner_wallet_id, total_amount, winners_count, split_kind, percentages, ends_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6::text[]::numeric[], $7)
		RETURNING `+poolColumns,
		in.PostID, in.OwnerWalletID, in.Total.String(), len(entries), in.Split.Kind(),
		percentageStrings(in.Split), in.EndsAt,
	))
	if err != nil {
		if apperror.IsUniqueViolation(err, "prize_pools_post_id_key") {
			return nil, apperror.StateConflict(op, "post already has a prize pool")
		}
		return nil, apperror.FromDB(op, err)
	}

	if err := insertDistribution(ctx, tx, pool.ID, entries); err != nil {
		return nil, apperror.FromDB(op, err)
	}
	pool.Distribution = entries

	s.log.Info("prize/store: pool created",
		"pool_id", pool.ID, "post_id", pool.PostID, "total", pool.TotalAmount, "winners", len(entries))
	return pool, nil
}

func insertDistribution(ctx context.Context, tx pgx.Tx, poolID uuid.UUID, entries []DistributionEntry) error {
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO prize_distributions (pool_id, rank, amount)
			VALUES ($1, $2, $3::numeric)
		`, poolID, e.Rank, e.Amount.String())
	}
	return tx.SendBatch(ctx, batch).Close()
}

func loadDistribution(ctx context.Context, q querier, poolID uuid.UUID) ([]DistributionEntry, error) {
	rows, err := q.Query(ctx, `
		SELECT rank, amount FROM prize_distributions
		WHERE pool_id = $1
		ORDER BY rank
	`, poolID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (DistributionEntry, error) {
		var e DistributionEntry
		err := row.Scan(&e.Rank, &e.Amount)
		return e, err
	})
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GetPool returns a pool with its distribution template.
func (s *Store) GetPool(ctx context.Context, poolID uuid.UUID) (*Pool, error) {
	return s.getPool(ctx, "prize.GetPool", `WHERE id = $1`, poolID)
}

// GetPoolByPost returns the pool attached to a post.
func (s *Store) GetPoolByPost(ctx context.Context, postID uuid.UUID) (*Pool, error) {
	return s.getPool(ctx, "prize.GetPoolByPost", `WHERE post_id = $1`, postID)
}

func (s *Store) getPool(ctx context.Context, op, where string, arg uuid.UUID) (*Pool, error) {
	pool, err := dberror.Retry(ctx, s.cfg.ReadRetry, func() (*Pool, error) {
		pool, err := scanPool(s.cfg.Pool.QueryRow(ctx, `SELECT `+poolColumns+` FROM prize_pools `+where, arg))
		if err != nil {
			return nil, err
		}
		pool.Distribution, err = loadDistribution(ctx, s.cfg.Pool, pool.ID)
		if err != nil {
			return nil, err
		}
		return pool, nil
	})
	if err != nil {
		return nil, apperror.FromDB(op, err)
	}
	return pool, nil
}

// lockPool loads a pool row FOR UPDATE inside tx.
func lockPool(ctx context.Context, tx pgx.Tx, op, where string, arg uuid.UUID) (*Pool, error) {
	pool, err := scanPool(tx.QueryRow(ctx, `SELECT `+poolColumns+` FROM prize_pools `+where+` FOR UPDATE`, arg))
	if err != nil {
		return nil, apperror.FromDB(op, err)
	}
	return pool, nil
}

func requireOwner(op string, pool *Pool, caller uuid.UUID) error {
	if pool.OwnerWalletID != caller {
		return apperror.Forbidden(op, "only the pool owner can do this")
	}
	return nil
}

// RegenerateDistribution replaces the distribution template of a pool that
// has no rankings yet.
func (s *Store) RegenerateDistribution(ctx context.Context, poolID, caller uuid.UUID, split Split) (*Pool, error) {
	const op = "prize.RegenerateDistribution"

	var pool *Pool
	err := pgx.BeginFunc(ctx, s.cfg.Pool, func(tx pgx.Tx) error {
		var err error
		pool, err = lockPool(ctx, tx, op, `WHERE id = $1`, poolID)
		if err != nil {
			return err
		}
		if err := requireOwner(op, pool, caller); err != nil {
			return err
		}
		if pool.Distributed {
			return apperror.StateConflict(op, "pool is already distributed")
		}

		var ranked bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM rankings WHERE pool_id = $1)`, poolID).Scan(&ranked); err != nil {
			return apperror.FromDB(op, err)
		}
		if ranked {
			return apperror.StateConflict(op, "cannot change distribution after rankings are assigned")
		}

		entries, err := ComputeDistribution(pool.TotalAmount, split, AmountScale)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM prize_distributions WHERE pool_id = $1`, poolID); err != nil {
			return apperror.FromDB(op, err)
		}
		if err := insertDistribution(ctx, tx, poolID, entries); err != nil {
			return apperror.FromDB(op, err)
		}

		pool, err = scanPool(tx.QueryRow(ctx, `
			UPDATE prize_pools SET
				winners_count = $2,
				split_kind = $3,
				percentages = $4::text[]::numeric[],
				updated_at = NOW()
			WHERE id = $1
			RETURNING `+poolColumns,
			poolID, len(entries), split.Kind(), percentageStrings(split),
		))
		if err != nil {
			return apperror.FromDB(op, err)
		}
		pool.Distribution = entries
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("prize/store: distribution regenerated", "pool_id", poolID, "winners", pool.WinnersCount, "split", pool.SplitKind)
	return pool, nil
}
