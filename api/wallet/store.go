package wallet

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/lilzahs/gimme-idea/api/apperror"
)

// Wallet types reported by clients on connect.
const (
	TypeUnknown  = "unknown"
	TypePhantom  = "phantom"
	TypeSolflare = "solflare"
	TypeBackpack = "backpack"
)

// Wallet is the identity behind a Solana address.
type Wallet struct {
	ID           uuid.UUID       `json:"id"`
	Address      string          `json:"address"`
	Type         string          `json:"type"`
	PostsCount   int             `json:"posts_count"`
	TipsReceived decimal.Decimal `json:"tips_received"`
	TipsGiven    decimal.Decimal `json:"tips_given"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	LastActiveAt time.Time       `json:"last_active_at"`
}

// CounterDelta is applied to a wallet's denormalized counters.
type CounterDelta struct {
	Posts        int
	TipsReceived decimal.Decimal
	TipsGiven    decimal.Decimal
}

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type StoreConfig struct {
	Logger *slog.Logger
	Pool   *pgxpool.Pool
}

func (cfg *StoreConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Pool == nil {
		return errors.New("postgres pool is required")
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

const walletColumns = `id, address, type, posts_count, tips_received, tips_given,
	created_at, updated_at, last_active_at`

func scanWallet(row pgx.Row) (*Wallet, error) {
	var w Wallet
	err := row.Scan(
		&w.ID, &w.Address, &w.Type, &w.PostsCount, &w.TipsReceived, &w.TipsGiven,
		&w.CreatedAt, &w.UpdatedAt, &w.LastActiveAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Resolve returns the wallet for address, creating it on first sight.
// Concurrent calls for the same new address yield exactly one row.
func (s *Store) Resolve(ctx context.Context, address string) (*Wallet, error) {
	const op = "wallet.Resolve"
	if !ValidAddress(address) {
		return nil, apperror.Validation(op, "invalid wallet address")
	}

	w, err := scanWallet(s.cfg.Pool.QueryRow(ctx, `
		INSERT INTO wallets (address)
		VALUES ($1)
		ON CONFLICT (address) DO UPDATE SET
			updated_at = NOW(),
			last_active_at = NOW()
		RETURNING `+walletColumns, address))
	if err != nil {
		return nil, apperror.FromDB(op, err)
	}
	return w, nil
}

// Connect is Resolve that also records the client's wallet type.
func (s *Store) Connect(ctx context.Context, address, walletType string) (*Wallet, error) {
	const op = "wallet.Connect"
	if !ValidAddress(address) {
		return nil, apperror.Validation(op, "invalid wallet address")
	}
	if walletType == "" {
		walletType = TypeUnknown
	}

	w, err := scanWallet(s.cfg.Pool.QueryRow(ctx, `
		INSERT INTO wallets (address, type)
		VALUES ($1, $2)
		ON CONFLICT (address) DO UPDATE SET
			type = EXCLUDED.type,
			updated_at = NOW(),
			last_active_at = NOW()
		RETURNING `+walletColumns, address, walletType))
	if err != nil {
		return nil, apperror.FromDB(op, err)
	}
	s.log.Debug("wallet/store: connected", "address", address, "type", walletType)
	return w, nil
}

// Lookup reads a wallet by address without creating or touching it.
func (s *Store) Lookup(ctx context.Context, address string) (*Wallet, error) {
	const op = "wallet.Lookup"
	if !ValidAddress(address) {
		return nil, apperror.Validation(op, "invalid wallet address")
	}
	w, err := scanWallet(s.cfg.Pool.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE address = $1`, address))
	if err != nil {
		return nil, apperror.FromDB(op, err)
	}
	return w, nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Wallet, error) {
	const op = "wallet.Get"
	w, err := scanWallet(s.cfg.Pool.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id))
	if err != nil {
		return nil, apperror.FromDB(op, err)
	}
	return w, nil
}

// ApplyCounters adjusts counters inside the caller's transaction so they
// move together with the row that caused the change.
func ApplyCounters(ctx context.Context, q Querier, walletID uuid.UUID, d CounterDelta) error {
	const op = "wallet.ApplyCounters"
	tag, err := q.Exec(ctx, `
		UPDATE wallets SET
			posts_count = posts_count + $2,
			tips_received = tips_received + $3::numeric,
			tips_given = tips_given + $4::numeric,
			updated_at = NOW()
		WHERE id = $1
	`, walletID, d.Posts, d.TipsReceived.String(), d.TipsGiven.String())
	if err != nil {
		return apperror.FromDB(op, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound(op, "wallet %s not found", walletID)
	}
	return nil
}
