// Package feed writes the posts, comments and tips that prize pools hang off,
// keeping wallet counters in step with each write.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/lilzahs/gimme-idea/api/apperror"
	"github.com/lilzahs/gimme-idea/api/prize"
	"github.com/lilzahs/gimme-idea/api/wallet"
)

const (
	MaxTitleLength   = 200
	MaxContentLength = 5000
)

type Post struct {
	ID          uuid.UUID   `json:"id"`
	WalletID    uuid.UUID   `json:"wallet_id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	CreatedAt   time.Time   `json:"created_at"`
	PrizePool   *prize.Pool `json:"prize_pool,omitempty"`
}

type Comment struct {
	ID        uuid.UUID `json:"id"`
	PostID    uuid.UUID `json:"post_id"`
	WalletID  uuid.UUID `json:"wallet_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type Tip struct {
	ID           uuid.UUID       `json:"id"`
	FromWalletID uuid.UUID       `json:"from_wallet_id"`
	ToWalletID   uuid.UUID       `json:"to_wallet_id"`
	PostID       *uuid.UUID      `json:"post_id,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	TxSignature  string          `json:"tx_signature"`
	CreatedAt    time.Time       `json:"created_at"`
}

// PrizeInput attaches a prize pool to a new post.
type PrizeInput struct {
	Total  decimal.Decimal
	Split  prize.Split
	EndsAt time.Time
}

type PostInput struct {
	WalletID    uuid.UUID
	Title       string
	Description string
	Prize       *PrizeInput
}

type TipInput struct {
	FromWalletID uuid.UUID
	ToAddress    string
	PostID       *uuid.UUID
	Amount       decimal.Decimal
	TxSignature  string
}

type StoreConfig struct {
	Logger *slog.Logger
	Pool   *pgxpool.Pool
	Prizes *prize.Store
}

func (cfg *StoreConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Pool == nil {
		return errors.New("postgres pool is required")
	}
	if cfg.Prizes == nil {
		return errors.New("prize store is required")
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

// CreatePost inserts a post, bumps the author's post count and, when
// requested, creates its prize pool, all in one transaction.
func (s *Store) CreatePost(ctx context.Context, in PostInput) (*Post, error) {
	const op = "feed.CreatePost"

	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, apperror.Validation(op, "title is required")
	}
	if len(in.Title) > MaxTitleLength {
		return nil, apperror.Validation(op, "title is longer than %d characters", MaxTitleLength)
	}
	if len(in.Description) > MaxContentLength {
		return nil, apperror.Validation(op, "description is longer than %d characters", MaxContentLength)
	}

	var post Post
	err := pgx.BeginFunc(ctx, s.cfg.Pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO posts (wallet_id, title, description)
			VALUES ($1, $2, $3)
			RETURNING id, wallet_id, title, description, created_at
		`, in.WalletID, in.Title, in.Description).Scan(
			&post.ID, &post.WalletID, &post.Title, &post.Description, &post.CreatedAt,
		)
		if err != nil {
			return apperror.FromDB(op, err)
		}

		if err := wallet.ApplyCounters(ctx, tx, in.WalletID, wallet.CounterDelta{Posts: 1}); err != nil {
			return err
		}

		if in.Prize != nil {
			post.PrizePool, err = s.cfg.Prizes.CreatePoolTx(ctx, tx, prize.PoolInput{
				PostID:        post.ID,
				OwnerWalletID: in.WalletID,
				Total:         in.Prize.Total,
				Split:         in.Prize.Split,
				EndsAt:        in.Prize.EndsAt,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("feed/store: post created", "post_id", post.ID, "wallet_id", post.WalletID, "prize", post.PrizePool != nil)
	return &post, nil
}

// AddComment adds feedback to a post.
func (s *Store) AddComment(ctx context.Context, postID, walletID uuid.UUID, content string) (*Comment, error) {
	const op = "feed.AddComment"

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperror.Validation(op, "content is required")
	}
	if len(content) > MaxContentLength {
		return nil, apperror.Validation(op, "content is longer than %d characters", MaxContentLength)
	}

	var c Comment
	err := s.cfg.Pool.QueryRow(ctx, `
		INSERT INTO comments (post_id, wallet_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, post_id, wallet_id, content, created_at
	`, postID, walletID, content).Scan(&c.ID, &c.PostID, &c.WalletID, &c.Content, &c.CreatedAt)
	if err != nil {
		dbErr := apperror.FromDB(op, err)
		if apperror.Is(dbErr, apperror.KindValidation) {
			return nil, apperror.NotFound(op, "post %s not found", postID)
		}
		return nil, dbErr
	}

	s.log.Debug("feed/store: comment added", "comment_id", c.ID, "post_id", postID)
	return &c, nil
}

// RecordTip stores a confirmed tip transaction and moves both wallets'
// tip totals in the same transaction.
func (s *Store) RecordTip(ctx context.Context, in TipInput) (*Tip, error) {
	const op = "feed.RecordTip"

	if !in.Amount.IsPositive() {
		return nil, apperror.Validation(op, "tip amount must be positive")
	}
	if !in.Amount.Equal(in.Amount.Truncate(prize.AmountScale)) {
		return nil, apperror.Validation(op, "tip amount has more than %d decimal places", prize.AmountScale)
	}
	if !wallet.ValidAddress(in.ToAddress) {
		return nil, apperror.Validation(op, "invalid recipient address")
	}
	if !wallet.ValidTxSignature(in.TxSignature) {
		return nil, apperror.Validation(op, "invalid tip transaction signature")
	}

	var tip Tip
	err := pgx.BeginFunc(ctx, s.cfg.Pool, func(tx pgx.Tx) error {
		var toID uuid.UUID
		err := tx.QueryRow(ctx, `
			INSERT INTO wallets (address)
			VALUES ($1)
			ON CONFLICT (address) DO UPDATE SET updated_at = NOW()
			RETURNING id
		`, in.ToAddress).Scan(&toID)
		if err != nil {
			return apperror.FromDB(op, err)
		}
		if toID == in.FromWalletID {
			return apperror.Validation(op, "cannot tip yourself")
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO tips (from_wallet_id, to_wallet_id, post_id, amount, tx_signature)
			VALUES ($1, $2, $3, $4::numeric, $5)
			RETURNING id, from_wallet_id, to_wallet_id, post_id, amount, tx_signature, created_at
		`, in.FromWalletID, toID, in.PostID, in.Amount.String(), in.TxSignature).Scan(
			&tip.ID, &tip.FromWalletID, &tip.ToWalletID, &tip.PostID, &tip.Amount, &tip.TxSignature, &tip.CreatedAt,
		)
		if err != nil {
			if apperror.IsUniqueViolation(err, "tips_tx_signature_key") {
				return apperror.StateConflict(op, "tip transaction already recorded")
			}
			return apperror.FromDB(op, err)
		}

		if err := wallet.ApplyCounters(ctx, tx, in.FromWalletID, wallet.CounterDelta{TipsGiven: in.Amount}); err != nil {
			return err
		}
		return wallet.ApplyCounters(ctx, tx, toID, wallet.CounterDelta{TipsReceived: in.Amount})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("feed/store: tip recorded", "tip_id", tip.ID, "amount", tip.Amount, "tx", tip.TxSignature)
	return &tip, nil
}
