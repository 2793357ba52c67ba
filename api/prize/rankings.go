package prize

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/lilzahs/gimme-idea/api/apperror"
	"github.com/lilzahs/gimme-idea/api/handlers/dberror"
	"github.com/lilzahs/gimme-idea/api/metrics"
)

// RankInput places one comment at one rank.
type RankInput struct {
	CommentID uuid.UUID `json:"comment_id"`
	Rank      int       `json:"rank"`
}

// Ranking is a comment placed at a paid rank.
type Ranking struct {
	ID        uuid.UUID       `json:"id"`
	PoolID    uuid.UUID       `json:"pool_id"`
	CommentID uuid.UUID       `json:"comment_id"`
	Rank      int             `json:"rank"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// AssignRankings replaces the full ranking set of a pool. Either every
// input is stored or the previous set stays untouched. An empty input
// clears the rankings.
func (s *Store) AssignRankings(ctx context.Context, poolID, caller uuid.UUID, inputs []RankInput) ([]Ranking, error) {
	const op = "prize.AssignRankings"

	var out []Ranking
	err := pgx.BeginFunc(ctx, s.cfg.Pool, func(tx pgx.Tx) error {
		pool, err := lockPool(ctx, tx, op, `WHERE id = $1`, poolID)
		if err != nil {
			return err
		}
		if err := requireOwner(op, pool, caller); err != nil {
			return err
		}
		if err := RequireEscrow(pool); err != nil {
			return err
		}
		if pool.Distributed {
			return apperror.StateConflict(op, "pool is already distributed")
		}

		var claimed bool
		err = tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM prize_claims WHERE post_id = $1 AND status <> 'failed')
		`, pool.PostID).Scan(&claimed)
		if err != nil {
			return apperror.FromDB(op, err)
		}
		if claimed {
			return apperror.StateConflict(op, "rankings are pinned by an active claim")
		}

		template, err := loadDistribution(ctx, tx, poolID)
		if err != nil {
			return apperror.FromDB(op, err)
		}
		if err := validateRankInputs(ctx, tx, op, pool.PostID, template, inputs); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM rankings WHERE pool_id = $1`, poolID); err != nil {
			return apperror.FromDB(op, err)
		}

		out = make([]Ranking, 0, len(inputs))
		for _, in := range inputs {
			r := Ranking{PoolID: poolID, CommentID: in.CommentID, Rank: in.Rank}
			err := tx.QueryRow(ctx, `
				INSERT INTO rankings (pool_id, comment_id, rank, amount)
				SELECT pool_id, $2, rank, amount
				FROM prize_distributions
				WHERE pool_id = $1 AND rank = $3
				RETURNING id, amount, created_at
			`, poolID, in.CommentID, in.Rank).Scan(&r.ID, &r.Amount, &r.CreatedAt)
			if err != nil {
				return apperror.FromDB(op, err)
			}
			out = append(out, r)
		}
		return nil
	})
	metrics.RecordRankingAssignment(err)
	if err != nil {
		return nil, err
	}

	sortRankings(out)
	s.log.Info("prize/store: rankings replaced", "pool_id", poolID, "count", len(out))
	return out, nil
}

func validateRankInputs(ctx context.Context, tx pgx.Tx, op string, postID uuid.UUID, template []DistributionEntry, inputs []RankInput) error {
	ranks := make(map[int]bool, len(template))
	for _, e := range template {
		ranks[e.Rank] = true
	}

	seenRanks := make(map[int]bool, len(inputs))
	seenComments := make(map[uuid.UUID]bool, len(inputs))
	for _, in := range inputs {
		if !ranks[in.Rank] {
			return apperror.Validation(op, "rank %d is not in the distribution", in.Rank)
		}
		if seenRanks[in.Rank] {
			return apperror.Validation(op, "rank %d assigned more than once", in.Rank)
		}
		if seenComments[in.CommentID] {
			return apperror.Validation(op, "comment %s ranked more than once", in.CommentID)
		}
		seenRanks[in.Rank] = true
		seenComments[in.CommentID] = true

		var commentPost uuid.UUID
		err := tx.QueryRow(ctx, `SELECT post_id FROM comments WHERE id = $1`, in.CommentID).Scan(&commentPost)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperror.Validation(op, "comment %s does not exist", in.CommentID)
		}
		if err != nil {
			return apperror.FromDB(op, err)
		}
		if commentPost != postID {
			return apperror.Validation(op, "comment %s does not belong to this post", in.CommentID)
		}
	}
	return nil
}

// Rankings returns the current ranking set of a pool ordered by rank.
func (s *Store) Rankings(ctx context.Context, poolID uuid.UUID) ([]Ranking, error) {
	const op = "prize.Rankings"
	out, err := dberror.Retry(ctx, s.cfg.ReadRetry, func() ([]Ranking, error) {
		rows, err := s.cfg.Pool.Query(ctx, `
			SELECT id, pool_id, comment_id, rank, amount, created_at
			FROM rankings
			WHERE pool_id = $1
			ORDER BY rank
		`, poolID)
		if err != nil {
			return nil, err
		}
		return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Ranking, error) {
			var r Ranking
			err := row.Scan(&r.ID, &r.PoolID, &r.CommentID, &r.Rank, &r.Amount, &r.CreatedAt)
			return r, err
		})
	})
	if err != nil {
		return nil, apperror.FromDB(op, err)
	}
	return out, nil
}

func sortRankings(rs []Ranking) {
	slices.SortFunc(rs, func(a, b Ranking) int { return a.Rank - b.Rank })
}
