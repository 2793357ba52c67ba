package prize

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/lilzahs/gimme-idea/api/apperror"
	"github.com/lilzahs/gimme-idea/api/handlers/dberror"
)

// Winner is who gets paid what for a rank.
type Winner struct {
	Rank          int             `json:"rank"`
	RankingID     uuid.UUID       `json:"ranking_id"`
	CommentID     uuid.UUID       `json:"comment_id"`
	WalletAddress string          `json:"wallet_address"`
	Amount        decimal.Decimal `json:"amount"`
}

// Winners resolves the ranked comments of a pool to their authors' wallets.
func (s *Store) Winners(ctx context.Context, poolID uuid.UUID) ([]Winner, error) {
	const op = "prize.Winners"
	out, err := dberror.Retry(ctx, s.cfg.ReadRetry, func() ([]Winner, error) {
		rows, err := s.cfg.Pool.Query(ctx, `
			SELECT r.rank, r.id, r.comment_id, w.address, r.amount
			FROM rankings r
			JOIN comments c ON c.id = r.comment_id
			JOIN wallets w ON w.id = c.wallet_id
			WHERE r.pool_id = $1
			ORDER BY r.rank
		`, poolID)
		if err != nil {
			return nil, err
		}
		return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Winner, error) {
			var w Winner
			err := row.Scan(&w.Rank, &w.RankingID, &w.CommentID, &w.WalletAddress, &w.Amount)
			return w, err
		})
	})
	if err != nil {
		return nil, apperror.FromDB(op, err)
	}
	return out, nil
}
