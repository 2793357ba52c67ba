package prize

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lilzahs/gimme-idea/api/apperror"
	"github.com/lilzahs/gimme-idea/api/handlers/dberror"
)

// Stats summarizes the payouts of one pool. Only confirmed claims count as
// distributed.
type Stats struct {
	TotalDistributed decimal.Decimal `json:"total_distributed"`
	ClaimCount       int             `json:"claim_count"`
	ConfirmedCount   int             `json:"confirmed_count"`
	PendingCount     int             `json:"pending_count"`
	FailedCount      int             `json:"failed_count"`
}

func (s *Store) PoolStats(ctx context.Context, postID uuid.UUID) (*Stats, error) {
	const op = "prize.PoolStats"
	stats, err := dberror.Retry(ctx, s.cfg.ReadRetry, func() (*Stats, error) {
		var st Stats
		err := s.cfg.Pool.QueryRow(ctx, `
			SELECT
				COALESCE(SUM(amount) FILTER (WHERE status = 'confirmed'), 0),
				COUNT(*),
				COUNT(*) FILTER (WHERE status = 'confirmed'),
				COUNT(*) FILTER (WHERE status = 'pending'),
				COUNT(*) FILTER (WHERE status = 'failed')
			FROM prize_claims
			WHERE post_id = $1
		`, postID).Scan(&st.TotalDistributed, &st.ClaimCount, &st.ConfirmedCount, &st.PendingCount, &st.FailedCount)
		if err != nil {
			return nil, err
		}
		return &st, nil
	})
	if err != nil {
		return nil, apperror.FromDB(op, err)
	}
	return stats, nil
}
