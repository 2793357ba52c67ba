package prize

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lilzahs/gimme-idea/api/apperror"
	"github.com/lilzahs/gimme-idea/api/wallet"
)

// ErrEscrowNotLocked is returned when an action needs funds in escrow first.
var ErrEscrowNotLocked = &apperror.Error{Kind: apperror.KindStateConflict, Msg: "escrow not locked"}

// CanRank reports whether a pool's funds are secured.
func CanRank(pool *Pool) bool {
	return pool != nil && pool.EscrowLocked
}

// RequireEscrow is the single gate every ranking and claim path goes through.
func RequireEscrow(pool *Pool) error {
	if !CanRank(pool) {
		return ErrEscrowNotLocked
	}
	return nil
}

// LockEscrow records the transaction that moved the pool total into escrow.
// Repeating the call with the same signature is a no-op.
func (s *Store) LockEscrow(ctx context.Context, poolID, caller uuid.UUID, txSignature string) (*Pool, error) {
	const op = "prize.LockEscrow"

	if !wallet.ValidTxSignature(txSignature) {
		return nil, apperror.Validation(op, "invalid escrow transaction signature")
	}

	var pool *Pool
	var changed bool
	err := pgx.BeginFunc(ctx, s.cfg.Pool, func(tx pgx.Tx) error {
		var err error
		pool, err = lockPool(ctx, tx, op, `WHERE id = $1`, poolID)
		if err != nil {
			return err
		}
		if err := requireOwner(op, pool, caller); err != nil {
			return err
		}
		if pool.EscrowLocked {
			if pool.EscrowTx != nil && *pool.EscrowTx == txSignature {
				return nil
			}
			return apperror.StateConflict(op, "escrow already locked with a different transaction")
		}
		if pool.Distributed {
			return apperror.StateConflict(op, "pool is already closed")
		}

		pool, err = scanPool(tx.QueryRow(ctx, `
			UPDATE prize_pools SET
				escrow_locked = TRUE,
				escrow_tx = $2,
				escrow_locked_at = NOW(),
				updated_at = NOW()
			WHERE id = $1
			RETURNING `+poolColumns,
			poolID, txSignature,
		))
		if err != nil {
			return apperror.FromDB(op, err)
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	pool.Distribution, err = loadDistribution(ctx, s.cfg.Pool, pool.ID)
	if err != nil {
		return nil, apperror.FromDB(op, err)
	}
	if changed {
		s.log.Info("prize/store: escrow locked", "pool_id", poolID, "tx", txSignature)
	}
	return pool, nil
}
