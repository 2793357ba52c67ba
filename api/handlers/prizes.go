package handlers

import (
	"net/http"

	"github.com/lilzahs/gimme-idea/api/apperror"
	"github.com/lilzahs/gimme-idea/api/prize"
)

func (a *API) GetPrizePool(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.withTimeout(r)
	defer cancel()

	poolID, err := uuidParam(r, "poolID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	pool, err := a.cfg.Prizes.GetPool(ctx, poolID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pool)
}

// PostDistribution replaces an unranked pool's distribution template.
func (a *API) PostDistribution(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.withTimeout(r)
	defer cancel()

	poolID, err := uuidParam(r, "poolID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req SplitRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	pool, err := a.cfg.Prizes.RegenerateDistribution(ctx, poolID, IdentityFromContext(ctx).Wallet.ID, req.split())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pool)
}

type TxSignatureRequest struct {
	TxSignature string `json:"tx_signature"`
}

// PostEscrow records the transaction that funded the pool's escrow.
func (a *API) PostEscrow(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.withTimeout(r)
	defer cancel()

	poolID, err := uuidParam(r, "poolID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req TxSignatureRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	pool, err := a.cfg.Prizes.LockEscrow(ctx, poolID, IdentityFromContext(ctx).Wallet.ID, req.TxSignature)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pool)
}

// RankingsRequest is the body for PUT /prizes/{poolID}/rankings. An empty
// list clears the rankings.
type RankingsRequest struct {
	Rankings []prize.RankInput `json:"rankings"`
}

func (a *API) PutRankings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.withTimeout(r)
	defer cancel()

	poolID, err := uuidParam(r, "poolID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req RankingsRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	rankings, err := a.cfg.Prizes.AssignRankings(ctx, poolID, IdentityFromContext(ctx).Wallet.ID, req.Rankings)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rankings)
}

func (a *API) GetRankings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.withTimeout(r)
	defer cancel()

	poolID, err := uuidParam(r, "poolID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	rankings, err := a.cfg.Prizes.Rankings(ctx, poolID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rankings)
}

func (a *API) GetWinners(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.withTimeout(r)
	defer cancel()

	poolID, err := uuidParam(r, "poolID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	winners, err := a.cfg.Prizes.Winners(ctx, poolID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, winners)
}

func (a *API) GetPrizeStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.withTimeout(r)
	defer cancel()

	postID, err := uuidParam(r, "postID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	stats, err := a.cfg.Prizes.PoolStats(ctx, postID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// PostDistributed settles a pool once every rank has a confirmed claim. Only
// the pool owner may call it.
func (a *API) PostDistributed(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.withTimeout(r)
	defer cancel()

	postID, err := uuidParam(r, "postID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req TxSignatureRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	current, err := a.cfg.Prizes.GetPoolByPost(ctx, postID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if current.OwnerWalletID != IdentityFromContext(ctx).Wallet.ID {
		a.writeError(w, r, apperror.Forbidden("prizes", "only the pool owner can mark it distributed"))
		return
	}

	pool, err := a.cfg.Prizes.MarkPoolDistributed(ctx, postID, req.TxSignature)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pool)
}

// PostForceClose closes a pool without every rank being paid out.
func (a *API) PostForceClose(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.withTimeout(r)
	defer cancel()

	postID, err := uuidParam(r, "postID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req TxSignatureRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	pool, err := a.cfg.Prizes.ForceClosePool(ctx, postID, IdentityFromContext(ctx).Wallet.ID, req.TxSignature)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pool)
}
