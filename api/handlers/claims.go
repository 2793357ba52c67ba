package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lilzahs/gimme-idea/api/apperror"
	"github.com/lilzahs/gimme-idea/api/prize"
	"github.com/lilzahs/gimme-idea/api/wallet"
)

const defaultClaimsLimit = 20

// ClaimRequest is the body for POST /claims.
type ClaimRequest struct {
	RankingID    uuid.UUID       `json:"ranking_id"`
	PostID       uuid.UUID       `json:"post_id"`
	WinnerWallet string          `json:"winner_wallet"`
	Amount       decimal.Decimal `json:"amount"`
	TxSignature  string          `json:"tx_signature"`
}

// PostClaim records a payout transaction for a ranked comment. The claim
// stays pending until the indexer or settlement watcher confirms it.
func (a *API) PostClaim(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.withTimeout(r)
	defer cancel()

	var req ClaimRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.RankingID == uuid.Nil || req.PostID == uuid.Nil {
		a.writeError(w, r, apperror.Validation("claims", "ranking_id and post_id are required"))
		return
	}

	claim, err := a.cfg.Prizes.RecordClaim(ctx, prize.ClaimInput{
		RankingID:    req.RankingID,
		PostID:       req.PostID,
		WinnerWallet: req.WinnerWallet,
		Amount:       req.Amount,
		TxSignature:  req.TxSignature,
		Caller:       IdentityFromContext(ctx).Wallet.ID,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, claim)
}

func (a *API) PostConfirmClaim(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.withTimeout(r)
	defer cancel()

	claimID, err := uuidParam(r, "claimID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	claim, err := a.cfg.Prizes.ConfirmClaim(ctx, claimID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

type FailClaimRequest struct {
	Reason string `json:"reason"`
}

func (a *API) PostFailClaim(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.withTimeout(r)
	defer cancel()

	claimID, err := uuidParam(r, "claimID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req FailClaimRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	claim, err := a.cfg.Prizes.FailClaim(ctx, claimID, req.Reason)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claim)
}

// GetWalletClaims lists a winner's claims, newest first.
func (a *API) GetWalletClaims(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.withTimeout(r)
	defer cancel()

	address := chi.URLParam(r, "address")
	if !wallet.ValidAddress(address) {
		a.writeError(w, r, apperror.Validation("claims", "invalid wallet address"))
		return
	}
	page := ParsePagination(r, defaultClaimsLimit)

	claims, total, err := a.cfg.Prizes.ListClaimsByWallet(ctx, address, page.Limit, page.Offset)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if claims == nil {
		claims = []prize.Claim{}
	}
	writeJSON(w, http.StatusOK, PaginatedResponse[prize.Claim]{
		Items:  claims,
		Total:  total,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
}

func (a *API) GetPostClaims(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.withTimeout(r)
	defer cancel()

	postID, err := uuidParam(r, "postID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	claims, err := a.cfg.Prizes.ListClaimsByPost(ctx, postID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if claims == nil {
		claims = []prize.Claim{}
	}
	writeJSON(w, http.StatusOK, claims)
}
