package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lilzahs/gimme-idea/api/apperror"
	"github.com/lilzahs/gimme-idea/api/feed"
	"github.com/lilzahs/gimme-idea/api/prize"
)

// SplitRequest describes a distribution. Percentages, when present, select a
// custom split; otherwise WinnersCount selects an equal split.
type SplitRequest struct {
	WinnersCount int               `json:"winners_count"`
	Percentages  []decimal.Decimal `json:"percentages,omitempty"`
}

func (s SplitRequest) split() prize.Split {
	if len(s.Percentages) > 0 {
		return prize.CustomSplit{Percentages: s.Percentages}
	}
	return prize.EqualSplit{WinnersCount: s.WinnersCount}
}

type PrizeRequest struct {
	SplitRequest
	Total  decimal.Decimal `json:"total"`
	EndsAt time.Time       `json:"ends_at"`
}

// CreatePostRequest is the body for POST /posts.
type CreatePostRequest struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Prize       *PrizeRequest `json:"prize_pool,omitempty"`
}

func (a *API) PostCreatePost(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.withTimeout(r)
	defer cancel()

	var req CreatePostRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	in := feed.PostInput{
		WalletID:    IdentityFromContext(ctx).Wallet.ID,
		Title:       req.Title,
		Description: req.Description,
	}
	if req.Prize != nil {
		in.Prize = &feed.PrizeInput{
			Total:  req.Prize.Total,
			Split:  req.Prize.split(),
			EndsAt: req.Prize.EndsAt,
		}
	}

	post, err := a.cfg.Feed.CreatePost(ctx, in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

type CreateCommentRequest struct {
	Content string `json:"content"`
}

func (a *API) PostComment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.withTimeout(r)
	defer cancel()

	postID, err := uuidParam(r, "postID")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req CreateCommentRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	c, err := a.cfg.Feed.AddComment(ctx, postID, IdentityFromContext(ctx).Wallet.ID, req.Content)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// TipRequest is the body for POST /tips.
type TipRequest struct {
	ToAddress   string          `json:"to_address"`
	PostID      *uuid.UUID      `json:"post_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	TxSignature string          `json:"tx_signature"`
}

func (a *API) PostTip(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.withTimeout(r)
	defer cancel()

	var req TipRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.ToAddress == "" {
		a.writeError(w, r, apperror.Validation("tips", "to_address is required"))
		return
	}

	tip, err := a.cfg.Feed.RecordTip(ctx, feed.TipInput{
		FromWalletID: IdentityFromContext(ctx).Wallet.ID,
		ToAddress:    req.ToAddress,
		PostID:       req.PostID,
		Amount:       req.Amount,
		TxSignature:  req.TxSignature,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tip)
}
