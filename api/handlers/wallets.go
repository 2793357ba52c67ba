package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lilzahs/gimme-idea/api/apperror"
	"github.com/lilzahs/gimme-idea/api/wallet"
)

// ConnectWalletRequest is the body for POST /wallet/connect.
type ConnectWalletRequest struct {
	WalletType string `json:"wallet_type"`
}

// PostWalletConnect records the signed-in wallet and the client it came from.
func (a *API) PostWalletConnect(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.withTimeout(r)
	defer cancel()

	var req ConnectWalletRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	id := IdentityFromContext(ctx)
	wlt, err := a.cfg.Wallets.Connect(ctx, id.Address, req.WalletType)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wlt)
}

// GetWallet returns a wallet's public profile and counters.
func (a *API) GetWallet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.withTimeout(r)
	defer cancel()

	address := chi.URLParam(r, "address")
	if !wallet.ValidAddress(address) {
		a.writeError(w, r, apperror.Validation("wallet", "invalid wallet address"))
		return
	}
	wlt, err := a.cfg.Wallets.Lookup(ctx, address)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wlt)
}
