package handlers

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lilzahs/gimme-idea/api/apperror"
	"github.com/lilzahs/gimme-idea/api/metrics"
	"github.com/lilzahs/gimme-idea/api/wallet"
)

// Wallet auth headers. Each is also accepted with an X- prefix.
const (
	HeaderWalletAddress   = "wallet-address"
	HeaderWalletSignature = "wallet-signature"
	HeaderWalletMessage   = "wallet-message"
	HeaderIndexerToken    = "X-Indexer-Token"
)

// Identity is the caller resolved from the wallet headers.
type Identity struct {
	Address string `json:"address"`
	// Wallet is nil for an unverified caller whose address has no record.
	Wallet   *wallet.Wallet `json:"wallet,omitempty"`
	Verified bool           `json:"verified"`
}

type identityContextKey struct{}

// ContextWithIdentity returns a new context carrying id.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext returns the caller identity, or nil when the request
// carried no wallet address.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityContextKey{}).(*Identity)
	return id
}

func walletHeader(r *http.Request, name string) string {
	if v := strings.TrimSpace(r.Header.Get(name)); v != "" {
		return v
	}
	return strings.TrimSpace(r.Header.Get("X-" + name))
}

// bodyMessage peeks at a JSON body's "message" field and restores the body.
func bodyMessage(r *http.Request) string {
	if r.Body == nil || r.Method == http.MethodGet || r.Method == http.MethodHead {
		return ""
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(data))
	if err != nil || len(data) == 0 {
		return ""
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	return body.Message
}

// Authenticate resolves the caller from the wallet headers. Requests without
// an address pass through anonymously. A signed request must verify or it is
// rejected; a successful verification creates the wallet record on first use.
// Unsigned GETs are looked up read-only and marked unverified.
func (a *API) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := walletHeader(r, HeaderWalletAddress)
		if address == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx, cancel := a.withTimeout(r)
		defer cancel()

		signature := walletHeader(r, HeaderWalletSignature)
		if signature == "" {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				metrics.RecordSignatureVerification("missing")
				a.writeError(w, r, apperror.Authentication("auth", "wallet signature required"))
				return
			}
			id := &Identity{Address: address}
			if wallet.ValidAddress(address) {
				wlt, err := a.cfg.Wallets.Lookup(ctx, address)
				if err != nil && !apperror.Is(err, apperror.KindNotFound) {
					a.writeError(w, r, err)
					return
				}
				id.Wallet = wlt
			}
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
			return
		}

		message := wallet.NormalizeMessage(bodyMessage(r), walletHeader(r, HeaderWalletMessage))
		if err := wallet.Verify(address, signature, message); err != nil {
			metrics.RecordSignatureVerification("invalid")
			a.log.Debug("auth: signature rejected", "address", address, "error", err)
			a.writeError(w, r, apperror.Authentication("auth", "invalid wallet signature"))
			return
		}
		metrics.RecordSignatureVerification("valid")

		wlt, err := a.cfg.Wallets.Resolve(ctx, address)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		id := &Identity{Address: address, Wallet: wlt, Verified: true}
		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
	})
}

// RequireWallet rejects callers without a verified wallet signature.
func RequireWallet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := IdentityFromContext(r.Context())
		if id == nil || !id.Verified || id.Wallet == nil {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{
				Error: "wallet signature required",
				Kind:  apperror.KindAuthentication.String(),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireIndexerToken guards routes called by the chain indexer.
func (a *API) RequireIndexerToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(HeaderIndexerToken)
		if a.cfg.IndexerToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(a.cfg.IndexerToken)) != 1 {
			a.writeError(w, r, apperror.Authentication("auth", "invalid indexer token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AuthMessageResponse is the challenge a client asks the wallet to sign.
type AuthMessageResponse struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// GetAuthMessage returns the canonical sign-in challenge for an address.
func (a *API) GetAuthMessage(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if address == "" {
		address = walletHeader(r, HeaderWalletAddress)
	}
	if !wallet.ValidAddress(address) {
		a.writeError(w, r, apperror.Validation("auth", "invalid wallet address"))
		return
	}
	action := r.URL.Query().Get("action")
	if action == "" {
		action = "Sign in"
	}

	now := time.Now().UTC()
	writeJSON(w, http.StatusOK, AuthMessageResponse{
		Message:   wallet.BuildMessage(action, wallet.AppName, now, address),
		Timestamp: now.Format(time.RFC3339),
	})
}

// GetAuthMe returns the caller. Unsigned requests get the stored wallet, if
// any, with verified=false.
func (a *API) GetAuthMe(w http.ResponseWriter, r *http.Request) {
	id := IdentityFromContext(r.Context())
	if id == nil {
		a.writeError(w, r, apperror.Authentication("auth", "wallet address required"))
		return
	}
	writeJSON(w, http.StatusOK, id)
}
