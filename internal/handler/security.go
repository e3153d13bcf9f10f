package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
)

// APIKeyHeader carries back-office automation keys.
const APIKeyHeader = "api_key"

var errUnauthorized = errors.New("unauthorized")

// Authenticator resolves the caller from a bearer token or an API key.
// Requests without credentials continue anonymously; bad credentials are
// rejected with 401.
type Authenticator struct {
	tokens  *auth.Tokens
	apikeys auth.Repository
	pepper  []byte
}

// NewAuthenticator creates an Authenticator with the given token verifier,
// API key repository and HMAC pepper.
func NewAuthenticator(tokens *auth.Tokens, apikeys auth.Repository, pepper []byte) *Authenticator {
	return &Authenticator{
		tokens:  tokens,
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// HashAPIKey returns the hex HMAC-SHA256 of key under pepper, as stored in
// the api_keys table.
func HashAPIKey(pepper []byte, key string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// Middleware stores the resolved principal in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := a.resolve(r)
		if err != nil {
			zctx.From(r.Context()).Debug("Authentication failed", zap.Error(err))
			failure(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if p != nil {
			r = r.WithContext(auth.WithPrincipal(r.Context(), p))
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) resolve(r *http.Request) (*auth.Principal, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		raw, found := strings.CutPrefix(h, "Bearer ")
		if !found {
			return nil, errUnauthorized
		}
		return a.tokens.Parse(strings.TrimSpace(raw))
	}
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return a.apiKey(r.Context(), key)
	}
	return nil, nil
}

// apiKey looks up the HMAC of key and compares it in constant time.
func (a *Authenticator) apiKey(ctx context.Context, key string) (*auth.Principal, error) {
	hash := HashAPIKey(a.pepper, key)

	info, err := a.apikeys.FindByHash(ctx, hash)
	if err != nil {
		return nil, errors.Wrap(errUnauthorized, err.Error())
	}
	if subtle.ConstantTimeCompare([]byte(hash), []byte(info.KeyHash)) != 1 {
		return nil, errUnauthorized
	}
	if !info.HasScope(auth.ScopeAdmin) {
		return nil, errors.Wrap(errUnauthorized, "missing admin scope")
	}
	return &auth.Principal{Role: auth.RoleAdmin, APIKeyID: info.ID}, nil
}
