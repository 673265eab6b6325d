package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/inscricoes/internal/core"
)

// ActorHeader carries the e-mail of the signed-in administrator, forwarded
// by the identity provider alongside the key.
const ActorHeader = "X-Admin-Email"

// AdminAPIKey rejects requests that do not present one of keys, either in
// X-API-Key or as a bearer token. With no keys configured every request is
// rejected. Accepted requests get the actor from ActorHeader in their context.
func AdminAPIKey(keys []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := presentedKey(r)
			if key == "" {
				slog.Warn("auth: missing admin key",
					"path", r.URL.Path,
					"method", r.Method,
					"ip", core.ClientIP(r.Context()),
				)
				writeAuthError(w, http.StatusUnauthorized, "Acesso restrito à administração.", "AUTH001")
				return
			}

			if !isValidAPIKey(key, keys) {
				slog.Warn("auth: invalid admin key",
					"path", r.URL.Path,
					"method", r.Method,
					"ip", core.ClientIP(r.Context()),
				)
				writeAuthError(w, http.StatusForbidden, "Credencial de administração inválida.", "AUTH002")
				return
			}

			ctx := r.Context()
			if actor := strings.TrimSpace(r.Header.Get(ActorHeader)); actor != "" {
				ctx = core.ContextWithActor(ctx, actor)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func presentedKey(r *http.Request) string {
	if k := strings.TrimSpace(r.Header.Get("X-API-Key")); k != "" {
		return k
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

// isValidAPIKey compares key against every configured key in constant time.
func isValidAPIKey(key string, validKeys []string) bool {
	valid := 0
	for _, validKey := range validKeys {
		valid |= subtle.ConstantTimeCompare([]byte(key), []byte(validKey))
	}
	return valid == 1
}

func writeAuthError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   message,
		"message": message,
		"code":    code,
	})
}
