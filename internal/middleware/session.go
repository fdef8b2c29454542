// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/scalaya/internal/auth"
	"github.com/hitoshi/scalaya/internal/model"
)

// SessionCookieName はセッショントークンを保持するCookieの名前。
const SessionCookieName = "session_token"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// claimsContextKey はリクエストコンテキストにセッションのクレームを格納するためのキー。
var claimsContextKey = contextKey("session_claims")

// SessionAuthenticator はセッショントークンの検証に必要なインターフェース。
// auth.Service が実装する。
type SessionAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Claims, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッショントークンを読み取り、
// 有効性を検証するミドルウェアを返す。
// 検証済みのクレームをリクエストコンテキストに注入する。
// 未認証リクエストには401 Unauthorizedを返す。
func NewSessionMiddleware(authn SessionAuthenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				writeUnauthorized(w)
				return
			}

			claims, err := authn.Authenticate(r.Context(), cookie.Value)
			if err != nil {
				if !errors.Is(err, auth.ErrInvalidSession) &&
					!errors.Is(err, auth.ErrSessionExpired) &&
					!errors.Is(err, auth.ErrSessionRevoked) {
					slog.Error("failed to authenticate session",
						slog.String("error", err.Error()),
					)
				}
				writeUnauthorized(w)
				return
			}

			setLogUserID(r.Context(), claims.Subject)
			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
}

// ClaimsFromContext はリクエストコンテキストからセッションのクレームを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*auth.Claims)
	return claims, ok && claims != nil
}

// ContextWithClaims はコンテキストにクレームを注入する。
func ContextWithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return claims.Subject, nil
}

// ContextWithUserID はコンテキストにユーザーIDだけを持つクレームを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	claims := &auth.Claims{}
	claims.Subject = userID
	return ContextWithClaims(ctx, claims)
}
