package middleware

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/scalaya/internal/model"
)

const (
	// csrfCookieName はCSRFトークンを保持するCookieの名前。
	// フロントエンドからJavaScriptで読み取れるよう、HttpOnlyではない。
	csrfCookieName = "csrf_token"

	// csrfHeaderName はリクエストヘッダーからCSRFトークンを読み取る際のヘッダー名。
	csrfHeaderName = "X-CSRF-Token"

	csrfCookieMaxAge = 86400 // 24時間
)

// CSRFConfig はCSRFミドルウェアの設定。
type CSRFConfig struct {
	CookieSecure bool
	CookieDomain string

	// Secret が設定されている場合、Cookieには "トークン|HMAC-SHA256署名" を保存し、
	// 署名が一致しないCookieは無効として扱う。空の場合はトークンをそのまま保存する。
	Secret []byte
}

// cookieValue はトークンからCookieに保存する値を作る。
func (c CSRFConfig) cookieValue(token string) string {
	if len(c.Secret) == 0 {
		return token
	}
	return token + "|" + c.sign(token)
}

// tokenFromCookie はCookie値の署名を検証し、トークン部分を返す。
func (c CSRFConfig) tokenFromCookie(value string) (string, bool) {
	if len(c.Secret) == 0 {
		return value, value != ""
	}
	token, sig, ok := strings.Cut(value, "|")
	if !ok || token == "" {
		return "", false
	}
	return token, hmac.Equal([]byte(sig), []byte(c.sign(token)))
}

func (c CSRFConfig) sign(token string) string {
	mac := hmac.New(sha256.New, c.Secret)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// NewCSRFMiddleware はCSRFトークンの生成・検証ミドルウェアを返す。
// 安全なメソッド（GET, HEAD, OPTIONS）はトークン検証をスキップし、
// 有効なCSRFトークンCookieが無ければ設定する。
// 状態変更メソッドはCookieのトークンとヘッダーのトークンの一致を必須とする。
func NewCSRFMiddleware(config CSRFConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				ensureCSRFCookie(w, r, config)
				next.ServeHTTP(w, r)
				return
			}

			if reason := validateCSRF(r, config); reason != "" {
				slog.Warn("CSRF validation failed",
					slog.String("reason", reason),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				writeCSRFFailure(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// validateCSRF は検証に失敗した理由を返す。成功時は空文字列。
func validateCSRF(r *http.Request, config CSRFConfig) string {
	cookie, err := r.Cookie(csrfCookieName)
	if err != nil || cookie.Value == "" {
		return "missing cookie token"
	}
	token, ok := config.tokenFromCookie(cookie.Value)
	if !ok {
		return "invalid cookie signature"
	}

	headerToken := r.Header.Get(csrfHeaderName)
	if headerToken == "" {
		return "missing header token"
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(headerToken)) != 1 {
		return "token mismatch"
	}
	return ""
}

// NewCSRFTokenHandler はCSRFトークン取得エンドポイントのハンドラーを返す。
// GET /api/auth/csrf
// 有効なCSRFトークンCookieがある場合はそのトークンを返し、なければ新規生成する。
func NewCSRFTokenHandler(config CSRFConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := currentCSRFToken(r, config)
		if !ok {
			var err error
			token, err = issueCSRFCookie(w, config)
			if err != nil {
				slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
				WriteInternalServerError(w)
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		json.NewEncoder(w).Encode(map[string]string{
			"csrfToken": token,
		})
	})
}

func writeCSRFFailure(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusForbidden, model.NewCSRFInvalidError())
}

// isSafeMethod はHTTPメソッドが安全（読み取り専用）かどうかを判定する。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

func currentCSRFToken(r *http.Request, config CSRFConfig) (string, bool) {
	cookie, err := r.Cookie(csrfCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return config.tokenFromCookie(cookie.Value)
}

// ensureCSRFCookie は有効なCSRFトークンCookieが無い場合に設定する。
func ensureCSRFCookie(w http.ResponseWriter, r *http.Request, config CSRFConfig) {
	if _, ok := currentCSRFToken(r, config); ok {
		return
	}
	if _, err := issueCSRFCookie(w, config); err != nil {
		slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
	}
}

// issueCSRFCookie は新しいトークンを生成してCookieに設定し、トークンを返す。
func issueCSRFCookie(w http.ResponseWriter, config CSRFConfig) (string, error) {
	token, err := generateCSRFToken()
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    config.cookieValue(token),
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   csrfCookieMaxAge,
		HttpOnly: false,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

// generateCSRFToken は暗号的に安全なCSRFトークンを生成する。
func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
