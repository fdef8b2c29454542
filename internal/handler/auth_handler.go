package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/scalaya/internal/auth"
	"github.com/hitoshi/scalaya/internal/middleware"
	"github.com/hitoshi/scalaya/internal/model"
	"github.com/hitoshi/scalaya/internal/schema"
)

const oauthStateCookie = "oauth_state"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
// auth.Service が実装する。
type AuthServiceInterface interface {
	SignIn(ctx context.Context, creds model.LoginCredentials) (*auth.SignInResult, error)
	Register(ctx context.Context, creds model.RegisterCredentials) (*model.User, error)
	Authenticate(ctx context.Context, token string) (*auth.Claims, error)
	SignOut(ctx context.Context, claims *auth.Claims) error
	Providers() []string
	OAuthEnabled() bool
	GetLoginURL(state string) string
	HandleCallback(ctx context.Context, code string) (*auth.SignInResult, error)
	SessionMaxAge() time.Duration
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL      string
	CookieDomain string
	CookieSecure bool
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

type userResponse struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Image *string `json:"image"`
}

func toUserResponse(u model.User) userResponse {
	return userResponse{ID: u.ID, Name: u.Name, Email: u.Email, Image: u.Image}
}

type loginResponse struct {
	User    userResponse `json:"user"`
	Expires string       `json:"expires"`
}

type registerResponse struct {
	Success bool          `json:"success"`
	User    *userResponse `json:"user,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// Register は新規ユーザーを登録する。登録後のサインインは行わない。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var creds model.RegisterCredentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeJSON(w, http.StatusBadRequest, registerResponse{Error: "Invalid request body"})
		return
	}

	user, err := h.service.Register(r.Context(), creds)
	if err != nil {
		if msg, ok := registrationMessage(err); ok {
			writeJSON(w, http.StatusBadRequest, registerResponse{Error: msg})
			return
		}
		slog.Error("registration failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, registerResponse{Error: "An unexpected error occurred"})
		return
	}

	resp := toUserResponse(*user)
	writeJSON(w, http.StatusCreated, registerResponse{Success: true, User: &resp})
}

// registrationMessage はUIに表示してよい登録エラーのメッセージを返す。
// 通信障害など想定外のエラーは ok=false。
func registrationMessage(err error) (string, bool) {
	var schemaErr *schema.Error
	if errors.As(err, &schemaErr) {
		return schemaErr.First(), true
	}
	for _, known := range []error{
		model.ErrUserAlreadyExists,
		model.ErrEmailAlreadyExists,
		model.ErrRegistrationFailed,
	} {
		if errors.Is(err, known) {
			return err.Error(), true
		}
	}
	return "", false
}

// Login は資格情報でサインインし、セッションCookieを設定する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds model.LoginCredentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeInvalidBody(w)
		return
	}

	result, err := h.service.SignIn(r.Context(), creds)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.setSessionCookie(w, result.Token)
	writeJSON(w, http.StatusOK, loginResponse{
		User:    toUserResponse(result.User),
		Expires: result.Claims.Session().Expires,
	})
}

// Session は現在のセッションを返す。未ログインの場合は空のオブジェクトを返す。
// GET /api/auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	claims := h.claimsFromCookie(r)
	if claims == nil {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, claims.Session())
}

// Logout はセッションを失効させ、Cookieを削除する。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if claims := h.claimsFromCookie(r); claims != nil {
		if err := h.service.SignOut(r.Context(), claims); err != nil {
			// 失効に失敗してもCookieはクリアする
			slog.Error("failed to sign out", slog.String("error", err.Error()))
		}
	}

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Providers は有効なサインイン方式を返す。
// GET /api/auth/providers
func (h *AuthHandler) Providers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"providers": h.service.Providers()})
}

// GoogleLogin はGoogle OAuthフローを開始する。
// GET /api/auth/google/login
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if !h.service.OAuthEnabled() {
		http.NotFound(w, r)
		return
	}

	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.service.GetLoginURL(state), http.StatusTemporaryRedirect)
}

// GoogleCallback はOAuthコールバックを処理する。
// GET /api/auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if !h.service.OAuthEnabled() {
		http.NotFound(w, r)
		return
	}

	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch")
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Invalid state parameter"))
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 2. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Missing authorization code"))
		return
	}

	// 3. 認証処理。失敗時はログイン画面にエラーを表示させる
	result, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		http.Redirect(w, r, h.config.BaseURL+"/login?error=OAuthCallback", http.StatusTemporaryRedirect)
		return
	}

	// 4. セッションCookieを設定してフロントエンドにリダイレクト
	h.setSessionCookie(w, result.Token)
	http.Redirect(w, r, h.config.BaseURL+"/dashboard", http.StatusTemporaryRedirect)
}

// claimsFromCookie はCookieのセッショントークンを検証する。無効な場合はnil。
func (h *AuthHandler) claimsFromCookie(r *http.Request) *auth.Claims {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	claims, err := h.service.Authenticate(r.Context(), cookie.Value)
	if err != nil {
		return nil
	}
	return claims
}

// setSessionCookie はセッションCookieを設定する（HTTP Only）。
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   int(h.service.SessionMaxAge().Seconds()),
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
