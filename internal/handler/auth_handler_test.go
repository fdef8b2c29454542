package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/scalaya/internal/adapter/remote"
	"github.com/hitoshi/scalaya/internal/apiclient"
	"github.com/hitoshi/scalaya/internal/auth"
	"github.com/hitoshi/scalaya/internal/middleware"
	"github.com/hitoshi/scalaya/internal/model"
	"github.com/hitoshi/scalaya/internal/schema"
)

// --- モック定義 ---

type mockAuthService struct {
	signInFn         func(ctx context.Context, creds model.LoginCredentials) (*auth.SignInResult, error)
	registerFn       func(ctx context.Context, creds model.RegisterCredentials) (*model.User, error)
	authenticateFn   func(ctx context.Context, token string) (*auth.Claims, error)
	signOutFn        func(ctx context.Context, claims *auth.Claims) error
	currentUserFn    func(ctx context.Context, claims *auth.Claims) (*model.User, error)
	getLoginURLFn    func(state string) string
	handleCallbackFn func(ctx context.Context, code string) (*auth.SignInResult, error)
	oauthEnabled     bool
}

func (m *mockAuthService) SignIn(ctx context.Context, creds model.LoginCredentials) (*auth.SignInResult, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, creds)
	}
	return nil, model.ErrInvalidCredentials
}

func (m *mockAuthService) Register(ctx context.Context, creds model.RegisterCredentials) (*model.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, creds)
	}
	return nil, nil
}

func (m *mockAuthService) Authenticate(ctx context.Context, token string) (*auth.Claims, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, token)
	}
	return nil, auth.ErrInvalidSession
}

func (m *mockAuthService) SignOut(ctx context.Context, claims *auth.Claims) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx, claims)
	}
	return nil
}

func (m *mockAuthService) CurrentUser(ctx context.Context, claims *auth.Claims) (*model.User, error) {
	if m.currentUserFn != nil {
		return m.currentUserFn(ctx, claims)
	}
	return nil, nil
}

func (m *mockAuthService) Providers() []string {
	if m.oauthEnabled {
		return []string{"credentials", "google"}
	}
	return []string{"credentials"}
}

func (m *mockAuthService) OAuthEnabled() bool {
	return m.oauthEnabled
}

func (m *mockAuthService) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return ""
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (*auth.SignInResult, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code)
	}
	return nil, errors.New("not configured")
}

func (m *mockAuthService) SessionMaxAge() time.Duration {
	return 24 * time.Hour
}

// testClaims はテスト用のクレームを生成する。
func testClaims(userID string) *auth.Claims {
	c := &auth.Claims{Email: userID + "@example.com", Name: "Test User"}
	c.Subject = userID
	c.ID = "jti-" + userID
	c.ExpiresAt = jwt.NewNumericDate(time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC))
	return c
}

func testSignInResult(userID string) *auth.SignInResult {
	claims := testClaims(userID)
	return &auth.SignInResult{
		Token:  "token-" + userID,
		Claims: claims,
		User:   claims.User(),
	}
}

func newTestAuthHandler(svc AuthServiceInterface) *AuthHandler {
	return NewAuthHandler(svc, AuthHandlerConfig{
		BaseURL:      "http://localhost:3000",
		CookieDomain: "",
		CookieSecure: false,
	})
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	return bytes.NewReader(b)
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// --- POST /api/auth/login ---

func TestAuthHandler_Login_Success_SetsSessionCookie(t *testing.T) {
	svc := &mockAuthService{
		signInFn: func(ctx context.Context, creds model.LoginCredentials) (*auth.SignInResult, error) {
			if creds.Email != "demo@example.com" || creds.Password != "Demo1234" {
				t.Errorf("unexpected credentials: %+v", creds)
			}
			return testSignInResult("user-1"), nil
		},
	}
	h := newTestAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		jsonBody(t, model.LoginCredentials{Email: "demo@example.com", Password: "Demo1234"}))
	w := httptest.NewRecorder()

	h.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	cookie := findCookie(resp, middleware.SessionCookieName)
	if cookie == nil {
		t.Fatal("expected session cookie to be set")
	}
	if cookie.Value != "token-user-1" {
		t.Errorf("cookie value = %q, want %q", cookie.Value, "token-user-1")
	}
	if !cookie.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}
	if cookie.MaxAge != 86400 {
		t.Errorf("cookie MaxAge = %d, want 86400", cookie.MaxAge)
	}

	var body loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.User.ID != "user-1" {
		t.Errorf("user.id = %q, want %q", body.User.ID, "user-1")
	}
	if body.Expires != "2030-01-02T03:04:05Z" {
		t.Errorf("expires = %q, want %q", body.Expires, "2030-01-02T03:04:05Z")
	}
}

func TestAuthHandler_Login_InvalidCredentials_Returns401(t *testing.T) {
	h := newTestAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		jsonBody(t, model.LoginCredentials{Email: "demo@example.com", Password: "wrong"}))
	w := httptest.NewRecorder()

	h.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
	if findCookie(resp, middleware.SessionCookieName) != nil {
		t.Error("session cookie should not be set")
	}

	var body middleware.ErrorResponseBody
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Code != model.ErrCodeInvalidCredentials {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInvalidCredentials)
	}
}

func TestAuthHandler_Login_SchemaError_Returns400(t *testing.T) {
	svc := &mockAuthService{
		signInFn: func(ctx context.Context, creds model.LoginCredentials) (*auth.SignInResult, error) {
			return nil, &schema.Error{Issues: []schema.Issue{{Path: "email", Message: "Invalid email address"}}}
		},
	}
	h := newTestAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		jsonBody(t, model.LoginCredentials{Email: "bad", Password: "x"}))
	w := httptest.NewRecorder()

	h.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	var body middleware.ErrorResponseBody
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Message != "Invalid email address" {
		t.Errorf("message = %q, want %q", body.Message, "Invalid email address")
	}
}

func TestAuthHandler_Login_BackendTimeout_Returns504(t *testing.T) {
	svc := &mockAuthService{
		signInFn: func(ctx context.Context, creds model.LoginCredentials) (*auth.SignInResult, error) {
			return nil, fmt.Errorf("failed to login: %w", &apiclient.Error{Message: "Request timeout", Err: apiclient.ErrTimeout})
		},
	}
	h := newTestAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		jsonBody(t, model.LoginCredentials{Email: "demo@example.com", Password: "Demo1234"}))
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Result().StatusCode != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusGatewayTimeout)
	}
}

func TestAuthHandler_Login_MalformedBody_Returns400(t *testing.T) {
	h := newTestAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader("{not json"))
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

// --- POST /api/auth/register ---

func TestAuthHandler_Register_Success_Returns201(t *testing.T) {
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, creds model.RegisterCredentials) (*model.User, error) {
			return &model.User{ID: "new-1", Name: creds.Name, Email: creds.Email}, nil
		},
	}
	h := newTestAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", jsonBody(t, model.RegisterCredentials{
		Name:            "New User",
		Email:           "new@example.com",
		Password:        "Aa123456",
		ConfirmPassword: "Aa123456",
		AcceptTerms:     true,
	}))
	w := httptest.NewRecorder()

	h.Register(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["success"] != true {
		t.Errorf("success = %v, want true", body["success"])
	}
	user, ok := body["user"].(map[string]any)
	if !ok {
		t.Fatalf("user = %v, want object", body["user"])
	}
	if user["email"] != "new@example.com" {
		t.Errorf("user.email = %v, want %q", user["email"], "new@example.com")
	}
	// image は未設定でもキーとして存在する
	if _, ok := user["image"]; !ok {
		t.Error("expected user.image key")
	}
	if findCookie(resp, middleware.SessionCookieName) != nil {
		t.Error("registration should not sign the user in")
	}
}

func TestAuthHandler_Register_KnownErrors_Return400(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{
			name:    "duplicate",
			err:     model.ErrUserAlreadyExists,
			wantMsg: "User with this email already exists",
		},
		{
			name:    "schema",
			err:     &schema.Error{Issues: []schema.Issue{{Path: "confirmPassword", Message: "Passwords don't match"}}},
			wantMsg: "Passwords don't match",
		},
		{
			name: "backend violations",
			err: &remote.RegistrationError{
				Message: "email: This value is already used.",
				Kind:    model.ErrRegistrationFailed,
			},
			wantMsg: "email: This value is already used.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{
				registerFn: func(ctx context.Context, creds model.RegisterCredentials) (*model.User, error) {
					return nil, tt.err
				},
			}
			h := newTestAuthHandler(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
				jsonBody(t, model.RegisterCredentials{Email: "x@example.com"}))
			w := httptest.NewRecorder()

			h.Register(w, req)

			resp := w.Result()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
			}

			var body registerResponse
			json.NewDecoder(resp.Body).Decode(&body)
			if body.Success {
				t.Error("success should be false")
			}
			if body.Error != tt.wantMsg {
				t.Errorf("error = %q, want %q", body.Error, tt.wantMsg)
			}
		})
	}
}

func TestAuthHandler_Register_UnexpectedError_Returns500(t *testing.T) {
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, creds model.RegisterCredentials) (*model.User, error) {
			return nil, errors.New("connection reset by peer")
		},
	}
	h := newTestAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
		jsonBody(t, model.RegisterCredentials{Email: "x@example.com"}))
	w := httptest.NewRecorder()

	h.Register(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}

	var body registerResponse
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Error != "An unexpected error occurred" {
		t.Errorf("error = %q, want generic message", body.Error)
	}
}

// --- GET /api/auth/session ---

func TestAuthHandler_Session_ValidCookie_ReturnsSession(t *testing.T) {
	svc := &mockAuthService{
		authenticateFn: func(ctx context.Context, token string) (*auth.Claims, error) {
			if token != "good-token" {
				return nil, auth.ErrInvalidSession
			}
			c := testClaims("user-s")
			c.AccessToken = "remote-jwt"
			return c, nil
		},
	}
	h := newTestAuthHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "good-token"})
	w := httptest.NewRecorder()

	h.Session(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var session model.Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if session.User.ID != "user-s" {
		t.Errorf("user.id = %q, want %q", session.User.ID, "user-s")
	}
	if session.AccessToken != "remote-jwt" {
		t.Errorf("accessToken = %q, want %q", session.AccessToken, "remote-jwt")
	}
	if session.Expires != "2030-01-02T03:04:05Z" {
		t.Errorf("expires = %q", session.Expires)
	}
}

func TestAuthHandler_Session_NoCookie_ReturnsEmptyObject(t *testing.T) {
	h := newTestAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	w := httptest.NewRecorder()

	h.Session(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if got := strings.TrimSpace(w.Body.String()); got != "{}" {
		t.Errorf("body = %q, want %q", got, "{}")
	}
}

// --- POST /api/auth/logout ---

func TestAuthHandler_Logout_RevokesAndClearsCookie(t *testing.T) {
	var signedOut *auth.Claims
	svc := &mockAuthService{
		authenticateFn: func(ctx context.Context, token string) (*auth.Claims, error) {
			return testClaims("user-out"), nil
		},
		signOutFn: func(ctx context.Context, claims *auth.Claims) error {
			signedOut = claims
			return nil
		},
	}
	h := newTestAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "some-token"})
	w := httptest.NewRecorder()

	h.Logout(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if signedOut == nil || signedOut.Subject != "user-out" {
		t.Errorf("SignOut claims = %+v, want subject user-out", signedOut)
	}

	cookie := findCookie(resp, middleware.SessionCookieName)
	if cookie == nil {
		t.Fatal("expected session cookie to be cleared")
	}
	if cookie.MaxAge >= 0 {
		t.Errorf("cookie MaxAge = %d, want negative", cookie.MaxAge)
	}
}

func TestAuthHandler_Logout_SignOutError_StillClearsCookie(t *testing.T) {
	svc := &mockAuthService{
		authenticateFn: func(ctx context.Context, token string) (*auth.Claims, error) {
			return testClaims("user-out"), nil
		},
		signOutFn: func(ctx context.Context, claims *auth.Claims) error {
			return errors.New("redis unavailable")
		},
	}
	h := newTestAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "some-token"})
	w := httptest.NewRecorder()

	h.Logout(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if findCookie(resp, middleware.SessionCookieName) == nil {
		t.Error("expected session cookie to be cleared")
	}
}

func TestAuthHandler_Logout_NoCookie_Returns204(t *testing.T) {
	called := false
	svc := &mockAuthService{
		signOutFn: func(ctx context.Context, claims *auth.Claims) error {
			called = true
			return nil
		},
	}
	h := newTestAuthHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	w := httptest.NewRecorder()

	h.Logout(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
	if called {
		t.Error("SignOut should not be called without a session")
	}
}

// --- GET /api/auth/providers ---

func TestAuthHandler_Providers(t *testing.T) {
	h := newTestAuthHandler(&mockAuthService{oauthEnabled: true})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/providers", nil)
	w := httptest.NewRecorder()

	h.Providers(w, req)

	var body struct {
		Providers []string `json:"providers"`
	}
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Providers) != 2 || body.Providers[0] != "credentials" || body.Providers[1] != "google" {
		t.Errorf("providers = %v, want [credentials google]", body.Providers)
	}
}

// --- Google OAuth ---

func TestAuthHandler_GoogleLogin_RedirectsToOAuthURL(t *testing.T) {
	svc := &mockAuthService{
		oauthEnabled: true,
		getLoginURLFn: func(state string) string {
			return "https://accounts.google.com/o/oauth2/auth?state=" + state
		},
	}
	h := newTestAuthHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/google/login", nil)
	w := httptest.NewRecorder()

	h.GoogleLogin(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}

	location := resp.Header.Get("Location")
	if !strings.Contains(location, "accounts.google.com") {
		t.Errorf("Location = %q, should contain google oauth URL", location)
	}

	stateCookie := findCookie(resp, oauthStateCookie)
	if stateCookie == nil {
		t.Fatal("expected oauth_state cookie to be set")
	}
	if !strings.HasSuffix(location, "state="+stateCookie.Value) {
		t.Errorf("Location = %q, should carry state %q", location, stateCookie.Value)
	}
	if !stateCookie.HttpOnly {
		t.Error("oauth_state cookie should be HttpOnly")
	}
}

func TestAuthHandler_GoogleLogin_Disabled_Returns404(t *testing.T) {
	h := newTestAuthHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/google/login", nil)
	w := httptest.NewRecorder()

	h.GoogleLogin(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}

func TestAuthHandler_GoogleCallback_Success_SetsCookieAndRedirects(t *testing.T) {
	svc := &mockAuthService{
		oauthEnabled: true,
		handleCallbackFn: func(ctx context.Context, code string) (*auth.SignInResult, error) {
			if code != "auth-code" {
				t.Errorf("code = %q, want %q", code, "auth-code")
			}
			return testSignInResult("google-user"), nil
		},
	}
	h := newTestAuthHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?code=auth-code&state=valid-state", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "valid-state"})
	w := httptest.NewRecorder()

	h.GoogleCallback(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}
	if got := resp.Header.Get("Location"); got != "http://localhost:3000/dashboard" {
		t.Errorf("Location = %q, want %q", got, "http://localhost:3000/dashboard")
	}

	cookie := findCookie(resp, middleware.SessionCookieName)
	if cookie == nil || cookie.Value != "token-google-user" {
		t.Errorf("session cookie = %+v, want token-google-user", cookie)
	}
}

func TestAuthHandler_GoogleCallback_StateMismatch_Returns400(t *testing.T) {
	svc := &mockAuthService{
		oauthEnabled: true,
		handleCallbackFn: func(ctx context.Context, code string) (*auth.SignInResult, error) {
			t.Fatal("HandleCallback should not be called")
			return nil, nil
		},
	}
	h := newTestAuthHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?code=auth-code&state=attacker", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "valid-state"})
	w := httptest.NewRecorder()

	h.GoogleCallback(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestAuthHandler_GoogleCallback_MissingCode_Returns400(t *testing.T) {
	h := newTestAuthHandler(&mockAuthService{oauthEnabled: true})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?state=valid-state", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "valid-state"})
	w := httptest.NewRecorder()

	h.GoogleCallback(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestAuthHandler_GoogleCallback_ExchangeError_RedirectsToLogin(t *testing.T) {
	svc := &mockAuthService{
		oauthEnabled: true,
		handleCallbackFn: func(ctx context.Context, code string) (*auth.SignInResult, error) {
			return nil, errors.New("token exchange failed")
		},
	}
	h := newTestAuthHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?code=bad&state=s", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "s"})
	w := httptest.NewRecorder()

	h.GoogleCallback(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}
	if got := resp.Header.Get("Location"); got != "http://localhost:3000/login?error=OAuthCallback" {
		t.Errorf("Location = %q", got)
	}
	if findCookie(resp, middleware.SessionCookieName) != nil {
		t.Error("session cookie should not be set")
	}
}
