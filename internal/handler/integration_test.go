package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/scalaya/internal/adapter/mock"
	"github.com/hitoshi/scalaya/internal/auth"
	"github.com/hitoshi/scalaya/internal/customer"
	"github.com/hitoshi/scalaya/internal/middleware"
	"github.com/hitoshi/scalaya/internal/model"
)

// testServer は実際の auth.Service とモックバックエンドで構築したテスト用サーバー。
type testServer struct {
	t          *testing.T
	router     http.Handler
	csrfToken  string
	csrfCookie string
	session    string
}

func newIntegrationServer(t *testing.T) *testServer {
	t.Helper()

	backends, err := auth.NewBackendFactory(auth.BackendMock, auth.BackendDeps{
		Mock: []mock.Option{mock.WithHashCost(bcrypt.MinCost)},
	})
	if err != nil {
		t.Fatalf("NewBackendFactory() error = %v", err)
	}
	sessions, err := auth.NewSessions(auth.SessionConfig{
		Secret: []byte("integration-test-secret"),
		MaxAge: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewSessions() error = %v", err)
	}
	svc := auth.NewService(auth.ServiceDeps{
		Backends: backends,
		Sessions: sessions,
		Revoker:  auth.NewMemoryRevoker(),
	})

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"message":"Customer created","customer":{"email":"jane@example.com","firstName":"Jane","lastName":"Doe"}}`)
	}))
	t.Cleanup(upstream.Close)

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	router := NewRouter(&RouterDeps{
		Authenticator:       svc,
		CORSAllowedOrigin:   "http://localhost:3000",
		RateLimiter:         rl,
		CSRFConfig:          middleware.CSRFConfig{Secret: []byte("integration-test-secret")},
		AuthService:         svc,
		AuthConfig:          AuthHandlerConfig{BaseURL: "http://localhost:3000"},
		UserService:         svc,
		RegistrationService: customer.NewClient(upstream.Client(), nil, upstream.URL, 5*time.Second),
	})

	return &testServer{t: t, router: router}
}

// do はCSRFトークンとセッションCookieを付与してリクエストを送る。
func (s *testServer) do(method, path string, body any) *http.Response {
	s.t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			s.t.Fatalf("failed to marshal body: %v", err)
		}
		r = strings.NewReader(string(b))
	}
	req := httptest.NewRequest(method, path, r)
	if s.csrfToken != "" {
		req.AddCookie(&http.Cookie{Name: "csrf_token", Value: s.csrfCookie})
		req.Header.Set("X-CSRF-Token", s.csrfToken)
	}
	if s.session != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: s.session})
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w.Result()
}

// fetchCSRF はCSRFトークンを取得してCookieとともに保持する。
func (s *testServer) fetchCSRF() {
	s.t.Helper()
	resp := s.do(http.MethodGet, "/api/auth/csrf", nil)
	var body struct {
		CSRFToken string `json:"csrfToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		s.t.Fatalf("failed to decode csrf response: %v", err)
	}
	s.csrfToken = body.CSRFToken
	for _, c := range resp.Cookies() {
		if c.Name == "csrf_token" {
			s.csrfCookie = c.Value
		}
	}
}

func TestIntegration_SessionLifecycle(t *testing.T) {
	s := newIntegrationServer(t)

	// 1. CSRFトークン取得
	s.fetchCSRF()
	if s.csrfToken == "" || s.csrfCookie == "" || s.csrfCookie == s.csrfToken {
		t.Fatalf("csrf cookie = %q, want signed cookie", s.csrfCookie)
	}

	// Cookieの値そのものをヘッダーに送っても通らない
	forged := *s
	forged.csrfToken = s.csrfCookie
	resp := forged.do(http.MethodPost, "/api/auth/logout", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("forged csrf status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}

	// 2. 新規登録
	resp = s.do(http.MethodPost, "/api/auth/register", model.RegisterCredentials{
		Name:            "Jane Doe",
		Email:           "jane@example.com",
		Password:        "Secret123",
		ConfirmPassword: "Secret123",
		AcceptTerms:     true,
	})
	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("register status = %d, body = %s", resp.StatusCode, b)
	}

	// 同じメールアドレスでの再登録は400
	resp = s.do(http.MethodPost, "/api/auth/register", model.RegisterCredentials{
		Name:            "Jane Again",
		Email:           "jane@example.com",
		Password:        "Secret123",
		ConfirmPassword: "Secret123",
		AcceptTerms:     true,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("duplicate register status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	// 3. 誤ったパスワードでのログインは401
	resp = s.do(http.MethodPost, "/api/auth/login", model.LoginCredentials{Email: "jane@example.com", Password: "Wrong1234"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad login status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	// 4. ログイン
	resp = s.do(http.MethodPost, "/api/auth/login", model.LoginCredentials{Email: "jane@example.com", Password: "Secret123"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookieName {
			s.session = c.Value
		}
	}
	if s.session == "" {
		t.Fatal("login did not set a session cookie")
	}

	// 5. /api/me
	resp = s.do(http.MethodGet, "/api/me", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var me userResponse
	json.NewDecoder(resp.Body).Decode(&me)
	if me.Email != "jane@example.com" || me.Name != "Jane Doe" {
		t.Errorf("me = %+v", me)
	}

	// 6. セッション情報
	resp = s.do(http.MethodGet, "/api/auth/session", nil)
	var session model.Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		t.Fatalf("failed to decode session: %v", err)
	}
	if session.User.Email != "jane@example.com" || session.Expires == "" {
		t.Errorf("session = %+v", session)
	}

	// 7. ログアウト
	resp = s.do(http.MethodPost, "/api/auth/logout", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}

	// 8. 失効したトークンは使えない
	resp = s.do(http.MethodGet, "/api/me", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("me after logout status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
	resp = s.do(http.MethodGet, "/api/auth/session", nil)
	b, _ := io.ReadAll(resp.Body)
	if strings.TrimSpace(string(b)) != "{}" {
		t.Errorf("session after logout = %s, want {}", b)
	}
}

func TestIntegration_DemoUserLogin(t *testing.T) {
	s := newIntegrationServer(t)
	s.fetchCSRF()

	resp := s.do(http.MethodPost, "/api/auth/login", model.LoginCredentials{
		Email:    mock.DemoUserEmail,
		Password: mock.DemoUserPassword,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.User.ID != mock.DemoUserID || body.User.Name != mock.DemoUserName {
		t.Errorf("user = %+v", body.User)
	}
}

func TestIntegration_RegisterCustomer(t *testing.T) {
	s := newIntegrationServer(t)
	s.fetchCSRF()

	t.Run("created", func(t *testing.T) {
		resp := s.do(http.MethodPost, "/api/register/customer", model.CustomerRegistrationData{
			Email:     "jane@example.com",
			Password:  "Secret123",
			FirstName: "Jane",
			LastName:  "Doe",
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
		}
	})

	t.Run("local_validation", func(t *testing.T) {
		resp := s.do(http.MethodPost, "/api/register/customer", model.CustomerRegistrationData{Email: "bad"})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
		}
		var body registrationErrorJSON
		json.NewDecoder(resp.Body).Decode(&body)
		if body.Error.Code != customer.CodeValidationError || len(body.Error.Details) == 0 {
			t.Errorf("body = %+v", body)
		}
	})
}
