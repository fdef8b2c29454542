package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/scalaya/internal/apiclient"
	"github.com/hitoshi/scalaya/internal/auth"
	"github.com/hitoshi/scalaya/internal/middleware"
	"github.com/hitoshi/scalaya/internal/model"
)

// withClaims はリクエストコンテキストにセッションのクレームを注入する。
func withClaims(r *http.Request, claims *auth.Claims) *http.Request {
	return r.WithContext(middleware.ContextWithClaims(r.Context(), claims))
}

// --- GET /api/me テスト ---

func TestUserHandler_Me_Success(t *testing.T) {
	image := "https://example.com/avatar.png"
	svc := &mockAuthService{
		currentUserFn: func(ctx context.Context, claims *auth.Claims) (*model.User, error) {
			if claims.Subject != "user-123" {
				t.Errorf("subject = %q, want %q", claims.Subject, "user-123")
			}
			return &model.User{ID: "user-123", Name: "Me", Email: "me@example.com", Image: &image}, nil
		},
	}

	h := NewUserHandler(svc)

	req := withClaims(httptest.NewRequest(http.MethodGet, "/api/me", nil), testClaims("user-123"))
	w := httptest.NewRecorder()

	h.Me(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body userResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Email != "me@example.com" {
		t.Errorf("email = %q, want %q", body.Email, "me@example.com")
	}
	if body.Image == nil || *body.Image != image {
		t.Errorf("image = %v, want %q", body.Image, image)
	}
}

func TestUserHandler_Me_NoClaims_ReturnsUnauthorized(t *testing.T) {
	h := NewUserHandler(&mockAuthService{})

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	w := httptest.NewRecorder()

	h.Me(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestUserHandler_Me_UserGone_ReturnsNotFound(t *testing.T) {
	svc := &mockAuthService{
		currentUserFn: func(ctx context.Context, claims *auth.Claims) (*model.User, error) {
			return nil, nil
		},
	}
	h := NewUserHandler(svc)

	req := withClaims(httptest.NewRequest(http.MethodGet, "/api/me", nil), testClaims("deleted"))
	w := httptest.NewRecorder()

	h.Me(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}

	var body middleware.ErrorResponseBody
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Code != model.ErrCodeUserNotFound {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUserNotFound)
	}
}

func TestUserHandler_Me_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name:       "timeout",
			err:        &apiclient.Error{Status: http.StatusRequestTimeout, Message: "Request timeout", Err: apiclient.ErrTimeout},
			wantStatus: http.StatusGatewayTimeout,
		},
		{
			name:       "network",
			err:        &apiclient.Error{Message: "Network error", Err: apiclient.ErrNetwork},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "backend 500",
			err:        &apiclient.Error{Status: http.StatusInternalServerError, Message: "Internal Server Error"},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "unknown",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAuthService{
				currentUserFn: func(ctx context.Context, claims *auth.Claims) (*model.User, error) {
					return nil, tt.err
				},
			}
			h := NewUserHandler(svc)

			req := withClaims(httptest.NewRequest(http.MethodGet, "/api/me", nil), testClaims("user-1"))
			w := httptest.NewRecorder()

			h.Me(w, req)

			if w.Result().StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Result().StatusCode, tt.wantStatus)
			}
		})
	}
}
