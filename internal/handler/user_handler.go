package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/scalaya/internal/auth"
	"github.com/hitoshi/scalaya/internal/middleware"
	"github.com/hitoshi/scalaya/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// CurrentUser はセッションのユーザーをバックエンドから取得する。
	CurrentUser(ctx context.Context, claims *auth.Claims) (*model.User, error)
}

// UserHandler はログインユーザー情報のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// Me は現在のログインユーザー情報を返す。
// GET /api/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	user, err := h.service.CurrentUser(r.Context(), claims)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if user == nil {
		slog.Warn("session user not found", slog.String("user_id", claims.Subject))
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError())
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(*user))
}
