// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/scalaya/internal/apiclient"
	"github.com/hitoshi/scalaya/internal/middleware"
	"github.com/hitoshi/scalaya/internal/model"
	"github.com/hitoshi/scalaya/internal/schema"
)

// maxRequestBody はJSONリクエストボディの上限（1MB）。
const maxRequestBody = 1 << 20

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをJSONとして読み込む。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	return json.NewDecoder(r.Body).Decode(v)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// writeInvalidBody はJSONとして読めないリクエストへの400レスポンスを書き込む。
func writeInvalidBody(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Invalid request body"))
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	var schemaErr *schema.Error
	switch {
	case errors.As(err, &schemaErr):
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError(schemaErr.First()))
		return
	case errors.Is(err, model.ErrInvalidCredentials):
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialsError())
		return
	case errors.Is(err, model.ErrUserNotFound):
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError())
		return
	case errors.Is(err, apiclient.ErrTimeout):
		slog.Warn("backend request timed out", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusGatewayTimeout, model.NewUpstreamError(true))
		return
	case errors.Is(err, apiclient.ErrNetwork), errors.Is(err, apiclient.ErrMalformedResponse), apiclient.StatusOf(err) >= 500:
		slog.Error("backend request failed", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusBadGateway, model.NewUpstreamError(false))
		return
	}

	// それ以外は内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidation:
		return http.StatusBadRequest
	case model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeUserExists, model.ErrCodeEmailExists:
		return http.StatusConflict
	case model.ErrCodeUpstream:
		return http.StatusBadGateway
	case model.ErrCodeUpstreamTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
