// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// ドメインエラー。メッセージはそのままUIに表示できる文言とする。
var (
	ErrUserNotFound       = errors.New("User not found")
	ErrUserAlreadyExists  = errors.New("User with this email already exists")
	ErrEmailAlreadyExists = errors.New("Email already exists")
	ErrRegistrationFailed = errors.New("Registration failed. Please try again.")
	ErrInvalidCredentials = errors.New("Invalid email or password")
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, registration, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeUserExists         = "USER_EXISTS"
	ErrCodeEmailExists        = "EMAIL_EXISTS"
	ErrCodeRegistrationFailed = "REGISTRATION_FAILED"
	ErrCodeUpstream           = "UPSTREAM_ERROR"
	ErrCodeUpstreamTimeout    = "UPSTREAM_TIMEOUT"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeCSRFInvalid        = "CSRF_INVALID"
	ErrCodeRateLimitExceeded  = "rate_limit_exceeded"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "Check the highlighted fields and try again.",
	}
}

// NewInvalidCredentialsError は認証失敗エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  ErrInvalidCredentials.Error(),
		Category: "auth",
		Action:   "Check your email and password.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  ErrUserNotFound.Error(),
		Category: "auth",
		Action:   "Please sign in again.",
	}
}

// NewUserExistsError は登録済みメールアドレスでのサインアップ時のエラーを生成する。
func NewUserExistsError(err error) *APIError {
	return &APIError{
		Code:     ErrCodeUserExists,
		Message:  err.Error(),
		Category: "registration",
		Action:   "Sign in instead, or register with a different email.",
	}
}

// NewRegistrationFailedError は登録処理の失敗エラーを生成する。
func NewRegistrationFailedError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeRegistrationFailed,
		Message:  message,
		Category: "registration",
		Action:   "Please wait a moment and try again.",
	}
}

// NewUpstreamError はバックエンドAPIとの通信失敗エラーを生成する。
func NewUpstreamError(timeout bool) *APIError {
	if timeout {
		return &APIError{
			Code:     ErrCodeUpstreamTimeout,
			Message:  "Request timeout",
			Category: "system",
			Action:   "Please wait a moment and try again.",
		}
	}
	return &APIError{
		Code:     ErrCodeUpstream,
		Message:  "The service is temporarily unavailable.",
		Category: "system",
		Action:   "Please wait a moment and try again.",
	}
}

// NewUnauthorizedError はセッションが無い、または無効な場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Authentication required",
		Category: "auth",
		Action:   "Please sign in again.",
	}
}

// NewCSRFInvalidError はCSRFトークン検証失敗のエラーを生成する。
func NewCSRFInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFInvalid,
		Message:  "CSRF token validation failed",
		Category: "auth",
		Action:   "Reload the page and try again.",
	}
}

// NewRateLimitError はレート制限超過のエラーを生成する。
func NewRateLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Please wait and retry after the specified time.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "An unexpected error occurred",
		Category: "system",
		Action:   "Please wait a moment and try again.",
	}
}
