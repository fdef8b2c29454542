package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

// 通信失敗の分類。*Error の Unwrap で取り出せる。
var (
	ErrTimeout           = errors.New("Request timeout")
	ErrNetwork           = errors.New("Network error")
	ErrMalformedResponse = errors.New("malformed response")
)

// Violation はAPI Platformのバリデーション違反1件を表す。
type Violation struct {
	PropertyPath string `json:"propertyPath"`
	Message      string `json:"message"`
}

// ErrorBody はエラーレスポンスのボディ。Hydra形式とプレーンJSONの両方を受け付ける。
type ErrorBody struct {
	HydraTitle       string      `json:"hydra:title,omitempty"`
	HydraDescription string      `json:"hydra:description,omitempty"`
	Title            string      `json:"title,omitempty"`
	Detail           string      `json:"detail,omitempty"`
	Message          string      `json:"message,omitempty"`
	Violations       []Violation `json:"violations,omitempty"`
}

// Error はバックエンドAPIの呼び出し失敗を表す。
// Status は HTTP ステータス。タイムアウトは 408、ネットワーク障害は 0 になる。
type Error struct {
	Status  int
	Message string
	Body    *ErrorBody
	Err     error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

// Unwrap は分類用のセンチネルエラーを返す。
func (e *Error) Unwrap() error {
	return e.Err
}

// Timeout はタイムアウトによる失敗の場合にtrueを返す。
func (e *Error) Timeout() bool {
	return errors.Is(e.Err, ErrTimeout)
}

// StatusOf は err が *Error であればそのステータスを返す。それ以外は 0。
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsStatus は err が指定ステータスの *Error である場合にtrueを返す。
func IsStatus(err error, status int) bool {
	return StatusOf(err) == status
}

// errorMessage は hydra:description、message、ステータス文言の順にメッセージを決める。
func errorMessage(status int, body *ErrorBody) string {
	if body != nil {
		if body.HydraDescription != "" {
			return body.HydraDescription
		}
		if body.Message != "" {
			return body.Message
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "Request failed"
}
