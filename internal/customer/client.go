// Package customer は購入者・出品者のアカウント登録APIのクライアントを提供する。
//
// 入力はすべての項目を検証してから送信し、サーバーの応答はフォームに表示できる
// Result に変換する。
package customer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/scalaya/internal/apiclient"
	"github.com/hitoshi/scalaya/internal/model"
	"github.com/hitoshi/scalaya/internal/validation"
)

// 画面に表示するメッセージ
const (
	MessageCreated       = "Account created. Redirecting to login…"
	MessageGenericFailed = "Registration failed — please try again or contact support."
	MessageConfigError   = "API configuration error. Please contact support."
	MessageTimeout       = "The registration service did not respond in time. Please try again."
)

// サーバーが返すエラーコード
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeEmailExists     = "EMAIL_EXISTS"
)

const (
	customerRegisterPath = "/api/customer/register"
	sellerRegisterPath   = "/api/seller/register"
	defaultTimeout       = 10 * time.Second
	maxResponseBytes     = 1 << 20
)

// Failure は登録失敗の分類。
type Failure string

// 失敗の分類
const (
	FailureNone          Failure = ""
	FailureValidation    Failure = "validation"
	FailureEmailExists   Failure = "email_exists"
	FailureConfiguration Failure = "configuration"
	FailureUpstream      Failure = "upstream"
	FailureTimeout       Failure = "timeout"
)

// Customer はサーバーが返す登録済みアカウント。
type Customer struct {
	ID           apiclient.ID `json:"id"`
	Email        string       `json:"email"`
	FirstName    string       `json:"firstName"`
	LastName     string       `json:"lastName"`
	BusinessName string       `json:"businessName,omitempty"`
	Phone        *string      `json:"phone"`
	Status       string       `json:"status,omitempty"`
}

// Result は登録の結果。Created が false の場合は FieldErrors か Message に理由が入る。
type Result struct {
	Created     bool
	Message     string
	Customer    *Customer
	FieldErrors validation.FieldErrors
	Failure     Failure
	// Status はサーバーのHTTPステータス。送信しなかった場合は0。
	Status int
}

type successResponse struct {
	Message  string    `json:"message"`
	Customer *Customer `json:"customer"`
}

type errorResponse struct {
	Error *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

type errorDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Client は登録APIのクライアント。並行利用できる。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	timeout    time.Duration
	recorder   apiclient.Recorder
}

// NewClient は Client を生成する。baseURL が空の場合、登録は設定エラーになる。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
	}
}

// SetRecorder は計測先を設定する。
func (c *Client) SetRecorder(r apiclient.Recorder) {
	c.recorder = r
}

// RegisterCustomer は購入者アカウントを登録する。
func (c *Client) RegisterCustomer(ctx context.Context, data model.CustomerRegistrationData) Result {
	if errs := validation.ValidateCustomerRegistration(data); len(errs) > 0 {
		return Result{FieldErrors: errs, Failure: FailureValidation}
	}
	return c.register(ctx, customerRegisterPath, model.CustomerRegistrationData{
		Email:     strings.TrimSpace(data.Email),
		Password:  data.Password,
		FirstName: strings.TrimSpace(data.FirstName),
		LastName:  strings.TrimSpace(data.LastName),
		Phone:     strings.TrimSpace(data.Phone),
	})
}

// RegisterSeller は出品者アカウントを登録する。
func (c *Client) RegisterSeller(ctx context.Context, data model.SellerRegistrationData) Result {
	if errs := validation.ValidateSellerRegistration(data); len(errs) > 0 {
		return Result{FieldErrors: errs, Failure: FailureValidation}
	}
	return c.register(ctx, sellerRegisterPath, model.SellerRegistrationData{
		Email:        strings.TrimSpace(data.Email),
		Password:     data.Password,
		FirstName:    strings.TrimSpace(data.FirstName),
		LastName:     strings.TrimSpace(data.LastName),
		BusinessName: strings.TrimSpace(data.BusinessName),
		Phone:        strings.TrimSpace(data.Phone),
	})
}

func (c *Client) register(ctx context.Context, path string, payload any) Result {
	if c.baseURL == "" {
		c.logger.Error("登録APIのベースURLが設定されていません", slog.String("path", path))
		return Result{Message: MessageConfigError, Failure: FailureConfiguration}
	}

	status, contentType, body, err := c.post(ctx, path, payload)
	if err != nil {
		c.logger.Error("登録APIの呼び出しに失敗しました",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, apiclient.ErrTimeout) {
			return Result{Message: MessageTimeout, Failure: FailureTimeout}
		}
		return genericFailure(0)
	}

	if !isJSON(contentType) {
		c.logger.Error("登録APIがJSON以外のレスポンスを返しました",
			slog.String("path", path),
			slog.Int("http_status", status),
			slog.String("content_type", contentType),
		)
		return genericFailure(status)
	}

	if status == http.StatusCreated {
		var ok successResponse
		if err := json.Unmarshal(body, &ok); err != nil {
			return genericFailure(status)
		}
		msg := ok.Message
		if msg == "" {
			msg = MessageCreated
		}
		return Result{Created: true, Message: msg, Customer: ok.Customer, Status: status}
	}

	var failed errorResponse
	if status < 400 || json.Unmarshal(body, &failed) != nil || failed.Error == nil {
		return genericFailure(status)
	}

	switch e := failed.Error; {
	case e.Code == CodeValidationError && isArray(e.Details):
		var details []errorDetail
		if err := json.Unmarshal(e.Details, &details); err != nil {
			return genericFailure(status)
		}
		fieldErrs := make(validation.FieldErrors, 0, len(details))
		for _, d := range details {
			fieldErrs = append(fieldErrs, validation.FieldError{Field: d.Field, Message: d.Message})
		}
		return Result{FieldErrors: fieldErrs, Failure: FailureValidation, Status: status, Message: e.Message}
	case e.Code == CodeEmailExists:
		return Result{
			FieldErrors: validation.FieldErrors{{Field: "email", Message: e.Message}},
			Failure:     FailureEmailExists,
			Status:      status,
		}
	case e.Message != "":
		return Result{Message: e.Message, Failure: FailureUpstream, Status: status}
	}
	return genericFailure(status)
}

func (c *Client) post(ctx context.Context, path string, payload any) (int, string, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	b, err := json.Marshal(payload)
	if err != nil {
		return 0, "", nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return 0, "", nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "ScalaYa/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(0, start)
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return 0, "", nil, fmt.Errorf("%w: %w", apiclient.ErrTimeout, err)
		}
		return 0, "", nil, fmt.Errorf("%w: %w", apiclient.ErrNetwork, err)
	}
	defer resp.Body.Close()
	c.observe(resp.StatusCode, start)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctx.Err() != nil {
			return 0, "", nil, fmt.Errorf("%w: %w", apiclient.ErrTimeout, err)
		}
		return 0, "", nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, resp.Header.Get("Content-Type"), body, nil
}

func (c *Client) observe(status int, start time.Time) {
	if c.recorder != nil {
		c.recorder.ObserveRemoteRequest(http.MethodPost, status, time.Since(start))
	}
}

func genericFailure(status int) Result {
	return Result{Message: MessageGenericFailed, Failure: FailureUpstream, Status: status}
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
