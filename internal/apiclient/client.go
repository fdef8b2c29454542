// Package apiclient はAPI Platform（JSON-LD/Hydra）バックエンドのHTTPクライアントを提供する。
// クライアント自体はトークンを保持せず、呼び出しごとにベアラートークンを受け取る。
// そのため1つのインスタンスを全リクエストで共有できる。
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultBaseURL はバックエンドAPIの既定のベースURL。
	DefaultBaseURL = "https://api.arawaney.com"
	// DefaultTimeout はリクエスト1件あたりの既定のタイムアウト。
	DefaultTimeout = 10 * time.Second

	contentTypeJSON       = "application/json"
	contentTypeMergePatch = "application/merge-patch+json"
	acceptJSONLD          = "application/ld+json"

	// maxResponseBytes はレスポンスボディの読み取り上限。
	maxResponseBytes = 1 << 20
)

// Recorder はリクエスト結果の計測先。metrics.Collector が実装する。
type Recorder interface {
	ObserveRemoteRequest(method string, status int, duration time.Duration)
}

// Client はバックエンドAPIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	timeout    time.Duration
	recorder   Recorder
}

// NewClient は Client の新しいインスタンスを生成する。
// baseURL が空の場合は DefaultBaseURL、timeout が0以下の場合は DefaultTimeout を使う。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
	}
}

// SetRecorder は計測先を設定する。
func (c *Client) SetRecorder(r Recorder) {
	c.recorder = r
}

// BaseURL は設定済みのベースURLを返す。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// URL はエンドポイントをベースURLと結合する。http(s):// で始まる場合はそのまま返す。
func (c *Client) URL(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
}

// Get はGETリクエストを送信し、レスポンスを out にデコードする。
func (c *Client) Get(ctx context.Context, endpoint, token string, out any) error {
	return c.do(ctx, http.MethodGet, endpoint, token, nil, out)
}

// Post はPOSTリクエストを送信する。
func (c *Client) Post(ctx context.Context, endpoint, token string, body, out any) error {
	return c.do(ctx, http.MethodPost, endpoint, token, body, out)
}

// Patch はmerge-patch形式のPATCHリクエストを送信する。
func (c *Client) Patch(ctx context.Context, endpoint, token string, body, out any) error {
	return c.do(ctx, http.MethodPatch, endpoint, token, body, out)
}

func (c *Client) do(ctx context.Context, method, endpoint, token string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(endpoint), reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", acceptJSONLD)
	if method == http.MethodPatch {
		req.Header.Set("Content-Type", contentTypeMergePatch)
	} else {
		req.Header.Set("Content-Type", contentTypeJSON)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("User-Agent", "ScalaYa/1.0")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(method, 0, start)
		return c.transportError(ctx, method, endpoint, err)
	}
	defer resp.Body.Close()
	c.observe(method, resp.StatusCode, start)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return c.transportError(ctx, method, endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb *ErrorBody
		if len(data) > 0 {
			var parsed ErrorBody
			if json.Unmarshal(data, &parsed) == nil {
				eb = &parsed
			}
		}
		apiErr := &Error{
			Status:  resp.StatusCode,
			Message: errorMessage(resp.StatusCode, eb),
			Body:    eb,
		}
		c.logger.Warn("バックエンドAPIがエラーステータスを返しました",
			slog.String("method", method),
			slog.String("endpoint", endpoint),
			slog.Int("http_status", resp.StatusCode),
		)
		return apiErr
	}

	if resp.StatusCode == http.StatusNoContent || out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Error("バックエンドAPIのレスポンスのパースに失敗しました",
			slog.String("method", method),
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return &Error{
			Status:  resp.StatusCode,
			Message: "Malformed response",
			Err:     fmt.Errorf("%w: %v", ErrMalformedResponse, err),
		}
	}
	return nil
}

// transportError はHTTP送受信の失敗をタイムアウトとネットワーク障害に分類する。
// キャンセルもタイムアウトとして扱う。
func (c *Client) transportError(ctx context.Context, method, endpoint string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		c.logger.Warn("バックエンドAPIの呼び出しがタイムアウトしました",
			slog.String("method", method),
			slog.String("endpoint", endpoint),
			slog.Duration("timeout", c.timeout),
		)
		return &Error{
			Status:  http.StatusRequestTimeout,
			Message: ErrTimeout.Error(),
			Err:     ErrTimeout,
		}
	}

	c.logger.Error("バックエンドAPIの呼び出しに失敗しました",
		slog.String("method", method),
		slog.String("endpoint", endpoint),
		slog.String("error", err.Error()),
	)
	return &Error{
		Status:  0,
		Message: "Network error: " + err.Error(),
		Err:     fmt.Errorf("%w: %w", ErrNetwork, err),
	}
}

func (c *Client) observe(method string, status int, start time.Time) {
	if c.recorder != nil {
		c.recorder.ObserveRemoteRequest(method, status, time.Since(start))
	}
}
