// Package remote はAPI Platformバックエンドに委譲する port.Backend の実装を提供する。
//
// Adapter はベアラートークンを1つ保持するため、セッション（リクエスト）ごとに生成する。
// 複数のユーザーで1つの Adapter を共有してはならない。
package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/scalaya/internal/apiclient"
	"github.com/hitoshi/scalaya/internal/model"
	"github.com/hitoshi/scalaya/internal/port"
	"github.com/hitoshi/scalaya/internal/security"
)

// Endpoints はバックエンドAPIのエンドポイント。
type Endpoints struct {
	Login        string
	RefreshToken string // 未使用
	Logout       string
	Customers    string
}

// DefaultEndpoints は既定のエンドポイントを返す。
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Login:        "/api/login_check",
		RefreshToken: "/api/token/refresh",
		Logout:       "/api/logout",
		Customers:    "/api/customers",
	}
}

// Config は Adapter の共有依存。リクエスト間で使い回してよい。
type Config struct {
	Client    *apiclient.Client
	Endpoints Endpoints
	Sanitizer security.TextSanitizer
	Logger    *slog.Logger
}

// Adapter はセッション単位のリモートバックエンドアダプタ。並行利用には対応しない。
type Adapter struct {
	cfg          Config
	token        string
	refreshToken string
}

var (
	_ port.Backend     = (*Adapter)(nil)
	_ port.TokenSource = (*Adapter)(nil)
)

// New は token を保持した Adapter を生成する。token は空でもよい。
func New(cfg Config, token string) *Adapter {
	if cfg.Endpoints == (Endpoints{}) {
		cfg.Endpoints = DefaultEndpoints()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Adapter{cfg: cfg, token: token}
}

// Token は保持しているベアラートークンを返す。
func (a *Adapter) Token() string {
	return a.token
}

// SetToken はベアラートークンを差し替える。
func (a *Adapter) SetToken(token string) {
	a.token = token
}

// RefreshToken はログイン時に受け取ったリフレッシュトークンを返す。
func (a *Adapter) RefreshToken() string {
	return a.refreshToken
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Authenticate はログインエンドポイントでトークンを取得し、続けて顧客情報を取得する。
// 401 と 404 は認証失敗として nil, nil を返す。
func (a *Adapter) Authenticate(ctx context.Context, creds model.LoginCredentials) (*model.User, error) {
	var resp loginResponse
	err := a.cfg.Client.Post(ctx, a.cfg.Endpoints.Login, "", loginRequest(creds), &resp)
	if err != nil {
		switch apiclient.StatusOf(err) {
		case http.StatusUnauthorized:
			return nil, nil
		case http.StatusNotFound:
			a.cfg.Logger.Error("ログインエンドポイントが見つかりません。API_LOGIN_ENDPOINT の設定を確認してください",
				slog.String("endpoint", a.cfg.Endpoints.Login),
			)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	if resp.Token == "" {
		return nil, nil
	}

	a.token = resp.Token
	a.refreshToken = resp.RefreshToken

	return a.FindByEmail(ctx, creds.Email)
}

type registerRequest struct {
	Email         string `json:"email"`
	Name          string `json:"name"`
	PlainPassword string `json:"plainPassword"`
}

// Register は顧客リソースを作成する。
func (a *Adapter) Register(ctx context.Context, creds model.RegisterCredentials) (*model.User, error) {
	var c Customer
	err := a.cfg.Client.Post(ctx, a.cfg.Endpoints.Customers, a.token, registerRequest{
		Email:         creds.Email,
		Name:          creds.Name,
		PlainPassword: creds.Password,
	}, &c)
	if err != nil {
		a.cfg.Logger.Warn("顧客の登録に失敗しました", slog.String("error", err.Error()))
		return nil, newRegistrationError(err)
	}

	// 201 でボディが空、または識別子を含まない場合は作成された顧客を検索し直す
	if c.ID == "" && c.IRI == "" && c.Email == "" {
		u, err := a.FindByEmail(ctx, creds.Email)
		if err != nil {
			return nil, newRegistrationError(err)
		}
		if u == nil {
			a.cfg.Logger.Warn("登録した顧客を取得できませんでした")
			return nil, newRegistrationError(nil)
		}
		return u, nil
	}

	u := a.toUser(c)
	return &u, nil
}

// FindUserByEmail は FindByEmail と同じ。
func (a *Adapter) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return a.FindByEmail(ctx, email)
}

// FindByEmail はメールアドレスで顧客を検索し、先頭の1件を返す。
// 404 や空のコレクションは nil, nil を返す。
// トークン未保持での 401/403 は存在を確認できないため、見つからなかったものとして扱う。
// その場合の重複はバックエンドの登録時の 409 で検出される。
func (a *Adapter) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	q := url.Values{"email": {email}}
	var col apiclient.Collection[Customer]
	if err := a.cfg.Client.Get(ctx, a.cfg.Endpoints.Customers+"?"+q.Encode(), a.token, &col); err != nil {
		switch status := apiclient.StatusOf(err); {
		case status == http.StatusNotFound:
			return nil, nil
		case a.token == "" && (status == http.StatusUnauthorized || status == http.StatusForbidden):
			a.cfg.Logger.Debug("未認証のため顧客の検索を省略しました", slog.Int("http_status", status))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find customer by email: %w", err)
	}

	c, ok := col.First()
	if !ok {
		return nil, nil
	}
	u := a.toUser(c)
	return &u, nil
}

// FindByID はIDで顧客を取得する。IRI（/api/customers/1 形式）も受け付ける。
func (a *Adapter) FindByID(ctx context.Context, id string) (*model.User, error) {
	var c Customer
	if err := a.cfg.Client.Get(ctx, a.itemEndpoint(id), a.token, &c); err != nil {
		if apiclient.IsStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find customer by id: %w", err)
	}
	u := a.toUser(c)
	return &u, nil
}

type createRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Create はパスワードなしで顧客リソースを作成する。
func (a *Adapter) Create(ctx context.Context, nu model.NewUser) (*model.User, error) {
	var c Customer
	if err := a.cfg.Client.Post(ctx, a.cfg.Endpoints.Customers, a.token, createRequest{Email: nu.Email, Name: nu.Name}, &c); err != nil {
		if apiclient.IsStatus(err, http.StatusConflict) {
			return nil, model.ErrEmailAlreadyExists
		}
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	u := a.toUser(c)
	return &u, nil
}

// Update は名前・メールアドレスのうち指定されたものだけをPATCHで送る。
func (a *Adapter) Update(ctx context.Context, id string, patch model.UserPatch) (*model.User, error) {
	if patch.Empty() {
		u, err := a.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if u == nil {
			return nil, model.ErrUserNotFound
		}
		return u, nil
	}

	var c Customer
	if err := a.cfg.Client.Patch(ctx, a.itemEndpoint(id), a.token, patch, &c); err != nil {
		switch apiclient.StatusOf(err) {
		case http.StatusNotFound:
			return nil, model.ErrUserNotFound
		case http.StatusConflict:
			return nil, model.ErrEmailAlreadyExists
		}
		return nil, fmt.Errorf("failed to update customer: %w", err)
	}
	u := a.toUser(c)
	return &u, nil
}

// Logout はバックエンドのセッションを終了し、保持しているトークンを破棄する。
// トークンを持っていない場合は何もしない。
func (a *Adapter) Logout(ctx context.Context) error {
	if a.token == "" {
		return nil
	}
	err := a.cfg.Client.Post(ctx, a.cfg.Endpoints.Logout, a.token, nil, nil)
	a.token = ""
	a.refreshToken = ""
	if err != nil && !apiclient.IsStatus(err, http.StatusNotFound) {
		return fmt.Errorf("failed to logout: %w", err)
	}
	return nil
}

func (a *Adapter) itemEndpoint(id string) string {
	if strings.HasPrefix(id, "/") {
		return id
	}
	return a.cfg.Endpoints.Customers + "/" + url.PathEscape(id)
}

func (a *Adapter) toUser(c Customer) model.User {
	if a.cfg.Sanitizer != nil {
		c.Name = a.cfg.Sanitizer.Sanitize(c.Name)
	}
	return MapCustomerToUser(c)
}

// RegistrationError はバックエンドでの登録失敗を表す。
// Message はそのままUIに表示できる。errors.Is で Kind（model.ErrEmailAlreadyExists または
// model.ErrRegistrationFailed）と判定できる。
type RegistrationError struct {
	Message    string
	Violations []apiclient.Violation
	Kind       error
	Cause      error
}

// Error はerrorインターフェースを実装する。
func (e *RegistrationError) Error() string {
	return e.Message
}

// Unwrap は Kind と Cause を返す。
func (e *RegistrationError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

func newRegistrationError(err error) *RegistrationError {
	re := &RegistrationError{
		Message: model.ErrRegistrationFailed.Error(),
		Kind:    model.ErrRegistrationFailed,
		Cause:   err,
	}

	var apiErr *apiclient.Error
	if !errors.As(err, &apiErr) {
		return re
	}

	if apiErr.Body != nil && len(apiErr.Body.Violations) > 0 {
		msgs := make([]string, 0, len(apiErr.Body.Violations))
		for _, v := range apiErr.Body.Violations {
			msgs = append(msgs, v.Message)
		}
		re.Message = "Validation failed: " + strings.Join(msgs, ", ")
		re.Violations = apiErr.Body.Violations
		return re
	}

	switch apiErr.Status {
	case http.StatusUnprocessableEntity:
		re.Message = "Invalid registration data"
	case http.StatusConflict:
		re.Message = model.ErrEmailAlreadyExists.Error()
		re.Kind = model.ErrEmailAlreadyExists
	}
	return re
}
