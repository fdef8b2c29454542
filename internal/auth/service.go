package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/scalaya/internal/adapter/remote"
	"github.com/hitoshi/scalaya/internal/model"
	"github.com/hitoshi/scalaya/internal/port"
	"github.com/hitoshi/scalaya/internal/schema"
	"github.com/hitoshi/scalaya/internal/usecase"
)

// 認証試行・登録の結果ラベル
const (
	ResultSuccess  = "success"
	ResultInvalid  = "invalid"
	ResultConflict = "conflict"
	ResultError    = "error"
)

// Recorder は認証結果を記録する。metrics.Collector が実装する。
type Recorder interface {
	RecordAuthAttempt(result string)
	RecordRegistration(result string)
}

type nopRecorder struct{}

func (nopRecorder) RecordAuthAttempt(string)  {}
func (nopRecorder) RecordRegistration(string) {}

// logouter はバックエンド側のセッション終了に対応するアダプタが実装する。
type logouter interface {
	Logout(ctx context.Context) error
}

// ServiceDeps は Service の依存。Backends と Sessions は必須。
type ServiceDeps struct {
	Backends BackendFactory
	Sessions *Sessions
	Revoker  Revoker
	OAuth    OAuthProvider // nil の場合Googleログインは無効
	Recorder Recorder
	Logger   *slog.Logger
}

// SignInResult はサインインで発行したセッション。
type SignInResult struct {
	Token  string
	Claims *Claims
	User   model.User
}

// Service は認証済みユーザーとセッショントークンの橋渡しを行う。
type Service struct {
	backends BackendFactory
	sessions *Sessions
	revoker  Revoker
	oauth    OAuthProvider
	recorder Recorder
	logger   *slog.Logger
}

// NewService はServiceを生成する。
func NewService(deps ServiceDeps) *Service {
	if deps.Revoker == nil {
		deps.Revoker = NewMemoryRevoker()
	}
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		backends: deps.Backends,
		sessions: deps.Sessions,
		revoker:  deps.Revoker,
		oauth:    deps.OAuth,
		recorder: deps.Recorder,
		logger:   deps.Logger,
	}
}

// SessionMaxAge はセッションの有効期間を返す。
func (s *Service) SessionMaxAge() time.Duration {
	return s.sessions.MaxAge()
}

// Providers は有効なサインイン方式を返す。
func (s *Service) Providers() []string {
	providers := []string{"credentials"}
	if s.oauth != nil {
		providers = append(providers, "google")
	}
	return providers
}

// SignIn は資格情報を検証し、セッションを発行する。
// 資格情報が一致しない場合は model.ErrInvalidCredentials を返す。
func (s *Service) SignIn(ctx context.Context, creds model.LoginCredentials) (*SignInResult, error) {
	backend := s.backends.Backend("")

	user, err := usecase.AuthenticateUser(ctx, creds, backend)
	if err != nil {
		if errors.Is(err, schema.ErrInvalid) {
			s.recorder.RecordAuthAttempt(ResultInvalid)
		} else {
			s.recorder.RecordAuthAttempt(ResultError)
		}
		return nil, err
	}
	if user == nil {
		s.recorder.RecordAuthAttempt(ResultInvalid)
		return nil, model.ErrInvalidCredentials
	}

	result, err := s.issue(*user, port.TokenOf(backend), "credentials")
	if err != nil {
		s.recorder.RecordAuthAttempt(ResultError)
		return nil, err
	}
	s.recorder.RecordAuthAttempt(ResultSuccess)

	s.logger.InfoContext(ctx, "user signed in",
		slog.String("user_id", user.ID),
		slog.Bool("has_access_token", result.Claims.AccessToken != ""),
	)
	return result, nil
}

// Register は新規ユーザーを登録する。登録後のサインインは行わない。
func (s *Service) Register(ctx context.Context, creds model.RegisterCredentials) (*model.User, error) {
	user, err := usecase.RegisterUser(ctx, creds, s.backends.Backend(""))
	if err != nil {
		s.recorder.RecordRegistration(registrationResult(err))
		return nil, err
	}
	s.recorder.RecordRegistration(ResultSuccess)
	s.logger.InfoContext(ctx, "user registered", slog.String("user_id", user.ID))
	return user, nil
}

func registrationResult(err error) string {
	switch {
	case errors.Is(err, model.ErrUserAlreadyExists), errors.Is(err, model.ErrEmailAlreadyExists):
		return ResultConflict
	case errors.Is(err, schema.ErrInvalid):
		return ResultInvalid
	}
	var regErr *remote.RegistrationError
	if errors.As(err, &regErr) && len(regErr.Violations) > 0 {
		return ResultInvalid
	}
	return ResultError
}

// Authenticate はセッショントークンを検証し、失効していなければクレームを返す。
func (s *Service) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := s.sessions.Parse(token)
	if err != nil {
		return nil, err
	}
	if claims.ID != "" {
		revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check session revocation: %w", err)
		}
		if revoked {
			return nil, ErrSessionRevoked
		}
	}
	return claims, nil
}

// CurrentUser はセッションのユーザーをバックエンドから取得する。
// OAuthで作成したセッションでバックエンドにユーザーが無い場合はクレームから復元する。
func (s *Service) CurrentUser(ctx context.Context, claims *Claims) (*model.User, error) {
	if claims == nil {
		return nil, nil
	}
	user, err := usecase.GetCurrentUser(ctx, claims.Subject, s.backends.Backend(claims.AccessToken))
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	if user == nil && claims.Provider == "google" {
		u := claims.User()
		return &u, nil
	}
	return user, nil
}

// SignOut はセッションを失効させる。バックエンドがログアウトに対応していれば併せて呼び出す。
func (s *Service) SignOut(ctx context.Context, claims *Claims) error {
	if claims == nil {
		return nil
	}

	if claims.AccessToken != "" {
		if lo, ok := s.backends.Backend(claims.AccessToken).(logouter); ok {
			if err := lo.Logout(ctx); err != nil {
				s.logger.WarnContext(ctx, "backend logout failed",
					slog.String("user_id", claims.Subject),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	if claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	if err := s.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	s.logger.InfoContext(ctx, "user signed out", slog.String("user_id", claims.Subject))
	return nil
}

// OAuthEnabled はGoogleログインが有効かを返す。
func (s *Service) OAuthEnabled() bool {
	return s.oauth != nil
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	if s.oauth == nil {
		return ""
	}
	return s.oauth.GetLoginURL(state)
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
func (s *Service) HandleCallback(ctx context.Context, code string) (*SignInResult, error) {
	if s.oauth == nil {
		return nil, fmt.Errorf("oauth provider is not configured")
	}
	info, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		s.recorder.RecordAuthAttempt(ResultError)
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}
	return s.SignInWithOAuth(ctx, info)
}

// SignInWithOAuth はOAuthプロバイダーで確認済みのユーザーにセッションを発行する。
// バックエンドに同じメールアドレスのユーザーがいればそのユーザーでログインし、
// いなければ作成を試みる。作成できない場合はプロバイダーのIDをそのまま使う。
func (s *Service) SignInWithOAuth(ctx context.Context, info *OAuthUserInfo) (*SignInResult, error) {
	if info == nil || info.ProviderUserID == "" {
		return nil, fmt.Errorf("oauth user info is required")
	}

	user := s.resolveOAuthUser(ctx, info)
	result, err := s.issue(user, "", info.Provider)
	if err != nil {
		s.recorder.RecordAuthAttempt(ResultError)
		return nil, err
	}
	s.recorder.RecordAuthAttempt(ResultSuccess)

	s.logger.InfoContext(ctx, "user signed in with oauth",
		slog.String("user_id", user.ID),
		slog.String("provider", info.Provider),
	)
	return result, nil
}

func (s *Service) resolveOAuthUser(ctx context.Context, info *OAuthUserInfo) model.User {
	identity := model.User{
		ID:    info.ProviderUserID,
		Name:  info.Name,
		Email: info.Email,
	}
	if info.Picture != "" {
		pic := info.Picture
		identity.Image = &pic
	}
	if info.Email == "" {
		return identity
	}

	backend := s.backends.Backend("")
	existing, err := backend.FindByEmail(ctx, info.Email)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to look up oauth user",
			slog.String("provider", info.Provider),
			slog.String("error", err.Error()),
		)
		return identity
	}
	if existing != nil {
		return *existing
	}

	created, err := backend.Create(ctx, model.NewUser{Name: info.Name, Email: info.Email, Image: identity.Image})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to create oauth user, using provider identity",
			slog.String("provider", info.Provider),
			slog.String("error", err.Error()),
		)
		return identity
	}
	return *created
}

func (s *Service) issue(u model.User, accessToken, provider string) (*SignInResult, error) {
	token, claims, err := s.sessions.Issue(u, accessToken, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}
	return &SignInResult{Token: token, Claims: claims, User: u}, nil
}
