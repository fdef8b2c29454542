// Package auth は認証済みユーザーを長期間有効な署名付きセッショントークンへ橋渡しする。
// セッションはHS256で署名したJWTで、リモートバックエンドのベアラートークンを運ぶ。
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/scalaya/internal/model"
)

// DefaultSessionMaxAge はセッションの既定の有効期間（30日）。
const DefaultSessionMaxAge = 30 * 24 * time.Hour

// セッショントークンの検証エラー
var (
	ErrInvalidSession = errors.New("invalid session token")
	ErrSessionExpired = errors.New("session expired")
	ErrSessionRevoked = errors.New("session revoked")
)

// Claims はセッショントークンのクレーム。Subject がユーザーID。
type Claims struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	Picture     string `json:"picture,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
	Provider    string `json:"provider,omitempty"`
	jwt.RegisteredClaims
}

// User はクレームからユーザーを復元する。
func (c *Claims) User() model.User {
	u := model.User{
		ID:    c.Subject,
		Name:  c.Name,
		Email: c.Email,
	}
	if c.Picture != "" {
		pic := c.Picture
		u.Image = &pic
	}
	return u
}

// Session はUIへ公開するセッション表現を返す。
func (c *Claims) Session() model.Session {
	s := model.Session{
		User:        c.User(),
		AccessToken: c.AccessToken,
	}
	if c.ExpiresAt != nil {
		s.Expires = c.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return s
}

// SessionConfig はセッショントークンの設定。
type SessionConfig struct {
	Secret []byte
	MaxAge time.Duration
	Issuer string
}

// Sessions はセッショントークンを発行・検証する。
type Sessions struct {
	secret []byte
	maxAge time.Duration
	issuer string
	now    func() time.Time
}

// NewSessions は Sessions を生成する。Secret は必須。
func NewSessions(cfg SessionConfig) (*Sessions, error) {
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("session secret is required")
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultSessionMaxAge
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "scalaya"
	}
	return &Sessions{
		secret: cfg.Secret,
		maxAge: cfg.MaxAge,
		issuer: cfg.Issuer,
		now:    time.Now,
	}, nil
}

// MaxAge はセッションの有効期間を返す。
func (s *Sessions) MaxAge() time.Duration {
	return s.maxAge
}

// Issue はユーザーのセッショントークンを発行する。
// accessToken が空でなければクレームに含める。
func (s *Sessions) Issue(u model.User, accessToken, provider string) (string, *Claims, error) {
	now := s.now()
	claims := &Claims{
		Email:       u.Email,
		Name:        u.Name,
		AccessToken: accessToken,
		Provider:    provider,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    s.issuer,
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.maxAge)),
		},
	}
	if u.Image != nil {
		claims.Picture = *u.Image
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, claims, nil
}

// Parse はセッショントークンを検証し、クレームを返す。
func (s *Sessions) Parse(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidSession)
	}
	return claims, nil
}
