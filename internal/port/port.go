// Package port はユースケースが依存する認証・ユーザー永続化の抽象を定義する。
// 具体的な実装は internal/adapter 配下にある。
package port

import (
	"context"

	"github.com/hitoshi/scalaya/internal/model"
)

// AuthPort は認証操作を抽象化する。
type AuthPort interface {
	// Authenticate は資格情報を照合する。不一致の場合は nil, nil を返す。
	Authenticate(ctx context.Context, creds model.LoginCredentials) (*model.User, error)
	// Register は新規ユーザーを資格情報とともに登録する。
	// メールアドレスが既に使われている場合は model.ErrEmailAlreadyExists を返す。
	Register(ctx context.Context, creds model.RegisterCredentials) (*model.User, error)
	// FindUserByEmail はメールアドレスでユーザーを検索する。見つからない場合は nil, nil を返す。
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// UserPort はユーザーの参照・更新を抽象化する。
type UserPort interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	Create(ctx context.Context, u model.NewUser) (*model.User, error)
	// Update は存在しないIDに対して model.ErrUserNotFound を返す。
	Update(ctx context.Context, id string, patch model.UserPatch) (*model.User, error)
}

// Backend は AuthPort と UserPort の両方を実装するアダプタ。
type Backend interface {
	AuthPort
	UserPort
}

// TokenSource はリモートAPIのベアラートークンを保持するアダプタが実装する任意の能力。
// 実装していないアダプタではセッションにトークンを付与しない。
type TokenSource interface {
	Token() string
}

// TokenOf は b が TokenSource を実装していればそのトークンを返す。
func TokenOf(b any) string {
	if ts, ok := b.(TokenSource); ok {
		return ts.Token()
	}
	return ""
}
