// Package usecase は認証まわりのアプリケーション操作を提供する。
// ポートのみに依存し、どのアダプタが選ばれているかは関知しない。
package usecase

import (
	"context"
	"fmt"

	"github.com/hitoshi/scalaya/internal/model"
	"github.com/hitoshi/scalaya/internal/port"
	"github.com/hitoshi/scalaya/internal/schema"
)

// AuthenticateUser はログイン入力を検証し、ポートで認証する。
// 資格情報が一致しない場合は nil, nil を返す。
func AuthenticateUser(ctx context.Context, creds model.LoginCredentials, auth port.AuthPort) (*model.User, error) {
	valid, err := schema.ParseLoginCredentials(creds)
	if err != nil {
		return nil, err
	}
	return auth.Authenticate(ctx, valid)
}

// RegisterUser はサインアップ入力を検証し、未登録のメールアドレスであれば登録する。
// 既に存在する場合は Register を呼ばずに model.ErrUserAlreadyExists を返す。
func RegisterUser(ctx context.Context, creds model.RegisterCredentials, auth port.AuthPort) (*model.User, error) {
	valid, err := schema.ParseRegisterCredentials(creds)
	if err != nil {
		return nil, err
	}

	existing, err := auth.FindUserByEmail(ctx, valid.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user by email: %w", err)
	}
	if existing != nil {
		return nil, model.ErrUserAlreadyExists
	}

	return auth.Register(ctx, valid)
}

// GetCurrentUser はセッションのユーザーIDからユーザーを取得する。
// IDが空の場合はポートを呼ばずに nil を返す。
func GetCurrentUser(ctx context.Context, userID string, users port.UserPort) (*model.User, error) {
	if userID == "" {
		return nil, nil
	}
	return users.FindByID(ctx, userID)
}
