package auth

import (
	"database/sql"
	"fmt"

	"github.com/hitoshi/scalaya/internal/adapter/mock"
	"github.com/hitoshi/scalaya/internal/adapter/postgres"
	"github.com/hitoshi/scalaya/internal/adapter/remote"
	"github.com/hitoshi/scalaya/internal/port"
)

// BackendKind は認証バックエンドの種類。
type BackendKind string

// 利用可能なバックエンド
const (
	BackendMock     BackendKind = "mock"
	BackendRemote   BackendKind = "remote"
	BackendPostgres BackendKind = "postgres"
)

// ParseBackendKind は設定値を BackendKind に変換する。
func ParseBackendKind(s string) (BackendKind, error) {
	switch k := BackendKind(s); k {
	case BackendMock, BackendRemote, BackendPostgres:
		return k, nil
	}
	return "", fmt.Errorf("unknown auth backend: %q (allowed: mock, remote, postgres)", s)
}

// BackendFactory はリクエストごとに使うバックエンドを返す。
// accessToken はセッションが保持しているリモートAPIのトークン（無ければ空）。
type BackendFactory interface {
	Backend(accessToken string) port.Backend
}

// BackendFunc は関数を BackendFactory として使うためのアダプタ。
type BackendFunc func(accessToken string) port.Backend

// Backend は BackendFactory を実装する。
func (f BackendFunc) Backend(accessToken string) port.Backend {
	return f(accessToken)
}

// SharedBackend は状態を共有してよいバックエンド（mock、postgres）をそのまま返す。
func SharedBackend(b port.Backend) BackendFactory {
	return BackendFunc(func(string) port.Backend { return b })
}

// RemoteBackend は呼び出しごとに新しい remote.Adapter を生成する。
// トークンをセッション間で共有しないため、アダプタは使い回さない。
func RemoteBackend(cfg remote.Config) BackendFactory {
	return BackendFunc(func(accessToken string) port.Backend {
		return remote.New(cfg, accessToken)
	})
}

// BackendDeps は NewBackendFactory がバックエンドの生成に使う依存。
type BackendDeps struct {
	Remote remote.Config
	DB     *sql.DB
	Mock   []mock.Option
}

// NewBackendFactory は kind に応じた BackendFactory を返す。
// mock はプロセス全体で1つのデモストアを共有する。
func NewBackendFactory(kind BackendKind, deps BackendDeps) (BackendFactory, error) {
	switch kind {
	case BackendMock:
		store, err := mock.New(deps.Mock...)
		if err != nil {
			return nil, fmt.Errorf("failed to create mock backend: %w", err)
		}
		return SharedBackend(store), nil
	case BackendRemote:
		if deps.Remote.Client == nil {
			return nil, fmt.Errorf("remote backend requires an API client")
		}
		return RemoteBackend(deps.Remote), nil
	case BackendPostgres:
		if deps.DB == nil {
			return nil, fmt.Errorf("postgres backend requires a database connection")
		}
		return SharedBackend(postgres.New(deps.DB)), nil
	}
	return nil, fmt.Errorf("unknown auth backend: %q", kind)
}
