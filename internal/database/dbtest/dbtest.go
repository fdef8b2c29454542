// Package dbtest はPostgresやRedisを使うテストのための接続先を用意する。
package dbtest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// URL はテスト用データベースの接続URLを返す。
// TEST_DATABASE_URL が設定されていればそれを使い、未設定の場合はtestcontainersでPostgreSQLを起動する。
// -short 指定時やDockerが使えない場合はテストをスキップする。
func URL(t *testing.T) string {
	t.Helper()

	if url := os.Getenv("TEST_DATABASE_URL"); url != "" {
		return url
	}
	if testing.Short() {
		t.Skip("-short が指定されているためPostgreSQLを使うテストをスキップします")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("scalaya_test"),
		postgres.WithUsername("scalaya"),
		postgres.WithPassword("scalaya"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skipf("PostgreSQLコンテナを起動できません（スキップ）: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("コンテナの停止に失敗: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("接続URLの取得に失敗: %v", err)
	}
	return url
}
