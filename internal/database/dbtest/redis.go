package dbtest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// RedisURL はテスト用RedisのURLを返す。
// TEST_REDIS_URL が設定されていればそれを使い、未設定の場合はtestcontainersでRedisを起動する。
func RedisURL(t *testing.T) string {
	t.Helper()

	if url := os.Getenv("TEST_REDIS_URL"); url != "" {
		return url
	}
	if testing.Short() {
		t.Skip("-short が指定されているためRedisを使うテストをスキップします")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("Redisコンテナを起動できません（スキップ）: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("コンテナの停止に失敗: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Redisエンドポイントの取得に失敗: %v", err)
	}
	return "redis://" + endpoint
}
