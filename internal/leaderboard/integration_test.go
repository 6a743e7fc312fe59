//go:build integration

package leaderboard_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/felixgeelhaar/arise/internal/domain"
	"github.com/felixgeelhaar/arise/internal/leaderboard"
)

// setupRedis starts a Redis container and returns its address
func setupRedis(t *testing.T) (string, func()) {
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
		t.Fatalf("failed to start Redis container: %v", err)
	}

	cleanup := func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	host, err := container.Host(ctx)
	if err != nil {
		cleanup()
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		cleanup()
		t.Fatalf("failed to get mapped port: %v", err)
	}

	return fmt.Sprintf("%s:%s", host, port.Port()), cleanup
}

func TestIntegration_RedisCache(t *testing.T) {
	addr, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	cache, err := leaderboard.NewRedisCache(ctx, leaderboard.RedisConfig{Addr: addr})
	if err != nil {
		t.Fatalf("NewRedisCache() error = %v", err)
	}
	defer cache.Close()

	alice := domain.Standing{UserID: uuid.New(), Username: "alice", Score: 1200}
	bob := domain.Standing{UserID: uuid.New(), Username: "bob", Score: 300}

	if err := cache.Replace(ctx, []domain.Standing{alice, bob}); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	bob.Score = 5100
	if err := cache.Put(ctx, bob); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := cache.Top(ctx, 10)
	if err != nil {
		t.Fatalf("Top() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(Top()) = %d; want 2", len(got))
	}
	if got[0].UserID != bob.UserID || got[0].Score != 5100 || got[0].Rank != domain.RankA || got[0].Position != 1 {
		t.Errorf("Top()[0] = %+v; want bob at 5100 rank A", got[0])
	}
	if got[1].Username != "alice" || got[1].Rank != domain.RankC {
		t.Errorf("Top()[1] = %+v; want alice rank C", got[1])
	}

	if err := cache.Replace(ctx, nil); err != nil {
		t.Fatalf("Replace(nil) error = %v", err)
	}
	got, err = cache.Top(ctx, 10)
	if err != nil {
		t.Fatalf("Top() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Top() after clear = %+v; want empty", got)
	}
}

func TestIntegration_RedisCache_DropsStaleStanding(t *testing.T) {
	addr, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	cache, err := leaderboard.NewRedisCache(ctx, leaderboard.RedisConfig{Addr: addr, KeyPrefix: "arise:test"})
	if err != nil {
		t.Fatalf("NewRedisCache() error = %v", err)
	}
	defer cache.Close()

	id := uuid.New()
	solved := domain.Standing{UserID: id, Username: "trinity", Guild: "zion", Score: 600, Seq: 7}
	unlocked := domain.Standing{UserID: id, Username: "trinity", Guild: "zion", Score: 575, Seq: 8}

	// The unlock commits after the solve but its event arrives first
	for _, s := range []domain.Standing{unlocked, solved} {
		if err := cache.Put(ctx, s); err != nil {
			t.Fatalf("Put(seq %d) error = %v", s.Seq, err)
		}
	}

	got, err := cache.Top(ctx, 10)
	if err != nil {
		t.Fatalf("Top() error = %v", err)
	}
	if len(got) != 1 || got[0].Score != 575 || got[0].Guild != "zion" {
		t.Fatalf("Top() = %+v; want trinity at 575 in zion", got)
	}

	// A warm from the store resets the sequence, then newer events apply again
	if err := cache.Replace(ctx, []domain.Standing{{UserID: id, Username: "trinity", Score: 575, Seq: 8}}); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if err := cache.Put(ctx, domain.Standing{UserID: id, Username: "trinity", Score: 1075, Seq: 9}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, err = cache.Top(ctx, 10)
	if err != nil {
		t.Fatalf("Top() error = %v", err)
	}
	if len(got) != 1 || got[0].Score != 1075 || got[0].Rank != domain.RankC {
		t.Errorf("Top() = %+v; want trinity at 1075 rank C", got)
	}
}

func TestIntegration_NewRedisCache_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := leaderboard.NewRedisCache(ctx, leaderboard.RedisConfig{Addr: "127.0.0.1:1"}); err == nil {
		t.Error("expected error for unreachable Redis")
	}
}
