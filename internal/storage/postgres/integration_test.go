//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/felixgeelhaar/arise/internal/catalog"
	"github.com/felixgeelhaar/arise/internal/domain"
	"github.com/felixgeelhaar/arise/internal/repository"
	"github.com/felixgeelhaar/arise/internal/scoring"
	"github.com/felixgeelhaar/arise/internal/storage/postgres"
)

// setupPostgres starts a PostgreSQL container and returns its connection URL
func setupPostgres(t *testing.T) (string, func()) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "arise",
				"POSTGRES_PASSWORD": "arise",
				"POSTGRES_DB":       "arise",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start PostgreSQL container: %v", err)
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
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		cleanup()
		t.Fatalf("failed to get mapped port: %v", err)
	}

	url := fmt.Sprintf("postgres://arise:arise@%s:%s/arise?sslmode=disable", host, port.Port())
	return url, cleanup
}

type env struct {
	store *postgres.Store
	read  *repository.ReadRepository
	svc   *scoring.Service
}

func setupEnv(t *testing.T) *env {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog.Default() error = %v", err)
	}
	return setupEnvWith(t, cat)
}

func setupEnvWith(t *testing.T, cat *catalog.Catalog) *env {
	t.Helper()
	ctx := context.Background()

	url, cleanup := setupPostgres(t)
	t.Cleanup(cleanup)

	pool, err := postgres.OpenPool(ctx, url, postgres.DefaultPoolConfig())
	if err != nil {
		t.Fatalf("OpenPool() error = %v", err)
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	store := postgres.NewStore(pool)
	t.Cleanup(func() { store.Close() })

	if err := store.SeedChallenges(ctx, cat.List()); err != nil {
		t.Fatalf("SeedChallenges() error = %v", err)
	}

	db, err := repository.Open(ctx, url)
	if err != nil {
		t.Fatalf("repository.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return &env{
		store: store,
		read:  repository.NewReadRepository(db),
		svc:   scoring.NewService(store, cat),
	}
}

func TestIntegration_Migrate_Idempotent(t *testing.T) {
	url, cleanup := setupPostgres(t)
	defer cleanup()

	ctx := context.Background()
	pool, err := postgres.OpenPool(ctx, url, postgres.DefaultPoolConfig())
	if err != nil {
		t.Fatalf("OpenPool() error = %v", err)
	}
	defer pool.Close()

	for i := 0; i < 2; i++ {
		if err := postgres.Migrate(ctx, pool); err != nil {
			t.Fatalf("Migrate() #%d error = %v", i, err)
		}
	}
}

func TestIntegration_ScoringFlow(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	account, err := e.svc.ProvisionAccount(ctx, uuid.New(), "alice")
	if err != nil {
		t.Fatalf("ProvisionAccount() error = %v", err)
	}

	res, err := e.svc.Submit(ctx, account.ID, 1, "flag{84}")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.Outcome != domain.SubmitSolved || res.Score != 100 {
		t.Errorf("Submit() = %+v; want Solved at 100", res)
	}

	res, err = e.svc.Submit(ctx, account.ID, 1, "flag{84}")
	if err != nil {
		t.Fatalf("second Submit() error = %v", err)
	}
	if res.Outcome != domain.SubmitAlreadySolved {
		t.Errorf("second Submit() outcome = %q; want already_solved", res.Outcome)
	}

	unlock, err := e.svc.UnlockHint(ctx, account.ID, 6)
	if err != nil {
		t.Fatalf("UnlockHint() error = %v", err)
	}
	if unlock.Outcome != domain.UnlockUnlocked || unlock.Score != 75 {
		t.Errorf("UnlockHint() = %+v; want Unlocked at 75", unlock)
	}

	// 75 points cannot pay for a 100 point hint
	unlock, err = e.svc.UnlockHint(ctx, account.ID, 16)
	if err != nil {
		t.Fatalf("UnlockHint() error = %v", err)
	}
	if unlock.Outcome != domain.UnlockInsufficientScore || unlock.Score != 75 {
		t.Errorf("UnlockHint() = %+v; want InsufficientScore at 75", unlock)
	}

	top, err := e.read.Top(ctx, 10)
	if err != nil {
		t.Fatalf("Top() error = %v", err)
	}
	if len(top) != 1 || top[0].Score != 75 || top[0].Position != 1 {
		t.Errorf("Top() = %+v; want alice at 75", top)
	}

	history, err := e.read.History(ctx, account.ID, 10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 || history[0].Kind != domain.LedgerKindHint || history[0].BalanceAfter != 75 {
		t.Errorf("History() = %+v; want hint entry first", history)
	}

	discrepancies, err := e.read.Audit(ctx)
	if err != nil {
		t.Fatalf("Audit() error = %v", err)
	}
	if len(discrepancies) != 0 {
		t.Errorf("Audit() = %+v; want none", discrepancies)
	}
}

func TestIntegration_ConcurrentSubmit(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	account, err := e.svc.ProvisionAccount(ctx, uuid.New(), "bob")
	if err != nil {
		t.Fatalf("ProvisionAccount() error = %v", err)
	}

	const n = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	solved := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.svc.Submit(ctx, account.ID, 1, "flag{84}")
			if err != nil {
				t.Errorf("Submit() error = %v", err)
				return
			}
			if res.Outcome == domain.SubmitSolved {
				mu.Lock()
				solved++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if solved != 1 {
		t.Errorf("solved %d times, want exactly 1", solved)
	}
	summary, err := e.svc.Account(ctx, account.ID)
	if err != nil {
		t.Fatalf("Account() error = %v", err)
	}
	if summary.Score != 100 {
		t.Errorf("score = %d, want 100", summary.Score)
	}
}

func TestIntegration_DuplicateAccount(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()

	if _, err := e.svc.ProvisionAccount(ctx, uuid.New(), "carol"); err != nil {
		t.Fatalf("ProvisionAccount() error = %v", err)
	}
	_, err := e.svc.ProvisionAccount(ctx, uuid.New(), "carol")
	if !errors.Is(err, domain.ErrAccountAlreadyExists) {
		t.Errorf("ProvisionAccount() error = %v, want ErrAccountAlreadyExists", err)
	}
}

// hintCatalog has one 100 point challenge and two hard ones whose hints cost
// 60 each, so a fresh solver can afford exactly one of them.
func hintCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]*domain.Challenge{
		{ID: 1, Title: "Warmup", Category: domain.CategoryEasy, Points: 100, Flag: "flag{warmup}", Hint: "look closer", HintCost: 10},
		{ID: 2, Title: "Vault A", Category: domain.CategoryHard, Points: 500, Flag: "flag{a}", Hint: "hint a", HintCost: 60},
		{ID: 3, Title: "Vault B", Category: domain.CategoryHard, Points: 500, Flag: "flag{b}", Hint: "hint b", HintCost: 60},
	})
	if err != nil {
		t.Fatalf("catalog.New() error = %v", err)
	}
	return cat
}

func (e *env) solvedAccount(t *testing.T, name string) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	account, err := e.svc.ProvisionAccount(ctx, uuid.New(), name)
	if err != nil {
		t.Fatalf("ProvisionAccount() error = %v", err)
	}
	res, err := e.svc.Submit(ctx, account.ID, 1, "flag{warmup}")
	if err != nil || res.Outcome != domain.SubmitSolved {
		t.Fatalf("Submit() = %+v, %v; want solved", res, err)
	}
	return account.ID
}

func (e *env) assertAudited(t *testing.T) {
	t.Helper()
	discrepancies, err := e.read.Audit(context.Background())
	if err != nil {
		t.Fatalf("Audit() error = %v", err)
	}
	if len(discrepancies) != 0 {
		t.Errorf("Audit() = %+v; want none", discrepancies)
	}
}

func TestIntegration_ConcurrentDoubleSpend(t *testing.T) {
	e := setupEnvWith(t, hintCatalog(t))
	ctx := context.Background()
	user := e.solvedAccount(t, "dave")

	// 100 points cover one 60 point hint, never both
	const rounds = 4
	outcomes := make(map[domain.UnlockOutcome]int)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		for _, id := range []int64{2, 3} {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				res, err := e.svc.UnlockHint(ctx, user, id)
				if err != nil {
					t.Errorf("UnlockHint(%d) error = %v", id, err)
					return
				}
				mu.Lock()
				outcomes[res.Outcome]++
				mu.Unlock()
			}(id)
		}
	}
	wg.Wait()

	if outcomes[domain.UnlockUnlocked] != 1 {
		t.Errorf("unlocked %d times, want exactly 1 (outcomes %v)", outcomes[domain.UnlockUnlocked], outcomes)
	}
	if outcomes[domain.UnlockInsufficientScore] == 0 {
		t.Errorf("no unlock was refused for insufficient score (outcomes %v)", outcomes)
	}

	summary, err := e.svc.Account(ctx, user)
	if err != nil {
		t.Fatalf("Account() error = %v", err)
	}
	if summary.Score != 40 || summary.HintsUnlocked != 1 {
		t.Errorf("account = score %d hints %d; want 40 and 1", summary.Score, summary.HintsUnlocked)
	}
	e.assertAudited(t)
}

func TestIntegration_ConcurrentSameHint(t *testing.T) {
	e := setupEnvWith(t, hintCatalog(t))
	ctx := context.Background()
	user := e.solvedAccount(t, "erin")

	const n = 12
	outcomes := make(map[domain.UnlockOutcome]int)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.svc.UnlockHint(ctx, user, 2)
			if err != nil {
				t.Errorf("UnlockHint() error = %v", err)
				return
			}
			mu.Lock()
			outcomes[res.Outcome]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if outcomes[domain.UnlockUnlocked] != 1 || outcomes[domain.UnlockAlreadyUnlocked] != n-1 {
		t.Errorf("outcomes = %v; want 1 unlocked and %d already unlocked", outcomes, n-1)
	}

	summary, err := e.svc.Account(ctx, user)
	if err != nil {
		t.Fatalf("Account() error = %v", err)
	}
	if summary.Score != 40 {
		t.Errorf("score = %d, want 40", summary.Score)
	}
	e.assertAudited(t)
}
