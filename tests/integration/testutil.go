//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/albumforge/albumforge/internal/admin"
	"github.com/albumforge/albumforge/internal/api"
	"github.com/albumforge/albumforge/internal/audit"
	"github.com/albumforge/albumforge/internal/config"
	"github.com/albumforge/albumforge/internal/genai"
	"github.com/albumforge/albumforge/internal/generate"
	"github.com/albumforge/albumforge/internal/quota"
)

const testAdminSecret = "integration-test-admin-secret"

type TestEnv struct {
	Pool        *pgxpool.Pool
	RedisClient *redis.Client
	Server      *httptest.Server
	QuotaSvc    *quota.Service
}

var testEnv *TestEnv

// stubEditor stands in for the image provider so the full generate
// path can run without network access.
type stubEditor struct{}

func (stubEditor) EditImage(_ context.Context, _, _, _, _ string) (*genai.Image, error) {
	return &genai.Image{Data: "c3R1Yg==", MimeType: "image/png"}, nil
}

func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	if testEnv != nil {
		return testEnv
	}

	ctx := context.Background()

	// Start PostgreSQL container
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "albumforge_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	pgHost, _ := pgContainer.Host(ctx)
	pgPort, _ := pgContainer.MappedPort(ctx, "5432")

	// Start Redis container
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting redis container: %v", err)
	}
	t.Cleanup(func() { redisContainer.Terminate(ctx) })

	redisHost, _ := redisContainer.Host(ctx)
	redisPort, _ := redisContainer.MappedPort(ctx, "6379")

	// Connect to PostgreSQL
	dsn := fmt.Sprintf("postgres://test:test@%s:%s/albumforge_test?sslmode=disable", pgHost, pgPort.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	// Run migrations
	migrationsPath := getMigrationsPath()
	m, err := migrate.New(
		fmt.Sprintf("file://%s", migrationsPath),
		dsn,
	)
	if err != nil {
		t.Fatalf("creating migrator: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("running migrations: %v", err)
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
	})
	t.Cleanup(func() { redisClient.Close() })

	// Setup services
	quotaRepo := quota.NewRepository(pool)
	quotaSvc := quota.NewService(quotaRepo)
	quotaHandler := quota.NewHandler(quotaSvc)

	generateSvc := generate.NewService(quotaSvc, stubEditor{}, nil)
	generateHandler := generate.NewHandler(generateSvc)

	auditRepo := audit.NewRepository(pool)
	runMigrations := func() (uint, error) {
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			return 0, err
		}
		ver, _, _ := m.Version()
		return ver, nil
	}
	adminHandler := admin.NewHandler(quotaSvc, auditRepo, runMigrations, nil)

	router := api.NewRouter(pool, nil, api.RouterConfig{}, api.HandlerSet{
		VerifyKey: quotaHandler.Verify,
		Generate:  generateHandler.Generate,

		ListKeys:  adminHandler.ListKeys,
		CreateKey: adminHandler.CreateKey,
		UpdateKey: adminHandler.UpdateKey,
		DeleteKey: adminHandler.DeleteKey,
		Setup:     adminHandler.Setup,
		ListAudit: adminHandler.ListAudit,

		AdminMiddleware: admin.RequireSecret(config.AdminConfig{Secret: testAdminSecret}),
	})

	server := httptest.NewServer(router)
	t.Cleanup(func() { server.Close() })

	testEnv = &TestEnv{
		Pool:        pool,
		RedisClient: redisClient,
		Server:      server,
		QuotaSvc:    quotaSvc,
	}

	return testEnv
}

func getMigrationsPath() string {
	// Try relative paths from test directory
	paths := []string{
		"../../migrations",
		"../../../migrations",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	log.Fatal("migrations directory not found")
	return ""
}

// Helper functions

// SeedKey inserts a quota record directly, optionally with a stale
// last_reset_date to exercise the lazy daily reset.
func SeedKey(t *testing.T, env *TestEnv, clientKey string, dailyLimit, usageCount int, lastResetDate string) {
	t.Helper()
	_, err := env.Pool.Exec(context.Background(),
		`INSERT INTO users (client_api_key, tier, daily_limit, usage_count, last_reset_date)
		 VALUES ($1, 'basic', $2, $3, $4::date)
		 ON CONFLICT (client_api_key)
		 DO UPDATE SET daily_limit = $2, usage_count = $3, last_reset_date = $4::date`,
		clientKey, dailyLimit, usageCount, lastResetDate)
	if err != nil {
		t.Fatalf("seeding key: %v", err)
	}
}

func DoRequest(t *testing.T, env *TestEnv, method, path string, body any, adminSecret string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, env.Server.URL+path, bodyReader)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if adminSecret != "" {
		req.Header.Set("X-Admin-Secret", adminSecret)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("doing request: %v", err)
	}
	return resp
}

func ParseResponse(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	return result
}
