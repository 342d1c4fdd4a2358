//go:build integration

package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer starts a Redis container for integration testing.
func setupRedisContainer(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	t.Cleanup(func() {
		client.Close()
		container.Terminate(ctx)
	})
	return client
}

// setupPostgresContainer starts a PostgreSQL container and returns a pool.
func setupPostgresContainer(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "reqcache",
				"POSTGRES_PASSWORD": "reqcache",
				"POSTGRES_DB":       "reqcache",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Postgres container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://reqcache:reqcache@%s:%s/reqcache?sslmode=disable", host, port.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to connect to Postgres: %v", err)
	}
	t.Cleanup(func() {
		pool.Close()
		container.Terminate(ctx)
	})
	return pool
}

func TestIntegration_RedisStores(t *testing.T) {
	client := setupRedisContainer(t)

	testResponseStore(t, NewRedisResponseStore(client, ""))
	testMetadataStore(t, NewRedisMetadataStore(client, ""))
}

func TestIntegration_PostgresMetadataStore(t *testing.T) {
	pool := setupPostgresContainer(t)
	store := NewPostgresMetadataStore(pool, "")

	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	// second call must be a no-op
	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() repeated error = %v", err)
	}

	testMetadataStore(t, store)
}

// TestIntegration_CoordinatorOverRedis checks the full flow against a real
// Redis: miss, hit, then expiry after the clock moves past the lifetime.
func TestIntegration_CoordinatorOverRedis(t *testing.T) {
	client := setupRedisContainer(t)
	transport := &countingTransport{}
	clock := newFakeClock()

	c, err := NewCoordinator(
		NewRedisResponseStore(client, ""),
		NewRedisMetadataStore(client, ""),
		transport,
		WithClock(clock.Now),
	)
	if err != nil {
		t.Fatalf("NewCoordinator() error = %v", err)
	}

	ctx := context.Background()
	req := mustRequest(t, "GET", "https://example.com/todos/1", nil, nil)

	for i := 0; i < 2; i++ {
		if _, err := c.Resolve(ctx, req, time.Minute); err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
	}
	if got := transport.Calls(); got != 1 {
		t.Errorf("transport calls = %d, want 1", got)
	}

	clock.Advance(2 * time.Minute)
	if _, err := c.Resolve(ctx, req, time.Minute); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got := transport.Calls(); got != 2 {
		t.Errorf("transport calls = %d, want 2 after expiry", got)
	}
}
