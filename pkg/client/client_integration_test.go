//go:build integration

package client

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/Sternrassler/football-collector/internal/testutil"
	"github.com/Sternrassler/football-collector/pkg/cache"
	"github.com/Sternrassler/football-collector/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer creates a Redis container for integration testing.
func setupRedisContainer(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func newCachedClient(t *testing.T, mock *testutil.MockAPIFootball, redisClient *redis.Client) *Client {
	t.Helper()

	km, err := ratelimit.NewKeyManager(ratelimit.DefaultConfig([]string{"integration-key-000001"}), zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create key manager: %v", err)
	}

	cfg := DefaultConfig(km)
	cfg.BaseURL = mock.URL()
	cfg.Cache = cache.NewManager(redisClient)

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return c
}

func TestIntegration_CacheServesReferenceEndpoints(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockAPIFootball()
	defer mock.Close()
	mock.SetResponse("/leagues", testutil.NewEnvelopeResponse("leagues",
		`[{"league": {"id": 4, "name": "Euro Championship", "type": "Cup"}, "country": {"name": "World"}, "seasons": []}]`))

	c := newCachedClient(t, mock, redisClient)
	ctx := context.Background()

	// Phase 1: miss, fetched from upstream and cached
	leagues, err := c.Leagues(ctx, LeagueQuery{ID: 4})
	if err != nil {
		t.Fatalf("First request failed: %v", err)
	}
	if len(leagues) != 1 || leagues[0].League.Name != "Euro Championship" {
		t.Fatalf("Unexpected leagues: %+v", leagues)
	}

	entry, err := c.cache.GetEnvelope(ctx, EndpointLeagues, url.Values{"id": {"4"}})
	if err != nil {
		t.Fatalf("Expected cached entry, got %v", err)
	}
	if ttl := entry.TTL(time.Now()); ttl <= 23*time.Hour {
		t.Errorf("Expected leagues TTL close to 24h, got %v", ttl)
	}

	// Phase 2: hit, no upstream call and no key budget consumed
	if _, err := c.Leagues(ctx, LeagueQuery{ID: 4}); err != nil {
		t.Fatalf("Second request failed: %v", err)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("Expected 1 upstream request, got %d", mock.RequestCount())
	}
	if used := c.Keys().Status()[0].Used; used != 1 {
		t.Errorf("Expected 1 window slot used, got %d", used)
	}
}

func TestIntegration_StatisticsNotCached(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockAPIFootball()
	defer mock.Close()

	c := newCachedClient(t, mock, redisClient)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := c.FixtureStatistics(ctx, 12345); err != nil {
			t.Fatalf("Request %d failed: %v", i, err)
		}
	}

	if mock.RequestCount() != 2 {
		t.Errorf("Expected 2 upstream requests, got %d", mock.RequestCount())
	}
}

func TestIntegration_ErrorsNotCached(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockAPIFootball()
	defer mock.Close()
	mock.SetSequence("/countries",
		testutil.NewPayloadRateLimitResponse("countries"),
		testutil.NewEnvelopeResponse("countries", `[]`))

	c := newCachedClient(t, mock, redisClient)
	c.config.PayloadRateLimitCooldown = 10 * time.Millisecond
	ctx := context.Background()

	if _, err := c.Countries(ctx); err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if _, err := c.Countries(ctx); err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	if mock.RequestCount() != 2 {
		t.Errorf("Expected rate-limited body plus one success upstream, got %d requests", mock.RequestCount())
	}
}

func TestIntegration_CacheHitAfterPoolExhausted(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockAPIFootball()
	defer mock.Close()
	mock.SetResponse("/players/squads", testutil.NewEnvelopeResponse("players/squads",
		`[{"team": {"id": 25, "name": "Germany"}, "players": [{"id": 501, "name": "Keeper", "position": "Goalkeeper"}]}]`))

	c := newCachedClient(t, mock, redisClient)
	ctx := context.Background()

	if _, err := c.Squad(ctx, 25); err != nil {
		t.Fatalf("First request failed: %v", err)
	}

	c.Keys().Disable(0, "test")

	squad, err := c.Squad(ctx, 25)
	if err != nil {
		t.Fatalf("Cached request failed: %v", err)
	}
	if len(squad) != 1 || len(squad[0].Players) != 1 {
		t.Errorf("Expected cached squad, got %+v", squad)
	}
	if n := c.ExhaustedResults(); n != 0 {
		t.Errorf("ExhaustedResults() = %d, want 0 for a cache hit", n)
	}
}
