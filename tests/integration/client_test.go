//go:build integration

package integration

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/football-collector/internal/testutil"
	"github.com/Sternrassler/football-collector/pkg/cache"
	"github.com/Sternrassler/football-collector/pkg/client"
	"github.com/Sternrassler/football-collector/pkg/jobs"
	"github.com/Sternrassler/football-collector/pkg/ratelimit"
	"github.com/Sternrassler/football-collector/pkg/records"
	"github.com/Sternrassler/football-collector/pkg/session"
	"github.com/Sternrassler/football-collector/pkg/table"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
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

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

// newEnv builds a job environment against mock with a fake clock so that
// cooldowns and backoff do not sleep.
func newEnv(t *testing.T, mock *testutil.MockAPIFootball, cm *cache.Manager, keys ...string) *jobs.Env {
	t.Helper()

	clock := testutil.NewFakeClock(time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC))
	km, err := ratelimit.NewKeyManager(ratelimit.Config{
		Keys:              keys,
		RequestsPerWindow: 10,
		Window:            time.Minute,
		Clock:             clock,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewKeyManager() error = %v", err)
	}

	cfg := client.DefaultConfig(km)
	cfg.BaseURL = mock.URL()
	cfg.Cache = cm
	cfg.Clock = clock

	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}

	sessionCfg := session.DefaultConfig("", "")
	sessionCfg.SaveEvery = 2

	return &jobs.Env{
		Client:  c,
		DataDir: t.TempDir(),
		Leagues: []int{4},
		Seasons: []int{2024},
		Session: sessionCfg,
	}
}

func fixtureJSON(id, home, away int) string {
	return fmt.Sprintf(`{"fixture": {"id": %d, "date": "2024-06-20T19:00:00+00:00", "timestamp": 1718910000,
	  "venue": {"name": "Arena", "city": "Berlin"}, "status": {"long": "Match Finished", "short": "FT", "elapsed": 90}},
	  "league": {"id": 4, "name": "Euro Championship", "season": 2024, "round": "Group Stage - 2"},
	  "teams": {"home": {"id": %d, "name": "H", "winner": true}, "away": {"id": %d, "name": "A", "winner": false}},
	  "goals": {"home": 2, "away": 0},
	  "score": {"halftime": {"home": 1, "away": 0}, "fulltime": {"home": 2, "away": 0},
	            "extratime": {"home": null, "away": null}, "penalty": {"home": null, "away": null}}}`, id, home, away)
}

// fixtureSet answers the fixtures endpoint with n finished fixtures between
// teams 1..2n.
func fixtureSet(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fixtureJSON(1000+i, 2*i+1, 2*i+2)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func squadHandler(w http.ResponseWriter, r *http.Request) {
	team := r.URL.Query().Get("team")
	body := fmt.Sprintf(`[{"team": {"id": %s, "name": "Team %s"}, "players": [
	  {"id": %s01, "name": "Keeper", "age": 30, "number": 1, "position": "Goalkeeper"},
	  {"id": %s09, "name": "Striker", "age": 24, "number": 9, "position": "Attacker"}]}]`, team, team, team, team)
	w.Write([]byte(testutil.EnvelopeBody("players/squads", body)))
}

func runJob(t *testing.T, ctx context.Context, env *jobs.Env, name string) session.Result {
	t.Helper()

	j, err := jobs.New(name, env)
	if err != nil {
		t.Fatalf("jobs.New(%q) error = %v", name, err)
	}
	res, err := j.Run(ctx)
	if err != nil {
		t.Fatalf("%s: Run() error = %v", name, err)
	}
	return res
}

func TestFullCollectionFlow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockAPIFootball()
	defer mock.Close()

	mock.SetResponse("/fixtures", testutil.NewEnvelopeResponse("fixtures", fixtureSet(3)))
	mock.SetHandler("/players/squads", squadHandler)

	env := newEnv(t, mock, cache.NewManager(redisClient), "integration-key-a-0001", "integration-key-b-0002")
	ctx := context.Background()

	if res := runJob(t, ctx, env, jobs.Fixtures); res.State != session.StateCompleted {
		t.Fatalf("fixtures state = %s, want completed", res.State)
	}
	res := runJob(t, ctx, env, jobs.Squads)
	if res.State != session.StateCompleted {
		t.Fatalf("squads state = %s (%s), want completed", res.State, res.Detail)
	}
	if res.Completed != 6 {
		t.Errorf("squads completed = %d, want 6", res.Completed)
	}

	squad, err := table.Read[records.SquadPlayer](env.DataDir + "/squads.csv")
	if err != nil {
		t.Fatalf("read squads: %v", err)
	}
	if len(squad) != 12 {
		t.Errorf("squad rows = %d, want 12", len(squad))
	}

	// Both keys served the run.
	keys := map[string]bool{}
	for _, r := range mock.Requests() {
		keys[r.Key] = true
	}
	if len(keys) != 2 {
		t.Errorf("distinct keys used = %d, want 2", len(keys))
	}

	// A fresh session over the same units is served from Redis.
	if err := session.ResetProgress(env.DataDir + "/progress/squads.json"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	before := mock.RequestCountFor("/players/squads")
	runJob(t, ctx, env, jobs.Squads)
	if after := mock.RequestCountFor("/players/squads"); after != before {
		t.Errorf("squads requests after cached rerun = %d, want %d", after, before)
	}
}

func TestInterruptedSessionResumes(t *testing.T) {
	mock := testutil.NewMockAPIFootball()
	defer mock.Close()

	mock.SetResponse("/fixtures", testutil.NewEnvelopeResponse("fixtures", fixtureSet(4)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	mock.SetHandler("/players/squads", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 3 {
			cancel()
		}
		squadHandler(w, r)
	})

	env := newEnv(t, mock, nil, "integration-key-a-0001")

	runJob(t, context.Background(), env, jobs.Fixtures)

	res := runJob(t, ctx, env, jobs.Squads)
	if res.State != session.StatePaused || res.PauseReason != session.ReasonInterrupted {
		t.Fatalf("state = %s/%s, want paused/interrupted", res.State, res.PauseReason)
	}
	if res.Completed != 3 {
		t.Errorf("completed before interrupt = %d, want 3", res.Completed)
	}

	// The rows of every completed unit were flushed with the pause.
	squad, err := table.Read[records.SquadPlayer](env.DataDir + "/squads.csv")
	if err != nil {
		t.Fatalf("read squads: %v", err)
	}
	if len(squad) != 6 {
		t.Errorf("rows after interrupt = %d, want 6", len(squad))
	}

	res = runJob(t, context.Background(), env, jobs.Squads)
	if res.State != session.StateCompleted {
		t.Fatalf("resumed state = %s, want completed", res.State)
	}
	if res.Skipped != 3 || res.Completed != 5 {
		t.Errorf("resumed skipped/completed = %d/%d, want 3/5", res.Skipped, res.Completed)
	}
	if n := mock.RequestCountFor("/players/squads"); n != 8 {
		t.Errorf("squads requests = %d, want 8 (no unit fetched twice)", n)
	}

	squad, err = table.Read[records.SquadPlayer](env.DataDir + "/squads.csv")
	if err != nil {
		t.Fatalf("read squads: %v", err)
	}
	if len(squad) != 16 {
		t.Errorf("rows after resume = %d, want 16", len(squad))
	}
}

func TestKeyFailoverDuringSession(t *testing.T) {
	mock := testutil.NewMockAPIFootball()
	defer mock.Close()

	mock.SetResponse("/fixtures", testutil.NewEnvelopeResponse("fixtures", fixtureSet(2)))
	mock.SetKeyResponses("/fixtures/statistics",
		map[string]testutil.MockResponse{"integration-key-a-0001": testutil.NewSuspendedResponse("fixtures/statistics")},
		testutil.NewEnvelopeResponse("fixtures/statistics", `[
		  {"team": {"id": 1, "name": "H"}, "statistics": [{"type": "Ball Possession", "value": "55%"}]},
		  {"team": {"id": 2, "name": "A"}, "statistics": [{"type": "Ball Possession", "value": "45%"}]}]`))

	env := newEnv(t, mock, nil, "integration-key-a-0001", "integration-key-b-0002")
	ctx := context.Background()

	runJob(t, ctx, env, jobs.Fixtures)
	res := runJob(t, ctx, env, jobs.FixtureStats)
	if res.State != session.StateCompleted {
		t.Fatalf("state = %s (%s), want completed", res.State, res.Detail)
	}
	if res.Rows != 4 {
		t.Errorf("rows = %d, want 4", res.Rows)
	}

	status := env.Client.Keys().Status()
	if !status[0].Disabled || status[1].Disabled {
		t.Errorf("key states = %v/%v, want disabled/active", status[0].Disabled, status[1].Disabled)
	}
}

func TestMetricsIncremented(t *testing.T) {
	mock := testutil.NewMockAPIFootball()
	defer mock.Close()
	mock.SetResponse("/fixtures", testutil.NewEnvelopeResponse("fixtures", fixtureSet(1)))

	env := newEnv(t, mock, nil, "integration-key-a-0001")
	runJob(t, context.Background(), env, jobs.Fixtures)

	w := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(w.Result().Body)

	for _, want := range []string{
		`football_requests_total{endpoint="fixtures",status="200"}`,
		`football_session_units_total{job="fixtures",outcome="completed"}`,
		`football_session_state{job="fixtures",state="completed"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}
