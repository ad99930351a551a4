// Command collector runs resumable API-Football collection jobs.
//
// Usage:
//
//	collector keys
//	collector run <job|all> [--force]
//	collector progress <job>
//	collector reset <job>
//	collector export <job> [dst]
//	collector rebuild <job> <dst> <src...>
//	collector validate <job|all>
//
// Configuration is read from the environment and an optional .env file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/Sternrassler/football-collector/pkg/cache"
	"github.com/Sternrassler/football-collector/pkg/client"
	"github.com/Sternrassler/football-collector/pkg/config"
	"github.com/Sternrassler/football-collector/pkg/jobs"
	"github.com/Sternrassler/football-collector/pkg/logging"
	"github.com/Sternrassler/football-collector/pkg/metrics"
	"github.com/Sternrassler/football-collector/pkg/publish"
	"github.com/Sternrassler/football-collector/pkg/ratelimit"
	"github.com/Sternrassler/football-collector/pkg/session"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const usage = `usage: collector <command> [arguments]

commands:
  keys                             per-key window usage and daily quota
  run <job|all> [--force]          run a collection session
  progress <job>                   show a job's progress record
  reset <job>                      delete a job's progress record
  export <job> [dst]               write a job's table as parquet
  rebuild <job> <dst> <src...>     combine per-file tables into dst
  validate <job|all>               report gaps in collected tables

jobs: ` + "fixtures, squads, player-seasons, fixture-stats, lineups, events, fixture-players"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout))
}

func run(ctx context.Context, args []string, stdout io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprintln(stdout, usage)
		return 0
	}

	bootstrap := logging.Setup(logging.DefaultConfig())
	cfg, err := config.Load(bootstrap)
	if err != nil {
		bootstrap.Error().Err(err).Msg("Invalid configuration")
		return 1
	}
	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})

	a, err := newApp(ctx, cfg, stdout)
	if err != nil {
		log.Error().Err(err).Msg("Startup failed")
		return 1
	}
	defer a.Close()

	if cfg.MetricsAddr != "" {
		ln, err := net.Listen("tcp", cfg.MetricsAddr)
		if err != nil {
			log.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("Metrics listener failed")
			return 1
		}
		go func() {
			if err := metrics.Serve(ctx, ln); err != nil {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	return a.dispatch(ctx, args)
}

// app holds everything a command runs against.
type app struct {
	cfg       *config.Config
	client    *client.Client
	env       *jobs.Env
	redis     *redis.Client
	publisher *publish.S3Publisher
	stdout    io.Writer
	logger    zerolog.Logger
}

func newApp(ctx context.Context, cfg *config.Config, stdout io.Writer) (*app, error) {
	a := &app{
		cfg:    cfg,
		stdout: stdout,
		logger: logging.NewLogger("collector"),
	}

	rlCfg := ratelimit.DefaultConfig(cfg.Keys)
	rlCfg.RequestsPerWindow = cfg.RequestsPerMinute
	keys, err := ratelimit.NewKeyManager(rlCfg, logging.NewLogger("key-manager"))
	if err != nil {
		return nil, fmt.Errorf("key manager: %w", err)
	}

	clientCfg := client.DefaultConfig(keys)
	clientCfg.BaseURL = cfg.Host

	if cfg.RedisURL != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisURL,
			Password: cfg.RedisPassword,
		})
		cm := cache.NewManager(rdb)
		if err := cm.Ping(ctx); err != nil {
			a.logger.Warn().Err(err).Str("addr", cfg.RedisURL).Msg("Redis unavailable, running without cache")
			rdb.Close()
		} else {
			a.logger.Info().Str("addr", cfg.RedisURL).Msg("Connected to Redis")
			a.redis = rdb
			clientCfg.Cache = cm
		}
	}

	a.client, err = client.New(clientCfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("client: %w", err)
	}

	if cfg.S3Bucket != "" {
		a.publisher, err = publish.NewS3Publisher(ctx, cfg.S3Bucket, cfg.S3Prefix)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("publisher: %w", err)
		}
	}

	quota := session.NewAPIQuotaMonitor(a.client)
	quota.Fallback = session.NewBudgetQuotaMonitor(cfg.DailyLimit, keys, a.client)

	sessionCfg := session.DefaultConfig("", "")
	sessionCfg.QuotaBuffer = cfg.QuotaBuffer

	a.env = &jobs.Env{
		Client:  a.client,
		Quota:   quota,
		DataDir: cfg.DataDir,
		Leagues: cfg.Leagues,
		Seasons: cfg.Seasons,
		Session: sessionCfg,
	}
	return a, nil
}

// Close releases the Redis connection, if any.
func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
}

func (a *app) dispatch(ctx context.Context, args []string) int {
	cmd, rest := args[0], args[1:]

	var err error
	code := 0
	switch cmd {
	case "keys":
		err = a.keys(ctx)
	case "run":
		code, err = a.run(ctx, rest)
	case "progress":
		err = a.withJob(rest, 1, a.progress)
	case "reset":
		err = a.withJob(rest, 1, a.reset)
	case "export":
		err = a.export(rest)
	case "rebuild":
		err = a.rebuild(rest)
	case "validate":
		code, err = a.validate(rest)
	default:
		err = fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
	}

	if err != nil {
		a.logger.Error().Err(err).Str("command", cmd).Msg("Command failed")
		return 1
	}
	return code
}

// withJob resolves the job named by args[0] after checking that at least
// want arguments were given.
func (a *app) withJob(args []string, want int, fn func(jobs.Job, []string) error) error {
	if len(args) < want {
		return fmt.Errorf("missing arguments\n\n%s", usage)
	}
	j, err := jobs.New(args[0], a.env)
	if err != nil {
		return err
	}
	return fn(j, args[1:])
}

func (a *app) keys(ctx context.Context) error {
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tKEY\tWINDOW USED\tWINDOW LEFT\tDAILY LEFT\tPLAN\tSTATE")

	for _, st := range a.client.Keys().Status() {
		daily, plan := "-", "-"
		if !st.Disabled {
			status, err := a.client.AccountStatus(ctx, st.Index)
			if err != nil {
				a.logger.Warn().Err(err).Str("key", st.Preview).Msg("Status request failed")
				daily = "error"
			} else {
				daily = fmt.Sprintf("%d/%d", status.Remaining(), status.Requests.LimitDay)
				plan = status.Subscription.Plan
			}
		}

		state := "active"
		if st.Disabled {
			state = "disabled: " + st.Reason
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\t%s\t%s\n",
			st.Index, st.Preview, st.Used, st.Remaining, daily, plan, state)
	}
	return tw.Flush()
}

// parseRunArgs accepts --force before or after the job name.
func parseRunArgs(args []string) (string, bool, error) {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	force := fs.Bool("force", false, "reopen a completed session")

	if err := fs.Parse(args); err != nil {
		return "", false, err
	}
	if fs.NArg() == 0 {
		return "", false, errors.New("run: job name required")
	}
	name := fs.Arg(0)
	if err := fs.Parse(fs.Args()[1:]); err != nil {
		return "", false, err
	}
	if fs.NArg() > 0 {
		return "", false, fmt.Errorf("run: unexpected arguments %v", fs.Args())
	}
	return name, *force, nil
}

func (a *app) run(ctx context.Context, args []string) (int, error) {
	name, force, err := parseRunArgs(args)
	if err != nil {
		return 1, err
	}

	names := []string{name}
	if name == "all" {
		names = jobs.Names()
	}

	for _, n := range names {
		j, err := jobs.New(n, a.env)
		if err != nil {
			return 1, err
		}

		res, err := a.runJob(ctx, j, force)
		if err != nil {
			return 1, err
		}
		a.printResult(res)

		if res.State != session.StateCompleted {
			return exitCode(res), nil
		}
	}
	return 0, nil
}

func (a *app) runJob(ctx context.Context, j jobs.Job, force bool) (session.Result, error) {
	if force {
		reopened, err := session.Reopen(j.ProgressPath())
		if err != nil {
			return session.Result{}, err
		}
		if reopened {
			a.logger.Info().Str("job", j.Name()).Msg("Reopened completed session")
		}
	}

	res, err := j.Run(ctx)
	if err != nil {
		return res, fmt.Errorf("%s: %w", j.Name(), err)
	}

	// A run that fetched nothing leaves the published tables current.
	if res.State == session.StateCompleted && res.Completed > 0 && a.publisher != nil {
		parquetPath := parquetPathFor(j.TablePath())
		if _, err := j.Export(parquetPath); err != nil {
			return res, fmt.Errorf("%s: export: %w", j.Name(), err)
		}
		if _, err := a.publisher.Publish(ctx, j.Name(), j.TablePath(), parquetPath); err != nil {
			return res, fmt.Errorf("%s: publish: %w", j.Name(), err)
		}
	}
	return res, nil
}

func (a *app) printResult(res session.Result) {
	state := string(res.State)
	if res.PauseReason != session.ReasonNone {
		state += " (" + string(res.PauseReason) + ")"
	}
	fmt.Fprintf(a.stdout, "%s: %s\n", res.Job, state)
	if res.Detail != "" {
		fmt.Fprintf(a.stdout, "  %s\n", res.Detail)
	}
	fmt.Fprintf(a.stdout, "  units: %d total, %d already done, %d completed, %d failed\n",
		res.Total, res.Skipped, res.Completed, res.Failed)
	fmt.Fprintf(a.stdout, "  rows: %d, requests: %d, duration: %s\n",
		res.Rows, res.Requests, res.Duration.Round(time.Millisecond))
}

// exitCode maps a session result to the process exit code. Pauses the next
// run recovers from exit 0; the error guard exits 1.
func exitCode(res session.Result) int {
	if res.State == session.StatePaused && res.PauseReason == session.ReasonErrorThreshold {
		return 1
	}
	return 0
}

func (a *app) progress(j jobs.Job, _ []string) error {
	sum, err := session.Snapshot(j.Name(), j.ProgressPath())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(sum)
}

func (a *app) reset(j jobs.Job, _ []string) error {
	if err := session.ResetProgress(j.ProgressPath()); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s: progress reset\n", j.Name())
	return nil
}

func (a *app) export(args []string) error {
	return a.withJob(args, 1, func(j jobs.Job, rest []string) error {
		dst := parquetPathFor(j.TablePath())
		if len(rest) > 0 {
			dst = rest[0]
		}
		n, err := j.Export(dst)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "%s: %d rows written to %s\n", j.Name(), n, dst)
		return nil
	})
}

func (a *app) rebuild(args []string) error {
	return a.withJob(args, 3, func(j jobs.Job, rest []string) error {
		n, err := j.Rebuild(rest[0], rest[1:])
		if err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "%s: %d rows written to %s\n", j.Name(), n, rest[0])
		return nil
	})
}

// validate prints the issues found in the named tables. It exits 1 when any
// table has errors.
func (a *app) validate(args []string) (int, error) {
	if len(args) != 1 {
		return 1, fmt.Errorf("validate: one job name or all required\n\n%s", usage)
	}
	names := []string{args[0]}
	if args[0] == "all" {
		names = jobs.Names()
	}

	code := 0
	for _, name := range names {
		rep, err := jobs.Validate(name, a.env)
		if err != nil {
			return 1, err
		}
		fmt.Fprintf(a.stdout, "%s: %d rows, %d checked, %d errors, %d warnings\n",
			rep.Job, rep.Rows, rep.Checked, rep.Errors(), rep.Warnings())
		for _, issue := range rep.Issues {
			fmt.Fprintf(a.stdout, "  %s\n", issue)
		}
		if rep.Errors() > 0 {
			code = 1
		}
	}
	return code, nil
}

func parquetPathFor(csvPath string) string {
	return strings.TrimSuffix(csvPath, ".csv") + ".parquet"
}
