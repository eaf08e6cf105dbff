package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/Sternrassler/media-browser/internal/config"
	"github.com/Sternrassler/media-browser/pkg/cache"
	"github.com/Sternrassler/media-browser/pkg/fetch"
	"github.com/Sternrassler/media-browser/pkg/layout"
	"github.com/Sternrassler/media-browser/pkg/logging"
	"github.com/Sternrassler/media-browser/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
)

// Runner holds the dependencies of every command.
type Runner struct {
	config  *config.Config
	fetcher fetch.Fetcher
	store   layout.Store
	redis   *redis.Client
	metrics *http.Server
	output  io.Writer
	logger  zerolog.Logger
}

// RunnerOpts contains configuration options for creating a Runner. Nil fields
// are built from the configuration in Before.
type RunnerOpts struct {
	Config  *config.Config
	Fetcher fetch.Fetcher
	Store   layout.Store
	Output  io.Writer
}

// NewRunner creates a new Runner.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Runner{
		config:  opts.Config,
		fetcher: opts.Fetcher,
		store:   opts.Store,
		output:  opts.Output,
		logger:  logging.NewLogger("cli"),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		initCommand, treeCommand, scrollCommand, searchCommand, sidebarCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

// Before loads configuration, sets up logging and builds the dependencies
// the commands share. Dependencies are not built for init.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if err := config.LoadEnvFiles(cmd.String("env-file")); err != nil {
		return ctx, err
	}

	if r.config == nil {
		cfg, err := config.Load(configPath(cmd.String("config")))
		if err != nil {
			return ctx, err
		}
		r.config = cfg
	}

	levelName := r.config.Log.Level
	if cmd.IsSet("log-level") {
		levelName = cmd.String("log-level")
	}
	level, err := logging.ParseLogLevel(levelName)
	if err != nil {
		return ctx, err
	}
	logging.Setup(logging.Config{Level: level, Pretty: r.config.Log.Pretty, Output: os.Stderr})
	r.logger = logging.NewLogger("cli")

	// init only writes the example config and must work before Redis is reachable.
	if sub := cmd.Command(cmd.Args().First()); sub != nil && sub.Name == "init" {
		return ctx, nil
	}

	if r.config.NeedsRedis() && (r.fetcher == nil || r.store == nil) {
		opts, err := r.config.RedisOptions()
		if err != nil {
			return ctx, err
		}
		r.redis = redis.NewClient(opts)
		if err := r.redis.Ping(ctx).Err(); err != nil {
			return ctx, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
		}
		r.logger.Info().Str("addr", opts.Addr).Int("db", opts.DB).Msg("Connected to Redis")
	}

	if r.fetcher == nil {
		var manager *cache.Manager
		if r.config.Cache.Enabled {
			manager = cache.NewManager(r.redis, r.config.CacheOptions()...)
		}
		client, err := fetch.New(r.config.FetchConfig(manager))
		if err != nil {
			return ctx, fmt.Errorf("failed to create fetch client: %w", err)
		}
		r.fetcher = client
	}

	if r.store == nil {
		if r.config.Layout.Store == config.StoreRedis {
			r.store = layout.NewRedisStore(r.redis, r.config.Layout.Scope)
		} else {
			r.store = layout.NewMemoryStore()
		}
	}

	if addr := cmd.String("metrics-addr"); addr != "" {
		if err := r.serveMetrics(addr); err != nil {
			return ctx, err
		}
	}
	return ctx, nil
}

// After stops the metrics server.
func (r *Runner) After(ctx context.Context, cmd *cli.Command) error {
	if r.metrics == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := r.metrics.Shutdown(shutdownCtx)
	r.metrics = nil
	return err
}

// Close releases the Redis connection.
func (r *Runner) Close() {
	if r.redis != nil {
		r.redis.Close()
	}
}

// serveMetrics exposes /metrics and /health on addr while the command runs.
func (r *Runner) serveMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", healthHandler)
	r.metrics = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := r.metrics.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	r.logger.Info().Str("addr", ln.Addr().String()).Msg("Serving metrics")
	return nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// configPath returns path if the file exists; the default "config.toml" is optional.
func configPath(path string) string {
	if _, err := os.Stat(path); err != nil && path == defaultConfigFile {
		return ""
	}
	return path
}

func (r *Runner) writeJSON(v any) error {
	enc := json.NewEncoder(r.output)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (r *Runner) writeln(format string, args ...any) {
	fmt.Fprintf(r.output, format+"\n", args...)
}
