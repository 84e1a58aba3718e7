package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"sjsage522/harvester/config"
	"sjsage522/harvester/helpers"
	"sjsage522/harvester/logger"
	"sjsage522/harvester/pkg/errors"
	"sjsage522/harvester/services/cache"
	"sjsage522/harvester/services/metrics"
	"sjsage522/harvester/services/publisher"
	"sjsage522/harvester/services/store"
	"sjsage522/harvester/services/worker"
)

const usage = `Usage: harvester <command> [options]

Commands:
  crawl <site.yaml>   crawl list and detail pages of a configured site into JSONL
  fetch <url>         render one page and extract text, links and images
  batch <jobs.yaml>   run every job of a batch document in one browser session
  list                list result files in the output directory

Run "harvester <command> -h" for command options.
`

// Exit codes
const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 2
	exitInterrupted = 130
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(os.Stderr, usage)
		if len(args) == 0 {
			return exitUsage
		}
		return exitOK
	}

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return exitFailure
	}

	// Set up context with cancellation on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize services
	services, err := initializeServices(ctx, &cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize services")
		return exitFailure
	}
	defer services.Cleanup()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := services.Metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
				logger.Error("Metrics server on %s stopped: %v", cfg.MetricsAddr, err)
			}
		}()
	}

	w := worker.NewWorker(worker.Deps{
		Store:        services.Store,
		Fetcher:      helpers.NewHTTPClient(cfg.NavTimeout, cfg.UserAgent),
		Cache:        services.Cache,
		Publisher:    services.Publisher,
		Metrics:      services.Metrics,
		ErrorLogger:  helpers.NewLogger(cfg.ErrorLogPath),
		BlockTime:    cfg.BlockTime,
		PageCacheTTL: cfg.PageCacheTTL,
	})
	app := &app{cfg: cfg, services: services, worker: w}

	log.Info().
		Str("environment", cfg.Environment).
		Str("command", args[0]).
		Str("run_id", services.Store.RunID()).
		Msg("Starting harvester")

	switch args[0] {
	case "crawl":
		err = app.crawl(ctx, args[1:])
	case "fetch":
		err = app.fetch(ctx, args[1:])
	case "batch":
		err = app.batch(ctx, args[1:])
	case "list":
		err = app.list(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", args[0], usage)
		return exitUsage
	}

	return exitCode(ctx, err)
}

func exitCode(ctx context.Context, err error) int {
	log := logger.Default
	switch {
	case err == nil && ctx.Err() != nil:
		log.Warn().Msg("Interrupted, partial results were kept")
		return exitInterrupted
	case err == nil:
		return exitOK
	case isUsage(err):
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	default:
		log.WithError(err).Error().Str("type", string(errors.TypeOf(err))).Msg("Run failed")
		return exitFailure
	}
}

// Services holds all the initialized services
type Services struct {
	Store     *store.JSONStore
	Cache     cache.CacheService
	Publisher publisher.Publisher
	Metrics   *metrics.Metrics
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
	logger.Debug("Services cleaned up")
}

// initializeServices initializes all required services. Memcache and Redis
// are optional: an empty address or an unreachable server disables them.
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{Metrics: metrics.New()}

	st, err := store.NewJSONStore(cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	services.Store = st

	if cfg.MemcacheAddr != "" {
		mc := cache.NewMemcacheService(cfg.MemcacheAddr, "harvester")
		if err := mc.Ping(); err != nil {
			logger.Warn("Memcache at %s unavailable, page cache disabled: %v", cfg.MemcacheAddr, err)
		} else {
			services.Cache = mc
			logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
		}
	}

	if cfg.RedisAddr != "" {
		redisPublisher := publisher.NewRedisPublisher(
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamCount,
			cfg.RedisStreamMaxLength,
		)
		if err := redisPublisher.Ping(ctx); err != nil {
			redisPublisher.Close()
			logger.Warn("Redis at %s unavailable, record publishing disabled: %v", cfg.RedisAddr, err)
		} else {
			services.Publisher = redisPublisher
			logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
				cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
		}
	}

	return services, nil
}
