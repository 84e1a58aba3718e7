package worker

import (
	"context"
	"time"

	"sjsage522/harvester/helpers"
	"sjsage522/harvester/internal/crawler"
	"sjsage522/harvester/internal/extract"
	"sjsage522/harvester/logger"
	"sjsage522/harvester/services/cache"
	"sjsage522/harvester/services/metrics"
	"sjsage522/harvester/services/publisher"
	"sjsage522/harvester/services/store"
)

// Deps are the services a worker runs against. Cache and Publisher are optional.
type Deps struct {
	Store       *store.JSONStore
	Fetcher     crawler.Fetcher
	Cache       cache.CacheService
	Publisher   publisher.Publisher
	Metrics     *metrics.Metrics
	ErrorLogger helpers.LoggerInterface

	// BlockTime is how long a site is skipped after a 429
	BlockTime time.Duration
	// PageCacheTTL caches fetched pages when positive
	PageCacheTTL time.Duration
}

// Worker runs site crawls and page jobs strictly one unit at a time
type Worker struct {
	store        *store.JSONStore
	fetcher      crawler.Fetcher
	cache        cache.CacheService
	publisher    publisher.Publisher
	metrics      *metrics.Metrics
	logger       helpers.LoggerInterface
	engine       *extract.Engine
	scroller     *extract.Scroller
	blockTime    time.Duration
	pageCacheTTL time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
	log          *logger.Logger
}

// NewWorker creates a new worker
func NewWorker(deps Deps) *Worker {
	m := deps.Metrics
	if m == nil {
		m = metrics.New()
	}
	errLog := deps.ErrorLogger
	if errLog == nil {
		errLog = helpers.NewLogger("")
	}
	return &Worker{
		store:        deps.Store,
		fetcher:      deps.Fetcher,
		cache:        deps.Cache,
		publisher:    deps.Publisher,
		metrics:      m,
		logger:       errLog,
		engine:       extract.NewEngine(),
		scroller:     extract.NewScroller(),
		blockTime:    deps.BlockTime,
		pageCacheTTL: deps.PageCacheTTL,
		sleep:        helpers.Sleep,
		log:          logger.ForWorker(),
	}
}

// Fetcher returns the plain HTTP fetcher, used for browserless page jobs
func (w *Worker) Fetcher() crawler.Fetcher {
	return w.fetcher
}
