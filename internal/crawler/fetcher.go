package crawler

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"time"

	"sjsage522/harvester/helpers"
	"sjsage522/harvester/logger"
	"sjsage522/harvester/pkg/errors"
	"sjsage522/harvester/services/cache"
)

// Fetcher retrieves a page as UTF-8 markup
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// CachingFetcher puts a memcache-backed page cache and a rate-limit block in front of a Fetcher.
// After a 429 the block key is set for BlockTime and every fetch fails fast until it expires.
type CachingFetcher struct {
	Next      Fetcher
	Cache     cache.CacheService
	BlockKey  string
	BlockTime time.Duration
	TTL       time.Duration
	log       *logger.Logger
}

// NewCachingFetcher wraps next. A zero ttl disables page caching but keeps the rate-limit block.
func NewCachingFetcher(next Fetcher, c cache.CacheService, site string, blockTime, ttl time.Duration) *CachingFetcher {
	return &CachingFetcher{
		Next:      next,
		Cache:     c,
		BlockKey:  "blocked:" + site,
		BlockTime: blockTime,
		TTL:       ttl,
		log:       logger.ForCache().WithField("site", site),
	}
}

// PageCacheKey derives a memcache-safe key from a URL
func PageCacheKey(url string) string {
	sum := sha1.Sum([]byte(url))
	return "page:" + hex.EncodeToString(sum[:])
}

// Fetch serves from cache when possible and records rate limiting
func (f *CachingFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if _, err := f.Cache.Get(f.BlockKey); err == nil {
		return "", errors.NewRateLimit(f.BlockKey, f.BlockTime)
	}

	key := PageCacheKey(url)
	if f.TTL > 0 {
		if body, err := f.Cache.Get(key); err == nil {
			f.log.Debug().Str("url", url).Msg("page cache hit")
			return string(body), nil
		}
	}

	body, err := f.Next.Fetch(ctx, url)
	if err != nil {
		if stderrors.Is(err, helpers.ErrRateLimited) && f.BlockTime > 0 {
			if setErr := f.Cache.Set(f.BlockKey, []byte(fmt.Sprintf("%d", f.BlockTime/time.Second)), f.BlockTime); setErr != nil {
				f.log.Warn().Err(setErr).Msg("cannot record rate limit block")
			}
		}
		return "", err
	}

	if f.TTL > 0 {
		if err := f.Cache.Set(key, []byte(body), f.TTL); err != nil {
			f.log.Warn().Err(err).Str("url", url).Msg("cannot cache page")
		}
	}
	return body, nil
}
