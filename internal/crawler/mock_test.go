package crawler

import (
	"context"
	"errors"
	"sync"
	"time"

	"sjsage522/harvester/internal/schema"
	"sjsage522/harvester/services/cache"
)

// MockCacheService implements a simple in-memory cache for testing
type MockCacheService struct {
	mu    sync.Mutex
	cache map[string][]byte
	ttls  map[string]time.Duration
}

var _ cache.CacheService = (*MockCacheService)(nil)

func NewMockCacheService() *MockCacheService {
	return &MockCacheService{
		cache: make(map[string][]byte),
		ttls:  make(map[string]time.Duration),
	}
}

func (m *MockCacheService) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if val, ok := m.cache[key]; ok {
		return val, nil
	}
	return nil, cache.ErrMiss
}

func (m *MockCacheService) Set(key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = value
	m.ttls[key] = expiration
	return nil
}

func (m *MockCacheService) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, key)
	return nil
}

// stubFetcher serves canned pages and records every requested URL
type stubFetcher struct {
	pages   map[string]string
	errs    map[string]error
	fetched []string
}

var _ Fetcher = (*stubFetcher)(nil)

func newStubFetcher() *stubFetcher {
	return &stubFetcher{pages: make(map[string]string), errs: make(map[string]error)}
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.fetched = append(f.fetched, url)
	if err, ok := f.errs[url]; ok {
		return "", err
	}
	if body, ok := f.pages[url]; ok {
		return body, nil
	}
	return "", errors.New("not found: " + url)
}

// recordingSleep counts delays without waiting
type recordingSleep struct {
	calls []time.Duration
}

func (s *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return ctx.Err()
}

// collectingSink keeps every emitted record
type collectingSink struct {
	records []*schema.Canonical
	err     error
}

var _ RecordSink = (*collectingSink)(nil)

func (s *collectingSink) Emit(ctx context.Context, rec *schema.Canonical) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}
