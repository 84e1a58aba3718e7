package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"sjsage522/harvester/internal/extract"
	"sjsage522/harvester/services/cache"
	"sjsage522/harvester/services/publisher"
)

// MockCacheService implements a simple in-memory cache for testing
type MockCacheService struct {
	mu    sync.Mutex
	cache map[string][]byte
}

var _ cache.CacheService = (*MockCacheService)(nil)

func NewMockCacheService() *MockCacheService {
	return &MockCacheService{cache: make(map[string][]byte)}
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
	return nil
}

func (m *MockCacheService) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, key)
	return nil
}

// MockPublisher implements the publisher.Publisher interface for testing
type MockPublisher struct {
	mu         sync.Mutex
	messages   map[string][][]byte
	publishErr error
	trims      int
}

var _ publisher.Publisher = (*MockPublisher)(nil)

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{messages: make(map[string][][]byte)}
}

func (m *MockPublisher) Publish(ctx context.Context, key string, message []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	messageCopy := make([]byte, len(message))
	copy(messageCopy, message)
	m.messages[key] = append(m.messages[key], messageCopy)
	return nil
}

func (m *MockPublisher) TrimStreams(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trims++
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

// MockLogger implements the helpers.LoggerInterface for testing
type MockLogger struct {
	mu     sync.Mutex
	errors map[string]error
	infos  []string
}

func NewMockLogger() *MockLogger {
	return &MockLogger{errors: make(map[string]error)}
}

func (m *MockLogger) LogError(unit string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[unit] = err
}

func (m *MockLogger) LogInfo(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, format)
}

// stubFetcher serves canned pages
type stubFetcher struct {
	mu      sync.Mutex
	pages   map[string]string
	fetched []string
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{pages: make(map[string]string)}
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, url)
	if body, ok := f.pages[url]; ok {
		return body, nil
	}
	return "", errors.New("fetch " + url + " unexpected status code: 404")
}

// renderedPage is a static document that pretends to run scripts and render screenshots
type renderedPage struct {
	*extract.DocumentPage
	heights []int64
	scripts []string
	closed  bool
}

func (p *renderedPage) Evaluate(ctx context.Context, script string, res interface{}) error {
	p.scripts = append(p.scripts, script)
	if script == "document.body.scrollHeight" {
		h := p.heights[0]
		if len(p.heights) > 1 {
			p.heights = p.heights[1:]
		}
		*(res.(*int64)) = h
		return nil
	}
	if strings.Contains(script, "getComputedStyle") {
		return extract.ErrScriptUnsupported
	}
	return nil
}

func (p *renderedPage) Screenshot(ctx context.Context) ([]byte, error) {
	return []byte("png"), nil
}

func (p *renderedPage) Close() error {
	p.closed = true
	return nil
}

// fakeBrowser opens renderedPages from canned markup
type fakeBrowser struct {
	markup  map[string]string
	heights []int64
	opened  []*renderedPage
}

func (b *fakeBrowser) Open(ctx context.Context, url string) (LoadedPage, error) {
	html, ok := b.markup[url]
	if !ok {
		return nil, errors.New("navigation to " + url + " failed: net::ERR_NAME_NOT_RESOLVED")
	}
	doc, err := extract.NewDocumentPage(url, strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	p := &renderedPage{DocumentPage: doc, heights: b.heights}
	b.opened = append(b.opened, p)
	return p, nil
}

func (b *fakeBrowser) Rendered() bool { return true }

// recordingSleep counts delays without waiting
type recordingSleep struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (s *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, d)
	return ctx.Err()
}
