package cache

import (
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/bradfitz/gomemcache/memcache"
)

const maxKeyLength = 250

// MemcacheService implements CacheService using memcache
type MemcacheService struct {
	client    *memcache.Client
	namespace string
}

// NewMemcacheService creates a memcache-backed cache. Every key is prefixed
// with namespace so several tools can share one memcached.
func NewMemcacheService(serverAddr, namespace string) *MemcacheService {
	return &MemcacheService{
		client:    memcache.New(serverAddr),
		namespace: namespace,
	}
}

// Ping checks that the server answers
func (m *MemcacheService) Ping() error {
	return m.client.Ping()
}

// Get retrieves a value from memcache
func (m *MemcacheService) Get(key string) ([]byte, error) {
	item, err := m.client.Get(m.key(key))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return nil, ErrMiss
		}
		return nil, err
	}
	return item.Value, nil
}

// Set stores a value in memcache with an expiration time
func (m *MemcacheService) Set(key string, value []byte, expiration time.Duration) error {
	seconds := int32(expiration / time.Second)
	// memcache treats 0 as "never expires"
	if expiration > 0 && seconds == 0 {
		seconds = 1
	}
	return m.client.Set(&memcache.Item{
		Key:        m.key(key),
		Value:      value,
		Expiration: seconds,
	})
}

// Delete removes a value from memcache
func (m *MemcacheService) Delete(key string) error {
	err := m.client.Delete(m.key(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}

// key applies the namespace and replaces characters memcache rejects
func (m *MemcacheService) key(key string) string {
	k := key
	if m.namespace != "" {
		k = m.namespace + ":" + key
	}
	k = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII || unicode.IsSpace(r) || unicode.IsControl(r) {
			return '_'
		}
		return r
	}, k)
	if len(k) > maxKeyLength {
		k = k[:maxKeyLength]
	}
	return k
}
