package publisher

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"

	"github.com/redis/go-redis/v9"

	"sjsage522/harvester/logger"
)

// RecordField is the stream entry field carrying the JSON record
const RecordField = "record"

// RedisPublisher implements Publisher over Redis streams. Records are spread
// over streamCount streams named <prefix>:0 .. <prefix>:n-1; one key always
// lands on the same stream so per-site order is kept.
type RedisPublisher struct {
	client          *redis.Client
	streamPrefix    string
	streamCount     int
	streamMaxLength int
	log             *logger.Logger
}

// NewRedisPublisher creates a new Redis publisher
func NewRedisPublisher(addr string, db int, streamPrefix string, streamCount int, streamMaxLength int) *RedisPublisher {
	if streamCount < 1 {
		streamCount = 1
	}
	return &RedisPublisher{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   db,
		}),
		streamPrefix:    streamPrefix,
		streamCount:     streamCount,
		streamMaxLength: streamMaxLength,
		log:             logger.ForPublisher(),
	}
}

// Ping checks that the server answers
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// StreamFor returns the stream that records published under key go to
func (p *RedisPublisher) StreamFor(key string) string {
	h := fnv.New32a()
	h.Write([]byte(key))
	return p.streamPrefix + ":" + strconv.Itoa(int(h.Sum32()%uint32(p.streamCount)))
}

// Publish adds message to the key's stream together with its source key
func (p *RedisPublisher) Publish(ctx context.Context, key string, message []byte) error {
	stream := p.StreamFor(key)
	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"source":    key,
			RecordField: string(message),
		},
	}
	if p.streamMaxLength > 0 {
		args.MaxLen = int64(p.streamMaxLength)
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", stream, err)
	}
	return nil
}

// TrimStreams trims all streams to the configured maximum length
func (p *RedisPublisher) TrimStreams(ctx context.Context) error {
	if p.streamMaxLength <= 0 {
		return nil
	}

	iter := p.client.Scan(ctx, 0, p.streamPrefix+":*", 100).Iterator()
	trimmed := 0
	for iter.Next(ctx) {
		stream := iter.Val()
		if err := p.client.XTrimMaxLen(ctx, stream, int64(p.streamMaxLength)).Err(); err != nil {
			return fmt.Errorf("xtrim %s: %w", stream, err)
		}
		trimmed++
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan %s streams: %w", p.streamPrefix, err)
	}
	p.log.Debug().Int("streams", trimmed).Int("max_length", p.streamMaxLength).Msg("streams trimmed")
	return nil
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
