package publisher

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamFor(t *testing.T) {
	p := NewRedisPublisher("localhost:6379", 0, "harvest", 4, 100)
	defer p.Close()

	first := p.StreamFor("job-board")
	assert.Equal(t, first, p.StreamFor("job-board"))
	assert.True(t, strings.HasPrefix(first, "harvest:"))

	seen := map[string]bool{}
	for _, key := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		seen[p.StreamFor(key)] = true
	}
	for stream := range seen {
		assert.Contains(t, []string{"harvest:0", "harvest:1", "harvest:2", "harvest:3"}, stream)
	}

	single := NewRedisPublisher("localhost:6379", 0, "harvest", 0, 0)
	defer single.Close()
	assert.Equal(t, "harvest:0", single.StreamFor("anything"))
}

// This test requires a running redis instance
// If redis is not available, the test will be skipped
func TestRedisPublisher(t *testing.T) {
	ctx := context.Background()
	publisher := NewRedisPublisher("localhost:6379", 0, "test_stream_r", 1, 10)
	defer publisher.Close()

	if err := publisher.Ping(ctx); err != nil {
		t.Skip("Redis is not available, skipping test")
	}

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   0,
	})
	defer client.Close()

	stream := publisher.StreamFor("jobs")
	client.Del(ctx, stream)

	err := client.XGroupCreateMkStream(ctx, stream, "test_group", "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		require.NoError(t, err)
	}

	messages := make(chan map[string]interface{}, 1)
	go func() {
		res, err := client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Streams:  []string{stream, ">"},
			Group:    "test_group",
			Consumer: "test_consumer",
			Block:    0,
		}).Result()
		if assert.NoError(t, err) {
			messages <- res[0].Messages[0].Values
		}
	}()

	time.Sleep(100 * time.Millisecond)

	err = publisher.Publish(ctx, "jobs", []byte(`{"title":"Engineer"}`))
	assert.NoError(t, err)

	select {
	case values := <-messages:
		assert.Equal(t, "jobs", values["source"])
		assert.Equal(t, `{"title":"Engineer"}`, values[RecordField])
	case <-time.After(1 * time.Second):
		t.Error("Timed out waiting for message")
	}

	for i := 0; i < 20; i++ {
		require.NoError(t, publisher.Publish(ctx, "jobs", []byte(`{}`)))
	}
	require.NoError(t, publisher.TrimStreams(ctx))
	length, err := client.XLen(ctx, stream).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(10), length)
}
