package helpers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolveURL(t *testing.T) {
	tests := []struct {
		base, ref, want string
	}{
		{"https://example.com/jobs/list?p=2", "/jobs/10", "https://example.com/jobs/10"},
		{"https://example.com/jobs/list", "detail/3", "https://example.com/jobs/detail/3"},
		{"https://example.com/", "https://other.org/a", "https://other.org/a"},
		{"https://example.com/a", "//cdn.example.com/x.png", "https://cdn.example.com/x.png"},
		{"https://example.com/a", "%zz", "%zz"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveURL(tt.base, tt.ref), "ResolveURL(%q, %q)", tt.base, tt.ref)
	}
}

func TestCollapseWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", CollapseWhitespace("  a\n\n b\t\tc  "))
	assert.Equal(t, "", CollapseWhitespace(" \n "))
}

func TestSleep(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), 0))
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}
