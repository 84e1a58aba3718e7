package extract

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedPage answers height samples from a fixed sequence
type scriptedPage struct {
	heights []int64
	scripts []string
}

func (p *scriptedPage) URL() string                               { return "about:blank" }
func (p *scriptedPage) Title(ctx context.Context) (string, error) { return "", nil }
func (p *scriptedPage) QueryAll(ctx context.Context, selector string) ([]Element, error) {
	return nil, nil
}

func (p *scriptedPage) Evaluate(ctx context.Context, script string, res interface{}) error {
	p.scripts = append(p.scripts, script)
	if script != documentHeight {
		return nil
	}
	h := p.heights[0]
	if len(p.heights) > 1 {
		p.heights = p.heights[1:]
	}
	*(res.(*int64)) = h
	return nil
}

func newTestScroller() (*Scroller, *[]time.Duration) {
	var slept []time.Duration
	s := NewScroller()
	s.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return s, &slept
}

func TestUntilStable(t *testing.T) {
	s, slept := newTestScroller()
	page := &scriptedPage{heights: []int64{100, 200, 200}}

	report, err := s.UntilStable(context.Background(), page)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Attempts)
	assert.Equal(t, []int64{100, 200, 200}, report.Heights)
	assert.True(t, report.Stable)
	assert.Len(t, *slept, 3)
	assert.Equal(t, time.Second, (*slept)[0])
}

func TestUntilStableStopsAtMaxAttempts(t *testing.T) {
	s, _ := newTestScroller()
	s.MaxAttempts = 5
	page := &scriptedPage{heights: []int64{100, 200, 300, 400, 500, 600, 700}}

	report, err := s.UntilStable(context.Background(), page)
	require.NoError(t, err)

	assert.Equal(t, 5, report.Attempts)
	assert.Len(t, report.Heights, 5)
	assert.False(t, report.Stable)
}

func TestUntilStableCancelled(t *testing.T) {
	s, _ := newTestScroller()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.UntilStable(ctx, &scriptedPage{heights: []int64{100}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFixedCount(t *testing.T) {
	s, slept := newTestScroller()
	page := &scriptedPage{heights: []int64{0}}

	report, err := s.FixedCount(context.Background(), page, 3)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Attempts)
	assert.Equal(t, []string{scrollByViewport, scrollByViewport, scrollByViewport}, page.scripts)
	assert.Len(t, *slept, 3)
}

func TestScrollOnStaticDocument(t *testing.T) {
	s, _ := newTestScroller()
	_, err := s.FixedCount(context.Background(), newSamplePage(t), 1)
	assert.ErrorIs(t, err, ErrScriptUnsupported)
}

func TestScrollReportJSON(t *testing.T) {
	data, err := json.Marshal(ScrollReport{Strategy: "grow-until-stable", Attempts: 2, Heights: []int64{100, 200, 200}, Stable: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"strategy":"grow-until-stable","attempts":2,"heights":[100,200,200],"stable":true}`, string(data))
}
