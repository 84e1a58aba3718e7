package extract

import (
	"context"
	"time"

	"sjsage522/harvester/helpers"
	"sjsage522/harvester/logger"
)

const (
	scrollByViewport = `window.scrollBy(0, window.innerHeight)`
	scrollToBottom   = `window.scrollTo(0, document.body.scrollHeight)`
	documentHeight   = `document.body.scrollHeight`

	// DefaultMaxScrollAttempts bounds grow-until-stable on endless pages
	DefaultMaxScrollAttempts = 50
)

// ScrollReport describes what a scroll strategy did
type ScrollReport struct {
	Strategy string `json:"strategy"`
	// Attempts counts scrolls that grew the page (grow-until-stable) or scrolls performed (fixed-count)
	Attempts int     `json:"attempts"`
	Heights  []int64 `json:"heights,omitempty"`
	Stable   bool    `json:"stable"`
}

// Scroller loads lazily rendered content before extraction
type Scroller struct {
	Settle      time.Duration
	MaxAttempts int
	sleep       func(ctx context.Context, d time.Duration) error
	log         *logger.Logger
}

// NewScroller returns a scroller with a one second settle delay
func NewScroller() *Scroller {
	return &Scroller{
		Settle:      time.Second,
		MaxAttempts: DefaultMaxScrollAttempts,
		sleep:       helpers.Sleep,
		log:         logger.ForEngine(),
	}
}

// FixedCount scrolls down by one viewport height n times, settling after each
func (s *Scroller) FixedCount(ctx context.Context, page Page, n int) (ScrollReport, error) {
	report := ScrollReport{Strategy: "fixed-count"}
	for i := 0; i < n; i++ {
		if err := page.Evaluate(ctx, scrollByViewport, nil); err != nil {
			return report, err
		}
		if err := s.sleep(ctx, s.Settle); err != nil {
			return report, err
		}
		report.Attempts++
		s.log.Debug().Int("scroll", i+1).Int("of", n).Msg("scrolled")
	}
	return report, nil
}

// UntilStable scrolls to the bottom and samples the document height after each
// settle delay, stopping once a sample equals the previous one or after
// MaxAttempts growing scrolls.
func (s *Scroller) UntilStable(ctx context.Context, page Page) (ScrollReport, error) {
	report := ScrollReport{Strategy: "grow-until-stable"}
	var previous int64
	for report.Attempts < s.MaxAttempts {
		if err := page.Evaluate(ctx, scrollToBottom, nil); err != nil {
			return report, err
		}
		if err := s.sleep(ctx, s.Settle); err != nil {
			return report, err
		}

		var height int64
		if err := page.Evaluate(ctx, documentHeight, &height); err != nil {
			return report, err
		}
		report.Heights = append(report.Heights, height)
		if height == previous {
			report.Stable = true
			break
		}

		previous = height
		report.Attempts++
		if report.Attempts%10 == 0 {
			s.log.Debug().Int("attempts", report.Attempts).Int64("height", height).Msg("still scrolling")
		}
	}
	s.log.Debug().Int("attempts", report.Attempts).Bool("stable", report.Stable).Msg("scrolling completed")
	return report, nil
}
