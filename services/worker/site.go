package worker

import (
	"context"
	"fmt"
	"time"

	"sjsage522/harvester/config"
	"sjsage522/harvester/internal/crawler"
	"sjsage522/harvester/internal/schema"
	"sjsage522/harvester/pkg/errors"
	"sjsage522/harvester/services/store"
)

// SiteOptions are the per-run overrides of a site crawl
type SiteOptions struct {
	MaxPages int
	MaxItems int
	// Output is the JSONL file name; empty derives one from the site name
	Output string
	// Delay overrides the site's delay in seconds when set
	Delay *float64
}

// SiteSummary reports what a site crawl did
type SiteSummary struct {
	Site        string
	Output      string
	Pages       int
	FailedPages int
	Identifiers int
	Emitted     int
	Failed      int
	StalledAt   int
	Interrupted bool
	Elapsed     time.Duration
}

// RunSite discovers, fetches and normalizes every item of a site, appending
// each record to a JSONL file as soon as it is built. Unit failures are logged
// and counted; only a persistence failure ends the run early.
func (w *Worker) RunSite(ctx context.Context, site *config.SiteConfig, opts SiteOptions) (*SiteSummary, error) {
	start := time.Now()
	if opts.Delay != nil {
		site.SetDelay(*opts.Delay)
	}

	var fetcher crawler.Fetcher = w.fetcher
	if w.cache != nil {
		fetcher = crawler.NewCachingFetcher(fetcher, w.cache, site.Name, w.blockTime, w.pageCacheTTL)
	}
	c := crawler.NewPaginationCrawler(site, fetcher).WithSleep(w.sleep)

	output := opts.Output
	if output == "" {
		output = fmt.Sprintf("%s_%s.jsonl", store.SanitizeFilename(site.Name), time.Now().Format("20060102_150405"))
	}
	out, err := w.store.OpenJSONL(output)
	if err != nil {
		return nil, err
	}
	defer out.Close()

	w.log.Info().
		Str("site", site.Name).
		Int("start_page", site.StartPage).
		Int("end_page", site.EndPage).
		Int("max_pages", opts.MaxPages).
		Int("max_items", opts.MaxItems).
		Str("output", out.Path()).
		Msg("site crawl started")

	sink := &recordSink{worker: w, site: site.Name, out: out}
	report, runErr := c.Harvest(ctx, crawler.HarvestOptions{MaxPages: opts.MaxPages, MaxItems: opts.MaxItems}, sink)

	summary := w.summarize(site.Name, out.Path(), report)
	summary.Elapsed = time.Since(start)
	w.metrics.Observe("site", summary.Elapsed)

	if w.publisher != nil {
		if err := w.publisher.TrimStreams(ctx); err != nil {
			w.logger.LogError("StreamTrimming", err)
		}
	}

	if err := out.Close(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		w.logger.LogError(site.Name, runErr)
		return summary, runErr
	}

	w.log.Info().
		Str("site", site.Name).
		Int("pages", summary.Pages).
		Int("failed_pages", summary.FailedPages).
		Int("identifiers", summary.Identifiers).
		Int("emitted", summary.Emitted).
		Int("failed", summary.Failed).
		Int("stalled_at", summary.StalledAt).
		Bool("interrupted", summary.Interrupted).
		Dur("elapsed", summary.Elapsed).
		Msg("site crawl finished")
	return summary, nil
}

func (w *Worker) summarize(site, output string, report *crawler.Report) *SiteSummary {
	s := &SiteSummary{Site: site, Output: output}
	if report == nil {
		return s
	}

	disc := report.Discovery
	s.Pages = len(disc.Pages)
	s.Identifiers = disc.IDs.Len()
	s.StalledAt = disc.StalledAt
	s.Interrupted = report.Interrupted
	for _, p := range disc.Pages {
		w.metrics.ListPage(site, p.OK())
		if !p.OK() {
			s.FailedPages++
			w.logger.LogError(site+":"+p.Unit, p.Err)
		}
	}
	w.metrics.Identifiers(site, s.Identifiers)

	for _, item := range report.Items {
		if item.OK() {
			s.Emitted++
			continue
		}
		s.Failed++
		w.metrics.Record(site, false)
		w.logger.LogError(site+":"+item.Unit, item.Err)
	}
	return s
}

// recordSink writes each record to the JSONL stream, then hands the same
// line to the publisher. Publishing failures never stop the run.
type recordSink struct {
	worker *Worker
	site   string
	out    *store.JSONLWriter
}

var _ crawler.RecordSink = (*recordSink)(nil)

func (s *recordSink) Emit(ctx context.Context, rec *schema.Canonical) error {
	line, err := s.out.Append(rec)
	if err != nil {
		return err
	}
	s.worker.metrics.Record(s.site, true)

	if s.worker.publisher != nil {
		if err := s.worker.publisher.Publish(ctx, s.site, line); err != nil {
			s.worker.logger.LogError(s.site+":publish", errors.NewPublisher(s.site, "cannot publish record", err))
		}
	}
	return nil
}
