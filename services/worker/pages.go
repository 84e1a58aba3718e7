package worker

import (
	"context"
	"strings"
	"time"

	"sjsage522/harvester/config"
	"sjsage522/harvester/internal/browser"
	"sjsage522/harvester/internal/extract"
	"sjsage522/harvester/services/store"
)

// LoadedPage is a page the engine can read, released with Close
type LoadedPage interface {
	extract.Page
	Close() error
}

// PageOpener loads URLs into pages
type PageOpener interface {
	Open(ctx context.Context, url string) (LoadedPage, error)
	// Rendered reports whether opened pages run scripts, so waiting and scrolling make sense
	Rendered() bool
}

// BrowserOpener opens pages as browser tabs
type BrowserOpener struct {
	Session *browser.Session
}

// Open navigates a new tab to url
func (o BrowserOpener) Open(ctx context.Context, url string) (LoadedPage, error) {
	p, err := o.Session.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	return p, nil
}

var (
	_ PageOpener = BrowserOpener{}
	_ PageOpener = StaticOpener{}
)

// Rendered is always true for browser tabs
func (o BrowserOpener) Rendered() bool { return true }

// StaticOpener fetches pages over HTTP and parses them without a browser
type StaticOpener struct {
	Fetcher interface {
		Fetch(ctx context.Context, url string) (string, error)
	}
}

type staticPage struct {
	*extract.DocumentPage
}

func (staticPage) Close() error { return nil }

// Open fetches and parses url
func (o StaticOpener) Open(ctx context.Context, url string) (LoadedPage, error) {
	body, err := o.Fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	doc, err := extract.NewDocumentPage(url, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	return staticPage{doc}, nil
}

// Rendered is false: static documents have no script engine
func (o StaticOpener) Rendered() bool { return false }

// RunJob loads one page, lets it settle, scrolls when asked, extracts the
// requested kinds and optionally captures a screenshot. Load failures become
// an unsuccessful result; only a screenshot that cannot be written is
// returned as an error.
func (w *Worker) RunJob(ctx context.Context, opener PageOpener, name string, job config.Job, settings config.BrowserSettings) (*store.PageResult, error) {
	start := time.Now()
	res := &store.PageResult{Name: name, URL: job.URL}
	log := w.log.WithFields(map[string]interface{}{"job": name, "url": job.URL})

	defer func() {
		res.Elapsed = time.Since(start).Seconds()
		w.metrics.Job(res.Success)
		w.metrics.Observe("page", time.Since(start))
	}()

	page, err := opener.Open(ctx, job.URL)
	if err != nil {
		res.Error = err.Error()
		w.logger.LogError(name, err)
		return res, nil
	}
	defer page.Close()
	res.FinalURL = page.URL()

	if opener.Rendered() {
		if err := w.sleep(ctx, job.Wait(settings)); err != nil {
			res.Error = err.Error()
			return res, nil
		}
		if report, err := w.scroll(ctx, page, job); err != nil {
			log.Warn().Err(err).Msg("scrolling failed, extracting what is loaded")
		} else {
			res.Scroll = report
		}
	}

	if title, err := page.Title(ctx); err == nil {
		res.Title = strings.TrimSpace(title)
	}

	res.Data = w.engine.Extract(ctx, page, extract.Options{Kinds: job.Kinds(), Selectors: job.Selectors})
	res.Success = true
	w.countExtractions(res.Data)

	if job.WantsScreenshot(settings) {
		shooter, ok := page.(extract.Screenshotter)
		if !ok {
			log.Warn().Msg("screenshot requested but the page cannot render one")
			return res, nil
		}
		png, err := shooter.Screenshot(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("screenshot failed")
			w.logger.LogError(name+":screenshot", err)
			return res, nil
		}
		path, err := w.store.SaveScreenshot(png, res.URL, store.SanitizeFilename(name))
		if err != nil {
			return res, err
		}
		res.Screenshot = path
	}

	log.Info().Str("title", res.Title).Float64("elapsed", time.Since(start).Seconds()).Msg("page extracted")
	return res, nil
}

func (w *Worker) scroll(ctx context.Context, page extract.Page, job config.Job) (*extract.ScrollReport, error) {
	var (
		report extract.ScrollReport
		err    error
	)
	switch {
	case job.ScrollCount > 0:
		report, err = w.scroller.FixedCount(ctx, page, job.ScrollCount)
	case job.Scroll:
		report, err = w.scroller.UntilStable(ctx, page)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (w *Worker) countExtractions(b *extract.Bundle) {
	if b == nil {
		return
	}
	if b.Text != nil && !b.Text.Empty() {
		w.metrics.Extraction(config.ExtractText)
	}
	if b.Links != nil && !b.Links.Empty() {
		w.metrics.Extraction(config.ExtractLinks)
	}
	if b.Images != nil && !b.Images.Empty() {
		w.metrics.Extraction(config.ExtractImages)
	}
}

// FetchOne runs a single job and saves it as a single document
func (w *Worker) FetchOne(ctx context.Context, opener PageOpener, job config.Job, settings config.BrowserSettings, output string) (*store.PageResult, string, error) {
	name := job.Name
	if name == "" {
		name = store.SanitizeFilename(job.URL)
	}
	res, err := w.RunJob(ctx, opener, name, job, settings)
	if err != nil {
		return res, "", err
	}
	path, err := w.store.SaveSingle(res, output)
	if err != nil {
		return res, "", err
	}
	return res, path, nil
}

// BatchSummary reports what a batch run wrote
type BatchSummary struct {
	Results     []*store.PageResult
	Output      string
	Report      string
	Stats       store.Statistics
	Interrupted bool
}

// RunBatch runs every job in order with the configured delay between two
// jobs, then writes the batch document and its summary report.
func (w *Worker) RunBatch(ctx context.Context, opener PageOpener, batch *config.BatchConfig, output string) (*BatchSummary, error) {
	summary := &BatchSummary{}
	for i, job := range batch.Jobs {
		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}
		name := batch.JobName(i)
		w.log.Info().Int("job", i+1).Int("of", len(batch.Jobs)).Str("name", name).Str("url", job.URL).Msg("running job")

		res, err := w.RunJob(ctx, opener, name, job, batch.Settings)
		summary.Results = append(summary.Results, res)
		if err != nil {
			return summary, err
		}

		if i < len(batch.Jobs)-1 {
			if err := w.sleep(ctx, batch.Settings.Delay()); err != nil {
				summary.Interrupted = true
				break
			}
		}
	}

	var err error
	if summary.Output, err = w.store.SaveBatch(summary.Results, output); err != nil {
		return summary, err
	}
	if summary.Report, err = w.store.CreateSummary(summary.Results); err != nil {
		return summary, err
	}
	summary.Stats = store.Summarize(summary.Results)
	return summary, nil
}
