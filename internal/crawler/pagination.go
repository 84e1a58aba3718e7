package crawler

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"sjsage522/harvester/config"
	"sjsage522/harvester/helpers"
	"sjsage522/harvester/internal/parser"
	"sjsage522/harvester/internal/record"
	"sjsage522/harvester/internal/schema"
	"sjsage522/harvester/logger"
	"sjsage522/harvester/pkg/errors"
)

// SourceStamp names the site on every emitted record
const SourceStamp = "_source"

// SleepFunc waits between two requests and returns early when ctx ends
type SleepFunc func(ctx context.Context, d time.Duration) error

// RecordSink receives each normalized record as soon as it is built
type RecordSink interface {
	Emit(ctx context.Context, rec *schema.Canonical) error
}

// PaginationCrawler walks a site's list pages and detail pages as described by a SiteConfig
type PaginationCrawler struct {
	site     *config.SiteConfig
	fetcher  Fetcher
	patterns []parser.MetaPattern
	sleep    SleepFunc
	log      *logger.Logger
}

// NewPaginationCrawler binds a validated site config to a fetcher
func NewPaginationCrawler(site *config.SiteConfig, fetcher Fetcher) *PaginationCrawler {
	patterns := make([]parser.MetaPattern, 0, len(site.MetaPatterns))
	regexes := site.MetaRegexes()
	for i, mp := range site.MetaPatterns {
		patterns = append(patterns, parser.MetaPattern{Name: mp.Name, Regex: regexes[i]})
	}
	return &PaginationCrawler{
		site:     site,
		fetcher:  fetcher,
		patterns: patterns,
		sleep:    helpers.Sleep,
		log:      logger.ForCrawler(site.Name),
	}
}

// WithSleep replaces the delay function, mainly for tests
func (c *PaginationCrawler) WithSleep(fn SleepFunc) *PaginationCrawler {
	c.sleep = fn
	return c
}

// GetName returns the site name
func (c *PaginationCrawler) GetName() string {
	return c.site.Name
}

// Discovery is the result of walking the list pages
type Discovery struct {
	IDs         *IdentifierSet
	Pages       []Outcome[[]string]
	StalledAt   int
	Interrupted bool
}

// Discover walks list pages from start_page to end_page, capped at maxPages
// pages when maxPages > 0. It stops right after a successfully fetched page,
// other than the first, that contributes no unseen identifier. Failed pages
// are recorded and contribute nothing.
func (c *PaginationCrawler) Discover(ctx context.Context, maxPages int) *Discovery {
	start, end := c.site.StartPage, c.site.EndPage
	if maxPages > 0 && start+maxPages-1 < end {
		end = start + maxPages - 1
	}

	d := &Discovery{IDs: NewIdentifierSet()}
	for page := start; page <= end; page++ {
		if ctx.Err() != nil {
			d.Interrupted = true
			break
		}

		unit := fmt.Sprintf("page:%d", page)
		url := c.site.ListPageURL(page)
		html, err := c.fetcher.Fetch(ctx, url)
		if err != nil {
			err = c.classify(url, err)
			c.log.Warn().Err(err).Int("page", page).Str("url", url).Msg("list page failed")
			d.Pages = append(d.Pages, Failed[[]string](unit, err))
		} else {
			fresh := d.IDs.AddAll(parser.ExtractIdentifiers(html, c.site.IDRegex()))
			d.Pages = append(d.Pages, Succeeded(unit, fresh))
			c.log.Info().
				Int("page", page).
				Int("end_page", end).
				Int("new_ids", len(fresh)).
				Int("total_ids", d.IDs.Len()).
				Msg("list page crawled")

			if len(fresh) == 0 && page > start {
				c.log.Info().Int("page", page).Msg("no new identifiers, stopping pagination")
				d.StalledAt = page
				break
			}
		}

		if page < end {
			if err := c.sleep(ctx, c.site.PageDelay()); err != nil {
				d.Interrupted = true
				break
			}
		}
	}
	return d
}

// FetchDetail fetches and parses one detail page into a raw record
func (c *PaginationCrawler) FetchDetail(ctx context.Context, id string) (*record.Record, error) {
	url := c.site.DetailPageURL(id)
	html, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, c.classify(url, err)
	}
	return parser.ParseDetail(html, c.patterns, c.site.IDField, id), nil
}

// HarvestOptions bounds a harvest run
type HarvestOptions struct {
	MaxPages int
	MaxItems int
}

// Report aggregates every unit outcome of a harvest run
type Report struct {
	Discovery   *Discovery
	Items       []Outcome[*schema.Canonical]
	Interrupted bool
}

// Emitted counts the records handed to the sink
func (r *Report) Emitted() int {
	n := 0
	for _, item := range r.Items {
		if item.OK() {
			n++
		}
	}
	return n
}

// Harvest discovers identifiers, then fetches, normalizes and emits one record
// per identifier. Unit failures are recorded in the report; a fatal sink error
// ends the run and is returned together with the partial report.
func (c *PaginationCrawler) Harvest(ctx context.Context, opts HarvestOptions, sink RecordSink) (*Report, error) {
	disc := c.Discover(ctx, opts.MaxPages)
	report := &Report{Discovery: disc, Interrupted: disc.Interrupted}
	if disc.Interrupted {
		return report, nil
	}

	ids := disc.IDs.Slice()
	if opts.MaxItems > 0 && len(ids) > opts.MaxItems {
		ids = ids[:opts.MaxItems]
	}
	c.log.Info().Int("ids", disc.IDs.Len()).Int("items", len(ids)).Msg("fetching details")

	for i, id := range ids {
		if ctx.Err() != nil {
			report.Interrupted = true
			break
		}

		unit := "item:" + id
		raw, err := c.FetchDetail(ctx, id)
		if err != nil {
			c.log.Warn().Err(err).Str("id", id).Msg("detail failed")
			report.Items = append(report.Items, Failed[*schema.Canonical](unit, err))
		} else {
			rec := schema.Normalize(raw, c.site.Mapping)
			rec.Stamp(SourceStamp, c.site.Name)
			if err := sink.Emit(ctx, rec); err != nil {
				if isFatal(err) {
					return report, err
				}
				c.log.Warn().Err(err).Str("id", id).Msg("record not delivered")
				report.Items = append(report.Items, Failed[*schema.Canonical](unit, err))
			} else {
				c.log.Debug().Str("id", id).Int("n", i+1).Int("of", len(ids)).Msg("record emitted")
				report.Items = append(report.Items, Succeeded(unit, rec))
			}
		}

		if i < len(ids)-1 {
			if err := c.sleep(ctx, c.site.PageDelay()); err != nil {
				report.Interrupted = true
				break
			}
		}
	}
	return report, nil
}

func (c *PaginationCrawler) classify(url string, err error) error {
	var ce *errors.CrawlerError
	if stderrors.As(err, &ce) {
		return err
	}
	if stderrors.Is(err, helpers.ErrRateLimited) {
		return errors.New(errors.ErrorTypeRateLimit, c.site.Name, "rate limited at "+url, err)
	}
	return errors.NewNetwork(c.site.Name, "fetch "+url, err)
}

func isFatal(err error) bool {
	var ce *errors.CrawlerError
	return stderrors.As(err, &ce) && ce.Fatal()
}
