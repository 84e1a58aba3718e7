package main

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"
	"strings"

	"sjsage522/harvester/config"
	"sjsage522/harvester/internal/browser"
	"sjsage522/harvester/logger"
	"sjsage522/harvester/services/worker"
)

type app struct {
	cfg      config.Config
	services *Services
	worker   *worker.Worker
}

type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func isUsage(err error) bool {
	_, ok := err.(*usageError)
	return ok
}

// parseArgs parses flags that may appear before or after positional arguments
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, &usageError{msg: err.Error()}
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}

func (a *app) crawl(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("crawl", flag.ContinueOnError)
	maxPages := fs.Int("max-pages", 0, "stop after this many list pages (0 = end_page)")
	maxItems := fs.Int("max-items", 0, "fetch at most this many detail pages (0 = all)")
	output := fs.String("output", "", "JSONL file name in the output directory")
	delay := fs.Float64("delay", -1, "override the site delay in seconds")

	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return &usageError{msg: "crawl needs exactly one site config file"}
	}

	site, err := config.LoadSiteConfig(positional[0])
	if err != nil {
		return err
	}

	opts := worker.SiteOptions{MaxPages: *maxPages, MaxItems: *maxItems, Output: *output}
	if *delay >= 0 {
		opts.Delay = delay
	}

	summary, err := a.worker.RunSite(ctx, site, opts)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d records written to %s (%d failed, %d identifiers over %d pages)\n",
		summary.Site, summary.Emitted, summary.Output, summary.Failed, summary.Identifiers, summary.Pages)
	return nil
}

func (a *app) fetch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	output := fs.String("output", "", "result file name in the output directory")
	screenshot := fs.Bool("screenshot", false, "save a full page PNG")
	profile := fs.String("profile", "", "browser profile name or directory")
	userAgent := fs.String("user-agent", "", "browser user agent")
	wait := fs.Int("wait", 0, "milliseconds to wait after loading")
	scroll := fs.Bool("scroll", false, "scroll until the page stops growing")
	scrollCount := fs.Int("scroll-count", 0, "scroll down this many viewports instead")
	headful := fs.Bool("headful", false, "show the browser window")
	static := fs.Bool("static", false, "fetch over HTTP without a browser")
	extractKinds := fs.String("extract", "", "comma separated kinds: text,links,images")

	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return &usageError{msg: "fetch needs exactly one URL"}
	}

	batch := config.DefaultBatchConfig()
	batch.Settings.Screenshot = *screenshot
	batch.Settings.Profile = *profile
	batch.Debug.Headful = *headful
	if *userAgent != "" {
		batch.Settings.UserAgent = *userAgent
	}
	job := config.Job{URL: positional[0], WaitMS: *wait, Scroll: *scroll, ScrollCount: *scrollCount}
	if *extractKinds != "" {
		job.Extract = strings.Split(*extractKinds, ",")
	}
	batch.Jobs = []config.Job{job}
	if err := batch.Validate(); err != nil {
		return err
	}

	var opener worker.PageOpener
	if *static {
		opener = worker.StaticOpener{Fetcher: a.worker.Fetcher()}
	} else {
		session, err := a.launch(ctx, batch)
		if err != nil {
			return err
		}
		defer session.Close()
		opener = worker.BrowserOpener{Session: session}
	}

	res, path, err := a.worker.FetchOne(ctx, opener, job, batch.Settings, *output)
	if err != nil {
		return err
	}
	if !res.Success {
		fmt.Printf("fetch failed: %s (result saved to %s)\n", res.Error, path)
		return nil
	}
	fmt.Printf("%s -> %s\n", res.URL, path)
	return nil
}

func (a *app) batch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	output := fs.String("output", "", "batch result file name in the output directory")

	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return &usageError{msg: "batch needs exactly one jobs file"}
	}

	batch, err := config.LoadBatchConfig(positional[0])
	if err != nil {
		return err
	}

	session, err := a.launch(ctx, *batch)
	if err != nil {
		return err
	}
	defer session.Close()

	summary, err := a.worker.RunBatch(ctx, worker.BrowserOpener{Session: session}, batch, *output)
	if err != nil {
		return err
	}
	fmt.Printf("%d/%d jobs succeeded (%.2f%%)\nresults: %s\nsummary: %s\n",
		summary.Stats.SuccessfulCrawls, summary.Stats.TotalURLs, summary.Stats.SuccessRate,
		summary.Output, summary.Report)
	return nil
}

func (a *app) list(args []string) error {
	if len(args) > 0 {
		return &usageError{msg: "list takes no arguments"}
	}
	files, err := a.services.Store.ListOutputFiles()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Printf("no result files in %s\n", a.services.Store.Dir())
		return nil
	}
	for _, f := range files {
		fmt.Println(filepath.Join(a.services.Store.Dir(), f))
	}
	return nil
}

// launch starts the browser for a batch document; the caller closes it
func (a *app) launch(ctx context.Context, batch config.BatchConfig) (*browser.Session, error) {
	opts := browser.DefaultOptions()
	opts.Headless = !batch.Debug.Headful
	opts.UserAgent = batch.Settings.UserAgent
	opts.NavTimeout = batch.Settings.Timeout()
	if batch.Settings.TimeoutMS == 0 {
		opts.NavTimeout = a.cfg.NavTimeout
	}

	if name := batch.Settings.Profile; name != "" {
		if dir, ok := config.ResolveProfile(name, a.cfg.ProfileDir); ok {
			opts.UserDataDir = dir
			logger.Info("Using browser profile %s", dir)
		} else {
			logger.Warn("Browser profile %q not found under %s, using a fresh profile", name, a.cfg.ProfileDir)
		}
	}
	return browser.Launch(ctx, opts)
}
