package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/evenwebb/penrice-calendar-scraper/internal/config"
	"github.com/evenwebb/penrice-calendar-scraper/internal/ics"
	appLog "github.com/evenwebb/penrice-calendar-scraper/internal/log"
	"github.com/evenwebb/penrice-calendar-scraper/internal/pipeline"
	"github.com/evenwebb/penrice-calendar-scraper/internal/report"
	"github.com/evenwebb/penrice-calendar-scraper/internal/scrape"
)

// runner performs one fetch -> extract -> pipeline -> write cycle. Cycles
// triggered by cron and by /api/refresh are serialized.
type runner struct {
	cfg    *config.Config
	source scrape.Source

	// file, when set, is read instead of fetching cfg.Source.URL.
	file string
	// dump prints the event table to stdout after each cycle.
	dump bool

	now func() time.Time
	mu  sync.Mutex
}

func newRunner(cfg *config.Config, file string, dump bool) *runner {
	return &runner{
		cfg:    cfg,
		source: newSource(cfg),
		file:   file,
		dump:   dump,
		now:    time.Now,
	}
}

func newSource(cfg *config.Config) scrape.Source {
	if cfg.Source.Renderer == config.RendererChromium {
		return &scrape.ChromiumRenderer{
			Timeout:   cfg.FetchTimeout(),
			UserAgent: cfg.Fetch.UserAgent,
		}
	}
	return scrape.NewFetcher(scrape.FetcherOptions{
		CacheDir:     cfg.Fetch.CacheDir,
		UserAgent:    cfg.Fetch.UserAgent,
		Retries:      cfg.Fetch.Retries,
		Timeout:      cfg.FetchTimeout(),
		InitialDelay: cfg.InitialRetryDelay(),
	})
}

// optionsFromConfig maps the configuration file onto pipeline options.
func optionsFromConfig(cfg *config.Config, now time.Time) pipeline.Options {
	return pipeline.Options{
		IncludeScraped:  cfg.Events.IncludeScraped,
		IncludeHolidays: cfg.Events.IncludeHolidays,
		HolidayStrategy: cfg.Holidays.Strategy,
		ExpandHalfTerm:  cfg.Events.ExpandHalfTerm,
		SeasonNames:     cfg.Events.SeasonNames,
		Describe:        cfg.Events.Describe,
		TitleCaseWords:  cfg.Events.TitleCaseWords,
		SummaryPrefix:   cfg.Events.SummaryPrefix,
		UIDDomain:       cfg.Calendar.UIDDomain,
		Feed: ics.FeedOptions{
			ProdID: cfg.Calendar.ProdID,
			Name:   cfg.Calendar.Name,
		},
		Now:      now,
		Rollover: cfg.Rollover(),
	}
}

// Run executes one cycle. On any error the existing output file is left
// untouched.
func (r *runner) Run(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := r.now()

	page, err := r.load(ctx)
	if err != nil {
		return err
	}

	lines, err := scrape.ExtractLines(page, scrape.ExtractOptions{
		ContentSelectors: r.cfg.Source.ContentSelectors,
		SkipWords:        r.cfg.Source.SkipWords,
	})
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	res, err := pipeline.Run(lines, optionsFromConfig(r.cfg, start))
	if err != nil {
		return err
	}

	changed, err := ics.WriteFeed(r.cfg.Output.Path, res.Feed)
	if err != nil {
		return fmt.Errorf("write %s: %w", r.cfg.Output.Path, err)
	}

	appLog.Info("calendar cycle completed",
		"output", r.cfg.Output.Path,
		"events", len(res.Events),
		"changed", changed,
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)

	if r.dump {
		if err := report.WriteTable(os.Stdout, res.Events); err != nil {
			return fmt.Errorf("dump: %w", err)
		}
	}
	return nil
}

func (r *runner) load(ctx context.Context) ([]byte, error) {
	if r.file != "" {
		body, err := os.ReadFile(r.file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", r.file, err)
		}
		appLog.Info("using local page", "file", r.file, "bytes", len(body))
		return body, nil
	}

	res, err := r.source.Fetch(ctx, r.cfg.Source.URL)
	if err != nil {
		return nil, err
	}
	if res.FromCache {
		appLog.Info("page served from cache")
	}
	return res.Body, nil
}
