package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/evenwebb/penrice-calendar-scraper/internal/config"
	appLog "github.com/evenwebb/penrice-calendar-scraper/internal/log"
	"github.com/evenwebb/penrice-calendar-scraper/internal/web"
)

const version = "1.0.0"

// flagConfig holds CLI flag values that override the config file.
type flagConfig struct {
	configPath string
	listen     string
	output     string
	file       string
	once       bool
	dump       bool
}

func main() {
	os.Exit(run())
}

func run() int {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		return 1
	}
	applyFlags(conf, flags)

	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	if err := appLog.SetDiagnosticsFile(conf.Output.LogPath); err != nil {
		appLog.Error("failed to open diagnostics log", err, "path", conf.Output.LogPath)
	}
	defer appLog.Close()

	appLog.Info("termcal starting", "version", version)
	appLog.Info("effective config",
		"source", conf.Source.URL,
		"renderer", conf.Source.Renderer,
		"output", conf.Output.Path,
		"refresh", conf.RefreshCron,
		"listen", conf.Listen,
		"holidays", conf.Events.IncludeHolidays,
		"strategy", conf.Holidays.Strategy,
		"once", flags.once,
		"file", flags.file,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	r := newRunner(conf, flags.file, flags.dump)

	if flags.once {
		if err := r.Run(ctx); err != nil {
			appLog.Error("calendar cycle failed; output left untouched", err, "output", conf.Output.Path)
			return 1
		}
		return 0
	}

	// Initial cycle so the feed exists before the first scheduled run.
	if err := r.Run(ctx); err != nil {
		appLog.Error("initial calendar cycle failed", err)
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(conf.RefreshCron, func() {
		if err := r.Run(ctx); err != nil {
			appLog.Error("scheduled calendar cycle failed", err)
		}
	}); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		return 1
	}
	scheduler.Start()
	defer func() {
		<-scheduler.Stop().Done()
	}()

	serverErr := make(chan error, 1)
	if conf.Listen != "" {
		go func() {
			serverErr <- web.StartServer(ctx, conf, r.Run)
		}()
	}

	select {
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	case err := <-serverErr:
		if err != nil {
			appLog.Error("HTTP server failed", err, "listen", conf.Listen)
			cancel()
			return 1
		}
	}

	// Let the HTTP server finish its graceful shutdown.
	if conf.Listen != "" {
		select {
		case <-serverErr:
		case <-time.After(6 * time.Second):
		}
	}
	appLog.Info("termcal exiting")
	return 0
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "config.yaml", "Path to config file (created with defaults if missing)")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.output, "output", "", "Output .ics path (overrides config if set)")
	flag.StringVar(&cfg.file, "file", "", "Read the term-dates page from a local HTML file instead of fetching it")
	flag.BoolVar(&cfg.once, "once", false, "Run one fetch+generate cycle and exit")
	flag.BoolVar(&cfg.dump, "dump", false, "Print the generated events as a table")

	flag.Parse()

	return cfg
}

// applyFlags lets CLI flags override config file values.
func applyFlags(conf *config.Config, flags flagConfig) {
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.output != "" {
		conf.Output.Path = flags.output
	}
}
