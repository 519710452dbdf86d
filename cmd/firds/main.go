// Command firds downloads the latest FIRDS delta package, converts its
// instrument records into a table and publishes the file to object storage.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"firdscli/internal/config"
	apperrors "firdscli/internal/errors"
	"firdscli/internal/feed"
	"firdscli/internal/fetch"
	"firdscli/internal/infrastructure"
	"firdscli/internal/operations"
	"firdscli/internal/storage"
	"firdscli/pkg/contracts"
)

const shutdownTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	configFile     string
	feedURL        string
	prefix         string
	archive        string
	persistArchive bool
	format         string
	out            string
	bucket         string
	noPublish      bool
	list           bool
	version        bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	var o options
	fs := flag.NewFlagSet("firds", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configFile, "config", "", "YAML configuration file (defaults to $"+config.ConfigFileEnv+")")
	fs.StringVar(&o.feedURL, "feed-url", "", "registry search URL listing the data packages")
	fs.StringVar(&o.prefix, "prefix", "", "file name prefix of the package to select")
	fs.StringVar(&o.archive, "archive", "", "read a local zip package instead of the feed")
	fs.BoolVar(&o.persistArchive, "persist-archive", false, "keep the downloaded zip in the downloads directory")
	fs.StringVar(&o.format, "format", "", "output format: csv | xlsx | parquet")
	fs.StringVar(&o.out, "out", "", "output file name or path")
	fs.StringVar(&o.bucket, "bucket", "", "destination bucket")
	fs.BoolVar(&o.noPublish, "no-publish", false, "write the file locally and skip the upload")
	fs.BoolVar(&o.list, "list", false, "print every download link in the feed and exit")
	fs.BoolVar(&o.version, "version", false, "print version information and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return &o, nil
}

// apply overlays the flags that were given onto cfg
func (o *options) apply(cfg *config.Config) {
	if o.feedURL != "" {
		cfg.Feed.URL = o.feedURL
	}
	if o.prefix != "" {
		cfg.Feed.Prefix = o.prefix
	}
	if o.archive != "" {
		cfg.Archive.LocalPath = o.archive
	}
	if o.persistArchive {
		cfg.Archive.Persist = true
	}
	if o.format != "" {
		cfg.Output.Format = o.format
	}
	if o.out != "" {
		cfg.Output.FileName = o.out
		if filepath.Dir(o.out) != "." {
			if abs, err := filepath.Abs(o.out); err == nil {
				cfg.Output.FileName = abs
			}
		}
	}
	if o.bucket != "" {
		cfg.Storage.Bucket = o.bucket
	}
	if o.noPublish {
		cfg.Storage.Backend = storage.BackendNone
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return apperrors.ExitOK
		}
		fmt.Fprintf(stderr, "firds: %v\n", err)
		return apperrors.ExitConfig
	}
	if opts.version {
		fmt.Fprintln(stdout, contracts.GetFullVersionString())
		return apperrors.ExitOK
	}

	cfg, err := config.Load(opts.configFile, opts.apply)
	if err != nil {
		fmt.Fprintf(stderr, "firds: %v\n", err)
		return apperrors.ExitConfig
	}

	paths, err := config.GetPaths(cfg.Paths.DataDir)
	if err != nil {
		fmt.Fprintf(stderr, "firds: %v\n", err)
		return apperrors.ExitConfig
	}
	if err := paths.EnsureDirectories(); err != nil {
		fmt.Fprintf(stderr, "firds: %v\n", err)
		return apperrors.ExitOutput
	}
	if cfg.Logging.FilePath == "" {
		cfg.Logging.FilePath = paths.GetLogPath("firds.log")
	}

	// Logs go to stderr so --list output stays machine readable.
	logger, closeLog, err := infrastructure.NewLogger(cfg.Logging, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "firds: %v\n", err)
		return apperrors.ExitConfig
	}
	defer closeLog()

	runID := infrastructure.GenerateRunID()
	ctx = infrastructure.WithRunID(ctx, runID)
	if cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RunTimeout)
		defer cancel()
	}

	tel, err := infrastructure.InitializeTelemetry(ctx, cfg.Telemetry, contracts.Version, stderr, logger)
	if err != nil {
		logger.ErrorContext(ctx, "telemetry_init_failed", slog.String("error", err.Error()))
		return apperrors.ExitConfig
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tel.WriteTextfile(); err != nil {
			logger.WarnContext(shutdownCtx, "metrics_textfile_failed", slog.String("error", err.Error()))
		}
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.WarnContext(shutdownCtx, "telemetry_shutdown_failed", slog.String("error", err.Error()))
		}
	}()

	client := fetch.NewClient(cfg.HTTP, logger,
		fetch.WithTracerProvider(tel.TracerProvider),
		fetch.WithMeterProvider(tel.MeterProvider))

	if opts.list {
		return listLinks(ctx, client, cfg.Feed.URL, stdout, stderr, logger)
	}

	logger.InfoContext(ctx, "starting",
		slog.String("version", contracts.Version),
		slog.String("feed_url", cfg.Feed.URL),
		slog.String("prefix", cfg.Feed.Prefix),
		slog.String("format", cfg.Output.Format),
		slog.String("backend", cfg.Storage.Backend),
		paths.LogAttrs())

	publisher, err := storage.New(ctx, cfg.Storage, logger)
	if err != nil {
		return fail(ctx, logger, stderr, err)
	}
	if c, ok := publisher.(io.Closer); ok {
		defer c.Close()
	}

	manager, err := operations.NewPipeline(cfg, paths, operations.Dependencies{
		Client:    client,
		Publisher: publisher,
		Telemetry: tel,
		Logger:    logger,
	})
	if err != nil {
		return fail(ctx, logger, stderr, err)
	}

	state, err := manager.Execute(ctx, runID)
	if err != nil {
		return fail(ctx, logger, stderr, err)
	}

	logger.InfoContext(ctx, "run_summary",
		slog.String("download_link", state.GetString(operations.ContextKeyDownloadLink)),
		slog.String("output", state.GetString(operations.ContextKeyOutputPath)),
		slog.Int("rows", state.GetInt(operations.ContextKeyRowCount)),
		slog.Int("skipped", state.GetInt(operations.ContextKeySkipped)),
		slog.Duration("duration", state.Duration()))
	return apperrors.ExitOK
}

func listLinks(ctx context.Context, client fetch.Getter, feedURL string, stdout, stderr io.Writer, logger *slog.Logger) int {
	links, err := feed.NewLocator(client, logger).List(ctx, feedURL)
	if err != nil {
		return fail(ctx, logger, stderr, err)
	}
	for _, link := range links {
		fmt.Fprintln(stdout, link)
	}
	return apperrors.ExitOK
}

// fail reports err and returns its exit code
func fail(ctx context.Context, logger *slog.Logger, w io.Writer, err error) int {
	code := apperrors.ExitCode(err)
	logger.ErrorContext(ctx, "run_failed",
		slog.String("error_type", string(apperrors.TypeOf(err))),
		slog.Int("exit_code", code),
		slog.String("error", err.Error()))
	fmt.Fprintf(w, "firds: %s: %v\n", apperrors.Summary(err), err)
	return code
}
