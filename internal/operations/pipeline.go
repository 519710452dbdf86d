package operations

import (
	"log/slog"
	"path/filepath"

	"firdscli/internal/archive"
	"firdscli/internal/config"
	apperrors "firdscli/internal/errors"
	"firdscli/internal/exporter"
	"firdscli/internal/feed"
	"firdscli/internal/fetch"
	"firdscli/internal/firds"
	"firdscli/internal/infrastructure"
	"firdscli/internal/storage"
	"firdscli/internal/validation"
)

// Dependencies are the collaborators built by the caller
type Dependencies struct {
	Client    fetch.Getter
	Publisher storage.Publisher
	Telemetry *infrastructure.Telemetry
	Logger    *slog.Logger
}

// NewPipeline builds the locate, resolve, extract and publish steps from
// cfg and returns the manager running them. A local archive and the output
// directory are checked first.
func NewPipeline(cfg *config.Config, paths *config.Paths, deps Dependencies) (*Manager, error) {
	format, err := exporter.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, apperrors.NewConfigError("invalid output format", err)
	}

	outputPath := OutputPath(cfg.Output.FileName, format, paths)

	validator := validation.NewFileValidator(deps.Logger.With(slog.String("component", "validation")))
	if cfg.Archive.LocalPath != "" {
		if err := validator.ValidateArchiveFile(cfg.Archive.LocalPath); err != nil {
			return nil, err
		}
	}
	if err := validator.ValidateOutputDirectory(filepath.Dir(outputPath)); err != nil {
		return nil, err
	}

	var metrics *infrastructure.PipelineMetrics
	if deps.Telemetry != nil {
		metrics = deps.Telemetry.Metrics
	}

	var archiveOpts []archive.Option
	if cfg.Archive.Name != "" {
		archiveOpts = append(archiveOpts, archive.WithArchiveName(cfg.Archive.Name))
	}

	steps := []Step{
		NewLocateStep(
			feed.NewLocator(deps.Client, deps.Logger.With(slog.String("component", "feed"))),
			cfg.Feed.URL, cfg.Feed.Prefix, cfg.Archive.LocalPath),
		NewResolveStep(
			archive.NewResolver(deps.Client, deps.Logger, archiveOpts...),
			paths.DownloadsDir, cfg.Archive.Persist, cfg.Archive.LocalPath),
		NewExtractStep(
			exporter.New(format, deps.Logger),
			outputPath,
			metrics, deps.Logger,
			firds.WithSkipMalformed(cfg.Extract.OnMalformed == "skip"),
			firds.WithProgressInterval(cfg.Extract.ProgressInterval)),
		NewPublishStep(deps.Publisher, cfg.Storage.Bucket),
	}

	return NewManager(deps.Logger, deps.Telemetry, steps...), nil
}

// OutputPath places name, with the format's extension, in the reports
// directory unless it is absolute
func OutputPath(name string, format exporter.Format, paths *config.Paths) string {
	name = format.FileName(name)
	if filepath.IsAbs(name) {
		return name
	}
	return paths.GetReportPath(name)
}
