package operations

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"firdscli/internal/archive"
	apperrors "firdscli/internal/errors"
	"firdscli/internal/exporter"
	"firdscli/internal/feed"
	"firdscli/internal/firds"
	"firdscli/internal/infrastructure"
	"firdscli/internal/storage"
)

// Step IDs
const (
	StepIDLocate  = "locate"
	StepIDResolve = "resolve"
	StepIDExtract = "extract"
	StepIDPublish = "publish"
)

// LocateStep finds the data package link in the feed
type LocateStep struct {
	BaseStep
	locator      *feed.Locator
	feedURL      string
	prefix       string
	localArchive string
}

// NewLocateStep creates the locate step. It is skipped when localArchive is
// set.
func NewLocateStep(locator *feed.Locator, feedURL, prefix, localArchive string) *LocateStep {
	return &LocateStep{
		BaseStep:     NewBaseStep(StepIDLocate, "Locate data package"),
		locator:      locator,
		feedURL:      feedURL,
		prefix:       prefix,
		localArchive: localArchive,
	}
}

// SkipReason implements Skipper
func (s *LocateStep) SkipReason(*OperationState) string {
	if s.localArchive != "" {
		return "using local archive " + s.localArchive
	}
	return ""
}

// Execute implements Step
func (s *LocateStep) Execute(ctx context.Context, state *OperationState) error {
	link, err := s.locator.Fetch(ctx, s.feedURL, feed.FilenamePrefix(s.prefix))
	if err != nil {
		return err
	}
	state.SetContext(ContextKeyDownloadLink, link)
	state.GetStep(s.ID()).SetMetadata("file", feed.Filename(link))
	return nil
}

// ResolveStep downloads the package and unpacks its document
type ResolveStep struct {
	BaseStep
	resolver     *archive.Resolver
	destDir      string
	persist      bool
	localArchive string
}

// NewResolveStep creates the resolve step
func NewResolveStep(resolver *archive.Resolver, destDir string, persist bool, localArchive string) *ResolveStep {
	return &ResolveStep{
		BaseStep:     NewBaseStep(StepIDResolve, "Download and unpack package"),
		resolver:     resolver,
		destDir:      destDir,
		persist:      persist,
		localArchive: localArchive,
	}
}

// Execute implements Step
func (s *ResolveStep) Execute(ctx context.Context, state *OperationState) error {
	var (
		path string
		err  error
	)
	if s.localArchive != "" {
		path, err = s.resolver.ResolveFile(ctx, s.localArchive, s.destDir)
	} else {
		link := state.GetString(ContextKeyDownloadLink)
		if link == "" {
			return apperrors.NewNotFoundError("download link", nil)
		}
		path, err = s.resolver.Resolve(ctx, link, s.destDir, s.persist)
	}
	if err != nil {
		return err
	}
	state.SetContext(ContextKeyDocumentPath, path)
	return nil
}

// ExtractStep streams the document's records into the output file
type ExtractStep struct {
	BaseStep
	exporter   *exporter.Exporter
	outputPath string
	options    []firds.Option
	metrics    *infrastructure.PipelineMetrics
	logger     *slog.Logger
}

// NewExtractStep creates the extract step writing to outputPath
func NewExtractStep(exp *exporter.Exporter, outputPath string, metrics *infrastructure.PipelineMetrics, logger *slog.Logger, opts ...firds.Option) *ExtractStep {
	return &ExtractStep{
		BaseStep:   NewBaseStep(StepIDExtract, "Extract instruments"),
		exporter:   exp,
		outputPath: outputPath,
		options:    opts,
		metrics:    metrics,
		logger:     logger.With(slog.String("component", "extractor")),
	}
}

// Execute implements Step
func (s *ExtractStep) Execute(ctx context.Context, state *OperationState) error {
	docPath := state.GetString(ContextKeyDocumentPath)

	// The extractor logs without a context, so the run id is attached here.
	opts := append([]firds.Option{firds.WithLogger(s.logger.With(slog.String("run_id", state.ID)))}, s.options...)
	coll, err := firds.ExtractRoot(docPath, opts...)
	if err != nil {
		return err
	}
	defer coll.Close()

	n, err := s.exporter.WriteAll(ctx, coll.Records(), s.outputPath)

	stats := coll.Stats()
	s.metrics.RecordRecords(ctx, int64(stats.Yielded), int64(stats.Skipped))
	infrastructure.SetSpanAttributes(ctx,
		attribute.Int("records.total", stats.Records),
		attribute.Int("records.skipped", stats.Skipped))

	step := state.GetStep(s.ID())
	step.SetMetadata("rows", n)
	step.SetMetadata("skipped", stats.Skipped)
	state.SetContext(ContextKeyRowCount, n)
	state.SetContext(ContextKeySkipped, stats.Skipped)

	if err != nil {
		return err
	}
	state.SetContext(ContextKeyOutputPath, s.outputPath)
	return nil
}

// PublishStep uploads the output file
type PublishStep struct {
	BaseStep
	publisher storage.Publisher
	bucket    string
}

// NewPublishStep creates the publish step
func NewPublishStep(publisher storage.Publisher, bucket string) *PublishStep {
	return &PublishStep{
		BaseStep:  NewBaseStep(StepIDPublish, "Publish to storage"),
		publisher: publisher,
		bucket:    bucket,
	}
}

// Execute implements Step
func (s *PublishStep) Execute(ctx context.Context, state *OperationState) error {
	return s.publisher.Publish(ctx, state.GetString(ContextKeyOutputPath), s.bucket)
}
