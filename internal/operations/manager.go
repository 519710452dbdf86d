package operations

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	apperrors "firdscli/internal/errors"
	"firdscli/internal/infrastructure"
)

// Manager runs steps strictly in order and stops at the first failure
type Manager struct {
	steps   []Step
	tel     *infrastructure.Telemetry
	tracer  trace.Tracer
	metrics *infrastructure.PipelineMetrics
	logger  *slog.Logger
}

// NewManager creates a manager for steps. tel may be nil, in which case no
// spans or metrics are recorded.
func NewManager(logger *slog.Logger, tel *infrastructure.Telemetry, steps ...Step) *Manager {
	m := &Manager{
		steps:  steps,
		tracer: noop.NewTracerProvider().Tracer(""),
		logger: logger.With(slog.String("component", "operations")),
	}
	if tel != nil {
		m.tel = tel
		m.tracer = tel.Tracer
		m.metrics = tel.Metrics
	}
	return m
}

// Steps returns the registered steps in execution order
func (m *Manager) Steps() []Step {
	return m.steps
}

// Execute runs every step once. The returned state is complete even when
// the run fails; the error is the failing step's, wrapped in a *StepError.
func (m *Manager) Execute(ctx context.Context, runID string) (*OperationState, error) {
	state := NewOperationState(runID)
	for _, step := range m.steps {
		state.AddStep(NewStepState(step.ID(), step.Name()))
	}

	ctx, span := m.tracer.Start(ctx, "firds.run", trace.WithAttributes(attribute.String("run.id", runID)))
	defer span.End()

	state.Start()
	m.logger.InfoContext(ctx, "run_started", slog.Int("step_count", len(m.steps)))

	err := m.executeSequential(ctx, state)
	switch {
	case err == nil:
		state.Complete()
		m.logger.InfoContext(ctx, "run_completed", slog.Duration("duration", state.Duration()))
	case apperrors.Is(err, apperrors.ErrTypeCancelled):
		state.Cancel(err)
		span.SetStatus(codes.Error, err.Error())
	default:
		state.Fail(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return state, err
}

func (m *Manager) executeSequential(ctx context.Context, state *OperationState) error {
	for i, step := range m.steps {
		stepState := state.GetStep(step.ID())

		if err := ctx.Err(); err != nil {
			m.logger.WarnContext(ctx, "run_cancelled", slog.String("step", step.ID()))
			m.skipRemaining(state, i, "run cancelled")
			return WrapError(apperrors.NewCancelledError("run cancelled", err), step.ID())
		}

		if s, ok := step.(Skipper); ok {
			if reason := s.SkipReason(state); reason != "" {
				stepState.Skip(reason)
				m.logger.InfoContext(ctx, "step_skipped",
					slog.String("step", step.ID()),
					slog.String("reason", reason))
				continue
			}
		}

		m.logger.InfoContext(ctx, "executing_step",
			slog.String("step", step.ID()),
			slog.Int("step_number", i+1),
			slog.Int("total_steps", len(m.steps)))

		if err := m.executeStep(ctx, state, stepState, step); err != nil {
			m.skipRemaining(state, i+1, fmt.Sprintf("step %s failed", step.ID()))
			return WrapError(err, step.ID())
		}
	}
	return nil
}

func (m *Manager) executeStep(ctx context.Context, state *OperationState, stepState *StepState, step Step) error {
	ctx, span := m.startStep(ctx, step)
	defer span.End()

	stepState.Start()
	start := time.Now()
	err := step.Execute(ctx, state)
	duration := time.Since(start)

	if err != nil {
		errType := apperrors.TypeOf(err)
		stepState.Fail(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.metrics.RecordStep(ctx, step.ID(), duration, string(errType))
		m.logger.ErrorContext(ctx, "step_failed",
			slog.String("step", step.ID()),
			slog.Duration("duration", duration),
			slog.String("error_type", string(errType)),
			slog.String("error", err.Error()))
		return err
	}

	stepState.Complete()
	m.metrics.RecordStep(ctx, step.ID(), duration, "")
	m.logger.InfoContext(ctx, "step_completed",
		slog.String("step", step.ID()),
		slog.Duration("duration", duration))
	return nil
}

func (m *Manager) startStep(ctx context.Context, step Step) (context.Context, trace.Span) {
	if m.tel != nil {
		return m.tel.StartStep(ctx, step.ID())
	}
	return m.tracer.Start(ctx, "firds."+step.ID())
}

func (m *Manager) skipRemaining(state *OperationState, from int, reason string) {
	for _, step := range m.steps[from:] {
		if s := state.GetStep(step.ID()); s != nil && s.GetStatus() == StepStatusPending {
			s.Skip(reason)
		}
	}
}
