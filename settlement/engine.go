package settlement

import (
	"context"
	"log/slog"
	"time"

	"github.com/warp/settlement-engine/generic"
)

// Dependencies are the external collaborators of the engine.
type Dependencies struct {
	Employees   generic.EmployeeDirectory
	Projects    ProjectDirectory
	WorkLogs    generic.WorkLogStore
	Attendance  generic.AttendanceStore
	Leave       generic.LeaveStore
	Settlements SettlementStore
	Notifier    generic.Notifier
}

// Options tune failure handling and concurrency.
//
// The zero value isolates failures per employee: ComputeSummaries reports
// failed employees in Batch.Failures next to the others' summaries, and
// Finalize records a failure and moves on to the next summary. Set Strict to
// abort the whole computation on the first failure, and AbortOnFailure to stop
// finalizing at the first failure with the remaining employees NotAttempted.
// A zero Concurrency processes employees one at a time.
type Options struct {
	Strict           bool
	AbortOnFailure   bool
	Concurrency      int
	LeaveCounting    LeaveCounting
	RetrievalTimeout time.Duration
	Logger           *slog.Logger
}

// Engine exposes the two operations of the review workflow.
type Engine struct {
	builder   *Builder
	finalizer *Finalizer
}

func NewEngine(deps Dependencies, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "settlement")

	return &Engine{
		builder: &Builder{
			Employees: deps.Employees,
			Projects:  deps.Projects,
			Aggregator: &Aggregator{
				WorkLogs:         deps.WorkLogs,
				Attendance:       deps.Attendance,
				Leave:            deps.Leave,
				LeaveCounting:    opts.LeaveCounting,
				RetrievalTimeout: opts.RetrievalTimeout,
				Logger:           logger,
			},
			Strict:      opts.Strict,
			Concurrency: opts.Concurrency,
			Logger:      logger,
		},
		finalizer: &Finalizer{
			Settlements:    deps.Settlements,
			Notifier:       deps.Notifier,
			AbortOnFailure: opts.AbortOnFailure,
			Logger:         logger,
		},
	}
}

// ComputeSummaries returns the review list for [start, end].
func (e *Engine) ComputeSummaries(ctx context.Context, start, end generic.TimePoint) (*Batch, error) {
	return e.builder.Compute(ctx, start, end)
}

// Finalize commits reviewed summaries. See Finalizer.Finalize.
func (e *Engine) Finalize(ctx context.Context, summaries []Summary) (*FinalizeResult, error) {
	return e.finalizer.Finalize(ctx, summaries)
}
