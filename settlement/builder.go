package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/warp/settlement-engine/generic"
)

// =============================================================================
// BUILDER - All eligible employees, one period
// =============================================================================

// Builder runs the Aggregator over every eligible employee and orders the
// summaries for review.
type Builder struct {
	Employees  generic.EmployeeDirectory
	Projects   ProjectDirectory
	Aggregator *Aggregator

	// Filter narrows the eligible set further. Nil keeps everyone.
	Filter func(generic.Employee) bool

	// Strict aborts the whole batch on the first employee failure and
	// returns no summaries. The default isolates failures per employee.
	Strict bool

	// Concurrency is the number of employee pipelines in flight. Values
	// below 1 mean one at a time.
	Concurrency int

	Logger *slog.Logger
}

type outcome struct {
	summary *Summary
	failure *EmployeeFailure
}

// Compute builds the review list for [start, end]. An empty list is a normal
// outcome. The error is non-nil only for invalid input, a failed directory
// read, cancellation, or any employee failure in Strict mode.
func (b *Builder) Compute(ctx context.Context, start, end generic.TimePoint) (*Batch, error) {
	period, err := generic.NewPeriod(start, end)
	if err != nil {
		return nil, err
	}
	log := b.logger().With("period", period.String())

	employees, err := b.Employees.ListEligible(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible employees: %w", err)
	}
	if b.Filter != nil {
		kept := employees[:0:0]
		for _, e := range employees {
			if b.Filter(e) {
				kept = append(kept, e)
			}
		}
		employees = kept
	}

	catalog, err := LoadCatalog(ctx, b.Projects)
	if err != nil {
		return nil, err
	}

	outcomes := make([]outcome, len(employees))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(b.Concurrency, 1))
	for i, emp := range employees {
		i, emp := i, emp
		g.Go(func() error {
			// Set once a strict run has failed or the caller gave up.
			if err := gctx.Err(); err != nil {
				return err
			}
			summary, err := b.Aggregator.Aggregate(gctx, catalog, emp, period)
			if err != nil {
				if b.Strict {
					return err
				}
				outcomes[i].failure = &EmployeeFailure{
					EmployeeID:   emp.ID,
					EmployeeName: emp.Name,
					Stage:        StageAggregate,
					Err:          err,
				}
				log.Warn("employee aggregation failed", "employee_id", emp.ID, "error", err)
				return nil
			}
			outcomes[i].summary = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Error("settlement computation aborted", "error", err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	batch := &Batch{Period: period, Summaries: []Summary{}}
	for _, o := range outcomes {
		switch {
		case o.failure != nil:
			batch.Failures = append(batch.Failures, o.failure)
		case o.summary != nil:
			batch.Summaries = append(batch.Summaries, *o.summary)
		}
	}
	SortSummaries(batch.Summaries)

	log.Info("settlement summaries computed",
		"employees", len(employees),
		"summaries", len(batch.Summaries),
		"failures", len(batch.Failures))
	return batch, nil
}

// SortSummaries orders by grand total descending. Ties fall back to name and
// ID so repeated runs produce the same order.
func SortSummaries(summaries []Summary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if c := a.GrandTotal.Cmp(b.GrandTotal); c != 0 {
			return c > 0
		}
		if a.Employee.Name != b.Employee.Name {
			return a.Employee.Name < b.Employee.Name
		}
		return a.Employee.ID < b.Employee.ID
	})
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}
