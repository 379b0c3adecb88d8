// Package solverdriver configures and invokes the underlying MIP solver
// (spec §4.2), classifies its termination status into the taxonomy of
// spec §7, and extracts the flattened assignment list.
package solverdriver

import (
	"sort"
	"time"

	"github.com/nextmv-io/sdk/mip"

	"github.com/zar4za/schedule/internal/envelope"
	buildmodel "github.com/zar4za/schedule/internal/model"
	"github.com/zar4za/schedule/internal/scheduleerr"
)

// Options configures one solve invocation. Workers is accepted for parity
// with spec §4.2's "parallel search workers (default 8)" but the
// solver-agnostic mip.SolveOptions surface this driver targets (spec §9:
// "the Model Builder should target a solver-agnostic interface") does not
// expose a generic thread-count knob the way OR-Tools' CpSolver does;
// Workers is kept on Options for callers and future HiGHS-specific tuning
// but is not currently forwarded to the solver. Likewise spec §4.2's
// "progress logging enabled for diagnostics" (the original's
// log_search_progress = True) has no equivalent field on mip.SolveOptions;
// solve progress is not currently surfaced beyond the single Info line
// Process logs after Solve returns.
type Options struct {
	TimeLimit time.Duration
	Workers   int
}

// DefaultOptions matches spec §4.2's defaults.
func DefaultOptions() Options {
	return Options{
		TimeLimit: 60 * time.Second,
		Workers:   8,
	}
}

// Outcome is the result of one solve: either a flattened assignment list
// on success, or a classified error.
type Outcome struct {
	Assignments []envelope.Assignment
	SolveTime   float64
}

// Solve builds the model for req, invokes the solver under opts, and
// returns the flattened assignment list or a *scheduleerr.Error carrying
// one of KindInfeasible, KindTimeout, or KindSolver. A request the model
// builder rejects (no doctors) returns its KindValidation error unchanged.
func Solve(req envelope.Request, opts Options) (Outcome, error) {
	built, err := buildmodel.Build(req)
	if err != nil {
		return Outcome{}, err
	}

	solver, err := mip.NewSolver(mip.Highs, built.Model)
	if err != nil {
		return Outcome{}, scheduleerr.Wrap(scheduleerr.KindSolver, "constructing solver", err)
	}

	solveOptions := mip.SolveOptions{}
	solveOptions.Duration = opts.TimeLimit

	start := time.Now()
	solution, err := solver.Solve(solveOptions)
	elapsed := time.Since(start)
	if err != nil {
		return Outcome{}, scheduleerr.Wrap(scheduleerr.KindSolver, "solve invocation failed", err)
	}

	// mip.Solution only distinguishes "has a usable solution" (Optimal or
	// SubOptimal) from "doesn't". The solver-agnostic interface hides the
	// raw backend status (OPTIMAL/INFEASIBLE/UNKNOWN in the original
	// OR-Tools model), so a solve that produced nothing is classified as
	// a timeout when it ran to (approximately) the full time budget, and
	// as infeasible otherwise — spec §9's open question, resolved here in
	// favor of the more informative of the two available signals.
	if !solution.IsOptimal() && !solution.IsSubOptimal() {
		if elapsed >= opts.TimeLimit-250*time.Millisecond {
			return Outcome{}, scheduleerr.New(scheduleerr.KindTimeout, "solver reached its time limit without a feasible solution")
		}
		return Outcome{}, scheduleerr.New(scheduleerr.KindInfeasible, "no assignment satisfies the hard constraints")
	}

	assignments := extract(built, solution)
	return Outcome{Assignments: assignments, SolveTime: elapsed.Seconds()}, nil
}

// extract flattens the positive cells of the assignment tensor in stable
// lexicographic (i,j,k) order, per spec §4.2.
func extract(built buildmodel.Built, solution mip.Solution) []envelope.Assignment {
	assignments := make([]envelope.Assignment, 0, len(built.Cells))
	for _, c := range built.Cells {
		if solution.Value(built.X.Get(c)) >= 0.9 {
			assignments = append(assignments, envelope.Assignment{
				StaffID: c.Doctor,
				Day:     c.Day,
				Shift:   c.Shift,
			})
		}
	}
	sort.Slice(assignments, func(a, b int) bool {
		if assignments[a].StaffID != assignments[b].StaffID {
			return assignments[a].StaffID < assignments[b].StaffID
		}
		if assignments[a].Day != assignments[b].Day {
			return assignments[a].Day < assignments[b].Day
		}
		return assignments[a].Shift < assignments[b].Shift
	})
	return assignments
}
