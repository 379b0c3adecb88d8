// Package model builds the MIP decision variables, hard constraints, and
// weighted objective described in spec §4.1, translating a validated
// envelope.Request into a github.com/nextmv-io/sdk/mip.Model. It mirrors
// the constraint structure of the original OR-Tools CP-SAT model in
// _examples/original_source/schedsolver/solver.py, adapted to the
// nextmv-io/sdk/mip solver-agnostic API the way
// _examples/nextmv-io-community-apps/shift-scheduling/main.go builds its
// own coverage/rest/fairness model.
package model

import (
	"fmt"

	"github.com/nextmv-io/sdk/mip"
	"github.com/nextmv-io/sdk/model"

	"github.com/zar4za/schedule/internal/envelope"
	"github.com/zar4za/schedule/internal/scheduleerr"
)

// cell identifies one (doctor, day, shift) assignment variable. It
// implements the single-slice-of-identified-keys shape
// github.com/nextmv-io/sdk/model.MultiMap expects (see ID below), the
// same pattern shift-scheduling/main.go uses for its "assignment" key
// type — spec §9's note that dict-keyed tuples become "hash maps of
// composite keys" in the target language.
type cell struct {
	Doctor string
	Day    int
	Shift  string
}

// ID gives cell a stable, unique string identity for model.MultiMap.
func (c cell) ID() string {
	return fmt.Sprintf("%s|%d|%s", c.Doctor, c.Day, c.Shift)
}

// reqCell identifies one (day, shift) requirement slot.
type reqCell struct {
	Day   int
	Shift string
}

func (c reqCell) ID() string {
	return fmt.Sprintf("%d|%s", c.Day, c.Shift)
}

// Built holds the constructed model plus the variable handles the solver
// driver needs to extract a solution.
type Built struct {
	Model   mip.Model
	X       model.MultiMap[mip.Bool, cell]
	U       model.MultiMap[mip.Int, reqCell]
	H       map[string]mip.Int
	D       map[string]mip.Int
	Cells   []cell
	ReqKeys []reqCell
	HAvg    int
}

// Build translates a validated request into decision variables, hard
// constraints (spec §4.1 rules 1-5), and the weighted objective. Callers
// must have already run req.Validate(); Build only re-checks the one
// precondition that's load-bearing for variable domains (a non-empty
// doctor set, spec §4.1's "Empty doctors" edge case).
func Build(req envelope.Request) (Built, error) {
	if len(req.Doctors) == 0 {
		return Built{}, scheduleerr.New(scheduleerr.KindValidation, "doctors must be non-empty")
	}

	cells := make([]cell, 0, len(req.Doctors)*len(req.Days)*len(req.Shifts))
	for _, i := range req.Doctors {
		for _, j := range req.Days {
			for _, k := range req.Shifts {
				cells = append(cells, cell{Doctor: i, Day: j, Shift: k})
			}
		}
	}

	reqKeys := make([]reqCell, 0, len(req.Days)*len(req.Shifts))
	for _, j := range req.Days {
		for _, k := range req.Shifts {
			reqKeys = append(reqKeys, reqCell{Day: j, Shift: k})
		}
	}

	hSum := 0
	for _, j := range req.Days {
		for _, k := range req.Shifts {
			hSum += req.Requirement(j, k) * req.ShiftDurations[k]
		}
	}
	hAvg := hSum / len(req.Doctors)

	m := mip.NewModel()
	m.Objective().SetMinimize()

	x := model.NewMultiMap(func(...cell) mip.Bool {
		return m.NewBool()
	}, cells)

	u := model.NewMultiMap(func(keys ...reqCell) mip.Int {
		rc := keys[0]
		return m.NewInt(0, int64(req.Requirement(rc.Day, rc.Shift)))
	}, reqKeys)

	h := make(map[string]mip.Int, len(req.Doctors))
	d := make(map[string]mip.Int, len(req.Doctors))
	for _, i := range req.Doctors {
		h[i] = m.NewInt(0, int64(req.MaxWeeklyHours[i]))
		d[i] = m.NewInt(0, int64(hAvg))
	}

	// (1) Coverage with slack: sum_i x[i,j,k] + u[j,k] >= r[j,k].
	for _, rc := range reqKeys {
		need := req.Requirement(rc.Day, rc.Shift)
		c := m.NewConstraint(mip.GreaterThanOrEqual, float64(need))
		c.NewTerm(1.0, u.Get(rc))
		for _, i := range req.Doctors {
			c.NewTerm(1.0, x.Get(cell{Doctor: i, Day: rc.Day, Shift: rc.Shift}))
		}
	}

	// (2) Availability: x[i,j,k] <= a[i,j,k], enforced by fixing
	// unavailable cells to 0 rather than adding a trivial <= constraint
	// per cell.
	for _, c := range cells {
		if !req.Available(c.Doctor, c.Day, c.Shift) {
			fix := m.NewConstraint(mip.Equal, 0.0)
			fix.NewTerm(1.0, x.Get(c))
		}
	}

	// (3) Hours: h[i] = sum_{j,k} duration[k]*x[i,j,k], h[i] <= max.
	// The upper bound is already h[i]'s domain; the equality ties h[i]
	// to the assignment sum.
	for _, i := range req.Doctors {
		eq := m.NewConstraint(mip.Equal, 0.0)
		eq.NewTerm(1.0, h[i])
		for _, j := range req.Days {
			for _, k := range req.Shifts {
				dur := req.ShiftDurations[k]
				eq.NewTerm(-float64(dur), x.Get(cell{Doctor: i, Day: j, Shift: k}))
			}
		}
	}

	// (4) Rest: forbid any two shift-day instances assigned to the same
	// doctor whose wall-clock intervals are separated by less than
	// min_rest_hours. Generalizes shift-scheduling/main.go's
	// evening/morning-only special case to every shift-kind pair, per
	// spec §9's open question.
	minRest := req.MinRest()
	pairs := restPairs(req, minRest)
	for _, i := range req.Doctors {
		for _, p := range pairs {
			rest := m.NewConstraint(mip.LessThanOrEqual, 1.0)
			rest.NewTerm(1.0, x.Get(cell{Doctor: i, Day: p.j1, Shift: p.k1}))
			rest.NewTerm(1.0, x.Get(cell{Doctor: i, Day: p.j2, Shift: p.k2}))
		}
	}

	// (5) Deviation linearization: h[i]-H_avg <= d[i], H_avg-h[i] <= d[i].
	for _, i := range req.Doctors {
		upper := m.NewConstraint(mip.LessThanOrEqual, float64(hAvg))
		upper.NewTerm(1.0, h[i])
		upper.NewTerm(-1.0, d[i])

		lower := m.NewConstraint(mip.LessThanOrEqual, float64(-hAvg))
		lower.NewTerm(-1.0, h[i])
		lower.NewTerm(-1.0, d[i])
	}

	// Objective: alpha*sum(u) + beta*sum(d) - gamma*sum(p*x).
	alpha, beta, gamma := req.Weights()
	for _, rc := range reqKeys {
		m.Objective().NewTerm(float64(alpha), u.Get(rc))
	}
	for _, i := range req.Doctors {
		m.Objective().NewTerm(float64(beta), d[i])
	}
	for _, c := range cells {
		w := req.Preference(c.Doctor, c.Day, c.Shift)
		if w != 0 {
			m.Objective().NewTerm(-float64(gamma*w), x.Get(c))
		}
	}

	return Built{
		Model:   m,
		X:       x,
		U:       u,
		H:       h,
		D:       d,
		Cells:   cells,
		ReqKeys: reqKeys,
		HAvg:    hAvg,
	}, nil
}

type restPair struct {
	j1, j2 int
	k1, k2 string
}

// restPairs enumerates every pair of shift-day instances whose wall-clock
// windows (envelope.Request.Window) are separated by less than minRest
// hours, covering same-day pairs and cross-day pairs alike — spec §4.1
// rule 4 and §9's generalization note.
func restPairs(req envelope.Request, minRest int) []restPair {
	type instance struct {
		day   int
		shift string
		start float64
		end   float64
	}

	instances := make([]instance, 0, len(req.Days)*len(req.Shifts))
	for _, j := range req.Days {
		for _, k := range req.Shifts {
			w := req.Window(k, req.ShiftDurations[k])
			instances = append(instances, instance{
				day:   j,
				shift: k,
				start: float64(j)*24 + w.Start,
				end:   float64(j)*24 + w.End,
			})
		}
	}

	var pairs []restPair
	for a := 0; a < len(instances); a++ {
		for b := a + 1; b < len(instances); b++ {
			i1, i2 := instances[a], instances[b]
			if i1.day == i2.day && i1.shift == i2.shift {
				continue
			}
			gap := gapHours(i1.start, i1.end, i2.start, i2.end)
			if gap < float64(minRest) {
				pairs = append(pairs, restPair{j1: i1.day, k1: i1.shift, j2: i2.day, k2: i2.shift})
			}
		}
	}
	return pairs
}

// gapHours returns the wall-clock gap between two half-open intervals, or
// a negative number when they overlap.
func gapHours(s1, e1, s2, e2 float64) float64 {
	if e1 <= s2 {
		return s2 - e1
	}
	if e2 <= s1 {
		return s1 - e2
	}
	return -1
}
