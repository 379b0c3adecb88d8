// Package envelope defines the JSON request/result shapes the stream
// worker reads from and writes to the Redis streams (spec §4.3) and
// validates inbound requests before they reach the model builder.
package envelope

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zar4za/schedule/internal/scheduleerr"
)

// Window is a wall-clock offset, in hours from the start of a day, that a
// shift kind occupies. End may exceed 24 for a shift that crosses into the
// next calendar day (e.g. a night shift starting at 22:00 and ending at
// 06:00 is Window{Start: 22, End: 30}). Supplementing spec.md's DESIGN
// NOTES open question ("the exact shift-kind time windows must be
// specified in input if labels alone are insufficient"), this is the
// explicit field that resolves it.
type Window struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// defaultWindows covers the four shift labels spec.md's examples name
// (morning, day, evening, night) with a conventional hospital roster
// layout. Used only when a request doesn't supply ShiftWindows for a
// label it references.
var defaultWindows = map[string]Window{
	"morning": {Start: 6, End: 14},
	"day":     {Start: 8, End: 16},
	"evening": {Start: 14, End: 22},
	"night":   {Start: 22, End: 30},
}

// Request is the inbound JSON envelope described in spec §4.3. Composite
// keys ("<j>,<k>" and "<i>,<j>,<k>") are used for the sparse maps, matching
// the encoding the original Python implementation's caller would produce
// when serializing dict-keyed-by-tuple structures to JSON.
type Request struct {
	RequestID      string            `json:"request_id"`
	Doctors        []string          `json:"doctors"`
	Days           []int             `json:"days"`
	Shifts         []string          `json:"shifts"`
	Requirements   map[string]int    `json:"requirements"`
	Availability   map[string]int    `json:"availability"`
	ShiftDurations map[string]int    `json:"shift_durations"`
	MaxWeeklyHours map[string]int    `json:"max_weekly_hours"`
	MinRestHours   *int              `json:"min_rest_hours,omitempty"`
	Preferences    map[string]int    `json:"preferences,omitempty"`
	ShiftWindows   map[string]Window `json:"shift_windows,omitempty"`
	Alpha          *int              `json:"alpha,omitempty"`
	Beta           *int              `json:"beta,omitempty"`
	Gamma          *int              `json:"gamma,omitempty"`
}

// Assignment is one positive cell of the extracted schedule tensor.
type Assignment struct {
	StaffID string `json:"staff_id"`
	Day     int    `json:"day"`
	Shift   string `json:"shift"`
}

// Metrics accompanies a successful result with solve diagnostics.
type Metrics struct {
	SolveTime      float64 `json:"solve_time"`
	NumAssignments int     `json:"num_assignments"`
}

// Result is the outbound JSON envelope described in spec §4.3.
type Result struct {
	RequestID   string       `json:"request_id"`
	Status      string       `json:"status"`
	Assignments []Assignment `json:"assignments,omitempty"`
	Metrics     *Metrics     `json:"metrics,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// Success builds a "status": "success" result.
func Success(requestID string, assignments []Assignment, solveTime float64) Result {
	return Result{
		RequestID:   requestID,
		Status:      "success",
		Assignments: assignments,
		Metrics: &Metrics{
			SolveTime:      solveTime,
			NumAssignments: len(assignments),
		},
	}
}

// Failure builds a "status": "error" result. requestID may be empty when
// the originating payload couldn't be parsed far enough to recover one
// (spec §7's fatal kind).
func Failure(requestID string, err error) Result {
	return Result{
		RequestID: requestID,
		Status:    "error",
		Error:     err.Error(),
	}
}

const (
	defaultMinRestHours = 11
	defaultAlpha        = 1000
	defaultBeta         = 5
	defaultGamma        = 1
)

// MinRest returns the configured minimum rest or the spec default.
func (r Request) MinRest() int {
	if r.MinRestHours != nil {
		return *r.MinRestHours
	}
	return defaultMinRestHours
}

// Weights returns the configured (alpha, beta, gamma) or the spec defaults.
func (r Request) Weights() (alpha, beta, gamma int) {
	alpha, beta, gamma = defaultAlpha, defaultBeta, defaultGamma
	if r.Alpha != nil {
		alpha = *r.Alpha
	}
	if r.Beta != nil {
		beta = *r.Beta
	}
	if r.Gamma != nil {
		gamma = *r.Gamma
	}
	return alpha, beta, gamma
}

// Window returns the wall-clock window for shift label k, preferring an
// explicit ShiftWindows entry over the built-in defaults, and finally
// falling back to a same-day window starting at hour 0 sized by duration
// when nothing else is known.
func (r Request) Window(k string, durationHours int) Window {
	if w, ok := r.ShiftWindows[k]; ok {
		return w
	}
	if w, ok := defaultWindows[k]; ok {
		return w
	}
	return Window{Start: 0, End: float64(durationHours)}
}

// reqKey / availKey build and parse the composite string keys spec §4.3
// describes ("<j>,<k>" and "<i>,<j>,<k>").
func reqKey(day int, shift string) string {
	return fmt.Sprintf("%d,%s", day, shift)
}

func availKey(doctor string, day int, shift string) string {
	return fmt.Sprintf("%s,%d,%s", doctor, day, shift)
}

// Requirement looks up r[j,k], defaulting to 0 when absent.
func (r Request) Requirement(day int, shift string) int {
	return r.Requirements[reqKey(day, shift)]
}

// Available reports a[i,j,k], defaulting to 0 (unavailable) when absent.
func (r Request) Available(doctor string, day int, shift string) bool {
	return r.Availability[availKey(doctor, day, shift)] != 0
}

// Preference looks up p[i,j,k], defaulting to 0 when absent.
func (r Request) Preference(doctor string, day int, shift string) int {
	if r.Preferences == nil {
		return 0
	}
	return r.Preferences[availKey(doctor, day, shift)]
}

// Validate checks the structural and domain preconditions spec §4.3
// names, returning a *scheduleerr.Error with KindValidation on the first
// violation found.
func (r Request) Validate() error {
	if len(r.Doctors) == 0 {
		return scheduleerr.New(scheduleerr.KindValidation, "doctors must be non-empty")
	}
	if len(r.Days) == 0 {
		return scheduleerr.New(scheduleerr.KindValidation, "days must be non-empty")
	}
	if len(r.Shifts) == 0 {
		return scheduleerr.New(scheduleerr.KindValidation, "shifts must be non-empty")
	}
	if len(r.Requirements) == 0 {
		return scheduleerr.New(scheduleerr.KindValidation, "requirements must be non-empty")
	}

	doctorSet := toSet(r.Doctors)
	if len(doctorSet) != len(r.Doctors) {
		return scheduleerr.New(scheduleerr.KindValidation, "doctors must be distinct")
	}
	shiftSet := toSet(r.Shifts)
	daySet := make(map[int]struct{}, len(r.Days))
	for _, d := range r.Days {
		daySet[d] = struct{}{}
	}

	for k := range r.ShiftDurations {
		if _, ok := shiftSet[k]; !ok {
			return scheduleerr.Newf(scheduleerr.KindValidation, "shift_durations references unknown shift %q", k)
		}
	}
	for _, k := range r.Shifts {
		dur, ok := r.ShiftDurations[k]
		if !ok || dur <= 0 {
			return scheduleerr.Newf(scheduleerr.KindValidation, "shift %q must have a positive duration", k)
		}
	}

	for i := range r.MaxWeeklyHours {
		if _, ok := doctorSet[i]; !ok {
			return scheduleerr.Newf(scheduleerr.KindValidation, "max_weekly_hours references unknown doctor %q", i)
		}
	}
	for _, i := range r.Doctors {
		h, ok := r.MaxWeeklyHours[i]
		if !ok || h <= 0 {
			return scheduleerr.Newf(scheduleerr.KindValidation, "doctor %q must have a positive max_weekly_hours", i)
		}
	}

	for key := range r.Requirements {
		day, shift, err := parseReqKey(key)
		if err != nil {
			return scheduleerr.Wrap(scheduleerr.KindValidation, "malformed requirements key "+key, err)
		}
		if _, ok := daySet[day]; !ok {
			return scheduleerr.Newf(scheduleerr.KindValidation, "requirements key %q references unknown day", key)
		}
		if _, ok := shiftSet[shift]; !ok {
			return scheduleerr.Newf(scheduleerr.KindValidation, "requirements key %q references unknown shift", key)
		}
		if r.Requirements[key] < 0 {
			return scheduleerr.Newf(scheduleerr.KindValidation, "requirements key %q must be non-negative", key)
		}
	}

	for key, v := range r.Availability {
		if v != 0 && v != 1 {
			return scheduleerr.Newf(scheduleerr.KindValidation, "availability key %q must be 0 or 1", key)
		}
		i, day, shift, err := parseAvailKey(key)
		if err != nil {
			return scheduleerr.Wrap(scheduleerr.KindValidation, "malformed availability key "+key, err)
		}
		if _, ok := doctorSet[i]; !ok {
			return scheduleerr.Newf(scheduleerr.KindValidation, "availability key %q references unknown doctor", key)
		}
		if _, ok := daySet[day]; !ok {
			return scheduleerr.Newf(scheduleerr.KindValidation, "availability key %q references unknown day", key)
		}
		if _, ok := shiftSet[shift]; !ok {
			return scheduleerr.Newf(scheduleerr.KindValidation, "availability key %q references unknown shift", key)
		}
	}

	alpha, beta, gamma := r.Weights()
	if alpha < 1000 {
		return scheduleerr.New(scheduleerr.KindValidation, "alpha must be >= 1000")
	}
	if beta < 1 || beta > 10 {
		return scheduleerr.New(scheduleerr.KindValidation, "beta must be in [1,10]")
	}
	if gamma < 1 || gamma > 5 {
		return scheduleerr.New(scheduleerr.KindValidation, "gamma must be in [1,5]")
	}
	if r.MinRest() < 0 {
		return scheduleerr.New(scheduleerr.KindValidation, "min_rest_hours must be non-negative")
	}

	return nil
}

func toSet(vs []string) map[string]struct{} {
	s := make(map[string]struct{}, len(vs))
	for _, v := range vs {
		s[v] = struct{}{}
	}
	return s
}

func parseReqKey(key string) (day int, shift string, err error) {
	parts := strings.SplitN(key, ",", 2)
	if len(parts) != 2 {
		return 0, "", fmt.Errorf("expected \"<day>,<shift>\"")
	}
	day, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, "", fmt.Errorf("day component: %w", err)
	}
	return day, parts[1], nil
}

func parseAvailKey(key string) (doctor string, day int, shift string, err error) {
	parts := strings.SplitN(key, ",", 3)
	if len(parts) != 3 {
		return "", 0, "", fmt.Errorf("expected \"<doctor>,<day>,<shift>\"")
	}
	day, err = strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, "", fmt.Errorf("day component: %w", err)
	}
	return parts[0], day, parts[2], nil
}
