package envelope

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simpleRequest() Request {
	return Request{
		RequestID:      "req-1",
		Doctors:        []string{"1"},
		Days:           []int{0},
		Shifts:         []string{"s1"},
		Requirements:   map[string]int{"0,s1": 1},
		Availability:   map[string]int{"1,0,s1": 1},
		ShiftDurations: map[string]int{"s1": 8},
		MaxWeeklyHours: map[string]int{"1": 40},
	}
}

func TestValidateAcceptsSimpleRequest(t *testing.T) {
	require.NoError(t, simpleRequest().Validate())
}

func TestValidateRejectsEmptyDoctors(t *testing.T) {
	req := simpleRequest()
	req.Doctors = nil
	err := req.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation_error")
}

func TestValidateRejectsUnknownReferences(t *testing.T) {
	req := simpleRequest()
	req.Requirements["0,unknown"] = 1
	err := req.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown shift")
}

func TestValidateRejectsNonPositiveDuration(t *testing.T) {
	req := simpleRequest()
	req.ShiftDurations["s1"] = 0
	require.Error(t, req.Validate())
}

func TestValidateRejectsOutOfRangeWeights(t *testing.T) {
	req := simpleRequest()
	alpha := 5
	req.Alpha = &alpha
	require.Error(t, req.Validate())
}

func TestWeightsDefaults(t *testing.T) {
	req := simpleRequest()
	alpha, beta, gamma := req.Weights()
	assert.Equal(t, 1000, alpha)
	assert.Equal(t, 5, beta)
	assert.Equal(t, 1, gamma)
}

func TestMinRestDefault(t *testing.T) {
	assert.Equal(t, 11, simpleRequest().MinRest())
}

func TestRequestRoundTripsThroughJSON(t *testing.T) {
	req := simpleRequest()
	body, err := json.Marshal(req)
	require.NoError(t, err)

	var decoded Request
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, req.RequestID, decoded.RequestID)
	assert.True(t, decoded.Available("1", 0, "s1"))
}

func TestWindowFallsBackToDefaults(t *testing.T) {
	req := simpleRequest()
	w := req.Window("evening", 8)
	assert.Equal(t, Window{Start: 14, End: 22}, w)
}

func TestWindowPrefersExplicitOverDefault(t *testing.T) {
	req := simpleRequest()
	req.ShiftWindows = map[string]Window{"evening": {Start: 15, End: 23}}
	w := req.Window("evening", 8)
	assert.Equal(t, Window{Start: 15, End: 23}, w)
}

func TestSuccessAndFailureEnvelopes(t *testing.T) {
	s := Success("req-1", []Assignment{{StaffID: "1", Day: 0, Shift: "s1"}}, 1.5)
	assert.Equal(t, "success", s.Status)
	assert.Equal(t, 1, s.Metrics.NumAssignments)

	f := Failure("req-1", assertErr{"infeasible: no room"})
	assert.Equal(t, "error", f.Status)
	assert.Equal(t, "infeasible: no room", f.Error)
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }
