package processor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zar4za/schedule/internal/solverdriver"
)

func testProcessor() *Processor {
	return New(zap.NewNop(), solverdriver.Options{TimeLimit: 5 * time.Second, Workers: 4})
}

func TestProcessSuccess(t *testing.T) {
	p := testProcessor()
	payload := `{
		"request_id": "req-1",
		"doctors": ["1"],
		"days": [0],
		"shifts": ["s1"],
		"requirements": {"0,s1": 1},
		"availability": {"1,0,s1": 1},
		"shift_durations": {"s1": 8},
		"max_weekly_hours": {"1": 40}
	}`

	result := p.ProcessPayload(context.Background(), payload)
	assert.Equal(t, "req-1", result.RequestID)
	assert.Equal(t, "success", result.Status)
	require.NotNil(t, result.Metrics)
	assert.Equal(t, 1, result.Metrics.NumAssignments)
}

func TestProcessValidationErrorPreservesRequestID(t *testing.T) {
	p := testProcessor()
	payload := `{"request_id": "req-2", "days": [0], "shifts": ["s1"], "requirements": {"0,s1": 1}}`

	result := p.ProcessPayload(context.Background(), payload)
	assert.Equal(t, "req-2", result.RequestID)
	assert.Equal(t, "error", result.Status)
	assert.Contains(t, result.Error, "validation_error")
}

func TestProcessUnparseablePayloadDegradesToEmptyRequestID(t *testing.T) {
	p := testProcessor()
	result := p.ProcessPayload(context.Background(), "not json")
	assert.Equal(t, "", result.RequestID)
	assert.Equal(t, "error", result.Status)
	assert.Contains(t, result.Error, "fatal")
}
