// Package processor implements the Request Processor (spec §4.3): it
// validates inbound envelopes, invokes the model builder and solver
// driver, and packages the result envelope including metrics and error
// classification. Per spec §7, Process never returns an error itself —
// every failure is folded into the returned envelope.Result so the
// stream worker can always acknowledge and publish.
package processor

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/zar4za/schedule/internal/envelope"
	"github.com/zar4za/schedule/internal/scheduleerr"
	"github.com/zar4za/schedule/internal/solverdriver"
)

// Processor wires the model builder and solver driver together behind a
// single entry point, with per-call solve options.
type Processor struct {
	log  *zap.Logger
	opts solverdriver.Options
}

// New builds a Processor. log must not be nil.
func New(log *zap.Logger, opts solverdriver.Options) *Processor {
	return &Processor{log: log, opts: opts}
}

// ProcessPayload parses the raw JSON payload string, best-effort-recovers
// a request_id on parse failure (spec §7's fatal kind, matching
// original_source/schedsolver/main.py's double-json.loads behavior with a
// single parse instead), and returns the corresponding result envelope.
func (p *Processor) ProcessPayload(ctx context.Context, payload string) envelope.Result {
	var req envelope.Request
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		p.log.Error("payload did not parse as JSON", zap.Error(err))
		return envelope.Failure(req.RequestID, scheduleerr.Wrap(scheduleerr.KindFatal, "invalid JSON payload", err))
	}
	return p.Process(ctx, req)
}

// Process validates and solves one request, always returning a complete
// result envelope.
func (p *Processor) Process(ctx context.Context, req envelope.Request) envelope.Result {
	log := p.log.With(zap.String("request_id", req.RequestID))

	if err := req.Validate(); err != nil {
		log.Info("request failed validation", zap.Error(err))
		return envelope.Failure(req.RequestID, err)
	}

	outcome, err := solverdriver.Solve(req, p.opts)
	if err != nil {
		if se, ok := scheduleerr.As(err); ok {
			log.Info("solve did not produce a result", zap.String("kind", string(se.Kind)), zap.Error(err))
		} else {
			log.Error("solve failed", zap.Error(err))
		}
		return envelope.Failure(req.RequestID, err)
	}

	log.Info("solve succeeded",
		zap.Int("num_assignments", len(outcome.Assignments)),
		zap.Float64("solve_time", outcome.SolveTime),
	)
	return envelope.Success(req.RequestID, outcome.Assignments, outcome.SolveTime)
}
