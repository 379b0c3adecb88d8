package stream

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zar4za/schedule/internal/config"
	"github.com/zar4za/schedule/internal/envelope"
)

// fakeRedis is a minimal in-memory stand-in for redisStreamClient, used to
// test the worker's acknowledge-exactly-once behavior (spec §8) without a
// real Redis server.
type fakeRedis struct {
	batches    [][]redis.XMessage
	batchIndex int
	acked      []string
	published  []string
	groupCalls int
	groupErr   error
	drained    chan struct{}
}

func (f *fakeRedis) XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd {
	f.groupCalls++
	if f.groupErr != nil {
		return redis.NewStatusResult("", f.groupErr)
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd {
	if f.batchIndex >= len(f.batches) {
		if f.drained != nil {
			select {
			case f.drained <- struct{}{}:
			default:
			}
		}
		return redis.NewXStreamSliceCmdResult(nil, redis.Nil)
	}
	batch := f.batches[f.batchIndex]
	f.batchIndex++
	return redis.NewXStreamSliceCmdResult([]redis.XStream{{Stream: a.Streams[0], Messages: batch}}, nil)
}

func (f *fakeRedis) XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd {
	f.acked = append(f.acked, ids...)
	return redis.NewIntResult(int64(len(ids)), nil)
}

func (f *fakeRedis) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.published = append(f.published, a.Values.(map[string]any)["payload"].(string))
	return redis.NewStringResult("0-1", nil)
}

type fakeProcessor struct {
	calls []string
}

func (f *fakeProcessor) ProcessPayload(ctx context.Context, payload string) envelope.Result {
	f.calls = append(f.calls, payload)
	return envelope.Success("req-1", nil, 0.01)
}

func testConfig() config.Config {
	return config.Config{
		RequestStream: "schedule:requests",
		ResultStream:  "schedule:results",
		ConsumerGroup: "scheduler_service",
		ReadCount:     10,
	}
}

func TestBootstrapTreatsBusyGroupAsSuccess(t *testing.T) {
	fr := &fakeRedis{}
	w := newWithClient(fr, &fakeProcessor{}, zap.NewNop(), testConfig())
	require.NoError(t, w.Bootstrap(context.Background()))

	fr.groupErr = errors.New("BUSYGROUP Consumer Group name already exists")
	require.NoError(t, w.Bootstrap(context.Background()))
	assert.Equal(t, 2, fr.groupCalls)
}

func TestHandleAcknowledgesEveryMessageExactlyOnce(t *testing.T) {
	fr := &fakeRedis{
		batches: [][]redis.XMessage{
			{
				{ID: "1-1", Values: map[string]any{"payload": `{"request_id":"a"}`}},
				{ID: "1-2", Values: map[string]any{}}, // missing payload
				{ID: "1-3", Values: map[string]any{"payload": `{"request_id":"b"}`}},
			},
		},
		drained: make(chan struct{}, 1),
	}
	fp := &fakeProcessor{}
	w := newWithClient(fr, fp, zap.NewNop(), testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	// Cancel once the fake's single batch has been drained so Run exits.
	go func() {
		<-fr.drained
		cancel()
	}()
	_ = w.Run(ctx)

	assert.ElementsMatch(t, []string{"1-1", "1-2", "1-3"}, fr.acked)
	assert.Len(t, fp.calls, 2, "the message missing payload must be skipped, not processed")
	assert.Len(t, fr.published, 2)
}

func TestPublishMarshalsResultAsJSONPayload(t *testing.T) {
	fr := &fakeRedis{}
	w := newWithClient(fr, &fakeProcessor{}, zap.NewNop(), testConfig())

	result := envelope.Success("req-1", []envelope.Assignment{{StaffID: "1", Day: 0, Shift: "s1"}}, 0.5)
	require.NoError(t, w.publish(context.Background(), result))

	require.Len(t, fr.published, 1)
	assert.Contains(t, fr.published[0], `"request_id":"req-1"`)
	assert.Contains(t, fr.published[0], `"status":"success"`)
}
