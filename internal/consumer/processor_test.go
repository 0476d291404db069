package consumer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"example.com/gymcore/internal/events"
)

func framedMessage(offset int64, eventType, tenantID string, schemaID int, payload string) kafka.Message {
	return kafka.Message{
		Topic:     "gym_activity_events",
		Partition: 0,
		Offset:    offset,
		Time:      time.Now().UTC(),
		Value:     events.EncodeFrame(schemaID, []byte(payload)),
		Headers: []kafka.Header{
			{Key: events.HeaderEventType, Value: []byte(eventType)},
			{Key: events.HeaderTenantID, Value: []byte(tenantID)},
			{Key: events.HeaderSchemaSubject, Value: []byte("gym_activity_events-value")},
		},
	}
}

func TestProcessorCommitsOnSuccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payload := `{"tenant_id":"gym-1","user_id":"u-1"}`
	reader := &stubReader{
		messages: []kafka.Message{framedMessage(10, events.TypeWorkoutCompleted, "gym-1", 42, payload)},
		after:    contextCanceled,
	}
	handler := &stubHandler{}

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)))

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, events.TypeWorkoutCompleted, handler.last.EventType)
	require.Equal(t, "gym-1", handler.last.TenantID)
	require.Equal(t, 42, handler.last.SchemaID)
	require.Equal(t, int64(10), handler.last.Offset)
	require.JSONEq(t, payload, string(handler.last.Payload))
}

func TestProcessorStopsWithoutCommitWhenRetriesExhausted(t *testing.T) {
	reader := &stubReader{
		messages: []kafka.Message{
			framedMessage(20, events.TypeMealLogged, "gym-2", 99, `{"tenant_id":"gym-2","user_id":"u-2"}`),
			framedMessage(21, events.TypeMealLogged, "gym-2", 99, `{"tenant_id":"gym-2","user_id":"u-3"}`),
		},
		after: contextCanceled,
	}
	handler := &stubHandler{err: errors.New("database unavailable")}

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)), WithRetry(3, time.Millisecond))

	err := processor.Run(context.Background())
	require.ErrorIs(t, err, ErrRetriesExhausted)
	require.Contains(t, err.Error(), "offset=20")

	// The failing message is retried in place and the next one is never fetched, so a later
	// commit cannot move the group offset past it.
	require.Equal(t, 3, handler.calls)
	require.Equal(t, int64(20), handler.last.Offset)
	require.Equal(t, 1, reader.index)
	require.Equal(t, 0, reader.commitCalls)
}

func TestProcessorRetriesTransientFailure(t *testing.T) {
	reader := &stubReader{
		messages: []kafka.Message{
			framedMessage(50, events.TypeWorkoutCompleted, "gym-1", 1, `{"tenant_id":"gym-1","user_id":"u-1"}`),
			framedMessage(51, events.TypeWorkoutCompleted, "gym-1", 1, `{"tenant_id":"gym-1","user_id":"u-2"}`),
		},
		after: contextCanceled,
	}
	handler := &stubHandler{errs: []error{errors.New("timeout")}}

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)), WithRetry(3, time.Millisecond))
	require.ErrorIs(t, processor.Run(context.Background()), context.Canceled)

	require.Equal(t, 3, handler.calls)
	require.Equal(t, []int64{50, 51}, reader.committed)
}

func TestProcessorStopsRetryingOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reader := &stubReader{
		messages: []kafka.Message{framedMessage(60, events.TypeMealLogged, "gym-1", 1, `{"tenant_id":"gym-1","user_id":"u-1"}`)},
	}
	handler := &stubHandler{err: errors.New("boom"), onCall: cancel}

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)), WithRetry(5, time.Hour))
	require.ErrorIs(t, processor.Run(ctx), context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 0, reader.commitCalls)
}

func TestProcessorCommitsPermanentFailures(t *testing.T) {
	reader := &stubReader{
		messages: []kafka.Message{framedMessage(30, events.TypeCheckInRecorded, "gym-3", 7, `{}`)},
		after:    contextCanceled,
	}
	handler := &stubHandler{err: fmt.Errorf("%w: schema validation failed", ErrPermanent)}

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)))
	require.ErrorIs(t, processor.Run(context.Background()), context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
}

func TestProcessorCommitsUndecodableMessages(t *testing.T) {
	noHeader := framedMessage(41, events.TypeWorkoutCompleted, "gym-1", 1, `{}`)
	noHeader.Headers = nil
	short := framedMessage(40, events.TypeWorkoutCompleted, "gym-1", 1, `{}`)
	short.Value = []byte{0, 1}

	reader := &stubReader{messages: []kafka.Message{short, noHeader}, after: contextCanceled}
	handler := &stubHandler{}

	processor := NewProcessor(reader, handler, WithLogger(log.New(testWriter{t}, "", 0)))
	require.ErrorIs(t, processor.Run(context.Background()), context.Canceled)

	require.Zero(t, handler.calls)
	require.Equal(t, 2, reader.commitCalls)
}

type stubReader struct {
	messages    []kafka.Message
	index       int
	commitCalls int
	committed   []int64
	after       func() error
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if r.index >= len(r.messages) {
		if r.after != nil {
			return kafka.Message{}, r.after()
		}
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.commitCalls++
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *stubReader) Close() error { return nil }

func contextCanceled() error { return context.Canceled }

// stubHandler returns errs in order, then err for every later call.
type stubHandler struct {
	calls  int
	errs   []error
	err    error
	last   Message
	onCall func()
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	if h.onCall != nil {
		h.onCall()
	}
	if len(h.errs) > 0 {
		err := h.errs[0]
		h.errs = h.errs[1:]
		return err
	}
	return h.err
}

type testWriter struct {
	t *testing.T
}

func (tw testWriter) Write(p []byte) (int, error) {
	tw.t.Log(string(p))
	return len(p), nil
}
