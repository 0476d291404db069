// Package consumer reads activity events from Kafka and refreshes the affected member profiles.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/gymcore/internal/events"
)

// Reader exposes the minimal kafka.Reader interface needed by the processor.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// ErrPermanent marks handler failures that redelivery cannot fix. The processor commits such
// messages instead of leaving them for the next rebalance.
var ErrPermanent = errors.New("permanent handler failure")

// ErrRetriesExhausted is returned by Run when a message kept failing transiently. The message is
// not committed; the caller must close the reader and rejoin the group to have it redelivered.
var ErrRetriesExhausted = errors.New("handler retries exhausted")

const (
	defaultMaxAttempts  = 3
	defaultRetryBackoff = 500 * time.Millisecond
)

// Handler receives decoded messages from Kafka.
type Handler interface {
	Handle(context.Context, Message) error
}

// Message is the decoded representation of a framed Kafka record.
type Message struct {
	Topic         string
	Partition     int
	Offset        int64
	Timestamp     time.Time
	EventType     string
	TenantID      string
	SchemaSubject string
	SchemaID      int
	Payload       json.RawMessage
}

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger *log.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithRetry sets how many times a transiently failing message is handled before Run gives up,
// and the initial pause between attempts. The pause doubles after each attempt.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(p *Processor) {
		if attempts > 0 {
			p.maxAttempts = attempts
		}
		if backoff >= 0 {
			p.retryBackoff = backoff
		}
	}
}

// Processor pulls messages from Kafka, decodes them, and dispatches to a Handler.
// Messages are committed in offset order; a message is never skipped while uncommitted.
type Processor struct {
	reader       Reader
	handler      Handler
	logger       *log.Logger
	maxAttempts  int
	retryBackoff time.Duration
}

// NewProcessor constructs a Processor with the provided reader and handler.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:       reader,
		handler:      handler,
		logger:       log.New(log.Writer(), "[consumer] ", log.LstdFlags|log.Lshortfile),
		maxAttempts:  defaultMaxAttempts,
		retryBackoff: defaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run starts a blocking loop that processes Kafka messages until the context is cancelled.
// It returns an error wrapping ErrRetriesExhausted when a message cannot be handled, leaving
// that message and everything after it uncommitted.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			p.logger.Printf("fetch error: %v", err)
			continue
		}

		event, decodeErr := decodeMessage(msg)
		if decodeErr != nil {
			p.logger.Printf("decode error (topic=%s, partition=%d, offset=%d): %v", msg.Topic, msg.Partition, msg.Offset, decodeErr)
			recordDecodeError(msg.Topic)
			// Commit malformed messages to avoid poison-pill loops.
			p.commit(ctx, msg, "decode failure")
			continue
		}

		if handleErr := p.handle(ctx, event); handleErr != nil {
			if errors.Is(handleErr, ErrPermanent) {
				p.commit(ctx, msg, "permanent failure")
				continue
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("%w (topic=%s, partition=%d, offset=%d): %v", ErrRetriesExhausted, msg.Topic, msg.Partition, msg.Offset, handleErr)
		}

		if p.commit(ctx, msg, "") {
			recordProcessed(event)
		}
	}
}

// handle runs the handler, retrying transient failures with a doubling pause.
func (p *Processor) handle(ctx context.Context, event Message) error {
	backoff := p.retryBackoff
	var err error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		err = p.handler.Handle(ctx, event)
		if err == nil {
			return nil
		}
		p.logger.Printf("handler error (event_type=%s, tenant=%s, offset=%d, attempt=%d/%d): %v", event.EventType, event.TenantID, event.Offset, attempt, p.maxAttempts, err)
		recordHandlerError(event)
		if errors.Is(err, ErrPermanent) || attempt == p.maxAttempts {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}

func (p *Processor) commit(ctx context.Context, msg kafka.Message, after string) bool {
	if err := p.reader.CommitMessages(ctx, msg); err != nil {
		if after != "" {
			p.logger.Printf("commit error after %s: %v", after, err)
		} else {
			p.logger.Printf("commit error: %v", err)
		}
		return false
	}
	return true
}

func decodeMessage(msg kafka.Message) (Message, error) {
	schemaID, payload, err := events.DecodeFrame(msg.Value)
	if err != nil {
		return Message{}, err
	}

	eventType, ok := headerValue(msg, events.HeaderEventType)
	if !ok {
		return Message{}, errors.New("missing event_type header")
	}
	tenantID, _ := headerValue(msg, events.HeaderTenantID)
	schemaSubject, _ := headerValue(msg, events.HeaderSchemaSubject)

	return Message{
		Topic:         msg.Topic,
		Partition:     msg.Partition,
		Offset:        msg.Offset,
		Timestamp:     msg.Time,
		EventType:     string(eventType),
		TenantID:      string(tenantID),
		SchemaSubject: string(schemaSubject),
		SchemaID:      schemaID,
		Payload:       json.RawMessage(payload),
	}, nil
}

func headerValue(msg kafka.Message, key string) ([]byte, bool) {
	for _, header := range msg.Headers {
		if header.Key == key {
			return header.Value, true
		}
	}
	return nil, false
}
