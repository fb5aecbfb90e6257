// Package events carries submission events over RabbitMQ: a subscriber
// that drives the verification pipeline from submission-created and
// reprocess deliveries, and a publisher for those events.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

// Routing keys for submission events.
const (
	RoutingCreated   = "submission.created"
	RoutingReprocess = "submission.reprocess"
)

const retryCountHeader = "x-terra-retry-count"

// SubmissionEvent is the payload of every submission event.
type SubmissionEvent struct {
	SubmissionID uuid.UUID `json:"submission_id"`
}

// Message is a received delivery.
type Message struct {
	Body        []byte
	RoutingKey  string
	ContentType string
	Timestamp   time.Time
	DeliveryTag uint64
	Redelivered bool
	Attempt     int
}

// Decode unmarshals the body into a SubmissionEvent. Malformed payloads
// are permanent failures.
func (m *Message) Decode() (SubmissionEvent, error) {
	var e SubmissionEvent
	if err := json.Unmarshal(m.Body, &e); err != nil {
		return e, Permanent(fmt.Errorf("decode %s payload: %w", m.RoutingKey, err))
	}
	if e.SubmissionID == uuid.Nil {
		return e, Permanent(fmt.Errorf("%s payload missing submission_id", m.RoutingKey))
	}
	return e, nil
}

// PermanentError marks a processing failure as non-retriable.
type PermanentError struct{ Err error }

func (e *PermanentError) Error() string {
	if e == nil || e.Err == nil {
		return "permanent error"
	}
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the delivery is dropped instead of retried.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var perr *PermanentError
	return errors.As(err, &perr)
}

func retryCount(headers amqp.Table) int {
	v, ok := headers[retryCountHeader]
	if !ok || v == nil {
		return 0
	}
	var n int64
	switch t := v.(type) {
	case int:
		n = int64(t)
	case int16:
		n = int64(t)
	case int32:
		n = int64(t)
	case int64:
		n = t
	case string:
		parsed, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0
		}
		n = parsed
	default:
		return 0
	}
	if n < 0 {
		return 0
	}
	return int(n)
}

func withRetryCount(headers amqp.Table, next int) amqp.Table {
	out := amqp.Table{}
	for k, v := range headers {
		out[k] = v
	}
	out[retryCountHeader] = int32(max(next, 0))
	return out
}
