package events

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/terra/internal/submissions"
	"github.com/JaimeStill/terra/internal/verification"
)

// Processor runs verification for a submission.
type Processor interface {
	Process(ctx context.Context, id uuid.UUID) (*verification.Outcome, error)
}

// VerificationHandlers routes submission-created and reprocess events to p.
// Redeliveries of processed submissions ack as no-ops; missing submissions
// and malformed payloads are dropped; everything else retries.
func VerificationHandlers(p Processor, logger *slog.Logger) map[string]Handler {
	logger = logger.With("system", "events.verification")

	h := func(ctx context.Context, msg *Message) error {
		ev, err := msg.Decode()
		if err != nil {
			return err
		}

		out, err := p.Process(ctx, ev.SubmissionID)
		switch {
		case errors.Is(err, verification.ErrAlreadyProcessed):
			logger.InfoContext(ctx, "duplicate delivery ignored", "submission_id", ev.SubmissionID, "routing_key", msg.RoutingKey)
			return nil
		case errors.Is(err, submissions.ErrNotFound), errors.Is(err, submissions.ErrInvalidStatus):
			return Permanent(err)
		case err != nil:
			return err
		}

		logger.InfoContext(ctx, "submission verified",
			"submission_id", ev.SubmissionID,
			"status", out.Status,
			"routing_key", msg.RoutingKey,
		)
		return nil
	}

	return map[string]Handler{
		RoutingCreated:   h,
		RoutingReprocess: h,
	}
}
