// Package worker scores assessment requests delivered over Kafka.
package worker

import (
	"context"
	"time"

	"github.com/turtacn/SlaveryRisk-Intelligence/internal/application/assessment"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/SlaveryRisk-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/SlaveryRisk-Intelligence/pkg/errors"
)

// DefaultClaimTTL bounds how long a processed request id suppresses
// redeliveries.
const DefaultClaimTTL = 24 * time.Hour

// RequestedEvent is the payload of an assessment request message.
type RequestedEvent struct {
	RequestID string `json:"request_id"`
	assessment.Request
}

// Assessor runs one assessment.
type Assessor interface {
	Assess(ctx context.Context, req assessment.Request) (assessment.Report, error)
}

// Claimer deduplicates deliveries across workers.
type Claimer interface {
	Claim(ctx context.Context, id string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, id string) error
}

// Handler turns request messages into assessments. Completed events are
// published by the Assessor itself.
type Handler struct {
	assessor Assessor
	claims   Claimer
	ttl      time.Duration
	logger   logging.Logger
}

// NewHandler builds a handler. claims may be nil, which disables
// deduplication.
func NewHandler(assessor Assessor, claims Claimer, ttl time.Duration, logger logging.Logger) *Handler {
	if ttl <= 0 {
		ttl = DefaultClaimTTL
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Handler{assessor: assessor, claims: claims, ttl: ttl, logger: logger.Named("worker")}
}

// Handle implements kafka.MessageHandler. Undecodable or invalid requests
// are permanent failures; anything else is retried.
func (h *Handler) Handle(ctx context.Context, msg *kafka.Message) error {
	env, err := kafka.DecodeEnvelope(msg)
	if err != nil {
		return kafka.Permanent(err)
	}
	var ev RequestedEvent
	if err := env.DecodePayload(&ev); err != nil {
		return kafka.Permanent(err)
	}
	id := ev.RequestID
	if id == "" {
		id = env.EventID
	}
	log := h.logger.With(logging.String("request_id", id), logging.String("company", ev.CompanyName))

	claimed := false
	if h.claims != nil {
		ok, err := h.claims.Claim(ctx, id, h.ttl)
		switch {
		case err != nil:
			log.Warn("claim unavailable; processing without deduplication", logging.Err(err))
		case !ok:
			log.Info("duplicate request skipped")
			return nil
		default:
			claimed = true
		}
	}

	rep, err := h.assessor.Assess(ctx, ev.Request)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeAssessmentInvalid) {
			return kafka.Permanent(err)
		}
		if claimed {
			if rerr := h.claims.Release(ctx, id); rerr != nil {
				log.Warn("failed to release claim", logging.Err(rerr))
			}
		}
		return err
	}
	log.Info("request assessed",
		logging.String("assessment_id", rep.ID),
		logging.Float64("final_score", rep.FinalScore),
	)
	return nil
}

// Submitter enqueues assessment requests.
type Submitter struct {
	publisher assessment.Publisher
	newID     func() string
}

// NewSubmitter binds publisher, which must target the request topic.
func NewSubmitter(publisher assessment.Publisher, newID func() string) *Submitter {
	return &Submitter{publisher: publisher, newID: newID}
}

// Submit validates req and enqueues it, returning the request id.
func (s *Submitter) Submit(ctx context.Context, req assessment.Request) (string, error) {
	req = req.Normalized()
	if err := req.Validate(); err != nil {
		return "", err
	}
	id := s.newID()
	if err := s.publisher.Publish(ctx, id, RequestedEvent{RequestID: id, Request: req}); err != nil {
		return "", err
	}
	return id, nil
}
