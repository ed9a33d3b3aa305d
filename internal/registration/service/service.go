package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"weict/internal/platform/email"
	"weict/internal/platform/logger"
	"weict/internal/platform/metrics"
	"weict/internal/registration/confirmation"
	"weict/internal/registration/models"
	dErrors "weict/pkg/domain-errors"
	"weict/pkg/platform/sentinel"
	"weict/pkg/requestcontext"
)

// DefaultFrom is the confirmation sender when none is configured.
const DefaultFrom = "WE-ICT Workshop <onboarding@resend.dev>"

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store Sender

// Store persists registrations.
type Store interface {
	Create(ctx context.Context, sub models.Submission) (*models.Registration, error)
}

// Sender delivers the confirmation email.
type Sender interface {
	Send(ctx context.Context, msg email.Message) error
	Provider() string
}

// Service runs the registration workflow: validate, insert one row, send one
// confirmation. There is no rollback: a row written before a failed send
// stays written.
type Service struct {
	store   Store
	sender  Sender
	from    string
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithFrom overrides the confirmation sender address.
func WithFrom(from string) Option {
	return func(s *Service) {
		if from != "" {
			s.from = from
		}
	}
}

// New constructs a Service.
func New(store Store, sender Sender, opts ...Option) *Service {
	s := &Service{
		store:  store,
		sender: sender,
		from:   DefaultFrom,
		logger: slog.Default(),
		tracer: otel.Tracer("weict/registration"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register validates sub, stores it and sends the confirmation rendered with
// tmpl. Validation failures carry CodeValidation and have no side effects;
// every other failure carries CodeInternal. When only the email fails, the
// stored registration is returned together with the error.
func (s *Service) Register(ctx context.Context, sub models.Submission, tmpl confirmation.Template) (*models.Registration, error) {
	route := requestcontext.Route(ctx)
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()
	defer s.metrics.ObserveRegister(route, start)

	ctx, span := s.tracer.Start(ctx, "registration.Register",
		trace.WithAttributes(
			attribute.String("registration.route", route),
			attribute.String("registration.template", tmpl.Name()),
		))
	defer span.End()

	if err := sub.Validate(); err != nil {
		s.metrics.IncRegistration(route, metrics.OutcomeInvalid)
		s.logger.InfoContext(ctx, "registration rejected",
			"request_id", requestID,
			"route", route,
			"missing", sub.MissingFields(),
		)
		span.SetStatus(codes.Error, "validation failed")
		return nil, err
	}

	reg, err := s.store.Create(ctx, sub)
	if err != nil {
		s.metrics.IncRegistration(route, metrics.OutcomeStoreFailure)
		s.logger.ErrorContext(ctx, "failed to store registration",
			"request_id", requestID,
			"route", route,
			"unavailable", errors.Is(err, sentinel.ErrUnavailable),
			"error", err,
		)
		recordSpanError(span, err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store registration")
	}
	span.SetAttributes(attribute.Int64("registration.id", reg.ID))

	if err := s.sendConfirmation(ctx, *reg, tmpl); err != nil {
		s.metrics.IncRegistration(route, metrics.OutcomeEmailFailure)
		s.logger.ErrorContext(ctx, "failed to send confirmation email",
			"request_id", requestID,
			"route", route,
			"registration_id", reg.ID,
			"provider", s.sender.Provider(),
			"to", logger.MaskEmail(reg.Email),
			"error", err,
		)
		recordSpanError(span, err)
		return reg, dErrors.Wrap(err, dErrors.CodeInternal, "failed to send confirmation email")
	}

	s.metrics.IncRegistration(route, metrics.OutcomeSuccess)
	s.logger.InfoContext(ctx, "registration completed",
		"request_id", requestID,
		"route", route,
		"registration_id", reg.ID,
		"topic", reg.Topic,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return reg, nil
}

func (s *Service) sendConfirmation(ctx context.Context, reg models.Registration, tmpl confirmation.Template) error {
	ctx, span := s.tracer.Start(ctx, "registration.SendConfirmation",
		trace.WithAttributes(attribute.String("email.provider", s.sender.Provider())))
	defer span.End()

	rendered, err := tmpl.Render(reg)
	if err != nil {
		recordSpanError(span, err)
		return err
	}
	err = s.sender.Send(ctx, email.Message{
		From:    s.from,
		To:      []string{reg.Email},
		Subject: rendered.Subject,
		HTML:    rendered.HTML,
	})
	if err != nil {
		s.metrics.IncEmail(s.sender.Provider(), metrics.EmailResultFailed)
		recordSpanError(span, err)
		return err
	}
	s.metrics.IncEmail(s.sender.Provider(), metrics.EmailResultSent)
	return nil
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
