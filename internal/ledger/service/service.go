// Package service implements the ledger operations: mint, list, buy, cancel,
// retire, freeze and the read queries.
//
// Every mutating operation runs in one store.Ledger transaction. Business
// rules live on the models (CanX/ApplyX); this package sequences them, turns
// store facts into domain errors, and appends the resulting events to the
// outbox inside the same transaction.
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

	"offsetledger/internal/ledger/credential"
	"offsetledger/internal/ledger/metrics"
	"offsetledger/internal/ledger/models"
	"offsetledger/internal/ledger/store"
	"offsetledger/internal/outbox"
	dErrors "offsetledger/pkg/domain-errors"
	"offsetledger/pkg/platform/sentinel"
	"offsetledger/pkg/requestcontext"
)

const tracerName = "offsetledger/internal/ledger/service"

// Service orchestrates ledger operations.
type Service struct {
	ledger    store.Ledger
	authority *credential.Authority
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(*Service)

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

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// New constructs a Service. authority verifies mint capabilities and must be
// the one that issued the capability handed to the minter.
func New(ledger store.Ledger, authority *credential.Authority, opts ...Option) *Service {
	s := &Service{
		ledger:    ledger,
		authority: authority,
		logger:    slog.New(slog.DiscardHandler),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// observe starts a span and returns the func that closes it, records metrics
// and logs unexpected failures. Call it with the operation's final error.
func (s *Service) observe(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "ledger."+op, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		outcome := metrics.OutcomeOK
		if err != nil {
			code := dErrors.CodeOf(err)
			span.SetAttributes(attribute.String("error.code", string(code)))
			span.RecordError(err)
			if isRejection(code) {
				outcome = metrics.OutcomeRejected
				s.logger.InfoContext(ctx, "ledger operation rejected",
					"operation", op,
					"code", code,
					"request_id", requestcontext.RequestID(ctx),
				)
			} else {
				outcome = metrics.OutcomeError
				span.SetStatus(codes.Error, string(code))
				s.logger.ErrorContext(ctx, "ledger operation failed",
					"operation", op,
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
			}
		}
		span.End()
		if s.metrics != nil {
			s.metrics.ObserveOperation(op, outcome, start)
		}
	}
}

// isRejection separates business-rule rejections from infrastructure failures.
func isRejection(code dErrors.Code) bool {
	switch code {
	case dErrors.CodeInternal, dErrors.CodeTimeout, dErrors.CodeInvariantViolation:
		return false
	}
	return true
}

// finalize makes sure every error leaving the service carries a code.
func finalize(err error) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "ledger operation timed out")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "ledger operation failed")
}

// notFound translates sentinel.ErrNotFound into a coded error with msg and
// passes other errors through for finalize.
func notFound(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, msg)
	}
	return err
}

// emit appends events to the transaction's outbox in call order.
func emit(ctx context.Context, w outbox.Writer, now time.Time, events ...models.Event) error {
	entries := make([]outbox.Entry, 0, len(events))
	for _, ev := range events {
		entry, err := outbox.NewEntry(ev, now)
		if err != nil {
			return err
		}
		entries = append(entries, entry)
	}
	return w.Append(ctx, entries...)
}
