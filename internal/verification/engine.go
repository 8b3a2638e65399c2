// Package verification answers authorization queries against the agreement
// registry. It is strictly read-only and carries two deliberately different
// error contracts: VerifyConsent never fails, PurposeDetails fails hard.
package verification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bassrehab/oconsent/internal/agreement/models"
	"github.com/bassrehab/oconsent/internal/sentinel"
	"github.com/bassrehab/oconsent/internal/verification/metrics"
	"github.com/bassrehab/oconsent/internal/verification/tracer"
	dErrors "github.com/bassrehab/oconsent/pkg/domain-errors"
)

// Store is the read surface the engine needs from the registry.
type Store interface {
	Get(ctx context.Context, id string) (*models.Agreement, error)
}

// PurposeDetails is the projection returned by the detail lookup.
type PurposeDetails struct {
	Name            string
	Description     string
	RetentionPeriod time.Duration
}

type Option func(*Engine)

// Engine evaluates consent queries against the store.
type Engine struct {
	store   Store
	tracer  tracer.Tracer
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewEngine(store Store, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		tracer: tracer.NewNoop(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithTracer sets the tracer used for query spans.
func WithTracer(t tracer.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

// WithMetrics sets the metrics instance for the engine
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// VerifyConsent reports whether the processor currently holds valid consent
// for the purpose under the agreement. It returns true only when the
// agreement exists, names the processor, is active, covers now within its
// validity window, and lists the purpose id.
//
// The query is fail-soft: every failure mode, including a malformed lookup
// or a store fault, collapses to false. Callers are never told which
// condition failed.
func (e *Engine) VerifyConsent(ctx context.Context, agreementID, purposeID, processor string, now time.Time) bool {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, tracer.SpanVerifyConsent,
		tracer.String(tracer.AttrAgreementID, agreementID),
		tracer.String(tracer.AttrPurposeID, purposeID),
		tracer.String(tracer.AttrProcessor, processor),
	)

	valid := e.evaluate(ctx, agreementID, purposeID, processor, now)

	span.SetAttributes(tracer.Bool(tracer.AttrValid, valid))
	span.End(nil)
	if e.metrics != nil {
		e.metrics.ObserveCheckLatency(time.Since(start).Seconds())
		if valid {
			e.metrics.IncrementChecksPassed()
		} else {
			e.metrics.IncrementChecksFailed()
		}
	}
	return valid
}

func (e *Engine) evaluate(ctx context.Context, agreementID, purposeID, processor string, now time.Time) bool {
	agreement, err := e.store.Get(ctx, agreementID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) && e.logger != nil {
			// Store faults also collapse to false, but they are worth a log line.
			e.logger.WarnContext(ctx, "consent check store fault",
				"agreement_id", agreementID,
				"error", err,
			)
		}
		return false
	}
	if agreement.Processor != processor {
		return false
	}
	if agreement.Status != models.StatusActive {
		return false
	}
	if !agreement.WithinValidity(now) {
		return false
	}
	return agreement.HasPurpose(purposeID)
}

// PurposeDetails returns the purpose's name, description, and advisory
// retention period. Unlike VerifyConsent this lookup fails hard: a missing
// agreement surfaces as not_found and a missing purpose as purpose_not_found.
func (e *Engine) PurposeDetails(ctx context.Context, agreementID, purposeID string) (PurposeDetails, error) {
	ctx, span := e.tracer.Start(ctx, tracer.SpanPurposeDetails,
		tracer.String(tracer.AttrAgreementID, agreementID),
		tracer.String(tracer.AttrPurposeID, purposeID),
	)

	details, err := e.lookupDetails(ctx, agreementID, purposeID)
	span.End(err)
	if e.metrics != nil {
		outcome := "ok"
		if err != nil {
			var de *dErrors.Error
			if errors.As(err, &de) {
				outcome = string(de.Code)
			} else {
				outcome = string(dErrors.CodeInternal)
			}
		}
		e.metrics.IncrementDetailLookups(outcome)
	}
	return details, err
}

func (e *Engine) lookupDetails(ctx context.Context, agreementID, purposeID string) (PurposeDetails, error) {
	agreement, err := e.store.Get(ctx, agreementID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return PurposeDetails{}, dErrors.New(dErrors.CodeNotFound, "agreement not found")
		}
		return PurposeDetails{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read agreement")
	}
	purpose, ok := agreement.FindPurpose(purposeID)
	if !ok {
		return PurposeDetails{}, dErrors.New(dErrors.CodePurposeNotFound, "purpose not found in agreement")
	}
	return PurposeDetails{
		Name:            purpose.Name,
		Description:     purpose.Description,
		RetentionPeriod: purpose.RetentionPeriod,
	}, nil
}
