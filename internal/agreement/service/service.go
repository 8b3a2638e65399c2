package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bassrehab/oconsent/internal/agreement/guard"
	"github.com/bassrehab/oconsent/internal/agreement/metrics"
	"github.com/bassrehab/oconsent/internal/agreement/models"
	"github.com/bassrehab/oconsent/internal/audit"
	"github.com/bassrehab/oconsent/internal/sentinel"
	dErrors "github.com/bassrehab/oconsent/pkg/domain-errors"
)

// Store defines the persistence interface for agreements.
// Error Contract:
// - Insert returns sentinel.ErrAlreadyExists on id collision
// - Get and Put return sentinel.ErrNotFound for missing agreements
// - List methods return nil on success or wrapped errors on failure
type Store interface {
	Insert(ctx context.Context, agreement *models.Agreement) error
	Get(ctx context.Context, id string) (*models.Agreement, error)
	Put(ctx context.Context, agreement *models.Agreement) error
	ListBySubject(ctx context.Context, subject string) ([]string, error)
	ListByProcessor(ctx context.Context, processor string) ([]string, error)
}

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store

// CreateParams carries everything needed to register a new agreement. An
// empty ID lets the transport layer assign one before the call reaches here.
type CreateParams struct {
	ID           string
	Subject      string
	Processor    string
	Purposes     []models.Purpose
	ValidFrom    time.Time
	ValidUntil   time.Time
	MetadataHash string
}

// ListFilter narrows index lookups by status. A nil filter returns every id
// in the index.
type ListFilter struct {
	Status *models.Status
}

type Option func(*Service)

// Service is the agreement registry. Every mutation passes the authorization
// guard before touching the store and runs under a single writer lock so the
// read-check-write sequence of concurrent mutations never interleaves.
// Reads bypass the lock entirely and are unaffected by pause.
type Service struct {
	store    Store
	auditor  *audit.Publisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	operator string

	mu     sync.Mutex
	paused bool
}

func NewService(store Store, auditor *audit.Publisher, logger *slog.Logger, operator string, opts ...Option) *Service {
	svc := &Service{
		store:    store,
		auditor:  auditor,
		logger:   logger,
		operator: operator,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// WithMetrics sets the metrics instance for the service
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// Create registers a new agreement. The id must be globally unique for the
// lifetime of the store; status starts active with empty proof references.
func (s *Service) Create(ctx context.Context, params CreateParams) (*models.Agreement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkNotPaused(); err != nil {
		return nil, err
	}

	agreement, err := models.NewAgreement(
		params.ID, params.Subject, params.Processor, params.Purposes,
		params.ValidFrom, params.ValidUntil, params.MetadataHash,
	)
	if err != nil {
		s.countRejection(err)
		return nil, err
	}

	insertStart := time.Now()
	err = s.store.Insert(ctx, agreement)
	s.observeStore("insert", insertStart)
	if err != nil {
		if errors.Is(err, sentinel.ErrAlreadyExists) {
			err = dErrors.New(dErrors.CodeAlreadyExists, "agreement id already exists")
			s.countRejection(err)
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to insert agreement")
	}

	now := time.Now()
	s.emit(ctx, audit.Created(agreement, now))
	if s.metrics != nil {
		s.metrics.IncrementAgreementsCreated()
	}
	s.logger.InfoContext(ctx, "agreement created",
		"agreement_id", agreement.ID,
		"subject", agreement.Subject,
		"processor", agreement.Processor,
	)
	return agreement, nil
}

// Update overwrites the agreement's status and proof references. Only the
// subject or processor may update, and a revoked agreement can never be
// reactivated.
func (s *Service) Update(ctx context.Context, id string, status models.Status, proofID, timestampProof, caller string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkNotPaused(); err != nil {
		return err
	}
	if status == "" {
		err := dErrors.New(dErrors.CodeValidation, "status required")
		s.countRejection(err)
		return err
	}

	agreement, err := s.load(ctx, id)
	if err != nil {
		s.countRejection(err)
		return err
	}
	if !guard.IsParticipant(agreement, caller) {
		err := dErrors.New(dErrors.CodeUnauthorized, "caller is not a participant of the agreement")
		s.countRejection(err)
		return err
	}
	if !guard.IsLegalTransition(agreement.Status, status) {
		err := dErrors.New(dErrors.CodeInvalidTransition, "revoked agreements cannot be reactivated")
		s.countRejection(err)
		return err
	}

	agreement.Status = status
	agreement.ProofID = proofID
	agreement.TimestampProof = timestampProof
	putStart := time.Now()
	err = s.store.Put(ctx, agreement)
	s.observeStore("put", putStart)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update agreement")
	}

	now := time.Now()
	s.emit(ctx, audit.Updated(id, status, now))
	if s.metrics != nil {
		s.metrics.IncrementAgreementsUpdated(string(status))
	}
	s.logger.InfoContext(ctx, "agreement updated",
		"agreement_id", id,
		"status", status,
		"caller", caller,
	)
	return nil
}

// AddPurpose appends a purpose to the agreement. Only the processor may add
// purposes; the subject is deliberately excluded. Duplicate purpose ids are
// not checked, matching the reference registry.
func (s *Service) AddPurpose(ctx context.Context, id string, purpose models.Purpose, caller string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkNotPaused(); err != nil {
		return err
	}

	agreement, err := s.load(ctx, id)
	if err != nil {
		s.countRejection(err)
		return err
	}
	if !guard.IsProcessor(agreement, caller) {
		err := dErrors.New(dErrors.CodeUnauthorized, "only the processor may add purposes")
		s.countRejection(err)
		return err
	}
	if err := purpose.Validate(); err != nil {
		s.countRejection(err)
		return err
	}

	if purpose.CreatedAt.IsZero() {
		purpose.CreatedAt = time.Now()
	}
	agreement.Purposes = append(agreement.Purposes, purpose)
	putStart := time.Now()
	err = s.store.Put(ctx, agreement)
	s.observeStore("put", putStart)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append purpose")
	}

	now := time.Now()
	s.emit(ctx, audit.PurposeAdded(id, purpose.ID, now))
	if s.metrics != nil {
		s.metrics.IncrementPurposesAdded()
	}
	s.logger.InfoContext(ctx, "purpose added",
		"agreement_id", id,
		"purpose_id", purpose.ID,
		"caller", caller,
	)
	return nil
}

// Get returns the agreement or a not_found error. Reads are never blocked by
// the pause switch.
func (s *Service) Get(ctx context.Context, id string) (*models.Agreement, error) {
	return s.load(ctx, id)
}

// ListBySubject returns the ids of agreements naming the subject, in
// creation order, optionally narrowed by status.
func (s *Service) ListBySubject(ctx context.Context, subject string, filter *ListFilter) ([]string, error) {
	listStart := time.Now()
	ids, err := s.store.ListBySubject(ctx, subject)
	s.observeStore("list_by_subject", listStart)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list agreements by subject")
	}
	return s.filterIDs(ctx, ids, filter)
}

// ListByProcessor returns the ids of agreements naming the processor, in
// creation order, optionally narrowed by status.
func (s *Service) ListByProcessor(ctx context.Context, processor string, filter *ListFilter) ([]string, error) {
	listStart := time.Now()
	ids, err := s.store.ListByProcessor(ctx, processor)
	s.observeStore("list_by_processor", listStart)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list agreements by processor")
	}
	return s.filterIDs(ctx, ids, filter)
}

// Pause stops all mutations until Resume. Restricted to the operator.
func (s *Service) Pause(ctx context.Context, caller string) error {
	return s.setPaused(ctx, caller, true)
}

// Resume re-enables mutations. Restricted to the operator.
func (s *Service) Resume(ctx context.Context, caller string) error {
	return s.setPaused(ctx, caller, false)
}

// Paused reports the kill switch state.
func (s *Service) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *Service) setPaused(ctx context.Context, caller string, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if caller == "" || caller != s.operator {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not the registry operator")
	}
	s.paused = paused
	if s.metrics != nil {
		s.metrics.SetPaused(paused)
	}
	s.logger.WarnContext(ctx, "registry pause state changed",
		"paused", paused,
		"caller", caller,
	)
	return nil
}

// checkNotPaused must be called with s.mu held.
func (s *Service) checkNotPaused() error {
	if s.paused {
		err := dErrors.New(dErrors.CodePaused, "registry is paused")
		s.countRejection(err)
		return err
	}
	return nil
}

func (s *Service) load(ctx context.Context, id string) (*models.Agreement, error) {
	getStart := time.Now()
	agreement, err := s.store.Get(ctx, id)
	s.observeStore("get", getStart)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "agreement not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read agreement")
	}
	return agreement, nil
}

func (s *Service) filterIDs(ctx context.Context, ids []string, filter *ListFilter) ([]string, error) {
	if filter == nil || filter.Status == nil {
		return ids, nil
	}
	filtered := []string{}
	for _, id := range ids {
		agreement, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if agreement.Status == *filter.Status {
			filtered = append(filtered, id)
		}
	}
	return filtered, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	_ = s.auditor.Emit(ctx, event)
}

func (s *Service) observeStore(operation string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveStoreOperationLatency(operation, time.Since(start).Seconds())
}

func (s *Service) countRejection(err error) {
	if s.metrics == nil {
		return
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		s.metrics.IncrementMutationsRejected(string(de.Code))
	}
}
