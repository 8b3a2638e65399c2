package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/bassrehab/oconsent/internal/agreement/metrics"
	"github.com/bassrehab/oconsent/internal/agreement/models"
	"github.com/bassrehab/oconsent/internal/agreement/service/mocks"
	"github.com/bassrehab/oconsent/internal/agreement/store"
	"github.com/bassrehab/oconsent/internal/audit"
	dErrors "github.com/bassrehab/oconsent/pkg/domain-errors"
)

const operator = "registry-operator"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func purposeFixture(id string) models.Purpose {
	return models.Purpose{
		ID:              id,
		Name:            "Purpose " + id,
		Description:     "desc",
		RetentionPeriod: 24 * time.Hour,
		CreatedAt:       time.Now(),
	}
}

func createParams(id string) CreateParams {
	return CreateParams{
		ID:           id,
		Subject:      "alice",
		Processor:    "acme",
		Purposes:     []models.Purpose{purposeFixture("analytics")},
		ValidFrom:    time.Now().Add(-time.Hour),
		MetadataHash: "QmMetadata",
	}
}

// =============================================================================
// Error propagation across the store boundary (mocked store)
// =============================================================================

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	mockStore *mocks.MockStore
	service   *Service
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockStore = mocks.NewMockStore(s.ctrl)
	s.service = NewService(s.mockStore, nil, discardLogger(), operator)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) TestCreate_StoreErrorPropagation() {
	s.mockStore.EXPECT().
		Insert(gomock.Any(), gomock.Any()).
		Return(assert.AnError)

	_, err := s.service.Create(context.Background(), createParams("ag-1"))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal), "expected CodeInternal for store insert error")
}

func (s *ServiceSuite) TestUpdate_StoreErrorPropagation() {
	agreement := &models.Agreement{ID: "ag-1", Subject: "alice", Processor: "acme", Status: models.StatusActive}

	s.mockStore.EXPECT().
		Get(gomock.Any(), "ag-1").
		Return(agreement, nil)
	s.mockStore.EXPECT().
		Put(gomock.Any(), gomock.Any()).
		Return(assert.AnError)

	err := s.service.Update(context.Background(), "ag-1", models.StatusRestricted, "", "", "alice")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal), "expected CodeInternal for store put error")
}

func (s *ServiceSuite) TestGet_StoreErrorPropagation() {
	s.mockStore.EXPECT().
		Get(gomock.Any(), "ag-1").
		Return(nil, assert.AnError)

	_, err := s.service.Get(context.Background(), "ag-1")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

// =============================================================================
// Registry behavior against the real in-memory store
// =============================================================================

type RegistrySuite struct {
	suite.Suite
	ctx        context.Context
	service    *Service
	auditStore *audit.InMemoryStore
}

func (s *RegistrySuite) SetupTest() {
	s.ctx = context.Background()
	s.auditStore = audit.NewInMemoryStore()
	auditor := audit.NewPublisher(s.auditStore)
	s.service = NewService(store.New(), auditor, discardLogger(), operator)
}

// SetupSubTest gives every s.Run block the same fresh registry SetupTest
// gives top-level tests; subtests create all the state they assert on.
func (s *RegistrySuite) SetupSubTest() {
	s.SetupTest()
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) TestCreate() {
	s.Run("initializes status and emits created event", func() {
		a, err := s.service.Create(s.ctx, createParams("ag-create"))
		s.Require().NoError(err)
		s.Equal(models.StatusActive, a.Status)
		s.Empty(a.ProofID)

		events, err := s.auditStore.ListByAgreement(s.ctx, "ag-create")
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(audit.ActionAgreementCreated, events[0].Action)
		s.Equal("alice", events[0].Subject)
		s.Equal("acme", events[0].Processor)
	})

	s.Run("duplicate id rejected, first record untouched, no second event", func() {
		_, err := s.service.Create(s.ctx, createParams("ag-dup"))
		s.Require().NoError(err)

		params := createParams("ag-dup")
		params.Subject = "bob"
		_, err = s.service.Create(s.ctx, params)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyExists))

		a, err := s.service.Get(s.ctx, "ag-dup")
		s.Require().NoError(err)
		s.Equal("alice", a.Subject)

		events, err := s.auditStore.ListByAgreement(s.ctx, "ag-dup")
		s.Require().NoError(err)
		s.Len(events, 1)
	})

	s.Run("invalid validity window rejected before any state change", func() {
		params := createParams("ag-window")
		params.ValidFrom = time.Now()
		params.ValidUntil = params.ValidFrom.Add(-time.Hour)
		_, err := s.service.Create(s.ctx, params)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = s.service.Get(s.ctx, "ag-window")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *RegistrySuite) TestUpdate() {
	s.Run("missing agreement yields not_found", func() {
		err := s.service.Update(s.ctx, "ag-missing", models.StatusRevoked, "", "", "alice")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("subject and processor may update, strangers may not", func() {
		_, err := s.service.Create(s.ctx, createParams("ag-upd"))
		s.Require().NoError(err)

		s.Require().NoError(s.service.Update(s.ctx, "ag-upd", models.StatusRestricted, "p1", "t1", "alice"))
		s.Require().NoError(s.service.Update(s.ctx, "ag-upd", models.StatusActive, "p2", "t2", "acme"))

		err = s.service.Update(s.ctx, "ag-upd", models.StatusRevoked, "", "", "mallory")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

		a, err := s.service.Get(s.ctx, "ag-upd")
		s.Require().NoError(err)
		s.Equal(models.StatusActive, a.Status)
		s.Equal("p2", a.ProofID)
		s.Equal("t2", a.TimestampProof)
	})

	s.Run("revoked agreements can never return to active", func() {
		_, err := s.service.Create(s.ctx, createParams("ag-rev"))
		s.Require().NoError(err)
		s.Require().NoError(s.service.Update(s.ctx, "ag-rev", models.StatusRevoked, "", "", "alice"))

		// Rejected for every participant, not just the original caller.
		err = s.service.Update(s.ctx, "ag-rev", models.StatusActive, "", "", "alice")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
		err = s.service.Update(s.ctx, "ag-rev", models.StatusActive, "", "", "acme")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

		// Other transitions out of revoked stay open.
		s.NoError(s.service.Update(s.ctx, "ag-rev", models.StatusRestricted, "", "", "alice"))
	})

	s.Run("caller-supplied statuses outside the known set are accepted", func() {
		_, err := s.service.Create(s.ctx, createParams("ag-open"))
		s.Require().NoError(err)
		s.Require().NoError(s.service.Update(s.ctx, "ag-open", models.Status("suspended"), "", "", "acme"))

		a, err := s.service.Get(s.ctx, "ag-open")
		s.Require().NoError(err)
		s.Equal(models.Status("suspended"), a.Status)
	})

	s.Run("no event emitted on failed update", func() {
		_, err := s.service.Create(s.ctx, createParams("ag-noevent"))
		s.Require().NoError(err)
		before, _ := s.auditStore.ListByAgreement(s.ctx, "ag-noevent")

		err = s.service.Update(s.ctx, "ag-noevent", models.StatusRevoked, "", "", "mallory")
		s.Require().Error(err)

		after, _ := s.auditStore.ListByAgreement(s.ctx, "ag-noevent")
		s.Len(after, len(before))
	})
}

func (s *RegistrySuite) TestAddPurpose() {
	s.Run("subject is refused, processor appends in order", func() {
		_, err := s.service.Create(s.ctx, createParams("ag-purpose"))
		s.Require().NoError(err)

		err = s.service.AddPurpose(s.ctx, "ag-purpose", purposeFixture("billing"), "alice")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

		s.Require().NoError(s.service.AddPurpose(s.ctx, "ag-purpose", purposeFixture("billing"), "acme"))

		a, err := s.service.Get(s.ctx, "ag-purpose")
		s.Require().NoError(err)
		s.Require().Len(a.Purposes, 2)
		s.Equal("analytics", a.Purposes[0].ID)
		s.Equal("billing", a.Purposes[1].ID)

		events, _ := s.auditStore.ListByAgreement(s.ctx, "ag-purpose")
		s.Require().Len(events, 2)
		s.Equal(audit.ActionPurposeAdded, events[1].Action)
		s.Equal("billing", events[1].PurposeID)
	})

	s.Run("duplicate purpose ids are permitted", func() {
		_, err := s.service.Create(s.ctx, createParams("ag-dup-purpose"))
		s.Require().NoError(err)

		s.Require().NoError(s.service.AddPurpose(s.ctx, "ag-dup-purpose", purposeFixture("analytics"), "acme"))

		a, err := s.service.Get(s.ctx, "ag-dup-purpose")
		s.Require().NoError(err)
		s.Len(a.Purposes, 2)
	})

	s.Run("malformed purpose rejected", func() {
		_, err := s.service.Create(s.ctx, createParams("ag-bad-purpose"))
		s.Require().NoError(err)

		p := purposeFixture("bad")
		p.RetentionPeriod = 0
		err = s.service.AddPurpose(s.ctx, "ag-bad-purpose", p, "acme")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *RegistrySuite) TestPauseResume() {
	s.Run("only the operator controls the kill switch", func() {
		err := s.service.Pause(s.ctx, "alice")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.False(s.service.Paused())

		s.Require().NoError(s.service.Pause(s.ctx, operator))
		s.True(s.service.Paused())
	})

	s.Run("paused registry refuses every mutation but serves reads", func() {
		_, err := s.service.Create(s.ctx, createParams("ag-paused"))
		s.Require().NoError(err)
		s.Require().NoError(s.service.Pause(s.ctx, operator))

		_, err = s.service.Create(s.ctx, createParams("ag-paused-2"))
		s.True(dErrors.HasCode(err, dErrors.CodePaused))
		err = s.service.Update(s.ctx, "ag-paused", models.StatusRevoked, "", "", "alice")
		s.True(dErrors.HasCode(err, dErrors.CodePaused))
		err = s.service.AddPurpose(s.ctx, "ag-paused", purposeFixture("x"), "acme")
		s.True(dErrors.HasCode(err, dErrors.CodePaused))

		a, err := s.service.Get(s.ctx, "ag-paused")
		s.Require().NoError(err)
		s.Equal(models.StatusActive, a.Status)

		ids, err := s.service.ListBySubject(s.ctx, "alice", nil)
		s.Require().NoError(err)
		s.Contains(ids, "ag-paused")

		s.Require().NoError(s.service.Resume(s.ctx, operator))
		_, err = s.service.Create(s.ctx, createParams("ag-resumed"))
		s.NoError(err)
	})
}

func (s *RegistrySuite) TestListFilters() {
	_, err := s.service.Create(s.ctx, createParams("ag-list-1"))
	s.Require().NoError(err)
	_, err = s.service.Create(s.ctx, createParams("ag-list-2"))
	s.Require().NoError(err)
	s.Require().NoError(s.service.Update(s.ctx, "ag-list-2", models.StatusRevoked, "", "", "alice"))

	ids, err := s.service.ListBySubject(s.ctx, "alice", nil)
	s.Require().NoError(err)
	s.Equal([]string{"ag-list-1", "ag-list-2"}, ids)

	active := models.StatusActive
	ids, err = s.service.ListBySubject(s.ctx, "alice", &ListFilter{Status: &active})
	s.Require().NoError(err)
	s.Equal([]string{"ag-list-1"}, ids)

	revoked := models.StatusRevoked
	ids, err = s.service.ListByProcessor(s.ctx, "acme", &ListFilter{Status: &revoked})
	s.Require().NoError(err)
	s.Equal([]string{"ag-list-2"}, ids)

	ids, err = s.service.ListBySubject(s.ctx, "nobody", nil)
	s.Require().NoError(err)
	s.Empty(ids)
}

func TestStoreLatencyObserved(t *testing.T) {
	// Collectors register against the default registry, so one instance
	// serves the whole test binary.
	m := metrics.New()
	svc := NewService(store.New(), nil, discardLogger(), operator, WithMetrics(m))

	_, err := svc.Create(context.Background(), createParams("ag-metrics"))
	require.NoError(t, err)
	_, err = svc.Get(context.Background(), "ag-metrics")
	require.NoError(t, err)
	_, err = svc.ListBySubject(context.Background(), "alice", nil)
	require.NoError(t, err)

	// One histogram series per touched operation label.
	assert.Equal(t, 3, testutil.CollectAndCount(m.StoreOperationLatency))
}

func TestCreateAssignsNothingImplicit(t *testing.T) {
	// The registry never invents ids or participants; that belongs to callers.
	svc := NewService(store.New(), nil, discardLogger(), operator)
	_, err := svc.Create(context.Background(), CreateParams{Subject: "alice", Processor: "acme", ValidFrom: time.Now()})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
