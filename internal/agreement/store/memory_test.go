package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bassrehab/oconsent/internal/agreement/models"
	"github.com/bassrehab/oconsent/internal/sentinel"
)

func agreementFixture(id, subject, processor string) *models.Agreement {
	return &models.Agreement{
		ID:        id,
		Subject:   subject,
		Processor: processor,
		Purposes: []models.Purpose{{
			ID:              "analytics",
			Name:            "Analytics",
			RetentionPeriod: time.Hour,
			CreatedAt:       time.Now(),
		}},
		ValidFrom: time.Now(),
		Status:    models.StatusActive,
	}
}

func TestInMemoryStoreOperations(t *testing.T) {
	s := New()
	ctx := context.Background()

	// Insert and get
	record := agreementFixture("ag-1", "alice", "acme")
	require.NoError(t, s.Insert(ctx, record))

	fetched, err := s.Get(ctx, "ag-1")
	require.NoError(t, err)
	assert.Equal(t, record.ID, fetched.ID)
	assert.Equal(t, record.Subject, fetched.Subject)

	// Duplicate insert leaves the first record unmodified
	dup := agreementFixture("ag-1", "bob", "globex")
	require.ErrorIs(t, s.Insert(ctx, dup), sentinel.ErrAlreadyExists)
	fetched, err = s.Get(ctx, "ag-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", fetched.Subject)

	// Put overwrites mutable fields
	fetched.Status = models.StatusRevoked
	fetched.ProofID = "proof-9"
	require.NoError(t, s.Put(ctx, fetched))
	updated, err := s.Get(ctx, "ag-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRevoked, updated.Status)
	assert.Equal(t, "proof-9", updated.ProofID)

	// Copy integrity: mutating a fetched record never leaks into the store
	updated.Purposes[0].Name = "Tampered"
	clean, err := s.Get(ctx, "ag-1")
	require.NoError(t, err)
	assert.Equal(t, "Analytics", clean.Purposes[0].Name)

	// Missing agreement
	_, err = s.Get(ctx, "ag-404")
	require.ErrorIs(t, err, sentinel.ErrNotFound)
	require.ErrorIs(t, s.Put(ctx, agreementFixture("ag-404", "x", "y")), sentinel.ErrNotFound)
}

func TestInMemoryStoreIndices(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, agreementFixture("ag-1", "alice", "acme")))
	require.NoError(t, s.Insert(ctx, agreementFixture("ag-2", "alice", "globex")))
	require.NoError(t, s.Insert(ctx, agreementFixture("ag-3", "bob", "acme")))

	bySubject, err := s.ListBySubject(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"ag-1", "ag-2"}, bySubject)

	byProcessor, err := s.ListByProcessor(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, []string{"ag-1", "ag-3"}, byProcessor)

	// Indices only grow at insert time; Put never rewrites them
	rec, err := s.Get(ctx, "ag-1")
	require.NoError(t, err)
	rec.Status = models.StatusRestricted
	require.NoError(t, s.Put(ctx, rec))
	bySubject, err = s.ListBySubject(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"ag-1", "ag-2"}, bySubject)

	// Unknown principals yield empty lists, never errors
	empty, err := s.ListBySubject(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
