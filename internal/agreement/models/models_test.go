package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "github.com/bassrehab/oconsent/pkg/domain-errors"
)

func validPurpose() Purpose {
	return Purpose{
		ID:              "marketing",
		Name:            "Marketing",
		Description:     "Campaign targeting",
		RetentionPeriod: 30 * 24 * time.Hour,
		CreatedAt:       time.Now(),
	}
}

func TestNewAgreement(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	until := from.Add(time.Hour)

	t.Run("initializes status and proof fields", func(t *testing.T) {
		a, err := NewAgreement("ag-1", "sub-1", "proc-1", []Purpose{validPurpose()}, from, until, "Qmhash")
		require.NoError(t, err)
		assert.Equal(t, StatusActive, a.Status)
		assert.Empty(t, a.ProofID)
		assert.Empty(t, a.TimestampProof)
		assert.Len(t, a.Purposes, 1)
	})

	t.Run("rejects missing identifiers", func(t *testing.T) {
		_, err := NewAgreement("", "sub-1", "proc-1", nil, from, until, "")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = NewAgreement("ag-1", "", "proc-1", nil, from, until, "")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = NewAgreement("ag-1", "sub-1", "", nil, from, until, "")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects inverted validity window", func(t *testing.T) {
		_, err := NewAgreement("ag-1", "sub-1", "proc-1", nil, until, from, "")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("accepts unbounded validity", func(t *testing.T) {
		a, err := NewAgreement("ag-1", "sub-1", "proc-1", nil, from, time.Time{}, "")
		require.NoError(t, err)
		assert.True(t, a.ValidUntil.IsZero())
	})

	t.Run("rejects malformed purposes", func(t *testing.T) {
		p := validPurpose()
		p.RetentionPeriod = 0
		_, err := NewAgreement("ag-1", "sub-1", "proc-1", []Purpose{p}, from, until, "")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestWithinValidity(t *testing.T) {
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	until := from.Add(time.Hour)

	t.Run("bounds are inclusive", func(t *testing.T) {
		a := &Agreement{ValidFrom: from, ValidUntil: until}
		assert.True(t, a.WithinValidity(from))
		assert.True(t, a.WithinValidity(until))
		assert.False(t, a.WithinValidity(from.Add(-time.Second)))
		assert.False(t, a.WithinValidity(until.Add(time.Second)))
	})

	t.Run("zero valid_until means no upper bound", func(t *testing.T) {
		a := &Agreement{ValidFrom: from}
		assert.True(t, a.WithinValidity(from.Add(1000000*time.Hour)))
		assert.False(t, a.WithinValidity(from.Add(-time.Second)))
	})
}

func TestFindPurpose(t *testing.T) {
	first := validPurpose()
	dup := validPurpose()
	dup.Name = "Duplicate"

	a := &Agreement{Purposes: []Purpose{first, dup}}

	t.Run("returns first match in insertion order", func(t *testing.T) {
		p, ok := a.FindPurpose("marketing")
		require.True(t, ok)
		assert.Equal(t, "Marketing", p.Name)
	})

	t.Run("reports missing purpose", func(t *testing.T) {
		_, ok := a.FindPurpose("analytics")
		assert.False(t, ok)
	})
}

func TestClone(t *testing.T) {
	a := &Agreement{ID: "ag-1", Purposes: []Purpose{validPurpose()}}
	cp := a.Clone()
	cp.Purposes[0].Name = "Changed"
	cp.Status = StatusRevoked

	assert.Equal(t, "Marketing", a.Purposes[0].Name)
	assert.NotEqual(t, a.Status, cp.Status)
}

func TestStatusKnown(t *testing.T) {
	assert.True(t, StatusActive.Known())
	assert.True(t, StatusRevoked.Known())
	assert.True(t, StatusRestricted.Known())
	assert.False(t, Status("suspended").Known())
}
