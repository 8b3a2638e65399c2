package models

import (
	"time"

	dErrors "github.com/bassrehab/oconsent/pkg/domain-errors"
)

// Status is the lifecycle state of an agreement. The well-known states are
// listed below, but the field stays an open string set: callers may record
// states this core does not interpret, and the only transition the registry
// refuses is revoked back to active.
type Status string

const (
	StatusActive     Status = "active"
	StatusRevoked    Status = "revoked"
	StatusRestricted Status = "restricted"
)

// Known reports whether the status is one of the states this core interprets.
func (s Status) Known() bool {
	switch s {
	case StatusActive, StatusRevoked, StatusRestricted:
		return true
	}
	return false
}

// Purpose is a named reason for which a processor may act on subject data.
// Purposes are immutable once appended to an agreement; there is no update
// or removal operation. RetentionPeriod is advisory and never enforced by
// verification.
type Purpose struct {
	ID              string
	Name            string
	Description     string
	RetentionPeriod time.Duration
	CreatedAt       time.Time
}

// Validate checks the purpose shape before it enters an agreement.
func (p Purpose) Validate() error {
	if p.ID == "" {
		return dErrors.New(dErrors.CodeValidation, "purpose id required")
	}
	if p.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "purpose name required")
	}
	if p.RetentionPeriod <= 0 {
		return dErrors.New(dErrors.CodeValidation, "retention period must be positive")
	}
	return nil
}

// Agreement binds one subject and one processor with a growing set of
// purposes, a validity window, and a status.
//
// # Immutability Invariant
//
// ID, Subject, and Processor never change after creation. Purposes is
// append-only and keeps insertion order; duplicate purpose ids within one
// agreement are permitted. A zero ValidUntil means the agreement has no
// upper validity bound.
type Agreement struct {
	ID             string
	Subject        string
	Processor      string
	Purposes       []Purpose
	ValidFrom      time.Time
	ValidUntil     time.Time
	MetadataHash   string
	Status         Status
	ProofID        string
	TimestampProof string
}

// NewAgreement creates an Agreement with domain invariant checks. Status is
// initialized to active and the proof references start empty.
func NewAgreement(id, subject, processor string, purposes []Purpose, validFrom, validUntil time.Time, metadataHash string) (*Agreement, error) {
	if id == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "agreement id required")
	}
	if subject == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "subject required")
	}
	if processor == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "processor required")
	}
	if validFrom.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "valid_from required")
	}
	if !validUntil.IsZero() && !validFrom.Before(validUntil) {
		return nil, dErrors.New(dErrors.CodeValidation, "valid_from must be before valid_until")
	}
	for _, p := range purposes {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return &Agreement{
		ID:         id,
		Subject:    subject,
		Processor:  processor,
		Purposes:   append([]Purpose(nil), purposes...),
		ValidFrom:  validFrom,
		ValidUntil: validUntil,
		// MetadataHash is an opaque off-chain reference; never parsed here.
		MetadataHash: metadataHash,
		Status:       StatusActive,
	}, nil
}

// FindPurpose returns the first purpose with the given id, preserving the
// reference behavior of scanning in insertion order.
func (a *Agreement) FindPurpose(purposeID string) (Purpose, bool) {
	for _, p := range a.Purposes {
		if p.ID == purposeID {
			return p, true
		}
	}
	return Purpose{}, false
}

// HasPurpose reports whether any purpose in the agreement carries the id.
func (a *Agreement) HasPurpose(purposeID string) bool {
	_, ok := a.FindPurpose(purposeID)
	return ok
}

// WithinValidity reports whether now falls inside the agreement's validity
// window. Both bounds are inclusive; a zero ValidUntil means unbounded.
func (a *Agreement) WithinValidity(now time.Time) bool {
	if now.Before(a.ValidFrom) {
		return false
	}
	if a.ValidUntil.IsZero() {
		return true
	}
	return !now.After(a.ValidUntil)
}

// Clone returns a deep copy so callers can never alias store-owned records.
func (a *Agreement) Clone() *Agreement {
	cp := *a
	cp.Purposes = append([]Purpose(nil), a.Purposes...)
	return &cp
}
