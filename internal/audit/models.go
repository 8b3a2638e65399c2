package audit

import (
	"time"

	"github.com/bassrehab/oconsent/internal/agreement/models"
)

// Actions for registry domain events. Each is emitted exactly once per
// successful mutation, never on failure.
const (
	ActionAgreementCreated = "agreement_created"
	ActionAgreementUpdated = "agreement_updated"
	ActionPurposeAdded     = "purpose_added"
)

// Event is emitted from domain logic so audit and subscriber collaborators
// can observe registry mutations. Keep it transport-agnostic so stores and
// sinks can fan out.
type Event struct {
	Timestamp   time.Time
	Action      string
	AgreementID string
	Subject     string
	Processor   string
	PurposeID   string
	Status      models.Status
	ValidFrom   time.Time
	ValidUntil  time.Time
}

// Created builds the event for a successful agreement creation.
func Created(a *models.Agreement, at time.Time) Event {
	return Event{
		Timestamp:   at,
		Action:      ActionAgreementCreated,
		AgreementID: a.ID,
		Subject:     a.Subject,
		Processor:   a.Processor,
		ValidFrom:   a.ValidFrom,
		ValidUntil:  a.ValidUntil,
	}
}

// Updated builds the event for a successful status/proof update.
func Updated(agreementID string, status models.Status, at time.Time) Event {
	return Event{
		Timestamp:   at,
		Action:      ActionAgreementUpdated,
		AgreementID: agreementID,
		Status:      status,
	}
}

// PurposeAdded builds the event for a successful purpose append.
func PurposeAdded(agreementID, purposeID string, at time.Time) Event {
	return Event{
		Timestamp:   at,
		Action:      ActionPurposeAdded,
		AgreementID: agreementID,
		PurposeID:   purposeID,
	}
}
