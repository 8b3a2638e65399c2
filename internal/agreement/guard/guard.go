// Package guard holds the authorization predicates checked before every
// registry mutation. They are pure functions with no state so the rules can
// be tested in isolation from the store.
package guard

import "github.com/bassrehab/oconsent/internal/agreement/models"

// IsParticipant reports whether the caller is the agreement's subject or
// processor. Update is restricted to participants.
func IsParticipant(a *models.Agreement, caller string) bool {
	return caller == a.Subject || caller == a.Processor
}

// IsProcessor reports whether the caller is the agreement's processor.
// Only the processor, never the subject, may add purposes.
func IsProcessor(a *models.Agreement, caller string) bool {
	return caller == a.Processor
}

// IsLegalTransition reports whether a status change is allowed by state.
// The single restriction is that a revoked agreement can never return to
// active, regardless of caller.
func IsLegalTransition(from, to models.Status) bool {
	return !(from == models.StatusRevoked && to == models.StatusActive)
}
