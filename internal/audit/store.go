package audit

import "context"

// Store is the append-only sink for registry events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByAgreement(ctx context.Context, agreementID string) ([]Event, error)
}
