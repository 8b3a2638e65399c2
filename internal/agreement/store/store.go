package store

import (
	"context"

	"github.com/bassrehab/oconsent/internal/agreement/models"
)

// Error Contract:
// All store methods follow this error pattern:
// - Insert returns sentinel.ErrAlreadyExists when the agreement id is taken
// - Get and Put return sentinel.ErrNotFound when the agreement does not exist
// - List methods always succeed with an empty slice when nothing matches
// - Infrastructure failures surface as wrapped errors with context

// Store is the canonical agreement registry. Implementations must keep the
// subject and processor indices append-only: an agreement id enters each
// index exactly once, at insert time, and is never rewritten.
type Store interface {
	Insert(ctx context.Context, agreement *models.Agreement) error
	Get(ctx context.Context, id string) (*models.Agreement, error)
	Put(ctx context.Context, agreement *models.Agreement) error
	ListBySubject(ctx context.Context, subject string) ([]string, error)
	ListByProcessor(ctx context.Context, processor string) ([]string, error)
}
