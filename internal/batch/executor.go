// Package batch fans repeated registry calls out over input sequences. It
// never bypasses the authorization guard: every item delegates to the same
// service operations a caller would invoke one at a time.
//
// The batch contract is "isolate and report": a failing item lands as an
// error in its own result slot and the remaining items still run. There is
// no rollback and no atomicity across a batch. The single exception is the
// upfront parallel-array length check, which rejects the whole call before
// any item is processed.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bassrehab/oconsent/internal/agreement/models"
	"github.com/bassrehab/oconsent/internal/agreement/service"
	dErrors "github.com/bassrehab/oconsent/pkg/domain-errors"
)

const defaultVerifyConcurrency = 8

// Registry is the mutation surface the executor fans out over.
type Registry interface {
	Create(ctx context.Context, params service.CreateParams) (*models.Agreement, error)
	Update(ctx context.Context, id string, status models.Status, proofID, timestampProof, caller string) error
}

// Verifier answers the fail-soft consent query.
type Verifier interface {
	VerifyConsent(ctx context.Context, agreementID, purposeID, processor string, now time.Time) bool
}

// UpdateItem is one entry of a batch update.
type UpdateItem struct {
	ID             string
	Status         models.Status
	ProofID        string
	TimestampProof string
	Caller         string
}

// VerifyItem is one entry of a batch consent check.
type VerifyItem struct {
	AgreementID string
	PurposeID   string
	Processor   string
}

// Result is the per-item outcome of a batch mutation.
type Result struct {
	Err error
}

// OK reports whether the item succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// VerifyResult pairs a consent check with its verdict. Checks never fail,
// so every item always produces a result.
type VerifyResult struct {
	AgreementID string
	PurposeID   string
	Valid       bool
}

type Option func(*Executor)

// Executor orchestrates repeated calls into the registry and the
// verification engine over input sequences.
type Executor struct {
	registry          Registry
	verifier          Verifier
	logger            *slog.Logger
	verifyConcurrency int
}

func NewExecutor(registry Registry, verifier Verifier, logger *slog.Logger, opts ...Option) *Executor {
	e := &Executor{
		registry:          registry,
		verifier:          verifier,
		logger:            logger,
		verifyConcurrency: defaultVerifyConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithVerifyConcurrency bounds the number of in-flight checks in Verify.
// Values below one fall back to the default.
func WithVerifyConcurrency(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.verifyConcurrency = n
		}
	}
}

// BuildCreateItems assembles create parameters from parallel input arrays.
// Every array must have the same length as ids; a mismatch rejects the whole
// batch with invalid_input before any item is processed.
func BuildCreateItems(
	ids, subjects, processors []string,
	purposes [][]models.Purpose,
	validFroms, validUntils []time.Time,
	metadataHashes []string,
) ([]service.CreateParams, error) {
	n := len(ids)
	for name, l := range map[string]int{
		"subjects":        len(subjects),
		"processors":      len(processors),
		"purposes":        len(purposes),
		"valid_froms":     len(validFroms),
		"valid_untils":    len(validUntils),
		"metadata_hashes": len(metadataHashes),
	} {
		if l != n {
			return nil, dErrors.New(dErrors.CodeInvalidInput,
				fmt.Sprintf("%s length %d does not match ids length %d", name, l, n))
		}
	}

	items := make([]service.CreateParams, n)
	for i := 0; i < n; i++ {
		items[i] = service.CreateParams{
			ID:           ids[i],
			Subject:      subjects[i],
			Processor:    processors[i],
			Purposes:     purposes[i],
			ValidFrom:    validFroms[i],
			ValidUntil:   validUntils[i],
			MetadataHash: metadataHashes[i],
		}
	}
	return items, nil
}

// Create attempts every item against the registry independently, in input
// order. A failed item is captured in its result slot; prior successes are
// never rolled back.
func (e *Executor) Create(ctx context.Context, items []service.CreateParams) []Result {
	results := make([]Result, len(items))
	for i, item := range items {
		_, err := e.registry.Create(ctx, item)
		results[i] = Result{Err: err}
		if err != nil && e.logger != nil {
			e.logger.WarnContext(ctx, "batch create item failed",
				"index", i,
				"agreement_id", item.ID,
				"error", err,
			)
		}
	}
	return results
}

// Update applies every item against the registry independently, in input
// order, with the same per-item isolation as Create.
func (e *Executor) Update(ctx context.Context, items []UpdateItem) []Result {
	results := make([]Result, len(items))
	for i, item := range items {
		err := e.registry.Update(ctx, item.ID, item.Status, item.ProofID, item.TimestampProof, item.Caller)
		results[i] = Result{Err: err}
		if err != nil && e.logger != nil {
			e.logger.WarnContext(ctx, "batch update item failed",
				"index", i,
				"agreement_id", item.ID,
				"error", err,
			)
		}
	}
	return results
}

// Verify aggregates consent checks. Checks are pure reads, so running them
// concurrently is equivalent to sequential application; result slots are
// indexed by input position to keep the output ordered.
func (e *Executor) Verify(ctx context.Context, items []VerifyItem, now time.Time) []VerifyResult {
	results := make([]VerifyResult, len(items))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.verifyConcurrency)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			results[i] = VerifyResult{
				AgreementID: item.AgreementID,
				PurposeID:   item.PurposeID,
				Valid:       e.verifier.VerifyConsent(ctx, item.AgreementID, item.PurposeID, item.Processor, now),
			}
			return nil
		})
	}
	// Checks cannot fail, so Wait only synchronizes completion.
	_ = g.Wait()
	return results
}
