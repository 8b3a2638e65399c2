package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bassrehab/oconsent/internal/batch"
	"github.com/bassrehab/oconsent/internal/verification"
	jsonutil "github.com/bassrehab/oconsent/internal/transport/http/json"
	"github.com/bassrehab/oconsent/internal/transport/http/shared"
	dErrors "github.com/bassrehab/oconsent/pkg/domain-errors"
	"github.com/bassrehab/oconsent/pkg/validation"
)

// VerificationService is the read-only query surface the verify handler
// delegates to.
type VerificationService interface {
	VerifyConsent(ctx context.Context, agreementID, purposeID, processor string, now time.Time) bool
	PurposeDetails(ctx context.Context, agreementID, purposeID string) (verification.PurposeDetails, error)
}

// BatchVerifier fans a set of consent checks out over the engine.
type BatchVerifier interface {
	Verify(ctx context.Context, items []batch.VerifyItem, now time.Time) []batch.VerifyResult
}

// VerifyHandler handles consent verification and purpose detail endpoints.
type VerifyHandler struct {
	logger   *slog.Logger
	engine   VerificationService
	executor BatchVerifier
}

func NewVerifyHandler(engine VerificationService, executor BatchVerifier, logger *slog.Logger) *VerifyHandler {
	return &VerifyHandler{logger: logger, engine: engine, executor: executor}
}

func (h *VerifyHandler) Register(r chi.Router) {
	r.Post("/verify", h.handleVerify)
	r.Post("/verify/batch", h.handleBatchVerify)
	r.Get("/agreements/{id}/purposes/{purposeID}", h.handlePurposeDetails)
}

func (h *VerifyHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	req.normalize()
	if err := validation.Validate(req); err != nil {
		shared.WriteError(w, err)
		return
	}

	valid := h.engine.VerifyConsent(r.Context(), req.AgreementID, req.PurposeID, req.Processor, checkTime(req.At))
	jsonutil.WriteJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

type batchVerifyItemResponse struct {
	AgreementID string `json:"agreement_id"`
	PurposeID   string `json:"purpose_id"`
	Valid       bool   `json:"valid"`
}

func (h *VerifyHandler) handleBatchVerify(w http.ResponseWriter, r *http.Request) {
	var req batchVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	req.normalize()
	if err := validation.Validate(req); err != nil {
		shared.WriteError(w, err)
		return
	}

	items := make([]batch.VerifyItem, len(req.Checks))
	for i, check := range req.Checks {
		items[i] = batch.VerifyItem{
			AgreementID: check.AgreementID,
			PurposeID:   check.PurposeID,
			Processor:   check.Processor,
		}
	}

	results := h.executor.Verify(r.Context(), items, checkTime(req.At))
	out := make([]batchVerifyItemResponse, len(results))
	for i, res := range results {
		out[i] = batchVerifyItemResponse{
			AgreementID: res.AgreementID,
			PurposeID:   res.PurposeID,
			Valid:       res.Valid,
		}
	}
	jsonutil.WriteJSON(w, http.StatusOK, map[string][]batchVerifyItemResponse{"results": out})
}

type purposeDetailsResponse struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	RetentionSeconds int64  `json:"retention_seconds"`
}

func (h *VerifyHandler) handlePurposeDetails(w http.ResponseWriter, r *http.Request) {
	details, err := h.engine.PurposeDetails(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "purposeID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, purposeDetailsResponse{
		Name:             details.Name,
		Description:      details.Description,
		RetentionSeconds: int64(details.RetentionPeriod / time.Second),
	})
}

// checkTime resolves the evaluation instant for a consent check. Explicit
// timestamps let auditors replay historical queries.
func checkTime(at int64) time.Time {
	if at > 0 {
		return time.Unix(at, 0).UTC()
	}
	return time.Now()
}
