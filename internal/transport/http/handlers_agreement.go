package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bassrehab/oconsent/internal/agreement/models"
	"github.com/bassrehab/oconsent/internal/agreement/service"
	"github.com/bassrehab/oconsent/internal/platform/middleware"
	jsonutil "github.com/bassrehab/oconsent/internal/transport/http/json"
	"github.com/bassrehab/oconsent/internal/transport/http/shared"
	dErrors "github.com/bassrehab/oconsent/pkg/domain-errors"
	"github.com/bassrehab/oconsent/pkg/validation"
)

// RegistryService is the mutation and read surface the agreement handler
// delegates to.
type RegistryService interface {
	Create(ctx context.Context, params service.CreateParams) (*models.Agreement, error)
	Update(ctx context.Context, id string, status models.Status, proofID, timestampProof, caller string) error
	AddPurpose(ctx context.Context, id string, purpose models.Purpose, caller string) error
	Get(ctx context.Context, id string) (*models.Agreement, error)
	ListBySubject(ctx context.Context, subject string, filter *service.ListFilter) ([]string, error)
	ListByProcessor(ctx context.Context, processor string, filter *service.ListFilter) ([]string, error)
	Pause(ctx context.Context, caller string) error
	Resume(ctx context.Context, caller string) error
}

// AgreementHandler handles the agreement lifecycle endpoints.
type AgreementHandler struct {
	logger   *slog.Logger
	registry RegistryService
}

func NewAgreementHandler(registry RegistryService, logger *slog.Logger) *AgreementHandler {
	return &AgreementHandler{logger: logger, registry: registry}
}

func (h *AgreementHandler) Register(r chi.Router) {
	r.Post("/agreements", h.handleCreate)
	r.Get("/agreements", h.handleList)
	r.Get("/agreements/{id}", h.handleGet)
	r.Patch("/agreements/{id}", h.handleUpdate)
	r.Post("/agreements/{id}/purposes", h.handleAddPurpose)

	r.Post("/admin/pause", h.handlePause)
	r.Post("/admin/resume", h.handleResume)
}

func (h *AgreementHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createAgreementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	req.normalize()
	if err := validation.Validate(req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	agreement, err := h.registry.Create(r.Context(), req.toParams())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusCreated, agreementFromModel(agreement))
}

func (h *AgreementHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	agreement, err := h.registry.Get(r.Context(), id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, agreementFromModel(agreement))
}

// handleList answers subject and processor index queries. Exactly one of the
// subject and processor query parameters must be set.
func (h *AgreementHandler) handleList(w http.ResponseWriter, r *http.Request) {
	subject := r.URL.Query().Get("subject")
	processor := r.URL.Query().Get("processor")
	if (subject == "") == (processor == "") {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "exactly one of subject or processor is required"))
		return
	}

	var filter *service.ListFilter
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := models.Status(raw)
		filter = &service.ListFilter{Status: &status}
	}

	var (
		ids []string
		err error
	)
	if subject != "" {
		ids, err = h.registry.ListBySubject(r.Context(), subject, filter)
	} else {
		ids, err = h.registry.ListByProcessor(r.Context(), processor, filter)
	}
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	jsonutil.WriteJSON(w, http.StatusOK, map[string][]string{"agreement_ids": ids})
}

func (h *AgreementHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateAgreementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	req.normalize()
	if err := validation.Validate(req); err != nil {
		shared.WriteError(w, err)
		return
	}

	caller := middleware.GetCaller(r.Context())
	if err := h.registry.Update(r.Context(), id, models.Status(req.Status), req.ProofID, req.TimestampProof, caller); err != nil {
		shared.WriteError(w, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

func (h *AgreementHandler) handleAddPurpose(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req purposePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	req.normalize()
	if err := validation.Validate(req); err != nil {
		shared.WriteError(w, err)
		return
	}

	caller := middleware.GetCaller(r.Context())
	if err := h.registry.AddPurpose(r.Context(), id, req.toModel(), caller); err != nil {
		shared.WriteError(w, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusCreated, map[string]string{"purpose_id": req.ID})
}

func (h *AgreementHandler) handlePause(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCaller(r.Context())
	if err := h.registry.Pause(r.Context(), caller); err != nil {
		shared.WriteError(w, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, map[string]bool{"paused": true})
}

func (h *AgreementHandler) handleResume(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetCaller(r.Context())
	if err := h.registry.Resume(r.Context(), caller); err != nil {
		shared.WriteError(w, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, map[string]bool{"paused": false})
}
