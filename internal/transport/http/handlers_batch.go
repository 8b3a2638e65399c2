package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bassrehab/oconsent/internal/agreement/models"
	"github.com/bassrehab/oconsent/internal/agreement/service"
	"github.com/bassrehab/oconsent/internal/batch"
	"github.com/bassrehab/oconsent/internal/platform/middleware"
	jsonutil "github.com/bassrehab/oconsent/internal/transport/http/json"
	"github.com/bassrehab/oconsent/internal/transport/http/shared"
	dErrors "github.com/bassrehab/oconsent/pkg/domain-errors"
	"github.com/bassrehab/oconsent/pkg/validation"
)

// BatchRegistry is the mutation fan-out surface the batch handler delegates to.
type BatchRegistry interface {
	Create(ctx context.Context, items []service.CreateParams) []batch.Result
	Update(ctx context.Context, items []batch.UpdateItem) []batch.Result
}

// BatchHandler handles bulk agreement mutations with per-item isolation.
type BatchHandler struct {
	logger   *slog.Logger
	executor BatchRegistry
}

func NewBatchHandler(executor BatchRegistry, logger *slog.Logger) *BatchHandler {
	return &BatchHandler{logger: logger, executor: executor}
}

func (h *BatchHandler) Register(r chi.Router) {
	r.Post("/agreements/batch", h.handleBatchCreate)
	r.Patch("/agreements/batch", h.handleBatchUpdate)
}

type batchItemResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (h *BatchHandler) handleBatchCreate(w http.ResponseWriter, r *http.Request) {
	var req batchCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	req.normalize()

	purposes := make([][]models.Purpose, len(req.Purposes))
	for i, list := range req.Purposes {
		purposes[i] = make([]models.Purpose, len(list))
		for j, p := range list {
			purposes[i][j] = p.toModel()
		}
	}

	items, err := batch.BuildCreateItems(
		req.IDs, req.Subjects, req.Processors, purposes,
		unixSliceToTimes(req.ValidFroms), unixSliceToTimes(req.ValidUntils),
		req.MetadataHashes,
	)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	results := h.executor.Create(r.Context(), items)
	jsonutil.WriteJSON(w, http.StatusOK, map[string][]batchItemResponse{
		"results": itemResponses(results),
	})
}

func (h *BatchHandler) handleBatchUpdate(w http.ResponseWriter, r *http.Request) {
	var req batchUpdateRequest
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
	items := make([]batch.UpdateItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = batch.UpdateItem{
			ID:             item.AgreementID,
			Status:         models.Status(item.Status),
			ProofID:        item.ProofID,
			TimestampProof: item.TimestampProof,
			Caller:         caller,
		}
	}

	results := h.executor.Update(r.Context(), items)
	jsonutil.WriteJSON(w, http.StatusOK, map[string][]batchItemResponse{
		"results": itemResponses(results),
	})
}

func itemResponses(results []batch.Result) []batchItemResponse {
	out := make([]batchItemResponse, len(results))
	for i, res := range results {
		out[i] = batchItemResponse{OK: res.OK()}
		if res.Err != nil {
			out[i].Error = shared.DomainCodeToHTTPCode(domainCode(res.Err))
		}
	}
	return out
}

func domainCode(err error) dErrors.Code {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return de.Code
	}
	return dErrors.CodeInternal
}

func unixSliceToTimes(secs []int64) []time.Time {
	times := make([]time.Time, len(secs))
	for i, sec := range secs {
		times[i] = unixToTime(sec)
	}
	return times
}
