package httptransport

import (
	"time"

	"github.com/bassrehab/oconsent/internal/agreement/models"
	"github.com/bassrehab/oconsent/internal/agreement/service"
	s "github.com/bassrehab/oconsent/pkg/string"
)

// Validity bounds travel as unix seconds on the wire; zero means unbounded.

type purposePayload struct {
	ID               string `json:"id" validate:"required,notblank"`
	Name             string `json:"name" validate:"required,notblank"`
	Description      string `json:"description"`
	RetentionSeconds int64  `json:"retention_seconds" validate:"gt=0"`
	CreatedAt        int64  `json:"created_at,omitempty"`
}

func (p *purposePayload) normalize() {
	s.TrimStrings(&p.ID, &p.Name)
}

func (p purposePayload) toModel() models.Purpose {
	purpose := models.Purpose{
		ID:              p.ID,
		Name:            p.Name,
		Description:     p.Description,
		RetentionPeriod: time.Duration(p.RetentionSeconds) * time.Second,
	}
	if p.CreatedAt > 0 {
		purpose.CreatedAt = time.Unix(p.CreatedAt, 0).UTC()
	}
	return purpose
}

func purposeFromModel(p models.Purpose) purposePayload {
	payload := purposePayload{
		ID:               p.ID,
		Name:             p.Name,
		Description:      p.Description,
		RetentionSeconds: int64(p.RetentionPeriod / time.Second),
	}
	if !p.CreatedAt.IsZero() {
		payload.CreatedAt = p.CreatedAt.Unix()
	}
	return payload
}

type createAgreementRequest struct {
	ID           string           `json:"id"`
	Subject      string           `json:"subject" validate:"required,notblank"`
	Processor    string           `json:"processor" validate:"required,notblank"`
	Purposes     []purposePayload `json:"purposes" validate:"min=1,dive"`
	ValidFrom    int64            `json:"valid_from" validate:"required"`
	ValidUntil   int64            `json:"valid_until"`
	MetadataHash string           `json:"metadata_hash"`
}

func (r *createAgreementRequest) normalize() {
	s.TrimStrings(&r.ID, &r.Subject, &r.Processor)
	for i := range r.Purposes {
		r.Purposes[i].normalize()
	}
}

func (r createAgreementRequest) toParams() service.CreateParams {
	purposes := make([]models.Purpose, len(r.Purposes))
	for i, p := range r.Purposes {
		purposes[i] = p.toModel()
	}
	return service.CreateParams{
		ID:           r.ID,
		Subject:      r.Subject,
		Processor:    r.Processor,
		Purposes:     purposes,
		ValidFrom:    unixToTime(r.ValidFrom),
		ValidUntil:   unixToTime(r.ValidUntil),
		MetadataHash: r.MetadataHash,
	}
}

type updateAgreementRequest struct {
	Status         string `json:"status" validate:"required,notblank"`
	ProofID        string `json:"proof_id"`
	TimestampProof string `json:"timestamp_proof"`
}

func (r *updateAgreementRequest) normalize() {
	s.TrimStrings(&r.Status)
}

type verifyRequest struct {
	AgreementID string `json:"agreement_id" validate:"required,notblank"`
	PurposeID   string `json:"purpose_id" validate:"required,notblank"`
	Processor   string `json:"processor" validate:"required,notblank"`
	At          int64  `json:"at"`
}

func (r *verifyRequest) normalize() {
	s.TrimStrings(&r.AgreementID, &r.PurposeID, &r.Processor)
}

type batchVerifyRequest struct {
	Checks []verifyRequest `json:"checks" validate:"min=1,dive"`
	At     int64           `json:"at"`
}

func (r *batchVerifyRequest) normalize() {
	for i := range r.Checks {
		r.Checks[i].normalize()
	}
}

type batchCreateRequest struct {
	IDs            []string           `json:"ids"`
	Subjects       []string           `json:"subjects"`
	Processors     []string           `json:"processors"`
	Purposes       [][]purposePayload `json:"purposes"`
	ValidFroms     []int64            `json:"valid_froms"`
	ValidUntils    []int64            `json:"valid_untils"`
	MetadataHashes []string           `json:"metadata_hashes"`
}

func (r *batchCreateRequest) normalize() {
	s.TrimSlice(r.IDs)
	s.TrimSlice(r.Subjects)
	s.TrimSlice(r.Processors)
	for i := range r.Purposes {
		for j := range r.Purposes[i] {
			r.Purposes[i][j].normalize()
		}
	}
}

type batchUpdateItemRequest struct {
	AgreementID    string `json:"agreement_id" validate:"required,notblank"`
	Status         string `json:"status" validate:"required,notblank"`
	ProofID        string `json:"proof_id"`
	TimestampProof string `json:"timestamp_proof"`
}

type batchUpdateRequest struct {
	Items []batchUpdateItemRequest `json:"items" validate:"min=1,dive"`
}

func (r *batchUpdateRequest) normalize() {
	for i := range r.Items {
		s.TrimStrings(&r.Items[i].AgreementID, &r.Items[i].Status)
	}
}

type agreementResponse struct {
	ID             string           `json:"id"`
	Subject        string           `json:"subject"`
	Processor      string           `json:"processor"`
	Purposes       []purposePayload `json:"purposes"`
	ValidFrom      int64            `json:"valid_from"`
	ValidUntil     int64            `json:"valid_until"`
	MetadataHash   string           `json:"metadata_hash"`
	Status         string           `json:"status"`
	ProofID        string           `json:"proof_id,omitempty"`
	TimestampProof string           `json:"timestamp_proof,omitempty"`
}

func agreementFromModel(a *models.Agreement) agreementResponse {
	purposes := make([]purposePayload, len(a.Purposes))
	for i, p := range a.Purposes {
		purposes[i] = purposeFromModel(p)
	}
	return agreementResponse{
		ID:             a.ID,
		Subject:        a.Subject,
		Processor:      a.Processor,
		Purposes:       purposes,
		ValidFrom:      timeToUnix(a.ValidFrom),
		ValidUntil:     timeToUnix(a.ValidUntil),
		MetadataHash:   a.MetadataHash,
		Status:         string(a.Status),
		ProofID:        a.ProofID,
		TimestampProof: a.TimestampProof,
	}
}

func unixToTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func timeToUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
