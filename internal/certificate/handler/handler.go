// Package handler exposes the certificate pipeline over HTTP: issuance,
// verification lookups, and the read-only completion check.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"skillchain/internal/certificate/models"
	"skillchain/internal/platform/middleware"
	dErrors "skillchain/pkg/domain-errors"
	"skillchain/pkg/platform/httputil"
)

// Service is the issuance pipeline boundary the handler depends on.
type Service interface {
	Issue(ctx context.Context, req models.IssueRequest) (models.IssueResult, error)
	VerifyByTxRef(ctx context.Context, txRef string) (models.VerificationResult, error)
	VerifyByCredentialID(ctx context.Context, credentialID uint64) (models.VerificationResult, error)
	Completion(ctx context.Context, identityID, courseID string) (models.CompletionStatus, error)
}

type Handler struct {
	service  Service
	validate *validator.Validate
	logger   *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/certificates/issue", h.HandleIssue)
	r.Get("/certificates/verify", h.HandleVerifyByTxRef)
	r.Get("/certificates/{credential_id}", h.HandleGetByCredentialID)
	r.Get("/learners/{identity_id}/courses/{course_id}/completion", h.HandleCompletion)
}

// IssueRequest is the issuance request body.
type IssueRequest struct {
	IdentityID    string `json:"identity_id" validate:"required"`
	CourseID      string `json:"course_id" validate:"required"`
	HolderAddress string `json:"holder_address" validate:"required,len=42,startswith=0x"`
	LearnerName   string `json:"learner_name" validate:"required,max=200"`
}

// IssueResponse is the issuance response body. Reissued reports that an
// existing certificate satisfied the request.
type IssueResponse struct {
	IdentityID     string `json:"identity_id"`
	CourseID       string `json:"course_id"`
	LedgerTxRef    string `json:"ledger_tx_ref"`
	CredentialID   uint64 `json:"credential_id"`
	ContentCID     string `json:"content_cid"`
	CompletionDate string `json:"completion_date"`
	IssuedAt       string `json:"issued_at"`
	Reissued       bool   `json:"reissued"`
}

// HandleIssue implements POST /certificates/issue.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, 64*1024)

	var req IssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode issue request",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON in request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, err.Error()))
		return
	}

	result, err := h.service.Issue(ctx, models.IssueRequest{
		IdentityID:    req.IdentityID,
		CourseID:      req.CourseID,
		HolderAddress: req.HolderAddress,
		LearnerName:   req.LearnerName,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "issue request failed",
			"error", err,
			"identity_id", req.IdentityID,
			"course_id", req.CourseID,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Reissued {
		status = http.StatusOK
	}
	httputil.WriteJSON(w, status, issueResponse(result))
}

// HandleVerifyByTxRef implements GET /certificates/verify?tx_ref=0x...
func (h *Handler) HandleVerifyByTxRef(w http.ResponseWriter, r *http.Request) {
	txRef := r.URL.Query().Get("tx_ref")
	result, err := h.service.VerifyByTxRef(r.Context(), txRef)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleGetByCredentialID implements GET /certificates/{credential_id}.
func (h *Handler) HandleGetByCredentialID(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "credential_id")
	credentialID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "credential id must be a positive integer"))
		return
	}

	result, err := h.service.VerifyByCredentialID(r.Context(), credentialID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleCompletion implements GET /learners/{identity_id}/courses/{course_id}/completion.
func (h *Handler) HandleCompletion(w http.ResponseWriter, r *http.Request) {
	identityID := chi.URLParam(r, "identity_id")
	courseID := chi.URLParam(r, "course_id")

	status, err := h.service.Completion(r.Context(), identityID, courseID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

func issueResponse(result models.IssueResult) IssueResponse {
	return IssueResponse{
		IdentityID:     result.Record.IdentityID,
		CourseID:       result.Record.CourseID,
		LedgerTxRef:    result.Record.LedgerTxRef,
		CredentialID:   result.Record.CredentialID,
		ContentCID:     result.Record.ContentCID,
		CompletionDate: result.Record.CompletionDate,
		IssuedAt:       result.Record.IssuedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		Reissued:       result.Reissued,
	}
}
