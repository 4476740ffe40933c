// Package service orchestrates the issuance pipeline: idempotency check,
// completion gate, certificate render, artifact uploads, ledger submission,
// and record persistence. Stages run strictly in that order; uploads and the
// persist are retried, the ledger submission never is.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"skillchain/internal/audit"
	"skillchain/internal/certificate/hash"
	"skillchain/internal/certificate/ledger"
	"skillchain/internal/certificate/metrics"
	"skillchain/internal/certificate/models"
	"skillchain/internal/certificate/render"
	"skillchain/internal/certificate/tracer"
	"skillchain/internal/course"
	"skillchain/internal/sentinel"
	dErrors "skillchain/pkg/domain-errors"
	"skillchain/pkg/platform/retry"
	platformsync "skillchain/pkg/platform/sync"
)

// Pipeline stage names used in logs, metrics, and audit events.
const (
	StageIdempotency    = "idempotency"
	StageCompletionGate = "completion_gate"
	StageRender         = "render"
	StageUploadImage    = "upload_image"
	StageUploadMetadata = "upload_metadata"
	StageLedgerSubmit   = "ledger_submit"
	StagePersist        = "persist"
)

// CompletionChecker is the completion gate boundary.
type CompletionChecker interface {
	Check(ctx context.Context, identityID, courseID string) (models.CompletionStatus, error)
}

// Uploader is the content-addressed store boundary.
type Uploader interface {
	UploadBytes(ctx context.Context, payload []byte, name string) (string, error)
	UploadJSON(ctx context.Context, doc any, name string) (string, error)
	GatewayURI(cid string) string
}

// Ledger is the registry contract boundary. Duplicate detection happens
// inside the ledger client, so only submission is needed here.
type Ledger interface {
	Submit(ctx context.Context, req ledger.SubmitRequest) (ledger.Receipt, error)
}

// Records is the issuance record boundary.
type Records interface {
	Create(ctx context.Context, record *models.IssuanceRecord) error
	FindByIdentityAndCourse(ctx context.Context, identityID, courseID string) (*models.IssuanceRecord, error)
	FindByTxRef(ctx context.Context, txRef string) (*models.IssuanceRecord, error)
	FindByCredentialID(ctx context.Context, credentialID uint64) (*models.IssuanceRecord, error)
}

// Renderer rasterizes a certificate record.
type Renderer interface {
	Render(ctx context.Context, cert render.Certificate) (payload []byte, mimeType string, err error)
}

// Catalog resolves course structure.
type Catalog interface {
	Course(ctx context.Context, courseID string) (course.Course, error)
}

// Deps carries the orchestrator's collaborators.
type Deps struct {
	Records  Records
	Catalog  Catalog
	Gate     CompletionChecker
	Renderer Renderer
	Content  Uploader
	Ledger   Ledger
	Audit    *audit.Publisher
	Metrics  *metrics.Metrics
	Tracer   tracer.Tracer
	Retry    *retry.Executor
	Logger   *slog.Logger
	Issuer   string
}

// Service runs the issuance pipeline and serves verification reads.
type Service struct {
	records  Records
	catalog  Catalog
	gate     CompletionChecker
	renderer Renderer
	content  Uploader
	ledger   Ledger
	audit    *audit.Publisher
	metrics  *metrics.Metrics
	tracer   tracer.Tracer
	retry    *retry.Executor
	locks    *platformsync.ShardedMutex
	logger   *slog.Logger
	issuer   string
	now      func() time.Time
}

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// New wires the issuance service. The ledger client is fixed here for the
// process lifetime; simulated versus real is a construction-time decision,
// never a per-request one.
func New(deps Deps, opts ...ServiceOption) *Service {
	s := &Service{
		records:  deps.Records,
		catalog:  deps.Catalog,
		gate:     deps.Gate,
		renderer: deps.Renderer,
		content:  deps.Content,
		ledger:   deps.Ledger,
		audit:    deps.Audit,
		metrics:  deps.Metrics,
		tracer:   deps.Tracer,
		retry:    deps.Retry,
		locks:    platformsync.NewShardedMutex(),
		logger:   deps.Logger,
		issuer:   deps.Issuer,
		now:      time.Now,
	}
	if s.tracer == nil {
		s.tracer = tracer.NewNoop()
	}
	if s.retry == nil {
		s.retry = retry.New(retry.DefaultPolicy())
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue runs the pipeline once for the (identity, course) pair. Re-invoking
// for an already-issued pair returns the existing record with Reissued set
// and performs no uploads or ledger calls.
func (s *Service) Issue(ctx context.Context, req models.IssueRequest) (models.IssueResult, error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanIssue,
		tracer.String(tracer.AttrIdentityID, req.IdentityID),
		tracer.String(tracer.AttrCourseID, req.CourseID),
	)
	result, err := s.issue(ctx, req)
	span.SetAttributes(tracer.Bool(tracer.AttrReissued, result.Reissued))
	span.End(err)
	return result, err
}

func (s *Service) issue(ctx context.Context, req models.IssueRequest) (models.IssueResult, error) {
	if req.IdentityID == "" || req.CourseID == "" || req.HolderAddress == "" || req.LearnerName == "" {
		return models.IssueResult{}, dErrors.New(dErrors.CodeBadRequest, "identity, course, holder address, and learner name are required")
	}

	s.emit(ctx, audit.EventIssuanceRequested, req, "", nil)

	// One issuance at a time per pair; concurrent requests for the same
	// pair serialize here and the loser replays the winner's record.
	lockKey := req.IdentityID + "|" + req.CourseID
	s.locks.Lock(lockKey)
	defer s.locks.Unlock(lockKey)

	if existing, ok, err := s.existingRecord(ctx, req); err != nil {
		return models.IssueResult{}, err
	} else if ok {
		return models.IssueResult{Record: existing, Reissued: true}, nil
	}

	if _, err := s.checkCompletion(ctx, req); err != nil {
		return models.IssueResult{}, err
	}

	crs, err := s.catalog.Course(ctx, req.CourseID)
	if err != nil {
		s.fail(ctx, StageCompletionGate, req, err)
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.IssueResult{}, dErrors.Wrap(err, dErrors.CodeNotFound, "course not found")
		}
		return models.IssueResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "course lookup failed")
	}

	completionDate := hash.FormatDate(s.now())
	verificationHash, err := hash.Compute(req.IdentityID, req.CourseID, completionDate)
	if err != nil {
		return models.IssueResult{}, dErrors.Wrap(err, dErrors.CodeBadRequest, "verification hash inputs invalid")
	}

	imageBytes, mimeType, err := s.renderCertificate(ctx, req, crs.Title, completionDate, verificationHash)
	if err != nil {
		return models.IssueResult{}, err
	}

	imageCID, err := s.uploadImage(ctx, req, imageBytes, mimeType)
	if err != nil {
		return models.IssueResult{}, err
	}

	metadata := s.buildMetadata(req, crs.Title, completionDate, verificationHash, imageCID)
	metadataCID, err := s.uploadMetadata(ctx, req, metadata)
	if err != nil {
		return models.IssueResult{}, err
	}

	receipt, err := s.submitToLedger(ctx, req, crs.Title, metadataCID)
	if err != nil {
		return models.IssueResult{}, err
	}

	record := models.IssuanceRecord{
		IdentityID:     req.IdentityID,
		CourseID:       req.CourseID,
		LedgerTxRef:    receipt.TxRef,
		CredentialID:   receipt.CredentialID,
		ContentCID:     metadataCID,
		CompletionDate: completionDate,
		IssuedAt:       s.now(),
	}
	result, err := s.persist(ctx, req, record)
	if err != nil {
		return models.IssueResult{}, err
	}
	if !result.Reissued {
		s.metrics.IncrementIssued()
		s.emit(ctx, audit.EventIssuanceCompleted, req, "", &result.Record)
		s.logger.Info("certificate issued",
			"identity_id", req.IdentityID,
			"course_id", req.CourseID,
			"credential_id", result.Record.CredentialID,
			"tx_ref", result.Record.LedgerTxRef,
		)
	}
	return result, nil
}

// existingRecord answers the idempotency check. A record with a non-empty tx
// ref means the pair is already issued.
func (s *Service) existingRecord(ctx context.Context, req models.IssueRequest) (models.IssuanceRecord, bool, error) {
	start := s.now()
	defer s.metrics.ObserveStage(StageIdempotency, start)

	existing, err := s.records.FindByIdentityAndCourse(ctx, req.IdentityID, req.CourseID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.IssuanceRecord{}, false, nil
		}
		s.fail(ctx, StageIdempotency, req, err)
		return models.IssuanceRecord{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "issuance record lookup failed")
	}
	if existing.LedgerTxRef == "" {
		return models.IssuanceRecord{}, false, nil
	}

	s.metrics.IncrementReplay()
	s.emit(ctx, audit.EventIssuanceReplayed, req, "", existing)
	s.logger.Info("issuance replayed from existing record",
		"identity_id", req.IdentityID,
		"course_id", req.CourseID,
		"credential_id", existing.CredentialID,
	)
	return *existing, true, nil
}

func (s *Service) checkCompletion(ctx context.Context, req models.IssueRequest) (models.CompletionStatus, error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanCompletionGate)
	start := s.now()
	status, err := s.gate.Check(ctx, req.IdentityID, req.CourseID)
	s.metrics.ObserveStage(StageCompletionGate, start)
	span.End(err)
	if err != nil {
		s.fail(ctx, StageCompletionGate, req, err)
		return models.CompletionStatus{}, err
	}
	if !status.IsCompleted {
		err := dErrors.New(dErrors.CodeNotCompleted,
			fmt.Sprintf("course not completed: %d of %d lessons", status.CompletedCount, status.TotalCount))
		s.fail(ctx, StageCompletionGate, req, err)
		return models.CompletionStatus{}, err
	}
	return status, nil
}

func (s *Service) renderCertificate(ctx context.Context, req models.IssueRequest, courseTitle, completionDate, verificationHash string) ([]byte, string, error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanRender)
	start := s.now()
	payload, mimeType, err := s.renderer.Render(ctx, render.Certificate{
		LearnerName:      req.LearnerName,
		CourseTitle:      courseTitle,
		CompletionDate:   completionDate,
		VerificationHash: verificationHash,
		Issuer:           s.issuer,
	})
	s.metrics.ObserveStage(StageRender, start)
	span.End(err)
	if err != nil {
		s.fail(ctx, StageRender, req, err)
		return nil, "", dErrors.Wrap(err, dErrors.CodeRenderFailure, "certificate render failed")
	}
	return payload, mimeType, nil
}

func (s *Service) uploadImage(ctx context.Context, req models.IssueRequest, payload []byte, mimeType string) (string, error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanUploadImage)
	start := s.now()
	name := fmt.Sprintf("certificate-%s-%s%s", req.IdentityID, req.CourseID, extensionFor(mimeType))

	var cid string
	err := s.retry.Do(ctx, StageUploadImage, func(ctx context.Context) error {
		var uploadErr error
		cid, uploadErr = s.content.UploadBytes(ctx, payload, name)
		return uploadErr
	})
	s.metrics.ObserveStage(StageUploadImage, start)
	span.SetAttributes(tracer.String(tracer.AttrContentCID, cid))
	span.End(err)
	if err != nil {
		s.fail(ctx, StageUploadImage, req, err)
		return "", dErrors.Wrap(err, dErrors.CodeContentStore, "certificate image upload failed")
	}
	return cid, nil
}

func (s *Service) buildMetadata(req models.IssueRequest, courseTitle, completionDate, verificationHash, imageCID string) models.CertificateMetadata {
	return models.CertificateMetadata{
		SchemaVersion:    models.MetadataSchemaVersion,
		Name:             fmt.Sprintf("%s - Certificate of Completion", courseTitle),
		Description:      fmt.Sprintf("Certifies that %s completed %s on %s.", req.LearnerName, courseTitle, completionDate),
		Image:            s.content.GatewayURI(imageCID),
		IdentityID:       req.IdentityID,
		LearnerName:      req.LearnerName,
		CourseID:         req.CourseID,
		CourseTitle:      courseTitle,
		CompletionDate:   completionDate,
		VerificationHash: verificationHash,
		Issuer:           s.issuer,
		Attributes: []models.MetadataAttribute{
			{TraitType: "course", Value: courseTitle},
			{TraitType: "completion_date", Value: completionDate},
			{TraitType: "issuer", Value: s.issuer},
		},
	}
}

func (s *Service) uploadMetadata(ctx context.Context, req models.IssueRequest, metadata models.CertificateMetadata) (string, error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanUploadMetadata)
	start := s.now()
	name := fmt.Sprintf("certificate-%s-%s.json", req.IdentityID, req.CourseID)

	var cid string
	err := s.retry.Do(ctx, StageUploadMetadata, func(ctx context.Context) error {
		var uploadErr error
		cid, uploadErr = s.content.UploadJSON(ctx, metadata, name)
		return uploadErr
	})
	s.metrics.ObserveStage(StageUploadMetadata, start)
	span.SetAttributes(tracer.String(tracer.AttrContentCID, cid))
	span.End(err)
	if err != nil {
		s.fail(ctx, StageUploadMetadata, req, err)
		return "", dErrors.Wrap(err, dErrors.CodeContentStore, "certificate metadata upload failed")
	}
	return cid, nil
}

// submitToLedger makes exactly one submission attempt. A retry here could
// broadcast twice; recovery from an ambiguous failure goes through
// re-invocation, which the idempotency check and the ledger's duplicate
// prevention make safe.
func (s *Service) submitToLedger(ctx context.Context, req models.IssueRequest, courseTitle, metadataCID string) (ledger.Receipt, error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanLedgerSubmit)
	start := s.now()
	receipt, err := s.ledger.Submit(ctx, ledger.SubmitRequest{
		HolderAddress: req.HolderAddress,
		CourseID:      req.CourseID,
		MetadataURI:   s.content.GatewayURI(metadataCID),
		LearnerName:   req.LearnerName,
		CourseTitle:   courseTitle,
	})
	s.metrics.ObserveStage(StageLedgerSubmit, start)
	span.SetAttributes(
		tracer.String(tracer.AttrTxRef, receipt.TxRef),
		tracer.Int64(tracer.AttrCredentialID, int64(receipt.CredentialID)),
	)
	span.End(err)
	if err != nil {
		return ledger.Receipt{}, s.classifyLedgerError(ctx, req, err)
	}
	return receipt, nil
}

func (s *Service) classifyLedgerError(ctx context.Context, req models.IssueRequest, err error) error {
	s.fail(ctx, StageLedgerSubmit, req, err)

	var eventParse *ledger.EventParseError
	if errors.As(err, &eventParse) {
		// The credential exists on-ledger with an unknown id, so no local
		// record can be written. Flag loudly for reconciliation.
		s.ledgerAheadOfStore(ctx, req, eventParse.TxRef, err)
		return dErrors.Wrap(err, dErrors.CodeLedgerAheadOfStore, "issuance confirmed on-ledger but credential id is unknown")
	}
	if ledger.IsDuplicate(err) {
		// No local record (the idempotency check just missed) yet the
		// ledger already holds the credential.
		s.ledgerAheadOfStore(ctx, req, "", err)
		return dErrors.Wrap(err, dErrors.CodeLedgerAheadOfStore, "ledger holds a credential with no local record")
	}
	var rejected *ledger.RejectedError
	if errors.As(err, &rejected) {
		return dErrors.Wrap(err, dErrors.CodeLedgerRejected, "ledger rejected issuance")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "ledger submission timed out")
	}
	return dErrors.Wrap(err, dErrors.CodeLedgerUnavailable, "ledger unavailable")
}

// persist writes the record with a conditional insert. Losing the insert race
// means another invocation finished first; its record answers this request.
func (s *Service) persist(ctx context.Context, req models.IssueRequest, record models.IssuanceRecord) (models.IssueResult, error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanPersist)
	start := s.now()
	err := s.retry.Do(ctx, StagePersist, func(ctx context.Context) error {
		createErr := s.records.Create(ctx, &record)
		if errors.Is(createErr, sentinel.ErrDuplicate) {
			return nil
		}
		return createErr
	})
	s.metrics.ObserveStage(StagePersist, start)
	span.End(err)
	if err != nil {
		// The ledger transaction is confirmed but the record is not
		// durable; the next invocation will surface the mismatch.
		s.fail(ctx, StagePersist, req, err)
		s.ledgerAheadOfStore(ctx, req, record.LedgerTxRef, err)
		return models.IssueResult{}, dErrors.Wrap(err, dErrors.CodeLedgerAheadOfStore, "issuance confirmed on-ledger but record persistence failed")
	}

	stored, findErr := s.records.FindByIdentityAndCourse(ctx, req.IdentityID, req.CourseID)
	if findErr != nil {
		return models.IssueResult{}, dErrors.Wrap(findErr, dErrors.CodeInternal, "issuance record readback failed")
	}
	if stored.LedgerTxRef != record.LedgerTxRef {
		// A concurrent invocation won the insert.
		s.metrics.IncrementReplay()
		return models.IssueResult{Record: *stored, Reissued: true}, nil
	}
	return models.IssueResult{Record: *stored}, nil
}

// VerifyByTxRef resolves a certificate by its ledger transaction reference
// and returns the recomputed verification hash alongside the stored binding.
func (s *Service) VerifyByTxRef(ctx context.Context, txRef string) (models.VerificationResult, error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanVerify, tracer.String(tracer.AttrTxRef, txRef))
	result, err := s.verify(ctx, func() (*models.IssuanceRecord, error) {
		if txRef == "" {
			return nil, dErrors.New(dErrors.CodeBadRequest, "tx_ref is required")
		}
		return s.records.FindByTxRef(ctx, txRef)
	})
	span.End(err)
	return result, err
}

// VerifyByCredentialID resolves a certificate by its ledger-assigned id.
func (s *Service) VerifyByCredentialID(ctx context.Context, credentialID uint64) (models.VerificationResult, error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanVerify, tracer.Int64(tracer.AttrCredentialID, int64(credentialID)))
	result, err := s.verify(ctx, func() (*models.IssuanceRecord, error) {
		if credentialID == 0 {
			return nil, dErrors.New(dErrors.CodeBadRequest, "credential id is required")
		}
		return s.records.FindByCredentialID(ctx, credentialID)
	})
	span.End(err)
	return result, err
}

func (s *Service) verify(ctx context.Context, find func() (*models.IssuanceRecord, error)) (models.VerificationResult, error) {
	record, err := find()
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncrementVerification("not_found")
			return models.VerificationResult{}, dErrors.Wrap(err, dErrors.CodeNotFound, "certificate not found")
		}
		if dErrors.HasCode(err, dErrors.CodeBadRequest) {
			return models.VerificationResult{}, err
		}
		s.metrics.IncrementVerification("error")
		return models.VerificationResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "certificate lookup failed")
	}

	verificationHash, err := hash.Compute(record.IdentityID, record.CourseID, record.CompletionDate)
	if err != nil {
		s.metrics.IncrementVerification("error")
		return models.VerificationResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "verification hash recompute failed")
	}

	s.metrics.IncrementVerification("verified")
	s.emitVerification(ctx, record)
	return models.VerificationResult{
		IdentityID:       record.IdentityID,
		CourseID:         record.CourseID,
		CompletionDate:   record.CompletionDate,
		LedgerTxRef:      record.LedgerTxRef,
		CredentialID:     record.CredentialID,
		ContentCID:       record.ContentCID,
		VerificationHash: verificationHash,
	}, nil
}

// Completion exposes the gate verdict for the read-only completion endpoint.
func (s *Service) Completion(ctx context.Context, identityID, courseID string) (models.CompletionStatus, error) {
	return s.gate.Check(ctx, identityID, courseID)
}

func (s *Service) fail(ctx context.Context, stage string, req models.IssueRequest, err error) {
	s.metrics.IncrementFailure(stage)
	s.logger.Error("issuance stage failed",
		"stage", stage,
		"identity_id", req.IdentityID,
		"course_id", req.CourseID,
		"error", err,
	)
	if s.audit != nil {
		_ = s.audit.Emit(ctx, audit.Event{
			IdentityID: req.IdentityID,
			CourseID:   req.CourseID,
			Action:     string(audit.EventIssuanceFailed),
			Stage:      stage,
			Reason:     err.Error(),
		})
	}
}

func (s *Service) ledgerAheadOfStore(ctx context.Context, req models.IssueRequest, txRef string, err error) {
	s.metrics.IncrementLedgerAheadOfStore()
	s.logger.Error("ledger ahead of store, reconciliation required",
		"identity_id", req.IdentityID,
		"course_id", req.CourseID,
		"tx_ref", txRef,
		"error", err,
	)
	if s.audit != nil {
		_ = s.audit.Emit(ctx, audit.Event{
			IdentityID: req.IdentityID,
			CourseID:   req.CourseID,
			Action:     string(audit.EventLedgerAheadOfStore),
			TxRef:      txRef,
			Reason:     err.Error(),
		})
	}
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, req models.IssueRequest, stage string, record *models.IssuanceRecord) {
	if s.audit == nil {
		return
	}
	event := audit.Event{
		IdentityID: req.IdentityID,
		CourseID:   req.CourseID,
		Action:     string(action),
		Stage:      stage,
	}
	if record != nil {
		event.TxRef = record.LedgerTxRef
		event.CredentialID = record.CredentialID
	}
	_ = s.audit.Emit(ctx, event)
}

func (s *Service) emitVerification(ctx context.Context, record *models.IssuanceRecord) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Emit(ctx, audit.Event{
		IdentityID:   record.IdentityID,
		CourseID:     record.CourseID,
		Action:       string(audit.EventVerification),
		TxRef:        record.LedgerTxRef,
		CredentialID: record.CredentialID,
	})
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/svg+xml":
		return ".svg"
	case "image/png":
		return ".png"
	default:
		return ""
	}
}
