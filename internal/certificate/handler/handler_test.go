package handler_test

//go:generate mockgen -source=handler.go -destination=mocks/handler_mock.go -package=mocks

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"skillchain/internal/certificate/handler"
	"skillchain/internal/certificate/handler/mocks"
	"skillchain/internal/certificate/models"
	dErrors "skillchain/pkg/domain-errors"
)

const (
	testHolder = "0x1111111111111111111111111111111111111111"
	testTxRef  = "0xaaaa000000000000000000000000000000000000000000000000000000000001"
)

func newTestServer(t *testing.T) (*mocks.MockService, *chi.Mux) {
	t.Helper()
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	h := handler.New(svc, slog.New(slog.DiscardHandler))
	r := chi.NewRouter()
	h.Register(r)
	return svc, r
}

func issueBody(t *testing.T) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(handler.IssueRequest{
		IdentityID:    "learner-1",
		CourseID:      "course-1",
		HolderAddress: testHolder,
		LearnerName:   "Ada Lovelace",
	})
	require.NoError(t, err)
	return bytes.NewBuffer(body)
}

func TestHandleIssue_Created(t *testing.T) {
	svc, r := newTestServer(t)

	svc.EXPECT().
		Issue(gomock.Any(), models.IssueRequest{
			IdentityID:    "learner-1",
			CourseID:      "course-1",
			HolderAddress: testHolder,
			LearnerName:   "Ada Lovelace",
		}).
		Return(models.IssueResult{
			Record: models.IssuanceRecord{
				IdentityID:     "learner-1",
				CourseID:       "course-1",
				LedgerTxRef:    testTxRef,
				CredentialID:   1,
				ContentCID:     "QmMeta",
				CompletionDate: "2025-01-10",
				IssuedAt:       time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC),
			},
		}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/certificates/issue", issueBody(t))
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp handler.IssueResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, testTxRef, resp.LedgerTxRef)
	assert.Equal(t, uint64(1), resp.CredentialID)
	assert.False(t, resp.Reissued)
}

func TestHandleIssue_ReissuedReturns200(t *testing.T) {
	svc, r := newTestServer(t)

	svc.EXPECT().
		Issue(gomock.Any(), gomock.Any()).
		Return(models.IssueResult{
			Record:   models.IssuanceRecord{LedgerTxRef: testTxRef, CredentialID: 1},
			Reissued: true,
		}, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/certificates/issue", issueBody(t))
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp handler.IssueResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Reissued)
}

func TestHandleIssue_InvalidJSON(t *testing.T) {
	_, r := newTestServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/certificates/issue", bytes.NewBufferString("{not json"))
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleIssue_ValidationFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*handler.IssueRequest)
	}{
		{name: "missing identity", mutate: func(r *handler.IssueRequest) { r.IdentityID = "" }},
		{name: "missing course", mutate: func(r *handler.IssueRequest) { r.CourseID = "" }},
		{name: "short holder address", mutate: func(r *handler.IssueRequest) { r.HolderAddress = "0x1234" }},
		{name: "holder address without prefix", mutate: func(r *handler.IssueRequest) {
			r.HolderAddress = "111111111111111111111111111111111111111111"
		}},
		{name: "missing learner name", mutate: func(r *handler.IssueRequest) { r.LearnerName = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, r := newTestServer(t)

			req := handler.IssueRequest{
				IdentityID:    "learner-1",
				CourseID:      "course-1",
				HolderAddress: testHolder,
				LearnerName:   "Ada Lovelace",
			}
			tt.mutate(&req)
			body, err := json.Marshal(req)
			require.NoError(t, err)

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/certificates/issue", bytes.NewBuffer(body)))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleIssue_ErrorMapping(t *testing.T) {
	tests := []struct {
		code       dErrors.Code
		wantStatus int
	}{
		{dErrors.CodeNotCompleted, http.StatusConflict},
		{dErrors.CodeNotFound, http.StatusNotFound},
		{dErrors.CodeRenderFailure, http.StatusBadGateway},
		{dErrors.CodeContentStore, http.StatusBadGateway},
		{dErrors.CodeLedgerRejected, http.StatusBadGateway},
		{dErrors.CodeLedgerUnavailable, http.StatusServiceUnavailable},
		{dErrors.CodeLedgerAheadOfStore, http.StatusInternalServerError},
		{dErrors.CodeTimeout, http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			svc, r := newTestServer(t)
			svc.EXPECT().
				Issue(gomock.Any(), gomock.Any()).
				Return(models.IssueResult{}, dErrors.New(tt.code, "stage failed"))

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/certificates/issue", issueBody(t)))

			require.Equal(t, tt.wantStatus, rec.Code)

			var errResp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
			assert.Equal(t, string(tt.code), errResp["error"])
		})
	}
}

func TestHandleVerifyByTxRef(t *testing.T) {
	svc, r := newTestServer(t)

	svc.EXPECT().
		VerifyByTxRef(gomock.Any(), testTxRef).
		Return(models.VerificationResult{
			IdentityID:       "learner-1",
			CourseID:         "course-1",
			CompletionDate:   "2025-01-10",
			LedgerTxRef:      testTxRef,
			CredentialID:     1,
			ContentCID:       "QmMeta",
			VerificationHash: "ABCDEF",
		}, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/certificates/verify?tx_ref="+testTxRef, nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.VerificationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ABCDEF", resp.VerificationHash)
}

func TestHandleVerifyByTxRef_NotFound(t *testing.T) {
	svc, r := newTestServer(t)
	svc.EXPECT().
		VerifyByTxRef(gomock.Any(), "0xmissing").
		Return(models.VerificationResult{}, dErrors.New(dErrors.CodeNotFound, "certificate not found"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/certificates/verify?tx_ref=0xmissing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetByCredentialID(t *testing.T) {
	svc, r := newTestServer(t)
	svc.EXPECT().
		VerifyByCredentialID(gomock.Any(), uint64(42)).
		Return(models.VerificationResult{CredentialID: 42}, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/certificates/42", nil))

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleGetByCredentialID_NotNumeric(t *testing.T) {
	_, r := newTestServer(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/certificates/abc", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCompletion(t *testing.T) {
	svc, r := newTestServer(t)
	svc.EXPECT().
		Completion(gomock.Any(), "learner-1", "course-1").
		Return(models.CompletionStatus{IsCompleted: false, CompletedCount: 2, TotalCount: 3}, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/learners/learner-1/courses/course-1/completion", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var status models.CompletionStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.IsCompleted)
	assert.Equal(t, uint(2), status.CompletedCount)
}

func TestRoutes_VerifyPathDoesNotShadowCredentialID(t *testing.T) {
	// "verify" is a literal segment under /certificates; make sure the
	// router prefers it over the {credential_id} wildcard.
	svc, r := newTestServer(t)
	svc.EXPECT().
		VerifyByTxRef(gomock.Any(), "").
		Return(models.VerificationResult{}, dErrors.New(dErrors.CodeBadRequest, "tx_ref is required"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/certificates/verify", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
