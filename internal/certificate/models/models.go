package models

import "time"

// MetadataSchemaVersion identifies the certificate metadata document schema.
// Bump on any change to CertificateMetadata's wire shape.
const MetadataSchemaVersion = "1.0"

// CompletionStatus is the completion gate verdict. Derived, never persisted;
// recomputed per request from the progress store.
type CompletionStatus struct {
	IsCompleted    bool `json:"is_completed"`
	CompletedCount uint `json:"completed_count"`
	TotalCount     uint `json:"total_count"`
}

// ContentRecord describes one artifact pinned to the content-addressed store.
type ContentRecord struct {
	CID          string `json:"cid"`
	MimeOrSchema string `json:"mime_or_schema"`
}

// IssuanceRecord is the durable outcome of one issuance. Created exactly once
// per (identity, course) pair and never mutated; a non-empty LedgerTxRef is
// the idempotency sentinel meaning "already issued, do not reissue".
type IssuanceRecord struct {
	IdentityID     string    `json:"identity_id"`
	CourseID       string    `json:"course_id"`
	LedgerTxRef    string    `json:"ledger_tx_ref"`
	CredentialID   uint64    `json:"credential_id"`
	ContentCID     string    `json:"content_cid"`
	CompletionDate string    `json:"completion_date"`
	IssuedAt       time.Time `json:"issued_at"`
}

// MetadataAttribute is a single typed display attribute on the certificate
// metadata document. The explicit struct (rather than a loose JSON list)
// keeps malformed attributes from silently reaching the ledger call.
type MetadataAttribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// CertificateMetadata is the versioned metadata document pinned alongside the
// certificate image. Image embeds the image artifact's CID as a URI.
type CertificateMetadata struct {
	SchemaVersion    string              `json:"schema_version"`
	Name             string              `json:"name"`
	Description      string              `json:"description"`
	Image            string              `json:"image"`
	IdentityID       string              `json:"identity_id"`
	LearnerName      string              `json:"learner_name"`
	CourseID         string              `json:"course_id"`
	CourseTitle      string              `json:"course_title"`
	CompletionDate   string              `json:"completion_date"`
	VerificationHash string              `json:"verification_hash"`
	Issuer           string              `json:"issuer"`
	Attributes       []MetadataAttribute `json:"attributes"`
}

// IssueRequest carries the caller-supplied inputs of one issuance run.
type IssueRequest struct {
	IdentityID    string
	CourseID      string
	HolderAddress string
	LearnerName   string
}

// IssueResult is the orchestrator's outward result. Reissued reports that an
// existing record satisfied the request without new ledger work.
type IssueResult struct {
	Record   IssuanceRecord
	Reissued bool
}

// VerificationResult is the read-only verification surface: the bound triple
// plus the independently recomputable hash, so a verifier can recompute from
// claimed inputs and compare.
type VerificationResult struct {
	IdentityID       string `json:"identity_id"`
	CourseID         string `json:"course_id"`
	CompletionDate   string `json:"completion_date"`
	LedgerTxRef      string `json:"ledger_tx_ref"`
	CredentialID     uint64 `json:"credential_id"`
	ContentCID       string `json:"content_cid"`
	VerificationHash string `json:"verification_hash"`
}
