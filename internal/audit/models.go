package audit

import "time"

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp    time.Time `json:"timestamp"`
	IdentityID   string    `json:"identity_id"`
	CourseID     string    `json:"course_id"`
	Action       string    `json:"action"`
	Stage        string    `json:"stage,omitempty"`
	TxRef        string    `json:"tx_ref,omitempty"`
	CredentialID uint64    `json:"credential_id,omitempty"`
	Reason       string    `json:"reason,omitempty"`
}

type AuditEvent string

const (
	EventIssuanceRequested  AuditEvent = "issuance_requested"
	EventIssuanceCompleted  AuditEvent = "issuance_completed"
	EventIssuanceReplayed   AuditEvent = "issuance_replayed"
	EventIssuanceFailed     AuditEvent = "issuance_failed"
	EventLedgerAheadOfStore AuditEvent = "ledger_ahead_of_store"
	EventVerification       AuditEvent = "verification_performed"
)
