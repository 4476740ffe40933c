package credential

// ContractVersion identifies the registry contract surface this service is built against.
const ContractVersion = "v1.0.0"

// Registry contract entry points consumed by the ledger client.
const (
	MethodIssueCredential = "issueCredential"
	MethodHasCredential   = "hasCredential"
)

// EventCredentialIssued is the event emitted by the registry on successful issuance.
const EventCredentialIssued = "CredentialIssued"

// RegistryABIJSON is the source of truth for the registry contract surface.
// Credentials are soulbound: transfer, approve, and setApprovalForAll revert
// unconditionally on-chain, so no transfer entry points appear here.
const RegistryABIJSON = `[
  {
    "type": "function",
    "name": "issueCredential",
    "inputs": [
      {"name": "holder", "type": "address"},
      {"name": "courseId", "type": "string"},
      {"name": "metadataURI", "type": "string"}
    ],
    "outputs": [
      {"name": "credentialId", "type": "uint256"}
    ]
  },
  {
    "type": "function",
    "name": "hasCredential",
    "inputs": [
      {"name": "holder", "type": "address"},
      {"name": "courseId", "type": "string"}
    ],
    "outputs": [
      {"name": "", "type": "bool"}
    ]
  },
  {
    "type": "event",
    "name": "CredentialIssued",
    "inputs": [
      {"name": "credentialId", "type": "uint256", "indexed": true},
      {"name": "holder", "type": "address", "indexed": true},
      {"name": "courseId", "type": "string"},
      {"name": "metadataURI", "type": "string"}
    ]
  }
]`

// LedgerCredential mirrors the credential record owned by the registry
// contract. credentialId is assigned by the ledger, monotonically increasing
// from 1, and never reused.
type LedgerCredential struct {
	CredentialID uint64 `json:"credential_id"`
	Holder       string `json:"holder"`
	CourseID     string `json:"course_id"`
	MetadataRef  string `json:"metadata_ref"`
}
