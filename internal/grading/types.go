// Package grading holds the domain types shared by every stage of the VAWA
// grading pipeline: queued jobs, normalized case documents, the cached
// knowledge context and the fixed review-step definitions.
package grading

import (
	"strings"
	"time"
)

// DocRole identifies which slot of the case file a document fills.
type DocRole string

// Document roles, in the order the pipeline downloads them.
const (
	RoleCaratula   DocRole = "caratula"
	RoleTranscript DocRole = "transcript"
	RoleEvidencias DocRole = "evidencias"
	RoleDAIR       DocRole = "dair"
	RoleFAIR       DocRole = "fair"
	RoleRapSheet   DocRole = "rapsheet"
	RoleSummary    DocRole = "summary"
)

// DocRoles lists every role in processing order.
var DocRoles = []DocRole{
	RoleCaratula,
	RoleTranscript,
	RoleEvidencias,
	RoleDAIR,
	RoleFAIR,
	RoleRapSheet,
	RoleSummary,
}

// IsMandatory reports whether a job cannot be graded without this role.
func (r DocRole) IsMandatory() bool {
	return r == RoleTranscript || r == RoleSummary
}

// Job is one row of the case queue.
type Job struct {
	// RowIndex is the 1-based row in the backing sheet; row 1 is the header.
	RowIndex   int
	ClientID   string
	ClientName string
	Links      map[DocRole]string
	Status     Status

	// StartedAt is set by MarkStarted and used to compute the duration column.
	StartedAt time.Time
}

// Link returns the trimmed locator for a role, or "" when absent.
func (j *Job) Link(role DocRole) string {
	if j.Links == nil {
		return ""
	}
	return strings.TrimSpace(j.Links[role])
}

// NormalizedDocument is a case document converted to the canonical PDF form.
// It lives only for the duration of one job.
type NormalizedDocument struct {
	Role     DocRole
	Locator  string
	Name     string
	MIMEType string
	Data     []byte
}

// Outcome is what a successful review writes back to the queue.
type Outcome struct {
	DeliverableRef string
	TokensIn       int
	TokensOut      int
}

// KnowledgeContext is the time-boxed cached grounding material shared by
// every review in one run.
type KnowledgeContext struct {
	// Name is the backend resource name used to reference the cache.
	Name            string
	DisplayName     string
	Model           string
	SourceDocuments []string
	SystemPreamble  string
	TTL             time.Duration
	ExpireTime      time.Time
}

// Valid reports whether the context exists and has not expired at now.
func (k *KnowledgeContext) Valid(now time.Time) bool {
	if k == nil || k.Name == "" {
		return false
	}
	return k.ExpireTime.IsZero() || now.Before(k.ExpireTime)
}

// ReviewStep is one stage of the multi-step review protocol.
type ReviewStep struct {
	Name                  string
	PromptLocator         string
	AttachesCaseDocuments bool
}
