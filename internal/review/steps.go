package review

import (
	"github.com/TrackerIA/new-grading-vawa/internal/config"
	"github.com/TrackerIA/new-grading-vawa/internal/grading"
)

// Step names as they appear in logs and history.
const (
	StepQualifyingRelationship = "Qualifying Relationship"
	StepGoodFaithCharacter     = "Good Faith Character (GFC)"
	StepJointResidence         = "Joint Residence"
	StepPermanentBar           = "GMC / Permanent Bar"
	StepPresenceOfAbuse        = "Presence of Abuse"
	StepFinalAudit             = "Auditoria Final"
)

// Steps returns the fixed six-step protocol. Only the first step carries
// the case documents; the rest build on the conversation.
func Steps(p config.Prompts) []grading.ReviewStep {
	return []grading.ReviewStep{
		{Name: StepQualifyingRelationship, PromptLocator: p.QualifyingRelationship, AttachesCaseDocuments: true},
		{Name: StepGoodFaithCharacter, PromptLocator: p.GoodFaithCharacter},
		{Name: StepJointResidence, PromptLocator: p.JointResidence},
		{Name: StepPermanentBar, PromptLocator: p.PermanentBar},
		{Name: StepPresenceOfAbuse, PromptLocator: p.PresenceOfAbuse},
		{Name: StepFinalAudit, PromptLocator: p.FinalAudit},
	}
}
