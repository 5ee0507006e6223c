package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/TrackerIA/new-grading-vawa/internal/grading"
)

// Prompts holds the Google Docs that carry the review instructions. Each
// document is exported as plain text at the moment it is needed, so prompt
// authors can edit them without a redeploy.
type Prompts struct {
	SystemInstructions     string `yaml:"system_instructions"`
	QualifyingRelationship string `yaml:"qualifying_relationship"`
	GoodFaithCharacter     string `yaml:"good_faith_character"`
	JointResidence         string `yaml:"joint_residence"`
	PermanentBar           string `yaml:"gmc_permanent_bar"`
	PresenceOfAbuse        string `yaml:"presence_of_abuse"`
	FinalAudit             string `yaml:"final_audit"`
}

// DefaultPrompts returns the production prompt documents.
func DefaultPrompts() Prompts {
	return Prompts{
		SystemInstructions:     "https://docs.google.com/document/d/1QsCOdhuV0N-gbujvloZFBKmMKlPRpHc4LNRY8qCMb18/edit?usp=sharing",
		QualifyingRelationship: "https://docs.google.com/document/d/1hN5A0vZukBqMln85fAT6PkU9lKXY8qcAKyhl-d3mJUA/edit?usp=sharing",
		GoodFaithCharacter:     "https://docs.google.com/document/d/1aptWDOCU77CKOyphOkz1pqqSw-WLLUSfBFtSjnYk3SI/edit?usp=sharing",
		JointResidence:         "https://docs.google.com/document/d/1ujizq9fY_M6m2TFHVSONVBM8zwqqbR_xk6dmR6mX544/edit?usp=sharing",
		PermanentBar:           "https://docs.google.com/document/d/1h7ladm7IK4A40B7CHAxaZ8QkVcFViQe9pSqeYwxusIE/edit?usp=sharing",
		PresenceOfAbuse:        "https://docs.google.com/document/d/1M8GpNZLy0Kmy5umA48nHNA_RjZtJb3wqpSJTmXCLgoA/edit?usp=sharing",
		FinalAudit:             "https://docs.google.com/document/d/1HHH7wq1XSbWdJgU9M3rvfinzBi7SjirWS77mBloOJhw/edit?usp=sharing",
	}
}

// LoadPrompts reads a YAML file of prompt overrides. Keys left out keep
// their defaults after Merge.
func LoadPrompts(path string) (Prompts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Prompts{}, &grading.ConfigurationError{Message: "read prompts file " + path, Err: err}
	}
	var p Prompts
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Prompts{}, &grading.ConfigurationError{Message: "parse prompts file " + path, Err: err}
	}
	return p, nil
}

// Merge returns p with every non-empty field of o applied on top.
func (p Prompts) Merge(o Prompts) Prompts {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&p.SystemInstructions, o.SystemInstructions)
	set(&p.QualifyingRelationship, o.QualifyingRelationship)
	set(&p.GoodFaithCharacter, o.GoodFaithCharacter)
	set(&p.JointResidence, o.JointResidence)
	set(&p.PermanentBar, o.PermanentBar)
	set(&p.PresenceOfAbuse, o.PresenceOfAbuse)
	set(&p.FinalAudit, o.FinalAudit)
	return p
}

// Validate checks that every prompt document is set.
func (p Prompts) Validate() error {
	fields := []struct{ key, val string }{
		{"system_instructions", p.SystemInstructions},
		{"qualifying_relationship", p.QualifyingRelationship},
		{"good_faith_character", p.GoodFaithCharacter},
		{"joint_residence", p.JointResidence},
		{"gmc_permanent_bar", p.PermanentBar},
		{"presence_of_abuse", p.PresenceOfAbuse},
		{"final_audit", p.FinalAudit},
	}
	for _, f := range fields {
		if f.val == "" {
			return &grading.ConfigurationError{Message: fmt.Sprintf("prompt %q has no document", f.key)}
		}
	}
	return nil
}
