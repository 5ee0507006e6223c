// Package assets provides embedded static assets for the grader.
//
// Prompt text that is not edited by case reviewers is stored under prompts/
// and embedded at compile time. The per-step review prompts live in Google
// Docs and are fetched at run time instead.
package assets

import (
	_ "embed"
	"strings"
)

// knowledgePreamble is the system instruction baked into the reference
// knowledge cache.
//
//go:embed prompts/knowledge-preamble.txt
var knowledgePreamble string

// KnowledgePreamble returns the cache system instruction without trailing
// whitespace.
func KnowledgePreamble() string {
	return strings.TrimSpace(knowledgePreamble)
}
