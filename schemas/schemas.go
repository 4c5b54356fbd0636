// Package schemas embeds the JSON Schemas that LLM responses are validated against.
package schemas

import "embed"

// Files holds every *.schema.json file in this directory.
//
//go:embed *.schema.json
var Files embed.FS

// Schema names, without the .schema.json suffix.
const (
	Suggestion     = "suggestion"
	RevisionPrompt = "revision_prompt"
	RevisionApply  = "revision_apply"
)
