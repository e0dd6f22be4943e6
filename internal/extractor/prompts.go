package extractor

import (
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/dossier/internal/taxonomy"
)

const systemPrompt = `You are a profile analyst. You read interview transcripts, voice notes and written
answers, and you file what you learn into a structured profile.

The profile is a fixed taxonomy of sections, subsections and fields. You may only target
keys that appear in the taxonomy you are given. Use the keys exactly as written.

For every distinct piece of information, produce one chunk:
- content: everything the transcript says that is relevant to the field, in the speaker's
  terms, with specifics (numbers, names, dates). Write complete sentences.
- target_section, target_subsection, target_field: the taxonomy keys.
- summary: one line, at most 150 characters, that would make sense on a profile card.
- confidence: 0.0-1.0. Use 0.9+ only when the speaker states the fact directly.
  Inferred information stays below 0.6.
- insights: optional short observations that are not facts (tensions, implications).

Also return:
- themes: recurring ideas across the transcript.
- follow_ups: questions that would fill the most important gaps.

Rules:
- Never invent facts. If the transcript says nothing about a field, produce no chunk for it.
- Prefer one rich chunk per field over several thin ones.
- Return an empty chunks array when the transcript contains nothing usable.`

const extractionUserPrompt = `Source type: %s

## Taxonomy
%s
## Transcript
%s`

const gapAnalysisSystemPrompt = `You are auditing a profile extraction produced by another analyst.
You receive the transcript, the taxonomy and the first-pass chunks.

Your job:
1. Find information in the transcript that the first pass missed and add chunks for it.
2. Enrich chunks whose content left out details the transcript contains.
3. Correct confidence where the first pass over- or under-stated certainty.
4. Merge chunks that target the same field or repeat each other.
5. Fix chunks filed under the wrong key.

Return the COMPLETE corrected set of chunks, not a diff. Keep every first-pass chunk that
was correct. Never drop information the transcript supports. Use the same output format
and the same rules as the first pass.`

const gapAnalysisUserPrompt = `Source type: %s

## Taxonomy
%s
## Transcript
%s

## First-pass extraction
%s`

// outputSchema is the JSON schema sent with both passes.
const outputSchema = `{
  "type": "object",
  "required": ["chunks", "themes", "follow_ups"],
  "additionalProperties": false,
  "properties": {
    "chunks": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["content", "target_section", "target_subsection", "target_field", "summary", "confidence"],
        "additionalProperties": false,
        "properties": {
          "content": {"type": "string", "minLength": 1},
          "target_section": {"type": "string"},
          "target_subsection": {"type": "string"},
          "target_field": {"type": "string"},
          "summary": {"type": "string", "maxLength": 150},
          "confidence": {"type": "number", "minimum": 0, "maximum": 1},
          "insights": {"type": "array", "items": {"type": "string"}}
        }
      }
    },
    "themes": {"type": "array", "items": {"type": "string"}},
    "follow_ups": {"type": "array", "items": {"type": "string"}}
  }
}`

// renderTaxonomy lists keys with their descriptions, indented by level.
func renderTaxonomy(tx *taxonomy.Taxonomy) string {
	var b strings.Builder
	for _, s := range tx.Sections {
		fmt.Fprintf(&b, "- %s (%s)\n", s.Key, s.Name)
		for _, ss := range s.Subsections {
			fmt.Fprintf(&b, "  - %s (%s)\n", ss.Key, ss.Name)
			for _, f := range ss.Fields {
				fmt.Fprintf(&b, "    - %s: %s\n", f.Key, f.Description)
			}
		}
	}
	return b.String()
}
