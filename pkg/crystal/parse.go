package crystal

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pcl-labs/navigator/pkg/types"
)

// ParseError reports a model response that could not be turned into a
// structured summary. It is recovered locally: the caller is notified and
// the existing summary chain is left untouched; no partial record is
// ever written.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("crystal: parse summary: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("crystal: parse summary: %s", e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// rawSummary distinguishes "field absent" from "field empty" so missing
// fields are rejected at the boundary instead of flowing downstream as
// zero values.
type rawSummary struct {
	Why  *string `json:"why_summary"`
	What *string `json:"what_summary"`
	How  *string `json:"how_summary"`
}

// ParseSummary turns a model response into a Summary. Incidental wrapper
// formatting (code fences, with or without a language tag) is stripped
// before structural parsing; anything that then fails to decode as an
// object carrying all three fields is a *ParseError.
func ParseSummary(text string) (types.Summary, error) {
	stripped := stripFences(text)
	if stripped == "" {
		return types.Summary{}, &ParseError{Reason: "empty response"}
	}

	var raw rawSummary
	if err := json.Unmarshal([]byte(stripped), &raw); err != nil {
		return types.Summary{}, &ParseError{Reason: "malformed structure", Err: err}
	}
	var missing []string
	if raw.Why == nil {
		missing = append(missing, "why_summary")
	}
	if raw.What == nil {
		missing = append(missing, "what_summary")
	}
	if raw.How == nil {
		missing = append(missing, "how_summary")
	}
	if len(missing) > 0 {
		return types.Summary{}, &ParseError{Reason: "missing fields: " + strings.Join(missing, ", ")}
	}

	return types.Summary{Why: *raw.Why, What: *raw.What, How: *raw.How}, nil
}

// stripFences removes a surrounding Markdown code fence, if present, and
// trims whitespace. Fences may carry a language tag and may or may not be
// separated from the payload by newlines.
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}
