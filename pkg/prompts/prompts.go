// Package prompts resolves language codes to the text templates that drive
// chat behavior and summarization. Templates live as plain files in a
// directory; a missing or unreadable file falls back to a generic embedded
// default rather than failing the turn.
package prompts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultSystem is the fallback chat persona.
const DefaultSystem = "You are a helpful partner. Always try to understand the user's core goal (the 'Why') before providing a detailed solution."

// AssistantPreamble primes the model's first reply so the persona is
// already established when the real conversation starts.
const AssistantPreamble = "Understood. I am ready to act as your strategic partner. How can I help you today?"

// DefaultSummarize is the fallback summarization template. The two
// placeholders are substituted verbatim by Render.
const DefaultSummarize = `Distill the conversation below into a JSON object with exactly these fields:
"why_summary" (the user's core goal), "what_summary" (what was worked on), "how_summary" (the concrete approach).
Respond with the JSON object only.

Previous summary (refine it, do not discard what still holds):
{previous_summary}

Conversation:
{conversation_text}`

// Library loads per-language templates from a directory.
// File naming follows system_prompt_<lang>.txt / summarize_why_prompt_<lang>.txt.
type Library struct {
	dir string
}

// NewLibrary creates a library rooted at dir. An empty dir means
// defaults-only operation, which is always valid.
func NewLibrary(dir string) *Library {
	return &Library{dir: dir}
}

// System returns the chat system prompt for the given language.
func (l *Library) System(lang string) string {
	return l.load(fmt.Sprintf("system_prompt_%s.txt", lang), DefaultSystem)
}

// Summarize returns the summarization template for the given language.
func (l *Library) Summarize(lang string) string {
	return l.load(fmt.Sprintf("summarize_why_prompt_%s.txt", lang), DefaultSummarize)
}

func (l *Library) load(name, fallback string) string {
	if l.dir == "" || !validTemplateName(name) {
		return fallback
	}
	b, err := os.ReadFile(filepath.Join(l.dir, name))
	if err != nil {
		return fallback
	}
	s := strings.TrimSpace(string(b))
	if s == "" {
		return fallback
	}
	return s
}

// validTemplateName rejects names whose language segment could escape the
// template directory.
func validTemplateName(name string) bool {
	return !strings.ContainsAny(name, "/\\") && !strings.Contains(name, "..")
}

// Render substitutes the conversation transcript and the previous summary
// into a summarization template.
func Render(template, conversationText, previousSummary string) string {
	out := strings.ReplaceAll(template, "{conversation_text}", conversationText)
	out = strings.ReplaceAll(out, "{previous_summary}", previousSummary)
	return out
}
