package crystal

import (
	"strings"

	"github.com/pcl-labs/navigator/pkg/types"
)

// DraftMarker prefixes the title of an interim record so a placeholder is
// visually distinct from a model-generated summary.
const DraftMarker = "[Draft] "

const (
	draftWhyLimit  = 50
	draftWhatLimit = 100
)

// DraftSummary builds the cheap placeholder summary for a brand-new
// conversation from its first user message. No model call involved.
func DraftSummary(firstMessage string) types.Summary {
	return types.Summary{
		Why:  DraftMarker + truncateRunes(firstMessage, draftWhyLimit) + "...",
		What: truncateRunes(firstMessage, draftWhatLimit),
		How:  "",
	}
}

// truncateRunes takes the first limit runes of s, trimmed. Rune-based so
// multibyte input never gets split mid-character.
func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) > limit {
		runes = runes[:limit]
	}
	return strings.TrimSpace(string(runes))
}
