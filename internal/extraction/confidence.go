package extraction

import (
	"strings"

	"github.com/moolen/atlas/internal/entity"
)

// confidenceCeilings caps extraction confidence by how the information
// was obtained. An LLM may report higher confidence; the prior wins.
var confidenceCeilings = map[string]float64{
	"explicit":               0.95,
	"declared":               0.95,
	"observed":               0.85,
	"implicit":               0.7,
	"implicit_intentional":   0.7,
	"inferred":               0.6,
	"implicit_unintentional": 0.5,
}

// quoteMatchThreshold is the minimum fuzzy ratio for a source quote to
// count as present in the transcript.
const quoteMatchThreshold = 0.8

// ApplyConfidencePrior caps a confidence at the ceiling for its source
// method. Unknown methods pass through unchanged.
func ApplyConfidencePrior(confidence float64, source string) float64 {
	ceiling, ok := confidenceCeilings[strings.ToLower(source)]
	if !ok {
		return confidence
	}
	if confidence > ceiling {
		return ceiling
	}
	return confidence
}

// ValidateSourceQuote checks that a claimed quote actually appears in
// the transcript, tolerating small transcription drift. An empty quote
// fails: extractions must cite their evidence.
func ValidateSourceQuote(quote, transcript string) bool {
	normalizedQuote := normalizeText(quote)
	normalizedTranscript := normalizeText(transcript)
	if normalizedQuote == "" || normalizedTranscript == "" {
		return false
	}

	if strings.Contains(normalizedTranscript, normalizedQuote) {
		return true
	}

	// Fuzzy fallback: slide a quote-sized window over the transcript.
	quoteLen := len(normalizedQuote)
	if quoteLen > len(normalizedTranscript) {
		return entity.Similarity(normalizedQuote, normalizedTranscript) >= quoteMatchThreshold
	}

	step := quoteLen / 4
	if step < 1 {
		step = 1
	}
	for start := 0; start+quoteLen <= len(normalizedTranscript); start += step {
		window := normalizedTranscript[start : start+quoteLen]
		if entity.Similarity(normalizedQuote, window) >= quoteMatchThreshold {
			return true
		}
	}
	return false
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
