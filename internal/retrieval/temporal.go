package retrieval

import (
	"regexp"
	"time"

	dps "github.com/markusmobius/go-dateparser"
)

// temporalPhrasePattern matches the date expressions queries commonly
// carry: relative offsets, named days, and explicit dates.
var temporalPhrasePattern = regexp.MustCompile(
	`(?i)\b(\d+\s+(?:minutes?|hours?|days?|weeks?|months?)\s+ago` +
		`|yesterday|today|tonight|this\s+(?:morning|week|month)` +
		`|last\s+(?:night|week|month|year|monday|tuesday|wednesday|thursday|friday|saturday|sunday)` +
		`|on\s+(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday)` +
		`|\d{4}-\d{2}-\d{2}` +
		`|(?:january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2})\b`)

// TimeWindow bounds a temporal seed search.
type TimeWindow struct {
	From time.Time
	To   time.Time
}

// ExtractTimeWindow finds the first parseable date expression in the
// query and widens it into a search window. Returns nil when the query
// carries no temporal anchor.
func ExtractTimeWindow(query string, now time.Time) *TimeWindow {
	phrases := temporalPhrasePattern.FindAllString(query, -1)
	if len(phrases) == 0 {
		return nil
	}

	parser := dps.Parser{}
	cfg := &dps.Configuration{
		CurrentTime:         now,
		PreferredDateSource: dps.CurrentPeriod,
	}

	for _, phrase := range phrases {
		parsed, err := parser.Parse(cfg, phrase)
		if err != nil || parsed.IsZero() {
			continue
		}
		anchor := parsed.Time
		// A day on either side keeps vague anchors ("last week") useful.
		return &TimeWindow{
			From: anchor.Add(-24 * time.Hour),
			To:   anchor.Add(24 * time.Hour),
		}
	}
	return nil
}
