// Package consolidation implements the memory maintenance cycle:
// episode detection, summary writing, centrality-based importance
// updates and tiered forgetting.
package consolidation

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// EpisodeGap is the idle interval that splits a session into episodes.
const EpisodeGap = 30 * time.Minute

// EventRef is the slice of an event the consolidation cycle works with.
type EventRef struct {
	EventID    string
	EventType  string
	OccurredAt time.Time
	AgentID    string
	ToolName   string
	Summary    string
}

// Episode is a contiguous burst of session activity.
type Episode struct {
	Events []EventRef
	Start  time.Time
	End    time.Time
}

// SplitEpisodes partitions time-ordered events into episodes wherever
// the gap between consecutive events exceeds EpisodeGap.
func SplitEpisodes(events []EventRef) []Episode {
	if len(events) == 0 {
		return nil
	}

	sorted := make([]EventRef, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].OccurredAt.Before(sorted[j].OccurredAt)
	})

	var episodes []Episode
	current := Episode{Events: []EventRef{sorted[0]}, Start: sorted[0].OccurredAt, End: sorted[0].OccurredAt}
	for _, event := range sorted[1:] {
		if event.OccurredAt.Sub(current.End) > EpisodeGap {
			episodes = append(episodes, current)
			current = Episode{Events: nil, Start: event.OccurredAt}
		}
		current.Events = append(current.Events, event)
		current.End = event.OccurredAt
	}
	return append(episodes, current)
}

// SummaryID derives a deterministic summary identifier from the scope
// and the covered event set, so repeated consolidation cycles update
// rather than duplicate summaries.
func SummaryID(scope, scopeID string, eventIDs []string) string {
	sorted := make([]string, len(eventIDs))
	copy(sorted, eventIDs)
	sort.Strings(sorted)
	h := sha256.Sum256([]byte(scope + "|" + strings.Join(sorted, "|")))
	return fmt.Sprintf("summary-%s-%s", scopeID, hex.EncodeToString(h[:])[:12])
}

// BuildSummaryContent renders the compact textual gist of a set of
// events: counts, the tools and agents involved, and the time span.
func BuildSummaryContent(scope, scopeID string, events []EventRef) string {
	if len(events) == 0 {
		return fmt.Sprintf("%s %s: no events", scope, scopeID)
	}

	tools := map[string]int{}
	agents := map[string]struct{}{}
	types := map[string]int{}
	for _, e := range events {
		if e.ToolName != "" {
			tools[e.ToolName]++
		}
		if e.AgentID != "" {
			agents[e.AgentID] = struct{}{}
		}
		types[e.EventType]++
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %d events", scope, scopeID, len(events))
	if len(agents) > 0 {
		fmt.Fprintf(&b, " across %d agent(s)", len(agents))
	}
	if len(tools) > 0 {
		fmt.Fprintf(&b, "; tools: %s", strings.Join(sortedKeys(tools), ", "))
	}
	fmt.Fprintf(&b, "; activity: %s", strings.Join(sortedKeys(types), ", "))
	fmt.Fprintf(&b, "; span %s to %s",
		events[0].OccurredAt.UTC().Format(time.RFC3339),
		events[len(events)-1].OccurredAt.UTC().Format(time.RFC3339))
	return b.String()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
