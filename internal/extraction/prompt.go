package extraction

import (
	"fmt"
	"strings"
	"time"

	"github.com/moolen/atlas/internal/models"
)

const systemPrompt = `You extract structured knowledge from AI agent session transcripts.
Return a single JSON object with the keys "entities", "preferences", "skills" and "interests".

Schema:
- entities: [{name, entity_type (agent|user|service|tool|resource|concept), confidence (0-1), source_quote, event_id}]
- preferences: [{user_id, category, key, polarity (positive|negative|neutral), strength (0-1), confidence (0-1), source (explicit|implicit|observed|inferred), context, about_entity, source_quote, event_id}]
- skills: [{user_id, name, category, proficiency (novice|intermediate|advanced|expert), confidence (0-1), source (declared|observed|inferred), source_quote, event_id}]
- interests: [{user_id, entity_name, weight (0-1), source, source_quote, event_id}]

Rules:
- Only extract what the transcript supports; every item must carry a verbatim source_quote.
- Reuse a name from the known-entities list when it refers to the same thing.
- Omit a key entirely rather than returning invented items.`

// BuildPrompt renders the transcript and the known-entity dedup list
// into the extraction user prompt.
func BuildPrompt(sessionID string, events []*models.Event, knownEntities []string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Session: %s\n\n", sessionID)

	if len(knownEntities) > 0 {
		b.WriteString("Known entities (reuse these names for the same things):\n")
		for _, name := range knownEntities {
			fmt.Fprintf(&b, "- %s\n", name)
		}
		b.WriteString("\n")
	}

	b.WriteString("Transcript:\n")
	for i, event := range events {
		fmt.Fprintf(&b, "[Turn %d] [%s] %s", i+1, event.OccurredAt.UTC().Format(time.RFC3339), event.EventType)
		if event.ToolName != "" {
			fmt.Fprintf(&b, " tool=%s", event.ToolName)
		}
		fmt.Fprintf(&b, " agent=%s event_id=%s", event.AgentID, event.EventID)
		if event.PayloadRef != "" {
			fmt.Fprintf(&b, "\n  payload: %s", event.PayloadRef)
		}
		if event.Status != "" {
			fmt.Fprintf(&b, "\n  status: %s", event.Status)
		}
		b.WriteString("\n")
	}

	return b.String()
}
