// Package extraction derives entities, preferences, skills and
// interests from session transcripts via an LLM, with confidence
// priors and source-quote validation guarding what enters the graph.
package extraction

// ExtractedEntity is a named entity found in a session.
type ExtractedEntity struct {
	Name        string  `json:"name"`
	EntityType  string  `json:"entity_type"`
	Confidence  float64 `json:"confidence"`
	SourceQuote string  `json:"source_quote,omitempty"`
	EventID     string  `json:"event_id,omitempty"`
}

// ExtractedPreference is an observed user preference.
type ExtractedPreference struct {
	UserID      string  `json:"user_id"`
	Category    string  `json:"category"`
	Key         string  `json:"key"`
	Polarity    string  `json:"polarity"`
	Strength    float64 `json:"strength"`
	Confidence  float64 `json:"confidence"`
	Source      string  `json:"source"`
	Context     string  `json:"context,omitempty"`
	AboutEntity string  `json:"about_entity,omitempty"`
	SourceQuote string  `json:"source_quote,omitempty"`
	EventID     string  `json:"event_id,omitempty"`
}

// ExtractedSkill is an observed user competency.
type ExtractedSkill struct {
	UserID      string  `json:"user_id"`
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Proficiency string  `json:"proficiency"`
	Confidence  float64 `json:"confidence"`
	Source      string  `json:"source"`
	SourceQuote string  `json:"source_quote,omitempty"`
	EventID     string  `json:"event_id,omitempty"`
}

// ExtractedInterest is a topic the user showed interest in.
type ExtractedInterest struct {
	UserID      string  `json:"user_id"`
	EntityName  string  `json:"entity_name"`
	Weight      float64 `json:"weight"`
	Source      string  `json:"source"`
	SourceQuote string  `json:"source_quote,omitempty"`
	EventID     string  `json:"event_id,omitempty"`
}

// SessionExtractionResult is everything one extraction pass produced.
type SessionExtractionResult struct {
	SessionID   string                `json:"session_id"`
	Entities    []ExtractedEntity     `json:"entities"`
	Preferences []ExtractedPreference `json:"preferences"`
	Skills      []ExtractedSkill      `json:"skills"`
	Interests   []ExtractedInterest   `json:"interests"`
}
