package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/moolen/atlas/internal/logging"
	"github.com/moolen/atlas/internal/models"
)

// Extractor derives structured knowledge from a session transcript.
type Extractor interface {
	ExtractSession(ctx context.Context, sessionID string, events []*models.Event, knownEntities []string) (*SessionExtractionResult, error)
}

// Config holds the LLM extraction settings.
type Config struct {
	Model     string
	MaxTokens int
	APIKey    string
}

// DefaultConfig returns the extraction model defaults.
func DefaultConfig() Config {
	return Config{
		Model:     string(anthropic.ModelClaudeSonnet4_0),
		MaxTokens: 4096,
	}
}

type llmExtractor struct {
	client anthropic.Client
	config Config
	logger *logging.Logger
}

// NewExtractor creates an LLM-backed extractor. The API key falls back
// to the ANTHROPIC_API_KEY environment variable when unset.
func NewExtractor(cfg Config) Extractor {
	if cfg.Model == "" {
		cfg.Model = DefaultConfig().Model
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultConfig().MaxTokens
	}

	var client anthropic.Client
	if cfg.APIKey != "" {
		client = anthropic.NewClient(option.WithAPIKey(cfg.APIKey))
	} else {
		client = anthropic.NewClient()
	}

	return &llmExtractor{
		client: client,
		config: cfg,
		logger: logging.GetLogger("extraction"),
	}
}

func (e *llmExtractor) ExtractSession(ctx context.Context, sessionID string, events []*models.Event, knownEntities []string) (*SessionExtractionResult, error) {
	prompt := BuildPrompt(sessionID, events, knownEntities)

	resp, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.config.Model),
		MaxTokens: int64(e.config.MaxTokens),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("extraction call failed: %w", err)
	}

	var textParts []string
	for i := range resp.Content {
		if resp.Content[i].Type == "text" {
			textParts = append(textParts, resp.Content[i].Text)
		}
	}

	result, err := ParseResult(strings.Join(textParts, ""))
	if err != nil {
		return nil, err
	}
	result.SessionID = sessionID

	return Sanitize(result, prompt, e.logger), nil
}

// ParseResult decodes the JSON object from an LLM reply, tolerating
// surrounding prose.
func ParseResult(text string) (*SessionExtractionResult, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in extraction reply")
	}

	var result SessionExtractionResult
	if err := json.Unmarshal([]byte(text[start:end+1]), &result); err != nil {
		return nil, fmt.Errorf("decoding extraction reply: %w", err)
	}
	return &result, nil
}

// Sanitize enforces the extraction guardrails: confidence priors cap
// each item by its source method, and items whose quote cannot be found
// in the transcript are dropped.
func Sanitize(result *SessionExtractionResult, transcript string, logger *logging.Logger) *SessionExtractionResult {
	clean := &SessionExtractionResult{SessionID: result.SessionID}

	for _, item := range result.Entities {
		if !ValidateSourceQuote(item.SourceQuote, transcript) {
			logger.Debug("Dropping entity %q: quote not found", item.Name)
			continue
		}
		clean.Entities = append(clean.Entities, item)
	}
	for _, item := range result.Preferences {
		if !ValidateSourceQuote(item.SourceQuote, transcript) {
			logger.Debug("Dropping preference %s/%s: quote not found", item.Category, item.Key)
			continue
		}
		item.Confidence = ApplyConfidencePrior(item.Confidence, item.Source)
		clean.Preferences = append(clean.Preferences, item)
	}
	for _, item := range result.Skills {
		if !ValidateSourceQuote(item.SourceQuote, transcript) {
			logger.Debug("Dropping skill %q: quote not found", item.Name)
			continue
		}
		item.Confidence = ApplyConfidencePrior(item.Confidence, item.Source)
		clean.Skills = append(clean.Skills, item)
	}
	for _, item := range result.Interests {
		if !ValidateSourceQuote(item.SourceQuote, transcript) {
			logger.Debug("Dropping interest %q: quote not found", item.EntityName)
			continue
		}
		clean.Interests = append(clean.Interests, item)
	}
	return clean
}
