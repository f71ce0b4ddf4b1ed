// Package classify wraps the Gemini API for intent classification.
// The closed intent set and prompt shape follow the support-desk
// taxonomy in types; anything the model returns outside that set is a
// classification error the orchestrator degrades to fallback_human.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/openhelpdesk/deskd/internal/types"
)

// ErrBadOutput marks model output that parsed or validated wrong. The
// orchestrator degrades these to fallback_human instead of retrying;
// everything else from Classify is treated as transient infrastructure.
var ErrBadOutput = errors.New("unusable classifier output")

// Classifier produces an IntentResult for one inbound message.
type Classifier interface {
	Classify(ctx context.Context, body, sender string, history []*types.ConversationEntry) (*types.IntentResult, error)
}

const defaultModel = "gemini-2.5-flash"

const promptTemplate = `You are an AI assistant that classifies customer support emails into specific intents.

Email from: %s
Email content: %s

Previous conversation (if any): %s

Classify this email into one of these intents:
1. bank_statement - Customer requesting bank statements
2. password_update - Customer wanting to update their password
3. general_query - General questions about products/services
4. urgent_human - Urgent issues requiring immediate human attention
5. fallback_human - Complex issues that need human review

For each intent, also extract relevant entities:
- bank_statement: months (number of months requested)
- password_update: current_pw, new_pw (if provided)
- general_query: topic, specific_question
- urgent_human: urgency_level, issue_type
- fallback_human: complexity_reason

Respond in JSON format:
{
    "intent": "intent_name",
    "confidence": 0.95,
    "entities": {
        "key": "value"
    },
    "reasoning": "Brief explanation of classification"
}`

// Gemini is the production classifier.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini-backed classifier.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = defaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// Classify sends one classification request and parses the JSON reply.
func (g *Gemini) Classify(ctx context.Context, body, sender string, history []*types.ConversationEntry) (*types.IntentResult, error) {
	prompt := fmt.Sprintf(promptTemplate, sender, body, formatHistory(history))

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.1),
		MaxOutputTokens:  1024,
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("gemini classify: %w", err)
	}

	return ParseResult(resp.Text())
}

// formatHistory renders the last turns of a conversation for the
// prompt, truncating long bodies.
func formatHistory(history []*types.ConversationEntry) string {
	if len(history) == 0 {
		return "(none)"
	}
	if len(history) > 5 {
		history = history[len(history)-5:]
	}
	var b strings.Builder
	for _, e := range history {
		body := e.Body
		if len(body) > 100 {
			body = body[:100] + "..."
		}
		fmt.Fprintf(&b, "- %s [%s]: %s\n", e.Timestamp, e.Direction, body)
	}
	return b.String()
}

// wireResult is the JSON shape the model is asked to emit.
type wireResult struct {
	Intent     string         `json:"intent"`
	Confidence float64        `json:"confidence"`
	Entities   map[string]any `json:"entities"`
	Reasoning  string         `json:"reasoning"`
}

// ParseResult validates and converts raw model output. Output that is
// not JSON, or names an intent outside the closed set, is an error,
// never silently defaulted.
func ParseResult(raw string) (*types.IntentResult, error) {
	raw = stripFences(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty response", ErrBadOutput)
	}

	var w wireResult
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadOutput, err)
	}

	intent, err := types.ParseIntent(w.Intent)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadOutput, err)
	}

	confidence := w.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	entities := make(map[string]string, len(w.Entities))
	for k, v := range w.Entities {
		switch val := v.(type) {
		case string:
			entities[k] = val
		case float64:
			entities[k] = strings.TrimSuffix(fmt.Sprintf("%v", val), ".0")
		case bool:
			entities[k] = fmt.Sprintf("%t", val)
		default:
			// Nested structures are flattened to their JSON form.
			if raw, err := json.Marshal(v); err == nil {
				entities[k] = string(raw)
			}
		}
	}

	return &types.IntentResult{
		Intent:     intent,
		Confidence: confidence,
		Entities:   entities,
		Reasoning:  w.Reasoning,
	}, nil
}

// stripFences removes a markdown code fence around a JSON reply.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}
