package classify

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/openhelpdesk/deskd/internal/types"
)

const composeTemplate = `You are a helpful customer support assistant. Answer the customer's question based on the provided context and conversation history.

Customer question: %s

Relevant context from knowledge base:
%s

Previous conversation: %s

Provide a helpful, accurate, and professional response. If you cannot answer based on the context, politely explain what information you need or suggest contacting human support.

Include citations for any specific information you reference from the context.

Response:`

// Compose drafts a reply to a general query grounded on knowledge-base
// context. Plain text in, plain text out; review gating happens in the
// draft queue, not here.
func (g *Gemini) Compose(ctx context.Context, question, kbContext string, history []*types.ConversationEntry) (string, error) {
	if kbContext == "" {
		kbContext = "(no matching knowledge base content)"
	}
	prompt := fmt.Sprintf(composeTemplate, question, kbContext, formatHistory(history))

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0.3),
		MaxOutputTokens: 1024,
	})
	if err != nil {
		return "", fmt.Errorf("gemini compose: %w", err)
	}
	return resp.Text(), nil
}
