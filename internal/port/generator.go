package port

import "context"

// Generator is the external text-generation capability answer synthesis
// delegates to. The pipeline treats it as a black box: prompt in, text out.
type Generator interface {
	// Generate produces text from a system prompt and a user message.
	Generate(ctx context.Context, systemPrompt, userMessage string) (string, error)
}
