package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"docrag/internal/domain"
	"docrag/internal/port"
)

// Prompt templates for the two synthesis modes. The grounded prompt is used
// when retrieval produced context; the fallback prompt tells the model to say
// so when it did not.
const (
	groundedSystemPrompt = "You are a helpful documentation assistant. Answer the user's question " +
		"using only the provided context. If the context does not contain enough " +
		"information to answer, say so clearly. Cite sources by their URL when relevant."

	fallbackSystemPrompt = "You are a helpful documentation assistant. No relevant documentation " +
		"was found for the user's question. Let them know that, and suggest they " +
		"rephrase the question or consult the documentation directly."

	// answerPlaceholder is returned when the generator yields empty text.
	answerPlaceholder = "Unable to generate response."
)

// AnswerUseCase composes retrieval and generation: retrieve the top-k chunks
// for a question, build a source-attributed context block, and synthesize a
// grounded answer.
type AnswerUseCase struct {
	retrieve  *RetrieveUseCase
	generator port.Generator
	log       *logrus.Logger
}

func NewAnswerUseCase(retrieve *RetrieveUseCase, generator port.Generator, log *logrus.Logger) *AnswerUseCase {
	if log == nil {
		log = logrus.New()
	}
	return &AnswerUseCase{retrieve: retrieve, generator: generator, log: log}
}

// Ask retrieves context for the question and synthesizes an answer. Retrieval
// validation errors and downstream failures propagate unchanged so the caller
// classifies them exactly once.
func (u *AnswerUseCase) Ask(ctx context.Context, question string, k int) (*domain.AnswerEnvelope, error) {
	resp, err := u.retrieve.Retrieve(ctx, question, k)
	if err != nil {
		return nil, err
	}

	answer, err := u.Synthesize(ctx, question, resp.Results)
	if err != nil {
		return nil, err
	}

	envelope := &domain.AnswerEnvelope{
		Answer:        answer,
		Sources:       collectSources(resp.Results),
		MatchedChunks: make([]domain.MatchedChunk, 0, len(resp.Results)),
	}
	for _, r := range resp.Results {
		envelope.MatchedChunks = append(envelope.MatchedChunks, domain.MatchedChunk{
			ChunkID:        r.ChunkID,
			Text:           r.ChunkText,
			RelevanceScore: r.RelevanceScore,
		})
	}
	return envelope, nil
}

// Synthesize generates an answer for the question from retrieved results.
// With no results the fallback prompt is used and no context block is sent.
func (u *AnswerUseCase) Synthesize(ctx context.Context, question string, results []domain.SearchResult) (string, error) {
	var systemPrompt, userMessage string
	if len(results) == 0 {
		systemPrompt = fallbackSystemPrompt
		userMessage = question
	} else {
		systemPrompt = groundedSystemPrompt
		userMessage = fmt.Sprintf("Context:\n%s\n\nQuestion: %s", BuildContext(results), question)
	}

	u.log.WithFields(logrus.Fields{
		"question": truncate(question, 50),
		"results":  len(results),
	}).Info("synthesizing answer")

	answer, err := u.generator.Generate(ctx, systemPrompt, userMessage)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(answer) == "" {
		u.log.Warn("generator returned empty text")
		return answerPlaceholder, nil
	}
	return answer, nil
}

// BuildContext renders retrieved chunks as a source-attributed context block:
// one "[Source i: url]" header per chunk, blocks separated by a blank line.
// Returns the empty string for no results.
func BuildContext(results []domain.SearchResult) string {
	if len(results) == 0 {
		return ""
	}
	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = fmt.Sprintf("[Source %d: %s]\n%s", i+1, r.URL, r.ChunkText)
	}
	return strings.Join(blocks, "\n\n")
}

// collectSources dedupes result URLs preserving first-seen order.
func collectSources(results []domain.SearchResult) []string {
	seen := make(map[string]struct{}, len(results))
	sources := make([]string, 0, len(results))
	for _, r := range results {
		if _, ok := seen[r.URL]; ok {
			continue
		}
		seen[r.URL] = struct{}{}
		sources = append(sources, r.URL)
	}
	return sources
}
