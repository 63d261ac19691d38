package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"ai-docassist-be/pkg/prompts"

	"golang.org/x/sync/errgroup"
)

// Chain is the call surface the document pipelines depend on. Complete
// runs a single fully-formatted prompt; Summarize condenses an ordered
// chunk list into one summary.
type Chain interface {
	Complete(ctx context.Context, prompt string, think bool) (string, error)
	Summarize(ctx context.Context, chunks []string) (string, error)
}

// thinkBlock matches reasoning traces emitted by models that support the
// /no_think toggle (e.g. qwen3 on ollama). Stripped from every response.
var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// Engine implements Chain on top of any LLMProvider. One instance is
// shared by all pipelines; it holds no per-call state.
type Engine struct {
	provider LLMProvider

	// mapConcurrency caps parallel per-chunk summarization calls.
	mapConcurrency int
}

func NewEngine(provider LLMProvider) *Engine {
	return &Engine{
		provider:       provider,
		mapConcurrency: 4,
	}
}

// Complete sends the prompt as a single user turn. When think is false
// the prompt is suffixed with /no_think so reasoning models answer
// directly; any <think> block that slips through is removed either way.
func (e *Engine) Complete(ctx context.Context, prompt string, think bool) (string, error) {
	if !think {
		prompt = prompt + "/no_think"
	}
	result, err := e.provider.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("llm complete: %w", err)
	}
	return strings.TrimSpace(thinkBlock.ReplaceAllString(result, "")), nil
}

// Summarize performs map-reduce summarization: each chunk is summarized
// concurrently, then the partial summaries are combined in input order.
func (e *Engine) Summarize(ctx context.Context, chunks []string) (string, error) {
	if len(chunks) == 0 {
		return "", fmt.Errorf("llm summarize: no chunks")
	}

	partials := make([]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.mapConcurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			out, err := e.Complete(gctx, prompts.SummarizeMap(chunk), false)
			if err != nil {
				return fmt.Errorf("map chunk %d: %w", i, err)
			}
			partials[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", fmt.Errorf("llm summarize: %w", err)
	}

	if len(partials) == 1 {
		return partials[0], nil
	}
	combined, err := e.Complete(ctx, prompts.SummarizeCombine(strings.Join(partials, "\n\n")), false)
	if err != nil {
		return "", fmt.Errorf("llm summarize combine: %w", err)
	}
	return combined, nil
}
