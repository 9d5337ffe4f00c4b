package query

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

const (
	// fallbackRecordLimit bounds the context window sent to the generative
	// service: the first N records, stringified.
	fallbackRecordLimit = 500

	fallbackTimeout = 60 * time.Second

	fallbackSystemPrompt = "You are a data assistant. Answer based on the dataset."
)

// invokeFallback forwards the question plus a bounded dataset prefix to the
// generative service. Its answer comes back verbatim under the AI marker.
// One retry is allowed on a transport failure; a dead service degrades to an
// error the caller surfaces distinctly, never a hang.
func (e *Engine) invokeFallback(ctx context.Context, in *Input) (string, error) {
	if e.Fallback == nil {
		return "", fmt.Errorf("generative fallback not configured")
	}

	limit := len(in.Data.Records)
	if limit > fallbackRecordLimit {
		limit = fallbackRecordLimit
	}
	lines := make([]string, 0, limit)
	for _, rec := range in.Data.Records[:limit] {
		lines = append(lines, in.Data.StringifyRecord(rec))
	}
	userPrompt := fmt.Sprintf("Dataset:\n%s\n\nUser Question:\n%s", strings.Join(lines, "\n"), in.Raw)

	callCtx, cancel := context.WithTimeout(ctx, fallbackTimeout)
	defer cancel()

	text, err := e.Fallback.Complete(callCtx, fallbackSystemPrompt, userPrompt)
	if err != nil && callCtx.Err() == nil && retryableFallback(err) {
		// Transient transport failure: retry once. Semantic failures come
		// back as text, not errors, so they are never retried.
		log.Printf("[Query] fallback call failed, retrying once: %v", err)
		text, err = e.Fallback.Complete(callCtx, fallbackSystemPrompt, userPrompt)
	}
	if err != nil {
		return "", fmt.Errorf("AI_FALLBACK_ERROR: %w", err)
	}

	return AIPrefix + text, nil
}

// retryableFallback reports whether a failed fallback call is worth one more
// attempt. Providers tag non-2xx API responses (quota, bad request) with an
// _API_ERROR code; those fail identically on a second try, so only transport
// failures retry.
func retryableFallback(err error) bool {
	return !strings.Contains(err.Error(), "_API_ERROR:")
}
