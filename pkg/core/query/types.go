// Package query answers free-text questions about a tabular dataset.
// A fixed, ordered rule cascade tries to produce a deterministic answer;
// only when no rule matches is the question forwarded to the generative
// fallback. Deterministic and AI answers carry distinct markers so the
// frontend (and the user) can always tell them apart.
package query

import (
	"context"
	"time"

	"cubitai/pkg/core/dataset"
)

// Answer markers. LogicPrefix marks answers computed by the rule cascade,
// AIPrefix marks generative fallback answers.
const (
	LogicPrefix = "🔒 Logic result: "
	AIPrefix    = "🤖 AI-predicted response:\n"
)

// WarnPrefix marks a rule-evaluation fault converted into a user-visible
// answer instead of a failed request.
const WarnPrefix = "⚠️ "

// Completer is the generative service seam: synchronous text-in/text-out.
// agent.Manager satisfies it through a thin adapter at the API layer.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Input carries one request's question and an immutable snapshot of the
// user's dataset plus the pre-resolved canonical columns.
type Input struct {
	Question string            // lowercased question text
	Raw      string            // question as the user typed it
	Data     *dataset.Dataset
	Resolved map[string]string // canonical field key → dataset column
	Now      time.Time         // evaluation-time clock, injectable for tests
}

// Response is the answer envelope for /api/data/ask.
type Response struct {
	Answer     string `json:"answer"`
	AnswerHTML string `json:"answer_html,omitempty"`
}
