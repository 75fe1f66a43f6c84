// Package summarizer condenses conversation turns into short summaries using the
// text-generation capability.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/llm"
	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/model"
)

const DefaultMaxTurns = 30

const fullTemplate = `You are a conversation summarizer for an AI assistant.

Your task: Create a concise summary of the conversation below that captures:
1. Main topics discussed
2. Key information exchanged
3. Important decisions or conclusions
4. User preferences or context

Keep the summary under 200 words. Focus on what's most important for future context.

Conversation:
%s

Summary:`

const progressiveTemplate = `You are updating a conversation summary.

Previous summary:
%s

New conversation turns:
%s

Create an updated summary that incorporates the new information while keeping it concise (under 200 words).

Updated summary:`

const factsTemplate = `Extract key facts and information from this conversation.
Return as a bulleted list of important points.

Conversation:
%s

Key facts:`

// ErrEmptySummary is returned when the generator answers with blank text.
var ErrEmptySummary = errors.New("summarizer: empty result")

type Summarizer struct {
	gen      llm.Generator
	maxTurns int
	timeout  time.Duration
}

type Option func(*Summarizer)

// WithMaxTurns bounds how many of the most recent turns Summarize reads.
func WithMaxTurns(n int) Option {
	return func(s *Summarizer) {
		if n > 0 {
			s.maxTurns = n
		}
	}
}

// WithTimeout bounds each generation call.
func WithTimeout(d time.Duration) Option { return func(s *Summarizer) { s.timeout = d } }

func New(gen llm.Generator, opts ...Option) *Summarizer {
	s := &Summarizer{gen: gen, maxTurns: DefaultMaxTurns}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Summarize produces a fresh summary of the most recent turns.
func (s *Summarizer) Summarize(ctx context.Context, turns []model.Message) (string, error) {
	if len(turns) > s.maxTurns {
		turns = turns[len(turns)-s.maxTurns:]
	}
	return s.ask(ctx, fmt.Sprintf(fullTemplate, Format(turns)))
}

// ProgressiveSummarize folds newTurns into an existing summary.
func (s *Summarizer) ProgressiveSummarize(ctx context.Context, oldSummary string, newTurns []model.Message) (string, error) {
	return s.ask(ctx, fmt.Sprintf(progressiveTemplate, oldSummary, Format(newTurns)))
}

// ExtractKeyFacts asks for a bulleted fact list over the most recent turns and
// returns the bullet lines without markers.
func (s *Summarizer) ExtractKeyFacts(ctx context.Context, turns []model.Message) ([]string, error) {
	if len(turns) > s.maxTurns {
		turns = turns[len(turns)-s.maxTurns:]
	}
	out, err := s.ask(ctx, fmt.Sprintf(factsTemplate, Format(turns)))
	if err != nil {
		return nil, err
	}
	return parseBullets(out), nil
}

func (s *Summarizer) ask(ctx context.Context, prompt string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	out, err := s.gen.Generate(ctx, []model.Message{{Role: model.RoleUser, Content: prompt}}, llm.Options{})
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrEmptySummary
	}
	return out, nil
}

// Format renders turns as "User: ..." / "Assistant: ..." lines.
func Format(turns []model.Message) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		label := "Assistant"
		if t.Role == model.RoleUser {
			label = "User"
		}
		lines = append(lines, label+": "+t.Content)
	}
	return strings.Join(lines, "\n")
}

func parseBullets(text string) []string {
	var facts []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.ContainsAny(line[:1], "-*") && !strings.HasPrefix(line, "•") {
			continue
		}
		facts = append(facts, strings.TrimSpace(strings.TrimLeft(line, "•-*")))
	}
	return facts
}
