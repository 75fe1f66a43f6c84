// Package contextbuilder assembles the prompt context for one turn under a token budget.
//
// Entries are added in strict priority order: system prompt, conversation summary,
// retrieved memories, then recent turns. The summary and memories are each limited to
// a share of the budget left after the entries before them and are dropped whole when
// they do not fit. Turns fill what remains, newest first, and the fill stops at the
// first turn that does not fit so the included turns always form a suffix of the history.
package contextbuilder

import (
	"fmt"
	"strings"

	"github.com/Dipang-bhadrecha/promptlearn-ai-service/internal/model"
)

const (
	SummaryLabel = "[Previous conversation summary]\n"
	MemoryLabel  = "[Relevant context from past conversations]\n"

	DefaultSummaryShare = 0.2
	DefaultMemoryShare  = 0.3

	dedupPrefixRunes = 100
)

// Builder builds contexts. It is safe for concurrent use.
type Builder struct {
	systemPrompt string
	est          TokenEstimator
	summaryShare float64
	memoryShare  float64
}

// Option configures a Builder.
type Option func(*Builder)

// WithSystemPrompt sets the leading system entry. An empty prompt adds no entry.
func WithSystemPrompt(p string) Option { return func(b *Builder) { b.systemPrompt = p } }

// WithEstimator replaces the token estimator.
func WithEstimator(e TokenEstimator) Option { return func(b *Builder) { b.est = e } }

// WithShares overrides the budget fractions for the summary and the memories entry.
func WithShares(summary, memories float64) Option {
	return func(b *Builder) {
		b.summaryShare = summary
		b.memoryShare = memories
	}
}

// New returns a Builder with the default estimator and shares.
func New(opts ...Option) *Builder {
	b := &Builder{
		est:          RatioEstimator{K: DefaultTokensPerChar},
		summaryShare: DefaultSummaryShare,
		memoryShare:  DefaultMemoryShare,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Context is an assembled, ordered prompt context.
type Context struct {
	Entries []model.ContextEntry
	Stats   Stats
}

// Messages converts the entries for the generation capability.
func (c *Context) Messages() []model.Message {
	out := make([]model.Message, len(c.Entries))
	for i, e := range c.Entries {
		out[i] = e.Message()
	}
	return out
}

// Stats describes a built context. It is informational only.
type Stats struct {
	Budget           int
	TotalEntries     int
	TotalTokens      int
	ByRole           map[model.Role]int
	SummaryIncluded  bool
	MemoriesIncluded bool
	IncludedTurns    int
	SkippedTurns     int
	DroppedTurns     int
}

// Build assembles the context for history (oldest first) within budget tokens.
// It fails with model.ErrCapacityExceeded when the system prompt alone does not fit.
func (b *Builder) Build(history []model.Message, summary string, memories []model.RetrievedMemory, budget int) (*Context, error) {
	c := &Context{Stats: Stats{Budget: budget, ByRole: map[model.Role]int{}}}
	remaining := budget
	seen := map[string]struct{}{}

	add := func(role model.Role, content string, tokens int) {
		c.Entries = append(c.Entries, model.ContextEntry{Role: role, Content: content})
		c.Stats.ByRole[role]++
		c.Stats.TotalTokens += tokens
		remaining -= tokens
		seen[dedupKey(content)] = struct{}{}
	}

	if b.systemPrompt != "" {
		tokens := b.est.Estimate(b.systemPrompt)
		if tokens > remaining {
			return nil, fmt.Errorf("build context: %w", &model.CapacityError{Needed: tokens, Budget: budget})
		}
		add(model.RoleSystem, b.systemPrompt, tokens)
	}

	if strings.TrimSpace(summary) != "" {
		content := SummaryLabel + summary
		tokens := b.est.Estimate(content)
		if fitsShare(tokens, remaining, b.summaryShare) {
			add(model.RoleSystem, content, tokens)
			c.Stats.SummaryIncluded = true
		}
	}

	if text := FormatMemories(memories); text != "" {
		content := MemoryLabel + text
		tokens := b.est.Estimate(content)
		if fitsShare(tokens, remaining, b.memoryShare) {
			add(model.RoleSystem, content, tokens)
			c.Stats.MemoriesIncluded = true
		}
	}

	// newest to oldest; collected in reverse and flipped afterwards
	var picked []model.Message
	var pickedTokens []int
	for i := len(history) - 1; i >= 0; i-- {
		m := history[i]
		key := dedupKey(m.Content)
		if _, dup := seen[key]; dup {
			c.Stats.SkippedTurns++
			continue
		}
		tokens := b.est.Estimate(m.Content)
		if tokens > remaining {
			c.Stats.DroppedTurns = i + 1
			break
		}
		picked = append(picked, m)
		pickedTokens = append(pickedTokens, tokens)
		seen[key] = struct{}{}
		remaining -= tokens
	}
	for i := len(picked) - 1; i >= 0; i-- {
		m := picked[i]
		c.Entries = append(c.Entries, model.ContextEntry{Role: m.Role, Content: m.Content})
		c.Stats.ByRole[m.Role]++
		c.Stats.TotalTokens += pickedTokens[i]
	}
	c.Stats.IncludedTurns = len(picked)
	c.Stats.TotalEntries = len(c.Entries)
	return c, nil
}

// CountTokens estimates the cost of a list of entries.
func (b *Builder) CountTokens(entries []model.ContextEntry) int {
	total := 0
	for _, e := range entries {
		total += b.est.Estimate(e.Content)
	}
	return total
}

// FormatMemories renders memories as a numbered list, one per line.
func FormatMemories(memories []model.RetrievedMemory) string {
	if len(memories) == 0 {
		return ""
	}
	lines := make([]string, 0, len(memories))
	for i, m := range memories {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, m.Content))
	}
	return strings.Join(lines, "\n")
}

func fitsShare(tokens, remaining int, share float64) bool {
	return tokens <= remaining && float64(tokens) <= float64(remaining)*share
}

// dedupKey normalises content for near-duplicate detection: trimmed, lower-cased, first 100 runes.
func dedupKey(content string) string {
	k := strings.ToLower(strings.TrimSpace(content))
	if r := []rune(k); len(r) > dedupPrefixRunes {
		k = string(r[:dedupPrefixRunes])
	}
	return k
}
