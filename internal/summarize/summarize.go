// Package summarize implements the Session Summarizer (C13): deterministic,
// network-free extraction of a goal and candidate files from prior session
// messages, used to seed a plan via "plan create --from-session".
package summarize

import (
	"regexp"
	"strings"

	"github.com/codepunk/cli/internal/planengine/planstore"
	"github.com/codepunk/cli/internal/tokencount"
)

// Message is one sampled session message.
type Message struct {
	Role string // "user", "assistant", or "tool"
	Text string
}

// Options controls sampling.
type Options struct {
	MaxMessages         int
	IncludeToolMessages bool
}

// candidateFilePattern matches path-like tokens with a recognized
// extension: the set the AI Plan Generator's heuristic fallback uses (see
// internal/aiplan) plus go, ts, tsx, jsx and py. Extensions match in lower
// case only.
var candidateFilePattern = regexp.MustCompile(`[A-Za-z0-9_./\\-]+\.(?:html|css|js|md|json|yml|yaml|toml|go|ts|tsx|jsx|py)`)

var goalVerbs = []string{"add", "update", "fix", "refactor", "remove", "implement"}

// Summarize extracts a PlanSummary from messages, or returns nil if there
// are fewer than 2 user messages total (insufficient context to seed a
// plan).
func Summarize(messages []Message, opts Options) *planstore.PlanSummary {
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = len(messages)
	}

	var userMessages []Message
	var sampled []Message
	for _, m := range messages {
		if m.Role == "user" {
			userMessages = append(userMessages, m)
		}
		if m.Role == "user" || (opts.IncludeToolMessages && m.Role == "tool") {
			sampled = append(sampled, m)
		}
	}
	if len(userMessages) < 2 {
		return nil
	}

	totalMessages := len(sampled)
	if len(sampled) > opts.MaxMessages {
		sampled = sampled[len(sampled)-opts.MaxMessages:]
	}

	goal := inferGoal(userMessages[0].Text)

	var sampleText strings.Builder
	for _, m := range sampled {
		sampleText.WriteString(m.Text)
		sampleText.WriteByte('\n')
	}
	candidateFiles := extractCandidateFiles(sampleText.String())

	sampleChars := len(goal)
	for _, f := range candidateFiles {
		sampleChars += len(f) + 1
	}

	return &planstore.PlanSummary{
		Source:         "session",
		Goal:           goal,
		CandidateFiles: candidateFiles,
		UsedMessages:   len(sampled),
		TotalMessages:  totalMessages,
		Truncated:      totalMessages > opts.MaxMessages,
		TokenUsage: planstore.TokenUsage{
			SampleChars:  sampleChars,
			ApproxTokens: tokencount.Approx(sampleChars),
		},
	}
}

// inferGoal takes the first user message, splits it into sentences, and
// prefers the first sentence that opens with one of the bias verbs
// (add/update/fix/refactor/remove/implement); otherwise it falls back to
// the very first sentence.
func inferGoal(text string) string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return ""
	}
	for _, s := range sentences {
		lower := strings.ToLower(strings.TrimSpace(s))
		for _, verb := range goalVerbs {
			if strings.HasPrefix(lower, verb) {
				return strings.TrimSpace(s)
			}
		}
	}
	return strings.TrimSpace(sentences[0])
}

func splitSentences(text string) []string {
	var sentences []string
	var cur strings.Builder
	for _, r := range text {
		cur.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			sentences = append(sentences, cur.String())
			cur.Reset()
		}
	}
	if strings.TrimSpace(cur.String()) != "" {
		sentences = append(sentences, cur.String())
	}
	return sentences
}

func extractCandidateFiles(text string) []string {
	matches := candidateFilePattern.FindAllString(text, -1)
	seen := make(map[string]bool)
	var out []string
	for _, m := range matches {
		key := strings.ToLower(m)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m)
	}
	return out
}
