package agent

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultConfidence is used when a response states no confidence.
const DefaultConfidence = 0.7

// Fragment is the structured part of an opinion recovered from raw text.
type Fragment struct {
	Recommendation Recommendation
	Confidence     float64
	Reasoning      []string
}

// Parser turns free-form completion text into an opinion fragment. It is
// total: every input, however malformed, yields a Fragment.
type Parser interface {
	Parse(raw string) Fragment
}

// Compile-time interface check.
var _ Parser = HeuristicParser{}

// HeuristicParser recovers a Fragment with keyword and bullet heuristics.
type HeuristicParser struct{}

// confidencePattern matches "confidence" followed by optional punctuation or
// whitespace and then a decimal number.
var confidencePattern = regexp.MustCompile(`confidence[[:punct:]\s]*?(\d+(?:\.\d+)?|\.\d+)`)

// Parse implements Parser.
func (HeuristicParser) Parse(raw string) Fragment {
	lower := strings.ToLower(raw)
	return Fragment{
		Recommendation: classify(lower),
		Confidence:     extractConfidence(lower),
		Reasoning:      extractReasoning(raw),
	}
}

// classify defaults to ModifyExisting unless "de novo" appears anywhere.
func classify(lower string) Recommendation {
	if strings.Contains(lower, "de novo") {
		return DeNovo
	}
	return ModifyExisting
}

// extractConfidence returns the first stated confidence as written; "95" is
// 95, not 0.95.
func extractConfidence(lower string) float64 {
	m := confidencePattern.FindStringSubmatch(lower)
	if m == nil {
		return DefaultConfidence
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return DefaultConfidence
	}
	return v
}

// extractReasoning collects "- " bullet lines in order with the marker removed.
func extractReasoning(raw string) []string {
	reasoning := []string{}
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "- ") {
			continue
		}
		reasoning = append(reasoning, strings.TrimSpace(strings.TrimPrefix(trimmed, "- ")))
	}
	return reasoning
}
