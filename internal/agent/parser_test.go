package agent

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristicParser_Recommendation(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Recommendation
	}{
		{name: "title case", raw: "I recommend De Novo Design here.", want: DeNovo},
		{name: "upper case", raw: "GO DE NOVO", want: DeNovo},
		{name: "lower case mid sentence", raw: "a de novo approach is risky", want: DeNovo},
		{name: "contradictory text still de novo", raw: "Modify existing, not de novo", want: DeNovo},
		{name: "modify", raw: "Modify Existing Nanobodies is safest", want: ModifyExisting},
		{name: "empty", raw: "", want: ModifyExisting},
		{name: "hyphenated is not the token", raw: "de-novo design", want: ModifyExisting},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HeuristicParser{}.Parse(tt.raw).Recommendation)
		})
	}
}

func TestHeuristicParser_Confidence(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want float64
	}{
		{name: "colon", raw: "Confidence: 0.85", want: 0.85},
		{name: "no separator", raw: "confidence0.6", want: 0.6},
		{name: "equals sign", raw: "CONFIDENCE = 0.9", want: 0.9},
		{name: "percent taken literally", raw: "Confidence: 95%", want: 95},
		{name: "leading dot", raw: "confidence .5", want: 0.5},
		{name: "absent", raw: "no score given", want: DefaultConfidence},
		{name: "word between", raw: "Confidence level high, 0.8", want: DefaultConfidence},
		{name: "first match wins", raw: "confidence: 0.4\nconfidence: 0.9", want: 0.4},
		{name: "later occurrence matches", raw: "my confidence is high.\nConfidence: 0.75", want: 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HeuristicParser{}.Parse(tt.raw).Confidence)
		})
	}
}

func TestHeuristicParser_Reasoning(t *testing.T) {
	raw := strings.Join([]string{
		"Analysis of the target.",
		"- first point",
		"   - indented point  ",
		"-not a bullet",
		"* star bullet",
		"text - with dash",
		"- last point",
	}, "\n")

	got := HeuristicParser{}.Parse(raw).Reasoning
	assert.Equal(t, []string{"first point", "indented point", "last point"}, got)
}

func TestHeuristicParser_ReasoningEmpty(t *testing.T) {
	got := HeuristicParser{}.Parse("no bullets at all").Reasoning
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestHeuristicParser_CRLF(t *testing.T) {
	got := HeuristicParser{}.Parse("- one\r\n- two\r\n")
	assert.Equal(t, []string{"one", "two"}, got.Reasoning)
}

// The parser is total: arbitrary input never panics and always yields a
// recommendation from the closed set.
func TestHeuristicParser_Total(t *testing.T) {
	inputs := []string{"", "\x00\xff", "confidence:", "confidence: .", "confidence: 1e400", strings.Repeat("- ", 1000)}
	for i := 0; i < 50; i++ {
		inputs = append(inputs, fmt.Sprintf("confidence: %d.%d\n- p%d", i, i*7, i))
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() {
			frag := HeuristicParser{}.Parse(in)
			assert.True(t, frag.Recommendation.Valid())
		})
	}
}

// FuzzHeuristicParser checks the parser's properties on arbitrary input: it
// never panics, the recommendation follows the "de novo" token, confidence
// is a finite non-negative number, and reasoning is exactly the "- " lines in
// order.
func FuzzHeuristicParser(f *testing.F) {
	seeds := []string{
		"",
		"Confidence: 0.85\n- binds RBD\n- stable",
		"I recommend De Novo design.\nconfidence 95",
		"  - indented bullet\n-no space\n*- star\n- ",
		"confidence: 1e400",
		"confidence: " + strings.Repeat("9", 400),
		"\x00\xff\r\n- carriage\r\n",
	}
	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, raw string) {
		frag := HeuristicParser{}.Parse(raw)

		require.True(t, frag.Recommendation.Valid())
		if strings.Contains(strings.ToLower(raw), "de novo") {
			assert.Equal(t, DeNovo, frag.Recommendation)
		} else {
			assert.Equal(t, ModifyExisting, frag.Recommendation)
		}

		assert.False(t, math.IsNaN(frag.Confidence) || math.IsInf(frag.Confidence, 0), "confidence %v", frag.Confidence)
		assert.GreaterOrEqual(t, frag.Confidence, 0.0)

		var bullets []string
		for _, line := range strings.Split(raw, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "- ") {
				bullets = append(bullets, line)
			}
		}
		require.Len(t, frag.Reasoning, len(bullets))
		for i, r := range frag.Reasoning {
			assert.Contains(t, bullets[i], r, "reasoning %d comes from bullet %d", i, i)
		}
	})
}
