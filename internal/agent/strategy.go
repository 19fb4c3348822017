package agent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dusk-indust/vlab/internal/completion"
)

// Strategy is the Principal Investigator's synthesized recommendation.
type Strategy struct {
	Title        Recommendation   `json:"title"`
	Rationale    []RationalePoint `json:"rationale"`
	Candidates   []string         `json:"candidates"`
	Confidence   float64          `json:"confidence"`
	Alternatives []Alternative    `json:"alternatives"`
}

// RationalePoint is one displayed reason behind a strategy.
type RationalePoint struct {
	Icon        string `json:"icon"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// Alternative is a runner-up proposal. Models send either an object or a
// bare string; a string becomes the title.
type Alternative struct {
	Title string `json:"title"`
	Why   string `json:"why,omitempty"`
}

func (a *Alternative) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &a.Title)
	}
	type plain Alternative
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*a = Alternative(p)
	return nil
}

// DefaultCandidates are well-characterized nanobodies used when the synthesis
// reply is unusable.
var DefaultCandidates = []string{"Ty1", "H11-D4", "Nb21", "VHH-72"}

// FallbackStrategy is returned when the synthesis reply cannot be decoded.
func FallbackStrategy() Strategy {
	return Strategy{
		Title: ModifyExisting,
		Rationale: []RationalePoint{
			{Icon: "Clock", Label: "Team Analysis", Description: "Based on team discussion"},
			{Icon: "TrendingUp", Label: "Consensus", Description: "Team reached agreement"},
			{Icon: "DollarSign", Label: "Feasible", Description: "Within project constraints"},
		},
		Candidates:   append([]string(nil), DefaultCandidates...),
		Confidence:   0.7,
		Alternatives: []Alternative{},
	}
}

// NormalizeTitle maps free-form strategy titles onto a Recommendation. A
// canonical title wins over a bare keyword, and when a title names both
// options the one mentioned first wins, so "Modify Existing Nanobodies (not
// de novo)" stays ModifyExisting.
func NormalizeTitle(title string) (Recommendation, bool) {
	lower := strings.ToLower(strings.TrimSpace(title))
	for _, r := range []Recommendation{ModifyExisting, DeNovo} {
		if lower == strings.ToLower(string(r)) {
			return r, true
		}
	}
	if r, ok := firstMention(lower, map[string]Recommendation{
		strings.ToLower(string(ModifyExisting)): ModifyExisting,
		strings.ToLower(string(DeNovo)):         DeNovo,
	}); ok {
		return r, true
	}
	return firstMention(lower, map[string]Recommendation{
		"modify":  ModifyExisting,
		"de novo": DeNovo,
	})
}

// firstMention returns the recommendation whose phrase occurs earliest in s.
func firstMention(s string, phrases map[string]Recommendation) (Recommendation, bool) {
	best, found := -1, Recommendation("")
	for phrase, r := range phrases {
		if i := strings.Index(s, phrase); i >= 0 && (best < 0 || i < best) {
			best, found = i, r
		}
	}
	return found, best >= 0
}

type wireStrategy struct {
	Title        *string          `json:"title"`
	Rationale    []RationalePoint `json:"rationale"`
	Candidates   []string         `json:"candidates"`
	Confidence   *score           `json:"confidence"`
	Alternatives []Alternative    `json:"alternatives"`
}

// DecodeStrategy decodes a synthesis reply. Title, a non-empty rationale and
// confidence are required; candidates and alternatives may be absent.
func DecodeStrategy(raw string) (Strategy, error) {
	var w wireStrategy
	if err := json.Unmarshal([]byte(completion.StripFences(raw)), &w); err != nil {
		return Strategy{}, fmt.Errorf("decode strategy: %w", err)
	}
	if w.Title == nil {
		return Strategy{}, errors.New("decode strategy: missing title")
	}
	title, ok := NormalizeTitle(*w.Title)
	if !ok {
		return Strategy{}, fmt.Errorf("decode strategy: unknown title %q", *w.Title)
	}
	if len(w.Rationale) == 0 {
		return Strategy{}, errors.New("decode strategy: empty rationale")
	}
	if w.Confidence == nil {
		return Strategy{}, errors.New("decode strategy: missing confidence")
	}

	s := Strategy{
		Title:        title,
		Rationale:    w.Rationale,
		Candidates:   w.Candidates,
		Confidence:   clamp01(float64(*w.Confidence)),
		Alternatives: w.Alternatives,
	}
	if s.Candidates == nil {
		s.Candidates = []string{}
	}
	if s.Alternatives == nil {
		s.Alternatives = []Alternative{}
	}
	return s, nil
}
