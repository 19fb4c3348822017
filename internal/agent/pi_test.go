package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietPI(client *recordingClient) *PrincipalInvestigator {
	return NewPrincipalInvestigator(client, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestExtractFacts_ValidJSON(t *testing.T) {
	client := &recordingClient{reply: `{"target":"SARS-CoV-2 spike","timeline":"2 months","budget":"$30,000","goal":"therapeutic","confidence":0.9}`}

	facts, err := quietPI(client).ExtractFacts(context.Background(), "brief text")
	require.NoError(t, err)
	assert.Equal(t, Facts{
		Target:     "SARS-CoV-2 spike",
		Timeline:   "2 months",
		Budget:     "$30,000",
		Goal:       "therapeutic",
		Confidence: 0.9,
	}, facts)
	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "brief text")
}

func TestExtractFacts_FencedAndNumericFields(t *testing.T) {
	client := &recordingClient{reply: "```json\n{\"target\":\"HER2\",\"timeline\":6,\"budget\":50000,\"goal\":\"tool\",\"confidence\":\"1.4\"}\n```"}

	facts, err := quietPI(client).ExtractFacts(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, "6", facts.Timeline)
	assert.Equal(t, "50000", facts.Budget)
	assert.Equal(t, 1.0, facts.Confidence, "confidence is clamped to [0,1]")
}

func TestExtractFacts_Fallback(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{name: "prose", reply: "I think the target is spike."},
		{name: "missing field", reply: `{"target":"x","timeline":"y","budget":"z","goal":"w"}`},
		{name: "null field", reply: `{"target":null,"timeline":"y","budget":"z","goal":"w","confidence":0.5}`},
		{name: "wrong type", reply: `{"target":["x"],"timeline":"y","budget":"z","goal":"w","confidence":0.5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facts, err := quietPI(&recordingClient{reply: tt.reply}).ExtractFacts(context.Background(), "b")
			require.NoError(t, err)
			assert.Equal(t, FallbackFacts(), facts)
		})
	}
}

func TestExtractFacts_ClientError(t *testing.T) {
	_, err := quietPI(&recordingClient{err: errors.New("timeout")}).ExtractFacts(context.Background(), "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fact extraction failed")
}

func TestSynthesizeStrategy_ValidJSON(t *testing.T) {
	client := &recordingClient{reply: `{
		"title": "De Novo Design",
		"rationale": [{"icon":"Clock","label":"Timeline Match","description":"six months is enough"}],
		"candidates": [],
		"confidence": 0.82,
		"alternatives": ["Modify Ty1", {"title":"Hybrid","why":"hedge"}]
	}`}
	opinions := []Opinion{
		{Role: RoleImmunologist, Recommendation: DeNovo, Confidence: 0.8, Analysis: "novel epitope"},
		{Role: RoleMLSpecialist, Recommendation: DeNovo, Confidence: 0.7, Analysis: "compute is available"},
	}

	s, err := quietPI(client).SynthesizeStrategy(context.Background(), opinions, "the brief")
	require.NoError(t, err)
	assert.Equal(t, DeNovo, s.Title)
	assert.Equal(t, 0.82, s.Confidence)
	require.Len(t, s.Rationale, 1)
	assert.Equal(t, "Timeline Match", s.Rationale[0].Label)
	assert.Equal(t, []string{}, s.Candidates)
	assert.Equal(t, []Alternative{{Title: "Modify Ty1"}, {Title: "Hybrid", Why: "hedge"}}, s.Alternatives)

	require.Len(t, client.prompts, 1)
	prompt := client.prompts[0]
	assert.Contains(t, prompt, "the brief")
	assert.Contains(t, prompt, "Immunologist (confidence 0.8): De Novo Design")
	assert.Contains(t, prompt, "novel epitope")
	assert.Contains(t, prompt, "compute is available")
}

func TestSynthesizeStrategy_Fallback(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{name: "not json", reply: "We should modify Ty1."},
		{name: "unknown title", reply: `{"title":"Phage display","rationale":[{"icon":"a","label":"b","description":"c"}],"confidence":0.9}`},
		{name: "empty rationale", reply: `{"title":"De Novo Design","rationale":[],"confidence":0.9}`},
		{name: "missing confidence", reply: `{"title":"De Novo Design","rationale":[{"icon":"a","label":"b","description":"c"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := quietPI(&recordingClient{reply: tt.reply}).SynthesizeStrategy(context.Background(), nil, "b")
			require.NoError(t, err)
			assert.Equal(t, FallbackStrategy(), s)
			assert.Equal(t, ModifyExisting, s.Title)
			assert.Equal(t, 0.7, s.Confidence)
		})
	}
}

func TestSynthesizeStrategy_ClientError(t *testing.T) {
	_, err := quietPI(&recordingClient{err: errors.New("rate limited")}).SynthesizeStrategy(context.Background(), nil, "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strategy synthesis failed")
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		title string
		want  Recommendation
		ok    bool
	}{
		{"Modify Existing Nanobodies", ModifyExisting, true},
		{"  de novo design ", DeNovo, true},
		{"de novo design of binders", DeNovo, true},
		{"Modify existing nanobodies", ModifyExisting, true},
		{"Modify Existing Nanobodies (not de novo)", ModifyExisting, true},
		{"De Novo Design rather than modify existing nanobodies", DeNovo, true},
		{"We should modify, not go de novo", ModifyExisting, true},
		{"Go de novo instead of trying to modify", DeNovo, true},
		{"something else", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			r, ok := NormalizeTitle(tt.title)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, r)
		})
	}
}

func TestFallbackStrategy_IsIndependentCopy(t *testing.T) {
	a := FallbackStrategy()
	a.Candidates[0] = "mutated"
	assert.Equal(t, "Ty1", FallbackStrategy().Candidates[0])
}
