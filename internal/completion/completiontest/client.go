// Package completiontest provides a scripted completion client that answers
// the lab's prompts with canned replies.
package completiontest

import (
	"context"
	"strings"
	"sync"
)

// Reply keys. Expert replies are keyed by role name.
const (
	KeyFacts         = "facts"
	KeyStrategy      = "strategy"
	KeyImmunologist  = "Immunologist"
	KeyMLSpecialist  = "ML Specialist"
	KeyCompBiologist = "Computational Biologist"
	KeyUnknown       = "unknown"
)

// Canned replies used by New.
const (
	FactsJSON = `{"target":"SARS-CoV-2 spike RBD","timeline":"2 months","budget":"$30,000","goal":"therapeutic nanobody","confidence":0.9}`

	StrategyJSON = `{
  "title": "Modify Existing Nanobodies",
  "rationale": [
    {"icon": "Clock", "label": "Timeline Match", "description": "Two months favours known scaffolds"},
    {"icon": "TrendingUp", "label": "Success Rate", "description": "Ty1 and VHH-72 are validated binders"},
    {"icon": "DollarSign", "label": "Budget Aligned", "description": "Compute fits within $30,000"}
  ],
  "candidates": ["Ty1", "VHH-72"],
  "confidence": 0.85,
  "alternatives": [{"title": "De Novo Design", "why": "Novel epitopes if escape variants dominate"}]
}`

	ImmunologistReply = `The RBD is a well characterised target with several published nanobodies.
- Ty1 and VHH-72 bind the RBD
- Therapeutic goal favours validated scaffolds
Recommendation: Modify Existing Nanobodies
Confidence: 0.8`

	MLSpecialistReply = `Structure prediction for known binders is cheap; de novo generation would need more compute.
- AlphaFold handles nanobody complexes well
- ESM scoring is fast
I lean towards Modify Existing Nanobodies.
Confidence: 0.7`

	CompBiologistReply = `The team agrees modification is practical within two months.
- Rosetta maturation rounds fit the timeline
Confidence: 0.75`
)

// Client is a concurrency-safe scripted completion client. Each prompt is
// classified by Key and answered with the reply or error scripted for it.
type Client struct {
	mu      sync.Mutex
	replies map[string]string
	errs    map[string]error
	holds   map[string]chan struct{}
	prompts []string
	calls   []string
}

// New creates a Client scripted with successful replies for every prompt the
// lab sends.
func New() *Client {
	return &Client{
		replies: map[string]string{
			KeyFacts:         FactsJSON,
			KeyStrategy:      StrategyJSON,
			KeyImmunologist:  ImmunologistReply,
			KeyMLSpecialist:  MLSpecialistReply,
			KeyCompBiologist: CompBiologistReply,
		},
		errs:  make(map[string]error),
		holds: make(map[string]chan struct{}),
	}
}

// Reply scripts the reply for key.
func (c *Client) Reply(key, reply string) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies[key] = reply
	return c
}

// Fail scripts an error for key.
func (c *Client) Fail(key string, err error) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs[key] = err
	return c
}

// Hold blocks calls for key until the returned release func is called or the
// call's context is done.
func (c *Client) Hold(key string) (release func()) {
	ch := make(chan struct{})
	c.mu.Lock()
	c.holds[key] = ch
	c.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Key classifies a prompt.
func Key(prompt string) string {
	switch {
	case strings.Contains(prompt, "Extract key project data"):
		return KeyFacts
	case strings.Contains(prompt, "synthesize your team's input"):
		return KeyStrategy
	case strings.HasPrefix(prompt, "You are an Immunologist"):
		return KeyImmunologist
	case strings.HasPrefix(prompt, "You are an ML Specialist"):
		return KeyMLSpecialist
	case strings.HasPrefix(prompt, "You are a Computational Biologist"):
		return KeyCompBiologist
	}
	return KeyUnknown
}

// Complete implements completion.Client.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	key := Key(prompt)

	c.mu.Lock()
	c.prompts = append(c.prompts, prompt)
	c.calls = append(c.calls, key)
	hold := c.holds[key]
	c.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.errs[key]; err != nil {
		return "", err
	}
	return c.replies[key], nil
}

// Calls returns the keys of every call so far, in order.
func (c *Client) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// Prompts returns every prompt received so far, in order.
func (c *Client) Prompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.prompts...)
}

// PromptFor returns the last prompt classified as key.
func (c *Client) PromptFor(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.calls) - 1; i >= 0; i-- {
		if c.calls[i] == key {
			return c.prompts[i]
		}
	}
	return ""
}
