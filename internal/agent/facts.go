package agent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dusk-indust/vlab/internal/completion"
)

// Facts is the structured summary of a brief. Confidence is the producing
// agent's self-reported certainty in [0,1].
type Facts struct {
	Target     string  `json:"target"`
	Timeline   string  `json:"timeline"`
	Budget     string  `json:"budget"`
	Goal       string  `json:"goal"`
	Confidence float64 `json:"confidence"`
}

// FallbackFacts is returned when the extraction reply cannot be decoded.
func FallbackFacts() Facts {
	return Facts{
		Target:     "Extracted target",
		Timeline:   "Extracted timeline",
		Budget:     "Extracted budget",
		Goal:       "Extracted goal",
		Confidence: 0.8,
	}
}

// text accepts a JSON string or number and keeps it as text; models often
// answer "budget": 30000.
type text string

func (t *text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*t = text(n.String())
	return nil
}

// score accepts a JSON number or a numeric string.
type score float64

func (s *score) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
		if err != nil {
			return fmt.Errorf("confidence %q is not a number", str)
		}
		*s = score(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = score(v)
	return nil
}

// clamp01 bounds a self-reported score to [0,1].
func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// wireFacts is the extraction reply as sent by the model; nil fields are
// missing.
type wireFacts struct {
	Target     *text  `json:"target"`
	Timeline   *text  `json:"timeline"`
	Budget     *text  `json:"budget"`
	Goal       *text  `json:"goal"`
	Confidence *score `json:"confidence"`
}

// DecodeFacts decodes an extraction reply. All five fields are required.
func DecodeFacts(raw string) (Facts, error) {
	var w wireFacts
	if err := json.Unmarshal([]byte(completion.StripFences(raw)), &w); err != nil {
		return Facts{}, fmt.Errorf("decode facts: %w", err)
	}

	var missing []string
	if w.Target == nil {
		missing = append(missing, "target")
	}
	if w.Timeline == nil {
		missing = append(missing, "timeline")
	}
	if w.Budget == nil {
		missing = append(missing, "budget")
	}
	if w.Goal == nil {
		missing = append(missing, "goal")
	}
	if w.Confidence == nil {
		missing = append(missing, "confidence")
	}
	if len(missing) > 0 {
		return Facts{}, errors.New("decode facts: missing " + strings.Join(missing, ", "))
	}

	return Facts{
		Target:     string(*w.Target),
		Timeline:   string(*w.Timeline),
		Budget:     string(*w.Budget),
		Goal:       string(*w.Goal),
		Confidence: clamp01(float64(*w.Confidence)),
	}, nil
}
