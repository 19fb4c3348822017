package export

import (
	"fmt"
	"strings"

	"github.com/dusk-indust/vlab/internal/workflow"
)

// WorkflowMermaid produces a Mermaid graph TD diagram of steps in order.
// Required steps get the "required" class; unselected steps are dashed.
func WorkflowMermaid(steps []workflow.Step) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	var required, skipped []string
	for i, s := range steps {
		id := nodeID(i)
		sb.WriteString(fmt.Sprintf("  %s[\"%s<br/>%s, %s\"]\n", id, label(s.Name), label(s.EstimatedTime), label(s.EstimatedCost)))
		if s.Required {
			required = append(required, id)
		}
		if !s.Selected {
			skipped = append(skipped, id)
		}
	}

	for i := 1; i < len(steps); i++ {
		sb.WriteString(fmt.Sprintf("  %s --> %s\n", nodeID(i-1), nodeID(i)))
	}

	if len(required) > 0 {
		sb.WriteString("  classDef required stroke-width:3px\n")
		sb.WriteString(fmt.Sprintf("  class %s required\n", strings.Join(required, ",")))
	}
	if len(skipped) > 0 {
		sb.WriteString("  classDef skipped stroke-dasharray:5 5\n")
		sb.WriteString(fmt.Sprintf("  class %s skipped\n", strings.Join(skipped, ",")))
	}
	return sb.String()
}

func nodeID(i int) string {
	return fmt.Sprintf("S%d", i)
}

// label escapes characters Mermaid treats as syntax inside quoted labels.
func label(s string) string {
	return strings.NewReplacer(`"`, "#quot;", "<", "#lt;", ">", "#gt;").Replace(s)
}
