package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
)

// Overlay contains live state data to visualize on the chart.
type Overlay struct {
	// Active lists the paths of the active leaf states, as in Snapshot.Value.
	Active []string
}

// GenerateMermaid produces a Mermaid stateDiagram-v2 for the chart:
// - Compound and parallel nodes become composite states; parallel regions are separated by "--".
// - Initial children get a [*] arrow.
// - Invoking states carry the actor id in their label.
// - Guarded transitions are labelled "EVENT [guarded]"; targetless ones are omitted.
// Active leaves from the overlay are highlighted.
func GenerateMermaid[C any](def *dsl.Definition[C], overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("stateDiagram-v2\n")
	fmt.Fprintf(&sb, "    [*] --> %s\n", mermaidID(def.Root()))
	writeState(&sb, def.Root(), 1)

	for _, n := range def.Nodes() {
		for _, ev := range n.Events() {
			for _, t := range n.Transitions(ev) {
				if t.Targetless() {
					continue
				}
				label := string(ev)
				if t.Guard != nil {
					label += " [guarded]"
				}
				fmt.Fprintf(&sb, "    %s --> %s : %s\n", mermaidID(n), mermaidID(t.TargetNode()), label)
			}
		}
	}

	if overlay != nil && len(overlay.Active) > 0 {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef active fill:#ffeb3b,stroke:#fbc02d,stroke-width:3px,color:#000\n")
		for _, path := range overlay.Active {
			n, ok := def.Lookup(path)
			if !ok {
				continue
			}
			fmt.Fprintf(&sb, "    class %s active\n", mermaidID(n))
		}
	}

	return sb.String()
}

func writeState[C any](sb *strings.Builder, n *dsl.StateNode[C], depth int) {
	indent := strings.Repeat("    ", depth)
	label := n.Key
	if n.Invocation != nil {
		label += " / invoke " + n.Invocation.ActorID
	}
	label = strings.ReplaceAll(label, "\"", "'")

	if n.IsAtomic() {
		fmt.Fprintf(sb, "%sstate \"%s\" as %s\n", indent, label, mermaidID(n))
		return
	}

	fmt.Fprintf(sb, "%sstate \"%s\" as %s {\n", indent, label, mermaidID(n))
	if n.Initial != nil {
		fmt.Fprintf(sb, "%s    [*] --> %s\n", indent, mermaidID(n.Initial))
	}
	for i, c := range n.Children {
		if n.Kind == domain.KindParallel && i > 0 {
			fmt.Fprintf(sb, "%s    --\n", indent)
		}
		writeState(sb, c, depth+1)
	}
	fmt.Fprintf(sb, "%s}\n", indent)
}

// mermaidID derives a unique identifier from the node path.
func mermaidID[C any](n *dsl.StateNode[C]) string {
	if n.Path == "" {
		return sanitizeMermaidID(n.ID)
	}
	return "s_" + sanitizeMermaidID(n.Path)
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
