package indexer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/robert-at-pretension-io/hdlkit/internal/symbols"
)

// dependentsGraph maps a module name to the modules that instantiate it
type dependentsGraph map[string]map[string]bool

func buildDependentsGraph(modules []*symbols.Module) dependentsGraph {
	graph := make(dependentsGraph)
	for _, m := range modules {
		for _, inst := range m.Instances {
			if inst.Type == "" || inst.Type == m.Name {
				continue
			}
			if graph[inst.Type] == nil {
				graph[inst.Type] = make(map[string]bool)
			}
			graph[inst.Type][m.Name] = true
		}
	}
	return graph
}

// ImpactReport lists the transitive instantiators of Root, one slice per
// hop distance.
type ImpactReport struct {
	Root   string     `json:"root"`
	Levels [][]string `json:"levels"`
}

// Modules returns every affected module, nearest level first
func (r ImpactReport) Modules() []string {
	var out []string
	for _, level := range r.Levels {
		out = append(out, level...)
	}
	return out
}

func computeImpact(root string, dependents dependentsGraph) ImpactReport {
	visited := map[string]bool{root: true}
	frontier := []string{root}
	var levels [][]string

	for len(frontier) > 0 {
		var next []string
		for _, f := range frontier {
			for dep := range dependents[f] {
				if visited[dep] {
					continue
				}
				visited[dep] = true
				next = append(next, dep)
			}
		}
		if len(next) == 0 {
			break
		}
		sort.Strings(next)
		levels = append(levels, next)
		frontier = next
	}

	return ImpactReport{Root: root, Levels: levels}
}

// FormatImpact renders a report as indented text
func FormatImpact(report ImpactReport) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("  %s\n", report.Root))
	if len(report.Levels) == 0 {
		b.WriteString("    (no instantiating modules)\n")
	}
	for i, level := range report.Levels {
		b.WriteString(fmt.Sprintf("    level %d (%d): %s\n", i+1, len(level), strings.Join(level, ", ")))
	}
	return b.String()
}
