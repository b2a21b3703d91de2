// Package nav answers navigation queries over the index: the design
// hierarchy, go-to-definition and hover text.
package nav

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"

	"github.com/robert-at-pretension-io/hdlkit/internal/symbols"
)

// Source is the read side of the index used by navigation
type Source interface {
	GetModule(name string) (*symbols.Module, bool)
	GetAllModules() []*symbols.Module
}

// Node is one entry of the hierarchy. Roots carry an empty Instance.
type Node struct {
	Module    string  `json:"module"`
	Instance  string  `json:"instance,omitempty"`
	File      string  `json:"file,omitempty"`
	Resolved  bool    `json:"resolved"`
	Recursive bool    `json:"recursive,omitempty"`
	Children  []*Node `json:"children,omitempty"`
}

var (
	styleRoot     = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	styleFile     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleBlackBox = lipgloss.NewStyle().Faint(true)
	styleWarn     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleEnum     = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginRight(1)
)

// Roots returns the names of modules no other indexed module instantiates.
// When every module is instantiated somewhere all names are returned.
func Roots(src Source) []string {
	modules := src.GetAllModules()
	used := make(map[string]bool)
	for _, m := range modules {
		for _, inst := range m.Instances {
			if inst.Type != m.Name {
				used[inst.Type] = true
			}
		}
	}
	var roots, all []string
	for _, m := range modules {
		all = append(all, m.Name)
		if !used[m.Name] {
			roots = append(roots, m.Name)
		}
	}
	if len(roots) == 0 {
		roots = all
	}
	sort.Strings(roots)
	return roots
}

// Hierarchy builds the instance tree under top, or one tree per root module
// when top is empty. An unknown top yields nil.
func Hierarchy(src Source, top string) []*Node {
	names := []string{top}
	if top == "" {
		names = Roots(src)
	}
	var out []*Node
	for _, name := range names {
		m, ok := src.GetModule(name)
		if !ok {
			continue
		}
		root := &Node{Module: m.Name, File: m.SourceFile, Resolved: true}
		expand(src, root, m, map[string]bool{m.Name: true})
		out = append(out, root)
	}
	return out
}

func expand(src Source, parent *Node, m *symbols.Module, onPath map[string]bool) {
	for _, inst := range m.Instances {
		child := &Node{Module: inst.Type, Instance: inst.Name}
		parent.Children = append(parent.Children, child)

		def, ok := src.GetModule(inst.Type)
		if !ok {
			continue
		}
		child.Resolved = true
		child.File = def.SourceFile
		if onPath[def.Name] {
			child.Recursive = true
			continue
		}
		onPath[def.Name] = true
		expand(src, child, def, onPath)
		delete(onPath, def.Name)
	}
}

// Count returns the number of nodes in the forest
func Count(nodes []*Node) int {
	n := 0
	for _, node := range nodes {
		n += 1 + Count(node.Children)
	}
	return n
}

// RenderTree draws the forest with box-drawing branches. Black boxes are
// dimmed; recursive references are marked and not expanded.
func RenderTree(nodes []*Node) string {
	var out string
	for _, node := range nodes {
		t := tree.Root(label(node)).
			Enumerator(tree.RoundedEnumerator).
			EnumeratorStyle(styleEnum)
		addChildren(t, node.Children)
		out += t.String() + "\n"
	}
	return out
}

func addChildren(t *tree.Tree, children []*Node) {
	for _, child := range children {
		if len(child.Children) == 0 {
			t.Child(label(child))
			continue
		}
		sub := tree.Root(label(child)).
			Enumerator(tree.RoundedEnumerator).
			EnumeratorStyle(styleEnum)
		addChildren(sub, child.Children)
		t.Child(sub)
	}
}

func label(n *Node) string {
	if n.Instance == "" {
		return styleRoot.Render(n.Module) + " " + styleFile.Render(filepath.Base(n.File))
	}
	text := fmt.Sprintf("%s : %s", n.Instance, n.Module)
	switch {
	case !n.Resolved:
		return styleBlackBox.Render(text + " (black box)")
	case n.Recursive:
		return text + " " + styleWarn.Render("(recursive)")
	default:
		return text + " " + styleFile.Render(filepath.Base(n.File))
	}
}
