package main

import (
	"fmt"
	"sort"
	"strings"
)

// TargetTable maps target names to their script subtrees.
type TargetTable map[string]*ScriptNode

// BuildTargetTable indexes every target node of doc by name. Nameless
// targets are skipped and duplicates overwrite earlier entries. The
// sorted name list is published as the availabletargets tag.
func BuildTargetTable(doc *Document, tags *TagStore) TargetTable {
	table := make(TargetTable)
	for _, node := range doc.Targets() {
		name := strings.TrimSpace(node.Attr("name"))
		if name == "" {
			continue
		}
		table[name] = node
	}
	tags.Set(TagAvailableTargets, strings.Join(table.Names(), ", "))
	return table
}

func (t TargetTable) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (t TargetTable) Lookup(name string) (*ScriptNode, bool) {
	node, ok := t[name]
	return node, ok
}

// beforeTargets returns the raw depends list, falling back to execbefore.
func beforeTargets(node *ScriptNode) string {
	if value, ok := node.Attrs.Lookup("depends"); ok {
		return value
	}
	return node.Attr("execbefore")
}

// afterTarget returns the raw default target, falling back to execafter.
func afterTarget(node *ScriptNode) string {
	if value, ok := node.Attrs.Lookup("default"); ok && value != "" {
		return value
	}
	return node.Attr("execafter")
}

// edges returns the expanded before and after references of node, in
// execution order.
func edges(node *ScriptNode, tags *TagStore) []string {
	refs := splitList(tags.Expand(beforeTargets(node)))
	if after := strings.TrimSpace(tags.Expand(afterTarget(node))); after != "" {
		refs = append(refs, after)
	}
	return refs
}

// Validate checks the table statically and returns human-readable
// issues: references to unknown targets and dependency cycles. An empty
// list means every chain terminates.
func (t TargetTable) Validate(project *ScriptNode, tags *TagStore) []string {
	var issues []string

	check := func(owner string, node *ScriptNode) {
		for _, ref := range edges(node, tags) {
			if _, ok := t[ref]; !ok {
				issues = append(issues, fmt.Sprintf("%s: references unknown target %q", owner, ref))
			}
		}
	}
	if project != nil {
		check("project", project)
	}
	for _, name := range t.Names() {
		check(fmt.Sprintf("target %q", name), t[name])
	}

	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(t))
	var stack []string
	var visit func(name string)
	visit = func(name string) {
		color[name] = gray
		stack = append(stack, name)
		for _, ref := range edges(t[name], tags) {
			if _, ok := t[ref]; !ok {
				continue
			}
			switch color[ref] {
			case white:
				visit(ref)
			case gray:
				start := indexOf(stack, ref)
				cycle := append(append([]string{}, stack[start:]...), ref)
				issues = append(issues, fmt.Sprintf("dependency cycle: %s", strings.Join(cycle, " -> ")))
			}
		}
		stack = stack[:len(stack)-1]
		color[name] = black
	}
	for _, name := range t.Names() {
		if color[name] == white {
			visit(name)
		}
	}
	return issues
}

func indexOf(items []string, want string) int {
	for i, item := range items {
		if item == want {
			return i
		}
	}
	return -1
}
