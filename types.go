package main

import "strings"

// Attr is one declared attribute of a script node.
type Attr struct {
	Name  string
	Value string
}

// Attrs is an ordered attribute list. Declaration order is preserved so
// that test-mode output and positional binding stay stable.
type Attrs []Attr

// Lookup returns the value of name and whether it was declared.
func (a Attrs) Lookup(name string) (string, bool) {
	for _, attr := range a {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return "", false
}

// Get returns the value of name, or "" when it is absent.
func (a Attrs) Get(name string) string {
	value, _ := a.Lookup(name)
	return value
}

// Value returns the value of name, or def when it is absent.
func (a Attrs) Value(name, def string) string {
	if value, ok := a.Lookup(name); ok {
		return value
	}
	return def
}

// Set overwrites name in place or appends it.
func (a *Attrs) Set(name, value string) {
	for i := range *a {
		if (*a)[i].Name == name {
			(*a)[i].Value = value
			return
		}
	}
	*a = append(*a, Attr{Name: name, Value: value})
}

func (a Attrs) Clone() Attrs {
	out := make(Attrs, len(a))
	copy(out, a)
	return out
}

func (a Attrs) String() string {
	parts := make([]string, 0, len(a))
	for _, attr := range a {
		parts = append(parts, attr.Name+":"+attr.Value)
	}
	return strings.Join(parts, " ")
}

// ScriptNode is one element of a loaded script. The engine never mutates
// nodes; all run state lives in the stores.
type ScriptNode struct {
	Kind     string
	Attrs    Attrs
	Children []*ScriptNode
}

func (n *ScriptNode) Attr(name string) string {
	return n.Attrs.Get(name)
}

// Enabled reports false only for an explicit enabled="0".
func (n *ScriptNode) Enabled() bool {
	value, ok := n.Attrs.Lookup("enabled")
	return !ok || value != "0"
}

// Document is a loaded script: the whole element tree plus the project
// node that execution starts from.
type Document struct {
	Path    string
	Root    *ScriptNode
	Project *ScriptNode
}

// Targets returns every target node in the document, depth-first in
// document order.
func (d *Document) Targets() []*ScriptNode {
	var out []*ScriptNode
	var walk func(node *ScriptNode)
	walk = func(node *ScriptNode) {
		for _, child := range node.Children {
			if child.Kind == string(KindTarget) {
				out = append(out, child)
			}
			walk(child)
		}
	}
	if d.Root != nil {
		if d.Root.Kind == string(KindTarget) {
			out = append(out, d.Root)
		}
		walk(d.Root)
	}
	return out
}

// Options are the command-line switches, already parsed.
type Options struct {
	TestMode  bool
	Quiet     bool
	Recursive bool
	Verbose   bool
	Source    string
	Outfile   string
	Batch     string
}

// Scope tells ExecuteScript whether it is running the project node or a
// target reached through a dependency.
type Scope int

const (
	ScopeProject Scope = iota
	ScopeTarget
)

func (s Scope) String() string {
	if s == ScopeProject {
		return "project"
	}
	return "target"
}
