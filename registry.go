package main

import (
	"context"
	"fmt"
	"sort"
)

// Task is the contract every task kind implements.
type Task interface {
	Run(ctx context.Context, rc *RunContext, attrs Attrs) error
}

// TaskFunc adapts a function to Task.
type TaskFunc func(ctx context.Context, rc *RunContext, attrs Attrs) error

func (f TaskFunc) Run(ctx context.Context, rc *RunContext, attrs Attrs) error {
	return f(ctx, rc, attrs)
}

// Surface says where a command may be invoked from.
type Surface uint8

const (
	SurfaceScript Surface = 1 << iota
	SurfaceCommand

	SurfaceBoth = SurfaceScript | SurfaceCommand
)

func (s Surface) Has(other Surface) bool { return s&other != 0 }

// Param is one formal attribute of a command.
type Param struct {
	Name    string
	Default string
}

// ParameterSet is an ordered list of formal attributes. It binds values
// either by name (script nodes) or by position (command-line tokens);
// in both cases an explicit value overrides the default.
type ParameterSet []Param

// BindNamed returns the declared parameters filled from attrs, followed
// by any attrs the set does not declare, in their original order.
func (p ParameterSet) BindNamed(attrs Attrs) Attrs {
	out := make(Attrs, 0, len(p)+len(attrs))
	declared := make(map[string]bool, len(p))
	for _, param := range p {
		declared[param.Name] = true
		out = append(out, Attr{Name: param.Name, Value: attrs.Value(param.Name, param.Default)})
	}
	for _, attr := range attrs {
		if !declared[attr.Name] {
			out = append(out, attr)
		}
	}
	return out
}

// BindPositional zips args against the parameters in order. Missing
// positions take the default; surplus args are ignored.
func (p ParameterSet) BindPositional(args []string) Attrs {
	out := make(Attrs, 0, len(p))
	for i, param := range p {
		value := param.Default
		if i < len(args) {
			value = args[i]
		}
		out = append(out, Attr{Name: param.Name, Value: value})
	}
	return out
}

// Command binds a task kind to its handler and formal parameters.
type Command struct {
	Kind    TaskKind
	Task    Task
	Params  ParameterSet
	Surface Surface
	// Directive commands only touch the stores and still run in test mode.
	Directive bool
}

// Example is one line of the examples table.
type Example struct {
	Name  string
	Usage string
	Desc  string
}

// Registry is the closed table of task kinds.
type Registry struct {
	commands map[TaskKind]*Command
	examples []Example
}

func NewRegistry() *Registry {
	return &Registry{commands: make(map[TaskKind]*Command)}
}

// Register stores cmd, replacing any earlier command of the same kind.
func (r *Registry) Register(cmd Command) {
	if cmd.Surface == 0 {
		cmd.Surface = SurfaceBoth
	}
	r.commands[cmd.Kind] = &cmd
}

// RegisterCommand is the short form used by registerCoreCommands.
func (r *Registry) RegisterCommand(kind TaskKind, surface Surface, fn TaskFunc, params ...Param) {
	r.Register(Command{Kind: kind, Task: fn, Params: params, Surface: surface})
}

func (r *Registry) Lookup(kind TaskKind) (*Command, bool) {
	cmd, ok := r.commands[kind]
	return cmd, ok
}

// Has reports whether kind is registered for surface.
func (r *Registry) Has(kind TaskKind, surface Surface) bool {
	cmd, ok := r.commands[kind]
	return ok && cmd.Surface.Has(surface)
}

// Kinds returns every registered kind, sorted.
func (r *Registry) Kinds() []TaskKind {
	kinds := make([]TaskKind, 0, len(r.commands))
	for kind := range r.commands {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func (r *Registry) AddExample(name, usage, desc string) {
	r.examples = append(r.examples, Example{Name: name, Usage: usage, Desc: desc})
}

func (r *Registry) Examples() []Example {
	return r.examples
}

// Invoke runs a command directly from command-line tokens.
func (r *Registry) Invoke(ctx context.Context, rc *RunContext, name string, args []string) error {
	cmd, ok := r.commands[TaskKind(name)]
	if !ok || !cmd.Surface.Has(SurfaceCommand) {
		return raise(CodeUnknownTask, fmt.Sprintf("%q", name))
	}
	attrs := cmd.Params.BindPositional(args)
	rc.Logger.Debug("invoke", "command", name, "attrs", attrs.String())
	return cmd.Task.Run(ctx, rc, attrs)
}
