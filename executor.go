package main

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Engine walks a script, resolving before/after targets around each
// node's own tasks. It is strictly sequential.
type Engine struct {
	rc       *RunContext
	registry *Registry
	targets  TargetTable
	// names of the targets currently being executed, outermost first
	active []string
}

// NewEngine builds the target table for doc and binds it to rc.
func NewEngine(rc *RunContext, registry *Registry, doc *Document) *Engine {
	rc.registry = registry
	return &Engine{
		rc:       rc,
		registry: registry,
		targets:  BuildTargetTable(doc, rc.Tags),
	}
}

func (e *Engine) Targets() TargetTable {
	return e.targets
}

// ExecuteScript runs node: its before targets, then its own children in
// document order, then its after target. A non-empty defaultOverride
// replaces the node's own default/execafter. Problems in the script are
// reported and skipped; nothing is returned.
func (e *Engine) ExecuteScript(ctx context.Context, node *ScriptNode, scope Scope, defaultOverride string) {
	started := e.rc.Now()

	targetDefault := defaultOverride
	if targetDefault == "" {
		targetDefault = afterTarget(node)
	}

	for _, name := range splitList(e.rc.Expand(beforeTargets(node))) {
		e.invoke(ctx, name)
	}

	e.runChildren(ctx, node)

	if name := strings.TrimSpace(e.rc.Expand(targetDefault)); name != "" {
		e.invoke(ctx, name)
	}

	if scope == ScopeProject && !e.rc.Quiet() {
		e.rc.Printf("Script execute complete. ST:%s ET:%s\n", started.Format("15:04"), e.rc.Now().Format("15:04"))
	}
}

// invoke runs the named target as a nested step, carrying its own after
// target forward. Unknown names and names already on the call stack are
// reported and skipped.
func (e *Engine) invoke(ctx context.Context, name string) {
	target, ok := e.targets.Lookup(name)
	if !ok {
		e.rc.warn(raise(CodeTargetNotFound, name))
		return
	}
	if start := indexOf(e.active, name); start >= 0 {
		chain := append(append([]string{}, e.active[start:]...), name)
		e.rc.warn(raise(CodeTargetCycle, strings.Join(chain, " -> ")))
		return
	}

	e.active = append(e.active, name)
	defer func() { e.active = e.active[:len(e.active)-1] }()

	e.rc.Logger.Debug("enter target", "target", name, "depth", len(e.active))
	e.ExecuteScript(ctx, target, ScopeTarget, e.rc.Expand(afterTarget(target)))
}

func (e *Engine) runChildren(ctx context.Context, node *ScriptNode) {
	for _, child := range node.Children {
		if child.Kind == "" || child.Kind == string(KindTarget) || !child.Enabled() {
			continue
		}
		if e.dispatch(ctx, child) {
			// operator declined; the rest of this node is skipped
			return
		}
	}
}

// dispatch runs one task node and reports whether the operator aborted.
func (e *Engine) dispatch(ctx context.Context, node *ScriptNode) bool {
	cmd, ok := e.registry.Lookup(TaskKind(node.Kind))
	if !ok || !cmd.Surface.Has(SurfaceScript) {
		e.rc.warn(raise(CodeUnknownTask, fmt.Sprintf("%q", node.Kind)))
		return false
	}

	if src := node.Attr("src"); src != "" {
		e.rc.Props.Set("srcPath", e.rc.Expand(src))
	}
	if dest := node.Attr("dest"); dest != "" {
		e.rc.Props.Set("destPath", e.rc.Expand(dest))
	}

	attrs := cmd.Params.BindNamed(node.Attrs)
	if e.rc.Options.TestMode && !cmd.Directive {
		e.rc.Printf("  %s %s\n", node.Kind, node.Attrs.String())
		return false
	}

	e.rc.Logger.Debug("dispatch", "kind", node.Kind, "attrs", attrs.String())
	err := cmd.Task.Run(ctx, e.rc, attrs)
	switch {
	case err == nil:
		return false
	case hasCode(err, CodeAborted):
		e.rc.Println("Operation aborted.")
		return true
	default:
		e.rc.fail(node.Kind, err)
		return false
	}
}

// runShell executes command through the platform shell and returns its
// combined stdout and stderr.
func runShell(ctx context.Context, command string) (string, error) {
	if strings.TrimSpace(command) == "" {
		return "", fmt.Errorf("empty command")
	}

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		// #nosec G204 - scripts run operator-defined commands by design
		cmd = exec.CommandContext(ctx, "cmd", "/C", command)
	} else {
		// #nosec G204 - scripts run operator-defined commands by design
		cmd = exec.CommandContext(ctx, "/bin/sh", "-c", command)
	}

	out, err := cmd.CombinedOutput()
	return string(out), err
}
