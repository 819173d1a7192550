package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/agilira/orpheus/pkg/orpheus"
)

const version = "1.0.0"

func main() {
	registry := newRegistry()
	app := newApp(registry)
	if err := app.Run(rewriteArgs(os.Args[1:], registry)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp(registry *Registry) *orpheus.App {
	app := orpheus.New("todocopy").
		SetDescription("Copy, archive, transfer and maintain sites from declarative scripts").
		SetVersion(version)

	app.AddCommand(withRunFlags(orpheus.NewCommand("run", "Execute a script, optionally starting at TARGET").
		SetHandler(func(ctx *orpheus.Context) error { return runCommand(ctx, registry) })))

	app.AddCommand(withRunFlags(orpheus.NewCommand("exec", "Execute one task with positional arguments").
		SetHandler(func(ctx *orpheus.Context) error { return execCommand(ctx, registry) })))

	app.AddCommand(orpheus.NewCommand("list", "List the targets of a script").
		SetHandler(listCommand).
		AddFlag("format", "f", "table", "Output format: table, json or yaml"))

	app.AddCommand(orpheus.NewCommand("validate", "Check a script for unknown targets and cycles").
		SetHandler(validateCommand))

	app.AddCommand(orpheus.NewCommand("examples", "Show command line examples").
		SetHandler(func(ctx *orpheus.Context) error { return examplesCommand(registry) }))

	return app
}

// withRunFlags adds the switches shared by run and exec.
func withRunFlags(cmd *orpheus.Command) *orpheus.Command {
	return cmd.
		AddBoolFlag("test", "e", false, "Print tasks instead of running them").
		AddBoolFlag("quiet", "q", false, "Suppress banners and progress").
		AddBoolFlag("recursive", "r", false, "Recurse into subdirectories").
		AddBoolFlag("noarchive", "n", false, "Skip archiving").
		AddBoolFlag("verbose", "v", false, "Debug logging").
		AddFlag("source", "s", "", "Source path override").
		AddFlag("outfile", "o", "", "Write task output to OUTFILE").
		AddFlag("batch", "b", "", "Answer prompts with this value instead of asking").
		AddFlag("config", "c", "", "Config file (default $"+ConfigEnv+")")
}

// valueFlags take the following token as their value.
var valueFlags = map[string]bool{
	"-s": true, "--source": true,
	"-o": true, "--outfile": true,
	"-b": true, "--batch": true,
	"-c": true, "--config": true,
	"-f": true, "--format": true,
}

var subcommands = map[string]bool{
	"run": true, "exec": true, "list": true, "validate": true, "examples": true,
	"help": true, "--help": true, "-h": true, "--version": true,
}

// rewriteArgs maps the bare forms onto subcommands: no arguments runs
// the autorun script, a script path runs it, a registered command name
// executes it and two plain paths are an implicit copy. Switches are
// moved in front of the positional arguments.
func rewriteArgs(args []string, registry *Registry) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if strings.HasPrefix(arg, "-") && (len(positional) > 0 || !subcommands[arg]) {
			flags = append(flags, arg)
			if valueFlags[arg] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
			continue
		}
		positional = append(positional, arg)
	}

	var out []string
	switch {
	case len(positional) == 0:
		out = append([]string{"run"}, flags...)
		return out
	case subcommands[positional[0]]:
		out = append([]string{positional[0]}, flags...)
		return append(out, positional[1:]...)
	case isScriptPath(positional[0]):
		out = append([]string{"run"}, flags...)
	case registry.Has(TaskKind(positional[0]), SurfaceCommand):
		out = append([]string{"exec"}, flags...)
	case len(positional) > 1:
		out = append([]string{"exec"}, flags...)
		out = append(out, string(KindCopy))
	default:
		return append([]string{positional[0]}, flags...)
	}
	return append(out, positional...)
}

// newRunContextFromFlags builds the run context for run and exec: the
// config file first, then the switches.
func newRunContextFromFlags(ctx *orpheus.Context, registry *Registry) (*RunContext, error) {
	opts := Options{
		TestMode:  ctx.GetFlagBool("test"),
		Quiet:     ctx.GetFlagBool("quiet"),
		Recursive: ctx.GetFlagBool("recursive"),
		Verbose:   ctx.GetFlagBool("verbose"),
		Source:    ctx.GetFlagString("source"),
		Outfile:   ctx.GetFlagString("outfile"),
		Batch:     ctx.GetFlagString("batch"),
	}
	rc := NewRunContext(opts)
	rc.registry = registry

	if path := configPath(ctx.GetFlagString("config")); path != "" {
		cfg, err := LoadConfig(path)
		if err != nil {
			return nil, orpheus.ValidationError("config", diagnosticText(err))
		}
		cfg.Apply(rc)
	}
	if ctx.GetFlagBool("noarchive") {
		rc.Props.Set("noarchive", "1")
	}
	if !rc.Quiet() && !opts.Quiet {
		rc.Printf("--- Todocopy v%s --- \n", version)
	}
	rc.ApplyOptions()
	return rc, nil
}

// signalContext cancels on interrupt so prompts and transfers stop.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runCommand(ctx *orpheus.Context, registry *Registry) error {
	rc, err := newRunContextFromFlags(ctx, registry)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	var script, target string
	if len(ctx.Args) > 0 {
		script = ctx.Args[0]
	}
	if len(ctx.Args) > 1 {
		target = ctx.Args[1]
	}
	if script == "" {
		path, ok := findAutorun(".")
		if !ok {
			if !rc.Quiet() {
				rc.Println("------> For examples, execute: todocopy examples")
			}
			return nil
		}
		rc.Println("Executing autorun...")
		script = path
	}

	doc, err := LoadScript(script)
	if err != nil {
		return orpheus.NotFoundError(script, diagnosticText(err))
	}

	runCtx, stop := signalContext()
	defer stop()
	engine := NewEngine(rc, registry, doc)
	engine.ExecuteScript(runCtx, doc.Project, ScopeProject, target)
	return runCtx.Err()
}

func execCommand(ctx *orpheus.Context, registry *Registry) error {
	if len(ctx.Args) == 0 {
		return orpheus.ValidationError("command", "exec needs a command name")
	}
	name := ctx.Args[0]

	rc, err := newRunContextFromFlags(ctx, registry)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	runCtx, stop := signalContext()
	defer stop()
	err = registry.Invoke(runCtx, rc, name, ctx.Args[1:])
	switch {
	case err == nil:
		return nil
	case hasCode(err, CodeUnknownTask):
		return orpheus.NotFoundError(name, diagnosticText(err))
	case hasCode(err, CodeAborted):
		rc.Println("Operation aborted.")
		return nil
	default:
		return orpheus.ExecutionError(name, err.Error())
	}
}

func loadForInspection(ctx *orpheus.Context) (*Document, *TagStore, error) {
	script := ""
	if len(ctx.Args) > 0 {
		script = ctx.Args[0]
	} else if path, ok := findAutorun("."); ok {
		script = path
	}
	if script == "" {
		return nil, nil, orpheus.ValidationError("script", "no script given and no autorun script found")
	}
	doc, err := LoadScript(script)
	if err != nil {
		return nil, nil, orpheus.NotFoundError(script, diagnosticText(err))
	}
	return doc, NewTagStore(time.Now(), false), nil
}

func listCommand(ctx *orpheus.Context) error {
	doc, tags, err := loadForInspection(ctx)
	if err != nil {
		return err
	}
	format := ctx.GetFlagString("format")
	if format == "" {
		format = "table"
	}
	return listTargets(os.Stdout, BuildTargetTable(doc, tags), format)
}

func validateCommand(ctx *orpheus.Context) error {
	doc, tags, err := loadForInspection(ctx)
	if err != nil {
		return err
	}
	table := BuildTargetTable(doc, tags)
	problems := table.Validate(doc.Project, tags)
	for _, problem := range problems {
		fmt.Println(problem)
	}
	if len(problems) > 0 {
		return orpheus.ExecutionError("validate", fmt.Sprintf("%d problem(s) in %s", len(problems), doc.Path))
	}
	fmt.Printf("%s: %d targets, no problems\n", doc.Path, len(table))
	return nil
}

func examplesCommand(registry *Registry) error {
	rc := NewRunContext(Options{Quiet: true})
	return registry.Invoke(context.Background(), rc, string(KindExamples), nil)
}
