package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	goerrors "github.com/agilira/go-errors"
)

// ShellFunc runs one shell command line and returns its combined output.
type ShellFunc func(ctx context.Context, command string) (string, error)

// RunContext is the state shared by every task of one run: the tag and
// property stores, the parsed options and the operator I/O. It is passed
// explicitly through the whole recursion and is not safe for concurrent
// use.
type RunContext struct {
	Tags    *TagStore
	Props   *PropertyStore
	Options Options
	Prompt  PromptProvider
	Stdout  io.Writer
	Stderr  io.Writer
	Logger  *slog.Logger
	Shell   ShellFunc
	Now     func() time.Time

	registry  *Registry
	reportInc int
	db        *sql.DB
	dbConn    *sql.Conn
	dbDSN     string
}

// NewRunContext builds a run context writing to the process stdout and
// stderr.
func NewRunContext(opts Options) *RunContext {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	rc := &RunContext{
		Tags:    NewTagStore(time.Now(), colorSupported()),
		Props:   NewPropertyStore(),
		Options: opts,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Logger:  newLogger(os.Stderr, level),
		Shell:   runShell,
		Now:     time.Now,
	}
	rc.Prompt = newPromptProvider("", opts.Batch, os.Stdin, rc.Stdout)
	return rc
}

// ApplyOptions copies the switches that tasks read as properties and
// prints the mode notices.
func (rc *RunContext) ApplyOptions() {
	if rc.Options.Recursive {
		rc.Props.Set("recursive", "1")
	}
	if rc.Options.Quiet {
		rc.Props.Set("quietmode", "1")
	}
	if rc.Quiet() {
		return
	}
	if rc.Props.Bool("ignoresvndir") {
		rc.Report("Ignoring SVN folders.", 0)
	}
	if rc.Options.TestMode {
		rc.Println("*** Test Mode is on ***")
	}
}

func (rc *RunContext) Quiet() bool {
	return rc.Props.Bool("quietmode")
}

func (rc *RunContext) Expand(text string) string {
	return rc.Tags.Expand(text)
}

// ExpandAttrs returns a copy of attrs with every value tag-expanded once.
func (rc *RunContext) ExpandAttrs(attrs Attrs) Attrs {
	out := attrs.Clone()
	for i := range out {
		out[i].Value = rc.Expand(out[i].Value)
	}
	return out
}

func (rc *RunContext) Printf(format string, args ...any) {
	fmt.Fprintf(rc.Stdout, format, args...)
}

func (rc *RunContext) Println(args ...any) {
	fmt.Fprintln(rc.Stdout, args...)
}

// Report prints progress text according to the reportLevel property:
// 0, 1 and 4 print everything, 2 prints every reportSampleFreq-th
// message and a dot otherwise, 3 prints only dots.
func (rc *RunContext) Report(msg string, inc int) {
	rc.reportInc += inc
	switch level := rc.Props.Int("reportLevel"); {
	case level < 2, level == 4:
		rc.Println(msg)
	case level == 2:
		freq := rc.Props.Int("reportSampleFreq")
		if freq < 1 {
			freq = 1
		}
		sample := rc.Props.Int("reportSampleInc")
		if sample%freq == 0 {
			rc.Printf("\n#%d:sample: %s\n", rc.reportInc, msg)
		} else {
			rc.Printf(".")
		}
		rc.Props.Set("reportSampleInc", fmt.Sprint(sample+1))
	case level == 3:
		rc.Printf(".")
	}
}

// warn prints a non-fatal diagnostic. The engine never stops for these.
func (rc *RunContext) warn(err error) {
	fmt.Fprintf(rc.Stderr, "[warn] %s\n", diagnosticText(err))
	rc.Logger.Debug("diagnostic", "code", diagnosticCode(err), "error", err)
}

func (rc *RunContext) fail(kind string, err error) {
	fmt.Fprintf(rc.Stderr, "[error] %s: %v\n", kind, err)
	rc.Logger.Debug("task failed", "kind", kind, "error", err)
}

func diagnosticText(err error) string {
	if e, ok := err.(*goerrors.Error); ok {
		return e.Message
	}
	return err.Error()
}

func diagnosticCode(err error) string {
	if e, ok := err.(*goerrors.Error); ok {
		return string(e.Code)
	}
	return ""
}

// Close releases resources opened by tasks during the run.
func (rc *RunContext) Close() error {
	var err error
	if rc.dbConn != nil {
		err = rc.dbConn.Close()
		rc.dbConn = nil
	}
	if rc.db != nil {
		if cerr := rc.db.Close(); err == nil {
			err = cerr
		}
		rc.db = nil
	}
	return err
}
