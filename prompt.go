package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// PromptProvider answers the interactive questions asked by pause, input
// and tag directives.
type PromptProvider interface {
	// Ask returns the operator's answer, or def for an empty answer.
	Ask(ctx context.Context, question, def string) (string, error)
	// Confirm reports whether the operator answered "y".
	Confirm(ctx context.Context, question string) (bool, error)
}

type terminalPrompt struct {
	in  *bufio.Reader
	out io.Writer
}

func newTerminalPrompt(in io.Reader, out io.Writer) *terminalPrompt {
	return &terminalPrompt{in: bufio.NewReader(in), out: out}
}

func (p *terminalPrompt) readLine(ctx context.Context, question string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(p.out, question)
	line, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (p *terminalPrompt) Ask(ctx context.Context, question, def string) (string, error) {
	line, err := p.readLine(ctx, question)
	if err != nil {
		return "", err
	}
	if line == "" {
		return def, nil
	}
	return line, nil
}

func (p *terminalPrompt) Confirm(ctx context.Context, question string) (bool, error) {
	line, err := p.readLine(ctx, question)
	if err != nil {
		return false, err
	}
	return line == "y", nil
}

// batchPrompt never blocks: questions take their default and
// confirmations take the configured answer.
type batchPrompt struct {
	answer string
	out    io.Writer
}

func (p batchPrompt) Ask(_ context.Context, question, def string) (string, error) {
	fmt.Fprintf(p.out, "%s%s\n", question, def)
	return def, nil
}

func (p batchPrompt) Confirm(_ context.Context, question string) (bool, error) {
	fmt.Fprintf(p.out, "%s%s\n", question, p.answer)
	return p.answer == "y", nil
}

// newPromptProvider picks the batch provider when mode is "batch", when
// an answer is given without a mode, or when stdin is not a terminal.
func newPromptProvider(mode, answer string, in *os.File, out io.Writer) PromptProvider {
	batch := mode == "batch" || (mode == "" && answer != "")
	if batch || !term.IsTerminal(int(in.Fd())) {
		if answer == "" {
			answer = "y"
		}
		return batchPrompt{answer: answer, out: out}
	}
	return newTerminalPrompt(in, out)
}
