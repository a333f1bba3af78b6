// Package terminal renders the rating prompt on a text terminal.
package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"ratekit/engine"
)

// Dialog asks the user on Out and reads one answer line from In.
type Dialog struct {
	in  *bufio.Reader
	out io.Writer

	title  *color.Color
	choice *color.Color
	muted  *color.Color
}

// Option configures a Dialog.
type Option func(*Dialog)

// WithoutColor disables ANSI colouring regardless of the terminal.
func WithoutColor() Option {
	return func(d *Dialog) {
		d.title.DisableColor()
		d.choice.DisableColor()
		d.muted.DisableColor()
	}
}

// New creates a dialog over the given streams.
func New(in io.Reader, out io.Writer, opts ...Option) *Dialog {
	d := &Dialog{
		in:     bufio.NewReader(in),
		out:    out,
		title:  color.New(color.FgCyan, color.Bold),
		choice: color.New(color.FgYellow),
		muted:  color.New(color.Faint),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

var _ engine.Dialog = (*Dialog)(nil)

// Present prints the prompt and dispatches the answer. Anything that is not a
// recognised choice, including end of input, counts as cancel.
func (d *Dialog) Present(ctx context.Context, p engine.Prompt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rule := strings.Repeat("=", len(p.Text.Title)+4)
	d.title.Fprintf(d.out, "\n%s\n  %s\n%s\n", rule, p.Text.Title, rule)
	fmt.Fprintf(d.out, "%s\n\n", p.Text.Message)
	d.choice.Fprintf(d.out, "  [1] %s\n", p.Text.RateButton)
	d.choice.Fprintf(d.out, "  [2] %s\n", p.Text.LaterButton)
	d.choice.Fprintf(d.out, "  [3] %s\n", p.Text.NoThanksButton)
	d.muted.Fprint(d.out, "\nChoice (enter to close): ")

	line, err := d.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return fmt.Errorf("read answer: %w", err)
	}
	fmt.Fprintln(d.out)

	switch parseChoice(line) {
	case choiceRate:
		call(ctx, p.OnRate)
	case choiceLater:
		call(ctx, p.OnLater)
	case choiceNoThanks:
		call(ctx, p.OnNoThanks)
	default:
		call(ctx, p.OnCancel)
	}
	return nil
}

type choice int

const (
	choiceCancel choice = iota
	choiceRate
	choiceLater
	choiceNoThanks
)

func parseChoice(line string) choice {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "1", "r", "rate":
		return choiceRate
	case "2", "l", "later":
		return choiceLater
	case "3", "n", "no":
		return choiceNoThanks
	default:
		return choiceCancel
	}
}

func call(ctx context.Context, fn func(context.Context)) {
	if fn != nil {
		fn(ctx)
	}
}
