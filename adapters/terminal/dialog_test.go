package terminal

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ratekit/adapters/memory"
	"ratekit/core"
	"ratekit/engine"
)

func recordingPrompt(got *[]string) engine.Prompt {
	rec := func(name string) func(context.Context) {
		return func(context.Context) { *got = append(*got, name) }
	}
	return engine.Prompt{
		Text:       core.DefaultPromptConfig().Text(),
		OnRate:     rec("rate"),
		OnLater:    rec("later"),
		OnNoThanks: rec("no"),
		OnCancel:   rec("cancel"),
	}
}

func TestDialog_Choices(t *testing.T) {
	cases := map[string]string{
		"1\n":     "rate",
		"rate\n":  "rate",
		" 2 \n":   "later",
		"L\n":     "later",
		"3\n":     "no",
		"no":      "no",
		"\n":      "cancel",
		"maybe\n": "cancel",
		"":        "cancel",
	}
	for input, want := range cases {
		var got []string
		var out bytes.Buffer
		d := New(strings.NewReader(input), &out, WithoutColor())
		require.NoError(t, d.Present(context.Background(), recordingPrompt(&got)))
		assert.Equal(t, []string{want}, got, "input %q", input)
	}
}

func TestDialog_RendersLabels(t *testing.T) {
	var got []string
	var out bytes.Buffer
	p := recordingPrompt(&got)
	p.Text.Title = "Enjoying Notes?"
	p.Text.RateButton = "Sure"

	d := New(strings.NewReader("2\n"), &out, WithoutColor())
	require.NoError(t, d.Present(context.Background(), p))

	s := out.String()
	assert.Contains(t, s, "Enjoying Notes?")
	assert.Contains(t, s, "[1] Sure")
	assert.Contains(t, s, "[2] Later")
	assert.Contains(t, s, "[3] No, thanks")
	assert.NotContains(t, s, "\x1b[")
}

func TestDialog_CancelledContext(t *testing.T) {
	var got []string
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := New(strings.NewReader("1\n"), &bytes.Buffer{}, WithoutColor())
	require.Error(t, d.Present(ctx, recordingPrompt(&got)))
	assert.Empty(t, got)
}

func TestDialog_WithEngine(t *testing.T) {
	bus := engine.NewEventBus(engine.DispatchSync)
	defer bus.Close()
	e := engine.NewEngine(memory.New(), bus, engine.Options{})
	e.OnSessionStart(context.Background())

	d := New(strings.NewReader("3\n"), &bytes.Buffer{}, WithoutColor())
	require.NoError(t, e.Present(context.Background(), d))
	assert.True(t, e.State().OptedOut)
}
