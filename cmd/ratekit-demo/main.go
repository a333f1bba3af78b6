package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"

	"ratekit/adapters/jsonfile"
	"ratekit/adapters/terminal"
	"ratekit/core"
	"ratekit/engine"
	"ratekit/integrations/storelink"
	"ratekit/ratekit"
)

type options struct {
	statePath string
	days      int
	launches  int
	appID     string
	store     string
	advance   time.Duration
	force     bool
	verbose   bool
}

func main() {
	var o options
	flag.StringVar(&o.statePath, "state", "ratekit-demo.json", "file holding the persisted counters")
	flag.IntVar(&o.days, "days", core.DefaultMinInstallDays, "days since install before prompting")
	flag.IntVar(&o.launches, "launches", core.DefaultMinLaunches, "launches before prompting")
	flag.StringVar(&o.appID, "app", "com.example.notes", "application id used for the store listing")
	flag.StringVar(&o.store, "store", string(storelink.GooglePlay), "google_play, app_store or a template containing {app_id}")
	flag.DurationVar(&o.advance, "advance", 0, "pretend this much time has passed, e.g. 192h")
	flag.BoolVar(&o.force, "force", false, "show the dialog even when it is not due")
	flag.BoolVar(&o.verbose, "v", false, "debug logging")
	flag.Parse()

	if err := run(context.Background(), o, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "ratekit-demo: %v\n", err)
		os.Exit(1)
	}
}

// run simulates one app launch: record the session, then show the dialog when due.
func run(ctx context.Context, o options, in io.Reader, out io.Writer) error {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	store, err := jsonfile.New(o.statePath)
	if err != nil {
		return err
	}
	ok := color.New(color.FgGreen)
	launcher, err := storelink.NewLauncher(storelink.Store(o.store), func(_ context.Context, u string) error {
		ok.Fprintf(out, "Opening %s\n", u)
		return nil
	}, logger)
	if err != nil {
		return err
	}

	e := ratekit.New(
		ratekit.WithStore(store),
		ratekit.WithAppID(o.appID),
		ratekit.WithCriteria(o.days, o.launches),
		ratekit.WithLauncher(launcher),
		ratekit.WithLogger(logger),
		ratekit.WithClock(func() time.Time { return time.Now().Add(o.advance) }),
		ratekit.WithCallback(engine.HandlerFuncs{
			Accept:  func(context.Context) { ok.Fprintln(out, "Thanks for rating!") },
			Decline: func(context.Context) { fmt.Fprintln(out, "We won't ask again.") },
			Defer:   func(context.Context) { fmt.Fprintln(out, "We'll ask again later.") },
		}),
	)

	st := e.OnSessionStart(ctx)
	fmt.Fprintf(out, "Launch #%d", st.LaunchCount)
	if st.Installed() {
		fmt.Fprintf(out, ", installed %s", st.InstallDate.Local().Format(time.RFC1123))
	}
	fmt.Fprintln(out)

	dialog := terminal.New(in, out)
	if o.force {
		return e.Present(ctx, dialog)
	}
	if !e.PresentIfNeeded(ctx, dialog) {
		if st.OptedOut {
			fmt.Fprintln(out, "Rating prompt disabled for this install.")
		} else {
			fmt.Fprintf(out, "Not prompting yet (%d/%d launches, %d days required).\n", st.LaunchCount, o.launches, o.days)
		}
	}
	return nil
}
