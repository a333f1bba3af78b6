// Package storelink builds app-store listing URLs and opens them when the user
// agrees to rate.
package storelink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"ratekit/engine"
)

// Store identifies an app marketplace.
type Store string

const (
	GooglePlay Store = "google_play"
	AppStore   Store = "app_store"
)

const (
	googlePlayTemplate = "https://play.google.com/store/apps/details?id={app_id}"
	appStoreTemplate   = "https://apps.apple.com/app/id{app_id}"
)

// ErrEmptyAppID is returned when no application id is configured.
var ErrEmptyAppID = errors.New("app id cannot be empty")

// Template returns the listing template for a known store. Any other value is
// treated as a custom template and must contain "{app_id}".
func Template(s Store) (string, error) {
	switch s {
	case "", GooglePlay:
		return googlePlayTemplate, nil
	case AppStore:
		return appStoreTemplate, nil
	}
	tpl := string(s)
	if !strings.Contains(tpl, "{app_id}") {
		return "", fmt.Errorf("unknown store %q: custom templates must contain {app_id}", s)
	}
	if _, err := url.Parse(strings.ReplaceAll(tpl, "{app_id}", "x")); err != nil {
		return "", fmt.Errorf("invalid store template: %w", err)
	}
	return tpl, nil
}

// ListingURL resolves the listing URL for appID on s.
func ListingURL(s Store, appID string) (string, error) {
	appID = strings.TrimSpace(appID)
	if appID == "" {
		return "", ErrEmptyAppID
	}
	tpl, err := Template(s)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(tpl, "{app_id}", url.QueryEscape(appID)), nil
}

// OpenFunc hands a URL to whatever can show it: a browser, a deep-link
// dispatcher, or an HTTP response.
type OpenFunc func(ctx context.Context, listing string) error

// Launcher implements engine.Launcher for one store.
type Launcher struct {
	store Store
	open  OpenFunc
	log   *slog.Logger
}

var _ engine.Launcher = (*Launcher)(nil)

// NewLauncher validates the store and returns a launcher. A nil open only logs
// the URL.
func NewLauncher(s Store, open OpenFunc, logger *slog.Logger) (*Launcher, error) {
	if _, err := Template(s); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{store: s, open: open, log: logger.With("component", "storelink", "store", string(s))}, nil
}

// OpenListing resolves and opens the listing for appID.
func (l *Launcher) OpenListing(ctx context.Context, appID string) error {
	u, err := ListingURL(l.store, appID)
	if err != nil {
		return err
	}
	l.log.Info("opening store listing", "app_id", appID, "url", u)
	if l.open == nil {
		return nil
	}
	if err := l.open(ctx, u); err != nil {
		return fmt.Errorf("open %s: %w", u, err)
	}
	return nil
}
