package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	wsadapter "ratekit/adapters/websocket"
	"ratekit/analytics"
	"ratekit/core"
	"ratekit/engine"
	"ratekit/integrations/storelink"
	"ratekit/realtime"
)

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// AllowCORSOrigin, if non-empty, enables basic CORS with the given origin (use "*" for any).
	AllowCORSOrigin string
	// APIKeys, if non-empty, enables static API key auth via Authorization: Bearer or X-API-Key.
	APIKeys []string
	// RateLimitEnabled toggles rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client key.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
	// AppID and Store resolve the listing URL returned on accept.
	AppID string
	Store storelink.Store
	// Funnel, if set, is served on {prefix}/stats.
	Funnel *analytics.Funnel
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// InstallState is the JSON view of one installation.
type InstallState struct {
	InstallID    core.InstallID `json:"install_id"`
	InstallDate  *time.Time     `json:"install_date,omitempty"`
	LaunchCount  int64          `json:"launch_count"`
	OptedOut     bool           `json:"opted_out"`
	ShouldPrompt bool           `json:"should_prompt"`
	ListingURL   string         `json:"listing_url,omitempty"`
}

// PromptResponse reports whether the dialog should be shown and with what text.
type PromptResponse struct {
	Shown  bool             `json:"shown"`
	Dialog *core.DialogText `json:"dialog,omitempty"`
}

type server struct {
	reg  *engine.Registry
	opts Options
	log  *slog.Logger
}

// NewMux builds an http.Handler exposing the rating prompt API and WebSocket stream.
// Routes:
//   - POST {prefix}/installs
//   - POST {prefix}/installs/{id}/sessions
//   - GET  {prefix}/installs/{id}
//   - POST {prefix}/installs/{id}/prompt[?force=true]
//   - POST {prefix}/installs/{id}/choices/{accept|decline|defer|dismiss}
//   - GET  {prefix}/stats
//   - GET  {prefix}/healthz
//   - WS   {prefix}/ws[?install_id=...]
func NewMux(reg *engine.Registry, hub *realtime.Hub, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &server{reg: reg, opts: opts, log: logger.With("component", "httpapi")}
	mux := http.NewServeMux()

	// health
	mux.HandleFunc(withPrefix(opts.PathPrefix, "/healthz"), s.healthCheck)

	// WebSocket events
	if hub != nil {
		mux.Handle(withPrefix(opts.PathPrefix, "/ws"), wsadapter.Handler(hub))
	}

	if opts.Funnel != nil {
		mux.HandleFunc(withPrefix(opts.PathPrefix, "/stats"), func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET", nil)
				return
			}
			writeJSON(w, opts.Funnel.Snapshot())
		})
	}

	// Installs API
	mux.HandleFunc(withPrefix(opts.PathPrefix, "/installs"), s.createInstall)
	mux.HandleFunc(withPrefix(opts.PathPrefix, "/installs/"), s.installRoutes)

	var handler http.Handler = mux
	if opts.AllowCORSOrigin != "" {
		handler = withCORS(handler, opts.AllowCORSOrigin)
	}
	if len(opts.APIKeys) > 0 {
		handler = withAPIKeyAuth(handler, opts.APIKeys)
	}
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		handler = withRateLimit(handler, opts.RateLimitRPM, opts.RateLimitBurst)
	}
	return handler
}

func (s *server) createInstall(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST", nil)
		return
	}
	id := core.InstallID(uuid.NewString())
	e, err := s.reg.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
		return
	}
	s.log.Info("install registered", "install_id", string(id))
	w.Header().Set("Location", withPrefix(s.opts.PathPrefix, "/installs/"+string(id)))
	writeJSONStatus(w, http.StatusCreated, s.view(e, e.State()))
}

func (s *server) installRoutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, s.opts.PathPrefix)
	parts := split(path, '/')
	if len(parts) < 2 || parts[0] != "installs" {
		writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
		return
	}
	ctx := r.Context()
	// Only a session start may bring an unseen id into being.
	lookup := s.reg.Lookup
	if len(parts) == 3 && parts[2] == "sessions" && r.Method == http.MethodPost {
		lookup = s.reg.Get
	}
	e, err := lookup(ctx, core.InstallID(parts[1]))
	switch {
	case errors.Is(err, engine.ErrUnknownInstall):
		writeError(w, http.StatusNotFound, "unknown_install", "install not found", map[string]string{"install_id": parts[1]})
		return
	case errors.Is(err, core.ErrInvalidInstallID):
		writeError(w, http.StatusBadRequest, "invalid_install", err.Error(), nil)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
		return
	}

	switch {
	case len(parts) == 2 && r.Method == http.MethodGet:
		writeJSON(w, s.view(e, e.Load(ctx)))
	case len(parts) == 3 && parts[2] == "sessions" && r.Method == http.MethodPost:
		writeJSON(w, s.view(e, e.OnSessionStart(ctx)))
	case len(parts) == 3 && parts[2] == "prompt" && r.Method == http.MethodPost:
		s.prompt(w, r, e)
	case len(parts) == 4 && parts[2] == "choices" && r.Method == http.MethodPost:
		s.choose(ctx, w, e, parts[3])
	default:
		writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
	}
}

func (s *server) prompt(w http.ResponseWriter, r *http.Request, e *engine.Engine) {
	var d captureDialog
	if r.URL.Query().Get("force") == "true" {
		if err := e.Present(r.Context(), &d); err != nil {
			writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
			return
		}
	} else if !e.PresentIfNeeded(r.Context(), &d) {
		writeJSON(w, PromptResponse{Shown: false})
		return
	}
	writeJSON(w, PromptResponse{Shown: true, Dialog: &d.text})
}

func (s *server) choose(ctx context.Context, w http.ResponseWriter, e *engine.Engine, choice string) {
	var listing string
	switch choice {
	case "accept":
		e.Accept(ctx)
		if u, err := storelink.ListingURL(s.opts.Store, s.opts.AppID); err == nil {
			listing = u
		} else {
			s.log.Warn("listing url unavailable", "error", err)
		}
	case "decline":
		e.Decline(ctx)
	case "defer":
		e.Defer(ctx)
	case "dismiss":
		e.Dismiss(ctx)
	default:
		writeError(w, http.StatusBadRequest, "invalid_choice", "choice must be accept, decline, defer or dismiss", map[string]string{"choice": choice})
		return
	}
	v := s.view(e, e.State())
	v.ListingURL = listing
	writeJSON(w, v)
}

func (s *server) view(e *engine.Engine, st core.UsageState) InstallState {
	v := InstallState{
		InstallID:    st.InstallID,
		LaunchCount:  st.LaunchCount,
		OptedOut:     st.OptedOut,
		ShouldPrompt: e.ShouldPrompt(),
	}
	if st.Installed() {
		d := st.InstallDate
		v.InstallDate = &d
	}
	return v
}

// healthCheck verifies the store answers reads.
func (s *server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var err error
	if p, ok := s.reg.Store().(interface{ Ping(context.Context) error }); ok {
		err = p.Ping(ctx)
	} else {
		_, _, err = s.reg.Store().GetInt64(ctx, "ratekit:healthcheck_probe")
	}

	status := map[string]any{
		"status": "healthy",
		"checks": map[string]any{
			"storage": "ok",
		},
		"installs": s.reg.Len(),
	}

	if err != nil {
		s.log.Warn("health check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		status["status"] = "unhealthy"
		status["checks"].(map[string]any)["storage"] = "failed"
	} else {
		w.WriteHeader(http.StatusOK)
	}

	writeJSON(w, status)
}

// captureDialog records the resolved text so the client can render it.
// The user's answer arrives later on the choices route.
type captureDialog struct {
	text core.DialogText
}

func (d *captureDialog) Present(_ context.Context, p engine.Prompt) error {
	d.text = p.Text
	return nil
}

func withPrefix(prefix, path string) string {
	if prefix == "" || prefix == "/" {
		return path
	}
	if prefix[len(prefix)-1] == '/' {
		return prefix[:len(prefix)-1] + path
	}
	return prefix + path
}

func split(p string, sep rune) []string {
	var parts []string
	cur := make([]rune, 0, len(p))
	// trim leading '/'
	for len(p) > 0 && p[0] == '/' {
		p = p[1:]
	}
	for _, r := range p {
		if r == sep {
			if len(cur) > 0 {
				parts = append(parts, string(cur))
				cur = cur[:0]
			}
			continue
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		parts = append(parts, string(cur))
	}
	return parts
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{Code: code, Message: msg, Details: details})
}
