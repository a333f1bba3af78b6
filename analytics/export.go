package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Exporter ships funnel snapshots somewhere else.
type Exporter interface {
	Export(ctx context.Context, snap Snapshot) error
}

// HTTPExporter posts snapshots as JSON to an external endpoint.
type HTTPExporter struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPExporter(endpoint, apiKey string) *HTTPExporter {
	return &HTTPExporter{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (e *HTTPExporter) Export(ctx context.Context, snap Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal funnel snapshot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send funnel snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("funnel export failed with status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// WriterExporter writes one JSON document per snapshot.
type WriterExporter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterExporter(w io.Writer) *WriterExporter { return &WriterExporter{w: w} }

func (e *WriterExporter) Export(_ context.Context, snap Snapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return json.NewEncoder(e.w).Encode(snap)
}

// RunExport exports f every interval until ctx is done. Errors go to onErr.
func RunExport(ctx context.Context, f *Funnel, exp Exporter, interval time.Duration, onErr func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := exp.Export(ctx, f.Snapshot()); err != nil && onErr != nil {
				onErr(err)
			}
		}
	}
}
