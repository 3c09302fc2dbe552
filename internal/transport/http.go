package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pixil98/mindmaze/internal/telemetry"
)

const DefaultHTTPTimeout = 10 * time.Second

// StatusError reports a response outside the 2xx range.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("collector responded %d: %s", e.Code, e.Body)
}

// HTTPPoster sends batches to the collector as a JSON POST. Only a 2xx
// response counts as delivered.
type HTTPPoster struct {
	endpoint string
	client   *http.Client
}

type HTTPPosterOpt func(*HTTPPoster)

func WithHTTPClient(c *http.Client) HTTPPosterOpt {
	return func(p *HTTPPoster) {
		p.client = c
	}
}

func NewHTTPPoster(endpoint string, opts ...HTTPPosterOpt) *HTTPPoster {
	p := &HTTPPoster{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultHTTPTimeout},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *HTTPPoster) Post(ctx context.Context, batch *telemetry.Batch) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshalling batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to %s: %w", p.endpoint, err)
	}
	defer resp.Body.Close()

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(msg))}
	}

	return nil
}
