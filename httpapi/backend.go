// Package httpapi provides a strata backend that delegates storage to a
// remote JSON API. The remote service exposes one route set per collection:
// query (paged reads), insert, update and remove, all plain JSON documents.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/quarryhq/strata"
)

const defaultPageSize = 100

func init() {
	strata.RegisterBackend("http", func(_ context.Context, cfg *strata.Config, logger strata.Logger) (strata.Backend, error) {
		return New(cfg.GetStringOrDef("backend.http.baseurl", ""),
			WithLogger(logger),
			WithPageSize(cfg.GetIntOrDef("backend.http.pagesize", defaultPageSize)),
			WithTimeout(cfg.GetDurationOrDef("backend.http.timeout", 30*time.Second)),
		)
	})
}

// Backend issues collection operations against a remote service. It exposes
// streaming reads (page-fetching lazily) and counting; bulk reads are derived
// by the collection handle.
type Backend struct {
	base     string
	client   *http.Client
	pageSize int
	logger   strata.Logger
}

// Option configures a Backend.
type Option func(*Backend)

// WithClient overrides the HTTP client.
func WithClient(client *http.Client) Option {
	return func(b *Backend) {
		if client != nil {
			b.client = client
		}
	}
}

// WithPageSize sets how many records each query page requests.
func WithPageSize(size int) Option {
	return func(b *Backend) {
		if size > 0 {
			b.pageSize = size
		}
	}
}

// WithTimeout sets the per-request timeout on the default client.
func WithTimeout(d time.Duration) Option {
	return func(b *Backend) {
		if d > 0 {
			b.client.Timeout = d
		}
	}
}

// WithLogger installs a logger.
func WithLogger(logger strata.Logger) Option {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New builds a backend rooted at the given base URL.
func New(baseURL string, opts ...Option) (*Backend, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("httpapi: base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("httpapi: invalid base url: %w", err)
	}
	b := &Backend{
		base:     strings.TrimSuffix(baseURL, "/"),
		client:   &http.Client{Timeout: 30 * time.Second},
		pageSize: defaultPageSize,
		logger:   strata.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *Backend) Name() string { return "http" }

// queryRequest is the wire shape of one paged read.
type queryRequest struct {
	Filter   strata.Filter `json:"filter,omitempty"`
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
}

type queryResponse struct {
	Records []strata.Record `json:"records"`
	Total   int64           `json:"total"`
}

func (b *Backend) Insert(ctx context.Context, collection string, records ...strata.Record) error {
	for _, rec := range records {
		rec.EnsureID()
	}
	return b.post(ctx, collection, "", map[string]any{"records": records}, nil)
}

func (b *Backend) Update(ctx context.Context, collection string, filter strata.Filter, changes strata.Record) (int64, error) {
	var resp struct {
		Modified int64 `json:"modified"`
	}
	err := b.post(ctx, collection, "update", map[string]any{"filter": filter, "changes": changes}, &resp)
	return resp.Modified, err
}

func (b *Backend) Remove(ctx context.Context, collection string, filter strata.Filter) (int64, error) {
	var resp struct {
		Removed int64 `json:"removed"`
	}
	err := b.post(ctx, collection, "remove", map[string]any{"filter": filter}, &resp)
	return resp.Removed, err
}

// FindStream returns a source that fetches query pages on demand, so a large
// matched set is never materialized at once.
func (b *Backend) FindStream(ctx context.Context, collection string, filter strata.Filter) (strata.RecordSource, error) {
	return &pageSource{backend: b, collection: collection, filter: filter}, nil
}

func (b *Backend) Count(ctx context.Context, collection string, filter strata.Filter) (int64, error) {
	var resp queryResponse
	if err := b.post(ctx, collection, "query", queryRequest{Filter: filter, Page: 0, PageSize: 1}, &resp); err != nil {
		return 0, err
	}
	return resp.Total, nil
}

func (b *Backend) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.base+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("httpapi: ping: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("httpapi: ping: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (b *Backend) post(ctx context.Context, collection, action string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("httpapi: encode request: %w", err)
	}
	endpoint := b.base + "/" + url.PathEscape(collection)
	if action != "" {
		endpoint += "/" + action
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("httpapi: %s %s: %w", action, collection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("httpapi: %s %s: status %d: %s", action, collection, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("httpapi: decode response: %w", err)
	}
	return nil
}

// pageSource walks query pages lazily. It reports TotalCount from the first
// page's total.
type pageSource struct {
	backend    *Backend
	collection string
	filter     strata.Filter

	page     int
	buf      []strata.Record
	pos      int
	total    int64
	hasTotal bool
	done     bool
}

func (s *pageSource) Next(ctx context.Context) (strata.Record, error) {
	for s.pos >= len(s.buf) {
		if s.done {
			return nil, strata.ErrEndOfStream
		}
		var resp queryResponse
		req := queryRequest{Filter: s.filter, Page: s.page, PageSize: s.backend.pageSize}
		if err := s.backend.post(ctx, s.collection, "query", req, &resp); err != nil {
			return nil, err
		}
		s.total = resp.Total
		s.hasTotal = true
		s.page++
		s.buf = resp.Records
		s.pos = 0
		if len(resp.Records) < s.backend.pageSize {
			s.done = true
		}
	}
	rec := s.buf[s.pos]
	s.pos++
	return rec, nil
}

func (s *pageSource) Close(context.Context) error {
	s.done = true
	s.buf = nil
	s.pos = 0
	return nil
}

func (s *pageSource) TotalCount(ctx context.Context) (int64, error) {
	if s.hasTotal {
		return s.total, nil
	}
	return s.backend.Count(ctx, s.collection, s.filter)
}
