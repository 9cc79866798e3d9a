// Package naver is a client for the Naver Shopping search endpoint.
package naver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/danaom/internal/errs"
	"github.com/and161185/danaom/internal/metrics"
	"github.com/and161185/danaom/internal/model"
)

// DefaultBaseURL is the public Naver Open API host.
const DefaultBaseURL = "https://openapi.naver.com/"

const searchPath = "v1/search/shop.json"

// maxErrorBody caps how much of a failed response is read for diagnostics.
const maxErrorBody = 64 << 10

// Config configures a Client.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// Client performs catalog searches. It is safe for concurrent use.
type Client struct {
	base    *url.URL
	id      string
	secret  string
	http    *http.Client
	log     *zap.Logger
	metrics *metrics.Metrics
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithLogger sets the logger used for request tracing.
func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

// WithMetrics records every call on m.
func WithMetrics(m *metrics.Metrics) Option { return func(c *Client) { c.metrics = m } }

// New validates cfg and builds a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	raw := cfg.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q: %w", cfg.BaseURL, errs.ErrInvalidInput)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		base:   base,
		id:     cfg.ClientID,
		secret: cfg.ClientSecret,
		http:   &http.Client{Timeout: timeout},
		log:    zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c, nil
}

type searchResponse struct {
	Total   int                 `json:"total"`
	Start   int                 `json:"start"`
	Display int                 `json:"display"`
	Items   []model.CatalogItem `json:"items"`
}

type errorResponse struct {
	ErrorMessage string `json:"errorMessage"`
	ErrorCode    string `json:"errorCode"`
}

// Search fetches one page of results. start is the 1-based offset and sort is
// the remote ordering ("sim" or "date"). Every failure is a *errs.RemoteError.
func (c *Client) Search(ctx context.Context, query string, pageSize, start int, sort string) (model.Page, error) {
	began := time.Now()
	page, outcome, err := c.search(ctx, query, pageSize, start, sort)
	c.metrics.ObserveSearch(outcome, time.Since(began))
	if err != nil {
		c.log.Warn("catalog search failed",
			zap.String("query", query), zap.Int("start", start), zap.String("outcome", outcome), zap.Error(err))
		return model.Page{}, err
	}
	c.log.Debug("catalog search",
		zap.String("query", query), zap.Int("start", start), zap.String("sort", sort),
		zap.Int("items", len(page.Items)), zap.Int("total", page.Total), zap.Duration("took", time.Since(began)))
	return page, nil
}

func (c *Client) search(ctx context.Context, query string, pageSize, start int, sort string) (model.Page, string, error) {
	u := c.base.ResolveReference(&url.URL{Path: searchPath})
	q := url.Values{}
	q.Set("query", query)
	q.Set("display", strconv.Itoa(pageSize))
	q.Set("start", strconv.Itoa(start))
	if sort != "" {
		q.Set("sort", sort)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return model.Page{}, "request_error", &errs.RemoteError{Message: "build request", Err: err}
	}
	req.Header.Set("X-Naver-Client-Id", c.id)
	req.Header.Set("X-Naver-Client-Secret", c.secret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return model.Page{}, "transport_error", &errs.RemoteError{Message: "send request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.Page{}, "http_error", statusError(resp)
	}

	var body *searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.Page{}, "decode_error", &errs.RemoteError{Message: "decode response", Err: err}
	}
	if body == nil {
		return model.Page{}, "decode_error", &errs.RemoteError{Message: "Response body is null"}
	}
	return model.Page{Items: body.Items, Total: body.Total, PageSize: body.Display}, "ok", nil
}

func statusError(resp *http.Response) error {
	msg := http.StatusText(resp.StatusCode)
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var e errorResponse
	if json.Unmarshal(raw, &e) == nil && e.ErrorMessage != "" {
		msg = strings.TrimSpace(msg + ": " + e.ErrorMessage)
		if e.ErrorCode != "" {
			msg += " (" + e.ErrorCode + ")"
		}
	}
	return &errs.RemoteError{Status: resp.StatusCode, Message: msg}
}
