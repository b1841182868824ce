// Package search talks to ajax select search endpoints.
//
// Client implements widget.Searcher over HTTP. Func adapts an in-process
// callback to the same interface, and Handler exposes a callback as a JSON
// search endpoint.
package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/pthm/hxselect/widget"
)

// Sentinel errors.
var (
	ErrBadStatus   = errors.New("search: unexpected response status")
	ErrBadResponse = errors.New("search: malformed response body")
	ErrNotFound    = errors.New("search: no result for id")
)

// Query parameter names sent to search endpoints.
const (
	ParamQuery = "query"
	ParamID    = "id"
)

const (
	defaultTimeout   = 10 * time.Second
	defaultCacheSize = 256
	maxBodyBytes     = 4 << 20
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithBaseURL resolves relative endpoints against base.
func WithBaseURL(base string) ClientOption {
	return func(c *Client) {
		c.base = base
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithLookupCache sets the number of detail lookups kept in memory.
// Zero disables the cache.
func WithLookupCache(size int) ClientOption {
	return func(c *Client) {
		c.cacheSize = size
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client issues search and lookup requests against JSON endpoints.
type Client struct {
	http      *http.Client
	base      string
	cacheSize int
	cache     *lru.Cache[string, widget.Result]
	logger    *zap.Logger
}

var _ widget.Searcher = (*Client)(nil)

// NewClient creates a client.
func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{
		http:      &http.Client{Timeout: defaultTimeout},
		cacheSize: defaultCacheSize,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.base != "" {
		if _, err := url.Parse(c.base); err != nil {
			return nil, fmt.Errorf("search: base url: %w", err)
		}
	}
	if c.cacheSize > 0 {
		cache, err := lru.New[string, widget.Result](c.cacheSize)
		if err != nil {
			return nil, err
		}
		c.cache = cache
	}
	return c, nil
}

// Search issues GET <endpoint>?<getVars>&query=<term>.
func (c *Client) Search(ctx context.Context, req widget.Request) ([]widget.Result, error) {
	u, err := c.BuildURL(req, map[string]string{ParamQuery: req.Query})
	if err != nil {
		return nil, err
	}
	body, err := c.get(ctx, u, req.Headers)
	if err != nil {
		return nil, err
	}
	results, err := widget.DecodeResults(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return results, nil
}

// Lookup issues GET <endpoint>?<getVars>&id=<id> and expects one object.
func (c *Client) Lookup(ctx context.Context, req widget.Request, id string) (widget.Result, error) {
	u, err := c.BuildURL(req, map[string]string{ParamID: id})
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		if r, ok := c.cache.Get(u); ok {
			return r.Clone(), nil
		}
	}

	body, err := c.get(ctx, u, req.Headers)
	if err != nil {
		return nil, err
	}
	r, err := decodeLookup(body)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.Add(u, r.Clone())
	}
	return r, nil
}

// BuildURL returns the request URL for req with extra parameters.
//
// Any query string already on the endpoint is kept; getVars are merged in
// and extra parameters are applied last, so "query" cannot be overridden
// by a getVar.
func (c *Client) BuildURL(req widget.Request, extra map[string]string) (string, error) {
	if req.Endpoint == "" {
		return "", widget.ErrSearchConfig
	}
	u, err := url.Parse(req.Endpoint)
	if err != nil {
		return "", fmt.Errorf("search: endpoint: %w", err)
	}
	if c.base != "" && !u.IsAbs() {
		base, err := url.Parse(c.base)
		if err != nil {
			return "", fmt.Errorf("search: base url: %w", err)
		}
		u = base.ResolveReference(u)
	}

	q := u.Query()
	for _, k := range sortedKeys(req.GetVars) {
		q.Set(k, req.GetVars[k])
	}
	for _, k := range sortedKeys(extra) {
		q.Set(k, extra[k])
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) get(ctx context.Context, u string, headers map[string]string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, u)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug("search endpoint returned error status",
			zap.String("url", u), zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}
	return body, nil
}

// decodeLookup accepts a single object, or a one-element array as some
// callbacks return for id lookups.
func decodeLookup(body []byte) (widget.Result, error) {
	if r, err := widget.DecodeResult(body); err == nil {
		return r, nil
	}
	list, err := widget.DecodeResults(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return list[0], nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
