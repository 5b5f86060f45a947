// Package pass is the client for the PASS proposal management web services.
package pass

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// CommissioningProposalTypeID is the PASS proposal type for commissioning time.
const CommissioningProposalTypeID = "300005"

const maxResponseBytes = 32 << 20

type Config struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	RateLimit float64
	RateBurst int
}

// Observer receives one call per PASS request. status is 0 on transport errors.
type Observer interface {
	ObservePassRequest(op string, status int, elapsed time.Duration)
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	observer   Observer
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

func WithObserver(observer Observer) Option {
	return func(c *Client) { c.observer = observer }
}

func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, cfg.RateBurst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// endpoint builds {base}/{area}/{op}/{apiKey}/{facility}/{segments...}.
func (c *Client) endpoint(area, op, facilityCode string, segments ...string) string {
	parts := []string{c.cfg.BaseURL, area, op, url.PathEscape(c.cfg.APIKey), url.PathEscape(facilityCode)}
	for _, segment := range segments {
		parts = append(parts, url.PathEscape(segment))
	}
	return strings.Join(parts, "/")
}

func (c *Client) get(ctx context.Context, op, endpoint string) ([]byte, error) {
	redacted := c.redactURL(endpoint)
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{Op: op, URL: redacted, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &FetchError{Op: op, URL: redacted, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(op, 0, started)
		return nil, &FetchError{Op: op, URL: redacted, Err: redactKey(err, c.cfg.APIKey)}
	}
	defer resp.Body.Close()
	c.observe(op, resp.StatusCode, started)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{Op: op, URL: redacted, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &FetchError{Op: op, URL: redacted, Err: err}
	}
	return body, nil
}

func (c *Client) observe(op string, status int, started time.Time) {
	if c.observer != nil {
		c.observer.ObservePassRequest(op, status, time.Since(started))
	}
}

// redactURL replaces the API key path segment so URLs can be logged.
func (c *Client) redactURL(endpoint string) string {
	key := url.PathEscape(c.cfg.APIKey)
	if key == "" {
		return endpoint
	}
	return strings.ReplaceAll(endpoint, "/"+key+"/", "/***/")
}

// redactKey strips the API key from transport errors, which embed the URL.
func redactKey(err error, apiKey string) error {
	if apiKey == "" || !strings.Contains(err.Error(), apiKey) {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), apiKey, "***"))
}

func (c *Client) GetProposal(ctx context.Context, facilityCode, proposalID string) (Proposal, error) {
	body, err := c.get(ctx, "GetProposal", c.endpoint("Proposal", "GetProposal", facilityCode, proposalID))
	if err != nil {
		return Proposal{}, err
	}
	return ParseProposal(body)
}

func (c *Client) GetProposalTypes(ctx context.Context, facilityCode string) ([]ProposalType, error) {
	body, err := c.get(ctx, "GetProposalTypes", c.endpoint("Proposal", "GetProposalTypes", facilityCode))
	if err != nil {
		return nil, err
	}
	return ParseProposalTypes(body)
}

func (c *Client) GetSAFsByProposal(ctx context.Context, facilityCode, proposalID string) ([]SAF, error) {
	body, err := c.get(ctx, "GetSAFsByProposal", c.endpoint("SAF", "GetSAFsByProposal", facilityCode, proposalID))
	if err != nil {
		return nil, err
	}
	return ParseSAFs(body)
}

func (c *Client) GetProposalsByType(ctx context.Context, facilityCode, year, proposalTypeID string) ([]Proposal, error) {
	const op = "GetProposalsByType"
	body, err := c.get(ctx, op, c.endpoint("Proposal", op, facilityCode, year, proposalTypeID, "NULL"))
	if err != nil {
		return nil, err
	}
	return parseProposals(op, body)
}

func (c *Client) GetCycles(ctx context.Context, facilityCode string) ([]Cycle, error) {
	body, err := c.get(ctx, "GetCycles", c.endpoint("Proposal", "GetCycles", facilityCode))
	if err != nil {
		return nil, err
	}
	return ParseCycles(body)
}

func (c *Client) GetProposalsAllocated(ctx context.Context, facilityCode string) ([]AllocatedProposal, error) {
	const op = "GetProposalsAllocated"
	body, err := c.get(ctx, op, c.endpoint("Proposal", op, facilityCode))
	if err != nil {
		return nil, err
	}
	return parseAllocated(op, body)
}

func (c *Client) GetProposalsAllocatedByCycle(ctx context.Context, facilityCode, cycle string) ([]AllocatedProposal, error) {
	const op = "GetProposalsAllocatedByCycle"
	body, err := c.get(ctx, op, c.endpoint("Proposal", op, facilityCode, cycle))
	if err != nil {
		return nil, err
	}
	return parseAllocated(op, body)
}

func (c *Client) GetProposalsByPerson(ctx context.Context, facilityCode, bnlID string) ([]Proposal, error) {
	const op = "GetProposalsByPerson"
	body, err := c.get(ctx, op, c.endpoint("Proposal", op, facilityCode, "null", "null", bnlID, "null"))
	if err != nil {
		return nil, err
	}
	return parseProposals(op, body)
}
