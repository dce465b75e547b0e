// internal/github/client.go
package github

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// DefaultAPIURL is the public GitHub REST endpoint.
const DefaultAPIURL = "https://api.github.com/"

// Auth modes.
const (
	AuthQuery  = "query"
	AuthHeader = "header"
)

// Outcome classifies the result of a fetch.
type Outcome int

const (
	OutcomeOK Outcome = iota
	// OutcomeNotFound means the remote answered 404.
	OutcomeNotFound
	// OutcomeUnavailable covers network errors, timeouts, rate limiting and
	// any other non-2xx answer.
	OutcomeUnavailable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "unavailable"
	}
}

// Response is the result of a single fetch. Body is only set for OutcomeOK.
type Response struct {
	Outcome    Outcome
	StatusCode int
	Body       json.RawMessage
	Err        error
}

// Options configures a Client.
type Options struct {
	Token        string
	AuthMode     string
	APIURL       string
	RequestDelay time.Duration
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// Client is a rate-limited wrapper around the go-github client.
// One Client is shared by every worker so the delay is enforced process-wide.
type Client struct {
	gh         *github.Client
	logger     *slog.Logger
	apiURL     string
	tokenQuery string
	timeout    time.Duration
	limiter    *rate.Limiter

	mu        sync.Mutex
	holdUntil time.Time
}

// NewClient creates and configures a new Client instance.
func NewClient(opts Options, logger *slog.Logger) *Client {
	httpClient := opts.HTTPClient
	var tokenQuery string
	switch {
	case opts.Token == "":
	case opts.AuthMode == AuthHeader:
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	default:
		tokenQuery = tokenParam(opts.Token)
	}

	apiURL := opts.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}

	limit := rate.Inf
	if opts.RequestDelay > 0 {
		limit = rate.Every(opts.RequestDelay)
	}

	return &Client{
		gh:         github.NewClient(httpClient),
		logger:     logger,
		apiURL:     apiURL,
		tokenQuery: tokenQuery,
		timeout:    opts.Timeout,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// RepoURL returns the API URL of a repository.
func (c *Client) RepoURL(owner, name string) string {
	return c.apiURL + "repos/" + owner + "/" + name
}

// Fetch issues a GET for rawURL after waiting for the shared rate limiter.
// It never returns an error: failures are reported as OutcomeUnavailable.
func (c *Client) Fetch(ctx context.Context, rawURL string) Response {
	if err := c.wait(ctx); err != nil {
		return Response{Outcome: OutcomeUnavailable, Err: err}
	}
	c.logger.Debug("Fetching", "url", rawURL)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := c.gh.NewRequest(http.MethodGet, AppendToken(rawURL, c.tokenQuery), nil)
	if err != nil {
		return Response{Outcome: OutcomeUnavailable, Err: err}
	}

	var body json.RawMessage
	resp, err := c.gh.Do(ctx, req, &body)
	if err != nil {
		var errResp *github.ErrorResponse
		if errors.As(err, &errResp) && errResp.Response != nil && errResp.Response.StatusCode == http.StatusNotFound {
			return Response{Outcome: OutcomeNotFound, StatusCode: http.StatusNotFound, Err: redact(err, c.tokenQuery)}
		}
		out := Response{Outcome: OutcomeUnavailable, Err: redact(err, c.tokenQuery)}
		if resp != nil {
			out.StatusCode = resp.StatusCode
		}
		return out
	}
	return Response{Outcome: OutcomeOK, StatusCode: resp.StatusCode, Body: body}
}

// Cooldown holds back every subsequent fetch, from any worker, for at least d.
func (c *Client) Cooldown(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if until := time.Now().Add(d); until.After(c.holdUntil) {
		c.holdUntil = until
	}
}

func (c *Client) wait(ctx context.Context) error {
	c.mu.Lock()
	hold := time.Until(c.holdUntil)
	c.mu.Unlock()
	if hold > 0 {
		t := time.NewTimer(hold)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return c.limiter.Wait(ctx)
}

// AppendToken appends the token query fragment to rawURL, using '&' when
// rawURL already carries a query string and '?' otherwise.
func AppendToken(rawURL, tokenQuery string) string {
	if tokenQuery == "" {
		return rawURL
	}
	if strings.Contains(rawURL, "?") {
		return rawURL + "&" + tokenQuery
	}
	return rawURL + "?" + tokenQuery
}

// tokenParam accepts either a bare token or a ready-made query fragment
// such as "client_id=...&client_secret=...".
func tokenParam(token string) string {
	if strings.Contains(token, "=") {
		return token
	}
	return "access_token=" + url.QueryEscape(token)
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

// redact strips the token fragment from error messages that echo the URL.
func redact(err error, tokenQuery string) error {
	if tokenQuery == "" || !strings.Contains(err.Error(), tokenQuery) {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(err.Error(), tokenQuery, "REDACTED"), err: err}
}
