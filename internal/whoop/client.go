// ABOUTME: Vendor API client: OAuth exchange/refresh, paginated
// ABOUTME: time-range fetchers, 429 retry, adaptive range narrowing.
package whoop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/harperreed/vitals/internal/models"
)

const (
	// pageLimit is both the page size requested and the hard cap on
	// records returned per logical fetch. Callers must treat results as
	// a most-recent window, not full history.
	pageLimit = 25

	maxRetries = 3

	// refreshMargin is how close to expiry an access token may get
	// before it is refreshed ahead of use.
	refreshMargin = 5 * time.Minute

	// clockSkewBuffer is subtracted from the end timestamp when the
	// server rejects a window, guarding against local clock skew.
	clockSkewBuffer = 5 * time.Minute
)

// narrowingSpans is the fallback sequence of window sizes tried after a
// rejected range, from the caller's original span downward.
var narrowingSpans = []time.Duration{
	365 * 24 * time.Hour,
	180 * 24 * time.Hour,
	90 * 24 * time.Hour,
}

var (
	// ErrRateLimited means the server kept throttling past the retry
	// budget.
	ErrRateLimited = errors.New("rate limited by vendor API")

	// ErrReconnectRequired means the refresh token no longer works and
	// the user must re-authorize.
	ErrReconnectRequired = errors.New("token refresh failed: reconnect required")
)

// StatusError is a non-2xx response from the vendor API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("vendor API returned %d: %s", e.StatusCode, e.Body)
}

// Config holds the OAuth application credentials and endpoints.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	BaseURL      string
	AuthURL      string
	TokenURL     string
}

// DefaultConfig points at the production vendor API.
func DefaultConfig(clientID, clientSecret, redirectURI string) Config {
	return Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURI:  redirectURI,
		BaseURL:      "https://api.prod.whoop.com/developer",
		AuthURL:      "https://api.prod.whoop.com/oauth/oauth2/auth",
		TokenURL:     "https://api.prod.whoop.com/oauth/oauth2/token",
	}
}

// TokenStore persists refreshed credentials before they are used.
type TokenStore interface {
	SaveToken(ctx context.Context, t *models.Token) error
}

// Client talks to the vendor API through the shared rate limiter.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *Limiter
	log     *slog.Logger

	// sleep is the backoff sleeper, injectable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient builds a client. The limiter is shared state: pass the same
// instance to every client that talks to the same vendor quota.
func NewClient(cfg Config, limiter *Limiter, log *slog.Logger) *Client {
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: limiter,
		log:     log,
		sleep:   sleepContext,
	}
}

// AuthorizationURL builds the user-facing OAuth authorization URL.
func (c *Client) AuthorizationURL(state string) string {
	params := url.Values{
		"client_id":     {c.cfg.ClientID},
		"redirect_uri":  {c.cfg.RedirectURI},
		"response_type": {"code"},
		"scope":         {"offline read:profile read:recovery read:cycles read:sleep read:workout"},
		"state":         {state},
	}
	return c.cfg.AuthURL + "?" + params.Encode()
}

// ExchangeCode swaps an authorization code for a token pair.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	return c.postToken(ctx, url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
		"redirect_uri":  {c.cfg.RedirectURI},
	})
}

// Refresh swaps a refresh token for a new token pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	return c.postToken(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {c.cfg.ClientID},
		"client_secret": {c.cfg.ClientSecret},
	})
}

func (c *Client) postToken(ctx context.Context, form url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	var tok TokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	return &tok, nil
}

// EnsureToken returns a token valid for at least the refresh margin,
// refreshing and persisting a new pair first when needed. A failed
// refresh is fatal for the sync.
func (c *Client) EnsureToken(ctx context.Context, tok *models.Token, store TokenStore) (*models.Token, error) {
	if !tok.ExpiresWithin(refreshMargin) {
		return tok, nil
	}
	c.log.Info("access token expiring, refreshing", "user", tok.UserID)
	resp, err := c.Refresh(ctx, tok.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReconnectRequired, err)
	}
	refreshed := &models.Token{
		UserID:       tok.UserID,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(expiresInOrDefault(resp.ExpiresIn)) * time.Second),
		TokenType:    resp.TokenType,
		LastSyncAt:   tok.LastSyncAt,
	}
	if err := store.SaveToken(ctx, refreshed); err != nil {
		return nil, fmt.Errorf("persist refreshed token: %w", err)
	}
	return refreshed, nil
}

func expiresInOrDefault(seconds int) int {
	if seconds <= 0 {
		return 3600
	}
	return seconds
}

// GetCycles fetches physiological cycles in [start, end).
func (c *Client) GetCycles(ctx context.Context, accessToken string, start, end time.Time) ([]CycleRecord, error) {
	return fetchDomain[CycleRecord](ctx, c, accessToken, "/v2/cycle", start, end)
}

// GetSleeps fetches sleeps in [start, end).
func (c *Client) GetSleeps(ctx context.Context, accessToken string, start, end time.Time) ([]SleepRecord, error) {
	return fetchDomain[SleepRecord](ctx, c, accessToken, "/v2/activity/sleep", start, end)
}

// GetRecoveries fetches recoveries in [start, end).
func (c *Client) GetRecoveries(ctx context.Context, accessToken string, start, end time.Time) ([]RecoveryRecord, error) {
	return fetchDomain[RecoveryRecord](ctx, c, accessToken, "/v2/recovery", start, end)
}

// GetWorkouts fetches workouts in [start, end).
func (c *Client) GetWorkouts(ctx context.Context, accessToken string, start, end time.Time) ([]WorkoutRecord, error) {
	return fetchDomain[WorkoutRecord](ctx, c, accessToken, "/v2/activity/workout", start, end)
}

// fetchDomain runs one logical fetch with adaptive range narrowing:
// a rejected window (HTTP 400, typically clock skew or an excessive
// span) is retried with a trailing buffer on the end timestamp, then
// with progressively smaller spans until accepted or exhausted.
func fetchDomain[T any](ctx context.Context, c *Client, accessToken, path string, start, end time.Time) ([]T, error) {
	records, err := getPaginated[T](ctx, c, accessToken, path, start, end)
	if err == nil {
		return records, nil
	}
	if !isBadRequest(err) {
		return nil, err
	}

	c.log.Warn("range rejected, retrying with clock-skew buffer", "path", path)
	end = end.Add(-clockSkewBuffer)
	records, err = getPaginated[T](ctx, c, accessToken, path, start, end)
	if err == nil {
		return records, nil
	}
	if !isBadRequest(err) {
		return nil, err
	}

	for _, span := range narrowingSpans {
		if end.Sub(start) <= span {
			continue
		}
		narrowed := end.Add(-span)
		c.log.Warn("range still rejected, narrowing span", "path", path, "span", span)
		records, err = getPaginated[T](ctx, c, accessToken, path, narrowed, end)
		if err == nil {
			return records, nil
		}
		if !isBadRequest(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("time range narrowing exhausted for %s: %w", path, err)
}

func isBadRequest(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusBadRequest
}

// page is one response page of a collection endpoint. The continuation
// token has been observed under both casings.
type page struct {
	Records        []json.RawMessage `json:"records"`
	NextToken      string            `json:"nextToken"`
	NextTokenSnake string            `json:"next_token"`
}

func (p *page) next() string {
	if p.NextToken != "" {
		return p.NextToken
	}
	return p.NextTokenSnake
}

// getPaginated follows continuation tokens up to the hard record cap,
// waiting for rate-limit clearance before every request.
func getPaginated[T any](ctx context.Context, c *Client, accessToken, path string, start, end time.Time) ([]T, error) {
	var out []T
	nextToken := ""
	for {
		remaining := pageLimit - len(out)
		if remaining <= 0 {
			c.log.Debug("record cap reached, stopping pagination", "path", path, "cap", pageLimit)
			return out[:pageLimit], nil
		}

		params := url.Values{
			"start": {start.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z")},
			"end":   {end.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z")},
			"limit": {strconv.Itoa(remaining)},
		}
		if nextToken != "" {
			params.Set("nextToken", nextToken)
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		body, err := c.getWithRetry(ctx, accessToken, path, params)
		if err != nil {
			return nil, err
		}

		var p page
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("decode %s page: %w", path, err)
		}
		for _, raw := range p.Records {
			if len(out) >= pageLimit {
				break
			}
			var rec T
			if err := json.Unmarshal(raw, &rec); err != nil {
				return nil, fmt.Errorf("decode %s record: %w", path, err)
			}
			out = append(out, rec)
		}

		nextToken = p.next()
		if nextToken == "" {
			return out, nil
		}
	}
}

// getWithRetry performs one GET, retrying on 429 with the server's
// Retry-After when present, else exponential backoff. Exhaustion
// surfaces ErrRateLimited.
func (c *Client) getWithRetry(ctx context.Context, accessToken, path string, params url.Values) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		body, retryAfter, err := c.getOnce(ctx, accessToken, path, params)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var se *StatusError
		if !errors.As(err, &se) || se.StatusCode != http.StatusTooManyRequests {
			return nil, err
		}
		if attempt == maxRetries-1 {
			break
		}

		wait := retryAfter
		if wait <= 0 {
			wait = time.Duration(1<<attempt) * time.Second
		}
		c.log.Warn("throttled by vendor API, backing off",
			"path", path, "attempt", attempt+1, "wait", wait)
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrRateLimited, maxRetries, lastErr)
}

func (c *Client) getOnce(ctx context.Context, accessToken, path string, params url.Values) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request for %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response from %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, retryAfter, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, 0, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
