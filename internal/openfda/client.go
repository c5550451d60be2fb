package openfda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/dgallion1/medrag/internal/label"
	"github.com/dgallion1/medrag/internal/retry"
)

const (
	// DefaultBaseURL is the public openFDA API.
	DefaultBaseURL = "https://api.fda.gov"

	// DefaultRatePerMinute matches openFDA's limit for requests without a key.
	DefaultRatePerMinute = 240

	labelPath = "/drug/label.json"
)

// Config configures the openFDA client.
type Config struct {
	BaseURL       string
	APIKey        string
	RatePerMinute int
	Timeout       time.Duration
}

// Client searches the openFDA drug label endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	log        *slog.Logger
}

type searchResponse struct {
	Results []Record `json:"results"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient creates a client. Zero config values fall back to defaults.
func NewClient(cfg Config, log *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = DefaultRatePerMinute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	burst := cfg.RatePerMinute / 60
	if burst < 1 {
		burst = 1
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60), burst),
		log:     log,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openfda",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, label.ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// Search looks up a drug by exact brand or generic name and returns the first
// matching label. It returns label.ErrNotFound when nothing matches and an
// error wrapping label.ErrUpstreamUnavailable when openFDA cannot be reached.
func (c *Client) Search(ctx context.Context, drugName string, limit int) (*label.DrugLabel, error) {
	labels, err := c.SearchAll(ctx, drugName, limit)
	if err != nil {
		return nil, err
	}
	return labels[0], nil
}

// SearchAll returns up to limit matching labels, best match first.
func (c *Client) SearchAll(ctx context.Context, drugName string, limit int) ([]*label.DrugLabel, error) {
	drugName = strings.TrimSpace(drugName)
	if drugName == "" {
		return nil, label.ErrNotFound
	}
	if limit <= 0 {
		limit = 1
	}
	log := c.log.With("drug_name", drugName)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("openfda rate limit: %w", err)
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, drugName, limit)
	})
	switch {
	case err == nil:
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		log.Warn("openfda breaker rejected request", "error", err)
		return nil, fmt.Errorf("openfda: %w: %w", label.ErrUpstreamUnavailable, err)
	case errors.Is(err, label.ErrNotFound):
		log.Info("no openfda label found")
		return nil, err
	default:
		log.Error("openfda search failed", "error", err)
		return nil, err
	}

	records := out.([]Record)
	labels := make([]*label.DrugLabel, 0, len(records))
	for i := range records {
		l := records[i].Label("openfda")
		l.Query = drugName
		labels = append(labels, l)
	}
	return labels, nil
}

func (c *Client) fetch(ctx context.Context, drugName string, limit int) ([]Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL(drugName, limit), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openfda request: %w: %w", label.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w: %w", label.ErrUpstreamUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, label.ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("openfda: %w: %w", label.ErrUpstreamUnavailable, &retry.RetryableError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
		})
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("openfda status %d: %w: %s", resp.StatusCode, label.ErrUpstreamUnavailable, retry.Truncate(string(body), 200))
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("decode response: %w: %w", label.ErrUpstreamUnavailable, err)
	}
	if sr.Error != nil && sr.Error.Code == "NOT_FOUND" {
		return nil, label.ErrNotFound
	}
	if len(sr.Results) == 0 {
		return nil, label.ErrNotFound
	}
	return sr.Results, nil
}

// searchURL builds the exact-phrase OR query. openFDA reads a literal "+" as
// the space around OR, so the query string is assembled by hand.
func (c *Client) searchURL(drugName string, limit int) string {
	phrase := url.QueryEscape(`"` + drugName + `"`)
	q := "search=openfda.brand_name:" + phrase + "+OR+openfda.generic_name:" + phrase +
		"&limit=" + strconv.Itoa(limit)
	if c.apiKey != "" {
		q += "&api_key=" + url.QueryEscape(c.apiKey)
	}
	return c.baseURL + labelPath + "?" + q
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
