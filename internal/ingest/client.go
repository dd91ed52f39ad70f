// Package ingest wraps the Financial Modeling Prep stable API: it
// fetches historical earnings and split-adjusted daily OHLCV, and
// builds the read-only bar table the window builder runs against.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"earnrev/internal/domain"
	"earnrev/internal/metrics"
)

const (
	endpointEarnings = "stable/earnings"
	endpointPricesD1 = "stable/historical-price-eod/full"
)

// Client is a rate-limited, breaker-protected FMP API client. A
// failing provider trips the breaker instead of hammering the quota;
// per-symbol failures are reported to the caller, who decides whether
// the batch continues.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

// NewClient builds a client against baseURL using apiKey, limited to
// rps requests per second.
func NewClient(baseURL, apiKey string, rps float64) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "fmp",
			Timeout: 60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("breaker", name).
					Str("from", from.String()).Str("to", to.String()).
					Msg("provider circuit breaker state change")
			},
		}),
		log: log.With().Str("component", "ingest").Logger(),
	}
}

type earningsRow struct {
	Symbol       string   `json:"symbol"`
	Date         string   `json:"date"`
	EPSActual    *float64 `json:"epsActual"`
	EPSEstimated *float64 `json:"epsEstimated"`
	Time         string   `json:"time"`
}

type priceRow struct {
	Symbol string  `json:"symbol"`
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// FetchEarnings returns up to limit historical earnings rows for
// symbol, most recent first as the provider serves them. Future
// calendar entries (null actual EPS) are included; callers filter.
func (c *Client) FetchEarnings(ctx context.Context, symbol string, limit int) ([]domain.EarningsEvent, error) {
	params := url.Values{"symbol": {symbol}, "limit": {fmt.Sprint(limit)}}
	var rows []earningsRow
	if err := c.get(ctx, endpointEarnings, params, &rows); err != nil {
		return nil, fmt.Errorf("fetch earnings for %s: %w", symbol, err)
	}

	events := make([]domain.EarningsEvent, 0, len(rows))
	for _, r := range rows {
		d, err := time.Parse(domain.DateFormat, r.Date)
		if err != nil {
			c.log.Warn().Str("symbol", symbol).Str("date", r.Date).Msg("skipping earnings row with unparseable date")
			continue
		}
		sym := r.Symbol
		if sym == "" {
			sym = symbol
		}
		events = append(events, domain.EarningsEvent{
			Symbol:       sym,
			Date:         domain.Date(d),
			EPSActual:    r.EPSActual,
			EPSEstimated: r.EPSEstimated,
			Session:      domain.ParseSession(r.Time),
		})
	}
	metrics.IngestRows.WithLabelValues(endpointEarnings).Add(float64(len(events)))
	return events, nil
}

// FetchDailyBars returns split-adjusted daily bars for symbol between
// from and to inclusive, ascending by date and deduplicated by
// (symbol, date).
func (c *Client) FetchDailyBars(ctx context.Context, symbol string, from, to time.Time) ([]domain.Bar, error) {
	params := url.Values{
		"symbol": {symbol},
		"from":   {from.Format(domain.DateFormat)},
		"to":     {to.Format(domain.DateFormat)},
	}
	var rows []priceRow
	if err := c.get(ctx, endpointPricesD1, params, &rows); err != nil {
		return nil, fmt.Errorf("fetch daily bars for %s: %w", symbol, err)
	}

	seen := make(map[string]struct{}, len(rows))
	bars := make([]domain.Bar, 0, len(rows))
	for _, r := range rows {
		d, err := time.Parse(domain.DateFormat, r.Date)
		if err != nil {
			c.log.Warn().Str("symbol", symbol).Str("date", r.Date).Msg("skipping bar with unparseable date")
			continue
		}
		if _, dup := seen[r.Date]; dup {
			continue
		}
		seen[r.Date] = struct{}{}
		sym := r.Symbol
		if sym == "" {
			sym = symbol
		}
		bars = append(bars, domain.Bar{
			Symbol: sym,
			Date:   domain.Date(d),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	metrics.IngestRows.WithLabelValues(endpointPricesD1).Add(float64(len(bars)))
	return bars, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	params.Set("apikey", c.apiKey)
	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, params.Encode())

	body, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			metrics.IngestRequests.WithLabelValues(endpoint, "transport_error").Inc()
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			metrics.IngestRequests.WithLabelValues(endpoint, "http_error").Inc()
			return nil, fmt.Errorf("%s returned HTTP %d", endpoint, resp.StatusCode)
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			metrics.IngestRequests.WithLabelValues(endpoint, "transport_error").Inc()
			return nil, err
		}
		metrics.IngestRequests.WithLabelValues(endpoint, "ok").Inc()
		return data, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			metrics.IngestRequests.WithLabelValues(endpoint, "breaker_open").Inc()
		}
		return err
	}

	if err := json.Unmarshal(body.([]byte), out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}
