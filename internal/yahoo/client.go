package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/camuig/stock-watch/internal/logger"
	"github.com/camuig/stock-watch/internal/rules"
)

const (
	defaultBaseURL = "https://query1.finance.yahoo.com"
	userAgent      = "Mozilla/5.0 (X11; Linux x86_64) stock-watch/1.0"

	retryCount       = 2
	retryWaitTime    = 500 * time.Millisecond
	retryMaxWaitTime = 3 * time.Second
)

// ErrSymbolNotFound is returned when Yahoo has no chart for the symbol.
var ErrSymbolNotFound = errors.New("symbol not found")

// Client fetches last prices from the Yahoo Finance chart endpoint.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
	logger  *logger.Logger
}

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code == http.StatusTooManyRequests || code >= 500
}

// NewClient builds a client. maxPerMinute <= 0 disables rate limiting.
func NewClient(baseURL string, timeout time.Duration, maxPerMinute int, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json").
		SetRetryCount(retryCount).
		SetRetryWaitTime(retryWaitTime).
		SetRetryMaxWaitTime(retryMaxWaitTime).
		AddRetryCondition(isRetryableResp)

	limiter := rate.NewLimiter(rate.Inf, 1)
	if maxPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(maxPerMinute)), 1)
	}

	return &Client{
		http:    httpClient,
		limiter: limiter,
		logger:  log,
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta chartMeta `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartMeta struct {
	Symbol             string              `json:"symbol"`
	Currency           string              `json:"currency"`
	RegularMarketPrice decimal.NullDecimal `json:"regularMarketPrice"`
	RegularMarketTime  int64               `json:"regularMarketTime"`
	ChartPreviousClose decimal.NullDecimal `json:"chartPreviousClose"`
	PreviousClose      decimal.NullDecimal `json:"previousClose"`
}

// Quote returns the regular market price of symbol with the previous close as reference.
func (c *Client) Quote(ctx context.Context, symbol string) (rules.Quote, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return rules.Quote{}, fmt.Errorf("wait for rate limit: %w", err)
	}

	var body chartResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"interval": "1d", "range": "1d"}).
		SetResult(&body).
		SetError(&body).
		Get("/v8/finance/chart/" + url.PathEscape(symbol))
	if err != nil {
		return rules.Quote{}, fmt.Errorf("yahoo chart %s: %w", symbol, err)
	}

	if e := body.Chart.Error; e != nil {
		if resp.StatusCode() == http.StatusNotFound || strings.EqualFold(e.Code, "Not Found") {
			return rules.Quote{}, fmt.Errorf("%s: %w", symbol, ErrSymbolNotFound)
		}
		return rules.Quote{}, fmt.Errorf("yahoo chart %s: %s: %s", symbol, e.Code, e.Description)
	}
	if resp.StatusCode() != http.StatusOK {
		return rules.Quote{}, fmt.Errorf("yahoo chart %s: HTTP %d", symbol, resp.StatusCode())
	}
	if len(body.Chart.Result) == 0 {
		return rules.Quote{}, fmt.Errorf("%s: %w", symbol, ErrSymbolNotFound)
	}

	meta := body.Chart.Result[0].Meta
	if !meta.RegularMarketPrice.Valid {
		return rules.Quote{}, fmt.Errorf("yahoo chart %s: no market price", symbol)
	}

	q := rules.Quote{
		Symbol: symbol,
		Price:  meta.RegularMarketPrice.Decimal,
		AsOf:   time.Now(),
	}
	if meta.RegularMarketTime > 0 {
		q.AsOf = time.Unix(meta.RegularMarketTime, 0)
	}
	switch {
	case meta.ChartPreviousClose.Valid:
		q.Reference = meta.ChartPreviousClose
	case meta.PreviousClose.Valid:
		q.Reference = meta.PreviousClose
	}

	c.logger.Debug("yahoo quote", "symbol", symbol, "price", q.Price.String(), "currency", meta.Currency)
	return q, nil
}
