package moex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/camuig/stock-watch/internal/rules"
)

var ErrSymbolNotFound = errors.New("security not traded on board")

// SecID strips the Yahoo-style ".ME" suffix so both SBER and SBER.ME resolve.
func SecID(symbol string) string {
	return strings.TrimSuffix(strings.ToUpper(symbol), ".ME")
}

func (c *Client) securityURL(secid string) string {
	q := url.Values{}
	q.Set("iss.meta", "off")
	q.Set("iss.only", "marketdata,securities")
	q.Set("marketdata.columns", "SECID,LAST,OPEN,SYSTIME")
	q.Set("securities.columns", "SECID,PREVPRICE")
	return fmt.Sprintf("%s/iss/engines/stock/markets/shares/boards/%s/securities/%s.json?%s",
		c.baseURL, c.board, url.PathEscape(secid), q.Encode())
}

// Quote returns the last trade price of symbol on the configured board. The
// previous session close is the reference, falling back to today's open.
func (c *Client) Quote(ctx context.Context, symbol string) (rules.Quote, error) {
	secid := SecID(symbol)

	if err := c.limiter.Wait(ctx); err != nil {
		return rules.Quote{}, fmt.Errorf("wait for rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.securityURL(secid), nil)
	if err != nil {
		return rules.Quote{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return rules.Quote{}, fmt.Errorf("fetch %s quote: %w", secid, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return rules.Quote{}, fmt.Errorf("MOEX ISS returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return rules.Quote{}, fmt.Errorf("read response: %w", err)
	}

	var iss issResponse
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&iss); err != nil {
		return rules.Quote{}, fmt.Errorf("parse ISS response: %w", err)
	}

	if len(iss.Marketdata.Data) == 0 {
		return rules.Quote{}, fmt.Errorf("%s on %s: %w", secid, c.board, ErrSymbolNotFound)
	}
	md := iss.Marketdata.Data[0]

	last, ok := toDecimal(iss.Marketdata.column(md, "LAST"))
	if !ok || !last.IsPositive() {
		// торги приостановлены или ещё не начались
		return rules.Quote{}, fmt.Errorf("%s: no last price", secid)
	}

	q := rules.Quote{Symbol: symbol, Price: last, AsOf: time.Now()}
	if ts, ok := iss.Marketdata.column(md, "SYSTIME").(string); ok {
		if t, err := time.ParseInLocation("2006-01-02 15:04:05", ts, moscow()); err == nil {
			q.AsOf = t
		}
	}

	if len(iss.Securities.Data) > 0 {
		if prev, ok := toDecimal(iss.Securities.column(iss.Securities.Data[0], "PREVPRICE")); ok && prev.IsPositive() {
			q.Reference = decimal.NewNullDecimal(prev)
		}
	}
	if !q.Reference.Valid {
		if open, ok := toDecimal(iss.Marketdata.column(md, "OPEN")); ok && open.IsPositive() {
			q.Reference = decimal.NewNullDecimal(open)
		}
	}

	c.logger.Debug("moex quote", "secid", secid, "board", c.board, "last", last.String())
	return q, nil
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(n), true
	default:
		return decimal.Decimal{}, false
	}
}

func moscow() *time.Location {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		loc = time.FixedZone("MSK", 3*60*60)
	}
	return loc
}
