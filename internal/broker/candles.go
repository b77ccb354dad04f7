package broker

import (
	"context"
	"fmt"
	"time"

	pb "github.com/russianinvestments/invest-api-go-sdk/proto"
	"github.com/shopspring/decimal"

	"github.com/camuig/stock-watch/internal/rules"
)

type quoteResult struct {
	quote rules.Quote
	err   error
}

// Quote returns the close of the latest hourly candle. The close nearest to
// 24 hours earlier is the reference price.
func (bc *BrokerClient) Quote(ctx context.Context, symbol string) (rules.Quote, error) {
	// investgo calls run on the client's own context; honour ours by racing it
	done := make(chan quoteResult, 1)
	go func() {
		q, err := bc.fetchQuote(symbol)
		done <- quoteResult{quote: q, err: err}
	}()

	select {
	case <-ctx.Done():
		return rules.Quote{}, ctx.Err()
	case res := <-done:
		return res.quote, res.err
	}
}

func (bc *BrokerClient) fetchQuote(symbol string) (rules.Quote, error) {
	ticker := Ticker(symbol)
	uid, err := bc.ResolveTickerToUID(ticker)
	if err != nil {
		return rules.Quote{}, err
	}

	now := time.Now()
	from := now.Add(-7 * 24 * time.Hour)

	md := bc.Client.NewMarketDataServiceClient()
	resp, err := md.GetCandles(
		uid,
		pb.CandleInterval_CANDLE_INTERVAL_HOUR,
		from, now,
		pb.GetCandlesRequest_CANDLE_SOURCE_EXCHANGE,
		0,
	)
	if err != nil {
		return rules.Quote{}, fmt.Errorf("get candles %s: %w", ticker, err)
	}

	return quoteFromCandles(symbol, resp.GetCandles(), now)
}

func quoteFromCandles(symbol string, candles []*pb.HistoricCandle, now time.Time) (rules.Quote, error) {
	latest := findCandleAtOffset(candles, now, 0)
	if latest == nil {
		return rules.Quote{}, fmt.Errorf("no candles for %s in the last week", symbol)
	}

	q := rules.Quote{
		Symbol: symbol,
		Price:  quotationToDecimal(latest.GetClose()),
		AsOf:   latest.GetTime().AsTime(),
	}

	if prev := findCandleAtOffset(candles, now, 24*time.Hour); prev != nil && prev != latest {
		q.Reference = decimal.NewNullDecimal(quotationToDecimal(prev.GetClose()))
	}
	return q, nil
}

// findCandleAtOffset finds the candle closest to (now - offset).
func findCandleAtOffset(candles []*pb.HistoricCandle, now time.Time, offset time.Duration) *pb.HistoricCandle {
	target := now.Add(-offset)
	var bestCandle *pb.HistoricCandle
	var bestDiff time.Duration

	for _, c := range candles {
		t := c.GetTime().AsTime()
		diff := absDuration(t.Sub(target))
		if bestCandle == nil || diff < bestDiff {
			bestCandle = c
			bestDiff = diff
		}
	}
	return bestCandle
}

func quotationToDecimal(q *pb.Quotation) decimal.Decimal {
	return decimal.NewFromInt(q.GetUnits()).Add(decimal.New(int64(q.GetNano()), -9))
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
