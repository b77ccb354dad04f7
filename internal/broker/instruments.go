package broker

import (
	"fmt"
	"strings"
	"sync"

	pb "github.com/russianinvestments/invest-api-go-sdk/proto"
)

const primaryClassCode = "TQBR"

var instrumentCache sync.Map // ticker -> instrumentUID

// Ticker strips the Yahoo-style ".ME" suffix used for Moscow listings.
func Ticker(symbol string) string {
	return strings.TrimSuffix(strings.ToUpper(symbol), ".ME")
}

// ResolveTickerToUID resolves a ticker to its instrument UID using the instruments service.
func (bc *BrokerClient) ResolveTickerToUID(ticker string) (string, error) {
	if cached, ok := instrumentCache.Load(ticker); ok {
		return cached.(string), nil
	}

	instruments := bc.Client.NewInstrumentsServiceClient()
	resp, err := instruments.FindInstrument(ticker)
	if err != nil {
		return "", fmt.Errorf("find instrument %s: %w", ticker, err)
	}

	inst := pickInstrument(resp.GetInstruments(), ticker)
	if inst == nil {
		return "", fmt.Errorf("instrument not found: %s", ticker)
	}

	uid := inst.GetUid()
	instrumentCache.Store(ticker, uid)
	return uid, nil
}

// pickInstrument prefers an exact ticker match on the main share board, then
// any exact ticker match.
func pickInstrument(found []*pb.InstrumentShort, ticker string) *pb.InstrumentShort {
	var fallback *pb.InstrumentShort
	for _, inst := range found {
		if !strings.EqualFold(inst.GetTicker(), ticker) {
			continue
		}
		if inst.GetClassCode() == primaryClassCode {
			return inst
		}
		if fallback == nil {
			fallback = inst
		}
	}
	return fallback
}
