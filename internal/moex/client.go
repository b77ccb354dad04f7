package moex

import (
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/camuig/stock-watch/internal/logger"
)

const (
	defaultBaseURL = "https://iss.moex.com"
	defaultBoard   = "TQBR"
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	board      string
	limiter    *rate.Limiter
	logger     *logger.Logger
}

// NewClient builds an ISS client for one trading board. maxPerMinute <= 0
// disables rate limiting.
func NewClient(baseURL, board string, timeout time.Duration, maxPerMinute int, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if board == "" {
		board = defaultBoard
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if maxPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(maxPerMinute)), 1)
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		board:      strings.ToUpper(board),
		limiter:    limiter,
		logger:     log,
	}
}
