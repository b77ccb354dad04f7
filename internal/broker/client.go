package broker

import (
	"context"
	"fmt"

	"github.com/russianinvestments/invest-api-go-sdk/investgo"

	"github.com/camuig/stock-watch/internal/config"
	"github.com/camuig/stock-watch/internal/logger"
)

const (
	sandboxEndpoint = "sandbox-invest-public-api.tinkoff.ru:443"
	liveEndpoint    = "invest-public-api.tinkoff.ru:443"
)

// BrokerClient is a read-only market data client for T-Invest. It never
// touches orders or accounts.
type BrokerClient struct {
	Client *investgo.Client
	Logger *logger.Logger
}

func NewBrokerClient(ctx context.Context, cfg config.TinkoffConfig, log *logger.Logger) (*BrokerClient, error) {
	endpoint := liveEndpoint
	if cfg.Sandbox {
		endpoint = sandboxEndpoint
	}

	investCfg := investgo.Config{
		EndPoint:  endpoint,
		Token:     cfg.Token,
		AccountId: cfg.AccountID,
		AppName:   "stock-watch",
	}

	client, err := investgo.NewClient(ctx, investCfg, log)
	if err != nil {
		return nil, fmt.Errorf("create investgo client: %w", err)
	}

	return &BrokerClient{
		Client: client,
		Logger: log,
	}, nil
}

func (bc *BrokerClient) Stop() error {
	return bc.Client.Stop()
}
