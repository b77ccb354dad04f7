package main

import (
	"context"
	"fmt"

	"github.com/camuig/stock-watch/internal/ai"
	"github.com/camuig/stock-watch/internal/broker"
	"github.com/camuig/stock-watch/internal/config"
	"github.com/camuig/stock-watch/internal/logger"
	"github.com/camuig/stock-watch/internal/moex"
	"github.com/camuig/stock-watch/internal/monitor"
	"github.com/camuig/stock-watch/internal/notes"
	"github.com/camuig/stock-watch/internal/storage"
	"github.com/camuig/stock-watch/internal/telegram"
	"github.com/camuig/stock-watch/internal/yahoo"
)

// app holds the wired components for one command invocation.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	repo     *storage.Repository
	quotes   monitor.QuoteProvider
	notifier *telegram.Notifier
	stop     func()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	db, err := storage.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("database init: %w", err)
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		repo:     storage.NewRepository(db),
		notifier: telegram.NewNotifier(cfg.Telegram, log),
		stop:     func() {},
	}

	if err := a.initQuotes(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) initQuotes(ctx context.Context) error {
	q := a.cfg.Quotes
	switch q.Provider {
	case "yahoo":
		a.quotes = yahoo.NewClient(q.BaseURL, a.cfg.QuotesTimeout(), q.MaxRequestsPerMinute, a.log)
	case "moex":
		a.quotes = moex.NewClient(q.BaseURL, q.Board, a.cfg.QuotesTimeout(), q.MaxRequestsPerMinute, a.log)
	case "tinkoff":
		bc, err := broker.NewBrokerClient(ctx, a.cfg.Tinkoff, a.log)
		if err != nil {
			return fmt.Errorf("broker client init: %w", err)
		}
		a.quotes = bc
		a.stop = func() {
			if err := bc.Stop(); err != nil {
				a.log.Error("broker client stop error", "error", err)
			}
		}
	default:
		return fmt.Errorf("unsupported quotes provider %q", q.Provider)
	}
	a.log.Debug("quote provider ready", "provider", q.Provider)
	return nil
}

func (a *app) close() {
	a.stop()
}

func (a *app) newMonitor() *monitor.Monitor {
	return monitor.New(a.repo, a.quotes, a.notifier, monitor.Options{
		QuoteConcurrency: a.cfg.Monitor.QuoteConcurrency,
		QuoteTimeout:     a.cfg.QuoteLookupTimeout(),
		RearmPolicy:      monitor.RearmPolicy(a.cfg.Monitor.RearmPolicy),
	}, a.log)
}

// noteService builds the note service. The extractor is only constructed when
// withExtractor is set so that read-only commands work without an LLM key.
func (a *app) noteService(ctx context.Context, withExtractor bool) (*notes.Service, error) {
	var extractor ai.Extractor
	if withExtractor {
		ex, err := ai.NewExtractor(ctx, a.cfg.LLM, a.log)
		if err != nil {
			return nil, fmt.Errorf("llm init: %w", err)
		}
		extractor = ex
	}
	return notes.NewService(extractor, a.quotes, a.repo, monitor.RearmPolicy(a.cfg.Monitor.RearmPolicy), a.log), nil
}
