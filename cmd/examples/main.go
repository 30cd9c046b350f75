package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/veiloq/exchange-service/pkg/config"
	"github.com/veiloq/exchange-service/pkg/exchange"
	"github.com/veiloq/exchange-service/pkg/logging"
	"github.com/veiloq/exchange-service/pkg/service"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.NewLogger().Error("failed to load config", logging.Error(err))
		os.Exit(1)
	}

	var opts []logging.ZapOption
	if cfg.Logging.Development {
		opts = append(opts, logging.WithDevelopmentMode())
	}
	switch cfg.Logging.Level {
	case "debug":
		opts = append(opts, logging.WithLogLevel(logging.DEBUG))
	case "warn":
		opts = append(opts, logging.WithLogLevel(logging.WARN))
	case "error":
		opts = append(opts, logging.WithLogLevel(logging.ERROR))
	}
	logger := logging.NewZapLogger(opts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	factory := service.NewFactory(cfg, logger)
	manager := service.NewManager(factory, cfg, logger)

	logger.Info("connecting enabled venues")
	results := manager.ConnectAll(ctx)
	for key, ok := range results {
		logger.Info("connection result",
			logging.String("service", key),
			logging.Bool("connected", ok),
		)
	}
	if len(manager.ConnectedServices()) == 0 {
		logger.Error("no services connected, check configuration")
		os.Exit(1)
	}

	for _, venue := range factory.EnabledVenues() {
		showMarketData(ctx, manager, venue, logger)
		subscribeTicker(ctx, manager, venue, logger)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("running... press Ctrl+C to exit")
	<-sigChan

	logger.Info("shutting down")
	manager.DisconnectAll(ctx)
}

// symbolFor picks a liquid symbol in each venue's native notation.
func symbolFor(venue service.Venue) string {
	if venue == service.VenueHyperliquid {
		return "BTC"
	}
	return "BTCUSDT"
}

func showMarketData(ctx context.Context, manager *service.Manager, venue service.Venue, logger logging.Logger) {
	futures, err := manager.GetFuturesService(venue)
	if err != nil {
		logger.Warn("futures service unavailable",
			logging.String("venue", string(venue)), logging.Error(err))
		return
	}

	symbol := symbolFor(venue)

	ticker, err := futures.GetTicker(ctx, symbol)
	if err != nil {
		logger.Error("failed to get ticker", logging.Error(err))
	} else {
		logger.Info("ticker",
			logging.String("venue", string(venue)),
			logging.String("symbol", ticker.Symbol),
			logging.Decimal("last_price", ticker.LastPrice),
		)
	}

	book, err := futures.GetOrderBook(ctx, symbol, 5)
	if err != nil {
		logger.Error("failed to get order book", logging.Error(err))
	} else {
		logger.Info("order book",
			logging.String("venue", string(venue)),
			logging.String("symbol", book.Symbol),
			logging.Int("bid_levels", len(book.Bids)),
			logging.Int("ask_levels", len(book.Asks)),
		)
	}

	funding, err := futures.GetFundingRate(ctx, symbol)
	if err != nil {
		logger.Error("failed to get funding rate", logging.Error(err))
	} else {
		logger.Info("funding rate",
			logging.String("venue", string(venue)),
			logging.String("symbol", funding.Symbol),
			logging.Decimal("rate", funding.Rate),
		)
	}

	balances, err := futures.GetBalances(ctx)
	if err != nil {
		logger.Error("failed to get balances", logging.Error(err))
		return
	}
	for _, balance := range balances {
		if balance.Total.Equal(decimal.Zero) {
			continue
		}
		logger.Info("balance",
			logging.String("venue", string(venue)),
			logging.String("asset", balance.Asset),
			logging.Decimal("free", balance.Free),
			logging.Decimal("total", balance.Total),
		)
	}
}

func subscribeTicker(ctx context.Context, manager *service.Manager, venue service.Venue, logger logging.Logger) {
	stream, err := manager.GetStreamService(venue)
	if err != nil {
		logger.Warn("stream service unavailable",
			logging.String("venue", string(venue)), logging.Error(err))
		return
	}

	err = stream.SubscribeTicker(ctx, symbolFor(venue), func(ticker exchange.Ticker) {
		logger.Info("ticker update",
			logging.String("venue", string(venue)),
			logging.String("symbol", ticker.Symbol),
			logging.Decimal("last_price", ticker.LastPrice),
		)
	})
	if err != nil {
		logger.Error("failed to subscribe to ticker", logging.Error(err))
	}
}
