// Package exchange-service provides a unified trading interface over multiple
// cryptocurrency exchanges.
//
// The library normalizes venue-specific REST and WebSocket APIs into one set
// of shared types and capability interfaces, so applications can trade and
// stream market data across venues without venue-specific branching.
//
// Core Features:
//
//   - Unified spot, futures and streaming interfaces across venues
//   - Exact decimal arithmetic for every monetary value (no floats at the API)
//   - Request signing, clock synchronization and session management per venue
//   - WebSocket subscriptions with transparent reconnect and replay
//   - Rate limiting according to each venue's published budgets
//   - A service layer that builds, caches and connects services per venue
//
// The library is built around three capability interfaces (SpotService,
// FuturesService and StreamService), all extending a common ExchangeService
// contract defined in pkg/exchange. Venue adapters live under pkg/exchanges;
// the service factory and connection manager live under pkg/service.
//
// # Standard Errors
//
// Every venue rejection is classified into a shared error kind so callers can
// branch with errors.Is regardless of the venue:
//
//   - ErrNotConnected: an operation was attempted before Connect succeeded,
//     or after Disconnect
//
//   - ErrAuthentication: the venue rejected the request signature or
//     credentials
//
//   - ErrInsufficientBalance: the account cannot cover the order
//
//   - ErrInvalidOrder: the venue rejected the order parameters (price, size,
//     notional, or an unsupported order type)
//
//   - ErrInvalidSymbol: the symbol is not listed on the venue
//
//   - ErrOrderNotFound: the referenced order does not exist
//
//   - ErrRateLimit: the venue throttled the request; RetryAfterHint extracts
//     the venue's suggested backoff when one was given
//
//   - ErrValidation: the request failed local validation and was never sent
//
//   - ErrConfiguration: a venue or capability is not enabled in configuration
//
//   - ErrExchange: any other venue or transport failure
//
// Venue errors carry the venue name and the venue's native error code; use
// errors.As with *exchange.Error to inspect them.
//
// # Examples
//
// Building services through the factory and manager:
//
//	cfg, err := config.Load("config.yaml")
//	if err != nil {
//	    log.Fatalf("failed to load config: %v", err)
//	}
//
//	logger := logging.NewZapLogger()
//	factory := service.NewFactory(cfg, logger)
//	manager := service.NewManager(factory, cfg, logger)
//
//	ctx := context.Background()
//	results := manager.ConnectAll(ctx)
//	for key, connected := range results {
//	    fmt.Printf("%s: connected=%v\n", key, connected)
//	}
//	defer manager.DisconnectAll(ctx)
//
// Placing a futures order:
//
//	futures, err := manager.GetFuturesService(service.VenueAster)
//	if err != nil {
//	    log.Fatalf("futures service: %v", err)
//	}
//
//	price := decimal.RequireFromString("50000")
//	order, err := futures.PlaceFuturesOrder(ctx, exchange.OrderRequest{
//	    Symbol:   "BTCUSDT",
//	    Side:     exchange.OrderSideBuy,
//	    Type:     exchange.OrderTypeLimit,
//	    Quantity: decimal.RequireFromString("0.01"),
//	    Price:    &price,
//	})
//	if err != nil {
//	    switch {
//	    case errors.Is(err, exchange.ErrInsufficientBalance):
//	        log.Fatalf("not enough margin")
//	    case errors.Is(err, exchange.ErrRateLimit):
//	        time.Sleep(exchange.RetryAfterHint(err))
//	    default:
//	        log.Fatalf("order failed: %v", err)
//	    }
//	}
//	fmt.Printf("placed order %s, status %s\n", order.OrderID, order.Status)
//
// Streaming market data:
//
//	stream, err := manager.GetStreamService(service.VenueHyperliquid)
//	if err != nil {
//	    log.Fatalf("stream service: %v", err)
//	}
//
//	err = stream.SubscribeTicker(ctx, "BTC", func(ticker exchange.Ticker) {
//	    fmt.Printf("%s last=%s\n", ticker.Symbol, ticker.LastPrice)
//	})
//	if err != nil {
//	    log.Fatalf("subscribe failed: %v", err)
//	}
//
// Dropped connections are reconnected with a bounded retry budget and every
// recorded subscription is replayed, so callbacks simply resume after a gap.
//
// Adapters may be used directly when only one venue is needed; see
// pkg/exchanges/aster and pkg/exchanges/hyperliquid.
package exchangeservice
