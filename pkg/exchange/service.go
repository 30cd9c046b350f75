package exchange

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ExchangeService is the uniform contract every venue adapter implements.
//
// Adapters own one piece of durable state: a connected flag plus, where the
// venue needs them, a clock offset and a session token. Everything returned
// from read operations is a stateless snapshot owned by the caller.
//
// Implementations must handle:
// - request signing and clock synchronization with the venue
// - rate limiting according to the venue's published budgets
// - normalization of venue vocabularies into the shared types
// - classification of venue rejections into the shared error kinds
type ExchangeService interface {
	// Connect acquires the HTTP session, performs the initial clock sync
	// where applicable, and verifies credentials with a signed call.
	Connect(ctx context.Context) error

	// Disconnect releases the session. It is idempotent: calling it on an
	// already disconnected service is a no-op.
	Disconnect(ctx context.Context) error

	// IsConnected reports whether Connect has succeeded and Disconnect has
	// not been called since.
	IsConnected() bool

	// GetAccountInfo returns a normalized account summary.
	GetAccountInfo(ctx context.Context) (*AccountInfo, error)

	// GetBalances returns all non-zero asset balances.
	GetBalances(ctx context.Context) ([]Balance, error)

	// GetPositions returns all open positions. Spot services return an
	// empty slice.
	GetPositions(ctx context.Context) ([]Position, error)

	// GetOpenOrders returns working orders, optionally filtered by symbol
	// (empty symbol means all).
	GetOpenOrders(ctx context.Context, symbol string) ([]Order, error)

	// GetOrder fetches one order by venue id.
	GetOrder(ctx context.Context, orderID, symbol string) (*Order, error)

	// PlaceOrder submits a new order after validating the request locally.
	PlaceOrder(ctx context.Context, req OrderRequest) (*Order, error)

	// CancelOrder cancels one working order.
	CancelOrder(ctx context.Context, orderID, symbol string) error

	// CancelAllOrders cancels every working order, optionally scoped to a
	// symbol.
	CancelAllOrders(ctx context.Context, symbol string) error

	// GetTicker returns the 24h market snapshot for a symbol.
	GetTicker(ctx context.Context, symbol string) (*Ticker, error)

	// GetOrderBook returns a depth snapshot limited to the given number of
	// levels per side.
	GetOrderBook(ctx context.Context, symbol string, limit int) (*OrderBook, error)

	// GetFundingRate returns the current funding state of a perpetual.
	// Spot services reject this call.
	GetFundingRate(ctx context.Context, symbol string) (*FundingRate, error)

	// GetSymbolInfo returns the trading rules for one symbol.
	GetSymbolInfo(ctx context.Context, symbol string) (*SymbolInfo, error)

	// GetExchangeInfo returns the venue listing metadata.
	GetExchangeInfo(ctx context.Context) (*ExchangeInfo, error)
}

// SpotService extends the base contract with spot-only operations.
// Spot accounts have no positions.
type SpotService interface {
	ExchangeService

	// GetSpotBalances returns spot wallet balances.
	GetSpotBalances(ctx context.Context) ([]Balance, error)

	// PlaceSpotOrder places an order on the spot market. ReduceOnly is
	// ignored for spot.
	PlaceSpotOrder(ctx context.Context, req OrderRequest) (*Order, error)
}

// FuturesService extends the base contract with derivatives operations.
type FuturesService interface {
	ExchangeService

	// GetFuturesBalances returns margin-account balances.
	GetFuturesBalances(ctx context.Context) ([]Balance, error)

	// GetFuturesPositions returns all open positions.
	GetFuturesPositions(ctx context.Context) ([]Position, error)

	// PlaceFuturesOrder places a derivatives order; req.ReduceOnly
	// constrains the order to shrink an existing position.
	PlaceFuturesOrder(ctx context.Context, req OrderRequest) (*Order, error)

	// SetLeverage sets per-symbol leverage. Venues with fixed leverage
	// implement this as a documented success no-op.
	SetLeverage(ctx context.Context, symbol string, leverage int) error

	// GetFundingRates enumerates funding rates across the venue's
	// perpetual universe.
	GetFundingRates(ctx context.Context) ([]FundingRate, error)
}

// UserDataEvent is a raw push frame from a venue's private stream. The
// payload vocabulary is venue-specific, so it is surfaced undecoded.
type UserDataEvent struct {
	Venue string
	Type  string
	Raw   json.RawMessage
}

// Push callback types. Callbacks fire at most once per received frame, in
// arrival order on their connection; a slow callback delays subsequent
// dispatch on the same socket.
type (
	TickerHandler    func(Ticker)
	OrderBookHandler func(OrderBook)
	TradeHandler     func(Trade)
	KlineHandler     func(Kline)
	UserDataHandler  func(UserDataEvent)
)

// Kline is one candlestick pushed by a market stream. Closed marks the
// final update of the candle's window.
type Kline struct {
	Symbol    string
	Interval  string
	OpenTime  int64
	CloseTime int64
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	Closed    bool
}

// Trade is one executed trade pushed by a market stream.
type Trade struct {
	Symbol    string
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	IsBuyer   bool
	Timestamp int64
}

// StreamService is the per-venue WebSocket subscription manager contract.
// One long-lived connection multiplexes many (stream, symbol) subscriptions;
// drops are recovered transparently by replaying recorded subscriptions.
type StreamService interface {
	// Connect opens the socket. It is also the only way to leave the
	// terminal failed state after the bounded reconnect budget is spent.
	Connect(ctx context.Context) error

	// Disconnect stops any reconnect loop first, then closes the socket
	// and revokes any session token. Idempotent.
	Disconnect(ctx context.Context) error

	// IsConnected reports the live socket state.
	IsConnected() bool

	// SubscribeTicker delivers 24h ticker updates for a symbol.
	SubscribeTicker(ctx context.Context, symbol string, handler TickerHandler) error

	// SubscribeOrderBook delivers depth updates for a symbol.
	SubscribeOrderBook(ctx context.Context, symbol string, handler OrderBookHandler) error

	// SubscribeTrades delivers executed trades for a symbol.
	SubscribeTrades(ctx context.Context, symbol string, handler TradeHandler) error

	// SubscribeKlines delivers candlestick updates for a symbol at the given
	// interval (venue notation, for example "1m").
	SubscribeKlines(ctx context.Context, symbol, interval string, handler KlineHandler) error

	// SubscribeUserData delivers private account events. Venues requiring
	// a session token mint it here and revoke it on Disconnect.
	SubscribeUserData(ctx context.Context, handler UserDataHandler) error

	// Unsubscribe removes one subscription by its identifier (for example
	// "ticker_BTCUSDT").
	Unsubscribe(ctx context.Context, stream string) error
}
