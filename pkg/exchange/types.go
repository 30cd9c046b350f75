package exchange

import (
	"github.com/shopspring/decimal"
)

// OrderSide indicates whether an order buys or sells the base asset.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType identifies the execution style of an order.
type OrderType string

const (
	OrderTypeMarket       OrderType = "MARKET"
	OrderTypeLimit        OrderType = "LIMIT"
	OrderTypeStopLoss     OrderType = "STOP_LOSS"
	OrderTypeTakeProfit   OrderType = "TAKE_PROFIT"
	OrderTypeTrailingStop OrderType = "TRAILING_STOP"
)

// OrderStatus is the normalized lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
)

// TimeInForce controls how long an order stays working.
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC" // good till canceled
	TimeInForceIOC TimeInForce = "IOC" // immediate or cancel
	TimeInForceFOK TimeInForce = "FOK" // fill or kill
)

// PositionSide is the direction of an open derivatives position.
type PositionSide string

const (
	PositionSideLong  PositionSide = "LONG"
	PositionSideShort PositionSide = "SHORT"
)

// Balance is a point-in-time snapshot of one asset in an account.
// Invariant: Total = Free + Locked.
type Balance struct {
	Asset  string
	Free   decimal.Decimal
	Locked decimal.Decimal
	Total  decimal.Decimal
}

// Position is a point-in-time snapshot of one open derivatives position.
// Size is always non-negative; direction is carried by Side.
type Position struct {
	Symbol     string
	Side       PositionSide
	Size       decimal.Decimal
	EntryPrice decimal.Decimal
	MarkPrice  decimal.Decimal
	PnL        decimal.Decimal
	Percentage decimal.Decimal
	Margin     decimal.Decimal
	Leverage   int
}

// Order is the normalized view of a venue order. Price is nil for MARKET
// orders and set for LIMIT orders; AvgPrice is nil until a fill is reported.
type Order struct {
	OrderID       string
	Symbol        string
	Side          OrderSide
	Type          OrderType
	Quantity      decimal.Decimal
	Price         *decimal.Decimal
	Status        OrderStatus
	FilledQty     decimal.Decimal
	AvgPrice      *decimal.Decimal
	TimeInForce   TimeInForce
	CreatedAt     int64
	UpdatedAt     int64
	ClientOrderID string
}

// OrderRequest carries the parameters for placing a new order.
type OrderRequest struct {
	Symbol        string
	Side          OrderSide
	Type          OrderType
	Quantity      decimal.Decimal
	Price         *decimal.Decimal
	TimeInForce   TimeInForce
	ClientOrderID string
	ReduceOnly    bool
}

// Validate checks the contract invariants: quantity strictly positive,
// LIMIT orders carry a positive price, MARKET orders carry none.
func (r OrderRequest) Validate() error {
	if r.Symbol == "" {
		return NewValidationError("order symbol is required")
	}
	if !r.Quantity.IsPositive() {
		return NewValidationError("order quantity must be positive")
	}
	switch r.Type {
	case OrderTypeMarket:
		if r.Price != nil {
			return NewValidationError("market orders must not carry a price")
		}
	case OrderTypeLimit:
		if r.Price == nil || !r.Price.IsPositive() {
			return NewValidationError("limit orders require a positive price")
		}
	}
	return nil
}

// Ticker is a 24h rolling market snapshot for one symbol.
type Ticker struct {
	Symbol        string
	BidPrice      decimal.Decimal
	AskPrice      decimal.Decimal
	LastPrice     decimal.Decimal
	Volume        decimal.Decimal
	Change        decimal.Decimal
	ChangePercent decimal.Decimal
	HighPrice     decimal.Decimal
	LowPrice      decimal.Decimal
	Timestamp     int64
}

// BookLevel is one price level of an order book side.
type BookLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// OrderBook is a point-in-time depth snapshot. Bids are sorted descending
// by price, asks ascending.
type OrderBook struct {
	Symbol    string
	Bids      []BookLevel
	Asks      []BookLevel
	Timestamp int64
}

// FundingRate describes the current funding state of a perpetual contract.
type FundingRate struct {
	Symbol          string
	Rate            decimal.Decimal
	FundingTime     int64
	NextFundingTime int64
}

// SymbolInfo describes the trading rules of one listed symbol.
type SymbolInfo struct {
	Symbol      string
	BaseAsset   string
	QuoteAsset  string
	TickSize    decimal.Decimal
	StepSize    decimal.Decimal
	MinQty      decimal.Decimal
	MinNotional decimal.Decimal
	IsSpot      bool
	IsFutures   bool
}

// AccountInfo is a normalized account summary. Venues report different
// subsets; absent fields stay zero.
type AccountInfo struct {
	Venue            string
	TotalBalance     decimal.Decimal
	AvailableBalance decimal.Decimal
	UnrealizedPnL    decimal.Decimal
	MarginUsed       decimal.Decimal
}

// SymbolBrief is one entry of an exchange listing.
type SymbolBrief struct {
	Symbol     string
	BaseAsset  string
	QuoteAsset string
	Status     string
}

// ExchangeInfo is the normalized venue metadata snapshot.
type ExchangeInfo struct {
	Timezone   string
	ServerTime int64
	Symbols    []SymbolBrief
}
