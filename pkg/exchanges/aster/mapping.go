package aster

import (
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/veiloq/exchange-service/pkg/exchange"
	"github.com/veiloq/exchange-service/pkg/logging"
)

// Normalization tables between the venue vocabulary and the shared domain
// model. Unknown inbound values fall back to a documented default rather
// than failing the whole response.

var orderStatusFromVenue = map[string]exchange.OrderStatus{
	"NEW":              exchange.OrderStatusNew,
	"PARTIALLY_FILLED": exchange.OrderStatusPartiallyFilled,
	"FILLED":           exchange.OrderStatusFilled,
	"CANCELED":         exchange.OrderStatusCanceled,
	"REJECTED":         exchange.OrderStatusRejected,
	"EXPIRED":          exchange.OrderStatusExpired,
}

var orderTypeFromVenue = map[string]exchange.OrderType{
	"MARKET":               exchange.OrderTypeMarket,
	"LIMIT":                exchange.OrderTypeLimit,
	"STOP":                 exchange.OrderTypeStopLoss,
	"STOP_MARKET":          exchange.OrderTypeStopLoss,
	"TAKE_PROFIT":          exchange.OrderTypeTakeProfit,
	"TAKE_PROFIT_MARKET":   exchange.OrderTypeTakeProfit,
	"TRAILING_STOP_MARKET": exchange.OrderTypeTrailingStop,
}

var orderTypeToVenue = map[exchange.OrderType]string{
	exchange.OrderTypeMarket:       "MARKET",
	exchange.OrderTypeLimit:        "LIMIT",
	exchange.OrderTypeStopLoss:     "STOP_MARKET",
	exchange.OrderTypeTakeProfit:   "TAKE_PROFIT_MARKET",
	exchange.OrderTypeTrailingStop: "TRAILING_STOP_MARKET",
}

var timeInForceFromVenue = map[string]exchange.TimeInForce{
	"GTC": exchange.TimeInForceGTC,
	"IOC": exchange.TimeInForceIOC,
	"FOK": exchange.TimeInForceFOK,
}

func mapOrderStatus(s string) exchange.OrderStatus {
	if status, ok := orderStatusFromVenue[s]; ok {
		return status
	}
	// Unknown statuses are treated as still-open.
	return exchange.OrderStatusNew
}

func mapOrderType(s string) exchange.OrderType {
	if typ, ok := orderTypeFromVenue[s]; ok {
		return typ
	}
	return exchange.OrderTypeLimit
}

func mapTimeInForce(s string) exchange.TimeInForce {
	if tif, ok := timeInForceFromVenue[s]; ok {
		return tif
	}
	return exchange.TimeInForceGTC
}

// dec parses a venue decimal string, returning zero for empty or malformed
// input. Venue payloads omit fields freely, so parse failures are not fatal.
func dec(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// decPtr parses like dec but keeps "absent" distinguishable from zero.
func decPtr(s string) *decimal.Decimal {
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

// derivePnL recomputes unrealized PnL as (mark - entry) * |size|, sign
// adjusted for shorts. Used when the venue omits or zeroes the PnL field on
// an open position.
func derivePnL(side exchange.PositionSide, entry, mark, size decimal.Decimal) decimal.Decimal {
	diff := mark.Sub(entry)
	if side == exchange.PositionSideShort {
		diff = diff.Neg()
	}
	return diff.Mul(size.Abs())
}

func mapOrder(o orderResponse) *exchange.Order {
	return &exchange.Order{
		OrderID:       strconv.FormatInt(o.OrderID, 10),
		ClientOrderID: o.ClientOrderID,
		Symbol:        o.Symbol,
		Side:          exchange.OrderSide(o.Side),
		Type:          mapOrderType(o.Type),
		Quantity:      dec(o.OrigQty),
		Price:         decPtr(o.Price),
		Status:        mapOrderStatus(o.Status),
		FilledQty:     dec(o.ExecutedQty),
		AvgPrice:      decPtr(o.AvgPrice),
		TimeInForce:   mapTimeInForce(o.TimeInForce),
		CreatedAt:     o.Time,
		UpdatedAt:     o.UpdateTime,
	}
}

// mapPosition converts a venue position row. Flat rows (zero size) return
// nil. The PnL field arrives under several names; the first non-zero
// spelling wins, and a missing value is derived from entry and mark.
func mapPosition(p accountPosition, logger logging.Logger) *exchange.Position {
	size := dec(p.PositionAmt)
	if size.IsZero() {
		return nil
	}

	side := exchange.PositionSideLong
	if size.IsNegative() {
		side = exchange.PositionSideShort
	}

	entry := dec(p.EntryPrice)
	mark := dec(p.MarkPrice)

	pnl := dec(p.UnrealizedPnl)
	if pnl.IsZero() {
		pnl = dec(p.UnRealizedProfit)
	}
	if pnl.IsZero() && !entry.IsZero() && !mark.IsZero() {
		pnl = derivePnL(side, entry, mark, size)
		if logger != nil && !pnl.IsZero() {
			logger.Debug("derived position pnl from entry and mark price",
				logging.String("symbol", p.Symbol),
				logging.Decimal("pnl", pnl),
			)
		}
	}

	percentage := dec(p.Percentage)
	if percentage.IsZero() && !entry.IsZero() {
		notional := entry.Mul(size.Abs())
		if !notional.IsZero() {
			percentage = pnl.Div(notional).Mul(decimal.NewFromInt(100))
		}
	}

	leverage := 1
	if lv, err := strconv.Atoi(p.Leverage); err == nil && lv > 0 {
		leverage = lv
	}

	return &exchange.Position{
		Symbol:     p.Symbol,
		Side:       side,
		Size:       size.Abs(),
		EntryPrice: entry,
		MarkPrice:  mark,
		PnL:        pnl,
		Percentage: percentage,
		Margin:     dec(p.IsolatedMargin),
		Leverage:   leverage,
	}
}

// mapBookLevels converts [["price","qty"], ...] rows, skipping malformed
// entries.
func mapBookLevels(rows [][]string) []exchange.BookLevel {
	levels := make([]exchange.BookLevel, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		levels = append(levels, exchange.BookLevel{
			Price:    dec(row[0]),
			Quantity: dec(row[1]),
		})
	}
	return levels
}

func mapTicker(t tickerResponse) *exchange.Ticker {
	return &exchange.Ticker{
		Symbol:        t.Symbol,
		BidPrice:      dec(t.BidPrice),
		AskPrice:      dec(t.AskPrice),
		LastPrice:     dec(t.LastPrice),
		Volume:        dec(t.Volume),
		Change:        dec(t.PriceChange),
		ChangePercent: dec(t.PriceChangePercent),
		HighPrice:     dec(t.HighPrice),
		LowPrice:      dec(t.LowPrice),
		Timestamp:     t.CloseTime,
	}
}

// mapSymbolInfo flattens the venue's filter list into the shared shape.
func mapSymbolInfo(s symbolInfoResponse, futures bool) *exchange.SymbolInfo {
	info := &exchange.SymbolInfo{
		Symbol:     s.Symbol,
		BaseAsset:  s.BaseAsset,
		QuoteAsset: s.QuoteAsset,
		IsSpot:     !futures,
		IsFutures:  futures,
	}
	for _, f := range s.Filters {
		switch f.FilterType {
		case "PRICE_FILTER":
			info.TickSize = dec(f.TickSize)
		case "LOT_SIZE":
			info.StepSize = dec(f.StepSize)
			info.MinQty = dec(f.MinQty)
		case "MIN_NOTIONAL":
			info.MinNotional = dec(f.MinNotional)
		}
	}
	return info
}
