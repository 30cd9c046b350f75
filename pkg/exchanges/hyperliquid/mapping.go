package hyperliquid

import (
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/veiloq/exchange-service/pkg/exchange"
	"github.com/veiloq/exchange-service/pkg/logging"
)

// dec parses a venue decimal string, returning zero for empty or malformed
// input.
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

// parseLeverage decodes the position leverage field, which the venue has
// served as a bare number, a string, and a {"type","value"} object. Anything
// undecodable falls back to 1x with a warning.
func parseLeverage(raw json.RawMessage, logger logging.Logger) int {
	if len(raw) == 0 {
		return 1
	}

	var obj struct {
		Value json.Number `json:"value"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Value != "" {
		if v, err := obj.Value.Int64(); err == nil && v > 0 {
			return int(v)
		}
		if f, err := obj.Value.Float64(); err == nil && f > 0 {
			return int(f)
		}
	}

	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		if v, err := num.Int64(); err == nil && v > 0 {
			return int(v)
		}
		if f, err := num.Float64(); err == nil && f > 0 {
			return int(f)
		}
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if v, err := strconv.Atoi(str); err == nil && v > 0 {
			return v
		}
	}

	if logger != nil {
		logger.Warn("unrecognized leverage payload, assuming 1x",
			logging.String("payload", string(raw)),
		)
	}
	return 1
}

// mapPosition converts one venue position. Flat positions return nil. Mark
// price is recovered from the position notional; PnL falls back to
// (mark - entry) * size when the venue omits it.
func mapPosition(p positionDetail, logger logging.Logger) *exchange.Position {
	size := dec(p.Szi)
	if size.IsZero() {
		return nil
	}

	side := exchange.PositionSideLong
	if size.IsNegative() {
		side = exchange.PositionSideShort
	}
	absSize := size.Abs()

	entry := dec(p.EntryPx)
	mark := decimal.Zero
	if notional := dec(p.PositionValue); !notional.IsZero() {
		mark = notional.Div(absSize)
	}

	pnl := dec(p.UnrealizedPnl)
	if pnl.IsZero() && !entry.IsZero() && !mark.IsZero() {
		diff := mark.Sub(entry)
		if side == exchange.PositionSideShort {
			diff = diff.Neg()
		}
		pnl = diff.Mul(absSize)
	}

	percentage := dec(p.ReturnOnEquity).Mul(decimal.NewFromInt(100))

	return &exchange.Position{
		Symbol:     p.Coin,
		Side:       side,
		Size:       absSize,
		EntryPrice: entry,
		MarkPrice:  mark,
		PnL:        pnl,
		Percentage: percentage,
		Margin:     dec(p.MarginUsed),
		Leverage:   parseLeverage(p.Leverage, logger),
	}
}

// mapOpenOrder converts one frontendOpenOrders row. Side "B" bids, "A" asks.
func mapOpenOrder(o openOrder) *exchange.Order {
	side := exchange.OrderSideSell
	if o.Side == "B" {
		side = exchange.OrderSideBuy
	}

	origQty := dec(o.OrigSz)
	if origQty.IsZero() {
		origQty = dec(o.Sz)
	}

	return &exchange.Order{
		OrderID:       strconv.FormatInt(o.Oid, 10),
		ClientOrderID: o.Cloid,
		Symbol:        o.Coin,
		Side:          side,
		Type:          mapOrderType(o.OrderType),
		Quantity:      origQty,
		Price:         decPtr(o.LimitPx),
		Status:        exchange.OrderStatusNew,
		FilledQty:     origQty.Sub(dec(o.Sz)),
		TimeInForce:   exchange.TimeInForceGTC,
		CreatedAt:     o.Timestamp,
		UpdatedAt:     o.Timestamp,
	}
}

func mapOrderType(s string) exchange.OrderType {
	switch s {
	case "Market":
		return exchange.OrderTypeMarket
	case "Stop Market", "Stop Limit":
		return exchange.OrderTypeStopLoss
	case "Take Profit Market", "Take Profit Limit":
		return exchange.OrderTypeTakeProfit
	default:
		return exchange.OrderTypeLimit
	}
}

func mapOrderStatus(s string) exchange.OrderStatus {
	switch s {
	case "open":
		return exchange.OrderStatusNew
	case "filled":
		return exchange.OrderStatusFilled
	case "canceled", "marginCanceled":
		return exchange.OrderStatusCanceled
	case "rejected":
		return exchange.OrderStatusRejected
	default:
		return exchange.OrderStatusNew
	}
}

func mapBookLevels(entries []bookEntry, limit int) []exchange.BookLevel {
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	levels := make([]exchange.BookLevel, 0, len(entries))
	for _, e := range entries {
		levels = append(levels, exchange.BookLevel{
			Price:    dec(e.Px),
			Quantity: dec(e.Sz),
		})
	}
	return levels
}
