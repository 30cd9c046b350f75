package hyperliquid

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veiloq/exchange-service/pkg/exchange"
)

func TestParseLeverageShapes(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    int
	}{
		{"nested object", `{"type":"cross","value":10}`, 10},
		{"bare number", `20`, 20},
		{"float number", `12.0`, 12},
		{"string", `"5"`, 5},
		{"empty", ``, 1},
		{"null", `null`, 1},
		{"array", `[1,2]`, 1},
		{"object without value", `{"type":"cross"}`, 1},
		{"negative", `-3`, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, parseLeverage(json.RawMessage(tc.payload), nil))
		})
	}
}

func TestMapPositionRecoversMarkFromNotional(t *testing.T) {
	pos := mapPosition(positionDetail{
		Coin:          "BTC",
		Szi:           "0.5",
		EntryPx:       "50000",
		PositionValue: "25500",
	}, nil)
	require.NotNil(t, pos)

	// 25500 / 0.5
	assert.True(t, pos.MarkPrice.Equal(decimal.NewFromInt(51000)))
	// PnL omitted by the venue: (51000 - 50000) * 0.5.
	assert.True(t, pos.PnL.Equal(decimal.NewFromInt(500)))
}

func TestMapPositionShortPnLSignAdjusted(t *testing.T) {
	pos := mapPosition(positionDetail{
		Coin:          "ETH",
		Szi:           "-2",
		EntryPx:       "3000",
		PositionValue: "6200", // mark 3100, against the short
	}, nil)
	require.NotNil(t, pos)

	assert.Equal(t, exchange.PositionSideShort, pos.Side)
	assert.True(t, pos.Size.Equal(decimal.NewFromInt(2)))
	assert.True(t, pos.PnL.Equal(decimal.NewFromInt(-200)))
}

func TestMapPositionFlatReturnsNil(t *testing.T) {
	assert.Nil(t, mapPosition(positionDetail{Coin: "BTC", Szi: "0"}, nil))
	assert.Nil(t, mapPosition(positionDetail{Coin: "BTC"}, nil))
}

func TestMapPositionPercentageFromReturnOnEquity(t *testing.T) {
	pos := mapPosition(positionDetail{
		Coin:           "BTC",
		Szi:            "1",
		EntryPx:        "50000",
		PositionValue:  "51000",
		UnrealizedPnl:  "1000",
		ReturnOnEquity: "0.2",
	}, nil)
	require.NotNil(t, pos)
	assert.True(t, pos.Percentage.Equal(decimal.NewFromInt(20)))
}

func TestMapOpenOrderSides(t *testing.T) {
	buy := mapOpenOrder(openOrder{Coin: "BTC", Side: "B", Oid: 1, Sz: "1", OrigSz: "1"})
	assert.Equal(t, exchange.OrderSideBuy, buy.Side)

	sell := mapOpenOrder(openOrder{Coin: "BTC", Side: "A", Oid: 2, Sz: "1", OrigSz: "1"})
	assert.Equal(t, exchange.OrderSideSell, sell.Side)
}

func TestMapOpenOrderPartialFill(t *testing.T) {
	order := mapOpenOrder(openOrder{
		Coin: "BTC", Side: "B", Oid: 3,
		Sz: "0.25", OrigSz: "1", LimitPx: "50000",
	})
	assert.True(t, order.Quantity.Equal(decimal.NewFromInt(1)))
	assert.True(t, order.FilledQty.Equal(decimal.RequireFromString("0.75")))
	require.NotNil(t, order.Price)
	assert.True(t, order.Price.Equal(decimal.NewFromInt(50000)))
}

func TestClassifyVenueMessage(t *testing.T) {
	cases := []struct {
		msg  string
		kind error
	}{
		{"Insufficient margin to place order", exchange.ErrInsufficientBalance},
		{"Order was never placed, already canceled, or filled or canceled", exchange.ErrOrderNotFound},
		{"Invalid asset 9999", exchange.ErrInvalidSymbol},
		{"Order price cannot be more than 95% away from the reference price", exchange.ErrInvalidOrder},
		{"Order must have minimum notional value of $10", exchange.ErrInvalidOrder},
		{"User or API Wallet signature is unauthorized", exchange.ErrAuthentication},
		{"something completely novel", exchange.ErrExchange},
	}
	for _, tc := range cases {
		t.Run(tc.msg, func(t *testing.T) {
			assert.ErrorIs(t, classifyVenueMessage(tc.msg), tc.kind)
		})
	}
}
