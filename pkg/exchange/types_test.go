package exchange

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderRequestValidate(t *testing.T) {
	price := decimal.NewFromInt(50000)
	zero := decimal.Zero

	cases := []struct {
		name    string
		req     OrderRequest
		wantErr bool
	}{
		{
			name: "valid limit",
			req: OrderRequest{
				Symbol: "BTCUSDT", Side: OrderSideBuy, Type: OrderTypeLimit,
				Quantity: decimal.NewFromInt(1), Price: &price,
			},
		},
		{
			name: "valid market",
			req: OrderRequest{
				Symbol: "BTCUSDT", Side: OrderSideSell, Type: OrderTypeMarket,
				Quantity: decimal.NewFromInt(1),
			},
		},
		{
			name: "missing symbol",
			req: OrderRequest{
				Side: OrderSideBuy, Type: OrderTypeMarket, Quantity: decimal.NewFromInt(1),
			},
			wantErr: true,
		},
		{
			name: "zero quantity",
			req: OrderRequest{
				Symbol: "BTCUSDT", Side: OrderSideBuy, Type: OrderTypeMarket,
			},
			wantErr: true,
		},
		{
			name: "negative quantity",
			req: OrderRequest{
				Symbol: "BTCUSDT", Side: OrderSideBuy, Type: OrderTypeMarket,
				Quantity: decimal.NewFromInt(-1),
			},
			wantErr: true,
		},
		{
			name: "market with price",
			req: OrderRequest{
				Symbol: "BTCUSDT", Side: OrderSideBuy, Type: OrderTypeMarket,
				Quantity: decimal.NewFromInt(1), Price: &price,
			},
			wantErr: true,
		},
		{
			name: "limit without price",
			req: OrderRequest{
				Symbol: "BTCUSDT", Side: OrderSideBuy, Type: OrderTypeLimit,
				Quantity: decimal.NewFromInt(1),
			},
			wantErr: true,
		},
		{
			name: "limit with zero price",
			req: OrderRequest{
				Symbol: "BTCUSDT", Side: OrderSideBuy, Type: OrderTypeLimit,
				Quantity: decimal.NewFromInt(1), Price: &zero,
			},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
