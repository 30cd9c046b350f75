package hyperliquid

import (
	"context"

	"github.com/veiloq/exchange-service/pkg/exchange"
	"github.com/veiloq/exchange-service/pkg/logging"
)

// FuturesClient serves the Hyperliquid perpetuals market. The base client
// already speaks the perp API.
type FuturesClient struct {
	*Client
}

// NewFuturesClient builds the Hyperliquid futures service.
func NewFuturesClient(opts Options) (*FuturesClient, error) {
	client, err := NewClient(opts)
	if err != nil {
		return nil, err
	}
	return &FuturesClient{Client: client}, nil
}

// GetFuturesBalances returns the margin-account balance.
func (f *FuturesClient) GetFuturesBalances(ctx context.Context) ([]exchange.Balance, error) {
	return f.GetBalances(ctx)
}

// GetFuturesPositions returns all open positions.
func (f *FuturesClient) GetFuturesPositions(ctx context.Context) ([]exchange.Position, error) {
	return f.GetPositions(ctx)
}

// PlaceFuturesOrder places a perpetuals order.
func (f *FuturesClient) PlaceFuturesOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.Order, error) {
	return f.PlaceOrder(ctx, req)
}

// SetLeverage reports success without a venue call. Leverage on this venue
// is chosen per order through margin allocation, not set per symbol, so
// there is nothing to send; the call is logged for auditability.
func (f *FuturesClient) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if leverage < 1 {
		return exchange.NewValidationError("leverage must be at least 1")
	}
	f.logger.Info("leverage request acknowledged without venue call",
		logging.String("symbol", symbol),
		logging.Int("leverage", leverage),
	)
	return nil
}

var _ exchange.FuturesService = (*FuturesClient)(nil)
