package aster

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/veiloq/exchange-service/pkg/exchange"
	"github.com/veiloq/exchange-service/pkg/logging"
)

// FuturesClient serves the Aster perpetual futures market. The base client
// already speaks the futures API, so this type adds only the derivatives
// extensions.
type FuturesClient struct {
	*Client
}

// NewFuturesClient builds the Aster futures service.
func NewFuturesClient(opts Options) (*FuturesClient, error) {
	client, err := NewClient(opts)
	if err != nil {
		return nil, err
	}
	return &FuturesClient{Client: client}, nil
}

// GetFuturesBalances returns margin-account balances.
func (f *FuturesClient) GetFuturesBalances(ctx context.Context) ([]exchange.Balance, error) {
	return f.GetBalances(ctx)
}

// GetFuturesPositions returns all open positions.
func (f *FuturesClient) GetFuturesPositions(ctx context.Context) ([]exchange.Position, error) {
	return f.GetPositions(ctx)
}

// PlaceFuturesOrder places a derivatives order.
func (f *FuturesClient) PlaceFuturesOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.Order, error) {
	return f.PlaceOrder(ctx, req)
}

// SetLeverage sets per-symbol leverage on the venue.
func (f *FuturesClient) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if leverage < 1 {
		return exchange.NewValidationError("leverage must be at least 1")
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("leverage", strconv.Itoa(leverage))

	var resp leverageResponse
	if err := f.signedRequest(ctx, http.MethodPost, f.opts.FuturesBaseURL, "/fapi/v1/leverage", params, &resp); err != nil {
		return err
	}
	f.logger.Info("set leverage",
		logging.String("symbol", symbol),
		logging.Int("leverage", resp.Leverage),
	)
	return nil
}

var _ exchange.FuturesService = (*FuturesClient)(nil)
