package aster

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/veiloq/exchange-service/pkg/exchange"
	"github.com/veiloq/exchange-service/pkg/logging"
)

// SpotClient serves the Aster spot market. It shares the signed REST core
// with the futures client but targets the spot host and its /api/v1 paths.
// Spot accounts have no positions and no funding.
type SpotClient struct {
	*Client
}

// NewSpotClient builds the Aster spot service.
func NewSpotClient(opts Options) (*SpotClient, error) {
	client, err := NewClient(opts)
	if err != nil {
		return nil, err
	}
	return &SpotClient{Client: client}, nil
}

// Connect verifies credentials against the spot account endpoint so a
// futures-only key is rejected at connect time, not first use.
func (s *SpotClient) Connect(ctx context.Context) error {
	return s.connect(ctx, func(ctx context.Context) error {
		_, err := s.GetSpotBalances(ctx)
		return err
	})
}

// GetSpotBalances returns all non-zero spot wallet balances.
func (s *SpotClient) GetSpotBalances(ctx context.Context) ([]exchange.Balance, error) {
	var account spotAccountResponse
	if err := s.signedRequest(ctx, http.MethodGet, s.opts.SpotBaseURL, "/api/v1/account", nil, &account); err != nil {
		return nil, err
	}

	balances := make([]exchange.Balance, 0, len(account.Balances))
	for _, b := range account.Balances {
		free := dec(b.Free)
		locked := dec(b.Locked)
		total := free.Add(locked)
		if total.IsZero() {
			continue
		}
		balances = append(balances, exchange.Balance{
			Asset:  b.Asset,
			Free:   free,
			Locked: locked,
			Total:  total,
		})
	}
	return balances, nil
}

// GetBalances returns spot wallet balances.
func (s *SpotClient) GetBalances(ctx context.Context) ([]exchange.Balance, error) {
	return s.GetSpotBalances(ctx)
}

// GetAccountInfo summarizes the spot wallet. The venue exposes no margin
// figures on spot, so only the balance totals are populated.
func (s *SpotClient) GetAccountInfo(ctx context.Context) (*exchange.AccountInfo, error) {
	balances, err := s.GetSpotBalances(ctx)
	if err != nil {
		return nil, err
	}

	info := &exchange.AccountInfo{Venue: venueName}
	for _, b := range balances {
		info.TotalBalance = info.TotalBalance.Add(b.Total)
		info.AvailableBalance = info.AvailableBalance.Add(b.Free)
	}
	return info, nil
}

// GetPositions returns an empty slice: spot accounts hold balances, not
// positions.
func (s *SpotClient) GetPositions(ctx context.Context) ([]exchange.Position, error) {
	return []exchange.Position{}, nil
}

// GetOpenOrders returns working spot orders, optionally per symbol.
func (s *SpotClient) GetOpenOrders(ctx context.Context, symbol string) ([]exchange.Order, error) {
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", symbol)
	}

	var rows []orderResponse
	if err := s.signedRequest(ctx, http.MethodGet, s.opts.SpotBaseURL, "/api/v1/openOrders", params, &rows); err != nil {
		return nil, err
	}

	orders := make([]exchange.Order, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, *mapOrder(row))
	}
	return orders, nil
}

// GetOrder fetches one spot order by venue id.
func (s *SpotClient) GetOrder(ctx context.Context, orderID, symbol string) (*exchange.Order, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)

	var row orderResponse
	if err := s.signedRequest(ctx, http.MethodGet, s.opts.SpotBaseURL, "/api/v1/order", params, &row); err != nil {
		return nil, err
	}
	return mapOrder(row), nil
}

// PlaceSpotOrder places an order on the spot market. ReduceOnly is ignored.
func (s *SpotClient) PlaceSpotOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", string(req.Side))
	params.Set("type", orderTypeToVenue[req.Type])
	params.Set("quantity", req.Quantity.String())

	if req.Type == exchange.OrderTypeLimit {
		params.Set("price", req.Price.String())
		tif := req.TimeInForce
		if tif == "" {
			tif = exchange.TimeInForceGTC
		}
		params.Set("timeInForce", string(tif))
	}

	clientOrderID := req.ClientOrderID
	if clientOrderID == "" {
		clientOrderID = uuid.NewString()
	}
	params.Set("newClientOrderId", clientOrderID)

	var row orderResponse
	if err := s.signedRequest(ctx, http.MethodPost, s.opts.SpotBaseURL, "/api/v1/order", params, &row); err != nil {
		return nil, err
	}

	order := mapOrder(row)
	if order.ClientOrderID == "" {
		order.ClientOrderID = clientOrderID
	}
	s.logger.Info("placed spot order",
		logging.String("symbol", order.Symbol),
		logging.String("order_id", order.OrderID),
		logging.String("side", string(order.Side)),
		logging.Decimal("quantity", order.Quantity),
	)
	return order, nil
}

// PlaceOrder places a spot order.
func (s *SpotClient) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.Order, error) {
	return s.PlaceSpotOrder(ctx, req)
}

// CancelOrder cancels one working spot order.
func (s *SpotClient) CancelOrder(ctx context.Context, orderID, symbol string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)

	var row orderResponse
	if err := s.signedRequest(ctx, http.MethodDelete, s.opts.SpotBaseURL, "/api/v1/order", params, &row); err != nil {
		return err
	}
	s.logger.Info("canceled spot order",
		logging.String("symbol", symbol),
		logging.String("order_id", orderID),
	)
	return nil
}

// CancelAllOrders cancels every working spot order on a symbol.
func (s *SpotClient) CancelAllOrders(ctx context.Context, symbol string) error {
	if symbol == "" {
		return exchange.NewValidationError("symbol is required to cancel all orders")
	}
	params := url.Values{}
	params.Set("symbol", symbol)

	var ack apiError
	return s.signedRequest(ctx, http.MethodDelete, s.opts.SpotBaseURL, "/api/v1/allOpenOrders", params, &ack)
}

// GetTicker returns the spot 24h market snapshot for a symbol.
func (s *SpotClient) GetTicker(ctx context.Context, symbol string) (*exchange.Ticker, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var row tickerResponse
	if err := s.publicRequest(ctx, http.MethodGet, s.opts.SpotBaseURL, "/api/v1/ticker/24hr", params, &row); err != nil {
		return nil, err
	}
	return mapTicker(row), nil
}

// GetOrderBook returns a spot depth snapshot.
func (s *SpotClient) GetOrderBook(ctx context.Context, symbol string, limit int) (*exchange.OrderBook, error) {
	if limit <= 0 {
		limit = 20
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("limit", strconv.Itoa(limit))

	var row depthResponse
	if err := s.publicRequest(ctx, http.MethodGet, s.opts.SpotBaseURL, "/api/v1/depth", params, &row); err != nil {
		return nil, err
	}

	ts := row.EventTime
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}
	return &exchange.OrderBook{
		Symbol:    symbol,
		Bids:      mapBookLevels(row.Bids),
		Asks:      mapBookLevels(row.Asks),
		Timestamp: ts,
	}, nil
}

// GetFundingRate rejects: spot markets have no funding.
func (s *SpotClient) GetFundingRate(ctx context.Context, symbol string) (*exchange.FundingRate, error) {
	return nil, exchange.NewError(venueName, exchange.ErrInvalidOrder, "", "funding rates do not exist on spot markets", nil)
}

// GetSymbolInfo returns the trading rules for one spot symbol.
func (s *SpotClient) GetSymbolInfo(ctx context.Context, symbol string) (*exchange.SymbolInfo, error) {
	var info exchangeInfoResponse
	if err := s.publicRequest(ctx, http.MethodGet, s.opts.SpotBaseURL, "/api/v1/exchangeInfo", nil, &info); err != nil {
		return nil, err
	}

	for _, row := range info.Symbols {
		if row.Symbol == symbol {
			return mapSymbolInfo(row, false), nil
		}
	}
	return nil, exchange.NewError(venueName, exchange.ErrInvalidSymbol, "", fmt.Sprintf("symbol %s not listed", symbol), nil)
}

// GetExchangeInfo returns the spot listing metadata.
func (s *SpotClient) GetExchangeInfo(ctx context.Context) (*exchange.ExchangeInfo, error) {
	var info exchangeInfoResponse
	if err := s.publicRequest(ctx, http.MethodGet, s.opts.SpotBaseURL, "/api/v1/exchangeInfo", nil, &info); err != nil {
		return nil, err
	}

	symbols := make([]exchange.SymbolBrief, 0, len(info.Symbols))
	for _, row := range info.Symbols {
		symbols = append(symbols, exchange.SymbolBrief{
			Symbol:     row.Symbol,
			BaseAsset:  row.BaseAsset,
			QuoteAsset: row.QuoteAsset,
			Status:     row.Status,
		})
	}
	return &exchange.ExchangeInfo{
		Timezone:   info.Timezone,
		ServerTime: info.ServerTime,
		Symbols:    symbols,
	}, nil
}

var _ exchange.SpotService = (*SpotClient)(nil)
