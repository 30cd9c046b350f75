package hyperliquid

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/veiloq/exchange-service/pkg/exchange"
)

// SpotClient serves the Hyperliquid spot markets. Spot balances live in a
// separate clearinghouse; orders flow through the same signing gateway with
// pair-style coins ("PURR/USDC").
type SpotClient struct {
	*Client
}

// NewSpotClient builds the Hyperliquid spot service.
func NewSpotClient(opts Options) (*SpotClient, error) {
	client, err := NewClient(opts)
	if err != nil {
		return nil, err
	}
	return &SpotClient{Client: client}, nil
}

// Connect verifies the account against the spot clearinghouse.
func (s *SpotClient) Connect(ctx context.Context) error {
	s.stateMu.Lock()
	if s.connected {
		s.stateMu.Unlock()
		return nil
	}
	s.stateMu.Unlock()

	if err := s.Client.Connect(ctx); err != nil {
		return err
	}
	if _, err := s.GetSpotBalances(ctx); err != nil {
		_ = s.Client.Disconnect(ctx)
		return err
	}
	return nil
}

// GetSpotBalances returns all non-zero spot wallet balances. Hold is the
// portion locked under working orders.
func (s *SpotClient) GetSpotBalances(ctx context.Context) ([]exchange.Balance, error) {
	var state spotClearinghouseState
	if err := s.info(ctx, infoRequest{Type: "spotClearinghouseState", User: s.address}, &state); err != nil {
		return nil, err
	}

	balances := make([]exchange.Balance, 0, len(state.Balances))
	for _, b := range state.Balances {
		total := dec(b.Total)
		if total.IsZero() {
			continue
		}
		locked := dec(b.Hold)
		free := total.Sub(locked)
		if free.IsNegative() {
			free = decimal.Zero
		}
		balances = append(balances, exchange.Balance{
			Asset:  b.Coin,
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

// GetAccountInfo summarizes the spot wallet.
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

// PlaceSpotOrder places an order on a spot pair. ReduceOnly is ignored.
func (s *SpotClient) PlaceSpotOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.Order, error) {
	req.ReduceOnly = false
	return s.Client.PlaceOrder(ctx, req)
}

// PlaceOrder places a spot order.
func (s *SpotClient) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.Order, error) {
	return s.PlaceSpotOrder(ctx, req)
}

// GetFundingRate rejects: spot markets have no funding.
func (s *SpotClient) GetFundingRate(ctx context.Context, symbol string) (*exchange.FundingRate, error) {
	return nil, exchange.NewError(venueName, exchange.ErrInvalidOrder, "", "funding rates do not exist on spot markets", nil)
}

// GetTicker builds a spot ticker from the book: spot pairs have no asset
// context, so last price is approximated by the mid.
func (s *SpotClient) GetTicker(ctx context.Context, symbol string) (*exchange.Ticker, error) {
	book, err := s.GetOrderBook(ctx, symbol, 1)
	if err != nil {
		return nil, err
	}

	ticker := &exchange.Ticker{Symbol: symbol, Timestamp: book.Timestamp}
	if len(book.Bids) > 0 {
		ticker.BidPrice = book.Bids[0].Price
	}
	if len(book.Asks) > 0 {
		ticker.AskPrice = book.Asks[0].Price
	}
	if !ticker.BidPrice.IsZero() && !ticker.AskPrice.IsZero() {
		ticker.LastPrice = ticker.BidPrice.Add(ticker.AskPrice).Div(decimal.NewFromInt(2))
	}
	return ticker, nil
}

// GetSymbolInfo returns the trading rules for one spot pair.
func (s *SpotClient) GetSymbolInfo(ctx context.Context, symbol string) (*exchange.SymbolInfo, error) {
	var meta spotMetaResponse
	if err := s.info(ctx, infoRequest{Type: "spotMeta"}, &meta); err != nil {
		return nil, err
	}

	tokens := make(map[int]spotTokenEntry, len(meta.Tokens))
	for _, tok := range meta.Tokens {
		tokens[tok.Index] = tok
	}

	for _, entry := range meta.Universe {
		if entry.Name != symbol {
			continue
		}
		info := &exchange.SymbolInfo{
			Symbol:      entry.Name,
			QuoteAsset:  usdCoin,
			MinNotional: decimal.NewFromInt(10),
			IsSpot:      true,
		}
		if len(entry.Tokens) > 0 {
			if base, ok := tokens[entry.Tokens[0]]; ok {
				info.BaseAsset = base.Name
				step := decimal.New(1, int32(-base.SzDecimals))
				info.StepSize = step
				info.MinQty = step
			}
		}
		if len(entry.Tokens) > 1 {
			if quote, ok := tokens[entry.Tokens[1]]; ok {
				info.QuoteAsset = quote.Name
			}
		}
		return info, nil
	}
	return nil, exchange.NewError(venueName, exchange.ErrInvalidSymbol, "", fmt.Sprintf("pair %s not listed", symbol), nil)
}

// GetExchangeInfo returns the spot pair listing.
func (s *SpotClient) GetExchangeInfo(ctx context.Context) (*exchange.ExchangeInfo, error) {
	var meta spotMetaResponse
	if err := s.info(ctx, infoRequest{Type: "spotMeta"}, &meta); err != nil {
		return nil, err
	}

	tokens := make(map[int]spotTokenEntry, len(meta.Tokens))
	for _, tok := range meta.Tokens {
		tokens[tok.Index] = tok
	}

	symbols := make([]exchange.SymbolBrief, 0, len(meta.Universe))
	for _, entry := range meta.Universe {
		brief := exchange.SymbolBrief{Symbol: entry.Name, Status: "TRADING"}
		if len(entry.Tokens) > 0 {
			brief.BaseAsset = tokens[entry.Tokens[0]].Name
		}
		if len(entry.Tokens) > 1 {
			brief.QuoteAsset = tokens[entry.Tokens[1]].Name
		}
		symbols = append(symbols, brief)
	}
	return &exchange.ExchangeInfo{
		Timezone:   "UTC",
		ServerTime: time.Now().UnixMilli(),
		Symbols:    symbols,
	}, nil
}

var _ exchange.SpotService = (*SpotClient)(nil)
