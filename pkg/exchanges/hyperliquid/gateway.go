package hyperliquid

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	hl "github.com/sonirico/go-hyperliquid"

	"github.com/shopspring/decimal"
	"github.com/veiloq/exchange-service/pkg/exchange"
)

// placeParams is a fully resolved order: market emulation (price banding,
// IOC) already happened in the client.
type placeParams struct {
	Coin       string
	IsBuy      bool
	Size       decimal.Decimal
	Price      decimal.Decimal
	Tif        exchange.TimeInForce
	ReduceOnly bool
}

type placeAck struct {
	OID       int64
	Filled    bool
	FilledQty *decimal.Decimal
	AvgPrice  *decimal.Decimal
}

// orderGateway isolates the wallet-signing SDK behind the two write
// operations the adapter needs, so tests can swap it out.
type orderGateway interface {
	place(ctx context.Context, p placeParams) (placeAck, error)
	cancel(ctx context.Context, coin string, oid int64) error
}

// sdkGateway signs and submits writes through the official SDK.
type sdkGateway struct {
	ex *hl.Exchange
}

// newSDKGateway builds the SDK-backed gateway. The SDK constructors fetch
// venue metadata internally and panic when that fails, so construction is
// recovered into an error.
func newSDKGateway(ctx context.Context, key *ecdsa.PrivateKey, baseURL, accountAddress string) (gw orderGateway, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetching venue metadata: %v", r)
		}
	}()

	info := hl.NewInfo(ctx, baseURL, true, nil, nil)
	meta, err := info.Meta(ctx)
	if err != nil {
		return nil, err
	}
	return &sdkGateway{ex: hl.NewExchange(ctx, key, baseURL, meta, "", accountAddress, nil)}, nil
}

func (g *sdkGateway) place(ctx context.Context, p placeParams) (placeAck, error) {
	tif := hl.TifGtc
	if p.Tif == exchange.TimeInForceIOC {
		tif = hl.TifIoc
	}

	res, err := g.ex.Order(ctx, hl.CreateOrderRequest{
		Coin:       p.Coin,
		IsBuy:      p.IsBuy,
		Size:       p.Size.InexactFloat64(),
		Price:      p.Price.InexactFloat64(),
		OrderType:  hl.OrderType{Limit: &hl.LimitOrderType{Tif: tif}},
		ReduceOnly: p.ReduceOnly,
	}, nil)
	if err != nil {
		return placeAck{}, exchange.NewExchangeError(venueName, "order submission failed", err)
	}
	return ackFromStatus(res)
}

// ackFromStatus translates the venue's order acknowledgment. Resting and
// Filled are optional: a GTC order that rests carries only Resting, an
// immediate fill only Filled.
func ackFromStatus(res hl.OrderStatus) (placeAck, error) {
	if res.Error != nil {
		return placeAck{}, classifyVenueMessage(*res.Error)
	}
	if res.Resting != nil {
		return placeAck{OID: res.Resting.Oid}, nil
	}
	if res.Filled != nil {
		return placeAck{
			OID:       int64(res.Filled.Oid),
			Filled:    true,
			FilledQty: decPtr(res.Filled.TotalSz),
			AvgPrice:  decPtr(res.Filled.AvgPx),
		}, nil
	}
	return placeAck{}, exchange.NewExchangeError(venueName, "venue acknowledged order without an id", nil)
}

func (g *sdkGateway) cancel(ctx context.Context, coin string, oid int64) error {
	if _, err := g.ex.Cancel(ctx, coin, oid); err != nil {
		return classifyVenueMessage(err.Error())
	}
	return nil
}

// classifyVenueMessage maps the venue's free-text rejections onto the shared
// error kinds. There are no structured codes on this venue.
func classifyVenueMessage(msg string) error {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "insufficient"):
		return exchange.NewError(venueName, exchange.ErrInsufficientBalance, "", msg, nil)
	case strings.Contains(lower, "never placed") ||
		strings.Contains(lower, "already canceled") ||
		strings.Contains(lower, "filled or canceled"):
		return exchange.NewError(venueName, exchange.ErrOrderNotFound, "", msg, nil)
	case strings.Contains(lower, "invalid") && strings.Contains(lower, "asset"):
		return exchange.NewError(venueName, exchange.ErrInvalidSymbol, "", msg, nil)
	case strings.Contains(lower, "price") || strings.Contains(lower, "size") ||
		strings.Contains(lower, "notional"):
		return exchange.NewError(venueName, exchange.ErrInvalidOrder, "", msg, nil)
	case strings.Contains(lower, "signature") || strings.Contains(lower, "unauthorized"):
		return exchange.NewError(venueName, exchange.ErrAuthentication, "", msg, nil)
	default:
		return exchange.NewExchangeError(venueName, msg, nil)
	}
}
