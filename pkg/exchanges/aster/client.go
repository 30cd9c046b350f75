// Package aster implements the Aster venue adapter: a Binance-compatible
// REST API signed with HMAC-SHA256 plus listen-key based user streams.
package aster

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/veiloq/exchange-service/pkg/common"
	"github.com/veiloq/exchange-service/pkg/exchange"
	"github.com/veiloq/exchange-service/pkg/logging"
	"github.com/veiloq/exchange-service/pkg/ratelimit"
)

const (
	venueName = "aster"

	defaultFuturesBaseURL = "https://fapi.asterdex.com"
	defaultSpotBaseURL    = "https://sapi.asterdex.com"
	defaultStreamURL      = "wss://fstream.asterdex.com/ws"

	// recvWindowMS is the signed-request freshness window the venue enforces.
	recvWindowMS = 5000

	// clockSyncInterval bounds how stale the cached server clock offset may
	// get before a signed request triggers a resync.
	clockSyncInterval = time.Minute

	codeTimestampDrift = -1021
)

// Options configures the Aster client.
type Options struct {
	APIKey    string
	APISecret string

	// FuturesBaseURL and SpotBaseURL override the production hosts, mainly
	// for tests.
	FuturesBaseURL string
	SpotBaseURL    string
	StreamURL      string

	RateLimit   ratelimit.Rate
	HTTPTimeout time.Duration
	Logger      logging.Logger
}

func (o *Options) applyDefaults() {
	if o.FuturesBaseURL == "" {
		o.FuturesBaseURL = defaultFuturesBaseURL
	}
	if o.SpotBaseURL == "" {
		o.SpotBaseURL = defaultSpotBaseURL
	}
	if o.StreamURL == "" {
		o.StreamURL = defaultStreamURL
	}
	if o.RateLimit.Limit == 0 {
		o.RateLimit = ratelimit.Rate{Limit: 10, Interval: time.Second}
	}
	if o.HTTPTimeout == 0 {
		o.HTTPTimeout = 30 * time.Second
	}
	if o.Logger == nil {
		o.Logger = logging.NewLogger()
	}
}

// Client is the signed REST core shared by the Aster spot and futures
// services. Base operations use the futures API; spot variants live in
// spot.go against the spot host.
type Client struct {
	opts   Options
	logger logging.Logger

	http common.HTTPClient

	// clockMu guards the server clock offset used for signing timestamps.
	clockMu     sync.RWMutex
	clockOffset int64 // milliseconds, server - local
	lastSync    time.Time

	stateMu   sync.RWMutex
	connected bool
}

// NewClient builds an Aster client. Credentials are verified at Connect.
func NewClient(opts Options) (*Client, error) {
	if opts.APIKey == "" || opts.APISecret == "" {
		return nil, exchange.NewValidationError("aster api key and secret are required")
	}
	opts.applyDefaults()

	return &Client{
		opts:   opts,
		logger: opts.Logger.WithFields(logging.String("venue", venueName)),
	}, nil
}

// Connect acquires the HTTP session, synchronizes the clock with the venue
// and verifies credentials with one signed account call.
func (c *Client) Connect(ctx context.Context) error {
	return c.connect(ctx, func(ctx context.Context) error {
		_, err := c.GetAccountInfo(ctx)
		return err
	})
}

// connect runs the shared session setup; verify is the capability-specific
// signed call that proves the key pair before the service is handed out.
func (c *Client) connect(ctx context.Context, verify func(context.Context) error) error {
	c.stateMu.Lock()
	if c.connected {
		c.stateMu.Unlock()
		return nil
	}
	c.http = common.NewHTTPClient(&common.ClientConfig{
		Timeout:   c.opts.HTTPTimeout,
		RateLimit: c.opts.RateLimit,
		Logger:    c.logger,
	})
	c.stateMu.Unlock()

	if err := c.syncServerTime(ctx); err != nil {
		return err
	}
	if err := verify(ctx); err != nil {
		return err
	}

	c.stateMu.Lock()
	c.connected = true
	c.stateMu.Unlock()
	c.logger.Info("connected")
	return nil
}

// Disconnect releases the session. Idempotent.
func (c *Client) Disconnect(ctx context.Context) error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if !c.connected {
		return nil
	}
	c.connected = false
	c.http = nil
	c.logger.Info("disconnected")
	return nil
}

// IsConnected reports whether Connect has succeeded.
func (c *Client) IsConnected() bool {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.connected
}

func (c *Client) transport() (common.HTTPClient, error) {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	if c.http == nil {
		return nil, exchange.NewError(venueName, exchange.ErrNotConnected, "", "connect before issuing requests", nil)
	}
	return c.http, nil
}

// syncServerTime refreshes the cached server clock offset.
func (c *Client) syncServerTime(ctx context.Context) error {
	var st serverTimeResponse
	if err := c.publicRequest(ctx, http.MethodGet, c.opts.FuturesBaseURL, "/fapi/v1/time", nil, &st); err != nil {
		return err
	}

	offset := st.ServerTime - time.Now().UnixMilli()
	c.clockMu.Lock()
	c.clockOffset = offset
	c.lastSync = time.Now()
	c.clockMu.Unlock()

	c.logger.Debug("synchronized server time", logging.Int64("offset_ms", offset))
	return nil
}

// timestamp returns the signing timestamp: local clock shifted by the cached
// server offset.
func (c *Client) timestamp() int64 {
	c.clockMu.RLock()
	defer c.clockMu.RUnlock()
	return time.Now().UnixMilli() + c.clockOffset
}

func (c *Client) clockStale() bool {
	c.clockMu.RLock()
	defer c.clockMu.RUnlock()
	return time.Since(c.lastSync) > clockSyncInterval
}

// sign computes the hex HMAC-SHA256 of the canonical query string.
func (c *Client) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(c.opts.APISecret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// signedRequest issues an authenticated request. Parameters are encoded in
// sorted order, the signature appended last. On a timestamp-drift rejection
// the clock is resynced and the request retried exactly once; a second drift
// rejection is returned as-is.
func (c *Client) signedRequest(ctx context.Context, method, baseURL, path string, params url.Values, out interface{}) error {
	transport, err := c.transport()
	if err != nil {
		return err
	}

	if c.clockStale() {
		if err := c.syncServerTime(ctx); err != nil {
			c.logger.Warn("periodic clock resync failed", logging.Error(err))
		}
	}

	retried := false
	for {
		signed := url.Values{}
		for k, vs := range params {
			for _, v := range vs {
				signed.Add(k, v)
			}
		}
		signed.Set("timestamp", strconv.FormatInt(c.timestamp(), 10))
		signed.Set("recvWindow", strconv.Itoa(recvWindowMS))

		// url.Values.Encode sorts keys, which is the venue's canonical form.
		query := signed.Encode()
		query += "&signature=" + c.sign(query)

		req, err := http.NewRequestWithContext(ctx, method, baseURL+path+"?"+query, nil)
		if err != nil {
			return exchange.NewExchangeError(venueName, "building request", err)
		}
		req.Header.Set("X-MBX-APIKEY", c.opts.APIKey)

		resp, err := transport.Do(ctx, req)
		if err != nil {
			return exchange.NewExchangeError(venueName, "transport failure", err)
		}

		venueErr := c.decodeResponse(resp, out)
		if venueErr == nil {
			return nil
		}

		var classified *exchange.Error
		if !retried && errors.As(venueErr, &classified) && classified.Code == strconv.Itoa(codeTimestampDrift) {
			retried = true
			c.logger.Warn("timestamp rejected, resyncing clock",
				logging.String("path", path),
			)
			if syncErr := c.syncServerTime(ctx); syncErr != nil {
				return syncErr
			}
			continue
		}
		return venueErr
	}
}

// publicRequest issues an unauthenticated request.
func (c *Client) publicRequest(ctx context.Context, method, baseURL, path string, params url.Values, out interface{}) error {
	transport, err := c.transport()
	if err != nil {
		return err
	}

	target := baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return exchange.NewExchangeError(venueName, "building request", err)
	}

	resp, err := transport.Do(ctx, req)
	if err != nil {
		return exchange.NewExchangeError(venueName, "transport failure", err)
	}
	return c.decodeResponse(resp, out)
}

// decodeResponse maps non-2xx responses through the venue code table and
// decodes successful bodies into out.
func (c *Client) decodeResponse(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return exchange.NewExchangeError(venueName, "reading response body", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return exchange.NewExchangeError(venueName, "decoding response body", err)
		}
		return nil
	}

	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Code == 0 {
		// No structured error payload; classify on status alone.
		return c.classifyStatus(resp, string(body))
	}
	return c.classifyCode(resp, apiErr)
}

// classifyCode maps a venue error code onto the shared error kinds.
func (c *Client) classifyCode(resp *http.Response, apiErr apiError) error {
	code := strconv.FormatInt(apiErr.Code, 10)

	kind := exchange.ErrExchange
	switch apiErr.Code {
	case codeTimestampDrift, -1022:
		kind = exchange.ErrAuthentication
	case -1003, -1004:
		return &exchange.Error{
			Venue:      venueName,
			Kind:       exchange.ErrRateLimit,
			Code:       code,
			Message:    apiErr.Msg,
			RetryAfter: retryAfterHeader(resp),
		}
	case -2010, -2011:
		kind = exchange.ErrInsufficientBalance
	case -1121, -1122:
		kind = exchange.ErrInvalidSymbol
	case -2013, -2014:
		kind = exchange.ErrOrderNotFound
	case -1013, -1014, -1111:
		kind = exchange.ErrInvalidOrder
	}

	return exchange.NewError(venueName, kind, code, apiErr.Msg, nil)
}

func (c *Client) classifyStatus(resp *http.Response, body string) error {
	msg := strings.TrimSpace(body)
	if msg == "" {
		msg = resp.Status
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return exchange.NewAuthenticationError(venueName, msg)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusTeapot:
		return exchange.NewRateLimitError(venueName, msg, retryAfterHeader(resp))
	default:
		return exchange.NewExchangeError(venueName, fmt.Sprintf("http %d: %s", resp.StatusCode, msg), nil)
	}
}

func retryAfterHeader(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

// --- base ExchangeService operations (futures market) ---

// GetAccountInfo returns the normalized futures account summary.
func (c *Client) GetAccountInfo(ctx context.Context) (*exchange.AccountInfo, error) {
	account, err := c.fetchAccount(ctx)
	if err != nil {
		return nil, err
	}
	return &exchange.AccountInfo{
		Venue:            venueName,
		TotalBalance:     dec(account.TotalMarginBalance),
		AvailableBalance: dec(account.AvailableBalance),
		UnrealizedPnL:    dec(account.TotalUnrealizedProfit),
		MarginUsed:       dec(account.TotalMarginBalance).Sub(dec(account.AvailableBalance)),
	}, nil
}

func (c *Client) fetchAccount(ctx context.Context) (*accountResponse, error) {
	var account accountResponse
	if err := c.signedRequest(ctx, http.MethodGet, c.opts.FuturesBaseURL, "/fapi/v1/account", nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// GetBalances returns all non-zero futures wallet balances. Free is the
// cross wallet balance; Locked is the remainder of the wallet.
func (c *Client) GetBalances(ctx context.Context) ([]exchange.Balance, error) {
	account, err := c.fetchAccount(ctx)
	if err != nil {
		return nil, err
	}

	balances := make([]exchange.Balance, 0, len(account.Assets))
	for _, a := range account.Assets {
		total := dec(a.WalletBalance)
		if total.IsZero() {
			continue
		}
		free := dec(a.CrossWalletBalance)
		locked := total.Sub(free)
		if locked.IsNegative() {
			locked = decimal.Zero
		}
		balances = append(balances, exchange.Balance{
			Asset:  a.Asset,
			Free:   free,
			Locked: locked,
			Total:  total,
		})
	}
	return balances, nil
}

// GetPositions returns all open futures positions.
func (c *Client) GetPositions(ctx context.Context) ([]exchange.Position, error) {
	account, err := c.fetchAccount(ctx)
	if err != nil {
		return nil, err
	}

	positions := make([]exchange.Position, 0)
	for _, p := range account.Positions {
		if pos := mapPosition(p, c.logger); pos != nil {
			positions = append(positions, *pos)
		}
	}
	return positions, nil
}

// GetOpenOrders returns working futures orders, optionally per symbol.
func (c *Client) GetOpenOrders(ctx context.Context, symbol string) ([]exchange.Order, error) {
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", symbol)
	}

	var rows []orderResponse
	if err := c.signedRequest(ctx, http.MethodGet, c.opts.FuturesBaseURL, "/fapi/v1/openOrders", params, &rows); err != nil {
		return nil, err
	}

	orders := make([]exchange.Order, 0, len(rows))
	for _, row := range rows {
		orders = append(orders, *mapOrder(row))
	}
	return orders, nil
}

// GetOrder fetches one futures order by venue id.
func (c *Client) GetOrder(ctx context.Context, orderID, symbol string) (*exchange.Order, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)

	var row orderResponse
	if err := c.signedRequest(ctx, http.MethodGet, c.opts.FuturesBaseURL, "/fapi/v1/order", params, &row); err != nil {
		return nil, err
	}
	return mapOrder(row), nil
}

// PlaceOrder submits a futures order after local validation.
func (c *Client) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.Order, error) {
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
	if req.ReduceOnly {
		params.Set("reduceOnly", "true")
	}

	clientOrderID := req.ClientOrderID
	if clientOrderID == "" {
		clientOrderID = uuid.NewString()
	}
	params.Set("newClientOrderId", clientOrderID)

	var row orderResponse
	if err := c.signedRequest(ctx, http.MethodPost, c.opts.FuturesBaseURL, "/fapi/v1/order", params, &row); err != nil {
		return nil, err
	}

	order := mapOrder(row)
	if order.ClientOrderID == "" {
		order.ClientOrderID = clientOrderID
	}
	c.logger.Info("placed order",
		logging.String("symbol", order.Symbol),
		logging.String("order_id", order.OrderID),
		logging.String("side", string(order.Side)),
		logging.Decimal("quantity", order.Quantity),
	)
	return order, nil
}

// CancelOrder cancels one working futures order.
func (c *Client) CancelOrder(ctx context.Context, orderID, symbol string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)

	var row orderResponse
	if err := c.signedRequest(ctx, http.MethodDelete, c.opts.FuturesBaseURL, "/fapi/v1/order", params, &row); err != nil {
		return err
	}
	c.logger.Info("canceled order",
		logging.String("symbol", symbol),
		logging.String("order_id", orderID),
	)
	return nil
}

// CancelAllOrders cancels every working futures order on a symbol.
func (c *Client) CancelAllOrders(ctx context.Context, symbol string) error {
	if symbol == "" {
		return exchange.NewValidationError("symbol is required to cancel all orders")
	}
	params := url.Values{}
	params.Set("symbol", symbol)

	var ack apiError
	if err := c.signedRequest(ctx, http.MethodDelete, c.opts.FuturesBaseURL, "/fapi/v1/allOpenOrders", params, &ack); err != nil {
		return err
	}
	return nil
}

// GetTicker returns the futures 24h market snapshot for a symbol.
func (c *Client) GetTicker(ctx context.Context, symbol string) (*exchange.Ticker, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var row tickerResponse
	if err := c.publicRequest(ctx, http.MethodGet, c.opts.FuturesBaseURL, "/fapi/v1/ticker/24hr", params, &row); err != nil {
		return nil, err
	}
	return mapTicker(row), nil
}

// GetOrderBook returns a futures depth snapshot.
func (c *Client) GetOrderBook(ctx context.Context, symbol string, limit int) (*exchange.OrderBook, error) {
	if limit <= 0 {
		limit = 20
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("limit", strconv.Itoa(limit))

	var row depthResponse
	if err := c.publicRequest(ctx, http.MethodGet, c.opts.FuturesBaseURL, "/fapi/v1/depth", params, &row); err != nil {
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

// GetFundingRate returns the current funding state of one perpetual.
func (c *Client) GetFundingRate(ctx context.Context, symbol string) (*exchange.FundingRate, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var row premiumIndexResponse
	if err := c.publicRequest(ctx, http.MethodGet, c.opts.FuturesBaseURL, "/fapi/v1/premiumIndex", params, &row); err != nil {
		return nil, err
	}
	return &exchange.FundingRate{
		Symbol:          row.Symbol,
		Rate:            dec(row.LastFundingRate),
		FundingTime:     row.Time,
		NextFundingTime: row.NextFundingTime,
	}, nil
}

// GetFundingRates enumerates funding across every listed perpetual.
func (c *Client) GetFundingRates(ctx context.Context) ([]exchange.FundingRate, error) {
	var rows []premiumIndexResponse
	if err := c.publicRequest(ctx, http.MethodGet, c.opts.FuturesBaseURL, "/fapi/v1/premiumIndex", nil, &rows); err != nil {
		return nil, err
	}

	rates := make([]exchange.FundingRate, 0, len(rows))
	for _, row := range rows {
		rates = append(rates, exchange.FundingRate{
			Symbol:          row.Symbol,
			Rate:            dec(row.LastFundingRate),
			FundingTime:     row.Time,
			NextFundingTime: row.NextFundingTime,
		})
	}
	return rates, nil
}

// GetSymbolInfo returns the trading rules for one futures symbol.
func (c *Client) GetSymbolInfo(ctx context.Context, symbol string) (*exchange.SymbolInfo, error) {
	var info exchangeInfoResponse
	if err := c.publicRequest(ctx, http.MethodGet, c.opts.FuturesBaseURL, "/fapi/v1/exchangeInfo", nil, &info); err != nil {
		return nil, err
	}

	for _, s := range info.Symbols {
		if s.Symbol == symbol {
			return mapSymbolInfo(s, true), nil
		}
	}
	return nil, exchange.NewError(venueName, exchange.ErrInvalidSymbol, "", fmt.Sprintf("symbol %s not listed", symbol), nil)
}

// GetExchangeInfo returns the futures listing metadata.
func (c *Client) GetExchangeInfo(ctx context.Context) (*exchange.ExchangeInfo, error) {
	var info exchangeInfoResponse
	if err := c.publicRequest(ctx, http.MethodGet, c.opts.FuturesBaseURL, "/fapi/v1/exchangeInfo", nil, &info); err != nil {
		return nil, err
	}

	symbols := make([]exchange.SymbolBrief, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		symbols = append(symbols, exchange.SymbolBrief{
			Symbol:     s.Symbol,
			BaseAsset:  s.BaseAsset,
			QuoteAsset: s.QuoteAsset,
			Status:     s.Status,
		})
	}
	return &exchange.ExchangeInfo{
		Timezone:   info.Timezone,
		ServerTime: info.ServerTime,
		Symbols:    symbols,
	}, nil
}

// --- listen key lifecycle (user stream session token) ---

func (c *Client) createListenKey(ctx context.Context) (string, error) {
	var resp listenKeyResponse
	if err := c.signedRequest(ctx, http.MethodPost, c.opts.FuturesBaseURL, "/fapi/v1/listenKey", nil, &resp); err != nil {
		return "", err
	}
	if resp.ListenKey == "" {
		return "", exchange.NewExchangeError(venueName, "venue returned empty listen key", nil)
	}
	return resp.ListenKey, nil
}

func (c *Client) keepAliveListenKey(ctx context.Context) error {
	return c.signedRequest(ctx, http.MethodPut, c.opts.FuturesBaseURL, "/fapi/v1/listenKey", nil, nil)
}

func (c *Client) closeListenKey(ctx context.Context) error {
	return c.signedRequest(ctx, http.MethodDelete, c.opts.FuturesBaseURL, "/fapi/v1/listenKey", nil, nil)
}
