package aster

import "encoding/json"

// Wire-level response shapes for the Aster REST API. Venue field names stay
// inside this package; everything crossing the adapter boundary is mapped
// into the shared domain model first.

type serverTimeResponse struct {
	ServerTime int64 `json:"serverTime"`
}

type apiError struct {
	Code int64  `json:"code"`
	Msg  string `json:"msg"`
}

type accountAsset struct {
	Asset              string `json:"asset"`
	WalletBalance      string `json:"walletBalance"`
	CrossWalletBalance string `json:"crossWalletBalance"`
	CrossUnPnl         string `json:"crossUnPnl"`
}

// accountPosition carries the venue's position row. The PnL field name has
// been observed under several spellings, so all are decoded and the first
// non-zero one wins.
type accountPosition struct {
	Symbol           string `json:"symbol"`
	PositionAmt      string `json:"positionAmt"`
	EntryPrice       string `json:"entryPrice"`
	MarkPrice        string `json:"markPrice"`
	UnrealizedPnl    string `json:"unrealizedPnl"`
	UnRealizedProfit string `json:"unRealizedProfit"`
	IsolatedMargin   string `json:"isolatedMargin"`
	Leverage         string `json:"leverage"`
	Percentage       string `json:"percentage"`
}

type accountResponse struct {
	TotalWalletBalance    string            `json:"totalWalletBalance"`
	TotalUnrealizedProfit string            `json:"totalUnrealizedProfit"`
	TotalMarginBalance    string            `json:"totalMarginBalance"`
	AvailableBalance      string            `json:"availableBalance"`
	Assets                []accountAsset    `json:"assets"`
	Positions             []accountPosition `json:"positions"`
}

type orderResponse struct {
	OrderID       int64  `json:"orderId"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	TimeInForce   string `json:"timeInForce"`
	OrigQty       string `json:"origQty"`
	Price         string `json:"price"`
	ExecutedQty   string `json:"executedQty"`
	AvgPrice      string `json:"avgPrice"`
	Time          int64  `json:"time"`
	UpdateTime    int64  `json:"updateTime"`
	ClientOrderID string `json:"clientOrderId"`
}

type tickerResponse struct {
	Symbol             string `json:"symbol"`
	BidPrice           string `json:"bidPrice"`
	AskPrice           string `json:"askPrice"`
	LastPrice          string `json:"lastPrice"`
	Volume             string `json:"volume"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	CloseTime          int64  `json:"closeTime"`
}

type depthResponse struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	EventTime    int64      `json:"E"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

type premiumIndexResponse struct {
	Symbol          string `json:"symbol"`
	MarkPrice       string `json:"markPrice"`
	LastFundingRate string `json:"lastFundingRate"`
	NextFundingTime int64  `json:"nextFundingTime"`
	Time            int64  `json:"time"`
}

type symbolFilter struct {
	FilterType  string `json:"filterType"`
	TickSize    string `json:"tickSize"`
	StepSize    string `json:"stepSize"`
	MinQty      string `json:"minQty"`
	MinNotional string `json:"minNotional"`
}

type symbolInfoResponse struct {
	Symbol     string         `json:"symbol"`
	Status     string         `json:"status"`
	BaseAsset  string         `json:"baseAsset"`
	QuoteAsset string         `json:"quoteAsset"`
	Filters    []symbolFilter `json:"filters"`
}

type exchangeInfoResponse struct {
	Timezone   string               `json:"timezone"`
	ServerTime int64                `json:"serverTime"`
	Symbols    []symbolInfoResponse `json:"symbols"`
}

type spotBalance struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

type spotAccountResponse struct {
	Balances []spotBalance `json:"balances"`
}

type leverageResponse struct {
	Symbol   string `json:"symbol"`
	Leverage int    `json:"leverage"`
}

type listenKeyResponse struct {
	ListenKey string `json:"listenKey"`
}

// Stream frame shapes.

type streamEventFrame struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
}

type tickerEvent struct {
	EventType          string `json:"e"`
	EventTime          int64  `json:"E"`
	Symbol             string `json:"s"`
	BidPrice           string `json:"b"`
	AskPrice           string `json:"a"`
	LastPrice          string `json:"c"`
	Volume             string `json:"v"`
	PriceChange        string `json:"p"`
	PriceChangePercent string `json:"P"`
	HighPrice          string `json:"h"`
	LowPrice           string `json:"l"`
}

type depthEvent struct {
	EventType string     `json:"e"`
	EventTime int64      `json:"E"`
	Symbol    string     `json:"s"`
	Bids      [][]string `json:"b"`
	Asks      [][]string `json:"a"`
}

type tradeEvent struct {
	EventType    string `json:"e"`
	EventTime    int64  `json:"E"`
	Symbol       string `json:"s"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	IsBuyerMaker bool   `json:"m"`
	TradeTime    int64  `json:"T"`
}

type klinePayload struct {
	StartTime int64  `json:"t"`
	CloseTime int64  `json:"T"`
	Symbol    string `json:"s"`
	Interval  string `json:"i"`
	Open      string `json:"o"`
	Close     string `json:"c"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Volume    string `json:"v"`
	IsFinal   bool   `json:"x"`
}

type klineEvent struct {
	EventType string       `json:"e"`
	EventTime int64        `json:"E"`
	Symbol    string       `json:"s"`
	Kline     klinePayload `json:"k"`
}

type combinedStreamEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}
