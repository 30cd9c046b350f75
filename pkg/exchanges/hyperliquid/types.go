package hyperliquid

import "encoding/json"

// Request and response shapes for the venue's POST /info endpoint. Every
// read is a typed body {"type": ..., ...}; numbers arrive as strings.

type infoRequest struct {
	Type string `json:"type"`
	User string `json:"user,omitempty"`
	Coin string `json:"coin,omitempty"`
	Oid  int64  `json:"oid,omitempty"`
}

type marginSummary struct {
	AccountValue    string `json:"accountValue"`
	TotalNtlPos     string `json:"totalNtlPos"`
	TotalRawUsd     string `json:"totalRawUsd"`
	TotalMarginUsed string `json:"totalMarginUsed"`
}

// positionDetail is one perpetual position. Leverage is decoded leniently:
// the field has been observed as a number, a string, and a nested
// {"type": ..., "value": ...} object.
type positionDetail struct {
	Coin           string          `json:"coin"`
	Szi            string          `json:"szi"`
	EntryPx        string          `json:"entryPx"`
	PositionValue  string          `json:"positionValue"`
	UnrealizedPnl  string          `json:"unrealizedPnl"`
	ReturnOnEquity string          `json:"returnOnEquity"`
	MarginUsed     string          `json:"marginUsed"`
	Leverage       json.RawMessage `json:"leverage"`
	LiquidationPx  string          `json:"liquidationPx"`
}

type assetPosition struct {
	Type     string         `json:"type"`
	Position positionDetail `json:"position"`
}

type clearinghouseState struct {
	MarginSummary      marginSummary   `json:"marginSummary"`
	CrossMarginSummary marginSummary   `json:"crossMarginSummary"`
	Withdrawable       string          `json:"withdrawable"`
	AssetPositions     []assetPosition `json:"assetPositions"`
}

type spotBalanceEntry struct {
	Coin  string `json:"coin"`
	Hold  string `json:"hold"`
	Total string `json:"total"`
}

type spotClearinghouseState struct {
	Balances []spotBalanceEntry `json:"balances"`
}

type universeEntry struct {
	Name         string `json:"name"`
	SzDecimals   int    `json:"szDecimals"`
	MaxLeverage  int    `json:"maxLeverage"`
	OnlyIsolated bool   `json:"onlyIsolated"`
}

type metaResponse struct {
	Universe []universeEntry `json:"universe"`
}

type spotUniverseEntry struct {
	Name   string `json:"name"`
	Tokens []int  `json:"tokens"`
	Index  int    `json:"index"`
}

type spotTokenEntry struct {
	Name        string `json:"name"`
	SzDecimals  int    `json:"szDecimals"`
	WeiDecimals int    `json:"weiDecimals"`
	Index       int    `json:"index"`
}

type spotMetaResponse struct {
	Universe []spotUniverseEntry `json:"universe"`
	Tokens   []spotTokenEntry    `json:"tokens"`
}

// assetCtx is the per-asset market context entry of metaAndAssetCtxs. The
// endpoint returns a two-element array [meta, ctxs] aligned by index.
type assetCtx struct {
	Funding      string `json:"funding"`
	MarkPx       string `json:"markPx"`
	MidPx        string `json:"midPx"`
	OraclePx     string `json:"oraclePx"`
	PrevDayPx    string `json:"prevDayPx"`
	DayNtlVlm    string `json:"dayNtlVlm"`
	OpenInterest string `json:"openInterest"`
}

type bookEntry struct {
	Px string `json:"px"`
	Sz string `json:"sz"`
	N  int    `json:"n"`
}

// l2BookResponse carries levels as [bids, asks].
type l2BookResponse struct {
	Coin   string        `json:"coin"`
	Time   int64         `json:"time"`
	Levels [][]bookEntry `json:"levels"`
}

// openOrder is one row of frontendOpenOrders. Side is "B" for bids and "A"
// for asks.
type openOrder struct {
	Coin       string `json:"coin"`
	Side       string `json:"side"`
	LimitPx    string `json:"limitPx"`
	Sz         string `json:"sz"`
	OrigSz     string `json:"origSz"`
	Oid        int64  `json:"oid"`
	Timestamp  int64  `json:"timestamp"`
	OrderType  string `json:"orderType"`
	ReduceOnly bool   `json:"reduceOnly"`
	Cloid      string `json:"cloid"`
}

type orderStatusResponse struct {
	Status string `json:"status"`
	Order  struct {
		Order           openOrder `json:"order"`
		Status          string    `json:"status"`
		StatusTimestamp int64     `json:"statusTimestamp"`
	} `json:"order"`
}

// Stream frame shapes. Push frames carry {"channel": ..., "data": ...}.

type wsEnvelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type wsSubscription struct {
	Type     string `json:"type"`
	Coin     string `json:"coin,omitempty"`
	Interval string `json:"interval,omitempty"`
	User     string `json:"user,omitempty"`
}

type wsCommand struct {
	Method       string         `json:"method"`
	Subscription wsSubscription `json:"subscription"`
}

type wsTrade struct {
	Coin string `json:"coin"`
	Side string `json:"side"`
	Px   string `json:"px"`
	Sz   string `json:"sz"`
	Time int64  `json:"time"`
	Hash string `json:"hash"`
}

type wsActiveAssetCtx struct {
	Coin string   `json:"coin"`
	Ctx  assetCtx `json:"ctx"`
}

type wsCandle struct {
	OpenTime  int64  `json:"t"`
	CloseTime int64  `json:"T"`
	Coin      string `json:"s"`
	Interval  string `json:"i"`
	Open      string `json:"o"`
	Close     string `json:"c"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Volume    string `json:"v"`
	Trades    int64  `json:"n"`
}
