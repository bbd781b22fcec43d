// Package binance is a REST adapter for Binance spot and USDⓈ-M futures:
// klines, quote balance and signed market orders.
package binance

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
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/breakout/broker"
	"github.com/rustyeddy/breakout/market"
)

const (
	SpotURL           = "https://api.binance.com"
	SpotTestnetURL    = "https://testnet.binance.vision"
	FuturesURL        = "https://fapi.binance.com"
	FuturesTestnetURL = "https://testnet.binancefuture.com"

	// MaxKlines is the largest limit the klines endpoints accept.
	MaxKlines = 1000
)

// Market selects the spot or the USDⓈ-M futures API.
type Market string

const (
	Spot    Market = "spot"
	Futures Market = "futures"
)

var ErrMissingCredentials = errors.New("binance api key and secret are required")

// APIError is the error body Binance returns with a non-2xx status.
type APIError struct {
	Status int    `json:"-"`
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance: status %d code %d: %s", e.Status, e.Code, e.Msg)
}

type Config struct {
	APIKey  string
	Secret  string
	Market  Market
	Testnet bool

	// BaseURL overrides the endpoint picked from Market and Testnet.
	BaseURL string

	// QuantityPrecision is the number of decimals order sizes are
	// truncated to (the symbol's LOT_SIZE step).
	QuantityPrecision int32

	RecvWindow time.Duration
	Timeout    time.Duration
}

// Client talks to one Binance market. It implements broker.Exchange.
type Client struct {
	baseURL    string
	apiKey     string
	secret     string
	market     Market
	qtyPrec    int32
	recvWindow time.Duration
	httpClient *http.Client
	now        func() time.Time
	quote      string
}

func NewClient(cfg Config) *Client {
	if cfg.Market == "" {
		cfg.Market = Spot
	}
	base := cfg.BaseURL
	if base == "" {
		switch {
		case cfg.Market == Futures && cfg.Testnet:
			base = FuturesTestnetURL
		case cfg.Market == Futures:
			base = FuturesURL
		case cfg.Testnet:
			base = SpotTestnetURL
		default:
			base = SpotURL
		}
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RecvWindow == 0 {
		cfg.RecvWindow = 5 * time.Second
	}
	if cfg.QuantityPrecision == 0 {
		cfg.QuantityPrecision = 5
	}

	return &Client{
		baseURL:    base,
		apiKey:     cfg.APIKey,
		secret:     cfg.Secret,
		market:     cfg.Market,
		qtyPrec:    cfg.QuantityPrecision,
		recvWindow: cfg.RecvWindow,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
		quote:      "USDT",
	}
}

// WithQuote sets the asset FetchBalance reports.
func (c *Client) WithQuote(asset string) *Client {
	c.quote = asset
	return c
}

func (c *Client) path(spot, futures string) string {
	if c.market == Futures {
		return futures
	}
	return spot
}

// FetchBars returns the last limit klines for symbol, oldest first.
func (c *Client) FetchBars(ctx context.Context, symbol market.Symbol, timeframe string, limit int) ([]market.Bar, error) {
	if err := symbol.Validate(); err != nil {
		return nil, err
	}
	if _, err := market.ParseTimeframe(timeframe); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > MaxKlines {
		return nil, fmt.Errorf("limit %d out of range 1..%d", limit, MaxKlines)
	}

	params := url.Values{}
	params.Set("symbol", symbol.Compact())
	params.Set("interval", timeframe)
	params.Set("limit", strconv.Itoa(limit))

	var rows [][]json.RawMessage
	if err := c.do(ctx, http.MethodGet, c.path("/api/v3/klines", "/fapi/v1/klines"), params, false, &rows); err != nil {
		return nil, fmt.Errorf("fetch klines %s %s: %w", symbol, timeframe, err)
	}

	bars := make([]market.Bar, 0, len(rows))
	for i, row := range rows {
		b, err := parseKline(row)
		if err != nil {
			return nil, fmt.Errorf("kline %d: %w", i, err)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

// parseKline decodes [openTime, open, high, low, close, volume, ...].
func parseKline(row []json.RawMessage) (market.Bar, error) {
	if len(row) < 6 {
		return market.Bar{}, fmt.Errorf("expected at least 6 fields, got %d", len(row))
	}
	var openMs int64
	if err := json.Unmarshal(row[0], &openMs); err != nil {
		return market.Bar{}, fmt.Errorf("open time: %w", err)
	}

	var vals [5]float64
	for i := range vals {
		var s string
		if err := json.Unmarshal(row[i+1], &s); err != nil {
			return market.Bar{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return market.Bar{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		vals[i] = d.InexactFloat64()
	}

	return market.Bar{
		Time:   time.UnixMilli(openMs).UTC(),
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}

type spotAccount struct {
	Balances []struct {
		Asset  string `json:"asset"`
		Free   string `json:"free"`
		Locked string `json:"locked"`
	} `json:"balances"`
}

type futuresBalance struct {
	Asset            string `json:"asset"`
	Balance          string `json:"balance"`
	AvailableBalance string `json:"availableBalance"`
}

// FetchBalance returns the free balance of the quote asset.
func (c *Client) FetchBalance(ctx context.Context) (float64, error) {
	if c.market == Futures {
		var rows []futuresBalance
		if err := c.do(ctx, http.MethodGet, "/fapi/v2/balance", url.Values{}, true, &rows); err != nil {
			return 0, fmt.Errorf("fetch balance: %w", err)
		}
		for _, r := range rows {
			if r.Asset == c.quote {
				return parseDecimal(r.AvailableBalance)
			}
		}
		return 0, nil
	}

	var acct spotAccount
	if err := c.do(ctx, http.MethodGet, "/api/v3/account", url.Values{}, true, &acct); err != nil {
		return 0, fmt.Errorf("fetch balance: %w", err)
	}
	for _, b := range acct.Balances {
		if b.Asset == c.quote {
			return parseDecimal(b.Free)
		}
	}
	return 0, nil
}

type orderResponse struct {
	OrderID      int64  `json:"orderId"`
	ExecutedQty  string `json:"executedQty"`
	CumQuote     string `json:"cummulativeQuoteQty"` // spot
	CumQuoteFut  string `json:"cumQuote"`            // futures
	AvgPrice     string `json:"avgPrice"`            // futures
	TransactTime int64  `json:"transactTime"`
	UpdateTime   int64  `json:"updateTime"`
}

// SubmitOrder places a MARKET order and reports its average fill price.
func (c *Client) SubmitOrder(ctx context.Context, req broker.OrderRequest) (broker.Fill, error) {
	if err := req.Validate(); err != nil {
		return broker.Fill{}, err
	}
	qty := decimal.NewFromFloat(req.Size).Truncate(c.qtyPrec)
	if !qty.IsPositive() {
		return broker.Fill{}, fmt.Errorf("size %v below lot precision %d: %w", req.Size, c.qtyPrec, broker.ErrInvalidOrder)
	}

	params := url.Values{}
	params.Set("symbol", req.Symbol.Compact())
	params.Set("side", string(req.Side))
	params.Set("type", "MARKET")
	params.Set("quantity", qty.String())
	if c.market == Futures {
		params.Set("newOrderRespType", "RESULT")
		if req.ReduceOnly {
			params.Set("reduceOnly", "true")
		}
	} else {
		params.Set("newOrderRespType", "FULL")
	}

	var resp orderResponse
	if err := c.do(ctx, http.MethodPost, c.path("/api/v3/order", "/fapi/v1/order"), params, true, &resp); err != nil {
		return broker.Fill{}, fmt.Errorf("submit %s %s %s: %w", req.Side, qty, req.Symbol, err)
	}

	fill := broker.Fill{
		OrderID: strconv.FormatInt(resp.OrderID, 10),
		Symbol:  req.Symbol,
		Side:    req.Side,
		Size:    qty.InexactFloat64(),
		Price:   resp.fillPrice(),
	}
	switch {
	case resp.TransactTime > 0:
		fill.Time = time.UnixMilli(resp.TransactTime).UTC()
	case resp.UpdateTime > 0:
		fill.Time = time.UnixMilli(resp.UpdateTime).UTC()
	}
	if executed, err := decimal.NewFromString(resp.ExecutedQty); err == nil && executed.IsPositive() {
		fill.Size = executed.InexactFloat64()
	}
	return fill, nil
}

func (r orderResponse) fillPrice() float64 {
	if avg, err := decimal.NewFromString(r.AvgPrice); err == nil && avg.IsPositive() {
		return avg.InexactFloat64()
	}
	executed, err := decimal.NewFromString(r.ExecutedQty)
	if err != nil || !executed.IsPositive() {
		return 0
	}
	quote := r.CumQuote
	if quote == "" {
		quote = r.CumQuoteFut
	}
	cum, err := decimal.NewFromString(quote)
	if err != nil {
		return 0
	}
	return cum.Div(executed).InexactFloat64()
}

// sign adds the timing parameters and returns the query string with the
// HMAC-SHA256 signature appended last.
func (c *Client) sign(params url.Values) string {
	params.Set("recvWindow", strconv.FormatInt(c.recvWindow.Milliseconds(), 10))
	params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	query := params.Encode()
	mac := hmac.New(sha256.New, []byte(c.secret))
	mac.Write([]byte(query))
	return query + "&signature=" + hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, signed bool, out any) error {
	query := params.Encode()
	if signed {
		if c.apiKey == "" || c.secret == "" {
			return ErrMissingCredentials
		}
		query = c.sign(params)
	}

	apiURL := c.baseURL + path
	if query != "" {
		apiURL += "?" + query
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, apiURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if signed {
		httpReq.Header.Set("X-MBX-APIKEY", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(body, apiErr) != nil || apiErr.Msg == "" {
			apiErr.Msg = string(body)
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseDecimal(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, err)
	}
	return d.InexactFloat64(), nil
}
