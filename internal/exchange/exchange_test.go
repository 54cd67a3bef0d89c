package exchange

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/adshao/go-binance/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skalibog/whalewatch/internal/config"
	"github.com/skalibog/whalewatch/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.SetLogger(zap.NewNop())
	os.Exit(m.Run())
}

func TestParseTrade(t *testing.T) {
	trade, err := ParseTrade("BTCUSDT", RawTrade{Price: "100.10", Quantity: "3", TradeTime: 1000, IsBuyerMaker: true})
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", trade.Symbol)
	assert.Equal(t, int64(1000), trade.Timestamp)
	assert.Equal(t, 100.10, trade.Price)
	assert.Equal(t, 3.0, trade.Quantity)
	assert.Equal(t, 300.3, trade.TradeValue)
	assert.True(t, trade.IsBuyerMaker)
	assert.False(t, trade.IsWhale)
}

func TestParseTradeRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  RawTrade
		want error
	}{
		{"нет времени", RawTrade{Price: "1", Quantity: "1"}, ErrMalformedPayload},
		{"цена не число", RawTrade{Price: "abc", Quantity: "1", TradeTime: 1}, ErrMalformedPayload},
		{"количество не число", RawTrade{Price: "1", Quantity: "", TradeTime: 1}, ErrMalformedPayload},
		{"нулевая цена", RawTrade{Price: "0", Quantity: "1", TradeTime: 1}, ErrInvalidPrice},
		{"отрицательная цена", RawTrade{Price: "-5", Quantity: "1", TradeTime: 1}, ErrInvalidPrice},
		{"отрицательное количество", RawTrade{Price: "5", Quantity: "-0.1", TradeTime: 1}, ErrInvalidQuantity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTrade("X", tt.raw)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBinanceClientSubscribe(t *testing.T) {
	doneC := make(chan struct{})
	stopC := make(chan struct{})
	var gotSymbol string

	c := &BinanceClient{serve: func(symbol string, handler binance.WsTradeHandler, errHandler binance.ErrHandler) (chan struct{}, chan struct{}, error) {
		gotSymbol = symbol
		handler(&binance.WsTradeEvent{Symbol: "BTCUSDT", Price: "1.5", Quantity: "2", TradeTime: 42, IsBuyerMaker: true})
		errHandler(errors.New("boom"))
		return doneC, stopC, nil
	}}

	var raws []RawTrade
	var errs []error
	done, stop, err := c.SubscribeTrades("btcusdt", func(r RawTrade) { raws = append(raws, r) }, func(err error) { errs = append(errs, err) })
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", gotSymbol)
	require.Len(t, raws, 1)
	assert.Equal(t, RawTrade{Symbol: "BTCUSDT", Price: "1.5", Quantity: "2", TradeTime: 42, IsBuyerMaker: true}, raws[0])
	require.Len(t, errs, 1)

	stop()
	stop()
	_, open := <-stopC
	assert.False(t, open)
	assert.NotNil(t, done)
}

func TestBinanceClientSubscribeError(t *testing.T) {
	c := &BinanceClient{serve: func(string, binance.WsTradeHandler, binance.ErrHandler) (chan struct{}, chan struct{}, error) {
		return nil, nil, errors.New("dial")
	}}
	_, _, err := c.SubscribeTrades("BTCUSDT", func(RawTrade) {}, func(error) {})
	assert.Error(t, err)
}

func testAsset() config.AssetConfig {
	return config.AssetConfig{
		Symbol:      "BTCUSDT",
		CoinGeckoID: "bitcoin",
		DisplayName: "Bitcoin",
		IconURL:     "https://example.com/btc.png",
	}
}

func testMetadataClient(url string) *MetadataClient {
	return NewMetadataClient(config.MetadataConfig{BaseURL: url, TimeoutSeconds: 1, Attempts: 2})
}

func TestMetadataFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/bitcoin", r.URL.Path)
		w.Write([]byte(`{"name":"Bitcoin Live","image":{"small":"https://cdn/btc-small.png"}}`))
	}))
	defer srv.Close()

	info := testMetadataClient(srv.URL).Fetch(context.Background(), testAsset())
	assert.Equal(t, "BTC", info.Symbol)
	assert.Equal(t, "Bitcoin Live", info.Name)
	assert.Equal(t, "https://cdn/btc-small.png", info.IconURL)
}

func TestMetadataFetchFallsBack(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	info := testMetadataClient(srv.URL).Fetch(context.Background(), testAsset())
	assert.Equal(t, Fallback(testAsset()), info)
	assert.Equal(t, int32(2), calls.Load())
}

func TestMetadataFetchBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	info := testMetadataClient(srv.URL).Fetch(context.Background(), testAsset())
	assert.Equal(t, "Bitcoin", info.Name)
}

func TestMetadataFetchCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	info := testMetadataClient(srv.URL).Fetch(ctx, testAsset())
	assert.Equal(t, Fallback(testAsset()), info)
}

func TestMetadataWithoutID(t *testing.T) {
	a := testAsset()
	a.CoinGeckoID = ""
	info := testMetadataClient("http://127.0.0.1:0").Fetch(context.Background(), a)
	assert.Equal(t, Fallback(a), info)
}

func TestDisplaySymbol(t *testing.T) {
	assert.Equal(t, "BTC", displaySymbol("BTCUSDT"))
	assert.Equal(t, "ETH", displaySymbol("ETHUSDC"))
	assert.Equal(t, "USDT", displaySymbol("USDT"))
	assert.Equal(t, "XYZ", displaySymbol("XYZ"))
}
