package exchange

import (
	"errors"
	"fmt"
	"strings"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"github.com/skalibog/whalewatch/internal/config"
	"github.com/skalibog/whalewatch/pkg/models"
)

// Ошибки разбора сделок
var (
	ErrMalformedPayload = errors.New("некорректное сообщение сделки")
	ErrInvalidPrice     = errors.New("неположительная цена")
	ErrInvalidQuantity  = errors.New("неположительное количество")
)

// RawTrade сделка в том виде, в каком её присылает биржа
type RawTrade struct {
	Symbol       string
	Price        string
	Quantity     string
	TradeTime    int64
	IsBuyerMaker bool
}

// TradeStream потоковое подключение к сделкам одного символа.
// done закрывается при разрыве соединения, stop закрывает его принудительно.
type TradeStream interface {
	SubscribeTrades(symbol string, handler func(RawTrade), errHandler func(error)) (done <-chan struct{}, stop func(), err error)
}

// BinanceClient клиент для потока сделок Binance Spot
type BinanceClient struct {
	serve func(symbol string, handler binance.WsTradeHandler, errHandler binance.ErrHandler) (chan struct{}, chan struct{}, error)
}

// NewBinanceClient создает новый клиент Binance
func NewBinanceClient(cfg config.BinanceConfig) *BinanceClient {
	if cfg.Testnet {
		binance.UseTestnet = true
	}
	return &BinanceClient{serve: binance.WsTradeServe}
}

// SubscribeTrades подписывается на <symbol>@trade
func (c *BinanceClient) SubscribeTrades(symbol string, handler func(RawTrade), errHandler func(error)) (<-chan struct{}, func(), error) {
	doneC, stopC, err := c.serve(strings.ToUpper(symbol), func(ev *binance.WsTradeEvent) {
		handler(RawTrade{
			Symbol:       ev.Symbol,
			Price:        ev.Price,
			Quantity:     ev.Quantity,
			TradeTime:    ev.TradeTime,
			IsBuyerMaker: ev.IsBuyerMaker,
		})
	}, func(err error) {
		errHandler(err)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка подключения к потоку сделок %s: %w", symbol, err)
	}

	stopped := false
	stop := func() {
		if stopped {
			return
		}
		stopped = true
		close(stopC)
	}
	return doneC, stop, nil
}

// ParseTrade проверяет и преобразует сделку биржи.
// Цена и количество разбираются в decimal, стоимость считается без потери точности.
func ParseTrade(symbol string, raw RawTrade) (models.Trade, error) {
	if raw.TradeTime <= 0 {
		return models.Trade{}, fmt.Errorf("%w: timestamp %d", ErrMalformedPayload, raw.TradeTime)
	}
	price, err := decimal.NewFromString(raw.Price)
	if err != nil {
		return models.Trade{}, fmt.Errorf("%w: цена %q: %v", ErrMalformedPayload, raw.Price, err)
	}
	qty, err := decimal.NewFromString(raw.Quantity)
	if err != nil {
		return models.Trade{}, fmt.Errorf("%w: количество %q: %v", ErrMalformedPayload, raw.Quantity, err)
	}
	if !price.IsPositive() {
		return models.Trade{}, fmt.Errorf("%w: %s", ErrInvalidPrice, raw.Price)
	}
	if !qty.IsPositive() {
		return models.Trade{}, fmt.Errorf("%w: %s", ErrInvalidQuantity, raw.Quantity)
	}

	return models.Trade{
		Symbol:       symbol,
		Timestamp:    raw.TradeTime,
		Price:        price.InexactFloat64(),
		Quantity:     qty.InexactFloat64(),
		TradeValue:   price.Mul(qty).InexactFloat64(),
		IsBuyerMaker: raw.IsBuyerMaker,
	}, nil
}
