package models

import (
	"encoding/json"
	"math"
)

// Trade представляет одну сделку из потока биржи
type Trade struct {
	Symbol        string  `json:"symbol"`
	Timestamp     int64   `json:"timestamp"`
	Price         float64 `json:"price"`
	Quantity      float64 `json:"quantity"`
	TradeValue    float64 `json:"tradeValue"`
	IsBuyerMaker  bool    `json:"isBuyerMaker"`
	IsWhale       bool    `json:"isWhale"`
	Category      string  `json:"category,omitempty"`
	CategoryLabel string  `json:"categoryLabel,omitempty"`
	CategoryColor string  `json:"categoryColor,omitempty"`
}

// WhaleCategory уровень таблицы порогов кита
type WhaleCategory struct {
	Name  string  `json:"name" yaml:"name"`
	Label string  `json:"label" yaml:"label"`
	Color string  `json:"color" yaml:"color"`
	Min   float64 `json:"min" yaml:"min"`
}

// WhaleEvent сделка кита вместе со снимком анализа на момент классификации
type WhaleEvent struct {
	Trade
	Analysis *AIAnalysis `json:"aiAnalysis,omitempty"`
	Message  string      `json:"message,omitempty"`
}

// Candle представляет минутную OHLCV свечу
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Metrics статистика по скользящему окну одного актива
type Metrics struct {
	Symbol         string  `json:"symbol"`
	High1h         float64 `json:"high1h"`
	Low1h          float64 `json:"-"`
	Volume1h       float64 `json:"volume1h"`
	TradeCount     int     `json:"tradeCount"`
	LastPrice      float64 `json:"lastPrice"`
	WhaleCount     int     `json:"whaleCount"`
	MaxWhaleAmount float64 `json:"maxWhaleAmount"`
	WhalePressure  string  `json:"whalePressure"`
	RSI            float64 `json:"rsi"`
}

// HasData false, если окно пустое и High1h/Low1h не несут информации
func (m Metrics) HasData() bool {
	return !math.IsInf(m.Low1h, 1)
}

// MarshalJSON сериализует Low1h как null при пустом окне
func (m Metrics) MarshalJSON() ([]byte, error) {
	type plain Metrics
	var low *float64
	if m.HasData() {
		v := m.Low1h
		low = &v
	}
	return json.Marshal(struct {
		plain
		Low1h *float64 `json:"low1h"`
	}{plain: plain(m), Low1h: low})
}

// Pattern результат распознавания режима активности китов
type Pattern struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Confidence  int    `json:"confidence"`
	Implication string `json:"implication"`
}

// WhaleType классификация типа участника
type WhaleType struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Confidence  int    `json:"confidence"`
	Behavior    string `json:"behavior"`
	Color       string `json:"color"`
}

// PriceImpact оценка влияния сделки на цену
type PriceImpact struct {
	Percentage    float64 `json:"percentage"`
	Type          string  `json:"type"`
	Confidence    int     `json:"confidence"`
	EstimatedMove float64 `json:"estimatedMove"`
}

// WhaleTiming прогноз появления следующего кита
type WhaleTiming struct {
	Probability int    `json:"probability"`
	Timeframe   string `json:"timeframe"`
	Confidence  int    `json:"confidence"`
}

// Sentiment настроение рынка по истории китов
type Sentiment struct {
	Label string `json:"label"`
	Score int    `json:"score"`
}

// Recommendation итоговая рекомендация
type Recommendation struct {
	Action     string `json:"action"`
	Reasoning  string `json:"reasoning"`
	Confidence int    `json:"confidence"`
	RiskLevel  string `json:"riskLevel"`
}

// AIAnalysis полный снимок эвристического анализа
type AIAnalysis struct {
	Pattern         Pattern        `json:"pattern"`
	WhaleType       WhaleType      `json:"whaleType"`
	PriceImpact     PriceImpact    `json:"priceImpact"`
	NextWhaleTiming WhaleTiming    `json:"nextWhaleTiming"`
	Sentiment       Sentiment      `json:"sentiment"`
	Recommendation  Recommendation `json:"recommendation"`
}

// AssetInfo метаданные актива для отображения
type AssetInfo struct {
	Symbol  string `json:"symbol"`
	Name    string `json:"name"`
	IconURL string `json:"logo"`
}

// WhaleSummary сводка по истории китов за период
type WhaleSummary struct {
	Symbol  string  `json:"symbol"`
	Count   int     `json:"count"`
	Total   float64 `json:"total"`
	Average float64 `json:"average"`
	Max     float64 `json:"max"`
}
