package forecast

import (
	"fmt"
	"math"
	"time"

	"github.com/skalibog/whalewatch/pkg/models"
)

// Коэффициент усиления влияния сделки на цену
const impactAmplification = 50

// PredictPriceImpact оценивает влияние сделки; market cap = price*supply
func PredictPriceImpact(price, value, supply float64) models.PriceImpact {
	var impact float64
	if marketCap := price * supply; marketCap > 0 {
		tradePercentage := value / marketCap * 100
		impact = tradePercentage * impactAmplification
	}

	var kind string
	var confidence int
	switch {
	case impact > 1.0:
		kind, confidence = "SEVERE", 90
	case impact > 0.5:
		kind, confidence = "MAJOR", 85
	case impact > 0.1:
		kind, confidence = "MODERATE", 75
	case impact > 0.01:
		kind, confidence = "MINOR", 65
	default:
		kind, confidence = "MINIMAL", 50
	}

	return models.PriceImpact{
		Percentage:    roundTo(impact, 4),
		Type:          kind,
		Confidence:    confidence,
		EstimatedMove: roundTo(price*impact/100, 2),
	}
}

const timingLookback = 10

// PredictNextWhale оценивает время до следующего кита по средним интервалам
func PredictNextWhale(history []Record, now time.Time) models.WhaleTiming {
	if len(history) < patternMinEvents {
		return models.WhaleTiming{Probability: 0, Timeframe: "Unknown", Confidence: 0}
	}

	recent := tail(history, timingLookback)
	var total float64
	for i := 1; i < len(recent); i++ {
		total += float64(recent[i].Timestamp - recent[i-1].Timestamp)
	}
	avgGap := total / float64(len(recent)-1)

	elapsed := float64(now.UnixMilli() - recent[len(recent)-1].Timestamp)
	if elapsed < 0 {
		elapsed = 0
	}

	probability := 100.0
	if avgGap > 0 {
		probability = math.Min(100, elapsed/avgGap*100)
	}
	expected := avgGap - elapsed

	return models.WhaleTiming{
		Probability: int(math.Round(probability)),
		Timeframe:   timeframe(expected),
		Confidence:  70,
	}
}

func timeframe(expectedMs float64) string {
	switch {
	case expectedMs < 0:
		return "Overdue"
	case expectedMs < 60_000:
		return fmt.Sprintf("%ds", int(math.Round(expectedMs/1000)))
	case expectedMs < 3_600_000:
		return fmt.Sprintf("%dm", int(math.Round(expectedMs/60_000)))
	default:
		return fmt.Sprintf("%dh", int(math.Round(expectedMs/3_600_000)))
	}
}

const (
	sentimentLookback  = 20
	sentimentMinEvents = 10
)

// MarketSentiment считает баланс повышений и понижений цены между соседними китами
func MarketSentiment(history []Record) models.Sentiment {
	if len(history) < sentimentMinEvents {
		return models.Sentiment{Label: "NEUTRAL", Score: 50}
	}

	recent := tail(history, sentimentLookback)
	net := 0
	for i := 1; i < len(recent); i++ {
		switch d := recent[i].Price - recent[i-1].Price; {
		case d > 0:
			net++
		case d < 0:
			net--
		}
	}

	score := (float64(net)/float64(len(recent)) + 1) * 50

	var label string
	switch {
	case score > 70:
		label = "VERY BULLISH"
	case score > 55:
		label = "BULLISH"
	case score > 45:
		label = "NEUTRAL"
	case score > 30:
		label = "BEARISH"
	default:
		label = "VERY BEARISH"
	}

	return models.Sentiment{Label: label, Score: int(math.Round(score))}
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
