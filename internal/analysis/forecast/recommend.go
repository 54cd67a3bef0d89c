package forecast

import (
	"math"

	"github.com/skalibog/whalewatch/pkg/models"
)

// Действия
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
	ActionWait = "WAIT"
	ActionHold = "HOLD"
)

// Уровни риска
const (
	RiskLow    = "LOW"
	RiskMedium = "MEDIUM"
	RiskHigh   = "HIGH"
)

// Recommend сводит тип кита и паттерн в рекомендацию.
// Каскад: сильный совпадающий сигнал → одиночный сигнал → координация →
// маркет-мейкер → нехватка данных → смешанные сигналы.
func Recommend(p models.Pattern, w models.WhaleType) models.Recommendation {
	pc, wc := float64(p.Confidence), float64(w.Confidence)

	bullType := w.Behavior == BehaviorBullish
	bearType := w.Behavior == BehaviorBearish
	accumulation := p.Name == PatternAccumulation
	distribution := p.Name == PatternDistribution

	var action, reasoning string
	var confidence float64

	switch {
	case bullType && accumulation:
		action = ActionBuy
		reasoning = "Whales accumulating + accumulation pattern detected"
		confidence = math.Round((pc+wc)/2) + 10
	case bearType && distribution:
		action = ActionSell
		reasoning = "Whales distributing + distribution pattern detected"
		confidence = math.Round((pc+wc)/2) + 10

	case bullType && !distribution:
		action = ActionBuy
		reasoning = "Accumulating whale without a confirming pattern"
		confidence = math.Round(wc * 0.8)
	case accumulation && !bearType:
		action = ActionBuy
		reasoning = "Accumulation pattern without a confirming whale type"
		confidence = math.Round(pc * 0.8)
	case bearType && !accumulation:
		action = ActionSell
		reasoning = "Distributing whale without a confirming pattern"
		confidence = math.Round(wc * 0.8)
	case distribution && !bullType:
		action = ActionSell
		reasoning = "Distribution pattern without a confirming whale type"
		confidence = math.Round(pc * 0.8)

	case p.Name == PatternCoordinated:
		action = ActionWait
		reasoning = "Coordinated whale activity - wait for direction"
		confidence = math.Round(pc * 0.8)
	case w.Type == TypeMarketMaker:
		action = ActionHold
		reasoning = "Market maker activity - avoid chasing"
		confidence = math.Round(wc * 0.85)
	case p.Name == PatternInsufficient || w.Type == TypeUnknown:
		action = ActionWait
		reasoning = "Not enough whale history for a reliable signal"
		confidence = math.Round((pc + wc) / 2)
	default:
		action = ActionHold
		reasoning = "No clear signals from whale activity"
		confidence = math.Round((pc + wc) / 2 * 0.7)
	}

	c := clampConfidence(confidence)
	return models.Recommendation{
		Action:     action,
		Reasoning:  reasoning,
		Confidence: c,
		RiskLevel:  RiskLevel(c),
	}
}

// RiskLevel монотонно невозрастающая функция уверенности
func RiskLevel(confidence int) string {
	switch {
	case confidence >= 80:
		return RiskLow
	case confidence >= 60:
		return RiskMedium
	default:
		return RiskHigh
	}
}

func clampConfidence(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Max(0, math.Min(100, v)))
}
