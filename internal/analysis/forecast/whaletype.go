package forecast

import "github.com/skalibog/whalewatch/pkg/models"

// Типы китов
const (
	TypeUnknown       = "Unknown"
	TypeAccumulator   = "Accumulator"
	TypeDistributor   = "Distributor"
	TypeMarketMaker   = "Market Maker"
	TypeInstitutional = "Institutional"
	TypeRetail        = "Retail Whale"
)

// Поведение
const (
	BehaviorBullish     = "BULLISH"
	BehaviorBearish     = "BEARISH"
	BehaviorNeutral     = "NEUTRAL"
	BehaviorSignificant = "SIGNIFICANT"
)

const whaleTypeLookback = 10

// ClassifyWhaleType определяет тип участника по последним 10 китам.
// Последняя запись истории считается текущим китом.
func ClassifyWhaleType(history []Record) models.WhaleType {
	recent := tail(history, whaleTypeLookback)
	if len(recent) < 3 {
		return models.WhaleType{
			Type:        TypeUnknown,
			Description: "Insufficient data",
			Confidence:  0,
			Behavior:    BehaviorNeutral,
			Color:       "#9598a1",
		}
	}

	current := recent[len(recent)-1]

	// нулевой интервал даёт +Inf: все киты в одну миллисекунду — максимальная частота
	spanMinutes := float64(current.Timestamp-recent[0].Timestamp) / 60_000
	frequency := float64(len(recent)) / spanMinutes

	var sum float64
	for _, r := range recent {
		sum += r.Value
	}
	avg := sum / float64(len(recent))
	volumeTrend := (current.Value - avg) / avg

	switch {
	case frequency > 0.5 && volumeTrend > 0.2:
		return models.WhaleType{
			Type:        TypeAccumulator,
			Description: "Large buyer accumulating position",
			Confidence:  85,
			Behavior:    BehaviorBullish,
			Color:       "#0ecb81",
		}
	case frequency > 0.5 && volumeTrend < -0.2:
		return models.WhaleType{
			Type:        TypeDistributor,
			Description: "Large seller distributing position",
			Confidence:  80,
			Behavior:    BehaviorBearish,
			Color:       "#f6465d",
		}
	case frequency > 0.8:
		return models.WhaleType{
			Type:        TypeMarketMaker,
			Description: "Providing liquidity / manipulating",
			Confidence:  75,
			Behavior:    BehaviorNeutral,
			Color:       "#f7931a",
		}
	case current.Value > 3*avg:
		return models.WhaleType{
			Type:        TypeInstitutional,
			Description: "Large institutional trade",
			Confidence:  70,
			Behavior:    BehaviorSignificant,
			Color:       "#c77dff",
		}
	default:
		return models.WhaleType{
			Type:        TypeRetail,
			Description: "Large retail trader",
			Confidence:  60,
			Behavior:    BehaviorNeutral,
			Color:       "#9598a1",
		}
	}
}
