package forecast

import (
	"math"

	"github.com/skalibog/whalewatch/pkg/models"
)

// Названия паттернов
const (
	PatternInsufficient = "Insufficient Data"
	PatternCoordinated  = "Coordinated Whale Activity"
	PatternErratic      = "Erratic Whale Behavior"
	PatternAccumulation = "Accumulation Phase"
	PatternDistribution = "Distribution Phase"
	PatternNormal       = "Normal Activity"
)

const (
	patternLookback     = 20
	patternMinEvents    = 5
	coordinatedMinCount = 10
	coordinatedRatio    = 0.3
	trendShare          = 0.6
)

// DetectPattern распознаёт режим по последним 20 китам.
// Правила проверяются строго сверху вниз, срабатывает первое.
// Граница координации строгая: timeVariance == 0.3*avgTimeSpan не считается координацией.
func DetectPattern(history []Record) models.Pattern {
	if len(history) < patternMinEvents {
		return models.Pattern{
			Name:        PatternInsufficient,
			Description: "Not enough whale events to detect a pattern",
			Confidence:  20,
			Implication: "Waiting for more data",
		}
	}

	recent := tail(history, patternLookback)

	gaps := make([]float64, 0, len(recent)-1)
	values := make([]float64, len(recent))
	for i, r := range recent {
		values[i] = r.Value
		if i > 0 {
			gaps = append(gaps, float64(r.Timestamp-recent[i-1].Timestamp))
		}
	}

	avgTimeSpan := mean(gaps)
	timeVariance := stdDev(gaps)
	volumeVariance := stdDev(values)

	switch {
	case len(recent) >= coordinatedMinCount && timeVariance < coordinatedRatio*avgTimeSpan:
		return models.Pattern{
			Name:        PatternCoordinated,
			Description: "Multiple whales acting in coordination",
			Confidence:  88,
			Implication: "Major market move expected",
		}
	case volumeVariance > 2*values[0]:
		return models.Pattern{
			Name:        PatternErratic,
			Description: "Unpredictable large trades",
			Confidence:  72,
			Implication: "High volatility expected",
		}
	}

	up, down := pairTrend(values)
	if up >= trendShare {
		return models.Pattern{
			Name:        PatternAccumulation,
			Description: "Steady buying pressure from whales",
			Confidence:  trendConfidence(up),
			Implication: "Price likely to increase",
		}
	}
	if down >= trendShare {
		return models.Pattern{
			Name:        PatternDistribution,
			Description: "Whales selling into strength",
			Confidence:  trendConfidence(down),
			Implication: "Price likely to decrease",
		}
	}

	return models.Pattern{
		Name:        PatternNormal,
		Description: "Standard whale trading patterns",
		Confidence:  55,
		Implication: "No major moves expected",
	}
}

// pairTrend доли строго возрастающих и строго убывающих соседних пар
func pairTrend(values []float64) (up, down float64) {
	pairs := len(values) - 1
	if pairs <= 0 {
		return 0, 0
	}
	var inc, dec int
	for i := 1; i < len(values); i++ {
		switch {
		case values[i] > values[i-1]:
			inc++
		case values[i] < values[i-1]:
			dec++
		}
	}
	return float64(inc) / float64(pairs), float64(dec) / float64(pairs)
}

func trendConfidence(strength float64) int {
	return int(math.Round(75 + strength*15))
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stdDev выборочное стандартное отклонение (n-1); 0 для n < 2
func stdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}
