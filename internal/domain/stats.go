package domain

import "math"

// ConversionRate returns conversions as a percentage of participants, rounded
// to one decimal place. Zero-safe: returns 0 when there are no participants.
func ConversionRate(conversions, participants int64) float64 {
	if participants <= 0 {
		return 0
	}
	return Round1(float64(conversions) / float64(participants) * 100)
}

// RelativeLift returns the percentage change of treatmentRate over
// controlRate, rounded to one decimal place. Zero-safe: returns 0 when the
// control rate is zero.
func RelativeLift(controlRate, treatmentRate float64) float64 {
	if controlRate == 0 {
		return 0
	}
	return Round1((treatmentRate - controlRate) / controlRate * 100)
}

// NeedsMoreData reports whether totalParticipants is below the fixed sample-size gate.
func NeedsMoreData(totalParticipants int64) bool {
	return totalParticipants < NeedsMoreDataThreshold
}

// Round1 rounds v half away from zero to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
