package spectrum

import "math"

const (
	minDB = -80.0
	maxDB = 0.0

	// magnitudes at or below this are treated as silence
	silenceFloor = 1e-6
)

// Lin2dB converts a linear magnitude to decibels clamped to [-80, 0].
func Lin2dB(linear float64) float64 {
	if linear <= silenceFloor || math.IsNaN(linear) {
		return minDB
	}
	db := math.Log10(linear) * 20
	if db < minDB {
		return minDB
	}
	if db > maxDB {
		return maxDB
	}
	return db
}
