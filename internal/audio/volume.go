package audio

import "math"

// silentVolume is the beep volume used for a level of 0.
const silentVolume = -10

// levelToVolume converts a 0.0-1.0 level to beep's base-2 volume:
// 1.0 -> 0, 0.5 -> -1, 0.25 -> -2, 0 -> silent.
func levelToVolume(level float64) float64 {
	if level <= 0 {
		return silentVolume
	}
	if level >= 1 {
		return 0
	}
	return math.Log2(level)
}
