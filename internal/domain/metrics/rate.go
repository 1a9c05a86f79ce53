package metrics

const (
	millisPerMinute = 60000.0
	charsPerWord    = 5.0
)

// ClampDuration raises non-positive durations to one millisecond.
func ClampDuration(durationMS int64) int64 {
	if durationMS < 1 {
		return 1
	}
	return durationMS
}

// Rates converts a typed character count and an elapsed duration into words
// per minute and characters per minute. A word is five characters regardless
// of script; cpm is the primary figure for logographic languages.
func Rates(charCount int, durationMS int64) (wpm, cpm float64) {
	minutes := float64(ClampDuration(durationMS)) / millisPerMinute
	if minutes <= 0 {
		return 0, 0
	}
	cpm = float64(charCount) / minutes
	wpm = (float64(charCount) / charsPerWord) / minutes
	return wpm, cpm
}
