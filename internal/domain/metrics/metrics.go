// Package metrics is the typing-quality engine: edit distance, positional
// error heatmaps, typing rates and progress aggregation.
//
// Every function in this package is pure and safe for concurrent use.
package metrics

import (
	"math"
	"unicode/utf8"
)

// Input is one typing trial as submitted by a client.
type Input struct {
	Lang       string `json:"lang"`
	TypedText  string `json:"typed_text"`
	TargetText string `json:"target_text"`
	DurationMS int64  `json:"duration_ms"`
}

// Metrics is the derived performance of one trial.
type Metrics struct {
	WPM          float64      `json:"wpm"`
	CPM          float64      `json:"cpm"`
	CER          float64      `json:"cer"`
	Distance     int          `json:"distance"`
	DurationMS   int64        `json:"duration_ms"`
	ErrorHeatmap ErrorHeatmap `json:"error_heatmap"`

	// Accuracy is (1 - CER) as a percentage, floored at zero.
	Accuracy float64 `json:"accuracy"`
}

// Compute derives the metrics for a single trial. The language tag is carried
// for the caller's benefit only; both rates are always computed.
func Compute(in Input) Metrics {
	duration := ClampDuration(in.DurationMS)

	distance := Distance(in.TypedText, in.TargetText)
	cer := float64(distance) / float64(max(1, utf8.RuneCountInString(in.TargetText)))
	wpm, cpm := Rates(utf8.RuneCountInString(in.TypedText), duration)

	return Metrics{
		WPM:          wpm,
		CPM:          cpm,
		CER:          cer,
		Distance:     distance,
		DurationMS:   duration,
		ErrorHeatmap: Heatmap(in.TypedText, in.TargetText),
		Accuracy:     math.Max(0, 1-cer) * 100,
	}
}
