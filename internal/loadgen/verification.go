package loadgen

import (
	"context"
	"fmt"
	"math"

	typing "github.com/keystride/keystride/internal/domain/metrics"
	"github.com/keystride/keystride/pkg/logger"
)

// verifyProgress fetches each user's progress and compares it with a local
// aggregate of the metrics returned at submit time.
func verifyProgress(ctx context.Context, c *client, users []string, records map[string][]typing.Record, stats *Stats) error {
	log := logger.Named("loadgen")
	log.Info(ctx, "verifying progress", logger.Int("users", len(users)))

	for _, id := range users {
		got, err := c.progress(ctx, id)
		if err != nil {
			return fmt.Errorf("progress for %s: %w", id, err)
		}
		want := typing.Aggregate(records[id])
		if diffs := compareProgress(want, got); len(diffs) > 0 {
			stats.Mismatches++
			log.Warn(ctx, "progress mismatch",
				logger.String("user_id", id),
				logger.Any("diffs", diffs))
		}
		stats.UsersVerified++
	}

	if stats.Mismatches > 0 {
		return fmt.Errorf("%w: %d of %d users", ErrMismatch, stats.Mismatches, len(users))
	}
	log.Info(ctx, "progress verified")
	return nil
}

// compareProgress lists every field where got differs from want.
func compareProgress(want typing.Progress, got ProgressResponse) []string {
	diffs := compareSummary("overall", want.Overall, got.Overall)

	if len(want.PerPack) != len(got.PerPack) {
		diffs = append(diffs, fmt.Sprintf("per_pack: %d packs, want %d", len(got.PerPack), len(want.PerPack)))
	}
	byID := make(map[string]typing.Summary, len(got.PerPack))
	for _, p := range got.PerPack {
		byID[p.PackID] = p.Summary
	}
	for _, p := range want.PerPack {
		s, ok := byID[p.PackID]
		if !ok {
			diffs = append(diffs, fmt.Sprintf("per_pack[%s]: missing", p.PackID))
			continue
		}
		diffs = append(diffs, compareSummary("per_pack["+p.PackID+"]", p.Summary, s)...)
	}
	return diffs
}

func compareSummary(name string, want, got typing.Summary) []string {
	var diffs []string
	if want.Attempts != got.Attempts {
		diffs = append(diffs, fmt.Sprintf("%s.attempts: %d, want %d", name, got.Attempts, want.Attempts))
	}
	for _, f := range []struct {
		field     string
		want, got float64
	}{
		{"wpm", want.WPM, got.WPM},
		{"cpm", want.CPM, got.CPM},
		{"cer", want.CER, got.CER},
	} {
		if !approxEqual(f.want, f.got) {
			diffs = append(diffs, fmt.Sprintf("%s.%s: %g, want %g", name, f.field, f.got, f.want))
		}
	}
	return diffs
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) <= tolerance*math.Max(1, math.Abs(a))
}
