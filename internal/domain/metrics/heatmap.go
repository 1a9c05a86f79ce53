package metrics

// Sentinel heatmap keys for length mismatches. Both are longer than one code
// point so they can never collide with a literal character key.
const (
	KeyExtra   = "<extra>"
	KeyMissing = "<missing>"
)

// ErrorHeatmap counts mistyped target characters plus the two length sentinels.
type ErrorHeatmap map[string]int

// Heatmap compares typed and target position by position and attributes each
// mismatch to the target character that should have been typed.
//
// The comparison is positional, not aligned: after an insertion or deletion
// every later index is compared against a shifted counterpart. This is a known
// approximation and callers rely on its output as is.
func Heatmap(typed, target string) ErrorHeatmap {
	tr := []rune(typed)
	gr := []rune(target)

	heat := ErrorHeatmap{}
	n := min(len(tr), len(gr))
	for i := 0; i < n; i++ {
		if tr[i] != gr[i] {
			heat[string(gr[i])]++
		}
	}

	switch {
	case len(tr) > len(gr):
		heat[KeyExtra] += len(tr) - len(gr)
	case len(gr) > len(tr):
		heat[KeyMissing] += len(gr) - len(tr)
	}
	return heat
}

// Misses returns the positional mismatch count, excluding the sentinels.
func (h ErrorHeatmap) Misses() int {
	total := 0
	for k, v := range h {
		if k == KeyExtra || k == KeyMissing {
			continue
		}
		total += v
	}
	return total
}
