package metrics

// Distance returns the Levenshtein edit distance between typed and target,
// counted in Unicode code points with unit cost for insertion, deletion and
// substitution.
func Distance(typed, target string) int {
	if typed == target {
		return 0
	}
	return runeDistance([]rune(typed), []rune(target))
}

// runeDistance runs the two-row dynamic program. The shorter sequence is laid
// along the row so the working set is O(min(len(a), len(b))).
func runeDistance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	if len(b) > len(a) {
		a, b = b, a
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		ca := a[i-1]
		for j := 1; j <= len(b); j++ {
			cost := 1
			if ca == b[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
