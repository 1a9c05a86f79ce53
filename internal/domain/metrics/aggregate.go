package metrics

// UnknownPack is the bucket for records that carry no pack identifier.
const UnknownPack = "unknown"

// Record is the slice of a stored attempt the aggregator needs.
type Record struct {
	WPM    float64
	CPM    float64
	CER    float64
	PackID string
}

// Summary holds the count and arithmetic means of a group of records.
type Summary struct {
	Attempts int     `json:"attempts"`
	WPM      float64 `json:"wpm"`
	CPM      float64 `json:"cpm"`
	CER      float64 `json:"cer"`
}

// PackSummary is a Summary for a single pack.
type PackSummary struct {
	PackID string `json:"pack_id"`
	Summary
}

// Progress is the aggregator output.
type Progress struct {
	Overall Summary       `json:"overall"`
	PerPack []PackSummary `json:"per_pack"`
}

type accumulator struct {
	n             int
	wpm, cpm, cer float64
}

func (a *accumulator) add(r Record) {
	a.n++
	a.wpm += r.WPM
	a.cpm += r.CPM
	a.cer += r.CER
}

func (a *accumulator) summary() Summary {
	if a.n == 0 {
		return Summary{}
	}
	n := float64(a.n)
	return Summary{Attempts: a.n, WPM: a.wpm / n, CPM: a.cpm / n, CER: a.cer / n}
}

// Aggregate folds records into overall and per-pack means. Pack ids are
// grouped by exact string equality; per-pack entries keep first-seen order.
func Aggregate(records []Record) Progress {
	var overall accumulator
	groups := map[string]*accumulator{}
	order := []string{}

	for _, r := range records {
		overall.add(r)

		key := r.PackID
		if key == "" {
			key = UnknownPack
		}
		acc, ok := groups[key]
		if !ok {
			acc = &accumulator{}
			groups[key] = acc
			order = append(order, key)
		}
		acc.add(r)
	}

	perPack := make([]PackSummary, 0, len(order))
	for _, key := range order {
		perPack = append(perPack, PackSummary{PackID: key, Summary: groups[key].summary()})
	}
	return Progress{Overall: overall.summary(), PerPack: perPack}
}
