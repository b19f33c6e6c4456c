package resolutions

// Stats carries the aggregate view over all stored records. Averages are
// nil when no record discloses the respective score, so "no data" is
// distinguishable from an average of zero.
type Stats struct {
	Total             int
	AveragePastYear   *float64
	AverageNewYear    *float64
	AverageConfidence *float64
	CategoryCounts    map[string]int
	MotivationCounts  map[string]int
}

// Aggregate computes summary statistics over the full record set. It is a
// pure function: no hidden state, no I/O. Score averages only include
// records where the score is present; absent values are excluded from both
// numerator and denominator. Category and motivation counts flatten each
// record's set, so a record selecting several categories contributes one
// count to each.
func Aggregate(records []Record) Stats {
	stats := Stats{
		Total:            len(records),
		CategoryCounts:   make(map[string]int),
		MotivationCounts: make(map[string]int),
	}

	pastYear := scoreAccumulator{}
	newYear := scoreAccumulator{}
	confidence := scoreAccumulator{}

	for _, record := range records {
		pastYear.add(record.PastYearScore)
		newYear.add(record.NewYearScore)
		confidence.add(record.CompletionConfidence)

		for _, category := range record.Categories() {
			stats.CategoryCounts[category]++
		}
		for _, motivation := range record.Motivations() {
			stats.MotivationCounts[motivation]++
		}
	}

	stats.AveragePastYear = pastYear.average()
	stats.AverageNewYear = newYear.average()
	stats.AverageConfidence = confidence.average()
	return stats
}

type scoreAccumulator struct {
	sum   int64
	count int64
}

func (a *scoreAccumulator) add(score *int64) {
	if score == nil {
		return
	}
	a.sum += *score
	a.count++
}

func (a *scoreAccumulator) average() *float64 {
	if a.count == 0 {
		return nil
	}
	value := float64(a.sum) / float64(a.count)
	return &value
}
