package report

import (
	"cmp"
	"slices"
)

// Priority ranks a candidate by how much a property test is likely to pay off.
type Priority string

// Priority bands.
const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// threshold is one classification boundary. Values >= limit get label.
type threshold[T cmp.Ordered, L any] struct {
	limit T
	label L
}

// classifier maps ordered values to labels using descending thresholds.
type classifier[T cmp.Ordered, L any] struct {
	thresholds   []threshold[T, L]
	defaultLabel L
}

// newClassifier copies thresholds and sorts them by descending limit.
func newClassifier[T cmp.Ordered, L any](thresholds []threshold[T, L], defaultLabel L) classifier[T, L] {
	sorted := slices.Clone(thresholds)

	slices.SortFunc(sorted, func(a, b threshold[T, L]) int {
		return cmp.Compare(b.limit, a.limit)
	})

	return classifier[T, L]{thresholds: sorted, defaultLabel: defaultLabel}
}

func (c classifier[T, L]) classify(value T) L {
	for _, t := range c.thresholds {
		if value >= t.limit {
			return t.label
		}
	}

	return c.defaultLabel
}

//nolint:gochecknoglobals // Immutable after init.
var priorityBands = newClassifier([]threshold[int, Priority]{
	{limit: 5, label: PriorityMedium},
	{limit: 8, label: PriorityHigh},
}, PriorityLow)

// PriorityOf returns the band of a candidate score: 8 and above is high,
// 5 to 7 medium, anything lower low.
func PriorityOf(score int) Priority {
	return priorityBands.classify(score)
}
