package domain

// TotalMinutes sums link minutes from begin to end and subtracts baseMinutes.
// Descending ranges count negatively, so TotalMinutes(b, a) == -TotalMinutes(a, b).
func (li *LineInfo) TotalMinutes(begin, end, baseMinutes int) int {
	total := 0
	for link := range li.LinksBetween(begin, end) {
		total += link.Minutes
	}
	if NormalizeIndex(begin, li.StationCount()) > NormalizeIndex(end, li.StationCount()) {
		total = -total
	}
	return total - baseMinutes
}

// TotalKilometers sums link kilometers from begin to end and subtracts baseKilometers.
func (li *LineInfo) TotalKilometers(begin, end int, baseKilometers float64) float64 {
	total := 0.0
	for link := range li.LinksBetween(begin, end) {
		total += link.Kilometers
	}
	if total != 0 && NormalizeIndex(begin, li.StationCount()) > NormalizeIndex(end, li.StationCount()) {
		total = -total
	}
	return total - baseKilometers
}

// Totals holds cumulative travel time and distance.
type Totals struct {
	Minutes    int     `json:"minutes"`
	Kilometers float64 `json:"kilometers"`
}

// BaseTotals returns the totals from the span's begin to its base station.
// Subtracting them re-anchors every later total at the base.
func (li *LineInfo) BaseTotals(span ResolvedSpan) Totals {
	return Totals{
		Minutes:    li.TotalMinutes(span.Begin, span.Base, 0),
		Kilometers: li.TotalKilometers(span.Begin, span.Base, 0),
	}
}

// Elapsed returns the totals from the span's base to station idx, walking
// from the span's begin.
func (li *LineInfo) Elapsed(span ResolvedSpan, base Totals, idx int) Totals {
	return Totals{
		Minutes:    li.TotalMinutes(span.Begin, idx, base.Minutes),
		Kilometers: li.TotalKilometers(span.Begin, idx, base.Kilometers),
	}
}
