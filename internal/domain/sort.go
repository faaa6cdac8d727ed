package domain

import "slices"

// SortByDateDesc returns incidents ordered by Fecha, most recent first. The
// sort is stable. Incidents without a parseable date go last, in load order.
func SortByDateDesc(incidents []Incident) []Incident {
	out := slices.Clone(incidents)
	slices.SortStableFunc(out, func(a, b Incident) int {
		switch {
		case a.HasDate() && b.HasDate():
			return b.Date.Compare(a.Date)
		case a.HasDate():
			return -1
		case b.HasDate():
			return 1
		default:
			return 0
		}
	})
	return out
}
