package domain

import (
	"cmp"
	"slices"

	"github.com/montanaflynn/stats"
)

// Count is the number of incidents sharing a display value.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Stat describes a nullable numeric column. N counts non-null values; the
// other fields are zero when N is zero.
type Stat struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Max    float64 `json:"max"`
}

// Summary aggregates a normalized record set for the dashboard header.
type Summary struct {
	Total     int     `json:"total"`
	Dropped   int     `json:"dropped"`
	ByType    []Count `json:"by_type"`
	ByStatus  []Count `json:"by_status"`
	Units     Stat    `json:"units"`
	Elevation Stat    `json:"elevation"`
}

// Summarize counts incidents by Tipo and Estado and describes unit counts and
// elevations. Empty display values are grouped under "Sin dato".
func Summarize(incidents []Incident, dropped int) Summary {
	units := make([]float64, 0, len(incidents))
	elevations := make([]float64, 0, len(incidents))
	for _, inc := range incidents {
		if inc.UnitCount != nil {
			units = append(units, *inc.UnitCount)
		}
		if inc.Elevation != nil {
			elevations = append(elevations, *inc.Elevation)
		}
	}

	return Summary{
		Total:     len(incidents),
		Dropped:   dropped,
		ByType:    countBy(incidents, ColType),
		ByStatus:  countBy(incidents, ColStatus),
		Units:     describe(units),
		Elevation: describe(elevations),
	}
}

func countBy(incidents []Incident, column string) []Count {
	counts := make(map[string]int)
	for _, inc := range incidents {
		name := inc.Field(column)
		if name == "" {
			name = "Sin dato"
		}
		counts[name]++
	}

	out := make([]Count, 0, len(counts))
	for name, n := range counts {
		out = append(out, Count{Name: name, Count: n})
	}
	slices.SortFunc(out, func(a, b Count) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}

func describe(values []float64) Stat {
	if len(values) == 0 {
		return Stat{}
	}
	// stats only errors on empty input, which is excluded above.
	mean, _ := stats.Mean(values)
	median, _ := stats.Median(values)
	maxValue, _ := stats.Max(values)
	return Stat{N: len(values), Mean: mean, Median: median, Max: maxValue}
}
