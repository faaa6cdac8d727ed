package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(v float64) *float64 { return &v }

func TestSummarize(t *testing.T) {
	incidents := []Incident{
		{Fields: Row{ColType: "INCENDIO", ColStatus: "ATENDIENDO"}, UnitCount: ptr(3), Elevation: ptr(150)},
		{Fields: Row{ColType: "INCENDIO", ColStatus: "CERRADO"}, UnitCount: ptr(1), Elevation: ptr(90)},
		{Fields: Row{ColType: "RESCATE", ColStatus: "CERRADO"}, UnitCount: ptr(8)},
		{Fields: Row{ColStatus: "CERRADO"}},
	}

	s := Summarize(incidents, 2)

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Dropped)
	assert.Equal(t, []Count{
		{Name: "INCENDIO", Count: 2},
		{Name: "RESCATE", Count: 1},
		{Name: "Sin dato", Count: 1},
	}, s.ByType)
	assert.Equal(t, []Count{
		{Name: "CERRADO", Count: 3},
		{Name: "ATENDIENDO", Count: 1},
	}, s.ByStatus)

	assert.Equal(t, 3, s.Units.N)
	assert.InDelta(t, 4.0, s.Units.Mean, 1e-9)
	assert.InDelta(t, 3.0, s.Units.Median, 1e-9)
	assert.InDelta(t, 8.0, s.Units.Max, 1e-9)

	assert.Equal(t, 2, s.Elevation.N)
	assert.InDelta(t, 120.0, s.Elevation.Mean, 1e-9)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, 0)

	assert.Zero(t, s.Total)
	assert.Empty(t, s.ByType)
	assert.Equal(t, Stat{}, s.Units)
}
