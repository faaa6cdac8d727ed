package domain

import (
	"strconv"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// CRS identifies the coordinate reference system of incident geometries:
// WGS 84 longitude/latitude degrees, no projection.
const (
	CRS  = "EPSG:4326"
	SRID = 4326
)

// Project returns a copy of incidents with a point geometry attached to each,
// built from (Longitude, Latitude) in that axis order. Every input yields
// exactly one output.
func Project(incidents []Incident) []Incident {
	out := make([]Incident, len(incidents))
	for i, inc := range incidents {
		inc.Geometry = geom.NewPointFlat(geom.XY, []float64{inc.Longitude, inc.Latitude}).SetSRID(SRID)
		out[i] = inc
	}
	return out
}

// FeatureCollection encodes projected incidents as GeoJSON features. Incidents
// without geometry are skipped.
func FeatureCollection(incidents []Incident) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{
		Features: make([]*geojson.Feature, 0, len(incidents)),
	}
	for _, inc := range incidents {
		if inc.Geometry == nil {
			continue
		}
		props := make(map[string]interface{}, len(inc.Fields)+1)
		for k, v := range inc.Fields {
			props[k] = v
		}
		if _, ok := inc.Fields[ColDate]; ok {
			props[ColDate] = inc.DateText()
		}
		props["row"] = inc.Row
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         strconv.Itoa(inc.Row),
			Geometry:   inc.Geometry,
			Properties: props,
		})
	}
	return fc
}
