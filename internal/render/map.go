// Package render turns normalized incidents into the dashboard's map and table
// views and executes the embedded page templates.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"

	"github.com/couchcryptid/fire-incident-visor/internal/domain"
)

// MarkerStyle is the Leaflet circle-marker style shared by every incident.
type MarkerStyle struct {
	Radius      int     `json:"radius"`
	Color       string  `json:"color"`
	Fill        bool    `json:"fill"`
	FillColor   string  `json:"fillColor"`
	FillOpacity float64 `json:"fillOpacity"`
}

// MapOptions configures the initial map view and clustering.
type MapOptions struct {
	CenterLat     float64     `json:"centerLat"`
	CenterLon     float64     `json:"centerLon"`
	Zoom          int         `json:"zoom"`
	ScaleControl  bool        `json:"scaleControl"`
	Width         int         `json:"width"`
	Height        int         `json:"height"`
	ClusterRadius int         `json:"clusterRadius"`
	PopupMaxWidth int         `json:"popupMaxWidth"`
	Marker        MarkerStyle `json:"marker"`
}

// DefaultMapOptions centers the map on Lima Metropolitana.
func DefaultMapOptions() MapOptions {
	return MapOptions{
		CenterLat:     -12.0464,
		CenterLon:     -77.0428,
		Zoom:          11,
		ScaleControl:  true,
		Width:         1000,
		Height:        600,
		ClusterRadius: 80,
		PopupMaxWidth: 300,
		Marker: MarkerStyle{
			Radius:      6,
			Color:       "crimson",
			Fill:        true,
			FillColor:   "crimson",
			FillOpacity: 0.7,
		},
	}
}

// Marker is one clustered point on the map.
type Marker struct {
	Row   int     `json:"row"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Popup string  `json:"popup"`
}

// MapView is the data the page script needs to draw the map.
type MapView struct {
	Options MapOptions
	Markers []Marker
}

var popupTmpl = template.Must(template.New("popup").Parse(
	`<strong>Nro Parte:</strong> {{.Report}}<br>` +
		`<strong>Fecha:</strong> {{.Date}}<br>` +
		`<strong>Dirección:</strong> {{.Address}}<br>` +
		`<strong>Tipo:</strong> {{.Type}}<br>` +
		`<strong>Estado:</strong> {{.Status}}<br>` +
		`<strong>Máquinas:</strong> {{.Units}}<br>` +
		`<strong>Elevación:</strong> {{.Elevation}} m<br>` +
		`<strong>#Máquinas:</strong> {{.UnitCount}}<br>` +
		`<a href="{{.URL}}" target="_blank">Ver Mapa</a>`,
))

type popupData struct {
	Report    string
	Date      string
	Address   string
	Type      string
	Status    string
	Units     string
	Elevation string
	UnitCount string
	URL       string
}

// Popup renders the HTML shown when a marker is clicked. Every line is
// present; absent columns render empty.
func Popup(inc domain.Incident) (string, error) {
	var buf bytes.Buffer
	err := popupTmpl.Execute(&buf, popupData{
		Report:    inc.Field(domain.ColReport),
		Date:      inc.DateText(),
		Address:   inc.Field(domain.ColAddress),
		Type:      inc.Field(domain.ColType),
		Status:    inc.Field(domain.ColStatus),
		Units:     inc.Field(domain.ColUnits),
		Elevation: inc.Field(domain.ColElevation),
		UnitCount: inc.Field(domain.ColUnitCount),
		URL:       inc.Field(domain.ColURL),
	})
	if err != nil {
		return "", fmt.Errorf("render popup for row %d: %w", inc.Row, err)
	}
	return buf.String(), nil
}

// NewMapView builds one marker per projected incident. Marker positions come
// from the incident geometry, so Project must have run.
func NewMapView(incidents []domain.Incident, opts MapOptions) (*MapView, error) {
	markers := make([]Marker, 0, len(incidents))
	for _, inc := range incidents {
		if inc.Geometry == nil {
			return nil, fmt.Errorf("incident row %d has no geometry", inc.Row)
		}
		popup, err := Popup(inc)
		if err != nil {
			return nil, err
		}
		markers = append(markers, Marker{
			Row:   inc.Row,
			Lat:   inc.Geometry.Y(),
			Lon:   inc.Geometry.X(),
			Popup: popup,
		})
	}
	return &MapView{Options: opts, Markers: markers}, nil
}

// MarkersJSON encodes the markers for the page script.
func (v *MapView) MarkersJSON() (template.JS, error) {
	return marshalTemplateJS(v.Markers)
}

// OptionsJSON encodes the map options for the page script.
func (v *MapView) OptionsJSON() (template.JS, error) {
	return marshalTemplateJS(v.Options)
}

// marshalTemplateJS encodes value as JSON and marks it safe for a script
// context. encoding/json escapes <, > and & so the payload cannot close the
// surrounding script element.
func marshalTemplateJS(value any) (template.JS, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return template.JS(""), err
	}
	return template.JS(payload), nil //nolint:gosec // JSON payload, HTML-escaped by encoding/json
}
