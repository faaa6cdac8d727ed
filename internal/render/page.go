package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/fire-incident-visor/internal/domain"
)

// Title is the dashboard heading.
const Title = "🔥 Visor de Incendios Urbanos - Lima Metropolitana"

//go:embed templates/*.html
var templateFS embed.FS

// Renderer executes the dashboard and error page templates.
type Renderer struct {
	dashboard *template.Template
	errorPage *template.Template
}

type dashboardData struct {
	Title       string
	Source      string
	LoadedAt    time.Time
	Summary     domain.Summary
	Map         *MapView
	Table       *TableView
	MarkersJSON template.JS
	OptionsJSON template.JS
}

type errorData struct {
	Title   string
	Message string
}

var funcs = template.FuncMap{
	"base": filepath.Base,
	"datetime": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("02/01/2006 15:04:05")
	},
	"decimal": func(v float64) string {
		return strconv.FormatFloat(v, 'f', 1, 64)
	},
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	dashboard, err := template.New("dashboard.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/dashboard.html")
	if err != nil {
		return nil, fmt.Errorf("parse dashboard template: %w", err)
	}
	errorPage, err := template.New("error.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/error.html")
	if err != nil {
		return nil, fmt.Errorf("parse error template: %w", err)
	}
	return &Renderer{dashboard: dashboard, errorPage: errorPage}, nil
}

// Dashboard writes the full page for ds: heading, summary, and the Mapa and
// Tabla tabs. Output is buffered so a failed render writes nothing.
func (r *Renderer) Dashboard(w io.Writer, ds *domain.Dataset, opts MapOptions) error {
	mapView, err := NewMapView(ds.Incidents, opts)
	if err != nil {
		return err
	}
	markersJSON, err := mapView.MarkersJSON()
	if err != nil {
		return fmt.Errorf("marshal markers: %w", err)
	}
	optionsJSON, err := mapView.OptionsJSON()
	if err != nil {
		return fmt.Errorf("marshal map options: %w", err)
	}

	data := dashboardData{
		Title:       Title,
		Source:      ds.Source,
		LoadedAt:    ds.LoadedAt,
		Summary:     ds.Summary,
		Map:         mapView,
		Table:       NewTableView(ds.Headers, ds.Incidents),
		MarkersJSON: markersJSON,
		OptionsJSON: optionsJSON,
	}
	return execute(w, r.dashboard, data)
}

// Error writes a page that shows only the heading and message; no map or
// table is rendered.
func (r *Renderer) Error(w io.Writer, message string) error {
	return execute(w, r.errorPage, errorData{Title: Title, Message: message})
}

func execute(w io.Writer, tmpl *template.Template, data any) error {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("execute %s: %w", tmpl.Name(), err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// MissingFileMessage is the user-facing notice for an absent input file.
func MissingFileMessage(path string) string {
	return "No se encontró el archivo " + filepath.Base(path) + ". Verifica la ruta."
}
