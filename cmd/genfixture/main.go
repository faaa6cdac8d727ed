// Command genfixture writes a sample df_hoy.xlsx with realistic Lima
// incidents for local development. A few rows carry invalid coordinates so the
// dropped-row audit has something to show.
//
// Usage:
//
//	go run ./cmd/genfixture -out df_hoy.xlsx -rows 60
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/fire-incident-visor/internal/domain"
)

const sheet = "Sheet1"

var header = []any{
	"Nro Parte", "Fecha y hora", "Dirección / Distrito", "Tipo", "Estado",
	"Máquinas", "Latitude", "Longitude", "#Máquinas", "Elevation (m)", "Ver Mapa URL",
}

type district struct {
	name     string
	lat, lon float64
	elev     int
}

var districts = []district{
	{"Cercado de Lima", -12.0464, -77.0428, 154},
	{"Miraflores", -12.1211, -77.0297, 79},
	{"San Juan de Lurigancho", -11.9824, -77.0057, 250},
	{"Comas", -11.9326, -77.0497, 160},
	{"Ate", -12.0261, -76.9184, 355},
	{"San Martín de Porres", -12.0094, -77.0771, 116},
	{"Villa El Salvador", -12.2131, -76.9369, 175},
	{"Callao", -12.0566, -77.1181, 5},
	{"La Victoria", -12.0653, -77.0193, 140},
	{"Surco", -12.1459, -76.9916, 120},
}

var (
	streets  = []string{"Av. Abancay", "Jr. Lampa", "Av. Brasil", "Av. Arequipa", "Av. Túpac Amaru", "Av. Javier Prado", "Jr. Huallaga"}
	types    = []string{"INCENDIO / ESTRUCTURAS / VIVIENDA", "INCENDIO / PASTIZAL", "INCENDIO / VEHICULAR", "INCENDIO / COMERCIO", "FUGA DE GLP"}
	statuses = []string{"ATENDIENDO", "CERRADO"}
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "df_hoy.xlsx", "output workbook path")
	rows := flag.Int("rows", 60, "number of incident rows")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

	if *rows < 1 {
		return fmt.Errorf("-rows must be positive")
	}

	// Set a fixed clock for reproducible incident times. Workbooks carry no
	// zone, so the clock holds Lima wall-clock time labelled as UTC.
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, time.March, 15, 23, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	rng := rand.New(rand.NewPCG(*seed, *seed))
	dropped := 0
	for i := range *rows {
		row := incidentRow(rng, i)
		if i%12 == 5 {
			row[6] = "N/A"
			dropped++
		}
		if i%17 == 9 {
			row[7] = ""
			dropped++
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := f.SaveAs(*out); err != nil {
		return fmt.Errorf("save %s: %w", *out, err)
	}
	log.Printf("wrote %s: %d rows (%d with invalid coordinates)", *out, *rows, dropped)
	return nil
}

// incidentRow builds one row in header order. Times walk backwards from the
// clock so the newest incident is first.
func incidentRow(rng *rand.Rand, i int) []any {
	d := districts[rng.IntN(len(districts))]
	lat := round(d.lat+(rng.Float64()-0.5)*0.03, 6)
	lon := round(d.lon+(rng.Float64()-0.5)*0.03, 6)
	at := domain.Now().Add(-time.Duration(i*17+rng.IntN(15)) * time.Minute)
	units := 1 + rng.IntN(4)

	unitNames := ""
	for u := range units {
		if u > 0 {
			unitNames += ", "
		}
		unitNames += fmt.Sprintf("M%d-%d", 1+rng.IntN(200), 1+rng.IntN(3))
	}

	return []any{
		fmt.Sprintf("2024-%06d", 31000-i),
		at,
		fmt.Sprintf("%s %d / %s", streets[rng.IntN(len(streets))], 100+rng.IntN(1900), d.name),
		types[rng.IntN(len(types))],
		statuses[rng.IntN(len(statuses))],
		unitNames,
		lat,
		lon,
		units,
		d.elev + rng.IntN(20),
		fmt.Sprintf("https://www.google.com/maps?q=%.6f,%.6f", lat, lon),
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
