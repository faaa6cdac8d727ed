// Package domain models urban fire-incident reports for Lima Metropolitana.
//
// # Data Source
//
// Incident reports arrive as a single spreadsheet (df_hoy.xlsx by default)
// exported once per day from the fire department's public incident feed. One
// row is one incident. The file is replaced wholesale; rows are never updated
// in place, so a load is always a full replacement of the in-memory set.
//
// # Column Conventions
//
// The export uses a mix of English and Spanish headers. A fixed set is renamed
// to canonical names before any other step (see [RenameColumns]):
//
//	Latitude       →  Latitud
//	Longitude      →  Longitud
//	#Máquinas      →  Num_Maquinas
//	Elevation (m)  →  Elevacion
//	Fecha y hora   →  Fecha
//	Ver Mapa URL   →  URL
//
// Every other column passes through unchanged. The display columns
// "Nro Parte", "Dirección / Distrito", "Tipo", "Estado" and "Máquinas" are
// expected but optional: an absent column renders as empty text through
// [Incident.Field].
//
// Coordinates:
//
//	WGS-84 decimal degrees. Values are coerced-or-null: anything that is not a
//	finite number ("N/A", "", "NaN", "Inf") becomes null and the row is
//	dropped. Dropped rows are kept as [DroppedRow] entries so the loss is
//	auditable.
//
// Dates:
//
//	"Fecha y hora" is free-form in practice. [ParseFecha] accepts ISO layouts,
//	day-first layouts ("15/03/2024 14:32"), the excelize default display of
//	datetime cells ("3/15/24 14:32") and raw Excel serial numbers. Rows whose
//	date cannot be parsed keep their text for display and sort last.
//
// # Geometry
//
// [Project] attaches a point geometry in (longitude, latitude) axis order with
// SRID 4326. Coordinates are copied as-is; there is no reprojection.
package domain
