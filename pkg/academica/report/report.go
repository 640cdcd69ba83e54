// Package report derives the dashboard extracts from the store. It only reads.
package report

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/jszwec/csvutil"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/eeyn/academica/pkg/academica/store"
)

// Output file names.
const (
	FileInscriptosPorDia    = "inscriptos_por_dia.csv"
	FileComparativaCarreras = "inscriptos_vs_preinscriptos_por_carrera.csv"
	FilePreinscPorEstado    = "preinscripciones_por_estado.csv"
	FileEgresadosPorAnio    = "egresados_por_anio.csv"
	FileKPIs                = "kpis_inscripciones_carreras.csv"
)

// Summary lists the files written and the reports skipped for lack of data.
type Summary struct {
	Dir     string   `json:"dir"`
	Written []string `json:"written"`
	Skipped []string `json:"skipped"`
}

type dayCount struct {
	FechaInsc *string `db:"fecha_insc" csv:"fecha_insc"`
	Cantidad  int     `db:"cantidad" csv:"cantidad"`
}

type careerComparison struct {
	Carrera       string `db:"carrera" csv:"carrera"`
	Preinscriptos int    `db:"preinscriptos" csv:"preinscriptos"`
	Inscriptos    int    `db:"inscriptos" csv:"inscriptos"`
}

type stateCount struct {
	Estado   *string `db:"estado" csv:"estado"`
	Cantidad int     `db:"cantidad" csv:"cantidad"`
}

type yearCount struct {
	Anio      string `db:"anio" csv:"anio"`
	Egresados int    `db:"egresados" csv:"egresados"`
}

// KPI is one indicator of the enrolment dashboard.
type KPI struct {
	Indicator string `csv:"indicador"`
	Value     string `csv:"valor"`
}

type extract struct {
	file   string
	tables []string
	build  func(ctx context.Context, db *sqlx.DB) (interface{}, error)
}

var extracts = []extract{
	{
		file:   FileInscriptosPorDia,
		tables: []string{"inscripciones_carreras"},
		build: func(ctx context.Context, db *sqlx.DB) (interface{}, error) {
			var rows []dayCount
			err := db.SelectContext(ctx, &rows, `
				SELECT fecha_insc, COUNT(*) AS cantidad
				FROM inscripciones_carreras
				GROUP BY fecha_insc
				ORDER BY fecha_insc`)
			return rows, err
		},
	},
	{
		file:   FileComparativaCarreras,
		tables: []string{"preinscriptos", "inscripciones_carreras"},
		build: func(ctx context.Context, db *sqlx.DB) (interface{}, error) {
			var rows []careerComparison
			err := db.SelectContext(ctx, &rows, `
				SELECT carrera, SUM(pre) AS preinscriptos, SUM(ins) AS inscriptos
				FROM (
					SELECT carrera, 1 AS pre, 0 AS ins FROM preinscriptos
					UNION ALL
					SELECT carrera, 0, 1 FROM inscripciones_carreras WHERE estado_insc = 'Aceptada'
				)
				GROUP BY carrera
				ORDER BY carrera`)
			return rows, err
		},
	},
	{
		file:   FilePreinscPorEstado,
		tables: []string{"preinscriptos"},
		build: func(ctx context.Context, db *sqlx.DB) (interface{}, error) {
			var rows []stateCount
			err := db.SelectContext(ctx, &rows, `
				SELECT estado, COUNT(*) AS cantidad
				FROM preinscriptos
				GROUP BY estado
				ORDER BY cantidad DESC, estado`)
			return rows, err
		},
	},
	{
		file:   FileEgresadosPorAnio,
		tables: []string{"egresados"},
		build: func(ctx context.Context, db *sqlx.DB) (interface{}, error) {
			var rows []yearCount
			err := db.SelectContext(ctx, &rows, `
				SELECT substr(fecha_egreso, 1, 4) AS anio, COUNT(*) AS egresados
				FROM egresados
				WHERE fecha_egreso IS NOT NULL
				GROUP BY anio
				ORDER BY anio`)
			return rows, err
		},
	},
	{
		file:   FileKPIs,
		tables: []string{"preinscriptos", "inscripciones_carreras"},
		build: func(ctx context.Context, db *sqlx.DB) (interface{}, error) {
			return KPIs(ctx, db)
		},
	},
}

// KPIs computes the enrolment indicators: total pre-registrations, accepted
// enrolments, conversion rate and most frequent pre-registration state.
func KPIs(ctx context.Context, db *sqlx.DB) ([]KPI, error) {
	var pre, ins int64
	if err := db.GetContext(ctx, &pre, `SELECT COUNT(*) FROM preinscriptos`); err != nil {
		return nil, err
	}
	if err := db.GetContext(ctx, &ins, `SELECT COUNT(*) FROM inscripciones_carreras WHERE estado_insc = 'Aceptada'`); err != nil {
		return nil, err
	}
	rate := decimal.Zero
	if pre > 0 {
		rate = decimal.NewFromInt(ins).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(pre))
	}
	var states []stateCount
	if err := db.SelectContext(ctx, &states, `
		SELECT estado, COUNT(*) AS cantidad
		FROM preinscriptos
		GROUP BY estado
		ORDER BY cantidad DESC, estado
		LIMIT 1`); err != nil {
		return nil, err
	}
	top := ""
	if len(states) > 0 && states[0].Estado != nil {
		top = *states[0].Estado
	}
	return []KPI{
		{Indicator: "Total Preinscriptos", Value: decimal.NewFromInt(pre).String()},
		{Indicator: "Total Inscriptos Aceptados", Value: decimal.NewFromInt(ins).String()},
		{Indicator: "Tasa de Conversión (%)", Value: rate.StringFixed(2)},
		{Indicator: "Principal Estado Preinscripción", Value: top},
	}, nil
}

// Generate regenerates every extract in dir. Extracts whose source tables are
// missing are skipped with a warning and any stale copy is removed.
func Generate(ctx context.Context, st *store.Store, dir string, log logrus.FieldLogger) (*Summary, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create output directory")
	}
	sum := &Summary{Dir: dir}
	for _, x := range extracts {
		path := filepath.Join(dir, x.file)
		missing, err := missingTables(ctx, st, x.tables)
		if err != nil {
			return sum, err
		}
		if len(missing) > 0 {
			log.WithFields(logrus.Fields{"file": x.file, "missing": missing}).Warn("skipping report, source tables not found")
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return sum, err
			}
			sum.Skipped = append(sum.Skipped, x.file)
			continue
		}
		rows, err := x.build(ctx, st.DB())
		if err != nil {
			return sum, errors.Wrapf(err, "build %s", x.file)
		}
		if err := writeCSV(path, rows); err != nil {
			return sum, errors.Wrapf(err, "write %s", x.file)
		}
		log.WithField("file", path).Info("report written")
		sum.Written = append(sum.Written, x.file)
	}
	return sum, nil
}

func missingTables(ctx context.Context, st *store.Store, tables []string) ([]string, error) {
	var missing []string
	for _, t := range tables {
		ok, err := st.TableExists(ctx, t)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, t)
		}
	}
	return missing, nil
}

func writeCSV(path string, rows interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := csvutil.NewEncoder(w).Encode(rows); err != nil {
		f.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
