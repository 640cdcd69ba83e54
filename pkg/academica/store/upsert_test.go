package store

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eeyn/academica/pkg/academica/models"
)

var egresadosSpec = TableSpec{
	Name:       "egresados",
	NaturalKey: []string{"documento", "propuesta", "plan"},
	Policy:     models.PolicyInsertOrIgnore,
}

func TestUpsertInsertOrIgnoreIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	stats, err := s.Upsert(ctx, egresadosSpec, egresadosBatch(5))
	require.NoError(t, err)
	assert.Equal(t, models.UpsertStats{Considered: 5, Inserted: 5}, stats)

	stats, err = s.Upsert(ctx, egresadosSpec, egresadosBatch(5))
	require.NoError(t, err)
	assert.Equal(t, models.UpsertStats{Considered: 5, Ignored: 5}, stats)

	n, err := s.Count(ctx, "egresados")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestUpsertInsertOrIgnoreKeepsExistingValues(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, egresadosSpec, egresadosBatch(1))
	require.NoError(t, err)

	b := egresadosBatch(1)
	b.Records[0]["fecha_egreso"] = "2024-07-01"
	_, err = s.Upsert(ctx, egresadosSpec, b)
	require.NoError(t, err)

	var got string
	require.NoError(t, s.DB().Get(&got, `SELECT fecha_egreso FROM egresados`))
	assert.Equal(t, "2023-12-15", got)
}

func TestUpsertInsertOrReplaceOverwrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	spec := TableSpec{
		Name:        "inscripciones_carreras",
		NaturalKey:  []string{"n_documento", "carrera"},
		Policy:      models.PolicyInsertOrReplace,
		ColumnTypes: map[string]string{"anio": "INTEGER"},
	}
	batch := func(estado string) *models.Batch {
		return &models.Batch{
			Columns: []string{"n_documento", "carrera", "estado_insc", "anio"},
			Records: []models.Record{
				{"n_documento": "111", "carrera": "CP-A", "estado_insc": estado, "anio": int64(2024)},
				{"n_documento": "222", "carrera": "CP-A", "estado_insc": "Aceptada", "anio": int64(2024)},
			},
		}
	}

	_, err := s.Upsert(ctx, spec, batch("Pendiente"))
	require.NoError(t, err)

	stats, err := s.Upsert(ctx, spec, batch("Aceptada"))
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Inserted)
	assert.Equal(t, 2, stats.Updated)

	var estado string
	require.NoError(t, s.DB().Get(&estado, `SELECT estado_insc FROM inscripciones_carreras WHERE n_documento = '111'`))
	assert.Equal(t, "Aceptada", estado)

	var anio int64
	require.NoError(t, s.DB().Get(&anio, `SELECT anio FROM inscripciones_carreras WHERE n_documento = '111'`))
	assert.Equal(t, int64(2024), anio)
}

func preinscriptosBatch(anio int64, n int) *models.Batch {
	b := &models.Batch{Columns: []string{"identificacion", "carrera", "estado", "anio"}}
	for i := 0; i < n; i++ {
		b.Records = append(b.Records, models.Record{
			"identificacion": fmt.Sprintf("%d", 5000+i),
			"carrera":        "CP-A",
			"estado":         "Pendiente",
			"anio":           anio,
		})
	}
	return b
}

var preinscriptosSpec = TableSpec{
	Name:         "preinscriptos",
	NaturalKey:   []string{"identificacion", "carrera", "anio"},
	Policy:       models.PolicyReplacePartition,
	PartitionKey: "anio",
	ColumnTypes:  map[string]string{"anio": "INTEGER"},
}

func TestUpsertReplacePartitionIsolatesPartitions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, preinscriptosSpec, preinscriptosBatch(2024, 10))
	require.NoError(t, err)
	_, err = s.Upsert(ctx, preinscriptosSpec, preinscriptosBatch(2025, 4))
	require.NoError(t, err)

	stats, err := s.Upsert(ctx, preinscriptosSpec, preinscriptosBatch(2024, 7))
	require.NoError(t, err)
	assert.Equal(t, 10, stats.Deleted)
	assert.Equal(t, 7, stats.Inserted)

	var counts []struct {
		Anio int64 `db:"anio"`
		N    int   `db:"n"`
	}
	require.NoError(t, s.DB().Select(&counts, `SELECT anio, COUNT(*) AS n FROM preinscriptos GROUP BY anio ORDER BY anio`))
	require.Len(t, counts, 2)
	assert.Equal(t, 7, counts[0].N)
	assert.Equal(t, 4, counts[1].N)
}

func TestUpsertReplacePartitionRejectsMixedBatch(t *testing.T) {
	s := openTestStore(t)
	b := preinscriptosBatch(2024, 2)
	b.Records[1]["anio"] = int64(2025)

	_, err := s.Upsert(context.Background(), preinscriptosSpec, b)
	assert.ErrorIs(t, err, ErrMixedPartition)
}

func TestUpsertEmptyBatchIsNoop(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.Upsert(ctx, preinscriptosSpec, preinscriptosBatch(2024, 3))
	require.NoError(t, err)

	stats, err := s.Upsert(ctx, preinscriptosSpec, &models.Batch{Columns: []string{"identificacion", "carrera", "anio"}})
	require.NoError(t, err)
	assert.Equal(t, models.UpsertStats{}, stats)

	n, err := s.Count(ctx, "preinscriptos")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestUpsertEvolveAddsColumns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	spec := TableSpec{
		Name:       "estudiantes",
		NaturalKey: []string{"tipo_y_n_documento", "carrera"},
		Policy:     models.PolicyEvolveAndReplace,
	}
	first := &models.Batch{
		Columns: []string{"tipo_y_n_documento", "carrera", "apellido_y_nombre"},
		Records: []models.Record{{"tipo_y_n_documento": "DNI 1", "carrera": "Sistemas", "apellido_y_nombre": "Perez"}},
	}
	_, err := s.Upsert(ctx, spec, first)
	require.NoError(t, err)

	second := &models.Batch{
		Columns: []string{"tipo_y_n_documento", "carrera", "apellido_y_nombre", "email"},
		Records: []models.Record{{"tipo_y_n_documento": "DNI 2", "carrera": "Sistemas", "apellido_y_nombre": "Gomez", "email": "g@x"}},
	}
	stats, err := s.Upsert(ctx, spec, second)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ColumnsAdded)
	assert.Equal(t, 1, stats.Inserted)

	var rows []struct {
		Doc    string         `db:"tipo_y_n_documento"`
		Nombre string         `db:"apellido_y_nombre"`
		Email  sql.NullString `db:"email"`
	}
	require.NoError(t, s.DB().Select(&rows, `SELECT tipo_y_n_documento, apellido_y_nombre, email FROM estudiantes ORDER BY tipo_y_n_documento`))
	require.Len(t, rows, 2)
	assert.Equal(t, "DNI 1", rows[0].Doc)
	assert.Equal(t, "Perez", rows[0].Nombre)
	assert.False(t, rows[0].Email.Valid)
	assert.Equal(t, sql.NullString{String: "g@x", Valid: true}, rows[1].Email)
}

func TestUpsertRejectsUnknownColumnWithoutEvolution(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.Upsert(ctx, egresadosSpec, egresadosBatch(1))
	require.NoError(t, err)

	b := egresadosBatch(2)
	b.AddColumn("extra")
	_, err = s.Upsert(ctx, egresadosSpec, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extra")

	n, err := s.Count(ctx, "egresados")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUpsertRollsBackOnFailure(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.DB().Exec(`CREATE TABLE planes (propuesta TEXT NOT NULL, plan TEXT NOT NULL, nombre TEXT NOT NULL, PRIMARY KEY (propuesta, plan))`)
	require.NoError(t, err)
	_, err = s.DB().Exec(`INSERT INTO planes VALUES ('Abogacía', '2019', 'viejo')`)
	require.NoError(t, err)

	spec := TableSpec{Name: "planes", NaturalKey: []string{"propuesta", "plan"}, Policy: models.PolicyInsertOrReplace}
	b := &models.Batch{
		Columns: []string{"propuesta", "plan", "nombre"},
		Records: []models.Record{
			{"propuesta": "Abogacía", "plan": "2019", "nombre": "nuevo"},
			{"propuesta": "Contador", "plan": "2018", "nombre": nil},
		},
	}
	_, err = s.Upsert(ctx, spec, b)
	require.Error(t, err)

	var nombre string
	require.NoError(t, s.DB().Get(&nombre, `SELECT nombre FROM planes WHERE propuesta = 'Abogacía'`))
	assert.Equal(t, "viejo", nombre)
	n, err := s.Count(ctx, "planes")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUpsertValidatesSpec(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, TableSpec{Name: "bad name", NaturalKey: []string{"a"}, Policy: models.PolicyInsertOrIgnore}, &models.Batch{})
	assert.Error(t, err)

	b := egresadosBatch(1)
	b.Columns = []string{"documento", "plan"}
	_, err = s.Upsert(ctx, egresadosSpec, b)
	assert.Error(t, err)
}
