package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eeyn/academica/pkg/academica/layout"
	"github.com/eeyn/academica/pkg/academica/models"
	"github.com/eeyn/academica/pkg/academica/parser"
)

func defaultLayout(t *testing.T, table string) *layout.Layout {
	t.Helper()
	reg, err := layout.Default()
	require.NoError(t, err)
	l, err := reg.Get(table)
	require.NoError(t, err)
	return l
}

func TestApplyInscripcionesCarreras(t *testing.T) {
	l := defaultLayout(t, "inscripciones_carreras")
	rows := [][]string{
		{"Ingeniería (CP-A)"},
		{"Apellido y Nombre", "N° Documento", "Plan", "Versión", "Fecha Insc.", "Fecha Ingreso", "Estado"},
		{"Perez, Ana", "111", "2020", "1", "01/02/2024", "N/A", "Aceptada"},
		{"Gomez, Luis", "222", "2020", "1", "02/02/2024", "", "Pendiente"},
		{"Perez, Ana", "111", "2020", "2", "03/02/2024", "", "Aceptada"},
	}
	r := parser.New(parser.NewSliceSource(rows), l, models.NewCodeSet("CP-A"), nil)
	batch, stats, err := Apply(l, r, Options{Metadata: map[string]string{"anio": "2024"}})
	require.NoError(t, err)

	require.Equal(t, 2, batch.Len())
	assert.Equal(t, 1, stats.Duplicates)
	first := batch.Records[0]
	assert.Equal(t, "111", first["n_documento"])
	assert.Equal(t, "2", first["version"])
	assert.Equal(t, "2024-02-03", first["fecha_insc"])
	assert.Nil(t, first["fecha_ingreso"])
	assert.Equal(t, int64(2024), first["anio"])
	assert.Equal(t, "222", batch.Records[1]["n_documento"])
	assert.Contains(t, batch.Columns, "anio")
	assert.Contains(t, batch.Columns, "carrera")
}

func TestApplyRequiresMetadata(t *testing.T) {
	l := defaultLayout(t, "preinscriptos")
	r := parser.New(parser.NewSliceSource(nil), l, models.NewCodeSet(), nil)

	_, _, err := Apply(l, r, Options{})
	assert.ErrorIs(t, err, ErrMissingMetadata)

	_, _, err = Apply(l, r, Options{Metadata: map[string]string{"anio": "dos mil"}})
	assert.Error(t, err)
}

func TestApplyFiltersAndDropsMissingKeys(t *testing.T) {
	l := defaultLayout(t, "inscripciones_cursadas")
	rows := [][]string{
		{"Comisión (CP-A)"},
		{"Alumno", "Identificación", "", "Comisión", "Estado Insc.", "", "Fecha"},
		{"Perez, Ana", "111", "", "C1", "Aceptada", "", "05/03/2024"},
		{"Gomez, Luis", "222", "", "C1", "Baja", "", "05/03/2024"},
		{"Lopez, Eva", "333", "", "", "PENDIENTE", "", "05/03/2024"},
	}
	r := parser.New(parser.NewSliceSource(rows), l, models.NewCodeSet("CP-A"), nil)
	batch, stats, err := Apply(l, r, Options{Metadata: map[string]string{"periodo": "1C2024"}})
	require.NoError(t, err)

	require.Equal(t, 1, batch.Len())
	assert.Equal(t, 1, stats.Filtered)
	assert.Equal(t, 1, stats.MissingKey)
	assert.Equal(t, "1C2024", batch.Records[0]["periodo"])
	assert.Equal(t, "2024-03-05", batch.Records[0]["fecha_inscripcion"])
}

func TestApplyStampsRunID(t *testing.T) {
	l := defaultLayout(t, "docu_inscripciones")
	rows := [][]string{
		{"Marca temporal", "DNI", "Carrera"},
		{"10/02/2024 09:15:00", "111", "Abogacía"},
	}
	r := parser.New(parser.NewSliceSource(rows), l, models.CodeSet{}, nil)
	batch, _, err := Apply(l, r, Options{RunID: "run-1"})
	require.NoError(t, err)

	require.Equal(t, 1, batch.Len())
	assert.Equal(t, "run-1", batch.Records[0]["import_run"])
	assert.Equal(t, "2024-02-10", batch.Records[0]["marca_temporal"])
	assert.Equal(t, []string{"marca_temporal", "dni", "carrera", "import_run"}, batch.Columns)
}
