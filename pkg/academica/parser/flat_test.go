package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eeyn/academica/pkg/academica/layout"
	"github.com/eeyn/academica/pkg/academica/models"
)

func TestFlatUsesFirstNonBlankRowAsHeader(t *testing.T) {
	reg, err := layout.Default()
	require.NoError(t, err)
	l, err := reg.Get("egresados")
	require.NoError(t, err)

	log, _ := testLogger()
	rows := [][]string{
		{"", ""},
		{"Documento", "Propuesta", "Plan", "Egreso"},
		{"111", "Abogacía", "2019", "15/12/2023"},
		{},
		{"222", "Contador", "2018"},
	}
	p := New(NewSliceSource(rows), l, models.CodeSet{}, log)
	recs := readAll(t, p)

	require.Len(t, recs, 2)
	assert.Equal(t, "15/12/2023", recs[0]["fecha_egreso"])
	assert.Nil(t, recs[1]["fecha_egreso"])
	assert.Equal(t, []string{"documento", "propuesta", "plan", "fecha_egreso"}, p.Columns())
	assert.Equal(t, 5, p.Stats().RowsScanned)
	assert.Equal(t, 2, p.Stats().Emitted)
}

func TestFlatEmptyInput(t *testing.T) {
	reg, err := layout.Default()
	require.NoError(t, err)
	l, err := reg.Get("planes")
	require.NoError(t, err)

	log, _ := testLogger()
	p := New(NewSliceSource(nil), l, models.CodeSet{}, log)
	assert.Empty(t, readAll(t, p))
	assert.Empty(t, p.Columns())
}

func TestFlatFixedColumnsDropExtraCells(t *testing.T) {
	reg, err := layout.Default()
	require.NoError(t, err)
	l, err := reg.Get("carreras")
	require.NoError(t, err)

	log, hook := testLogger()
	rows := [][]string{
		{"Codigo", "Nombre", "Tipo", "Estado", "Observaciones"},
		{"CP-CCCP-PC", "Contador Público", "Grado", "Activa", "nueva"},
		{"CP-LA-PC", "Lic. en Administración"},
	}
	p := New(NewSliceSource(rows), l, models.CodeSet{}, log)
	recs := readAll(t, p)

	require.Len(t, recs, 2)
	assert.Equal(t, []string{"codigo", "nombre", "tipo", "estado"}, p.Columns())
	assert.Equal(t, models.Record{"codigo": "CP-CCCP-PC", "nombre": "Contador Público", "tipo": "Grado", "estado": "Activa"}, recs[0])
	assert.Nil(t, recs[1]["estado"])
	assert.Empty(t, hook.AllEntries())
}

func TestFlatFixedColumnsWarnOnDrift(t *testing.T) {
	reg, err := layout.Default()
	require.NoError(t, err)
	l, err := reg.Get("carreras")
	require.NoError(t, err)

	log, hook := testLogger()
	rows := [][]string{
		{"Código de propuesta", "Nombre", "Tipo", "Estado"},
		{"CP-CCCP-PC", "Contador Público", "Grado", "Activa"},
	}
	p := New(NewSliceSource(rows), l, models.CodeSet{}, log)
	require.Len(t, readAll(t, p), 1)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "header label does not match layout", hook.LastEntry().Message)
	assert.Equal(t, "codigo", hook.LastEntry().Data["field"])
}
