package academica

import (
	"context"
	"fmt"

	"github.com/eeyn/academica/pkg/academica/models"
	"github.com/eeyn/academica/pkg/academica/store"
)

// AcademicYearsTable stores one row per academic year.
const AcademicYearsTable = "anio_academico"

// AcademicYears builds the academic-year rows for from..to inclusive. Year Y
// runs from April 1st of Y to March 31st of Y+1.
func AcademicYears(from, to int) (*models.Batch, error) {
	if from <= 0 || to < from {
		return nil, fmt.Errorf("invalid academic year range %d..%d", from, to)
	}
	b := &models.Batch{Columns: []string{"anio", "inicio", "fin"}}
	for y := from; y <= to; y++ {
		b.Records = append(b.Records, models.Record{
			"anio":   int64(y),
			"inicio": fmt.Sprintf("%04d-04-01", y),
			"fin":    fmt.Sprintf("%04d-03-31", y+1),
		})
	}
	return b, nil
}

// ImportAcademicYears inserts the academic years from..to, ignoring years already stored.
func ImportAcademicYears(ctx context.Context, st *store.Store, from, to int) (models.UpsertStats, error) {
	b, err := AcademicYears(from, to)
	if err != nil {
		return models.UpsertStats{}, err
	}
	spec := store.TableSpec{
		Name:        AcademicYearsTable,
		NaturalKey:  []string{"anio"},
		Policy:      models.PolicyInsertOrIgnore,
		ColumnTypes: map[string]string{"anio": "INTEGER"},
	}
	stats, err := st.Upsert(ctx, spec, b)
	if err != nil {
		return stats, NewImportError(AcademicYearsTable, StageStore, err)
	}
	return stats, nil
}
