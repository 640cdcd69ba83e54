package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eeyn/academica/pkg/academica/models"
	"github.com/eeyn/academica/pkg/academica/report"
)

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, &models.Result{
		Table:  "egresados",
		Policy: "insert_or_ignore",
		Upsert: models.UpsertStats{Considered: 4, Inserted: 3, Ignored: 1},
	})
	out := buf.String()
	assert.Contains(t, out, "Import egresados")
	assert.Contains(t, out, "ignored")
	assert.Contains(t, out, "Policy insert_or_ignore applied.")
}

func TestPrintResultDryRun(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, &models.Result{Table: "planes", DryRun: true})
	assert.Contains(t, buf.String(), "(dry run)")
	assert.Contains(t, buf.String(), "Nothing written.")
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, &report.Summary{Dir: "out", Written: []string{"a.csv"}, Skipped: []string{"b.csv"}})
	assert.Contains(t, buf.String(), "a.csv")
	assert.Contains(t, buf.String(), "b.csv")
}
