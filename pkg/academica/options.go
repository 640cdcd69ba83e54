// Package academica imports university student-records exports into a
// single SQLite store.
package academica

import (
	"github.com/sirupsen/logrus"

	"github.com/eeyn/academica/pkg/academica/layout"
	"github.com/eeyn/academica/pkg/academica/models"
)

// Options configures one table import.
type Options struct {
	// Table is the destination table; it selects the layout.
	Table string
	// InputPath is the report to import (.xlsx or .csv).
	InputPath string
	// Sheet selects the worksheet of a workbook. Defaults to the first sheet.
	Sheet string
	// Metadata holds the run values required by the layout, such as "anio" or "periodo".
	Metadata map[string]string
	// Codes is the reference code set. If nil, codes are read from CodesPath,
	// or from the store when CodesPath is empty.
	Codes *models.CodeSet
	// CodesPath is a csv file with a Codigo column.
	CodesPath string
	// Layouts is the layout registry. If nil, the embedded layouts are used.
	Layouts *layout.Registry
	// Policy overrides the layout's conflict policy.
	Policy *models.Policy
	// DryRun parses and transforms without writing.
	DryRun bool
	// RunID identifies the run. Generated when empty.
	RunID string
	// Logger receives progress. Defaults to the logrus standard logger.
	Logger logrus.FieldLogger
}

// DefaultOptions returns default import options for table.
func DefaultOptions(table, input string) Options {
	return Options{
		Table:     table,
		InputPath: input,
		Metadata:  map[string]string{},
	}
}

// PolicyFor returns the conflict policy to apply for l.
func (o Options) PolicyFor(l *layout.Layout) models.Policy {
	if o.Policy != nil {
		return *o.Policy
	}
	return l.PolicyValue()
}

func (o Options) logger() logrus.FieldLogger {
	if o.Logger != nil {
		return o.Logger
	}
	return logrus.StandardLogger()
}

func (o Options) layouts() (*layout.Registry, error) {
	if o.Layouts != nil {
		return o.Layouts, nil
	}
	return layout.Default()
}
