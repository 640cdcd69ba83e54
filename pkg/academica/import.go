package academica

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/eeyn/academica/pkg/academica/layout"
	"github.com/eeyn/academica/pkg/academica/models"
	"github.com/eeyn/academica/pkg/academica/parser"
	"github.com/eeyn/academica/pkg/academica/store"
	"github.com/eeyn/academica/pkg/academica/transform"
)

// Import parses the report at opts.InputPath with the layout of opts.Table and
// upserts the resulting batch into st. Every precondition (layout, input file,
// run metadata, reference codes) is checked before the store is touched. st
// may be nil for a dry run that does not need codes from the store.
func Import(ctx context.Context, st *store.Store, opts Options) (*models.Result, error) {
	start := time.Now()
	table := opts.Table

	l, err := Validate(opts)
	if err != nil {
		return nil, err
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	tOpts := transform.Options{Metadata: opts.Metadata, RunID: runID}

	log := opts.logger().WithFields(logrus.Fields{"table": table, "run": runID})
	tOpts.Log = log

	codes, err := resolveCodes(ctx, st, l, opts)
	if err != nil {
		return nil, NewImportError(table, StageReference, err)
	}

	src, err := parser.Open(opts.InputPath, opts.Sheet)
	if err != nil {
		return nil, NewImportError(table, StageInput, err)
	}
	defer src.Close()

	r := parser.New(src, l, codes, log)
	batch, tStats, err := transform.Apply(l, r, tOpts)
	if err != nil {
		return nil, NewImportError(table, StageParse, err)
	}

	policy := opts.PolicyFor(l)
	res := &models.Result{
		Table:     table,
		RunID:     runID,
		Policy:    string(policy),
		DryRun:    opts.DryRun,
		Parse:     r.Stats(),
		Transform: tStats,
	}
	if r.Stats().Sections == 0 && l.Source == layout.SourceSectioned {
		log.Warn("no valid sections found")
	}

	if opts.DryRun {
		res.Upsert.Considered = batch.Len()
		log.WithFields(logrus.Fields{"records": batch.Len()}).Info("dry run, nothing written")
		return res, nil
	}
	if st == nil {
		return nil, NewImportError(table, StageStore, errors.New("no store"))
	}

	spec := store.SpecFor(l, batch.Columns)
	spec.Policy = policy
	stats, err := st.Upsert(ctx, spec, batch)
	if err != nil {
		return nil, NewImportError(table, StageStore, err)
	}
	res.Upsert = stats

	log.WithFields(logrus.Fields{
		"rows":            res.Parse.RowsScanned,
		"sections":        res.Parse.Sections,
		"skipped_markers": res.Parse.SkippedMarkers,
		"considered":      stats.Considered,
		"inserted":        stats.Inserted,
		"updated":         stats.Updated,
		"ignored":         stats.Ignored,
		"deleted":         stats.Deleted,
		"elapsed":         time.Since(start).Round(time.Millisecond),
	}).Info("import finished")
	return res, nil
}

// Validate checks the preconditions that need no store: the table has a
// layout, the input file exists and every run metadata value the layout
// requires is present. It returns the table's layout.
func Validate(opts Options) (*layout.Layout, error) {
	table := opts.Table
	reg, err := opts.layouts()
	if err != nil {
		return nil, NewImportError(table, StageLayout, err)
	}
	l, err := reg.Get(table)
	if err != nil {
		return nil, NewImportError(table, StageLayout, err)
	}

	if _, err := os.Stat(opts.InputPath); err != nil {
		if os.IsNotExist(err) {
			return nil, NewImportError(table, StageInput, errors.Wrap(ErrFileNotFound, opts.InputPath))
		}
		return nil, NewImportError(table, StageInput, err)
	}

	if _, err := transform.Stamps(l, transform.Options{Metadata: opts.Metadata}); err != nil {
		return nil, NewImportError(table, StageInput, err)
	}
	return l, nil
}

// NeedsCodes reports whether importing with l requires the reference code set.
func NeedsCodes(l *layout.Layout) bool {
	return l.Source == layout.SourceSectioned && l.Section.Kind == layout.SectionCode
}

func resolveCodes(ctx context.Context, st *store.Store, l *layout.Layout, opts Options) (models.CodeSet, error) {
	if !NeedsCodes(l) {
		return models.CodeSet{}, nil
	}
	var codes models.CodeSet
	if opts.Codes != nil {
		codes = *opts.Codes
	} else {
		var err error
		if codes, err = LoadCodes(ctx, st, opts.CodesPath); err != nil {
			return models.CodeSet{}, err
		}
	}
	if codes.Len() == 0 {
		return models.CodeSet{}, errors.Wrapf(ErrNoReferenceCodes, "table %s", l.Name)
	}
	return codes, nil
}
