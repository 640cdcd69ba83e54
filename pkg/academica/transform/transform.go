// Package transform validates parsed records and shapes them into a batch
// ready for the store: filter, coerce, stamp, key check, de-duplicate.
package transform

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/eeyn/academica/pkg/academica/layout"
	"github.com/eeyn/academica/pkg/academica/models"
	"github.com/eeyn/academica/pkg/academica/parser"
)

// ErrMissingMetadata indicates a run-scoped value required by the layout was not supplied.
var ErrMissingMetadata = errors.New("missing metadata")

// Options carries the run-scoped values stamped on every record.
type Options struct {
	// Metadata holds raw values by field name (e.g. "anio": "2024").
	Metadata map[string]string
	// RunID is written to the layout's stamp_run field when it declares one.
	RunID string
	Log   logrus.FieldLogger
}

// Stamps resolves the layout's metadata fields against opts. It fails before
// any record is read so that nothing is written for an incomplete run.
func Stamps(l *layout.Layout, opts Options) (models.Record, error) {
	out := make(models.Record, len(l.Metadata)+1)
	for _, m := range l.Metadata {
		raw := strings.TrimSpace(opts.Metadata[m.Field])
		if raw == "" {
			return nil, errors.Wrapf(ErrMissingMetadata, "%s requires %q", l.Name, m.Field)
		}
		v, err := stampValue(m.Type, raw)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: metadata %s", l.Name, m.Field)
		}
		out[m.Field] = v
	}
	if l.StampRun != "" {
		out[l.StampRun] = opts.RunID
	}
	return out, nil
}

// Apply drains r and returns the batch to persist. Records are filtered,
// coerced to the layout's field types, stamped, checked for a complete natural
// key and de-duplicated. A duplicate key keeps the position of its first
// occurrence and the values of its last.
func Apply(l *layout.Layout, r parser.Reader, opts Options) (*models.Batch, models.TransformStats, error) {
	var stats models.TransformStats
	stamps, err := Stamps(l, opts)
	if err != nil {
		return nil, stats, err
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	batch := &models.Batch{}
	seen := make(map[string]int)
	for r.Next() {
		rec := r.Record()
		if !keep(l.Filter, rec) {
			stats.Filtered++
			continue
		}
		for field, v := range rec {
			rec[field] = Coerce(l.TypeOf(field), v)
		}
		for field, v := range stamps {
			rec[field] = v
		}
		key, ok := rec.Key(l.NaturalKey)
		if !ok {
			stats.MissingKey++
			continue
		}
		if i, dup := seen[key]; dup {
			batch.Records[i] = rec
			stats.Duplicates++
			continue
		}
		seen[key] = len(batch.Records)
		batch.Records = append(batch.Records, rec)
	}
	if err := r.Err(); err != nil {
		return nil, stats, errors.Wrap(err, "read rows")
	}

	for _, c := range r.Columns() {
		batch.AddColumn(c)
	}
	for _, m := range l.Metadata {
		batch.AddColumn(m.Field)
	}
	if l.StampRun != "" {
		batch.AddColumn(l.StampRun)
	}

	log.WithFields(logrus.Fields{
		"table":       l.Name,
		"records":     batch.Len(),
		"filtered":    stats.Filtered,
		"missing_key": stats.MissingKey,
		"duplicates":  stats.Duplicates,
	}).Debug("transformed batch")
	return batch, stats, nil
}

func stampValue(t layout.FieldType, raw string) (any, error) {
	if t == layout.TypeInt {
		return strconv.ParseInt(raw, 10, 64)
	}
	v := Coerce(t, raw)
	if v == nil {
		return nil, errors.Errorf("cannot read %q as %s", raw, t)
	}
	return v, nil
}

func keep(f *layout.Filter, rec models.Record) bool {
	if f == nil {
		return true
	}
	s, ok := rec[f.Field].(string)
	if !ok {
		return false
	}
	s = strings.ToLower(s)
	for _, want := range f.ContainsAny {
		if strings.Contains(s, strings.ToLower(want)) {
			return true
		}
	}
	return false
}
