package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/eeyn/academica/pkg/academica/layout"
	"github.com/eeyn/academica/pkg/academica/models"
	"github.com/eeyn/academica/pkg/academica/normalize"
)

// ErrMixedPartition indicates a replace_partition batch spans more than one partition value.
var ErrMixedPartition = errors.New("batch spans more than one partition")

// TableSpec describes the destination of a batch.
type TableSpec struct {
	Name         string
	NaturalKey   []string
	Policy       models.Policy
	PartitionKey string
	// ColumnTypes holds the SQL type of each known column; unknown columns are TEXT.
	ColumnTypes map[string]string
}

// SpecFor derives the table spec of a layout for the given batch columns.
func SpecFor(l *layout.Layout, columns []string) TableSpec {
	types := make(map[string]string, len(columns))
	for _, c := range columns {
		types[c] = sqlType(l.TypeOf(c))
	}
	return TableSpec{
		Name:         l.Name,
		NaturalKey:   l.NaturalKey,
		Policy:       l.PolicyValue(),
		PartitionKey: l.PartitionKey,
		ColumnTypes:  types,
	}
}

func sqlType(t layout.FieldType) string {
	switch t {
	case layout.TypeInt:
		return "INTEGER"
	case layout.TypeDecimal:
		return "REAL"
	case layout.TypeNumber:
		return "NUMERIC"
	default:
		return "TEXT"
	}
}

func (t TableSpec) columnType(c string) string {
	if v, ok := t.ColumnTypes[c]; ok && v != "" {
		return v
	}
	return "TEXT"
}

type columnInfo struct {
	CID     int            `db:"cid"`
	Name    string         `db:"name"`
	Type    string         `db:"type"`
	NotNull int            `db:"notnull"`
	Default sql.NullString `db:"dflt_value"`
	PK      int            `db:"pk"`
}

// Upsert writes batch into the table described by spec inside one
// transaction. Any error rolls the whole batch back.
func (s *Store) Upsert(ctx context.Context, spec TableSpec, batch *models.Batch) (models.UpsertStats, error) {
	var stats models.UpsertStats
	if err := spec.validate(batch); err != nil {
		return stats, err
	}
	if batch.Len() == 0 {
		return stats, nil
	}
	stats.Considered = batch.Len()

	var partition any
	if spec.Policy == models.PolicyReplacePartition {
		v, err := partitionValue(spec.PartitionKey, batch)
		if err != nil {
			return stats, err
		}
		partition = v
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return stats, errors.Wrap(err, "begin")
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	added, err := s.syncColumns(ctx, tx, spec, batch)
	if err != nil {
		return stats, err
	}
	stats.ColumnsAdded = added

	before, err := countRows(ctx, tx, spec.Name)
	if err != nil {
		return stats, err
	}
	if spec.Policy == models.PolicyReplacePartition {
		res, err := tx.ExecContext(ctx, `DELETE FROM `+quote(spec.Name)+` WHERE `+quote(spec.PartitionKey)+` = ?`, partition)
		if err != nil {
			return stats, errors.Wrapf(err, "clear partition %s=%v", spec.PartitionKey, partition)
		}
		n, _ := res.RowsAffected()
		stats.Deleted = int(n)
		before -= stats.Deleted
	}

	if err := insertAll(ctx, tx, spec, batch); err != nil {
		return stats, err
	}

	after, err := countRows(ctx, tx, spec.Name)
	if err != nil {
		return stats, err
	}
	stats.Inserted = after - before
	if spec.Policy == models.PolicyInsertOrIgnore {
		stats.Ignored = stats.Considered - stats.Inserted
	} else {
		stats.Updated = stats.Considered - stats.Inserted
	}

	if err := tx.Commit(); err != nil {
		return stats, errors.Wrap(err, "commit")
	}
	tx = nil

	s.log.WithFields(logrus.Fields{
		"table":         spec.Name,
		"policy":        spec.Policy,
		"considered":    stats.Considered,
		"inserted":      stats.Inserted,
		"updated":       stats.Updated,
		"ignored":       stats.Ignored,
		"deleted":       stats.Deleted,
		"columns_added": stats.ColumnsAdded,
	}).Info("batch stored")
	return stats, nil
}

func (t TableSpec) validate(batch *models.Batch) error {
	if err := checkIdent(t.Name); err != nil {
		return err
	}
	if _, err := models.ParsePolicy(string(t.Policy)); err != nil {
		return err
	}
	if len(t.NaturalKey) == 0 {
		return fmt.Errorf("table %s: natural key is required", t.Name)
	}
	for _, c := range batch.Columns {
		if err := checkIdent(c); err != nil {
			return err
		}
	}
	for _, k := range t.NaturalKey {
		if !hasColumn(batch.Columns, k) {
			return fmt.Errorf("table %s: natural key field %q missing from batch", t.Name, k)
		}
	}
	if t.Policy == models.PolicyReplacePartition && !hasColumn(t.NaturalKey, t.PartitionKey) {
		return fmt.Errorf("table %s: partition key %q must be part of the natural key", t.Name, t.PartitionKey)
	}
	return nil
}

func partitionValue(key string, batch *models.Batch) (any, error) {
	var (
		value any
		first string
	)
	for i, r := range batch.Records {
		v := r[key]
		s := fmt.Sprint(v)
		if i == 0 {
			value, first = v, s
			continue
		}
		if s != first {
			return nil, errors.Wrapf(ErrMixedPartition, "%s has %q and %q", key, first, s)
		}
	}
	return value, nil
}

// syncColumns creates the table when missing and adds batch columns it lacks.
// Only the schema-evolving policies may add columns to an existing table.
func (s *Store) syncColumns(ctx context.Context, tx *sqlx.Tx, spec TableSpec, batch *models.Batch) (int, error) {
	var cols []columnInfo
	if err := tx.SelectContext(ctx, &cols, `SELECT * FROM pragma_table_info(?)`, spec.Name); err != nil {
		return 0, errors.Wrapf(err, "inspect %s", spec.Name)
	}
	if len(cols) == 0 {
		return 0, createTable(ctx, tx, spec, batch.Columns)
	}

	existing := make(map[string]bool, len(cols))
	for _, c := range cols {
		existing[c.Name] = true
	}
	var missing []string
	for _, c := range batch.Columns {
		if !existing[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}
	if spec.Policy != models.PolicyEvolveAndReplace && spec.Policy != models.PolicyReplacePartition {
		return 0, fmt.Errorf("table %s has no column(s) %s", spec.Name, strings.Join(missing, ", "))
	}
	for _, c := range missing {
		q := fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, quote(spec.Name), quote(c), spec.columnType(c))
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return 0, errors.Wrapf(err, "add column %s.%s", spec.Name, c)
		}
		s.log.WithFields(logrus.Fields{"table": spec.Name, "column": c}).Info("added column")
	}
	return len(missing), nil
}

func createTable(ctx context.Context, tx *sqlx.Tx, spec TableSpec, columns []string) error {
	defs := make([]string, 0, len(columns)+1)
	for _, c := range columns {
		def := quote(c) + " " + spec.columnType(c)
		if hasColumn(spec.NaturalKey, c) {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	keys := make([]string, len(spec.NaturalKey))
	for i, k := range spec.NaturalKey {
		keys[i] = quote(k)
	}
	defs = append(defs, "PRIMARY KEY ("+strings.Join(keys, ", ")+")")

	q := `CREATE TABLE ` + quote(spec.Name) + ` (` + strings.Join(defs, ", ") + `)`
	if _, err := tx.ExecContext(ctx, q); err != nil {
		return errors.Wrapf(err, "create table %s", spec.Name)
	}
	return nil
}

func insertAll(ctx context.Context, tx *sqlx.Tx, spec TableSpec, batch *models.Batch) error {
	verb := "INSERT OR REPLACE"
	if spec.Policy == models.PolicyInsertOrIgnore {
		verb = "INSERT OR IGNORE"
	}
	cols := make([]string, len(batch.Columns))
	for i, c := range batch.Columns {
		cols[i] = quote(c)
	}
	ph := strings.TrimRight(strings.Repeat("?,", len(cols)), ",")
	q := verb + ` INTO ` + quote(spec.Name) + ` (` + strings.Join(cols, ", ") + `) VALUES (` + ph + `)`

	stmt, err := tx.PreparexContext(ctx, q)
	if err != nil {
		return errors.Wrapf(err, "prepare insert %s", spec.Name)
	}
	defer stmt.Close()
	for i, r := range batch.Records {
		if _, err := stmt.ExecContext(ctx, batch.Values(r)...); err != nil {
			return errors.Wrapf(err, "insert %s record %d", spec.Name, i+1)
		}
	}
	return nil
}

func countRows(ctx context.Context, tx *sqlx.Tx, table string) (int, error) {
	var n int
	if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM `+quote(table)); err != nil {
		return 0, errors.Wrapf(err, "count %s", table)
	}
	return n, nil
}

func checkIdent(name string) error {
	if !normalize.IsIdentifier(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func hasColumn(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
