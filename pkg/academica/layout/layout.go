// Package layout holds the per-table description of each export: where the
// section markers and header rows are, which physical column feeds which
// field, and how the table is persisted.
package layout

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/eeyn/academica/pkg/academica/models"
	"github.com/eeyn/academica/pkg/academica/normalize"
)

//go:embed layouts.yaml
var defaultLayouts []byte

// ErrUnknownTable indicates that no layout is registered for a table name.
var ErrUnknownTable = errors.New("unknown table")

// Source tells how rows of a report are turned into records.
type Source string

const (
	// SourceSectioned reports interleave section markers, header rows and data rows.
	SourceSectioned Source = "sectioned"
	// SourceFlat reports carry a single header row followed by data rows.
	SourceFlat Source = "flat"
)

// Mapping tells how data cells are assigned to fields in a sectioned report.
type Mapping string

const (
	// MappingPositional reads fixed column offsets from Columns.
	MappingPositional Mapping = "positional"
	// MappingHeader names each column after the normalized header text.
	MappingHeader Mapping = "header"
)

// SectionKind selects the section-marker rule.
type SectionKind string

const (
	// SectionCode markers carry a parenthesised career code that must be in the reference set.
	SectionCode SectionKind = "code"
	// SectionLabel markers are rows whose marker cell is the only non-blank cell.
	SectionLabel SectionKind = "label"
)

// FieldType drives value coercion and the declared column type.
type FieldType string

const (
	TypeText     FieldType = "text"
	TypeDate     FieldType = "date"
	TypeDateTime FieldType = "datetime"
	TypeInt      FieldType = "int"
	TypeDecimal  FieldType = "decimal"
	TypeNumber   FieldType = "number"
)

func (t FieldType) valid() bool {
	switch t {
	case TypeText, TypeDate, TypeDateTime, TypeInt, TypeDecimal, TypeNumber:
		return true
	}
	return false
}

// ColumnRef is a 0-based column offset. In YAML it may be written as an
// integer or as a spreadsheet column letter.
type ColumnRef int

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *ColumnRef) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: column must be a scalar", value.Line)
	}
	s := strings.TrimSpace(value.Value)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return fmt.Errorf("line %d: negative column %d", value.Line, n)
		}
		*c = ColumnRef(n)
		return nil
	}
	n, err := excelize.ColumnNameToNumber(s)
	if err != nil {
		return fmt.Errorf("line %d: column %q: %w", value.Line, s, err)
	}
	*c = ColumnRef(n - 1)
	return nil
}

// Section describes the section-marker rule.
type Section struct {
	Kind   SectionKind `yaml:"kind"`
	Column ColumnRef   `yaml:"column"`
}

// Marker is a literal label expected in a header row.
type Marker struct {
	Column   ColumnRef `yaml:"column"`
	Contains string    `yaml:"contains"`
}

// Header describes how header rows are recognised.
type Header struct {
	// Match is "any" or "all".
	Match   string   `yaml:"match"`
	Markers []Marker `yaml:"markers"`
}

// Column binds a physical column to a field.
type Column struct {
	Col   ColumnRef `yaml:"col"`
	Field string    `yaml:"field"`
	Type  FieldType `yaml:"type"`
	// Label is the header text expected at Col; a mismatch is reported as layout drift.
	Label string `yaml:"label"`
}

// Metadata is a run-scoped value stamped on every record.
type Metadata struct {
	Field string    `yaml:"field"`
	Type  FieldType `yaml:"type"`
}

// Filter keeps only records whose Field contains one of ContainsAny (case-insensitive).
type Filter struct {
	Field       string   `yaml:"field"`
	ContainsAny []string `yaml:"contains_any"`
}

// Layout is the complete description of one table import.
type Layout struct {
	Name string `yaml:"-"`

	Source       Source   `yaml:"source"`
	Policy       string   `yaml:"policy"`
	NaturalKey   []string `yaml:"natural_key"`
	PartitionKey string   `yaml:"partition_key"`

	Section        Section   `yaml:"section"`
	Header         Header    `yaml:"header"`
	IdentityColumn ColumnRef `yaml:"identity_column"`
	Mapping        Mapping   `yaml:"mapping"`
	KeepHeader     bool      `yaml:"keep_header"`
	SectionField   string    `yaml:"section_field"`
	// Columns fixes the field read from each offset. Flat layouts without
	// Columns take their fields from the header row.
	Columns []Column `yaml:"columns"`

	Rename   map[string]string    `yaml:"rename"`
	Fields   map[string]FieldType `yaml:"fields"`
	Metadata []Metadata           `yaml:"metadata"`
	Filter   *Filter              `yaml:"filter"`
	StampRun string               `yaml:"stamp_run"`
}

// PolicyValue returns the parsed conflict policy.
func (l *Layout) PolicyValue() models.Policy {
	p, _ := models.ParsePolicy(l.Policy)
	return p
}

// TypeOf returns the declared type of field, defaulting to text.
func (l *Layout) TypeOf(field string) FieldType {
	for _, c := range l.Columns {
		if c.Field == field && c.Type != "" {
			return c.Type
		}
	}
	if t, ok := l.Fields[field]; ok {
		return t
	}
	for _, m := range l.Metadata {
		if m.Field == field && m.Type != "" {
			return m.Type
		}
	}
	return TypeText
}

// FieldName maps a raw source label to its field name.
func (l *Layout) FieldName(label string, index int) string {
	name := normalize.Column(label, index)
	if renamed, ok := l.Rename[name]; ok {
		return renamed
	}
	return name
}

func (l *Layout) validate() error {
	if !normalize.IsIdentifier(l.Name) {
		return fmt.Errorf("table name %q is not a canonical identifier", l.Name)
	}
	if _, err := models.ParsePolicy(l.Policy); err != nil {
		return err
	}
	if len(l.NaturalKey) == 0 {
		return fmt.Errorf("natural_key is required")
	}
	for _, k := range l.NaturalKey {
		if !normalize.IsIdentifier(k) {
			return fmt.Errorf("natural_key field %q is not a canonical identifier", k)
		}
	}
	if l.PolicyValue() == models.PolicyReplacePartition {
		if l.PartitionKey == "" {
			return fmt.Errorf("replace_partition requires partition_key")
		}
		if !contains(l.NaturalKey, l.PartitionKey) {
			return fmt.Errorf("partition_key %q must be part of natural_key", l.PartitionKey)
		}
	}
	for field, t := range l.Fields {
		if !t.valid() {
			return fmt.Errorf("field %q: invalid type %q", field, t)
		}
	}
	for _, m := range l.Metadata {
		if !normalize.IsIdentifier(m.Field) {
			return fmt.Errorf("metadata field %q is not a canonical identifier", m.Field)
		}
		if m.Type != "" && !m.Type.valid() {
			return fmt.Errorf("metadata %q: invalid type %q", m.Field, m.Type)
		}
	}
	if l.StampRun != "" && !normalize.IsIdentifier(l.StampRun) {
		return fmt.Errorf("stamp_run %q is not a canonical identifier", l.StampRun)
	}

	for _, c := range l.Columns {
		if !normalize.IsIdentifier(c.Field) {
			return fmt.Errorf("column %d: field %q is not a canonical identifier", c.Col, c.Field)
		}
		if c.Type != "" && !c.Type.valid() {
			return fmt.Errorf("column %q: invalid type %q", c.Field, c.Type)
		}
	}

	switch l.Source {
	case SourceFlat:
		return nil
	case SourceSectioned:
	default:
		return fmt.Errorf("invalid source %q (must be sectioned or flat)", l.Source)
	}

	if l.Mapping == "" {
		l.Mapping = MappingPositional
	}
	switch l.Section.Kind {
	case SectionCode, SectionLabel:
	default:
		return fmt.Errorf("invalid section kind %q (must be code or label)", l.Section.Kind)
	}
	if l.Header.Match == "" {
		l.Header.Match = "any"
	}
	if l.Header.Match != "any" && l.Header.Match != "all" {
		return fmt.Errorf("invalid header match %q (must be any or all)", l.Header.Match)
	}
	if len(l.Header.Markers) == 0 {
		return fmt.Errorf("sectioned layout requires header markers")
	}
	if !normalize.IsIdentifier(l.SectionField) {
		return fmt.Errorf("section_field %q is not a canonical identifier", l.SectionField)
	}
	switch l.Mapping {
	case MappingPositional:
		if len(l.Columns) == 0 {
			return fmt.Errorf("positional layout requires columns")
		}
	case MappingHeader:
	default:
		return fmt.Errorf("invalid mapping %q (must be positional or header)", l.Mapping)
	}
	return nil
}

// Registry is a validated, versioned set of layouts.
type Registry struct {
	Version int
	tables  map[string]*Layout
}

type document struct {
	Version int                `yaml:"version"`
	Tables  map[string]*Layout `yaml:"tables"`
}

// Load decodes and validates a layout document.
func Load(r io.Reader) (*Registry, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decode layouts")
	}
	if doc.Version <= 0 {
		return nil, errors.New("layouts: version is required")
	}
	reg := &Registry{Version: doc.Version, tables: make(map[string]*Layout, len(doc.Tables))}
	for name, l := range doc.Tables {
		if l == nil {
			return nil, fmt.Errorf("layout %s: empty definition", name)
		}
		l.Name = name
		if err := l.validate(); err != nil {
			return nil, errors.Wrapf(err, "layout %s", name)
		}
		reg.tables[name] = l
	}
	return reg, nil
}

// LoadFile loads layouts from path.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open layouts")
	}
	defer f.Close()
	return Load(f)
}

// Default returns the embedded layouts.
func Default() (*Registry, error) {
	return Load(bytes.NewReader(defaultLayouts))
}

// Get returns the layout registered for table.
func (r *Registry) Get(table string) (*Layout, error) {
	l, ok := r.tables[table]
	if !ok {
		return nil, errors.Wrap(ErrUnknownTable, table)
	}
	return l, nil
}

// Names returns the registered table names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tables))
	for n := range r.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
