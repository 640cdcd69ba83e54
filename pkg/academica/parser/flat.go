package parser

import (
	"github.com/sirupsen/logrus"

	"github.com/eeyn/academica/pkg/academica/layout"
	"github.com/eeyn/academica/pkg/academica/models"
)

// Reader is the record stream shared by the sectioned and flat parsers.
type Reader interface {
	Next() bool
	Record() models.Record
	Columns() []string
	Stats() models.ParseStats
	Err() error
}

// New returns the parser matching the layout's source kind.
func New(src RowSource, l *layout.Layout, codes models.CodeSet, log logrus.FieldLogger) Reader {
	if l.Source == layout.SourceFlat {
		return NewFlat(src, l, log)
	}
	return NewSections(src, l, codes, log)
}

// Flat reads a report whose first non-blank row is the header. Blank rows are
// dropped. When the layout lists columns, only those offsets are read and the
// remaining cells are ignored.
type Flat struct {
	src    RowSource
	layout *layout.Layout
	log    logrus.FieldLogger

	header  []headerCol
	columns []string
	rec     models.Record
	stats   models.ParseStats
	err     error
}

// NewFlat returns a flat parser over src.
func NewFlat(src RowSource, l *layout.Layout, log logrus.FieldLogger) *Flat {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Flat{src: src, layout: l, log: log}
}

// Next advances to the next data record.
func (p *Flat) Next() bool {
	if p.err != nil {
		return false
	}
	for p.src.Next() {
		row := p.src.Row()
		p.stats.RowsScanned++
		if row.IsBlank() {
			continue
		}
		if p.header == nil {
			p.readHeader(row)
			continue
		}
		p.rec = make(models.Record, len(p.header))
		for _, h := range p.header {
			p.rec[h.field] = cellValue(row.Cell(h.offset))
		}
		p.stats.Emitted++
		return true
	}
	p.err = p.src.Err()
	return false
}

func (p *Flat) readHeader(row models.Row) {
	if cols := p.layout.Columns; len(cols) > 0 {
		p.header = make([]headerCol, 0, len(cols))
		for _, c := range cols {
			p.header = append(p.header, headerCol{offset: int(c.Col), field: c.Field})
			p.columns = appendUnique(p.columns, c.Field)
		}
		warnDrift(p.log, cols, row)
		p.log.WithFields(logrus.Fields{"row": row.R, "columns": len(p.header)}).Debug("header row")
		return
	}
	p.header = make([]headerCol, 0, len(row.Cells))
	for i, cell := range row.Cells {
		if cell == "" {
			continue
		}
		h := headerCol{offset: i, field: p.layout.FieldName(cell, i)}
		p.header = append(p.header, h)
		p.columns = appendUnique(p.columns, h.field)
	}
	p.log.WithFields(logrus.Fields{"row": row.R, "columns": len(p.header)}).Debug("header row")
}

// Record returns the record produced by the last call to Next.
func (p *Flat) Record() models.Record { return p.rec }

// Err returns the first error raised by the row source.
func (p *Flat) Err() error { return p.err }

// Stats returns the counters gathered so far.
func (p *Flat) Stats() models.ParseStats { return p.stats }

// Columns lists the header fields in column order.
func (p *Flat) Columns() []string {
	out := make([]string, len(p.columns))
	copy(out, p.columns)
	return out
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
