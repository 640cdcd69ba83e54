package parser

import (
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/eeyn/academica/pkg/academica/layout"
	"github.com/eeyn/academica/pkg/academica/models"
	"github.com/eeyn/academica/pkg/academica/normalize"
)

// markerPattern finds the first parenthesised group of a marker cell.
var markerPattern = regexp.MustCompile(`\((.*?)\)`)

// State is the position of the sectioned parser within a report.
type State int

const (
	// StateSeeking means no valid section has been seen yet.
	StateSeeking State = iota
	// StateInSection means a section is open but its header row has not been seen.
	StateInSection
	// StateReady means data rows are accepted.
	StateReady
)

func (s State) String() string {
	switch s {
	case StateSeeking:
		return "seeking"
	case StateInSection:
		return "in_section"
	case StateReady:
		return "ready"
	}
	return "unknown"
}

type headerCol struct {
	offset int
	field  string
}

// Sections reads a report made of repeated [marker, header, data...] blocks.
// Every emitted record carries the section value in the layout's section field.
type Sections struct {
	src    RowSource
	layout *layout.Layout
	codes  models.CodeSet
	log    logrus.FieldLogger

	state   State
	section string
	header  []headerCol
	columns []string
	rec     models.Record
	stats   models.ParseStats
	err     error
}

// NewSections returns a sectioned parser over src. codes is consulted only
// for code markers. A nil log uses the standard logger.
func NewSections(src RowSource, l *layout.Layout, codes models.CodeSet, log logrus.FieldLogger) *Sections {
	if log == nil {
		log = logrus.StandardLogger()
	}
	p := &Sections{src: src, layout: l, codes: codes, log: log}
	if l.Mapping == layout.MappingPositional {
		for _, c := range l.Columns {
			p.addColumn(c.Field)
		}
	}
	p.addColumn(l.SectionField)
	return p
}

// Next advances to the next data record.
func (p *Sections) Next() bool {
	if p.err != nil {
		return false
	}
	for p.src.Next() {
		row := p.src.Row()
		p.stats.RowsScanned++
		if p.step(row) {
			p.stats.Emitted++
			return true
		}
	}
	p.err = p.src.Err()
	return false
}

// Record returns the record produced by the last call to Next.
func (p *Sections) Record() models.Record { return p.rec }

// Err returns the first error raised by the row source.
func (p *Sections) Err() error { return p.err }

// Stats returns the counters gathered so far.
func (p *Sections) Stats() models.ParseStats { return p.stats }

// State returns the current parser state.
func (p *Sections) State() State { return p.state }

// Columns lists every field emitted so far, in first-seen order.
func (p *Sections) Columns() []string {
	out := make([]string, len(p.columns))
	copy(out, p.columns)
	return out
}

func (p *Sections) step(row models.Row) bool {
	if p.layout.Section.Kind == layout.SectionCode {
		if code, ok := p.codeMarker(row); ok {
			if p.codes.Contains(code) {
				p.enter(code, row.R)
			} else {
				p.stats.SkippedMarkers++
				p.log.WithFields(logrus.Fields{"row": row.R, "code": code}).Debug("skipping marker with unknown code")
			}
			return false
		}
	}
	if p.isHeader(row) {
		if p.state != StateSeeking {
			p.captureHeader(row)
			p.state = StateReady
		}
		return false
	}
	if p.layout.Section.Kind == layout.SectionLabel {
		if label, ok := p.labelMarker(row); ok {
			p.enter(label, row.R)
			return false
		}
	}
	if p.state != StateReady || row.Cell(int(p.layout.IdentityColumn)) == "" {
		return false
	}
	p.rec = p.record(row)
	return true
}

func (p *Sections) codeMarker(row models.Row) (string, bool) {
	m := markerPattern.FindStringSubmatch(row.Cell(int(p.layout.Section.Column)))
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

func (p *Sections) labelMarker(row models.Row) (string, bool) {
	cell := row.Cell(int(p.layout.Section.Column))
	if cell == "" || row.NonBlank() != 1 {
		return "", false
	}
	return cell, true
}

func (p *Sections) enter(section string, r int) {
	p.section = section
	p.stats.Sections++
	if p.layout.KeepHeader && p.header != nil {
		p.state = StateReady
	} else {
		p.header = nil
		p.state = StateInSection
	}
	p.log.WithFields(logrus.Fields{"row": r, "section": section}).Debug("entering section")
}

func (p *Sections) isHeader(row models.Row) bool {
	all := p.layout.Header.Match == "all"
	for _, m := range p.layout.Header.Markers {
		hit := containsFold(row.Cell(int(m.Column)), m.Contains)
		if hit && !all {
			return true
		}
		if !hit && all {
			return false
		}
	}
	return all
}

func (p *Sections) captureHeader(row models.Row) {
	p.header = p.header[:0]
	for i, cell := range row.Cells {
		if cell == "" {
			continue
		}
		p.header = append(p.header, headerCol{offset: i, field: p.layout.FieldName(cell, i)})
	}
	if p.layout.Mapping == layout.MappingHeader {
		for _, h := range p.header {
			p.addColumn(h.field)
		}
		return
	}
	warnDrift(p.log, p.layout.Columns, row)
}

// warnDrift logs every column whose header text no longer matches its label.
func warnDrift(log logrus.FieldLogger, cols []layout.Column, row models.Row) {
	for _, c := range cols {
		if c.Label == "" {
			continue
		}
		got := row.Cell(int(c.Col))
		if normalize.Identifier(got) != normalize.Identifier(c.Label) {
			log.WithFields(logrus.Fields{
				"row":      row.R,
				"field":    c.Field,
				"expected": c.Label,
				"found":    got,
			}).Warn("header label does not match layout")
		}
	}
}

func (p *Sections) record(row models.Row) models.Record {
	rec := make(models.Record, len(p.columns))
	if p.layout.Mapping == layout.MappingHeader {
		for _, h := range p.header {
			rec[h.field] = cellValue(row.Cell(h.offset))
		}
	} else {
		for _, c := range p.layout.Columns {
			rec[c.Field] = cellValue(row.Cell(int(c.Col)))
		}
	}
	rec[p.layout.SectionField] = p.section
	return rec
}

func (p *Sections) addColumn(name string) {
	p.columns = appendUnique(p.columns, name)
}

func cellValue(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// containsFold reports whether substr is within s, ignoring case and accents.
func containsFold(s, substr string) bool {
	if s == "" {
		return false
	}
	return strings.Contains(
		strings.ToLower(normalize.FoldAccents(s)),
		strings.ToLower(normalize.FoldAccents(substr)),
	)
}
