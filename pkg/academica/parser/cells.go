// Package parser turns report rows into normalized records.
package parser

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/eeyn/academica/pkg/academica/models"
)

// ErrUnsupportedFormat indicates the input is neither a readable xlsx nor a csv file.
var ErrUnsupportedFormat = errors.New("unsupported input format")

// RowSource is a lazy, single-pass sequence of rows.
type RowSource interface {
	Next() bool
	Row() models.Row
	Err() error
	Close() error
}

// Open returns a RowSource for path, chosen by file extension. sheet selects
// the worksheet of a workbook; the first sheet is used when empty.
func Open(path, sheet string) (RowSource, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return OpenXLSX(path, sheet)
	case ".csv", ".txt":
		return OpenCSV(path)
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%s", filepath.Base(path))
	}
}

type xlsxSource struct {
	f    *excelize.File
	rows *excelize.Rows
	cur  models.Row
	n    int
	err  error
}

// OpenXLSX streams the rows of one worksheet.
func OpenXLSX(path, sheet string) (RowSource, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%s: %v", filepath.Base(path), err)
	}
	if sheet == "" {
		list := f.GetSheetList()
		if len(list) == 0 {
			_ = f.Close()
			return nil, errors.Wrapf(ErrUnsupportedFormat, "%s has no worksheets", filepath.Base(path))
		}
		sheet = list[0]
	}
	rows, err := f.Rows(sheet)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "sheet %q", sheet)
	}
	return &xlsxSource{f: f, rows: rows}, nil
}

func (s *xlsxSource) Next() bool {
	if s.err != nil || !s.rows.Next() {
		return false
	}
	s.n++
	cols, err := s.rows.Columns()
	if err != nil {
		s.err = errors.Wrapf(err, "row %d", s.n)
		return false
	}
	s.cur = models.Row{R: s.n, Cells: trimCells(cols)}
	return true
}

func (s *xlsxSource) Row() models.Row { return s.cur }

func (s *xlsxSource) Err() error {
	if s.err != nil {
		return s.err
	}
	return s.rows.Error()
}

func (s *xlsxSource) Close() error {
	rerr := s.rows.Close()
	if err := s.f.Close(); err != nil {
		return err
	}
	return rerr
}

type csvSource struct {
	r     *csv.Reader
	close func() error
	cur   models.Row
	n     int
	err   error
}

// OpenCSV streams the records of a csv file. A UTF-8 BOM is skipped.
func OpenCSV(path string) (RowSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return newCSVSource(f, f.Close), nil
}

// NewCSVSource reads csv rows from r.
func NewCSVSource(r io.Reader) RowSource {
	return newCSVSource(r, func() error { return nil })
}

func newCSVSource(r io.Reader, closeFn func() error) *csvSource {
	cr := csv.NewReader(SkipBOM(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return &csvSource{r: cr, close: closeFn}
}

// SkipBOM returns a reader positioned after a leading UTF-8 byte order mark, if any.
func SkipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	b, err := br.Peek(3)
	if err == nil && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, _ = br.Discard(3)
	}
	return br
}

func (s *csvSource) Next() bool {
	if s.err != nil {
		return false
	}
	rec, err := s.r.Read()
	if err != nil {
		if err != io.EOF {
			s.err = errors.Wrapf(err, "line %d", s.n+1)
		}
		return false
	}
	s.n++
	s.cur = models.Row{R: s.n, Cells: trimCells(rec)}
	return true
}

func (s *csvSource) Row() models.Row { return s.cur }
func (s *csvSource) Err() error      { return s.err }
func (s *csvSource) Close() error    { return s.close() }

type sliceSource struct {
	rows [][]string
	i    int
}

// NewSliceSource serves rows that are already in memory.
func NewSliceSource(rows [][]string) RowSource {
	return &sliceSource{rows: rows}
}

func (s *sliceSource) Next() bool {
	if s.i >= len(s.rows) {
		return false
	}
	s.i++
	return true
}

func (s *sliceSource) Row() models.Row {
	return models.Row{R: s.i, Cells: trimCells(s.rows[s.i-1])}
}

func (s *sliceSource) Err() error   { return nil }
func (s *sliceSource) Close() error { return nil }

func trimCells(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(c)
	}
	return out
}
