package transform

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/eeyn/academica/pkg/academica/layout"
)

// Day-first layouts tried in order. "1-2-06" is excelize's rendering of the
// built-in short date format and is month-first.
var dateLayouts = []string{
	"2/1/2006",
	"2-1-2006",
	"2006-01-02",
	"2/1/06",
	"1-2-06",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// Excel serial numbers accepted as dates (1927-05-18 .. 9999-12-31).
const (
	minSerial = 10000
	maxSerial = 2958465
)

// Coerce converts a raw cell value to the representation of t. It never fails:
// unparseable dates and decimals become nil, unparseable ints become 0.
func Coerce(t layout.FieldType, v any) any {
	switch t {
	case layout.TypeDate, layout.TypeDateTime:
		return Date(v)
	case layout.TypeInt:
		return Int(v)
	case layout.TypeDecimal:
		return Decimal(v)
	case layout.TypeNumber:
		return Number(v)
	default:
		s, ok := text(v)
		if !ok {
			return nil
		}
		return s
	}
}

// Date parses a day-first date and returns it as YYYY-MM-DD, or nil.
func Date(v any) any {
	s, ok := text(v)
	if !ok {
		return nil
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= minSerial && f <= maxSerial {
		if t, err := excelize.ExcelDateToTime(f, false); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return nil
}

// Int parses an integer, truncating decimals. Anything else is 0.
func Int(v any) any {
	s, ok := text(v)
	if !ok {
		return int64(0)
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if d, err := parseDecimal(s); err == nil {
		return d.IntPart()
	}
	return int64(0)
}

// Decimal parses a number written with a decimal comma or point, or returns nil.
func Decimal(v any) any {
	s, ok := text(v)
	if !ok {
		return nil
	}
	d, err := parseDecimal(s)
	if err != nil {
		return nil
	}
	return d.InexactFloat64()
}

// Number keeps a cell numeric when it can: int64 for whole numbers, float64
// for decimals (comma or point), the trimmed text otherwise.
func Number(v any) any {
	s, ok := text(v)
	if !ok {
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if d, err := parseDecimal(s); err == nil {
		return d.InexactFloat64()
	}
	return s
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	return decimal.NewFromString(s)
}

func text(v any) (string, bool) {
	var s string
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		s = x
	default:
		s = fmt.Sprint(x)
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}
