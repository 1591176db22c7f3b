package converter

import (
	"strconv"
	"strings"
	"time"
)

// excelEpoch is day zero of the 1900 date system as Excel counts it, with
// the 1900 leap-year bug folded in.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// dateLayouts are tried in order. Slash and dash layouts try month-first
// before day-first: "03/04/2024" is March 4th, while "15/01/2024" only
// parses day-first.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"2006.01.02",
	"20060102",
	"1/2/2006",
	"2/1/2006",
	"1-2-2006",
	"2-1-2006",
	"1/2/2006 15:04:05",
	"2/1/2006 15:04:05",
	"1/2/06",
	"2/1/06",
	"1-2-06",
	"2-1-06",
	"02.01.2006",
	"2-Jan-2006",
	"2-Jan-06",
	"02 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// ParseInvoiceDate turns a cell value into a calendar date. Date-time values
// keep only their date. Bare numbers in Excel's serial range are read as
// serial dates. Anything unparseable falls back to today.
func ParseInvoiceDate(raw string, today time.Time) time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return dateOnly(today)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dateOnly(t)
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= 1 && serial < 2958466 {
		return excelEpoch.AddDate(0, 0, int(serial))
	}
	return dateOnly(today)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
