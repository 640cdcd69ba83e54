package main

import (
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/eeyn/academica/pkg/academica/models"
	"github.com/eeyn/academica/pkg/academica/report"
)

func printTable(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.AppendBulk(rows)
	table.Render()
}

func printResult(w io.Writer, res *models.Result) {
	title := "Import " + res.Table
	if res.DryRun {
		title += " (dry run)"
	}
	color.New(color.FgCyan, color.Bold).Fprintln(w, title)

	itoa := strconv.Itoa
	printTable(w, []string{"Stage", "Counter", "Value"}, [][]string{
		{"parse", "rows scanned", itoa(res.Parse.RowsScanned)},
		{"parse", "sections", itoa(res.Parse.Sections)},
		{"parse", "skipped markers", itoa(res.Parse.SkippedMarkers)},
		{"parse", "records", itoa(res.Parse.Emitted)},
		{"transform", "filtered", itoa(res.Transform.Filtered)},
		{"transform", "missing key", itoa(res.Transform.MissingKey)},
		{"transform", "duplicates", itoa(res.Transform.Duplicates)},
		{"store", "considered", itoa(res.Upsert.Considered)},
		{"store", "inserted", itoa(res.Upsert.Inserted)},
		{"store", "updated", itoa(res.Upsert.Updated)},
		{"store", "ignored", itoa(res.Upsert.Ignored)},
		{"store", "deleted", itoa(res.Upsert.Deleted)},
		{"store", "columns added", itoa(res.Upsert.ColumnsAdded)},
	})

	switch {
	case res.DryRun:
		color.New(color.FgYellow).Fprintln(w, "Nothing written.")
	case res.Upsert.Inserted+res.Upsert.Updated+res.Upsert.Deleted == 0:
		color.New(color.FgYellow).Fprintln(w, "No changes.")
	default:
		color.New(color.FgGreen).Fprintf(w, "Policy %s applied.\n", res.Policy)
	}
}

func printReport(w io.Writer, sum *report.Summary) {
	color.New(color.FgCyan, color.Bold).Fprintf(w, "Reports in %s\n", sum.Dir)
	rows := make([][]string, 0, len(sum.Written)+len(sum.Skipped))
	for _, f := range sum.Written {
		rows = append(rows, []string{f, color.GreenString("written")})
	}
	for _, f := range sum.Skipped {
		rows = append(rows, []string{f, color.YellowString("skipped")})
	}
	printTable(w, []string{"File", "Status"}, rows)
}
