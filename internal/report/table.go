// Package report renders events as an aligned text table for terminals.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/evenwebb/penrice-calendar-scraper/internal/model"
)

const dateLayout = "Mon 02 Jan 2006"

var header = []string{"Start", "End", "Days", "Summary"}

// Rows converts events into table cells. End is shown inclusive.
func Rows(events []model.CalendarEvent) [][]string {
	rows := make([][]string, 0, len(events))
	for _, ev := range events {
		r := ev.Inclusive()
		rows = append(rows, []string{
			r.Start.Format(dateLayout),
			r.End.Format(dateLayout),
			strconv.Itoa(r.Days()),
			ev.Summary,
		})
	}
	return rows
}

// WriteTable writes events as a pipe table whose columns line up by display
// width, so summaries with wide runes still align.
func WriteTable(w io.Writer, events []model.CalendarEvent) error {
	table := append([][]string{header}, Rows(events)...)

	colWidths := make([]int, len(header))
	for _, row := range table {
		for i, cell := range row {
			if width := runewidth.StringWidth(cell); width > colWidths[i] {
				colWidths[i] = width
			}
		}
	}

	for i, row := range table {
		if _, err := fmt.Fprintln(w, formatRow(row, colWidths)); err != nil {
			return err
		}
		if i == 0 {
			sep := make([]string, len(colWidths))
			for j, width := range colWidths {
				sep[j] = strings.Repeat("-", width)
			}
			if _, err := fmt.Fprintln(w, formatRow(sep, colWidths)); err != nil {
				return err
			}
		}
	}
	return nil
}

func formatRow(row []string, colWidths []int) string {
	var sb strings.Builder
	sb.WriteString("|")
	for j, content := range row {
		sb.WriteString(" ")
		sb.WriteString(runewidth.FillRight(content, colWidths[j]))
		sb.WriteString(" |")
	}
	return sb.String()
}
