package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evenwebb/penrice-calendar-scraper/internal/model"
)

func TestWriteTable(t *testing.T) {
	events := []model.CalendarEvent{
		{Summary: "Penrice: Term 1", Start: model.Date(2024, 9, 2), End: model.Date(2024, 12, 21)},
		{Summary: "Penrice: 冬休み", Start: model.Date(2024, 12, 21), End: model.Date(2024, 12, 22)},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, events))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)

	assert.Equal(t, "| Start           | End             | Days | Summary         |", lines[0])
	assert.Equal(t, "| --------------- | --------------- | ---- | --------------- |", lines[1])
	assert.Contains(t, lines[2], "| Mon 02 Sep 2024 | Fri 20 Dec 2024 | 110  |")
	assert.Contains(t, lines[3], "| Sat 21 Dec 2024 | Sat 21 Dec 2024 | 1    |")

	width := runewidth.StringWidth(lines[0])
	for _, line := range lines {
		assert.Equal(t, width, runewidth.StringWidth(line), "line %q", line)
	}
}

func TestRows(t *testing.T) {
	rows := Rows([]model.CalendarEvent{
		{Summary: "Christmas Day", Start: model.Date(2024, 12, 25), End: model.Date(2024, 12, 26)},
	})
	assert.Equal(t, [][]string{{"Wed 25 Dec 2024", "Wed 25 Dec 2024", "1", "Christmas Day"}}, rows)
}

func TestWriteTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, nil))
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))
}
