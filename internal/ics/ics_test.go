package ics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evenwebb/penrice-calendar-scraper/internal/model"
)

var feedOpts = FeedOptions{ProdID: "-//Penrice Academy//EN", Name: "Penrice Academy Term Dates"}

func rec(label string, y1 int, m1 time.Month, d1 int, y2 int, m2 time.Month, d2 int) model.EventRecord {
	return model.EventRecord{
		Label: label,
		Range: model.DateRange{Start: model.Date(y1, m1, d1), End: model.Date(y2, m2, d2)},
	}
}

func sampleEvents() []model.CalendarEvent {
	return []model.CalendarEvent{
		NewCalendarEvent(rec("Penrice: Term 1", 2024, 9, 2, 2024, 12, 20), "penrice-calendar"),
		NewCalendarEvent(rec("Penrice: Christmas Holidays", 2024, 12, 21, 2025, 1, 5), "penrice-calendar"),
		NewCalendarEvent(rec("Penrice: Term 2", 2025, 1, 6, 2025, 4, 4), "penrice-calendar"),
	}
}

func TestNewCalendarEvent(t *testing.T) {
	ev := NewCalendarEvent(rec("Christmas Day", 2024, 12, 25, 2024, 12, 25), "penrice-calendar")

	assert.Equal(t, "Christmas Day", ev.Summary)
	assert.Equal(t, model.Date(2024, 12, 25), ev.Start)
	assert.Equal(t, model.Date(2024, 12, 26), ev.End, "end is exclusive")
	assert.True(t, strings.HasSuffix(ev.UID, "@penrice-calendar"))

	again := NewCalendarEvent(rec("Christmas Day", 2024, 12, 25, 2024, 12, 25), "penrice-calendar")
	assert.Equal(t, ev.UID, again.UID)

	other := NewCalendarEvent(rec("Christmas Day", 2025, 12, 25, 2025, 12, 25), "penrice-calendar")
	assert.NotEqual(t, ev.UID, other.UID)
}

func TestUIDWithoutDomain(t *testing.T) {
	uid := UID("x", model.Single(model.Date(2024, 1, 1)), "")
	assert.NotContains(t, uid, "@")
	assert.Len(t, uid, 36)
}

func TestSerialize_Structure(t *testing.T) {
	out := string(Serialize(sampleEvents()[:1], feedOpts))

	assert.True(t, strings.HasPrefix(out, "BEGIN:VCALENDAR\r\n"))
	assert.True(t, strings.HasSuffix(out, "END:VCALENDAR\r\n"))
	assert.Equal(t, strings.Count(out, "\n"), strings.Count(out, "\r\n"), "every line ends in CRLF")
	for _, line := range []string{
		"VERSION:2.0",
		"PRODID:-//Penrice Academy//EN",
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
		"X-WR-CALNAME:Penrice Academy Term Dates",
		"BEGIN:VEVENT",
		"DTSTAMP:20240902T000000Z",
		"DTSTART;VALUE=DATE:20240902",
		"DTEND;VALUE=DATE:20241221",
		"SUMMARY:Penrice: Term 1",
		"END:VEVENT",
	} {
		assert.Contains(t, out, "\r\n"+line+"\r\n")
	}
	assert.NotContains(t, out, "DESCRIPTION")
	assert.Equal(t, 1, strings.Count(out, "BEGIN:VEVENT"))
}

func TestSerialize_Deterministic(t *testing.T) {
	events := sampleEvents()
	first := Serialize(events, feedOpts)
	second := Serialize(events, feedOpts)
	assert.Equal(t, first, second)

	reversed := []model.CalendarEvent{events[2], events[0], events[1]}
	assert.Equal(t, first, Serialize(reversed, feedOpts))
}

func TestSerialize_DropsDuplicates(t *testing.T) {
	events := sampleEvents()
	withDup := append(append([]model.CalendarEvent(nil), events...), events[1])

	out := string(Serialize(withDup, feedOpts))
	assert.Equal(t, 3, strings.Count(out, "BEGIN:VEVENT"))
	assert.Equal(t, Serialize(events, feedOpts), []byte(out))
}

func TestSortEvents(t *testing.T) {
	a := NewCalendarEvent(rec("B", 2024, 9, 2, 2024, 9, 2), "")
	b := NewCalendarEvent(rec("A", 2024, 9, 2, 2024, 9, 3), "")
	c := NewCalendarEvent(rec("A", 2024, 9, 2, 2024, 9, 2), "")
	d := NewCalendarEvent(rec("Z", 2024, 9, 1, 2024, 9, 1), "")

	input := []model.CalendarEvent{a, b, c, d}
	got := SortEvents(input)

	assert.Equal(t, []model.CalendarEvent{d, c, b, a}, got)
	assert.Equal(t, a, input[0], "input is not reordered")
}

func TestSerialize_FoldsLongLines(t *testing.T) {
	long := "Penrice: " + strings.Repeat("Whole school celebration assembly and awards evening ", 4)
	long = strings.TrimSpace(long)
	ev := NewCalendarEvent(rec(long, 2024, 7, 18, 2024, 7, 18), "penrice-calendar")
	ev.Description = "1 school days"

	out := string(Serialize([]model.CalendarEvent{ev}, feedOpts))
	require.True(t, strings.HasSuffix(out, "\r\n"))
	require.NotContains(t, strings.ReplaceAll(out, "\r\n", ""), "\n", "continuations are CRLF + space")

	lines := strings.Split(strings.TrimSuffix(out, "\r\n"), "\r\n")
	folded := 0
	for _, line := range lines {
		assert.LessOrEqual(t, len(line), 75, "line %q", line)
		assert.NotContains(t, line, "\n")
		if strings.HasPrefix(line, " ") {
			folded++
		}
	}
	assert.Positive(t, folded, "expected at least one continuation line")

	parsed, err := ParseFeed([]byte(out))
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Equal(t, long, parsed[0].Summary)
	assert.Equal(t, "1 school days", parsed[0].Description)
}

func TestParseFeed_RoundTrip(t *testing.T) {
	events := sampleEvents()
	events[0].Description = "75 school days; starts Monday, 2nd"

	parsed, err := ParseFeed(Serialize(events, feedOpts))
	require.NoError(t, err)
	require.Len(t, parsed, len(events))

	for i, want := range SortEvents(events) {
		got := parsed[i]
		assert.Equal(t, want.UID, got.UID)
		assert.Equal(t, want.Summary, got.Summary)
		assert.Equal(t, want.Description, got.Description)
		assert.Equal(t, want.Start, got.Start)
		assert.Equal(t, want.End, got.End)
	}

	assert.Equal(t,
		model.DateRange{Start: model.Date(2024, 12, 21), End: model.Date(2025, 1, 5)},
		parsed[1].Inclusive(),
	)
}

func TestParseFeed_Errors(t *testing.T) {
	_, err := ParseFeed(nil)
	require.Error(t, err)

	body := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:x\r\n" +
		"BEGIN:VEVENT\r\nSUMMARY:no uid\r\nDTSTART;VALUE=DATE:20240101\r\nEND:VEVENT\r\n" +
		"BEGIN:VEVENT\r\nUID:ok\r\nSUMMARY:single\r\nDTSTART;VALUE=DATE:20240102\r\nEND:VEVENT\r\n" +
		"END:VCALENDAR\r\n"
	events, err := ParseFeed([]byte(body))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ok", events[0].UID)
	assert.Equal(t, model.Single(model.Date(2024, 1, 2)), events[0].Inclusive())
}

func TestWriteFeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "penrice.ics")
	body := Serialize(sampleEvents(), feedOpts)

	changed, err := WriteFeed(path, body)
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, body, got)

	changed, err = WriteFeed(path, body)
	require.NoError(t, err)
	assert.False(t, changed, "identical content is not rewritten")

	changed, err = WriteFeed(path, Serialize(sampleEvents()[:1], feedOpts))
	require.NoError(t, err)
	assert.True(t, changed)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestWriteFeed_EmptyPath(t *testing.T) {
	_, err := WriteFeed("", []byte("x"))
	require.Error(t, err)
}
