package holiday

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evenwebb/penrice-calendar-scraper/internal/model"
)

func rng(y1 int, m1 time.Month, d1 int, y2 int, m2 time.Month, d2 int) model.DateRange {
	return model.DateRange{Start: model.Date(y1, m1, d1), End: model.Date(y2, m2, d2)}
}

func TestInfer(t *testing.T) {
	tests := []struct {
		name   string
		ranges []model.DateRange
		want   []model.DateRange
	}{
		{
			name:   "empty input",
			ranges: nil,
		},
		{
			name:   "single range",
			ranges: []model.DateRange{rng(2024, 9, 2, 2024, 9, 20)},
		},
		{
			name: "one gap",
			ranges: []model.DateRange{
				rng(2024, 9, 2, 2024, 9, 20),
				rng(2024, 10, 25, 2024, 10, 27),
			},
			want: []model.DateRange{rng(2024, 9, 21, 2024, 10, 24)},
		},
		{
			name: "adjacent ranges leave no gap",
			ranges: []model.DateRange{
				rng(2024, 9, 2, 2024, 9, 20),
				rng(2024, 9, 21, 2024, 9, 25),
			},
		},
		{
			name: "overlapping ranges leave no gap",
			ranges: []model.DateRange{
				rng(2024, 9, 2, 2024, 9, 20),
				rng(2024, 9, 10, 2024, 9, 25),
			},
		},
		{
			name: "unsorted input",
			ranges: []model.DateRange{
				rng(2025, 1, 6, 2025, 4, 4),
				rng(2024, 9, 2, 2024, 12, 20),
			},
			want: []model.DateRange{rng(2024, 12, 21, 2025, 1, 5)},
		},
		{
			name: "nested range does not open a gap",
			ranges: []model.DateRange{
				rng(2024, 9, 2, 2024, 12, 20),
				rng(2024, 10, 1, 2024, 10, 1),
				rng(2025, 1, 6, 2025, 4, 4),
			},
			want: []model.DateRange{rng(2024, 12, 21, 2025, 1, 5)},
		},
		{
			name: "one-day gap",
			ranges: []model.DateRange{
				rng(2024, 9, 2, 2024, 9, 20),
				rng(2024, 9, 22, 2024, 9, 25),
			},
			want: []model.DateRange{rng(2024, 9, 21, 2024, 9, 21)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := append([]model.DateRange(nil), tt.ranges...)
			got := Infer(tt.ranges)

			require.Len(t, got, len(tt.want))
			for i, rec := range got {
				assert.Equal(t, tt.want[i], rec.Range)
				assert.Equal(t, model.OriginInferredHoliday, rec.Origin)
				assert.Equal(t, Name(rec.Range.Start), rec.Label)
			}
			assert.Equal(t, input, tt.ranges, "input must not be reordered")
		})
	}
}

func TestInferFromMarkers(t *testing.T) {
	records := []model.EventRecord{
		{Label: "Term Begins", Range: rng(2025, 1, 6, 2025, 1, 6)},
		{Label: "End of Term", Range: rng(2024, 12, 20, 2024, 12, 20)},
		{Label: "INSET Day", Range: rng(2025, 1, 3, 2025, 1, 3)},
		{Label: "End of Term", Range: rng(2025, 4, 4, 2025, 4, 4)},
	}

	got := InferFromMarkers(records)
	require.Len(t, got, 1)
	assert.Equal(t, rng(2024, 12, 21, 2025, 1, 5), got[0].Range)
	assert.Equal(t, "Christmas Holidays", got[0].Label)
	assert.Equal(t, model.OriginInferredHoliday, got[0].Origin)
}

func TestName(t *testing.T) {
	tests := []struct {
		month time.Month
		want  string
	}{
		{time.December, "Christmas Holidays"},
		{time.January, "Christmas Holidays"},
		{time.February, "Spring Half Term"},
		{time.April, "Easter Holiday"},
		{time.May, "Summer Half Term"},
		{time.July, "Summer Holidays"},
		{time.October, "Autumn Half Term"},
		{time.September, "Holiday"},
	}

	for _, tt := range tests {
		t.Run(tt.month.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Name(model.Date(2024, tt.month, 10)))
		})
	}
}

func TestSchoolDays(t *testing.T) {
	assert.Equal(t, 5, SchoolDays(rng(2024, 10, 28, 2024, 11, 1)))
	assert.Equal(t, 5, SchoolDays(rng(2024, 10, 26, 2024, 11, 3)))
	assert.Equal(t, 0, SchoolDays(rng(2024, 10, 26, 2024, 10, 27)))
	assert.Equal(t, 1, SchoolDays(rng(2024, 12, 25, 2024, 12, 25)))
	assert.Equal(t, 0, SchoolDays(rng(2024, 12, 25, 2024, 12, 24)))
}

func TestExpandHalfTerm(t *testing.T) {
	wed := model.EventRecord{Label: "Half Term", Range: rng(2024, 10, 30, 2024, 10, 30)}

	got := ExpandHalfTerm(wed, "Half Term 30th October 2024")
	assert.Equal(t, rng(2024, 10, 28, 2024, 11, 1), got.Range)
	assert.Equal(t, "Half Term", got.Label)
	assert.Equal(t, wed.Range, rng(2024, 10, 30, 2024, 10, 30), "input must not change")

	sunday := model.EventRecord{Label: "Autumn Half Term", Range: rng(2024, 11, 3, 2024, 11, 3)}
	assert.Equal(t, rng(2024, 10, 28, 2024, 11, 1), ExpandHalfTerm(sunday, "").Range)

	early := model.EventRecord{Label: "Half Term", Range: rng(2024, 10, 25, 2024, 10, 25)}
	assert.Equal(t, early, ExpandHalfTerm(early, "Half Term 25th October 2024 Begins at 3:00pm"))

	multi := model.EventRecord{Label: "Half Term", Range: rng(2024, 10, 28, 2024, 11, 1)}
	assert.Equal(t, multi, ExpandHalfTerm(multi, ""))

	other := model.EventRecord{Label: "INSET Day", Range: rng(2024, 10, 30, 2024, 10, 30)}
	assert.Equal(t, other, ExpandHalfTerm(other, ""))
}
