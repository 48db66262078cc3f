package holiday

import "time"

// Name labels a holiday by the month it starts in.
func Name(start time.Time) string {
	switch start.Month() {
	case time.December, time.January:
		return "Christmas Holidays"
	case time.February:
		return "Spring Half Term"
	case time.March, time.April:
		return "Easter Holiday"
	case time.May, time.June:
		return "Summer Half Term"
	case time.July, time.August:
		return "Summer Holidays"
	case time.October, time.November:
		return "Autumn Half Term"
	default:
		return "Holiday"
	}
}

// Season returns the half-term season for month, or "" when no half term
// normally falls in it.
func Season(month time.Month) string {
	switch month {
	case time.February:
		return "Spring"
	case time.May, time.June:
		return "Summer"
	case time.October, time.November:
		return "Autumn"
	default:
		return ""
	}
}
