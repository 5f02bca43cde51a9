package simulation

import (
	"strings"
	"time"

	"github.com/bobmcallan/playasset/internal/models"
)

// Window is an inclusive range of calendar dates.
type Window struct {
	Start time.Time
	End   time.Time
}

// Days is the number of days between start and end.
func (w Window) Days() int {
	return int(w.End.Sub(w.Start).Hours() / 24)
}

// ResolveWindow turns optional YYYY-MM-DD bounds into a window. A blank end
// means today and an end after today is clamped to today. A blank start
// means the earliest buy date when hasBuy, otherwise lookbackMonths before
// the end. A start after the end is rejected.
func ResolveWindow(today time.Time, startText, endText string, earliestBuy time.Time, hasBuy bool, lookbackMonths int) (Window, error) {
	today = models.DateOnly(today)

	end, err := parseDate("end_date", endText, today)
	if err != nil {
		return Window{}, err
	}
	if end.After(today) {
		end = today
	}

	defaultStart := end.AddDate(0, -lookbackMonths, 0)
	if hasBuy {
		defaultStart = models.DateOnly(earliestBuy)
	}
	start, err := parseDate("start_date", startText, defaultStart)
	if err != nil {
		return Window{}, err
	}
	if start.After(end) {
		return Window{}, models.Invalid("start_date", "start date %s is after end date %s",
			start.Format(models.DateLayout), end.Format(models.DateLayout))
	}
	return Window{Start: start, End: end}, nil
}

func parseDate(field, text string, def time.Time) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return def, nil
	}
	t, err := time.Parse(models.DateLayout, text)
	if err != nil {
		return time.Time{}, models.Invalid(field, "expected YYYY-MM-DD, got %q", text)
	}
	return t, nil
}
