package flow

import (
	"strings"
	"time"

	"github.com/example/khanpan/pkg/models"
)

type Period string

const (
	PeriodAll      Period = "all"
	PeriodToday    Period = "today"
	PeriodLastWeek Period = "7days"
	PeriodMonth    Period = "month"
)

type HistoryFilter struct {
	Period Period
	Search string
	Now    time.Time
}

// FilterHistory keeps orders created within the period, measured in Now's
// location, that contain an item whose name includes Search, ignoring case.
// Order is preserved.
func FilterHistory(orders []*models.Order, f HistoryFilter) []*models.Order {
	now := f.Now
	if now.IsZero() {
		now = time.Now()
	}
	search := strings.ToLower(strings.TrimSpace(f.Search))

	out := make([]*models.Order, 0, len(orders))
	for _, o := range orders {
		if !inPeriod(o.CreatedAt.In(now.Location()), f.Period, now) {
			continue
		}
		if search != "" && !hasItem(o, search) {
			continue
		}
		out = append(out, o)
	}
	return out
}

func inPeriod(created time.Time, p Period, now time.Time) bool {
	switch p {
	case PeriodToday:
		y1, m1, d1 := created.Date()
		y2, m2, d2 := now.Date()
		return y1 == y2 && m1 == m2 && d1 == d2
	case PeriodLastWeek:
		return !created.Before(now.Add(-7 * 24 * time.Hour))
	case PeriodMonth:
		return created.Year() == now.Year() && created.Month() == now.Month()
	default:
		return true
	}
}

func hasItem(o *models.Order, search string) bool {
	for _, item := range o.Items {
		if strings.Contains(strings.ToLower(item.Name), search) {
			return true
		}
	}
	return false
}

// ParsePeriod maps a query value to a Period, defaulting to PeriodAll.
func ParsePeriod(v string) Period {
	switch Period(v) {
	case PeriodToday, PeriodLastWeek, PeriodMonth:
		return Period(v)
	default:
		return PeriodAll
	}
}
