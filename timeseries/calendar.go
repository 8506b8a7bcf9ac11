package timeseries

import "time"

// HolidayCalendar answers whether a given day is a holiday. Implementations
// must be pure; the builder may call IsHoliday any number of times for the
// same day.
type HolidayCalendar interface {
	IsHoliday(day time.Time) bool
}

// MapHolidayCalendar is a HolidayCalendar backed by an explicit day set.
type MapHolidayCalendar map[time.Time]bool

// NewMapHolidayCalendar builds a calendar from a list of holiday dates.
func NewMapHolidayCalendar(days []time.Time) MapHolidayCalendar {
	cal := make(MapHolidayCalendar, len(days))
	for _, d := range days {
		cal[Day(d)] = true
	}
	return cal
}

// IsHoliday implements HolidayCalendar.
func (c MapHolidayCalendar) IsHoliday(day time.Time) bool {
	return c[Day(day)]
}

// emptyCalendar is the default when no calendar is configured.
type emptyCalendar struct{}

func (emptyCalendar) IsHoliday(time.Time) bool { return false }

// calendarFeatureNames lists the deterministic decomposition of a day, in
// frame column order.
var calendarFeatureNames = []string{"year", "month", "day", "day_of_week", "is_weekend", "is_holiday"}

// calendarFeatures decomposes a day into its calendar columns.
func calendarFeatures(day time.Time, cal HolidayCalendar) []float64 {
	dow := int(day.Weekday())
	weekend := 0.0
	if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		weekend = 1.0
	}
	holiday := 0.0
	if cal.IsHoliday(day) {
		holiday = 1.0
	}
	return []float64{
		float64(day.Year()),
		float64(int(day.Month())),
		float64(day.Day()),
		float64(dow),
		weekend,
		holiday,
	}
}

// seasonOf maps a month to a meteorological season name, used when the
// exogenous side table carries no explicit season.
func seasonOf(day time.Time) string {
	switch day.Month() {
	case time.December, time.January, time.February:
		return "winter"
	case time.March, time.April, time.May:
		return "spring"
	case time.June, time.July, time.August:
		return "summer"
	default:
		return "fall"
	}
}
