// internal/model/frequency.go
package model

import "time"

type Frequency string

const (
	FrequencyOnce       Frequency = "once"
	FrequencyHourly     Frequency = "1hours"
	FrequencyFourHours  Frequency = "4hours"
	FrequencyEightHours Frequency = "8hours"
	FrequencyDaily      Frequency = "everyDay"
	FrequencyWeekly     Frequency = "weekly"
	FrequencyOtherWeek  Frequency = "otherWeek"
	FrequencyMonthly    Frequency = "monthly"
	FrequencyOtherMonth Frequency = "otherMonth"
	FrequencyQuarterly  Frequency = "quarterly"
)

// Delay is a calendar offset. Months are applied with end-of-month clamping.
type Delay struct {
	Hours  int
	Days   int
	Months int
}

func (d Delay) IsZero() bool {
	return d.Hours == 0 && d.Days == 0 && d.Months == 0
}

var frequencyDelays = map[Frequency]Delay{
	FrequencyOnce:       {},
	FrequencyHourly:     {Hours: 1},
	FrequencyFourHours:  {Hours: 4},
	FrequencyEightHours: {Hours: 8},
	FrequencyDaily:      {Days: 1},
	FrequencyWeekly:     {Days: 7},
	FrequencyOtherWeek:  {Days: 14},
	FrequencyMonthly:    {Months: 1},
	FrequencyOtherMonth: {Months: 2},
	FrequencyQuarterly:  {Months: 3},
}

func (f Frequency) Valid() bool {
	_, ok := frequencyDelays[f]
	return ok
}

// Delay returns the round length for f. Unknown frequencies yield a zero delay.
func (f Frequency) Delay() Delay {
	return frequencyDelays[f]
}

// Advance moves t forward by one period of f.
func (f Frequency) Advance(t time.Time) time.Time {
	d := f.Delay()
	t = addMonthsClamped(t, d.Months)
	return t.AddDate(0, 0, d.Days).Add(time.Duration(d.Hours) * time.Hour)
}

// Rollback moves t back by one period of f. It inverts Advance for every
// instant whose day of month exists in the target month.
func (f Frequency) Rollback(t time.Time) time.Time {
	d := f.Delay()
	t = t.Add(-time.Duration(d.Hours) * time.Hour).AddDate(0, 0, -d.Days)
	return addMonthsClamped(t, -d.Months)
}

// Reanchor recomputes a fire time after the frequency of a running campaign
// changed from old to f: the old period is removed and the new one applied
// from the same anchor, which keeps the time of day and weekday.
func (f Frequency) Reanchor(fireTime time.Time, old Frequency) time.Time {
	return f.Advance(old.Rollback(fireTime))
}

func addMonthsClamped(t time.Time, months int) time.Time {
	if months == 0 {
		return t
	}
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month(), t.Location()); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// RollToWeekday returns the first instant at or after t falling on day,
// keeping t's time of day. A nil day returns t unchanged.
func RollToWeekday(t time.Time, day *time.Weekday) time.Time {
	if day == nil {
		return t
	}
	diff := (int(*day) - int(t.Weekday()) + 7) % 7
	return t.AddDate(0, 0, diff)
}
