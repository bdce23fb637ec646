package normalize

import (
	"encoding/json"
	"strings"
)

const (
	// RoundTheClock is shown when every day is open 00:00–24:00
	RoundTheClock = "круглосуточно"
	// Daily prefixes a single interval shared by every day
	Daily = "ежедневно"

	fullDay = "00:00–24:00"
)

var (
	dayOrder  = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
	dayLabels = map[string]string{
		"Mon": "пн", "Tue": "вт", "Wed": "ср", "Thu": "чт",
		"Fri": "пт", "Sat": "сб", "Sun": "вс",
	}
)

// WorkingHours is one open interval
type WorkingHours struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ScheduleDay is the catalog's entry for one weekday
type ScheduleDay struct {
	WorkingHours []WorkingHours `json:"working_hours"`
}

// Schedule maps a weekday key (Mon..Sun) to its entry
type Schedule map[string]ScheduleDay

// DecodeSchedule reads the schedule object leniently. Non-day keys such as
// is_24x7 and entries that fail to decode are ignored.
func DecodeSchedule(raw json.RawMessage) Schedule {
	var fields map[string]json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &fields) != nil {
		return nil
	}
	out := make(Schedule, len(dayOrder))
	for _, d := range dayOrder {
		v, ok := fields[d]
		if !ok {
			continue
		}
		var day ScheduleDay
		if json.Unmarshal(v, &day) == nil {
			out[d] = day
		}
	}
	return out
}

// interval returns the first interval of day d, or "" when closed or absent
func (s Schedule) interval(d string) string {
	day, ok := s[d]
	if !ok || len(day.WorkingHours) == 0 {
		return ""
	}
	wh := day.WorkingHours[0]
	return wh.From + "–" + wh.To
}

// FormatSchedule renders the schedule in compact Russian form, e.g.
// "пн–пт 09:00–18:00; сб 10:00–16:00". Missing days are gaps.
func FormatSchedule(s Schedule) string {
	times := make([]string, len(dayOrder))
	open := 0
	for i, d := range dayOrder {
		times[i] = s.interval(d)
		if times[i] != "" {
			open++
		}
	}
	if open == 0 {
		return ""
	}

	if open == len(dayOrder) {
		same := true
		for _, t := range times[1:] {
			if t != times[0] {
				same = false
				break
			}
		}
		if same && times[0] == fullDay {
			return RoundTheClock
		}
		if same {
			return Daily + ", " + times[0]
		}
	}

	var ranges []string
	for i := 0; i < len(dayOrder); {
		if times[i] == "" {
			i++
			continue
		}
		j := i + 1
		for j < len(dayOrder) && times[j] == times[i] {
			j++
		}
		days := dayLabels[dayOrder[i]]
		if j-i > 1 {
			days += "–" + dayLabels[dayOrder[j-1]]
		}
		ranges = append(ranges, days+" "+times[i])
		i = j
	}
	return strings.Join(ranges, "; ")
}
