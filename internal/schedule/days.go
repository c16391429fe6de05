package schedule

import "time"

// dayTokens are the weekday tokens the mobile app stores, indexed by
// time.Weekday (Sunday first).
var dayTokens = [7]string{"Min", "Sen", "Sel", "Rab", "Kam", "Jum", "Sab"}

// englishTokens are accepted as aliases.
var englishTokens = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// DayToken returns the stored token for wd.
func DayToken(wd time.Weekday) string {
	return dayTokens[wd]
}

// DayTokens returns every token that means wd.
func DayTokens(wd time.Weekday) []string {
	return []string{dayTokens[wd], englishTokens[wd]}
}

// ParseDay maps a token in either form back to its weekday.
func ParseDay(token string) (time.Weekday, bool) {
	for i := range dayTokens {
		if token == dayTokens[i] || token == englishTokens[i] {
			return time.Weekday(i), true
		}
	}
	return 0, false
}
