package internal

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var apMonths = [...]string{
	"Jan.", "Feb.", "March", "April", "May", "June",
	"July", "Aug.", "Sept.", "Oct.", "Nov.", "Dec.",
}

// DateFormat formats t with the template date-format characters
// (Y m d H i s N j P ...). A backslash escapes the next character.
func DateFormat(t time.Time, format string) string {
	var sb strings.Builder
	escaped := false
	for _, c := range format {
		if escaped {
			sb.WriteRune(c)
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if s, ok := formatDateChar(t, c); ok {
			sb.WriteString(s)
		} else {
			sb.WriteRune(c)
		}
	}
	return sb.String()
}

func formatDateChar(t time.Time, c rune) (string, bool) {
	switch c {
	case 'a':
		if t.Hour() < 12 {
			return "a.m.", true
		}
		return "p.m.", true
	case 'A':
		if t.Hour() < 12 {
			return "AM", true
		}
		return "PM", true
	case 'b':
		return strings.ToLower(t.Format("Jan")), true
	case 'c':
		return t.Format(time.RFC3339), true
	case 'd':
		return t.Format("02"), true
	case 'D':
		return t.Format("Mon"), true
	case 'E', 'F':
		return t.Format("January"), true
	case 'f':
		return hourMinute12(t), true
	case 'g':
		return strconv.Itoa(hour12(t)), true
	case 'G':
		return strconv.Itoa(t.Hour()), true
	case 'h':
		return fmt.Sprintf("%02d", hour12(t)), true
	case 'H':
		return t.Format("15"), true
	case 'i':
		return t.Format("04"), true
	case 'j':
		return strconv.Itoa(t.Day()), true
	case 'l':
		return t.Format("Monday"), true
	case 'L':
		return ToString(isLeap(t.Year())), true
	case 'm':
		return t.Format("01"), true
	case 'M':
		return t.Format("Jan"), true
	case 'n':
		return strconv.Itoa(int(t.Month())), true
	case 'N':
		return apMonths[t.Month()-1], true
	case 'o':
		year, _ := t.ISOWeek()
		return strconv.Itoa(year), true
	case 'O':
		return t.Format("-0700"), true
	case 'P':
		switch {
		case t.Minute() == 0 && t.Hour() == 0:
			return "midnight", true
		case t.Minute() == 0 && t.Hour() == 12:
			return "noon", true
		}
		a, _ := formatDateChar(t, 'a')
		return hourMinute12(t) + " " + a, true
	case 'r':
		return t.Format("Mon, 02 Jan 2006 15:04:05 -0700"), true
	case 's':
		return t.Format("05"), true
	case 'S':
		return ordinalSuffix(t.Day()), true
	case 't':
		return strconv.Itoa(daysIn(t)), true
	case 'T':
		return t.Format("MST"), true
	case 'u':
		return fmt.Sprintf("%06d", t.Nanosecond()/1000), true
	case 'U':
		return strconv.FormatInt(t.Unix(), IntBase10), true
	case 'w':
		return strconv.Itoa(int(t.Weekday())), true
	case 'W':
		_, week := t.ISOWeek()
		return strconv.Itoa(week), true
	case 'y':
		return t.Format("06"), true
	case 'Y':
		return strconv.Itoa(t.Year()), true
	case 'z':
		return strconv.Itoa(t.YearDay()), true
	case 'Z':
		_, offset := t.Zone()
		return strconv.Itoa(offset), true
	}
	return "", false
}

func hour12(t time.Time) int {
	h := t.Hour() % 12
	if h == 0 {
		return 12
	}
	return h
}

func hourMinute12(t time.Time) string {
	if t.Minute() == 0 {
		return strconv.Itoa(hour12(t))
	}
	return fmt.Sprintf("%d:%02d", hour12(t), t.Minute())
}

func ordinalSuffix(day int) string {
	if day >= 11 && day <= 13 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	}
	return "th"
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func daysIn(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
