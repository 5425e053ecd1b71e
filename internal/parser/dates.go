package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Month names and abbreviations as they appear on Guinean news sites,
// French with and without accents plus English. "mar" is left out since
// it abbreviates mardi far more often than mars.
var monthNames = map[string]time.Month{
	"janvier": time.January, "janv": time.January, "jan": time.January, "january": time.January,
	"février": time.February, "fevrier": time.February, "févr": time.February, "fevr": time.February,
	"fév": time.February, "fev": time.February, "feb": time.February, "february": time.February,
	"mars": time.March, "march": time.March,
	"avril": time.April, "avr": time.April, "apr": time.April, "april": time.April,
	"mai": time.May, "may": time.May,
	"juin": time.June, "jun": time.June, "june": time.June,
	"juillet": time.July, "juil": time.July, "jul": time.July, "july": time.July,
	"août": time.August, "aout": time.August, "aug": time.August, "august": time.August,
	"septembre": time.September, "sept": time.September, "sep": time.September, "september": time.September,
	"octobre": time.October, "oct": time.October, "october": time.October,
	"novembre": time.November, "nov": time.November, "november": time.November,
	"décembre": time.December, "decembre": time.December, "déc": time.December,
	"dec": time.December, "december": time.December,
}

// Units of "il y a N ..." and "N ... ago" expressions.
var relativeUnits = map[string]time.Duration{
	"seconde": time.Second, "second": time.Second, "sec": time.Second,
	"minute": time.Minute, "min": time.Minute, "mn": time.Minute,
	"heure": time.Hour, "hour": time.Hour, "h": time.Hour,
	"jour": 24 * time.Hour, "day": 24 * time.Hour, "j": 24 * time.Hour,
	"semaine": 7 * 24 * time.Hour, "week": 7 * 24 * time.Hour,
}

// Layouts tried after the fuzzy day-first parse.
var dateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04",
	"02/01/2006",
	"02-01-2006",
	"2 January 2006",
	"2 Jan 2006",
}

var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

var (
	dateToken   = regexp.MustCompile(`\d{1,2}:\d{2}(?::\d{2})?|\d{1,2}h\d{0,2}|\d+|\p{L}+`)
	urlDate     = regexp.MustCompile(`/(\d{4})/(\d{2})/(\d{2})/`)
	relativeAgo = regexp.MustCompile(`il y a\s+(\d+|une?)\s*(\p{L}+)|(\d+|an?)\s*(\p{L}+)\s+ago`)
	clockTime   = regexp.MustCompile(`(\d{1,2})\s*[:h]\s*(\d{2})`)
)

// ParseDate turns a raw date string into a wall-clock time in loc. ISO
// strings keep their local wall clock with the zone dropped. French dates
// are parsed day-first, and relative expressions ("il y a 3 heures",
// "hier") are resolved against the current time. Unparseable input yields nil.
func ParseDate(raw string, loc *time.Location) *time.Time {
	return parseDate(raw, loc, time.Now())
}

func parseDate(raw string, loc *time.Location, now time.Time) *time.Time {
	if loc == nil {
		loc = time.UTC
	}
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}

	if strings.Contains(s, "T") && strings.Count(s, "-") >= 2 {
		for _, layout := range isoLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return wallClock(t, loc)
			}
		}
	}

	lower := strings.ToLower(s)
	if t, ok := fuzzyDayFirst(lower, loc, now.In(loc)); ok {
		return &t
	}
	if t, ok := relativeDate(lower, loc, now.In(loc)); ok {
		return &t
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return wallClock(t, loc)
		}
	}
	return nil
}

// relativeDate resolves "il y a 3 heures", "2 days ago", "hier à 10h30"
// and similar expressions against now.
func relativeDate(s string, loc *time.Location, now time.Time) (time.Time, bool) {
	if m := relativeAgo.FindStringSubmatch(s); m != nil {
		qty, unit := m[1], m[2]
		if qty == "" {
			qty, unit = m[3], m[4]
		}
		n, err := strconv.Atoi(qty)
		if err != nil {
			n = 1
		}
		unit = strings.TrimSuffix(unit, "s")
		switch unit {
		case "moi", "mois", "month":
			return now.AddDate(0, -n, 0).Truncate(time.Second), true
		case "an", "année", "annee", "year":
			return now.AddDate(-n, 0, 0).Truncate(time.Second), true
		}
		if d, ok := relativeUnits[unit]; ok {
			return now.Add(-time.Duration(n) * d).Truncate(time.Second), true
		}
	}

	offset := -1
	for _, w := range dateToken.FindAllString(s, -1) {
		switch w {
		case "aujourd", "today":
			offset = 0
		case "avant":
			if strings.Contains(s, "avant-hier") {
				offset = 2
			}
		case "hier", "yesterday":
			if offset < 0 {
				offset = 1
			}
		}
	}
	if offset < 0 {
		return time.Time{}, false
	}
	d := now.AddDate(0, 0, -offset)
	hour, minute := 0, 0
	if m := clockTime.FindStringSubmatch(s); m != nil {
		hour, _ = strconv.Atoi(m[1])
		minute, _ = strconv.Atoi(m[2])
		if hour > 23 || minute > 59 {
			return time.Time{}, false
		}
	}
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, loc), true
}

func wallClock(t time.Time, loc *time.Location) *time.Time {
	w := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc)
	return &w
}

// fuzzyDayFirst picks a date out of free text. A month name anchors the
// date; otherwise at least two numbers are needed and the first is the
// day unless it is a four-digit year.
func fuzzyDayFirst(s string, loc *time.Location, now time.Time) (time.Time, bool) {
	var (
		nums              []string
		month             time.Month
		hour, minute, sec int
		pm                bool
	)
	for _, tok := range dateToken.FindAllString(s, -1) {
		switch {
		case strings.Contains(tok, ":"):
			parts := strings.Split(tok, ":")
			hour, _ = strconv.Atoi(parts[0])
			minute, _ = strconv.Atoi(parts[1])
			if len(parts) > 2 {
				sec, _ = strconv.Atoi(parts[2])
			}
		case isDigit(tok[0]) && strings.Contains(tok, "h"):
			h, m, _ := strings.Cut(tok, "h")
			hour, _ = strconv.Atoi(h)
			minute, _ = strconv.Atoi(m)
		case isDigit(tok[0]):
			nums = append(nums, tok)
		case tok == "pm":
			pm = true
		default:
			if m, ok := monthNames[tok]; ok && month == 0 {
				month = m
			}
		}
	}

	var year, day int
	if month != 0 {
		for _, n := range nums {
			v, _ := strconv.Atoi(n)
			switch {
			case len(n) == 4 && year == 0:
				year = v
			case day == 0 && len(n) <= 2 && v >= 1 && v <= 31:
				day = v
			case year == 0 && len(n) == 2:
				year = 2000 + v
			}
		}
		if day == 0 {
			return time.Time{}, false
		}
		if year == 0 {
			year = now.Year()
		}
	} else {
		if len(nums) < 2 {
			return time.Time{}, false
		}
		a, _ := strconv.Atoi(nums[0])
		b, _ := strconv.Atoi(nums[1])
		c := -1
		if len(nums) > 2 {
			c, _ = strconv.Atoi(nums[2])
		}
		switch {
		case len(nums[0]) == 4:
			if c < 0 {
				return time.Time{}, false
			}
			year, month, day = a, time.Month(b), c
		default:
			day, month = a, time.Month(b)
			if month > 12 && day <= 12 {
				day, month = int(month), time.Month(day)
			}
			switch {
			case c < 0:
				year = now.Year()
			case len(nums[2]) == 2:
				year = 2000 + c
			default:
				year = c
			}
		}
	}

	if pm && hour < 12 {
		hour += 12
	}
	if month < 1 || month > 12 || day < 1 || year < 1900 || hour > 23 || minute > 59 || sec > 59 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, hour, minute, sec, 0, loc)
	if t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// DateFromURL reads a /YYYY/MM/DD/ segment from an article URL.
func DateFromURL(rawURL string, loc *time.Location) *time.Time {
	if loc == nil {
		loc = time.UTC
	}
	m := urlDate.FindStringSubmatch(rawURL)
	if m == nil {
		return nil
	}
	y, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	d, _ := strconv.Atoi(m[3])
	if mo < 1 || mo > 12 || d < 1 {
		return nil
	}
	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, loc)
	if t.Day() != d {
		return nil
	}
	return &t
}
