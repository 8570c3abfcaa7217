package grounding

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Capturing variants of the date patterns in grounding.go, used where the
// token must be parsed rather than blanked.
var (
	isoCapRe      = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	slashCapRe    = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)
	monthCapRe    = regexp.MustCompile(`(?i)\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:t|tember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?\b`)
	dayFirstCapRe = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|jun(?:e)?|jul(?:y)?|aug(?:ust)?|sep(?:t|tember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?(?:,?\s+(\d{4}))?\b`)
)

// ExtractDates parses every date token in text from the bounded format set
// (ISO, M/D/Y slash, month-name, day-first). Tokens without a year borrow
// ref's year; parsed dates are anchored at midday in ref's location so a
// timezone offset cannot push a boundary day out of its window.
func ExtractDates(text string, ref time.Time) []time.Time {
	loc := ref.Location()
	if loc == nil {
		loc = time.UTC
	}

	var dates []time.Time
	add := func(year, month, day int) {
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return
		}
		d := time.Date(year, time.Month(month), day, 12, 0, 0, 0, loc)
		// time.Date normalizes Feb 30 into March; reject anything that moved
		if int(d.Month()) != month || d.Day() != day {
			return
		}
		dates = append(dates, d)
	}

	for _, m := range isoCapRe.FindAllStringSubmatch(text, -1) {
		add(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}
	text = isoCapRe.ReplaceAllString(text, " ")

	for _, m := range slashCapRe.FindAllStringSubmatch(text, -1) {
		year := ref.Year()
		if m[3] != "" {
			year = atoi(m[3])
			if year < 100 {
				year += 2000
			}
		}
		add(year, atoi(m[1]), atoi(m[2]))
	}
	text = slashCapRe.ReplaceAllString(text, " ")

	for _, m := range monthCapRe.FindAllStringSubmatch(text, -1) {
		year := ref.Year()
		if m[3] != "" {
			year = atoi(m[3])
		}
		add(year, int(monthFromName(m[1])), atoi(m[2]))
	}
	text = monthCapRe.ReplaceAllString(text, " ")

	for _, m := range dayFirstCapRe.FindAllStringSubmatch(text, -1) {
		year := ref.Year()
		if m[3] != "" {
			year = atoi(m[3])
		}
		add(year, int(monthFromName(m[2])), atoi(m[1]))
	}

	return dates
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func monthFromName(name string) time.Month {
	if len(name) < 3 {
		return 0
	}
	switch strings.ToLower(name[:3]) {
	case "jan":
		return time.January
	case "feb":
		return time.February
	case "mar":
		return time.March
	case "apr":
		return time.April
	case "may":
		return time.May
	case "jun":
		return time.June
	case "jul":
		return time.July
	case "aug":
		return time.August
	case "sep":
		return time.September
	case "oct":
		return time.October
	case "nov":
		return time.November
	case "dec":
		return time.December
	}
	return 0
}
