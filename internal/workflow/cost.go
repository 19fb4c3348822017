package workflow

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// ParseCost reads the numeric part of a cost string such as "$5,000". Text
// without a number reports false instead of failing.
func ParseCost(s string) (int64, bool) {
	clean := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(s))
	if clean == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(clean, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// FormatCost renders n as a dollar amount with thousands separators.
func FormatCost(n int64) string {
	return "$" + humanize.Comma(n)
}

// TotalCost sums the cost of every selected step. Steps whose cost does not
// parse contribute nothing.
func TotalCost(steps []Step) int64 {
	var total int64
	for _, s := range steps {
		if !s.Selected {
			continue
		}
		if n, ok := ParseCost(s.EstimatedCost); ok {
			total += n
		}
	}
	return total
}

var durationRe = regexp.MustCompile(`(?i)^\s*(\d+(?:\.\d+)?)(?:\s*-\s*(\d+(?:\.\d+)?))?\s*(min|minute|minutes|mins|h|hr|hrs|hour|hours|day|days|week|weeks)\s*$`)

// ParseDuration reads estimates like "30 min", "2 hours" or "2-3 weeks". A
// range counts as its upper bound.
func ParseDuration(s string) (time.Duration, bool) {
	m := durationRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if m[2] != "" {
		hi, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return 0, false
		}
		v = max(v, hi)
	}

	var unit time.Duration
	switch strings.ToLower(m[3]) {
	case "min", "minute", "minutes", "mins":
		unit = time.Minute
	case "h", "hr", "hrs", "hour", "hours":
		unit = time.Hour
	case "day", "days":
		unit = 24 * time.Hour
	default:
		unit = 7 * 24 * time.Hour
	}
	return time.Duration(v * float64(unit)), true
}

// TotalTime sums the estimated time of every selected step and renders it
// like "6 hours 37 min".
func TotalTime(steps []Step) string {
	var total time.Duration
	for _, s := range steps {
		if !s.Selected {
			continue
		}
		if d, ok := ParseDuration(s.EstimatedTime); ok {
			total += d
		}
	}
	return FormatDuration(total)
}

// FormatDuration renders d in weeks, days, hours and minutes, dropping zero
// units.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return "0 min"
	}
	units := []struct {
		size time.Duration
		one  string
		many string
	}{
		{7 * 24 * time.Hour, "week", "weeks"},
		{24 * time.Hour, "day", "days"},
		{time.Hour, "hour", "hours"},
		{time.Minute, "min", "min"},
	}

	var parts []string
	for _, u := range units {
		n := d / u.size
		if n == 0 {
			continue
		}
		d -= n * u.size
		name := u.many
		if n == 1 {
			name = u.one
		}
		parts = append(parts, fmt.Sprintf("%d %s", n, name))
	}
	return strings.Join(parts, " ")
}

// budgetRe matches an amount at the end of a budget text: a number, an
// optional scale and an optional currency word. Anything else after the
// number makes the text unparseable.
var budgetRe = regexp.MustCompile(`(?i)(?:^|[^0-9.,])([0-9][0-9,]*(?:\.[0-9]+)?)\s*(k|m|b|bn|thousand|million|billion)?\s*(?:usd|dollars?|eur|euros?|gbp)?\s*[.)]?\s*$`)

// siScale maps a budget scale to the SI prefix humanize.ParseSI understands.
var siScale = map[string]string{
	"":         "",
	"k":        "k",
	"thousand": "k",
	"m":        "M",
	"million":  "M",
	"b":        "G",
	"bn":       "G",
	"billion":  "G",
}

// ParseBudget reads the amount of a budget text such as "$30,000", "$50k",
// "1.2M USD" or "$1.5 million". Text with words after the amount, like
// "5 months of funding", reports false.
func ParseBudget(s string) (float64, bool) {
	m := budgetRe.FindStringSubmatch(" " + strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	num := strings.ReplaceAll(m[1], ",", "")
	prefix, ok := siScale[strings.ToLower(m[2])]
	if !ok {
		return 0, false
	}
	v, _, err := humanize.ParseSI(num + prefix)
	if err != nil {
		return 0, false
	}
	return v, true
}
