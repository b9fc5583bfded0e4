// Package plan builds a simple weekly study schedule from a list of subjects.
package plan

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// MaxHoursPerDay bounds the daily study load.
const MaxHoursPerDay = 12

// DefaultRestDay is used when the request does not name one.
const DefaultRestDay = "Pazar"

// Days lists the week starting on Monday.
var Days = []string{"Pazartesi", "Salı", "Çarşamba", "Perşembe", "Cuma", "Cumartesi", "Pazar"}

var (
	ErrSubjectsRequired = errors.New("plan: at least one subject required")
	ErrInvalidHours     = errors.New("plan: hoursPerDay must be a whole number between 1 and 12")
	ErrInvalidRestDay   = errors.New("plan: unknown rest day")
)

// Request is the /plan input.
type Request struct {
	Subjects    []string `json:"subjects"`
	HoursPerDay float64  `json:"hoursPerDay"`
	RestDay     string   `json:"restDay,omitempty"`
}

// Item is a block of study time for one subject.
type Item struct {
	Subject string `json:"subject"`
	Hours   int    `json:"hours"`
}

// Day is one day of the plan. Rest days carry no items.
type Day struct {
	Day   string `json:"day"`
	Rest  bool   `json:"rest,omitempty"`
	Items []Item `json:"items"`
}

// Plan is a full week.
type Plan struct {
	Days []Day  `json:"plan"`
	Text string `json:"text"`
}

// Code maps a validation error to its wire code.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidHours):
		return "invalid_hours"
	case errors.Is(err, ErrInvalidRestDay):
		return "invalid_rest_day"
	default:
		return "subjects_required"
	}
}

// Build lays subjects out round-robin over the week, one hour at a time,
// continuing where the previous day stopped.
func Build(req Request) (Plan, error) {
	subjects := make([]string, 0, len(req.Subjects))
	for _, s := range req.Subjects {
		if s = strings.TrimSpace(s); s != "" {
			subjects = append(subjects, s)
		}
	}
	if len(subjects) == 0 {
		return Plan{}, ErrSubjectsRequired
	}

	if req.HoursPerDay != math.Trunc(req.HoursPerDay) || req.HoursPerDay < 1 || req.HoursPerDay > MaxHoursPerDay {
		return Plan{}, fmt.Errorf("%w: got %v", ErrInvalidHours, req.HoursPerDay)
	}
	hours := int(req.HoursPerDay)

	restDay := DefaultRestDay
	if strings.TrimSpace(req.RestDay) != "" {
		day, ok := LookupDay(req.RestDay)
		if !ok {
			return Plan{}, fmt.Errorf("%w: %q", ErrInvalidRestDay, req.RestDay)
		}
		restDay = day
	}

	out := Plan{Days: make([]Day, 0, len(Days))}
	cursor := 0
	for _, name := range Days {
		if name == restDay {
			out.Days = append(out.Days, Day{Day: name, Rest: true, Items: []Item{}})
			continue
		}
		day := Day{Day: name}
		index := make(map[string]int)
		for h := 0; h < hours; h++ {
			subject := subjects[cursor%len(subjects)]
			cursor++
			if i, ok := index[subject]; ok {
				day.Items[i].Hours++
				continue
			}
			index[subject] = len(day.Items)
			day.Items = append(day.Items, Item{Subject: subject, Hours: 1})
		}
		out.Days = append(out.Days, day)
	}
	out.Text = render(out.Days)
	return out, nil
}

// LookupDay resolves a day name, ignoring case and Turkish diacritics.
func LookupDay(name string) (string, bool) {
	key := fold(name)
	for _, d := range Days {
		if fold(d) == key {
			return d, true
		}
	}
	return "", false
}

var asciiFold = strings.NewReplacer(
	"ç", "c", "Ç", "c",
	"ğ", "g", "Ğ", "g",
	"ı", "i", "I", "i", "İ", "i",
	"ö", "o", "Ö", "o",
	"ş", "s", "Ş", "s",
	"ü", "u", "Ü", "u",
)

func fold(s string) string {
	return strings.ToLower(asciiFold.Replace(strings.TrimSpace(s)))
}

func render(days []Day) string {
	var b strings.Builder
	for i, d := range days {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(d.Day)
		b.WriteString(": ")
		if d.Rest {
			b.WriteString("Dinlenme günü")
			continue
		}
		for j, item := range d.Items {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s (%d saat)", item.Subject, item.Hours)
		}
	}
	return b.String()
}
