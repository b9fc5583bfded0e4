package plan

import (
	"errors"
	"testing"
)

func TestBuildRoundRobin(t *testing.T) {
	p, err := Build(Request{Subjects: []string{"Matematik", " Fizik ", ""}, HoursPerDay: 3})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(p.Days) != 7 {
		t.Fatalf("expected 7 days, got %d", len(p.Days))
	}

	monday := p.Days[0]
	if monday.Day != "Pazartesi" || len(monday.Items) != 2 {
		t.Fatalf("unexpected monday %+v", monday)
	}
	if monday.Items[0] != (Item{Subject: "Matematik", Hours: 2}) || monday.Items[1] != (Item{Subject: "Fizik", Hours: 1}) {
		t.Fatalf("unexpected monday items %+v", monday.Items)
	}

	// Tuesday continues with Fizik where Monday stopped.
	tuesday := p.Days[1]
	if tuesday.Items[0] != (Item{Subject: "Fizik", Hours: 2}) || tuesday.Items[1] != (Item{Subject: "Matematik", Hours: 1}) {
		t.Fatalf("unexpected tuesday items %+v", tuesday.Items)
	}

	sunday := p.Days[6]
	if !sunday.Rest || sunday.Day != "Pazar" || len(sunday.Items) != 0 {
		t.Fatalf("expected Pazar to be the rest day, got %+v", sunday)
	}

	for _, d := range p.Days[:6] {
		total := 0
		for _, it := range d.Items {
			total += it.Hours
		}
		if total != 3 {
			t.Fatalf("%s has %d hours, want 3", d.Day, total)
		}
	}
}

func TestBuildText(t *testing.T) {
	p, err := Build(Request{Subjects: []string{"Türkçe"}, HoursPerDay: 2, RestDay: "cumartesi"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := "Pazartesi: Türkçe (2 saat)\n" +
		"Salı: Türkçe (2 saat)\n" +
		"Çarşamba: Türkçe (2 saat)\n" +
		"Perşembe: Türkçe (2 saat)\n" +
		"Cuma: Türkçe (2 saat)\n" +
		"Cumartesi: Dinlenme günü\n" +
		"Pazar: Türkçe (2 saat)"
	if p.Text != want {
		t.Fatalf("text = %q\nwant %q", p.Text, want)
	}
}

func TestBuildValidation(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want error
		code string
	}{
		{"no subjects", Request{HoursPerDay: 2}, ErrSubjectsRequired, "subjects_required"},
		{"blank subjects", Request{Subjects: []string{" ", ""}, HoursPerDay: 2}, ErrSubjectsRequired, "subjects_required"},
		{"zero hours", Request{Subjects: []string{"a"}}, ErrInvalidHours, "invalid_hours"},
		{"too many hours", Request{Subjects: []string{"a"}, HoursPerDay: 13}, ErrInvalidHours, "invalid_hours"},
		{"fractional hours", Request{Subjects: []string{"a"}, HoursPerDay: 1.5}, ErrInvalidHours, "invalid_hours"},
		{"unknown rest day", Request{Subjects: []string{"a"}, HoursPerDay: 1, RestDay: "Funday"}, ErrInvalidRestDay, "invalid_rest_day"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if got := Code(err); got != tt.code {
				t.Fatalf("code = %q, want %q", got, tt.code)
			}
		})
	}
}

func TestLookupDay(t *testing.T) {
	tests := map[string]string{
		"salı":     "Salı",
		"SALI":     "Salı",
		"sali":     "Salı",
		"Carsamba": "Çarşamba",
		" pazar ":  "Pazar",
	}
	for in, want := range tests {
		got, ok := LookupDay(in)
		if !ok || got != want {
			t.Fatalf("LookupDay(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}
	if _, ok := LookupDay("monday"); ok {
		t.Fatalf("expected english names to be rejected")
	}
}

func TestBuildDeterministic(t *testing.T) {
	req := Request{Subjects: []string{"a", "b", "c", "d"}, HoursPerDay: 5}
	first, _ := Build(req)
	second, _ := Build(req)
	if first.Text != second.Text {
		t.Fatalf("plan is not deterministic")
	}
}
