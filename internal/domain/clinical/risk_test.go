package clinical

import (
	"errors"
	"testing"
	"time"

	"github.com/carelink/carelink/internal/domain/identity"
	"github.com/carelink/carelink/internal/platform/apperr"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAgeAt(t *testing.T) {
	tests := []struct {
		name  string
		birth time.Time
		asOf  time.Time
		want  int
	}{
		{"day before birthday", date(1990, 6, 15), date(2026, 6, 14), 35},
		{"on birthday", date(1990, 6, 15), date(2026, 6, 15), 36},
		{"after birthday", date(1990, 6, 15), date(2026, 12, 1), 36},
		{"leap day birthday in common year before march", date(2000, 2, 29), date(2025, 2, 28), 24},
		{"leap day birthday reached on march first", date(2000, 2, 29), date(2025, 3, 1), 25},
		{"leap day birthday in leap year", date(2000, 2, 29), date(2024, 2, 29), 24},
		{"birth in the future", date(2030, 1, 1), date(2026, 1, 1), 0},
		{"newborn", date(2026, 1, 1), date(2026, 1, 1), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AgeAt(tt.birth, tt.asOf); got != tt.want {
				t.Errorf("AgeAt(%s, %s) = %d, want %d", tt.birth.Format("2006-01-02"), tt.asOf.Format("2006-01-02"), got, tt.want)
			}
		})
	}
}

func TestAgeAt_UsesUTCDate(t *testing.T) {
	// 23:30 on the 14th in UTC-5 is already the 15th in UTC.
	loc := time.FixedZone("UTC-5", -5*60*60)
	asOf := time.Date(2026, 6, 14, 23, 30, 0, 0, loc)
	if got := AgeAt(date(1990, 6, 15), asOf); got != 36 {
		t.Errorf("expected 36 using the UTC date, got %d", got)
	}
}

func TestBuildFeatures(t *testing.T) {
	p := completePatient()
	m := &Measurement{WeightKG: 61.25, BloodGlucose: 98, BloodPressure: 139, RecordedAt: date(2026, 6, 15)}

	f, err := BuildFeatures(p, m)
	if err != nil {
		t.Fatalf("BuildFeatures: %v", err)
	}
	if f.Age != 36 {
		t.Errorf("expected age 36, got %d", f.Age)
	}
	if f.BMI != 20 {
		t.Errorf("expected BMI 20, got %v", f.BMI)
	}
	if f.Hypertension {
		t.Error("139 mmHg is below the hypertension threshold")
	}
	if f.Gender != 1 || !f.Smoking || f.BloodGlucose != 98 {
		t.Errorf("unexpected features %+v", f)
	}

	m.BloodPressure = 140
	f, _ = BuildFeatures(p, m)
	if !f.Hypertension {
		t.Error("140 mmHg should set hypertension")
	}
}

func TestBuildFeatures_GenderCodes(t *testing.T) {
	codes := map[identity.Gender]int{
		identity.GenderFemale: 0,
		identity.GenderMale:   1,
		identity.GenderOther:  2,
	}
	for g, want := range codes {
		p := completePatient()
		g := g
		p.Gender = &g
		f, err := BuildFeatures(p, &Measurement{WeightKG: 70, BloodGlucose: 90, BloodPressure: 120, RecordedAt: date(2026, 1, 1)})
		if err != nil {
			t.Fatalf("%s: %v", g, err)
		}
		if f.Gender != want {
			t.Errorf("%s: expected code %d, got %d", g, want, f.Gender)
		}
	}
}

func TestBuildFeatures_IncompleteProfile(t *testing.T) {
	m := &Measurement{WeightKG: 70, BloodGlucose: 90, BloodPressure: 120, RecordedAt: date(2026, 1, 1)}

	mutations := map[string]func(p *identity.Patient){
		"no height":     func(p *identity.Patient) { p.HeightCM = nil },
		"zero height":   func(p *identity.Patient) { z := 0.0; p.HeightCM = &z },
		"no birth date": func(p *identity.Patient) { p.BirthDate = nil },
		"no gender":     func(p *identity.Patient) { p.Gender = nil },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			p := completePatient()
			mutate(p)
			_, err := BuildFeatures(p, m)
			if !errors.Is(err, apperr.ErrPredictionUnavailable) {
				t.Errorf("expected ErrPredictionUnavailable, got %v", err)
			}
			if !IsUnavailable(err) {
				t.Error("IsUnavailable should report true")
			}
		})
	}
}
