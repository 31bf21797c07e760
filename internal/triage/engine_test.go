package triage

import (
	"errors"
	"strings"
	"testing"
)

func intPtr(v int) *int { return &v }

func fPtr(v float64) *float64 { return &v }

func healthyAdult() Vitals {
	return Vitals{
		Age:         intPtr(30),
		Gender:      "female",
		Temperature: fPtr(36.8),
		WeightKg:    fPtr(70),
		Systolic:    fPtr(120),
		Diastolic:   fPtr(78),
	}
}

// ---------- Range validation ----------

func TestValidateVitals_AcceptsHealthyAdult(t *testing.T) {
	if err := ValidateVitals(healthyAdult()); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestValidateVitals_RejectsImpossibleReadings(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Vitals)
		field  string
	}{
		{"negative age", func(v *Vitals) { v.Age = intPtr(-1) }, "age"},
		{"age beyond 130", func(v *Vitals) { v.Age = intPtr(131) }, "age"},
		{"temperature below survivable", func(v *Vitals) { v.Temperature = fPtr(20) }, "temperature"},
		{"temperature above survivable", func(v *Vitals) { v.Temperature = fPtr(46) }, "temperature"},
		{"zero weight", func(v *Vitals) { v.WeightKg = fPtr(0) }, "weight"},
		{"weight beyond plausible", func(v *Vitals) { v.WeightKg = fPtr(600) }, "weight"},
		{"systolic below measurable", func(v *Vitals) { v.Systolic = fPtr(20) }, "systolic"},
		{"systolic above measurable", func(v *Vitals) { v.Systolic = fPtr(320) }, "systolic"},
		{"diastolic above measurable", func(v *Vitals) { v.Diastolic = fPtr(220) }, "diastolic"},
		{"diastolic at systolic", func(v *Vitals) { v.Systolic = fPtr(100); v.Diastolic = fPtr(100) }, "bloodPressure"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := healthyAdult()
			tc.mutate(&v)
			err := ValidateVitals(v)
			if err == nil {
				t.Fatal("expected a validation error")
			}
			var fe *FieldError
			if !errors.As(err, &fe) {
				t.Fatalf("error is not a FieldError: %v", err)
			}
			if fe.Field != tc.field {
				t.Errorf("field = %q, want %q", fe.Field, tc.field)
			}
		})
	}
}

func TestValidateVitals_FahrenheitConverted(t *testing.T) {
	v := healthyAdult()
	v.Temperature = fPtr(98.6)
	v.TemperatureUnit = "F"
	if err := ValidateVitals(v); err != nil {
		t.Errorf("98.6°F should validate: %v", err)
	}
}

func TestValidateVitals_MissingReadingsAreNotErrors(t *testing.T) {
	if err := ValidateVitals(Vitals{}); err != nil {
		t.Errorf("empty vitals should validate: %v", err)
	}
}

// ---------- Vitals assessment ----------

func TestAssessVitals_IncompleteStaysPending(t *testing.T) {
	v := healthyAdult()
	v.WeightKg = nil
	a := AssessVitals(v)
	if a.Complete {
		t.Error("assessment with a missing reading should be incomplete")
	}
	if a.Emergency {
		t.Error("an incomplete assessment must not flag an emergency")
	}
}

func TestAssessVitals_HealthyAdultClean(t *testing.T) {
	a := AssessVitals(healthyAdult())
	if !a.Complete {
		t.Fatal("full set of readings should complete the assessment")
	}
	if a.Emergency {
		t.Errorf("healthy adult flagged: %v", a.Reasons)
	}
}

func TestAssessVitals_AgeAdjustedFever(t *testing.T) {
	// 38.5°C is an emergency for an infant but not for an adult.
	infant := healthyAdult()
	infant.Age = intPtr(0)
	infant.WeightKg = fPtr(4)
	infant.Temperature = fPtr(38.5)
	infant.Systolic = fPtr(90)
	infant.Diastolic = fPtr(55)
	if a := AssessVitals(infant); !a.Emergency {
		t.Error("38.5°C in an infant should flag an emergency")
	}

	adult := healthyAdult()
	adult.Temperature = fPtr(38.5)
	if a := AssessVitals(adult); a.Emergency {
		t.Errorf("38.5°C in an adult flagged: %v", a.Reasons)
	}
}

func TestAssessVitals_AgeAdjustedPressure(t *testing.T) {
	// 85 systolic is low for an elderly patient but acceptable for an adult.
	elderly := healthyAdult()
	elderly.Age = intPtr(70)
	elderly.Systolic = fPtr(85)
	elderly.Diastolic = fPtr(60)
	if a := AssessVitals(elderly); !a.Emergency {
		t.Error("systolic 85 at age 70 should flag an emergency")
	}

	adult := healthyAdult()
	adult.Systolic = fPtr(85)
	adult.Diastolic = fPtr(60)
	if a := AssessVitals(adult); a.Emergency {
		t.Errorf("systolic 85 at age 30 flagged: %v", a.Reasons)
	}
}

func TestAssessVitals_FahrenheitFever(t *testing.T) {
	v := healthyAdult()
	v.Temperature = fPtr(104.5) // 40.3°C
	v.TemperatureUnit = "F"
	a := AssessVitals(v)
	if !a.Emergency {
		t.Error("104.5°F in an adult should flag an emergency")
	}
}

func TestAssessVitals_MultipleReasonsAccumulate(t *testing.T) {
	v := healthyAdult()
	v.Temperature = fPtr(41)
	v.Systolic = fPtr(200)
	v.Diastolic = fPtr(130)
	a := AssessVitals(v)
	if len(a.Reasons) < 3 {
		t.Errorf("expected at least 3 reasons, got %v", a.Reasons)
	}
}

// ---------- Symptom assessment ----------

func TestAssessSymptoms_EmptyIsIncomplete(t *testing.T) {
	for _, text := range []string{"", "   "} {
		if a := AssessSymptoms(text); a.Complete {
			t.Errorf("AssessSymptoms(%q) should be incomplete", text)
		}
	}
}

func TestAssessSymptoms_PhrasesMatchCaseInsensitive(t *testing.T) {
	a := AssessSymptoms("I have CHEST PAIN and I can't breathe properly")
	if !a.Complete || !a.Emergency {
		t.Fatal("emergency phrases not matched")
	}
	if len(a.Reasons) != 2 {
		t.Errorf("expected 2 matched phrases, got %v", a.Reasons)
	}
}

func TestAssessSymptoms_BenignTextIsClean(t *testing.T) {
	a := AssessSymptoms("mild runny nose since yesterday, otherwise fine")
	if !a.Complete {
		t.Error("non-empty text should complete the assessment")
	}
	if a.Emergency {
		t.Errorf("benign text flagged: %v", a.Reasons)
	}
}

// ---------- Combination ----------

func TestCombine_EmergencyDominates(t *testing.T) {
	// Emergency on one side dominates even when the other is incomplete.
	r := Combine(
		Assessment{Complete: false},
		Assessment{Complete: true, Emergency: true, Reasons: []string{`reported "chest pain"`}},
	)
	if r.Decision != DecisionEmergency {
		t.Fatalf("decision = %q, want emergency", r.Decision)
	}
	if !strings.Contains(r.Reason, "chest pain") {
		t.Errorf("reason lost: %q", r.Reason)
	}
	if len(r.Recommendations) == 0 {
		t.Error("emergency result should carry recommendations")
	}
}

func TestCombine_IncompleteStaysPending(t *testing.T) {
	r := Combine(Assessment{Complete: false}, Assessment{Complete: true})
	if r.Decision != DecisionPending {
		t.Errorf("decision = %q, want pending", r.Decision)
	}
	if !strings.Contains(r.Reason, "vitals") {
		t.Errorf("pending reason should name the missing side: %q", r.Reason)
	}
}

func TestCombine_NormalRequiresBothCleanAndComplete(t *testing.T) {
	r := Combine(Assessment{Complete: true}, Assessment{Complete: true})
	if r.Decision != DecisionNormal {
		t.Errorf("decision = %q, want normal", r.Decision)
	}
}

func TestCombine_ReasonsFromBothSides(t *testing.T) {
	r := Combine(
		Assessment{Complete: true, Emergency: true, Reasons: []string{"temperature high"}},
		Assessment{Complete: true, Emergency: true, Reasons: []string{"reported seizure"}},
	)
	if !strings.Contains(r.Reason, "temperature high") || !strings.Contains(r.Reason, "reported seizure") {
		t.Errorf("combined reason incomplete: %q", r.Reason)
	}
}
