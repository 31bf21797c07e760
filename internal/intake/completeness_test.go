package intake

import "testing"

func fullData() MedicalData {
	d := NewMedicalData()
	d.ChiefComplaint = "Chest pain"
	d.HPI = "Two hours of crushing central chest pain"
	d.Medications = []string{"aspirin"}
	d.Allergies = []string{}
	d.PastMedicalHistory = "Hypertension"
	d.FamilySocialHistory = "Father had MI at 60"
	d.ReviewOfSystems = "Negative except cardiac"
	d.Vitals.StageCompleted = true
	d.ClinicalHandover = &SBAR{Situation: "Acute chest pain"}
	return d
}

func TestScore_WeightsSumToHundred(t *testing.T) {
	sum := 0
	for _, c := range scoreChecklist {
		sum += c.weight
	}
	if sum != 100 {
		t.Fatalf("checklist weights sum to %d, want 100", sum)
	}
	if got := Score(fullData()); got != 100 {
		t.Errorf("Score(full record) = %d, want 100", got)
	}
}

func TestScore_EmptyRecordIsZero(t *testing.T) {
	if got := Score(NewMedicalData()); got != 0 {
		t.Errorf("Score(new record) = %d, want 0", got)
	}
}

func TestScore_Idempotent(t *testing.T) {
	d := fullData()
	first := Score(d)
	second := Score(d)
	if first != second {
		t.Errorf("rescoring the same record changed the result: %d then %d", first, second)
	}
}

func TestScore_AddingDataNeverDecreases(t *testing.T) {
	d := NewMedicalData()
	prev := Score(d)

	steps := []func(*MedicalData){
		func(d *MedicalData) { d.ChiefComplaint = "Fever" },
		func(d *MedicalData) { d.HPI = "Three days of fever and chills" },
		func(d *MedicalData) { d.Medications = []string{} },
		func(d *MedicalData) { d.Allergies = []string{"penicillin"} },
		func(d *MedicalData) { d.PastMedicalHistory = "None" },
		func(d *MedicalData) { d.FamilySocialHistory = "Non-smoker" },
		func(d *MedicalData) { d.ReviewOfSystems = "Unremarkable" },
		func(d *MedicalData) { d.Vitals.StageCompleted = true },
		func(d *MedicalData) { d.ClinicalHandover = &SBAR{} },
	}
	for i, step := range steps {
		step(&d)
		got := Score(d)
		if got < prev {
			t.Fatalf("step %d decreased the score: %d -> %d", i, prev, got)
		}
		prev = got
	}
	if prev != 100 {
		t.Errorf("final score = %d, want 100", prev)
	}
}

func TestScore_ExplicitNoneCountsAnswered(t *testing.T) {
	d := NewMedicalData()
	base := Score(d)
	d.Medications = []string{}
	if got := Score(d); got <= base {
		t.Errorf("explicit empty medications did not raise the score: %d -> %d", base, got)
	}
}

func TestScore_WhitespaceTextDoesNotCount(t *testing.T) {
	d := NewMedicalData()
	d.ChiefComplaint = "   "
	if got := Score(d); got != 0 {
		t.Errorf("whitespace-only chiefComplaint scored %d, want 0", got)
	}
}

func TestScore_InvalidNumericCollapsesToZero(t *testing.T) {
	d := fullData()
	if Score(d) != 100 {
		t.Fatal("precondition: full record should score 100")
	}

	badAge := -3
	d.Vitals.PatientAge = &badAge
	if got := Score(d); got != 0 {
		t.Errorf("record with negative age scored %d, want 0", got)
	}

	d = fullData()
	badTemp := -40.0
	d.Vitals.Temperature = &Reading{Value: &badTemp, Unit: "C"}
	if got := Score(d); got != 0 {
		t.Errorf("record with negative temperature scored %d, want 0", got)
	}
}
