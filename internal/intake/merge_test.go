package intake

import (
	"encoding/json"
	"reflect"
	"testing"
)

// ---------- Helpers ----------

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func slicePtr(ss ...string) *[]string { v := ss; return &v }

func bookingPtr(b BookingStatus) *BookingStatus { return &b }

func seedData() MedicalData {
	d := NewMedicalData()
	d.ChiefComplaint = "Headache"
	d.HPI = "Started three days ago, throbbing"
	d.Medications = []string{"paracetamol"}
	d.Allergies = []string{}
	d.BookingStatus = BookingCollecting
	return d
}

// ---------- Merge semantics ----------

func TestMerge_EmptyUpdateIsIdentity(t *testing.T) {
	existing := seedData()
	result := Merge(existing, MedicalDataUpdate{})
	if !reflect.DeepEqual(result, existing) {
		t.Errorf("Merge(x, {}) != x:\n got %+v\nwant %+v", result, existing)
	}
}

func TestMerge_AbsentFieldsRetained(t *testing.T) {
	existing := seedData()
	update := MedicalDataUpdate{HPI: strPtr("Worse in the mornings")}

	result := Merge(existing, update)

	if result.ChiefComplaint != "Headache" {
		t.Errorf("absent chiefComplaint was not retained: %q", result.ChiefComplaint)
	}
	if result.HPI != "Worse in the mornings" {
		t.Errorf("provided hpi was not replaced: %q", result.HPI)
	}
	if !reflect.DeepEqual(result.Medications, []string{"paracetamol"}) {
		t.Errorf("absent medications changed: %v", result.Medications)
	}
}

func TestMerge_FalsyValuesReplace(t *testing.T) {
	existing := seedData()
	existing.RecordsChecked = true

	update := MedicalDataUpdate{
		ChiefComplaint: strPtr(""),
		Medications:    slicePtr(),
		RecordsChecked: boolPtr(false),
	}
	result := Merge(existing, update)

	if result.ChiefComplaint != "" {
		t.Errorf("explicit empty string did not replace: %q", result.ChiefComplaint)
	}
	if result.Medications == nil || len(result.Medications) != 0 {
		t.Errorf("explicit empty slice did not replace: %v", result.Medications)
	}
	if result.RecordsChecked {
		t.Error("explicit false did not replace")
	}
}

func TestMerge_ProvidedSliceNeverStoredNil(t *testing.T) {
	// A nil slice behind a non-nil pointer still means "explicitly provided":
	// it must land as a non-nil empty answer, never as the never-asked nil.
	var none []string
	existing := seedData()
	result := Merge(existing, MedicalDataUpdate{Medications: &none})

	if result.Medications == nil {
		t.Fatal("provided slice was stored as nil")
	}
	if len(result.Medications) != 0 {
		t.Errorf("medications = %v, want empty", result.Medications)
	}
	unanswered := result
	unanswered.Medications = nil
	if Score(result) <= Score(unanswered) {
		t.Error("explicit-none medications no longer counts as answered")
	}
}

func TestMerge_BookingStatusScenario(t *testing.T) {
	existing := MedicalData{ChiefComplaint: "Headache", BookingStatus: BookingCollecting}
	update := MedicalDataUpdate{BookingStatus: bookingPtr(BookingReady)}

	result := Merge(existing, update)

	if result.ChiefComplaint != "Headache" {
		t.Errorf("chiefComplaint = %q, want Headache", result.ChiefComplaint)
	}
	if result.BookingStatus != BookingReady {
		t.Errorf("bookingStatus = %q, want ready", result.BookingStatus)
	}
}

func TestMerge_SBARIsAtomic(t *testing.T) {
	existing := seedData()
	existing.ClinicalHandover = &SBAR{Situation: "old situation", Background: "old background"}

	update := MedicalDataUpdate{
		ClinicalHandover:    &SBAR{Situation: "new situation"},
		HasClinicalHandover: true,
	}
	result := Merge(existing, update)

	if result.ClinicalHandover.Situation != "new situation" {
		t.Errorf("situation = %q", result.ClinicalHandover.Situation)
	}
	// Wholesale replacement: the old background must not survive.
	if result.ClinicalHandover.Background != "" {
		t.Errorf("SBAR was deep-merged, background = %q", result.ClinicalHandover.Background)
	}
}

func TestMerge_ExplicitNullClearsHandover(t *testing.T) {
	existing := seedData()
	existing.ClinicalHandover = &SBAR{Situation: "something"}

	update := MedicalDataUpdate{ClinicalHandover: nil, HasClinicalHandover: true}
	result := Merge(existing, update)

	if result.ClinicalHandover != nil {
		t.Errorf("explicit null did not clear handover: %+v", result.ClinicalHandover)
	}
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	existing := seedData()
	update := MedicalDataUpdate{Medications: slicePtr("ibuprofen")}

	result := Merge(existing, update)
	result.Medications[0] = "mutated"

	if existing.Medications[0] != "paracetamol" {
		t.Error("merge aliased the existing medications slice")
	}
	if (*update.Medications)[0] != "ibuprofen" {
		t.Error("merge aliased the update medications slice")
	}
}

func TestMerge_VitalsMergeFieldWise(t *testing.T) {
	temp := 37.2
	existing := seedData()
	existing.Vitals.Temperature = &Reading{Value: &temp, Unit: "C"}

	sys, dia := 120.0, 80.0
	update := MedicalDataUpdate{
		Vitals: &VitalsUpdate{
			BloodPressure: &BloodPressure{Systolic: &sys, Diastolic: &dia},
		},
	}
	result := Merge(existing, update)

	if result.Vitals.Temperature == nil || *result.Vitals.Temperature.Value != 37.2 {
		t.Error("earlier temperature reading was lost by a later BP-only update")
	}
	if result.Vitals.BloodPressure == nil || *result.Vitals.BloodPressure.Systolic != 120 {
		t.Error("blood pressure update was not applied")
	}
}

// ---------- DecodeUpdate ----------

func TestDecodeUpdate_WellTypedFields(t *testing.T) {
	raw := json.RawMessage(`{
		"chiefComplaint": "Fever",
		"medications": [],
		"recordsChecked": true,
		"bookingStatus": "ready",
		"vitals": {"patientAge": 30, "currentStatus": "feeling dizzy"}
	}`)
	u := DecodeUpdate(raw)

	if u.ChiefComplaint == nil || *u.ChiefComplaint != "Fever" {
		t.Error("chiefComplaint not decoded")
	}
	if u.Medications == nil || len(*u.Medications) != 0 {
		t.Error("explicit empty medications not decoded")
	}
	if u.RecordsChecked == nil || !*u.RecordsChecked {
		t.Error("recordsChecked not decoded")
	}
	if u.BookingStatus == nil || *u.BookingStatus != BookingReady {
		t.Error("bookingStatus not decoded")
	}
	if u.Vitals == nil || u.Vitals.PatientAge == nil || *u.Vitals.PatientAge != 30 {
		t.Error("nested vitals not decoded")
	}
}

func TestDecodeUpdate_WrongShapeFieldsIgnored(t *testing.T) {
	raw := json.RawMessage(`{
		"chiefComplaint": 42,
		"medications": "not a list",
		"hpi": "Valid text",
		"bookingStatus": "teleport",
		"vitals": "nope"
	}`)
	u := DecodeUpdate(raw)

	if u.ChiefComplaint != nil {
		t.Error("numeric chiefComplaint should read as absent")
	}
	if u.Medications != nil {
		t.Error("string medications should read as absent")
	}
	if u.HPI == nil || *u.HPI != "Valid text" {
		t.Error("well-typed sibling field was dropped")
	}
	if u.BookingStatus != nil {
		t.Error("unknown bookingStatus value should read as absent")
	}
	if u.Vitals != nil {
		t.Error("non-object vitals should read as absent")
	}
}

func TestDecodeUpdate_NonObjectPayload(t *testing.T) {
	for _, raw := range []string{`[1,2,3]`, `"text"`, `null`, `12`, `{broken`} {
		u := DecodeUpdate(json.RawMessage(raw))
		if !u.Empty() {
			t.Errorf("payload %s produced a non-empty update", raw)
		}
	}
}

func TestDecodeUpdate_TriageFieldsNeverDecoded(t *testing.T) {
	raw := json.RawMessage(`{"vitals": {"triageDecision": "normal", "triageReason": "model says so", "patientAge": 40}}`)
	u := DecodeUpdate(raw)

	if u.Vitals == nil {
		t.Fatal("vitals update missing")
	}
	existing := NewMedicalData()
	existing.Vitals.TriageDecision = TriageEmergency
	result := Merge(existing, u)
	if result.Vitals.TriageDecision != TriageEmergency {
		t.Error("model output overwrote the triage decision")
	}
}

func TestDecodeUpdate_ProvidedFields(t *testing.T) {
	raw := json.RawMessage(`{"chiefComplaint": "Cough", "allergies": ["penicillin"]}`)
	u := DecodeUpdate(raw)

	got := u.ProvidedFields()
	want := []string{"chiefComplaint", "allergies"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ProvidedFields() = %v, want %v", got, want)
	}
}

// ---------- Round trip ----------

func TestMedicalData_ExplicitNullRoundTrip(t *testing.T) {
	d := NewMedicalData()
	d.Allergies = []string{} // explicit "none"

	encoded, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	// Never-collected fields must appear as explicit null, not vanish.
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(encoded, &doc); err != nil {
		t.Fatalf("unmarshal to map: %v", err)
	}
	for _, key := range []string{"medications", "clinicalHandover", "medicalRecords"} {
		raw, ok := doc[key]
		if !ok {
			t.Errorf("field %q vanished on round-trip", key)
			continue
		}
		if string(raw) != "null" {
			t.Errorf("field %q = %s, want explicit null", key, raw)
		}
	}

	var decoded MedicalData
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(decoded, d) {
		t.Errorf("round-trip mismatch:\n got %+v\nwant %+v", decoded, d)
	}
}
