package intake

import "strings"

// scoreCriterion is one entry of the fixed completeness checklist.
type scoreCriterion struct {
	name      string
	weight    int
	satisfied func(MedicalData) bool
}

// scoreChecklist weights sum to exactly 100. The list is fixed: scoring is a
// pure function of the record and recomputing is idempotent.
var scoreChecklist = []scoreCriterion{
	{"chiefComplaint", 15, func(d MedicalData) bool { return present(d.ChiefComplaint) }},
	{"hpi", 15, func(d MedicalData) bool { return present(d.HPI) }},
	// For medications and allergies an explicit "none" (empty, non-nil
	// slice) counts as answered; only a never-asked nil slice does not.
	{"medications", 10, func(d MedicalData) bool { return d.Medications != nil }},
	{"allergies", 10, func(d MedicalData) bool { return d.Allergies != nil }},
	{"pastMedicalHistory", 10, func(d MedicalData) bool { return present(d.PastMedicalHistory) }},
	{"familySocialHistory", 10, func(d MedicalData) bool { return present(d.FamilySocialHistory) }},
	{"reviewOfSystems", 10, func(d MedicalData) bool { return present(d.ReviewOfSystems) }},
	{"vitals", 10, func(d MedicalData) bool { return d.Vitals.StageCompleted }},
	{"clinicalHandover", 10, func(d MedicalData) bool { return d.ClinicalHandover != nil }},
}

// Score maps a record to a completeness value in [0,100]. A record carrying
// an invalid core numeric reading scores 0 outright, matching the
// doctor-profile completeness behavior elsewhere in the platform: a record
// with impossible vitals is not partially complete, it is untrustworthy.
func Score(data MedicalData) int {
	if hasInvalidNumeric(data) {
		return 0
	}
	total := 0
	for _, c := range scoreChecklist {
		if c.satisfied(data) {
			total += c.weight
		}
	}
	if total > 100 {
		total = 100
	}
	return total
}

func hasInvalidNumeric(data MedicalData) bool {
	v := data.Vitals
	if v.PatientAge != nil && *v.PatientAge < 0 {
		return true
	}
	if v.Temperature != nil && v.Temperature.Value != nil && *v.Temperature.Value < 0 {
		return true
	}
	if v.Weight != nil && v.Weight.Value != nil && *v.Weight.Value < 0 {
		return true
	}
	if bp := v.BloodPressure; bp != nil {
		if bp.Systolic != nil && *bp.Systolic < 0 {
			return true
		}
		if bp.Diastolic != nil && *bp.Diastolic < 0 {
			return true
		}
	}
	return false
}

func present(s string) bool { return strings.TrimSpace(s) != "" }
