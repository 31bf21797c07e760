package intake

import (
	"encoding/json"
)

// MedicalDataUpdate is a partial update to a MedicalData record. A nil
// pointer means the field was never supplied and must be left untouched; a
// non-nil pointer, even to an empty string, empty slice or false, replaces
// the existing value outright. Arrays and the SBAR object are atomic.
//
// ClinicalHandover needs an extra presence flag because an explicit JSON
// null (clearing the handover) and an absent key both decode to a nil
// pointer.
type MedicalDataUpdate struct {
	ChiefComplaint      *string
	HPI                 *string
	MedicalRecords      *[]string
	RecordsChecked      *bool
	Medications         *[]string
	Allergies           *[]string
	PastMedicalHistory  *string
	FamilySocialHistory *string
	ReviewOfSystems     *string
	CurrentAgent        *AgentRole
	ClinicalHandover    *SBAR
	HasClinicalHandover bool
	UCGRecommendations  *[]string
	BookingStatus       *BookingStatus
	AppointmentDate     *string
	Vitals              *VitalsUpdate

	provided []string
}

// VitalsUpdate is the nested partial update for the vitals stage. Unlike
// arrays and the SBAR note, vitals merge field-wise: readings arrive one at
// a time across turns. Triage decision and reason are deliberately absent;
// only the rule engine writes those.
type VitalsUpdate struct {
	PatientAge     *int
	PatientGender  *string
	Temperature    *Reading
	Weight         *Reading
	BloodPressure  *BloodPressure
	CurrentStatus  *string
	StageCompleted *bool
}

// ProvidedFields lists the top-level field names the update explicitly
// carried, in decode order. Used for answered-topic tracking.
func (u *MedicalDataUpdate) ProvidedFields() []string { return u.provided }

// Empty reports whether the update carries no fields at all.
func (u *MedicalDataUpdate) Empty() bool { return len(u.provided) == 0 }

// DecodeUpdate turns the raw updatedData object from a model reply into a
// typed update. It never fails: a field of unexpected shape is treated as
// absent, because adversarial model output must not be able to corrupt a
// record. A raw payload that is not a JSON object yields an empty update.
func DecodeUpdate(raw json.RawMessage) MedicalDataUpdate {
	var u MedicalDataUpdate
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return u
	}

	mark := func(name string) { u.provided = append(u.provided, name) }

	if decodeField(fields, "chiefComplaint", &u.ChiefComplaint) {
		mark("chiefComplaint")
	}
	if decodeField(fields, "hpi", &u.HPI) {
		mark("hpi")
	}
	if decodeField(fields, "medicalRecords", &u.MedicalRecords) {
		mark("medicalRecords")
	}
	if decodeField(fields, "recordsChecked", &u.RecordsChecked) {
		mark("recordsChecked")
	}
	if decodeField(fields, "medications", &u.Medications) {
		mark("medications")
	}
	if decodeField(fields, "allergies", &u.Allergies) {
		mark("allergies")
	}
	if decodeField(fields, "pastMedicalHistory", &u.PastMedicalHistory) {
		mark("pastMedicalHistory")
	}
	if decodeField(fields, "familySocialHistory", &u.FamilySocialHistory) {
		mark("familySocialHistory")
	}
	if decodeField(fields, "reviewOfSystems", &u.ReviewOfSystems) {
		mark("reviewOfSystems")
	}
	var booking *BookingStatus
	if decodeField(fields, "bookingStatus", &booking) && validBookingStatus(*booking) {
		u.BookingStatus = booking
		mark("bookingStatus")
	}
	if decodeField(fields, "appointmentDate", &u.AppointmentDate) {
		mark("appointmentDate")
	}

	// currentAgent is only meaningful when it names a real persona.
	var agent *AgentRole
	if decodeField(fields, "currentAgent", &agent) && agent != nil && IsValidAgent(string(*agent)) {
		u.CurrentAgent = agent
		mark("currentAgent")
	}

	// clinicalHandover: explicit null clears, object replaces, junk ignored.
	if rawSBAR, ok := fields["clinicalHandover"]; ok {
		if isJSONNull(rawSBAR) {
			u.HasClinicalHandover = true
			mark("clinicalHandover")
		} else {
			var sbar SBAR
			if json.Unmarshal(rawSBAR, &sbar) == nil {
				u.ClinicalHandover = &sbar
				u.HasClinicalHandover = true
				mark("clinicalHandover")
			}
		}
	}

	if decodeField(fields, "ucgRecommendations", &u.UCGRecommendations) {
		mark("ucgRecommendations")
	}

	if rawVitals, ok := fields["vitals"]; ok {
		if vu := decodeVitalsUpdate(rawVitals); vu != nil {
			u.Vitals = vu
			mark("vitals")
		}
	}

	return u
}

func decodeVitalsUpdate(raw json.RawMessage) *VitalsUpdate {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil
	}
	var vu VitalsUpdate
	any := false
	any = decodeField(fields, "patientAge", &vu.PatientAge) || any
	any = decodeField(fields, "patientGender", &vu.PatientGender) || any
	any = decodeField(fields, "temperature", &vu.Temperature) || any
	any = decodeField(fields, "weight", &vu.Weight) || any
	any = decodeField(fields, "bloodPressure", &vu.BloodPressure) || any
	any = decodeField(fields, "currentStatus", &vu.CurrentStatus) || any
	any = decodeField(fields, "vitalsStageCompleted", &vu.StageCompleted) || any
	if !any {
		return nil
	}
	return &vu
}

// decodeField decodes fields[key] into dst (a **T). It returns true only
// when the key was present and well-typed; explicit nulls and shape
// mismatches both read as absent.
func decodeField[T any](fields map[string]json.RawMessage, key string, dst **T) bool {
	raw, ok := fields[key]
	if !ok || isJSONNull(raw) {
		return false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	*dst = &v
	return true
}

func isJSONNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}

func validBookingStatus(b BookingStatus) bool {
	switch b {
	case BookingCollecting, BookingReady, BookingBooked:
		return true
	}
	return false
}

// Merge applies a partial update to an existing record and returns the
// result. Pure and deterministic: the inputs are never mutated, absent
// fields are retained, present fields win wholesale, and
// Merge(x, MedicalDataUpdate{}) == x.
func Merge(existing MedicalData, update MedicalDataUpdate) MedicalData {
	out := existing

	if update.ChiefComplaint != nil {
		out.ChiefComplaint = *update.ChiefComplaint
	}
	if update.HPI != nil {
		out.HPI = *update.HPI
	}
	if update.MedicalRecords != nil {
		out.MedicalRecords = cloneStrings(*update.MedicalRecords)
	}
	if update.RecordsChecked != nil {
		out.RecordsChecked = *update.RecordsChecked
	}
	if update.Medications != nil {
		out.Medications = cloneStrings(*update.Medications)
	}
	if update.Allergies != nil {
		out.Allergies = cloneStrings(*update.Allergies)
	}
	if update.PastMedicalHistory != nil {
		out.PastMedicalHistory = *update.PastMedicalHistory
	}
	if update.FamilySocialHistory != nil {
		out.FamilySocialHistory = *update.FamilySocialHistory
	}
	if update.ReviewOfSystems != nil {
		out.ReviewOfSystems = *update.ReviewOfSystems
	}
	if update.CurrentAgent != nil {
		out.CurrentAgent = *update.CurrentAgent
	}
	if update.HasClinicalHandover {
		if update.ClinicalHandover != nil {
			sbar := *update.ClinicalHandover
			out.ClinicalHandover = &sbar
		} else {
			out.ClinicalHandover = nil
		}
	}
	if update.UCGRecommendations != nil {
		out.UCGRecommendations = cloneStrings(*update.UCGRecommendations)
	}
	if update.BookingStatus != nil {
		out.BookingStatus = *update.BookingStatus
	}
	if update.AppointmentDate != nil {
		out.AppointmentDate = *update.AppointmentDate
	}
	if update.Vitals != nil {
		out.Vitals = mergeVitals(existing.Vitals, *update.Vitals)
	}

	return out
}

func mergeVitals(existing VitalsData, update VitalsUpdate) VitalsData {
	out := existing
	if update.PatientAge != nil {
		age := *update.PatientAge
		out.PatientAge = &age
	}
	if update.PatientGender != nil {
		out.PatientGender = *update.PatientGender
	}
	if update.Temperature != nil {
		r := *update.Temperature
		out.Temperature = &r
	}
	if update.Weight != nil {
		r := *update.Weight
		out.Weight = &r
	}
	if update.BloodPressure != nil {
		bp := *update.BloodPressure
		out.BloodPressure = &bp
	}
	if update.CurrentStatus != nil {
		out.CurrentStatus = *update.CurrentStatus
	}
	if update.StageCompleted != nil {
		out.StageCompleted = *update.StageCompleted
	}
	return out
}

// cloneStrings copies an explicitly provided slice. The copy is never nil:
// a nil medications or allergies slice means "never asked", so a provided
// slice, however it was built, must be stored as a non-nil answer.
func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
