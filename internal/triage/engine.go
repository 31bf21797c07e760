// Package triage classifies a patient's urgency from vitals readings and
// reported symptoms. The rules are deterministic on purpose: the decision has
// safety implications and must be auditable, so no model output ever feeds
// into it directly.
package triage

import (
	"fmt"
	"strings"
)

type Decision string

const (
	DecisionEmergency Decision = "emergency"
	DecisionNormal    Decision = "normal"
	DecisionPending   Decision = "pending"
)

// Vitals is the normalized input to the rule engine. Pointers distinguish a
// reading that was never taken from a zero value.
type Vitals struct {
	Age             *int
	Gender          string
	Temperature     *float64
	TemperatureUnit string // "C" (default) or "F"
	WeightKg        *float64
	Systolic        *float64
	Diastolic       *float64
}

// Assessment is one side's verdict: the vitals-based or the symptom-based
// sub-assessment.
type Assessment struct {
	Complete  bool
	Emergency bool
	Reasons   []string
}

// Result is the combined triage outcome written into the medical record.
type Result struct {
	Decision        Decision
	Reason          string
	Recommendations []string
}

// FieldError reports a physiologically impossible reading. It is a
// validation failure surfaced to the caller, not an emergency outcome.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ValidateVitals rejects readings outside physiologic bounds before any
// assessment runs.
func ValidateVitals(v Vitals) error {
	if v.Age != nil && (*v.Age < 0 || *v.Age > 130) {
		return &FieldError{Field: "age", Message: "must be between 0 and 130"}
	}
	if v.Temperature != nil {
		c := celsius(*v.Temperature, v.TemperatureUnit)
		if c < 25 || c > 45 {
			return &FieldError{Field: "temperature", Message: "outside survivable range"}
		}
	}
	if v.WeightKg != nil && (*v.WeightKg <= 0 || *v.WeightKg > 500) {
		return &FieldError{Field: "weight", Message: "outside plausible range"}
	}
	if v.Systolic != nil && (*v.Systolic < 30 || *v.Systolic > 300) {
		return &FieldError{Field: "systolic", Message: "outside measurable range"}
	}
	if v.Diastolic != nil && (*v.Diastolic < 10 || *v.Diastolic > 200) {
		return &FieldError{Field: "diastolic", Message: "outside measurable range"}
	}
	if v.Systolic != nil && v.Diastolic != nil && *v.Diastolic >= *v.Systolic {
		return &FieldError{Field: "bloodPressure", Message: "diastolic must be below systolic"}
	}
	return nil
}

// AssessVitals applies age-adjusted numeric thresholds. Out-of-range
// readings flag an emergency; a partial set of readings leaves the
// assessment incomplete.
func AssessVitals(v Vitals) Assessment {
	var a Assessment

	if v.Age == nil || v.Temperature == nil || v.WeightKg == nil ||
		v.Systolic == nil || v.Diastolic == nil {
		return a // incomplete, pending
	}
	a.Complete = true

	age := *v.Age
	temp := celsius(*v.Temperature, v.TemperatureUnit)

	feverLimit, hypoLimit := temperatureLimits(age)
	if temp >= feverLimit {
		a.Emergency = true
		a.Reasons = append(a.Reasons, fmt.Sprintf("temperature %.1f°C at or above %.1f°C", temp, feverLimit))
	}
	if temp <= hypoLimit {
		a.Emergency = true
		a.Reasons = append(a.Reasons, fmt.Sprintf("temperature %.1f°C at or below %.1f°C", temp, hypoLimit))
	}

	sysHigh, sysLow, diaHigh := pressureLimits(age)
	if *v.Systolic >= sysHigh {
		a.Emergency = true
		a.Reasons = append(a.Reasons, fmt.Sprintf("systolic pressure %.0f at or above %.0f", *v.Systolic, sysHigh))
	}
	if *v.Systolic <= sysLow {
		a.Emergency = true
		a.Reasons = append(a.Reasons, fmt.Sprintf("systolic pressure %.0f at or below %.0f", *v.Systolic, sysLow))
	}
	if *v.Diastolic >= diaHigh {
		a.Emergency = true
		a.Reasons = append(a.Reasons, fmt.Sprintf("diastolic pressure %.0f at or above %.0f", *v.Diastolic, diaHigh))
	}

	if low := weightFloor(age); *v.WeightKg < low {
		a.Emergency = true
		a.Reasons = append(a.Reasons, fmt.Sprintf("weight %.1fkg below %.1fkg for age %d", *v.WeightKg, low, age))
	}

	return a
}

// temperatureLimits returns the fever and hypothermia thresholds in °C.
// Infants run into trouble at lower fevers than adults.
func temperatureLimits(age int) (fever, hypo float64) {
	switch {
	case age < 1:
		return 38.0, 35.5
	case age < 12:
		return 39.5, 35.0
	default:
		return 40.0, 35.0
	}
}

func pressureLimits(age int) (sysHigh, sysLow, diaHigh float64) {
	switch {
	case age < 12:
		return 130, 70, 90
	case age >= 65:
		return 180, 90, 110
	default:
		return 180, 80, 120
	}
}

func weightFloor(age int) float64 {
	switch {
	case age < 1:
		return 2.0
	case age < 12:
		return 8.0
	default:
		return 35.0
	}
}

func celsius(value float64, unit string) float64 {
	switch strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(unit), "°")) {
	case "F", "°F", "FAHRENHEIT":
		return (value - 32) * 5 / 9
	default:
		return value
	}
}

// emergencyPhrases is the curated symptom list. Matching is substring-based
// on lowercased text; the phrases are chosen to be unambiguous.
var emergencyPhrases = []string{
	"chest pain",
	"difficulty breathing",
	"can't breathe",
	"cannot breathe",
	"shortness of breath",
	"loss of consciousness",
	"unconscious",
	"unresponsive",
	"severe bleeding",
	"bleeding heavily",
	"coughing blood",
	"vomiting blood",
	"seizure",
	"convulsion",
	"stroke",
	"slurred speech",
	"face drooping",
	"suicidal",
	"overdose",
	"anaphyla",
	"severe allergic reaction",
	"stiff neck with fever",
}

// AssessSymptoms matches the patient's free-text current status against the
// emergency phrase list. Empty text leaves the assessment incomplete.
func AssessSymptoms(statusText string) Assessment {
	var a Assessment
	text := strings.ToLower(strings.TrimSpace(statusText))
	if text == "" {
		return a
	}
	a.Complete = true
	for _, phrase := range emergencyPhrases {
		if strings.Contains(text, phrase) {
			a.Emergency = true
			a.Reasons = append(a.Reasons, fmt.Sprintf("reported %q", phrase))
		}
	}
	return a
}

// Combine merges the two sub-assessments. Emergency from either side
// dominates unconditionally; otherwise pending dominates while either side
// is incomplete; normal requires both sides complete and clean.
func Combine(vitals, symptoms Assessment) Result {
	switch {
	case vitals.Emergency || symptoms.Emergency:
		reasons := append(append([]string{}, vitals.Reasons...), symptoms.Reasons...)
		return Result{
			Decision:        DecisionEmergency,
			Reason:          strings.Join(reasons, "; "),
			Recommendations: emergencyRecommendations,
		}
	case !vitals.Complete || !symptoms.Complete:
		return Result{
			Decision:        DecisionPending,
			Reason:          pendingReason(vitals, symptoms),
			Recommendations: pendingRecommendations,
		}
	default:
		return Result{
			Decision:        DecisionNormal,
			Reason:          "vitals within range and no emergency symptoms reported",
			Recommendations: normalRecommendations,
		}
	}
}

func pendingReason(vitals, symptoms Assessment) string {
	switch {
	case !vitals.Complete && !symptoms.Complete:
		return "awaiting vitals readings and symptom description"
	case !vitals.Complete:
		return "awaiting complete vitals readings"
	default:
		return "awaiting symptom description"
	}
}

var (
	emergencyRecommendations = []string{
		"Advise the patient to seek emergency care immediately or call an ambulance.",
		"Do not continue routine intake questions.",
		"Flag the session for clinician review.",
	}
	pendingRecommendations = []string{
		"Continue collecting vitals and symptom information before booking.",
	}
	normalRecommendations = []string{
		"Proceed with routine appointment booking.",
		"Follow standard clinical guidelines for the presenting complaint.",
	}
)
