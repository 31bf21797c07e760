package intake

import (
	"time"

	"github.com/google/uuid"
)

// AgentRole identifies one of the five fixed conversational personas.
// The roster is closed: it is determined by prompt design, not configuration.
type AgentRole string

const (
	RoleIntakeCoordinator  AgentRole = "IntakeCoordinator"
	RoleHistoryTaker       AgentRole = "HistoryTaker"
	RoleVitalsCollector    AgentRole = "VitalsCollector"
	RoleBookingAssistant   AgentRole = "BookingAssistant"
	RoleHandoverSpecialist AgentRole = "HandoverSpecialist"
)

// AgentRoster lists the personas in sequencing order. The first entry is the
// initial agent of every new session.
var AgentRoster = []AgentRole{
	RoleIntakeCoordinator,
	RoleHistoryTaker,
	RoleVitalsCollector,
	RoleBookingAssistant,
	RoleHandoverSpecialist,
}

func InitialAgent() AgentRole { return AgentRoster[0] }

// IsValidAgent reports whether name is one of the five fixed personas.
func IsValidAgent(name string) bool {
	for _, r := range AgentRoster {
		if string(r) == name {
			return true
		}
	}
	return false
}

type SessionStatus string

const (
	StatusNotStarted SessionStatus = "not_started"
	StatusInProgress SessionStatus = "in_progress"
	StatusReady      SessionStatus = "ready"
	StatusReviewed   SessionStatus = "reviewed"
)

type BookingStatus string

const (
	BookingCollecting BookingStatus = "collecting"
	BookingReady      BookingStatus = "ready"
	BookingBooked     BookingStatus = "booked"
)

type TriageDecision string

const (
	TriageEmergency TriageDecision = "emergency"
	TriageNormal    TriageDecision = "normal"
	TriagePending   TriageDecision = "pending"
)

// Reading is a single vitals measurement. Value is a pointer so that a
// reading that was never taken serializes as explicit null rather than 0.
type Reading struct {
	Value       *float64   `json:"value"`
	Unit        string     `json:"unit"`
	CollectedAt *time.Time `json:"collectedAt"`
}

type BloodPressure struct {
	Systolic    *float64   `json:"systolic"`
	Diastolic   *float64   `json:"diastolic"`
	CollectedAt *time.Time `json:"collectedAt"`
}

// VitalsData holds the vitals stage of the intake record together with the
// triage outcome derived from it.
type VitalsData struct {
	PatientAge     *int           `json:"patientAge"`
	PatientGender  string         `json:"patientGender"`
	Temperature    *Reading       `json:"temperature"`
	Weight         *Reading       `json:"weight"`
	BloodPressure  *BloodPressure `json:"bloodPressure"`
	CurrentStatus  string         `json:"currentStatus"`
	TriageDecision TriageDecision `json:"triageDecision"`
	TriageReason   string         `json:"triageReason"`
	StageCompleted bool           `json:"vitalsStageCompleted"`
}

// SBAR is the structured clinical handover note produced by the
// HandoverSpecialist persona.
type SBAR struct {
	Situation      string `json:"situation"`
	Background     string `json:"background"`
	Assessment     string `json:"assessment"`
	Recommendation string `json:"recommendation"`
}

type DifferentialDiagnosis struct {
	Condition   string `json:"condition"`
	Probability string `json:"probability"`
	Reasoning   string `json:"reasoning"`
}

// DoctorThought is the model's private clinical reasoning scratchpad. It is
// stored but never shown to the patient.
type DoctorThought struct {
	Differential       []DifferentialDiagnosis `json:"differentialDiagnosis"`
	MissingInformation []string                `json:"missingInformation"`
	Strategy           string                  `json:"strategy"`
	NextMove           string                  `json:"nextMove"`
}

// MedicalData is the structured patient record the conversation fills in.
// Slice fields distinguish "never collected" (nil, stored as null) from an
// explicit "none" answer (empty, stored as []).
type MedicalData struct {
	ChiefComplaint      string        `json:"chiefComplaint"`
	HPI                 string        `json:"hpi"`
	MedicalRecords      []string      `json:"medicalRecords"`
	RecordsChecked      bool          `json:"recordsChecked"`
	Medications         []string      `json:"medications"`
	Allergies           []string      `json:"allergies"`
	PastMedicalHistory  string        `json:"pastMedicalHistory"`
	FamilySocialHistory string        `json:"familySocialHistory"`
	ReviewOfSystems     string        `json:"reviewOfSystems"`
	CurrentAgent        AgentRole     `json:"currentAgent"`
	ClinicalHandover    *SBAR         `json:"clinicalHandover"`
	UCGRecommendations  []string      `json:"ucgRecommendations"`
	BookingStatus       BookingStatus `json:"bookingStatus"`
	AppointmentDate     string        `json:"appointmentDate"`
	Vitals              VitalsData    `json:"vitals"`
}

// NewMedicalData returns the empty record a session starts with.
func NewMedicalData() MedicalData {
	return MedicalData{
		CurrentAgent:  InitialAgent(),
		BookingStatus: BookingCollecting,
		Vitals:        VitalsData{TriageDecision: TriagePending},
	}
}

// IntakeSession is the aggregate root owned by the session store and mutated
// only through the sequencer.
type IntakeSession struct {
	ID                uuid.UUID      `json:"id" db:"id"`
	ConnectionID      string         `json:"connection_id" db:"connection_id"`
	Status            SessionStatus  `json:"status" db:"status"`
	MedicalData       MedicalData    `json:"medical_data" db:"medical_data"`
	ClinicalHandover  *SBAR          `json:"clinical_handover" db:"clinical_handover"`
	DoctorThought     *DoctorThought `json:"doctor_thought" db:"doctor_thought"`
	Completeness      int            `json:"completeness" db:"completeness"`
	CurrentAgent      AgentRole      `json:"current_agent" db:"current_agent"`
	FollowUpCount     int            `json:"follow_up_count" db:"follow_up_count"`
	AnsweredTopics    []string       `json:"answered_topics" db:"answered_topics"`
	ConsecutiveErrors int            `json:"consecutive_errors" db:"consecutive_errors"`
	AIMessageCount    int            `json:"ai_message_count" db:"ai_message_count"`
	ConclusionOffered bool           `json:"conclusion_offered" db:"conclusion_offered"`
	TerminationReason string         `json:"termination_reason" db:"termination_reason"`
	Version           int            `json:"version" db:"version"`
	StartedAt         *time.Time     `json:"started_at" db:"started_at"`
	CompletedAt       *time.Time     `json:"completed_at" db:"completed_at"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at" db:"updated_at"`
}

// NewSession creates an empty session for a patient entering the intake flow.
func NewSession(connectionID string) *IntakeSession {
	now := time.Now()
	return &IntakeSession{
		ID:           uuid.New(),
		ConnectionID: connectionID,
		Status:       StatusNotStarted,
		MedicalData:  NewMedicalData(),
		Completeness: 0,
		CurrentAgent: InitialAgent(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Linkable reports whether the session may be attached to a bookable
// appointment: ready, or in progress with at least half the record captured.
func (s *IntakeSession) Linkable() bool {
	return s.Status == StatusReady ||
		(s.Status == StatusInProgress && s.Completeness >= 50)
}

// ResetToInitial returns the session to its pristine state in place,
// preserving identity and creation time. The caller persists the change
// inside the reset transaction.
func (s *IntakeSession) ResetToInitial(reason string) {
	s.Status = StatusNotStarted
	s.MedicalData = NewMedicalData()
	s.ClinicalHandover = nil
	s.DoctorThought = nil
	s.Completeness = 0
	s.CurrentAgent = InitialAgent()
	s.FollowUpCount = 0
	s.AnsweredTopics = nil
	s.ConsecutiveErrors = 0
	s.AIMessageCount = 0
	s.ConclusionOffered = false
	s.TerminationReason = reason
	s.StartedAt = nil
	s.CompletedAt = nil
	s.UpdatedAt = time.Now()
}

// Message is a single chat turn persisted alongside the session. History is
// deleted wholesale when a session is reset.
type Message struct {
	ID        int64     `json:"id" db:"id"`
	SessionID uuid.UUID `json:"session_id" db:"session_id"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
