package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/scof256/hellodoctor-sub006/internal/triage"
)

// ModelClient is the text-generation collaborator. It returns raw text of
// arbitrary format; a transport error is treated exactly like an empty
// response at the validator boundary.
type ModelClient interface {
	Generate(ctx context.Context, currentAgent AgentRole, history []Message, userMessage string) (string, error)
}

// Repository is the session store. CommitTurn and Reset are atomic: a
// partial failure rolls back every write of the call.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*IntakeSession, error)
	Create(ctx context.Context, s *IntakeSession) error
	Update(ctx context.Context, s *IntakeSession) error
	CommitTurn(ctx context.Context, s *IntakeSession, userMsg, aiMsg *Message) error
	Reset(ctx context.Context, s *IntakeSession) error
	ListMessages(ctx context.Context, sessionID uuid.UUID) ([]Message, error)
}

// Notifier receives fire-and-forget intake intents. Failures are logged and
// swallowed; they never roll back the intake transaction.
type Notifier interface {
	NotifyIntakeCompleted(ctx context.Context, s *IntakeSession) error
	NotifyIntakeReset(ctx context.Context, s *IntakeSession) error
}

// Auditor records intake lifecycle events. Same fire-and-forget contract as
// Notifier.
type Auditor interface {
	Record(ctx context.Context, sessionID uuid.UUID, event, detail string) error
}

// ReportService delivers the clinical handover report once the intake
// produces an SBAR note.
type ReportService interface {
	SendHandoverReport(ctx context.Context, s IntakeSession) error
}

// TurnResult is what one conversational turn hands back to the transport
// layer. Reply is never empty.
type TurnResult struct {
	Reply        string         `json:"reply"`
	WasRecovered bool           `json:"was_recovered"`
	Triage       TriageDecision `json:"triage_decision"`
	VitalsError  string         `json:"vitals_error,omitempty"`
	Session      *IntakeSession `json:"session"`
}

type Service interface {
	CreateSession(ctx context.Context, connectionID string) (*IntakeSession, error)
	GetSession(ctx context.Context, id uuid.UUID) (*IntakeSession, error)
	ProcessTurn(ctx context.Context, id uuid.UUID, userMessage string) (*TurnResult, error)
	ResetSession(ctx context.Context, id uuid.UUID, reason string) (*IntakeSession, error)
	ReviewSession(ctx context.Context, id uuid.UUID, reason string) (*IntakeSession, error)
}

type service struct {
	repo      Repository
	model     ModelClient
	notifier  Notifier
	auditor   Auditor
	reportSvc ReportService
	log       zerolog.Logger

	// locks serializes mutations per session id: at most one in-flight
	// turn or reset per session. The repository's version CAS covers
	// multi-process races.
	locks sync.Map
}

func NewService(repo Repository, model ModelClient, notifier Notifier, auditor Auditor, report ReportService, log zerolog.Logger) Service {
	return &service{
		repo:      repo,
		model:     model,
		notifier:  notifier,
		auditor:   auditor,
		reportSvc: report,
		log:       log.With().Str("component", "intake").Logger(),
	}
}

func (s *service) lockFor(id uuid.UUID) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (s *service) CreateSession(ctx context.Context, connectionID string) (*IntakeSession, error) {
	session := NewSession(connectionID)
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.audit(session.ID, "session_created", connectionID)
	return session, nil
}

func (s *service) GetSession(ctx context.Context, id uuid.UUID) (*IntakeSession, error) {
	return s.repo.GetByID(ctx, id)
}

// ProcessTurn runs one inbound patient message through the full pipeline:
// model call, validation/recovery, merge, scoring, triage, persona and
// status transitions, then a single atomic persist.
func (s *service) ProcessTurn(ctx context.Context, id uuid.UUID, userMessage string) (*TurnResult, error) {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status == StatusReviewed {
		return nil, ErrSessionReviewed
	}

	history, err := s.repo.ListMessages(ctx, id)
	if err != nil {
		return nil, err
	}

	// A model transport failure is indistinguishable from an empty reply:
	// the recovery chain produces the fallback and the turn still commits.
	rawText, err := s.model.Generate(ctx, session.CurrentAgent, history, userMessage)
	if err != nil {
		s.log.Warn().Err(err).Stringer("session_id", id).Msg("model call failed, falling back")
		rawText = ""
	}

	result := Validate(rawText)

	update := MedicalDataUpdate{}
	if result.HasValidUpdatedData {
		update = DecodeUpdate(result.ParsedData)
	}

	// Persona transition first: the handover invariant below depends on
	// who is speaking after this turn.
	previousAgent := session.CurrentAgent
	persona := session.CurrentAgent
	if result.HasValidActiveAgent {
		persona = AgentRole(result.ActiveAgent)
	}

	// clinicalHandover and doctorThought stay null until the
	// HandoverSpecialist populates them.
	if persona != RoleHandoverSpecialist {
		update.ClinicalHandover = nil
		update.HasClinicalHandover = false
	}

	merged := Merge(session.MedicalData, update)
	merged.CurrentAgent = persona

	vitalsErr := s.applyTriage(session, &merged, update)

	session.MedicalData = merged
	session.ClinicalHandover = merged.ClinicalHandover
	session.CurrentAgent = persona
	session.Completeness = Score(merged)

	if persona == RoleHandoverSpecialist && len(result.DoctorThought) > 0 {
		var dt DoctorThought
		if json.Unmarshal(result.DoctorThought, &dt) == nil {
			session.DoctorThought = &dt
		}
	}

	s.applyBookkeeping(session, result, update, persona, previousAgent)
	completed := s.advanceStatus(session, merged, persona)

	userMsg := &Message{SessionID: id, Role: "user", Content: userMessage, CreatedAt: time.Now()}
	aiMsg := &Message{SessionID: id, Role: "assistant", Content: result.Reply, CreatedAt: time.Now()}
	if err := s.repo.CommitTurn(ctx, session, userMsg, aiMsg); err != nil {
		return nil, fmt.Errorf("commit turn: %w", err)
	}

	if completed {
		s.onIntakeReady(session)
	}

	return &TurnResult{
		Reply:        result.Reply,
		WasRecovered: result.WasRecovered,
		Triage:       session.MedicalData.Vitals.TriageDecision,
		VitalsError:  vitalsErr,
		Session:      session,
	}, nil
}

// applyTriage reruns the rule engine whenever the turn changed vitals
// readings or the free-text status. Readings outside physiologic bounds are
// rejected before assessment: the previous vitals are kept and the failure
// is surfaced as a field-level error, not an emergency.
func (s *service) applyTriage(session *IntakeSession, merged *MedicalData, update MedicalDataUpdate) string {
	changed := update.Vitals != nil
	if !changed {
		return ""
	}

	tv := toTriageVitals(merged.Vitals)
	if err := triage.ValidateVitals(tv); err != nil {
		merged.Vitals = session.MedicalData.Vitals
		s.log.Warn().Err(err).Stringer("session_id", session.ID).Msg("rejected out-of-range vitals")
		return err.Error()
	}

	outcome := triage.Combine(
		triage.AssessVitals(tv),
		triage.AssessSymptoms(merged.Vitals.CurrentStatus),
	)

	previous := session.MedicalData.Vitals
	decision := TriageDecision(outcome.Decision)
	reason := outcome.Reason
	recommendations := outcome.Recommendations

	// An emergency is never silently downgraded within a session. The
	// emergency guidance stays with it: a latched record must not hand the
	// clinic a softer tier's recommendations.
	if previous.TriageDecision == TriageEmergency && decision != TriageEmergency {
		decision = TriageEmergency
		reason = previous.TriageReason + " (latest readings within range; emergency flag retained)"
		recommendations = session.MedicalData.UCGRecommendations
	}

	merged.Vitals.TriageDecision = decision
	merged.Vitals.TriageReason = reason
	merged.UCGRecommendations = recommendations

	if decision == TriageEmergency && previous.TriageDecision != TriageEmergency {
		s.audit(session.ID, "triage_emergency", reason)
	}
	return ""
}

func toTriageVitals(v VitalsData) triage.Vitals {
	tv := triage.Vitals{Age: v.PatientAge, Gender: v.PatientGender}
	if v.Temperature != nil {
		tv.Temperature = v.Temperature.Value
		tv.TemperatureUnit = v.Temperature.Unit
	}
	if v.Weight != nil {
		tv.WeightKg = v.Weight.Value
	}
	if v.BloodPressure != nil {
		tv.Systolic = v.BloodPressure.Systolic
		tv.Diastolic = v.BloodPressure.Diastolic
	}
	return tv
}

func (s *service) applyBookkeeping(session *IntakeSession, result ValidationResult, update MedicalDataUpdate, persona, previousAgent AgentRole) {
	session.AIMessageCount++
	if result.IsValid && !result.WasRecovered {
		session.ConsecutiveErrors = 0
	} else {
		session.ConsecutiveErrors++
	}
	if persona == previousAgent {
		session.FollowUpCount++
	} else {
		session.FollowUpCount = 0
	}
	for _, topic := range update.ProvidedFields() {
		if !contains(session.AnsweredTopics, topic) {
			session.AnsweredTopics = append(session.AnsweredTopics, topic)
		}
	}
	if session.MedicalData.ClinicalHandover != nil {
		session.ConclusionOffered = true
	}
}

// advanceStatus moves the session forward. Status never moves backwards
// except through an explicit reset. Returns true when the session reached
// ready on this turn.
func (s *service) advanceStatus(session *IntakeSession, merged MedicalData, persona AgentRole) bool {
	now := time.Now()
	if session.Status == StatusNotStarted {
		session.Status = StatusInProgress
		session.StartedAt = &now
	}
	if session.Status == StatusInProgress &&
		(merged.BookingStatus == BookingReady || persona == RoleHandoverSpecialist) {
		session.Status = StatusReady
		session.CompletedAt = &now
		return true
	}
	return false
}

// onIntakeReady fires completion side effects. They are fire-and-forget: a
// failing notifier, auditor or report must never fail the committed turn.
func (s *service) onIntakeReady(session *IntakeSession) {
	snapshot := *session
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.notifier.NotifyIntakeCompleted(ctx, &snapshot); err != nil {
			s.log.Warn().Err(err).Stringer("session_id", snapshot.ID).Msg("completion notification failed")
		}
		if snapshot.ClinicalHandover != nil {
			if err := s.reportSvc.SendHandoverReport(ctx, snapshot); err != nil {
				s.log.Warn().Err(err).Stringer("session_id", snapshot.ID).Msg("handover report failed")
			}
		}
	}()
	s.audit(session.ID, "intake_completed", fmt.Sprintf("completeness=%d", session.Completeness))
}

// ResetSession atomically wipes the conversation and returns the session to
// its initial state, preserving id, connectionId and createdAt. Any sub-step
// failure rolls the whole transaction back.
func (s *service) ResetSession(ctx context.Context, id uuid.UUID, reason string) (*IntakeSession, error) {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	session.ResetToInitial(reason)
	if err := s.repo.Reset(ctx, session); err != nil {
		return nil, fmt.Errorf("reset session: %w", err)
	}

	snapshot := *session
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.notifier.NotifyIntakeReset(ctx, &snapshot); err != nil {
			s.log.Warn().Err(err).Stringer("session_id", snapshot.ID).Msg("reset notification failed")
		}
	}()
	s.audit(id, "session_reset", reason)

	return session, nil
}

// ReviewSession marks a ready session as reviewed by a clinician. Reviewed
// is terminal for the conversation: further turns are rejected and only an
// explicit reset reopens the session.
func (s *service) ReviewSession(ctx context.Context, id uuid.UUID, reason string) (*IntakeSession, error) {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	session, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status == StatusReviewed {
		return session, nil
	}
	if session.Status != StatusReady {
		return nil, ErrSessionNotReady
	}

	session.Status = StatusReviewed
	session.TerminationReason = reason
	session.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("review session: %w", err)
	}

	s.audit(id, "session_reviewed", reason)
	return session, nil
}

func (s *service) audit(sessionID uuid.UUID, event, detail string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.auditor.Record(ctx, sessionID, event, detail); err != nil {
			s.log.Warn().Err(err).Str("event", event).Msg("audit record failed")
		}
	}()
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// ErrSessionReviewed is returned when a turn arrives for a session that has
// already been reviewed by a clinician.
var ErrSessionReviewed = errors.New("intake session already reviewed")

// ErrSessionNotReady is returned when a review is requested for a session
// that has not reached the ready state.
var ErrSessionNotReady = errors.New("intake session is not ready for review")
