// Package notify delivers fire-and-forget intake intents to the clinic
// channel and records audit events. Neither collaborator may ever fail an
// intake transaction; callers log and move on.
package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/scof256/hellodoctor-sub006/internal/intake"
)

// TelegramClient is the piece of the Telegram API the notifier needs.
type TelegramClient interface {
	SendMessage(chatID int64, text string) error
}

// TelegramNotifier posts intake lifecycle intents into the clinic chat.
type TelegramNotifier struct {
	tg     TelegramClient
	chatID int64
}

func NewTelegramNotifier(tg TelegramClient, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{tg: tg, chatID: chatID}
}

func (n *TelegramNotifier) NotifyIntakeCompleted(ctx context.Context, s *intake.IntakeSession) error {
	triage := s.MedicalData.Vitals.TriageDecision
	text := fmt.Sprintf(
		"Intake completed\nSession: %s\nCompleteness: %d%%\nTriage: %s\nChief complaint: %s",
		s.ID, s.Completeness, triage, s.MedicalData.ChiefComplaint)
	return n.tg.SendMessage(n.chatID, text)
}

func (n *TelegramNotifier) NotifyIntakeReset(ctx context.Context, s *intake.IntakeSession) error {
	text := fmt.Sprintf("Intake reset\nSession: %s\nReason: %s", s.ID, s.TerminationReason)
	return n.tg.SendMessage(n.chatID, text)
}

// LogAuditor writes audit events to the structured log. Persistent audit
// storage lives outside this service; this keeps the produced interface
// satisfied and the events observable.
type LogAuditor struct {
	log zerolog.Logger
}

func NewLogAuditor(log zerolog.Logger) *LogAuditor {
	return &LogAuditor{log: log.With().Str("component", "audit").Logger()}
}

func (a *LogAuditor) Record(ctx context.Context, sessionID uuid.UUID, event, detail string) error {
	a.log.Info().
		Stringer("session_id", sessionID).
		Str("event", event).
		Str("detail", detail).
		Msg("intake audit event")
	return nil
}
